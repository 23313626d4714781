package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/wealth-tracker/internal/domain/ledger"
)

func buyPayload() ledger.Payload {
	return ledger.Payload{
		Kind:       ledger.KindBuySpot,
		ExecutedAt: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		Legs: []ledger.Leg{
			{Kind: ledger.OpBuy, Symbol: "BTC", Amount: decimal.RequireFromString("0.05"), PriceEUR: ledger.NullOf(decimal.NewFromInt(30070))},
			{Kind: ledger.OpSpend, Symbol: "USDC", Amount: decimal.NewFromInt(-1500)},
		},
		EffectiveCost: ledger.NullOf(decimal.RequireFromString("1503.5")),
	}
}

func TestPostgresLedgerRepository_CreateTransaction(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	userID, accountID := uuid.New(), uuid.New()
	payload := buyPayload()
	createdAt := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(insertTransactionQuery)).
		WithArgs(pgxmock.AnyArg(), userID, accountID, "BUY_SPOT", payload.ExecutedAt, pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(createdAt))
	mock.ExpectCopyFrom(pgx.Identifier{"ledger_operations"}, transactionLegColumns).
		WillReturnResult(2)
	mock.ExpectCommit()

	repo := NewPostgresLedgerRepository(mock)
	record, err := repo.CreateTransaction(context.Background(), userID, accountID, payload)
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, record.ID)
	assert.Equal(t, accountID, record.AccountID)
	assert.Equal(t, ledger.KindBuySpot, record.Kind)
	assert.Equal(t, createdAt, record.CreatedAt)
	assert.Len(t, record.Legs, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresLedgerRepository_CreateTransaction_RollsBack(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	payload := buyPayload()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(insertTransactionQuery)).
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(time.Now()))
	mock.ExpectCopyFrom(pgx.Identifier{"ledger_operations"}, transactionLegColumns).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	repo := NewPostgresLedgerRepository(mock)
	_, err = repo.CreateTransaction(context.Background(), uuid.New(), uuid.New(), payload)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to insert transaction legs")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresLedgerRepository_CreateTransaction_NoLegs(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPostgresLedgerRepository(mock)
	_, err = repo.CreateTransaction(context.Background(), uuid.New(), uuid.New(), ledger.Payload{Kind: ledger.KindReward})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresLedgerRepository_SearchAssets(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(regexp.QuoteMeta(searchAssetsQuery)).
		WithArgs("bt", defaultSearchLimit).
		WillReturnRows(pgxmock.NewRows([]string{"symbol", "name", "asset_type"}).
			AddRow("BTC", "Bitcoin", "crypto"))

	repo := NewPostgresLedgerRepository(mock)
	assets, err := repo.SearchAssets(context.Background(), "  bt ", 0)
	require.NoError(t, err)
	assert.Equal(t, []ledger.Asset{{Symbol: "BTC", Name: "Bitcoin", AssetType: "crypto"}}, assets)
	assert.NoError(t, mock.ExpectationsWereMet())

	empty, err := repo.SearchAssets(context.Background(), "   ", 5)
	require.NoError(t, err)
	assert.Nil(t, empty)
}
