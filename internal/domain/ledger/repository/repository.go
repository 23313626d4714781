// Package repository persists manually staged transactions and serves the
// asset catalogue.
package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/FACorreiaa/wealth-tracker/internal/domain/ledger"
	"github.com/FACorreiaa/wealth-tracker/pkg/db"
)

const defaultSearchLimit = 10

const (
	insertTransactionQuery = `
		INSERT INTO ledger_transactions (id, user_id, account_id, kind, executed_at, effective_cost)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`

	searchAssetsQuery = `
		SELECT symbol, name, asset_type
		FROM assets
		WHERE symbol ILIKE $1 || '%' OR name ILIKE '%' || $1 || '%'
		ORDER BY (upper(symbol) = upper($1)) DESC, symbol
		LIMIT $2
	`
)

var transactionLegColumns = []string{
	"id", "user_id", "account_id", "transaction_id", "kind", "symbol",
	"amount", "price_eur", "executed_at", "source",
}

// LedgerRepository stores composite transactions.
type LedgerRepository interface {
	CreateTransaction(ctx context.Context, userID, accountID uuid.UUID, payload ledger.Payload) (*ledger.Record, error)
	SearchAssets(ctx context.Context, query string, limit int) ([]ledger.Asset, error)
}

// PostgresLedgerRepository implements LedgerRepository using PostgreSQL.
type PostgresLedgerRepository struct {
	pool db.Pool
}

func NewPostgresLedgerRepository(pool db.Pool) *PostgresLedgerRepository {
	return &PostgresLedgerRepository{pool: pool}
}

var _ LedgerRepository = (*PostgresLedgerRepository)(nil)

// CreateTransaction writes the transaction header and its legs atomically.
func (r *PostgresLedgerRepository) CreateTransaction(ctx context.Context, userID, accountID uuid.UUID, payload ledger.Payload) (*ledger.Record, error) {
	if len(payload.Legs) == 0 {
		return nil, fmt.Errorf("transaction has no legs")
	}

	record := &ledger.Record{
		ID:            uuid.New(),
		AccountID:     accountID,
		Kind:          payload.Kind,
		ExecutedAt:    payload.ExecutedAt,
		EffectiveCost: payload.EffectiveCost,
		Legs:          payload.Legs,
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	var createdAt time.Time
	err = tx.QueryRow(ctx, insertTransactionQuery,
		record.ID, userID, accountID, payload.Kind.String(), payload.ExecutedAt,
		db.NullNumeric(payload.EffectiveCost),
	).Scan(&createdAt)
	if err != nil {
		_ = tx.Rollback(ctx)
		return nil, fmt.Errorf("failed to insert transaction: %w", err)
	}
	record.CreatedAt = createdAt

	_, err = tx.CopyFrom(ctx,
		pgx.Identifier{"ledger_operations"},
		transactionLegColumns,
		pgx.CopyFromSlice(len(payload.Legs), func(i int) ([]any, error) {
			leg := payload.Legs[i]
			return []any{
				uuid.New(),
				userID,
				accountID,
				record.ID,
				leg.Kind.String(),
				leg.Symbol,
				db.Numeric(leg.Amount),
				db.NullNumeric(leg.PriceEUR),
				payload.ExecutedAt,
				"manual",
			}, nil
		}),
	)
	if err != nil {
		_ = tx.Rollback(ctx)
		return nil, fmt.Errorf("failed to insert transaction legs: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return record, nil
}

// SearchAssets returns assets whose symbol starts with or whose name
// contains query. An exact symbol match sorts first.
func (r *PostgresLedgerRepository) SearchAssets(ctx context.Context, query string, limit int) ([]ledger.Asset, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	rows, err := r.pool.Query(ctx, searchAssetsQuery, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search assets: %w", err)
	}

	assets, err := pgx.CollectRows(rows, pgx.RowToStructByName[ledger.Asset])
	if err != nil {
		return nil, fmt.Errorf("failed to scan assets: %w", err)
	}
	return assets, nil
}
