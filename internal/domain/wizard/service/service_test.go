package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/wealth-tracker/internal/domain/common"
	"github.com/FACorreiaa/wealth-tracker/internal/domain/fees"
	"github.com/FACorreiaa/wealth-tracker/internal/domain/ledger"
	"github.com/FACorreiaa/wealth-tracker/internal/domain/wizard"
	"github.com/FACorreiaa/wealth-tracker/pkg/sessions"
)

// MockLedgerRepo is a mock implementation of LedgerRepository
type MockLedgerRepo struct {
	mock.Mock
}

func (m *MockLedgerRepo) CreateTransaction(ctx context.Context, userID, accountID uuid.UUID, payload ledger.Payload) (*ledger.Record, error) {
	args := m.Called(ctx, userID, accountID, payload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Record), args.Error(1)
}

func (m *MockLedgerRepo) SearchAssets(ctx context.Context, query string, limit int) ([]ledger.Asset, error) {
	args := m.Called(ctx, query, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ledger.Asset), args.Error(1)
}

func setupWizardServiceTest() (*WizardService, *MockLedgerRepo) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := new(MockLedgerRepo)
	cfg := DefaultConfig()
	cfg.SearchDelay = 10 * time.Millisecond
	svc := NewWizardService(repo, sessions.NewCache(time.Minute), cfg, logger)
	svc.now = func() time.Time { return time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC) }
	return svc, repo
}

func strPtr(s string) *string { return &s }

func stageBuySpot(t *testing.T, svc *WizardService, userID uuid.UUID) *View {
	t.Helper()
	ctx := context.Background()
	view, err := svc.Start(ctx, userID)
	require.NoError(t, err)

	for _, ev := range []wizard.Event{
		wizard.SetKind{Kind: ledger.KindBuySpot},
		wizard.SetReceived{Symbol: "BTC", Amount: "0.05"},
		wizard.Next{},
		wizard.SetSpent{Symbol: "USDC", Amount: "1500"},
		wizard.Next{},
		wizard.SetFeeMode{Mode: fees.ModeSeparate},
		wizard.SetFee{EUR: strPtr("3,5")},
		wizard.Next{},
	} {
		view, err = svc.Apply(ctx, userID, view.SessionID, ev)
		require.NoError(t, err)
		require.Empty(t, view.Errors, "event %s", ev.Name())
	}
	return view
}

func TestWizardService_SubmitBuySpot(t *testing.T) {
	svc, repo := setupWizardServiceTest()
	ctx := context.Background()
	userID := uuid.New()
	accountID := uuid.New()

	view := stageBuySpot(t, svc, userID)
	assert.Equal(t, wizard.StepSubmit, view.Step)
	require.True(t, view.PRU.Valid)
	assert.True(t, view.PRU.Decimal.Equal(decimal.NewFromInt(30070)))
	assert.Contains(t, view.PRUFormatted, "30,070.00")

	record := &ledger.Record{ID: uuid.New(), Kind: ledger.KindBuySpot}
	repo.On("CreateTransaction", ctx, userID, accountID, mock.MatchedBy(func(p ledger.Payload) bool {
		return p.Kind == ledger.KindBuySpot && len(p.Legs) == 2 &&
			p.EffectiveCost.Decimal.Equal(decimal.RequireFromString("1503.5"))
	})).Return(record, nil).Once()

	got, err := svc.Submit(ctx, userID, view.SessionID, accountID)
	require.NoError(t, err)
	assert.Equal(t, record, got)
	repo.AssertExpectations(t)

	_, err = svc.Apply(ctx, userID, view.SessionID, wizard.Back{})
	assert.ErrorIs(t, err, common.ErrSessionExpired)
}

func TestWizardService_SubmitFailureKeepsSession(t *testing.T) {
	svc, repo := setupWizardServiceTest()
	ctx := context.Background()
	userID := uuid.New()
	accountID := uuid.New()

	view := stageBuySpot(t, svc, userID)

	repoErr := errors.New("connection refused")
	repo.On("CreateTransaction", ctx, userID, accountID, mock.Anything).Return(nil, repoErr).Once()

	_, err := svc.Submit(ctx, userID, view.SessionID, accountID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, repoErr))

	view, err = svc.Apply(ctx, userID, view.SessionID, wizard.Back{})
	require.NoError(t, err)
	assert.Equal(t, wizard.StepFees, view.Step)
	repo.AssertExpectations(t)
}

func TestWizardService_ApplyInlineErrors(t *testing.T) {
	svc, _ := setupWizardServiceTest()
	ctx := context.Background()
	userID := uuid.New()

	view, err := svc.Start(ctx, userID)
	require.NoError(t, err)

	view, err = svc.Apply(ctx, userID, view.SessionID, wizard.Next{})
	require.NoError(t, err)
	assert.Equal(t, wizard.StepReceived, view.Step)
	assert.NotEmpty(t, view.Errors)

	_, err = svc.Apply(ctx, userID, view.SessionID, wizard.Confirm{})
	assert.ErrorIs(t, err, wizard.ErrEventNotAllowed)
}

func TestWizardService_SubmitIncomplete(t *testing.T) {
	svc, repo := setupWizardServiceTest()
	ctx := context.Background()
	userID := uuid.New()

	view, err := svc.Start(ctx, userID)
	require.NoError(t, err)

	_, err = svc.Submit(ctx, userID, view.SessionID, uuid.New())
	assert.ErrorIs(t, err, wizard.ErrEventNotAllowed)
	repo.AssertNotCalled(t, "CreateTransaction", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestWizardService_Cancel(t *testing.T) {
	svc, _ := setupWizardServiceTest()
	ctx := context.Background()
	userID := uuid.New()

	view, err := svc.Start(ctx, userID)
	require.NoError(t, err)

	view, err = svc.Apply(ctx, userID, view.SessionID, wizard.Cancel{})
	require.NoError(t, err)
	assert.Equal(t, wizard.StepCancelled, view.Step)

	_, err = svc.Apply(ctx, userID, view.SessionID, wizard.Next{})
	assert.ErrorIs(t, err, common.ErrSessionExpired)
}

func TestWizardService_Search(t *testing.T) {
	svc, repo := setupWizardServiceTest()
	ctx := context.Background()
	userID := uuid.New()

	view, err := svc.Start(ctx, userID)
	require.NoError(t, err)

	btc := []ledger.Asset{{Symbol: "BTC", Name: "Bitcoin", AssetType: "crypto"}}
	repo.On("SearchAssets", mock.Anything, "bt", 10).Return(btc, nil).Once()

	got, err := svc.Search(ctx, userID, view.SessionID, " bt ")
	require.NoError(t, err)
	assert.Equal(t, btc, got)

	got, err = svc.Search(ctx, userID, view.SessionID, "  ")
	require.NoError(t, err)
	assert.Empty(t, got)
	repo.AssertExpectations(t)

	_, err = svc.Search(ctx, uuid.New(), view.SessionID, "bt")
	assert.ErrorIs(t, err, common.ErrSessionExpired)
}
