// Package service hosts wizard sessions and commits their transactions.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/wealth-tracker/internal/domain/common"
	"github.com/FACorreiaa/wealth-tracker/internal/domain/costbasis"
	"github.com/FACorreiaa/wealth-tracker/internal/domain/fees"
	"github.com/FACorreiaa/wealth-tracker/internal/domain/ledger"
	"github.com/FACorreiaa/wealth-tracker/internal/domain/ledger/repository"
	"github.com/FACorreiaa/wealth-tracker/internal/domain/wizard"
	"github.com/FACorreiaa/wealth-tracker/pkg/observability"
	"github.com/FACorreiaa/wealth-tracker/pkg/sessions"
)

const sessionKind = "wizard"

type Config struct {
	Assets      ledger.Assets
	SearchDelay time.Duration
	SearchLimit int
}

func DefaultConfig() Config {
	return Config{
		Assets:      ledger.DefaultAssets(),
		SearchDelay: wizard.DefaultSearchDelay,
		SearchLimit: 10,
	}
}

// View is what the user sees after each event.
type View struct {
	SessionID    uuid.UUID                `json:"session_id"`
	Step         wizard.Step              `json:"step"`
	Steps        []wizard.Step            `json:"steps"`
	Transaction  ledger.StagedTransaction `json:"transaction"`
	Errors       fees.FieldErrors         `json:"errors,omitempty"`
	PRU          decimal.NullDecimal      `json:"pru"`
	PRUFormatted string                   `json:"pru_formatted,omitempty"`
}

type wizardSession struct {
	mu     sync.Mutex
	state  wizard.State
	search *wizard.Debouncer[[]ledger.Asset]
}

// WizardService runs manual transaction entry.
type WizardService struct {
	repo     repository.LedgerRepository
	sessions *sessions.Store[*wizardSession]
	machine  wizard.Machine
	cfg      Config
	logger   *slog.Logger
	now      func() time.Time
}

func NewWizardService(repo repository.LedgerRepository, c *cache.Cache, cfg Config, logger *slog.Logger) *WizardService {
	if cfg.Assets.Anchor == "" {
		cfg.Assets = ledger.DefaultAssets()
	}
	if cfg.SearchLimit <= 0 {
		cfg.SearchLimit = 10
	}
	return &WizardService{
		repo:     repo,
		sessions: sessions.NewStore[*wizardSession](c, sessionKind),
		machine:  wizard.NewMachine(cfg.Assets),
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// Start opens a wizard session.
func (s *WizardService) Start(ctx context.Context, userID uuid.UUID) (*View, error) {
	session := &wizardSession{
		state:  s.machine.Start(s.now()),
		search: wizard.NewDebouncer[[]ledger.Asset](s.cfg.SearchDelay),
	}
	id, err := s.sessions.Create(userID, session)
	if err != nil {
		return nil, err
	}
	s.logger.DebugContext(ctx, "wizard started", slog.String("session_id", id.String()))
	return s.view(id, session.state, nil), nil
}

// Apply runs one event. Validation problems come back inline on the view
// with the state unchanged.
func (s *WizardService) Apply(ctx context.Context, userID, sessionID uuid.UUID, ev wizard.Event) (*View, error) {
	l := s.logger.With(slog.String("method", "Apply"), slog.String("session_id", sessionID.String()))

	if _, ok := ev.(wizard.Confirm); ok {
		return nil, fmt.Errorf("%w: confirm is done by submitting", wizard.ErrEventNotAllowed)
	}

	session, err := s.sessions.Get(userID, sessionID)
	if err != nil {
		return nil, err
	}
	session.mu.Lock()
	defer session.mu.Unlock()

	next, err := s.machine.Transition(session.state, ev)
	var fieldErrs fees.FieldErrors
	if errors.As(err, &fieldErrs) {
		l.DebugContext(ctx, "event rejected", slog.String("event", ev.Name()), slog.Int("errors", len(fieldErrs)))
		return s.view(sessionID, session.state, fieldErrs), nil
	}
	if err != nil {
		return nil, err
	}
	session.state = next

	if next.Step == wizard.StepCancelled {
		if err := s.sessions.Delete(userID, sessionID); err != nil && !errors.Is(err, common.ErrSessionExpired) {
			l.WarnContext(ctx, "failed to drop wizard session", slog.Any("error", err))
		}
	}
	return s.view(sessionID, next, nil), nil
}

// Submit confirms the transaction and commits it. A failed commit leaves
// the session at the submit step.
func (s *WizardService) Submit(ctx context.Context, userID, sessionID, accountID uuid.UUID) (*ledger.Record, error) {
	l := s.logger.With(slog.String("method", "Submit"), slog.String("session_id", sessionID.String()))

	session, err := s.sessions.Get(userID, sessionID)
	if err != nil {
		return nil, err
	}
	session.mu.Lock()
	defer session.mu.Unlock()

	kind := session.state.Tx.Kind.String()
	next, err := s.machine.Transition(session.state, wizard.Confirm{})
	if err != nil {
		observability.TransactionSubmissionsTotal.WithLabelValues(kind, "rejected").Inc()
		return nil, err
	}

	record, err := s.repo.CreateTransaction(ctx, userID, accountID, *next.Payload)
	if err != nil {
		observability.TransactionSubmissionsTotal.WithLabelValues(kind, "failed").Inc()
		l.ErrorContext(ctx, "failed to commit transaction", slog.Any("error", err))
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	session.state = next

	if err := s.sessions.Delete(userID, sessionID); err != nil && !errors.Is(err, common.ErrSessionExpired) {
		l.WarnContext(ctx, "failed to drop wizard session", slog.Any("error", err))
	}
	observability.TransactionSubmissionsTotal.WithLabelValues(kind, "committed").Inc()
	l.InfoContext(ctx, "transaction committed",
		slog.String("transaction_id", record.ID.String()),
		slog.String("kind", kind),
		slog.Int("legs", len(record.Legs)),
	)
	return record, nil
}

// Search looks up assets for the session's symbol field. Rapid calls are
// debounced per session; only the newest returns results. It never holds
// the session lock while waiting.
func (s *WizardService) Search(ctx context.Context, userID, sessionID uuid.UUID, query string) ([]ledger.Asset, error) {
	session, err := s.sessions.Get(userID, sessionID)
	if err != nil {
		return nil, err
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return []ledger.Asset{}, nil
	}
	return session.search.Do(ctx, func(ctx context.Context) ([]ledger.Asset, error) {
		assets, err := s.repo.SearchAssets(ctx, query, s.cfg.SearchLimit)
		if err != nil {
			return nil, fmt.Errorf("failed to search assets: %w", err)
		}
		return assets, nil
	})
}

func (s *WizardService) view(id uuid.UUID, state wizard.State, errs fees.FieldErrors) *View {
	v := &View{
		SessionID:   id,
		Step:        state.Step,
		Transaction: state.Tx,
		Errors:      errs,
	}
	if state.Step.Terminal() {
		return v
	}
	v.Steps = wizard.Steps(state.Tx.Kind)
	v.PRU = s.machine.PreviewPRU(state.Tx)
	if v.PRU.Valid {
		v.PRUFormatted = costbasis.FormatPRU(v.PRU.Decimal, s.cfg.Assets.Anchor)
	}
	return v
}
