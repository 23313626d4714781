// Package stagingtest provides in-memory repositories for service and
// handler tests.
package stagingtest

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	importrepo "github.com/FACorreiaa/wealth-tracker/internal/domain/import/repository"
	"github.com/FACorreiaa/wealth-tracker/internal/domain/ledger"
	ledgerrepo "github.com/FACorreiaa/wealth-tracker/internal/domain/ledger/repository"
)

// ImportRepo is an in-memory import repository.
type ImportRepo struct {
	mu        sync.Mutex
	Layouts   map[string]*importrepo.ExchangeLayout
	Jobs      map[uuid.UUID]*importrepo.ImportJob
	Groups    []ledger.Group
	InsertErr error
}

func NewImportRepo() *ImportRepo {
	return &ImportRepo{
		Layouts: make(map[string]*importrepo.ExchangeLayout),
		Jobs:    make(map[uuid.UUID]*importrepo.ImportJob),
	}
}

var _ importrepo.ImportRepository = (*ImportRepo)(nil)

func (r *ImportRepo) GetLayoutByFingerprint(_ context.Context, fingerprint string, _ *uuid.UUID) (*importrepo.ExchangeLayout, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Layouts[fingerprint], nil
}

func (r *ImportRepo) SaveLayout(_ context.Context, layout *importrepo.ExchangeLayout) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if layout.ID == uuid.Nil {
		layout.ID = uuid.New()
	}
	r.Layouts[layout.Fingerprint] = layout
	return nil
}

func (r *ImportRepo) CreateImportJob(_ context.Context, job *importrepo.ImportJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	job.RequestedAt = time.Now()
	r.Jobs[job.ID] = job
	return nil
}

func (r *ImportRepo) GetImportJobByID(_ context.Context, id uuid.UUID) (*importrepo.ImportJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Jobs[id], nil
}

func (r *ImportRepo) FinishImportJob(_ context.Context, id uuid.UUID, status string, rowsImported int, errorMessage *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if job, ok := r.Jobs[id]; ok {
		now := time.Now()
		job.Status = status
		job.RowsImported = rowsImported
		job.ErrorMessage = errorMessage
		job.FinishedAt = &now
	}
	return nil
}

func (r *ImportRepo) InsertGroups(ctx context.Context, job *importrepo.ImportJob, groups []ledger.Group) (int, error) {
	r.mu.Lock()
	if r.InsertErr != nil {
		err := r.InsertErr
		r.mu.Unlock()
		return 0, err
	}
	r.Groups = append(r.Groups, groups...)
	r.mu.Unlock()

	n := ledger.CountRows(groups)
	return n, r.FinishImportJob(ctx, job.ID, importrepo.JobStatusSucceeded, n, nil)
}

// LedgerRepo is an in-memory ledger repository over a fixed asset list.
type LedgerRepo struct {
	mu        sync.Mutex
	Assets    []ledger.Asset
	Records   []*ledger.Record
	CreateErr error
}

func NewLedgerRepo() *LedgerRepo {
	return &LedgerRepo{Assets: []ledger.Asset{
		{Symbol: "BTC", Name: "Bitcoin", AssetType: "crypto"},
		{Symbol: "BNB", Name: "BNB", AssetType: "crypto"},
		{Symbol: "ETH", Name: "Ethereum", AssetType: "crypto"},
		{Symbol: "USDC", Name: "USD Coin", AssetType: "stablecoin"},
		{Symbol: "EUR", Name: "Euro", AssetType: "fiat"},
	}}
}

var _ ledgerrepo.LedgerRepository = (*LedgerRepo)(nil)

func (r *LedgerRepo) CreateTransaction(_ context.Context, _, accountID uuid.UUID, payload ledger.Payload) (*ledger.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.CreateErr != nil {
		return nil, r.CreateErr
	}
	record := &ledger.Record{
		ID:            uuid.New(),
		AccountID:     accountID,
		Kind:          payload.Kind,
		ExecutedAt:    payload.ExecutedAt,
		EffectiveCost: payload.EffectiveCost,
		Legs:          payload.Legs,
		CreatedAt:     time.Now(),
	}
	r.Records = append(r.Records, record)
	return record, nil
}

func (r *LedgerRepo) SearchAssets(_ context.Context, query string, limit int) ([]ledger.Asset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	q := strings.ToUpper(query)
	var out []ledger.Asset
	for _, a := range r.Assets {
		if strings.HasPrefix(a.Symbol, q) || strings.Contains(strings.ToUpper(a.Name), q) {
			out = append(out, a)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}
