// Package repository provides data access for exchange imports.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/FACorreiaa/wealth-tracker/internal/domain/ledger"
)

const (
	JobKindExchangeCSV = "exchange_csv"

	JobStatusRunning   = "running"
	JobStatusSucceeded = "succeeded"
	JobStatusFailed    = "failed"
)

var ErrDuplicateImport = errors.New("rows of this export were already imported")

// ExchangeLayout is a learned export layout, keyed by header fingerprint.
// Column fields hold header names.
type ExchangeLayout struct {
	ID           uuid.UUID  `db:"id"`
	UserID       *uuid.UUID `db:"user_id"` // NULL = global template
	Fingerprint  string     `db:"fingerprint"`
	ExchangeName *string    `db:"exchange_name"`
	Delimiter    string     `db:"delimiter"`
	SkipLines    int        `db:"skip_lines"`
	DateFormat   string     `db:"date_format"`
	TimeCol      string     `db:"time_col"`
	AccountCol   string     `db:"account_col"`
	OperationCol string     `db:"operation_col"`
	CoinCol      string     `db:"coin_col"`
	ChangeCol    string     `db:"change_col"`
	RemarkCol    *string    `db:"remark_col"`
	CreatedAt    time.Time  `db:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at"`
}

// ImportJob tracks one confirmed import.
type ImportJob struct {
	ID           uuid.UUID  `db:"id"`
	UserID       uuid.UUID  `db:"user_id"`
	AccountID    uuid.UUID  `db:"account_id"`
	Kind         string     `db:"kind"`
	Status       string     `db:"status"` // "running", "succeeded", "failed"
	Fingerprint  string     `db:"fingerprint"`
	ErrorMessage *string    `db:"error_message"`
	RowsTotal    int        `db:"rows_total"`
	RowsImported int        `db:"rows_imported"`
	GroupsTotal  int        `db:"groups_total"`
	RequestedAt  time.Time  `db:"requested_at"`
	FinishedAt   *time.Time `db:"finished_at"`
}

// ImportRepository defines data access operations for imports
type ImportRepository interface {
	// Exchange layouts
	GetLayoutByFingerprint(ctx context.Context, fingerprint string, userID *uuid.UUID) (*ExchangeLayout, error)
	SaveLayout(ctx context.Context, layout *ExchangeLayout) error

	// Import jobs
	CreateImportJob(ctx context.Context, job *ImportJob) error
	GetImportJobByID(ctx context.Context, id uuid.UUID) (*ImportJob, error)
	FinishImportJob(ctx context.Context, id uuid.UUID, status string, rowsImported int, errorMessage *string) error

	// InsertGroups writes every row of the groups as ledger operations and
	// marks the job succeeded, all in one transaction.
	InsertGroups(ctx context.Context, job *ImportJob, groups []ledger.Group) (int, error)
}
