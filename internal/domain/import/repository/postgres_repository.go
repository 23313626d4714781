package repository

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/FACorreiaa/wealth-tracker/internal/domain/ledger"
	"github.com/FACorreiaa/wealth-tracker/pkg/db"
)

const uniqueViolation = "23505"

const (
	getLayoutByFingerprintQuery = `
		SELECT id, user_id, fingerprint, exchange_name, delimiter, skip_lines, date_format,
		       time_col, account_col, operation_col, coin_col, change_col, remark_col,
		       created_at, updated_at
		FROM exchange_layouts
		WHERE fingerprint = $1 AND (user_id = $2 OR user_id IS NULL)
		ORDER BY user_id NULLS LAST
		LIMIT 1
	`

	saveLayoutQuery = `
		INSERT INTO exchange_layouts (
			id, user_id, fingerprint, exchange_name, delimiter, skip_lines, date_format,
			time_col, account_col, operation_col, coin_col, change_col, remark_col
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (fingerprint, COALESCE(user_id, '00000000-0000-0000-0000-000000000000'::uuid))
		DO UPDATE SET
			exchange_name = EXCLUDED.exchange_name, delimiter = EXCLUDED.delimiter,
			skip_lines = EXCLUDED.skip_lines, date_format = EXCLUDED.date_format,
			time_col = EXCLUDED.time_col, account_col = EXCLUDED.account_col,
			operation_col = EXCLUDED.operation_col, coin_col = EXCLUDED.coin_col,
			change_col = EXCLUDED.change_col, remark_col = EXCLUDED.remark_col,
			updated_at = NOW()
	`

	createImportJobQuery = `
		INSERT INTO import_jobs (id, user_id, account_id, kind, status, fingerprint, rows_total, groups_total)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	getImportJobQuery = `
		SELECT id, user_id, account_id, kind, status, fingerprint, error_message,
		       rows_total, rows_imported, groups_total, requested_at, finished_at
		FROM import_jobs WHERE id = $1
	`

	finishImportJobQuery = `
		UPDATE import_jobs SET
			status = $2, rows_imported = $3, error_message = $4, finished_at = NOW()
		WHERE id = $1
	`
)

var ledgerOperationColumns = []string{
	"id", "user_id", "account_id", "import_job_id", "group_index", "kind", "symbol",
	"amount", "price_eur", "group_eur_amount", "executed_at", "source", "external_id",
}

// PostgresImportRepository implements ImportRepository using PostgreSQL
type PostgresImportRepository struct {
	pool db.Pool
}

// NewPostgresImportRepository creates a new PostgreSQL-backed import repository
func NewPostgresImportRepository(pool db.Pool) *PostgresImportRepository {
	return &PostgresImportRepository{pool: pool}
}

var _ ImportRepository = (*PostgresImportRepository)(nil)

// GetLayoutByFingerprint looks up a layout by its fingerprint. User layouts
// win over global templates. Returns nil when none is stored.
func (r *PostgresImportRepository) GetLayoutByFingerprint(ctx context.Context, fingerprint string, userID *uuid.UUID) (*ExchangeLayout, error) {
	rows, err := r.pool.Query(ctx, getLayoutByFingerprintQuery, fingerprint, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get layout by fingerprint: %w", err)
	}

	layout, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[ExchangeLayout])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan layout: %w", err)
	}

	return &layout, nil
}

// SaveLayout inserts a layout or refreshes the stored one.
func (r *PostgresImportRepository) SaveLayout(ctx context.Context, layout *ExchangeLayout) error {
	if layout.ID == uuid.Nil {
		layout.ID = uuid.New()
	}

	_, err := r.pool.Exec(ctx, saveLayoutQuery,
		layout.ID, layout.UserID, layout.Fingerprint, layout.ExchangeName,
		layout.Delimiter, layout.SkipLines, layout.DateFormat,
		layout.TimeCol, layout.AccountCol, layout.OperationCol,
		layout.CoinCol, layout.ChangeCol, layout.RemarkCol,
	)
	if err != nil {
		return fmt.Errorf("failed to save exchange layout: %w", err)
	}

	return nil
}

// CreateImportJob creates a new import job
func (r *PostgresImportRepository) CreateImportJob(ctx context.Context, job *ImportJob) error {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}

	_, err := r.pool.Exec(ctx, createImportJobQuery,
		job.ID, job.UserID, job.AccountID, job.Kind, job.Status,
		job.Fingerprint, job.RowsTotal, job.GroupsTotal,
	)
	if err != nil {
		return fmt.Errorf("failed to create import job: %w", err)
	}

	return nil
}

// GetImportJobByID retrieves an import job by ID
func (r *PostgresImportRepository) GetImportJobByID(ctx context.Context, id uuid.UUID) (*ImportJob, error) {
	rows, err := r.pool.Query(ctx, getImportJobQuery, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get import job: %w", err)
	}

	job, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[ImportJob])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan import job: %w", err)
	}

	return &job, nil
}

// FinishImportJob marks an import job as complete
func (r *PostgresImportRepository) FinishImportJob(ctx context.Context, id uuid.UUID, status string, rowsImported int, errorMessage *string) error {
	_, err := r.pool.Exec(ctx, finishImportJobQuery, id, status, rowsImported, errorMessage)
	if err != nil {
		return fmt.Errorf("failed to finish import job: %w", err)
	}
	return nil
}

// InsertGroups copies the rows of every group into ledger_operations and
// finishes the job in the same transaction.
func (r *PostgresImportRepository) InsertGroups(ctx context.Context, job *ImportJob, groups []ledger.Group) (int, error) {
	type opRow struct {
		group ledger.Group
		row   ledger.ClassifiedRow
	}
	var ops []opRow
	for _, g := range groups {
		for _, row := range g.Rows {
			ops = append(ops, opRow{group: g, row: row})
		}
	}
	if len(ops) == 0 {
		return 0, nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin import transaction: %w", err)
	}

	copyCount, err := tx.CopyFrom(ctx,
		pgx.Identifier{"ledger_operations"},
		ledgerOperationColumns,
		pgx.CopyFromSlice(len(ops), func(i int) ([]any, error) {
			op := ops[i]
			return []any{
				uuid.New(),                             // id
				job.UserID,                             // user_id
				job.AccountID,                          // account_id
				job.ID,                                 // import_job_id
				op.group.Index,                         // group_index
				op.row.Kind.String(),                   // kind
				op.row.Symbol,                          // symbol
				db.Numeric(op.row.Amount),              // amount
				nil,                                    // price_eur
				db.NullNumeric(op.group.EURAmount),     // group_eur_amount
				op.row.Timestamp(),                     // executed_at
				"csv",                                  // source
				generateExternalID(job.UserID, op.row), // external_id
			}, nil
		}),
	)
	if err != nil {
		_ = tx.Rollback(ctx)
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return 0, ErrDuplicateImport
		}
		return 0, fmt.Errorf("failed to copy ledger operations: %w", err)
	}

	if _, err := tx.Exec(ctx, finishImportJobQuery, job.ID, JobStatusSucceeded, int(copyCount), nil); err != nil {
		_ = tx.Rollback(ctx)
		return 0, fmt.Errorf("failed to finish import job: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit import: %w", err)
	}

	return int(copyCount), nil
}

// generateExternalID creates a unique identifier for deduplication
func generateExternalID(userID uuid.UUID, row ledger.ClassifiedRow) string {
	data := fmt.Sprintf("%s|%d|%s|%s|%s|%s|%s",
		userID, row.Raw.Line, row.Timestamp().Format(time.RFC3339Nano), row.Raw.Account,
		row.Raw.Operation, row.Symbol, row.Amount.String())
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:16])
}
