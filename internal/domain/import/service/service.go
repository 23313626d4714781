// Package service provides the import orchestration logic.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/wealth-tracker/internal/domain/common"
	"github.com/FACorreiaa/wealth-tracker/internal/domain/import/classifier"
	"github.com/FACorreiaa/wealth-tracker/internal/domain/import/grouper"
	"github.com/FACorreiaa/wealth-tracker/internal/domain/import/overlay"
	"github.com/FACorreiaa/wealth-tracker/internal/domain/import/parser"
	"github.com/FACorreiaa/wealth-tracker/internal/domain/import/repository"
	"github.com/FACorreiaa/wealth-tracker/internal/domain/import/sniffer"
	"github.com/FACorreiaa/wealth-tracker/internal/domain/import/valuation"
	"github.com/FACorreiaa/wealth-tracker/internal/domain/ledger"
	"github.com/FACorreiaa/wealth-tracker/pkg/observability"
	"github.com/FACorreiaa/wealth-tracker/pkg/sessions"
)

const sessionKind = "import"

// Config tunes the staging pipeline.
type Config struct {
	Grouping grouper.Config
	Assets   ledger.Assets
	Location *time.Location // Zone of naive timestamps, UTC when nil
}

// DefaultConfig groups with the default window and anchors on EUR.
func DefaultConfig() Config {
	return Config{
		Grouping: grouper.DefaultConfig(),
		Assets:   ledger.DefaultAssets(),
	}
}

// GroupView is a staged group as shown to the user.
type GroupView struct {
	ledger.Group
	Excluded bool `json:"excluded"`
}

// Preview is the current state of a staged import.
type Preview struct {
	SessionID   uuid.UUID     `json:"session_id"`
	Fingerprint string        `json:"fingerprint"`
	Stats       overlay.Stats `json:"stats"`
	Groups      []GroupView   `json:"groups"`
}

// GroupUpdate edits one group. Nil fields are left alone; Toggle flips the
// inclusion and is applied before Excluded.
type GroupUpdate struct {
	GroupIndex int
	Toggle     bool
	Excluded   *bool
	EURAmount  *string
	UnitPrice  *string
}

// ConfirmResult reports a committed import.
type ConfirmResult struct {
	JobID         uuid.UUID `json:"job_id"`
	ImportedCount int       `json:"imported_count"`
	GroupsCount   int       `json:"groups_count"`
}

// Staged is the outcome of running an export through the pipeline.
type Staged struct {
	Parsed   *parser.Result
	Snapshot *overlay.Snapshot
}

type importSession struct {
	mu         sync.Mutex
	snapshot   *overlay.Snapshot
	config     *sniffer.FileConfig
	layout     *sniffer.Layout
	dateFormat string
	committed  bool
}

// Pipeline runs parse, classify, group and resolve. It holds no state
// between calls.
type Pipeline struct {
	cfg        Config
	classifier *classifier.Classifier
	resolver   valuation.Resolver
}

func NewPipeline(cfg Config) *Pipeline {
	if cfg.Assets.Anchor == "" {
		cfg.Assets = ledger.DefaultAssets()
	}
	return &Pipeline{
		cfg:        cfg,
		classifier: classifier.New(cfg.Assets),
		resolver:   valuation.New(cfg.Assets),
	}
}

// Stage turns an export into its initial overlay snapshot. Nothing is stored.
func (p *Pipeline) Stage(data []byte, opts parser.Options) (*Staged, error) {
	if opts.Location == nil {
		opts.Location = p.cfg.Location
	}
	parsed, err := parser.Parse(data, opts)
	if err != nil {
		return nil, err
	}
	classified, err := p.classifier.ClassifyAll(parsed.Rows)
	if err != nil {
		return nil, err
	}
	groups := p.resolver.ResolveAll(grouper.Group(classified, p.cfg.Grouping))
	return &Staged{
		Parsed:   parsed,
		Snapshot: overlay.New(groups, p.resolver, p.cfg.Assets),
	}, nil
}

// ImportService orchestrates staging, editing and committing exchange exports.
type ImportService struct {
	repo     repository.ImportRepository
	sessions *sessions.Store[*importSession]
	pipeline *Pipeline
	logger   *slog.Logger
	tracer   trace.Tracer
}

// NewImportService creates a new import service
func NewImportService(repo repository.ImportRepository, c *cache.Cache, cfg Config, logger *slog.Logger) *ImportService {
	return &ImportService{
		repo:     repo,
		sessions: sessions.NewStore[*importSession](c, sessionKind),
		pipeline: NewPipeline(cfg),
		logger:   logger,
		tracer:   otel.Tracer("wealth-tracker/import"),
	}
}

// PreviewImport stages an export and opens a session for it.
func (s *ImportService) PreviewImport(ctx context.Context, userID uuid.UUID, data []byte) (*Preview, error) {
	l := s.logger.With(slog.String("method", "PreviewImport"), slog.String("user_id", userID.String()))
	ctx, span := s.tracer.Start(ctx, "import.PreviewImport", trace.WithAttributes(
		attribute.Int("import.bytes", len(data)),
	))
	defer span.End()

	opts := parser.Options{}
	if config, err := sniffer.DetectConfig(data); err == nil {
		if layout := s.knownLayout(ctx, l, config.Fingerprint, userID); layout != nil {
			opts.DateFormat = layout.DateFormat
			l.DebugContext(ctx, "known export layout", slog.String("fingerprint", config.Fingerprint))
		}
	}

	staged, err := s.pipeline.Stage(data, opts)
	if err != nil {
		observability.ImportPreviewsTotal.WithLabelValues("rejected").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "export rejected")
		l.InfoContext(ctx, "export rejected", slog.Any("error", err))
		return nil, fmt.Errorf("failed to stage export: %w", err)
	}

	session := &importSession{
		snapshot:   staged.Snapshot,
		config:     staged.Parsed.Config,
		layout:     staged.Parsed.Layout,
		dateFormat: staged.Parsed.DateFormat,
	}
	id, err := s.sessions.Create(userID, session)
	if err != nil {
		observability.ImportPreviewsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	stats := staged.Snapshot.Stats()
	observability.ImportPreviewsTotal.WithLabelValues("staged").Inc()
	observability.ImportGroupsPerPreview.Observe(float64(stats.TotalGroups))
	span.SetAttributes(
		attribute.Int("import.rows", stats.TotalRows),
		attribute.Int("import.groups", stats.TotalGroups),
	)
	l.InfoContext(ctx, "export staged",
		slog.String("session_id", id.String()),
		slog.Int("rows", stats.TotalRows),
		slog.Int("groups", stats.TotalGroups),
		slog.Int("groups_needing_eur", stats.GroupsNeedingEUR),
	)

	return buildPreview(id, session), nil
}

// acquire returns the session locked. A session committed while the caller
// waited for the lock is reported as expired.
func (s *ImportService) acquire(userID, sessionID uuid.UUID) (*importSession, error) {
	session, err := s.sessions.Get(userID, sessionID)
	if err != nil {
		return nil, err
	}
	session.mu.Lock()
	if session.committed {
		session.mu.Unlock()
		return nil, common.ErrSessionExpired
	}
	return session, nil
}

// GetPreview returns the current state of a session.
func (s *ImportService) GetPreview(ctx context.Context, userID, sessionID uuid.UUID) (*Preview, error) {
	session, err := s.acquire(userID, sessionID)
	if err != nil {
		return nil, err
	}
	defer session.mu.Unlock()
	return buildPreview(sessionID, session), nil
}

// UpdateGroup applies one edit and returns the updated preview.
func (s *ImportService) UpdateGroup(ctx context.Context, userID, sessionID uuid.UUID, upd GroupUpdate) (*Preview, error) {
	l := s.logger.With(slog.String("method", "UpdateGroup"), slog.String("session_id", sessionID.String()))

	session, err := s.acquire(userID, sessionID)
	if err != nil {
		return nil, err
	}
	defer session.mu.Unlock()

	next := session.snapshot
	if upd.Toggle {
		if next, err = next.Toggle(upd.GroupIndex); err != nil {
			return nil, err
		}
	}
	if upd.Excluded != nil {
		if next, err = next.SetExcluded(upd.GroupIndex, *upd.Excluded); err != nil {
			return nil, err
		}
	}
	if upd.EURAmount != nil {
		if next, err = next.SetEURAmount(upd.GroupIndex, *upd.EURAmount); err != nil {
			return nil, err
		}
	}
	if upd.UnitPrice != nil {
		if next, err = next.SetUnitPrice(upd.GroupIndex, *upd.UnitPrice); err != nil {
			return nil, err
		}
	}
	session.snapshot = next

	l.DebugContext(ctx, "group updated", slog.Int("group_index", upd.GroupIndex))
	return buildPreview(sessionID, session), nil
}

// ConfirmImport commits the included groups to the ledger. A failed commit
// keeps the session so the user can retry.
func (s *ImportService) ConfirmImport(ctx context.Context, userID, sessionID, accountID uuid.UUID) (*ConfirmResult, error) {
	l := s.logger.With(slog.String("method", "ConfirmImport"), slog.String("session_id", sessionID.String()))
	ctx, span := s.tracer.Start(ctx, "import.ConfirmImport")
	defer span.End()

	session, err := s.acquire(userID, sessionID)
	if err != nil {
		return nil, err
	}
	defer session.mu.Unlock()

	payload, err := session.snapshot.Payload()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrValidation, err)
	}

	job := &repository.ImportJob{
		UserID:      userID,
		AccountID:   accountID,
		Kind:        repository.JobKindExchangeCSV,
		Status:      repository.JobStatusRunning,
		Fingerprint: session.config.Fingerprint,
		RowsTotal:   payload.RowsCount,
		GroupsTotal: payload.GroupsCount,
	}
	if err := s.repo.CreateImportJob(ctx, job); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to create import job: %w", err)
	}

	imported, err := s.repo.InsertGroups(ctx, job, payload.Groups)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "commit failed")
		errMsg := err.Error()
		if finishErr := s.repo.FinishImportJob(ctx, job.ID, repository.JobStatusFailed, 0, &errMsg); finishErr != nil {
			l.WarnContext(ctx, "failed to finish import job", slog.Any("error", finishErr))
		}
		l.ErrorContext(ctx, "import commit failed", slog.Any("error", err))
		return nil, fmt.Errorf("failed to commit import: %w", err)
	}

	session.committed = true
	s.rememberLayout(ctx, l, userID, session)
	if err := s.sessions.Delete(userID, sessionID); err != nil && !errors.Is(err, common.ErrSessionExpired) {
		l.WarnContext(ctx, "failed to drop import session", slog.Any("error", err))
	}

	observability.ImportedRowsTotal.Add(float64(imported))
	span.SetAttributes(attribute.Int("import.rows_imported", imported))
	l.InfoContext(ctx, "import committed",
		slog.String("job_id", job.ID.String()),
		slog.Int("rows", imported),
		slog.Int("groups", payload.GroupsCount),
	)

	return &ConfirmResult{
		JobID:         job.ID,
		ImportedCount: imported,
		GroupsCount:   payload.GroupsCount,
	}, nil
}

// CancelImport drops a session without committing anything.
func (s *ImportService) CancelImport(ctx context.Context, userID, sessionID uuid.UUID) error {
	if err := s.sessions.Delete(userID, sessionID); err != nil {
		return err
	}
	s.logger.DebugContext(ctx, "import cancelled", slog.String("session_id", sessionID.String()))
	return nil
}

// GetImportJob returns a job owned by the user.
func (s *ImportService) GetImportJob(ctx context.Context, userID, jobID uuid.UUID) (*repository.ImportJob, error) {
	job, err := s.repo.GetImportJobByID(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to get import job: %w", err)
	}
	if job == nil || job.UserID != userID {
		return nil, common.ErrNotFound
	}
	return job, nil
}

func (s *ImportService) knownLayout(ctx context.Context, l *slog.Logger, fingerprint string, userID uuid.UUID) *repository.ExchangeLayout {
	layout, err := s.repo.GetLayoutByFingerprint(ctx, fingerprint, &userID)
	if err != nil {
		l.WarnContext(ctx, "failed to lookup export layout", slog.Any("error", err))
		return nil
	}
	return layout
}

// rememberLayout stores the export layout so later previews of the same
// export reuse its date format. Failures are logged only.
func (s *ImportService) rememberLayout(ctx context.Context, l *slog.Logger, userID uuid.UUID, session *importSession) {
	if session.config == nil || session.layout == nil {
		return
	}
	layout := &repository.ExchangeLayout{
		UserID:       &userID,
		Fingerprint:  session.config.Fingerprint,
		Delimiter:    string(session.config.Delimiter),
		SkipLines:    session.config.SkipLines,
		DateFormat:   session.dateFormat,
		TimeCol:      session.layout.Time,
		AccountCol:   session.layout.Account,
		OperationCol: session.layout.Operation,
		CoinCol:      session.layout.Coin,
		ChangeCol:    session.layout.Change,
	}
	if session.layout.Remark != "" {
		remark := session.layout.Remark
		layout.RemarkCol = &remark
	}
	if err := s.repo.SaveLayout(ctx, layout); err != nil {
		l.WarnContext(ctx, "failed to save export layout", slog.Any("error", err))
	}
}

func buildPreview(id uuid.UUID, session *importSession) *Preview {
	groups := session.snapshot.Groups()
	views := make([]GroupView, 0, len(groups))
	for _, g := range groups {
		views = append(views, GroupView{Group: g, Excluded: session.snapshot.Excluded(g.Index)})
	}
	fingerprint := ""
	if session.config != nil {
		fingerprint = session.config.Fingerprint
	}
	return &Preview{
		SessionID:   id,
		Fingerprint: fingerprint,
		Stats:       session.snapshot.Stats(),
		Groups:      views,
	}
}
