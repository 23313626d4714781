package api

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/FACorreiaa/wealth-tracker/internal/domain/import/grouper"
	importrepo "github.com/FACorreiaa/wealth-tracker/internal/domain/import/repository"
	importservice "github.com/FACorreiaa/wealth-tracker/internal/domain/import/service"
	"github.com/FACorreiaa/wealth-tracker/internal/domain/ledger"
	ledgerrepo "github.com/FACorreiaa/wealth-tracker/internal/domain/ledger/repository"
	staginghandler "github.com/FACorreiaa/wealth-tracker/internal/domain/staging/handler"
	wizardservice "github.com/FACorreiaa/wealth-tracker/internal/domain/wizard/service"

	"github.com/FACorreiaa/wealth-tracker/pkg/config"
	"github.com/FACorreiaa/wealth-tracker/pkg/db"
	"github.com/FACorreiaa/wealth-tracker/pkg/sessions"
)

// Dependencies holds all application dependencies
type Dependencies struct {
	Config *config.Config
	DB     *db.DB
	Logger *slog.Logger

	// Repositories
	ImportRepo importrepo.ImportRepository
	LedgerRepo ledgerrepo.LedgerRepository

	// Staging sessions shared by the import preview and the wizard
	SessionCache *cache.Cache

	// Services
	ImportService *importservice.ImportService
	WizardService *wizardservice.WizardService

	// Handlers
	StagingHandler *staginghandler.StagingHandler
}

// InitDependencies initializes all application dependencies
func InitDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	// Initialize database
	if err := deps.initDatabase(); err != nil {
		return nil, fmt.Errorf("failed to init database: %w", err)
	}

	// Initialize repositories
	if err := deps.initRepositories(); err != nil {
		return nil, fmt.Errorf("failed to init repositories: %w", err)
	}

	// Initialize services
	if err := deps.initServices(); err != nil {
		return nil, fmt.Errorf("failed to init services: %w", err)
	}

	// Initialize handlers
	if err := deps.initHandlers(); err != nil {
		return nil, fmt.Errorf("failed to init handlers: %w", err)
	}

	logger.Info("all dependencies initialized successfully")

	return deps, nil
}

// initDatabase initializes the database connection and runs migrations
func (d *Dependencies) initDatabase() error {
	database, err := db.New(db.Config{
		DSN:             d.Config.Database.DSN(),
		MaxConns:        d.Config.Database.MaxConns,
		MinConns:        d.Config.Database.MinConns,
		MaxConnLifetime: 5 * time.Minute,
		MaxConnIdleTime: 10 * time.Minute,
	}, d.Logger)
	if err != nil {
		return err
	}

	d.DB = database

	// Run migrations
	if err := d.DB.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	d.Logger.Info("database connected and migrations completed successfully")
	return nil
}

// initRepositories initializes all repository layer dependencies
func (d *Dependencies) initRepositories() error {
	d.ImportRepo = importrepo.NewPostgresImportRepository(d.DB.Pool)
	d.LedgerRepo = ledgerrepo.NewPostgresLedgerRepository(d.DB.Pool)

	d.Logger.Info("repositories initialized")
	return nil
}

// initServices initializes all service layer dependencies
func (d *Dependencies) initServices() error {
	if len(d.Config.Auth.JWTSecret) == 0 {
		return fmt.Errorf("jwt secret is required")
	}

	importCfg, wizardCfg, err := StagingConfigs(d.Config.Staging)
	if err != nil {
		return err
	}

	d.SessionCache = sessions.NewCache(d.Config.Staging.SessionTTL)
	d.ImportService = importservice.NewImportService(d.ImportRepo, d.SessionCache, importCfg, d.Logger)
	d.WizardService = wizardservice.NewWizardService(d.LedgerRepo, d.SessionCache, wizardCfg, d.Logger)

	d.Logger.Info("services initialized",
		slog.String("anchor", importCfg.Assets.Anchor),
		slog.Duration("group_window", importCfg.Grouping.Window),
		slog.Duration("session_ttl", d.Config.Staging.SessionTTL))
	return nil
}

// initHandlers initializes all handler dependencies
func (d *Dependencies) initHandlers() error {
	d.StagingHandler = staginghandler.NewStagingHandler(d.ImportService, d.WizardService, d.Config.Staging.AnchorCurrency)

	d.Logger.Info("handlers initialized")
	return nil
}

// StagingConfigs derives the import pipeline and wizard settings.
func StagingConfigs(cfg config.StagingConfig) (importservice.Config, wizardservice.Config, error) {
	loc, err := cfg.Location()
	if err != nil {
		return importservice.Config{}, wizardservice.Config{}, fmt.Errorf("invalid staging timezone %q: %w", cfg.Timezone, err)
	}
	assets := ledger.NewAssets(cfg.AnchorCurrency)

	importCfg := importservice.Config{
		Grouping: grouper.Config{Window: cfg.GroupWindow, MaxRows: cfg.GroupMaxRows},
		Assets:   assets,
		Location: loc,
	}
	wizardCfg := wizardservice.Config{
		Assets:      assets,
		SearchDelay: cfg.SearchDebounce,
		SearchLimit: cfg.SearchLimit,
	}
	return importCfg, wizardCfg, nil
}

// Cleanup closes all resources
func (d *Dependencies) Cleanup() {
	if d.SessionCache != nil {
		d.SessionCache.Flush()
	}
	if d.DB != nil {
		d.DB.Close()
	}
	d.Logger.Info("cleanup completed")
}
