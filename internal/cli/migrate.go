package cli

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/subcommands"
	"github.com/joho/godotenv"

	"github.com/FACorreiaa/wealth-tracker/pkg/config"
	"github.com/FACorreiaa/wealth-tracker/pkg/db"
)

// migrateCmd applies the embedded migrations to the configured database.
type migrateCmd struct {
	envFile string
}

func (*migrateCmd) Name() string     { return "migrate" }
func (*migrateCmd) Synopsis() string { return "apply database migrations" }
func (*migrateCmd) Usage() string {
	return `stagectl migrate [-env .env]

  Reads the same DB_* variables as the server and applies every pending
  migration.
`
}

func (c *migrateCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.envFile, "env", ".env", "Optional env file to load first")
}

func (c *migrateCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	if err := godotenv.Load(c.envFile); err != nil {
		logger.Debug("no env file loaded", slog.String("path", c.envFile))
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		return subcommands.ExitFailure
	}
	database, err := db.New(db.Config{DSN: cfg.Database.DSN(), MaxConns: 2}, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error connecting to database: %v\n", err)
		return subcommands.ExitFailure
	}
	defer database.Close()

	if err := database.RunMigrations(); err != nil {
		fmt.Fprintf(os.Stderr, "Error applying migrations: %v\n", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
