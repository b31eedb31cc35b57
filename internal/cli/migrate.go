package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/uptrace/bun"

	"quiz-readiness-service/internal/config"
	"quiz-readiness-service/internal/infra/sqlstore"
)

// NewMigrateCmd applies database migrations.
func NewMigrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			db, err := openDatabase(cfg)
			if err != nil {
				return err
			}
			defer db.Close()
			return sqlstore.Migrate(cmd.Context(), db)
		},
	}
}

// openDatabase connects to the configured SQL backend.
func openDatabase(cfg config.Config) (*bun.DB, error) {
	switch driver := cfg.DatabaseDriver(); driver {
	case "postgres":
		if cfg.Postgres.URL == "" {
			return nil, fmt.Errorf("postgres url not configured")
		}
		return sqlstore.OpenPostgres(cfg.Postgres.URL), nil
	case "sqlite":
		path := cfg.SQLite.Path
		if path == "" {
			path = "data/quiz.db"
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
		return sqlstore.OpenSQLite(path)
	default:
		return nil, fmt.Errorf("database driver %q has no schema to migrate", driver)
	}
}

func openMigrated(ctx context.Context, cfg config.Config) (*bun.DB, error) {
	db, err := openDatabase(cfg)
	if err != nil {
		return nil, err
	}
	if err := sqlstore.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
