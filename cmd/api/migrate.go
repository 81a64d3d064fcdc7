package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/spec-kit/storefront-api/internal/config"
	"github.com/spec-kit/storefront-api/internal/observability"
	"github.com/spec-kit/storefront-api/internal/persistence"
	"github.com/spec-kit/storefront-api/migrations"
)

func migrateCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply SQL migrations to Postgres and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return migrate(cmd.Context(), dir)
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "read migrations from this directory instead of the embedded set")

	return cmd
}

func migrate(ctx context.Context, dir string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Postgres.DSN == "" {
		return errors.New("POSTGRES_DSN is required to migrate")
	}
	if dir == "" {
		dir = cfg.Postgres.MigrationsDir
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pg.Close()

	return persistence.RunMigrations(ctx, pg.Pool(), migrationSource(dir), logger)
}

// migrationSource prefers an on-disk directory when one is given.
func migrationSource(dir string) fs.FS {
	if dir != "" {
		return os.DirFS(dir)
	}
	return migrations.FS
}
