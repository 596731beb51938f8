package migrate

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"

	"github.com/angelmondragon/bookworm-storefront/pkg/config"
	"github.com/angelmondragon/bookworm-storefront/pkg/logger"
)

//go:embed migrations/*.sql
var embedded embed.FS

// Migrations returns the embedded profile database migrations.
func Migrations() fs.FS {
	sub, err := fs.Sub(embedded, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

func dialectFor(backend string) (goose.Dialect, error) {
	switch backend {
	case config.LocalBackendSQLite:
		return goose.DialectSQLite3, nil
	case config.LocalBackendPostgres:
		return goose.DialectPostgres, nil
	default:
		return "", fmt.Errorf("no migrations for local store backend %q", backend)
	}
}

// Up applies pending migrations to the profile database and returns how many ran.
func Up(ctx context.Context, db *sql.DB, backend string) (int, error) {
	if db == nil {
		return 0, fmt.Errorf("db is required")
	}
	dialect, err := dialectFor(backend)
	if err != nil {
		return 0, err
	}

	provider, err := goose.NewProvider(dialect, db, Migrations())
	if err != nil {
		return 0, fmt.Errorf("goose provider: %w", err)
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return len(results), fmt.Errorf("goose up: %w", err)
	}
	return len(results), nil
}

// Run brings the profile database schema up to date before the store is used.
func Run(ctx context.Context, cfg *config.Config, logg *logger.Logger, db *sql.DB) error {
	if err := ValidateFS(Migrations()); err != nil {
		return err
	}
	applied, err := Up(ctx, db, cfg.LocalStore.Backend)
	if err != nil {
		return err
	}
	if logg != nil {
		ctx = logg.WithFields(ctx, map[string]any{"backend": cfg.LocalStore.Backend, "applied": applied})
		logg.Info(ctx, "profile database migrations completed")
	}
	return nil
}
