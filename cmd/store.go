package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/database/mariadb"
	"github.com/kozaktomas/face-attendance/internal/database/postgres"
)

// openStore connects to the configured identity store backend, runs
// migrations, and returns the repository plus a close function.
// PostgreSQL (DATABASE_URL) is preferred; MariaDB (MARIADB_DSN) is the
// fallback backend.
func openStore(ctx context.Context, cfg *config.Config) (database.IdentityWriter, func(), error) {
	switch {
	case cfg.Database.URL != "":
		pool, err := postgres.NewPool(&cfg.Database)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
		}
		if err := pool.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("migrating PostgreSQL schema: %w", err)
		}
		fmt.Println("Using PostgreSQL backend")
		return postgres.NewIdentityRepository(pool), func() { pool.Close() }, nil

	case cfg.Database.MariaDBDSN != "":
		pool, err := mariadb.NewPool(cfg.Database.MariaDBDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize MariaDB: %w", err)
		}
		if err := pool.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("migrating MariaDB schema: %w", err)
		}
		fmt.Println("Using MariaDB backend")
		return mariadb.NewIdentityRepository(pool), func() { pool.Close() }, nil

	default:
		return nil, nil, errors.New("DATABASE_URL or MARIADB_DSN environment variable is required")
	}
}
