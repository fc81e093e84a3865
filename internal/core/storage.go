package core

import (
	"context"
	"fmt"
	"os"

	"termcore/internal/infra/persistence/memory"
	"termcore/internal/infra/persistence/postgres"
	"termcore/internal/infra/persistence/sqlite"
	"termcore/pkg/domain"
)

// Environment variables selecting and configuring the content store.
const (
	EnvStorageDriver = "TERMCORE_STORAGE_DRIVER" // memory | sqlite | postgres
	EnvSQLitePath    = "TERMCORE_SQLITE_PATH"
	EnvPostgresDSN   = "TERMCORE_POSTGRES_DSN"
)

const defaultSQLitePath = "termcore.db"

// OpenPersistentStore builds the content store selected by
// TERMCORE_STORAGE_DRIVER with the default rules installed. Unset defaults
// to memory.
func OpenPersistentStore(ctx context.Context) (domain.PersistentStore, error) {
	rules := DefaultRules()
	driver := os.Getenv(EnvStorageDriver)
	switch driver {
	case "", "memory":
		return memory.NewStore(memory.WithRules(rules)), nil
	case "sqlite":
		path := os.Getenv(EnvSQLitePath)
		if path == "" {
			path = defaultSQLitePath
		}
		return sqlite.Open(ctx, path, memory.WithRules(rules))
	case "postgres":
		dsn := os.Getenv(EnvPostgresDSN)
		if dsn == "" {
			return nil, fmt.Errorf("%s is required for the postgres driver", EnvPostgresDSN)
		}
		return postgres.Open(ctx, dsn, memory.WithRules(rules))
	default:
		return nil, fmt.Errorf("unknown storage driver %q", driver)
	}
}
