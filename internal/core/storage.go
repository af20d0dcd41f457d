package core

import (
	"context"
	"fmt"
	"os"

	"mortgageintake/internal/infra/persistence/memory"
	"mortgageintake/internal/infra/persistence/postgres"
	"mortgageintake/internal/infra/persistence/sqlite"
)

// StorageDriver identifies a concrete persistent storage implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / replays)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

// Environment variables read by OpenPersistentStore.
const (
	EnvStorageDriver = "MORTGAGEINTAKE_STORAGE_DRIVER"
	EnvSQLitePath    = "MORTGAGEINTAKE_SQLITE_PATH"
	EnvPostgresDSN   = "MORTGAGEINTAKE_POSTGRES_DSN"
)

// StorageConfig selects and parameterizes a backend.
type StorageConfig struct {
	Driver      StorageDriver
	SQLitePath  string
	PostgresDSN string
}

// OpenStore opens the backend described by cfg. An empty driver selects sqlite.
func OpenStore(ctx context.Context, cfg StorageConfig, opts ...memory.Option) (PersistentStore, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = StorageSQLite
	}
	switch driver {
	case StorageMemory:
		return memory.NewStore(opts...), nil
	case StorageSQLite:
		ss, err := sqlite.NewStore(cfg.SQLitePath, opts...)
		if err != nil {
			return nil, err
		}
		return ss, nil
	case StoragePostgres:
		ps, err := postgres.NewStore(ctx, cfg.PostgresDSN, opts...)
		if err != nil {
			return nil, err
		}
		return ps, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}

// OpenPersistentStore selects a backend using environment variables.
// Defaults to sqlite when unset.
//
//	MORTGAGEINTAKE_STORAGE_DRIVER: memory|sqlite|postgres (default sqlite)
//	MORTGAGEINTAKE_SQLITE_PATH: path to sqlite file (default ./mortgageintake.db)
//	MORTGAGEINTAKE_POSTGRES_DSN: postgres DSN when driver=postgres
func OpenPersistentStore(ctx context.Context) (PersistentStore, error) {
	return OpenStore(ctx, StorageConfig{
		Driver:      StorageDriver(os.Getenv(EnvStorageDriver)),
		SQLitePath:  os.Getenv(EnvSQLitePath),
		PostgresDSN: os.Getenv(EnvPostgresDSN),
	})
}
