package core

import (
	"context"
	"fmt"
	"os"

	"plantsim/internal/infra/persistence/badger"
	"plantsim/internal/infra/persistence/memory"
	"plantsim/internal/infra/persistence/postgres"
	"plantsim/internal/infra/persistence/sqlite"
	"plantsim/pkg/domain"
)

// StorageDriver identifies a concrete ledger store implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
	StorageBadger   StorageDriver = "badger"   // embedded key-value directory
)

// StorageConfig selects and locates a ledger store.
type StorageConfig struct {
	Driver      StorageDriver
	SQLitePath  string
	PostgresDSN string
	BadgerDir   string
}

// StorageConfigFromEnv reads the store selection from the environment.
//
//	PLANTSIM_STORAGE_DRIVER: memory|sqlite|postgres|badger (default memory)
//	PLANTSIM_SQLITE_PATH: path to sqlite file (default ./plantsim.db)
//	PLANTSIM_POSTGRES_DSN: postgres DSN when driver=postgres
//	PLANTSIM_BADGER_DIR: badger directory when driver=badger
func StorageConfigFromEnv() StorageConfig {
	return StorageConfig{
		Driver:      StorageDriver(os.Getenv("PLANTSIM_STORAGE_DRIVER")),
		SQLitePath:  os.Getenv("PLANTSIM_SQLITE_PATH"),
		PostgresDSN: os.Getenv("PLANTSIM_POSTGRES_DSN"),
		BadgerDir:   os.Getenv("PLANTSIM_BADGER_DIR"),
	}
}

// OpenLedgerStore opens the store cfg describes. An empty driver selects memory.
func OpenLedgerStore(ctx context.Context, cfg StorageConfig) (domain.LedgerStore, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = StorageMemory
	}
	switch driver {
	case StorageMemory:
		return memory.NewStore(), nil
	case StorageSQLite:
		s, err := sqlite.NewStore(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return s, nil
	case StoragePostgres:
		s, err := postgres.NewStore(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		return s, nil
	case StorageBadger:
		s, err := badger.Open(badger.Config{Path: cfg.BadgerDir})
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("%w: unknown storage driver %s", domain.ErrInvalidArgument, driver)
	}
}
