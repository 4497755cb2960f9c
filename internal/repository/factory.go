package repository

import (
	"fmt"

	"citypulse/internal/config"
	"citypulse/internal/domain"
)

var (
	_ domain.Store = (*SQLiteStore)(nil)
	_ domain.Store = (*PostgresStore)(nil)
	_ domain.Store = (*MemoryStore)(nil)
)

// New builds the backend named by cfg.Type. The store still needs Init.
func New(cfg config.StorageConfig) (domain.Store, error) {
	switch cfg.Type {
	case config.StorageSQLite:
		return NewSQLiteStore(cfg.SQLitePath), nil
	case config.StoragePostgres:
		return NewPostgresStore(cfg.PostgresDSN), nil
	case config.StorageMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
