package database

import (
	"fmt"
	"os"
	"path/filepath"

	"aoi-go/internal/aoi"
	"aoi-go/internal/config"
)

// NewDatabaseFromConfig creates a migrated Database based on the database config type.
// The sqlite file is named after the client so several configs can share a data dir.
func NewDatabaseFromConfig(cfg config.DatabaseConfig, clientID string, clock aoi.Clock) (*SQLiteDatabase, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite database")
		}
		if clientID == "" {
			return nil, fmt.Errorf("client_id required for sqlite database")
		}
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("creating data dir: %w", err)
		}
		return NewSQLiteDatabase(filepath.Join(cfg.DataDir, clientID+".db"), clock)
	case "memory", "":
		return NewSQLiteDatabase(":memory:", clock)
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}
}
