package testutil

import (
	"testing"

	"aoi-go/internal/aoi"
	"aoi-go/internal/database"
)

// NewTestDatabase creates a migrated in-memory SQLite database.
// The database is closed when the test completes.
func NewTestDatabase(t *testing.T, clock aoi.Clock) *database.SQLiteDatabase {
	t.Helper()

	db, err := database.NewSQLiteDatabase(":memory:", clock)
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}
