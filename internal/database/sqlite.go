package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"aoi-go/internal/aoi"
	"aoi-go/internal/database/migrations"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteDatabase implements aoi.Database using SQLite.
type SQLiteDatabase struct {
	db    *sql.DB
	clock aoi.Clock
	path  string
}

// NewSQLiteDatabase opens path (a file or ":memory:") and migrates it to the latest schema.
func NewSQLiteDatabase(path string, clock aoi.Clock) (*SQLiteDatabase, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}

	if err := migrations.Up(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}

	return NewSQLiteDatabaseFromDB(db, clock, path), nil
}

// NewSQLiteDatabaseFromDB wraps an existing, already migrated connection.
func NewSQLiteDatabaseFromDB(db *sql.DB, clock aoi.Clock, path string) *SQLiteDatabase {
	if clock == nil {
		clock = aoi.RealClock{}
	}
	return &SQLiteDatabase{db: db, clock: clock, path: path}
}

// OpenConnection opens and configures a SQLite connection.
// An in-memory database lives inside a single connection, so the pool is
// pinned to one connection for ":memory:".
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return db, nil
}

// Operation log

func (s *SQLiteDatabase) CreateOperation(operation string, parameters string) (*aoi.Operation, error) {
	startedAt := s.clock.Now().UTC()
	res, err := s.db.Exec(
		`INSERT INTO operations (operation, parameters, status, started_at) VALUES (?, ?, 'running', ?)`,
		operation, parameters, startedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("creating operation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading operation id: %w", err)
	}
	return &aoi.Operation{
		ID:         id,
		Operation:  operation,
		Parameters: parameters,
		Status:     "running",
		StartedAt:  startedAt,
	}, nil
}

func (s *SQLiteDatabase) FinishOperation(id int64, status string) error {
	res, err := s.db.Exec(
		`UPDATE operations SET status = ?, finished_at = ? WHERE id = ?`,
		status, s.clock.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("finishing operation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finishing operation: no operation with id %d", id)
	}
	return nil
}

func (s *SQLiteDatabase) ListOperations(limit int) ([]*aoi.Operation, error) {
	rows, err := s.db.Query(
		`SELECT id, operation, parameters, status, started_at, finished_at
		 FROM operations ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing operations: %w", err)
	}
	defer rows.Close()

	var ops []*aoi.Operation
	for rows.Next() {
		var (
			op       aoi.Operation
			finished sql.NullTime
		)
		if err := rows.Scan(&op.ID, &op.Operation, &op.Parameters, &op.Status, &op.StartedAt, &finished); err != nil {
			return nil, fmt.Errorf("scanning operation: %w", err)
		}
		if finished.Valid {
			t := finished.Time
			op.FinishedAt = &t
		}
		ops = append(ops, &op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing operations: %w", err)
	}
	return ops, nil
}

// Archive index

func (s *SQLiteDatabase) RecordArchivedThumbnail(t *aoi.ArchivedThumbnail) error {
	archivedAt := t.ArchivedAt
	if archivedAt.IsZero() {
		archivedAt = s.clock.Now()
	}
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO archived_thumbnails
		 (alert_id, kind, aoi_id, archive_key, checksum, size, encrypted, archived_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.AlertID, string(t.Kind), t.AOIID, t.ArchiveKey, t.Checksum, t.Size, t.Encrypted, archivedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("recording archived thumbnail %s/%s: %w", t.AlertID, t.Kind, err)
	}
	return nil
}

func (s *SQLiteDatabase) FindArchivedThumbnail(alertID string, kind aoi.ThumbnailKind) (*aoi.ArchivedThumbnail, error) {
	row := s.db.QueryRow(
		`SELECT alert_id, kind, aoi_id, archive_key, checksum, size, encrypted, archived_at
		 FROM archived_thumbnails WHERE alert_id = ? AND kind = ?`,
		alertID, string(kind),
	)
	t, err := scanArchivedThumbnail(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding archived thumbnail: %w", err)
	}
	return t, nil
}

func (s *SQLiteDatabase) ListArchivedThumbnails(aoiID string) ([]*aoi.ArchivedThumbnail, error) {
	rows, err := s.db.Query(
		`SELECT alert_id, kind, aoi_id, archive_key, checksum, size, encrypted, archived_at
		 FROM archived_thumbnails WHERE aoi_id = ? ORDER BY alert_id, kind DESC`,
		aoiID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing archived thumbnails: %w", err)
	}
	defer rows.Close()

	var out []*aoi.ArchivedThumbnail
	for rows.Next() {
		t, err := scanArchivedThumbnail(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning archived thumbnail: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing archived thumbnails: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanArchivedThumbnail(row scanner) (*aoi.ArchivedThumbnail, error) {
	var (
		t          aoi.ArchivedThumbnail
		kind       string
		archivedAt time.Time
	)
	if err := row.Scan(&t.AlertID, &kind, &t.AOIID, &t.ArchiveKey, &t.Checksum, &t.Size, &t.Encrypted, &archivedAt); err != nil {
		return nil, err
	}
	t.Kind = aoi.ThumbnailKind(kind)
	t.ArchivedAt = archivedAt
	return &t, nil
}

// CheckMigrations verifies the database schema is up-to-date.
func (s *SQLiteDatabase) CheckMigrations() error {
	return migrations.CheckStatus(s.db)
}

// BackupTo writes a consistent copy of the database to destPath using VACUUM INTO.
func (s *SQLiteDatabase) BackupTo(destPath string) error {
	if _, err := s.db.Exec("VACUUM INTO ?", destPath); err != nil {
		return fmt.Errorf("backing up database: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteDatabase) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Compile-time check that SQLiteDatabase implements aoi.Database
var _ aoi.Database = (*SQLiteDatabase)(nil)
