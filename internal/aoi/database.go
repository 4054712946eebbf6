package aoi

import "time"

// Operation is a recorded CLI command that changed something.
type Operation struct {
	ID         int64
	Operation  string
	Parameters string
	Status     string
	StartedAt  time.Time
	FinishedAt *time.Time
}

// ArchivedThumbnail indexes one thumbnail image saved to the archive.
// Checksum is the SHA-256 of the plaintext image.
type ArchivedThumbnail struct {
	AlertID    string
	Kind       ThumbnailKind
	AOIID      string
	ArchiveKey string
	Checksum   string
	Size       int64
	Encrypted  bool
	ArchivedAt time.Time
}

// Database is the local store for the operation log and the archive index.
// AOIs and alerts are never persisted locally.
type Database interface {
	// Operation log

	// CreateOperation records the start of an operation and assigns its ID.
	CreateOperation(operation string, parameters string) (*Operation, error)

	// FinishOperation stamps the finish time and final status.
	FinishOperation(id int64, status string) error

	// ListOperations returns up to limit operations, newest first.
	ListOperations(limit int) ([]*Operation, error)

	// Archive index

	// RecordArchivedThumbnail inserts or replaces the entry for (AlertID, Kind).
	RecordArchivedThumbnail(t *ArchivedThumbnail) error

	// FindArchivedThumbnail returns nil, nil when nothing is recorded.
	FindArchivedThumbnail(alertID string, kind ThumbnailKind) (*ArchivedThumbnail, error)

	// ListArchivedThumbnails returns the entries of one AOI ordered by alert and kind.
	ListArchivedThumbnails(aoiID string) ([]*ArchivedThumbnail, error)

	// CheckMigrations verifies the schema is at the latest version.
	CheckMigrations() error

	Close() error
}
