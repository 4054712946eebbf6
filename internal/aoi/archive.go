package aoi

import (
	"context"
	"errors"
	"io"
)

// ErrObjectNotFound is returned by Archive.Get for a key that was never stored.
var ErrObjectNotFound = errors.New("archive object not found")

// Archive is durable object storage for downloaded thumbnails.
// Keys are slash-separated, e.g. "thumbnails/<aoi>/<alert>/before".
type Archive interface {
	// Put stores size bytes read from r under key, replacing any existing object.
	Put(ctx context.Context, key string, r io.Reader, size int64) error

	// Get writes the object stored under key to w. A missing key yields
	// an error matching ErrObjectNotFound.
	Get(ctx context.Context, key string, w io.Writer) error

	// Exists reports whether key is stored.
	Exists(ctx context.Context, key string) (bool, error)

	// ValidateSetup verifies the archive is reachable and writable.
	ValidateSetup(ctx context.Context) error
}

// ThumbnailKey returns the archive key for one thumbnail.
func ThumbnailKey(aoiID, alertID string, kind ThumbnailKind) string {
	return "thumbnails/" + aoiID + "/" + alertID + "/" + string(kind)
}
