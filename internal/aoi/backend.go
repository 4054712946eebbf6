package aoi

import (
	"context"
	"io"
)

// Backend is the change-detection REST service.
// Implementations classify failures with the error types in errors.go.
type Backend interface {
	ListAOIs(ctx context.Context) ([]*AOI, error)
	GetAOI(ctx context.Context, id string) (*AOI, error)
	CreateAOI(ctx context.Context, d Draft) (*AOI, error)
	UpdateAOI(ctx context.Context, id string, p Patch) (*AOI, error)
	DeleteAOI(ctx context.Context, id string) error

	// ListAlerts returns the alerts of an AOI in backend order (newest first).
	ListAlerts(ctx context.Context, aoiID string) ([]ChangeAlert, error)

	// ResolveThumbnail turns an alert's thumbnail reference into an image URL.
	ResolveThumbnail(ctx context.Context, alertID string, kind ThumbnailKind) (string, error)

	// FetchImage downloads a resolved thumbnail URL. The caller closes the reader.
	FetchImage(ctx context.Context, url string) (io.ReadCloser, error)
}
