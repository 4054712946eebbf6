package aoi

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DefaultRecentWindow is how far back an alert still counts as recent.
const DefaultRecentWindow = 7 * 24 * time.Hour

// Options tunes an AOIService.
type Options struct {
	Fetcher FetcherOptions
	// RecentWindow bounds Stats.RecentAlerts. Zero means DefaultRecentWindow.
	RecentWindow time.Duration
	// MaxImageBytes caps a single archived thumbnail. Zero means DefaultMaxImageBytes.
	MaxImageBytes int64
}

// AOIService coordinates the store, the alert fetcher, the archive and the
// local database for the operations the CLI exposes.
type AOIService struct {
	backend   Backend
	store     *Store
	fetcher   *AlertFetcher
	database  Database
	archive   Archive
	encryptor Encryptor
	logger    Logger
	clock     Clock

	recentWindow   time.Duration
	maxConcurrency int
	maxImageBytes  int64
}

// NewAOIService creates an AOIService. archive and encryptor may be nil:
// without an archive, ArchiveAlerts fails; without an encryptor, thumbnails
// are archived in plaintext.
func NewAOIService(backend Backend, database Database, archive Archive, encryptor Encryptor, logger Logger, clock Clock, opts Options) *AOIService {
	window := opts.RecentWindow
	if window <= 0 {
		window = DefaultRecentWindow
	}
	maxImage := opts.MaxImageBytes
	if maxImage <= 0 {
		maxImage = DefaultMaxImageBytes
	}
	fetcher := NewAlertFetcher(backend, logger, opts.Fetcher)
	return &AOIService{
		backend:        backend,
		store:          NewStore(backend, logger),
		fetcher:        fetcher,
		database:       database,
		archive:        archive,
		encryptor:      encryptor,
		logger:         logger,
		clock:          clock,
		recentWindow:   window,
		maxConcurrency: fetcher.maxConcurrency,
		maxImageBytes:  maxImage,
	}
}

// Store exposes the AOI snapshot owner.
func (s *AOIService) Store() *Store { return s.store }

// ListAOIs refreshes the snapshot and returns the filtered view of it.
func (s *AOIService) ListAOIs(ctx context.Context, query, status string) ([]*AOI, error) {
	snapshot, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	return Filter(snapshot, query, status), nil
}

// GetAOI returns one AOI.
func (s *AOIService) GetAOI(ctx context.Context, id string) (*AOI, error) {
	return s.store.Get(ctx, id)
}

// CreateAOI submits a new AOI.
func (s *AOIService) CreateAOI(ctx context.Context, d Draft) (*AOI, error) {
	return s.store.Create(ctx, d)
}

// UpdateAOI applies a partial update.
func (s *AOIService) UpdateAOI(ctx context.Context, id string, p Patch) (*AOI, error) {
	return s.store.Update(ctx, id, p)
}

// DeleteAOI deletes an AOI. If the backend no longer knows it, the AOI counts
// as already deleted: alreadyGone is true and err is nil.
func (s *AOIService) DeleteAOI(ctx context.Context, id string) (alreadyGone bool, err error) {
	err = s.store.Delete(ctx, id)
	if errors.Is(err, ErrNotFound) {
		s.logger.Warn("aoi already deleted", "aoi_id", id)
		return true, nil
	}
	return false, err
}

// GetAlerts returns the resolved alerts of an AOI. Failures are logged and
// degrade to an empty list, so "no alerts" and "fetch failed" look the same
// to the caller.
func (s *AOIService) GetAlerts(ctx context.Context, aoiID string) []ResolvedAlert {
	alerts, err := s.fetcher.Fetch(ctx, aoiID)
	if err != nil {
		s.logger.Warn("alert fetch failed", "aoi_id", aoiID, "error", err)
		return []ResolvedAlert{}
	}
	s.logger.Debug("alerts fetched", "aoi_id", aoiID, "count", len(alerts))
	return alerts
}

// NewAlertView returns a view whose Loads supersede each other.
func (s *AOIService) NewAlertView() *AlertView {
	return NewAlertView(s.fetcher, s.logger)
}

// GetHistory returns the most recent recorded operations, newest first.
func (s *AOIService) GetHistory(limit int) ([]*Operation, error) {
	ops, err := s.database.ListOperations(limit)
	if err != nil {
		return nil, fmt.Errorf("listing operations: %w", err)
	}
	return ops, nil
}
