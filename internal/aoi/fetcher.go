package aoi

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"aoi-go/internal/metrics"
)

// MergePolicy decides what a failed thumbnail does to the rest of the batch.
type MergePolicy string

const (
	// MergeAllOrNothing discards the whole batch if any thumbnail fails.
	// Every returned alert has both images resolved.
	MergeAllOrNothing MergePolicy = "all-or-nothing"
	// MergePerAlert keeps every alert and marks the ones missing an image as Partial.
	MergePerAlert MergePolicy = "per-alert"
)

// ParseMergePolicy parses a config value. Empty means MergeAllOrNothing.
func ParseMergePolicy(s string) (MergePolicy, error) {
	switch MergePolicy(s) {
	case "", MergeAllOrNothing:
		return MergeAllOrNothing, nil
	case MergePerAlert:
		return MergePerAlert, nil
	}
	return "", fmt.Errorf("unknown merge policy %q", s)
}

// DefaultMaxConcurrency bounds in-flight thumbnail requests when unset.
const DefaultMaxConcurrency = 8

// FetcherOptions configures an AlertFetcher.
type FetcherOptions struct {
	MaxConcurrency int
	Policy         MergePolicy
}

// AlertFetcher resolves the alerts of one AOI together with their thumbnails.
type AlertFetcher struct {
	backend        Backend
	logger         Logger
	maxConcurrency int
	policy         MergePolicy
}

// NewAlertFetcher creates an AlertFetcher.
func NewAlertFetcher(backend Backend, logger Logger, opts FetcherOptions) *AlertFetcher {
	limit := opts.MaxConcurrency
	if limit <= 0 {
		limit = DefaultMaxConcurrency
	}
	policy := opts.Policy
	if policy == "" {
		policy = MergeAllOrNothing
	}
	return &AlertFetcher{
		backend:        backend,
		logger:         logger,
		maxConcurrency: limit,
		policy:         policy,
	}
}

// Fetch returns the resolved alerts of aoiID in the order the backend listed them.
//
// A 404 on the alert list means the AOI has no alerts and is not an error.
// Any other failure returns an empty, non-nil slice and the cause.
func (f *AlertFetcher) Fetch(ctx context.Context, aoiID string) ([]ResolvedAlert, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.AlertFetchDuration)

	alerts, err := f.backend.ListAlerts(ctx, aoiID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			metrics.AlertFetchesTotal.WithLabelValues("not_found").Inc()
			return []ResolvedAlert{}, nil
		}
		metrics.AlertFetchesTotal.WithLabelValues("failed").Inc()
		return []ResolvedAlert{}, fmt.Errorf("listing alerts for aoi %s: %w", aoiID, err)
	}

	resolved := make([]ResolvedAlert, len(alerts))
	for i := range alerts {
		resolved[i].ChangeAlert = alerts[i]
	}

	if f.policy == MergePerAlert {
		f.resolvePerAlert(ctx, resolved)
		metrics.AlertFetchesTotal.WithLabelValues("ok").Inc()
		return resolved, nil
	}

	if err := f.resolveAll(ctx, resolved); err != nil {
		metrics.AlertFetchesTotal.WithLabelValues("failed").Inc()
		return []ResolvedAlert{}, fmt.Errorf("resolving thumbnails for aoi %s: %w", aoiID, err)
	}
	metrics.AlertFetchesTotal.WithLabelValues("ok").Inc()
	return resolved, nil
}

// resolveAll fans out 2N thumbnail requests. The first failure cancels the
// rest. Each goroutine writes only its own slot, so results land by index
// regardless of completion order.
func (f *AlertFetcher) resolveAll(ctx context.Context, resolved []ResolvedAlert) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.maxConcurrency)

	for i := range resolved {
		for _, kind := range ThumbnailKinds {
			g.Go(func() error {
				alert := &resolved[i]
				url, err := f.backend.ResolveThumbnail(gctx, alert.ID, kind)
				if err != nil {
					return fmt.Errorf("alert %s %s thumbnail: %w", alert.ID, kind, err)
				}
				alert.setURL(kind, url)
				return nil
			})
		}
	}
	return g.Wait()
}

// resolvePerAlert resolves every thumbnail independently and never fails.
func (f *AlertFetcher) resolvePerAlert(ctx context.Context, resolved []ResolvedAlert) {
	missing := make([][2]bool, len(resolved))

	var g errgroup.Group
	g.SetLimit(f.maxConcurrency)

	for i := range resolved {
		for k, kind := range ThumbnailKinds {
			g.Go(func() error {
				alert := &resolved[i]
				url, err := f.backend.ResolveThumbnail(ctx, alert.ID, kind)
				if err != nil {
					f.logger.Warn("thumbnail unavailable", "alert_id", alert.ID, "kind", string(kind), "error", err)
					missing[i][k] = true
					return nil
				}
				alert.setURL(kind, url)
				return nil
			})
		}
	}
	_ = g.Wait()

	for i := range resolved {
		resolved[i].Partial = missing[i][0] || missing[i][1]
	}
}
