package aoi

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"aoi-go/internal/metrics"
)

// RecentAOILimit is how many AOIs the dashboard lists.
const RecentAOILimit = 5

// Dashboard is the summary view: stats plus the first few AOIs.
type Dashboard struct {
	Stats       Stats
	Recent      []*AOI
	GeneratedAt time.Time
}

// Dashboard refreshes the snapshot and aggregates it. RecentAlerts is left
// nil when any AOI's alert list cannot be fetched.
func (s *AOIService) Dashboard(ctx context.Context) (*Dashboard, error) {
	snapshot, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}

	stats := ComputeStats(snapshot)
	now := s.clock.Now()

	alertsByAOI, err := s.collectAlerts(ctx, snapshot)
	if err != nil {
		s.logger.Warn("recent alert count unavailable", "error", err)
	} else {
		stats = stats.WithRecentAlerts(CountRecentAlerts(alertsByAOI, now.Add(-s.recentWindow)))
	}

	for _, st := range Statuses {
		metrics.AOIs.WithLabelValues(string(st)).Set(0)
	}
	for _, a := range snapshot {
		metrics.AOIs.WithLabelValues(string(a.Status)).Inc()
	}

	recent := snapshot
	if len(recent) > RecentAOILimit {
		recent = recent[:RecentAOILimit]
	}

	return &Dashboard{Stats: stats, Recent: recent, GeneratedAt: now}, nil
}

// collectAlerts lists the alerts of every AOI concurrently, without thumbnails.
func (s *AOIService) collectAlerts(ctx context.Context, snapshot []*AOI) (map[string][]ChangeAlert, error) {
	results := make([][]ChangeAlert, len(snapshot))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxConcurrency)
	for i, a := range snapshot {
		g.Go(func() error {
			alerts, err := s.backend.ListAlerts(gctx, a.ID)
			if err != nil && !errors.Is(err, ErrNotFound) {
				return fmt.Errorf("listing alerts for aoi %s: %w", a.ID, err)
			}
			results[i] = alerts
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[string][]ChangeAlert, len(snapshot))
	for i, a := range snapshot {
		out[a.ID] = results[i]
	}
	return out, nil
}
