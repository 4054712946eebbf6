package aoi

import (
	"context"
	"sync"
)

// Slot serializes fetches for one logical view (e.g. "the alerts on screen").
// Each Begin issues a new token and cancels the previous fetch's context.
// A result is applied only if its token is still the latest, so a slow
// earlier fetch can never overwrite a faster later one.
type Slot struct {
	mu     sync.Mutex
	latest uint64
	cancel context.CancelFunc
}

// Begin supersedes any in-flight fetch and returns the context and token for a new one.
func (s *Slot) Begin(parent context.Context) (context.Context, uint64) {
	ctx, cancel := context.WithCancel(parent)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
	s.latest++
	s.cancel = cancel
	return ctx, s.latest
}

// Commit runs apply if token is still the latest and reports whether it did.
// apply runs under the slot lock.
func (s *Slot) Commit(token uint64, apply func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if token != s.latest {
		return false
	}
	apply()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	return true
}

// Current reports whether token is the latest issued.
func (s *Slot) Current(token uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return token == s.latest
}

// Stop cancels the in-flight fetch, if any, and invalidates its token.
func (s *Slot) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.latest++
}

// AlertView holds the alerts of whichever AOI was requested last.
type AlertView struct {
	fetcher *AlertFetcher
	logger  Logger
	slot    Slot

	aoiID  string
	alerts []ResolvedAlert
}

// NewAlertView creates an empty view.
func NewAlertView(fetcher *AlertFetcher, logger Logger) *AlertView {
	return &AlertView{fetcher: fetcher, logger: logger}
}

// Load fetches the alerts of aoiID, superseding any Load still running.
// It returns the fetched alerts and whether they were applied to the view.
// Failures degrade to an empty list, which is still applied if current.
func (v *AlertView) Load(ctx context.Context, aoiID string) ([]ResolvedAlert, bool) {
	fctx, token := v.slot.Begin(ctx)

	alerts, err := v.fetcher.Fetch(fctx, aoiID)
	if err != nil {
		if v.slot.Current(token) {
			v.logger.Warn("alert fetch failed", "aoi_id", aoiID, "error", err)
		}
		alerts = []ResolvedAlert{}
	}

	applied := v.slot.Commit(token, func() {
		v.aoiID = aoiID
		v.alerts = alerts
	})
	if !applied {
		v.logger.Debug("discarding superseded alert fetch", "aoi_id", aoiID)
	}
	return alerts, applied
}

// Current returns the AOI id and alerts last applied.
func (v *AlertView) Current() (string, []ResolvedAlert) {
	v.slot.mu.Lock()
	defer v.slot.mu.Unlock()
	return v.aoiID, v.alerts
}

// Stop cancels any in-flight Load.
func (v *AlertView) Stop() { v.slot.Stop() }
