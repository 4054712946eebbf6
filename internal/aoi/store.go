package aoi

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Store holds the user's AOI collection as a single in-memory snapshot.
// Every List is a fresh fetch; nothing else is cached. The snapshot changes
// only after the backend confirms an operation.
type Store struct {
	backend Backend
	logger  Logger

	mu       sync.RWMutex
	snapshot []*AOI
}

// NewStore creates an empty Store.
func NewStore(backend Backend, logger Logger) *Store {
	return &Store{backend: backend, logger: logger}
}

// List fetches the full collection and replaces the snapshot.
// On failure the previous snapshot is kept and the error is returned.
func (s *Store) List(ctx context.Context) ([]*AOI, error) {
	aois, err := s.backend.ListAOIs(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing aois: %w", err)
	}

	s.mu.Lock()
	s.snapshot = aois
	s.mu.Unlock()

	s.logger.Debug("aoi snapshot refreshed", "count", len(aois))
	return s.Snapshot(), nil
}

// Snapshot returns a copy of the current snapshot.
func (s *Store) Snapshot() []*AOI {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*AOI, len(s.snapshot))
	copy(out, s.snapshot)
	return out
}

// Get fetches one AOI and refreshes it in the snapshot if present.
func (s *Store) Get(ctx context.Context, id string) (*AOI, error) {
	a, err := s.backend.GetAOI(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("getting aoi %s: %w", id, err)
	}
	s.replace(a)
	return a, nil
}

// Create validates the draft locally, then submits it.
// A local rejection never reaches the backend. The snapshot is not modified;
// the next List picks the new AOI up.
func (s *Store) Create(ctx context.Context, d Draft) (*AOI, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}

	a, err := s.backend.CreateAOI(ctx, d)
	if err != nil {
		return nil, fmt.Errorf("creating aoi: %w", err)
	}
	s.logger.Info("aoi created", "aoi_id", a.ID, "name", a.Name)
	return a, nil
}

// Update validates the patch locally, submits it, and replaces the AOI in the snapshot.
func (s *Store) Update(ctx context.Context, id string, p Patch) (*AOI, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	a, err := s.backend.UpdateAOI(ctx, id, p)
	if err != nil {
		return nil, fmt.Errorf("updating aoi %s: %w", id, err)
	}
	s.replace(a)
	s.logger.Info("aoi updated", "aoi_id", id)
	return a, nil
}

// Delete removes an AOI. A 404 also removes it locally, since the AOI is gone
// either way, but the error is still returned so callers can tell the cases
// apart with errors.Is(err, ErrNotFound).
func (s *Store) Delete(ctx context.Context, id string) error {
	err := s.backend.DeleteAOI(ctx, id)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("deleting aoi %s: %w", id, err)
	}

	s.remove(id)

	if err != nil {
		return fmt.Errorf("deleting aoi %s: %w", id, err)
	}
	s.logger.Info("aoi deleted", "aoi_id", id)
	return nil
}

func (s *Store) replace(a *AOI) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, cur := range s.snapshot {
		if cur.ID == a.ID {
			s.snapshot[i] = a
			return
		}
	}
}

func (s *Store) remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.snapshot[:0:0]
	for _, cur := range s.snapshot {
		if cur.ID != id {
			out = append(out, cur)
		}
	}
	s.snapshot = out
}
