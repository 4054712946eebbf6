package backend

import (
	"fmt"

	"aoi-go/internal/aoi"
	"aoi-go/internal/config"
)

// NewBackendFromConfig creates a Backend based on the backend config type.
func NewBackendFromConfig(cfg config.BackendConfig, clock aoi.Clock) (aoi.Backend, error) {
	switch cfg.Type {
	case "http", "":
		b, err := NewHTTPBackend(cfg, clock)
		if err != nil {
			return nil, err
		}
		return b, nil
	case "memory":
		return NewMemoryBackend(nil, clock), nil
	default:
		return nil, fmt.Errorf("unknown backend type: %s", cfg.Type)
	}
}
