package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"aoi-go/internal/aoi"
)

// MemoryBackend is an in-process aoi.Backend for offline use and tests.
// It enforces the same field rules as the service and answers with the same
// typed errors. Safe for concurrent use.
type MemoryBackend struct {
	mu     sync.Mutex
	ids    aoi.IDGenerator
	clock  aoi.Clock
	aois   []*aoi.AOI
	alerts map[string][]aoi.ChangeAlert // aoi id -> alerts, newest first
	images map[string][]byte            // thumbnail url -> bytes
	broken map[string]error             // alertID/kind -> resolve error
}

var _ aoi.Backend = (*MemoryBackend)(nil)

// NewMemoryBackend creates an empty backend. Nil arguments fall back to
// random UUIDs and the real clock.
func NewMemoryBackend(ids aoi.IDGenerator, clock aoi.Clock) *MemoryBackend {
	if ids == nil {
		ids = aoi.UUIDGenerator{}
	}
	if clock == nil {
		clock = aoi.RealClock{}
	}
	return &MemoryBackend{
		ids:    ids,
		clock:  clock,
		alerts: make(map[string][]aoi.ChangeAlert),
		images: make(map[string][]byte),
		broken: make(map[string]error),
	}
}

func thumbnailURL(alertID string, kind aoi.ThumbnailKind) string {
	return "memory://thumbnails/" + alertID + "/" + string(kind)
}

func brokenKey(alertID string, kind aoi.ThumbnailKind) string {
	return alertID + "/" + string(kind)
}

// AddAlert appends an alert to an existing AOI and returns its id.
func (m *MemoryBackend) AddAlert(alert aoi.ChangeAlert) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.find(alert.AOIID) < 0 {
		return "", &aoi.NotFoundError{Op: "add alert", Resource: "aoi", ID: alert.AOIID}
	}
	if alert.ID == "" {
		alert.ID = m.ids.New()
	}
	if alert.Status == "" {
		alert.Status = "new"
	}
	m.alerts[alert.AOIID] = append(m.alerts[alert.AOIID], alert)
	return alert.ID, nil
}

// SetImage stores the bytes served for an alert's thumbnail.
func (m *MemoryBackend) SetImage(alertID string, kind aoi.ThumbnailKind, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.images[thumbnailURL(alertID, kind)] = append([]byte(nil), data...)
}

// FailThumbnail makes ResolveThumbnail return err for one alert image.
func (m *MemoryBackend) FailThumbnail(alertID string, kind aoi.ThumbnailKind, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.broken[brokenKey(alertID, kind)] = err
}

func (m *MemoryBackend) find(id string) int {
	for i, a := range m.aois {
		if a.ID == id {
			return i
		}
	}
	return -1
}

func (m *MemoryBackend) ListAOIs(ctx context.Context) ([]*aoi.AOI, error) {
	if err := ctx.Err(); err != nil {
		return nil, &aoi.NetworkError{Op: "list aois", Err: err}
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*aoi.AOI, len(m.aois))
	for i, a := range m.aois {
		cp := *a
		out[i] = &cp
	}
	return out, nil
}

func (m *MemoryBackend) GetAOI(ctx context.Context, id string) (*aoi.AOI, error) {
	if err := ctx.Err(); err != nil {
		return nil, &aoi.NetworkError{Op: "get aoi", Err: err}
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.find(id)
	if i < 0 {
		return nil, &aoi.NotFoundError{Op: "get aoi", Resource: "aoi", ID: id, Detail: "AOI not found"}
	}
	cp := *m.aois[i]
	return &cp, nil
}

func (m *MemoryBackend) CreateAOI(ctx context.Context, d aoi.Draft) (*aoi.AOI, error) {
	if err := ctx.Err(); err != nil {
		return nil, &aoi.NetworkError{Op: "create aoi", Err: err}
	}
	if err := remote(d.Validate()); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	a := &aoi.AOI{
		ID:                  m.ids.New(),
		Name:                strings.TrimSpace(d.Name),
		Geometry:            d.Geometry,
		ChangeType:          d.ChangeType,
		MonitoringFrequency: d.MonitoringFrequency,
		ConfidenceThreshold: d.ConfidenceThreshold,
		EmailAlerts:         d.EmailAlerts,
		InAppNotifications:  d.InAppNotifications,
		Description:         d.Description,
		Status:              aoi.StatusActive,
		CreatedAt:           m.clock.Now().UTC(),
	}
	m.aois = append(m.aois, a)
	cp := *a
	return &cp, nil
}

func (m *MemoryBackend) UpdateAOI(ctx context.Context, id string, p aoi.Patch) (*aoi.AOI, error) {
	if err := ctx.Err(); err != nil {
		return nil, &aoi.NetworkError{Op: "update aoi", Err: err}
	}
	if err := remote(p.Validate()); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.find(id)
	if i < 0 {
		return nil, &aoi.NotFoundError{Op: "update aoi", Resource: "aoi", ID: id, Detail: "AOI not found"}
	}
	a := m.aois[i]
	if p.Name != nil {
		a.Name = strings.TrimSpace(*p.Name)
	}
	if p.ChangeType != nil {
		a.ChangeType = *p.ChangeType
	}
	if p.MonitoringFrequency != nil {
		a.MonitoringFrequency = *p.MonitoringFrequency
	}
	if p.ConfidenceThreshold != nil {
		a.ConfidenceThreshold = *p.ConfidenceThreshold
	}
	if p.EmailAlerts != nil {
		a.EmailAlerts = *p.EmailAlerts
	}
	if p.InAppNotifications != nil {
		a.InAppNotifications = *p.InAppNotifications
	}
	if p.Description != nil {
		a.Description = *p.Description
	}
	if p.Status != nil {
		a.Status = *p.Status
	}
	cp := *a
	return &cp, nil
}

func (m *MemoryBackend) DeleteAOI(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return &aoi.NetworkError{Op: "delete aoi", Err: err}
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.find(id)
	if i < 0 {
		return &aoi.NotFoundError{Op: "delete aoi", Resource: "aoi", ID: id, Detail: "AOI not found"}
	}
	m.aois = append(m.aois[:i], m.aois[i+1:]...)
	delete(m.alerts, id)
	return nil
}

func (m *MemoryBackend) ListAlerts(ctx context.Context, aoiID string) ([]aoi.ChangeAlert, error) {
	if err := ctx.Err(); err != nil {
		return nil, &aoi.NetworkError{Op: "list alerts", Err: err}
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.find(aoiID) < 0 {
		return nil, &aoi.NotFoundError{Op: "list alerts", Resource: "aoi", ID: aoiID}
	}
	return append([]aoi.ChangeAlert(nil), m.alerts[aoiID]...), nil
}

func (m *MemoryBackend) ResolveThumbnail(ctx context.Context, alertID string, kind aoi.ThumbnailKind) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &aoi.NetworkError{Op: "resolve thumbnail", Err: err}
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if err, ok := m.broken[brokenKey(alertID, kind)]; ok {
		return "", err
	}
	for _, alerts := range m.alerts {
		for _, a := range alerts {
			if a.ID == alertID {
				return thumbnailURL(alertID, kind), nil
			}
		}
	}
	return "", &aoi.NotFoundError{Op: "resolve thumbnail", Resource: "alert", ID: alertID, Detail: "Change not found"}
}

func (m *MemoryBackend) FetchImage(ctx context.Context, url string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, &aoi.NetworkError{Op: "fetch image", Err: err}
	}
	m.mu.Lock()
	data, ok := m.images[url]
	m.mu.Unlock()
	if !ok {
		return nil, &aoi.NotFoundError{Op: "fetch image", Resource: "image", ID: url}
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// remote turns a local validation failure into the 422 the service would send.
func remote(err error) error {
	if err == nil {
		return nil
	}
	var ve *aoi.ValidationError
	if !errors.As(err, &ve) {
		return err
	}
	parts := make([]string, 0, len(ve.Problems))
	for _, p := range ve.Problems {
		parts = append(parts, fmt.Sprintf("%s: %s", p.Field, p.Reason))
	}
	return &aoi.ValidationError{Op: ve.Op, StatusCode: 422, Detail: strings.Join(parts, "; ")}
}
