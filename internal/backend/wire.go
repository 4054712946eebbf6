package backend

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"aoi-go/internal/aoi"
	"aoi-go/internal/geometry"
)

// timestamp accepts the ISO-8601 forms the service emits. Naive values
// (no zone, as produced by datetime.utcnow().isoformat()) are read as UTC.
type timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

func (t *timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp must be a string: %w", err)
	}
	parsed, err := parseTimestamp(s)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

// wireAOI is an AOI document as served by GET /aois/.
type wireAOI struct {
	ID                  string          `json:"_id"`
	Name                string          `json:"name"`
	GeoJSON             json.RawMessage `json:"geojson"`
	ChangeType          string          `json:"changeType"`
	MonitoringFrequency string          `json:"monitoringFrequency"`
	ConfidenceThreshold int             `json:"confidenceThreshold"`
	EmailAlerts         bool            `json:"emailAlerts"`
	InAppNotifications  bool            `json:"inAppNotifications"`
	Description         *string         `json:"description"`
	Status              string          `json:"status"`
	CreatedAt           *timestamp      `json:"createdAt"`
	LastMonitored       *timestamp      `json:"lastMonitored"`
}

func (w *wireAOI) toAOI() (*aoi.AOI, error) {
	switch {
	case w.ID == "":
		return nil, errors.New("aoi without _id")
	case w.Name == "":
		return nil, fmt.Errorf("aoi %s without name", w.ID)
	case len(w.GeoJSON) == 0 || bytes.Equal(w.GeoJSON, []byte("null")):
		return nil, fmt.Errorf("aoi %s without geojson", w.ID)
	case w.Status == "":
		return nil, fmt.Errorf("aoi %s without status", w.ID)
	}

	shape, err := geometry.Decode(w.GeoJSON)
	if err != nil {
		return nil, fmt.Errorf("aoi %s geojson: %w", w.ID, err)
	}

	a := &aoi.AOI{
		ID:                  w.ID,
		Name:                w.Name,
		Geometry:            shape,
		ChangeType:          aoi.ChangeType(w.ChangeType),
		MonitoringFrequency: aoi.Frequency(w.MonitoringFrequency),
		ConfidenceThreshold: w.ConfidenceThreshold,
		EmailAlerts:         w.EmailAlerts,
		InAppNotifications:  w.InAppNotifications,
		Status:              aoi.Status(w.Status),
	}
	if w.Description != nil {
		a.Description = *w.Description
	}
	if w.CreatedAt != nil {
		a.CreatedAt = w.CreatedAt.Time
	}
	if w.LastMonitored != nil && !w.LastMonitored.IsZero() {
		t := w.LastMonitored.Time
		a.LastMonitored = &t
	}
	return a, nil
}

// wireAlert is a change document from GET /aois/{id}/changes.
// Older documents carry area_sq_meters instead of area_of_change.
type wireAlert struct {
	ID            string     `json:"_id"`
	AOIID         string     `json:"aoi_id"`
	DetectionDate *timestamp `json:"detection_date"`
	AreaOfChange  *float64   `json:"area_of_change"`
	AreaSqMeters  *float64   `json:"area_sq_meters"`
	Status        string     `json:"status"`
}

func (w *wireAlert) toAlert(aoiID string) (aoi.ChangeAlert, error) {
	if w.ID == "" {
		return aoi.ChangeAlert{}, errors.New("alert without _id")
	}
	if w.DetectionDate == nil || w.DetectionDate.IsZero() {
		return aoi.ChangeAlert{}, fmt.Errorf("alert %s without detection_date", w.ID)
	}

	alert := aoi.ChangeAlert{
		ID:            w.ID,
		AOIID:         w.AOIID,
		DetectionDate: w.DetectionDate.Time,
		Status:        w.Status,
	}
	if alert.AOIID == "" {
		alert.AOIID = aoiID
	}
	switch {
	case w.AreaOfChange != nil:
		alert.AreaOfChange = *w.AreaOfChange
	case w.AreaSqMeters != nil:
		alert.AreaOfChange = *w.AreaSqMeters
	}
	return alert, nil
}

// wireThumbnail is the body of GET /aois/{alertId}/thumbnail.
type wireThumbnail struct {
	URL string `json:"url"`
}

// draftBody is the POST /aois/ payload. New AOIs are always submitted active.
type draftBody struct {
	Name                string          `json:"name"`
	GeoJSON             *geometry.Shape `json:"geojson"`
	ChangeType          aoi.ChangeType  `json:"changeType"`
	MonitoringFrequency aoi.Frequency   `json:"monitoringFrequency"`
	ConfidenceThreshold int             `json:"confidenceThreshold"`
	EmailAlerts         bool            `json:"emailAlerts"`
	InAppNotifications  bool            `json:"inAppNotifications"`
	Description         *string         `json:"description"`
	Status              aoi.Status      `json:"status"`
}

func newDraftBody(d aoi.Draft) draftBody {
	body := draftBody{
		Name:                strings.TrimSpace(d.Name),
		GeoJSON:             d.Geometry,
		ChangeType:          d.ChangeType,
		MonitoringFrequency: d.MonitoringFrequency,
		ConfidenceThreshold: d.ConfidenceThreshold,
		EmailAlerts:         d.EmailAlerts,
		InAppNotifications:  d.InAppNotifications,
		Status:              aoi.StatusActive,
	}
	if d.Description != "" {
		desc := d.Description
		body.Description = &desc
	}
	return body
}

// patchBody is the PUT /aois/{id} payload; the service ignores null fields.
type patchBody struct {
	Name                *string         `json:"name,omitempty"`
	ChangeType          *aoi.ChangeType `json:"changeType,omitempty"`
	MonitoringFrequency *aoi.Frequency  `json:"monitoringFrequency,omitempty"`
	ConfidenceThreshold *int            `json:"confidenceThreshold,omitempty"`
	EmailAlerts         *bool           `json:"emailAlerts,omitempty"`
	InAppNotifications  *bool           `json:"inAppNotifications,omitempty"`
	Description         *string         `json:"description,omitempty"`
	Status              *aoi.Status     `json:"status,omitempty"`
}

func newPatchBody(p aoi.Patch) patchBody {
	body := patchBody{
		ChangeType:          p.ChangeType,
		MonitoringFrequency: p.MonitoringFrequency,
		ConfidenceThreshold: p.ConfidenceThreshold,
		EmailAlerts:         p.EmailAlerts,
		InAppNotifications:  p.InAppNotifications,
		Description:         p.Description,
		Status:              p.Status,
	}
	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		body.Name = &name
	}
	return body
}

// errorDetail extracts the "detail" member of an error body. FastAPI sends
// either a string or, for request validation, a list of {loc, msg} objects.
func errorDetail(body []byte) string {
	var envelope struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Detail) == 0 {
		return strings.TrimSpace(string(body))
	}

	var s string
	if err := json.Unmarshal(envelope.Detail, &s); err == nil {
		return s
	}

	var items []struct {
		Loc []any  `json:"loc"`
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(envelope.Detail, &items); err == nil && len(items) > 0 {
		msgs := make([]string, 0, len(items))
		for _, it := range items {
			loc := make([]string, 0, len(it.Loc))
			for _, part := range it.Loc {
				if fmt.Sprint(part) == "body" {
					continue
				}
				loc = append(loc, fmt.Sprint(part))
			}
			if len(loc) > 0 {
				msgs = append(msgs, strings.Join(loc, ".")+": "+it.Msg)
			} else {
				msgs = append(msgs, it.Msg)
			}
		}
		return strings.Join(msgs, "; ")
	}

	return string(envelope.Detail)
}
