package testutil

import (
	"testing"
	"time"

	"aoi-go/internal/aoi"
	"aoi-go/internal/geometry"
)

// PolygonFeature is a small closed polygon near Manaus as a GeoJSON Feature.
const PolygonFeature = `{"type":"Feature","properties":{},"geometry":{"type":"Polygon","coordinates":[[[-60.0,-3.1],[-59.99,-3.1],[-59.99,-3.09],[-60.0,-3.09],[-60.0,-3.1]]]}}`

// TestShape returns a 0.01 x 0.01 degree rectangle at the equator.
func TestShape(t *testing.T) *geometry.Shape {
	t.Helper()
	s, err := geometry.NewRectangle(0, 0, 0.01, 0.01)
	if err != nil {
		t.Fatalf("building test shape: %v", err)
	}
	return s
}

// TestDraft returns a valid draft with creation defaults.
func TestDraft(t *testing.T, name string) aoi.Draft {
	t.Helper()
	return aoi.NewDraft(name, TestShape(t))
}

// TestAOI builds an AOI value for pure-function tests.
func TestAOI(t *testing.T, id, name string, changeType aoi.ChangeType, status aoi.Status) *aoi.AOI {
	t.Helper()
	return &aoi.AOI{
		ID:                  id,
		Name:                name,
		Geometry:            TestShape(t),
		ChangeType:          changeType,
		MonitoringFrequency: aoi.FrequencyWeekly,
		ConfidenceThreshold: 60,
		Status:              status,
		CreatedAt:           time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}
