package aoi_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aoi-go/internal/aoi"
	"aoi-go/internal/geometry"
	"aoi-go/internal/testutil"
)

func TestComputeStats(t *testing.T) {
	t.Run("empty snapshot", func(t *testing.T) {
		s := aoi.ComputeStats(nil)
		assert.Zero(t, s.TotalAOIs)
		assert.Zero(t, s.ActiveMonitoring)
		assert.Zero(t, s.CoverageKm2)
		assert.Nil(t, s.RecentAlerts)
	})

	t.Run("counts and coverage", func(t *testing.T) {
		snapshot := []*aoi.AOI{
			testutil.TestAOI(t, "1", "A", aoi.ChangeDeforestation, aoi.StatusActive),
			testutil.TestAOI(t, "2", "B", aoi.ChangeConstruction, aoi.StatusActive),
			testutil.TestAOI(t, "3", "C", aoi.ChangeWaterbody, aoi.StatusPending),
			testutil.TestAOI(t, "4", "D", aoi.ChangeOther, aoi.StatusInactive),
		}
		s := aoi.ComputeStats(snapshot)
		assert.Equal(t, 4, s.TotalAOIs)
		assert.Equal(t, 2, s.ActiveMonitoring)
		// Four 0.01 degree boxes at the equator.
		assert.InDelta(t, 4*1.2364, s.CoverageKm2, 0.05)
	})

	t.Run("active pending active", func(t *testing.T) {
		s := aoi.ComputeStats([]*aoi.AOI{
			testutil.TestAOI(t, "1", "A", aoi.ChangeDeforestation, aoi.StatusActive),
			testutil.TestAOI(t, "2", "B", aoi.ChangeDeforestation, aoi.StatusPending),
			testutil.TestAOI(t, "3", "C", aoi.ChangeDeforestation, aoi.StatusActive),
		})
		assert.Equal(t, 3, s.TotalAOIs)
		assert.Equal(t, 2, s.ActiveMonitoring)
	})

	t.Run("zero geometry contributes no area", func(t *testing.T) {
		a := testutil.TestAOI(t, "1", "A", aoi.ChangeOther, aoi.StatusActive)
		a.Geometry = &geometry.Shape{}
		s := aoi.ComputeStats([]*aoi.AOI{a})
		assert.Zero(t, s.CoverageKm2)
	})

	t.Run("no geometry contributes no area", func(t *testing.T) {
		a := testutil.TestAOI(t, "1", "A", aoi.ChangeOther, aoi.StatusActive)
		a.Geometry = nil
		s := aoi.ComputeStats([]*aoi.AOI{a})
		assert.Equal(t, 1, s.TotalAOIs)
		assert.Zero(t, s.CoverageKm2)
	})
}

func TestCountRecentAlerts(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	since := now.Add(-7 * 24 * time.Hour)

	alerts := map[string][]aoi.ChangeAlert{
		"a": {
			{ID: "1", DetectionDate: now},
			{ID: "2", DetectionDate: since},
			{ID: "3", DetectionDate: since.Add(-time.Second)},
		},
		"b": {
			{ID: "4", DetectionDate: now.Add(-time.Hour)},
		},
		"c": nil,
	}

	assert.Equal(t, 3, aoi.CountRecentAlerts(alerts, since), "the window start is inclusive")
	assert.Zero(t, aoi.CountRecentAlerts(nil, since))
}

func TestStats_WithRecentAlerts(t *testing.T) {
	base := aoi.Stats{TotalAOIs: 1}
	s := base.WithRecentAlerts(0)

	require.NotNil(t, s.RecentAlerts)
	assert.Equal(t, 0, *s.RecentAlerts)
	assert.Nil(t, base.RecentAlerts, "receiver is not modified")
}
