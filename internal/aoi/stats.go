package aoi

import "time"

// Stats are the dashboard summary metrics for an AOI snapshot.
type Stats struct {
	TotalAOIs        int
	ActiveMonitoring int
	// CoverageKm2 is the summed geodesic area of every AOI boundary.
	CoverageKm2 float64
	// RecentAlerts counts alerts detected inside the recent window across all
	// AOIs. Nil means the count is unavailable.
	RecentAlerts *int
}

// ComputeStats derives Stats from a snapshot. It does not set RecentAlerts.
func ComputeStats(snapshot []*AOI) Stats {
	var s Stats
	s.TotalAOIs = len(snapshot)
	for _, a := range snapshot {
		if a.Status == StatusActive {
			s.ActiveMonitoring++
		}
		if !a.Geometry.Empty() {
			s.CoverageKm2 += a.Geometry.AreaSquareMeters() / 1e6
		}
	}
	return s
}

// CountRecentAlerts counts alerts with a detection date at or after since.
func CountRecentAlerts(alertsByAOI map[string][]ChangeAlert, since time.Time) int {
	n := 0
	for _, alerts := range alertsByAOI {
		for _, a := range alerts {
			if !a.DetectionDate.Before(since) {
				n++
			}
		}
	}
	return n
}

// WithRecentAlerts returns a copy of s with RecentAlerts set to n.
func (s Stats) WithRecentAlerts(n int) Stats {
	s.RecentAlerts = &n
	return s
}
