package app

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"aoi-go/internal/aoi"
	"aoi-go/internal/geometry"
)

// ResourceKindAOI is the only kind accepted by apply.
const ResourceKindAOI = "AOI"

// Resource is one YAML document in an apply file.
type Resource struct {
	APIVersion string           `yaml:"apiVersion"`
	Kind       string           `yaml:"kind"`
	Metadata   ResourceMetadata `yaml:"metadata"`
	Spec       AOISpec          `yaml:"spec"`
}

type ResourceMetadata struct {
	Name string `yaml:"name"`
}

// AOISpec describes an AOI to create. Unset fields take the creation defaults.
// Geometry comes from exactly one of GeoJSON (inline document) or BBox
// (minLon, minLat, maxLon, maxLat).
type AOISpec struct {
	GeoJSON             string    `yaml:"geojson,omitempty" json:"-"`
	BBox                []float64 `yaml:"bbox,omitempty" json:"bbox,omitempty"`
	ChangeType          string    `yaml:"changeType,omitempty" json:"changeType,omitempty"`
	MonitoringFrequency string    `yaml:"monitoringFrequency,omitempty" json:"monitoringFrequency,omitempty"`
	ConfidenceThreshold *int      `yaml:"confidenceThreshold,omitempty" json:"confidenceThreshold,omitempty"`
	EmailAlerts         *bool     `yaml:"emailAlerts,omitempty" json:"emailAlerts,omitempty"`
	InAppNotifications  *bool     `yaml:"inAppNotifications,omitempty" json:"inAppNotifications,omitempty"`
	Description         string    `yaml:"description,omitempty" json:"description,omitempty"`
}

// ParseResources decodes every YAML document in r.
func ParseResources(r io.Reader) ([]Resource, error) {
	dec := yaml.NewDecoder(r)
	var out []Resource
	for {
		var res Resource
		err := dec.Decode(&res)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse YAML document %d: %w", len(out)+1, err)
		}
		out = append(out, res)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no resources found")
	}
	return out, nil
}

// Draft converts the resource into a creation draft. The draft is not validated.
func (r Resource) Draft() (aoi.Draft, error) {
	if r.Kind != ResourceKindAOI {
		return aoi.Draft{}, fmt.Errorf("unsupported resource kind: %q", r.Kind)
	}
	return r.Spec.Draft(r.Metadata.Name)
}

// Draft builds a creation draft named name.
func (s AOISpec) Draft(name string) (aoi.Draft, error) {
	shape, err := s.shape()
	if err != nil {
		return aoi.Draft{}, err
	}

	d := aoi.NewDraft(name, shape)
	if s.ChangeType != "" {
		d.ChangeType = aoi.ChangeType(s.ChangeType)
	}
	if s.MonitoringFrequency != "" {
		d.MonitoringFrequency = aoi.Frequency(s.MonitoringFrequency)
	}
	if s.ConfidenceThreshold != nil {
		d.ConfidenceThreshold = *s.ConfidenceThreshold
	}
	if s.EmailAlerts != nil {
		d.EmailAlerts = *s.EmailAlerts
	}
	if s.InAppNotifications != nil {
		d.InAppNotifications = *s.InAppNotifications
	}
	d.Description = s.Description
	return d, nil
}

func (s AOISpec) shape() (*geometry.Shape, error) {
	hasGeoJSON := strings.TrimSpace(s.GeoJSON) != ""
	switch {
	case hasGeoJSON && len(s.BBox) > 0:
		return nil, fmt.Errorf("geojson and bbox are mutually exclusive")
	case hasGeoJSON:
		shape, err := geometry.Decode([]byte(s.GeoJSON))
		if err != nil {
			return nil, fmt.Errorf("parsing geojson: %w", err)
		}
		return shape, nil
	case len(s.BBox) == 4:
		return geometry.NewRectangle(s.BBox[0], s.BBox[1], s.BBox[2], s.BBox[3])
	case len(s.BBox) > 0:
		return nil, fmt.Errorf("bbox needs 4 numbers, got %d", len(s.BBox))
	}
	return nil, fmt.Errorf("one of geojson or bbox is required")
}

// ApplyResult reports the outcome of one resource.
type ApplyResult struct {
	Name string
	ID   string
	Err  error
}
