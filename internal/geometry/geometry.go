// Package geometry holds the finalized boundary shape of an AOI.
//
// Shapes travel on the wire as GeoJSON. Decoding accepts either a Feature
// (what the drawing tool produces) or a bare geometry object; encoding always
// produces a Feature so the backend can read geojson.geometry.
package geometry

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"github.com/twpayne/go-geom/encoding/wkt"
)

// SRID is the spatial reference used for every shape (WGS84).
const SRID = 4326

var (
	// ErrEmpty is returned when no geometry is present.
	ErrEmpty = errors.New("geometry is empty")
	// ErrUnsupported is returned for geometry types other than Polygon and Point.
	ErrUnsupported = errors.New("unsupported geometry type")
)

// Shape is a validated Polygon or Point in lon/lat order.
// Rectangles are represented as closed four-corner polygons.
type Shape struct {
	g geom.T
}

// NewShape validates g and wraps it.
func NewShape(g geom.T) (*Shape, error) {
	if g == nil {
		return nil, ErrEmpty
	}
	if err := validate(g); err != nil {
		return nil, err
	}
	switch t := g.(type) {
	case *geom.Polygon:
		t.SetSRID(SRID)
	case *geom.Point:
		t.SetSRID(SRID)
	}
	return &Shape{g: g}, nil
}

// NewRectangle builds a closed polygon from two opposite corners.
func NewRectangle(minLon, minLat, maxLon, maxLat float64) (*Shape, error) {
	if minLon > maxLon {
		minLon, maxLon = maxLon, minLon
	}
	if minLat > maxLat {
		minLat, maxLat = maxLat, minLat
	}
	p, err := geom.NewPolygon(geom.XY).SetCoords([][]geom.Coord{{
		{minLon, minLat}, {maxLon, minLat}, {maxLon, maxLat}, {minLon, maxLat}, {minLon, minLat},
	}})
	if err != nil {
		return nil, fmt.Errorf("building rectangle: %w", err)
	}
	return NewShape(p)
}

// NewPoint builds a point shape.
func NewPoint(lon, lat float64) (*Shape, error) {
	p, err := geom.NewPoint(geom.XY).SetCoords(geom.Coord{lon, lat})
	if err != nil {
		return nil, fmt.Errorf("building point: %w", err)
	}
	return NewShape(p)
}

// Decode parses GeoJSON bytes into a Shape.
func Decode(data []byte) (*Shape, error) {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("reading geojson: %w", err)
	}
	if probe.Type == "" {
		return nil, ErrEmpty
	}

	var g geom.T
	if probe.Type == "Feature" {
		var f geojson.Feature
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("decoding feature: %w", err)
		}
		g = f.Geometry
	} else if err := geojson.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("decoding geometry: %w", err)
	}
	return NewShape(g)
}

// Empty reports whether the shape holds no coordinates. A nil or zero
// Shape is empty.
func (s *Shape) Empty() bool {
	return s == nil || s.g == nil || len(s.g.FlatCoords()) == 0
}

// Geom returns the underlying go-geom value.
func (s *Shape) Geom() geom.T { return s.g }

// Kind returns "Polygon" or "Point".
func (s *Shape) Kind() string {
	switch s.g.(type) {
	case *geom.Polygon:
		return "Polygon"
	case *geom.Point:
		return "Point"
	}
	return ""
}

// MarshalJSON encodes the shape as a GeoJSON Feature.
func (s *Shape) MarshalJSON() ([]byte, error) {
	f := &geojson.Feature{
		Geometry:   s.g,
		Properties: map[string]interface{}{},
	}
	return f.MarshalJSON()
}

// UnmarshalJSON accepts a Feature or a bare geometry.
func (s *Shape) UnmarshalJSON(data []byte) error {
	decoded, err := Decode(data)
	if err != nil {
		return err
	}
	s.g = decoded.g
	return nil
}

// WKT returns the Well-Known Text form, e.g. "POLYGON ((...))".
func (s *Shape) WKT() (string, error) {
	out, err := wkt.Marshal(s.g)
	if err != nil {
		return "", fmt.Errorf("marshaling wkt: %w", err)
	}
	return out, nil
}

// AreaSquareMeters returns the geodesic area of the shape. Points have no area.
func (s *Shape) AreaSquareMeters() float64 {
	p, ok := s.g.(*geom.Polygon)
	if !ok {
		return 0
	}
	return math.Abs(geo.Area(toOrbPolygon(p)))
}

// Bound returns the lon/lat bounding box.
func (s *Shape) Bound() orb.Bound {
	switch g := s.g.(type) {
	case *geom.Polygon:
		return toOrbPolygon(g).Bound()
	case *geom.Point:
		return orb.Point{g.X(), g.Y()}.Bound()
	}
	return orb.Bound{}
}

func toOrbPolygon(p *geom.Polygon) orb.Polygon {
	out := make(orb.Polygon, 0, p.NumLinearRings())
	for i := 0; i < p.NumLinearRings(); i++ {
		coords := p.LinearRing(i).Coords()
		ring := make(orb.Ring, len(coords))
		for j, c := range coords {
			ring[j] = orb.Point{c.X(), c.Y()}
		}
		out = append(out, ring)
	}
	return out
}

func validate(g geom.T) error {
	switch t := g.(type) {
	case *geom.Point:
		if t.Empty() {
			return ErrEmpty
		}
		return checkCoord(t.Coords())
	case *geom.Polygon:
		if t.NumLinearRings() == 0 {
			return ErrEmpty
		}
		for i := 0; i < t.NumLinearRings(); i++ {
			coords := t.LinearRing(i).Coords()
			if len(coords) < 4 {
				return fmt.Errorf("ring %d has %d positions, need at least 4", i, len(coords))
			}
			first, last := coords[0], coords[len(coords)-1]
			if first.X() != last.X() || first.Y() != last.Y() {
				return fmt.Errorf("ring %d is not closed", i)
			}
			for _, c := range coords {
				if err := checkCoord(c); err != nil {
					return err
				}
			}
		}
		return nil
	default:
		return fmt.Errorf("%w: %T", ErrUnsupported, g)
	}
}

func checkCoord(c geom.Coord) error {
	lon, lat := c.X(), c.Y()
	if math.IsNaN(lon) || math.IsNaN(lat) || lon < -180 || lon > 180 || lat < -90 || lat > 90 {
		return fmt.Errorf("position (%g, %g) is outside lon/lat range", lon, lat)
	}
	return nil
}
