package afcd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/golang/geo/s2"
)

// GeoArea is the shape used to describe the DUT location.
type GeoArea int

const (
	GeoEllipse GeoArea = iota
	GeoLinearPolygon
	GeoRadialPolygon
)

func ParseGeoArea(v int) (GeoArea, error) {
	if v < int(GeoEllipse) || v > int(GeoRadialPolygon) {
		return 0, fmt.Errorf("unknown geo area %d", v)
	}
	return GeoArea(v), nil
}

func (g GeoArea) String() string {
	switch g {
	case GeoEllipse:
		return "Ellipse"
	case GeoLinearPolygon:
		return "LinearPolygon"
	case GeoRadialPolygon:
		return "RadialPolygon"
	default:
		return fmt.Sprintf("GeoArea(%d)", int(g))
	}
}

// Point is one "a,b" coordinate pair as sent on the wire.
type Point struct {
	Longitude float64
	Latitude  float64
}

// RadialVertex is one "length,angle" pair of a radial polygon.
type RadialVertex struct {
	Length float64
	Angle  float64
}

type Ellipse struct {
	Center      Point
	MajorAxis   int
	MinorAxis   int
	Orientation int
}

type RadialPolygon struct {
	Center   Point
	Boundary []RadialVertex
}

// Location is the parsed geo-area description of the last configure.
// Sub-shapes other than Mode's are nil.
type Location struct {
	Mode    GeoArea
	Ellipse *Ellipse
	Linear  []Point
	Radial  *RadialPolygon
}

func (l *Location) clone() *Location {
	if l == nil {
		return nil
	}
	out := &Location{Mode: l.Mode}
	if l.Ellipse != nil {
		e := *l.Ellipse
		out.Ellipse = &e
	}
	if l.Linear != nil {
		out.Linear = append([]Point(nil), l.Linear...)
	}
	if l.Radial != nil {
		out.Radial = &RadialPolygon{
			Center:   l.Radial.Center,
			Boundary: append([]RadialVertex(nil), l.Radial.Boundary...),
		}
	}
	return out
}

const minPolygonVertices = 3

// parsePoint reads "longitude,latitude". The reference harness scripts send
// the pair latitude first under the same label, so either order is accepted
// as long as one of them is a valid position.
func parsePoint(raw string) (Point, error) {
	a, b, err := parsePair(raw)
	if err != nil {
		return Point{}, err
	}
	if s2.LatLngFromDegrees(b, a).IsValid() || s2.LatLngFromDegrees(a, b).IsValid() {
		return Point{Longitude: a, Latitude: b}, nil
	}
	return Point{}, fmt.Errorf("coordinate %q out of range", raw)
}

func parsePointList(raw string) ([]Point, error) {
	parts := strings.Fields(raw)
	out := make([]Point, 0, len(parts))
	for _, p := range parts {
		pt, err := parsePoint(p)
		if err != nil {
			return nil, err
		}
		out = append(out, pt)
	}
	if len(out) < minPolygonVertices {
		return nil, fmt.Errorf("polygon needs at least %d vertices, got %d", minPolygonVertices, len(out))
	}
	return out, nil
}

func parseRadialList(raw string) ([]RadialVertex, error) {
	parts := strings.Fields(raw)
	out := make([]RadialVertex, 0, len(parts))
	for _, p := range parts {
		length, angle, err := parsePair(p)
		if err != nil {
			return nil, err
		}
		if length < 0 {
			return nil, fmt.Errorf("radial length %v is negative", length)
		}
		if angle < 0 || angle > 360 {
			return nil, fmt.Errorf("radial angle %v out of range", angle)
		}
		out = append(out, RadialVertex{Length: length, Angle: angle})
	}
	if len(out) < minPolygonVertices {
		return nil, fmt.Errorf("polygon needs at least %d vertices, got %d", minPolygonVertices, len(out))
	}
	return out, nil
}

func parsePair(raw string) (float64, float64, error) {
	first, second, ok := strings.Cut(strings.TrimSpace(raw), ",")
	if !ok {
		return 0, 0, fmt.Errorf("pair %q is not comma separated", raw)
	}
	a, err := strconv.ParseFloat(strings.TrimSpace(first), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("pair %q: %w", raw, err)
	}
	b, err := strconv.ParseFloat(strings.TrimSpace(second), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("pair %q: %w", raw, err)
	}
	return a, b, nil
}
