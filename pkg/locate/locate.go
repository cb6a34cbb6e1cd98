// Package locate maps geographic points to the nearest graph vertex so that
// path queries can be made by coordinate instead of vertex index.
package locate

import (
	"errors"
	"fmt"
	"math"

	"github.com/tidwall/rtree"

	"github.com/azybler/pathmatrix/pkg/geo"
	"github.com/azybler/pathmatrix/pkg/graph"
)

// DefaultMaxDistance is the snap radius used when the caller passes zero.
const DefaultMaxDistance = 500.0

// initialRadius is the first search radius in meters. It doubles until a
// candidate is found or the maximum distance is exceeded.
const initialRadius = 25.0

// prefilterSlack covers the error of the equirectangular approximation
// within a snap radius.
const prefilterSlack = 1.01

var (
	// ErrTooFar is returned when no vertex lies within the snap radius.
	ErrTooFar = errors.New("point too far from graph")

	// ErrNoCoordinates is returned by New for graphs without coordinates.
	ErrNoCoordinates = errors.New("graph has no coordinates")
)

// Match is a vertex found near a query point.
type Match struct {
	Vertex uint32
	Dist   float64 // meters from the query point
}

// Locator is a point index over the vertex coordinates of a graph.
type Locator struct {
	tree   rtree.RTreeG[uint32]
	coords []graph.Coord
}

// New indexes every vertex coordinate of g.
func New(g *graph.Graph) (*Locator, error) {
	if !g.HasCoords() {
		return nil, ErrNoCoordinates
	}
	l := &Locator{coords: g.Coords}
	for i, c := range g.Coords {
		pt := [2]float64{c.Lon, c.Lat}
		l.tree.Insert(pt, pt, uint32(i))
	}
	return l, nil
}

// Len returns the number of indexed vertices.
func (l *Locator) Len() int {
	return l.tree.Len()
}

// Coord returns the coordinate of vertex v.
func (l *Locator) Coord(v uint32) graph.Coord {
	return l.coords[v]
}

// Nearest returns the vertex closest to (lat, lon) within maxDist meters.
// Ties go to the lower vertex index.
func (l *Locator) Nearest(lat, lon, maxDist float64) (Match, error) {
	if math.IsNaN(lat) || math.IsNaN(lon) || lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return Match{}, fmt.Errorf("invalid coordinate (%v, %v)", lat, lon)
	}
	if maxDist <= 0 {
		maxDist = DefaultMaxDistance
	}

	for radius := min(initialRadius, maxDist); ; radius *= 2 {
		radius = min(radius, maxDist)
		if m, ok := l.within(lat, lon, radius); ok {
			return m, nil
		}
		if radius >= maxDist {
			return Match{}, fmt.Errorf("%w: (%v, %v) beyond %.0f m", ErrTooFar, lat, lon, maxDist)
		}
	}
}

// within scans the bounding box of the radius. A hit outside the circle is
// ignored: a closer vertex may sit just outside the box.
func (l *Locator) within(lat, lon, radius float64) (Match, bool) {
	best := Match{Dist: math.Inf(1)}
	found := false

	lo, hi := geo.Box(lat, lon, radius)
	l.tree.Search(lo, hi, func(_, _ [2]float64, v uint32) bool {
		c := l.coords[v]
		// Box corners are far outside the circle; drop them cheaply.
		if geo.EquirectangularDist(lat, lon, c.Lat, c.Lon) > radius*prefilterSlack {
			return true
		}
		d := geo.Haversine(lat, lon, c.Lat, c.Lon)
		if d > radius {
			return true
		}
		if !found || d < best.Dist || (d == best.Dist && v < best.Vertex) {
			best = Match{Vertex: v, Dist: d}
			found = true
		}
		return true
	})
	return best, found
}
