// Package osm turns an OpenStreetMap PBF extract into a road network graph
// source. Vertices are OSM node IDs, edge weights are great-circle segment
// lengths in meters.
package osm

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"
	"github.com/sirupsen/logrus"

	"github.com/azybler/pathmatrix/pkg/geo"
	"github.com/azybler/pathmatrix/pkg/graph"
)

// minSegmentMeters keeps coincident nodes from producing zero-weight edges.
const minSegmentMeters = 0.001

// carHighways lists highway tag values accessible by car.
var carHighways = map[string]bool{
	"motorway":       true,
	"motorway_link":  true,
	"trunk":          true,
	"trunk_link":     true,
	"primary":        true,
	"primary_link":   true,
	"secondary":      true,
	"secondary_link": true,
	"tertiary":       true,
	"tertiary_link":  true,
	"unclassified":   true,
	"residential":    true,
	"living_street":  true,
	"service":        true,
}

// isCarAccessible returns true if the way is drivable by car.
func isCarAccessible(tags osm.Tags) bool {
	if !carHighways[tags.Find("highway")] {
		return false
	}
	// Pedestrian plazas.
	if tags.Find("area") == "yes" {
		return false
	}
	access := tags.Find("access")
	if access == "no" || access == "private" {
		return false
	}
	return tags.Find("motor_vehicle") != "no"
}

// directionFlags returns (forward, backward) based on highway type and oneway tags.
func directionFlags(tags osm.Tags) (forward, backward bool) {
	forward, backward = true, true

	hw := tags.Find("highway")
	if hw == "motorway" || hw == "motorway_link" || tags.Find("junction") == "roundabout" {
		backward = false
	}

	switch tags.Find("oneway") {
	case "yes", "true", "1":
		forward, backward = true, false
	case "-1", "reverse":
		forward, backward = false, true
	case "no":
		forward, backward = true, true
	case "reversible":
		// Time-dependent.
		forward, backward = false, false
	}
	return forward, backward
}

// way is the part of an OSM way kept between the two passes.
type way struct {
	nodes    []osm.NodeID
	forward  bool
	backward bool
}

// BBox defines a geographic bounding box for filtering.
// If non-zero, only edges with both endpoints inside the box are kept.
type BBox struct {
	MinLat, MaxLat float64
	MinLng, MaxLng float64
}

// IsZero returns true if the bbox is unset.
func (b BBox) IsZero() bool {
	return b.MinLat == 0 && b.MaxLat == 0 && b.MinLng == 0 && b.MaxLng == 0
}

// Contains returns true if the point is inside the bounding box.
func (b BBox) Contains(lat, lng float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lng >= b.MinLng && lng <= b.MaxLng
}

// ParseBBox parses "minLat,minLng,maxLat,maxLng".
func ParseBBox(s string) (BBox, error) {
	var b BBox
	if _, err := fmt.Sscanf(s, "%f,%f,%f,%f", &b.MinLat, &b.MinLng, &b.MaxLat, &b.MaxLng); err != nil {
		return BBox{}, fmt.Errorf("bbox %q (want minLat,minLng,maxLat,maxLng): %w", s, err)
	}
	if b.MinLat > b.MaxLat || b.MinLng > b.MaxLng {
		return BBox{}, fmt.Errorf("bbox %q: minimum exceeds maximum", s)
	}
	return b, nil
}

// ParseOptions configures the OSM parser.
type ParseOptions struct {
	// BBox, if non-zero, drops edges with an endpoint outside the box.
	BBox BBox
	// Directed honours oneway tags and yields a directed source. A path
	// matrix needs an undirected graph, so the default treats every
	// drivable segment as two-way.
	Directed bool
	Logger   logrus.FieldLogger
}

// Parse reads an OSM PBF file and returns the drivable road network. The
// reader is consumed twice (ways, then the nodes they reference), so it
// must implement io.ReadSeeker.
func Parse(ctx context.Context, rs io.ReadSeeker, opt ParseOptions) (*graph.Source, error) {
	logger := opt.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	// Pass 1: ways and the node IDs they reference.
	referenced := make(map[osm.NodeID]struct{})
	var ways []way

	scanner := osmpbf.New(ctx, rs, 1)
	scanner.SkipNodes = true
	scanner.SkipRelations = true
	for scanner.Scan() {
		w, ok := scanner.Object().(*osm.Way)
		if !ok || len(w.Nodes) < 2 || !isCarAccessible(w.Tags) {
			continue
		}
		fwd, bwd := directionFlags(w.Tags)
		if !fwd && !bwd {
			continue
		}
		ids := make([]osm.NodeID, len(w.Nodes))
		for i, wn := range w.Nodes {
			ids[i] = wn.ID
			referenced[wn.ID] = struct{}{}
		}
		ways = append(ways, way{nodes: ids, forward: fwd, backward: bwd})
	}
	if err := scanner.Err(); err != nil {
		scanner.Close()
		return nil, fmt.Errorf("pass 1 (ways): %w", err)
	}
	scanner.Close()
	logger.WithFields(logrus.Fields{"ways": len(ways), "nodes": len(referenced)}).Info("OSM pass 1 complete")

	// Pass 2: coordinates of referenced nodes.
	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek for pass 2: %w", err)
	}
	coords := make(map[osm.NodeID]graph.Coord, len(referenced))

	scanner = osmpbf.New(ctx, rs, 1)
	scanner.SkipWays = true
	scanner.SkipRelations = true
	for scanner.Scan() {
		n, ok := scanner.Object().(*osm.Node)
		if !ok {
			continue
		}
		if _, needed := referenced[n.ID]; needed {
			coords[n.ID] = graph.Coord{Lat: n.Lat, Lon: n.Lon}
		}
	}
	if err := scanner.Err(); err != nil {
		scanner.Close()
		return nil, fmt.Errorf("pass 2 (nodes): %w", err)
	}
	scanner.Close()
	logger.WithField("coordinates", len(coords)).Info("OSM pass 2 complete")

	return buildSource(ways, coords, opt, logger), nil
}

// buildSource turns ways into edges between consecutive nodes.
func buildSource(ways []way, coords map[osm.NodeID]graph.Coord, opt ParseOptions, logger logrus.FieldLogger) *graph.Source {
	src := &graph.Source{Directed: opt.Directed, Coords: make(map[string]graph.Coord)}
	useBBox := !opt.BBox.IsZero()
	var missing, outside int

	for _, w := range ways {
		for i := 0; i+1 < len(w.nodes); i++ {
			from, to := w.nodes[i], w.nodes[i+1]
			a, aok := coords[from]
			b, bok := coords[to]
			if !aok || !bok {
				missing++
				continue
			}
			if useBBox && (!opt.BBox.Contains(a.Lat, a.Lon) || !opt.BBox.Contains(b.Lat, b.Lon)) {
				outside++
				continue
			}

			dist := max(geo.Haversine(a.Lat, a.Lon, b.Lat, b.Lon), minSegmentMeters)
			fromID, toID := nodeLabel(from), nodeLabel(to)
			src.Coords[fromID], src.Coords[toID] = a, b

			switch {
			case !opt.Directed:
				src.Edges = append(src.Edges, graph.RawEdge{From: fromID, To: toID, Weight: dist})
			default:
				if w.forward {
					src.Edges = append(src.Edges, graph.RawEdge{From: fromID, To: toID, Weight: dist})
				}
				if w.backward {
					src.Edges = append(src.Edges, graph.RawEdge{From: toID, To: fromID, Weight: dist})
				}
			}
		}
	}

	if missing > 0 {
		logger.WithField("edges", missing).Warn("Skipped edges with missing node coordinates")
	}
	if outside > 0 {
		logger.WithField("edges", outside).Info("Filtered edges outside bounding box")
	}
	logger.WithField("edges", len(src.Edges)).Info("Built road edges")
	return src
}

func nodeLabel(id osm.NodeID) string {
	return strconv.FormatInt(int64(id), 10)
}
