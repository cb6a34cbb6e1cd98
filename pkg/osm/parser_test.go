package osm

import (
	"testing"

	"github.com/paulmach/osm"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azybler/pathmatrix/pkg/graph"
)

func TestIsCarAccessible(t *testing.T) {
	tests := []struct {
		name string
		tags osm.Tags
		want bool
	}{
		{"residential road", osm.Tags{{Key: "highway", Value: "residential"}}, true},
		{"motorway", osm.Tags{{Key: "highway", Value: "motorway"}}, true},
		{"footway", osm.Tags{{Key: "highway", Value: "footway"}}, false},
		{"private access", osm.Tags{{Key: "highway", Value: "residential"}, {Key: "access", Value: "private"}}, false},
		{"motor_vehicle=no", osm.Tags{{Key: "highway", Value: "residential"}, {Key: "motor_vehicle", Value: "no"}}, false},
		{"pedestrian plaza", osm.Tags{{Key: "highway", Value: "service"}, {Key: "area", Value: "yes"}}, false},
		{"no highway tag", osm.Tags{{Key: "name", Value: "Some Street"}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isCarAccessible(tt.tags))
		})
	}
}

func TestDirectionFlags(t *testing.T) {
	tests := []struct {
		name     string
		tags     osm.Tags
		fwd, bwd bool
	}{
		{"default bidirectional", osm.Tags{{Key: "highway", Value: "residential"}}, true, true},
		{"motorway implied oneway", osm.Tags{{Key: "highway", Value: "motorway"}}, true, false},
		{"roundabout", osm.Tags{{Key: "highway", Value: "residential"}, {Key: "junction", Value: "roundabout"}}, true, false},
		{"oneway=yes", osm.Tags{{Key: "highway", Value: "primary"}, {Key: "oneway", Value: "yes"}}, true, false},
		{"oneway=-1", osm.Tags{{Key: "highway", Value: "primary"}, {Key: "oneway", Value: "-1"}}, false, true},
		{"oneway=no overrides implied", osm.Tags{{Key: "highway", Value: "motorway"}, {Key: "oneway", Value: "no"}}, true, true},
		{"reversible", osm.Tags{{Key: "highway", Value: "primary"}, {Key: "oneway", Value: "reversible"}}, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fwd, bwd := directionFlags(tt.tags)
			assert.Equal(t, tt.fwd, fwd)
			assert.Equal(t, tt.bwd, bwd)
		})
	}
}

func TestParseBBox(t *testing.T) {
	b, err := ParseBBox("1.15,103.6,1.48,104.1")
	require.NoError(t, err)
	assert.Equal(t, BBox{MinLat: 1.15, MaxLat: 1.48, MinLng: 103.6, MaxLng: 104.1}, b)
	assert.True(t, b.Contains(1.3, 103.8))
	assert.False(t, b.Contains(1.3, 105))

	_, err = ParseBBox("1,2,3")
	assert.Error(t, err)
	_, err = ParseBBox("2,2,1,3")
	assert.Error(t, err)
}

func testWays() ([]way, map[osm.NodeID]graph.Coord) {
	ways := []way{
		{nodes: []osm.NodeID{1, 2, 3}, forward: true, backward: false},
		{nodes: []osm.NodeID{3, 4}, forward: true, backward: true},
		{nodes: []osm.NodeID{4, 99}, forward: true, backward: true}, // 99 has no coordinate
	}
	coords := map[osm.NodeID]graph.Coord{
		1: {Lat: 1.3000, Lon: 103.8000},
		2: {Lat: 1.3010, Lon: 103.8000},
		3: {Lat: 1.3010, Lon: 103.8010},
		4: {Lat: 1.5000, Lon: 103.8010},
	}
	return ways, coords
}

func TestBuildSourceUndirected(t *testing.T) {
	logger, hook := test.NewNullLogger()
	ways, coords := testWays()

	src := buildSource(ways, coords, ParseOptions{}, logger)

	require.Len(t, src.Edges, 3, "oneway segments become single undirected edges")
	assert.False(t, src.Directed)
	assert.Equal(t, "1", src.Edges[0].From)
	assert.Equal(t, "2", src.Edges[0].To)
	assert.InDelta(t, 111.2, src.Edges[0].Weight, 0.5)
	assert.Len(t, src.Coords, 4)
	assert.NotEmpty(t, hook.AllEntries())

	g, err := graph.Build(src, graph.BuildOptions{})
	require.NoError(t, err)
	assert.True(t, g.HasCoords())
	assert.True(t, g.Symmetric())
}

func TestBuildSourceDirectedAndBBox(t *testing.T) {
	logger, _ := test.NewNullLogger()
	ways, coords := testWays()
	opt := ParseOptions{
		Directed: true,
		BBox:     BBox{MinLat: 1.2, MaxLat: 1.4, MinLng: 103.7, MaxLng: 103.9},
	}

	src := buildSource(ways, coords, opt, logger)

	// Node 4 is outside the box; the oneway way keeps one direction.
	require.Len(t, src.Edges, 2)
	assert.True(t, src.Directed)
	assert.Equal(t, graph.RawEdge{From: "2", To: "3", Weight: src.Edges[1].Weight}, src.Edges[1])
	assert.NotContains(t, src.Coords, "4")
}
