package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHaversine(t *testing.T) {
	tests := []struct {
		name       string
		lat1, lon1 float64
		lat2, lon2 float64
		want       float64
		tolerance  float64 // fraction of want
	}{
		{"Raffles Place to Changi Airport", 1.2830, 103.8513, 1.3644, 103.9915, 18_023, 0.01},
		{"London to Paris", 51.5074, -0.1278, 48.8566, 2.3522, 343_500, 0.01},
		{"short distance", 1.3521, 103.8198, 1.3530, 103.8198, 100, 0.05},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Haversine(tt.lat1, tt.lon1, tt.lat2, tt.lon2)
			assert.InEpsilon(t, tt.want, got, tt.tolerance)
		})
	}

	assert.Zero(t, Haversine(1.3521, 103.8198, 1.3521, 103.8198))
}

func TestEquirectangularDist(t *testing.T) {
	h := Haversine(1.3521, 103.8198, 1.3600, 103.8300)
	e := EquirectangularDist(1.3521, 103.8198, 1.3600, 103.8300)
	assert.InEpsilon(t, h, e, 0.005)
}

func TestBox(t *testing.T) {
	lat, lon := 51.5, -0.12
	lo, hi := Box(lat, lon, 1000)

	assert.Less(t, lo[0], lon)
	assert.Greater(t, hi[1], lat)

	// Points 1 km away along each axis are inside the box.
	north := lat + 1000/metersPerDegree
	assert.InDelta(t, 1000, Haversine(lat, lon, north, lon), 1)
	assert.LessOrEqual(t, north, hi[1]+1e-12)
	assert.InDelta(t, 1000, Haversine(lat, lon, lat, lo[0]), 1)
}

func BenchmarkHaversine(b *testing.B) {
	for b.Loop() {
		Haversine(1.3521, 103.8198, 1.2905, 103.8520)
	}
}
