package api

// PathResponse is the JSON response for a stored path.
type PathResponse struct {
	From     uint32   `json:"from"`
	To       uint32   `json:"to"`
	Weight   float64  `json:"weight"`
	Hops     int      `json:"hops"`
	Vertices []uint32 `json:"vertices"`
	Labels   []string `json:"labels,omitempty"`
}

// RouteRequest is the JSON body for POST /api/v1/route.
type RouteRequest struct {
	Start LatLngJSON `json:"start"`
	End   LatLngJSON `json:"end"`
}

// LatLngJSON represents a lat/lng pair in JSON.
type LatLngJSON struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// SnapJSON is a query point matched to a graph vertex.
type SnapJSON struct {
	Vertex         uint32  `json:"vertex"`
	DistanceMeters float64 `json:"distance_meters"`
}

// RouteResponse is the JSON response for a coordinate query.
type RouteResponse struct {
	Start    SnapJSON     `json:"start"`
	End      SnapJSON     `json:"end"`
	Path     PathResponse `json:"path"`
	Geometry []LatLngJSON `json:"geometry"`
}

// ErrorResponse is the JSON response for errors.
type ErrorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// StatsResponse is the JSON response for GET /api/v1/stats.
type StatsResponse struct {
	NumVertices    uint32 `json:"num_vertices"`
	NumPairs       uint64 `json:"num_pairs"`
	HasCoordinates bool   `json:"has_coordinates"`
}

// HealthResponse is the JSON response for GET /api/v1/health.
type HealthResponse struct {
	Status string `json:"status"`
}
