package api

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"mime"
	"net/http"
	"os"
	"strconv"

	"github.com/azybler/pathmatrix/pkg/graph"
	"github.com/azybler/pathmatrix/pkg/locate"
	"github.com/azybler/pathmatrix/pkg/store"
)

// PathSource answers pair queries. *store.Reader implements it.
type PathSource interface {
	GetPath(i, j uint32) (graph.Path, bool, error)
	NumVertices() uint32
	PairCount() uint64
}

// Locator maps coordinates to vertices. *locate.Locator implements it.
type Locator interface {
	Nearest(lat, lon, maxDist float64) (locate.Match, error)
	Coord(v uint32) graph.Coord
}

// Handlers holds the HTTP handlers and their dependencies.
type Handlers struct {
	paths   PathSource
	locator Locator  // nil when the graph has no coordinates
	labels  []string // nil when no graph was loaded
	snap    float64
}

// NewHandlers creates handlers over paths. labels and locator are optional.
func NewHandlers(paths PathSource, labels []string, locator Locator) *Handlers {
	return &Handlers{
		paths:   paths,
		locator: locator,
		labels:  labels,
		snap:    locate.DefaultMaxDistance,
	}
}

// Labels returns the vertex labels of g, indexed by vertex.
func Labels(g *graph.Graph) []string {
	labels := make([]string, len(g.Vertices))
	for i := range g.Vertices {
		labels[i] = g.Vertices[i].ID
	}
	return labels
}

// HandlePath handles GET /api/v1/path?from=I&to=J.
func (h *Handlers) HandlePath(w http.ResponseWriter, r *http.Request) {
	from, err := parseVertex(r.URL.Query().Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_vertex", "from")
		return
	}
	to, err := parseVertex(r.URL.Query().Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_vertex", "to")
		return
	}

	resp, status, code := h.lookup(r.Context(), from, to)
	if status != http.StatusOK {
		writeError(w, status, code, "")
		return
	}
	writeJSON(w, resp)
}

// HandleRoute handles POST /api/v1/route.
func (h *Handlers) HandleRoute(w http.ResponseWriter, r *http.Request) {
	if h.locator == nil {
		writeError(w, http.StatusNotImplemented, "coordinates_unavailable", "")
		return
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "application/json" {
		writeError(w, http.StatusBadRequest, "invalid_request", "")
		return
	}

	var req RouteRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1024)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "")
		return
	}

	if err := validateCoord(req.Start); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_coordinates", "start")
		return
	}
	if err := validateCoord(req.End); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_coordinates", "end")
		return
	}

	start, err := h.locator.Nearest(req.Start.Lat, req.Start.Lng, h.snap)
	if err != nil {
		writeLocateError(w, err, "start")
		return
	}
	end, err := h.locator.Nearest(req.End.Lat, req.End.Lng, h.snap)
	if err != nil {
		writeLocateError(w, err, "end")
		return
	}

	path, status, code := h.lookup(r.Context(), start.Vertex, end.Vertex)
	if status != http.StatusOK {
		writeError(w, status, code, "")
		return
	}

	resp := RouteResponse{
		Start: SnapJSON{Vertex: start.Vertex, DistanceMeters: start.Dist},
		End:   SnapJSON{Vertex: end.Vertex, DistanceMeters: end.Dist},
		Path:  path,
	}
	resp.Geometry = make([]LatLngJSON, len(path.Vertices))
	for i, v := range path.Vertices {
		c := h.locator.Coord(v)
		resp.Geometry[i] = LatLngJSON{Lat: c.Lat, Lng: c.Lon}
	}
	writeJSON(w, resp)
}

// HandleHealth handles GET /api/v1/health.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, HealthResponse{Status: "ok"})
}

// HandleStats handles GET /api/v1/stats.
func (h *Handlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, StatsResponse{
		NumVertices:    h.paths.NumVertices(),
		NumPairs:       h.paths.PairCount(),
		HasCoordinates: h.locator != nil,
	})
}

// lookup fetches the stored path from→to and returns the HTTP status and
// error code to report when it is not 200.
func (h *Handlers) lookup(ctx context.Context, from, to uint32) (PathResponse, int, string) {
	if err := ctx.Err(); err != nil {
		return PathResponse{}, http.StatusServiceUnavailable, "request_timeout"
	}

	p, ok, err := h.paths.GetPath(from, to)
	switch {
	case errors.Is(err, store.ErrVertexOutOfRange):
		return PathResponse{}, http.StatusBadRequest, "invalid_vertex"
	case errors.Is(err, os.ErrClosed):
		return PathResponse{}, http.StatusServiceUnavailable, "service_unavailable"
	case err != nil:
		return PathResponse{}, http.StatusInternalServerError, "internal_error"
	case !ok:
		return PathResponse{}, http.StatusNotFound, "no_path"
	}

	resp := PathResponse{
		From:     from,
		To:       to,
		Weight:   p.Weight,
		Hops:     p.Hops(),
		Vertices: p.Vertices,
	}
	if h.labels != nil {
		resp.Labels = make([]string, len(p.Vertices))
		for i, v := range p.Vertices {
			if int(v) < len(h.labels) {
				resp.Labels[i] = h.labels[v]
			}
		}
	}
	return resp, http.StatusOK, ""
}

func parseVertex(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 10, 32)
	return uint32(v), err
}

func validateCoord(ll LatLngJSON) error {
	if math.IsNaN(ll.Lat) || math.IsNaN(ll.Lng) || math.IsInf(ll.Lat, 0) || math.IsInf(ll.Lng, 0) {
		return errors.New("coordinates must be finite numbers")
	}
	if ll.Lat < -90 || ll.Lat > 90 || ll.Lng < -180 || ll.Lng > 180 {
		return errors.New("coordinates out of range")
	}
	return nil
}

func writeLocateError(w http.ResponseWriter, err error, field string) {
	if errors.Is(err, locate.ErrTooFar) {
		writeError(w, http.StatusUnprocessableEntity, "point_too_far", field)
		return
	}
	writeError(w, http.StatusBadRequest, "invalid_coordinates", field)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, field string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: code, Field: field})
}
