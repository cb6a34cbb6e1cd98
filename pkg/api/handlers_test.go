package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azybler/pathmatrix/pkg/graph"
	"github.com/azybler/pathmatrix/pkg/locate"
	"github.com/azybler/pathmatrix/pkg/store"
)

// mockPaths serves the line 0-1-2 with unit weights; vertex 3 is isolated.
type mockPaths struct {
	err error
}

func (m *mockPaths) GetPath(i, j uint32) (graph.Path, bool, error) {
	if m.err != nil {
		return graph.Path{}, false, m.err
	}
	if i > 3 || j > 3 {
		return graph.Path{}, false, fmt.Errorf("%w: %d", store.ErrVertexOutOfRange, max(i, j))
	}
	if i == j || i == 3 || j == 3 {
		return graph.Path{}, false, nil
	}
	vs := []uint32{}
	step := 1
	if j < i {
		step = -1
	}
	for v := int(i); ; v += step {
		vs = append(vs, uint32(v))
		if v == int(j) {
			break
		}
	}
	return graph.NewPath(vs, float64(len(vs)-1)), true, nil
}

func (m *mockPaths) NumVertices() uint32 { return 4 }

func (m *mockPaths) PairCount() uint64 { return 6 }

// mockLocator snaps every point to a fixed vertex per latitude sign.
type mockLocator struct {
	err error
}

func (m *mockLocator) Nearest(lat, lon, maxDist float64) (locate.Match, error) {
	if m.err != nil {
		return locate.Match{}, m.err
	}
	if lat < 0 {
		return locate.Match{Vertex: 0, Dist: 12}, nil
	}
	return locate.Match{Vertex: 2, Dist: 3}, nil
}

func (m *mockLocator) Coord(v uint32) graph.Coord {
	return graph.Coord{Lat: float64(v), Lon: float64(v) * 10}
}

var testLabels = []string{"a", "b", "c", "d"}

func get(t *testing.T, h http.HandlerFunc, target string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h(w, httptest.NewRequest(http.MethodGet, target, nil))
	return w
}

func postRoute(t *testing.T, h *Handlers, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/route", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.HandleRoute(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestHandlePath(t *testing.T) {
	h := NewHandlers(&mockPaths{}, testLabels, nil)

	w := get(t, h.HandlePath, "/api/v1/path?from=2&to=0")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var resp PathResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, PathResponse{
		From:     2,
		To:       0,
		Weight:   2,
		Hops:     2,
		Vertices: []uint32{2, 1, 0},
		Labels:   []string{"c", "b", "a"},
	}, resp)
}

func TestHandlePathWithoutLabels(t *testing.T) {
	h := NewHandlers(&mockPaths{}, nil, nil)

	w := get(t, h.HandlePath, "/api/v1/path?from=0&to=1")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "labels")
}

func TestHandlePathErrors(t *testing.T) {
	tests := []struct {
		name   string
		paths  *mockPaths
		target string
		status int
		code   string
		field  string
	}{
		{"missing from", &mockPaths{}, "/api/v1/path?to=1", http.StatusBadRequest, "invalid_vertex", "from"},
		{"negative to", &mockPaths{}, "/api/v1/path?from=1&to=-1", http.StatusBadRequest, "invalid_vertex", "to"},
		{"out of range", &mockPaths{}, "/api/v1/path?from=1&to=9", http.StatusBadRequest, "invalid_vertex", ""},
		{"unreachable", &mockPaths{}, "/api/v1/path?from=0&to=3", http.StatusNotFound, "no_path", ""},
		{"same vertex", &mockPaths{}, "/api/v1/path?from=1&to=1", http.StatusNotFound, "no_path", ""},
		{"closed reader", &mockPaths{err: os.ErrClosed}, "/api/v1/path?from=0&to=1", http.StatusServiceUnavailable, "service_unavailable", ""},
		{"corrupt file", &mockPaths{err: store.ErrCorrupt}, "/api/v1/path?from=0&to=1", http.StatusInternalServerError, "internal_error", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandlers(tt.paths, testLabels, nil)
			w := get(t, h.HandlePath, tt.target)

			assert.Equal(t, tt.status, w.Code)
			resp := decodeError(t, w)
			assert.Equal(t, tt.code, resp.Error)
			assert.Equal(t, tt.field, resp.Field)
		})
	}
}

func TestHandlePathCancelled(t *testing.T) {
	h := NewHandlers(&mockPaths{}, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/path?from=0&to=1", nil).WithContext(ctx)
	w := httptest.NewRecorder()
	h.HandlePath(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "request_timeout", decodeError(t, w).Error)
}

func TestHandleRoute(t *testing.T) {
	h := NewHandlers(&mockPaths{}, testLabels, &mockLocator{})

	w := postRoute(t, h, `{"start":{"lat":-1.3,"lng":103.8},"end":{"lat":1.35,"lng":103.85}}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp RouteResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, SnapJSON{Vertex: 0, DistanceMeters: 12}, resp.Start)
	assert.Equal(t, SnapJSON{Vertex: 2, DistanceMeters: 3}, resp.End)
	assert.Equal(t, []uint32{0, 1, 2}, resp.Path.Vertices)
	assert.Equal(t, []LatLngJSON{{0, 0}, {1, 10}, {2, 20}}, resp.Geometry)
}

func TestHandleRouteErrors(t *testing.T) {
	valid := `{"start":{"lat":1.3,"lng":103.8},"end":{"lat":1.35,"lng":103.85}}`

	tests := []struct {
		name    string
		locator *mockLocator
		body    string
		status  int
		code    string
		field   string
	}{
		{"invalid json", &mockLocator{}, "not json", http.StatusBadRequest, "invalid_request", ""},
		{"latitude out of range", &mockLocator{}, `{"start":{"lat":91,"lng":103.8},"end":{"lat":1.35,"lng":103.85}}`, http.StatusBadRequest, "invalid_coordinates", "start"},
		{"longitude out of range", &mockLocator{}, `{"start":{"lat":1,"lng":103.8},"end":{"lat":1.35,"lng":181}}`, http.StatusBadRequest, "invalid_coordinates", "end"},
		{"too far", &mockLocator{err: locate.ErrTooFar}, valid, http.StatusUnprocessableEntity, "point_too_far", "start"},
		{"same vertex", &mockLocator{}, valid, http.StatusNotFound, "no_path", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandlers(&mockPaths{}, nil, tt.locator)
			w := postRoute(t, h, tt.body)

			assert.Equal(t, tt.status, w.Code)
			resp := decodeError(t, w)
			assert.Equal(t, tt.code, resp.Error)
			assert.Equal(t, tt.field, resp.Field)
		})
	}
}

func TestHandleRouteMissingContentType(t *testing.T) {
	h := NewHandlers(&mockPaths{}, nil, &mockLocator{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/route", strings.NewReader(`{}`))
	w := httptest.NewRecorder()
	h.HandleRoute(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleRouteWithoutCoordinates(t *testing.T) {
	h := NewHandlers(&mockPaths{}, nil, nil)

	w := postRoute(t, h, `{"start":{"lat":1,"lng":1},"end":{"lat":2,"lng":2}}`)
	assert.Equal(t, http.StatusNotImplemented, w.Code)
	assert.Equal(t, "coordinates_unavailable", decodeError(t, w).Error)
}

func TestHandleHealth(t *testing.T) {
	h := NewHandlers(&mockPaths{}, nil, nil)

	w := get(t, h.HandleHealth, "/api/v1/health")
	require.Equal(t, http.StatusOK, w.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestHandleStats(t *testing.T) {
	h := NewHandlers(&mockPaths{}, nil, &mockLocator{})

	w := get(t, h.HandleStats, "/api/v1/stats")
	require.Equal(t, http.StatusOK, w.Code)

	var resp StatsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, StatsResponse{NumVertices: 4, NumPairs: 6, HasCoordinates: true}, resp)
}

func TestLabels(t *testing.T) {
	g := &graph.Graph{Vertices: []graph.Vertex{{ID: "x"}, {ID: "y"}}}
	assert.Equal(t, []string{"x", "y"}, Labels(g))
}

func TestWriteLocateErrorInvalid(t *testing.T) {
	w := httptest.NewRecorder()
	writeLocateError(w, errors.New("invalid coordinate"), "end")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, ErrorResponse{Error: "invalid_coordinates", Field: "end"}, decodeError(t, w))
}
