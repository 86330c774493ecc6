package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"hikemap/pkg/profile"
)

// TestHandleProfile runs the profile route against a stub elevation backend
// and checks the statistics come back alongside the points.
func TestHandleProfile(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"dist": 0, "easting": 2600000, "northing": 1200000, "alts": {"COMB": 100}},
			{"dist": 1000, "easting": 2601000, "northing": 1200000, "alts": {"COMB": 150}}
		]`))
	}))
	defer backend.Close()

	h := NewHandler(nil, nil, profile.NewClient(backend.URL), nil)
	mux := http.NewServeMux()
	h.Register(mux)

	body := `{"coordinates": [[2600000, 1200000], [2601000, 1200000]], "sr": 2056}`
	req := httptest.NewRequest(http.MethodPost, "/api/profile", strings.NewReader(body))
	req.RemoteAddr = "192.0.2.10:4242"
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Points              []json.RawMessage `json:"points"`
		MaxDist             float64           `json:"maxDist"`
		TotalAscent         float64           `json:"totalAscent"`
		TotalDescent        float64           `json:"totalDescent"`
		ElevationDifference float64           `json:"elevationDifference"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Points) != 2 {
		t.Errorf("got %d points, want 2", len(resp.Points))
	}
	if resp.MaxDist != 1000 || resp.TotalAscent != 50 || resp.TotalDescent != 0 {
		t.Errorf("statistics = %+v", resp)
	}
	if resp.ElevationDifference != resp.TotalAscent-resp.TotalDescent {
		t.Errorf("elevation difference %v breaks the ascent-descent identity", resp.ElevationDifference)
	}
}

// TestHandleProfileErrors checks the route's own failure modes: wrong
// method, disabled backend, and a request the client refuses to send.
func TestHandleProfileErrors(t *testing.T) {
	h := NewHandler(nil, nil, nil, nil)
	mux := http.NewServeMux()
	h.Register(mux)

	req := httptest.NewRequest(http.MethodGet, "/api/profile", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET status = %d, want 405", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/profile", strings.NewReader(`{}`))
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("disabled backend status = %d, want 503", rec.Code)
	}

	h = NewHandler(nil, nil, profile.NewClient("http://127.0.0.1:1"), nil)
	mux = http.NewServeMux()
	h.Register(mux)

	req = httptest.NewRequest(http.MethodPost, "/api/profile", strings.NewReader(`{"coordinates": []}`))
	req.RemoteAddr = "192.0.2.11:4242"
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty coordinates status = %d, want 400", rec.Code)
	}
}

// TestHandleOverview checks the docs endpoint lists every route.
func TestHandleOverview(t *testing.T) {
	h := NewHandler(nil, nil, nil, nil)
	mux := http.NewServeMux()
	h.Register(mux)

	req := httptest.NewRequest(http.MethodGet, "/api", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp struct {
		Endpoints map[string]any `json:"endpoints"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode overview: %v", err)
	}
	for _, name := range []string{"import", "listLayers", "layer", "layerQR", "profile"} {
		if _, ok := resp.Endpoints[name]; !ok {
			t.Errorf("overview misses %q", name)
		}
	}
}

// TestClientIP checks the rate-limit key survives odd RemoteAddr forms.
func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	if got := clientIP(req); got != "192.0.2.1" {
		t.Errorf("clientIP = %q, want 192.0.2.1", got)
	}
	req.RemoteAddr = "unixsocket"
	if got := clientIP(req); got != "unixsocket" {
		t.Errorf("clientIP = %q, want the raw address", got)
	}
}
