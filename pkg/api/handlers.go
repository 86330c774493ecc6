package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	qrcode "github.com/skip2/go-qrcode"

	"hikemap/pkg/database"
	"hikemap/pkg/gpx"
	"hikemap/pkg/importer"
	"hikemap/pkg/kml"
	"hikemap/pkg/layers"
	"hikemap/pkg/logger"
	"hikemap/pkg/profile"
)

// maxUploadBytes caps one uploaded document.
const maxUploadBytes = 64 << 20

// Handler wires the storage, importer and profile backend together so HTTP
// routes can stay small and focused on translating requests into calls.
type Handler struct {
	DB       *database.Database
	Importer *importer.Importer
	Profile  *profile.Client
	Limiter  *RateLimiter
	Cache    *ResponseCache
	Logf     func(string, ...any)
}

// NewHandler constructs a Handler with sane defaults.  Logf is optional;
// pass nil if logging is not required.
func NewHandler(db *database.Database, imp *importer.Importer, prof *profile.Client, logf func(string, ...any)) *Handler {
	return &Handler{
		DB:       db,
		Importer: imp,
		Profile:  prof,
		Limiter:  NewRateLimiter(2 * time.Second),
		Cache:    NewResponseCache(15 * time.Second),
		Logf:     logf,
	}
}

// Register attaches API routes to the provided mux.  The method stays tiny
// and declarative: it wires URLs to helpers, nothing more.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api", h.handleOverview)
	mux.HandleFunc("/api/import", h.handleImport)
	mux.HandleFunc("/api/layers", h.handleLayersList)
	mux.HandleFunc("/api/layers/", h.handleLayer)
	mux.HandleFunc("/api/profile", h.handleProfile)
}

// handleOverview publishes machine-readable docs so developers understand
// which endpoints to call.
func (h *Handler) handleOverview(w http.ResponseWriter, r *http.Request) {
	overview := struct {
		Endpoints map[string]any `json:"endpoints"`
	}{
		Endpoints: map[string]any{
			"import": map[string]any{
				"method":      "POST",
				"path":        "/api/import",
				"form":        []string{"file", "url", "name", "adminId", "opacity"},
				"description": "Imports a KML or GPX document from an uploaded file or a remote URL and stores it as a layer.",
			},
			"listLayers": map[string]any{
				"method":      "GET",
				"path":        "/api/layers",
				"description": "Returns stored layer summaries, newest first.",
			},
			"layer": map[string]any{
				"method":      "GET",
				"path":        "/api/layers/{id}",
				"description": "Returns one layer as a GeoJSON feature collection. DELETE removes it.",
			},
			"layerQR": map[string]any{
				"method":      "GET",
				"path":        "/api/layers/{id}/qrcode",
				"description": "Returns a QR code PNG linking to the layer.",
			},
			"profile": map[string]any{
				"method":      "POST",
				"path":        "/api/profile",
				"body":        "{coordinates, sr, offset, distinctPoints, format}",
				"description": "Computes elevation profile statistics along a line. format csv returns the raw backend table.",
			},
		},
	}
	h.respondJSON(w, overview)
}

// handleImport reads an uploaded or remote document, runs the import
// pipeline, and stores the resulting layer.  Detail lines accumulate in the
// buffered logger and surface only when the import fails.
func (h *Handler) handleImport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	permit, err := h.Limiter.Acquire(r.Context(), clientIP(r), RequestHeavy)
	if err != nil {
		http.Error(w, "request cancelled", http.StatusRequestTimeout)
		return
	}
	defer permit.Release()

	importID := fmt.Sprintf("%06d", time.Now().UnixNano()%1000000)
	logger.Begin(importID)

	opt := importer.Options{
		Name:    strings.TrimSpace(r.FormValue("name")),
		AdminID: strings.TrimSpace(r.FormValue("adminId")),
	}
	if v := r.FormValue("opacity"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 && f <= 1 {
			opt.Opacity = f
		}
	}

	var (
		layer  *layers.Layer
		source string
		impErr error
	)
	if remote := strings.TrimSpace(r.FormValue("url")); remote != "" {
		source = remote
		logger.Append(importID, fmt.Sprintf("[%s] fetching %s", importID, remote))
		layer, impErr = h.Importer.ImportURL(r.Context(), remote, opt)
	} else {
		file, header, err := r.FormFile("file")
		if err != nil {
			logger.FlushError(importID, fmt.Errorf("no file or url in request: %w", err))
			http.Error(w, "provide a file upload or a url form field", http.StatusBadRequest)
			return
		}
		defer file.Close()
		source = header.Filename

		content, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
		if err != nil {
			logger.FlushError(importID, fmt.Errorf("read upload: %w", err))
			http.Error(w, "read upload", http.StatusInternalServerError)
			return
		}
		if opt.Name == "" {
			opt.Name = header.Filename
		}
		logger.Append(importID, fmt.Sprintf("[%s] importing %s (%d bytes)", importID, header.Filename, len(content)))
		layer, impErr = h.Importer.Import(content, opt)
	}

	if impErr != nil {
		logger.FlushError(importID, impErr)
		h.respondImportError(w, impErr)
		return
	}

	logger.Append(importID, fmt.Sprintf("[%s] parsed %d features", importID, len(layer.Features)))
	if err := h.DB.SaveLayer(r.Context(), layer); err != nil {
		logger.FlushError(importID, err)
		if errors.Is(err, database.ErrDuplicateLayer) {
			http.Error(w, "layer already imported", http.StatusConflict)
			return
		}
		http.Error(w, "store layer", http.StatusInternalServerError)
		return
	}

	logger.Success(importID, source)
	h.respondJSON(w, struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		Kind     string `json:"kind"`
		Features int    `json:"features"`
	}{
		ID:       layer.ID(),
		Name:     layer.Name,
		Kind:     string(layer.Kind),
		Features: len(layer.Features),
	})
}

// respondImportError maps the import error taxonomy onto status codes so
// clients can show the right message.
func (h *Handler) respondImportError(w http.ResponseWriter, err error) {
	var (
		emptyKML *kml.EmptyKMLError
		emptyGPX *gpx.EmptyGPXError
		oob      *importer.OutOfBoundsError
	)
	switch {
	case errors.Is(err, importer.ErrUnsupportedContent):
		http.Error(w, err.Error(), http.StatusUnsupportedMediaType)
	case errors.As(err, &emptyKML), errors.As(err, &emptyGPX):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.As(err, &oob):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		http.Error(w, "import failed", http.StatusInternalServerError)
	}
}

// handleLayersList exposes the stored layers, cached briefly because the
// map UI polls it.
func (h *Handler) handleLayersList(w http.ResponseWriter, r *http.Request) {
	permit, err := h.Limiter.Acquire(r.Context(), clientIP(r), RequestGeneral)
	if err != nil {
		http.Error(w, "request cancelled", http.StatusRequestTimeout)
		return
	}
	defer permit.Release()

	data, err := h.Cache.Get(r.Context(), "layers", h.loadLayersJSON)
	if errors.Is(err, errCacheDisabled) {
		data, err = h.loadLayersJSON(r.Context())
	}
	if err != nil {
		http.Error(w, "list layers", http.StatusInternalServerError)
		if h.Logf != nil {
			h.Logf("list layers: %v", err)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}

// handleLayer serves one layer: GET returns GeoJSON, DELETE removes it, and
// the /qrcode suffix renders a share code.
func (h *Handler) handleLayer(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/layers/")
	wantQR := false
	if strings.HasSuffix(rest, "/qrcode") {
		wantQR = true
		rest = strings.TrimSuffix(rest, "/qrcode")
	}
	id, err := url.PathUnescape(rest)
	if err != nil || id == "" {
		http.NotFound(w, r)
		return
	}

	switch {
	case wantQR:
		h.serveLayerQR(w, r, id)
	case r.Method == http.MethodDelete:
		if err := h.DB.DeleteLayer(r.Context(), id); err != nil {
			if errors.Is(err, database.ErrLayerNotFound) {
				http.NotFound(w, r)
				return
			}
			http.Error(w, "delete layer", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		h.serveLayerGeoJSON(w, r, id)
	}
}

func (h *Handler) serveLayerGeoJSON(w http.ResponseWriter, r *http.Request, id string) {
	layer, err := h.DB.GetLayer(r.Context(), id)
	if err != nil {
		if errors.Is(err, database.ErrLayerNotFound) {
			http.NotFound(w, r)
			return
		}
		http.Error(w, "load layer", http.StatusInternalServerError)
		return
	}

	fc := geojson.NewFeatureCollection()
	for _, f := range layer.Features {
		fc.Append(f.GeoJSON())
	}

	resp := struct {
		ID       string                     `json:"id"`
		Name     string                     `json:"name"`
		Kind     string                     `json:"kind"`
		Opacity  float64                    `json:"opacity"`
		Visible  bool                       `json:"visible"`
		Extent   [4]float64                 `json:"extent"`
		Features *geojson.FeatureCollection `json:"featureCollection"`
	}{
		ID:      id,
		Name:    layer.Name,
		Kind:    string(layer.Kind),
		Opacity: layer.Opacity,
		Visible: layer.Visible,
		Extent: [4]float64{layer.Extent.Min[0], layer.Extent.Min[1],
			layer.Extent.Max[0], layer.Extent.Max[1]},
		Features: fc,
	}
	h.respondJSON(w, resp)
}

// serveLayerQR renders a QR code pointing at the layer's GeoJSON endpoint,
// so a phone can pull an imported track off a desktop session.
func (h *Handler) serveLayerQR(w http.ResponseWriter, r *http.Request, id string) {
	if _, err := h.DB.GetLayer(r.Context(), id); err != nil {
		if errors.Is(err, database.ErrLayerNotFound) {
			http.NotFound(w, r)
			return
		}
		http.Error(w, "load layer", http.StatusInternalServerError)
		return
	}

	scheme := "https"
	if r.TLS == nil {
		scheme = "http"
	}
	link := fmt.Sprintf("%s://%s/api/layers/%s", scheme, r.Host, url.PathEscape(id))

	png, err := qrcode.Encode(link, qrcode.Medium, 256)
	if err != nil {
		http.Error(w, "render qr code", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}

// profileRequest is the wire form of a profile computation request.
type profileRequest struct {
	Coordinates    [][2]float64 `json:"coordinates"`
	SR             int          `json:"sr"`
	Offset         int          `json:"offset"`
	DistinctPoints bool         `json:"distinctPoints"`
	Format         string       `json:"format"`
}

// handleProfile validates the request, asks the elevation backend for
// samples, and returns the derived statistics together with the points.
func (h *Handler) handleProfile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.Profile == nil {
		http.Error(w, "profile backend disabled", http.StatusServiceUnavailable)
		return
	}

	permit, err := h.Limiter.Acquire(r.Context(), clientIP(r), RequestHeavy)
	if err != nil {
		http.Error(w, "request cancelled", http.StatusRequestTimeout)
		return
	}
	defer permit.Release()

	var req profileRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 8<<20)).Decode(&req); err != nil {
		http.Error(w, "decode request", http.StatusBadRequest)
		return
	}

	line := make(orb.LineString, 0, len(req.Coordinates))
	for _, c := range req.Coordinates {
		line = append(line, orb.Point{c[0], c[1]})
	}
	preq := profile.Request{
		Coordinates:    line,
		SRCode:         req.SR,
		Offset:         req.Offset,
		DistinctPoints: req.DistinctPoints,
		Format:         req.Format,
	}

	if req.Format == profile.FormatCSV {
		csv, err := h.Profile.FetchCSV(r.Context(), preq)
		if err != nil {
			h.respondProfileError(w, err)
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		_, _ = w.Write(csv)
		return
	}

	prof, err := h.Profile.Fetch(r.Context(), preq)
	if err != nil {
		h.respondProfileError(w, err)
		return
	}

	type point struct {
		Dist      float64    `json:"dist"`
		Coord     [2]float64 `json:"coord"`
		Elevation float64    `json:"elevation"`
	}
	points := make([]point, 0, len(prof.Points()))
	for _, p := range prof.Points() {
		points = append(points, point{Dist: p.Dist, Coord: [2]float64{p.Coord[0], p.Coord[1]}, Elevation: p.Elevation})
	}

	resp := struct {
		Points              []point `json:"points"`
		MaxDist             float64 `json:"maxDist"`
		MaxElevation        float64 `json:"maxElevation"`
		MinElevation        float64 `json:"minElevation"`
		ElevationDifference float64 `json:"elevationDifference"`
		TotalAscent         float64 `json:"totalAscent"`
		TotalDescent        float64 `json:"totalDescent"`
		SlopeDistance       float64 `json:"slopeDistance"`
		HikingTime          int     `json:"hikingTime"`
	}{
		Points:              points,
		MaxDist:             prof.MaxDist(),
		MaxElevation:        prof.MaxElevation(),
		MinElevation:        prof.MinElevation(),
		ElevationDifference: prof.ElevationDifference(),
		TotalAscent:         prof.TotalAscent(),
		TotalDescent:        prof.TotalDescent(),
		SlopeDistance:       prof.SlopeDistance(),
		HikingTime:          prof.HikingTime(),
	}
	h.respondJSON(w, resp)
}

func (h *Handler) respondProfileError(w http.ResponseWriter, err error) {
	var invalid *profile.ValidationError
	if errors.As(err, &invalid) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	http.Error(w, "profile backend error", http.StatusBadGateway)
	if h.Logf != nil {
		h.Logf("profile backend: %v", err)
	}
}

// loadLayersJSON materializes the layer listing for the response cache.
func (h *Handler) loadLayersJSON(ctx context.Context) ([]byte, error) {
	summaries, err := h.DB.ListLayers(ctx)
	if err != nil {
		return nil, err
	}
	if summaries == nil {
		summaries = []database.LayerSummary{}
	}
	return json.MarshalIndent(struct {
		Layers []database.LayerSummary `json:"layers"`
	}{Layers: summaries}, "", "  ")
}

func (h *Handler) respondJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}

// clientIP extracts the caller's address for per-IP rate limiting.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
