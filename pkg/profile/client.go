package profile

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// ValidationError reports a profile request rejected before any network
// traffic happened.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid profile request: %s", e.Reason)
}

// Output formats the backend can produce.
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
)

// Request describes one profile computation: the planar path to sample plus
// the backend's sampling options.
type Request struct {
	Coordinates    orb.LineString
	SRCode         int // spatial reference EPSG code of the coordinates
	Offset         int
	DistinctPoints bool
	Format         string // FormatJSON or FormatCSV, defaults to json
}

// validate rejects requests the backend would refuse, before sending them.
func (r *Request) validate() error {
	if len(r.Coordinates) == 0 {
		return &ValidationError{Reason: "empty coordinate list"}
	}
	switch r.Format {
	case "", FormatJSON, FormatCSV:
		return nil
	default:
		return &ValidationError{Reason: fmt.Sprintf("unsupported output format %q", r.Format)}
	}
}

// Client posts profile requests to the elevation backend.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// NewClient builds a client for the backend at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		HTTP:    &http.Client{Timeout: 30 * time.Second},
	}
}

// backend sample wire format.
type sample struct {
	Dist     float64 `json:"dist"`
	Easting  float64 `json:"easting"`
	Northing float64 `json:"northing"`
	Alts     struct {
		Comb float64 `json:"COMB"`
	} `json:"alts"`
}

// Fetch posts the request and returns the sampled profile.  Only the json
// format is accepted here; use FetchCSV for csv output.
func (c *Client) Fetch(ctx context.Context, req Request) (*Profile, error) {
	if req.Format == FormatCSV {
		return nil, &ValidationError{Reason: "csv output has no structured form, use FetchCSV"}
	}
	body, err := c.post(ctx, req, FormatJSON)
	if err != nil {
		return nil, err
	}

	var samples []sample
	if err := json.Unmarshal(body, &samples); err != nil {
		return nil, fmt.Errorf("decode profile response: %w", err)
	}

	points := make([]Point, 0, len(samples))
	for _, s := range samples {
		points = append(points, Point{
			Dist:      s.Dist,
			Coord:     orb.Point{s.Easting, s.Northing},
			Elevation: s.Alts.Comb,
		})
	}
	return New(points), nil
}

// FetchCSV posts the request and returns the backend's raw csv text.
func (c *Client) FetchCSV(ctx context.Context, req Request) ([]byte, error) {
	req.Format = FormatCSV
	return c.post(ctx, req, FormatCSV)
}

func (c *Client) post(ctx context.Context, req Request, format string) ([]byte, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	geom, err := geojson.NewGeometry(req.Coordinates).MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("encode profile geometry: %w", err)
	}

	q := url.Values{}
	if req.SRCode != 0 {
		q.Set("sr", strconv.Itoa(req.SRCode))
	}
	if req.Offset > 0 {
		q.Set("offset", strconv.Itoa(req.Offset))
	}
	if req.DistinctPoints {
		q.Set("distinct_points", "true")
	}

	endpoint := c.BaseURL + "/rest/services/profile." + format
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(geom))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("profile backend: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, fmt.Errorf("profile backend: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("profile backend: status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}
	return body, nil
}
