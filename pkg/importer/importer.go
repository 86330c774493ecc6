// Package importer turns raw uploaded or fetched bytes into a layer: sniff
// the format, parse with the matching reader, verify the result is
// displayable in the working projection.
package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"hikemap/pkg/features"
	"hikemap/pkg/gpx"
	"hikemap/pkg/kml"
	"hikemap/pkg/layers"
	"hikemap/pkg/projection"
)

// ErrUnsupportedContent rejects content that is neither KML nor GPX.  It is
// distinct from the per-format empty-document errors so callers can show
// different messages.
var ErrUnsupportedContent = errors.New("unsupported content: not a KML or GPX document")

// OutOfBoundsError reports data whose extent does not intersect the working
// projection's valid domain: the document parsed fine but cannot be shown on
// this map.
type OutOfBoundsError struct {
	EPSG string
}

func (e *OutOfBoundsError) Error() string {
	return fmt.Sprintf("data lies outside the bounds of projection %s", e.EPSG)
}

// maxFetchBytes caps remote layer downloads.
const maxFetchBytes = 64 << 20

// Importer imports documents against one working projection and icon
// catalog.
type Importer struct {
	Deserializer *features.Deserializer
	Projection   *projection.Projection
	HTTP         *http.Client
}

func New(deser *features.Deserializer, proj *projection.Projection) *Importer {
	return &Importer{
		Deserializer: deser,
		Projection:   proj,
		HTTP:         &http.Client{Timeout: 60 * time.Second},
	}
}

// Options carries the per-import metadata that does not come from the
// document itself.
type Options struct {
	SourceURL string
	Name      string // overrides the document's own name when set
	AdminID   string
	Opacity   float64 // 0 means opaque
}

// Import sniffs and parses content into a layer.  Structural failures abort
// the whole import: ErrUnsupportedContent for unknown formats, the reader's
// empty-document error, or OutOfBoundsError when nothing falls inside the
// working projection.
func (im *Importer) Import(content []byte, opt Options) (*layers.Layer, error) {
	layer := &layers.Layer{
		SourceURL: opt.SourceURL,
		Name:      opt.Name,
		AdminID:   opt.AdminID,
		Opacity:   opt.Opacity,
		Visible:   true,
	}
	if layer.Opacity == 0 {
		layer.Opacity = 1
	}

	switch {
	case kml.IsKML(content):
		doc, err := kml.Parse(content, im.Deserializer, im.Projection)
		if err != nil {
			return nil, err
		}
		layer.Kind = layers.KindKML
		if layer.Name == "" {
			layer.Name = doc.Name
		}
		for _, f := range doc.Features {
			layer.Features = append(layer.Features, f.EditableFeature)
		}
		layer.Extent, layer.HasExtent = doc.Extent()

	case gpx.IsGPX(content):
		doc, err := gpx.Parse(content, im.Deserializer, im.Projection)
		if err != nil {
			return nil, err
		}
		layer.Kind = layers.KindGPX
		if layer.Name == "" {
			layer.Name = doc.Name
		}
		for _, f := range doc.Features {
			layer.Features = append(layer.Features, f.EditableFeature)
		}
		layer.Extent, layer.HasExtent = doc.Extent()

	default:
		return nil, ErrUnsupportedContent
	}

	if layer.HasExtent && !im.Projection.Intersects(layer.Extent) {
		return nil, &OutOfBoundsError{EPSG: im.Projection.Identifier()}
	}
	return layer, nil
}

// ImportURL fetches a remote document and imports it.  The URL becomes the
// layer's source, so re-importing the same address dedupes naturally.
func (im *Importer) ImportURL(ctx context.Context, url string, opt Options) (*layers.Layer, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch layer: %w", err)
	}
	resp, err := im.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch layer: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch layer: status %d from %s", resp.StatusCode, url)
	}

	content, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes))
	if err != nil {
		return nil, fmt.Errorf("fetch layer: read body: %w", err)
	}

	opt.SourceURL = url
	return im.Import(content, opt)
}
