// Package gpx reads GPX documents into editable features.
//
// GPX carries no styling, so the reader synthesizes the fixed track style
// every import gets: waypoints become annotations, tracks and routes become
// line features.  Coordinates are WGS84 in the source and reprojected to the
// working projection before deserialization.
package gpx

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/paulmach/orb"
	"github.com/tkrajina/gpxgo/gpx"

	"hikemap/pkg/features"
	"hikemap/pkg/geodesic"
	"hikemap/pkg/projection"
)

// EmptyGPXError reports a well-formed GPX document that yields no usable
// features.
type EmptyGPXError struct {
	Reason string
}

func (e *EmptyGPXError) Error() string {
	return fmt.Sprintf("empty GPX document: %s", e.Reason)
}

// gpxOpenClose demands an opening <gpx> tag with a matching close, the same
// substring sniff the KML reader uses.
var gpxOpenClose = regexp.MustCompile(`(?s)<gpx[\s>].*</gpx\s*>|<gpx\s*/>`)

// IsGPX reports whether content looks like a GPX document.
func IsGPX(content []byte) bool {
	return gpxOpenClose.Match(content)
}

// Feature pairs a normalized editable feature with the geodesic helper for
// its track line, nil for waypoints.
type Feature struct {
	*features.EditableFeature
	Geodesic *geodesic.Line
}

// Document is the result of one GPX parse.
type Document struct {
	Name     string
	Features []Feature
	extent   orb.Bound
	hasBound bool

	Style func(*Feature) features.RenderStyle
}

// Extent returns the union of all feature extents in working-projection
// coordinates.
func (d *Document) Extent() (orb.Bound, bool) {
	return d.extent, d.hasBound
}

// Parse reads every waypoint, track and route of a GPX document.  A document
// yielding zero features fails with EmptyGPXError.
func Parse(content []byte, deser *features.Deserializer, proj *projection.Projection) (*Document, error) {
	logf := deser.Logf
	if logf == nil {
		logf = func(string, ...any) {}
	}

	data, err := gpx.ParseBytes(content)
	if err != nil {
		return nil, fmt.Errorf("decode GPX: %w", err)
	}

	doc := &Document{
		Name:  documentName(data),
		Style: func(f *Feature) features.RenderStyle { return f.RenderStyle() },
	}

	serial := 0
	add := func(raw features.Raw, wgs84 orb.Geometry) {
		raw.Geometry = proj.ReprojectGeometry(wgs84)
		raw.Style = &features.Snapshot{}

		ef, err := deser.Deserialize(raw)
		if err != nil {
			logf("GPX: skipping feature: %v", err)
			return
		}

		f := Feature{EditableFeature: ef}
		if ls, ok := wgs84.(orb.LineString); ok && ef.FeatureType == features.TypeLinePolygon {
			f.Geodesic = geodesic.NewLine(ls)
		}

		b := ef.Geometry.Bound()
		if !doc.hasBound {
			doc.extent, doc.hasBound = b, true
		} else {
			doc.extent = doc.extent.Union(b)
		}
		doc.Features = append(doc.Features, f)
	}

	nextID := func() string {
		serial++
		return fmt.Sprintf("gpx_feature_%d", serial)
	}

	for _, wp := range data.Waypoints {
		add(features.Raw{
			ID:          nextID(),
			Name:        strings.TrimSpace(wp.Name),
			Description: strings.TrimSpace(wp.Description),
		}, orb.Point{wp.Longitude, wp.Latitude})
	}
	for _, trk := range data.Tracks {
		for _, seg := range trk.Segments {
			ls := segmentLine(seg.Points)
			if len(ls) < 2 {
				logf("GPX: track %q has a degenerate segment, skipping", trk.Name)
				continue
			}
			add(features.Raw{
				ID:          nextID(),
				Name:        strings.TrimSpace(trk.Name),
				Description: strings.TrimSpace(trk.Description),
			}, ls)
		}
	}
	for _, rte := range data.Routes {
		ls := segmentLine(rte.Points)
		if len(ls) < 2 {
			logf("GPX: route %q has too few points, skipping", rte.Name)
			continue
		}
		add(features.Raw{
			ID:          nextID(),
			Name:        strings.TrimSpace(rte.Name),
			Description: strings.TrimSpace(rte.Description),
		}, ls)
	}

	if len(doc.Features) == 0 {
		return nil, &EmptyGPXError{Reason: "no usable features"}
	}
	return doc, nil
}

// documentName prefers the document metadata name, then the first track's.
func documentName(data *gpx.GPX) string {
	if name := strings.TrimSpace(data.Name); name != "" {
		return name
	}
	for _, trk := range data.Tracks {
		if name := strings.TrimSpace(trk.Name); name != "" {
			return name
		}
	}
	return ""
}

func segmentLine(points []gpx.GPXPoint) orb.LineString {
	ls := make(orb.LineString, 0, len(points))
	for _, p := range points {
		ls = append(ls, orb.Point{p.Longitude, p.Latitude})
	}
	return ls
}
