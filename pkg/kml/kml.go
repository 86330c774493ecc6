// Package kml reads KML documents into editable features.
//
// The reader is deliberately tolerant: a malformed placemark is logged and
// skipped, and only a document that yields nothing at all is an error.
// Coordinates are WGS84 in the source and reprojected to the working
// projection before deserialization.
package kml

import (
	"encoding/xml"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"golang.org/x/net/html/charset"

	"hikemap/pkg/features"
	"hikemap/pkg/geodesic"
	"hikemap/pkg/projection"
)

// EmptyKMLError reports a well-formed KML document with nothing to show:
// zero usable features, or features whose combined extent is empty.
type EmptyKMLError struct {
	Reason string
}

func (e *EmptyKMLError) Error() string {
	return fmt.Sprintf("empty KML document: %s", e.Reason)
}

// kmlOpenClose demands an opening <kml> tag with a matching close.  The
// sniff is a pure substring test, independent of XML validity, so a quick
// rejection never needs a full parse.
var kmlOpenClose = regexp.MustCompile(`(?s)<kml[\s>].*</kml\s*>|<kml\s*/>`)

// IsKML reports whether content looks like a KML document.
func IsKML(content []byte) bool {
	return kmlOpenClose.Match(content)
}

// Quirks describes what our reader substitutes when a document omits style
// properties, mirroring the defaults of the KML specification.  The feature
// deserializer reverses both substitutions; see features.ReaderQuirks.
var Quirks = features.ReaderQuirks{
	DefaultTextScale:   0.8,
	PlaceholderIconURL: "https://maps.google.com/mapfiles/kml/pushpin/ylw-pushpin.png",
}

// Feature pairs a normalized editable feature with the geodesic helper that
// line and measure features need for great-circle-correct rendering.
type Feature struct {
	*features.EditableFeature
	Geodesic *geodesic.Line
}

// Document is the result of one KML parse.
type Document struct {
	Name     string
	Features []Feature
	extent   orb.Bound
	hasBound bool

	// Style is the shared feature-styling callback handed to the
	// rendering collaborator together with the features.
	Style func(*Feature) features.RenderStyle
}

// Extent returns the union of all feature extents in working-projection
// coordinates.  ok is false when there is nothing to zoom to; callers must
// not treat that as an error here.
func (d *Document) Extent() (orb.Bound, bool) {
	return d.extent, d.hasBound
}

// Parse reads every placemark of a KML document, deserializes each into an
// editable feature, and computes the combined extent.  A document yielding
// zero features or an empty extent fails with EmptyKMLError.
func Parse(content []byte, deser *features.Deserializer, proj *projection.Projection) (*Document, error) {
	logf := deser.Logf
	if logf == nil {
		logf = func(string, ...any) {}
	}

	dec := xml.NewDecoder(strings.NewReader(string(content)))
	dec.CharsetReader = charset.NewReaderLabel // handle non-UTF-8 encodings

	var root kmlRoot
	if err := dec.Decode(&root); err != nil {
		return nil, fmt.Errorf("decode KML: %w", err)
	}

	shared := root.sharedStyles()
	placemarks := root.placemarks()

	doc := &Document{
		Name:  root.Document.Name,
		Style: func(f *Feature) features.RenderStyle { return f.RenderStyle() },
	}

	serial := 0
	for _, pm := range placemarks {
		for _, raw := range pm.rawFeatures(shared, &serial, logf) {
			wgs84 := raw.Geometry
			raw.Geometry = proj.ReprojectGeometry(wgs84)

			ef, err := deser.Deserialize(raw)
			if err != nil {
				logf("KML: skipping feature: %v", err)
				continue
			}

			f := Feature{EditableFeature: ef}
			if ls, ok := wgs84.(orb.LineString); ok {
				switch ef.FeatureType {
				case features.TypeLinePolygon, features.TypeMeasure:
					f.Geodesic = geodesic.NewLine(ls)
				}
			}

			b := ef.Geometry.Bound()
			if !doc.hasBound {
				doc.extent, doc.hasBound = b, true
			} else {
				doc.extent = doc.extent.Union(b)
			}
			doc.Features = append(doc.Features, f)
		}
	}

	if len(doc.Features) == 0 {
		return nil, &EmptyKMLError{Reason: "no usable features"}
	}
	if !doc.hasBound {
		return nil, &EmptyKMLError{Reason: "empty extent"}
	}
	return doc, nil
}

// ----- raw XML model ---------------------------------------------------------

type kmlRoot struct {
	XMLName    xml.Name       `xml:"kml"`
	Document   kmlContainer   `xml:"Document"`
	Folders    []kmlFolder    `xml:"Folder"`
	Placemarks []kmlPlacemark `xml:"Placemark"`
}

type kmlContainer struct {
	Name       string         `xml:"name"`
	Styles     []kmlStyle     `xml:"Style"`
	StyleMaps  []kmlStyleMap  `xml:"StyleMap"`
	Folders    []kmlFolder    `xml:"Folder"`
	Placemarks []kmlPlacemark `xml:"Placemark"`
}

type kmlFolder struct {
	Name       string         `xml:"name"`
	Folders    []kmlFolder    `xml:"Folder"`
	Placemarks []kmlPlacemark `xml:"Placemark"`
}

type kmlPlacemark struct {
	ID            string            `xml:"id,attr"`
	Name          string            `xml:"name"`
	Description   string            `xml:"description"`
	StyleURL      string            `xml:"styleUrl"`
	Style         *kmlStyle         `xml:"Style"`
	ExtendedData  kmlExtendedData   `xml:"ExtendedData"`
	Point         *kmlPoint         `xml:"Point"`
	LineString    *kmlLineString    `xml:"LineString"`
	Polygon       *kmlPolygon       `xml:"Polygon"`
	MultiGeometry *kmlMultiGeometry `xml:"MultiGeometry"`
}

type kmlExtendedData struct {
	Data []struct {
		Name  string `xml:"name,attr"`
		Value string `xml:"value"`
	} `xml:"Data"`
}

// value returns a named ExtendedData entry, empty when absent.
func (e kmlExtendedData) value(name string) string {
	for _, d := range e.Data {
		if d.Name == name {
			return d.Value
		}
	}
	return ""
}

type kmlPoint struct {
	Coordinates string `xml:"coordinates"`
}

type kmlLineString struct {
	Coordinates string `xml:"coordinates"`
}

type kmlPolygon struct {
	OuterBoundary struct {
		LinearRing struct {
			Coordinates string `xml:"coordinates"`
		} `xml:"LinearRing"`
	} `xml:"outerBoundaryIs"`
	InnerBoundaries []struct {
		LinearRing struct {
			Coordinates string `xml:"coordinates"`
		} `xml:"LinearRing"`
	} `xml:"innerBoundaryIs"`
}

type kmlMultiGeometry struct {
	Points      []kmlPoint      `xml:"Point"`
	LineStrings []kmlLineString `xml:"LineString"`
	Polygons    []kmlPolygon    `xml:"Polygon"`
}

// placemarks flattens the Document/Folder hierarchy in document order.
func (r *kmlRoot) placemarks() []kmlPlacemark {
	var out []kmlPlacemark
	out = append(out, r.Document.Placemarks...)
	var walk func(f kmlFolder)
	walk = func(f kmlFolder) {
		out = append(out, f.Placemarks...)
		for _, sub := range f.Folders {
			walk(sub)
		}
	}
	for _, f := range r.Document.Folders {
		walk(f)
	}
	for _, f := range r.Folders {
		walk(f)
	}
	out = append(out, r.Placemarks...)
	return out
}

// rawFeatures converts one placemark into raw features, one per geometry.
// MultiGeometry parts become siblings with suffixed IDs; anything without a
// geometry is dropped with a log line.
func (pm *kmlPlacemark) rawFeatures(shared map[string]*kmlStyle, serial *int, logf func(string, ...any)) []features.Raw {
	snap := pm.snapshot(shared)
	base := features.Raw{
		Name:        strings.TrimSpace(pm.Name),
		Description: strings.TrimSpace(pm.Description),
		TypeHint:    pm.ExtendedData.value("type"),
	}

	part := 0
	nextID := func() string {
		*serial++
		part++
		if pm.ID == "" {
			return fmt.Sprintf("drawing_feature_%d", *serial)
		}
		// The first geometry keeps the authored id; MultiGeometry siblings
		// get the part index so ids stay unique within the document.
		if part == 1 {
			return pm.ID
		}
		return fmt.Sprintf("%s_%d", pm.ID, part)
	}

	var out []features.Raw
	add := func(g orb.Geometry) {
		raw := base
		raw.ID = nextID()
		raw.Geometry = g
		raw.Style = snap.forGeometry(g)
		out = append(out, raw)
	}

	switch {
	case pm.Point != nil:
		if pt, ok := parsePoint(pm.Point.Coordinates); ok {
			add(pt)
		} else {
			logf("KML: placemark %q has an unparseable point, skipping", pm.Name)
		}
	case pm.LineString != nil:
		if ls := parseLine(pm.LineString.Coordinates); len(ls) >= 2 {
			add(ls)
		} else {
			logf("KML: placemark %q has a degenerate line, skipping", pm.Name)
		}
	case pm.Polygon != nil:
		if poly, ok := pm.Polygon.geometry(); ok {
			add(poly)
		} else {
			logf("KML: placemark %q has a degenerate polygon, skipping", pm.Name)
		}
	case pm.MultiGeometry != nil:
		for _, p := range pm.MultiGeometry.Points {
			if pt, ok := parsePoint(p.Coordinates); ok {
				add(pt)
			}
		}
		for _, l := range pm.MultiGeometry.LineStrings {
			if ls := parseLine(l.Coordinates); len(ls) >= 2 {
				add(ls)
			}
		}
		for _, pg := range pm.MultiGeometry.Polygons {
			if poly, ok := pg.geometry(); ok {
				add(poly)
			}
		}
	default:
		logf("KML: placemark %q carries no geometry, skipping", pm.Name)
	}
	return out
}

// geometry keeps all rings; ring truncation happens later at coordinate
// extraction, not here, so the interchange geometry can round-trip.
func (p *kmlPolygon) geometry() (orb.Polygon, bool) {
	outer := parseLine(p.OuterBoundary.LinearRing.Coordinates)
	if len(outer) < 3 {
		return nil, false
	}
	poly := orb.Polygon{orb.Ring(outer)}
	for _, inner := range p.InnerBoundaries {
		if ring := parseLine(inner.LinearRing.Coordinates); len(ring) >= 3 {
			poly = append(poly, orb.Ring(ring))
		}
	}
	return poly, true
}

// parsePoint reads the first "lon,lat[,alt]" tuple.
func parsePoint(coords string) (orb.Point, bool) {
	fields := strings.Fields(strings.TrimSpace(coords))
	if len(fields) == 0 {
		return orb.Point{}, false
	}
	return parseTuple(fields[0])
}

// parseLine reads whitespace-separated "lon,lat[,alt]" tuples, skipping any
// it cannot parse.
func parseLine(coords string) orb.LineString {
	fields := strings.Fields(strings.TrimSpace(coords))
	out := make(orb.LineString, 0, len(fields))
	for _, f := range fields {
		if pt, ok := parseTuple(f); ok {
			out = append(out, pt)
		}
	}
	return out
}

func parseTuple(s string) (orb.Point, bool) {
	parts := strings.Split(s, ",")
	if len(parts) < 2 {
		return orb.Point{}, false
	}
	lon, err1 := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	lat, err2 := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err1 != nil || err2 != nil {
		return orb.Point{}, false
	}
	return orb.Point{lon, lat}, true
}
