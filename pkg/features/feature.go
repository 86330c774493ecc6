// Package features holds the normalized model for one imported, drawable map
// feature and the logic that builds it from raw document features: type
// classification, style normalization, and icon resolution.
package features

import (
	"fmt"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"hikemap/pkg/icons"
)

// Type is the semantic kind of a drawable feature.  Every parsed feature
// resolves to exactly one; MARKER is the last-resort fallback.
type Type string

const (
	TypeMarker      Type = "MARKER"
	TypeAnnotation  Type = "ANNOTATION"
	TypeLinePolygon Type = "LINEPOLYGON"
	TypeMeasure     Type = "MEASURE"
)

// TypeFromString resolves an explicit type property, case-insensitive.
func TypeFromString(s string) (Type, bool) {
	switch Type(strings.ToUpper(strings.TrimSpace(s))) {
	case TypeMarker:
		return TypeMarker, true
	case TypeAnnotation:
		return TypeAnnotation, true
	case TypeLinePolygon:
		return TypeLinePolygon, true
	case TypeMeasure:
		return TypeMeasure, true
	}
	return "", false
}

// Color is one entry of the drawing palette.
type Color struct {
	Name    string
	R, G, B uint8
}

// Hex returns the usual #rrggbb spelling.
func (c Color) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// The drawing palette.  Red doubles as the default whenever a style cannot
// be resolved to anything better.
var (
	Black  = Color{Name: "black"}
	Blue   = Color{Name: "blue", B: 255}
	Gray   = Color{Name: "gray", R: 128, G: 128, B: 128}
	Gold   = Color{Name: "gold", R: 255, G: 215}
	Green  = Color{Name: "green", G: 128}
	Orange = Color{Name: "orange", R: 255, G: 165}
	Red    = Color{Name: "red", R: 255}
	White  = Color{Name: "white", R: 255, G: 255, B: 255}
	Yellow = Color{Name: "yellow", R: 255, G: 255}
)

var palette = []Color{Black, Blue, Gray, Gold, Green, Orange, Red, White, Yellow}

// DefaultColor is the fixed fallback fill and text color.
var DefaultColor = Red

// ColorFromRGB maps raw channels onto the nearest palette entry so arbitrary
// document colors still land on a drawable value.  Exact matches win.
func ColorFromRGB(c icons.RGB) Color {
	best := DefaultColor
	bestDist := -1
	for _, p := range palette {
		dr, dg, db := int(p.R)-int(c.R), int(p.G)-int(c.G), int(p.B)-int(c.B)
		dist := dr*dr + dg*dg + db*db
		if dist == 0 {
			return p
		}
		if bestDist < 0 || dist < bestDist {
			best, bestDist = p, dist
		}
	}
	return best
}

// ColorFromName resolves a palette entry by its name.
func ColorFromName(name string) (Color, bool) {
	for _, p := range palette {
		if p.Name == name {
			return p, true
		}
	}
	return Color{}, false
}

// TextSize is a named label scale.
type TextSize struct {
	Label string
	Scale float64
}

var (
	TextSmall  = TextSize{Label: "small", Scale: 1}
	TextMedium = TextSize{Label: "medium", Scale: 1.5}
	TextLarge  = TextSize{Label: "large", Scale: 2}
)

// TextSizeFromScale matches a label scale against the known presets,
// defaulting to small.
func TextSizeFromScale(scale float64) TextSize {
	for _, s := range []TextSize{TextSmall, TextMedium, TextLarge} {
		if scale == s.Scale {
			return s
		}
	}
	return TextSmall
}

// TextSizeFromLabel resolves a stored label back to its preset.
func TextSizeFromLabel(label string) TextSize {
	for _, s := range []TextSize{TextSmall, TextMedium, TextLarge} {
		if label == s.Label {
			return s
		}
	}
	return TextSmall
}

// IconSize is a named icon render scale.
type IconSize struct {
	Label string
	Scale float64
}

var (
	IconSmall  = IconSize{Label: "small", Scale: 0.5}
	IconMedium = IconSize{Label: "medium", Scale: 1}
	IconLarge  = IconSize{Label: "large", Scale: 2}
)

// IconSizeFromScale matches a (corrected) icon scale against the preset
// table.  Anything unmatched, including zero, resolves to small; the result
// is always a valid preset.
func IconSizeFromScale(scale float64) IconSize {
	for _, s := range []IconSize{IconSmall, IconMedium, IconLarge} {
		if scale == s.Scale {
			return s
		}
	}
	return IconSmall
}

// IconSizeFromLabel resolves a stored label back to its preset.
func IconSizeFromLabel(label string) IconSize {
	for _, s := range []IconSize{IconSmall, IconMedium, IconLarge} {
		if label == s.Label {
			return s
		}
	}
	return IconSmall
}

// ResolvedIcon is the icon reference carried by a marker feature.  Anchor is
// a fraction of the icon's pixel size, ready for the renderer.
type ResolvedIcon struct {
	Set    string     `json:"set"`
	Name   string     `json:"name"`
	URL    string     `json:"url"`
	Anchor [2]float64 `json:"anchor"`
}

// EditableFeature is the normalized record for one drawable feature.
//
// Invariants: FeatureType, FillColor, TextColor and TextSize are always set;
// Icon and IconSize are nil together or present together.  Coordinates and
// Geometry are in the working projection.  For polygons only the outer ring
// is retained; holes and further polygon parts are dropped at extraction.
type EditableFeature struct {
	ID          string
	FeatureType Type
	Title       string
	Description string
	Coordinates []orb.Point
	Geometry    orb.Geometry
	TextColor   Color
	TextSize    TextSize
	FillColor   Color
	Icon        *ResolvedIcon
	IconSize    *IconSize
}

// GeoJSON renders the feature for round-trip writing and the read API.
func (f *EditableFeature) GeoJSON() *geojson.Feature {
	out := geojson.NewFeature(f.Geometry)
	out.ID = f.ID
	out.Properties["type"] = string(f.FeatureType)
	out.Properties["title"] = f.Title
	out.Properties["description"] = f.Description
	out.Properties["fillColor"] = f.FillColor.Hex()
	out.Properties["textColor"] = f.TextColor.Hex()
	out.Properties["textSize"] = f.TextSize.Label
	if f.Icon != nil {
		out.Properties["icon"] = f.Icon
		out.Properties["iconSize"] = f.IconSize.Label
	}
	return out
}

// Coordinates extracts the drawable coordinate list of a geometry.  Polygons
// contribute ring 0 only: holes and any additional rings are dropped, a
// known data-loss point kept for compatibility with existing documents.
// Other geometry kinds pass through unchanged.
func Coordinates(g orb.Geometry) []orb.Point {
	switch geom := g.(type) {
	case orb.Point:
		return []orb.Point{geom}
	case orb.LineString:
		return geom
	case orb.Polygon:
		if len(geom) == 0 {
			return nil
		}
		return geom[0]
	case orb.Ring:
		return geom
	case orb.MultiPoint:
		return geom
	default:
		return nil
	}
}
