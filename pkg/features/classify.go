package features

import (
	"github.com/paulmach/orb"
)

// Raw is one feature as a document reader produced it: WGS84 or projected
// geometry, free-text metadata, an optional explicit type property, and an
// optional style snapshot.
type Raw struct {
	ID          string
	Name        string
	Description string
	TypeHint    string // explicit type property, empty when absent
	Geometry    orb.Geometry
	Style       *Snapshot
}

// classifyRule is one entry of the ordered guessing table.  Rules run top
// down; the first match wins.
type classifyRule struct {
	name  string
	match func(r Raw, q ReaderQuirks) (Type, bool)
}

// The rule order is a contract: explicit type first, then point guessing,
// then line/polygon, then the marker fallback.  Tests pin this order.
var classifyRules = []classifyRule{
	{name: "explicit type property", match: func(r Raw, q ReaderQuirks) (Type, bool) {
		return TypeFromString(r.TypeHint)
	}},
	// The reader injects a placeholder pin for every bare point, so only a
	// genuinely authored image counts here; CustomImage filters the
	// substitutes out.
	{name: "point with scaled custom image is a marker", match: func(r Raw, q ReaderQuirks) (Type, bool) {
		if _, ok := r.Geometry.(orb.Point); !ok {
			return "", false
		}
		if img := CustomImage(r.Style, q); img != nil && img.Scale > 0 {
			return TypeMarker, true
		}
		return "", false
	}},
	{name: "bare point is an annotation", match: func(r Raw, q ReaderQuirks) (Type, bool) {
		if _, ok := r.Geometry.(orb.Point); ok {
			return TypeAnnotation, true
		}
		return "", false
	}},
	// Untyped measure features are structurally plain lines; they stay
	// LINEPOLYGON here and only an explicit type property makes a MEASURE.
	{name: "line is a linepolygon", match: func(r Raw, q ReaderQuirks) (Type, bool) {
		if _, ok := r.Geometry.(orb.LineString); ok {
			return TypeLinePolygon, true
		}
		return "", false
	}},
	{name: "polygon is a linepolygon", match: func(r Raw, q ReaderQuirks) (Type, bool) {
		if _, ok := r.Geometry.(orb.Polygon); ok {
			return TypeLinePolygon, true
		}
		return "", false
	}},
}

// Classify resolves the feature type of a raw feature.  The fallback for
// geometry kinds no rule covers is MARKER, reported through logf so odd
// documents leave a trace.
func Classify(r Raw, q ReaderQuirks, logf func(format string, args ...any)) Type {
	for _, rule := range classifyRules {
		if t, ok := rule.match(r, q); ok {
			return t
		}
	}
	if logf != nil {
		logf("feature %q: no classification rule matched geometry %T, falling back to marker", r.ID, r.Geometry)
	}
	return TypeMarker
}
