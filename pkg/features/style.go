package features

import (
	"strings"

	"github.com/paulmach/orb"

	"hikemap/pkg/icons"
)

// Snapshot is the style of one raw feature with every sub-style optional.
// Absence is part of the type: a nil field means the document did not carry
// that style, so no capability probing is needed downstream.
type Snapshot struct {
	Stroke *StrokeStyle
	Fill   *FillStyle
	Text   *TextStyle
	Image  *ImageStyle
}

// StrokeStyle is a line/outline style.
type StrokeStyle struct {
	Color icons.RGB
	Width float64
}

// FillStyle is a polygon interior style.
type FillStyle struct {
	Color icons.RGB
}

// TextStyle is a label style.  Scale carries whatever the reader produced,
// including its substituted default; see TextScale.
type TextStyle struct {
	Color icons.RGB
	Scale float64
}

// ImageStyle is an icon style.  Anchor is a fraction of the icon size when
// AnchorSet is true.
type ImageStyle struct {
	URL       string
	Scale     float64
	Anchor    [2]float64
	AnchorSet bool
}

// ReaderQuirks is the seam isolating two implicit defaults of the geometry
// format reader: the text scale it substitutes when a document omits the
// property, and the placeholder pin it injects when no icon was authored.
// The shims below are written against this value only, so a reader change
// touches exactly one place.
type ReaderQuirks struct {
	DefaultTextScale   float64
	PlaceholderIconURL string
}

// TextScale returns the effective label scale of a snapshot.
//
// Compatibility shim: a scale equal to the reader's substituted default
// means the document omitted the property, and omitted must render as
// scale 1.  This mapping is deliberate and load-bearing; documents written
// before the shim existed depend on it.
func TextScale(snap *Snapshot, q ReaderQuirks) float64 {
	if snap == nil || snap.Text == nil || snap.Text.Scale == 0 {
		return 1
	}
	if snap.Text.Scale == q.DefaultTextScale {
		return 1
	}
	return snap.Text.Scale
}

// CustomImage returns the snapshot's image style only when it is a genuine
// authored icon.  The reader auto-inserts a default pin when a point has no
// icon; both the known placeholder URL and anything hosted on google are
// treated as no icon at all.
func CustomImage(snap *Snapshot, q ReaderQuirks) *ImageStyle {
	if snap == nil || snap.Image == nil || snap.Image.URL == "" {
		return nil
	}
	if snap.Image.URL == q.PlaceholderIconURL {
		return nil
	}
	if strings.Contains(snap.Image.URL, "google") {
		return nil
	}
	return snap.Image
}

// LegacyScaleFactor corrects icon scales from legacy documents.  Legacy
// authors sized icons against a 48px baseline; the reader normalizes to
// 32px, so every legacy scale must grow by 48/32.
const LegacyScaleFactor = 1.5

// CorrectedScale returns the render scale of an image style with the legacy
// correction applied.  Pure transform; the snapshot is never touched.
func CorrectedScale(img ImageStyle, legacy bool) float64 {
	if legacy {
		return img.Scale * LegacyScaleFactor
	}
	return img.Scale
}

// ResolveFillColor picks the feature fill following the fixed precedence:
// a point with icon color args uses the icon tint, a line or point with a
// stroke uses the stroke color, a polygon with a fill uses the fill color,
// and everything else falls back to the default red.
func ResolveFillColor(geom orb.Geometry, snap *Snapshot, iconColor *icons.RGB) Color {
	_, isPoint := geom.(orb.Point)
	_, isLine := geom.(orb.LineString)
	_, isPolygon := geom.(orb.Polygon)

	switch {
	case isPoint && iconColor != nil:
		return ColorFromRGB(*iconColor)
	case (isLine || isPoint) && snap != nil && snap.Stroke != nil:
		return ColorFromRGB(snap.Stroke.Color)
	case isPolygon && snap != nil && snap.Fill != nil:
		return ColorFromRGB(snap.Fill.Color)
	default:
		return DefaultColor
	}
}
