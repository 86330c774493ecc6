package features

import (
	"testing"

	"github.com/paulmach/orb"

	"hikemap/pkg/icons"
)

var testQuirks = ReaderQuirks{
	DefaultTextScale:   0.8,
	PlaceholderIconURL: "https://maps.google.com/mapfiles/kml/pushpin/ylw-pushpin.png",
}

// TestTextScaleShim checks the reader's substituted default scale maps back
// to 1 while authored scales pass through untouched.
func TestTextScaleShim(t *testing.T) {
	tests := []struct {
		name string
		snap *Snapshot
		want float64
	}{
		{"nil snapshot", nil, 1},
		{"no text style", &Snapshot{}, 1},
		{"zero scale", &Snapshot{Text: &TextStyle{Scale: 0}}, 1},
		{"reader default", &Snapshot{Text: &TextStyle{Scale: 0.8}}, 1},
		{"authored scale", &Snapshot{Text: &TextStyle{Scale: 1.5}}, 1.5},
		{"authored scale 2", &Snapshot{Text: &TextStyle{Scale: 2}}, 2},
	}
	for _, tc := range tests {
		if got := TextScale(tc.snap, testQuirks); got != tc.want {
			t.Errorf("%s: TextScale = %v, want %v", tc.name, got, tc.want)
		}
	}
}

// TestCustomImage checks the placeholder pin and google-hosted icons are
// treated as no icon at all.
func TestCustomImage(t *testing.T) {
	tests := []struct {
		name string
		snap *Snapshot
		want bool
	}{
		{"nil snapshot", nil, false},
		{"no image", &Snapshot{}, false},
		{"placeholder pin", &Snapshot{Image: &ImageStyle{URL: testQuirks.PlaceholderIconURL}}, false},
		{"google hosted", &Snapshot{Image: &ImageStyle{URL: "https://maps.google.com/mapfiles/kml/shapes/cabs.png"}}, false},
		{"authored icon", &Snapshot{Image: &ImageStyle{URL: "https://map.example.com/images/travel/tent.png", Scale: 1}}, true},
	}
	for _, tc := range tests {
		got := CustomImage(tc.snap, testQuirks)
		if (got != nil) != tc.want {
			t.Errorf("%s: CustomImage = %v, want present=%v", tc.name, got, tc.want)
		}
	}
}

// TestCorrectedScale checks legacy scales grow by exactly 1.5 and current
// scales stay untouched.
func TestCorrectedScale(t *testing.T) {
	for _, s := range []float64{0, 0.5, 1, 1.5, 2} {
		img := ImageStyle{Scale: s}
		if got := CorrectedScale(img, true); got != s*1.5 {
			t.Errorf("CorrectedScale(%v, legacy) = %v, want %v", s, got, s*1.5)
		}
		if got := CorrectedScale(img, false); got != s {
			t.Errorf("CorrectedScale(%v, current) = %v, want %v", s, got, s)
		}
	}
}

// TestIconSizeFromScale checks the preset table lookup always returns a
// preset, defaulting to small for unmatched or absent scales.
func TestIconSizeFromScale(t *testing.T) {
	tests := []struct {
		scale float64
		want  IconSize
	}{
		{0.5, IconSmall},
		{1, IconMedium},
		{2, IconLarge},
		{0, IconSmall},
		{0.75, IconSmall},
		{3, IconSmall},
	}
	for _, tc := range tests {
		if got := IconSizeFromScale(tc.scale); got != tc.want {
			t.Errorf("IconSizeFromScale(%v) = %v, want %v", tc.scale, got, tc.want)
		}
	}
}

// TestResolveFillColor pins the fill precedence: icon tint for points, then
// stroke for lines and points, then polygon fill, then the default red.
func TestResolveFillColor(t *testing.T) {
	var (
		point   = orb.Point{1, 2}
		line    = orb.LineString{{0, 0}, {1, 1}}
		polygon = orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 0}}}

		blue   = icons.RGB{B: 255}
		green  = icons.RGB{G: 128}
		stroke = &Snapshot{Stroke: &StrokeStyle{Color: blue}}
		filled = &Snapshot{Fill: &FillStyle{Color: green}}
	)

	tests := []struct {
		name      string
		geom      orb.Geometry
		snap      *Snapshot
		iconColor *icons.RGB
		want      Color
	}{
		{"point with icon tint", point, stroke, &green, Green},
		{"point with stroke only", point, stroke, nil, Blue},
		{"line with stroke", line, stroke, nil, Blue},
		{"polygon with fill", polygon, filled, nil, Green},
		{"polygon ignores stroke", polygon, stroke, nil, Red},
		{"bare point", point, &Snapshot{}, nil, Red},
		{"nil snapshot", line, nil, nil, Red},
	}
	for _, tc := range tests {
		if got := ResolveFillColor(tc.geom, tc.snap, tc.iconColor); got != tc.want {
			t.Errorf("%s: ResolveFillColor = %v, want %v", tc.name, got.Name, tc.want.Name)
		}
	}
}
