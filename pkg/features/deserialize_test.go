package features

import (
	"strings"
	"testing"

	"github.com/paulmach/orb"

	"hikemap/pkg/icons"
)

func testCatalog() *icons.Catalog {
	return icons.NewCatalog([]icons.Set{
		{
			Name: "default",
			Icons: []icons.Icon{
				{Set: "default", Name: "002-marker", URL: "https://map.example.com/api/icons/sets/default/icons/002-marker.png", Anchor: [2]float64{16, 32}, Size: [2]float64{32, 32}},
				{Set: "default", Name: "flag", URL: "https://map.example.com/api/icons/sets/default/icons/flag.png", Anchor: [2]float64{4, 28}, Size: [2]float64{32, 32}},
			},
		},
		{
			Name: "babs",
			Icons: []icons.Icon{
				{Set: "babs", Name: "fire", URL: "https://map.example.com/api/icons/sets/babs/icons/fire.png", Anchor: [2]float64{16, 16}, Size: [2]float64{32, 32}},
			},
		},
	})
}

// TestDeserializeStructuralErrors checks a feature without geometry or style
// is rejected outright instead of degrading.
func TestDeserializeStructuralErrors(t *testing.T) {
	d := &Deserializer{Quirks: testQuirks}

	if _, err := d.Deserialize(Raw{ID: "f1", Style: &Snapshot{}}); err == nil {
		t.Error("Deserialize accepted a feature without geometry")
	}
	if _, err := d.Deserialize(Raw{ID: "f2", Geometry: orb.Point{1, 2}}); err == nil {
		t.Error("Deserialize accepted a feature without a style")
	}
}

// TestDeserializeCatalogIcon checks a legacy default-set icon resolves
// through the catalog even when the catalog entry carries a numeric prefix,
// and that the anchor is normalized to a fraction of the icon size.
func TestDeserializeCatalogIcon(t *testing.T) {
	d := &Deserializer{Catalog: testCatalog(), Quirks: testQuirks}

	f, err := d.Deserialize(Raw{
		ID:       "drawing_feature_1",
		Name:     "Camp",
		Geometry: orb.Point{2600000, 1200000},
		Style: &Snapshot{
			Image: &ImageStyle{URL: "https://map.example.com/color/255,0,0/marker-24@2x.png", Scale: 1},
		},
	})
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	if f.FeatureType != TypeMarker {
		t.Errorf("FeatureType = %v, want MARKER", f.FeatureType)
	}
	if f.Icon == nil {
		t.Fatal("icon missing")
	}
	if f.Icon.Set != "default" || f.Icon.Name != "002-marker" {
		t.Errorf("icon = %s/%s, want default/002-marker", f.Icon.Set, f.Icon.Name)
	}
	if f.Icon.Anchor != [2]float64{0.5, 1} {
		t.Errorf("icon anchor = %v, want [0.5 1]", f.Icon.Anchor)
	}
	// Legacy scale 1 corrects to 1.5, which matches no preset.
	if f.IconSize == nil || *f.IconSize != IconSmall {
		t.Errorf("IconSize = %v, want small", f.IconSize)
	}
	if f.FillColor != Red {
		t.Errorf("FillColor = %v, want red (icon tint)", f.FillColor.Name)
	}
}

// TestDeserializeSynthesizedIcon checks an icon with an unknown set degrades
// to a URL-derived descriptor with the bottom-center anchor, or the authored
// hot spot when one was set.
func TestDeserializeSynthesizedIcon(t *testing.T) {
	d := &Deserializer{Catalog: testCatalog(), Quirks: testQuirks}

	raw := Raw{
		ID:       "drawing_feature_2",
		Geometry: orb.Point{2600000, 1200000},
		Style: &Snapshot{
			Image: &ImageStyle{URL: "https://map.example.com/images/travel/tent.png", Scale: 1},
		},
	}
	f, err := d.Deserialize(raw)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	if f.Icon == nil {
		t.Fatal("icon missing")
	}
	if f.Icon.Set != "travel" || f.Icon.Name != "tent" {
		t.Errorf("icon = %s/%s, want travel/tent", f.Icon.Set, f.Icon.Name)
	}
	if f.Icon.Anchor != [2]float64{0.5, 1} {
		t.Errorf("default anchor = %v, want [0.5 1]", f.Icon.Anchor)
	}

	raw.Style.Image.Anchor = [2]float64{0.25, 0.75}
	raw.Style.Image.AnchorSet = true
	f, err = d.Deserialize(raw)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	if f.Icon.Anchor != [2]float64{0.25, 0.75} {
		t.Errorf("authored anchor = %v, want [0.25 0.75]", f.Icon.Anchor)
	}
}

// TestDeserializeSubstitutedPin feeds in exactly what the reader produces for
// an icon-less point: the substituted pin at scale 1. The pin must not count
// as an authored image, so the feature is an annotation and carries no icon.
func TestDeserializeSubstitutedPin(t *testing.T) {
	d := &Deserializer{Catalog: testCatalog(), Quirks: testQuirks}

	f, err := d.Deserialize(Raw{
		ID:       "drawing_feature_9",
		Name:     "Viewpoint",
		Geometry: orb.Point{2600000, 1200000},
		Style: &Snapshot{
			Image: &ImageStyle{URL: testQuirks.PlaceholderIconURL, Scale: 1},
		},
	})
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	if f.FeatureType != TypeAnnotation {
		t.Errorf("FeatureType = %v, want ANNOTATION", f.FeatureType)
	}
	if f.Icon != nil {
		t.Errorf("icon = %+v, want nil", f.Icon)
	}
	if f.IconSize != nil {
		t.Errorf("IconSize = %v, want nil", *f.IconSize)
	}
}

// TestDeserializeNonIconicDegradation checks unknown icon URLs never fail the
// feature: it simply comes back without an icon, classified by geometry.
func TestDeserializeNonIconicDegradation(t *testing.T) {
	var logs []string
	d := &Deserializer{
		Catalog: testCatalog(),
		Quirks:  testQuirks,
		Logf: func(format string, args ...any) {
			logs = append(logs, format)
		},
	}

	f, err := d.Deserialize(Raw{
		ID:       "drawing_feature_3",
		Geometry: orb.Point{2600000, 1200000},
		Style: &Snapshot{
			Image: &ImageStyle{URL: "https://elsewhere.example.com/pin.png", Scale: 1},
		},
	})
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	if f.Icon != nil {
		t.Errorf("icon = %+v, want nil", f.Icon)
	}
	if f.IconSize != nil {
		t.Errorf("IconSize = %v, want nil", *f.IconSize)
	}
	if f.FeatureType != TypeMarker {
		t.Errorf("FeatureType = %v, want MARKER (scaled image present)", f.FeatureType)
	}
	if len(logs) == 0 {
		t.Error("degradation left no log trace")
	}
	for _, l := range logs {
		if !strings.Contains(l, "non-iconic") {
			t.Errorf("unexpected log %q", l)
		}
	}
}

// TestDeserializeLineStyle checks stroke color drives the fill for lines and
// that the default text scale substitution maps back to the small preset.
func TestDeserializeLineStyle(t *testing.T) {
	d := &Deserializer{Quirks: testQuirks}

	f, err := d.Deserialize(Raw{
		ID:       "drawing_feature_4",
		Geometry: orb.LineString{{0, 0}, {1000, 0}},
		Style: &Snapshot{
			Stroke: &StrokeStyle{Color: icons.RGB{B: 255}, Width: 3},
			Text:   &TextStyle{Color: icons.RGB{R: 255, G: 255, B: 255}, Scale: 0.8},
		},
	})
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	if f.FeatureType != TypeLinePolygon {
		t.Errorf("FeatureType = %v, want LINEPOLYGON", f.FeatureType)
	}
	if f.FillColor != Blue {
		t.Errorf("FillColor = %v, want blue", f.FillColor.Name)
	}
	if f.TextColor != White {
		t.Errorf("TextColor = %v, want white", f.TextColor.Name)
	}
	if f.TextSize != TextSizeFromScale(1) {
		t.Errorf("TextSize = %v", f.TextSize)
	}
	if len(f.Coordinates) != 2 {
		t.Errorf("Coordinates has %d points, want 2", len(f.Coordinates))
	}
}
