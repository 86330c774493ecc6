package gpx

import (
	"errors"
	"testing"

	"hikemap/pkg/features"
	"hikemap/pkg/kml"
	"hikemap/pkg/projection"
)

// TestIsGPX checks content sniffing for GPX mirrors the KML sniff: a
// balanced <gpx> element anywhere in the content.
func TestIsGPX(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    bool
	}{
		{"plain document", `<gpx version="1.1" creator="test"><wpt lat="46.95" lon="7.44"/></gpx>`, true},
		{"self closing", `<gpx/>`, true},
		{"kml document", `<kml><Document/></kml>`, false},
		{"open tag only", `<gpx version="1.1">`, false},
		{"empty", "", false},
	}
	for _, tc := range tests {
		if got := IsGPX([]byte(tc.content)); got != tc.want {
			t.Errorf("%s: IsGPX = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func testDeserializer() *features.Deserializer {
	return &features.Deserializer{Quirks: kml.Quirks}
}

// TestParseWaypointAndTrack checks waypoints come out as annotations and
// track segments as red line features with a geodesic helper.
func TestParseWaypointAndTrack(t *testing.T) {
	proj, _ := projection.ByEPSG(2056)
	content := `<?xml version="1.0" encoding="UTF-8"?>
<gpx version="1.1" creator="test" xmlns="http://www.topografix.com/GPX/1/1">
  <metadata><name>Morning Tour</name></metadata>
  <wpt lat="46.9509" lon="7.4386"><name>Start</name></wpt>
  <trk>
    <name>Approach</name>
    <trkseg>
      <trkpt lat="46.94" lon="7.43"><ele>540</ele></trkpt>
      <trkpt lat="46.95" lon="7.44"><ele>560</ele></trkpt>
      <trkpt lat="46.96" lon="7.45"><ele>580</ele></trkpt>
    </trkseg>
  </trk>
</gpx>`

	doc, err := Parse([]byte(content), testDeserializer(), proj)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if doc.Name != "Morning Tour" {
		t.Errorf("document name = %q, want Morning Tour", doc.Name)
	}
	if len(doc.Features) != 2 {
		t.Fatalf("got %d features, want 2", len(doc.Features))
	}

	wp := doc.Features[0]
	if wp.FeatureType != features.TypeAnnotation {
		t.Errorf("waypoint type = %v, want ANNOTATION", wp.FeatureType)
	}
	if wp.Title != "Start" {
		t.Errorf("waypoint title = %q, want Start", wp.Title)
	}
	if wp.Icon != nil {
		t.Errorf("waypoint icon = %+v, want nil", wp.Icon)
	}
	if wp.Geodesic != nil {
		t.Error("waypoint carries a geodesic line")
	}

	trk := doc.Features[1]
	if trk.FeatureType != features.TypeLinePolygon {
		t.Errorf("track type = %v, want LINEPOLYGON", trk.FeatureType)
	}
	if trk.FillColor != features.Red {
		t.Errorf("track fill = %v, want red (default)", trk.FillColor.Name)
	}
	if trk.Geodesic == nil {
		t.Fatal("track has no geodesic helper")
	}
	if len(trk.Coordinates) != 3 {
		t.Errorf("track has %d coordinates, want 3", len(trk.Coordinates))
	}
	// Coordinates must come back in the working projection.
	if pt := trk.Coordinates[0]; pt[0] < 2400000 || pt[0] > 2900000 {
		t.Errorf("track easting = %v, not in LV95 range", pt[0])
	}

	if _, ok := doc.Extent(); !ok {
		t.Error("document has no extent")
	}
}

// TestParseRoute checks routes yield line features just like tracks.
func TestParseRoute(t *testing.T) {
	proj, _ := projection.ByEPSG(2056)
	content := `<gpx version="1.1" creator="test">
  <rte>
    <name>Planned</name>
    <rtept lat="46.94" lon="7.43"/>
    <rtept lat="46.96" lon="7.45"/>
  </rte>
</gpx>`

	doc, err := Parse([]byte(content), testDeserializer(), proj)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(doc.Features) != 1 {
		t.Fatalf("got %d features, want 1", len(doc.Features))
	}
	if doc.Features[0].Title != "Planned" {
		t.Errorf("route title = %q, want Planned", doc.Features[0].Title)
	}
	if doc.Features[0].FeatureType != features.TypeLinePolygon {
		t.Errorf("route type = %v, want LINEPOLYGON", doc.Features[0].FeatureType)
	}
}

// TestParseEmptyDocument checks a document with no usable content, including
// one whose only segment is degenerate, is rejected with EmptyGPXError.
func TestParseEmptyDocument(t *testing.T) {
	proj, _ := projection.ByEPSG(2056)
	contents := []string{
		`<gpx version="1.1" creator="test"></gpx>`,
		`<gpx version="1.1" creator="test"><trk><trkseg><trkpt lat="46.94" lon="7.43"/></trkseg></trk></gpx>`,
	}
	for _, content := range contents {
		_, err := Parse([]byte(content), testDeserializer(), proj)
		var empty *EmptyGPXError
		if !errors.As(err, &empty) {
			t.Errorf("Parse(%q) error = %v, want EmptyGPXError", content, err)
		}
	}
}
