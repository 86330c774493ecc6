package icons

import "testing"

// TestParseURLConventions checks each URL convention decodes into the exact
// set, name, tint and legacy flag it encodes.
func TestParseURLConventions(t *testing.T) {
	tests := []struct {
		url  string
		want Args
	}{
		{
			url:  "https://map.example.com/color/255,0,0/marker-24@2x.png",
			want: Args{Set: "default", Name: "marker", Color: RGB{R: 255}, IsLegacy: true},
		},
		{
			url:  "https://map.example.com/images/travel/tent.png",
			want: Args{Set: "travel", Name: "tent", Color: DefaultColor, IsLegacy: true},
		},
		{
			url:  "https://map.example.com/api/icons/sets/default/icons/marker@1.5x-255,0,0.png",
			want: Args{Set: "default", Name: "marker", Color: RGB{R: 255}, IsLegacy: false},
		},
		{
			url:  "https://map.example.com/api/icons/sets/babs/icons/fire@2x-0,128,255.png",
			want: Args{Set: "babs", Name: "fire", Color: RGB{G: 128, B: 255}, IsLegacy: false},
		},
	}
	for _, tc := range tests {
		got, err := ParseURL(tc.url)
		if err != nil {
			t.Errorf("ParseURL(%q) error: %v", tc.url, err)
			continue
		}
		if got == nil {
			t.Errorf("ParseURL(%q) = nil, want %+v", tc.url, tc.want)
			continue
		}
		if *got != tc.want {
			t.Errorf("ParseURL(%q) = %+v, want %+v", tc.url, *got, tc.want)
		}
	}
}

// TestParseURLRoundTrip feeds CatalogURL output back through ParseURL and
// expects the exact arguments to come back out.
func TestParseURLRoundTrip(t *testing.T) {
	colors := []RGB{{255, 0, 0}, {0, 0, 255}, {10, 20, 30}}
	for _, c := range colors {
		url := CatalogURL("https://map.example.com", "default", "marker", 1.5, c)
		got, err := ParseURL(url)
		if err != nil || got == nil {
			t.Fatalf("ParseURL(%q) = %v, %v", url, got, err)
		}
		if got.Set != "default" || got.Name != "marker" || got.Color != c || got.IsLegacy {
			t.Errorf("round trip %q = %+v", url, *got)
		}
	}
}

// TestParseURLNoMatch checks unknown URLs yield nil without an error, so
// callers can degrade to a non-iconic feature.
func TestParseURLNoMatch(t *testing.T) {
	urls := []string{
		"",
		"https://maps.google.com/mapfiles/kml/pushpin/ylw-pushpin.png",
		"https://map.example.com/logo.svg",
		"https://map.example.com/api/icons/sets/default/icons/marker.png",
	}
	for _, url := range urls {
		got, err := ParseURL(url)
		if err != nil {
			t.Errorf("ParseURL(%q) error: %v", url, err)
		}
		if got != nil {
			t.Errorf("ParseURL(%q) = %+v, want nil", url, *got)
		}
	}
}

// TestParseURLBadChannel checks an out-of-range color channel is reported as
// an error instead of silently clamped.
func TestParseURLBadChannel(t *testing.T) {
	url := "https://map.example.com/api/icons/sets/default/icons/marker@1x-999,0,0.png"
	if _, err := ParseURL(url); err == nil {
		t.Fatalf("ParseURL(%q) accepted channel 999", url)
	}
}

// TestParseURLPrecedence pins the convention order: a URL matching the
// legacy colored grammar must resolve as legacy even when a later grammar
// could also be stretched over it.
func TestParseURLPrecedence(t *testing.T) {
	url := "https://map.example.com/color/0,0,255/flag-24@1x.png"
	got, err := ParseURL(url)
	if err != nil || got == nil {
		t.Fatalf("ParseURL(%q) = %v, %v", url, got, err)
	}
	if !got.IsLegacy || got.Set != "default" || got.Name != "flag" {
		t.Errorf("ParseURL(%q) = %+v, want legacy default/flag", url, *got)
	}
}
