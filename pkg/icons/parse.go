package icons

import (
	"fmt"
	"regexp"
	"strconv"
)

// RGB is an icon tint.  Channels are plain 0..255 values.
type RGB struct {
	R, G, B uint8
}

// DefaultColor is the tint used whenever a document does not encode one.
var DefaultColor = RGB{R: 255, G: 0, B: 0}

// Args is what an icon URL encodes: which catalog set and icon it points
// at, the tint, and whether the URL uses one of the retired conventions.
// Values are consumed immediately by icon resolution and never stored.
type Args struct {
	Set      string
	Name     string
	Color    RGB
	IsLegacy bool
}

// The three URL conventions, in the order they must be tried.
//
// Legacy colored URLs predate icon sets entirely: the path carries the tint
// and a pixel size, and every icon implicitly belongs to the "default" set.
// Legacy set URLs came next and dropped the tint.  Current URLs are what the
// icon catalog API serves today.
var (
	reLegacyColored = regexp.MustCompile(`/color/(\d{1,3}),(\d{1,3}),(\d{1,3})/([^/]+?)-\d+@(\d+(?:\.\d+)?)x\.png$`)
	reLegacySet     = regexp.MustCompile(`/images/([\w.-]+)/([\w.-]+)\.png$`)
	reCurrent       = regexp.MustCompile(`/api/icons/sets/([\w.-]+)/icons/([^/]+?)@(\d+(?:\.\d+)?)x-(\d{1,3}),(\d{1,3}),(\d{1,3})\.png$`)
)

// ParseURL decodes an icon URL into Args.  A URL matching none of the known
// conventions yields (nil, nil); the caller logs and treats the feature as
// non-iconic.  A matching URL with an out-of-range color channel is an input
// error, not a silent clamp.
func ParseURL(url string) (*Args, error) {
	if m := reLegacyColored.FindStringSubmatch(url); m != nil {
		color, err := parseChannels(m[1], m[2], m[3])
		if err != nil {
			return nil, fmt.Errorf("legacy colored icon url %q: %w", url, err)
		}
		return &Args{Set: "default", Name: m[4], Color: color, IsLegacy: true}, nil
	}
	if m := reLegacySet.FindStringSubmatch(url); m != nil {
		// No tint in this convention; the fixed default applies.
		return &Args{Set: m[1], Name: m[2], Color: DefaultColor, IsLegacy: true}, nil
	}
	if m := reCurrent.FindStringSubmatch(url); m != nil {
		color, err := parseChannels(m[4], m[5], m[6])
		if err != nil {
			return nil, fmt.Errorf("icon url %q: %w", url, err)
		}
		return &Args{Set: m[1], Name: m[2], Color: color, IsLegacy: false}, nil
	}
	return nil, nil
}

func parseChannels(r, g, b string) (RGB, error) {
	var out [3]uint8
	for i, s := range []string{r, g, b} {
		v, err := strconv.Atoi(s)
		if err != nil {
			return RGB{}, fmt.Errorf("color channel %q is not a number", s)
		}
		if v < 0 || v > 255 {
			return RGB{}, fmt.Errorf("color channel %d out of range [0,255]", v)
		}
		out[i] = uint8(v)
	}
	return RGB{R: out[0], G: out[1], B: out[2]}, nil
}

// CatalogURL renders the current-convention URL for an icon, the inverse of
// what ParseURL accepts for non-legacy input.
func CatalogURL(base, set, name string, scale float64, c RGB) string {
	return fmt.Sprintf("%s/api/icons/sets/%s/icons/%s@%gx-%d,%d,%d.png",
		base, set, name, scale, c.R, c.G, c.B)
}
