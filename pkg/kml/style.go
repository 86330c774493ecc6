package kml

import (
	"strconv"
	"strings"

	"github.com/paulmach/orb"

	"hikemap/pkg/features"
	"hikemap/pkg/icons"
)

type kmlStyle struct {
	ID         string         `xml:"id,attr"`
	IconStyle  *kmlIconStyle  `xml:"IconStyle"`
	LabelStyle *kmlLabelStyle `xml:"LabelStyle"`
	LineStyle  *kmlLineStyle  `xml:"LineStyle"`
	PolyStyle  *kmlPolyStyle  `xml:"PolyStyle"`
}

type kmlIconStyle struct {
	Color string `xml:"color"`
	Scale string `xml:"scale"`
	Icon  struct {
		Href string `xml:"href"`
	} `xml:"Icon"`
	HotSpot *struct {
		X      float64 `xml:"x,attr"`
		Y      float64 `xml:"y,attr"`
		XUnits string  `xml:"xunits,attr"`
		YUnits string  `xml:"yunits,attr"`
	} `xml:"hotSpot"`
}

type kmlLabelStyle struct {
	Color string `xml:"color"`
	Scale string `xml:"scale"`
}

type kmlLineStyle struct {
	Color string `xml:"color"`
	Width string `xml:"width"`
}

type kmlPolyStyle struct {
	Color string `xml:"color"`
	Fill  string `xml:"fill"`
}

type kmlStyleMap struct {
	ID    string `xml:"id,attr"`
	Pairs []struct {
		Key      string    `xml:"key"`
		StyleURL string    `xml:"styleUrl"`
		Style    *kmlStyle `xml:"Style"`
	} `xml:"Pair"`
}

// sharedStyles indexes the document's shared styles by id, resolving
// StyleMaps through their "normal" pair.
func (r *kmlRoot) sharedStyles() map[string]*kmlStyle {
	out := make(map[string]*kmlStyle)
	for i := range r.Document.Styles {
		s := &r.Document.Styles[i]
		if s.ID != "" {
			out[s.ID] = s
		}
	}
	for _, sm := range r.Document.StyleMaps {
		if sm.ID == "" {
			continue
		}
		for _, pair := range sm.Pairs {
			if pair.Key != "normal" {
				continue
			}
			if pair.Style != nil {
				out[sm.ID] = pair.Style
			} else if ref, ok := out[strings.TrimPrefix(pair.StyleURL, "#")]; ok {
				out[sm.ID] = ref
			}
			break
		}
	}
	return out
}

// styleSnapshot is a placemark's resolved style before the per-geometry
// reader defaults are applied.
type styleSnapshot struct {
	stroke *features.StrokeStyle
	fill   *features.FillStyle
	text   *features.TextStyle
	image  *features.ImageStyle
}

// snapshot resolves a placemark's effective style: inline <Style> wins,
// otherwise the shared style its styleUrl points at.
func (pm *kmlPlacemark) snapshot(shared map[string]*kmlStyle) styleSnapshot {
	style := pm.Style
	if style == nil && pm.StyleURL != "" {
		style = shared[strings.TrimPrefix(pm.StyleURL, "#")]
	}
	if style == nil {
		return styleSnapshot{}
	}

	var snap styleSnapshot
	if is := style.IconStyle; is != nil && is.Icon.Href != "" {
		img := &features.ImageStyle{
			URL:   is.Icon.Href,
			Scale: parseScale(is.Scale, 1),
		}
		if hs := is.HotSpot; hs != nil && hs.XUnits == "fraction" && hs.YUnits == "fraction" {
			img.Anchor = [2]float64{hs.X, hs.Y}
			img.AnchorSet = true
		}
		snap.image = img
	}
	if ls := style.LabelStyle; ls != nil {
		snap.text = &features.TextStyle{
			Color: parseColor(ls.Color, icons.RGB{R: 255, G: 255, B: 255}),
			// The KML default label scale is what our reader substitutes
			// when the document omits the property.  The deserializer's
			// compatibility shim maps it back to 1.
			Scale: parseScale(ls.Scale, Quirks.DefaultTextScale),
		}
	}
	if ls := style.LineStyle; ls != nil {
		snap.stroke = &features.StrokeStyle{
			Color: parseColor(ls.Color, icons.RGB{R: 255, G: 255, B: 255}),
			Width: parseScale(ls.Width, 1),
		}
	}
	if ps := style.PolyStyle; ps != nil && ps.Fill != "0" {
		snap.fill = &features.FillStyle{
			Color: parseColor(ps.Color, icons.RGB{R: 255, G: 255, B: 255}),
		}
	}
	return snap
}

// forGeometry finalizes the snapshot for one geometry, injecting the
// reader's placeholder pin for points that carry no authored icon.  The
// deserializer recognizes the placeholder and treats it as no icon.
func (s styleSnapshot) forGeometry(g orb.Geometry) *features.Snapshot {
	out := &features.Snapshot{
		Stroke: s.stroke,
		Fill:   s.fill,
		Text:   s.text,
		Image:  s.image,
	}
	if _, isPoint := g.(orb.Point); isPoint && out.Image == nil {
		out.Image = &features.ImageStyle{URL: Quirks.PlaceholderIconURL, Scale: 1}
	}
	return out
}

// parseScale reads a numeric style property, substituting def when the
// document omits it or the value is unparseable.
func parseScale(s string, def float64) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return def
	}
	return v
}

// parseColor reads a KML aabbggrr (or bbggrr) color into plain RGB.
func parseColor(s string, def icons.RGB) icons.RGB {
	s = strings.TrimSpace(strings.TrimPrefix(s, "#"))
	if len(s) == 8 {
		s = s[2:] // drop alpha
	}
	if len(s) != 6 {
		return def
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return def
	}
	// KML stores bbggrr.
	return icons.RGB{
		B: uint8(v >> 16 & 0xff),
		G: uint8(v >> 8 & 0xff),
		R: uint8(v & 0xff),
	}
}
