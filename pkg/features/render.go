package features

// RenderStyle is the flattened, render-ready style of one feature: every
// field resolved, no optionals left.  It is what the map layer hands to its
// drawing collaborator.
type RenderStyle struct {
	StrokeColor Color      `json:"strokeColor"`
	StrokeWidth float64    `json:"strokeWidth"`
	FillColor   Color      `json:"fillColor"`
	TextColor   Color      `json:"textColor"`
	TextScale   float64    `json:"textScale"`
	IconURL     string     `json:"iconUrl,omitempty"`
	IconAnchor  [2]float64 `json:"iconAnchor,omitempty"`
	IconScale   float64    `json:"iconScale,omitempty"`
}

// RenderStyle projects the feature's normalized attributes into one flat
// style. Stroke and fill share the resolved fill color; markers additionally
// carry their icon reference.
func (f *EditableFeature) RenderStyle() RenderStyle {
	rs := RenderStyle{
		StrokeColor: f.FillColor,
		StrokeWidth: 2,
		FillColor:   f.FillColor,
		TextColor:   f.TextColor,
		TextScale:   f.TextSize.Scale,
	}
	if f.Icon != nil {
		rs.IconURL = f.Icon.URL
		rs.IconAnchor = f.Icon.Anchor
		rs.IconScale = f.IconSize.Scale
	}
	return rs
}
