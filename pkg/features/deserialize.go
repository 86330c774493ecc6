package features

import (
	"fmt"

	"hikemap/pkg/icons"
)

// Deserializer turns raw document features into EditableFeatures.  The icon
// catalog is optional and read-only; Logf defaults to discarding.
type Deserializer struct {
	Catalog *icons.Catalog
	Quirks  ReaderQuirks
	Logf    func(format string, args ...any)
}

func (d *Deserializer) logf(format string, args ...any) {
	if d.Logf != nil {
		d.Logf(format, args...)
	}
}

// Deserialize builds the normalized feature for one raw feature, or returns
// an error for structural failures (no geometry, no resolvable style).
// Everything below a structural failure degrades instead of failing: an
// unparseable or unresolvable icon just leaves the feature non-iconic.
func (d *Deserializer) Deserialize(raw Raw) (*EditableFeature, error) {
	if raw.Geometry == nil {
		return nil, fmt.Errorf("feature %q has no geometry", raw.ID)
	}
	if raw.Style == nil {
		return nil, fmt.Errorf("feature %q has no resolvable style", raw.ID)
	}

	featureType := Classify(raw, d.Quirks, d.Logf)

	textColor := DefaultColor
	if raw.Style.Text != nil {
		textColor = ColorFromRGB(raw.Style.Text.Color)
	}
	textSize := TextSizeFromScale(TextScale(raw.Style, d.Quirks))

	var (
		icon      *ResolvedIcon
		iconSize  *IconSize
		iconColor *icons.RGB
	)
	if img := CustomImage(raw.Style, d.Quirks); img != nil {
		args, err := icons.ParseURL(img.URL)
		switch {
		case err != nil:
			d.logf("feature %q: %v, treating as non-iconic", raw.ID, err)
		case args == nil:
			d.logf("feature %q: icon url %q matches no known convention, treating as non-iconic", raw.ID, img.URL)
		default:
			size := IconSizeFromScale(CorrectedScale(*img, args.IsLegacy))
			icon = d.resolveIcon(raw.ID, args, img)
			iconSize = &size
			c := args.Color
			iconColor = &c
		}
	}

	return &EditableFeature{
		ID:          raw.ID,
		FeatureType: featureType,
		Title:       raw.Name,
		Description: raw.Description,
		Coordinates: Coordinates(raw.Geometry),
		Geometry:    raw.Geometry,
		TextColor:   textColor,
		TextSize:    textSize,
		FillColor:   ResolveFillColor(raw.Geometry, raw.Style, iconColor),
		Icon:        icon,
		IconSize:    iconSize,
	}, nil
}

// resolveIcon looks the parsed icon up in the catalog, degrading to a
// descriptor synthesized from the URL itself when the catalog is missing,
// the set is unknown, or no icon matches by name.  Resolution failures are
// never fatal.
func (d *Deserializer) resolveIcon(featureID string, args *icons.Args, img *ImageStyle) *ResolvedIcon {
	set, ok := d.Catalog.Set(args.Set)
	if !ok {
		if d.Catalog != nil {
			d.logf("feature %q: icon set %q not in catalog, synthesizing from url", featureID, args.Set)
		}
		return d.synthesizeIcon(args, img)
	}

	legacyDefault := args.IsLegacy && args.Set == "default"
	entry, ok := set.Find(args.Name, legacyDefault)
	if !ok {
		d.logf("feature %q: icon %q not found in set %q, synthesizing from url", featureID, args.Name, args.Set)
		return d.synthesizeIcon(args, img)
	}

	anchor, ok := entry.AnchorFraction()
	if !ok {
		d.logf("feature %q: icon %s/%s has degenerate size, anchoring at origin", featureID, entry.Set, entry.Name)
		anchor = [2]float64{0, 0}
	}
	return &ResolvedIcon{Set: entry.Set, Name: entry.Name, URL: entry.URL, Anchor: anchor}
}

// synthesizeIcon builds a best-effort descriptor from the URL's own parts.
// This covers every convention except the legacy default set, whose catalog
// names carry a numeric prefix the URL never had.
func (d *Deserializer) synthesizeIcon(args *icons.Args, img *ImageStyle) *ResolvedIcon {
	anchor := [2]float64{0.5, 1}
	if img.AnchorSet {
		anchor = img.Anchor
	}
	return &ResolvedIcon{Set: args.Set, Name: args.Name, URL: img.URL, Anchor: anchor}
}
