package icons

import (
	"regexp"
	"strings"
)

// Icon is one catalog entry.  Anchor and Size are in icon pixels as the
// backend reports them; use AnchorFraction for the normalized form.
type Icon struct {
	Set    string
	Name   string
	URL    string
	Anchor [2]float64
	Size   [2]float64
}

// AnchorFraction normalizes the anchor to a fraction of the icon size.
// A degenerate (zero) size cannot be normalized; the caller falls back to
// [0,0] and logs.
func (ic *Icon) AnchorFraction() ([2]float64, bool) {
	if ic.Size[0] == 0 || ic.Size[1] == 0 {
		return [2]float64{}, false
	}
	return [2]float64{ic.Anchor[0] / ic.Size[0], ic.Anchor[1] / ic.Size[1]}, true
}

// Set groups the icons of one named set.
type Set struct {
	Name  string
	Icons []Icon
}

// numberedName matches the "<digits>-" prefix the catalog added to default
// set icons after the legacy convention was already in the wild.
var numberedName = regexp.MustCompile(`^\d+-`)

// Find locates an icon by name.  Current-format names must match exactly.
// Legacy names from the default set predate the catalog's numeric prefixes,
// so for those we also accept a prefixed catalog entry ("002-marker" for
// "marker").
func (s *Set) Find(name string, legacyDefault bool) (*Icon, bool) {
	for i := range s.Icons {
		if s.Icons[i].Name == name {
			return &s.Icons[i], true
		}
	}
	if legacyDefault {
		for i := range s.Icons {
			if numberedName.ReplaceAllString(s.Icons[i].Name, "") == name {
				return &s.Icons[i], true
			}
		}
	}
	return nil, false
}

// Catalog is the read-only collection of icon sets available to the
// deserializer.  It may be nil at parse time; resolution then degrades to
// URL-derived descriptors.
type Catalog struct {
	sets map[string]*Set
}

// NewCatalog indexes sets by lowercase name.
func NewCatalog(sets []Set) *Catalog {
	c := &Catalog{sets: make(map[string]*Set, len(sets))}
	for i := range sets {
		c.sets[strings.ToLower(sets[i].Name)] = &sets[i]
	}
	return c
}

// Set returns a set by name, case-insensitive.
func (c *Catalog) Set(name string) (*Set, bool) {
	if c == nil {
		return nil, false
	}
	s, ok := c.sets[strings.ToLower(name)]
	return s, ok
}

// Names lists the known set names, mostly for diagnostics.
func (c *Catalog) Names() []string {
	if c == nil {
		return nil
	}
	out := make([]string, 0, len(c.sets))
	for name := range c.sets {
		out = append(out, name)
	}
	return out
}
