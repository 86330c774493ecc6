// Package geodesic measures imported lines along the WGS84 ellipsoid.
//
// Planar lengths computed in the working projection drift badly on long
// tracks, so line and measure features carry one of these helpers for
// great-circle-correct rendering and labels.
package geodesic

import (
	"github.com/StefanSchroeder/Golang-Ellipsoid/ellipsoid"
	"github.com/paulmach/orb"
)

// geo is shared by every Line; the ellipsoid value is read-only after Init.
var geo = ellipsoid.Init("WGS84", ellipsoid.Degrees, ellipsoid.Meter,
	ellipsoid.LongitudeIsSymmetric, ellipsoid.BearingIsSymmetric)

// Line wraps a WGS84 polyline.  The coordinate slice is treated as
// immutable; all measurements are recomputed from it on demand.
type Line struct {
	coords orb.LineString
}

// NewLine builds a helper over lon/lat coordinates.
func NewLine(coords orb.LineString) *Line {
	return &Line{coords: coords}
}

// Coordinates returns the underlying lon/lat polyline.
func (l *Line) Coordinates() orb.LineString { return l.coords }

// Length returns the ellipsoidal length in meters, summed per segment.
func (l *Line) Length() float64 {
	var total float64
	for i := 1; i < len(l.coords); i++ {
		a, b := l.coords[i-1], l.coords[i]
		d, _ := geo.To(a[1], a[0], b[1], b[0])
		total += d
	}
	return total
}

// SegmentAzimuths returns the initial bearing of each segment in degrees.
// A line with fewer than two points yields an empty slice.
func (l *Line) SegmentAzimuths() []float64 {
	if len(l.coords) < 2 {
		return nil
	}
	out := make([]float64, 0, len(l.coords)-1)
	for i := 1; i < len(l.coords); i++ {
		a, b := l.coords[i-1], l.coords[i]
		_, bearing := geo.To(a[1], a[0], b[1], b[0])
		out = append(out, bearing)
	}
	return out
}

// Midpoint returns the point halfway along the line by ellipsoidal distance.
// Useful for placing measure labels.  Degenerate lines return their first
// point, or the zero point when empty.
func (l *Line) Midpoint() orb.Point {
	if len(l.coords) == 0 {
		return orb.Point{}
	}
	if len(l.coords) == 1 {
		return l.coords[0]
	}
	half := l.Length() / 2
	var walked float64
	for i := 1; i < len(l.coords); i++ {
		a, b := l.coords[i-1], l.coords[i]
		d, bearing := geo.To(a[1], a[0], b[1], b[0])
		if walked+d >= half && d > 0 {
			lat, lon := geo.At(a[1], a[0], half-walked, bearing)
			return orb.Point{lon, lat}
		}
		walked += d
	}
	return l.coords[len(l.coords)-1]
}
