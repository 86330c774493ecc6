// Package projection describes the map projections the viewer can run in.
//
// Imported documents always carry WGS84 coordinates; the viewer itself works
// in a projected coordinate system with a fixed resolution ladder.  Each
// Projection bundles the EPSG code, the valid extent in projected
// coordinates, the ladder, and the forward/inverse transforms, so parsers can
// reproject without knowing which system is active.
package projection

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// Projection is a working coordinate system for the viewer.
type Projection struct {
	EPSGCode    int
	Extent      orb.Bound // valid domain in projected coordinates
	Resolutions []float64 // meters per pixel, zoom 0 first

	forward func(lon, lat float64) (x, y float64)
	inverse func(x, y float64) (lon, lat float64)
}

// Identifier returns the usual "EPSG:nnnn" spelling.
func (p *Projection) Identifier() string {
	return fmt.Sprintf("EPSG:%d", p.EPSGCode)
}

// Forward reprojects a WGS84 lon/lat point into projected coordinates.
func (p *Projection) Forward(lonlat orb.Point) orb.Point {
	x, y := p.forward(lonlat[0], lonlat[1])
	return orb.Point{x, y}
}

// Inverse converts projected coordinates back to WGS84 lon/lat.
func (p *Projection) Inverse(xy orb.Point) orb.Point {
	lon, lat := p.inverse(xy[0], xy[1])
	return orb.Point{lon, lat}
}

// Intersects reports whether b overlaps the projection's valid extent.
func (p *Projection) Intersects(b orb.Bound) bool {
	return p.Extent.Intersects(b)
}

// ReprojectGeometry applies Forward to every coordinate of a geometry and
// returns the projected copy.  The input is never mutated.
func (p *Projection) ReprojectGeometry(g orb.Geometry) orb.Geometry {
	switch geom := g.(type) {
	case orb.Point:
		return p.Forward(geom)
	case orb.LineString:
		out := make(orb.LineString, len(geom))
		for i, pt := range geom {
			out[i] = p.Forward(pt)
		}
		return out
	case orb.Ring:
		out := make(orb.Ring, len(geom))
		for i, pt := range geom {
			out[i] = p.Forward(pt)
		}
		return out
	case orb.Polygon:
		out := make(orb.Polygon, len(geom))
		for i, ring := range geom {
			r := make(orb.Ring, len(ring))
			for j, pt := range ring {
				r[j] = p.Forward(pt)
			}
			out[i] = r
		}
		return out
	case orb.MultiPoint:
		out := make(orb.MultiPoint, len(geom))
		for i, pt := range geom {
			out[i] = p.Forward(pt)
		}
		return out
	case orb.MultiLineString:
		out := make(orb.MultiLineString, len(geom))
		for i, ls := range geom {
			out[i] = p.ReprojectGeometry(ls).(orb.LineString)
		}
		return out
	default:
		// Remaining kinds are never produced by the document readers.
		return g
	}
}

// ByEPSG resolves a supported projection from its EPSG code.
func ByEPSG(code int) (*Projection, bool) {
	switch code {
	case 2056:
		return LV95, true
	case 3857:
		return WebMercator, true
	}
	return nil, false
}

// LV95 is the Swiss national grid (EPSG:2056), the default working
// projection.  The WGS84 conversion uses the swisstopo approximation
// formulas, which are accurate to about a meter inside the valid extent.
var LV95 = &Projection{
	EPSGCode: 2056,
	Extent:   orb.Bound{Min: orb.Point{2420000, 1030000}, Max: orb.Point{2900000, 1350000}},
	Resolutions: []float64{
		4000, 3750, 3500, 3250, 3000, 2750, 2500, 2250, 2000, 1750,
		1500, 1250, 1000, 750, 650, 500, 250, 100, 50, 20,
		10, 5, 2.5, 2, 1.5, 1, 0.5, 0.25, 0.1,
	},
	forward: wgs84ToLV95,
	inverse: lv95ToWGS84,
}

// WebMercator (EPSG:3857) backs the world-wide view.
var WebMercator = &Projection{
	EPSGCode: 3857,
	Extent: orb.Bound{
		Min: orb.Point{-mercatorLimit, -mercatorLimit},
		Max: orb.Point{mercatorLimit, mercatorLimit},
	},
	Resolutions: mercatorResolutions(21),
	forward:     wgs84ToMercator,
	inverse:     mercatorToWGS84,
}

const (
	earthRadius   = 6378137.0
	mercatorLimit = math.Pi * earthRadius
)

func mercatorResolutions(levels int) []float64 {
	out := make([]float64, levels)
	r := 2 * mercatorLimit / 256
	for i := range out {
		out[i] = r
		r /= 2
	}
	return out
}

func wgs84ToMercator(lon, lat float64) (x, y float64) {
	x = earthRadius * lon * math.Pi / 180
	y = earthRadius * math.Log(math.Tan(math.Pi/4+lat*math.Pi/360))
	return x, y
}

func mercatorToWGS84(x, y float64) (lon, lat float64) {
	lon = x / earthRadius * 180 / math.Pi
	lat = (2*math.Atan(math.Exp(y/earthRadius)) - math.Pi/2) * 180 / math.Pi
	return lon, lat
}

// wgs84ToLV95 implements the swisstopo approximation (document "Formulas and
// constants for the calculation of the Swiss conformal cylindrical
// projection", sexagesimal-second variant).
func wgs84ToLV95(lon, lat float64) (e, n float64) {
	// Latitude/longitude in arcseconds, offset to Bern and scaled.
	phi := (lat*3600 - 169028.66) / 10000
	lam := (lon*3600 - 26782.5) / 10000

	e = 2600072.37 +
		211455.93*lam -
		10938.51*lam*phi -
		0.36*lam*phi*phi -
		44.54*lam*lam*lam
	n = 1200147.07 +
		308807.95*phi +
		3745.25*lam*lam +
		76.63*phi*phi -
		194.56*lam*lam*phi +
		119.79*phi*phi*phi
	return e, n
}

func lv95ToWGS84(e, n float64) (lon, lat float64) {
	y := (e - 2600000) / 1e6
	x := (n - 1200000) / 1e6

	lam := 2.6779094 +
		4.728982*y +
		0.791484*y*x +
		0.1306*y*x*x -
		0.0436*y*y*y
	phi := 16.9023892 +
		3.238272*x -
		0.270978*y*y -
		0.002528*x*x -
		0.0447*y*y*x -
		0.0140*x*x*x

	// Unit is 10000 sexagesimal seconds; convert to degrees.
	return lam * 100 / 36, phi * 100 / 36
}
