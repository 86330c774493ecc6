// Package profile computes elevation-profile statistics from ordered backend
// samples and talks to the elevation backend that produces them.
//
// A Profile is immutable: every derived statistic is recomputed from the
// point sequence on each call, never cached, so the zero-allocation reads
// stay trivially correct under concurrent use.
package profile

import (
	"math"

	"github.com/paulmach/orb"
)

// Point is one backend sample: cumulative distance from the start, planar
// coordinate in the working projection, and elevation, all in meters.
type Point struct {
	Dist      float64
	Coord     orb.Point
	Elevation float64
}

// Profile is an ordered sequence of samples along a line.  Order is
// significant; it is preserved exactly as the backend returned it.
type Profile struct {
	points []Point
}

// New builds a profile over points.  The slice is taken over, not copied.
func New(points []Point) *Profile {
	return &Profile{points: points}
}

// Points returns the sample sequence.
func (p *Profile) Points() []Point {
	return p.points
}

// Line returns the planar line geometry of the sampled path.
func (p *Profile) Line() orb.LineString {
	ls := make(orb.LineString, 0, len(p.points))
	for _, pt := range p.points {
		ls = append(ls, pt.Coord)
	}
	return ls
}

// Every statistic is zero for a profile of fewer than two points.  That is a
// contract, not an accident: a single sample has no distance and no deltas.
func (p *Profile) tooShort() bool {
	return len(p.points) < 2
}

// MaxDist returns the cumulative distance of the last point.
func (p *Profile) MaxDist() float64 {
	if p.tooShort() {
		return 0
	}
	return p.points[len(p.points)-1].Dist
}

// MaxElevation returns the highest sampled elevation.
func (p *Profile) MaxElevation() float64 {
	if p.tooShort() {
		return 0
	}
	max := p.points[0].Elevation
	for _, pt := range p.points[1:] {
		if pt.Elevation > max {
			max = pt.Elevation
		}
	}
	return max
}

// MinElevation returns the lowest sampled elevation.
func (p *Profile) MinElevation() float64 {
	if p.tooShort() {
		return 0
	}
	min := p.points[0].Elevation
	for _, pt := range p.points[1:] {
		if pt.Elevation < min {
			min = pt.Elevation
		}
	}
	return min
}

// ElevationDifference returns last elevation minus first.  It always equals
// TotalAscent minus TotalDescent; tests pin that identity.
func (p *Profile) ElevationDifference() float64 {
	if p.tooShort() {
		return 0
	}
	return p.points[len(p.points)-1].Elevation - p.points[0].Elevation
}

// TotalAscent sums the positive elevation deltas of consecutive pairs.
func (p *Profile) TotalAscent() float64 {
	if p.tooShort() {
		return 0
	}
	var sum float64
	for i := 1; i < len(p.points); i++ {
		if d := p.points[i].Elevation - p.points[i-1].Elevation; d > 0 {
			sum += d
		}
	}
	return sum
}

// TotalDescent sums the negative elevation deltas of consecutive pairs,
// returned as a positive number.
func (p *Profile) TotalDescent() float64 {
	if p.tooShort() {
		return 0
	}
	var sum float64
	for i := 1; i < len(p.points); i++ {
		if d := p.points[i].Elevation - p.points[i-1].Elevation; d < 0 {
			sum += d
		}
	}
	return math.Abs(sum)
}

// SlopeDistance sums the per-segment hypotenuse of planar distance and
// elevation delta, the along-the-ground distance accounting for grade.
func (p *Profile) SlopeDistance() float64 {
	if p.tooShort() {
		return 0
	}
	var sum float64
	for i := 1; i < len(p.points); i++ {
		dd := p.points[i].Dist - p.points[i-1].Dist
		de := p.points[i].Elevation - p.points[i-1].Elevation
		sum += math.Hypot(dd, de)
	}
	return sum
}

// hikingPolynomial holds the coefficients of the Alpine-club minutes-per-km
// model, lowest power first.  The values and the (-4, 4) validity window are
// part of the published formula and must not be "cleaned up".
var hikingPolynomial = []float64{
	14.271, 3.6991, 2.5922, -1.4384,
	0.32105, 0.81542, -0.090261, -0.20757,
	0.010192, 0.028588, -0.00057466, -0.0021842,
	0.000015176, 0.000086894, -1.3584e-7, -1.4026e-6,
}

// minutesPerKm evaluates the hiking-speed model at slope s, where s is the
// elevation delta over the planar delta in tenths-of-percent units.  Outside
// the polynomial's validity window a linear approximation takes over.
func minutesPerKm(s float64) float64 {
	if s <= -4 {
		return -9 * s
	}
	if s >= 4 {
		return 17 * s
	}
	var v, pow float64
	pow = 1
	for _, c := range hikingPolynomial {
		v += c * pow
		pow *= s
	}
	return v
}

// HikingTime estimates the walking duration over the profile in whole
// minutes.  Each segment except the final pair contributes its distance in
// km weighted by the model's minutes-per-km at the segment slope; zero-width
// segments contribute nothing.
func (p *Profile) HikingTime() int {
	if p.tooShort() {
		return 0
	}
	var minutes float64
	for i := 1; i < len(p.points)-1; i++ {
		dd := p.points[i].Dist - p.points[i-1].Dist
		if dd == 0 {
			continue
		}
		de := p.points[i].Elevation - p.points[i-1].Elevation
		s := 10 * de / dd
		minutes += minutesPerKm(s) * dd / 1000
	}
	return int(math.Round(minutes))
}
