// Package world provides the 2-D plane agents live on.
// Positions are drawn from a layered simplex-noise density so citizens cluster into
// neighbourhoods inside each state's strip of the plane.
package world

import (
	"math"
	"math/rand"

	opensimplex "github.com/ojrac/opensimplex-go"
)

// Point is a position on the plane.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Dist returns the Euclidean distance between two points.
func (p Point) Dist(q Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// LayoutConfig holds plane parameters.
type LayoutConfig struct {
	Width   float64 // Plane width (default 800)
	Height  float64 // Plane height (default 600)
	Regions int     // Number of vertical strips, one per state
	Seed    int64   // Noise seed
}

// DefaultLayoutConfig matches the canonical 800×600 plane with three states.
func DefaultLayoutConfig() LayoutConfig {
	return LayoutConfig{
		Width:   800,
		Height:  600,
		Regions: 3,
		Seed:    42,
	}
}

// Layout samples agent positions.
type Layout struct {
	cfg     LayoutConfig
	density opensimplex.Noise
}

// maxRejections bounds the density rejection loop per sample.
const maxRejections = 8

// NewLayout creates a layout. A non-positive region count is treated as one region.
func NewLayout(cfg LayoutConfig) *Layout {
	if cfg.Regions <= 0 {
		cfg.Regions = 1
	}
	return &Layout{
		cfg:     cfg,
		density: opensimplex.NewNormalized(cfg.Seed),
	}
}

// Width returns the plane width.
func (l *Layout) Width() float64 { return l.cfg.Width }

// Height returns the plane height.
func (l *Layout) Height() float64 { return l.cfg.Height }

// Center returns the middle of the plane.
func (l *Layout) Center() Point {
	return Point{X: l.cfg.Width / 2, Y: l.cfg.Height / 2}
}

// Region returns the horizontal bounds of strip i. Out-of-range indexes wrap.
func (l *Layout) Region(i int) (x0, x1 float64) {
	n := l.cfg.Regions
	i = ((i % n) + n) % n
	w := l.cfg.Width / float64(n)
	return float64(i) * w, float64(i+1) * w
}

// Uniform returns a point drawn uniformly over the whole plane.
func (l *Layout) Uniform(rng *rand.Rand) Point {
	return Point{X: rng.Float64() * l.cfg.Width, Y: rng.Float64() * l.cfg.Height}
}

// InRegion returns a point inside strip i, biased toward high-density areas.
func (l *Layout) InRegion(rng *rand.Rand, i int) Point {
	x0, x1 := l.Region(i)
	var p Point
	for attempt := 0; attempt < maxRejections; attempt++ {
		p = Point{X: x0 + rng.Float64()*(x1-x0), Y: rng.Float64() * l.cfg.Height}
		if rng.Float64() < l.Density(p) {
			return p
		}
	}
	return p
}

// Density returns the settlement density at p in [0,1].
func (l *Layout) Density(p Point) float64 {
	// Sample in units of ~200px so each strip holds a few neighbourhoods.
	return octaveNoise(l.density, p.X/200, p.Y/200, 3, 1.0, 0.5)
}

// octaveNoise generates fractal noise by layering multiple frequencies.
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}

	return total / maxVal
}
