package sky

import (
	"math"

	"github.com/litescript/ls-skyfield/internal/raster"
)

// Star is one ambient background point.
type Star struct {
	X, Y      float64 // surface pixels
	Radius    float64 // surface pixels
	Base      float64
	Amplitude float64
	Phase     float64
	Rate      float64 // rad/s
}

// Alpha returns the star brightness at simulated time t, always in [0, 1].
func (s Star) Alpha(t float64) float64 {
	return clamp01(s.Base + s.Amplitude*math.Sin(s.Phase+s.Rate*t))
}

// StarCount returns the population size for a geometry:
// clamp(area × density, min, max). A zero-area surface yields the minimum.
func StarCount(state SurfaceState, cfg StarConfig) int {
	n := int(math.Floor(float64(state.Area()) * cfg.Density))
	return min(max(n, cfg.MinCount), cfg.MaxCount)
}

// StarField holds and renders the star population. The population is
// replaced wholesale whenever the geometry changes.
type StarField struct {
	cfg     StarConfig
	reduced bool
	rng     Rand
	state   SurfaceState
	stars   []Star
}

// NewStarField creates an empty star field.
func NewStarField(cfg StarConfig, reduced bool, rng Rand) *StarField {
	return &StarField{cfg: cfg, reduced: reduced, rng: rng}
}

// SetGeometry records the surface the next Regenerate places stars on.
func (f *StarField) SetGeometry(state SurfaceState) {
	f.state = state
}

// Regenerate replaces the population with count fresh stars.
func (f *StarField) Regenerate(count int) {
	count = max(count, 0)
	amp := f.cfg.Amplitude
	if f.reduced {
		amp = f.cfg.ReducedAmplitude
	}
	dpr := f.state.DPR
	if dpr <= 0 {
		dpr = 1
	}
	w := float64(f.state.PixelWidth)
	h := float64(f.state.PixelHeight)

	stars := make([]Star, count)
	for i := range stars {
		stars[i] = Star{
			X:         f.rng.Float64() * w,
			Y:         f.rng.Float64() * h,
			Radius:    uniform(f.rng, f.cfg.RadiusMin, f.cfg.RadiusMax) * dpr,
			Base:      clamp01(uniform(f.rng, f.cfg.BaseMin, f.cfg.BaseMax)),
			Amplitude: amp,
			Phase:     f.rng.Float64() * 2 * math.Pi,
			Rate:      uniform(f.rng, f.cfg.RateMin, f.cfg.RateMax),
		}
	}
	f.stars = stars
}

// Len returns the population size.
func (f *StarField) Len() int {
	return len(f.stars)
}

// Stars returns a copy of the population.
func (f *StarField) Stars() []Star {
	out := make([]Star, len(f.stars))
	copy(out, f.stars)
	return out
}

// Render draws every star at simulated time t. Overlapping glows add up.
func (f *StarField) Render(ctx Context, t float64) {
	if len(f.stars) == 0 {
		return
	}
	ctx.SetComposite(raster.CompositeLighter)
	for _, s := range f.stars {
		ctx.FillCircle(s.X, s.Y, s.Radius, f.cfg.Color, s.Alpha(t))
	}
	ctx.SetComposite(raster.CompositeSourceOver)
}

// clamp01 maps NaN to 0.
func clamp01(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
