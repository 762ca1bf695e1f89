// Package sky implements the ambient star field and meteor animation engine.
//
// The engine is split into a Surface Manager (viewport geometry and the
// backing raster), a Star Field (twinkling background points), a Meteor
// Spawner (short-lived streaks on a randomized schedule) and a Render Loop
// (per-frame driver with visibility-driven pause). Hosts own scheduling:
// they call Engine.Frame with a token and re-schedule while it returns true.
package sky

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/lucasb-eyer/go-colorful"
)

// Config holds every tunable of the engine. Lengths are in logical units
// (terminal cells) unless stated otherwise; they are scaled by the DPR when
// converted to surface pixels.
type Config struct {
	MaxDPR         float64       // DPR cap bounding render cost
	ResizeDebounce time.Duration // resize bursts within this window coalesce
	MaxFrameDelta  time.Duration // dt clamp for stalls
	ReducedMotion  bool          // read once at startup

	Stars   StarConfig
	Meteors MeteorConfig
}

// StarConfig configures the star population.
type StarConfig struct {
	Density          float64 // stars per logical unit of viewport area
	MinCount         int
	MaxCount         int
	RadiusMin        float64
	RadiusMax        float64
	BaseMin          float64 // twinkle envelope centre
	BaseMax          float64
	Amplitude        float64 // twinkle envelope half-height
	ReducedAmplitude float64 // amplitude used in reduced-motion mode
	RateMin          float64 // angular rate, rad/s
	RateMax          float64
	Color            colorful.Color
}

// Region is a fractional rectangle of the surface.
type Region struct {
	XMin, XMax float64
	YMin, YMax float64
}

// MeteorConfig configures meteor scheduling and appearance.
type MeteorConfig struct {
	MaxActive   int
	IntervalMin time.Duration
	IntervalMax time.Duration
	SpeedMin    float64 // logical units/s
	SpeedMax    float64
	AngleMin    float64 // radians below the +x axis; y grows downward
	AngleMax    float64
	TTLMin      time.Duration
	TTLMax      time.Duration
	TrailMin    float64
	TrailMax    float64
	Width       float64 // trail stroke width
	HeadRadius  float64
	RampUp      float64 // fraction of life spent fading in
	Margin      float64 // out-of-bounds distance before culling
	SpawnRegion Region
	HeadColor   colorful.Color
	TailColor   colorful.Color
}

// DefaultConfig returns values tuned for an 80×24 to 300×80 terminal.
func DefaultConfig() Config {
	return Config{
		MaxDPR:         2,
		ResizeDebounce: 120 * time.Millisecond,
		MaxFrameDelta:  50 * time.Millisecond,
		Stars: StarConfig{
			Density:          0.03,
			MinCount:         24,
			MaxCount:         600,
			RadiusMin:        0.2,
			RadiusMax:        0.8,
			BaseMin:          0.4,
			BaseMax:          1.0,
			Amplitude:        0.35,
			ReducedAmplitude: 0.04,
			RateMin:          0.3,
			RateMax:          1.5,
			Color:            colorful.Color{R: 0xcf / 255.0, G: 0xe1 / 255.0, B: 1},
		},
		Meteors: MeteorConfig{
			MaxActive:   3,
			IntervalMin: 6 * time.Second,
			IntervalMax: 14 * time.Second,
			SpeedMin:    25,
			SpeedMax:    50,
			AngleMin:    0.2,
			AngleMax:    0.6,
			TTLMin:      1200 * time.Millisecond,
			TTLMax:      2400 * time.Millisecond,
			TrailMin:    6,
			TrailMax:    14,
			Width:       0.6,
			HeadRadius:  0.5,
			RampUp:      0.2,
			Margin:      8,
			SpawnRegion: Region{XMin: 0, XMax: 0.55, YMin: 0, YMax: 0.35},
			HeadColor:   colorful.Color{R: 1, G: 1, B: 1},
			TailColor:   colorful.Color{R: 21 / 255.0, G: 195 / 255.0, B: 1},
		},
	}
}

var errConfig = errors.New("invalid sky config")

// Validate checks ranges and returns the first problem found.
func (c Config) Validate() error {
	if err := c.checkFinite(); err != nil {
		return err
	}
	if c.MaxDPR < 1 {
		return fmt.Errorf("%w: max DPR %v < 1", errConfig, c.MaxDPR)
	}
	if c.ResizeDebounce < 0 {
		return fmt.Errorf("%w: negative resize debounce", errConfig)
	}
	if c.MaxFrameDelta <= 0 {
		return fmt.Errorf("%w: max frame delta must be positive", errConfig)
	}

	s := c.Stars
	if s.Density < 0 {
		return fmt.Errorf("%w: negative star density", errConfig)
	}
	if s.MinCount < 0 || s.MaxCount < s.MinCount {
		return fmt.Errorf("%w: star count bounds [%d, %d]", errConfig, s.MinCount, s.MaxCount)
	}
	if err := checkRange("star radius", s.RadiusMin, s.RadiusMax); err != nil {
		return err
	}
	if err := checkRange("star base", s.BaseMin, s.BaseMax); err != nil {
		return err
	}
	if err := checkRange("star rate", s.RateMin, s.RateMax); err != nil {
		return err
	}
	if s.Amplitude < 0 || s.ReducedAmplitude < 0 {
		return fmt.Errorf("%w: negative twinkle amplitude", errConfig)
	}

	m := c.Meteors
	if m.MaxActive < 0 {
		return fmt.Errorf("%w: negative meteor cap", errConfig)
	}
	if m.IntervalMin <= 0 || m.IntervalMax < m.IntervalMin {
		return fmt.Errorf("%w: meteor interval [%v, %v]", errConfig, m.IntervalMin, m.IntervalMax)
	}
	if m.TTLMin <= 0 || m.TTLMax < m.TTLMin {
		return fmt.Errorf("%w: meteor ttl [%v, %v]", errConfig, m.TTLMin, m.TTLMax)
	}
	if err := checkRange("meteor speed", m.SpeedMin, m.SpeedMax); err != nil {
		return err
	}
	if err := checkRange("meteor trail", m.TrailMin, m.TrailMax); err != nil {
		return err
	}
	// Meteors must always read as falling: down and to the right.
	if m.AngleMin < 0 || m.AngleMax > math.Pi/2 || m.AngleMax < m.AngleMin {
		return fmt.Errorf("%w: meteor angle [%v, %v] outside [0, pi/2]", errConfig, m.AngleMin, m.AngleMax)
	}
	if m.RampUp <= 0 || m.RampUp >= 1 {
		return fmt.Errorf("%w: ramp-up fraction %v outside (0, 1)", errConfig, m.RampUp)
	}
	if m.Margin < 0 {
		return fmt.Errorf("%w: negative margin", errConfig)
	}
	if m.Width < 0 || m.HeadRadius < 0 {
		return fmt.Errorf("%w: negative meteor width or head radius", errConfig)
	}
	r := m.SpawnRegion
	if r.XMax < r.XMin || r.YMax < r.YMin {
		return fmt.Errorf("%w: empty spawn region", errConfig)
	}
	for _, v := range []float64{r.XMin, r.XMax, r.YMin, r.YMax} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%w: spawn region %+v outside [0, 1]", errConfig, r)
		}
	}
	return nil
}

// checkFinite rejects NaN and infinite values in every float field.
func (c Config) checkFinite() error {
	s, m := c.Stars, c.Meteors
	fields := []struct {
		name string
		v    float64
	}{
		{"max DPR", c.MaxDPR},
		{"star density", s.Density},
		{"star radius min", s.RadiusMin},
		{"star radius max", s.RadiusMax},
		{"star base min", s.BaseMin},
		{"star base max", s.BaseMax},
		{"star amplitude", s.Amplitude},
		{"star reduced amplitude", s.ReducedAmplitude},
		{"star rate min", s.RateMin},
		{"star rate max", s.RateMax},
		{"meteor speed min", m.SpeedMin},
		{"meteor speed max", m.SpeedMax},
		{"meteor angle min", m.AngleMin},
		{"meteor angle max", m.AngleMax},
		{"meteor trail min", m.TrailMin},
		{"meteor trail max", m.TrailMax},
		{"meteor width", m.Width},
		{"meteor head radius", m.HeadRadius},
		{"meteor ramp-up", m.RampUp},
		{"meteor margin", m.Margin},
		{"spawn region x min", m.SpawnRegion.XMin},
		{"spawn region x max", m.SpawnRegion.XMax},
		{"spawn region y min", m.SpawnRegion.YMin},
		{"spawn region y max", m.SpawnRegion.YMax},
	}
	for _, f := range fields {
		if !isFinite(f.v) {
			return fmt.Errorf("%w: %s is not finite (%v)", errConfig, f.name, f.v)
		}
	}

	colors := []struct {
		name string
		c    colorful.Color
	}{
		{"star color", s.Color},
		{"meteor head color", m.HeadColor},
		{"meteor tail color", m.TailColor},
	}
	for _, col := range colors {
		if !isFinite(col.c.R) || !isFinite(col.c.G) || !isFinite(col.c.B) {
			return fmt.Errorf("%w: %s is not finite", errConfig, col.name)
		}
	}
	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func checkRange(name string, lo, hi float64) error {
	if lo < 0 || hi < lo {
		return fmt.Errorf("%w: %s range [%v, %v]", errConfig, name, lo, hi)
	}
	return nil
}
