// Package config loads ls-skyfield settings from YAML and the environment.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lucasb-eyer/go-colorful"
	"gopkg.in/yaml.v3"

	"github.com/litescript/ls-skyfield/internal/sky"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid config")

// Config is the on-disk configuration. Durations are Go duration strings
// and colours are hex triplets.
type Config struct {
	ReducedMotion  bool    `yaml:"reduced_motion"`
	MaxDPR         float64 `yaml:"max_dpr"`
	ResizeDebounce string  `yaml:"resize_debounce"`
	MaxFrameDelta  string  `yaml:"max_frame_delta"`
	FPS            int     `yaml:"fps"`
	Seed           uint64  `yaml:"seed"` // 0 picks one at startup

	Stars   StarsConfig   `yaml:"stars"`
	Meteors MeteorsConfig `yaml:"meteors"`
	Logging LoggingConfig `yaml:"logging"`
}

// StarsConfig configures the star field.
type StarsConfig struct {
	Density          float64    `yaml:"density"`
	MinCount         int        `yaml:"min_count"`
	MaxCount         int        `yaml:"max_count"`
	Radius           [2]float64 `yaml:"radius,flow"`
	Base             [2]float64 `yaml:"base,flow"`
	Amplitude        float64    `yaml:"amplitude"`
	ReducedAmplitude float64    `yaml:"reduced_amplitude"`
	Rate             [2]float64 `yaml:"rate,flow"`
	Color            string     `yaml:"color"`
}

// MeteorsConfig configures meteor scheduling and appearance.
type MeteorsConfig struct {
	MaxActive   int        `yaml:"max_active"`
	Interval    [2]string  `yaml:"interval,flow"`
	Speed       [2]float64 `yaml:"speed,flow"`
	Angle       [2]float64 `yaml:"angle,flow"`
	TTL         [2]string  `yaml:"ttl,flow"`
	Trail       [2]float64 `yaml:"trail,flow"`
	Width       float64    `yaml:"width"`
	HeadRadius  float64    `yaml:"head_radius"`
	RampUp      float64    `yaml:"ramp_up"`
	Margin      float64    `yaml:"margin"`
	SpawnRegion [4]float64 `yaml:"spawn_region,flow"` // x min, x max, y min, y max
	HeadColor   string     `yaml:"head_color"`
	TailColor   string     `yaml:"tail_color"`
}

// LoggingConfig configures the logger.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
	File  string `yaml:"file"`
}

// DefaultConfig returns the engine defaults in file form.
func DefaultConfig() *Config {
	cfg := fromEngine(sky.DefaultConfig())
	cfg.FPS = 30
	cfg.Logging = LoggingConfig{Level: "info"}
	return cfg
}

func fromEngine(e sky.Config) *Config {
	s, m := e.Stars, e.Meteors
	return &Config{
		ReducedMotion:  e.ReducedMotion,
		MaxDPR:         e.MaxDPR,
		ResizeDebounce: e.ResizeDebounce.String(),
		MaxFrameDelta:  e.MaxFrameDelta.String(),
		Stars: StarsConfig{
			Density:          s.Density,
			MinCount:         s.MinCount,
			MaxCount:         s.MaxCount,
			Radius:           [2]float64{s.RadiusMin, s.RadiusMax},
			Base:             [2]float64{s.BaseMin, s.BaseMax},
			Amplitude:        s.Amplitude,
			ReducedAmplitude: s.ReducedAmplitude,
			Rate:             [2]float64{s.RateMin, s.RateMax},
			Color:            s.Color.Hex(),
		},
		Meteors: MeteorsConfig{
			MaxActive:  m.MaxActive,
			Interval:   [2]string{m.IntervalMin.String(), m.IntervalMax.String()},
			Speed:      [2]float64{m.SpeedMin, m.SpeedMax},
			Angle:      [2]float64{m.AngleMin, m.AngleMax},
			TTL:        [2]string{m.TTLMin.String(), m.TTLMax.String()},
			Trail:      [2]float64{m.TrailMin, m.TrailMax},
			Width:      m.Width,
			HeadRadius: m.HeadRadius,
			RampUp:     m.RampUp,
			Margin:     m.Margin,
			SpawnRegion: [4]float64{
				m.SpawnRegion.XMin, m.SpawnRegion.XMax,
				m.SpawnRegion.YMin, m.SpawnRegion.YMax,
			},
			HeadColor: m.HeadColor.Hex(),
			TailColor: m.TailColor.Hex(),
		},
	}
}

// Load loads configuration from a YAML file. A missing file or an empty
// path yields the defaults. Environment overrides are applied last.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	defer f.Close()

	return c.WriteYAML(f)
}

// WriteYAML encodes the configuration to w.
func (c *Config) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return enc.Close()
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	// Reduced motion, project variable first
	for _, key := range []string{"LS_SKYFIELD_REDUCED_MOTION", "REDUCE_MOTION"} {
		if on, ok := parseSwitch(os.Getenv(key)); ok {
			c.ReducedMotion = on
			break
		}
	}

	if level := os.Getenv("LS_SKYFIELD_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if file := os.Getenv("LS_SKYFIELD_LOG_FILE"); file != "" {
		c.Logging.File = file
	}
}

// parseSwitch reads a boolean-ish environment value.
func parseSwitch(v string) (on, ok bool) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on", "reduce":
		return true, true
	case "0", "false", "no", "off", "no-preference":
		return false, true
	default:
		return false, false
	}
}

// Validate checks the configuration and returns the first problem found.
func (c *Config) Validate() error {
	_, err := c.Engine()
	return err
}

// Engine converts the file form into the engine configuration.
func (c *Config) Engine() (sky.Config, error) {
	var e sky.Config
	var err error

	if c.FPS < 1 || c.FPS > 240 {
		return e, fmt.Errorf("%w: fps %d outside [1, 240]", ErrInvalid, c.FPS)
	}

	e.ReducedMotion = c.ReducedMotion
	e.MaxDPR = c.MaxDPR
	if e.ResizeDebounce, err = parseDuration("resize_debounce", c.ResizeDebounce); err != nil {
		return e, err
	}
	if e.MaxFrameDelta, err = parseDuration("max_frame_delta", c.MaxFrameDelta); err != nil {
		return e, err
	}

	s := c.Stars
	e.Stars = sky.StarConfig{
		Density:          s.Density,
		MinCount:         s.MinCount,
		MaxCount:         s.MaxCount,
		RadiusMin:        s.Radius[0],
		RadiusMax:        s.Radius[1],
		BaseMin:          s.Base[0],
		BaseMax:          s.Base[1],
		Amplitude:        s.Amplitude,
		ReducedAmplitude: s.ReducedAmplitude,
		RateMin:          s.Rate[0],
		RateMax:          s.Rate[1],
	}
	if e.Stars.Color, err = parseColor("stars.color", s.Color); err != nil {
		return e, err
	}

	m := c.Meteors
	e.Meteors = sky.MeteorConfig{
		MaxActive:  m.MaxActive,
		SpeedMin:   m.Speed[0],
		SpeedMax:   m.Speed[1],
		AngleMin:   m.Angle[0],
		AngleMax:   m.Angle[1],
		TrailMin:   m.Trail[0],
		TrailMax:   m.Trail[1],
		Width:      m.Width,
		HeadRadius: m.HeadRadius,
		RampUp:     m.RampUp,
		Margin:     m.Margin,
		SpawnRegion: sky.Region{
			XMin: m.SpawnRegion[0], XMax: m.SpawnRegion[1],
			YMin: m.SpawnRegion[2], YMax: m.SpawnRegion[3],
		},
	}
	if e.Meteors.IntervalMin, err = parseDuration("meteors.interval", m.Interval[0]); err != nil {
		return e, err
	}
	if e.Meteors.IntervalMax, err = parseDuration("meteors.interval", m.Interval[1]); err != nil {
		return e, err
	}
	if e.Meteors.TTLMin, err = parseDuration("meteors.ttl", m.TTL[0]); err != nil {
		return e, err
	}
	if e.Meteors.TTLMax, err = parseDuration("meteors.ttl", m.TTL[1]); err != nil {
		return e, err
	}
	if e.Meteors.HeadColor, err = parseColor("meteors.head_color", m.HeadColor); err != nil {
		return e, err
	}
	if e.Meteors.TailColor, err = parseColor("meteors.tail_color", m.TailColor); err != nil {
		return e, err
	}

	if err := e.Validate(); err != nil {
		return e, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return e, nil
}

// FrameInterval returns the wall time between frames.
func (c *Config) FrameInterval() time.Duration {
	if c.FPS <= 0 {
		return time.Second / 30
	}
	return time.Second / time.Duration(c.FPS)
}

func parseDuration(field, v string) (time.Duration, error) {
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrInvalid, field, err)
	}
	return d, nil
}

func parseColor(field, v string) (colorful.Color, error) {
	c, err := colorful.Hex(v)
	if err != nil {
		return colorful.Color{}, fmt.Errorf("%w: %s: %v", ErrInvalid, field, err)
	}
	return c, nil
}
