package sky

import (
	"context"
	"time"

	"github.com/litescript/ls-skyfield/internal/logging"
	"github.com/litescript/ls-skyfield/internal/raster"
)

// Engine composes the Surface Manager, Star Field, Meteor Spawner and Render
// Loop. It is built once by its host and driven from a single goroutine.
type Engine struct {
	cfg     Config
	log     *logging.Logger
	rng     Rand
	obs     Observer
	factory SurfaceFactory

	enabled bool
	started bool

	geometry *SurfaceManager
	surface  Surface
	stars    *StarField
	meteors  *MeteorSpawner
	loop     Loop
	resize   debouncer
	simTime  float64
}

// Option customizes an Engine.
type Option func(*Engine)

// WithRand injects the randomness source.
func WithRand(r Rand) Option {
	return func(e *Engine) { e.rng = r }
}

// WithSurfaceFactory replaces the raster surface constructor.
func WithSurfaceFactory(f SurfaceFactory) Option {
	return func(e *Engine) { e.factory = f }
}

// WithObserver attaches a telemetry observer.
func WithObserver(o Observer) Option {
	return func(e *Engine) { e.obs = o }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// New builds an engine. An invalid config yields a disabled engine.
func New(cfg Config, opts ...Option) *Engine {
	e := &Engine{
		cfg:     cfg,
		log:     logging.Discard(),
		obs:     NopObserver{},
		factory: RasterSurface,
		enabled: true,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.rng == nil {
		e.rng = NewRand(0)
	}

	if err := cfg.Validate(); err != nil {
		e.disable("config", err)
		return e
	}

	e.geometry = NewSurfaceManager(cfg.MaxDPR)
	e.stars = NewStarField(cfg.Stars, cfg.ReducedMotion, e.rng)
	e.meteors = NewMeteorSpawner(cfg.Meteors, cfg.ReducedMotion, e.rng, e.obs, 0)
	e.loop = NewLoop(cfg.MaxFrameDelta)
	e.resize = debouncer{window: cfg.ResizeDebounce}
	e.geometry.Subscribe(e.onGeometry)

	if cfg.ReducedMotion {
		e.log.Info("Reduced motion: meteors off, twinkle amplitude %.2f", cfg.Stars.ReducedAmplitude)
	}
	return e
}

// Start creates the surface for the initial viewport and starts the loop.
// It runs once; later calls return false.
func (e *Engine) Start(width, height int, dpr float64) (FrameToken, bool) {
	if !e.enabled || e.started {
		return 0, false
	}
	e.started = true

	initial := e.geometry.resolve(width, height, dpr)
	surface, err := e.factory(initial.PixelWidth, initial.PixelHeight)
	if err != nil {
		e.disable("create surface", err)
		return 0, false
	}
	e.surface = surface

	e.geometry.Configure(width, height, dpr)
	if !e.enabled {
		return 0, false
	}
	return e.resume(), true
}

// Resize records a viewport change. Bursts are coalesced and the last one
// is applied at the start of a frame once ResizeDebounce has passed.
func (e *Engine) Resize(width, height int, dpr float64, now time.Time) {
	if !e.enabled {
		return
	}
	e.resize.push(resizeRequest{width: width, height: height, dpr: dpr, at: now})
}

// SetVisible pauses the loop when hidden and restarts it when visible again.
// Returns a new token when the loop was restarted.
func (e *Engine) SetVisible(visible bool) (FrameToken, bool) {
	if !e.enabled || !e.started {
		return 0, false
	}

	if visible {
		if e.loop.Running() {
			return 0, false
		}
		e.log.Debug("Sky visible, resuming")
		return e.resume(), true
	}

	if e.loop.Running() {
		e.loop.Stop()
		e.obs.LoopChanged(false)
		e.log.Debug("Sky hidden, loop cancelled")
	}
	return 0, false
}

// Frame renders one tick. The host schedules the next frame with the same
// token only while Frame returns true.
func (e *Engine) Frame(token FrameToken, now time.Time) bool {
	if !e.enabled {
		return false
	}
	dt, ok := e.loop.Step(token, now)
	if !ok {
		return false
	}

	if r, due := e.resize.due(now); due {
		e.geometry.Configure(r.width, r.height, r.dpr)
		if !e.enabled {
			return false
		}
	}

	e.simTime += dt
	e.surface.Clear()
	e.stars.Render(e.surface, e.simTime)
	e.meteors.Advance(dt)
	e.meteors.Tick(e.simTime)
	e.meteors.Render(e.surface)

	e.obs.FrameRendered(FrameStats{
		Frame:         e.loop.Frames(),
		DT:            dt,
		SimTime:       e.simTime,
		Stars:         e.stars.Len(),
		ActiveMeteors: e.meteors.Active(),
	})
	return true
}

// Simulate drives the engine for up to frames ticks, advancing clock by
// step after each one. It stops early when ctx is cancelled. Returns the
// number of frames rendered.
func (e *Engine) Simulate(ctx context.Context, clock *ManualClock, token FrameToken, frames int, step time.Duration) int {
	n := 0
	for ; n < frames; n++ {
		if ctx.Err() != nil {
			break
		}
		if !e.Frame(token, clock.Now()) {
			break
		}
		clock.Advance(step)
	}
	return n
}

func (e *Engine) resume() FrameToken {
	token := e.loop.Start()
	e.obs.LoopChanged(true)
	return token
}

func (e *Engine) onGeometry(state SurfaceState) {
	if e.surface != nil {
		if err := e.surface.Resize(state.PixelWidth, state.PixelHeight); err != nil {
			e.disable("resize surface", err)
			return
		}
	}
	e.stars.SetGeometry(state)
	e.stars.Regenerate(StarCount(state, e.cfg.Stars))
	e.meteors.SetGeometry(state)

	e.log.Debug("Geometry %dx%d @%.2f -> %dx%d px, %d stars",
		state.ViewportWidth, state.ViewportHeight, state.DPR,
		state.PixelWidth, state.PixelHeight, e.stars.Len())
	e.obs.GeometryChanged(state, e.stars.Len())
}

// disable turns the engine off for good. The host keeps running without it.
func (e *Engine) disable(what string, err error) {
	e.enabled = false
	if e.loop.Running() {
		e.loop.Stop()
		e.obs.LoopChanged(false)
	}
	e.log.Warn("Sky disabled (%s): %v", what, err)
}

// Enabled reports whether the engine is usable.
func (e *Engine) Enabled() bool {
	return e.enabled
}

// Running reports whether the render loop is active.
func (e *Engine) Running() bool {
	return e.enabled && e.loop.Running()
}

// ReducedMotion reports the reduced-motion flag captured at construction.
func (e *Engine) ReducedMotion() bool {
	return e.cfg.ReducedMotion
}

// State returns the current surface geometry.
func (e *Engine) State() SurfaceState {
	if e.geometry == nil {
		return SurfaceState{}
	}
	return e.geometry.State()
}

// Surface returns the drawing surface for presentation, nil before Start
// or when surface creation failed.
func (e *Engine) Surface() Surface {
	return e.surface
}

// SimTime returns the simulated seconds elapsed while running.
func (e *Engine) SimTime() float64 {
	return e.simTime
}

// StarCount returns the current star population size.
func (e *Engine) StarCount() int {
	if e.stars == nil {
		return 0
	}
	return e.stars.Len()
}

// ActiveMeteors returns the number of meteors in flight.
func (e *Engine) ActiveMeteors() int {
	if e.meteors == nil {
		return 0
	}
	return e.meteors.Active()
}

// SpawnStats returns the meteor scheduling counters.
func (e *Engine) SpawnStats() SpawnStats {
	if e.meteors == nil {
		return SpawnStats{}
	}
	return e.meteors.Stats()
}

// cellSource is implemented by surfaces that can be shown on a terminal.
type cellSource interface {
	Cells(cols, rows int) []raster.Cell
}

// Cells downsamples the last rendered frame to a cols×rows grid. Returns nil
// when the engine is disabled or the surface cannot be downsampled.
func (e *Engine) Cells(cols, rows int) []raster.Cell {
	if !e.enabled {
		return nil
	}
	src, ok := e.surface.(cellSource)
	if !ok {
		return nil
	}
	return src.Cells(cols, rows)
}
