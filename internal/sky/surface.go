package sky

import (
	"math"
	"time"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/litescript/ls-skyfield/internal/raster"
)

// SurfaceState is the viewport geometry shared read-only with the rest of
// the engine.
type SurfaceState struct {
	ViewportWidth  int     // logical units (cells)
	ViewportHeight int
	DPR            float64 // effective ratio after capping
	PixelWidth     int     // backing buffer size
	PixelHeight    int
}

// Area returns the logical viewport area.
func (s SurfaceState) Area() int {
	return s.ViewportWidth * s.ViewportHeight
}

// Empty reports whether the surface has no pixels.
func (s SurfaceState) Empty() bool {
	return s.PixelWidth == 0 || s.PixelHeight == 0
}

// Context is the 2D raster API the engine draws with. Components receive it
// per call and must not retain it.
type Context interface {
	Clear()
	SetComposite(op raster.Composite)
	FillCircle(cx, cy, r float64, col colorful.Color, alpha float64)
	StrokeGradient(x0, y0, x1, y1, width float64, g raster.Gradient)
}

// Surface is a Context whose backing buffer can be resized.
type Surface interface {
	Context
	Resize(width, height int) error
	Size() (int, int)
}

// SurfaceFactory creates the drawing surface. An error disables the engine.
type SurfaceFactory func(width, height int) (Surface, error)

// RasterSurface is the default factory backed by raster.Canvas.
func RasterSurface(width, height int) (Surface, error) {
	c, err := raster.NewCanvas(width, height)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// SurfaceManager tracks viewport geometry and notifies subscribers when it
// changes.
type SurfaceManager struct {
	maxDPR     float64
	state      SurfaceState
	configured bool
	listeners  []func(SurfaceState)
}

// NewSurfaceManager creates a manager capping the DPR at maxDPR.
func NewSurfaceManager(maxDPR float64) *SurfaceManager {
	if maxDPR < 1 {
		maxDPR = 1
	}
	return &SurfaceManager{maxDPR: maxDPR}
}

// Subscribe registers a geometry listener.
func (m *SurfaceManager) Subscribe(fn func(SurfaceState)) {
	m.listeners = append(m.listeners, fn)
}

// State returns the current geometry.
func (m *SurfaceManager) State() SurfaceState {
	return m.state
}

// Configure recomputes the geometry for the given viewport and DPR.
// Listeners run only when the resolved state differs from the current one.
func (m *SurfaceManager) Configure(width, height int, dpr float64) (SurfaceState, bool) {
	next := m.resolve(width, height, dpr)
	if m.configured && next == m.state {
		return m.state, false
	}

	m.state = next
	m.configured = true
	for _, fn := range m.listeners {
		fn(next)
	}
	return next, true
}

func (m *SurfaceManager) resolve(width, height int, dpr float64) SurfaceState {
	width = max(width, 0)
	height = max(height, 0)
	if math.IsNaN(dpr) || dpr <= 0 {
		dpr = 1
	}
	dpr = math.Min(dpr, m.maxDPR)

	return SurfaceState{
		ViewportWidth:  width,
		ViewportHeight: height,
		DPR:            dpr,
		PixelWidth:     int(math.Floor(float64(width) * dpr)),
		PixelHeight:    int(math.Floor(float64(height) * dpr)),
	}
}

// resizeRequest is a pending, not yet applied, viewport change.
type resizeRequest struct {
	width, height int
	dpr           float64
	at            time.Time
}

// debouncer coalesces resize bursts. The latest request wins and is released
// once the window has passed since it arrived.
type debouncer struct {
	window  time.Duration
	pending *resizeRequest
}

func (d *debouncer) push(r resizeRequest) {
	d.pending = &r
}

// due returns the pending request if its quiet period has elapsed.
func (d *debouncer) due(now time.Time) (resizeRequest, bool) {
	if d.pending == nil || now.Sub(d.pending.at) < d.window {
		return resizeRequest{}, false
	}
	r := *d.pending
	d.pending = nil
	return r, true
}
