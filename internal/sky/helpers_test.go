package sky

import (
	"time"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/litescript/ls-skyfield/internal/raster"
)

var epoch = time.Date(2025, 6, 1, 22, 0, 0, 0, time.UTC)

// recordingContext captures draw calls instead of rasterizing them.
type recordingContext struct {
	clears     int
	composites []raster.Composite
	circles    []circleCall
	strokes    int
}

type circleCall struct {
	x, y, r, alpha float64
}

func (c *recordingContext) Clear()                           { c.clears++ }
func (c *recordingContext) SetComposite(op raster.Composite) { c.composites = append(c.composites, op) }
func (c *recordingContext) FillCircle(x, y, r float64, _ colorful.Color, alpha float64) {
	c.circles = append(c.circles, circleCall{x, y, r, alpha})
}
func (c *recordingContext) StrokeGradient(_, _, _, _, _ float64, _ raster.Gradient) { c.strokes++ }

// recordingObserver keeps every callback for assertions.
type recordingObserver struct {
	geometry []SurfaceState
	spawned  []Meteor
	skipped  []SkipReason
	retired  []retiredMeteor
	frames   []FrameStats
	loop     []bool
}

type retiredMeteor struct {
	m      Meteor
	reason RetireReason
}

func (o *recordingObserver) GeometryChanged(s SurfaceState, _ int) { o.geometry = append(o.geometry, s) }
func (o *recordingObserver) MeteorSpawned(m Meteor)                { o.spawned = append(o.spawned, m) }
func (o *recordingObserver) MeteorSkipped(_ int, r SkipReason)     { o.skipped = append(o.skipped, r) }
func (o *recordingObserver) MeteorRetired(m Meteor, r RetireReason) {
	o.retired = append(o.retired, retiredMeteor{m, r})
}
func (o *recordingObserver) FrameRendered(f FrameStats) { o.frames = append(o.frames, f) }
func (o *recordingObserver) LoopChanged(running bool)   { o.loop = append(o.loop, running) }

func surfaceOf(w, h int, dpr float64) SurfaceState {
	return NewSurfaceManager(2).resolve(w, h, dpr)
}

// recordingSurface is a recordingContext with a resizable size.
type recordingSurface struct {
	recordingContext
	w, h    int
	resizes int
}

func (s *recordingSurface) Resize(w, h int) error {
	s.w, s.h = w, h
	s.resizes++
	return nil
}

func (s *recordingSurface) Size() (int, int) { return s.w, s.h }

// recordingFactory returns a factory that hands out surface.
func recordingFactory(surface *recordingSurface) SurfaceFactory {
	return func(w, h int) (Surface, error) {
		surface.w, surface.h = w, h
		return surface, nil
	}
}
