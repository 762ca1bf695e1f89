package sky

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/litescript/ls-skyfield/internal/logging"
	"github.com/litescript/ls-skyfield/internal/raster"
)

const frameStep = 16 * time.Millisecond

func newTestEngine(t *testing.T, cfg Config, opts ...Option) (*Engine, *recordingObserver) {
	t.Helper()
	obs := &recordingObserver{}
	opts = append([]Option{WithRand(NewRand(7)), WithObserver(obs)}, opts...)
	e := New(cfg, opts...)
	if !e.Enabled() {
		t.Fatal("engine disabled after New")
	}
	return e, obs
}

func TestEngine_StartOnce(t *testing.T) {
	e, obs := newTestEngine(t, DefaultConfig())

	tok, ok := e.Start(80, 24, 1)
	if !ok || tok == 0 {
		t.Fatalf("Start = %v, %v", tok, ok)
	}
	if _, ok := e.Start(100, 30, 1); ok {
		t.Error("second Start succeeded")
	}
	if len(obs.geometry) != 1 {
		t.Errorf("geometry notifications = %d, want 1", len(obs.geometry))
	}
	if got := e.State(); got.ViewportWidth != 80 || got.ViewportHeight != 24 {
		t.Errorf("State = %+v", got)
	}
}

func TestEngine_ZeroToFullHD(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Stars.Density = 1.0 / 4096
	cfg.Stars.MinCount = 120
	cfg.Stars.MaxCount = 1000

	surface := &recordingSurface{}
	e, _ := newTestEngine(t, cfg, WithSurfaceFactory(recordingFactory(surface)))
	clock := NewManualClock(epoch)

	tok, ok := e.Start(0, 0, 1)
	if !ok {
		t.Fatal("Start on a zero-size viewport failed")
	}
	if e.StarCount() != 120 {
		t.Errorf("StarCount on empty surface = %d, want minimum 120", e.StarCount())
	}
	e.Simulate(context.Background(), clock, tok, 3, frameStep)

	e.Resize(1920, 1080, 1, clock.Now())
	clock.Advance(cfg.ResizeDebounce)
	if !e.Frame(tok, clock.Now()) {
		t.Fatal("frame after resize dropped")
	}

	if e.StarCount() != 506 {
		t.Errorf("StarCount = %d, want 506", e.StarCount())
	}
	if w, h := surface.Size(); w != 1920 || h != 1080 {
		t.Errorf("surface size = %dx%d, want 1920x1080", w, h)
	}
}

func TestEngine_ResizeDebounced(t *testing.T) {
	e, obs := newTestEngine(t, DefaultConfig(), WithSurfaceFactory(recordingFactory(&recordingSurface{})))
	clock := NewManualClock(epoch)
	tok, _ := e.Start(80, 24, 1)

	for w := 81; w <= 90; w++ {
		e.Resize(w, 24, 1, clock.Now())
		e.Frame(tok, clock.Now())
		clock.Advance(10 * time.Millisecond)
	}
	if len(obs.geometry) != 1 {
		t.Fatalf("geometry applied mid-burst: %d notifications", len(obs.geometry))
	}

	e.Simulate(context.Background(), clock, tok, 20, frameStep)
	if len(obs.geometry) != 2 {
		t.Fatalf("geometry notifications = %d, want 2", len(obs.geometry))
	}
	if got := e.State().ViewportWidth; got != 90 {
		t.Errorf("width = %d, want last requested 90", got)
	}
}

func TestEngine_DPRCapped(t *testing.T) {
	e, _ := newTestEngine(t, DefaultConfig(), WithSurfaceFactory(recordingFactory(&recordingSurface{})))
	e.Start(40, 10, 3)

	st := e.State()
	if st.DPR != 2 || st.PixelWidth != 80 || st.PixelHeight != 20 {
		t.Errorf("State = %+v, want DPR 2 at 80x20", st)
	}
}

func TestEngine_VisibilityRestartsWithZeroDelta(t *testing.T) {
	e, obs := newTestEngine(t, DefaultConfig(), WithSurfaceFactory(recordingFactory(&recordingSurface{})))
	clock := NewManualClock(epoch)

	tok, _ := e.Start(80, 24, 1)
	e.Simulate(context.Background(), clock, tok, 10, frameStep)
	simBefore := e.SimTime()

	if _, restarted := e.SetVisible(false); restarted {
		t.Error("hiding returned a token")
	}
	if e.Running() {
		t.Fatal("loop still running while hidden")
	}
	if e.Frame(tok, clock.Now()) {
		t.Fatal("in-flight frame ran after hide")
	}

	clock.Advance(time.Hour)
	next, ok := e.SetVisible(true)
	if !ok || next == tok {
		t.Fatalf("SetVisible(true) = %v, %v", next, ok)
	}
	if _, again := e.SetVisible(true); again {
		t.Error("second SetVisible(true) restarted a running loop")
	}

	if !e.Frame(next, clock.Now()) {
		t.Fatal("first frame after resume dropped")
	}
	if dt := obs.frames[len(obs.frames)-1].DT; dt != 0 {
		t.Errorf("first dt after resume = %v, want 0", dt)
	}
	if e.SimTime() != simBefore {
		t.Errorf("sim time jumped across the hidden period: %v -> %v", simBefore, e.SimTime())
	}

	clock.Advance(5 * time.Second)
	e.Frame(next, clock.Now())
	if dt := obs.frames[len(obs.frames)-1].DT; dt != 0.05 {
		t.Errorf("dt after stall = %v, want clamped 0.05", dt)
	}

	if e.Frame(tok, clock.Now()) {
		t.Error("stale token accepted after resume")
	}

	want := []bool{true, false, true}
	if len(obs.loop) != len(want) {
		t.Fatalf("loop transitions = %v, want %v", obs.loop, want)
	}
	for i := range want {
		if obs.loop[i] != want[i] {
			t.Errorf("loop transitions = %v, want %v", obs.loop, want)
			break
		}
	}
}

func TestEngine_ReducedMotion(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ReducedMotion = true
	cfg.Meteors.IntervalMin = 50 * time.Millisecond
	cfg.Meteors.IntervalMax = 60 * time.Millisecond

	surface := &recordingSurface{}
	e, obs := newTestEngine(t, cfg, WithSurfaceFactory(recordingFactory(surface)))
	clock := NewManualClock(epoch)

	tok, _ := e.Start(80, 24, 1)
	if n := e.Simulate(context.Background(), clock, tok, 600, frameStep); n != 600 {
		t.Fatalf("rendered %d frames, want 600", n)
	}

	if st := e.SpawnStats(); st.Attempts != 0 || st.Spawned != 0 {
		t.Errorf("SpawnStats = %+v, want none", st)
	}
	if len(obs.spawned) != 0 {
		t.Errorf("observer saw %d spawns", len(obs.spawned))
	}
	if surface.strokes != 0 {
		t.Errorf("drew %d meteor trails", surface.strokes)
	}
	if got, want := len(surface.circles), 600*e.StarCount(); got != want {
		t.Errorf("star draws = %d, want %d", got, want)
	}
	if !e.ReducedMotion() {
		t.Error("ReducedMotion() = false")
	}
}

func TestEngine_MeteorsSpawnInNormalMode(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Meteors.IntervalMin = 500 * time.Millisecond
	cfg.Meteors.IntervalMax = time.Second

	e, obs := newTestEngine(t, cfg, WithSurfaceFactory(recordingFactory(&recordingSurface{})))
	clock := NewManualClock(epoch)
	tok, _ := e.Start(120, 40, 1)
	e.Simulate(context.Background(), clock, tok, 60*20, frameStep)

	if len(obs.spawned) == 0 {
		t.Fatal("no meteors spawned in 20s")
	}
	for _, f := range obs.frames {
		if f.ActiveMeteors > cfg.Meteors.MaxActive {
			t.Fatalf("frame %d had %d meteors, cap %d", f.Frame, f.ActiveMeteors, cfg.Meteors.MaxActive)
		}
	}
}

func TestEngine_UnsupportedSurfaceDisables(t *testing.T) {
	var buf bytes.Buffer
	log := logging.New(logging.LevelWarn)
	log.SetOutput(&buf)

	failing := func(int, int) (Surface, error) {
		return nil, raster.ErrUnsupported
	}
	e, _ := newTestEngine(t, DefaultConfig(), WithSurfaceFactory(failing), WithLogger(log))

	if _, ok := e.Start(80, 24, 1); ok {
		t.Fatal("Start succeeded without a surface")
	}
	if e.Enabled() || e.Running() {
		t.Error("engine still enabled")
	}
	if e.Frame(1, epoch) {
		t.Error("disabled engine rendered")
	}
	if e.Cells(80, 24) != nil {
		t.Error("disabled engine returned cells")
	}
	e.Resize(100, 30, 1, epoch)
	if _, ok := e.SetVisible(true); ok {
		t.Error("disabled engine resumed")
	}
	if !strings.Contains(buf.String(), "Sky disabled") {
		t.Errorf("missing warning, log = %q", buf.String())
	}
}

func TestEngine_OversizedResizeDisables(t *testing.T) {
	e, _ := newTestEngine(t, DefaultConfig())
	clock := NewManualClock(epoch)
	tok, _ := e.Start(80, 24, 1)

	e.Resize(5000, 5000, 1, clock.Now())
	clock.Advance(time.Second)
	if e.Frame(tok, clock.Now()) {
		t.Fatal("frame ran on an unsupported surface size")
	}
	if e.Enabled() {
		t.Error("engine still enabled")
	}
}

func TestEngine_InvalidConfigDisables(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Meteors.RampUp = 1.5

	e := New(cfg)
	if e.Enabled() {
		t.Fatal("invalid config produced an enabled engine")
	}
	if _, ok := e.Start(80, 24, 1); ok {
		t.Error("Start succeeded")
	}
	if e.StarCount() != 0 || e.ActiveMeteors() != 0 {
		t.Error("disabled engine reports a population")
	}
}

func TestEngine_CellsFromRaster(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Stars.BaseMin = 1
	cfg.Stars.BaseMax = 1
	cfg.Stars.Amplitude = 0
	cfg.Stars.RadiusMin = 1
	cfg.Stars.RadiusMax = 1

	e, _ := newTestEngine(t, cfg)
	clock := NewManualClock(epoch)
	tok, _ := e.Start(40, 12, 1)
	e.Simulate(context.Background(), clock, tok, 1, frameStep)

	cells := e.Cells(40, 12)
	if len(cells) != 40*12 {
		t.Fatalf("len(cells) = %d, want %d", len(cells), 40*12)
	}
	lit := 0
	for _, c := range cells {
		if c.Visible() {
			lit++
		}
	}
	if lit == 0 {
		t.Error("no visible cells after a frame")
	}
}

func TestEngine_SeededRunsAreReproducible(t *testing.T) {
	run := func() []Meteor {
		cfg := DefaultConfig()
		cfg.Meteors.IntervalMin = time.Second
		cfg.Meteors.IntervalMax = 2 * time.Second
		obs := &recordingObserver{}
		e := New(cfg, WithRand(NewRand(99)), WithObserver(obs),
			WithSurfaceFactory(recordingFactory(&recordingSurface{})))
		clock := NewManualClock(epoch)
		tok, _ := e.Start(100, 30, 1)
		e.Simulate(context.Background(), clock, tok, 60*15, frameStep)
		return obs.spawned
	}

	a, b := run(), run()
	if len(a) == 0 || len(a) != len(b) {
		t.Fatalf("spawn counts differ or are zero: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("spawn %d differs: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestFrameStats_SimTimeAccumulates(t *testing.T) {
	e, obs := newTestEngine(t, DefaultConfig(), WithSurfaceFactory(recordingFactory(&recordingSurface{})))
	clock := NewManualClock(epoch)
	tok, _ := e.Start(80, 24, 1)
	e.Simulate(context.Background(), clock, tok, 11, frameStep)

	if len(obs.frames) != 11 {
		t.Fatalf("frames = %d, want 11", len(obs.frames))
	}
	want := 10 * frameStep.Seconds()
	if got := e.SimTime(); got < want-1e-9 || got > want+1e-9 {
		t.Errorf("SimTime = %v, want %v", got, want)
	}
}

func TestEngine_SimulateStopsOnCancel(t *testing.T) {
	e, obs := newTestEngine(t, DefaultConfig(), WithSurfaceFactory(recordingFactory(&recordingSurface{})))
	clock := NewManualClock(epoch)
	tok, _ := e.Start(80, 24, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if n := e.Simulate(ctx, clock, tok, 1_000_000, frameStep); n != 0 {
		t.Errorf("Simulate() = %d frames after cancel, want 0", n)
	}
	if len(obs.frames) != 0 {
		t.Errorf("observer saw %d frames", len(obs.frames))
	}
	if !clock.Now().Equal(epoch) {
		t.Errorf("clock advanced to %v", clock.Now())
	}
}
