package state

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/litescript/ls-skyfield/internal/sky"
)

var epoch = time.Date(2025, 6, 1, 22, 0, 0, 0, time.UTC)

func newTestManager(cfg Config) (*Manager, *sky.ManualClock) {
	clock := sky.NewManualClock(epoch)
	cfg.Clock = clock
	return NewManager(cfg), clock
}

func TestNewManager(t *testing.T) {
	m := NewManager(DefaultConfig())

	if m == nil {
		t.Fatal("NewManager returned nil")
	}

	if m.HasFrames() {
		t.Error("HasFrames should be false initially")
	}

	snap := m.Snapshot()
	if snap.Events != nil || snap.FrameDTs != nil {
		t.Errorf("empty manager snapshot has data: %+v", snap)
	}
}

func TestManager_GeometryChanged(t *testing.T) {
	m, _ := newTestManager(DefaultConfig())

	m.GeometryChanged(sky.SurfaceState{ViewportWidth: 80, ViewportHeight: 24, DPR: 2, PixelWidth: 160, PixelHeight: 48}, 57)

	snap := m.Snapshot()
	if snap.Geometry.PixelWidth != 160 || snap.Stars != 57 {
		t.Errorf("snapshot geometry = %+v stars = %d", snap.Geometry, snap.Stars)
	}
	if snap.Counters.GeometryChanges != 1 {
		t.Errorf("GeometryChanges = %d, want 1", snap.Counters.GeometryChanges)
	}

	events := m.RecentEvents(10)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	e := events[0]
	if e.Type != EventGeometry || e.Width != 80 || e.Height != 24 || e.DPR != 2 || e.Stars != 57 {
		t.Errorf("event = %+v", e)
	}
	if !e.Timestamp.Equal(epoch) {
		t.Errorf("timestamp = %v, want %v", e.Timestamp, epoch)
	}
}

func TestManager_MeteorLifecycle(t *testing.T) {
	m, _ := newTestManager(DefaultConfig())

	m.MeteorSpawned(sky.Meteor{ID: 1})
	m.MeteorSpawned(sky.Meteor{ID: 2})
	m.MeteorSkipped(2, sky.SkipAtCap)
	m.MeteorRetired(sky.Meteor{ID: 1}, sky.RetireExpired)
	m.MeteorRetired(sky.Meteor{ID: 2}, sky.RetireOutOfBounds)

	snap := m.Snapshot()
	c := snap.Counters
	if c.Spawned != 2 || c.Skipped != 1 || c.RetiredExpired != 1 || c.RetiredOutside != 1 {
		t.Errorf("counters = %+v", c)
	}
	if snap.ActiveMeteors != 0 {
		t.Errorf("ActiveMeteors = %d, want 0", snap.ActiveMeteors)
	}
	if snap.PeakMeteors != 2 {
		t.Errorf("PeakMeteors = %d, want 2", snap.PeakMeteors)
	}

	wantTypes := []EventType{EventMeteorSpawned, EventMeteorSpawned, EventMeteorSkipped, EventMeteorRetired, EventMeteorRetired}
	if len(snap.Events) != len(wantTypes) {
		t.Fatalf("events = %d, want %d", len(snap.Events), len(wantTypes))
	}
	for i, want := range wantTypes {
		if snap.Events[i].Type != want {
			t.Errorf("event %d type = %q, want %q", i, snap.Events[i].Type, want)
		}
	}
	if snap.Events[2].Reason != "at_cap" {
		t.Errorf("skip reason = %q, want at_cap", snap.Events[2].Reason)
	}
	if snap.Events[3].Reason != "expired" || snap.Events[4].Reason != "out_of_bounds" {
		t.Errorf("retire reasons = %q, %q", snap.Events[3].Reason, snap.Events[4].Reason)
	}
}

func TestManager_LoopChanged(t *testing.T) {
	m, _ := newTestManager(DefaultConfig())

	m.LoopChanged(true)
	if !m.Snapshot().Running {
		t.Error("Running should be true after resume")
	}
	m.LoopChanged(false)
	m.LoopChanged(true)

	snap := m.Snapshot()
	if snap.Counters.Pauses != 1 || snap.Counters.Resumes != 2 {
		t.Errorf("pauses = %d resumes = %d, want 1 and 2", snap.Counters.Pauses, snap.Counters.Resumes)
	}
	last := snap.Events[len(snap.Events)-1]
	if last.Type != EventResumed {
		t.Errorf("last event = %q, want RESUMED", last.Type)
	}
}

func TestManager_FrameHistory(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxHistoryLen = 3
	m, clock := newTestManager(cfg)

	for i := 1; i <= 5; i++ {
		clock.Advance(16 * time.Millisecond)
		m.FrameRendered(sky.FrameStats{Frame: uint64(i), DT: float64(i) / 100, SimTime: float64(i)})
	}

	snap := m.Snapshot()
	want := []float64{0.03, 0.04, 0.05}
	if len(snap.FrameDTs) != len(want) {
		t.Fatalf("history length = %d, want %d", len(snap.FrameDTs), len(want))
	}
	for i := range want {
		if snap.FrameDTs[i] != want[i] {
			t.Errorf("FrameDTs = %v, want %v", snap.FrameDTs, want)
			break
		}
	}
	if snap.Counters.Frames != 5 || snap.SimTime != 5 {
		t.Errorf("frames = %d simTime = %v", snap.Counters.Frames, snap.SimTime)
	}
	if !snap.LastFrame.Equal(epoch.Add(80 * time.Millisecond)) {
		t.Errorf("LastFrame = %v", snap.LastFrame)
	}
	if !m.HasFrames() {
		t.Error("HasFrames should be true")
	}
}

func TestSnapshot_FPS(t *testing.T) {
	tests := []struct {
		name string
		dts  []float64
		fps  float64
		mean float64
	}{
		{"empty", nil, 0, 0},
		{"only resume frames", []float64{0, 0}, 0, 0},
		{"steady 50fps", []float64{0, 0.02, 0.02, 0.02}, 50, 0.015},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Snapshot{FrameDTs: tt.dts}
			if got := s.FPS(); got < tt.fps-1e-9 || got > tt.fps+1e-9 {
				t.Errorf("FPS() = %v, want %v", got, tt.fps)
			}
			if got := s.MeanDT(); got < tt.mean-1e-9 || got > tt.mean+1e-9 {
				t.Errorf("MeanDT() = %v, want %v", got, tt.mean)
			}
		})
	}
}

func TestManager_EventRingBuffer(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxEvents = 5
	m, clock := newTestManager(cfg)

	for i := 1; i <= 10; i++ {
		clock.Advance(time.Second)
		m.MeteorSpawned(sky.Meteor{ID: uint64(i)})
	}

	events := m.RecentEvents(100)
	if len(events) != 5 {
		t.Fatalf("events count = %d, want 5 (max)", len(events))
	}
	if events[0].MeteorID != 6 || events[4].MeteorID != 10 {
		t.Errorf("kept meteors %d..%d, want 6..10", events[0].MeteorID, events[4].MeteorID)
	}

	// Verify events are ordered chronologically
	for i := 1; i < len(events); i++ {
		if events[i].Timestamp.Before(events[i-1].Timestamp) {
			t.Errorf("events not in chronological order at index %d", i)
		}
	}

	recent := m.RecentEvents(2)
	if len(recent) != 2 || recent[1].MeteorID != 10 {
		t.Errorf("RecentEvents(2) = %+v", recent)
	}
}

func TestManager_Snapshot_IsCopy(t *testing.T) {
	m, _ := newTestManager(DefaultConfig())
	m.MeteorSpawned(sky.Meteor{ID: 1})
	m.FrameRendered(sky.FrameStats{Frame: 1, DT: 0.016})

	snap := m.Snapshot()
	snap.Events[0].MeteorID = 999
	snap.FrameDTs[0] = 999

	snap2 := m.Snapshot()
	if snap2.Events[0].MeteorID == 999 || snap2.FrameDTs[0] == 999 {
		t.Error("Snapshot modification affected manager state")
	}
}

func TestManager_EventsCarrySimTime(t *testing.T) {
	m, _ := newTestManager(DefaultConfig())
	m.FrameRendered(sky.FrameStats{Frame: 1, SimTime: 12.5})
	m.MeteorSpawned(sky.Meteor{ID: 3})

	if got := m.RecentEvents(1)[0].SimTime; got != 12.5 {
		t.Errorf("SimTime = %v, want 12.5", got)
	}
}

func TestManager_ObservesEngine(t *testing.T) {
	cfg := sky.DefaultConfig()
	cfg.Meteors.IntervalMin = 500 * time.Millisecond
	cfg.Meteors.IntervalMax = time.Second

	clock := sky.NewManualClock(epoch)
	m := NewManager(Config{MaxEvents: 500, Clock: clock})
	e := sky.New(cfg, sky.WithRand(sky.NewRand(5)), sky.WithObserver(m))

	tok, ok := e.Start(100, 30, 1)
	if !ok {
		t.Fatal("Start failed")
	}
	e.Simulate(context.Background(), clock, tok, 60*10, 16*time.Millisecond)

	snap := m.Snapshot()
	if snap.Counters.Frames != 600 {
		t.Errorf("Frames = %d, want 600", snap.Counters.Frames)
	}
	if snap.Stars != e.StarCount() {
		t.Errorf("Stars = %d, want %d", snap.Stars, e.StarCount())
	}
	st := e.SpawnStats()
	if snap.Counters.Spawned != st.Spawned || snap.Counters.Skipped != st.Skipped {
		t.Errorf("counters %+v disagree with engine %+v", snap.Counters, st)
	}
	if snap.ActiveMeteors != e.ActiveMeteors() {
		t.Errorf("ActiveMeteors = %d, want %d", snap.ActiveMeteors, e.ActiveMeteors())
	}
	if got := snap.Counters.RetiredExpired + snap.Counters.RetiredOutside; got != st.Retired {
		t.Errorf("retired = %d, want %d", got, st.Retired)
	}
}

func TestManager_ConcurrentAccess(t *testing.T) {
	m := NewManager(DefaultConfig())

	var wg sync.WaitGroup
	iterations := 100

	// Writer goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < iterations; i++ {
			m.FrameRendered(sky.FrameStats{Frame: uint64(i), DT: 0.016})
			m.MeteorSpawned(sky.Meteor{ID: uint64(i)})
			m.MeteorRetired(sky.Meteor{ID: uint64(i)}, sky.RetireExpired)
		}
	}()

	// Reader goroutines
	for r := 0; r < 5; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < iterations; i++ {
				_ = m.Snapshot()
				_ = m.HasFrames()
				_ = m.RecentEvents(5)
			}
		}()
	}

	wg.Wait()
}
