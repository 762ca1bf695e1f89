// Package state provides thread-safe telemetry for the sky engine.
package state

import (
	"sync"
	"time"

	"github.com/litescript/ls-skyfield/internal/sky"
)

// EventType represents the type of engine event.
type EventType string

const (
	EventMeteorSpawned EventType = "METEOR_SPAWNED"
	EventMeteorSkipped EventType = "METEOR_SKIPPED"
	EventMeteorRetired EventType = "METEOR_RETIRED"
	EventGeometry      EventType = "GEOMETRY"
	EventPaused        EventType = "PAUSED"
	EventResumed       EventType = "RESUMED"
)

// Event represents a notable change in the engine.
type Event struct {
	Type      EventType `json:"type" msgpack:"type"`
	Timestamp time.Time `json:"timestamp" msgpack:"timestamp"`
	SimTime   float64   `json:"sim_time" msgpack:"sim_time"`
	MeteorID  uint64    `json:"meteor_id,omitempty" msgpack:"meteor_id,omitempty"`
	Reason    string    `json:"reason,omitempty" msgpack:"reason,omitempty"`
	Active    int       `json:"active,omitempty" msgpack:"active,omitempty"`
	Width     int       `json:"width,omitempty" msgpack:"width,omitempty"`
	Height    int       `json:"height,omitempty" msgpack:"height,omitempty"`
	DPR       float64   `json:"dpr,omitempty" msgpack:"dpr,omitempty"`
	Stars     int       `json:"stars,omitempty" msgpack:"stars,omitempty"`
}

// Counters accumulates engine activity since the manager was created.
type Counters struct {
	Frames          uint64 `json:"frames" msgpack:"frames"`
	Spawned         int    `json:"spawned" msgpack:"spawned"`
	Skipped         int    `json:"skipped" msgpack:"skipped"`
	RetiredExpired  int    `json:"retired_expired" msgpack:"retired_expired"`
	RetiredOutside  int    `json:"retired_out_of_bounds" msgpack:"retired_out_of_bounds"`
	GeometryChanges int    `json:"geometry_changes" msgpack:"geometry_changes"`
	Pauses          int    `json:"pauses" msgpack:"pauses"`
	Resumes         int    `json:"resumes" msgpack:"resumes"`
}

var _ sky.Observer = (*Manager)(nil)

// Manager records engine telemetry with thread-safe access. It implements
// sky.Observer; hosts read snapshots from any goroutine.
type Manager struct {
	mu sync.RWMutex

	clock sky.Clock

	// Current state
	geometry   sky.SurfaceState
	stars      int
	active     int
	running    bool
	simTime    float64
	lastFrame  time.Time
	counters   Counters
	peakActive int

	// Frame dt history (ring buffer, seconds)
	dts       []float64
	maxDTs    int
	dtWriteAt int

	// Event log (ring buffer)
	events       []Event
	maxEvents    int
	eventWriteAt int
}

// Config holds configuration for the state manager.
type Config struct {
	MaxHistoryLen int
	MaxEvents     int
	Clock         sky.Clock
}

// DefaultConfig returns sensible default configuration.
func DefaultConfig() Config {
	return Config{
		MaxHistoryLen: 120, // ~2 seconds at 60 fps
		MaxEvents:     50,
	}
}

// NewManager creates a new state manager.
func NewManager(cfg Config) *Manager {
	maxEvents := cfg.MaxEvents
	if maxEvents <= 0 {
		maxEvents = 50
	}
	maxDTs := cfg.MaxHistoryLen
	if maxDTs <= 0 {
		maxDTs = 120
	}
	clock := cfg.Clock
	if clock == nil {
		clock = sky.SystemClock{}
	}
	return &Manager{
		clock:     clock,
		maxDTs:    maxDTs,
		dts:       make([]float64, 0, maxDTs),
		maxEvents: maxEvents,
		events:    make([]Event, 0, maxEvents),
	}
}

// GeometryChanged records a surface reconfiguration.
func (m *Manager) GeometryChanged(s sky.SurfaceState, stars int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.geometry = s
	m.stars = stars
	m.counters.GeometryChanges++
	m.addEvent(Event{
		Type:   EventGeometry,
		Width:  s.ViewportWidth,
		Height: s.ViewportHeight,
		DPR:    s.DPR,
		Stars:  stars,
	})
}

// MeteorSpawned records a new meteor.
func (m *Manager) MeteorSpawned(mt sky.Meteor) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.counters.Spawned++
	m.active++
	m.peakActive = max(m.peakActive, m.active)
	m.addEvent(Event{Type: EventMeteorSpawned, MeteorID: mt.ID, Active: m.active})
}

// MeteorSkipped records a spawn attempt that created nothing.
func (m *Manager) MeteorSkipped(active int, reason sky.SkipReason) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.counters.Skipped++
	m.addEvent(Event{Type: EventMeteorSkipped, Reason: reason.String(), Active: active})
}

// MeteorRetired records a meteor leaving the active set.
func (m *Manager) MeteorRetired(mt sky.Meteor, reason sky.RetireReason) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch reason {
	case sky.RetireExpired:
		m.counters.RetiredExpired++
	case sky.RetireOutOfBounds:
		m.counters.RetiredOutside++
	}
	m.active = max(m.active-1, 0)
	m.addEvent(Event{Type: EventMeteorRetired, MeteorID: mt.ID, Reason: reason.String(), Active: m.active})
}

// FrameRendered records per-frame stats.
func (m *Manager) FrameRendered(f sky.FrameStats) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.counters.Frames = f.Frame
	m.simTime = f.SimTime
	m.stars = f.Stars
	m.active = f.ActiveMeteors
	m.lastFrame = m.clock.Now()

	if len(m.dts) < m.maxDTs {
		m.dts = append(m.dts, f.DT)
	} else {
		m.dts[m.dtWriteAt] = f.DT
		m.dtWriteAt = (m.dtWriteAt + 1) % m.maxDTs
	}
}

// LoopChanged records a pause or resume.
func (m *Manager) LoopChanged(running bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.running = running
	if running {
		m.counters.Resumes++
		m.addEvent(Event{Type: EventResumed})
		return
	}
	m.counters.Pauses++
	m.addEvent(Event{Type: EventPaused})
}

// addEvent stamps e and adds it to the ring buffer.
func (m *Manager) addEvent(e Event) {
	e.Timestamp = m.clock.Now()
	e.SimTime = m.simTime
	if len(m.events) < m.maxEvents {
		m.events = append(m.events, e)
	} else {
		m.events[m.eventWriteAt] = e
		m.eventWriteAt = (m.eventWriteAt + 1) % m.maxEvents
	}
}

// Snapshot represents an immutable snapshot of current state.
type Snapshot struct {
	Geometry      sky.SurfaceState
	Stars         int
	ActiveMeteors int
	PeakMeteors   int
	Running       bool
	SimTime       float64
	LastFrame     time.Time
	Counters      Counters
	FrameDTs      []float64
	Events        []Event
}

// MeanDT returns the average dt over the history window, in seconds.
func (s Snapshot) MeanDT() float64 {
	if len(s.FrameDTs) == 0 {
		return 0
	}
	var sum float64
	for _, dt := range s.FrameDTs {
		sum += dt
	}
	return sum / float64(len(s.FrameDTs))
}

// FPS estimates frames per second from the dt history. Zero-dt frames
// (first frame after a resume) are ignored.
func (s Snapshot) FPS() float64 {
	var sum float64
	n := 0
	for _, dt := range s.FrameDTs {
		if dt > 0 {
			sum += dt
			n++
		}
	}
	if n == 0 || sum == 0 {
		return 0
	}
	return float64(n) / sum
}

// Snapshot returns a consistent snapshot of current state.
func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return Snapshot{
		Geometry:      m.geometry,
		Stars:         m.stars,
		ActiveMeteors: m.active,
		PeakMeteors:   m.peakActive,
		Running:       m.running,
		SimTime:       m.simTime,
		LastFrame:     m.lastFrame,
		Counters:      m.counters,
		FrameDTs:      m.getDTsOrdered(),
		Events:        m.getEventsOrdered(),
	}
}

func (m *Manager) getDTsOrdered() []float64 {
	if len(m.dts) == 0 {
		return nil
	}
	result := make([]float64, len(m.dts))
	if len(m.dts) < m.maxDTs {
		copy(result, m.dts)
		return result
	}
	for i := 0; i < m.maxDTs; i++ {
		result[i] = m.dts[(m.dtWriteAt+i)%m.maxDTs]
	}
	return result
}

// getEventsOrdered returns events in chronological order.
func (m *Manager) getEventsOrdered() []Event {
	if len(m.events) == 0 {
		return nil
	}

	// If buffer isn't full yet, just copy
	if len(m.events) < m.maxEvents {
		result := make([]Event, len(m.events))
		copy(result, m.events)
		return result
	}

	// Ring buffer is full, reorder from oldest to newest
	result := make([]Event, m.maxEvents)
	for i := 0; i < m.maxEvents; i++ {
		idx := (m.eventWriteAt + i) % m.maxEvents
		result[i] = m.events[idx]
	}
	return result
}

// RecentEvents returns the last n events.
func (m *Manager) RecentEvents(n int) []Event {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all := m.getEventsOrdered()
	if len(all) <= n {
		return all
	}
	return all[len(all)-n:]
}

// HasFrames returns true once at least one frame has been rendered.
func (m *Manager) HasFrames() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.counters.Frames > 0
}
