package sky

import (
	"math"

	"github.com/litescript/ls-skyfield/internal/raster"
)

// RetireReason says why a meteor left the active set.
type RetireReason int

const (
	RetireExpired     RetireReason = iota // age reached ttl
	RetireOutOfBounds                     // left the surface past the margin
)

func (r RetireReason) String() string {
	switch r {
	case RetireExpired:
		return "expired"
	case RetireOutOfBounds:
		return "out_of_bounds"
	default:
		return "unknown"
	}
}

// SkipReason says why a spawn attempt created nothing.
type SkipReason int

const (
	SkipAtCap        SkipReason = iota // MaxActive meteors already in flight
	SkipEmptySurface                   // zero-area surface, nowhere to spawn
)

func (r SkipReason) String() string {
	switch r {
	case SkipAtCap:
		return "at_cap"
	case SkipEmptySurface:
		return "empty_surface"
	default:
		return "unknown"
	}
}

// MeteorPhase is the lifecycle stage derived from age/ttl.
type MeteorPhase int

const (
	MeteorRising  MeteorPhase = iota // alpha ramping up
	MeteorFading                     // alpha ramping down
	MeteorRetired                    // age >= ttl
)

func (p MeteorPhase) String() string {
	switch p {
	case MeteorRising:
		return "rising"
	case MeteorFading:
		return "fading"
	case MeteorRetired:
		return "retired"
	default:
		return "unknown"
	}
}

// Meteor is a transient streak. Positions, velocities and trail are in
// surface pixels; Age and TTL in simulated seconds.
type Meteor struct {
	ID     uint64
	X, Y   float64
	VX, VY float64
	Trail  float64
	Age    float64
	TTL    float64
	RampUp float64
}

// Progress returns age/ttl.
func (m Meteor) Progress() float64 {
	if m.TTL <= 0 {
		return 1
	}
	return m.Age / m.TTL
}

// Alpha returns the fade envelope: 0 at spawn, 1 at the end of the ramp-up,
// back to 0 at ttl.
func (m Meteor) Alpha() float64 {
	p := m.Progress()
	switch {
	case p <= 0 || p >= 1:
		return 0
	case p < m.RampUp:
		return clamp01(p / m.RampUp)
	default:
		return clamp01((1 - p) / (1 - m.RampUp))
	}
}

// Phase returns the lifecycle stage.
func (m Meteor) Phase() MeteorPhase {
	p := m.Progress()
	switch {
	case p >= 1:
		return MeteorRetired
	case p < m.RampUp:
		return MeteorRising
	default:
		return MeteorFading
	}
}

// SpawnStats counts scheduling outcomes.
type SpawnStats struct {
	Attempts int
	Spawned  int
	Skipped  int
	Retired  int
}

// MeteorSpawner owns the active meteor set and its schedule. Time is
// simulated seconds supplied by the render loop.
type MeteorSpawner struct {
	cfg     MeteorConfig
	reduced bool
	rng     Rand
	obs     Observer
	state   SurfaceState
	trail   raster.Gradient

	active      []Meteor
	nextSpawnAt float64
	nextID      uint64
	stats       SpawnStats
}

// NewMeteorSpawner creates a spawner and arms the first spawn after now.
func NewMeteorSpawner(cfg MeteorConfig, reduced bool, rng Rand, obs Observer, now float64) *MeteorSpawner {
	if obs == nil {
		obs = NopObserver{}
	}
	s := &MeteorSpawner{
		cfg:     cfg,
		reduced: reduced,
		rng:     rng,
		obs:     obs,
		active:  make([]Meteor, 0, max(cfg.MaxActive, 0)),
		trail: raster.Gradient{
			{Offset: 0, Color: cfg.HeadColor, Alpha: 0.9},
			{Offset: 0.5, Color: cfg.TailColor, Alpha: 0.55},
			{Offset: 1, Color: cfg.TailColor, Alpha: 0},
		},
	}
	s.schedule(now)
	return s
}

// SetGeometry updates the spawn and cull bounds. Meteors in flight are
// rescaled when the DPR changes so they keep their logical position.
func (s *MeteorSpawner) SetGeometry(state SurfaceState) {
	if s.state.DPR > 0 && state.DPR > 0 && state.DPR != s.state.DPR {
		k := state.DPR / s.state.DPR
		for i := range s.active {
			m := &s.active[i]
			m.X *= k
			m.Y *= k
			m.VX *= k
			m.VY *= k
			m.Trail *= k
		}
	}
	s.state = state
}

// NextSpawnAt returns the simulated time of the next spawn attempt.
func (s *MeteorSpawner) NextSpawnAt() float64 {
	return s.nextSpawnAt
}

// Active returns the number of meteors in flight.
func (s *MeteorSpawner) Active() int {
	return len(s.active)
}

// Stats returns the scheduling counters.
func (s *MeteorSpawner) Stats() SpawnStats {
	return s.stats
}

func (s *MeteorSpawner) schedule(now float64) {
	s.nextSpawnAt = now + uniform(s.rng, s.cfg.IntervalMin.Seconds(), s.cfg.IntervalMax.Seconds())
}

// Tick makes at most one spawn attempt when now has reached the scheduled
// time. An attempt at the cap is skipped but still re-arms the schedule.
// Reports whether a meteor was created.
func (s *MeteorSpawner) Tick(now float64) bool {
	if s.reduced || now < s.nextSpawnAt {
		return false
	}

	s.stats.Attempts++
	s.schedule(now)

	switch {
	case len(s.active) >= s.cfg.MaxActive:
		s.skip(SkipAtCap)
		return false
	case s.state.Empty():
		s.skip(SkipEmptySurface)
		return false
	}

	m := s.spawn()
	s.active = append(s.active, m)
	s.stats.Spawned++
	s.obs.MeteorSpawned(m)
	return true
}

func (s *MeteorSpawner) skip(reason SkipReason) {
	s.stats.Skipped++
	s.obs.MeteorSkipped(len(s.active), reason)
}

func (s *MeteorSpawner) spawn() Meteor {
	dpr := s.state.DPR
	w := float64(s.state.PixelWidth)
	h := float64(s.state.PixelHeight)
	r := s.cfg.SpawnRegion

	angle := uniform(s.rng, s.cfg.AngleMin, s.cfg.AngleMax)
	speed := uniform(s.rng, s.cfg.SpeedMin, s.cfg.SpeedMax) * dpr

	s.nextID++
	return Meteor{
		ID:     s.nextID,
		X:      uniform(s.rng, r.XMin, r.XMax) * w,
		Y:      uniform(s.rng, r.YMin, r.YMax) * h,
		VX:     math.Cos(angle) * speed,
		VY:     math.Sin(angle) * speed,
		Trail:  uniform(s.rng, s.cfg.TrailMin, s.cfg.TrailMax) * dpr,
		TTL:    uniform(s.rng, s.cfg.TTLMin.Seconds(), s.cfg.TTLMax.Seconds()),
		RampUp: s.cfg.RampUp,
	}
}

// Advance integrates every meteor by dt seconds and culls the ones that
// expired or left the surface.
func (s *MeteorSpawner) Advance(dt float64) {
	kept := s.active[:0]
	for _, m := range s.active {
		m.X += m.VX * dt
		m.Y += m.VY * dt
		m.Age += dt

		if reason, gone := s.retire(m); gone {
			s.stats.Retired++
			s.obs.MeteorRetired(m, reason)
			continue
		}
		kept = append(kept, m)
	}
	clear(s.active[len(kept):])
	s.active = kept
}

func (s *MeteorSpawner) retire(m Meteor) (RetireReason, bool) {
	if m.Age >= m.TTL {
		return RetireExpired, true
	}

	margin := s.cfg.Margin * s.state.DPR
	w := float64(s.state.PixelWidth)
	h := float64(s.state.PixelHeight)
	if m.X < -margin || m.X > w+margin || m.Y < -margin || m.Y > h+margin {
		return RetireOutOfBounds, true
	}
	return 0, false
}

// Render draws each meteor as a gradient trail behind a bright head.
func (s *MeteorSpawner) Render(ctx Context) {
	if len(s.active) == 0 {
		return
	}
	dpr := s.state.DPR
	ctx.SetComposite(raster.CompositeSourceOver)

	for _, m := range s.active {
		a := m.Alpha()
		speed := math.Hypot(m.VX, m.VY)
		if a <= 0 || speed == 0 {
			continue
		}
		tx := m.X - m.VX/speed*m.Trail
		ty := m.Y - m.VY/speed*m.Trail
		ctx.StrokeGradient(m.X, m.Y, tx, ty, s.cfg.Width*dpr, s.trail.Scale(a))
		ctx.FillCircle(m.X, m.Y, s.cfg.HeadRadius*dpr, s.cfg.HeadColor, a)
	}
}
