package sky

// FrameStats describes one rendered frame.
type FrameStats struct {
	Frame         uint64
	DT            float64 // clamped seconds
	SimTime       float64
	Stars         int
	ActiveMeteors int
}

// Observer receives engine telemetry. Calls happen on the goroutine that
// drives the engine; meteors are passed by value.
type Observer interface {
	GeometryChanged(state SurfaceState, stars int)
	MeteorSpawned(m Meteor)
	MeteorSkipped(active int, reason SkipReason)
	MeteorRetired(m Meteor, reason RetireReason)
	FrameRendered(f FrameStats)
	LoopChanged(running bool)
}

// NopObserver ignores everything.
type NopObserver struct{}

func (NopObserver) GeometryChanged(SurfaceState, int) {}
func (NopObserver) MeteorSpawned(Meteor) {}
func (NopObserver) MeteorSkipped(int, SkipReason) {}
func (NopObserver) MeteorRetired(Meteor, RetireReason) {}
func (NopObserver) FrameRendered(FrameStats) {}
func (NopObserver) LoopChanged(bool) {}
