package sky

import "time"

// FrameToken identifies one run of the render loop. Pausing invalidates the
// current token, so frames already scheduled with it are dropped.
type FrameToken uint64

// Loop tracks whether frames should run and the dt between them.
type Loop struct {
	maxDT   time.Duration
	running bool
	token   FrameToken
	last    time.Time
	hasLast bool
	frames  uint64
}

// NewLoop creates a stopped loop clamping dt to maxDT.
func NewLoop(maxDT time.Duration) Loop {
	return Loop{maxDT: maxDT}
}

// Start begins a new run with a fresh dt baseline.
func (l *Loop) Start() FrameToken {
	l.token++
	l.running = true
	l.hasLast = false
	return l.token
}

// Stop cancels the current run.
func (l *Loop) Stop() {
	l.running = false
	l.token++
}

// Running reports whether a run is active.
func (l *Loop) Running() bool {
	return l.running
}

// Frames returns the number of frames stepped so far.
func (l *Loop) Frames() uint64 {
	return l.frames
}

// Step validates token and returns the clamped dt in seconds for a frame at
// now. The first frame of a run has dt 0.
func (l *Loop) Step(token FrameToken, now time.Time) (float64, bool) {
	if !l.running || token != l.token {
		return 0, false
	}

	var dt time.Duration
	if l.hasLast {
		dt = now.Sub(l.last)
		if dt < 0 {
			dt = 0
		}
		if dt > l.maxDT {
			dt = l.maxDT
		}
	}
	l.last = now
	l.hasLast = true
	l.frames++
	return dt.Seconds(), true
}
