// Package tcellhost drives the sky engine on a raw tcell screen.
package tcellhost

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"
	"golang.org/x/sync/errgroup"

	"github.com/litescript/ls-skyfield/internal/logging"
	"github.com/litescript/ls-skyfield/internal/sky"
)

// Screen is the part of tcell.Screen the host needs.
type Screen interface {
	Init() error
	Fini()
	Size() (int, int)
	PollEvent() tcell.Event
	SetContent(x, y int, primary rune, combining []rune, style tcell.Style)
	Show()
	Clear()
	EnableFocus()
}

var _ Screen = tcell.Screen(nil)

// errQuit stops the errgroup when the user asks to leave.
var errQuit = errors.New("quit")

// Options configures a Host.
type Options struct {
	FrameInterval time.Duration
	DPR           float64
	Clock         sky.Clock
	Logger        *logging.Logger
}

// Host owns the screen and runs the engine's frame loop against it.
// Events and frames are handled on one goroutine; a second goroutine only
// forwards PollEvent results.
type Host struct {
	screen   Screen
	engine   *sky.Engine
	clock    sky.Clock
	log      *logging.Logger
	interval time.Duration
	dpr      float64

	token   sky.FrameToken
	running bool
	started bool
	paused  bool
	blurred bool
}

// New creates a host. The screen is initialized by Run.
func New(screen Screen, engine *sky.Engine, opts Options) *Host {
	if opts.FrameInterval <= 0 {
		opts.FrameInterval = time.Second / 30
	}
	if opts.DPR <= 0 {
		opts.DPR = 1
	}
	if opts.Clock == nil {
		opts.Clock = sky.SystemClock{}
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	return &Host{
		screen:   screen,
		engine:   engine,
		clock:    opts.Clock,
		log:      opts.Logger,
		interval: opts.FrameInterval,
		dpr:      opts.DPR,
	}
}

// NewScreen opens the terminal screen.
func NewScreen() (Screen, error) {
	s, err := tcell.NewScreen()
	if err != nil {
		return nil, fmt.Errorf("failed to create screen: %w", err)
	}
	return s, nil
}

// Run blocks until the user quits or ctx is cancelled. The screen is
// finalized before Run returns.
func (h *Host) Run(ctx context.Context) error {
	if err := h.screen.Init(); err != nil {
		return fmt.Errorf("failed to init screen: %w", err)
	}
	h.screen.EnableFocus()

	events := make(chan tcell.Event, 64)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return h.poll(gctx, events)
	})
	g.Go(func() error {
		// Fini unblocks PollEvent in the poller
		defer h.screen.Fini()
		return h.loop(gctx, events)
	})

	err := g.Wait()
	if errors.Is(err, errQuit) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (h *Host) poll(ctx context.Context, events chan<- tcell.Event) error {
	for {
		ev := h.screen.PollEvent()
		if ev == nil {
			return nil
		}
		select {
		case events <- ev:
		case <-ctx.Done():
			return nil
		}
	}
}

func (h *Host) loop(ctx context.Context, events <-chan tcell.Event) error {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	// Some terminals never send an initial resize
	w, hgt := h.screen.Size()
	h.resize(w, hgt)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev := <-events:
			if !h.handleEvent(ev) {
				return errQuit
			}

		case <-ticker.C:
			if !h.running {
				continue
			}
			if !h.engine.Frame(h.token, h.clock.Now()) {
				h.running = false
				continue
			}
			h.draw()
		}
	}
}

// handleEvent applies one terminal event. Returns false to quit.
func (h *Host) handleEvent(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC {
			return false
		}
		if ev.Key() == tcell.KeyRune {
			switch ev.Rune() {
			case 'q':
				return false
			case 'p', ' ':
				h.paused = !h.paused
				h.syncVisibility()
			}
		}

	case *tcell.EventResize:
		w, hgt := ev.Size()
		h.resize(w, hgt)

	case *tcell.EventFocus:
		h.blurred = !ev.Focused
		h.syncVisibility()
	}
	return true
}

func (h *Host) resize(width, height int) {
	if !h.started {
		h.started = true
		if tok, ok := h.engine.Start(width, height, h.dpr); ok {
			h.token = tok
			h.running = true
		} else {
			h.log.Warn("Sky not started (%dx%d)", width, height)
		}
		return
	}
	h.engine.Resize(width, height, h.dpr, h.clock.Now())
}

func (h *Host) syncVisibility() {
	visible := !h.blurred && !h.paused
	if tok, ok := h.engine.SetVisible(visible); ok {
		h.token = tok
		h.running = true
		return
	}
	if !visible {
		h.running = false
	}
}

// draw copies the engine's last frame onto the screen.
func (h *Host) draw() {
	cols, rows := h.screen.Size()
	h.screen.Clear()
	cells := h.engine.Cells(cols, rows)
	if len(cells) < cols*rows {
		h.screen.Show()
		return
	}
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			c := cells[y*cols+x]
			g := c.Glyph()
			if g == ' ' {
				continue
			}
			r, gr, b := c.Display().RGB255()
			style := tcell.StyleDefault.Foreground(tcell.NewRGBColor(int32(r), int32(gr), int32(b)))
			h.screen.SetContent(x, y, g, nil, style)
		}
	}
	h.screen.Show()
}
