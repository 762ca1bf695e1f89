// Package ui provides the terminal user interface using Bubble Tea.
package ui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/lucasb-eyer/go-colorful"

	"github.com/litescript/ls-skyfield/internal/sky"
	"github.com/litescript/ls-skyfield/internal/state"
	"github.com/litescript/ls-skyfield/internal/version"
)

// footerHeight is the number of rows reserved below the sky.
const footerHeight = 1

// Msg types for Bubble Tea
type (
	// frameMsg asks the engine to render one frame for a loop run.
	frameMsg struct {
		token sky.FrameToken
	}
)

// Options configures the UI model.
type Options struct {
	FrameInterval time.Duration
	DPR           float64
	Clock         sky.Clock
}

// Model is the root Bubble Tea model.
type Model struct {
	// Dependencies
	engine *sky.Engine
	state  *state.Manager
	clock  sky.Clock

	// Frame scheduling
	interval time.Duration
	dpr      float64
	token    sky.FrameToken

	// UI state
	width     int
	height    int
	ready     bool
	showStats bool
	paused    bool // paused by the user, independent of focus
	blurred   bool
	skyView   SkyViewModel
}

// New creates a new root UI model.
func New(engine *sky.Engine, stateMgr *state.Manager, opts Options) Model {
	if opts.FrameInterval <= 0 {
		opts.FrameInterval = time.Second / 30
	}
	if opts.DPR <= 0 {
		opts.DPR = 1
	}
	if opts.Clock == nil {
		opts.Clock = sky.SystemClock{}
	}
	return Model{
		engine:   engine,
		state:    stateMgr,
		clock:    opts.Clock,
		interval: opts.FrameInterval,
		dpr:      opts.DPR,
		skyView:  NewSkyViewModel(engine),
	}
}

// Init implements tea.Model. The first frame is scheduled once the initial
// window size arrives.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "i":
			m.showStats = !m.showStats
		case "p", " ":
			m.paused = !m.paused
			return m, m.syncVisibility()
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		skyRows := max(msg.Height-footerHeight, 0)
		m.skyView = m.skyView.SetSize(msg.Width, skyRows)

		if !m.ready {
			m.ready = true
			if tok, ok := m.engine.Start(msg.Width, skyRows, m.dpr); ok {
				m.token = tok
				return m, m.frameCmd(tok)
			}
			return m, nil
		}
		m.engine.Resize(msg.Width, skyRows, m.dpr, m.clock.Now())

	case tea.FocusMsg:
		m.blurred = false
		return m, m.syncVisibility()

	case tea.BlurMsg:
		m.blurred = true
		return m, m.syncVisibility()

	case frameMsg:
		// Frames from a cancelled run are dropped here
		if m.engine.Frame(msg.token, m.clock.Now()) {
			return m, m.frameCmd(msg.token)
		}
	}

	return m, nil
}

// syncVisibility pauses or resumes the engine loop from focus and the
// user's pause toggle.
func (m *Model) syncVisibility() tea.Cmd {
	visible := !m.blurred && !m.paused
	if tok, ok := m.engine.SetVisible(visible); ok {
		m.token = tok
		return m.frameCmd(tok)
	}
	return nil
}

func (m Model) frameCmd(token sky.FrameToken) tea.Cmd {
	// Update reads m.clock rather than the tick time so frames and resizes
	// share one time base.
	return tea.Tick(m.interval, func(time.Time) tea.Msg {
		return frameMsg{token: token}
	})
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}
	return m.skyView.View() + "\n" + m.renderFooter()
}

func (m Model) renderFooter() string {
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("60"))
	accentStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#15C3FF"))
	warnStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#E84A27"))

	title := renderTitle(fmt.Sprintf(" ls-skyfield v%s ", version.Version))

	var status string
	switch {
	case !m.engine.Enabled():
		status = warnStyle.Render("sky disabled")
	case m.paused:
		status = dimStyle.Render("paused")
	case !m.engine.Running():
		status = dimStyle.Render("hidden")
	case m.engine.ReducedMotion():
		status = accentStyle.Render("●") + dimStyle.Render(" reduced motion")
	default:
		status = accentStyle.Render("●") + dimStyle.Render(" live")
	}

	var info string
	if m.showStats && m.state != nil {
		info = dimStyle.Render(m.renderStats(m.state.Snapshot()))
	} else {
		info = dimStyle.Render("p: pause | i: stats | q: quit")
	}

	footer := title + "  " + status + "  " + dimStyle.Render("|") + "  " + info
	if w := lipgloss.Width(footer); m.width > 0 && w > m.width {
		footer = lipgloss.NewStyle().MaxWidth(m.width).Render(footer)
	}
	return footer
}

func (m Model) renderStats(snap state.Snapshot) string {
	g := snap.Geometry
	c := snap.Counters
	parts := []string{
		fmt.Sprintf("%dx%d@%.1fx", g.ViewportWidth, g.ViewportHeight, g.DPR),
		fmt.Sprintf("%.0f fps", snap.FPS()),
		fmt.Sprintf("%d stars", snap.Stars),
		fmt.Sprintf("meteors %d/%d", snap.ActiveMeteors, snap.PeakMeteors),
		fmt.Sprintf("spawned %d skipped %d", c.Spawned, c.Skipped),
	}
	return strings.Join(parts, " · ")
}

// Title gradient endpoints: meteor head white into the tail cyan.
var (
	titleFrom = colorful.Color{R: 0xcf / 255.0, G: 0xe1 / 255.0, B: 1}
	titleTo   = colorful.Color{R: 21 / 255.0, G: 195 / 255.0, B: 1}
)

// renderTitle renders text with a horizontal truecolor gradient.
func renderTitle(text string) string {
	runes := []rune(text)
	var b strings.Builder
	for i, r := range runes {
		t := 0.0
		if len(runes) > 1 {
			t = float64(i) / float64(len(runes)-1)
		}
		c := titleFrom.BlendLab(titleTo, t).Clamped()
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(c.Hex())).Bold(true)
		b.WriteString(style.Render(string(r)))
	}
	return b.String()
}
