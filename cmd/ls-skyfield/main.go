// Command ls-skyfield renders an animated star field with meteors in the terminal.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/litescript/ls-skyfield/internal/config"
	"github.com/litescript/ls-skyfield/internal/logging"
	"github.com/litescript/ls-skyfield/internal/report"
	"github.com/litescript/ls-skyfield/internal/sky"
	"github.com/litescript/ls-skyfield/internal/state"
	"github.com/litescript/ls-skyfield/internal/tcellhost"
	"github.com/litescript/ls-skyfield/internal/ui"
	"github.com/litescript/ls-skyfield/internal/version"
)

// CLI flags for headless mode
var (
	summaryMode    bool
	snapshotPath   string
	snapshotFormat string
	miniSkyMode    bool
	eventsMode     bool
	frames         int
	width          int
	height         int
)

const (
	defaultFrames = 600
	maxFrames     = 1_000_000
	eventsShown   = 20
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Parse flags
	configPath := flag.String("config", "", "Path to YAML config file")
	logLevel := flag.String("log-level", "", "Log level (debug, info, warn, error)")
	logFile := flag.String("log-file", "", "Write logs to file (TUI logs are discarded otherwise)")
	fps := flag.Int("fps", 0, "Target frames per second")
	seed := flag.Uint64("seed", 0, "Random seed (0 picks one)")
	reducedMotion := flag.Bool("reduced-motion", false, "Static twinkle, no meteors")
	backend := flag.String("backend", "tea", "Terminal host (tea, tcell)")
	dpr := flag.Float64("dpr", 1, "Pixels per terminal cell")
	dumpConfig := flag.Bool("dump-config", false, "Print effective config as YAML and exit")
	writeConfig := flag.String("write-config", "", "Write effective config to a YAML file and exit")
	showSnapshot := flag.String("show-snapshot", "", "Print a msgpack snapshot file as JSON and exit")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.BoolVar(&summaryMode, "summary", false, "Print text summary instead of TUI")
	flag.StringVar(&snapshotPath, "snapshot-path", "", "Export snapshot to file (use - for stdout)")
	flag.StringVar(&snapshotFormat, "snapshot-format", "json", "Snapshot format (json, msgpack)")
	flag.BoolVar(&miniSkyMode, "mini-sky", false, "Show ASCII mini sky view")
	flag.BoolVar(&eventsMode, "events", false, "Show event log")
	flag.IntVar(&frames, "frames", defaultFrames, "Frames to simulate in headless mode")
	flag.IntVar(&width, "width", 80, "Headless viewport width in cells")
	flag.IntVar(&height, "height", 24, "Headless viewport height in cells")
	flag.Parse()

	if *showVersion {
		fmt.Printf("ls-skyfield v%s\n", version.Version)
		return nil
	}

	if *showSnapshot != "" {
		return printSnapshot(*showSnapshot)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	// Explicit flags win over file and environment
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "log-level":
			cfg.Logging.Level = *logLevel
		case "log-file":
			cfg.Logging.File = *logFile
		case "fps":
			cfg.FPS = *fps
		case "seed":
			cfg.Seed = *seed
		case "reduced-motion":
			cfg.ReducedMotion = *reducedMotion
		}
	})

	engineCfg, err := cfg.Engine()
	if err != nil {
		return err
	}

	if *dumpConfig {
		return cfg.WriteYAML(os.Stdout)
	}
	if *writeConfig != "" {
		if err := cfg.Save(*writeConfig); err != nil {
			return err
		}
		fmt.Printf("Config written to %s\n", *writeConfig)
		return nil
	}

	if frames < 0 {
		frames = 0
	} else if frames > maxFrames {
		frames = maxFrames
	}

	// Set up logging
	logger := logging.New(logging.ParseLevel(cfg.Logging.Level))
	var logOut *os.File
	if cfg.Logging.File != "" {
		logOut, err = os.OpenFile(cfg.Logging.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer logOut.Close()
		logger.SetOutput(logOut)
	}

	runSeed := cfg.Seed
	if runSeed == 0 {
		runSeed = uint64(time.Now().UnixNano())
	}
	info := report.RunInfo{
		Seed:          runSeed,
		FPS:           cfg.FPS,
		ReducedMotion: engineCfg.ReducedMotion,
		RequestedDPR:  *dpr,
	}

	// Create context with cancellation
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Headless mode: no TUI. Without a terminal there is nothing to animate,
	// so fall back to the summary.
	headless := summaryMode || snapshotPath != "" || miniSkyMode || eventsMode
	if !headless && !term.IsTerminal(int(os.Stdout.Fd())) {
		summaryMode = true
		headless = true
	}
	if headless {
		return runHeadless(ctx, cfg, engineCfg, info, logger)
	}

	// The terminal belongs to the TUI
	if logOut == nil {
		logger.SetOutput(io.Discard)
	}

	stateMgr := state.NewManager(state.DefaultConfig())
	engine := sky.New(engineCfg,
		sky.WithRand(sky.NewRand(runSeed)),
		sky.WithObserver(stateMgr),
		sky.WithLogger(logger.Named("sky")),
	)
	logger.Info("Starting %s host (seed %d, %d fps, reduced motion %v)",
		*backend, runSeed, cfg.FPS, engineCfg.ReducedMotion)

	switch *backend {
	case "tea", "bubbletea":
		return runTea(ctx, engine, stateMgr, cfg, *dpr)
	case "tcell":
		return runTcell(ctx, engine, cfg, *dpr, logger)
	default:
		return fmt.Errorf("unknown backend %q", *backend)
	}
}

func runTea(ctx context.Context, engine *sky.Engine, stateMgr *state.Manager, cfg *config.Config, dpr float64) error {
	// Create TUI model
	model := ui.New(engine, stateMgr, ui.Options{
		FrameInterval: cfg.FrameInterval(),
		DPR:           dpr,
	})

	// Create Bubble Tea program
	p := tea.NewProgram(model,
		tea.WithAltScreen(),
		tea.WithReportFocus(),
		tea.WithContext(ctx),
	)

	// Run TUI (blocks until quit)
	if _, err := p.Run(); err != nil {
		if ctx.Err() != nil && errors.Is(err, tea.ErrProgramKilled) {
			return nil
		}
		return fmt.Errorf("running TUI: %w", err)
	}
	return nil
}

func runTcell(ctx context.Context, engine *sky.Engine, cfg *config.Config, dpr float64, logger *logging.Logger) error {
	screen, err := tcellhost.NewScreen()
	if err != nil {
		return err
	}
	host := tcellhost.New(screen, engine, tcellhost.Options{
		FrameInterval: cfg.FrameInterval(),
		DPR:           dpr,
		Logger:        logger.Named("tcell"),
	})
	return host.Run(ctx)
}

// printSnapshot decodes a snapshot written with -snapshot-format msgpack and
// prints it as indented JSON.
func printSnapshot(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()

	snap, err := report.ReadMsgpack(f)
	if err != nil {
		return err
	}
	return snap.WriteJSON(os.Stdout)
}

// runHeadless simulates frames on a manual clock and prints the requested
// reports.
func runHeadless(ctx context.Context, cfg *config.Config, engineCfg sky.Config, info report.RunInfo, logger *logging.Logger) error {
	clock := sky.NewManualClock(time.Now().UTC())
	stateMgr := state.NewManager(state.Config{Clock: clock})
	engine := sky.New(engineCfg,
		sky.WithRand(sky.NewRand(info.Seed)),
		sky.WithObserver(stateMgr),
		sky.WithLogger(logger.Named("sky")),
	)

	if tok, ok := engine.Start(width, height, info.RequestedDPR); ok {
		rendered := engine.Simulate(ctx, clock, tok, frames, cfg.FrameInterval())
		logger.Debug("Simulated %d frames (%.1fs)", rendered, engine.SimTime())
	}
	if ctx.Err() != nil {
		return nil
	}

	snap := stateMgr.Snapshot()

	// Export snapshot if requested
	if snapshotPath != "" {
		export := report.ExportSnapshot(snap, info, clock.Now())
		if snapshotPath == "-" {
			if err := export.Write(os.Stdout, snapshotFormat); err != nil {
				return fmt.Errorf("write snapshot to stdout: %w", err)
			}
		} else {
			f, err := os.Create(snapshotPath)
			if err != nil {
				return fmt.Errorf("create snapshot file: %w", err)
			}
			defer f.Close()
			if err := export.Write(f, snapshotFormat); err != nil {
				return fmt.Errorf("write snapshot to file: %w", err)
			}
		}
	}

	// Print summary table if requested
	if summaryMode {
		report.WriteSummaryTable(os.Stdout, snap, info, clock.Now())
	}

	// Mini sky view
	if miniSkyMode {
		fmt.Println()
		cells := engine.Cells(width, height)
		if cells == nil {
			fmt.Println("Sky disabled")
		} else if err := report.WriteMiniSky(os.Stdout, cells, width, height); err != nil {
			return fmt.Errorf("write mini sky: %w", err)
		}
	}

	// Events log
	if eventsMode {
		fmt.Println()
		report.WriteEvents(os.Stdout, stateMgr.RecentEvents(eventsShown))
	}
	return nil
}
