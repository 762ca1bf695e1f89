// Package report writes headless run results: snapshots, summaries, event
// logs and a text rendering of the sky.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/litescript/ls-skyfield/internal/sky"
	"github.com/litescript/ls-skyfield/internal/state"
)

// RunInfo describes how a headless run was configured.
type RunInfo struct {
	Seed          uint64  `json:"seed" msgpack:"seed"`
	FPS           int     `json:"fps" msgpack:"fps"`
	ReducedMotion bool    `json:"reduced_motion" msgpack:"reduced_motion"`
	RequestedDPR  float64 `json:"requested_dpr" msgpack:"requested_dpr"`
}

// GeometryExport is a serializable surface geometry.
type GeometryExport struct {
	ViewportWidth  int     `json:"viewport_width" msgpack:"viewport_width"`
	ViewportHeight int     `json:"viewport_height" msgpack:"viewport_height"`
	DPR            float64 `json:"dpr" msgpack:"dpr"`
	PixelWidth     int     `json:"pixel_width" msgpack:"pixel_width"`
	PixelHeight    int     `json:"pixel_height" msgpack:"pixel_height"`
}

// SnapshotExport is the serializable representation of engine telemetry.
type SnapshotExport struct {
	GeneratedAt   time.Time      `json:"generated_at" msgpack:"generated_at"`
	Run           RunInfo        `json:"run" msgpack:"run"`
	Geometry      GeometryExport `json:"geometry" msgpack:"geometry"`
	Stars         int            `json:"stars" msgpack:"stars"`
	ActiveMeteors int            `json:"active_meteors" msgpack:"active_meteors"`
	PeakMeteors   int            `json:"peak_meteors" msgpack:"peak_meteors"`
	SimTime       float64        `json:"sim_time_seconds" msgpack:"sim_time_seconds"`
	MeanFPS       float64        `json:"mean_fps" msgpack:"mean_fps"`
	Counters      state.Counters `json:"counters" msgpack:"counters"`
	Events        []state.Event  `json:"events" msgpack:"events"`
}

// ExportSnapshot converts a telemetry snapshot to an exportable format.
func ExportSnapshot(snap state.Snapshot, run RunInfo, generatedAt time.Time) *SnapshotExport {
	g := snap.Geometry
	return &SnapshotExport{
		GeneratedAt: generatedAt,
		Run:         run,
		Geometry: GeometryExport{
			ViewportWidth:  g.ViewportWidth,
			ViewportHeight: g.ViewportHeight,
			DPR:            g.DPR,
			PixelWidth:     g.PixelWidth,
			PixelHeight:    g.PixelHeight,
		},
		Stars:         snap.Stars,
		ActiveMeteors: snap.ActiveMeteors,
		PeakMeteors:   snap.PeakMeteors,
		SimTime:       snap.SimTime,
		MeanFPS:       snap.FPS(),
		Counters:      snap.Counters,
		Events:        snap.Events,
	}
}

// WriteJSON writes the snapshot as JSON to the given writer.
func (s *SnapshotExport) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}

// WriteMsgpack writes the snapshot as MessagePack to the given writer.
func (s *SnapshotExport) WriteMsgpack(w io.Writer) error {
	enc := msgpack.NewEncoder(w)
	enc.UseCompactInts(true)
	return enc.Encode(s)
}

// ReadMsgpack decodes a snapshot written by WriteMsgpack.
func ReadMsgpack(r io.Reader) (*SnapshotExport, error) {
	var s SnapshotExport
	if err := msgpack.NewDecoder(r).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &s, nil
}

// Write encodes the snapshot in the named format ("json" or "msgpack").
func (s *SnapshotExport) Write(w io.Writer, format string) error {
	switch format {
	case "", "json":
		return s.WriteJSON(w)
	case "msgpack", "mp":
		return s.WriteMsgpack(w)
	default:
		return fmt.Errorf("unknown snapshot format %q", format)
	}
}

// WriteSummaryTable writes a text table to the given writer.
func WriteSummaryTable(w io.Writer, snap state.Snapshot, run RunInfo, timestamp time.Time) {
	g := snap.Geometry
	c := snap.Counters

	fmt.Fprintf(w, "Sky Status @ %s\n", timestamp.Format(time.RFC3339))
	fmt.Fprintln(w, strings.Repeat("─", 48))

	if c.Frames == 0 {
		fmt.Fprintln(w, "No frames rendered")
		return
	}

	motion := "full"
	if run.ReducedMotion {
		motion = "reduced"
	}

	row := func(label, value string) {
		fmt.Fprintf(w, "%-18s %s\n", label, value)
	}
	row("Viewport", fmt.Sprintf("%dx%d cells @%.2fx", g.ViewportWidth, g.ViewportHeight, g.DPR))
	row("Surface", fmt.Sprintf("%dx%d px", g.PixelWidth, g.PixelHeight))
	row("Motion", motion)
	row("Stars", fmt.Sprintf("%d", snap.Stars))
	row("Frames", fmt.Sprintf("%d (%.1fs simulated, %.1f fps)", c.Frames, snap.SimTime, snap.FPS()))
	row("Meteors spawned", fmt.Sprintf("%d", c.Spawned))
	row("Attempts skipped", fmt.Sprintf("%d", c.Skipped))
	row("Retired", fmt.Sprintf("%d expired, %d out of bounds", c.RetiredExpired, c.RetiredOutside))
	row("Active / peak", fmt.Sprintf("%d / %d", snap.ActiveMeteors, snap.PeakMeteors))
	row("Geometry changes", fmt.Sprintf("%d", c.GeometryChanges))
	if c.Pauses > 0 {
		row("Pauses", fmt.Sprintf("%d", c.Pauses))
	}
}

// WriteEvents writes one line per event, oldest first.
func WriteEvents(w io.Writer, events []state.Event) {
	if len(events) == 0 {
		fmt.Fprintln(w, "No events")
		return
	}
	for _, e := range events {
		fmt.Fprintf(w, "%8.3fs  %-15s %s\n", e.SimTime, e.Type, describeEvent(e))
	}
}

func describeEvent(e state.Event) string {
	switch e.Type {
	case state.EventMeteorSpawned:
		return fmt.Sprintf("#%d (%d active)", e.MeteorID, e.Active)
	case state.EventMeteorSkipped:
		if e.Reason == sky.SkipEmptySurface.String() {
			return "empty surface"
		}
		return fmt.Sprintf("at cap (%d active)", e.Active)
	case state.EventMeteorRetired:
		return fmt.Sprintf("#%d %s", e.MeteorID, e.Reason)
	case state.EventGeometry:
		return fmt.Sprintf("%dx%d @%.2fx, %d stars", e.Width, e.Height, e.DPR, e.Stars)
	default:
		return ""
	}
}
