// Package version provides build and version information.
package version

// Version is the current application version.
const Version = "0.3.0"

// Milestones:
// 0.3.0 - tcell host, msgpack snapshots, YAML config with env overrides
// 0.2.0 - Reduced motion, pause on focus loss, debounced resize, DPR cap
// 0.1.0 - Initial release: star field, meteors, Bubble Tea host, headless modes
