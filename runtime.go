package gstdecoder

import (
	"fmt"
	"log/slog"
	"sync/atomic"
)

// Setting keys consulted through the Settings collaborator.
const (
	// SettingEnabled gates whether the registry hands out this decoder
	// at all.
	SettingEnabled = "videodecoder.gstreamer"
	// SettingOverlaySink selects the hardware overlay presentation path
	// when the windowing environment supports it.
	SettingOverlaySink = "videodecoder.gstreamer.overlaysink"
)

// envDisplaySocket must be set for the overlay sink to reach a compositor.
const envDisplaySocket = "WAYLAND_DISPLAY"

// Settings exposes the host application's feature flags. Lookups for
// unknown keys return false.
type Settings interface {
	GetBool(key string) bool
}

// WindowSystem is the windowing collaborator the overlay path renders
// through. Implementations are provided by the host; the decoder only
// consumes exported compositor surfaces.
type WindowSystem interface {
	// SupportsExportedWindow reports whether the compositor exports a
	// surface the overlay sink can bind to.
	SupportsExportedWindow() bool
	// ExportedWindowName returns the exported surface name, e.g.
	// "_Window_Id_62".
	ExportedWindowName() string
	// SetRenderRectangle positions the bound surface.
	SetRenderRectangle(x, y, width, height int)
}

// Diagnostics receives decode-session facts for operator surfaces. All
// methods may be called from background goroutines.
type Diagnostics interface {
	// ReportDecoder is called once per session when the concrete decoder
	// is resolved.
	ReportDecoder(name string, hardware bool)
	// ReportVideoFormat is called when the output format is known.
	ReportVideoFormat(format string, width, height int, dar float64)
}

// NopDiagnostics discards every report.
type NopDiagnostics struct{}

func (NopDiagnostics) ReportDecoder(string, bool) {}

func (NopDiagnostics) ReportVideoFormat(string, int, int, float64) {}

// RuntimeConfig wires the host collaborators into a Runtime.
type RuntimeConfig struct {
	// Settings is required.
	Settings Settings
	// Window may be nil; the overlay path is then unavailable.
	Window WindowSystem
	// Diagnostics may be nil; reports are then discarded.
	Diagnostics Diagnostics
}

// Runtime holds the process-wide decode slot and the host collaborators.
// The underlying media framework tolerates only one decode session per
// process; a Runtime enforces that with an exclusivity guard. Construct one
// Runtime per process and share it between components.
type Runtime struct {
	settings Settings
	window   WindowSystem
	diag     Diagnostics

	inUse atomic.Bool
}

// NewRuntime creates a Runtime with fail-fast validation.
func NewRuntime(cfg RuntimeConfig) (*Runtime, error) {
	if cfg.Settings == nil {
		return nil, fmt.Errorf("gst-decoder: settings collaborator is required")
	}
	diag := cfg.Diagnostics
	if diag == nil {
		diag = NopDiagnostics{}
	}
	return &Runtime{
		settings: cfg.Settings,
		window:   cfg.Window,
		diag:     diag,
	}, nil
}

// acquire claims the process-wide decode slot. It reports false when a
// session already holds it.
func (r *Runtime) acquire() bool {
	ok := r.inUse.CompareAndSwap(false, true)
	if !ok {
		slog.Warn("gst-decoder: decode slot already in use")
	}
	return ok
}

// release frees the decode slot. Safe to call when not held.
func (r *Runtime) release() {
	r.inUse.Store(false)
}
