package gstpipe

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/tinyzimmer/go-gst/gst"
)

// prepareWindowHandleName is the element message the overlay sink emits when
// it needs a window to render into.
const prepareWindowHandleName = "prepare-window-handle"

// SurfaceBinding describes the compositor surface the overlay sink renders
// into.
type SurfaceBinding struct {
	// WindowID is the exported window id obtained from the windowing
	// collaborator.
	WindowID int
	// Width and Height form the initial render rectangle, anchored at the
	// origin.
	Width  int
	Height int
}

// InstallSurfaceHandshake registers a synchronous bus intercept that binds
// the overlay sink to the compositor surface the first time the sink asks
// for a window handle. The handler runs on whatever thread the notification
// arrives on; onLinked must therefore be safe to call concurrently with both
// the caller and the bus monitor. The notification is dropped after
// handling so it never reaches the asynchronous monitor.
func (e *Elements) InstallSurfaceHandshake(binding SurfaceBinding, onLinked func()) {
	if e.Pipeline == nil || e.OverlaySink == nil {
		return
	}

	bus := e.Pipeline.GetPipelineBus()
	bus.SetSyncHandler(func(msg *gst.Message) gst.BusSyncReply {
		if msg.Type() != gst.MessageElement {
			return gst.BusPass
		}
		structure := msg.GetStructure()
		if structure == nil || structure.Name() != prepareWindowHandleName {
			return gst.BusPass
		}
		// Only the overlay sink may claim the surface.
		if msg.Source() != StageSink {
			slog.Warn("gstpipe: window handle requested by non-overlay element",
				"source", msg.Source(),
			)
			return gst.BusPass
		}

		e.OverlaySink.SetProperty("window-id", binding.WindowID)

		slog.Info("gstpipe: overlay sink bound to surface",
			"window_id", binding.WindowID,
			"render_rect", fmt.Sprintf("0,0,%dx%d", binding.Width, binding.Height),
		)

		onLinked()
		return gst.BusDrop
	})
}

// InstallFlushProbe watches downstream events on the sink's input pad and
// reports flush-stop, so a post-reset retrieval does not hand out a stale
// frame. The probe runs on the streaming thread.
func (e *Elements) InstallFlushProbe(onFlushStop func()) error {
	sinkElem := e.OverlaySink
	if sinkElem == nil && e.AppSink != nil {
		sinkElem = e.AppSink.Element
	}
	if sinkElem == nil {
		return fmt.Errorf("graph has no sink stage")
	}

	pad := sinkElem.GetStaticPad("sink")
	if pad == nil {
		return fmt.Errorf("sink stage has no input pad")
	}

	pad.AddProbe(gst.PadProbeTypeEventDownstream, func(p *gst.Pad, info *gst.PadProbeInfo) gst.PadProbeReturn {
		ev := info.GetEvent()
		if ev != nil && ev.Type() == gst.EventTypeFlushStop {
			onFlushStop()
		}
		return gst.PadProbeOK
	})
	return nil
}

// CurrentPresentationTime reads the overlay sink's presentation clock, in
// microseconds. ok is false when the sink does not report one yet.
func (e *Elements) CurrentPresentationTime() (int64, bool) {
	if e.OverlaySink == nil {
		return 0, false
	}
	val, err := e.OverlaySink.GetProperty("current-pts")
	if err != nil {
		return 0, false
	}

	var ns int64
	switch v := val.(type) {
	case uint64:
		ns = int64(v)
	case int64:
		ns = v
	case uint:
		ns = int64(v)
	case int:
		ns = int64(v)
	case time.Duration:
		ns = int64(v)
	default:
		return 0, false
	}
	return MicrosFromClockTime(ns)
}

// ParseWindowID extracts the numeric id from an exported window name of the
// form "_Window_Id_62".
func ParseWindowID(name string) (int, error) {
	idx := strings.LastIndexByte(name, '_')
	if idx < 0 || idx == len(name)-1 {
		return 0, fmt.Errorf("exported window name %q carries no id", name)
	}
	id, err := strconv.Atoi(name[idx+1:])
	if err != nil {
		return 0, fmt.Errorf("exported window name %q carries no id: %w", name, err)
	}
	return id, nil
}
