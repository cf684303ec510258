package gstdecoder

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/e7canasta/gst-decoder/internal/bufferpool"
	"github.com/e7canasta/gst-decoder/internal/gstpipe"
)

// sinkStrategy is the presentation-path half of retrieval. Exactly one
// strategy is active per session.
type sinkStrategy interface {
	// attach wires the strategy to the constructed graph.
	attach(e *gstpipe.Elements) error
	// admit reports whether the admission policy may push packets beyond
	// the readiness gate.
	admit() bool
	// retrieve pulls the next picture into p.
	retrieve(p *Picture) PictureResult
	// flushed notifies the strategy that a graph flush completed.
	flushed()
	// dispose releases held resources. Idempotent.
	dispose()
}

// VideoDecoder drives one decode session: it assembles the graph, feeds it
// compressed packets and hands decoded pictures back out. At most one
// session per Runtime is open at a time.
//
// AddData, GetPicture, Reset and Stats are safe to call concurrently with
// the background bus monitor. Retrieval is expected from a single consumer
// goroutine.
type VideoDecoder struct {
	rt *Runtime

	// PullTimeout bounds how long a software-path GetPicture waits before
	// returning PictureAgain. Zero selects the default. Set before Open.
	PullTimeout time.Duration
	// DecoderFactory overrides the decoder stage element. Empty selects
	// the auto-plugging decoder. Set before Open.
	DecoderFactory string
	// QoSFunc, when set, is invoked from the bus monitor for every
	// quality-of-service message. Set before Open.
	QoSFunc func(source string)

	// mu guards the session lifecycle. Packet and picture paths hold it
	// shared; Open and Stop hold it exclusively.
	mu        sync.RWMutex
	elements  *gstpipe.Elements
	sink      sinkStrategy
	pool      *bufferpool.Pool
	hints     CodecHints
	sessionID string
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	state    atomicState
	ready    atomic.Bool
	playing  atomic.Bool
	hardware atomic.Bool
	name     atomic.Value // string

	packetsSent      atomic.Uint64
	packetsWithheld  atomic.Uint64
	pictures         atomic.Uint64
	pullTimeouts     atomic.Uint64
	pullErrors       atomic.Uint64
	consecPullErrors atomic.Uint64

	errDecode      atomic.Uint64
	errNegotiation atomic.Uint64
	errResource    atomic.Uint64
	errUnknown     atomic.Uint64

	codecControl atomic.Int64
	seekPosition atomic.Uint64
}

// NewVideoDecoder creates an unopened decoder bound to the runtime.
func NewVideoDecoder(rt *Runtime) *VideoDecoder {
	d := &VideoDecoder{rt: rt}
	d.state.set(StateFlushed)
	return d
}

// Open validates the stream hints, claims the process-wide decode slot,
// assembles the graph and starts it. Every failure path releases the slot
// again.
func (d *VideoDecoder) Open(hints CodecHints) error {
	if d.rt == nil {
		return fmt.Errorf("gst-decoder: decoder has no runtime")
	}
	if hints.Width <= 0 || hints.Height <= 0 {
		return fmt.Errorf("gst-decoder: invalid dimensions %dx%d", hints.Width, hints.Height)
	}
	caps, err := gstpipe.CapsForCodec(hints.Codec.String(), hints.Width, hints.Height, hints.FPSRate, hints.FPSScale)
	if err != nil {
		return fmt.Errorf("gst-decoder: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.elements != nil {
		return fmt.Errorf("gst-decoder: session already open")
	}
	if !d.rt.acquire() {
		return fmt.Errorf("gst-decoder: another decode session is active")
	}

	overlay, socket, err := d.overlayAvailable()
	if err != nil {
		d.rt.release()
		return err
	}

	els, err := gstpipe.Build(gstpipe.BuildConfig{
		InputCaps:      caps,
		DecoderFactory: d.DecoderFactory,
		OverlaySink:    overlay,
		DisplaySocket:  socket,
	})
	if err != nil {
		d.rt.release()
		return fmt.Errorf("gst-decoder: %w", err)
	}

	d.elements = els
	d.hints = hints
	d.pool = bufferpool.New()
	d.sessionID = uuid.New().String()
	d.resetCounters()
	d.state.set(StateFlushed)

	var sink sinkStrategy
	if overlay {
		sink = newOverlaySink(d)
	} else {
		sink = newSoftwareSink(d, d.PullTimeout)
	}
	if err := sink.attach(els); err != nil {
		d.teardownLocked()
		return fmt.Errorf("gst-decoder: %w", err)
	}
	d.sink = sink

	if els.AutoPlug {
		els.ConnectDecoderDetected(func(ev gstpipe.DecoderDetectedEvent) {
			d.handleEvent(ev)
		})
	}
	els.ConnectSeekData(func(position uint64) {
		d.seekPosition.Store(position)
		slog.Debug("gst-decoder: seek requested by graph", "position", position)
	})
	// The probe closure captures the strategy directly so the monitor
	// thread never touches lifecycle fields.
	if err := els.InstallFlushProbe(func() {
		sink.flushed()
		d.handleEvent(gstpipe.FlushStoppedEvent{})
	}); err != nil {
		d.teardownLocked()
		return fmt.Errorf("gst-decoder: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		gstpipe.Monitor(ctx, els.Pipeline, d.handleEvent)
	}()

	if err := els.Play(); err != nil {
		d.teardownLocked()
		return fmt.Errorf("gst-decoder: %w", err)
	}

	// An explicit decoder stage is known up front; readiness does not
	// wait for auto-plug detection.
	if !els.AutoPlug {
		d.handleEvent(gstpipe.DecoderDetectedEvent{Name: "gs-" + d.DecoderFactory})
	}

	slog.Info("gst-decoder: session opened",
		"session_id", d.sessionID,
		"codec", hints.Codec.String(),
		"width", hints.Width,
		"height", hints.Height,
		"overlay", overlay,
	)
	return nil
}

// overlayAvailable decides the presentation path from the settings, the
// windowing collaborator and the display environment. A requested overlay
// sink with no compositor socket cannot be recovered, so that is an error
// rather than a silent fallback to the software path.
func (d *VideoDecoder) overlayAvailable() (bool, string, error) {
	if !d.rt.settings.GetBool(SettingOverlaySink) {
		return false, "", nil
	}
	if d.rt.window == nil || !d.rt.window.SupportsExportedWindow() {
		slog.Debug("gst-decoder: overlay sink requested but no exported window")
		return false, "", nil
	}
	socket := os.Getenv(envDisplaySocket)
	if socket == "" {
		return false, "", fmt.Errorf("gst-decoder: overlay sink requested but %s is unset", envDisplaySocket)
	}
	return true, socket, nil
}

// AddData feeds one compressed packet into the graph. Empty packets and
// packets arriving outside a session are accepted and ignored. The first
// packet of a session is always pushed; after that, packets with a defined
// positive presentation timestamp are withheld until the session is ready
// to consume them. A push failure is fatal and tears the session down.
func (d *VideoDecoder) AddData(pkt CompressedPacket) error {
	if len(pkt.Data) == 0 {
		return nil
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.elements == nil {
		return nil
	}
	if d.state.get() == StateError {
		return fmt.Errorf("gst-decoder: session failed")
	}

	// The first packet always goes through so negotiation can start. After
	// that, packets with a defined timestamp wait for readiness, and on the
	// overlay path everything waits for the surface linkage.
	first := d.packetsSent.Load() == 0
	definedPTS := pkt.PTS != NoTimestamp && pkt.PTS > 0
	if !first && ((definedPTS && !d.ready.Load()) || !d.sink.admit()) {
		d.packetsWithheld.Add(1)
		slog.Debug("gst-decoder: packet withheld",
			"pts_us", pkt.PTS,
			"ready", d.ready.Load(),
		)
		return nil
	}

	pts, ptsValid := toPipelineTime(pkt.PTS)
	dts, dtsValid := toPipelineTime(pkt.DTS)
	var duration time.Duration
	if pkt.Duration > 0 {
		duration = time.Duration(pkt.Duration) * time.Microsecond
	}

	if err := d.elements.PushPacket(pkt.Data, pts, dts, ptsValid, dtsValid, duration); err != nil {
		d.state.markError()
		d.ready.Store(false)
		slog.Error("gst-decoder: packet push failed", "error", err)
		go d.Stop()
		return fmt.Errorf("gst-decoder: %w", err)
	}
	d.packetsSent.Add(1)
	return nil
}

// GetPicture retrieves the next decoded picture into p. The terminal states
// win over everything else: a failed session reports PictureError and a
// drained one PictureEOF even after teardown.
func (d *VideoDecoder) GetPicture(p *Picture) PictureResult {
	d.mu.RLock()
	defer d.mu.RUnlock()

	switch d.state.get() {
	case StateError:
		return PictureError
	case StateEOS:
		return PictureEOF
	}
	if d.elements == nil || !d.ready.Load() {
		return PictureNone
	}
	return d.sink.retrieve(p)
}

// Reset flushes all queued data out of the graph without tearing it down.
// The session reports StateReset until the flush completes downstream,
// then StateFlushed.
func (d *VideoDecoder) Reset() error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.elements == nil {
		return nil
	}

	slog.Debug("gst-decoder: flushing session", "session_id", d.sessionID)
	d.state.set(StateReset)
	d.elements.Flush()
	return nil
}

// Stop tears the session down and releases the process-wide decode slot.
// Idempotent.
func (d *VideoDecoder) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.elements == nil && d.cancel == nil {
		return nil
	}

	slog.Info("gst-decoder: session stopped",
		"session_id", d.sessionID,
		"packets", d.packetsSent.Load(),
		"pictures", d.pictures.Load(),
		"decoder", d.decoderName(),
	)
	d.teardownLocked()
	return nil
}

// teardownLocked disposes every session resource. The caller holds mu
// exclusively. The bus monitor never blocks on mu, so joining it under the
// lock cannot deadlock.
func (d *VideoDecoder) teardownLocked() {
	d.ready.Store(false)
	d.playing.Store(false)

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
		d.wg.Wait()
	}
	if d.sink != nil {
		d.sink.dispose()
		d.sink = nil
	}
	if d.elements != nil {
		d.elements.Destroy()
		d.elements = nil
	}
	if d.pool != nil {
		d.pool.Drain()
		d.pool = nil
	}
	d.resetCounters()
	d.rt.release()
}

func (d *VideoDecoder) resetCounters() {
	d.packetsSent.Store(0)
	d.packetsWithheld.Store(0)
	d.pictures.Store(0)
	d.pullTimeouts.Store(0)
	d.pullErrors.Store(0)
	d.consecPullErrors.Store(0)
	d.errDecode.Store(0)
	d.errNegotiation.Store(0)
	d.errResource.Store(0)
	d.errUnknown.Store(0)
	d.seekPosition.Store(0)
}

// SetCodecControl stores the caller's codec control flags. The graph has no
// per-frame drop control, so the flags only inform logging.
func (d *VideoDecoder) SetCodecControl(flags int) {
	prev := d.codecControl.Swap(int64(flags))
	if prev != int64(flags) {
		slog.Debug("gst-decoder: codec control changed", "flags", flags)
	}
}

// Stats returns a point-in-time snapshot of the session counters. Safe from
// any goroutine.
func (d *VideoDecoder) Stats() DecoderStats {
	return DecoderStats{
		State:                 d.state.get(),
		DecoderName:           d.decoderName(),
		Hardware:              d.hardware.Load(),
		PacketsPushed:         d.packetsSent.Load(),
		PacketsWithheld:       d.packetsWithheld.Load(),
		Pictures:              d.pictures.Load(),
		PullTimeouts:          d.pullTimeouts.Load(),
		PullErrors:            d.pullErrors.Load(),
		ConsecutivePullErrors: d.consecPullErrors.Load(),
		ErrorsDecode:          d.errDecode.Load(),
		ErrorsNegotiation:     d.errNegotiation.Load(),
		ErrorsResource:        d.errResource.Load(),
		ErrorsUnknown:         d.errUnknown.Load(),
	}
}

// State returns the current session state.
func (d *VideoDecoder) State() StreamState {
	return d.state.get()
}

func (d *VideoDecoder) decoderName() string {
	if v := d.name.Load(); v != nil {
		return v.(string)
	}
	return ""
}

// handleEvent applies one asynchronous graph event to the session state.
// It runs on the bus monitor goroutine and on signal threads, so it only
// touches atomics and collaborators; it must never block on mu.
func (d *VideoDecoder) handleEvent(ev gstpipe.Event) {
	switch ev := ev.(type) {
	case gstpipe.ErrorEvent:
		d.countError(ev.Category)
		d.state.markError()
		d.ready.Store(false)
		slog.Error("gst-decoder: pipeline error",
			"source", ev.Source,
			"message", ev.Message,
			"debug", ev.Debug,
			"category", ev.Category.String(),
		)
		// Teardown needs the exclusive lock and joins this goroutine, so
		// it must run elsewhere.
		go d.Stop()

	case gstpipe.WarningEvent:
		slog.Warn("gst-decoder: pipeline warning",
			"source", ev.Source,
			"message", ev.Message,
		)

	case gstpipe.EOSEvent:
		d.state.markEOS()
		d.ready.Store(false)
		slog.Info("gst-decoder: end of stream", "session_id", d.sessionID)

	case gstpipe.StateChangedEvent:
		d.playing.Store(ev.Playing)
		if ev.Playing {
			d.state.markRunning()
		} else {
			d.state.markPaused()
		}
		slog.Debug("gst-decoder: pipeline state changed",
			"from", ev.From,
			"to", ev.To,
		)

	case gstpipe.QoSEvent:
		slog.Debug("gst-decoder: quality-of-service message", "source", ev.Source)
		if d.QoSFunc != nil {
			d.QoSFunc(ev.Source)
		}

	case gstpipe.DecoderDetectedEvent:
		d.name.Store(ev.Name)
		d.hardware.Store(ev.Hardware)
		d.rt.diag.ReportDecoder(ev.Name, ev.Hardware)
		d.state.markReady()
		d.ready.Store(true)
		slog.Info("gst-decoder: decoder resolved",
			"decoder", ev.Name,
			"hardware", ev.Hardware,
		)

	case gstpipe.FlushStoppedEvent:
		d.state.markFlushed()
		slog.Debug("gst-decoder: flush completed")

	case gstpipe.UnknownEvent:
		slog.Debug("gst-decoder: unhandled bus message", "type", ev.Name)
	}
}

func (d *VideoDecoder) countError(cat gstpipe.ErrorCategory) {
	switch cat {
	case gstpipe.ErrCategoryDecode:
		d.errDecode.Add(1)
	case gstpipe.ErrCategoryNegotiation:
		d.errNegotiation.Add(1)
	case gstpipe.ErrCategoryResource:
		d.errResource.Add(1)
	default:
		d.errUnknown.Add(1)
	}
}

// atomicState is the session state with guarded transitions. Terminal
// states hold until a flush completes.
type atomicState struct {
	v atomic.Int32
}

func (s *atomicState) get() StreamState { return StreamState(s.v.Load()) }

func (s *atomicState) set(st StreamState) { s.v.Store(int32(st)) }

// markError moves to StateError from anywhere.
func (s *atomicState) markError() { s.set(StateError) }

// markEOS moves to StateEOS unless the session already failed.
func (s *atomicState) markEOS() {
	for {
		cur := s.v.Load()
		if StreamState(cur) == StateError {
			return
		}
		if s.v.CompareAndSwap(cur, int32(StateEOS)) {
			return
		}
	}
}

// markFlushed moves to StateFlushed from anywhere; a completed flush
// recovers even the terminal states.
func (s *atomicState) markFlushed() { s.set(StateFlushed) }

// markReady moves to StateReady from the quiescent states only.
func (s *atomicState) markReady() {
	s.v.CompareAndSwap(int32(StateReset), int32(StateReady))
	s.v.CompareAndSwap(int32(StateFlushed), int32(StateReady))
}

// markRunning moves StateReady to StateRunning.
func (s *atomicState) markRunning() {
	s.v.CompareAndSwap(int32(StateReady), int32(StateRunning))
}

// markPaused moves StateRunning back to StateReady.
func (s *atomicState) markPaused() {
	s.v.CompareAndSwap(int32(StateRunning), int32(StateReady))
}
