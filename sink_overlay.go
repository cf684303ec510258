package gstdecoder

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/e7canasta/gst-decoder/internal/bufferpool"
	"github.com/e7canasta/gst-decoder/internal/gstpipe"
)

// overlaySink drives the hardware presentation path. The sink element
// renders straight onto an exported compositor surface, so no pixel data
// ever crosses into this process; retrieval watches the sink's presentation
// clock and hands out bookkeeping slots whenever it advances.
type overlaySink struct {
	dec      *VideoDecoder
	elements *gstpipe.Elements
	info     *gstpipe.VideoInfo

	// linked becomes true once, when the sink claims the surface. Written
	// from the graph's notification thread.
	linked atomic.Bool
	// wasFlushed tells the next retrieval to report "try again" instead
	// of a stale frame.
	wasFlushed atomic.Bool
	// lastPTS is the presentation timestamp already handed out, in
	// microseconds.
	lastPTS atomic.Int64

	mu   sync.Mutex
	held *bufferpool.Buffer
}

func newOverlaySink(dec *VideoDecoder) *overlaySink {
	o := &overlaySink{
		dec:  dec,
		info: infoFromHints(dec.hints),
	}
	o.lastPTS.Store(NoTimestamp)
	return o
}

func (o *overlaySink) attach(e *gstpipe.Elements) error {
	window := o.dec.rt.window
	name := window.ExportedWindowName()
	id, err := gstpipe.ParseWindowID(name)
	if err != nil {
		return fmt.Errorf("overlay surface unavailable: %w", err)
	}

	o.elements = e
	width, height := o.dec.hints.Width, o.dec.hints.Height
	e.InstallSurfaceHandshake(gstpipe.SurfaceBinding{
		WindowID: id,
		Width:    width,
		Height:   height,
	}, func() {
		window.SetRenderRectangle(0, 0, width, height)
		o.linked.Store(true)
		slog.Info("gst-decoder: overlay surface linked", "window", name)
	})
	return nil
}

// admit withholds packets until the sink has claimed the surface, so the
// graph cannot race ahead of a compositor that is still setting up.
func (o *overlaySink) admit() bool { return o.linked.Load() }

func (o *overlaySink) retrieve(p *Picture) PictureResult {
	if !o.linked.Load() {
		return PictureNone
	}
	if o.wasFlushed.Swap(false) {
		o.lastPTS.Store(NoTimestamp)
		return PictureAgain
	}

	pts, ok := o.elements.CurrentPresentationTime()
	if !ok || pts == o.lastPTS.Load() {
		return PictureAgain
	}
	o.lastPTS.Store(pts)

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.held != nil {
		o.held.Release()
		o.held = nil
	}

	// The sink owns the pixels; the slot only tracks the frame's
	// lifetime.
	buf := o.dec.pool.Get()

	setPictureParams(p, o.info, o.dec.hints)
	p.PTS = pts
	p.DecoderName = o.dec.decoderName()
	p.TraceID = uuid.New().String()

	buf.Acquire()
	p.Buffer = buf
	o.held = buf

	o.dec.pictures.Add(1)
	return PictureReady
}

func (o *overlaySink) flushed() {
	o.wasFlushed.Store(true)
}

func (o *overlaySink) dispose() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.held != nil {
		o.held.Release()
		o.held = nil
	}
	o.linked.Store(false)
	o.lastPTS.Store(NoTimestamp)
	o.elements = nil
}
