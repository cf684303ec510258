package gstdecoder

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"

	"github.com/e7canasta/gst-decoder/internal/bufferpool"
	"github.com/e7canasta/gst-decoder/internal/gstpipe"
)

// defaultPullTimeout bounds how long a retrieval waits for the sink before
// telling the caller to come back.
const defaultPullTimeout = 100 * time.Millisecond

// softwareSink pulls decoded frames out of the graph through the app sink
// and binds their pixel data to pool slots. The sink's callback runs on the
// graph's streaming thread; samples cross into the caller's thread through
// a channel sized to the sink's own queue depth.
type softwareSink struct {
	dec     *VideoDecoder
	timeout time.Duration

	samples chan gstpipe.Sample
	stop    chan struct{}
	once    sync.Once

	// mu guards the retrieval-side state. Retrieval is expected from one
	// goroutine at a time; the lock keeps a misbehaving caller from
	// corrupting pool bookkeeping.
	mu   sync.Mutex
	info *gstpipe.VideoInfo
	held *bufferpool.Buffer
}

func newSoftwareSink(dec *VideoDecoder, timeout time.Duration) *softwareSink {
	if timeout <= 0 {
		timeout = defaultPullTimeout
	}
	return &softwareSink{
		dec:     dec,
		timeout: timeout,
		samples: make(chan gstpipe.Sample, 2),
		stop:    make(chan struct{}),
	}
}

func (k *softwareSink) attach(e *gstpipe.Elements) error {
	e.AppSink.SetCallbacks(&app.SinkCallbacks{
		NewSampleFunc: func(sink *app.Sink) gst.FlowReturn {
			s := gstpipe.ReadSample(sink)
			select {
			case k.samples <- s:
			case <-k.stop:
			}
			return gst.FlowOK
		},
	})
	return nil
}

// admit never withholds beyond the readiness gate; the software path needs
// no surface.
func (k *softwareSink) admit() bool { return true }

func (k *softwareSink) retrieve(p *Picture) PictureResult {
	select {
	case s := <-k.samples:
		return k.deliver(p, s)
	case <-time.After(k.timeout):
		k.dec.pullTimeouts.Add(1)
		return PictureAgain
	case <-k.stop:
		return PictureNone
	}
}

func (k *softwareSink) deliver(p *Picture, s gstpipe.Sample) PictureResult {
	k.mu.Lock()
	defer k.mu.Unlock()

	if s.Err != nil {
		k.dec.pullErrors.Add(1)
		k.dec.consecPullErrors.Add(1)
		slog.Warn("gst-decoder: sample extraction failed",
			"error", s.Err,
			"consecutive", k.dec.consecPullErrors.Load(),
		)
		return PictureError
	}
	k.dec.consecPullErrors.Store(0)

	if k.info == nil {
		info, err := gstpipe.VideoInfoFromCaps(s.Caps)
		if err != nil {
			k.dec.pullErrors.Add(1)
			slog.Warn("gst-decoder: negotiated caps unusable",
				"caps", s.Caps,
				"error", err,
			)
			return PictureError
		}
		k.info = info
		slog.Info("gst-decoder: output format negotiated",
			"format", info.Format,
			"width", info.Width,
			"height", info.Height,
			"bits", info.Bits,
		)
	}

	if k.held != nil {
		k.held.Release()
		k.held = nil
	}

	buf := k.dec.pool.Get()
	buf.BindFrame(&bufferpool.Frame{
		Data:   s.Data,
		Format: k.info.Format,
		Width:  k.info.Width,
		Height: k.info.Height,
	})

	setPictureParams(p, k.info, k.dec.hints)
	p.PTS = NoTimestamp
	if s.Valid {
		p.PTS = s.PTS
	}
	p.DecoderName = k.dec.decoderName()
	p.TraceID = uuid.New().String()

	// One reference for the caller, one retained until the next picture.
	buf.Acquire()
	p.Buffer = buf
	k.held = buf

	if k.dec.pictures.Add(1) == 1 {
		k.dec.rt.diag.ReportVideoFormat(p.Format, p.Width, p.Height, dar(p))
	}
	return PictureReady
}

// flushed discards samples queued before the flush so a post-reset
// retrieval never hands out a stale frame.
func (k *softwareSink) flushed() {
	for {
		select {
		case <-k.samples:
		default:
			return
		}
	}
}

func (k *softwareSink) dispose() {
	k.once.Do(func() { close(k.stop) })
	k.flushed()

	k.mu.Lock()
	defer k.mu.Unlock()
	if k.held != nil {
		k.held.Release()
		k.held = nil
	}
	k.info = nil
}
