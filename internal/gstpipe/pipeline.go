// Package gstpipe owns every direct interaction with the GStreamer graph:
// construction and teardown of the decode pipeline, the bus monitor, sample
// extraction from the pull sink and the compositor-surface handshake of the
// overlay sink. The parent package consumes it through plain Go values
// (Event, Sample, VideoInfo) so the decode state machine stays testable
// without a media runtime.
package gstpipe

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"
)

// Stage names used throughout the graph. Bus message sources are compared
// against these.
const (
	StageSource  = "video_src"
	StageDecoder = "video_decoder"
	StageConvert = "video_convert"
	StageScale   = "video_scale"
	StageQueue   = "video_queue"
	StageSink    = "video_sink"
)

// GenericDecoderFactory is the auto-plugging decoder selector. When the
// graph names it, readiness is deferred until the concrete decoder is known.
const GenericDecoderFactory = "decodebin"

// BuildConfig describes the graph to assemble.
type BuildConfig struct {
	// InputCaps is the source stage capability string (see CapsForCodec).
	InputCaps string
	// DecoderFactory is the decoder stage factory; GenericDecoderFactory
	// enables auto-plug mode.
	DecoderFactory string
	// OverlaySink selects the hardware overlay sink instead of the
	// software pull sink.
	OverlaySink bool
	// OverlaySinkFactory is the overlay sink element factory.
	OverlaySinkFactory string
	// DisplaySocket is the compositor socket name handed to the overlay
	// sink, from the environment.
	DisplaySocket string
}

// Elements holds the handles to every named stage of a constructed graph.
// Exactly one of AppSink and OverlaySink is non-nil.
type Elements struct {
	Pipeline *gst.Pipeline
	Source   *app.Source

	SourceElem *gst.Element
	Decoder    *gst.Element
	Convert    *gst.Element
	Scale      *gst.Element
	Queue      *gst.Element

	AppSink     *app.Sink
	OverlaySink *gst.Element

	// AutoPlug reports whether the decoder stage is the generic selector,
	// in which case readiness waits for the concrete decoder notification.
	AutoPlug bool
}

// Build assembles the linear decode graph:
//
//	appsrc → decoder → videoconvert → videoscale → queue → sink
//
// The pipeline is constructed but left in the NULL state; the caller starts
// it with Play. A nil source or sink handle after construction is fatal.
func Build(cfg BuildConfig) (*Elements, error) {
	gst.Init(nil)

	if cfg.DecoderFactory == "" {
		cfg.DecoderFactory = GenericDecoderFactory
	}

	pipeline, err := gst.NewPipeline("")
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline: %w", err)
	}

	source, err := gst.NewElement("appsrc")
	if err != nil {
		return nil, fmt.Errorf("failed to create source stage: %w", err)
	}
	source.SetProperty("name", StageSource)
	// Push mode: timestamped live buffers from the caller's decode loop.
	source.SetProperty("stream-type", 1)
	source.SetProperty("format", 3) // time format
	source.SetProperty("is-live", true)
	source.SetProperty("caps", gst.NewCapsFromString(cfg.InputCaps))

	decoder, err := gst.NewElement(cfg.DecoderFactory)
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder stage %q: %w", cfg.DecoderFactory, err)
	}
	decoder.SetProperty("name", StageDecoder)

	convert, err := gst.NewElement("videoconvert")
	if err != nil {
		return nil, fmt.Errorf("failed to create convert stage: %w", err)
	}
	convert.SetProperty("name", StageConvert)

	scale, err := gst.NewElement("videoscale")
	if err != nil {
		return nil, fmt.Errorf("failed to create scale stage: %w", err)
	}
	scale.SetProperty("name", StageScale)

	queue, err := gst.NewElement("queue")
	if err != nil {
		return nil, fmt.Errorf("failed to create queue stage: %w", err)
	}
	queue.SetProperty("name", StageQueue)

	els := &Elements{
		Pipeline:   pipeline,
		SourceElem: source,
		Decoder:    decoder,
		Convert:    convert,
		Scale:      scale,
		Queue:      queue,
		AutoPlug:   cfg.DecoderFactory == GenericDecoderFactory,
	}

	var sinkElem *gst.Element
	if cfg.OverlaySink {
		factory := cfg.OverlaySinkFactory
		if factory == "" {
			factory = "waylandsink"
		}
		overlay, err := gst.NewElement(factory)
		if err != nil {
			return nil, fmt.Errorf("failed to create overlay sink %q: %w", factory, err)
		}
		overlay.SetProperty("name", StageSink)
		if cfg.DisplaySocket != "" {
			overlay.SetProperty("display", cfg.DisplaySocket)
		}
		els.OverlaySink = overlay
		sinkElem = overlay
	} else {
		appsink, err := app.NewAppSink()
		if err != nil {
			return nil, fmt.Errorf("failed to create pull sink: %w", err)
		}
		appsink.SetProperty("name", StageSink)
		appsink.SetProperty("sync", false)
		appsink.SetProperty("max-buffers", 2)
		els.AppSink = appsink
		sinkElem = appsink.Element
	}

	if els.SourceElem == nil || sinkElem == nil {
		return nil, fmt.Errorf("graph is missing its source or sink stage")
	}

	pipeline.AddMany(source, decoder, convert, scale, queue, sinkElem)

	// The generic decoder exposes dynamic pads; it is linked to the convert
	// stage from its pad-added signal. Explicit decoders link statically.
	if err := gst.ElementLinkMany(source, decoder); err != nil {
		return nil, fmt.Errorf("failed to link source to decoder: %w", err)
	}
	if err := gst.ElementLinkMany(convert, scale, queue, sinkElem); err != nil {
		return nil, fmt.Errorf("failed to link output stages: %w", err)
	}
	if els.AutoPlug {
		decoder.Connect("pad-added", func(self *gst.Element, srcPad *gst.Pad) {
			linkDynamicPad(srcPad, convert)
		})
	} else {
		if err := gst.ElementLinkMany(decoder, convert); err != nil {
			return nil, fmt.Errorf("failed to link decoder to convert stage: %w", err)
		}
	}

	els.Source = app.SrcFromElement(source)
	if els.Source == nil {
		return nil, fmt.Errorf("graph is missing its source stage")
	}

	slog.Debug("gstpipe: graph assembled",
		"decoder", cfg.DecoderFactory,
		"auto_plug", els.AutoPlug,
		"overlay", cfg.OverlaySink,
		"caps", cfg.InputCaps,
	)

	return els, nil
}

// linkDynamicPad links a freshly exposed decoder source pad to the convert
// stage.
func linkDynamicPad(srcPad *gst.Pad, next *gst.Element) {
	sinkPad := next.GetStaticPad("sink")
	if sinkPad == nil {
		slog.Error("gstpipe: convert stage has no sink pad")
		return
	}
	if ret := srcPad.Link(sinkPad); ret != gst.PadLinkOK {
		slog.Error("gstpipe: failed to link decoder pad",
			"src_pad", srcPad.GetName(),
			"ret", ret,
		)
		return
	}
	slog.Debug("gstpipe: decoder pad linked", "src_pad", srcPad.GetName())
}

// ConnectDecoderDetected fires the callback once per concrete decoder the
// auto-plugger commits to. The callback runs on the framework's signal
// thread, concurrently with both the caller and the bus monitor.
func (e *Elements) ConnectDecoderDetected(fn func(DecoderDetectedEvent)) {
	if e.Decoder == nil {
		return
	}
	e.Decoder.Connect("element-added", func(self *gst.Element, added *gst.Element) {
		factory := added.GetFactory()
		if factory == nil {
			return
		}
		name := factory.GetName()
		klass := factory.GetMetadata("klass")
		isDecoder, hardware := ClassifyDecoderFactory(name, klass)
		slog.Debug("gstpipe: auto-plugged element",
			"factory", name,
			"klass", klass,
			"decoder", isDecoder,
			"hardware", hardware,
		)
		if !isDecoder {
			return
		}
		fn(DecoderDetectedEvent{Name: "gs-" + name, Hardware: hardware})
	})
}

// ConnectSeekData records the position the source stage asks the caller to
// resume pushing from.
func (e *Elements) ConnectSeekData(fn func(position uint64)) {
	if e.SourceElem == nil {
		return
	}
	e.SourceElem.Connect("seek-data", func(self *gst.Element, position uint64) bool {
		fn(position)
		return true
	})
}

// ClassifyDecoderFactory reports whether an auto-plugged element factory is
// a video decoder and whether it is hardware backed, from its class
// metadata.
func ClassifyDecoderFactory(name, klass string) (isDecoder, hardware bool) {
	isDecoder = strings.Contains(klass, "Decoder") && strings.Contains(klass, "Video")
	hardware = strings.Contains(klass, "Hardware")
	return isDecoder, hardware
}

// Play moves the pipeline to the PLAYING state.
func (e *Elements) Play() error {
	if err := e.Pipeline.SetState(gst.StatePlaying); err != nil {
		return fmt.Errorf("failed to start pipeline: %w", err)
	}
	return nil
}

// PushPacket copies the payload into a freshly allocated graph buffer,
// stamps it and pushes it into the source stage. Timestamps are applied only
// when defined so undefined inputs keep the graph's own "no timestamp"
// value. A non-OK flow result is fatal to the session.
func (e *Elements) PushPacket(payload []byte, pts, dts time.Duration, ptsValid, dtsValid bool, duration time.Duration) error {
	buffer := gst.NewBufferWithSize(int64(len(payload)))
	buffer.Map(gst.MapWrite).WriteData(payload)
	buffer.Unmap()

	if ptsValid {
		buffer.SetPresentationTimestamp(pts)
	}
	if dtsValid {
		buffer.SetDecodingTimestamp(dts)
	}
	if duration > 0 {
		buffer.SetDuration(duration)
	}

	if ret := e.Source.PushBuffer(buffer); ret != gst.FlowOK {
		return fmt.Errorf("source stage rejected buffer: %s", ret)
	}
	return nil
}

// Flush sends a flush-start followed by a flush-stop through the graph,
// discarding queued data without tearing the graph down.
func (e *Elements) Flush() {
	if e.Pipeline == nil {
		return
	}
	if !e.Pipeline.SendEvent(gst.NewFlushStartEvent()) {
		slog.Debug("gstpipe: flush-start not handled")
	}
	if !e.Pipeline.SendEvent(gst.NewFlushStopEvent(false)) {
		slog.Debug("gstpipe: flush-stop not handled")
	}
}

// Destroy moves the pipeline to NULL and drops every stage handle. Safe to
// call more than once.
func (e *Elements) Destroy() {
	if e.Pipeline != nil {
		if err := e.Pipeline.SetState(gst.StateNull); err != nil {
			slog.Error("gstpipe: failed to null pipeline", "error", err)
		}
		e.Pipeline = nil
	}

	e.Source = nil
	e.SourceElem = nil
	e.Decoder = nil
	e.Convert = nil
	e.Scale = nil
	e.Queue = nil
	e.AppSink = nil
	e.OverlaySink = nil
}
