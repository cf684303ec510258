package gstpipe

import (
	"fmt"
	"time"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"
)

// Sample is one decoded frame extracted from the pull sink, copied out of
// the graph's buffer so its lifetime is the caller's. Err is set when the
// sample was present but not extractable; such failures are recoverable and
// must not alter pipeline state.
type Sample struct {
	Data []byte
	Caps string
	// PTS is the presentation timestamp in microseconds; Valid is false
	// when the frame carries the "no timestamp" value.
	PTS   int64
	Valid bool
	Err   error
}

// ReadSample pulls the pending sample from the sink and copies its payload
// and caps out of the graph. Call it from the sink's new-sample callback.
func ReadSample(sink *app.Sink) Sample {
	gsample := sink.PullSample()
	if gsample == nil {
		return Sample{Err: fmt.Errorf("sink produced no sample")}
	}

	buffer := gsample.GetBuffer()
	if buffer == nil {
		return Sample{Err: fmt.Errorf("sample carries no buffer")}
	}

	mapInfo := buffer.Map(gst.MapRead)
	raw := mapInfo.Bytes()
	if len(raw) == 0 {
		buffer.Unmap()
		return Sample{Err: fmt.Errorf("sample buffer cannot be mapped")}
	}
	data := make([]byte, len(raw))
	copy(data, raw)
	buffer.Unmap()

	caps := gsample.GetCaps()
	if caps == nil {
		return Sample{Err: fmt.Errorf("sample carries no caps")}
	}

	sample := Sample{Data: data, Caps: caps.String()}
	sample.PTS, sample.Valid = MicrosFromClockTime(int64(buffer.PresentationTimestamp()))

	return sample
}

// MicrosFromClockTime maps a graph timestamp in nanoseconds to microseconds.
// The bindings surface the graph's "no timestamp" value as a negative
// number, reported here as ok false.
func MicrosFromClockTime(ns int64) (int64, bool) {
	if ns < 0 {
		return 0, false
	}
	return ns / int64(time.Microsecond), true
}
