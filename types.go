package gstdecoder

import (
	"math"
	"time"

	"github.com/e7canasta/gst-decoder/internal/bufferpool"
	"github.com/e7canasta/gst-decoder/internal/gstpipe"
)

// NoTimestamp marks an undefined packet or picture timestamp. Timestamps are
// in microseconds.
const NoTimestamp int64 = math.MinInt64

// Codec identifies the compressed video format of a stream.
type Codec int

const (
	CodecUnknown Codec = iota
	CodecH264
	CodecHEVC
	CodecVP8
	CodecVP9
	CodecAV1
	CodecMPEG2
	CodecMPEG4
)

// String returns the canonical lowercase codec identifier.
func (c Codec) String() string {
	switch c {
	case CodecH264:
		return "h264"
	case CodecHEVC:
		return "hevc"
	case CodecVP8:
		return "vp8"
	case CodecVP9:
		return "vp9"
	case CodecAV1:
		return "av1"
	case CodecMPEG2:
		return "mpeg2"
	case CodecMPEG4:
		return "mpeg4"
	default:
		return "unknown"
	}
}

// MasteringMetadata is the HDR mastering-display description from the
// container or bitstream. Units match the wire format (chromaticity in
// 0.00002 steps, luminance in 0.0001 cd/m² steps); values pass through
// unconverted.
type MasteringMetadata struct {
	// Primaries holds the red, green and blue display primaries as x/y
	// pairs.
	Primaries [3][2]int
	// WhitePoint is the white point as an x/y pair.
	WhitePoint [2]int
	// MaxLuminance is the maximum display luminance.
	MaxLuminance int
	// MinLuminance is the minimum display luminance.
	MinLuminance int
}

// ContentLightMetadata is the HDR content-light-level description.
type ContentLightMetadata struct {
	// MaxCLL is the maximum content light level.
	MaxCLL int
	// MaxFALL is the maximum frame-average light level.
	MaxFALL int
}

// CodecHints describes the stream about to be decoded. It is provided to
// Open and is immutable for the rest of the session.
type CodecHints struct {
	// Codec is the compressed format (required).
	Codec Codec
	// Width and Height are the coded dimensions (required, non-zero).
	Width  int
	Height int
	// FPSRate and FPSScale form the frame rate fraction rate/scale.
	// Zero means unknown.
	FPSRate  int
	FPSScale int
	// Aspect is the display aspect ratio signalled by the container.
	// Zero means unknown; the negotiated pixel aspect ratio is used
	// instead.
	Aspect float64
	// ColorPrimaries, ColorTransfer and ColorMatrix are ISO/IEC 23001-8
	// code points from the container, used when the negotiated caps
	// leave them unspecified.
	ColorPrimaries int
	ColorTransfer  int
	ColorMatrix    int
	// FullRange reports full-range samples when the caps do not signal
	// a range.
	FullRange bool
	// Mastering and ContentLight carry container-level HDR metadata,
	// used when the caps carry none.
	Mastering    *MasteringMetadata
	ContentLight *ContentLightMetadata
}

// CompressedPacket is one demuxed access unit handed to AddData. The
// payload is copied at the ingestion boundary; the caller keeps ownership
// of Data.
type CompressedPacket struct {
	// Data is the compressed payload. Empty packets are accepted and
	// ignored.
	Data []byte
	// PTS is the presentation timestamp in microseconds, or NoTimestamp.
	PTS int64
	// DTS is the decode timestamp in microseconds, or NoTimestamp.
	DTS int64
	// Duration is the packet duration in microseconds. Zero means
	// unknown.
	Duration int64
}

// PictureResult is the outcome of a GetPicture call.
type PictureResult int

const (
	// PictureNone means no picture is available and none is imminent.
	PictureNone PictureResult = iota
	// PictureAgain means the caller should retry shortly.
	PictureAgain
	// PictureReady means the out-parameter holds a decoded picture.
	PictureReady
	// PictureEOF means the stream has drained completely.
	PictureEOF
	// PictureError means retrieval failed.
	PictureError
)

// String returns a human-readable string representation of the result.
func (r PictureResult) String() string {
	switch r {
	case PictureNone:
		return "none"
	case PictureAgain:
		return "again"
	case PictureReady:
		return "ready"
	case PictureEOF:
		return "eof"
	case PictureError:
		return "error"
	default:
		return "invalid"
	}
}

// Picture is one decoded frame. On the software path Buffer carries the
// pixel data; on the overlay path the sink presents directly and Buffer is
// a bookkeeping slot with no pixels.
type Picture struct {
	// Buffer is the pool slot backing this picture. The caller releases
	// it when done; the decoder releases its own reference when the next
	// picture is retrieved.
	Buffer *bufferpool.Buffer

	// PTS is the presentation timestamp in microseconds, or NoTimestamp.
	PTS int64

	// Width and Height are the coded dimensions.
	Width  int
	Height int
	// DisplayWidth and DisplayHeight are the dimensions to present at,
	// derived from the display aspect ratio.
	DisplayWidth  int
	DisplayHeight int

	// Format is the negotiated raw format name (e.g. "NV12"). Empty on
	// the overlay path.
	Format string
	// Bits is the per-component bit depth.
	Bits int

	Interlaced    bool
	TopFieldFirst bool

	// Color description as ISO/IEC 23001-8 code points.
	ColorPrimaries int
	ColorTransfer  int
	ColorMatrix    int
	FullRange      bool

	Mastering    *MasteringMetadata
	ContentLight *ContentLightMetadata

	// DecoderName is the resolved decoder identifier, e.g. "gs-avdec_h264".
	DecoderName string
	// TraceID is a unique identifier for distributed tracing.
	TraceID string
}

// StreamState is the decode session state.
type StreamState int32

const (
	// StateReset means a flush is in progress.
	StateReset StreamState = iota
	// StateFlushed means the session holds no pending data. Initial
	// state.
	StateFlushed
	// StateReady means a concrete decoder is resolved and the graph
	// accepts data.
	StateReady
	// StateRunning means the graph is playing.
	StateRunning
	// StateEOS means the stream drained completely. Terminal until a
	// flush.
	StateEOS
	// StateError means the session failed. Terminal until a flush.
	StateError
)

// String returns a human-readable string representation of the state.
func (s StreamState) String() string {
	switch s {
	case StateReset:
		return "reset"
	case StateFlushed:
		return "flushed"
	case StateReady:
		return "ready"
	case StateRunning:
		return "running"
	case StateEOS:
		return "eos"
	case StateError:
		return "error"
	default:
		return "invalid"
	}
}

// DecoderStats is a point-in-time snapshot of session counters.
type DecoderStats struct {
	// State is the current session state.
	State StreamState
	// DecoderName is the resolved decoder identifier, empty until
	// detection.
	DecoderName string
	// Hardware reports whether the resolved decoder is hardware backed.
	Hardware bool

	// PacketsPushed is the number of packets handed to the graph.
	PacketsPushed uint64
	// PacketsWithheld is the number of packets refused by the admission
	// policy.
	PacketsWithheld uint64
	// Pictures is the number of pictures handed out.
	Pictures uint64

	// PullTimeouts counts software-path retrievals that timed out.
	PullTimeouts uint64
	// PullErrors counts recoverable sample-extraction failures.
	PullErrors uint64
	// ConsecutivePullErrors counts extraction failures since the last
	// successful pull.
	ConsecutivePullErrors uint64

	// Asynchronous pipeline errors by category.
	ErrorsDecode      uint64
	ErrorsNegotiation uint64
	ErrorsResource    uint64
	ErrorsUnknown     uint64
}

// toPipelineTime maps a microsecond timestamp onto the graph clock. The
// sentinel maps to "undefined" (ok false); everything else converts exactly.
func toPipelineTime(us int64) (time.Duration, bool) {
	if us == NoTimestamp {
		return 0, false
	}
	return time.Duration(us) * time.Microsecond, true
}

// fromPipelineTime maps a graph timestamp in nanoseconds back to
// microseconds. Undefined graph timestamps surface as negatives and map to
// the sentinel.
func fromPipelineTime(ns int64) int64 {
	us, ok := gstpipe.MicrosFromClockTime(ns)
	if !ok {
		return NoTimestamp
	}
	return us
}
