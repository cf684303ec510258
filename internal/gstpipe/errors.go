package gstpipe

import "strings"

// ErrorCategory classifies asynchronous pipeline errors for diagnostics
// counters. The category does not change how an error is handled: every bus
// error is fatal and tears the pipeline down. It only tells an operator
// whether the stream, the negotiation or the host is to blame.
type ErrorCategory int

const (
	// ErrCategoryDecode indicates decode failures inside a decoder element.
	ErrCategoryDecode ErrorCategory = iota
	// ErrCategoryNegotiation indicates caps/format negotiation failures.
	ErrCategoryNegotiation
	// ErrCategoryResource indicates allocation or device failures.
	ErrCategoryResource
	// ErrCategoryUnknown indicates unclassified errors.
	ErrCategoryUnknown
)

// String returns a human-readable string representation of the category.
func (e ErrorCategory) String() string {
	switch e {
	case ErrCategoryDecode:
		return "decode"
	case ErrCategoryNegotiation:
		return "negotiation"
	case ErrCategoryResource:
		return "resource"
	default:
		return "unknown"
	}
}

// Classify categorizes a pipeline error from its message and debug strings.
// Classification is based on message heuristics; the underlying GError domain
// is not exposed by the bindings.
func Classify(message, debug string) ErrorCategory {
	combined := strings.ToLower(message) + " " + strings.ToLower(debug)

	// Negotiation problems first: they often also mention "decode".
	// GStreamer spells the flow return "not-negotiated" and talks about a
	// "plug-in", so both hyphenated forms are matched as well.
	if containsAny(combined,
		"not negotiated",
		"not-negotiated",
		"negotiation",
		"caps",
		"no decoder",
		"missing plugin",
		"plug-in",
		"could not determine type",
		"format",
	) {
		return ErrCategoryNegotiation
	}

	if containsAny(combined,
		"decode",
		"decoding",
		"corrupt",
		"bitstream",
		"reference frame",
		"h264",
		"h265",
		"hevc",
		"vp8",
		"vp9",
		"av1",
	) {
		return ErrCategoryDecode
	}

	if containsAny(combined,
		"allocat",
		"no memory",
		"out of memory",
		"device",
		"resource",
		"busy",
		"could not open",
	) {
		return ErrCategoryResource
	}

	return ErrCategoryUnknown
}

func containsAny(s string, keywords ...string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
