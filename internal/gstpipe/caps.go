package gstpipe

import "fmt"

// codecCaps maps a codec identifier to the media type the source stage
// advertises. Byte-stream/elementary formats are used throughout so the
// caller's packet payloads can be pushed as-is, without attaching codec_data
// side channels.
var codecCaps = map[string]string{
	"h264":  "video/x-h264,stream-format=byte-stream,alignment=au",
	"hevc":  "video/x-h265,stream-format=byte-stream,alignment=au",
	"vp8":   "video/x-vp8",
	"vp9":   "video/x-vp9",
	"av1":   "video/x-av1",
	"mpeg2": "video/mpeg,mpegversion=2,systemstream=false",
	"mpeg4": "video/mpeg,mpegversion=4,systemstream=false",
}

// CapsForCodec builds the input-capability description for the source stage
// from the stream hints. An unknown codec identifier means no decoder can be
// resolved for the stream; that is fatal to Open.
func CapsForCodec(codec string, width, height, fpsRate, fpsScale int) (string, error) {
	base, ok := codecCaps[codec]
	if !ok {
		return "", fmt.Errorf("no decoder capability for codec %q", codec)
	}

	caps := fmt.Sprintf("%s,width=%d,height=%d", base, width, height)
	if fpsRate > 0 && fpsScale > 0 {
		caps += fmt.Sprintf(",framerate=%d/%d", fpsRate, fpsScale)
	}
	return caps, nil
}
