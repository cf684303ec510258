package gstdecoder

import (
	"math"

	"github.com/e7canasta/gst-decoder/internal/gstpipe"
)

// setPictureParams fills the derived fields of a picture from the
// negotiated video info, falling back to the stream hints wherever the
// negotiation left a field unspecified.
func setPictureParams(p *Picture, info *gstpipe.VideoInfo, hints CodecHints) {
	p.Width = info.Width
	p.Height = info.Height
	p.Format = info.Format
	p.Bits = info.Bits
	p.Interlaced = info.Interlaced
	p.TopFieldFirst = info.TopFieldFirst

	p.DisplayWidth, p.DisplayHeight = displaySize(info, hints)

	// Color description: the container hints win only where the caps say
	// "unspecified".
	p.ColorPrimaries = info.Colorimetry.Primaries
	if p.ColorPrimaries == gstpipe.ColorUnspecified && hints.ColorPrimaries != 0 {
		p.ColorPrimaries = hints.ColorPrimaries
	}
	p.ColorTransfer = info.Colorimetry.Transfer
	if p.ColorTransfer == gstpipe.ColorUnspecified && hints.ColorTransfer != 0 {
		p.ColorTransfer = hints.ColorTransfer
	}
	p.ColorMatrix = info.Colorimetry.Matrix
	if p.ColorMatrix == gstpipe.ColorUnspecified && hints.ColorMatrix != 0 {
		p.ColorMatrix = hints.ColorMatrix
	}
	if info.Colorimetry.RangeKnown {
		p.FullRange = info.Colorimetry.FullRange
	} else {
		p.FullRange = hints.FullRange
	}

	if info.Mastering != nil {
		p.Mastering = &MasteringMetadata{
			Primaries:    info.Mastering.Primaries,
			WhitePoint:   info.Mastering.WhitePoint,
			MaxLuminance: info.Mastering.MaxLuminance,
			MinLuminance: info.Mastering.MinLuminance,
		}
	} else {
		p.Mastering = hints.Mastering
	}
	if info.ContentLight != nil {
		p.ContentLight = &ContentLightMetadata{
			MaxCLL:  info.ContentLight.MaxCLL,
			MaxFALL: info.ContentLight.MaxFALL,
		}
	} else {
		p.ContentLight = hints.ContentLight
	}
}

// displaySize derives the presentation dimensions from the display aspect
// ratio. The container's signalled aspect wins over the negotiated pixel
// aspect ratio. Widths are rounded down to a multiple of four so scaler
// alignment never stretches the last column block; the display size never
// exceeds the coded size.
func displaySize(info *gstpipe.VideoInfo, hints CodecHints) (int, int) {
	width, height := info.Width, info.Height
	if width <= 0 || height <= 0 {
		return width, height
	}

	aspect := hints.Aspect
	if aspect <= 0 && info.ParD != 0 {
		aspect = float64(width*info.ParN) / float64(height*info.ParD)
	}
	if aspect <= 0 {
		return width, height
	}

	dw := int(math.Round(float64(height)*aspect)) &^ 3
	dh := height
	if dw > width {
		dw = width
		dh = int(math.Round(float64(width)/aspect)) &^ 3
	}
	if dw <= 0 || dh <= 0 {
		return width, height
	}
	return dw, dh
}

// dar reports the effective display aspect ratio of a picture.
func dar(p *Picture) float64 {
	if p.DisplayHeight == 0 {
		return 0
	}
	return float64(p.DisplayWidth) / float64(p.DisplayHeight)
}

// infoFromHints builds a minimal video info for the overlay path, where no
// raw caps ever reach this process. Color description converts through the
// same hint fallback as the software path, so the derived picture fields
// stay identical between sinks.
func infoFromHints(hints CodecHints) *gstpipe.VideoInfo {
	return &gstpipe.VideoInfo{
		Width:  hints.Width,
		Height: hints.Height,
		ParN:   1,
		ParD:   1,
		FPSN:   hints.FPSRate,
		FPSD:   hints.FPSScale,
		Bits:   8,
		Colorimetry: gstpipe.Colorimetry{
			Primaries: gstpipe.ColorUnspecified,
			Transfer:  gstpipe.ColorUnspecified,
			Matrix:    gstpipe.ColorUnspecified,
		},
	}
}
