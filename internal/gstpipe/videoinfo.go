package gstpipe

import (
	"fmt"
	"strconv"
	"strings"
)

// ISO/IEC 23001-8 code point for "unspecified", shared by the primaries,
// transfer and matrix fields.
const ColorUnspecified = 2

// Colorimetry carries the negotiated color description as ISO/IEC 23001-8
// code points, plus the signalled sample range.
type Colorimetry struct {
	FullRange  bool
	RangeKnown bool
	Primaries  int
	Transfer   int
	Matrix     int
}

// MasteringDisplay is the HDR mastering-display description, in the units
// carried on the wire (chromaticity in 0.00002 steps, luminance in 0.0001
// cd/m² steps). Values are passed through, never converted.
type MasteringDisplay struct {
	Primaries    [3][2]int
	WhitePoint   [2]int
	MaxLuminance int
	MinLuminance int
}

// ContentLightLevel is the HDR content-light-level description.
type ContentLightLevel struct {
	MaxCLL  int
	MaxFALL int
}

// VideoInfo is the negotiated raw-video format as reported by the sink's
// sample caps. It is derived once, on the first successful pull, and cached
// for the rest of the session.
type VideoInfo struct {
	Width  int
	Height int
	ParN   int
	ParD   int
	FPSN   int
	FPSD   int

	Format string
	Bits   int

	Interlaced    bool
	TopFieldFirst bool

	Colorimetry  Colorimetry
	Mastering    *MasteringDisplay
	ContentLight *ContentLightLevel
}

// VideoInfoFromCaps parses the canonical caps string of a raw-video sample
// (as produced by the framework's caps serialization, e.g.
// `video/x-raw, format=(string)I420, width=(int)1920, ...`).
func VideoInfoFromCaps(caps string) (*VideoInfo, error) {
	name, fields, err := parseCapsFields(caps)
	if err != nil {
		return nil, err
	}
	if name != "video/x-raw" {
		return nil, fmt.Errorf("sample is not raw video: %q", name)
	}

	width, errW := strconv.Atoi(fields["width"])
	height, errH := strconv.Atoi(fields["height"])
	if errW != nil || errH != nil || width <= 0 || height <= 0 {
		return nil, fmt.Errorf("caps carry no usable dimensions: %q", caps)
	}

	format := fields["format"]
	if format == "" {
		return nil, fmt.Errorf("caps carry no format: %q", caps)
	}

	info := &VideoInfo{
		Width:  width,
		Height: height,
		ParN:   1,
		ParD:   1,
		Format: format,
		Bits:   formatBits(format),
	}

	if par, ok := fields["pixel-aspect-ratio"]; ok {
		if n, d, err := parseFraction(par); err == nil && d != 0 {
			info.ParN, info.ParD = n, d
		}
	}
	if fr, ok := fields["framerate"]; ok {
		if n, d, err := parseFraction(fr); err == nil {
			info.FPSN, info.FPSD = n, d
		}
	}

	switch fields["interlace-mode"] {
	case "", "progressive":
	default:
		info.Interlaced = true
		info.TopFieldFirst = fields["field-order"] == "top-field-first"
	}

	info.Colorimetry = ParseColorimetry(fields["colorimetry"])

	if mdi, ok := fields["mastering-display-info"]; ok {
		if m, err := ParseMasteringDisplay(mdi); err == nil {
			info.Mastering = m
		}
	}
	if cll, ok := fields["content-light-level"]; ok {
		if l, err := ParseContentLight(cll); err == nil {
			info.ContentLight = l
		}
	}

	return info, nil
}

// parseCapsFields splits the first structure of a serialized caps string
// into its media-type name and a field map. Type annotations like `(int)`
// are stripped; quoted values are unquoted.
func parseCapsFields(caps string) (string, map[string]string, error) {
	caps = strings.TrimSpace(caps)
	if caps == "" {
		return "", nil, fmt.Errorf("empty caps")
	}

	// Only the first structure matters for a negotiated sample.
	if i := strings.IndexByte(caps, ';'); i >= 0 {
		caps = caps[:i]
	}

	parts := splitCapsFields(caps)
	name := strings.TrimSpace(parts[0])
	if name == "" || strings.ContainsAny(name, "=") {
		return "", nil, fmt.Errorf("malformed caps: %q", caps)
	}

	fields := make(map[string]string, len(parts)-1)
	for _, part := range parts[1:] {
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)

		value = strings.TrimSpace(value)
		if strings.HasPrefix(value, "(") {
			if j := strings.IndexByte(value, ')'); j >= 0 {
				value = value[j+1:]
			}
		}
		value = strings.Trim(value, `"`)
		fields[key] = value
	}

	return name, fields, nil
}

// splitCapsFields splits on commas that are not inside quotes or braces, so
// list values like `{ I420, NV12 }` survive.
func splitCapsFields(s string) []string {
	var parts []string
	depth := 0
	quoted := false
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"':
			quoted = !quoted
		case '{', '[', '<':
			if !quoted {
				depth++
			}
		case '}', ']', '>':
			if !quoted {
				depth--
			}
		case ',':
			if !quoted && depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	parts = append(parts, s[start:])
	return parts
}

func parseFraction(s string) (int, int, error) {
	numStr, denStr, ok := strings.Cut(s, "/")
	if !ok {
		return 0, 0, fmt.Errorf("not a fraction: %q", s)
	}
	n, errN := strconv.Atoi(strings.TrimSpace(numStr))
	d, errD := strconv.Atoi(strings.TrimSpace(denStr))
	if errN != nil || errD != nil {
		return 0, 0, fmt.Errorf("not a fraction: %q", s)
	}
	return n, d, nil
}

// Well-known colorimetry shorthands and their ISO code points.
var namedColorimetry = map[string]Colorimetry{
	"bt601":      {FullRange: false, RangeKnown: true, Primaries: 6, Transfer: 6, Matrix: 6},
	"bt709":      {FullRange: false, RangeKnown: true, Primaries: 1, Transfer: 1, Matrix: 1},
	"bt2020":     {FullRange: false, RangeKnown: true, Primaries: 9, Transfer: 14, Matrix: 9},
	"bt2100-pq":  {FullRange: false, RangeKnown: true, Primaries: 9, Transfer: 16, Matrix: 9},
	"bt2100-hlg": {FullRange: false, RangeKnown: true, Primaries: 9, Transfer: 18, Matrix: 9},
	"srgb":       {FullRange: true, RangeKnown: true, Primaries: 1, Transfer: 13, Matrix: 0},
}

// Framework colorimetry enums to ISO/IEC 23001-8 code points. Unmapped
// values collapse to "unspecified".
var (
	matrixToISO    = map[int]int{1: 0, 2: 4, 3: 1, 4: 6, 5: 7, 6: 9}
	transferToISO  = map[int]int{5: 1, 6: 7, 7: 13, 8: 5, 9: 9, 10: 10, 11: 15, 13: 14, 14: 16, 15: 18}
	primariesToISO = map[int]int{1: 1, 2: 4, 3: 5, 4: 6, 5: 7, 6: 8, 7: 9}
)

// ParseColorimetry decodes either a shorthand name ("bt709") or the
// colon-separated numeric form "range:matrix:transfer:primaries" into ISO
// code points. Anything unparseable yields all-unspecified.
func ParseColorimetry(s string) Colorimetry {
	unknown := Colorimetry{
		Primaries: ColorUnspecified,
		Transfer:  ColorUnspecified,
		Matrix:    ColorUnspecified,
	}

	s = strings.TrimSpace(s)
	if s == "" {
		return unknown
	}
	if c, ok := namedColorimetry[s]; ok {
		return c
	}

	parts := strings.Split(s, ":")
	if len(parts) != 4 {
		return unknown
	}
	vals := make([]int, 4)
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil {
			return unknown
		}
		vals[i] = v
	}

	c := unknown
	switch vals[0] {
	case 1:
		c.FullRange, c.RangeKnown = true, true
	case 2:
		c.FullRange, c.RangeKnown = false, true
	}
	if iso, ok := matrixToISO[vals[1]]; ok {
		c.Matrix = iso
	}
	if iso, ok := transferToISO[vals[2]]; ok {
		c.Transfer = iso
	}
	if iso, ok := primariesToISO[vals[3]]; ok {
		c.Primaries = iso
	}
	return c
}

// ParseMasteringDisplay decodes the ten colon-separated integers of a
// mastering-display-info caps field:
// "Rx:Ry:Gx:Gy:Bx:By:Wx:Wy:maxLum:minLum".
func ParseMasteringDisplay(s string) (*MasteringDisplay, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 10 {
		return nil, fmt.Errorf("mastering-display-info needs 10 fields, got %d", len(parts))
	}
	vals := make([]int, 10)
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("mastering-display-info field %d: %w", i, err)
		}
		vals[i] = v
	}

	m := &MasteringDisplay{
		WhitePoint:   [2]int{vals[6], vals[7]},
		MaxLuminance: vals[8],
		MinLuminance: vals[9],
	}
	for i := 0; i < 3; i++ {
		m.Primaries[i] = [2]int{vals[i*2], vals[i*2+1]}
	}
	return m, nil
}

// ParseContentLight decodes a content-light-level caps field
// "maxCLL:maxFALL".
func ParseContentLight(s string) (*ContentLightLevel, error) {
	cllStr, fallStr, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return nil, fmt.Errorf("content-light-level needs 2 fields: %q", s)
	}
	cll, errC := strconv.Atoi(cllStr)
	fall, errF := strconv.Atoi(fallStr)
	if errC != nil || errF != nil {
		return nil, fmt.Errorf("content-light-level is not numeric: %q", s)
	}
	return &ContentLightLevel{MaxCLL: cll, MaxFALL: fall}, nil
}

// formatBits reports the per-component bit depth of a raw format name.
func formatBits(format string) int {
	switch {
	case strings.Contains(format, "_10"):
		return 10
	case strings.Contains(format, "_12"):
		return 12
	case strings.Contains(format, "_16"):
		return 16
	default:
		return 8
	}
}
