package gstpipe

import "testing"

func TestVideoInfoFromCaps(t *testing.T) {
	caps := "video/x-raw, format=(string)NV12, width=(int)1920, height=(int)1080, " +
		"framerate=(fraction)30000/1001, pixel-aspect-ratio=(fraction)1/1, " +
		"interlace-mode=(string)progressive, colorimetry=(string)bt709"

	info, err := VideoInfoFromCaps(caps)
	if err != nil {
		t.Fatalf("VideoInfoFromCaps() error = %v", err)
	}

	if info.Width != 1920 || info.Height != 1080 {
		t.Errorf("dimensions = %dx%d, want 1920x1080", info.Width, info.Height)
	}
	if info.Format != "NV12" {
		t.Errorf("Format = %q, want NV12", info.Format)
	}
	if info.Bits != 8 {
		t.Errorf("Bits = %d, want 8", info.Bits)
	}
	if info.FPSN != 30000 || info.FPSD != 1001 {
		t.Errorf("framerate = %d/%d, want 30000/1001", info.FPSN, info.FPSD)
	}
	if info.ParN != 1 || info.ParD != 1 {
		t.Errorf("pixel-aspect-ratio = %d/%d, want 1/1", info.ParN, info.ParD)
	}
	if info.Interlaced {
		t.Error("Interlaced = true for progressive caps")
	}
	if info.Colorimetry.Primaries != 1 || info.Colorimetry.Matrix != 1 {
		t.Errorf("colorimetry = %+v, want bt709 code points", info.Colorimetry)
	}
	if info.Mastering != nil || info.ContentLight != nil {
		t.Error("HDR metadata set without caps fields")
	}
}

func TestVideoInfoFromCaps_HDR(t *testing.T) {
	caps := "video/x-raw, format=(string)P010_10LE, width=(int)3840, height=(int)2160, " +
		"colorimetry=(string)bt2100-pq, " +
		"mastering-display-info=(string)35400:14600:8500:39850:6550:2300:15635:16450:10000000:1, " +
		"content-light-level=(string)1000:400"

	info, err := VideoInfoFromCaps(caps)
	if err != nil {
		t.Fatalf("VideoInfoFromCaps() error = %v", err)
	}

	if info.Bits != 10 {
		t.Errorf("Bits = %d, want 10", info.Bits)
	}
	if info.Colorimetry.Transfer != 16 {
		t.Errorf("Transfer = %d, want 16 (PQ)", info.Colorimetry.Transfer)
	}
	if info.Mastering == nil {
		t.Fatal("Mastering = nil, want parsed")
	}
	if info.Mastering.Primaries[0] != [2]int{35400, 14600} {
		t.Errorf("red primary = %v, want [35400 14600]", info.Mastering.Primaries[0])
	}
	if info.Mastering.WhitePoint != [2]int{15635, 16450} {
		t.Errorf("white point = %v, want [15635 16450]", info.Mastering.WhitePoint)
	}
	if info.Mastering.MaxLuminance != 10000000 || info.Mastering.MinLuminance != 1 {
		t.Errorf("luminance = %d/%d, want 10000000/1",
			info.Mastering.MaxLuminance, info.Mastering.MinLuminance)
	}
	if info.ContentLight == nil {
		t.Fatal("ContentLight = nil, want parsed")
	}
	if info.ContentLight.MaxCLL != 1000 || info.ContentLight.MaxFALL != 400 {
		t.Errorf("content light = %d/%d, want 1000/400",
			info.ContentLight.MaxCLL, info.ContentLight.MaxFALL)
	}
}

func TestVideoInfoFromCaps_Interlaced(t *testing.T) {
	caps := "video/x-raw, format=(string)I420, width=(int)720, height=(int)576, " +
		"interlace-mode=(string)interleaved, field-order=(string)top-field-first"

	info, err := VideoInfoFromCaps(caps)
	if err != nil {
		t.Fatalf("VideoInfoFromCaps() error = %v", err)
	}
	if !info.Interlaced {
		t.Error("Interlaced = false for interleaved caps")
	}
	if !info.TopFieldFirst {
		t.Error("TopFieldFirst = false for top-field-first caps")
	}
}

func TestVideoInfoFromCaps_Rejects(t *testing.T) {
	tests := []struct {
		name string
		caps string
	}{
		{"empty", ""},
		{"not raw video", "video/x-h264, width=(int)1920, height=(int)1080"},
		{"missing dimensions", "video/x-raw, format=(string)I420"},
		{"missing format", "video/x-raw, width=(int)1920, height=(int)1080"},
		{"zero width", "video/x-raw, format=(string)I420, width=(int)0, height=(int)1080"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := VideoInfoFromCaps(tt.caps); err == nil {
				t.Errorf("VideoInfoFromCaps(%q) error = nil, want error", tt.caps)
			}
		})
	}
}

func TestVideoInfoFromCaps_MultipleStructures(t *testing.T) {
	caps := "video/x-raw, format=(string)I420, width=(int)640, height=(int)480; " +
		"video/x-raw, format=(string)NV12, width=(int)1280, height=(int)720"

	info, err := VideoInfoFromCaps(caps)
	if err != nil {
		t.Fatalf("VideoInfoFromCaps() error = %v", err)
	}
	if info.Width != 640 || info.Format != "I420" {
		t.Errorf("got %q %dx%d, want first structure I420 640x480",
			info.Format, info.Width, info.Height)
	}
}

func TestParseColorimetry(t *testing.T) {
	unspec := Colorimetry{Primaries: ColorUnspecified, Transfer: ColorUnspecified, Matrix: ColorUnspecified}

	tests := []struct {
		name string
		in   string
		want Colorimetry
	}{
		{"empty", "", unspec},
		{"garbage", "not-a-colorimetry", unspec},
		{"bt709 shorthand", "bt709", Colorimetry{RangeKnown: true, Primaries: 1, Transfer: 1, Matrix: 1}},
		{"bt601 shorthand", "bt601", Colorimetry{RangeKnown: true, Primaries: 6, Transfer: 6, Matrix: 6}},
		{"pq shorthand", "bt2100-pq", Colorimetry{RangeKnown: true, Primaries: 9, Transfer: 16, Matrix: 9}},
		{"numeric bt709 limited", "2:3:5:1", Colorimetry{RangeKnown: true, Primaries: 1, Transfer: 1, Matrix: 1}},
		{"numeric full range", "1:3:5:1", Colorimetry{FullRange: true, RangeKnown: true, Primaries: 1, Transfer: 1, Matrix: 1}},
		{"numeric unmapped enums", "0:99:99:99", unspec},
		{"wrong field count", "2:3:5", unspec},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseColorimetry(tt.in); got != tt.want {
				t.Errorf("ParseColorimetry(%q) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseMasteringDisplay_Rejects(t *testing.T) {
	for _, in := range []string{"", "1:2:3", "a:b:c:d:e:f:g:h:i:j"} {
		if _, err := ParseMasteringDisplay(in); err == nil {
			t.Errorf("ParseMasteringDisplay(%q) error = nil, want error", in)
		}
	}
}

func TestParseContentLight_Rejects(t *testing.T) {
	for _, in := range []string{"", "1000", "a:b"} {
		if _, err := ParseContentLight(in); err == nil {
			t.Errorf("ParseContentLight(%q) error = nil, want error", in)
		}
	}
}

func TestFormatBits(t *testing.T) {
	tests := []struct {
		format string
		want   int
	}{
		{"I420", 8},
		{"NV12", 8},
		{"P010_10LE", 10},
		{"I420_12LE", 12},
		{"Y444_16BE", 16},
	}

	for _, tt := range tests {
		if got := formatBits(tt.format); got != tt.want {
			t.Errorf("formatBits(%q) = %d, want %d", tt.format, got, tt.want)
		}
	}
}

func TestSplitCapsFields_QuotedAndBraced(t *testing.T) {
	parts := splitCapsFields(`video/x-raw, format={ I420, NV12 }, note="a,b", width=640`)
	if len(parts) != 4 {
		t.Fatalf("got %d parts %q, want 4", len(parts), parts)
	}
}
