package gstpipe

import (
	"strings"
	"testing"
)

func TestCapsForCodec(t *testing.T) {
	tests := []struct {
		name     string
		codec    string
		wantBase string
	}{
		{"h264", "h264", "video/x-h264"},
		{"hevc", "hevc", "video/x-h265"},
		{"vp9", "vp9", "video/x-vp9"},
		{"mpeg2", "mpeg2", "video/mpeg,mpegversion=2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			caps, err := CapsForCodec(tt.codec, 1920, 1080, 30, 1)
			if err != nil {
				t.Fatalf("CapsForCodec(%q) error = %v", tt.codec, err)
			}
			if !strings.HasPrefix(caps, tt.wantBase) {
				t.Errorf("caps = %q, want prefix %q", caps, tt.wantBase)
			}
			if !strings.Contains(caps, "width=1920") || !strings.Contains(caps, "height=1080") {
				t.Errorf("caps = %q, missing dimensions", caps)
			}
			if !strings.Contains(caps, "framerate=30/1") {
				t.Errorf("caps = %q, missing framerate", caps)
			}
		})
	}
}

func TestCapsForCodec_NoFramerate(t *testing.T) {
	caps, err := CapsForCodec("h264", 1280, 720, 0, 0)
	if err != nil {
		t.Fatalf("CapsForCodec() error = %v", err)
	}
	if strings.Contains(caps, "framerate") {
		t.Errorf("caps = %q, framerate set without a valid rate", caps)
	}
}

func TestCapsForCodec_Unknown(t *testing.T) {
	if _, err := CapsForCodec("theora", 640, 480, 25, 1); err == nil {
		t.Error("CapsForCodec(theora) error = nil, want error")
	}
}
