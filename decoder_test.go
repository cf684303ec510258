package gstdecoder

import (
	"testing"
	"time"

	"github.com/e7canasta/gst-decoder/internal/gstpipe"
)

func newTestDecoder(t *testing.T, diag Diagnostics) *VideoDecoder {
	t.Helper()
	rt, err := NewRuntime(RuntimeConfig{
		Settings:    mapSettings{SettingEnabled: true},
		Diagnostics: diag,
	})
	if err != nil {
		t.Fatalf("NewRuntime() error = %v", err)
	}
	return NewVideoDecoder(rt)
}

// fakeWindow is a test double for the windowing collaborator.
type fakeWindow struct {
	exported bool
	name     string
}

func (w *fakeWindow) SupportsExportedWindow() bool { return w.exported }

func (w *fakeWindow) ExportedWindowName() string { return w.name }

func (w *fakeWindow) SetRenderRectangle(x, y, wd, ht int) {}

func TestOpen_OverlayWithoutDisplaySocket(t *testing.T) {
	rt, err := NewRuntime(RuntimeConfig{
		Settings: mapSettings{
			SettingEnabled:     true,
			SettingOverlaySink: true,
		},
		Window: &fakeWindow{exported: true, name: "_Window_Id_7"},
	})
	if err != nil {
		t.Fatalf("NewRuntime() error = %v", err)
	}
	t.Setenv(envDisplaySocket, "")

	d := NewVideoDecoder(rt)
	hints := CodecHints{Codec: CodecH264, Width: 1920, Height: 1080}
	if err := d.Open(hints); err == nil {
		t.Fatal("Open() succeeded with overlay sink and no display socket")
	}
	if !rt.acquire() {
		t.Error("decode slot still held after failed Open")
	}
	rt.release()
}

// gateSink is a sink strategy double whose admission answer is fixed.
type gateSink struct {
	admitOK bool
}

func (g *gateSink) attach(e *gstpipe.Elements) error { return nil }

func (g *gateSink) admit() bool { return g.admitOK }

func (g *gateSink) retrieve(p *Picture) PictureResult { return PictureNone }

func (g *gateSink) flushed() {}

func (g *gateSink) dispose() {}

func TestAddData_WithheldBeforeSurfaceLinkage(t *testing.T) {
	d := newTestDecoder(t, nil)
	d.elements = &gstpipe.Elements{}
	d.sink = &gateSink{admitOK: false}
	d.ready.Store(true)
	d.packetsSent.Store(1)

	// An undefined timestamp does not exempt a packet from the linkage
	// gate once the bootstrap packet has been sent.
	pkt := CompressedPacket{Data: []byte{0x42}, PTS: NoTimestamp, DTS: NoTimestamp}
	if err := d.AddData(pkt); err != nil {
		t.Fatalf("AddData() error = %v", err)
	}
	if got := d.packetsWithheld.Load(); got != 1 {
		t.Errorf("PacketsWithheld = %d, want 1", got)
	}
	if got := d.packetsSent.Load(); got != 1 {
		t.Errorf("PacketsPushed = %d, want unchanged 1", got)
	}

	pkt.PTS = 40_000
	if err := d.AddData(pkt); err != nil {
		t.Fatalf("AddData() error = %v", err)
	}
	if got := d.packetsWithheld.Load(); got != 2 {
		t.Errorf("PacketsWithheld = %d, want 2", got)
	}
}

func TestVideoDecoder_InitialState(t *testing.T) {
	d := newTestDecoder(t, nil)
	if got := d.State(); got != StateFlushed {
		t.Errorf("State() = %v, want %v", got, StateFlushed)
	}
	if d.ready.Load() {
		t.Error("ready = true before detection")
	}
}

func TestHandleEvent_DecoderDetected(t *testing.T) {
	diag := &recordingDiag{}
	d := newTestDecoder(t, diag)

	d.handleEvent(gstpipe.DecoderDetectedEvent{Name: "gs-vah264dec", Hardware: true})

	if got := d.State(); got != StateReady {
		t.Errorf("State() = %v, want %v", got, StateReady)
	}
	if !d.ready.Load() {
		t.Error("ready = false after detection")
	}
	stats := d.Stats()
	if stats.DecoderName != "gs-vah264dec" || !stats.Hardware {
		t.Errorf("Stats() decoder = %q/%v, want gs-vah264dec/true",
			stats.DecoderName, stats.Hardware)
	}
	if diag.name != "gs-vah264dec" || !diag.hardware {
		t.Errorf("diagnostics got %q/%v, want gs-vah264dec/true", diag.name, diag.hardware)
	}
}

func TestHandleEvent_StateChanged(t *testing.T) {
	d := newTestDecoder(t, nil)
	d.handleEvent(gstpipe.DecoderDetectedEvent{Name: "gs-avdec_h264"})

	d.handleEvent(gstpipe.StateChangedEvent{Playing: true, From: "PAUSED", To: "PLAYING"})
	if got := d.State(); got != StateRunning {
		t.Errorf("State() after playing = %v, want %v", got, StateRunning)
	}

	d.handleEvent(gstpipe.StateChangedEvent{Playing: false, From: "PLAYING", To: "PAUSED"})
	if got := d.State(); got != StateReady {
		t.Errorf("State() after pause = %v, want %v", got, StateReady)
	}
}

func TestHandleEvent_ErrorIsTerminal(t *testing.T) {
	d := newTestDecoder(t, nil)
	d.handleEvent(gstpipe.DecoderDetectedEvent{Name: "gs-avdec_h264"})

	d.handleEvent(gstpipe.ErrorEvent{
		Source:   gstpipe.StageDecoder,
		Message:  "failed to decode frame",
		Category: gstpipe.ErrCategoryDecode,
	})

	if got := d.State(); got != StateError {
		t.Errorf("State() = %v, want %v", got, StateError)
	}
	if d.ready.Load() {
		t.Error("ready = true after fatal error")
	}
	if got := d.Stats().ErrorsDecode; got != 1 {
		t.Errorf("ErrorsDecode = %d, want 1", got)
	}

	// End-of-stream must not mask a failed session.
	d.handleEvent(gstpipe.EOSEvent{})
	if got := d.State(); got != StateError {
		t.Errorf("State() after EOS = %v, want %v", got, StateError)
	}
}

func TestHandleEvent_EOS(t *testing.T) {
	d := newTestDecoder(t, nil)
	d.handleEvent(gstpipe.DecoderDetectedEvent{Name: "gs-avdec_h264"})
	d.handleEvent(gstpipe.StateChangedEvent{Playing: true})

	d.handleEvent(gstpipe.EOSEvent{})
	if got := d.State(); got != StateEOS {
		t.Errorf("State() = %v, want %v", got, StateEOS)
	}
	var p Picture
	if got := d.GetPicture(&p); got != PictureEOF {
		t.Errorf("GetPicture() = %v, want %v", got, PictureEOF)
	}
}

func TestHandleEvent_FlushRecoversTerminalStates(t *testing.T) {
	d := newTestDecoder(t, nil)

	d.handleEvent(gstpipe.ErrorEvent{Message: "boom", Category: gstpipe.ErrCategoryUnknown})
	d.handleEvent(gstpipe.FlushStoppedEvent{})
	if got := d.State(); got != StateFlushed {
		t.Errorf("State() after flush = %v, want %v", got, StateFlushed)
	}

	d.handleEvent(gstpipe.EOSEvent{})
	d.handleEvent(gstpipe.FlushStoppedEvent{})
	if got := d.State(); got != StateFlushed {
		t.Errorf("State() after flush = %v, want %v", got, StateFlushed)
	}
}

func TestHandleEvent_ErrorCategories(t *testing.T) {
	d := newTestDecoder(t, nil)

	d.handleEvent(gstpipe.ErrorEvent{Category: gstpipe.ErrCategoryNegotiation})
	d.handleEvent(gstpipe.ErrorEvent{Category: gstpipe.ErrCategoryResource})
	d.handleEvent(gstpipe.ErrorEvent{Category: gstpipe.ErrCategoryUnknown})

	stats := d.Stats()
	if stats.ErrorsNegotiation != 1 || stats.ErrorsResource != 1 || stats.ErrorsUnknown != 1 {
		t.Errorf("error counters = %d/%d/%d, want 1/1/1",
			stats.ErrorsNegotiation, stats.ErrorsResource, stats.ErrorsUnknown)
	}
}

func TestGetPicture_GateOrdering(t *testing.T) {
	// A failed session reports the failure even though no graph (and no
	// readiness) remains after teardown.
	d := newTestDecoder(t, nil)
	d.state.markError()
	var p Picture
	if got := d.GetPicture(&p); got != PictureError {
		t.Errorf("GetPicture() in error state = %v, want %v", got, PictureError)
	}

	// A quiescent session without a graph has nothing to offer.
	d2 := newTestDecoder(t, nil)
	if got := d2.GetPicture(&p); got != PictureNone {
		t.Errorf("GetPicture() unopened = %v, want %v", got, PictureNone)
	}
}

func TestAddData_OutsideSession(t *testing.T) {
	d := newTestDecoder(t, nil)

	if err := d.AddData(CompressedPacket{}); err != nil {
		t.Errorf("AddData(empty) error = %v, want nil", err)
	}
	if err := d.AddData(CompressedPacket{Data: []byte{0x00}, PTS: NoTimestamp, DTS: NoTimestamp}); err != nil {
		t.Errorf("AddData() without session error = %v, want nil", err)
	}
	if got := d.Stats().PacketsPushed; got != 0 {
		t.Errorf("PacketsPushed = %d, want 0", got)
	}
}

func TestStop_Idempotent(t *testing.T) {
	d := newTestDecoder(t, nil)
	if err := d.Stop(); err != nil {
		t.Errorf("Stop() on unopened decoder error = %v", err)
	}
	if err := d.Stop(); err != nil {
		t.Errorf("second Stop() error = %v", err)
	}
}

func TestReset_OutsideSession(t *testing.T) {
	d := newTestDecoder(t, nil)
	if err := d.Reset(); err != nil {
		t.Errorf("Reset() without session error = %v, want nil", err)
	}
}

func TestSetCodecControl(t *testing.T) {
	d := newTestDecoder(t, nil)
	d.SetCodecControl(0x3)
	d.SetCodecControl(0x3) // unchanged, must not log again or fail
	if got := d.codecControl.Load(); got != 0x3 {
		t.Errorf("codecControl = %#x, want 0x3", got)
	}
}

func TestToPipelineTime(t *testing.T) {
	tests := []struct {
		name      string
		us        int64
		want      time.Duration
		wantValid bool
	}{
		{"undefined", NoTimestamp, 0, false},
		{"zero", 0, 0, true},
		{"one second", 1_000_000, time.Second, true},
		{"negative but defined", -40_000, -40 * time.Millisecond, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, valid := toPipelineTime(tt.us)
			if got != tt.want || valid != tt.wantValid {
				t.Errorf("toPipelineTime(%d) = (%v, %v), want (%v, %v)",
					tt.us, got, valid, tt.want, tt.wantValid)
			}
		})
	}
}

func TestFromPipelineTime(t *testing.T) {
	if got := fromPipelineTime(-1); got != NoTimestamp {
		t.Errorf("fromPipelineTime(-1) = %d, want sentinel", got)
	}
	if got := fromPipelineTime(1_500_000); got != 1_500 {
		t.Errorf("fromPipelineTime(1.5ms) = %d, want 1500", got)
	}
}

func TestTimestampSymmetry(t *testing.T) {
	for _, us := range []int64{0, 1, 40_000, 3_600_000_000} {
		d, valid := toPipelineTime(us)
		if !valid {
			t.Fatalf("toPipelineTime(%d) invalid", us)
		}
		if back := fromPipelineTime(int64(d)); back != us {
			t.Errorf("round trip %d -> %v -> %d", us, d, back)
		}
	}
}

func TestStreamState_String(t *testing.T) {
	tests := []struct {
		state StreamState
		want  string
	}{
		{StateReset, "reset"},
		{StateFlushed, "flushed"},
		{StateReady, "ready"},
		{StateRunning, "running"},
		{StateEOS, "eos"},
		{StateError, "error"},
		{StreamState(42), "invalid"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("%d.String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}

func TestPictureResult_String(t *testing.T) {
	tests := []struct {
		result PictureResult
		want   string
	}{
		{PictureNone, "none"},
		{PictureAgain, "again"},
		{PictureReady, "ready"},
		{PictureEOF, "eof"},
		{PictureError, "error"},
	}
	for _, tt := range tests {
		if got := tt.result.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestCodec_String(t *testing.T) {
	tests := []struct {
		codec Codec
		want  string
	}{
		{CodecH264, "h264"},
		{CodecHEVC, "hevc"},
		{CodecVP9, "vp9"},
		{CodecAV1, "av1"},
		{CodecUnknown, "unknown"},
	}
	for _, tt := range tests {
		if got := tt.codec.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}
