package gstpipe

// Event is the tagged variant delivered to the decoder's event handler. Bus
// messages, the decoder-selection signal and the flush pad probe are all
// normalized into Event values so the consuming switch can be exhaustive and
// unknown notifications default to a safe no-op.
type Event interface {
	event()
}

// ErrorEvent is a fatal asynchronous pipeline error.
type ErrorEvent struct {
	Source   string
	Message  string
	Debug    string
	Category ErrorCategory
}

// WarningEvent is a non-fatal pipeline warning; log only.
type WarningEvent struct {
	Source  string
	Message string
}

// EOSEvent signals end of stream.
type EOSEvent struct{}

// StateChangedEvent reports a state transition of the top-level pipeline.
type StateChangedEvent struct {
	Playing bool
	From    string
	To      string
}

// QoSEvent is a quality-of-service notification from a downstream element.
// No back-pressure policy is attached; the decoder exposes a hook instead.
type QoSEvent struct {
	Source string
}

// DecoderDetectedEvent fires once the auto-plugger has committed to a
// concrete decoder element.
type DecoderDetectedEvent struct {
	Name     string
	Hardware bool
}

// FlushStoppedEvent reports that a flush-stop travelled through the sink's
// input pad, so any previously produced picture is stale.
type FlushStoppedEvent struct{}

// UnknownEvent carries the type name of an unhandled bus message.
type UnknownEvent struct {
	Name string
}

func (ErrorEvent) event()           {}
func (WarningEvent) event()         {}
func (EOSEvent) event()             {}
func (StateChangedEvent) event()    {}
func (QoSEvent) event()             {}
func (DecoderDetectedEvent) event() {}
func (FlushStoppedEvent) event()    {}
func (UnknownEvent) event()         {}
