package gstpipe

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tinyzimmer/go-gst/gst"
)

// busPollInterval bounds how long the monitor blocks per poll so shutdown
// stays responsive.
const busPollInterval = 50 * time.Millisecond

// Monitor drives the bus event loop on the calling goroutine until the
// context is cancelled. Every relevant message is translated into an Event
// and handed to the callback; the callback owns all state transitions and
// must be safe to call from this goroutine.
func Monitor(ctx context.Context, pipeline *gst.Pipeline, handle func(Event)) {
	if pipeline == nil {
		return
	}
	bus := pipeline.GetPipelineBus()
	name := pipeline.GetName()

	for {
		select {
		case <-ctx.Done():
			slog.Debug("gstpipe: bus monitor stopping")
			return
		default:
			msg := bus.TimedPop(busPollInterval)
			if msg == nil {
				continue
			}
			if ev := Translate(msg, name); ev != nil {
				handle(ev)
			}
		}
	}
}

// Translate normalizes one bus message into an Event. State-changed
// messages from anything but the top-level pipeline are dropped; message
// kinds without a handler become UnknownEvent so the consumer's default
// branch can log them.
func Translate(msg *gst.Message, pipelineName string) Event {
	switch msg.Type() {
	case gst.MessageError:
		gerr := msg.ParseError()
		message, debug := "", ""
		if gerr != nil {
			message = gerr.Error()
			debug = gerr.DebugString()
		}
		return ErrorEvent{
			Source:   msg.Source(),
			Message:  message,
			Debug:    debug,
			Category: Classify(message, debug),
		}

	case gst.MessageWarning:
		gerr := msg.ParseWarning()
		message := ""
		if gerr != nil {
			message = gerr.Error()
		}
		return WarningEvent{Source: msg.Source(), Message: message}

	case gst.MessageEOS:
		return EOSEvent{}

	case gst.MessageStateChanged:
		if msg.Source() != pipelineName {
			return nil
		}
		old, next := msg.ParseStateChanged()
		return StateChangedEvent{
			Playing: next == gst.StatePlaying,
			From:    fmt.Sprint(old),
			To:      fmt.Sprint(next),
		}

	case gst.MessageQOS:
		return QoSEvent{Source: msg.Source()}

	default:
		return UnknownEvent{Name: fmt.Sprint(msg.Type())}
	}
}
