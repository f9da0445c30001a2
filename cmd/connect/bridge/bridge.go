// Package bridge implements the connection-lifecycle state machine between a
// terminal surface and a message transport.
//
// The bridge is not safe for concurrent use. It is driven by a single
// dispatch loop that feeds it transport events (Handle) and user input
// (Send) one at a time.
package bridge

import (
	"errors"

	"github.com/rs/zerolog"
)

// State is the lifecycle state of one connection.
type State int

const (
	Connecting State = iota
	Open
	Closed
	Errored
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "CONNECTING"
	case Open:
		return "OPEN"
	case Closed:
		return "CLOSED"
	case Errored:
		return "ERRORED"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == Closed || s == Errored
}

// Transport is the outbound half of the connection.
type Transport interface {
	Send(data string) error
}

// Surface is where inbound text and advisories are rendered.
type Surface interface {
	Write(text string)
}

// Bridge relays messages between a Transport and a Surface and tracks the
// connection state.
type Bridge struct {
	state     State
	transport Transport
	surface   Surface
	log       zerolog.Logger
}

// New returns a bridge in the Connecting state.
func New(transport Transport, surface Surface, log zerolog.Logger) *Bridge {
	return &Bridge{
		state:     Connecting,
		transport: transport,
		surface:   surface,
		log:       log,
	}
}

func (b *Bridge) State() State {
	return b.state
}

// Handle applies one transport event.
func (b *Bridge) Handle(ev Event) {
	switch ev := ev.(type) {
	case Opened:
		b.onOpen()
	case MessageReceived:
		b.onMessage(ev.Payload)
	case Closed:
		b.onClose(ev)
	case Errored:
		b.onError(ev.Err)
	default:
		b.log.Warn().Type("event", ev).Msg("ignoring unknown event")
	}
}

// Send forwards data to the transport unmodified. The state is not checked
// here: outside Open the transport rejects the message and its error is
// returned as is.
func (b *Bridge) Send(data string) error {
	b.log.Trace().Str("data", data).Msg("SENT")
	return b.transport.Send(data)
}

func (b *Bridge) onOpen() {
	if b.state != Connecting {
		b.log.Debug().Stringer("state", b.state).Msg("ignoring open")
		return
	}
	b.state = Open
	b.log.Info().Msg("CONNECTED")
	b.surface.Write(Warn(ScrollInfo))
}

func (b *Bridge) onMessage(payload string) {
	if b.state != Open {
		b.log.Debug().Stringer("state", b.state).Int("bytes", len(payload)).Msg("ignoring message")
		return
	}
	b.log.Trace().Str("payload", payload).Msg("RECEIVED")
	if Classify(payload) == KindTerminalClosed {
		b.log.Info().Msg("remote terminal closed")
		b.surface.Write(Warn(TerminalDisconnect))
		return
	}
	b.surface.Write(payload)
}

func (b *Bridge) onClose(ev Closed) {
	if b.state.Terminal() {
		b.log.Debug().Stringer("state", b.state).Stringer("close", ev).Msg("ignoring close")
		return
	}
	b.state = Closed
	b.log.Info().Int("code", ev.Code).Str("reason", ev.Reason).Msg("DISCONNECTED")
	b.surface.Write(Warn(ServerDisconnect))
}

func (b *Bridge) onError(err error) {
	if b.state.Terminal() {
		b.log.Debug().Stringer("state", b.state).Err(err).Msg("ignoring error")
		return
	}
	b.state = Errored
	b.log.Error().Err(err).Msg("ERROR")

	switch {
	case errors.Is(err, ErrConnectTimeout):
		b.surface.Write(Warn(ConnectTimeoutAdvisory))
	case errors.Is(err, ErrIdleTimeout):
		b.surface.Write(Warn(IdleTimeoutAdvisory))
	}
}
