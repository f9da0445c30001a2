package bridge

import (
	"errors"
	"fmt"
)

// Event is a transport notification consumed by Bridge.Handle. The set is
// closed: Opened, MessageReceived, Closed and Errored.
type Event interface {
	event()
}

// Opened reports that the transport finished its handshake.
type Opened struct{}

// MessageReceived carries one inbound message, in transport order.
type MessageReceived struct {
	Payload string
}

// Closed reports that the transport is gone. Code follows RFC 6455 close
// codes; 1006 is used when the connection dropped without a close frame.
type Closed struct {
	Code   int
	Reason string
}

// Errored reports a transport failure.
type Errored struct {
	Err error
}

func (Opened) event()          {}
func (MessageReceived) event() {}
func (Closed) event()          {}
func (Errored) event()         {}

func (c Closed) String() string {
	if c.Reason == "" {
		return fmt.Sprintf("closed (%d)", c.Code)
	}
	return fmt.Sprintf("closed (%d: %s)", c.Code, c.Reason)
}

// Timeout errors raised by the session rather than the transport. Unlike
// transport errors they are surfaced to the user.
var (
	ErrConnectTimeout = errors.New("connect timeout")
	ErrIdleTimeout    = errors.New("idle timeout")
)
