// Package transport opens the websocket connection a terminal session runs
// over and reports its lifecycle as bridge events.
package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gigurra/wsterm/cmd/connect/bridge"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

var (
	// ErrNotOpen is returned by Send before the handshake completed.
	ErrNotOpen = errors.New("websocket is not open")
	// ErrClosed is returned by Send once the connection is closed, by
	// either side.
	ErrClosed = errors.New("websocket is closed")
)

const closeWriteTimeout = time.Second

// Sink receives the lifecycle events of a connection, in order, from a
// single goroutine.
type Sink func(bridge.Event)

// Conn is one websocket connection. All methods are safe for concurrent use.
type Conn struct {
	uri    string
	dialer *websocket.Dialer
	sink   Sink
	log    zerolog.Logger
	cancel context.CancelFunc
	done   chan struct{}

	mu     sync.Mutex
	ws     *websocket.Conn
	closed bool
}

// Open starts connecting to uri and returns immediately. The outcome is
// reported through sink: Opened or Errored, then MessageReceived for every
// inbound message, then Closed.
func Open(ctx context.Context, uri string, sink Sink) *Conn {
	return OpenWith(ctx, websocket.DefaultDialer, uri, sink)
}

// OpenWith is Open with a caller supplied dialer.
func OpenWith(ctx context.Context, dialer *websocket.Dialer, uri string, sink Sink) *Conn {
	ctx, cancel := context.WithCancel(ctx)
	c := &Conn{
		uri:    uri,
		dialer: dialer,
		sink:   sink,
		log:    zerolog.Ctx(ctx).With().Str("uri", uri).Logger(),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go c.run(ctx)
	return c
}

// Done is closed when the connection goroutine has reported its last event.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

func (c *Conn) run(ctx context.Context) {
	defer close(c.done)
	defer c.cancel()

	c.log.Debug().Msg("dialing")
	ws, resp, err := c.dialer.DialContext(ctx, c.uri, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		c.sink(bridge.Errored{Err: fmt.Errorf("dial %s: %w", c.uri, err)})
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		_ = ws.Close()
		return
	}
	c.ws = ws
	c.mu.Unlock()

	c.sink(bridge.Opened{})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			c.mu.Lock()
			c.closed = true
			c.mu.Unlock()
			_ = ws.Close()
			c.sink(closedEvent(err))
			return
		}
		c.sink(bridge.MessageReceived{Payload: string(data)})
	}
}

func closedEvent(err error) bridge.Closed {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return bridge.Closed{Code: ce.Code, Reason: ce.Text}
	}
	return bridge.Closed{Code: websocket.CloseAbnormalClosure, Reason: err.Error()}
}

// Send writes data as one text message.
func (c *Conn) Send(data string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.ws == nil {
		return ErrNotOpen
	}
	if err := c.ws.WriteMessage(websocket.TextMessage, []byte(data)); err != nil {
		return fmt.Errorf("send: %w", err)
	}
	return nil
}

// Close ends the connection with a normal closure, or abandons the dial if
// it has not completed. Calling Close more than once is harmless.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	ws := c.ws
	c.mu.Unlock()

	c.cancel()
	if ws == nil {
		return nil
	}
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeWriteTimeout))
	return ws.Close()
}
