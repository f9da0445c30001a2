// Package session runs one terminal session: a surface, a bridge and the
// transport between them, driven by a single event loop.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gigurra/wsterm/cmd/common/config"
	"github.com/gigurra/wsterm/cmd/connect/bridge"
	"github.com/gigurra/wsterm/cmd/connect/surface"
	"github.com/gigurra/wsterm/cmd/connect/transport"
	"github.com/rs/zerolog"
)

// Input is user input from the surface, to be sent to the remote.
type Input struct {
	Data string
}

// Options tune a session. The zero value disables both timeouts and keeps
// the session running after the connection ends.
type Options struct {
	// ConnectTimeout bounds the time spent in Connecting.
	ConnectTimeout time.Duration
	// IdleTimeout bounds the time an open connection may go without
	// traffic in either direction.
	IdleTimeout time.Duration
	// ExitOnDisconnect ends Run once the connection is Closed or Errored.
	// Otherwise Run returns only when its context is cancelled.
	ExitOnDisconnect bool
}

// Transport is the connection a session drives.
type Transport interface {
	Send(data string) error
	Close() error
}

// Dialer starts connecting to uri and reports lifecycle events to sink.
type Dialer func(ctx context.Context, uri string, sink transport.Sink) Transport

// DialWebsocket is the default Dialer.
func DialWebsocket(ctx context.Context, uri string, sink transport.Sink) Transport {
	return transport.Open(ctx, uri, sink)
}

type Session struct {
	cfg       config.Terminal
	newWidget surface.Factory
	host      surface.Host
	dial      Dialer
	opts      Options
	log       zerolog.Logger
}

func New(
	cfg config.Terminal,
	newWidget surface.Factory,
	host surface.Host,
	dial Dialer,
	opts Options,
	log zerolog.Logger,
) *Session {
	if dial == nil {
		dial = DialWebsocket
	}
	return &Session{
		cfg:       cfg,
		newWidget: newWidget,
		host:      host,
		dial:      dial,
		opts:      opts,
		log:       log,
	}
}

// loopHost hands title requests to the session loop. SetTitle must not
// block: titles are raised while the loop writes to the surface. Only the
// latest title is kept.
type loopHost struct {
	mu     sync.Mutex
	title  string
	notify chan struct{}
}

func newLoopHost() *loopHost {
	return &loopHost{notify: make(chan struct{}, 1)}
}

func (h *loopHost) SetTitle(title string) {
	h.mu.Lock()
	h.title = title
	h.mu.Unlock()
	select {
	case h.notify <- struct{}{}:
	default:
	}
}

func (h *loopHost) latest() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.title
}

// Run opens the surface, connects and relays events until the session ends.
// It returns the final connection state. The surface is torn down and the
// transport closed before Run returns, whatever the reason.
func (s *Session) Run(ctx context.Context) (bridge.State, error) {
	if err := s.cfg.Validate(); err != nil {
		return bridge.Connecting, err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	ctx = s.log.WithContext(ctx)

	events := make(chan any, 256)
	done := make(chan struct{})
	defer close(done)
	post := func(ev any) {
		select {
		case events <- ev:
		case <-done:
		}
	}

	titles := newLoopHost()
	adapter, err := surface.Initialize(s.cfg, s.newWidget, titles, func(data string) {
		post(Input{Data: data})
	})
	if err != nil {
		return bridge.Connecting, fmt.Errorf("initialize surface: %w", err)
	}
	defer adapter.Teardown()

	s.log.Info().Str("uri", s.cfg.EndpointURI).Int("rows", s.cfg.Rows).Int("cols", s.cfg.Cols).Msg("connecting")
	conn := s.dial(ctx, s.cfg.EndpointURI, func(ev bridge.Event) { post(ev) })
	defer func() {
		if err := conn.Close(); err != nil {
			s.log.Debug().Err(err).Msg("closing transport")
		}
	}()

	b := bridge.New(conn, adapter, s.log)
	l := &loop{session: s, bridge: b, conn: conn}
	defer l.stopTimers()
	if s.opts.ConnectTimeout > 0 {
		l.connect = time.NewTimer(s.opts.ConnectTimeout)
	}

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Stringer("state", b.State()).Msg("session cancelled")
			return b.State(), nil
		case <-timerC(l.connect):
			l.onConnectTimeout()
		case <-timerC(l.idle):
			l.onIdleTimeout()
		case <-titles.notify:
			s.host.SetTitle(titles.latest())
		case ev := <-events:
			l.dispatch(ev)
		}

		if s.opts.ExitOnDisconnect && b.State().Terminal() {
			return b.State(), nil
		}
	}
}

// loop is the state owned by the event loop of one Run.
type loop struct {
	session *Session
	bridge  *bridge.Bridge
	conn    Transport
	connect *time.Timer
	idle    *time.Timer
}

func (l *loop) dispatch(ev any) {
	switch ev := ev.(type) {
	case Input:
		if err := l.bridge.Send(ev.Data); err != nil {
			l.logSendError(err)
			return
		}
		l.touch()
	case bridge.Event:
		before := l.bridge.State()
		l.bridge.Handle(ev)
		after := l.bridge.State()
		switch {
		case before == bridge.Connecting && after == bridge.Open:
			stopTimer(&l.connect)
			if d := l.session.opts.IdleTimeout; d > 0 {
				l.idle = time.NewTimer(d)
			}
		case after.Terminal():
			l.stopTimers()
		case after == bridge.Open:
			l.touch()
		}
	default:
		l.session.log.Warn().Type("event", ev).Msg("ignoring unknown event")
	}
}

func (l *loop) logSendError(err error) {
	if errors.Is(err, transport.ErrNotOpen) || errors.Is(err, transport.ErrClosed) {
		l.session.log.Debug().Err(err).Stringer("state", l.bridge.State()).Msg("input dropped")
		return
	}
	l.session.log.Warn().Err(err).Msg("send failed")
}

func (l *loop) onConnectTimeout() {
	l.connect = nil
	if l.bridge.State() != bridge.Connecting {
		return
	}
	l.fail(fmt.Errorf("no connection after %s: %w", l.session.opts.ConnectTimeout, bridge.ErrConnectTimeout))
}

func (l *loop) onIdleTimeout() {
	l.idle = nil
	if l.bridge.State() != bridge.Open {
		return
	}
	l.fail(fmt.Errorf("no traffic for %s: %w", l.session.opts.IdleTimeout, bridge.ErrIdleTimeout))
}

func (l *loop) fail(err error) {
	l.bridge.Handle(bridge.Errored{Err: err})
	l.stopTimers()
	if err := l.conn.Close(); err != nil {
		l.session.log.Debug().Err(err).Msg("closing transport")
	}
}

// touch restarts the idle timer after traffic.
func (l *loop) touch() {
	if l.idle == nil {
		return
	}
	if !l.idle.Stop() {
		select {
		case <-l.idle.C:
		default:
		}
	}
	l.idle.Reset(l.session.opts.IdleTimeout)
}

func (l *loop) stopTimers() {
	stopTimer(&l.connect)
	stopTimer(&l.idle)
}

func stopTimer(t **time.Timer) {
	if *t != nil {
		(*t).Stop()
		*t = nil
	}
}

// timerC returns the channel of t, or nil (blocking forever) for no timer.
func timerC(t *time.Timer) <-chan time.Time {
	if t == nil {
		return nil
	}
	return t.C
}
