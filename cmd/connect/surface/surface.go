// Package surface adapts a terminal widget to a terminal session: it sizes
// and opens the widget, routes its input to the session and renders
// whatever the session writes.
package surface

import (
	"fmt"
	"sync"

	"github.com/gigurra/wsterm/cmd/common/config"
)

// DefaultScrollback is the number of lines a surface keeps.
const DefaultScrollback = 10000

// Options are the display options a widget is built with.
type Options struct {
	Rows int
	Cols int

	// MouseReporting lets the remote application enable mouse tracking.
	MouseReporting bool
	CursorBlink    bool
	// ConvertEOL renders a bare line feed as carriage return + line feed.
	ConvertEOL bool
	Scrollback int
	// ScreenKeys would let the widget keep screen-style key bindings for
	// itself. Sessions always run with it off: every key goes to the remote.
	ScreenKeys bool
}

// DisplayOptions returns the fixed options for a terminal of the configured
// size.
func DisplayOptions(cfg config.Terminal) Options {
	return Options{
		Rows:           cfg.Rows,
		Cols:           cfg.Cols,
		MouseReporting: true,
		CursorBlink:    true,
		ConvertEOL:     true,
		Scrollback:     DefaultScrollback,
		ScreenKeys:     false,
	}
}

// Widget is a terminal emulator that renders text and produces user input.
type Widget interface {
	Open(host Host) error
	Write(text string)
	Destroy()
	// OnData subscribes to typed or pasted input. The returned function
	// removes the subscription.
	OnData(fn func(data string)) (dispose func())
	// OnTitle subscribes to window title requests made by the output.
	OnTitle(fn func(title string)) (dispose func())
}

// Host is the environment a widget is mounted in.
type Host interface {
	SetTitle(title string)
}

// Factory builds a widget with the given options.
type Factory func(opts Options) (Widget, error)

// Adapter owns one widget for the lifetime of a session.
type Adapter struct {
	widget    Widget
	host      Host
	disposers []func()
	teardown  sync.Once
}

// Initialize builds and opens the widget for cfg. Input is passed to send;
// title requests update the host title. Both subscriptions live until
// Teardown.
func Initialize(cfg config.Terminal, newWidget Factory, host Host, send func(data string)) (*Adapter, error) {
	widget, err := newWidget(DisplayOptions(cfg))
	if err != nil {
		return nil, fmt.Errorf("create widget: %w", err)
	}

	a := &Adapter{widget: widget, host: host}
	a.disposers = append(a.disposers,
		widget.OnData(send),
		widget.OnTitle(host.SetTitle),
	)

	if err := widget.Open(host); err != nil {
		a.Teardown()
		return nil, fmt.Errorf("open widget: %w", err)
	}
	return a, nil
}

// Write appends text to the visible buffer.
func (a *Adapter) Write(text string) {
	a.widget.Write(text)
}

// Teardown releases the widget. Only the first call has an effect.
func (a *Adapter) Teardown() {
	a.teardown.Do(func() {
		for _, dispose := range a.disposers {
			dispose()
		}
		a.disposers = nil
		a.widget.Destroy()
	})
}
