package surface

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/x/ansi"
	"github.com/rs/zerolog"
	"golang.org/x/term"
)

// ErrScreenKeys is returned for options asking the widget to keep keys.
var ErrScreenKeys = errors.New("screen keys are not supported")

// TTYConfig wires a TTY widget to the process terminal.
type TTYConfig struct {
	In  io.Reader
	Out io.Writer
	// Fd is put in raw mode while the widget is open, if it is a terminal.
	Fd int
	// TranscriptPath, when set, receives the scrollback on Destroy.
	TranscriptPath string
	Log            zerolog.Logger
}

// StdioConfig returns a TTYConfig for the process stdin and stdout.
func StdioConfig() TTYConfig {
	return TTYConfig{
		In:  os.Stdin,
		Out: os.Stdout,
		Fd:  int(os.Stdin.Fd()),
		Log: zerolog.Nop(),
	}
}

// TTY is a Widget backed by the local terminal. Escape sequences are
// rendered by the terminal itself; the widget only intercepts title
// requests and, if configured, mouse tracking changes.
type TTY struct {
	opts Options
	cfg  TTYConfig

	data  emitter[string]
	title emitter[string]

	mu         sync.Mutex
	scrollback *Scrollback
	prevCR     bool

	opened    atomic.Bool
	destroyed atomic.Bool
	restore   func()
	destroy   sync.Once
}

// NewTTY builds a TTY widget. It does not touch the terminal until Open.
func NewTTY(opts Options, cfg TTYConfig) (*TTY, error) {
	if opts.ScreenKeys {
		return nil, ErrScreenKeys
	}
	return &TTY{
		opts:       opts,
		cfg:        cfg,
		scrollback: NewScrollback(opts.Scrollback),
		restore:    func() {},
	}, nil
}

// TTYFactory returns a Factory producing TTY widgets with cfg.
func TTYFactory(cfg TTYConfig) Factory {
	return func(opts Options) (Widget, error) {
		return NewTTY(opts, cfg)
	}
}

func (t *TTY) Open(_ Host) error {
	if !t.opened.CompareAndSwap(false, true) {
		return errors.New("widget already open")
	}

	if term.IsTerminal(t.cfg.Fd) {
		state, err := term.MakeRaw(t.cfg.Fd)
		if err != nil {
			return fmt.Errorf("set raw mode: %w", err)
		}
		fd := t.cfg.Fd
		t.restore = func() { _ = term.Restore(fd, state) }
	}

	if t.opts.CursorBlink {
		_, _ = io.WriteString(t.cfg.Out, cursorBlinkOn)
	}

	go t.readInput()
	return nil
}

func (t *TTY) readInput() {
	buf := make([]byte, 4096)
	for {
		n, err := t.cfg.In.Read(buf)
		if n > 0 && !t.destroyed.Load() {
			t.data.emit(string(buf[:n]))
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				t.cfg.Log.Debug().Err(err).Msg("input reader stopped")
			}
			return
		}
		if t.destroyed.Load() {
			return
		}
	}
}

func (t *TTY) Write(text string) {
	if t.destroyed.Load() {
		return
	}
	rendered, titles := filterOutput(text, t.opts.MouseReporting)

	t.mu.Lock()
	if t.opts.ConvertEOL {
		rendered, t.prevCR = convertEOL(rendered, t.prevCR)
	}
	t.scrollback.Append(ansi.Strip(rendered))
	t.mu.Unlock()

	if _, err := io.WriteString(t.cfg.Out, rendered); err != nil {
		t.cfg.Log.Debug().Err(err).Msg("terminal write failed")
	}
	for _, title := range titles {
		t.title.emit(title)
	}
}

func (t *TTY) Destroy() {
	t.destroy.Do(func() {
		t.destroyed.Store(true)
		if t.opened.Load() && t.opts.CursorBlink {
			_, _ = io.WriteString(t.cfg.Out, cursorBlinkOff)
		}
		t.restore()
		if t.cfg.TranscriptPath != "" {
			if err := t.saveTranscript(t.cfg.TranscriptPath); err != nil {
				t.cfg.Log.Error().Err(err).Str("path", t.cfg.TranscriptPath).Msg("saving transcript failed")
			}
		}
	})
}

func (t *TTY) OnData(fn func(data string)) func() {
	return t.data.subscribe(fn)
}

func (t *TTY) OnTitle(fn func(title string)) func() {
	return t.title.subscribe(fn)
}

// Scrollback returns a copy of the kept output lines.
func (t *TTY) Scrollback() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.scrollback.Lines()
}

func (t *TTY) saveTranscript(path string) error {
	lines := t.Scrollback()
	content := strings.Join(lines, "\n")
	if len(lines) > 0 {
		content += "\n"
	}
	return os.WriteFile(path, []byte(content), 0o644)
}

// Console is the Host for a TTY widget: the surrounding terminal window.
type Console struct {
	Out io.Writer

	mu    sync.Mutex
	title string
}

func (c *Console) SetTitle(title string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.title = title
	_, _ = io.WriteString(c.Out, ansi.SetWindowTitle(title))
}

// Title returns the last title set.
func (c *Console) Title() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.title
}
