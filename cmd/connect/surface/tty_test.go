package surface

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// syncBuffer is a bytes.Buffer safe for the widget's concurrent writers.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestTTY(t *testing.T, opts Options, in io.Reader, transcript string) (*TTY, *syncBuffer) {
	t.Helper()
	out := &syncBuffer{}
	tty, err := NewTTY(opts, TTYConfig{In: in, Out: out, Fd: -1, TranscriptPath: transcript, Log: zerolog.Nop()})
	if err != nil {
		t.Fatalf("NewTTY: %v", err)
	}
	return tty, out
}

func TestNewTTY_RejectsScreenKeys(t *testing.T) {
	_, err := NewTTY(Options{ScreenKeys: true}, TTYConfig{})
	if !errors.Is(err, ErrScreenKeys) {
		t.Errorf("NewTTY error = %v, want ErrScreenKeys", err)
	}
}

func TestTTY_WriteConvertsAndExtractsTitle(t *testing.T) {
	opts := DisplayOptions(testConfig)
	tty, out := newTestTTY(t, opts, strings.NewReader(""), "")

	var titles []string
	tty.OnTitle(func(title string) { titles = append(titles, title) })

	if err := tty.Open(&Console{Out: io.Discard}); err != nil {
		t.Fatalf("Open: %v", err)
	}
	tty.Write("\x1b]0;shell\x07line1\nline2\r\n")
	tty.Destroy()

	got := out.String()
	want := cursorBlinkOn + "line1\r\nline2\r\n" + cursorBlinkOff
	if got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
	if len(titles) != 1 || titles[0] != "shell" {
		t.Errorf("titles = %q", titles)
	}
	if lines := tty.Scrollback(); len(lines) != 2 || lines[0] != "line1" || lines[1] != "line2" {
		t.Errorf("scrollback = %q", lines)
	}
}

func TestTTY_InputEmitsData(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	tty, _ := newTestTTY(t, DisplayOptions(testConfig), pr, "")
	data := make(chan string, 4)
	tty.OnData(func(d string) { data <- d })

	if err := tty.Open(nil); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer tty.Destroy()

	if _, err := pw.Write([]byte("echo hi\r")); err != nil {
		t.Fatal(err)
	}
	select {
	case got := <-data:
		if got != "echo hi\r" {
			t.Errorf("data = %q", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no data event")
	}
}

func TestTTY_OpenTwiceFails(t *testing.T) {
	tty, _ := newTestTTY(t, DisplayOptions(testConfig), strings.NewReader(""), "")
	if err := tty.Open(nil); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer tty.Destroy()
	if err := tty.Open(nil); err == nil {
		t.Error("second Open should fail")
	}
}

func TestTTY_WriteAfterDestroyIgnored(t *testing.T) {
	opts := DisplayOptions(testConfig)
	opts.CursorBlink = false
	tty, out := newTestTTY(t, opts, strings.NewReader(""), "")
	if err := tty.Open(nil); err != nil {
		t.Fatalf("Open: %v", err)
	}
	tty.Destroy()
	tty.Destroy()
	tty.Write("ghost")
	if out.String() != "" {
		t.Errorf("output = %q, want nothing", out.String())
	}
}

func TestTTY_TranscriptWrittenOnDestroy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transcript.txt")
	tty, _ := newTestTTY(t, DisplayOptions(testConfig), strings.NewReader(""), path)
	if err := tty.Open(nil); err != nil {
		t.Fatalf("Open: %v", err)
	}
	tty.Write("\x1b[32mgreen\x1b[0m\nplain")
	tty.Destroy()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading transcript: %v", err)
	}
	if string(data) != "green\nplain\n" {
		t.Errorf("transcript = %q", data)
	}
}

func TestConsole_SetTitle(t *testing.T) {
	var buf bytes.Buffer
	c := &Console{Out: &buf}
	c.SetTitle("admin")
	if buf.String() != "\x1b]2;admin\x07" {
		t.Errorf("output = %q", buf.String())
	}
	if c.Title() != "admin" {
		t.Errorf("Title() = %q", c.Title())
	}
}
