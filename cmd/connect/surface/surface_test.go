package surface

import (
	"errors"
	"slices"
	"testing"

	"github.com/gigurra/wsterm/cmd/common/config"
)

// fakeWidget records what the adapter does with it.
type fakeWidget struct {
	opts      Options
	openedIn  Host
	openErr   error
	written   []string
	destroyed int
	data      emitter[string]
	title     emitter[string]
}

func (f *fakeWidget) Open(host Host) error { f.openedIn = host; return f.openErr }
func (f *fakeWidget) Write(text string)    { f.written = append(f.written, text) }
func (f *fakeWidget) Destroy()             { f.destroyed++ }
func (f *fakeWidget) OnData(fn func(string)) func() {
	return f.data.subscribe(fn)
}
func (f *fakeWidget) OnTitle(fn func(string)) func() {
	return f.title.subscribe(fn)
}

type fakeHost struct {
	titles []string
}

func (h *fakeHost) SetTitle(title string) { h.titles = append(h.titles, title) }

var testConfig = config.Terminal{EndpointURI: "wss://host/term", Rows: 24, Cols: 80}

func TestDisplayOptions(t *testing.T) {
	opts := DisplayOptions(testConfig)
	want := Options{
		Rows:           24,
		Cols:           80,
		MouseReporting: true,
		CursorBlink:    true,
		ConvertEOL:     true,
		Scrollback:     10000,
		ScreenKeys:     false,
	}
	if opts != want {
		t.Errorf("DisplayOptions = %+v, want %+v", opts, want)
	}
}

func TestInitialize_WiresSubscriptions(t *testing.T) {
	widget := &fakeWidget{}
	host := &fakeHost{}
	var sent []string

	adapter, err := Initialize(testConfig, func(opts Options) (Widget, error) {
		widget.opts = opts
		return widget, nil
	}, host, func(data string) { sent = append(sent, data) })
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	if widget.opts.Rows != 24 || widget.opts.Cols != 80 {
		t.Errorf("widget sized %dx%d", widget.opts.Cols, widget.opts.Rows)
	}
	if widget.openedIn != host {
		t.Error("widget was not opened in the host")
	}

	widget.data.emit("ls\r")
	widget.data.emit("\x1b[A")
	widget.title.emit("admin@dcache")

	if !slices.Equal(sent, []string{"ls\r", "\x1b[A"}) {
		t.Errorf("sent = %q", sent)
	}
	if !slices.Equal(host.titles, []string{"admin@dcache"}) {
		t.Errorf("titles = %q", host.titles)
	}

	adapter.Write("hello\r\n")
	if !slices.Equal(widget.written, []string{"hello\r\n"}) {
		t.Errorf("written = %q", widget.written)
	}
}

func TestTeardown_OnceAndUnsubscribes(t *testing.T) {
	widget := &fakeWidget{}
	var sent []string
	adapter, err := Initialize(testConfig, func(Options) (Widget, error) { return widget, nil },
		&fakeHost{}, func(data string) { sent = append(sent, data) })
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	adapter.Teardown()
	adapter.Teardown()

	if widget.destroyed != 1 {
		t.Errorf("Destroy called %d times, want 1", widget.destroyed)
	}
	widget.data.emit("after teardown")
	if len(sent) != 0 {
		t.Errorf("input after teardown was forwarded: %q", sent)
	}
}

func TestInitialize_FactoryError(t *testing.T) {
	boom := errors.New("boom")
	_, err := Initialize(testConfig, func(Options) (Widget, error) { return nil, boom }, &fakeHost{}, func(string) {})
	if !errors.Is(err, boom) {
		t.Errorf("Initialize error = %v, want wrapped boom", err)
	}
}

func TestInitialize_OpenErrorDestroysWidget(t *testing.T) {
	widget := &fakeWidget{openErr: errors.New("no tty")}
	_, err := Initialize(testConfig, func(Options) (Widget, error) { return widget, nil }, &fakeHost{}, func(string) {})
	if err == nil {
		t.Fatal("expected error")
	}
	if widget.destroyed != 1 {
		t.Errorf("Destroy called %d times, want 1", widget.destroyed)
	}
}

func TestEmitter_DisposeRemovesOnlyOne(t *testing.T) {
	var e emitter[int]
	var a, b []int
	disposeA := e.subscribe(func(v int) { a = append(a, v) })
	e.subscribe(func(v int) { b = append(b, v) })

	e.emit(1)
	disposeA()
	e.emit(2)

	if !slices.Equal(a, []int{1}) || !slices.Equal(b, []int{1, 2}) {
		t.Errorf("a=%v b=%v", a, b)
	}
}
