package transport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gigurra/wsterm/cmd/connect/bridge"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// startServer runs handler for every websocket connection and returns the
// ws:// URL of the endpoint.
func startServer(t *testing.T, handler func(conn *websocket.Conn)) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		handler(conn)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

// collector buffers sink events so tests can wait for them.
type collector chan bridge.Event

func (c collector) sink(ev bridge.Event) { c <- ev }

func (c collector) next(t *testing.T) bridge.Event {
	t.Helper()
	select {
	case ev := <-c:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestOpen_DeliversMessagesInOrderThenClose(t *testing.T) {
	uri := startServer(t, func(conn *websocket.Conn) {
		for _, msg := range []string{"one", "two", "three"} {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return
			}
		}
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
		// Wait for the client's close reply.
		_, _, _ = conn.ReadMessage()
	})

	events := make(collector, 16)
	conn := Open(context.Background(), uri, events.sink)
	defer conn.Close()

	if _, ok := events.next(t).(bridge.Opened); !ok {
		t.Fatal("first event should be Opened")
	}
	for _, want := range []string{"one", "two", "three"} {
		ev := events.next(t)
		msg, ok := ev.(bridge.MessageReceived)
		if !ok || msg.Payload != want {
			t.Fatalf("got %#v, want MessageReceived(%q)", ev, want)
		}
	}
	ev := events.next(t)
	closed, ok := ev.(bridge.Closed)
	if !ok {
		t.Fatalf("got %#v, want Closed", ev)
	}
	if closed.Code != websocket.CloseNormalClosure || closed.Reason != "bye" {
		t.Errorf("Closed = %+v", closed)
	}

	if err := conn.Send("after close"); !errors.Is(err, ErrClosed) {
		t.Errorf("Send after close = %v, want ErrClosed", err)
	}
}

func TestSend_ReachesServer(t *testing.T) {
	received := make(chan string, 8)
	uri := startServer(t, func(conn *websocket.Conn) {
		for {
			typ, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if typ != websocket.TextMessage {
				t.Errorf("message type = %d, want text", typ)
			}
			received <- string(data)
		}
	})

	events := make(collector, 16)
	conn := Open(context.Background(), uri, events.sink)
	defer conn.Close()

	if _, ok := events.next(t).(bridge.Opened); !ok {
		t.Fatal("first event should be Opened")
	}
	for _, in := range []string{"l", "s", "\r"} {
		if err := conn.Send(in); err != nil {
			t.Fatalf("Send(%q): %v", in, err)
		}
	}
	for _, want := range []string{"l", "s", "\r"} {
		select {
		case got := <-received:
			if got != want {
				t.Errorf("server got %q, want %q", got, want)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("server did not receive message")
		}
	}
}

func TestOpen_DialFailureReportsError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	uri := "ws" + strings.TrimPrefix(srv.URL, "http")
	srv.Close()

	events := make(collector, 4)
	conn := Open(context.Background(), uri, events.sink)
	defer conn.Close()

	ev := events.next(t)
	errored, ok := ev.(bridge.Errored)
	if !ok {
		t.Fatalf("got %#v, want Errored", ev)
	}
	if !strings.Contains(errored.Err.Error(), "dial") {
		t.Errorf("error should mention dial: %v", errored.Err)
	}
	if err := conn.Send("x"); !errors.Is(err, ErrNotOpen) {
		t.Errorf("Send = %v, want ErrNotOpen", err)
	}
}

func TestSend_BeforeOpen(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		http.NotFound(w, r)
	}))
	defer srv.Close()
	defer close(release)

	events := make(collector, 4)
	conn := Open(context.Background(), "ws"+strings.TrimPrefix(srv.URL, "http"), events.sink)
	defer conn.Close()

	if err := conn.Send("too early"); !errors.Is(err, ErrNotOpen) {
		t.Errorf("Send = %v, want ErrNotOpen", err)
	}
}

func TestClose_SendsNormalClosure(t *testing.T) {
	closeCode := make(chan int, 1)
	uri := startServer(t, func(conn *websocket.Conn) {
		_, _, err := conn.ReadMessage()
		var ce *websocket.CloseError
		if errors.As(err, &ce) {
			closeCode <- ce.Code
		} else {
			closeCode <- -1
		}
	})

	events := make(collector, 4)
	conn := Open(context.Background(), uri, events.sink)
	if _, ok := events.next(t).(bridge.Opened); !ok {
		t.Fatal("first event should be Opened")
	}

	if err := conn.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := conn.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}

	select {
	case code := <-closeCode:
		if code != websocket.CloseNormalClosure {
			t.Errorf("server saw close code %d, want %d", code, websocket.CloseNormalClosure)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not observe close")
	}

	select {
	case <-conn.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("connection goroutine did not finish")
	}
	if err := conn.Send("x"); !errors.Is(err, ErrClosed) {
		t.Errorf("Send after Close = %v, want ErrClosed", err)
	}
}

func TestAbnormalDisconnect_ReportsClosed1006(t *testing.T) {
	uri := startServer(t, func(conn *websocket.Conn) {
		_ = conn.UnderlyingConn().Close()
	})

	events := make(collector, 4)
	conn := Open(context.Background(), uri, events.sink)
	defer conn.Close()

	if _, ok := events.next(t).(bridge.Opened); !ok {
		t.Fatal("first event should be Opened")
	}
	ev := events.next(t)
	closed, ok := ev.(bridge.Closed)
	if !ok {
		t.Fatalf("got %#v, want Closed", ev)
	}
	if closed.Code != websocket.CloseAbnormalClosure {
		t.Errorf("Code = %d, want %d", closed.Code, websocket.CloseAbnormalClosure)
	}
}
