package serve

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"
	"unicode/utf8"

	"github.com/creack/pty"
	"github.com/gigurra/wsterm/cmd/connect/bridge"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	shellPath = "/adminshell"

	// closeGrace bounds the wait for the client to answer a close frame.
	closeGrace  = 2 * time.Second
	writeWait   = 10 * time.Second
	ptyReadSize = 4096
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsWriter serializes writes to a websocket.
type wsWriter struct {
	mu sync.Mutex
	ws *websocket.Conn
}

func (w *wsWriter) text(data string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return w.ws.WriteMessage(websocket.TextMessage, []byte(data))
}

func (w *wsWriter) close(code int, reason string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	msg := websocket.FormatCloseMessage(code, reason)
	_ = w.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}

// shellHandler runs one shell in a PTY per websocket connection. When the
// shell exits the client is told with the TERMINAL_CLOSED message before
// the connection is closed.
func (s *Server) shellHandler(w http.ResponseWriter, r *http.Request) {
	log := s.log.With().Str("session", uuid.NewString()).Str("remote", r.RemoteAddr).Logger()

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer ws.Close()
	out := &wsWriter{ws: ws}

	cmd := exec.Command(s.shell[0], s.shell[1:]...)
	cmd.Env = append(os.Environ(), "TERM=xterm-256color")
	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{Rows: uint16(s.rows), Cols: uint16(s.cols)})
	if err != nil {
		log.Error().Err(err).Strs("shell", s.shell).Msg("starting shell failed")
		_ = out.text(fmt.Sprintf("Error: %v\r\n", err))
		out.close(websocket.CloseInternalServerErr, "shell failed to start")
		return
	}
	defer ptmx.Close()
	log.Info().Int("pid", cmd.Process.Pid).Msg("session opened")

	shellDone := make(chan struct{})
	go func() {
		defer close(shellDone)
		pumpOutput(ptmx, out, log)
	}()

	inputDone := make(chan struct{})
	go func() {
		defer close(inputDone)
		s.pumpInput(ws, ptmx, out, log)
	}()

	select {
	case <-shellDone:
		err := cmd.Wait()
		log.Info().AnErr("exit", err).Msg("shell exited")
		if err := out.text(bridge.SentinelPrefix); err != nil {
			log.Debug().Err(err).Msg("sending terminal closed failed")
		}
		out.close(websocket.CloseNormalClosure, "")
		select {
		case <-inputDone:
		case <-time.After(closeGrace):
		}
	case <-inputDone:
		log.Info().Msg("client gone, stopping shell")
		_ = ptmx.Close()
		_ = cmd.Process.Signal(syscall.SIGHUP)
		_ = cmd.Wait()
		<-shellDone
	}
}

// pumpOutput copies shell output to the websocket as text messages. A read
// may end inside a multi-byte character; its tail is carried to the next
// message.
func pumpOutput(ptmx io.Reader, out *wsWriter, log zerolog.Logger) {
	buf := make([]byte, ptyReadSize)
	var carry []byte
	for {
		n, err := ptmx.Read(buf)
		if n > 0 {
			chunk := append(carry, buf[:n]...)
			var complete []byte
			complete, carry = splitUTF8(chunk)
			carry = append([]byte(nil), carry...)
			if len(complete) > 0 {
				if werr := out.text(strings.ToValidUTF8(string(complete), "\uFFFD")); werr != nil {
					log.Debug().Err(werr).Msg("websocket write failed")
					return
				}
			}
		}
		if err != nil {
			// Linux reports EIO once the shell side of the PTY is gone.
			if !errors.Is(err, io.EOF) && !errors.Is(err, syscall.EIO) {
				log.Debug().Err(err).Msg("pty read stopped")
			}
			if len(carry) > 0 {
				_ = out.text(strings.ToValidUTF8(string(carry), "\uFFFD"))
			}
			return
		}
	}
}

// splitUTF8 splits b before a trailing incomplete UTF-8 sequence.
func splitUTF8(b []byte) (complete, rest []byte) {
	for i := len(b) - 1; i >= 0 && i >= len(b)-utf8.UTFMax; i-- {
		if !utf8.RuneStart(b[i]) {
			continue
		}
		if !utf8.FullRune(b[i:]) {
			return b[:i], b[i:]
		}
		break
	}
	return b, nil
}

// pumpInput copies client messages to the shell until the client goes away
// or stays silent longer than the idle timeout.
func (s *Server) pumpInput(ws *websocket.Conn, ptmx io.Writer, out *wsWriter, log zerolog.Logger) {
	for {
		if s.idleTimeout > 0 {
			_ = ws.SetReadDeadline(time.Now().Add(s.idleTimeout))
		}
		_, data, err := ws.ReadMessage()
		if err != nil {
			var netErr net.Error
			switch {
			case errors.As(err, &netErr) && netErr.Timeout():
				log.Info().Dur("idle", s.idleTimeout).Msg("idle timeout")
				out.close(websocket.CloseGoingAway, "idle timeout")
			case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway):
				log.Debug().Msg("client closed")
			default:
				log.Debug().Err(err).Msg("websocket read stopped")
			}
			return
		}
		log.Trace().Int("bytes", len(data)).Msg("input")
		if _, err := ptmx.Write(data); err != nil {
			log.Debug().Err(err).Msg("pty write failed")
			return
		}
	}
}
