package serve

import (
	"html/template"
	"net/http"

	"github.com/gigurra/wsterm/cmd/common/config"
	"github.com/gigurra/wsterm/cmd/connect/bridge"
)

type pageData struct {
	Title    string
	Server   string
	Rows     int
	Cols     int
	ServerID string
	RowsID   string
	ColsID   string
	TermID   string

	Sentinel           string
	ScrollInfo         string
	ServerDisconnect   string
	TerminalDisconnect string
}

var pageTemplate = template.Must(template.New("page").Parse(pageHTML))

// pageHandler serves the hosting page. Its server, rows and cols elements
// carry the configuration a client bootstraps from.
func (s *Server) pageHandler(w http.ResponseWriter, r *http.Request) {
	data := pageData{
		Title:    "wsterm",
		Server:   endpointURL(r, shellPath),
		Rows:     s.rows,
		Cols:     s.cols,
		ServerID: config.ServerElementID,
		RowsID:   config.RowsElementID,
		ColsID:   config.ColsElementID,
		TermID:   config.TerminalElementID,

		Sentinel:           bridge.SentinelPrefix,
		ScrollInfo:         bridge.ScrollInfo,
		ServerDisconnect:   bridge.ServerDisconnect,
		TerminalDisconnect: bridge.TerminalDisconnect,
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	if err := pageTemplate.Execute(w, data); err != nil {
		s.log.Error().Err(err).Msg("rendering page failed")
	}
}

// endpointURL returns the websocket URL of path on the host the request was
// made to.
func endpointURL(r *http.Request, path string) string {
	scheme := "ws"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "wss"
	}
	return scheme + "://" + r.Host + path
}

const pageHTML = `<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <title>{{.Title}}</title>
  <link rel="stylesheet" href="https://cdn.jsdelivr.net/npm/@xterm/xterm@5.5.0/css/xterm.min.css">
  <style>
    html, body { height: 100%; margin: 0; background: #000; }
    .config { display: none; }
  </style>
</head>
<body>
  <div class="config">
    <span id="{{.ServerID}}">{{.Server}}</span>
    <span id="{{.RowsID}}">{{.Rows}}</span>
    <span id="{{.ColsID}}">{{.Cols}}</span>
  </div>
  <div id="{{.TermID}}"></div>

  <script src="https://cdn.jsdelivr.net/npm/@xterm/xterm@5.5.0/lib/xterm.min.js"></script>
  <script>
    const SENTINEL = {{.Sentinel}};
    const SCROLL_INFO = {{.ScrollInfo}};
    const SERVER_DISCONNECT = {{.ServerDisconnect}};
    const TERMINAL_DISCONNECT = {{.TerminalDisconnect}};
    const warn = (text) => "\r\n\x1b[33m" + text + "\x1b[m\r\n";

    const text = (id) => document.getElementById(id).textContent.trim();
    const uri = text({{.ServerID}});

    const term = new Terminal({
      rows: parseInt(text({{.RowsID}}), 10),
      cols: parseInt(text({{.ColsID}}), 10),
      cursorBlink: true,
      convertEol: true,
      scrollback: 10000,
    });
    term.onTitleChange((title) => { document.title = title; });
    term.open(document.getElementById({{.TermID}}));

    let state = "CONNECTING";
    const ws = new WebSocket(uri);
    term.onData((data) => {
      console.log("SENT", data);
      if (ws.readyState === WebSocket.OPEN) {
        ws.send(data);
      }
    });
    ws.onopen = () => {
      if (state !== "CONNECTING") return;
      state = "OPEN";
      console.log("CONNECTED");
      term.write(warn(SCROLL_INFO));
    };
    ws.onmessage = (evt) => {
      if (state !== "OPEN") return;
      console.log("RECEIVED", evt.data);
      term.write(evt.data.startsWith(SENTINEL) ? warn(TERMINAL_DISCONNECT) : evt.data);
    };
    ws.onclose = (evt) => {
      if (state === "CLOSED" || state === "ERRORED") return;
      state = "CLOSED";
      console.log("DISCONNECTED", evt.code, evt.reason);
      term.write(warn(SERVER_DISCONNECT));
    };
    ws.onerror = (evt) => {
      if (state === "CLOSED" || state === "ERRORED") return;
      state = "ERRORED";
      console.error("ERROR", evt);
    };
    window.addEventListener("unload", () => { term.dispose(); ws.close(); });
  </script>
</body>
</html>
`
