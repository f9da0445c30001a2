// Package serve implements `wsterm serve`: the hosting page and the
// websocket shell endpoint that `wsterm connect` and browsers attach to.
package serve

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/GiGurra/boa/pkg/boa"
	"github.com/charmbracelet/lipgloss"
	"github.com/gigurra/wsterm/cmd/common"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

type Params struct {
	Port  int    `short:"p" help:"Port to listen on." default:"8080"`
	Host  string `help:"Host interface to bind to." default:"localhost"`
	Rows  int    `help:"Rows of each shell's terminal." default:"24"`
	Cols  int    `help:"Columns of each shell's terminal." default:"80"`
	Shell string `optional:"true" help:"Shell command run for each connection. Defaults to $SHELL, then /bin/sh."`

	IdleTimeoutMillis int64  `help:"Close connections without input for this long (ms). 0 disables." default:"300000"`
	QR                bool   `long:"qr" help:"Print a QR code of the page URL." default:"false"`
	LogLevel          string `help:"Log level (trace, debug, info, warn, error)." default:"info"`
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	hintStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

func Cmd() *cobra.Command {
	return boa.CmdT[Params]{
		Use:   "serve",
		Short: "Serve a shell over a websocket terminal endpoint",
		Long: `Serve a shell over a websocket terminal endpoint.

Every connection to /adminshell gets its own shell in a PTY. When the shell
exits the client receives TERMINAL_CLOSED and the connection is closed.
The page at / hosts a browser terminal and the bootstrap configuration
read by 'wsterm connect --page'.`,
		ParamEnrich: common.DefaultParamEnricher(),
		RunFunc: func(params *Params, cmd *cobra.Command, args []string) {
			if err := Run(cmd.Context(), params); err != nil {
				_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(common.ExitFailure)
			}
		},
	}.ToCobra()
}

// Server holds the settings shared by all connections.
type Server struct {
	rows        int
	cols        int
	shell       []string
	idleTimeout time.Duration
	log         zerolog.Logger
}

func NewServer(params *Params, log zerolog.Logger) (*Server, error) {
	if params.Rows <= 0 || params.Cols <= 0 {
		return nil, fmt.Errorf("rows and cols must be positive, got %dx%d", params.Cols, params.Rows)
	}
	shell := strings.Fields(params.Shell)
	if len(shell) == 0 {
		shell = []string{defaultShell()}
	}
	idle := time.Duration(0)
	if params.IdleTimeoutMillis > 0 {
		idle = time.Duration(params.IdleTimeoutMillis) * time.Millisecond
	}
	return &Server{
		rows:        params.Rows,
		cols:        params.Cols,
		shell:       shell,
		idleTimeout: idle,
		log:         log,
	}, nil
}

func defaultShell() string {
	if sh := os.Getenv("SHELL"); sh != "" {
		return sh
	}
	return "/bin/sh"
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.pageHandler)
	mux.HandleFunc("GET "+shellPath, s.shellHandler)
	return s.logRequests(mux)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		s.log.Debug().
			Int("status", rw.status).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

func Run(ctx context.Context, params *Params) error {
	log := common.NewConsoleLogger(os.Stderr, params.LogLevel)
	s, err := NewServer(params, log)
	if err != nil {
		return err
	}

	addr := net.JoinHostPort(params.Host, fmt.Sprint(params.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	port := ln.Addr().(*net.TCPAddr).Port

	server := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	urls := pageURLs(params.Host, port)
	fmt.Println(titleStyle.Render("wsterm serving " + strings.Join(s.shell, " ")))
	printURLs(os.Stdout, urls)
	fmt.Println(hintStyle.Render("Attach with: wsterm connect --page " + urls[0]))
	if params.QR {
		if err := printQR(os.Stdout, urls[len(urls)-1]); err != nil {
			log.Warn().Err(err).Msg("qr code")
		}
	}

	// Handle graceful shutdown
	serverErr := make(chan error, 1)
	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	case err := <-serverErr:
		return err
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// Hijack lets the websocket upgrade take over the connection.
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	rw.status = http.StatusSwitchingProtocols
	return h.Hijack()
}
