// Package connect implements `wsterm connect`: it attaches the local
// terminal to a remote shell served over a websocket.
package connect

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/GiGurra/boa/pkg/boa"
	"github.com/charmbracelet/lipgloss"
	"github.com/gigurra/wsterm/cmd/common"
	"github.com/gigurra/wsterm/cmd/common/config"
	"github.com/gigurra/wsterm/cmd/connect/bridge"
	"github.com/gigurra/wsterm/cmd/connect/session"
	"github.com/gigurra/wsterm/cmd/connect/surface"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

type Params struct {
	URI  string `pos:"true" optional:"true" help:"Websocket endpoint, e.g. ws://host:8080/adminshell."`
	Page string `optional:"true" help:"URL of a hosting page to read the endpoint and terminal size from."`

	Rows int `optional:"true" help:"Terminal rows. Defaults to the page, the local terminal, then the config file."`
	Cols int `optional:"true" help:"Terminal columns. Defaults to the page, the local terminal, then the config file."`

	ConnectTimeoutMillis int64 `optional:"true" help:"Give up if the connection is not open after this long (ms). 0 waits forever."`
	IdleTimeoutMillis    int64 `optional:"true" help:"Disconnect after this long without traffic (ms). 0 never does."`

	Transcript string `optional:"true" help:"Write the session's plain-text scrollback to this file on exit."`
	LogLevel   string `optional:"true" help:"Log level (trace, debug, info, warn, error). Defaults to the config file."`
	LogFile    string `optional:"true" help:"Diagnostics log file. Defaults to ~/.cache/wsterm/connect.log."`
}

var statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))

func Cmd() *cobra.Command {
	return boa.CmdT[Params]{
		Use:   "connect",
		Short: "Attach this terminal to a remote shell over a websocket",
		Long: `Attach this terminal to a remote shell over a websocket.

Everything typed is sent to the remote side and everything it sends is
shown as is. The session ends when the connection closes or fails; the
reason stays on screen. Use either an endpoint URI or --page.`,
		ParamEnrich: common.DefaultParamEnricher(),
		RunFunc: func(params *Params, cmd *cobra.Command, args []string) {
			code, err := Run(cmd.Context(), params)
			if err != nil {
				_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(common.ExitFailure)
			}
			if code != common.ExitOK {
				os.Exit(code)
			}
		},
	}.ToCobra()
}

// Run runs one session on the process terminal and returns the exit code
// for its outcome.
func Run(ctx context.Context, params *Params) (int, error) {
	fileCfg, err := config.Load()
	if err != nil {
		return common.ExitFailure, fmt.Errorf("load config: %w", err)
	}

	logPath := params.LogFile
	if logPath == "" {
		logPath = common.DefaultClientLogPath()
	}
	logFile, err := common.OpenLogFile(logPath)
	if err != nil {
		return common.ExitFailure, err
	}
	defer logFile.Close()

	level := params.LogLevel
	if level == "" {
		level = fileCfg.LogLevel
	}
	log := common.NewJSONLogger(logFile, level).With().Str("cmd", "connect").Logger()
	ctx = log.WithContext(ctx)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer stop()

	termCfg, err := resolveTerminal(ctx, params, fileCfg, stdoutSize)
	if err != nil {
		return common.ExitFailure, err
	}
	opts := resolveOptions(params, fileCfg)

	_, _ = fmt.Fprintln(os.Stderr, statusStyle.Render("wsterm: connecting to "+termCfg.String()))

	ttyCfg := surface.StdioConfig()
	ttyCfg.TranscriptPath = params.Transcript
	ttyCfg.Log = log

	s := session.New(termCfg, surface.TTYFactory(ttyCfg), &surface.Console{Out: os.Stdout}, session.DialWebsocket, opts, log)
	state, err := s.Run(ctx)
	if err != nil {
		return common.ExitFailure, err
	}
	log.Info().Stringer("state", state).Msg("session ended")
	return exitCode(state), nil
}

// sizeFunc reports the local terminal size, ok false when there is none.
type sizeFunc func() (cols, rows int, ok bool)

func stdoutSize() (int, int, bool) {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return 0, 0, false
	}
	cols, rows, err := term.GetSize(fd)
	if err != nil || cols <= 0 || rows <= 0 {
		return 0, 0, false
	}
	return cols, rows, true
}

// resolveTerminal builds the session configuration. The endpoint comes from
// the URI argument or the hosting page. The size comes from the flags, the
// page, the local terminal and finally the config file, in that order.
func resolveTerminal(ctx context.Context, params *Params, fileCfg *config.Config, localSize sizeFunc) (config.Terminal, error) {
	var base config.Terminal
	switch {
	case params.URI != "" && params.Page != "":
		return config.Terminal{}, errors.New("give either an endpoint URI or --page, not both")
	case params.Page != "":
		pageCfg, err := config.FromPage(ctx, nil, params.Page)
		if err != nil {
			return config.Terminal{}, err
		}
		base = pageCfg
	case params.URI != "":
		base.EndpointURI = params.URI
	default:
		return config.Terminal{}, errors.New("an endpoint URI or --page is required")
	}

	rows, cols := fileCfg.Rows, fileCfg.Cols
	if c, r, ok := localSize(); ok {
		rows, cols = r, c
	}
	if base.Rows > 0 {
		rows = base.Rows
	}
	if base.Cols > 0 {
		cols = base.Cols
	}
	if params.Rows > 0 {
		rows = params.Rows
	}
	if params.Cols > 0 {
		cols = params.Cols
	}
	return config.NewTerminal(base.EndpointURI, rows, cols)
}

func resolveOptions(params *Params, fileCfg *config.Config) session.Options {
	return session.Options{
		ConnectTimeout:   durationOr(params.ConnectTimeoutMillis, fileCfg.ConnectTimeout()),
		IdleTimeout:      durationOr(params.IdleTimeoutMillis, fileCfg.IdleTimeout()),
		ExitOnDisconnect: true,
	}
}

func durationOr(millis int64, fallback time.Duration) time.Duration {
	if millis > 0 {
		return time.Duration(millis) * time.Millisecond
	}
	return fallback
}

func exitCode(state bridge.State) int {
	if state == bridge.Errored {
		return common.ExitConnection
	}
	return common.ExitOK
}
