package bridge

import "strings"

// SentinelPrefix marks an inbound payload as the remote side's
// termination signal. It is a bare prefix, not a framed control message:
// any payload that merely starts with it is treated as termination.
const SentinelPrefix = "TERMINAL_CLOSED"

// Warning markers wrapped around every advisory. Yellow foreground on a
// fresh line, reset afterwards.
const (
	WarnBegin = "\r\n\x1b[33m"
	WarnEnd   = "\x1b[m\r\n"
)

// Advisory texts, synthesized locally and never sent over the wire.
const (
	ScrollInfo             = "Use control key + arrows or mouse wheel to scroll vertically.\r\n"
	ServerDisconnect       = "Server has disconnected; to reconnect, refresh the page."
	TerminalDisconnect     = "Terminal disconnected; to reconnect, refresh the page."
	ConnectTimeoutAdvisory = "Connection timed out; to reconnect, refresh the page."
	IdleTimeoutAdvisory    = "Connection idle for too long; to reconnect, refresh the page."
)

// Warn brackets text with the warning markers.
func Warn(text string) string {
	return WarnBegin + text + WarnEnd
}

// Kind is the classification of an inbound payload.
type Kind int

const (
	KindData Kind = iota
	KindTerminalClosed
)

func (k Kind) String() string {
	switch k {
	case KindData:
		return "data"
	case KindTerminalClosed:
		return "terminal-closed"
	default:
		return "unknown"
	}
}

// Classify is the only place that looks inside inbound payloads.
func Classify(payload string) Kind {
	if strings.HasPrefix(payload, SentinelPrefix) {
		return KindTerminalClosed
	}
	return KindData
}
