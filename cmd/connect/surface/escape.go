package surface

import (
	"strings"

	"github.com/charmbracelet/x/ansi"
	"github.com/samber/lo"
)

// DEC private modes that turn on mouse tracking or change its encoding.
var mouseModes = []string{"9", "1000", "1001", "1002", "1003", "1005", "1006", "1015", "1016"}

const (
	cursorBlinkOn  = "\x1b[?12h"
	cursorBlinkOff = "\x1b[?12l"
)

// filterOutput removes window title requests from text and returns their
// titles separately, so the host decides how to show them. Unless
// allowMouse is set, requests to change mouse tracking are dropped too.
func filterOutput(text string, allowMouse bool) (string, []string) {
	if !strings.Contains(text, "\x1b") {
		return text, nil
	}

	var out strings.Builder
	out.Grow(len(text))
	var titles []string

	var state byte
	remaining := text
	for len(remaining) > 0 {
		seq, width, n, newState := ansi.DecodeSequence(remaining, state, nil)
		state = newState
		if n <= 0 {
			out.WriteString(remaining)
			break
		}
		remaining = remaining[n:]

		if width == 0 {
			if title, ok := parseTitle(seq); ok {
				titles = append(titles, title)
				continue
			}
			if !allowMouse && isMouseModeChange(seq) {
				continue
			}
		}
		out.WriteString(seq)
	}
	return out.String(), titles
}

// parseTitle recognizes OSC 0 (icon name and title) and OSC 2 (title).
func parseTitle(seq string) (string, bool) {
	body, ok := strings.CutPrefix(seq, "\x1b]")
	if !ok {
		return "", false
	}
	switch {
	case strings.HasSuffix(body, "\x07"):
		body = strings.TrimSuffix(body, "\x07")
	case strings.HasSuffix(body, "\x1b\\"):
		body = strings.TrimSuffix(body, "\x1b\\")
	default:
		return "", false
	}
	cmd, title, ok := strings.Cut(body, ";")
	if !ok || (cmd != "0" && cmd != "2") {
		return "", false
	}
	return title, true
}

func isMouseModeChange(seq string) bool {
	params, ok := strings.CutPrefix(seq, "\x1b[?")
	if !ok || len(params) < 2 {
		return false
	}
	final := params[len(params)-1]
	if final != 'h' && final != 'l' {
		return false
	}
	modes := strings.Split(params[:len(params)-1], ";")
	return lo.EveryBy(modes, func(m string) bool {
		return lo.Contains(mouseModes, m)
	})
}

// convertEOL turns every line feed not preceded by a carriage return into
// CR LF. prevCR carries the state across writes.
func convertEOL(text string, prevCR bool) (string, bool) {
	if !strings.Contains(text, "\n") {
		if len(text) > 0 {
			prevCR = text[len(text)-1] == '\r'
		}
		return text, prevCR
	}
	var sb strings.Builder
	sb.Grow(len(text) + strings.Count(text, "\n"))
	for i := 0; i < len(text); i++ {
		c := text[i]
		if c == '\n' && !prevCR {
			sb.WriteByte('\r')
		}
		sb.WriteByte(c)
		prevCR = c == '\r'
	}
	return sb.String(), prevCR
}
