package surface

import "strings"

// Scrollback keeps the most recent lines of plain text written to a
// surface.
type Scrollback struct {
	max     int
	lines   []string
	partial strings.Builder
}

func NewScrollback(max int) *Scrollback {
	if max <= 0 {
		max = DefaultScrollback
	}
	return &Scrollback{max: max}
}

// Append adds text without escape sequences. Carriage returns are dropped.
func (s *Scrollback) Append(text string) {
	for {
		line, rest, found := strings.Cut(text, "\n")
		s.partial.WriteString(strings.ReplaceAll(line, "\r", ""))
		if !found {
			return
		}
		s.push(s.partial.String())
		s.partial.Reset()
		text = rest
	}
}

func (s *Scrollback) push(line string) {
	s.lines = append(s.lines, line)
	if over := len(s.lines) - s.max; over > 0 {
		// Shift in place so the backing array does not grow without bound.
		n := copy(s.lines, s.lines[over:])
		clear(s.lines[n:])
		s.lines = s.lines[:n]
	}
}

// Lines returns the kept lines, oldest first, including an unterminated
// last line.
func (s *Scrollback) Lines() []string {
	out := make([]string, len(s.lines), len(s.lines)+1)
	copy(out, s.lines)
	if s.partial.Len() > 0 {
		out = append(out, s.partial.String())
	}
	return out
}

func (s *Scrollback) Len() int {
	return len(s.lines)
}
