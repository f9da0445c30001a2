package surface

import (
	"slices"
	"testing"
)

func TestFilterOutput_PlainTextUntouched(t *testing.T) {
	in := "ls -la\r\ntotal 0\r\n"
	out, titles := filterOutput(in, true)
	if out != in || titles != nil {
		t.Errorf("filterOutput(%q) = %q, %q", in, out, titles)
	}
}

func TestFilterOutput_ExtractsTitles(t *testing.T) {
	in := "before\x1b]0;admin@dcache\x07middle\x1b]2;second\x1b\\after"
	out, titles := filterOutput(in, true)
	if out != "beforemiddleafter" {
		t.Errorf("out = %q", out)
	}
	if !slices.Equal(titles, []string{"admin@dcache", "second"}) {
		t.Errorf("titles = %q", titles)
	}
}

func TestFilterOutput_KeepsOtherSequences(t *testing.T) {
	in := "\x1b[1;33mwarn\x1b[m \x1b]8;;http://x\x07link\x1b]8;;\x07"
	out, titles := filterOutput(in, true)
	if out != in {
		t.Errorf("out = %q, want unchanged", out)
	}
	if len(titles) != 0 {
		t.Errorf("titles = %q", titles)
	}
}

func TestFilterOutput_MouseModes(t *testing.T) {
	in := "a\x1b[?1000h\x1b[?1002;1006hb\x1b[?25lc\x1b[?1000;25hd"

	allowed, _ := filterOutput(in, true)
	if allowed != in {
		t.Errorf("with mouse allowed: %q", allowed)
	}

	blocked, _ := filterOutput(in, false)
	// Mixed parameter lists are kept whole.
	if blocked != "ab\x1b[?25lc\x1b[?1000;25hd" {
		t.Errorf("with mouse blocked: %q", blocked)
	}
}

func TestParseTitle(t *testing.T) {
	tests := []struct {
		seq   string
		title string
		ok    bool
	}{
		{"\x1b]0;hello\x07", "hello", true},
		{"\x1b]2;with;semicolon\x07", "with;semicolon", true},
		{"\x1b]2;st\x1b\\", "st", true},
		{"\x1b]1;icon\x07", "", false},
		{"\x1b]2;unterminated", "", false},
		{"\x1b[2J", "", false},
	}
	for _, tt := range tests {
		title, ok := parseTitle(tt.seq)
		if title != tt.title || ok != tt.ok {
			t.Errorf("parseTitle(%q) = %q, %v; want %q, %v", tt.seq, title, ok, tt.title, tt.ok)
		}
	}
}

func TestConvertEOL(t *testing.T) {
	tests := []struct {
		in     string
		prevCR bool
		want   string
		wantCR bool
	}{
		{"a\nb\n", false, "a\r\nb\r\n", false},
		{"a\r\nb", false, "a\r\nb", false},
		{"\n", true, "\n", false},
		{"line\r", false, "line\r", true},
		{"", true, "", true},
		{"\n\n", false, "\r\n\r\n", false},
	}
	for _, tt := range tests {
		got, gotCR := convertEOL(tt.in, tt.prevCR)
		if got != tt.want || gotCR != tt.wantCR {
			t.Errorf("convertEOL(%q, %v) = %q, %v; want %q, %v", tt.in, tt.prevCR, got, gotCR, tt.want, tt.wantCR)
		}
	}
}
