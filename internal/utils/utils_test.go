package utils

import (
	"strings"
	"testing"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		name string
		s    string
		max  int
		want string
	}{
		{"short string", "hello", 10, "hello"},
		{"exact length", "hello", 5, "hello"},
		{"truncated", "hello world", 8, "hello..."},
		{"empty", "", 5, ""},
		{"zero max", "hello", 0, ""},
		{"max 3", "hello", 3, "hel"},
		{"max 2", "hello", 2, "he"},
		{"unicode", "héllo wörld", 8, "héllo..."},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got := Truncate(tt.s, tt.max)
			if got != tt.want {
				t.Errorf("Truncate(%q, %d) = %q, want %q", tt.s, tt.max, got, tt.want)
			}
		})
	}
}

func TestStripANSI(t *testing.T) {
	tests := []struct {
		name string
		s    string
		want string
	}{
		{"no ansi", "hello", "hello"},
		{"color", "\x1b[31mred\x1b[0m", "red"},
		{"bold", "\x1b[1mbold\x1b[0m", "bold"},
		{"mixed", "normal \x1b[32mgreen\x1b[0m normal", "normal green normal"},
		{"osc hyperlink", "\x1b]8;;http://x\x07link\x1b]8;;\x07", "link"},
		{"cursor", "\x1b[?25lhidden", "hidden"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got := StripANSI(tt.s)
			if got != tt.want {
				t.Errorf("StripANSI(%q) = %q, want %q", tt.s, got, tt.want)
			}
		})
	}
}

func TestTrimSpaceANSI(t *testing.T) {
	tests := []struct {
		name string
		s    string
		want string
	}{
		{"no ansi", "  hello \t", "hello"},
		{"inside color", "\x1b[32m  ok  \x1b[0m", "\x1b[32mok\x1b[0m"},
		{"around color", "  \x1b[32mok\x1b[0m  ", "\x1b[32mok\x1b[0m"},
		{"stacked codes", "\x1b[1m \x1b[32m  ok \x1b[0m \x1b[0m", "\x1b[1m\x1b[32mok\x1b[0m\x1b[0m"},
		{"inner space kept", "\x1b[31m a  b \x1b[0m", "\x1b[31ma  b\x1b[0m"},
		{"only codes and space", "\x1b[0m   \x1b[0m", "\x1b[0m\x1b[0m"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got := TrimSpaceANSI(tt.s)
			if got != tt.want {
				t.Errorf("TrimSpaceANSI(%q) = %q, want %q", tt.s, got, tt.want)
			}
			if StripANSI(got) != strings.TrimSpace(StripANSI(tt.s)) {
				t.Errorf("TrimSpaceANSI(%q) stripped = %q, want %q", tt.s, StripANSI(got), strings.TrimSpace(StripANSI(tt.s)))
			}
		})
	}
}

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		name string
		s    string
		want int
	}{
		{"empty", "", 0},
		{"4 chars", "abcd", 1},
		{"5 chars", "abcde", 2},
		{"8 chars", "abcdefgh", 2},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got := EstimateTokens(tt.s)
			if got != tt.want {
				t.Errorf("EstimateTokens(%q) = %d, want %d", tt.s, got, tt.want)
			}
		})
	}
}

func TestFormatTokens(t *testing.T) {
	tests := []struct {
		n    int
		want string
	}{
		{0, "0"},
		{694, "694"},
		{1000, "1.0K"},
		{59200, "59.2K"},
		{1200000, "1.2M"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.want, func(t *testing.T) {
			got := FormatTokens(tt.n)
			if got != tt.want {
				t.Errorf("FormatTokens(%d) = %q, want %q", tt.n, got, tt.want)
			}
		})
	}
}

func TestSplitLines(t *testing.T) {
	tests := []struct {
		name string
		s    string
		want int
	}{
		{"empty", "", 0},
		{"trailing newline", "a\nb\n", 2},
		{"no trailing newline", "a\nb", 2},
		{"crlf", "a\r\nb\r\n", 2},
		{"blank lines kept", "a\n\nb", 3},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got := SplitLines(tt.s)
			if len(got) != tt.want {
				t.Errorf("SplitLines(%q) = %q, want %d lines", tt.s, got, tt.want)
			}
		})
	}
}

func TestIsBlank(t *testing.T) {
	if !IsBlank("  \x1b[0m  ") {
		t.Error("color-only line should be blank")
	}
	if IsBlank(" x ") {
		t.Error("text line should not be blank")
	}
}
