package display

import (
	"bytes"
	"strings"
	"testing"
)

func TestFormatSeparator(t *testing.T) {
	s := FormatSeparator(10)
	if len([]rune(s)) != 10 {
		t.Errorf("rune len = %d, want 10", len([]rune(s)))
	}
}

func TestFormatTable(t *testing.T) {
	headers := []string{"Name", "Count", "Pct"}
	rows := [][]string{
		{"git log", "42", "78.5%"},
		{"go test", "15", "85.2%"},
	}

	result := FormatTable(headers, rows)
	if !strings.Contains(result, "Name") {
		t.Error("missing header")
	}
	if !strings.Contains(result, "git log") {
		t.Error("missing row data")
	}
	lines := strings.Split(strings.TrimSpace(result), "\n")
	if len(lines) != 4 { // header + separator + 2 rows
		t.Errorf("got %d lines, want 4", len(lines))
	}
}

func TestFormatTableEmpty(t *testing.T) {
	result := FormatTable(nil, nil)
	if result != "" {
		t.Errorf("expected empty, got %q", result)
	}
}

func TestFormatTableStyledCells(t *testing.T) {
	styled := SuccessStyle.Render("90.0%")
	result := FormatTable([]string{"Pct", "Name"}, [][]string{{styled, "a"}, {"5.0%", "b"}})
	lines := strings.Split(strings.TrimSpace(result), "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d lines", len(lines))
	}
	if !strings.HasSuffix(lines[3], "5.0%   b") {
		t.Errorf("row not aligned: %q", lines[3])
	}
}

func TestFprintError(t *testing.T) {
	var buf bytes.Buffer
	FprintError(&buf, "boom", false)
	if buf.String() != "tokf: boom\n" {
		t.Errorf("got %q", buf.String())
	}
}

func TestColorSavings(t *testing.T) {
	if got := ColorSavings(42.25, false); got != "42.2%" && got != "42.3%" {
		t.Errorf("got %q", got)
	}
	if got := ColorSavings(80, true); !strings.Contains(got, "80.0%") {
		t.Errorf("styled value lost: %q", got)
	}
}

func TestBar(t *testing.T) {
	tests := []struct {
		value, max, width int
		filled            int
	}{
		{0, 100, 10, 0},
		{50, 100, 10, 5},
		{1, 1000, 10, 1},
		{200, 100, 10, 10},
		{5, 0, 10, 0},
	}
	for _, tt := range tests {
		bar := Bar(tt.value, tt.max, tt.width)
		if n := strings.Count(bar, "█"); n != tt.filled {
			t.Errorf("Bar(%d, %d, %d) filled = %d, want %d", tt.value, tt.max, tt.width, n, tt.filled)
		}
		if n := len([]rune(bar)); n != tt.width {
			t.Errorf("Bar width = %d", n)
		}
	}
}

func TestFormatSparkline(t *testing.T) {
	if got := FormatSparkline([]float64{0, 50, 100}); got != "▁▄█" {
		t.Errorf("got %q", got)
	}
	if got := FormatSparkline([]float64{3, 3}); got != "▁▁" {
		t.Errorf("flat series = %q", got)
	}
	if FormatSparkline(nil) != "" {
		t.Error("expected empty sparkline")
	}
}
