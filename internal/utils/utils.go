package utils

import (
	"fmt"
	"math"
	"strings"
	"unicode"
	"unicode/utf8"
)

// CSI sequences (colors, cursor movement) and OSC sequences (hyperlinks, titles).
var ansiRe = NewLazyRegex(`\x1b\[[0-9;?]*[a-zA-Z]|\x1b\][^\x07\x1b]*(?:\x07|\x1b\\)`)

// Truncate truncates s to max runes, appending "..." if truncated.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}

// StripANSI removes ANSI escape codes from s.
func StripANSI(s string) string {
	if !strings.Contains(s, "\x1b") {
		return s
	}
	return ansiRe.Re().ReplaceAllString(s, "")
}

// TrimSpaceANSI trims leading and trailing whitespace like strings.TrimSpace
// but looks through escape codes at either end, keeping the codes. Stripping
// the result gives the same text as trimming the stripped input.
func TrimSpaceANSI(s string) string {
	if !strings.Contains(s, "\x1b") {
		return strings.TrimSpace(s)
	}
	type segment struct {
		text string
		code bool
	}
	var segs []segment
	last := 0
	for _, loc := range ansiRe.Re().FindAllStringIndex(s, -1) {
		if loc[0] > last {
			segs = append(segs, segment{text: s[last:loc[0]]})
		}
		segs = append(segs, segment{text: s[loc[0]:loc[1]], code: true})
		last = loc[1]
	}
	if last < len(s) {
		segs = append(segs, segment{text: s[last:]})
	}

	for i := range segs {
		if segs[i].code {
			continue
		}
		if segs[i].text = strings.TrimLeftFunc(segs[i].text, unicode.IsSpace); segs[i].text != "" {
			break
		}
	}
	for i := len(segs) - 1; i >= 0; i-- {
		if segs[i].code {
			continue
		}
		if segs[i].text = strings.TrimRightFunc(segs[i].text, unicode.IsSpace); segs[i].text != "" {
			break
		}
	}

	var b strings.Builder
	b.Grow(len(s))
	for _, seg := range segs {
		b.WriteString(seg.text)
	}
	return b.String()
}

// SplitLines splits s on newlines, dropping the empty element left by a
// trailing newline. CRLF endings are normalized.
func SplitLines(s string) []string {
	if s == "" {
		return nil
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	lines := strings.Split(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// IsBlank reports whether a line is empty once color codes and whitespace are removed.
func IsBlank(line string) bool {
	return strings.TrimSpace(StripANSI(line)) == ""
}

// EstimateTokens estimates token count using ~4 chars/token heuristic.
func EstimateTokens(s string) int {
	n := len(s)
	if n == 0 {
		return 0
	}
	return int(math.Ceil(float64(n) / 4.0))
}

// FormatTokens formats a token count for display: "1.2M", "59.2K", "694".
func FormatTokens(n int) string {
	switch {
	case n >= 1_000_000:
		return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
	case n >= 1_000:
		return fmt.Sprintf("%.1fK", float64(n)/1_000)
	default:
		return fmt.Sprintf("%d", n)
	}
}
