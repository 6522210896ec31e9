package engine

import (
	"strings"

	"github.com/mpecan/tokf-sub001/internal/filter"
	"github.com/mpecan/tokf-sub001/internal/utils"
)

// extractSections runs every section state machine over lines and returns
// the buckets by key. A bucket holds lines, or blocks when split_on is set.
func (a *applier) extractSections(lines []string) map[string][]string {
	buckets := make(map[string][]string, len(a.f.Section))
	for _, sec := range a.f.Section {
		items := a.collect(sec, lines)
		if sec.SplitOn != "" {
			items = a.splitBlocks(sec, items)
		}
		buckets[sec.Key()] = append(buckets[sec.Key()], items...)
	}
	return buckets
}

// collect is the Inactive/Active machine. The enter and exit lines are never
// collected, and a section may be entered again after it exits.
func (a *applier) collect(sec filter.Section, lines []string) []string {
	enter := a.rules.compile("section.enter", sec.Enter)
	exit := a.rules.compile("section.exit", sec.Exit)
	match := a.rules.compile("section.match", sec.Match)

	active := sec.Enter == ""
	items := []string{}
	for _, line := range lines {
		if !active {
			if enter != nil && enter.MatchString(line) {
				active = true
			}
			continue
		}
		if exit != nil && exit.MatchString(line) {
			active = false
			continue
		}
		if sec.Match != "" && (match == nil || !match.MatchString(line)) {
			continue
		}
		items = append(items, line)
	}
	return items
}

// splitBlocks breaks collected lines into blocks, each starting at a
// boundary line. Lines before the first boundary form a block of their own
// unless they are all blank.
func (a *applier) splitBlocks(sec filter.Section, lines []string) []string {
	boundary := a.rules.compile("section.split_on", sec.SplitOn)

	var blocks [][]string
	for _, line := range lines {
		if (boundary != nil && boundary.MatchString(line)) || len(blocks) == 0 {
			blocks = append(blocks, nil)
		}
		blocks[len(blocks)-1] = append(blocks[len(blocks)-1], line)
	}

	out := make([]string, 0, len(blocks))
	for i, b := range blocks {
		text := strings.Join(b, "\n")
		if i == 0 && utils.IsBlank(text) {
			continue
		}
		out = append(out, text)
	}
	return out
}
