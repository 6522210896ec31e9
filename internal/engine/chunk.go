package engine

import (
	"sort"
	"strconv"
	"strings"

	"github.com/mpecan/tokf-sub001/internal/filter"
	"github.com/mpecan/tokf-sub001/internal/template"
)

// processChunk splits lines into chunks and reduces each to a record,
// optionally merging records that share a group key.
func (a *applier) processChunk(cfg filter.ChunkConfig, lines []string) []template.Record {
	chunks := a.splitChunks(cfg, lines)

	items := make([]template.Record, 0, len(chunks))
	for _, c := range chunks {
		items = append(items, a.reduceChunk(cfg, c))
	}
	carryForward(items, cfg.CarryForward)
	normalizeKeys(items, cfg)

	if cfg.GroupBy == "" {
		return items
	}
	return groupRecords(items, cfg.GroupBy, cfg.ChildrenAs)
}

// splitChunks starts a chunk at every boundary line. Lines before the first
// boundary belong to no chunk.
func (a *applier) splitChunks(cfg filter.ChunkConfig, lines []string) [][]string {
	boundary := a.rules.compile("chunk.split_on", cfg.SplitOn)
	if boundary == nil {
		return nil
	}
	var chunks [][]string
	for _, line := range lines {
		if boundary.MatchString(line) {
			chunks = append(chunks, []string{})
			if !cfg.IncludeSplitLine {
				continue
			}
		}
		if len(chunks) == 0 {
			continue
		}
		chunks[len(chunks)-1] = append(chunks[len(chunks)-1], line)
	}
	return chunks
}

func (a *applier) reduceChunk(cfg filter.ChunkConfig, lines []string) template.Record {
	fields := make(map[string]string)

	if cfg.Extract != nil && len(lines) > 0 {
		if re := a.rules.compile("chunk.extract", cfg.Extract.Pattern); re != nil {
			if m := re.FindStringSubmatch(lines[0]); m != nil {
				fields[cfg.Extract.As] = firstGroup(m)
			}
		}
	}

	for _, field := range cfg.BodyExtract {
		re := a.rules.compile("chunk.body_extract", field.Pattern)
		if re == nil {
			continue
		}
		for _, line := range lines {
			if m := re.FindStringSubmatch(line); m != nil {
				fields[field.As] = firstGroup(m)
				break
			}
		}
	}

	for _, rule := range cfg.Aggregate {
		for k, v := range aggregate(lines, a.rules.compile("chunk.aggregate", rule.Pattern), rule) {
			fields[k] = v
		}
	}

	return template.Record{Fields: fields, Text: strings.Join(lines, "\n")}
}

// carryForward fills empty values of the named fields from the most recent
// non-empty value, in chunk order.
func carryForward(items []template.Record, names []string) {
	last := make(map[string]string, len(names))
	for _, item := range items {
		for _, name := range names {
			if v := item.Fields[name]; v != "" {
				last[name] = v
			} else if prev, ok := last[name]; ok {
				item.Fields[name] = prev
			}
		}
	}
}

// normalizeKeys pads every record with "" for each key seen on any record or
// declared by the config, so no template reference falls through to an outer
// variable of the same name.
func normalizeKeys(items []template.Record, cfg filter.ChunkConfig) {
	keys := make(map[string]bool)
	for _, name := range cfg.FieldNames() {
		keys[name] = true
	}
	for _, name := range cfg.CarryForward {
		keys[name] = true
	}
	for _, item := range items {
		for k := range item.Fields {
			keys[k] = true
		}
	}
	for _, item := range items {
		for k := range keys {
			if _, ok := item.Fields[k]; !ok {
				item.Fields[k] = ""
			}
		}
	}
}

// groupRecords merges records sharing the value of key, in order of first
// appearance. Integer fields are summed; for anything else the first value
// wins. With childrenAs set each group keeps its original records.
func groupRecords(items []template.Record, key, childrenAs string) []template.Record {
	var groups []template.Record
	index := make(map[string]int)

	for _, item := range items {
		k := item.Fields[key]
		i, ok := index[k]
		if !ok {
			index[k] = len(groups)
			g := template.Record{Fields: copyFields(item.Fields), Text: item.Text}
			if childrenAs != "" {
				g.Children = map[string][]template.Record{childrenAs: {item}}
			}
			groups = append(groups, g)
			continue
		}

		g := &groups[i]
		for _, name := range sortedKeys(item.Fields) {
			if name == key {
				continue
			}
			g.Fields[name] = mergeField(g.Fields[name], item.Fields[name])
		}
		if childrenAs != "" {
			g.Children[childrenAs] = append(g.Children[childrenAs], item)
		}
	}
	return groups
}

func mergeField(acc, incoming string) string {
	in, err := strconv.Atoi(incoming)
	if err != nil {
		return acc
	}
	if acc == "" {
		return strconv.Itoa(in)
	}
	cur, err := strconv.Atoi(acc)
	if err != nil {
		return acc
	}
	return strconv.Itoa(cur + in)
}

func copyFields(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
