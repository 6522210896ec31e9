package filter

import "io/fs"

// Filter is a declarative document describing how to compress one command's output.
type Filter struct {
	// Name is the path of the document relative to its filter root, without
	// extension ("git/status"). It is derived by the loader, never decoded.
	Name string `toml:"-" yaml:"-" json:"-"`

	// Command is a string or a list of alternative strings. Use Patterns.
	Command     any     `toml:"command" yaml:"command" json:"-"`
	Description string  `toml:"description,omitempty" yaml:"description,omitempty" json:"description,omitempty"`
	Run         string  `toml:"run,omitempty" yaml:"run,omitempty" json:"run,omitempty"`
	Inject      *Inject `toml:"inject,omitempty" yaml:"inject,omitempty" json:"inject,omitempty"`

	Skip    []string      `toml:"skip,omitempty" yaml:"skip,omitempty" json:"skip,omitempty"`
	Keep    []string      `toml:"keep,omitempty" yaml:"keep,omitempty" json:"keep,omitempty"`
	Replace []ReplaceRule `toml:"replace,omitempty" yaml:"replace,omitempty" json:"replace,omitempty"`
	Step    []Step        `toml:"step,omitempty" yaml:"step,omitempty" json:"step,omitempty"`

	Extract     *ExtractRule      `toml:"extract,omitempty" yaml:"extract,omitempty" json:"extract,omitempty"`
	MatchOutput []MatchOutputRule `toml:"match_output,omitempty" yaml:"match_output,omitempty" json:"match_output,omitempty"`
	Section     []Section         `toml:"section,omitempty" yaml:"section,omitempty" json:"section,omitempty"`
	Chunk       []ChunkConfig     `toml:"chunk,omitempty" yaml:"chunk,omitempty" json:"chunk,omitempty"`

	OnSuccess *OutputBranch   `toml:"on_success,omitempty" yaml:"on_success,omitempty" json:"on_success,omitempty"`
	OnFailure *OutputBranch   `toml:"on_failure,omitempty" yaml:"on_failure,omitempty" json:"on_failure,omitempty"`
	Parse     *ParseConfig    `toml:"parse,omitempty" yaml:"parse,omitempty" json:"parse,omitempty"`
	Output    *OutputConfig   `toml:"output,omitempty" yaml:"output,omitempty" json:"output,omitempty"`
	Fallback  *FallbackConfig `toml:"fallback,omitempty" yaml:"fallback,omitempty" json:"fallback,omitempty"`

	StripANSI          bool `toml:"strip_ansi,omitempty" yaml:"strip_ansi,omitempty" json:"strip_ansi,omitempty"`
	TrimLines          bool `toml:"trim_lines,omitempty" yaml:"trim_lines,omitempty" json:"trim_lines,omitempty"`
	StripEmptyLines    bool `toml:"strip_empty_lines,omitempty" yaml:"strip_empty_lines,omitempty" json:"strip_empty_lines,omitempty"`
	CollapseEmptyLines bool `toml:"collapse_empty_lines,omitempty" yaml:"collapse_empty_lines,omitempty" json:"collapse_empty_lines,omitempty"`
	Dedup              bool `toml:"dedup,omitempty" yaml:"dedup,omitempty" json:"dedup,omitempty"`
	DedupWindow        int  `toml:"dedup_window,omitempty" yaml:"dedup_window,omitempty" json:"dedup_window,omitempty"`

	Script  *ScriptConfig `toml:"lua_script,omitempty" yaml:"lua_script,omitempty" json:"lua_script,omitempty"`
	Variant []Variant     `toml:"variant,omitempty" yaml:"variant,omitempty" json:"variant,omitempty"`

	// Patterns is Command normalized to a list, filled in by ParseFilter.
	Patterns []string `toml:"-" yaml:"-" json:"command"`

	// Source records where the document was loaded from.
	Source Source `toml:"-" yaml:"-" json:"-"`
}

// Source locates a filter document inside the file system it was loaded from.
type Source struct {
	FS   fs.FS
	Path string
}

// Inject defines args to inject before execution.
type Inject struct {
	Args          []string          `toml:"args,omitempty" yaml:"args,omitempty" json:"args,omitempty"`
	Defaults      map[string]string `toml:"defaults,omitempty" yaml:"defaults,omitempty" json:"defaults,omitempty"`
	SkipIfPresent []string          `toml:"skip_if_present,omitempty" yaml:"skip_if_present,omitempty" json:"skip_if_present,omitempty"`
}

// ReplaceRule substitutes every match of Pattern in a line with Output.
// Output may reference capture groups as {1}, {2}, ...
type ReplaceRule struct {
	Pattern string `toml:"pattern" yaml:"pattern" json:"pattern"`
	Output  string `toml:"output" yaml:"output" json:"output"`
}

// Step runs an auxiliary command before filtering; its trimmed output is
// exposed to templates under As.
type Step struct {
	Run string `toml:"run" yaml:"run" json:"run"`
	As  string `toml:"as" yaml:"as" json:"as"`
}

// ExtractRule renders Output from the first line matching Pattern.
type ExtractRule struct {
	Pattern string `toml:"pattern" yaml:"pattern" json:"pattern"`
	Output  string `toml:"output" yaml:"output" json:"output"`
}

// LineExtract is an ExtractRule pinned to a 1-based line number.
type LineExtract struct {
	Line    int    `toml:"line" yaml:"line" json:"line"`
	Pattern string `toml:"pattern" yaml:"pattern" json:"pattern"`
	Output  string `toml:"output" yaml:"output" json:"output"`
}

// MatchOutputRule short-circuits the pipeline when the whole output contains Contains.
type MatchOutputRule struct {
	Contains string `toml:"contains" yaml:"contains" json:"contains"`
	Output   string `toml:"output" yaml:"output" json:"output"`
}

// OutputBranch is the success- or failure-specific sub-pipeline.
type OutputBranch struct {
	Output     string          `toml:"output,omitempty" yaml:"output,omitempty" json:"output,omitempty"`
	Tail       int             `toml:"tail,omitempty" yaml:"tail,omitempty" json:"tail,omitempty"`
	Head       int             `toml:"head,omitempty" yaml:"head,omitempty" json:"head,omitempty"`
	Skip       []string        `toml:"skip,omitempty" yaml:"skip,omitempty" json:"skip,omitempty"`
	Extract    *ExtractRule    `toml:"extract,omitempty" yaml:"extract,omitempty" json:"extract,omitempty"`
	Aggregate  *AggregateRule  `toml:"aggregate,omitempty" yaml:"aggregate,omitempty" json:"aggregate,omitempty"`
	Aggregates []AggregateRule `toml:"aggregates,omitempty" yaml:"aggregates,omitempty" json:"aggregates,omitempty"`
}

// AggregateRules returns the single and list aggregate rules in declaration order.
func (b *OutputBranch) AggregateRules() []AggregateRule {
	var out []AggregateRule
	if b.Aggregate != nil {
		out = append(out, *b.Aggregate)
	}
	return append(out, b.Aggregates...)
}

// Section collects lines between an enter and an exit marker.
type Section struct {
	Name      string `toml:"name" yaml:"name" json:"name"`
	Enter     string `toml:"enter,omitempty" yaml:"enter,omitempty" json:"enter,omitempty"`
	Exit      string `toml:"exit,omitempty" yaml:"exit,omitempty" json:"exit,omitempty"`
	Match     string `toml:"match,omitempty" yaml:"match,omitempty" json:"match,omitempty"`
	SplitOn   string `toml:"split_on,omitempty" yaml:"split_on,omitempty" json:"split_on,omitempty"`
	CollectAs string `toml:"collect_as,omitempty" yaml:"collect_as,omitempty" json:"collect_as,omitempty"`
}

// Key is the name the collected data is exposed under.
func (s Section) Key() string {
	if s.CollectAs != "" {
		return s.CollectAs
	}
	return s.Name
}

// AggregateRule reduces the items of a bucket to a sum and/or a count.
// From names a section; empty means the cleaned output lines.
type AggregateRule struct {
	From    string `toml:"from,omitempty" yaml:"from,omitempty" json:"from,omitempty"`
	Pattern string `toml:"pattern" yaml:"pattern" json:"pattern"`
	Sum     string `toml:"sum,omitempty" yaml:"sum,omitempty" json:"sum,omitempty"`
	CountAs string `toml:"count_as,omitempty" yaml:"count_as,omitempty" json:"count_as,omitempty"`
}

// ChunkField extracts capture group 1 of Pattern into the field As.
type ChunkField struct {
	Pattern string `toml:"pattern" yaml:"pattern" json:"pattern"`
	As      string `toml:"as" yaml:"as" json:"as"`
}

// ChunkConfig splits output into chunks at SplitOn and reduces each to a record.
type ChunkConfig struct {
	SplitOn          string          `toml:"split_on" yaml:"split_on" json:"split_on"`
	IncludeSplitLine bool            `toml:"include_split_line,omitempty" yaml:"include_split_line,omitempty" json:"include_split_line,omitempty"`
	CollectAs        string          `toml:"collect_as" yaml:"collect_as" json:"collect_as"`
	Extract          *ChunkField     `toml:"extract,omitempty" yaml:"extract,omitempty" json:"extract,omitempty"`
	BodyExtract      []ChunkField    `toml:"body_extract,omitempty" yaml:"body_extract,omitempty" json:"body_extract,omitempty"`
	Aggregate        []AggregateRule `toml:"aggregate,omitempty" yaml:"aggregate,omitempty" json:"aggregate,omitempty"`
	GroupBy          string          `toml:"group_by,omitempty" yaml:"group_by,omitempty" json:"group_by,omitempty"`
	ChildrenAs       string          `toml:"children_as,omitempty" yaml:"children_as,omitempty" json:"children_as,omitempty"`
	CarryForward     []string        `toml:"carry_forward,omitempty" yaml:"carry_forward,omitempty" json:"carry_forward,omitempty"`
}

// FieldNames returns every field name the config declares statically.
func (c ChunkConfig) FieldNames() []string {
	var names []string
	if c.Extract != nil && c.Extract.As != "" {
		names = append(names, c.Extract.As)
	}
	for _, b := range c.BodyExtract {
		if b.As != "" {
			names = append(names, b.As)
		}
	}
	for _, a := range c.Aggregate {
		if a.Sum != "" {
			names = append(names, a.Sum)
		}
		if a.CountAs != "" {
			names = append(names, a.CountAs)
		}
	}
	return names
}

// ParseConfig replaces branch selection with structured line parsing.
type ParseConfig struct {
	Branch *LineExtract `toml:"branch,omitempty" yaml:"branch,omitempty" json:"branch,omitempty"`
	Group  *GroupConfig `toml:"group,omitempty" yaml:"group,omitempty" json:"group,omitempty"`
}

// GroupConfig counts lines by an extracted key, mapped through Labels.
type GroupConfig struct {
	Key    ExtractRule       `toml:"key" yaml:"key" json:"key"`
	Labels map[string]string `toml:"labels,omitempty" yaml:"labels,omitempty" json:"labels,omitempty"`
}

// OutputConfig formats the result of a ParseConfig.
type OutputConfig struct {
	Format            string `toml:"format,omitempty" yaml:"format,omitempty" json:"format,omitempty"`
	GroupCountsFormat string `toml:"group_counts_format,omitempty" yaml:"group_counts_format,omitempty" json:"group_counts_format,omitempty"`
	Empty             string `toml:"empty,omitempty" yaml:"empty,omitempty" json:"empty,omitempty"`
}

// FallbackConfig applies when no branch matches the exit code.
type FallbackConfig struct {
	Tail int `toml:"tail,omitempty" yaml:"tail,omitempty" json:"tail,omitempty"`
}

// ScriptConfig holds an escape-hatch script. Exactly one of File and Source is set.
type ScriptConfig struct {
	Lang   string `toml:"lang" yaml:"lang" json:"lang"`
	File   string `toml:"file,omitempty" yaml:"file,omitempty" json:"file,omitempty"`
	Source string `toml:"source,omitempty" yaml:"source,omitempty" json:"source,omitempty"`
}

// Variant delegates to a more specific filter when Detect matches.
type Variant struct {
	Name   string        `toml:"name" yaml:"name" json:"name"`
	Detect VariantDetect `toml:"detect" yaml:"detect" json:"detect"`
	Filter string        `toml:"filter" yaml:"filter" json:"filter"`
}

// VariantDetect is satisfied by any present file (pre-execution) or by an
// output match (post-execution).
type VariantDetect struct {
	Files         []string `toml:"files,omitempty" yaml:"files,omitempty" json:"files,omitempty"`
	OutputPattern string   `toml:"output_pattern,omitempty" yaml:"output_pattern,omitempty" json:"output_pattern,omitempty"`
}
