package cli

import (
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/spf13/cobra"

	"github.com/mpecan/tokf-sub001/internal/display"
	"github.com/mpecan/tokf-sub001/internal/filter"
)

// notFound builds the error for an unknown filter name, with close names as
// suggestions: fuzzy matches first, else filters of the same tool.
func notFound(name string, names []string) error {
	var suggestions []string
	ranks := fuzzy.RankFindNormalizedFold(name, names)
	sort.Sort(ranks)
	for _, r := range ranks {
		suggestions = append(suggestions, r.Target)
	}
	if len(suggestions) == 0 {
		if tool, _, ok := strings.Cut(name, "/"); ok {
			for _, n := range names {
				if strings.HasPrefix(n, tool+"/") {
					suggestions = append(suggestions, n)
				}
			}
		}
	}
	if len(suggestions) == 0 {
		return fmt.Errorf("no filter named %q", name)
	}
	if len(suggestions) > 3 {
		suggestions = suggestions[:3]
	}
	return fmt.Errorf("no filter named %q (did you mean %s?)", name, strings.Join(suggestions, ", "))
}

func (a *app) lsCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List the available filters",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := a.registry()
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(reg.Names()))
			for _, name := range reg.Names() {
				f, _ := reg.Lookup(name)
				rows = append(rows, []string{name, strings.Join(f.Patterns, " | "), f.Description})
			}
			fmt.Fprint(a.stdout, display.FormatTable([]string{"Filter", "Command", "Description"}, rows))
			return nil
		},
	}
}

func (a *app) whichCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "which <command line>",
		Short: "Show which filter a command would use",
		Long: `Show which filter a command would use. The command may be given as separate
words or as one quoted string. Exits 1 when no filter matches.`,
		Args:               cobra.MinimumNArgs(1),
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := a.registry()
			if err != nil {
				return err
			}
			var m *filter.Match
			if len(args) == 1 {
				m, _, err = reg.MatchLine(args[0])
				if err != nil {
					return err
				}
			} else if found, ok := reg.Match(args); ok {
				m = found
			}
			if m == nil {
				fmt.Fprintln(a.stdout, "no filter (runs unfiltered)")
				return exitCode(1)
			}
			fmt.Fprintf(a.stdout, "%s  (pattern %q)\n", m.Filter.Name, m.Pattern)
			return nil
		},
	}
}

func (a *app) showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <filter>",
		Short: "Print a filter document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := a.resolveFilter(args[0])
			if err != nil {
				return err
			}
			if f.Source.FS == nil {
				return fmt.Errorf("filter %s has no source document", f.Name)
			}
			data, err := fs.ReadFile(f.Source.FS, f.Source.Path)
			if err != nil {
				return fmt.Errorf("read filter: %w", err)
			}
			_, err = a.stdout.Write(data)
			return err
		},
	}
}

func (a *app) hashCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash <filter>",
		Short: "Print the content hash of a filter",
		Long: `Print the content hash of a filter: the SHA-256 of its canonical form. Two
documents that differ only in formatting or key order hash the same.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := a.resolveFilter(args[0])
			if err != nil {
				return err
			}
			h, err := filter.Hash(f)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.stdout, h)
			return nil
		},
	}
}
