package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mpecan/tokf-sub001/internal/display"
	"github.com/mpecan/tokf-sub001/internal/engine"
	"github.com/mpecan/tokf-sub001/internal/filter"
	"github.com/mpecan/tokf-sub001/internal/verify"
)

func (a *app) runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run [-v] [--raw] [--color] [--no-track] <command> [args...]",
		Short: "Run a command through its filter",
		Long: `Run a command and print its filtered output. The exit code is the command's.

Flags are only recognized before the command:
  -v, -vv      verbose diagnostics (stackable)
  --raw        run without filtering
  --color      keep ANSI colors in the output
  --no-track   do not record token savings`,
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags, argv := ParseRunFlags(args)
			if flags.Help || len(argv) == 0 {
				return cmd.Help()
			}
			if flags.Verbose > 0 {
				a.log = newLogger(flags.Verbose, a.stderr)
			}

			p := &engine.Pipeline{
				Log:           a.log,
				Tee:           a.cfg.Tee,
				Script:        a.cfg.Sandbox,
				PreserveColor: flags.Color || (a.cfg.Display.Color && a.styled(a.stdout)),
				Stdout:        a.stdout,
				Stderr:        a.stderr,
			}
			if flags.Raw {
				return exitCode(p.Passthrough(cmd.Context(), argv))
			}

			reg, err := a.registry()
			if err != nil {
				a.log.Warn("running unfiltered", zap.Error(err))
				return exitCode(p.Passthrough(cmd.Context(), argv))
			}
			p.Registry = reg
			if !flags.NoTrack {
				if t := a.tracker(); t != nil {
					defer t.Close()
					p.Tracker = t
				}
			}
			return exitCode(p.Run(cmd.Context(), argv))
		},
	}
}

func (a *app) applyCmd() *cobra.Command {
	var (
		exit  int
		args  []string
		color bool
	)
	cmd := &cobra.Command{
		Use:   "apply <filter|file> [input]",
		Short: "Apply a filter to captured output",
		Long: `Apply a filter to output read from a file or stdin, without running anything.
The filter is a registered name (git/status) or a path to a filter document.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, pos []string) error {
			f, err := a.resolveFilter(pos[0])
			if err != nil {
				return err
			}

			var raw []byte
			if len(pos) == 2 && pos[1] != "-" {
				raw, err = os.ReadFile(pos[1])
			} else {
				raw, err = io.ReadAll(a.stdin)
			}
			if err != nil {
				return fmt.Errorf("read input: %w", err)
			}

			out, err := engine.Apply(f, string(raw), exit, args, engine.Options{
				PreserveColor: color,
				Logger:        a.log,
				Script:        a.cfg.Sandbox,
				Context:       cmd.Context(),
			})
			if err != nil {
				return err
			}
			fmt.Fprint(a.stdout, out)
			if out != "" && !strings.HasSuffix(out, "\n") {
				fmt.Fprintln(a.stdout)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&exit, "exit-code", "e", 0, "exit code to simulate")
	cmd.Flags().StringArrayVar(&args, "arg", nil, "argument exposed to templates as args (repeatable)")
	cmd.Flags().BoolVar(&color, "color", false, "keep ANSI colors in the output")
	return cmd
}

// resolveFilter finds a filter by registered name, or loads it from a
// document path.
func (a *app) resolveFilter(ref string) (*filter.Filter, error) {
	if ext := filepath.Ext(ref); ext == ".toml" || ext == ".yaml" || ext == ".yml" {
		if _, err := os.Stat(ref); err == nil {
			return loadFilterFile(ref)
		}
	}
	reg, err := a.registry()
	if err != nil {
		return nil, err
	}
	if f, ok := reg.Lookup(ref); ok {
		return f, nil
	}
	return nil, notFound(ref, reg.Names())
}

func loadFilterFile(path string) (*filter.Filter, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read filter: %w", err)
	}
	f, err := filter.ParseFilterFile(path, data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	base := filepath.Base(path)
	f.Name = strings.TrimSuffix(base, filepath.Ext(base))
	f.Source = filter.Source{FS: os.DirFS(filepath.Dir(path)), Path: base}
	return f, nil
}

func (a *app) verifyCmd() *cobra.Command {
	var quiet bool
	cmd := &cobra.Command{
		Use:   "verify [filter|file...]",
		Short: "Run the test cases shipped with filters",
		Long: `Run the test cases in each filter's <name>_test directory. With no arguments
every registered filter is verified. Exits 1 when any case fails.`,
		RunE: func(cmd *cobra.Command, names []string) error {
			var filters []*filter.Filter
			if len(names) == 0 {
				reg, err := a.registry()
				if err != nil {
					return err
				}
				filters = reg.Filters()
			}
			for _, name := range names {
				f, err := a.resolveFilter(name)
				if err != nil {
					return err
				}
				filters = append(filters, f)
			}

			results, err := verify.RunAll(cmd.Context(), filters, engine.Options{
				Logger: a.log,
				Script: a.cfg.Sandbox,
			})
			if err != nil {
				return err
			}
			return a.report(results, quiet)
		},
	}
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "only print failures")
	return cmd
}

func (a *app) report(results []verify.Result, quiet bool) error {
	styled := a.styled(a.stdout)
	mark := func(s string, ok bool) string {
		if !styled {
			return s
		}
		if ok {
			return display.SuccessStyle.Render(s)
		}
		return display.ErrorStyle.Render(s)
	}

	failed := 0
	for _, r := range results {
		if r.Passed() {
			if !quiet {
				fmt.Fprintf(a.stdout, "%s %s: %s\n", mark("PASS", true), r.Filter, r.Case)
			}
			continue
		}
		failed++
		fmt.Fprintf(a.stdout, "%s %s: %s\n", mark("FAIL", false), r.Filter, r.Case)
		if r.Err != nil {
			fmt.Fprintf(a.stdout, "    %v\n", r.Err)
		}
		for _, f := range r.Failures {
			fmt.Fprintf(a.stdout, "    %s\n", f.Error())
		}
	}
	fmt.Fprintf(a.stdout, "%d cases, %d failed\n", len(results), failed)
	if failed > 0 {
		return exitCode(1)
	}
	return nil
}
