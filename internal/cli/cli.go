// Package cli wires the tokf commands together.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/mpecan/tokf-sub001/internal/config"
	"github.com/mpecan/tokf-sub001/internal/display"
	"github.com/mpecan/tokf-sub001/internal/filter"
	"github.com/mpecan/tokf-sub001/internal/tracking"
)

const version = "0.2.0"

// exitCode carries a command's exit status out of cobra without printing an
// error.
type exitCode int

func (e exitCode) Error() string {
	return fmt.Sprintf("exit status %d", int(e))
}

// app is the state shared by all commands of one invocation.
type app struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	verbose int
	cfg     *config.Config
	log     *zap.Logger
}

// Run is the main entry point. Returns exit code.
func Run(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return Execute(ctx, args[1:], os.Stdin, os.Stdout, os.Stderr)
}

// Execute runs the command line args (without the program name) against
// the given streams. A first argument that is not a tokf command is treated
// as the command to run, so "tokf git status" works like "tokf run git status".
func Execute(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	a := &app{stdin: stdin, stdout: stdout, stderr: stderr}
	root := a.rootCmd()

	if len(args) > 0 && !strings.HasPrefix(args[0], "-") && !isBuiltin(root, args[0]) {
		args = append([]string{"run"}, args...)
	}
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if a.log != nil {
		_ = a.log.Sync()
	}

	var code exitCode
	switch {
	case errors.As(err, &code):
		return int(code)
	case err != nil:
		display.FprintError(stderr, err.Error(), stderr == os.Stderr && display.IsStderrTerminal())
		return 1
	}
	return 0
}

func isBuiltin(root *cobra.Command, name string) bool {
	if name == "help" || name == "completion" {
		return true
	}
	for _, c := range root.Commands() {
		if c.Name() == name || slices.Contains(c.Aliases, name) {
			return true
		}
	}
	return false
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "tokf",
		Short: "Compress command output before it reaches an LLM",
		Long: `tokf runs a command, matches it against a library of declarative filters and
prints a compact version of its output. Commands without a filter run unchanged.

Examples:
  tokf git status
  tokf run -v cargo test
  tokf apply git/status captured.txt
  tokf verify
  tokf gain --daily`,
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a.setup()
			return nil
		},
	}
	root.PersistentFlags().CountVarP(&a.verbose, "verbose", "v", "verbose diagnostics on stderr (repeatable)")

	root.AddCommand(
		a.runCmd(),
		a.applyCmd(),
		a.verifyCmd(),
		a.lsCmd(),
		a.whichCmd(),
		a.showCmd(),
		a.hashCmd(),
		a.gainCmd(),
		a.configCmd(),
		a.initCmd(),
	)
	return root
}

// setup loads the config and builds the logger. A broken config file falls
// back to the defaults.
func (a *app) setup() {
	a.log = newLogger(a.verbose, a.stderr)
	cfg, err := config.Load()
	if err != nil {
		a.log.Warn("config error, using defaults", zap.Error(err))
		cfg = config.DefaultConfig()
	}
	a.cfg = cfg
}

// newLogger maps the -v count to a level: warn, info, then debug.
func newLogger(verbose int, w io.Writer) *zap.Logger {
	level := zapcore.WarnLevel
	switch {
	case verbose >= 2:
		level = zapcore.DebugLevel
	case verbose == 1:
		level = zapcore.InfoLevel
	}
	enc := zap.NewDevelopmentEncoderConfig()
	enc.TimeKey = ""
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(enc), zapcore.AddSync(w), level)
	return zap.New(core).Named("tokf")
}

func (a *app) registry() (*filter.Registry, error) {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = ""
	}
	filters, err := filter.LoadAll(a.cfg.FilterDirs(cwd), a.log)
	if err != nil {
		return nil, fmt.Errorf("load filters: %w", err)
	}
	return filter.NewRegistry(filters), nil
}

// tracker opens the tracking database. Tracking problems never fail a
// command: they are logged and tracking is skipped.
func (a *app) tracker() *tracking.Tracker {
	if !a.cfg.Tracking.Enabled {
		return nil
	}
	t, err := tracking.NewTracker(a.cfg.Tracking.DBPath)
	if err != nil {
		a.log.Warn("tracking disabled", zap.Error(err))
		return nil
	}
	return t
}

// styled reports whether output to w should carry colors.
func (a *app) styled(w io.Writer) bool {
	return w == os.Stdout && display.IsTerminal()
}

// Version returns the current version string.
func Version() string {
	return version
}
