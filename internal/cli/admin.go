package cli

import (
	"errors"
	"fmt"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"github.com/mpecan/tokf-sub001/internal/config"
	"github.com/mpecan/tokf-sub001/internal/display"
	"github.com/mpecan/tokf-sub001/internal/initcmd"
)

func (a *app) gainCmd() *cobra.Command {
	var opts display.GainOptions
	cmd := &cobra.Command{
		Use:   "gain",
		Short: "Show token savings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			t := a.tracker()
			if t == nil {
				return errors.New("no tracking data (tracking is disabled or unavailable)")
			}
			defer t.Close()
			opts.Styled = a.styled(a.stdout)
			return display.Gain(a.stdout, t, opts)
		},
	}
	f := cmd.Flags()
	f.BoolVar(&opts.Daily, "daily", false, "per-day breakdown")
	f.IntVar(&opts.Days, "days", 7, "days covered by --daily, --json and --csv")
	f.IntVar(&opts.Top, "top", 10, "number of filters in the ranking")
	f.IntVar(&opts.History, "history", 0, "show the last N runs")
	f.BoolVar(&opts.JSON, "json", false, "machine-readable JSON")
	f.BoolVar(&opts.CSV, "csv", false, "per-day CSV")
	return cmd
}

func (a *app) configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := toml.Marshal(a.cfg)
			if err != nil {
				return fmt.Errorf("encode config: %w", err)
			}
			fmt.Fprintf(a.stdout, "# %s\n", config.Path())
			_, err = a.stdout.Write(data)
			return err
		},
	}
}

func (a *app) initCmd() *cobra.Command {
	var uninstall bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Install the agent shell hook",
		Long: `Install a shell hook that routes agent commands through tokf, create the user
filter directory and write a default config file if none exists.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return initcmd.Run(initcmd.Options{Uninstall: uninstall, Out: a.stdout})
		},
	}
	cmd.Flags().BoolVar(&uninstall, "uninstall", false, "remove the hook")
	return cmd
}
