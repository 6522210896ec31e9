package display

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/mpecan/tokf-sub001/internal/tracking"
	"github.com/mpecan/tokf-sub001/internal/utils"
)

// GainOptions selects the token savings report.
type GainOptions struct {
	Days    int
	Daily   bool
	Top     int
	History int
	JSON    bool
	CSV     bool
	// Styled enables colors and bars.
	Styled bool
}

func (o GainOptions) withDefaults() GainOptions {
	if o.Days <= 0 {
		o.Days = 7
	}
	if o.Top <= 0 {
		o.Top = 10
	}
	return o
}

// Gain writes the token savings report.
func Gain(w io.Writer, tracker *tracking.Tracker, opts GainOptions) error {
	if tracker == nil {
		return errors.New("tracking is disabled")
	}
	opts = opts.withDefaults()

	summary, err := tracker.Summary()
	if err != nil {
		return err
	}

	switch {
	case opts.JSON:
		return exportJSON(w, tracker, summary, opts)
	case opts.CSV:
		return exportCSV(w, tracker, opts.Days)
	case opts.History > 0:
		return writeHistory(w, tracker, opts)
	}

	writeSummary(w, summary, opts.Styled)
	if opts.Daily {
		return writeDaily(w, tracker, opts)
	}
	writeSparkline(w, tracker, opts.Styled)
	return writeByFilter(w, tracker, opts)
}

func writeSummary(w io.Writer, s tracking.Totals, styled bool) {
	title := "  tokf token savings"
	sep := "  " + FormatSeparator(30)
	if styled {
		title, sep = HeaderStyle.Render(title), DimStyle.Render(sep)
	}
	fmt.Fprintf(w, "\n%s\n%s\n\n", title, sep)

	kpi := func(label, value string) {
		if styled {
			fmt.Fprintf(w, "  %s  %s\n", DimStyle.Render(fmt.Sprintf("%-20s", label)), StatStyle.Render(value))
			return
		}
		fmt.Fprintf(w, "  %-20s  %s\n", label, value)
	}
	kpi("Commands filtered", strconv.Itoa(s.Commands))
	kpi("Tokens in", utils.FormatTokens(s.InputTokens))
	kpi("Tokens out", utils.FormatTokens(s.OutputTokens))
	kpi("Tokens saved", utils.FormatTokens(s.Saved()))
	kpi("Total time", fmt.Sprintf("%.1fs", float64(s.ExecTimeMs)/1000))

	pct := min(max(s.SavingsPct(), 0), 100)
	fmt.Fprintf(w, "\n  %s %s\n\n", Bar(int(pct), 100, 20), ColorSavings(s.SavingsPct(), styled))
}

func writeByFilter(w io.Writer, tracker *tracking.Tracker, opts GainOptions) error {
	stats, err := tracker.ByFilter(opts.Top)
	if err != nil {
		return err
	}
	if len(stats) == 0 {
		return nil
	}

	maxSaved := 0
	for _, s := range stats {
		maxSaved = max(maxSaved, s.Saved())
	}

	fmt.Fprintf(w, "  Top filters by tokens saved\n\n")
	rows := make([][]string, 0, len(stats))
	for _, s := range stats {
		name := s.Filter
		if name == "" {
			name = "(none)"
		}
		rows = append(rows, []string{
			utils.Truncate(name, 25),
			strconv.Itoa(s.Commands),
			utils.FormatTokens(s.Saved()),
			ColorSavings(s.SavingsPct(), opts.Styled),
			Bar(s.Saved(), maxSaved, 12),
		})
	}
	fmt.Fprint(w, FormatTable([]string{"Filter", "Runs", "Saved", "Savings", "Impact"}, rows))
	fmt.Fprintln(w)
	return nil
}

func writeSparkline(w io.Writer, tracker *tracking.Tracker, styled bool) {
	daily, err := tracker.Daily(14)
	if err != nil || len(daily) < 2 {
		return
	}
	// Daily is newest first.
	values := make([]float64, len(daily))
	for i, d := range daily {
		values[len(daily)-1-i] = d.SavingsPct()
	}
	spark := FormatSparkline(values)
	if styled {
		spark = SuccessStyle.Render(spark)
	}
	fmt.Fprintf(w, "  14-day trend  %s\n\n", spark)
}

func writeDaily(w io.Writer, tracker *tracking.Tracker, opts GainOptions) error {
	daily, err := tracker.Daily(opts.Days)
	if err != nil {
		return err
	}
	rows := make([][]string, 0, len(daily))
	for _, d := range daily {
		rows = append(rows, []string{
			d.Day,
			strconv.Itoa(d.Commands),
			utils.FormatTokens(d.InputTokens),
			utils.FormatTokens(d.OutputTokens),
			utils.FormatTokens(d.Saved()),
			ColorSavings(d.SavingsPct(), opts.Styled),
		})
	}
	fmt.Fprint(w, FormatTable([]string{"Date", "Cmds", "Input", "Output", "Saved", "Savings"}, rows))
	return nil
}

func writeHistory(w io.Writer, tracker *tracking.Tracker, opts GainOptions) error {
	events, err := tracker.Recent(opts.History)
	if err != nil {
		return err
	}
	rows := make([][]string, 0, len(events))
	for _, e := range events {
		t := tracking.Totals{InputTokens: e.InputTokens, OutputTokens: e.OutputTokens}
		rows = append(rows, []string{
			utils.Truncate(e.Command, 30),
			e.FilterName,
			utils.FormatTokens(e.InputTokens),
			utils.FormatTokens(e.OutputTokens),
			ColorSavings(t.SavingsPct(), opts.Styled),
			strconv.Itoa(e.ExitCode),
			fmt.Sprintf("%dms", e.ExecTimeMs),
		})
	}
	fmt.Fprint(w, FormatTable([]string{"Command", "Filter", "Input", "Output", "Saved", "Exit", "Time"}, rows))
	return nil
}

func exportJSON(w io.Writer, tracker *tracking.Tracker, summary tracking.Totals, opts GainOptions) error {
	daily, err := tracker.Daily(opts.Days)
	if err != nil {
		return err
	}
	byFilter, err := tracker.ByFilter(opts.Top)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		Summary  tracking.Totals         `json:"summary"`
		Saved    int                     `json:"saved_tokens"`
		Savings  float64                 `json:"savings_pct"`
		Daily    []tracking.DayStats     `json:"daily"`
		ByFilter []tracking.FilterStats `json:"by_filter"`
	}{summary, summary.Saved(), summary.SavingsPct(), daily, byFilter})
}

func exportCSV(w io.Writer, tracker *tracking.Tracker, days int) error {
	daily, err := tracker.Daily(days)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"date", "commands", "input_tokens", "output_tokens", "saved_tokens", "savings_pct"})
	for _, d := range daily {
		_ = cw.Write([]string{
			d.Day,
			strconv.Itoa(d.Commands),
			strconv.Itoa(d.InputTokens),
			strconv.Itoa(d.OutputTokens),
			strconv.Itoa(d.Saved()),
			fmt.Sprintf("%.1f", d.SavingsPct()),
		})
	}
	cw.Flush()
	return cw.Error()
}
