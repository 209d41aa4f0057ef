package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/kensa-dev/kensa/internal/csvio"
	"github.com/kensa-dev/kensa/internal/models"
	"github.com/kensa-dev/kensa/internal/projectconfig"
	"github.com/kensa-dev/kensa/internal/stats"
)

func newStatsCommand() *cobra.Command {
	var field string

	cmd := &cobra.Command{
		Use:   "stats <dataset.csv>",
		Short: "Print review statistics for a CSV dataset",
		Long: `Print review statistics for a CSV dataset without starting the server.

Shows the review completion, the human pass rate with a bootstrap confidence
interval, the distribution of human judgments, and the model-vs-human
confusion matrix. Use --field to break pass/fail counts down by an input
field; without it the discoverable grouping fields are listed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return statsE(cmd, args[0], field)
		},
	}

	cmd.Flags().StringVar(&field, "field", "", "Input field to group outcomes by")

	return cmd
}

func statsE(cmd *cobra.Command, path, field string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	records, err := csvio.Parse(f)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("resolving working directory: %w", err)
	}
	cfg, err := projectconfig.Load(cwd)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Dataset: %s (%d records)\n\n", path, len(records)) //nolint:errcheck

	printOverview(out, records, cfg.Stats.ConfidenceLevel)
	printDistribution(out, records)
	printConfusion(out, records)

	if field != "" {
		return printGrouping(out, records, field)
	}
	printDiscoverableFields(out, records)
	return nil
}

func printOverview(w io.Writer, records []*models.EvalRecord, confidence float64) {
	o := stats.ComputeOverview(records)
	ci := stats.PassRateCI(records, confidence)

	fmt.Fprintln(w, "Overview") //nolint:errcheck
	rows := [][2]string{
		{"Reviewed", fmt.Sprintf("%d/%d (%.1f%%)", o.Reviewed, o.Total, o.CompletionPct)},
		{"Pass rate", fmt.Sprintf("%.1f%%", o.PassRate)},
		{"Agreement", fmt.Sprintf("%.1f%%", o.AgreementRate)},
		{"Pass rate CI", fmt.Sprintf("%.0f%%: [%.3f, %.3f]", ci.ConfidenceLevel*100, ci.Lower, ci.Upper)},
	}
	printTable(w, rows)
}

func printDistribution(w io.Writer, records []*models.EvalRecord) {
	d := stats.ComputeOutcomeDistribution(records)

	fmt.Fprintln(w, "Human outcomes") //nolint:errcheck
	printTable(w, [][2]string{
		{"PASS", fmt.Sprintf("%d", d.Pass)},
		{"FAIL", fmt.Sprintf("%d", d.Fail)},
		{"Unlabeled", fmt.Sprintf("%d", d.Unlabeled)},
	})
}

func printConfusion(w io.Writer, records []*models.EvalRecord) {
	m := stats.ComputeConfusionMatrix(records)

	fmt.Fprintf(w, "Model vs human (%d records with both outcomes)\n", m.Total) //nolint:errcheck
	printTable(w, [][2]string{
		{"", padRight("human PASS", 12) + "human FAIL"},
		{"model PASS", padRight(fmt.Sprintf("%d", m.ModelPassHumanPass), 12) + fmt.Sprintf("%d", m.ModelPassHumanFail)},
		{"model FAIL", padRight(fmt.Sprintf("%d", m.ModelFailHumanPass), 12) + fmt.Sprintf("%d", m.ModelFailHumanFail)},
	})
}

func printGrouping(w io.Writer, records []*models.EvalRecord, field string) error {
	carriers := 0
	for _, r := range records {
		if v, ok := r.Input[field]; ok && v != nil {
			carriers++
		}
	}
	if carriers == 0 {
		return fmt.Errorf("no records carry input field %q", field)
	}

	g := stats.ComputeFieldGrouping(records, field)

	fmt.Fprintf(w, "Outcomes by %s\n", stats.FormatFieldKey(field)) //nolint:errcheck
	width := len("Value")
	for _, grp := range g.Groups {
		if vw := runewidth.StringWidth(grp.Value); vw > width {
			width = vw
		}
	}
	fmt.Fprintf(w, "  %s  %s  %s  %s  %s\n", //nolint:errcheck
		padRight("Value", width), padRight("PASS", 6), padRight("FAIL", 6), padRight("Unlabeled", 10), "Total")
	for _, grp := range g.Groups {
		fmt.Fprintf(w, "  %s  %s  %s  %s  %d\n", //nolint:errcheck
			padRight(grp.Value, width),
			padRight(fmt.Sprintf("%d", grp.Pass), 6),
			padRight(fmt.Sprintf("%d", grp.Fail), 6),
			padRight(fmt.Sprintf("%d", grp.Unlabeled), 10),
			grp.Total)
	}
	fmt.Fprintln(w) //nolint:errcheck
	return nil
}

func printDiscoverableFields(w io.Writer, records []*models.EvalRecord) {
	fields := stats.DiscoverInputFields(records)
	if len(fields) == 0 {
		return
	}
	fmt.Fprintf(w, "Grouping fields (use --field): %s\n", strings.Join(fields, ", ")) //nolint:errcheck
}

func printTable(w io.Writer, rows [][2]string) {
	width := 0
	for _, row := range rows {
		if lw := runewidth.StringWidth(row[0]); lw > width {
			width = lw
		}
	}
	for _, row := range rows {
		fmt.Fprintf(w, "  %s  %s\n", padRight(row[0], width), row[1]) //nolint:errcheck
	}
	fmt.Fprintln(w) //nolint:errcheck
}

// padRight pads s with spaces so its terminal display width reaches width.
func padRight(s string, width int) string {
	sw := runewidth.StringWidth(s)
	if sw >= width {
		return s
	}
	return s + strings.Repeat(" ", width-sw)
}
