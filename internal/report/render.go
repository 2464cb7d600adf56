package report

import (
	"errors"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"gopkg.in/yaml.v3"
)

// ErrUnknownFormat is returned by Render for any format other than
// "text" and "yaml".
var ErrUnknownFormat = errors.New("report: unknown render format")

// Render writes s to w in the requested format ("text" or "yaml";
// "" defaults to "text").
func Render(w io.Writer, s Summary, format string) error {
	switch format {
	case "", "text":
		return renderText(w, s)
	case "yaml":
		return renderYAML(w, s)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

func renderYAML(w io.Writer, s Summary) error {
	enc := yaml.NewEncoder(w)
	defer enc.Close()

	err := enc.Encode(s)
	if err != nil {
		return fmt.Errorf("render yaml summary: %w", err)
	}

	return nil
}

func renderText(w io.Writer, s Summary) error {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	if s.RunID != "" {
		fmt.Fprintf(w, "run: %s\n", s.RunID)
	}

	fmt.Fprintf(w, "files: %d  errors: %s  warnings: %s  peak rss: %s\n",
		s.TotalFiles, red(s.TotalErrors), yellow(s.TotalWarnings), humanize.Bytes(uint64(max64(s.PeakRSSBytes, 0))))

	if len(s.Completed) > 0 {
		fmt.Fprintln(w, green("completed batches:"))
		renderCompletedTable(w, s.Completed)
	}

	if len(s.Failed) > 0 {
		fmt.Fprintln(w, red("failed batches:"))
		renderFailedTable(w, s.Failed)
	}

	return nil
}

func renderCompletedTable(w io.Writer, results []BatchResult) {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(w)
	tbl.SetStyle(table.StyleLight)
	tbl.AppendHeader(table.Row{"Batch", "Files", "Errors", "Warnings", "Peak RSS", "Duration"})

	for _, r := range results {
		tbl.AppendRow(table.Row{
			r.BatchID,
			len(r.Files),
			r.ErrorCount,
			r.WarningCount,
			humanize.Bytes(uint64(max64(r.PeakRSSBytes, 0))),
			r.Duration.Round(durationRoundTo),
		})
	}

	tbl.Render()
}

func renderFailedTable(w io.Writer, failed []FailureRecord) {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(w)
	tbl.SetStyle(table.StyleLight)
	tbl.AppendHeader(table.Row{"Batch", "Files", "Class", "Reason", "Depth"})

	for _, f := range failed {
		tbl.AppendRow(table.Row{f.BatchID, len(f.Files), string(f.Class), f.Reason, f.Depth})
	}

	tbl.Render()
}

const durationRoundTo = 1_000_000 // 1ms, in time.Duration nanosecond units

func max64(a, b int64) int64 {
	if a > b {
		return a
	}

	return b
}
