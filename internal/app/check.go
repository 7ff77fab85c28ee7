package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	chart "github.com/wcharczuk/go-chart/v2"

	"price-threshold-alerts/internal/service"
	"price-threshold-alerts/internal/threshold"
)

// Check evaluates every instrument once without sending notifications and
// prints the result table to out.
func (a *App) Check(ctx context.Context, out io.Writer, opts CheckOptions) error {
	runner := a.newRunner(nil)
	report, err := runner.RunOnce(ctx, a.Config.Groups, false)
	if err != nil {
		return err
	}

	if err := writeReportTable(out, report); err != nil {
		return err
	}

	if opts.PNGPath != "" {
		if err := writeSnapshotPNG(opts.PNGPath, report); err != nil {
			return err
		}
		a.Logger.Info().Str("path", opts.PNGPath).Msg("snapshot written")
	}
	return nil
}

func writeReportTable(out io.Writer, report service.Report) error {
	if len(report.Records) == 0 {
		_, err := fmt.Fprintln(out, "no instruments configured")
		return err
	}

	writer := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Group\tInstrument\tKind\tLower\tUpper\tValue\tStatus\tError")

	for _, rec := range report.Records {
		errMsg := ""
		if rec.FetchErr != nil {
			errMsg = sanitizeInline(rec.FetchErr.Error())
		}
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			rec.Group,
			rec.Instrument,
			rec.Kind,
			threshold.FormatValue(rec.Bounds.Lower),
			threshold.FormatValue(rec.Bounds.Upper),
			rec.Sample,
			rec.Classification,
			errMsg,
		)
	}

	if err := writer.Flush(); err != nil {
		return err
	}

	_, err := fmt.Fprintf(out, "\n%d evaluated, %d breaches, %d unavailable\n",
		report.Evaluated, len(report.Breaches()), report.Unavailable)
	return err
}

var hundred = decimal.NewFromInt(100)

// boundPosition maps value onto a percentage of its band: 0 is the lower
// bound and 100 the upper bound.
func boundPosition(rec service.Record) (float64, bool) {
	value, ok := rec.Sample.Value()
	if !ok {
		return 0, false
	}
	width := rec.Bounds.Upper.Sub(rec.Bounds.Lower)
	if width.IsZero() {
		switch rec.Classification {
		case threshold.BelowLower:
			return -100, true
		case threshold.AboveUpper:
			return 200, true
		default:
			return 50, true
		}
	}
	return value.Sub(rec.Bounds.Lower).Div(width).Mul(hundred).InexactFloat64(), true
}

func writeSnapshotPNG(path string, report service.Report) error {
	bars := lo.FilterMap(report.Records, func(rec service.Record, _ int) (chart.Value, bool) {
		pos, ok := boundPosition(rec)
		return chart.Value{Label: rec.Instrument, Value: pos}, ok
	})
	if len(bars) == 0 {
		return fmt.Errorf("no available values to chart")
	}

	minY := lo.Min(append(lo.Map(bars, func(v chart.Value, _ int) float64 { return v.Value }), -25))
	maxY := lo.Max(append(lo.Map(bars, func(v chart.Value, _ int) float64 { return v.Value }), 125))

	if err := ensureDir(path); err != nil {
		return err
	}

	graph := chart.BarChart{
		Title:    "Position within bounds (%)",
		Width:    1280,
		Height:   720,
		BarWidth: 40,
		Background: chart.Style{
			Padding: chart.Box{Top: 40},
		},
		YAxis: chart.YAxis{
			Range: &chart.ContinuousRange{Min: minY, Max: maxY},
			ValueFormatter: func(v interface{}) string {
				return chart.FloatValueFormatterWithFormat(v, "%.0f")
			},
		},
		Bars: bars,
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}
