package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"price-threshold-alerts/internal/service"
	"price-threshold-alerts/internal/source"
	"price-threshold-alerts/internal/threshold"
)

// SimulateAlert feeds a fixed value for one configured instrument through the
// evaluator and the configured notification channels.
func (a *App) SimulateAlert(ctx context.Context, out io.Writer, opts SimulateOptions) error {
	notifier := a.newNotifier()
	if notifier == nil {
		return errors.New("alerting is not enabled or no channel is configured")
	}

	value, err := decimal.NewFromString(strings.TrimSpace(opts.Value))
	if err != nil {
		return fmt.Errorf("invalid --value %q: %w", opts.Value, err)
	}

	group, err := a.findMember(opts.Group, opts.Instrument)
	if err != nil {
		return err
	}

	runner := service.NewRunner(
		map[threshold.Kind]source.Source{group.Kind: staticSource{value: value}},
		notifier,
		service.NewLogSink(a.Logger),
	)
	report, err := runner.RunOnce(ctx, []threshold.Group{group}, true)
	if err != nil {
		return err
	}

	rec := report.Records[0]
	fmt.Fprintf(out, "%s %s: %s (%s)\n", rec.Instrument, rec.Sample, rec.Classification, rec.Outcome)
	if rec.Decision.Subject != "" {
		fmt.Fprintf(out, "%s\n%s\n", rec.Decision.Subject, rec.Decision.Body)
	}
	return rec.NotifyErr
}

// findMember narrows the configured groups down to a single member.
func (a *App) findMember(groupName, instrument string) (threshold.Group, error) {
	if instrument == "" {
		return threshold.Group{}, errors.New("--instrument is required")
	}

	for _, g := range a.Config.Groups {
		if groupName != "" && g.Name != groupName {
			continue
		}
		m, ok := lo.Find(g.Members, func(m threshold.Member) bool {
			return strings.EqualFold(m.Instrument, instrument)
		})
		if ok {
			return threshold.Group{Name: g.Name, Kind: g.Kind, Members: []threshold.Member{m}}, nil
		}
	}
	return threshold.Group{}, fmt.Errorf("instrument %q not found in configured groups", instrument)
}

type staticSource struct {
	value decimal.Decimal
}

func (s staticSource) Fetch(ctx context.Context, instrument string) (decimal.Decimal, error) {
	return s.value, nil
}

var _ source.Source = staticSource{}
