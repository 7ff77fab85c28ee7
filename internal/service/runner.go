package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"price-threshold-alerts/internal/alerting"
	"price-threshold-alerts/internal/config"
	"price-threshold-alerts/internal/source"
	"price-threshold-alerts/internal/threshold"
)

// ErrNoNotifier is recorded when an alert is due but no notifier is wired.
var ErrNoNotifier = errors.New("no notifier configured")

// Runner performs one sequential evaluation pass over configured groups.
type Runner struct {
	sources  map[threshold.Kind]source.Source
	notifier alerting.Notifier
	sink     DiagnosticSink
	now      func() time.Time
	newID    func() string
}

// NewRunner wires the price sources per kind, the notifier and the
// diagnostics sink. notifier and sink may be nil.
func NewRunner(sources map[threshold.Kind]source.Source, notifier alerting.Notifier, sink DiagnosticSink) *Runner {
	if sink == nil {
		sink = nopSink{}
	}
	return &Runner{
		sources:  sources,
		notifier: notifier,
		sink:     sink,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}
}

// Validate checks that every group has a known kind and a source for it.
// Groups without members need no source.
func (r *Runner) Validate(groups []threshold.Group) error {
	for _, g := range groups {
		if !g.Kind.Valid() {
			return fmt.Errorf("%w: group %s has unknown kind %s", config.ErrConfiguration, g.Name, g.Kind)
		}
		if len(g.Members) > 0 && r.sources[g.Kind] == nil {
			return fmt.Errorf("%w: group %s: no price source for kind %s", config.ErrConfiguration, g.Name, g.Kind)
		}
	}
	return nil
}

// RunOnce evaluates every member of every group in order. Fetch and notify
// failures are recorded per instrument; only a configuration defect returns
// an error, before anything is fetched.
func (r *Runner) RunOnce(ctx context.Context, groups []threshold.Group, notificationsEnabled bool) (Report, error) {
	report := Report{RunID: r.newID(), StartedAt: r.now()}
	if err := r.Validate(groups); err != nil {
		report.FinishedAt = r.now()
		return report, err
	}

	for _, g := range groups {
		src := r.sources[g.Kind]
		for _, m := range g.Members {
			rec := r.evaluate(ctx, src, g, m, notificationsEnabled)
			report.add(rec)
			r.sink.Instrument(rec)
		}
	}

	report.FinishedAt = r.now()
	r.sink.Summary(report)
	return report, nil
}

func (r *Runner) evaluate(ctx context.Context, src source.Source, g threshold.Group, m threshold.Member, enabled bool) Record {
	rec := Record{
		Group:      g.Name,
		Instrument: m.Instrument,
		Kind:       g.Kind,
		Bounds:     m.Bounds,
	}

	value, err := src.Fetch(ctx, m.Instrument)
	if err == nil && value.IsNegative() {
		err = fmt.Errorf("negative value %s: %w", value, source.ErrUnavailable)
	}
	rec.FetchErr = err
	rec.Sample = threshold.SampleFrom(value, err)
	rec.Classification, rec.Decision = threshold.Evaluate(m.Instrument, g.Kind, rec.Sample, m.Bounds, enabled)

	if !rec.Decision.ShouldSend {
		return rec
	}

	err = r.notify(ctx, rec)
	if !alerting.Delivered(err) {
		rec.Outcome = OutcomeNotifyFailed
		rec.NotifyErr = err
		return rec
	}
	var partial *alerting.PartialError
	if errors.As(err, &partial) {
		rec.ChannelErrs = partial.Failed
	}
	rec.Outcome = OutcomeNotified
	return rec
}

func (r *Runner) notify(ctx context.Context, rec Record) error {
	if r.notifier == nil {
		return ErrNoNotifier
	}
	return r.notifier.Notify(ctx, alerting.Notification{
		Instrument:     rec.Instrument,
		Kind:           rec.Kind.String(),
		Classification: rec.Classification.String(),
		Subject:        rec.Decision.Subject,
		Body:           rec.Decision.Body,
	})
}
