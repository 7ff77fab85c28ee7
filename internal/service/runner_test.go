package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"price-threshold-alerts/internal/alerting"
	"price-threshold-alerts/internal/config"
	"price-threshold-alerts/internal/source"
	"price-threshold-alerts/internal/threshold"
)

type fakeSource struct {
	values map[string]float64
	errs   map[string]error
	calls  []string
}

func (f *fakeSource) Fetch(ctx context.Context, instrument string) (decimal.Decimal, error) {
	f.calls = append(f.calls, instrument)
	if err, ok := f.errs[instrument]; ok {
		return decimal.Zero, err
	}
	v, ok := f.values[instrument]
	if !ok {
		return decimal.Zero, source.ErrUnavailable
	}
	return decimal.NewFromFloat(v), nil
}

type fakeNotifier struct {
	sent []alerting.Notification
	fail map[string]bool
}

func (f *fakeNotifier) Notify(ctx context.Context, note alerting.Notification) error {
	if f.fail[note.Instrument] {
		return errors.New("smtp down")
	}
	f.sent = append(f.sent, note)
	return nil
}

type recordingSink struct {
	records   []Record
	summaries []Report
}

func (s *recordingSink) Instrument(rec Record) { s.records = append(s.records, rec) }
func (s *recordingSink) Summary(r Report)      { s.summaries = append(s.summaries, r) }

func member(instrument string, a, b float64) threshold.Member {
	return threshold.Member{Instrument: instrument, Bounds: threshold.NewBoundsFromFloat(a, b)}
}

func newTestRunner(src source.Source, n alerting.Notifier, sink DiagnosticSink) *Runner {
	r := NewRunner(map[threshold.Kind]source.Source{threshold.FloorPrice: src}, n, sink)
	r.newID = func() string { return "run-1" }
	fixed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return fixed }
	return r
}

func TestRunOnceWithinAndAbove(t *testing.T) {
	src := &fakeSource{values: map[string]float64{"x": 3.0, "y": 7.5}}
	n := &fakeNotifier{}
	sink := &recordingSink{}
	groups := []threshold.Group{{
		Name:    "nft_collections",
		Kind:    threshold.FloorPrice,
		Members: []threshold.Member{member("x", 1, 5), member("y", 1, 5)},
	}}

	report, err := newTestRunner(src, n, sink).RunOnce(context.Background(), groups, true)
	require.NoError(t, err)
	require.Len(t, report.Records, 2)

	assert.Equal(t, threshold.WithinBounds, report.Records[0].Classification)
	assert.Equal(t, OutcomeSkipped, report.Records[0].Outcome)

	above := report.Records[1]
	assert.Equal(t, threshold.AboveUpper, above.Classification)
	assert.True(t, above.Notified())

	require.Len(t, n.sent, 1)
	assert.Equal(t, "FP ABOVE THRESHOLD ON Y", n.sent[0].Subject)
	assert.Contains(t, n.sent[0].Body, "7.5")
	assert.Contains(t, n.sent[0].Body, "5.0")
	assert.Equal(t, "above_upper", n.sent[0].Classification)

	assert.Equal(t, "run-1", report.RunID)
	assert.Equal(t, 2, report.Evaluated)
	assert.Equal(t, 1, report.Notified)
	assert.Len(t, sink.records, 2)
	require.Len(t, sink.summaries, 1)
	assert.Equal(t, 2, sink.summaries[0].Evaluated)
}

func TestRunOnceFetchFailureContinues(t *testing.T) {
	src := &fakeSource{
		values: map[string]float64{"x": 9, "z": 0.5},
		errs:   map[string]error{"y": errors.New("connection refused")},
	}
	n := &fakeNotifier{}
	groups := []threshold.Group{{
		Name:    "g",
		Kind:    threshold.FloorPrice,
		Members: []threshold.Member{member("x", 1, 5), member("y", 1, 5), member("z", 1, 5)},
	}}

	report, err := newTestRunner(src, n, nil).RunOnce(context.Background(), groups, true)
	require.NoError(t, err)
	require.Len(t, report.Records, 3)

	assert.Equal(t, []string{"x", "y", "z"}, src.calls)
	assert.Equal(t, threshold.ClassUnavailable, report.Records[1].Classification)
	assert.Error(t, report.Records[1].FetchErr)
	assert.False(t, report.Records[1].Decision.ShouldSend)
	assert.Equal(t, 1, report.Unavailable)
	assert.Len(t, n.sent, 2)
}

func TestRunOnceNegativeSentinelNeverAlerts(t *testing.T) {
	src := &fakeSource{values: map[string]float64{"x": -1}}
	n := &fakeNotifier{}
	groups := []threshold.Group{{Name: "g", Kind: threshold.FloorPrice, Members: []threshold.Member{member("x", 1, 5)}}}

	report, err := newTestRunner(src, n, nil).RunOnce(context.Background(), groups, true)
	require.NoError(t, err)
	rec := report.Records[0]
	assert.Equal(t, threshold.ClassUnavailable, rec.Classification)
	assert.ErrorIs(t, rec.FetchErr, source.ErrUnavailable)
	assert.Empty(t, n.sent)
}

func TestRunOnceNotifyFailureDoesNotStopRun(t *testing.T) {
	src := &fakeSource{values: map[string]float64{"a": 10, "b": 10}}
	n := &fakeNotifier{fail: map[string]bool{"a": true}}
	groups := []threshold.Group{{Name: "g", Kind: threshold.FloorPrice, Members: []threshold.Member{member("a", 1, 5), member("b", 1, 5)}}}

	report, err := newTestRunner(src, n, nil).RunOnce(context.Background(), groups, true)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNotifyFailed, report.Records[0].Outcome)
	assert.Error(t, report.Records[0].NotifyErr)
	assert.Equal(t, OutcomeNotified, report.Records[1].Outcome)
	assert.Equal(t, 1, report.NotifyFailed)
	assert.Equal(t, 1, report.Notified)
}

func TestRunOnceDisabledSendsNothing(t *testing.T) {
	src := &fakeSource{values: map[string]float64{"a": 0.1, "b": 10}}
	n := &fakeNotifier{}
	groups := []threshold.Group{{Name: "g", Kind: threshold.FloorPrice, Members: []threshold.Member{member("a", 1, 5), member("b", 1, 5)}}}

	report, err := newTestRunner(src, n, nil).RunOnce(context.Background(), groups, false)
	require.NoError(t, err)
	assert.Empty(t, n.sent)
	assert.Len(t, report.Breaches(), 2)
	for _, rec := range report.Records {
		assert.Equal(t, OutcomeSkipped, rec.Outcome)
		assert.NotEmpty(t, rec.Decision.Subject)
	}
}

func TestRunOnceMissingNotifier(t *testing.T) {
	src := &fakeSource{values: map[string]float64{"a": 10}}
	groups := []threshold.Group{{Name: "g", Kind: threshold.FloorPrice, Members: []threshold.Member{member("a", 1, 5)}}}

	report, err := newTestRunner(src, nil, nil).RunOnce(context.Background(), groups, true)
	require.NoError(t, err)
	assert.ErrorIs(t, report.Records[0].NotifyErr, ErrNoNotifier)
}

func TestRunOncePreservesConfigOrderAcrossGroups(t *testing.T) {
	floor := &fakeSource{values: map[string]float64{"punks": 40, "apes": 12}}
	spot := &fakeSource{values: map[string]float64{"BTC": 50000}}
	r := NewRunner(map[threshold.Kind]source.Source{
		threshold.FloorPrice: floor,
		threshold.SpotPrice:  spot,
	}, &fakeNotifier{}, nil)

	groups := []threshold.Group{
		{Name: "crypto_currency", Kind: threshold.SpotPrice, Members: []threshold.Member{member("BTC", 20000, 60000)}},
		{Name: "nft_collections", Kind: threshold.FloorPrice, Members: []threshold.Member{member("punks", 30, 50), member("apes", 10, 20)}},
	}

	report, err := r.RunOnce(context.Background(), groups, true)
	require.NoError(t, err)
	got := make([]string, 0, len(report.Records))
	for _, rec := range report.Records {
		got = append(got, rec.Group+"/"+rec.Instrument)
	}
	assert.Equal(t, []string{"crypto_currency/BTC", "nft_collections/punks", "nft_collections/apes"}, got)
}

func TestRunOnceEmptyGroups(t *testing.T) {
	report, err := newTestRunner(&fakeSource{}, &fakeNotifier{}, nil).RunOnce(context.Background(), nil, true)
	require.NoError(t, err)
	assert.Empty(t, report.Records)
	assert.Zero(t, report.Evaluated)
}

func TestRunOnceConfigurationErrors(t *testing.T) {
	src := &fakeSource{values: map[string]float64{"a": 1}}
	cases := map[string]threshold.Group{
		"missing source": {Name: "tokens", Kind: threshold.SpotPrice, Members: []threshold.Member{member("a", 1, 5)}},
		"unknown kind":   {Name: "odd", Kind: threshold.Kind(42), Members: []threshold.Member{member("a", 1, 5)}},
	}
	for name, bad := range cases {
		t.Run(name, func(t *testing.T) {
			groups := []threshold.Group{
				{Name: "g", Kind: threshold.FloorPrice, Members: []threshold.Member{member("a", 1, 5)}},
				bad,
			}
			_, err := newTestRunner(src, &fakeNotifier{}, nil).RunOnce(context.Background(), groups, true)
			require.Error(t, err)
			assert.ErrorIs(t, err, config.ErrConfiguration)
			assert.True(t, strings.Contains(err.Error(), bad.Name))
		})
	}
	assert.Empty(t, src.calls, "validation must happen before any fetch")
}

type partialNotifier struct {
	sent []alerting.Notification
}

func (p *partialNotifier) Notify(ctx context.Context, note alerting.Notification) error {
	p.sent = append(p.sent, note)
	return &alerting.PartialError{Failed: []error{errors.New("email: auth failed")}}
}

func TestRunOncePartialDeliveryKeepsChannelErrors(t *testing.T) {
	src := &fakeSource{values: map[string]float64{"a": 10}}
	n := &partialNotifier{}
	groups := []threshold.Group{{Name: "g", Kind: threshold.FloorPrice, Members: []threshold.Member{member("a", 1, 5)}}}

	report, err := newTestRunner(src, n, nil).RunOnce(context.Background(), groups, true)
	require.NoError(t, err)

	rec := report.Records[0]
	assert.Equal(t, OutcomeNotified, rec.Outcome)
	assert.NoError(t, rec.NotifyErr)
	require.Len(t, rec.ChannelErrs, 1)
	assert.ErrorContains(t, rec.ChannelErrs[0], "auth failed")
	assert.Equal(t, 1, report.Notified)
	assert.Equal(t, 1, report.PartialDeliveries)
}

func TestRunOnceEmptyGroupNeedsNoSource(t *testing.T) {
	src := &fakeSource{values: map[string]float64{"a": 3}}
	groups := []threshold.Group{
		{Name: "crypto_currency", Kind: threshold.SpotPrice},
		{Name: "nft_collections", Kind: threshold.FloorPrice, Members: []threshold.Member{member("a", 1, 5)}},
	}

	report, err := newTestRunner(src, &fakeNotifier{}, nil).RunOnce(context.Background(), groups, true)
	require.NoError(t, err)
	assert.Len(t, report.Records, 1)
}
