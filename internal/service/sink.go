package service

import (
	"github.com/rs/zerolog"

	"price-threshold-alerts/internal/threshold"
)

// DiagnosticSink receives one entry per evaluated instrument and a summary
// per run.
type DiagnosticSink interface {
	Instrument(rec Record)
	Summary(report Report)
}

// LogSink writes diagnostics as structured log lines.
type LogSink struct {
	logger zerolog.Logger
}

// NewLogSink constructs a zerolog-backed sink.
func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger.With().Str("component", "diagnostics").Logger()}
}

// Instrument logs one line for rec.
func (s *LogSink) Instrument(rec Record) {
	var event *zerolog.Event
	var msg string
	switch {
	case rec.Classification == threshold.ClassUnavailable:
		event, msg = s.logger.Warn().Err(rec.FetchErr), "value could not be fetched"
	case rec.Outcome == OutcomeNotifyFailed:
		event, msg = s.logger.Error().Err(rec.NotifyErr), "notification failed"
	case rec.Outcome == OutcomeNotified && len(rec.ChannelErrs) > 0:
		event, msg = s.logger.Warn().Errs("channel_errors", rec.ChannelErrs), "notification sent, some channels failed"
	case rec.Outcome == OutcomeNotified:
		event, msg = s.logger.Info(), "notification sent"
	case rec.Classification.Breach():
		event, msg = s.logger.Info(), "threshold crossed, notifications disabled"
	default:
		event, msg = s.logger.Info(), "value within bounds"
	}

	event.Str("group", rec.Group).
		Str("instrument", rec.Instrument).
		Str("kind", rec.Kind.String()).
		Str("lower", threshold.FormatValue(rec.Bounds.Lower)).
		Str("upper", threshold.FormatValue(rec.Bounds.Upper)).
		Str("value", rec.Sample.String()).
		Str("classification", rec.Classification.String()).
		Str("outcome", rec.Outcome.String()).
		Msg(msg)
}

// Summary logs the run counters.
func (s *LogSink) Summary(report Report) {
	s.logger.Info().
		Str("run_id", report.RunID).
		Int("evaluated", report.Evaluated).
		Int("notified", report.Notified).
		Int("unavailable", report.Unavailable).
		Int("notify_failed", report.NotifyFailed).
		Int("partial_deliveries", report.PartialDeliveries).
		Dur("duration", report.Duration()).
		Msg("run complete")
}

// Sinks fans diagnostics out to several sinks in order.
type Sinks []DiagnosticSink

// Instrument forwards rec to every sink.
func (s Sinks) Instrument(rec Record) {
	for _, sink := range s {
		sink.Instrument(rec)
	}
}

// Summary forwards report to every sink.
func (s Sinks) Summary(report Report) {
	for _, sink := range s {
		sink.Summary(report)
	}
}

type nopSink struct{}

func (nopSink) Instrument(Record) {}
func (nopSink) Summary(Report)    {}

var (
	_ DiagnosticSink = (*LogSink)(nil)
	_ DiagnosticSink = Sinks(nil)
)
