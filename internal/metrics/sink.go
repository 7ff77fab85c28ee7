package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"price-threshold-alerts/internal/service"
	"price-threshold-alerts/internal/threshold"
)

// Sink records run diagnostics as Prometheus metrics.
type Sink struct{}

// Instrument counts one evaluated instrument.
func (Sink) Instrument(rec service.Record) {
	InstrumentsEvaluatedTotal.WithLabelValues(rec.Kind.String(), rec.Classification.String()).Inc()
	if rec.Classification == threshold.ClassUnavailable {
		FetchFailuresTotal.WithLabelValues(rec.Kind.String()).Inc()
	}
	if rec.Outcome != service.OutcomeSkipped {
		NotificationsTotal.WithLabelValues(rec.Outcome.String()).Inc()
	}
}

// Summary records run totals.
func (Sink) Summary(report service.Report) {
	RunsTotal.Inc()
	RunDuration.Observe(report.Duration().Seconds())
	LastRunTimestamp.Set(float64(report.FinishedAt.Unix()))
}

var _ service.DiagnosticSink = Sink{}

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, logger zerolog.Logger) error {
	log := logger.With().Str("component", "metrics").Logger()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("metrics listener started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info().Msg("metrics listener stopped")
	return nil
}
