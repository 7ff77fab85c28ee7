package service

import (
	"time"

	"github.com/samber/lo"

	"price-threshold-alerts/internal/threshold"
)

// Outcome is the terminal state of one instrument within a run.
type Outcome int

const (
	// OutcomeSkipped means no notification was attempted.
	OutcomeSkipped Outcome = iota
	// OutcomeNotified means the notifier accepted the alert.
	OutcomeNotified
	// OutcomeNotifyFailed means the notifier returned an error.
	OutcomeNotifyFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNotified:
		return "notified"
	case OutcomeNotifyFailed:
		return "notify_failed"
	default:
		return "skipped"
	}
}

// Record is the per-instrument result of a run.
type Record struct {
	Group          string
	Instrument     string
	Kind           threshold.Kind
	Bounds         threshold.Bounds
	Sample         threshold.Sample
	Classification threshold.Classification
	Decision       threshold.Decision
	Outcome        Outcome
	FetchErr       error
	NotifyErr      error
	// ChannelErrs lists channels that failed while another one delivered.
	ChannelErrs []error
}

// Notified reports whether an alert was delivered for the record.
func (r Record) Notified() bool {
	return r.Outcome == OutcomeNotified
}

// Report is the ordered result of one pass over every configured instrument.
type Report struct {
	RunID        string
	StartedAt    time.Time
	FinishedAt   time.Time
	Records      []Record
	Evaluated    int
	Notified     int
	Unavailable  int
	NotifyFailed int
	// PartialDeliveries counts notified records with at least one failed channel.
	PartialDeliveries int
}

func (r *Report) add(rec Record) {
	r.Records = append(r.Records, rec)
	r.Evaluated++
	switch {
	case rec.Classification == threshold.ClassUnavailable:
		r.Unavailable++
	case rec.Outcome == OutcomeNotified:
		r.Notified++
		if len(rec.ChannelErrs) > 0 {
			r.PartialDeliveries++
		}
	case rec.Outcome == OutcomeNotifyFailed:
		r.NotifyFailed++
	}
}

// Breaches returns the records whose value crossed a bound.
func (r Report) Breaches() []Record {
	return lo.Filter(r.Records, func(rec Record, _ int) bool {
		return rec.Classification.Breach()
	})
}

// Duration is the wall time of the run.
func (r Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
