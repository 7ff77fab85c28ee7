package alerting

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// Notification carries a composed alert.
type Notification struct {
	Instrument     string
	Kind           string
	Classification string
	Subject        string
	Body           string
}

// Notifier delivers notifications over one channel.
type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}

// Channel names accepted in configuration.
const (
	ChannelEmail    = "email"
	ChannelTelegram = "telegram"
)

// Named pairs a notifier with its channel name.
type Named struct {
	Channel  string
	Notifier Notifier
}

// Multi fans a notification out to several channels. Delivery counts as
// successful when at least one channel accepted it.
type Multi struct {
	targets []Named
	logger  zerolog.Logger
}

// NewMulti constructs a fan-out notifier.
func NewMulti(logger zerolog.Logger, targets ...Named) *Multi {
	return &Multi{
		targets: targets,
		logger:  logger.With().Str("component", "alert_multi").Logger(),
	}
}

// Channels lists the configured channel names.
func (m *Multi) Channels() []string {
	names := make([]string, 0, len(m.targets))
	for _, t := range m.targets {
		names = append(names, t.Channel)
	}
	return names
}

// PartialError reports channels that failed while at least one other
// channel delivered the notification.
type PartialError struct {
	Failed []error
}

func (e *PartialError) Error() string {
	return fmt.Sprintf("delivered with %d failed channel(s): %v", len(e.Failed), errors.Join(e.Failed...))
}

func (e *PartialError) Unwrap() []error {
	return e.Failed
}

// Delivered reports whether err still means the notification went out,
// either cleanly or through a subset of channels.
func Delivered(err error) bool {
	var partial *PartialError
	return err == nil || errors.As(err, &partial)
}

// Notify delivers to every channel. It joins the failures when every channel
// failed and returns a *PartialError when only some did.
func (m *Multi) Notify(ctx context.Context, note Notification) error {
	if len(m.targets) == 0 {
		return errors.New("no notification channel configured")
	}

	var errs []error
	for _, t := range m.targets {
		if err := t.Notifier.Notify(ctx, note); err != nil {
			m.logger.Error().Err(err).Str("channel", t.Channel).Str("instrument", note.Instrument).Msg("channel delivery failed")
			errs = append(errs, fmt.Errorf("%s: %w", t.Channel, err))
		}
	}

	switch {
	case len(errs) == 0:
		return nil
	case len(errs) == len(m.targets):
		return errors.Join(errs...)
	default:
		return &PartialError{Failed: errs}
	}
}

func renderText(note Notification) string {
	builder := strings.Builder{}
	builder.WriteString(note.Subject)
	builder.WriteString("\n\n")
	builder.WriteString(note.Body)
	return builder.String()
}

var _ Notifier = (*Multi)(nil)
