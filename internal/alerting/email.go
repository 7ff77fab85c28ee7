package alerting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/wneessen/go-mail"
)

// EmailOptions configure SMTP delivery.
type EmailOptions struct {
	Host     string
	Port     int
	Sender   string
	Receiver string
	Password string
	Timeout  time.Duration
}

type mailSender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// EmailNotifier sends plain-text mail through an authenticated STARTTLS relay.
type EmailNotifier struct {
	opts      EmailOptions
	newClient func(opts EmailOptions) (mailSender, error)
	logger    zerolog.Logger
}

// NewEmailNotifier constructs the email channel.
func NewEmailNotifier(opts EmailOptions, logger zerolog.Logger) *EmailNotifier {
	if opts.Host == "" {
		opts.Host = "smtp.gmail.com"
	}
	if opts.Port == 0 {
		opts.Port = 587
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	return &EmailNotifier{
		opts:      opts,
		newClient: dialSMTP,
		logger:    logger.With().Str("component", "alert_email").Logger(),
	}
}

func dialSMTP(opts EmailOptions) (mailSender, error) {
	return mail.NewClient(opts.Host,
		mail.WithPort(opts.Port),
		mail.WithTLSPolicy(mail.TLSMandatory),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(opts.Sender),
		mail.WithPassword(opts.Password),
		mail.WithTimeout(opts.Timeout),
	)
}

// Notify sends one message from the sender to the receiver.
func (n *EmailNotifier) Notify(ctx context.Context, note Notification) error {
	msg, err := n.message(note)
	if err != nil {
		return err
	}

	client, err := n.newClient(n.opts)
	if err != nil {
		return fmt.Errorf("create smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}

	n.logger.Info().Str("instrument", note.Instrument).
		Str("classification", note.Classification).
		Str("receiver", n.opts.Receiver).
		Msg("alert sent (email)")
	return nil
}

func (n *EmailNotifier) message(note Notification) (*mail.Msg, error) {
	if n.opts.Sender == "" || n.opts.Receiver == "" {
		return nil, errors.New("email sender and receiver required")
	}

	msg := mail.NewMsg(mail.WithEncoding(mail.NoEncoding))
	if err := msg.From(n.opts.Sender); err != nil {
		return nil, fmt.Errorf("set sender: %w", err)
	}
	if err := msg.To(n.opts.Receiver); err != nil {
		return nil, fmt.Errorf("set receiver: %w", err)
	}
	msg.Subject(note.Subject)
	msg.SetDate()
	msg.SetBodyString(mail.TypeTextPlain, note.Body)
	return msg, nil
}

var _ Notifier = (*EmailNotifier)(nil)
