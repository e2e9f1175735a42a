package delivery

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wneessen/go-mail"

	"gamechar/internal/domain"
	"gamechar/internal/infra"
)

// SMTPOptions configures an SMTP relay reached over implicit TLS.
type SMTPOptions struct {
	Host     string
	Port     int
	Username string
	Password string
	FromName string
	FromAddr string
	Timeout  time.Duration
	Logger   *infra.Logger
}

// SMTPMailer sends portraits through an SMTP relay with PLAIN auth.
type SMTPMailer struct {
	opts   SMTPOptions
	logger *infra.Logger
	send   func(ctx context.Context, msg *mail.Msg) error
}

func NewSMTPMailer(opts SMTPOptions) (*SMTPMailer, error) {
	if strings.TrimSpace(opts.Host) == "" || opts.Username == "" || opts.Password == "" {
		return nil, errors.New("smtp: host, username and password are required")
	}
	if opts.Port <= 0 {
		opts.Port = 465
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.FromAddr == "" {
		opts.FromAddr = opts.Username
	}
	logger := opts.Logger
	if logger == nil {
		l := infra.DiscardLogger()
		logger = &l
	}
	m := &SMTPMailer{opts: opts, logger: logger}
	m.send = m.dialAndSend
	return m, nil
}

// Send mails the portrait to one recipient.
func (m *SMTPMailer) Send(ctx context.Context, to string, image []byte, style domain.Style) error {
	msg, err := m.message(to, image, style)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrDelivery, err)
	}
	if err := m.send(ctx, msg); err != nil {
		return fmt.Errorf("%w: smtp: %w", domain.ErrDelivery, err)
	}
	m.logger.Info().Str("style", string(style)).Msg("smtp: portrait mailed")
	return nil
}

func (m *SMTPMailer) message(to string, image []byte, style domain.Style) (*mail.Msg, error) {
	if len(image) == 0 {
		return nil, domain.ErrEmptyImage
	}
	rcpt, err := ParseRecipient(to)
	if err != nil {
		return nil, err
	}
	msg := mail.NewMsg()
	if err := msg.FromFormat(m.opts.FromName, m.opts.FromAddr); err != nil {
		return nil, fmt.Errorf("smtp: from: %w", err)
	}
	if err := msg.To(rcpt); err != nil {
		return nil, fmt.Errorf("smtp: to: %w", err)
	}
	subject, body := Compose(style)
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)
	if err := msg.AttachReader(AttachmentName(style), bytes.NewReader(image), mail.WithFileContentType("image/png")); err != nil {
		return nil, fmt.Errorf("smtp: attach: %w", err)
	}
	return msg, nil
}

func (m *SMTPMailer) dialAndSend(ctx context.Context, msg *mail.Msg) error {
	client, err := mail.NewClient(m.opts.Host,
		mail.WithPort(m.opts.Port),
		mail.WithSSL(),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(m.opts.Username),
		mail.WithPassword(m.opts.Password),
		mail.WithTimeout(m.opts.Timeout),
	)
	if err != nil {
		return err
	}
	return client.DialAndSendWithContext(ctx, msg)
}

var _ Emailer = (*SMTPMailer)(nil)
