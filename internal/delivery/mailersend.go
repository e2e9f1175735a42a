package delivery

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/mailersend/mailersend-go"

	"gamechar/internal/domain"
	"gamechar/internal/infra"
)

// MailerSendOptions configures the MailerSend HTTP relay.
type MailerSendOptions struct {
	APIKey     string
	FromName   string
	FromAddr   string
	HTTPClient *http.Client
	Logger     *infra.Logger
}

// MailerSendMailer sends portraits through the MailerSend API.
type MailerSendMailer struct {
	ms     *mailersend.Mailersend
	from   mailersend.From
	logger *infra.Logger
}

func NewMailerSendMailer(opts MailerSendOptions) (*MailerSendMailer, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("mailersend: api key is required")
	}
	if strings.TrimSpace(opts.FromAddr) == "" {
		return nil, errors.New("mailersend: sender address is required")
	}
	ms := mailersend.NewMailersend(strings.TrimSpace(opts.APIKey))
	if opts.HTTPClient != nil {
		ms.SetClient(opts.HTTPClient)
	}
	logger := opts.Logger
	if logger == nil {
		l := infra.DiscardLogger()
		logger = &l
	}
	return &MailerSendMailer{
		ms:     ms,
		from:   mailersend.From{Name: opts.FromName, Email: opts.FromAddr},
		logger: logger,
	}, nil
}

// Send mails the portrait to one recipient.
func (m *MailerSendMailer) Send(ctx context.Context, to string, image []byte, style domain.Style) error {
	if len(image) == 0 {
		return fmt.Errorf("%w: %w", domain.ErrDelivery, domain.ErrEmptyImage)
	}
	rcpt, err := ParseRecipient(to)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrDelivery, err)
	}
	subject, body := Compose(style)

	message := m.ms.Email.NewMessage()
	message.SetFrom(m.from)
	message.SetRecipients([]mailersend.Recipient{{Email: rcpt}})
	message.SetSubject(subject)
	message.SetText(body)
	message.AddAttachment(mailersend.Attachment{
		Content:  base64.StdEncoding.EncodeToString(image),
		Filename: AttachmentName(style),
	})

	res, err := m.ms.Email.Send(ctx, message)
	if err != nil {
		return fmt.Errorf("%w: mailersend: %w", domain.ErrDelivery, err)
	}
	msgID := ""
	if res != nil {
		msgID = res.Header.Get("X-Message-Id")
	}
	m.logger.Info().Str("style", string(style)).Str("message_id", msgID).Msg("mailersend: portrait mailed")
	return nil
}

var _ Emailer = (*MailerSendMailer)(nil)
