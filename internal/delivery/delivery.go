// Package delivery sends a finished portrait onward by email or to a shared
// cloud-drive folder.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"gamechar/internal/domain"
)

// Emailer mails the portrait as a PNG attachment.
type Emailer interface {
	Send(ctx context.Context, to string, image []byte, style domain.Style) error
}

// Drive stores the portrait in the shared folder and returns a public link.
type Drive interface {
	Upload(ctx context.Context, image []byte) (Upload, error)
}

// Upload identifies an uploaded file.
type Upload struct {
	FileID    string
	ShareLink string
}

// ErrInvalidRecipient is returned for addresses that do not parse.
var ErrInvalidRecipient = errors.New("invalid recipient address")

const (
	emailSubject = "Your game character portrait"
	emailBody    = "Here is the %s game character portrait from the booth. The image is attached.\n\n" +
		"부스에서 만든 게임 캐릭터 이미지를 첨부합니다.\n"
)

// AttachmentName returns the file name used for a mailed portrait.
func AttachmentName(style domain.Style) string {
	name := string(domain.NormalizeStyle(string(style)))
	if name == "" {
		name = "portrait"
	}
	return "game-character-" + name + ".png"
}

// Compose returns the subject and plain text body for a portrait email.
func Compose(style domain.Style) (string, string) {
	return emailSubject, fmt.Sprintf(emailBody, style)
}

// ParseRecipient validates a single address and returns its bare form.
func ParseRecipient(to string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(to))
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidRecipient, to)
	}
	return addr.Address, nil
}
