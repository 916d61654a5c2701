package email

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	applog "github.com/Andrew-O39/expense-vista/internal/log"
)

// Config selects the Gmail credentials source. JSON wins over the file path
// when both are set.
type Config struct {
	CredentialsJSON string
	CredentialsFile string
	From            string
}

// GmailSender delivers mail through the Gmail API with a service account.
type GmailSender struct {
	svc  *gmail.Service
	from string
	log  *applog.Logger
}

func NewGmailSender(ctx context.Context, cfg Config, logger *applog.Logger) (*GmailSender, error) {
	if cfg.From == "" {
		return nil, errors.New("missing sender address")
	}

	var opts []option.ClientOption
	switch {
	case cfg.CredentialsJSON != "":
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
	case cfg.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	default:
		return nil, errors.New("missing Gmail credentials")
	}
	opts = append(opts, option.WithScopes(gmail.GmailSendScope))

	svc, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create gmail service: %w", err)
	}

	return &GmailSender{
		svc:  svc,
		from: cfg.From,
		log:  logger.WithComponent(applog.ComponentEmail),
	}, nil
}

// Send delivers one HTML email via the authenticated account.
func (s *GmailSender) Send(ctx context.Context, to, subject, htmlBody string) error {
	if to == "" {
		return errors.New("missing recipient")
	}

	raw := buildMIMEMessage(s.from, to, subject, htmlBody)
	msg := &gmail.Message{Raw: base64.URLEncoding.EncodeToString([]byte(raw))}

	if _, err := s.svc.Users.Messages.Send("me", msg).Context(ctx).Do(); err != nil {
		return fmt.Errorf("send email: %w", err)
	}

	s.log.InfoContext(ctx, "email sent", applog.FieldEmailTo, to, "subject", subject)
	return nil
}

// buildMIMEMessage assembles a minimal RFC 822 message with an HTML body.
func buildMIMEMessage(from, to, subject, htmlBody string) string {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + subject + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(htmlBody)
	return b.String()
}
