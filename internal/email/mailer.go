package email

import (
	"context"

	applog "github.com/Andrew-O39/expense-vista/internal/log"
)

// Mailer delivers a single HTML email.
type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// NoopMailer logs instead of sending. Used when no mail transport is
// configured so the worker keeps draining the queue.
type NoopMailer struct {
	log *applog.Logger
}

func NewNoopMailer(logger *applog.Logger) *NoopMailer {
	return &NoopMailer{log: logger.WithComponent(applog.ComponentEmail)}
}

func (m *NoopMailer) Send(ctx context.Context, to, subject, _ string) error {
	m.log.InfoContext(ctx, "email delivery disabled, dropping message",
		applog.FieldEmailTo, to, "subject", subject)
	return nil
}
