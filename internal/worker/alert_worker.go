package worker

import (
	"context"
	"fmt"

	"github.com/Andrew-O39/expense-vista/internal/amqp"
	"github.com/Andrew-O39/expense-vista/internal/email"
	applog "github.com/Andrew-O39/expense-vista/internal/log"
)

// AlertWorker turns queued budget alerts into notification emails. It is the
// consuming side of the alert queue; the API process only publishes.
type AlertWorker struct {
	mailer email.Mailer
	log    *applog.Logger
}

func NewAlertWorker(mailer email.Mailer, logger *applog.Logger) *AlertWorker {
	return &AlertWorker{
		mailer: mailer,
		log:    logger.WithComponent(applog.ComponentWorker),
	}
}

// HandleAlertMessage renders and sends the notification for one alert.
// Returning an error requeues the message.
func (w *AlertWorker) HandleAlertMessage(ctx context.Context, msg *amqp.AlertMessage) error {
	w.log.InfoContext(ctx, "processing alert",
		applog.FieldMessageID, msg.MessageID,
		applog.FieldUserID, msg.UserID,
		applog.FieldAlertType, msg.AlertType,
		applog.FieldCategory, msg.Category)

	if msg.Email == "" {
		// Nothing to deliver to; drop rather than requeue forever.
		w.log.WarnContext(ctx, "alert has no recipient", applog.FieldMessageID, msg.MessageID)
		return nil
	}

	subject, body, err := email.BudgetAlertEmail(msg)
	if err != nil {
		// A malformed alert will never render; requeueing cannot fix it.
		w.log.ErrorContext(ctx, "render alert email failed",
			applog.FieldMessageID, msg.MessageID, applog.FieldError, err.Error())
		return nil
	}

	if err := w.mailer.Send(ctx, msg.Email, subject, body); err != nil {
		return fmt.Errorf("send alert email: %w", err)
	}

	w.log.InfoContext(ctx, "alert email sent",
		applog.FieldMessageID, msg.MessageID,
		applog.FieldEmailTo, msg.Email)
	return nil
}

// Run consumes the alert queue until ctx is cancelled, reconnecting with
// backoff when the broker connection drops.
func (w *AlertWorker) Run(ctx context.Context, client *amqp.Client) error {
	w.log.Info("alert worker starting")
	for {
		err := client.ConsumeAlerts(ctx, w.HandleAlertMessage)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		w.log.Warn("alert consumption interrupted", applog.FieldError, err.Error())
		if err := client.Reconnect(ctx); err != nil {
			return err
		}
	}
}
