package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Andrew-O39/expense-vista/internal/amqp"
	"github.com/Andrew-O39/expense-vista/internal/core"
	applog "github.com/Andrew-O39/expense-vista/internal/log"
)

type stubMailer struct {
	sent []string
	err  error
}

func (m *stubMailer) Send(_ context.Context, to, _, _ string) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, to)
	return nil
}

func testLogger() *applog.Logger {
	return applog.New(applog.Config{Handler: slog.NewTextHandler(io.Discard, nil)})
}

func alertMsg() *amqp.AlertMessage {
	return amqp.NewAlertMessage(1, 2, "alice@example.com", "alice", "groceries", "monthly",
		core.AlertNearLimit, "170.00", "200.00", "You've used over 80% of your monthly groceries budget.")
}

func TestHandleAlertMessage(t *testing.T) {
	mailer := &stubMailer{}
	w := NewAlertWorker(mailer, testLogger())

	require.NoError(t, w.HandleAlertMessage(context.Background(), alertMsg()))
	assert.Equal(t, []string{"alice@example.com"}, mailer.sent)
}

func TestHandleAlertMessageSendFailureRequeues(t *testing.T) {
	mailer := &stubMailer{err: errors.New("smtp down")}
	w := NewAlertWorker(mailer, testLogger())

	err := w.HandleAlertMessage(context.Background(), alertMsg())
	assert.Error(t, err, "delivery failures must surface so the message is requeued")
}

func TestHandleAlertMessageNoRecipient(t *testing.T) {
	mailer := &stubMailer{}
	w := NewAlertWorker(mailer, testLogger())

	msg := alertMsg()
	msg.Email = ""
	require.NoError(t, w.HandleAlertMessage(context.Background(), msg))
	assert.Empty(t, mailer.sent)
}

func TestHandleAlertMessageBadTypeIsDropped(t *testing.T) {
	mailer := &stubMailer{}
	w := NewAlertWorker(mailer, testLogger())

	msg := alertMsg()
	msg.AlertType = "bogus"
	require.NoError(t, w.HandleAlertMessage(context.Background(), msg),
		"unrenderable alerts are dropped, not requeued")
	assert.Empty(t, mailer.sent)
}
