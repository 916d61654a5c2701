package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"

	"github.com/Andrew-O39/expense-vista/internal/amqp"
	"github.com/Andrew-O39/expense-vista/internal/core"
)

//go:embed templates/*.html
var templatesFS embed.FS

var templates = template.Must(template.ParseFS(templatesFS, "templates/*.html"))

// alertSubjects maps alert types to subject lines.
var alertSubjects = map[string]string{
	core.AlertHalfLimit:     "Heads up: you've used half of your %s budget",
	core.AlertNearLimit:     "Warning: your %s budget is almost used up",
	core.AlertLimitExceeded: "Alert: you've exceeded your %s budget",
}

type budgetAlertData struct {
	Username  string
	Category  string
	Period    string
	AlertType string
	Spent     string
	Limit     string
	Message   string
}

type linkEmailData struct {
	Username string
	Link     string
}

// BudgetAlertEmail renders the subject and HTML body for one alert message.
func BudgetAlertEmail(msg *amqp.AlertMessage) (subject, body string, err error) {
	format, ok := alertSubjects[msg.AlertType]
	if !ok {
		return "", "", fmt.Errorf("unknown alert type %q", msg.AlertType)
	}
	subject = fmt.Sprintf(format, msg.Category)

	body, err = render("budget_alert.html", budgetAlertData{
		Username:  msg.Username,
		Category:  msg.Category,
		Period:    msg.Period,
		AlertType: msg.AlertType,
		Spent:     msg.Spent,
		Limit:     msg.LimitAmount,
		Message:   msg.Message,
	})
	return subject, body, err
}

// VerificationEmail renders the account confirmation email.
func VerificationEmail(username, link string) (subject, body string, err error) {
	body, err = render("verify_email.html", linkEmailData{Username: username, Link: link})
	return "Confirm your ExpenseVista account", body, err
}

// PasswordResetEmail renders the password reset email.
func PasswordResetEmail(username, link string) (subject, body string, err error) {
	body, err = render("password_reset.html", linkEmailData{Username: username, Link: link})
	return "Reset your ExpenseVista password", body, err
}

func render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}
