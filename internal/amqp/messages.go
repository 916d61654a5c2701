package amqp

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AlertMessage carries one triggered budget alert from the API process to
// the notification worker. Amounts travel as decimal strings so the wire
// format never rounds.
type AlertMessage struct {
	MessageID   string    `json:"message_id"`
	UserID      int64     `json:"user_id"`
	BudgetID    int64     `json:"budget_id"`
	Email       string    `json:"email"`
	Username    string    `json:"username"`
	Category    string    `json:"category"`
	Period      string    `json:"period"`
	AlertType   string    `json:"alert_type"`
	Spent       string    `json:"spent"`
	LimitAmount string    `json:"limit_amount"`
	Message     string    `json:"message"`
	Timestamp   time.Time `json:"timestamp"`
}

// NewAlertMessage stamps a fresh message with a unique ID and send time.
func NewAlertMessage(userID, budgetID int64, email, username, category, period, alertType, spent, limitAmount, text string) *AlertMessage {
	return &AlertMessage{
		MessageID:   uuid.NewString(),
		UserID:      userID,
		BudgetID:    budgetID,
		Email:       email,
		Username:    username,
		Category:    category,
		Period:      period,
		AlertType:   alertType,
		Spent:       spent,
		LimitAmount: limitAmount,
		Message:     text,
		Timestamp:   time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *AlertMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// AlertMessageFromJSON creates a message from JSON bytes
func AlertMessageFromJSON(data []byte) (*AlertMessage, error) {
	var msg AlertMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
