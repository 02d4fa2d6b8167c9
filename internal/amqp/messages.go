package amqp

import (
	"encoding/json"
	"time"

	"fintrack/internal/core"
)

// AlertEventMessage announces a newly created budget alert. Consumers that
// need more than the summary fetch the alert by ID.
type AlertEventMessage struct {
	AlertID    string         `json:"alert_id"`
	UserID     string         `json:"user_id"`
	BudgetID   string         `json:"budget_id"`
	Kind       core.AlertKind `json:"alert_type"`
	Message    string         `json:"message"`
	Percentage float64        `json:"percentage"`
	Timestamp  time.Time      `json:"timestamp"`
}

// NewAlertEventMessage builds the event for a stored alert.
func NewAlertEventMessage(a core.BudgetAlert) *AlertEventMessage {
	return &AlertEventMessage{
		AlertID:    a.ID,
		UserID:     a.UserID,
		BudgetID:   a.BudgetID,
		Kind:       a.Kind,
		Message:    a.Message,
		Percentage: a.Percentage,
		Timestamp:  time.Now(),
	}
}

func (m *AlertEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func AlertEventMessageFromJSON(data []byte) (*AlertEventMessage, error) {
	var msg AlertEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
