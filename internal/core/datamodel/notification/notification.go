package notification

import "time"

const (
	StatusSent   = "sent"
	StatusFailed = "failed"
)

// Log records every outbound message attempt against the bridge relay.
// Append-only; failed sends are not retried here, the relay owns retries.
type Log struct {
	ID          int64     `gorm:"primaryKey"`
	PhoneNumber string    `gorm:"column:phone_number;not null"`
	Message     string    `gorm:"column:message;not null"`
	Status      string    `gorm:"column:status;not null"`
	ErrorDetail *string   `gorm:"column:error_detail"`
	CreatedAt   time.Time `gorm:"column:created_at"`
}

func (Log) TableName() string {
	return "notification_logs"
}
