package transaction

import (
	"time"

	"github.com/shopspring/decimal"
)

// SMSTransaction is one inbound wallet notification, normalized. Rows are
// append-only; only IsProcessed changes after insert, and only the matcher
// flips it.
type SMSTransaction struct {
	ID             int64            `gorm:"primaryKey"`
	Gateway        string           `gorm:"column:gateway;not null;uniqueIndex:idx_gateway_external_id"`
	ExternalID     string           `gorm:"column:external_id;not null;uniqueIndex:idx_gateway_external_id"`
	SenderNumber   string           `gorm:"column:sender_number"`
	SenderPhone    *string          `gorm:"column:sender_phone"`
	MessageContent string           `gorm:"column:message_content;not null"`
	Amount         *decimal.Decimal `gorm:"column:amount;type:numeric(12,2)"`
	Fee            *decimal.Decimal `gorm:"column:fee;type:numeric(12,2)"`
	NewBalance     *decimal.Decimal `gorm:"column:new_balance;type:numeric(12,2)"`
	OccurredAt     time.Time        `gorm:"column:occurred_at;not null"`
	IsProcessed    bool             `gorm:"column:is_processed;default:false"`
	CreatedAt      time.Time        `gorm:"column:created_at"`
	UpdatedAt      time.Time        `gorm:"column:updated_at"`
}

func (SMSTransaction) TableName() string {
	return "sms_transactions"
}
