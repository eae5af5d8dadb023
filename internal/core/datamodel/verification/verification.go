package verification

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	StatusPending  = "pending"
	StatusVerified = "verified"
	StatusFailed   = "failed"
)

// Verification is a claim that a given transaction ID pays for a given
// order. Status is the only mutable field: pending -> verified through the
// matcher's conditional update, pending -> failed through admin action only.
type Verification struct {
	ID            string           `gorm:"primaryKey;column:id"`
	OrderID       string           `gorm:"column:order_id;not null;uniqueIndex:idx_order_gateway_trx"`
	Gateway       string           `gorm:"column:payment_gateway;not null;uniqueIndex:idx_order_gateway_trx"`
	TransactionID string           `gorm:"column:transaction_id;not null;uniqueIndex:idx_order_gateway_trx"`
	Amount        *decimal.Decimal `gorm:"column:amount;type:numeric(12,2)"`
	Status        string           `gorm:"column:status;default:pending"`
	VerifiedAt    *time.Time       `gorm:"column:verified_at"`
	FailedAt      *time.Time       `gorm:"column:failed_at"`
	FailedReason  *string          `gorm:"column:failed_reason"`
	CreatedAt     time.Time        `gorm:"column:created_at"`
	UpdatedAt     time.Time        `gorm:"column:updated_at"`
}

func (Verification) TableName() string {
	return "transaction_verifications"
}

// IsTerminal reports whether the claim can still transition.
func (v *Verification) IsTerminal() bool {
	return v.Status == StatusVerified || v.Status == StatusFailed
}
