package order

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	PaymentStatusAwaiting = "awaiting_payment"
	PaymentStatusPaid     = "paid"
	PaymentStatusRefunded = "refunded"
)

// Order is owned by the storefront; this service only reads it and flips
// payment_status to paid through the matcher's transactional path.
type Order struct {
	ID             string          `gorm:"primaryKey;column:id"`
	CustomerPhone  string          `gorm:"column:customer_phone"`
	TotalAmount    decimal.Decimal `gorm:"column:total_amount;type:numeric(12,2);not null"`
	PaymentGateway string          `gorm:"column:payment_gateway"`
	PaymentStatus  string          `gorm:"column:payment_status;default:awaiting_payment"`
	CreatedAt      time.Time       `gorm:"column:created_at"`
	UpdatedAt      time.Time       `gorm:"column:updated_at"`
}

func (Order) TableName() string {
	return "orders"
}
