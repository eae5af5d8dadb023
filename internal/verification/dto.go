package verification

import (
	"time"

	"github.com/shopspring/decimal"

	errors "github.com/frahmantamala/payment-verification/internal"
	"github.com/frahmantamala/payment-verification/internal/core/common/validation"
	"github.com/frahmantamala/payment-verification/internal/core/datamodel/gateway"
)

// SubmitClaimDTO is the storefront payload asserting that transactionId
// pays for orderId.
type SubmitClaimDTO struct {
	OrderID        string           `json:"order_id"`
	PaymentGateway string           `json:"payment_gateway"`
	TransactionID  string           `json:"transaction_id"`
	Amount         *decimal.Decimal `json:"amount,omitempty"`
}

func (d *SubmitClaimDTO) Validate() error {
	validator := validation.NewValidator()

	validator.Field("order_id", d.OrderID).Required()
	validator.Field("transaction_id", d.TransactionID).Required().MaxLen(32)
	validator.Field("payment_gateway", d.PaymentGateway).Required().
		OneOf(gateway.ClaimableNames(), errors.ErrCodeUnsupportedGateway)
	validator.Field("amount", d.Amount).PositiveDecimal(errors.ErrCodeInvalidAmount)

	if appErr := validator.Validate(); appErr != nil {
		return appErr
	}
	return nil
}

type FailClaimDTO struct {
	Reason string `json:"reason"`
}

func (d *FailClaimDTO) Validate() error {
	validator := validation.NewValidator()

	validator.Field("reason", d.Reason).Required().MaxLen(512)

	if appErr := validator.Validate(); appErr != nil {
		return appErr
	}
	return nil
}

// ClaimStatus is returned from claim submission and status checks. The
// storefront shows "payment pending verification" for anything that is
// not verified.
type ClaimStatus struct {
	Success        bool       `json:"success"`
	OrderID        string     `json:"order_id"`
	Status         string     `json:"status"`
	MatchedOrderID *string    `json:"matched_order_id"`
	VerifiedAt     *time.Time `json:"verified_at,omitempty"`
}

// MatchOutcome describes one match attempt. NoMatch is not an error: the
// transaction or the claim simply has not arrived yet.
type MatchOutcome struct {
	MatchedOrderID *string
	// AlreadyVerified marks the idempotent no-op path: the claim was
	// verified before this attempt, by this caller or a racing one.
	AlreadyVerified bool
}

func (o *MatchOutcome) Matched() bool {
	return o.MatchedOrderID != nil
}
