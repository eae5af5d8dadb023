package transaction

import (
	"time"

	"github.com/shopspring/decimal"

	errors "github.com/frahmantamala/payment-verification/internal"
	"github.com/frahmantamala/payment-verification/internal/core/common/validation"
)

// IngestTransactionDTO is the inbound notification payload. The device
// forwarder has already pulled the transaction id out of the SMS; the full
// body comes along so the parser can extract the rest.
type IngestTransactionDTO struct {
	TransactionID  string           `json:"transaction_id"`
	SenderNumber   string           `json:"sender_number"`
	MessageContent string           `json:"message_content"`
	WalletType     string           `json:"wallet_type,omitempty"`
	Amount         *decimal.Decimal `json:"amount,omitempty"`
	Timestamp      int64            `json:"timestamp,omitempty"`
}

func (d *IngestTransactionDTO) Validate() error {
	validator := validation.NewValidator()

	validator.Field("transaction_id", d.TransactionID).Required().MaxLen(32)
	validator.Field("message_content", d.MessageContent).Required().MaxLen(2048)
	validator.Field("amount", d.Amount).PositiveDecimal(errors.ErrCodeInvalidAmount)

	if appErr := validator.Validate(); appErr != nil {
		return appErr
	}
	return nil
}

// IngestedAt resolves the client-reported epoch-millis timestamp, falling
// back to now.
func (d *IngestTransactionDTO) IngestedAt(now time.Time) time.Time {
	if d.Timestamp > 0 {
		return time.UnixMilli(d.Timestamp)
	}
	return now
}

// ExtractedData echoes what the parser pulled out of the message body.
type ExtractedData struct {
	Gateway     string           `json:"gateway"`
	Amount      *decimal.Decimal `json:"amount,omitempty"`
	Fee         *decimal.Decimal `json:"fee,omitempty"`
	NewBalance  *decimal.Decimal `json:"new_balance,omitempty"`
	SenderPhone *string          `json:"sender_phone,omitempty"`
}

type IngestResult struct {
	Success        bool           `json:"success"`
	Duplicate      bool           `json:"duplicate"`
	Unparsed       bool           `json:"unparsed"`
	Matched        bool           `json:"matched"`
	MatchedOrderID *string        `json:"matched_order_id,omitempty"`
	TransactionID  string         `json:"transaction_id"`
	Extracted      *ExtractedData `json:"extracted_data,omitempty"`
}
