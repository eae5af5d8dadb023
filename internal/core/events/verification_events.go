package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventTypeVerificationMatched = "verification.matched"
	EventTypeVerificationFailed  = "verification.failed"
	EventTypeTransactionUnparsed = "transaction.unparsed"
)

type VerificationMatchedEvent struct {
	BaseEvent
	VerificationID string `json:"verification_id"`
	OrderID        string `json:"order_id"`
	Gateway        string `json:"gateway"`
	TransactionID  string `json:"transaction_id"`
	Amount         string `json:"amount"`
}

func NewVerificationMatchedEvent(verificationID, orderID, gw, transactionID, amount string) *VerificationMatchedEvent {
	return &VerificationMatchedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeVerificationMatched,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"verification_id": verificationID,
				"order_id":        orderID,
				"gateway":         gw,
				"transaction_id":  transactionID,
				"amount":          amount,
			},
		},
		VerificationID: verificationID,
		OrderID:        orderID,
		Gateway:        gw,
		TransactionID:  transactionID,
		Amount:         amount,
	}
}

type VerificationFailedEvent struct {
	BaseEvent
	VerificationID string `json:"verification_id"`
	OrderID        string `json:"order_id"`
	Reason         string `json:"reason"`
}

func NewVerificationFailedEvent(verificationID, orderID, reason string) *VerificationFailedEvent {
	return &VerificationFailedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeVerificationFailed,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"verification_id": verificationID,
				"order_id":        orderID,
				"reason":          reason,
			},
		},
		VerificationID: verificationID,
		OrderID:        orderID,
		Reason:         reason,
	}
}

// TransactionUnparsedEvent flags a stored-but-unrecognized notification so
// an operator can triage it.
type TransactionUnparsedEvent struct {
	BaseEvent
	ExternalID   string `json:"external_id"`
	SenderNumber string `json:"sender_number"`
}

func NewTransactionUnparsedEvent(externalID, senderNumber string) *TransactionUnparsedEvent {
	return &TransactionUnparsedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeTransactionUnparsed,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"external_id":   externalID,
				"sender_number": senderNumber,
			},
		},
		ExternalID:   externalID,
		SenderNumber: senderNumber,
	}
}
