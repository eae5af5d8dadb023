package transaction

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	errors "github.com/frahmantamala/payment-verification/internal"
	"github.com/frahmantamala/payment-verification/internal/core/datamodel/gateway"
	"github.com/frahmantamala/payment-verification/internal/core/datamodel/transaction"
	"github.com/frahmantamala/payment-verification/internal/core/events"
	"github.com/frahmantamala/payment-verification/internal/parser"
)

// RepositoryAPI is the append-only transaction store. Record never fails
// on a duplicate key; the duplicate surfaces as inserted=false.
type RepositoryAPI interface {
	Record(row *transaction.SMSTransaction) (inserted bool, existing *transaction.SMSTransaction, err error)
	FindByExternalID(gw, externalID string) (*transaction.SMSTransaction, error)
	FindUnprocessedByGatewayAndAmount(gw string, amount, tolerance decimal.Decimal) ([]*transaction.SMSTransaction, error)
}

// Matcher is implemented by the verification service; the ingestion path
// calls it after storing a parsed notification.
type Matcher interface {
	MatchTransaction(externalID string, gw gateway.Gateway, amount *decimal.Decimal) (matchedOrderID string, matched bool, err error)
}

type Service struct {
	repo     RepositoryAPI
	matcher  Matcher
	eventBus *events.EventBus
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(repo RepositoryAPI, matcher Matcher, eventBus *events.EventBus, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		matcher:  matcher,
		eventBus: eventBus,
		logger:   logger,
		now:      time.Now,
	}
}

// Ingest stores one inbound notification and attempts an immediate match.
// Unparsed messages are stored raw for manual triage; duplicates are
// absorbed and reported as success.
func (s *Service) Ingest(dto *IngestTransactionDTO) (*IngestResult, error) {
	if err := dto.Validate(); err != nil {
		s.logger.Error("transaction ingest validation failed", "error", err)
		return nil, err
	}

	ingestedAt := dto.IngestedAt(s.now())

	var hint gateway.Gateway
	if dto.WalletType != "" {
		hint = gateway.Normalize(dto.WalletType)
	}

	parsed, recognized := parser.Parse(hint, dto.MessageContent, ingestedAt)

	row := s.buildRow(dto, hint, parsed, recognized, ingestedAt)

	inserted, existing, err := s.repo.Record(row)
	if err != nil {
		s.logger.Error("failed to record transaction",
			"error", err,
			"external_id", row.ExternalID,
			"gateway", row.Gateway)
		return nil, errors.NewInfrastructureError("failed to record transaction", err)
	}

	result := &IngestResult{
		Success:       true,
		TransactionID: existing.ExternalID,
	}
	if recognized {
		result.Extracted = &ExtractedData{
			Gateway:     existing.Gateway,
			Amount:      existing.Amount,
			Fee:         existing.Fee,
			NewBalance:  existing.NewBalance,
			SenderPhone: existing.SenderPhone,
		}
	} else {
		result.Unparsed = true
	}

	if !inserted {
		s.logger.Info("duplicate notification absorbed",
			"external_id", existing.ExternalID,
			"gateway", existing.Gateway)
		result.Duplicate = true
		return result, nil
	}

	s.logger.Info("transaction recorded",
		"transaction_row_id", existing.ID,
		"external_id", existing.ExternalID,
		"gateway", existing.Gateway,
		"recognized", recognized)

	if !recognized {
		s.eventBus.Publish(context.Background(),
			events.NewTransactionUnparsedEvent(existing.ExternalID, existing.SenderNumber))
		return result, nil
	}

	// notification-triggered match attempt; a miss is not an error, the
	// claim may arrive later and match from the other path
	orderID, matched, err := s.matcher.MatchTransaction(existing.ExternalID, gateway.Gateway(existing.Gateway), existing.Amount)
	if err != nil {
		s.logger.Error("match attempt failed after ingest, transaction kept for retry",
			"error", err,
			"external_id", existing.ExternalID)
		return result, nil
	}
	if matched {
		result.Matched = true
		result.MatchedOrderID = &orderID
		s.logger.Info("transaction matched to order",
			"external_id", existing.ExternalID,
			"order_id", orderID)
	}

	return result, nil
}

func (s *Service) buildRow(dto *IngestTransactionDTO, hint gateway.Gateway, parsed *parser.Result, recognized bool, ingestedAt time.Time) *transaction.SMSTransaction {
	if recognized {
		externalID := parsed.ExternalID
		if dto.TransactionID != "" {
			// the device forwarder and the parser both extract the TrxID;
			// the forwarder's value is the dedupe key the claims carry
			externalID = dto.TransactionID
		}
		amount := parsed.Amount
		return &transaction.SMSTransaction{
			Gateway:        parsed.Gateway.String(),
			ExternalID:     externalID,
			SenderNumber:   dto.SenderNumber,
			SenderPhone:    parsed.SenderPhone,
			MessageContent: dto.MessageContent,
			Amount:         &amount,
			Fee:            parsed.Fee,
			NewBalance:     parsed.NewBalance,
			OccurredAt:     parsed.OccurredAt,
		}
	}

	gw := gateway.Unknown
	if hint != "" && hint != gateway.Unknown {
		gw = hint
	} else if inferred := gateway.Infer(dto.MessageContent); inferred != gateway.Unknown {
		gw = inferred
	}

	return &transaction.SMSTransaction{
		Gateway:        gw.String(),
		ExternalID:     dto.TransactionID,
		SenderNumber:   dto.SenderNumber,
		MessageContent: dto.MessageContent,
		Amount:         dto.Amount,
		OccurredAt:     ingestedAt,
	}
}

// FindByExternalID lets the matcher consult the store from the claim path.
func (s *Service) FindByExternalID(gw, externalID string) (*transaction.SMSTransaction, error) {
	return s.repo.FindByExternalID(gw, externalID)
}

// FindUnprocessedByGatewayAndAmount backs the reconciliation surface that
// lists spendable notifications near an expected amount.
func (s *Service) FindUnprocessedByGatewayAndAmount(gw string, amount, tolerance decimal.Decimal) ([]*transaction.SMSTransaction, error) {
	return s.repo.FindUnprocessedByGatewayAndAmount(gw, amount, tolerance)
}
