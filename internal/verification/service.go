package verification

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	errors "github.com/frahmantamala/payment-verification/internal"
	"github.com/frahmantamala/payment-verification/internal/core/datamodel/gateway"
	"github.com/frahmantamala/payment-verification/internal/core/datamodel/order"
	"github.com/frahmantamala/payment-verification/internal/core/datamodel/transaction"
	"github.com/frahmantamala/payment-verification/internal/core/datamodel/verification"
	"github.com/frahmantamala/payment-verification/internal/core/events"
)

// RepositoryAPI is the claim store plus the transactional verify path.
// VerifyAndMarkPaid is the single writer for both Verification.Status and
// Order.PaymentStatus; no other code path may touch either.
type RepositoryAPI interface {
	FindOrCreate(v *verification.Verification) (*verification.Verification, error)
	GetByID(id string) (*verification.Verification, error)
	GetLatestByOrderID(orderID string) (*verification.Verification, error)
	GetByGatewayAndTransactionID(gw, transactionID string) (*verification.Verification, error)
	GetOrder(orderID string) (*order.Order, error)
	VerifyAndMarkPaid(verificationID, orderID, gw, externalID string) (applied bool, err error)
	FailClaim(verificationID, reason string) (applied bool, err error)
}

// TransactionLookup consults the transaction store from the claim path.
// FindByExternalID returns nil, nil when no notification has arrived for
// the id yet.
type TransactionLookup interface {
	FindByExternalID(gw, externalID string) (*transaction.SMSTransaction, error)
	FindUnprocessedByGatewayAndAmount(gw string, amount, tolerance decimal.Decimal) ([]*transaction.SMSTransaction, error)
}

type Service struct {
	repo      RepositoryAPI
	txLookup  TransactionLookup
	eventBus  *events.EventBus
	logger    *slog.Logger
	tolerance decimal.Decimal
}

func NewService(repo RepositoryAPI, txLookup TransactionLookup, eventBus *events.EventBus, tolerance decimal.Decimal, logger *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		txLookup:  txLookup,
		eventBus:  eventBus,
		logger:    logger,
		tolerance: tolerance,
	}
}

// SubmitClaim creates or reuses the claim row and immediately attempts a
// match. Safe to call repeatedly with identical arguments.
func (s *Service) SubmitClaim(dto *SubmitClaimDTO) (*ClaimStatus, error) {
	if err := dto.Validate(); err != nil {
		s.logger.Error("claim validation failed", "error", err, "order_id", dto.OrderID)
		return nil, err
	}

	gw := gateway.Normalize(dto.PaymentGateway)
	if !gw.Claimable() {
		// unsupported wallet: rejected before any store write
		return nil, errors.ErrUnsupportedGateway
	}

	ord, err := s.repo.GetOrder(dto.OrderID)
	if err != nil {
		return nil, errors.NewInfrastructureError("failed to load order", err)
	}
	if ord == nil {
		return nil, errors.ErrOrderNotFound
	}

	expected := ord.TotalAmount
	claim, err := s.repo.FindOrCreate(&verification.Verification{
		ID:            uuid.NewString(),
		OrderID:       dto.OrderID,
		Gateway:       gw.String(),
		TransactionID: strings.TrimSpace(dto.TransactionID),
		Amount:        &expected,
		Status:        verification.StatusPending,
	})
	if err != nil {
		return nil, errors.NewInfrastructureError("failed to record claim", err)
	}

	if claim.Status == verification.StatusVerified {
		return s.statusFor(claim), nil
	}

	if _, err := s.matchClaim(claim, dto.Amount); err != nil {
		// infrastructure failure: the claim row is in place, the caller
		// can resubmit; distinguishable from "no match yet"
		return nil, err
	}

	current, err := s.repo.GetByID(claim.ID)
	if err != nil || current == nil {
		return nil, errors.NewInfrastructureError("failed to reload claim", err)
	}

	return s.statusFor(current), nil
}

// CheckStatus is the read-only poll surface for the storefront.
func (s *Service) CheckStatus(orderID string) (*ClaimStatus, error) {
	claim, err := s.repo.GetLatestByOrderID(orderID)
	if err != nil {
		return nil, errors.NewInfrastructureError("failed to load claim", err)
	}
	if claim == nil {
		return nil, errors.ErrVerificationNotFound
	}
	return s.statusFor(claim), nil
}

// Candidates lists unprocessed transactions on the claim's gateway whose
// amount sits within tolerance of the expected amount. Admins use this to
// reconcile a claim that stays pending, usually because the customer
// mistyped the transaction id.
func (s *Service) Candidates(orderID string) ([]*transaction.SMSTransaction, error) {
	claim, err := s.repo.GetLatestByOrderID(orderID)
	if err != nil {
		return nil, errors.NewInfrastructureError("failed to load claim", err)
	}
	if claim == nil {
		return nil, errors.ErrVerificationNotFound
	}

	gw := gateway.Gateway(claim.Gateway)
	if claim.Status != verification.StatusPending || gw == gateway.COD {
		return []*transaction.SMSTransaction{}, nil
	}

	expected := claim.Amount
	if expected == nil {
		ord, err := s.repo.GetOrder(orderID)
		if err != nil {
			return nil, errors.NewInfrastructureError("failed to load order", err)
		}
		if ord == nil {
			return nil, errors.ErrOrderNotFound
		}
		expected = &ord.TotalAmount
	}

	candidates, err := s.txLookup.FindUnprocessedByGatewayAndAmount(gw.String(), *expected, s.tolerance)
	if err != nil {
		return nil, errors.NewInfrastructureError("failed to consult transaction store", err)
	}
	return candidates, nil
}

// Match reconciles a transaction id against a pending claim from the
// notification path, where only gateway and id identify the claim. The
// claim path enters matchClaim directly with its own row so a stale
// pending claim on another order can never shadow it.
func (s *Service) Match(transactionID string, gw gateway.Gateway, claimedAmount *decimal.Decimal) (*MatchOutcome, error) {
	outcome := &MatchOutcome{}

	gw = gateway.Normalize(gw.String())
	if !gw.Claimable() {
		// not a local-wallet gateway; no side effect, no match
		return outcome, nil
	}

	transactionID = strings.TrimSpace(transactionID)
	if transactionID == "" {
		return outcome, nil
	}

	claim, err := s.repo.GetByGatewayAndTransactionID(gw.String(), transactionID)
	if err != nil {
		return nil, errors.NewInfrastructureError("failed to look up claim", err)
	}
	if claim == nil {
		// transaction arrived first; it stays in the store until the
		// customer submits the claim
		return outcome, nil
	}

	return s.matchClaim(claim, claimedAmount)
}

// matchClaim attempts to verify one specific claim row against the
// transaction store. Both arrival orders converge here.
func (s *Service) matchClaim(claim *verification.Verification, claimedAmount *decimal.Decimal) (*MatchOutcome, error) {
	outcome := &MatchOutcome{}
	gw := gateway.Gateway(claim.Gateway)
	transactionID := claim.TransactionID

	if claim.Status == verification.StatusVerified {
		outcome.MatchedOrderID = &claim.OrderID
		outcome.AlreadyVerified = true
		return outcome, nil
	}
	if claim.Status == verification.StatusFailed {
		// failed is terminal and admin-owned; never resurrected here
		return outcome, nil
	}

	// COD claims have no SMS counterpart; they stay pending until an
	// admin closes them
	if gw == gateway.COD {
		return outcome, nil
	}

	tx, err := s.txLookup.FindByExternalID(gw.String(), transactionID)
	if err != nil {
		return nil, errors.NewInfrastructureError("failed to consult transaction store", err)
	}
	if tx == nil {
		return outcome, nil
	}
	if tx.IsProcessed {
		// this notification already paid an order; it never pays a second
		s.logger.Warn("transaction already consumed by another claim",
			"order_id", claim.OrderID,
			"transaction_id", transactionID,
			"gateway", gw.String())
		return outcome, nil
	}

	if !s.amountsAgree(claim, claimedAmount, tx.Amount) {
		s.logger.Warn("transaction id matched but amount outside tolerance",
			"order_id", claim.OrderID,
			"transaction_id", transactionID,
			"gateway", gw.String())
		return outcome, nil
	}

	applied, err := s.verifyWithRetry(claim.ID, claim.OrderID, gw.String(), transactionID)
	if err != nil {
		return nil, err
	}

	if !applied {
		// a concurrent attempt won the conditional update; confirm and
		// report the idempotent outcome
		current, err := s.repo.GetByID(claim.ID)
		if err != nil {
			return nil, errors.NewInfrastructureError("failed to reload claim", err)
		}
		if current != nil && current.Status == verification.StatusVerified {
			outcome.MatchedOrderID = &current.OrderID
			outcome.AlreadyVerified = true
		}
		return outcome, nil
	}

	outcome.MatchedOrderID = &claim.OrderID

	amountStr := ""
	if claim.Amount != nil {
		amountStr = claim.Amount.StringFixed(2)
	}
	s.eventBus.Publish(context.Background(), events.NewVerificationMatchedEvent(
		claim.ID, claim.OrderID, gw.String(), transactionID, amountStr))

	s.logger.Info("verification matched",
		"verification_id", claim.ID,
		"order_id", claim.OrderID,
		"gateway", gw.String(),
		"transaction_id", transactionID)

	return outcome, nil
}

// MatchTransaction adapts Match for the ingestion path.
func (s *Service) MatchTransaction(externalID string, gw gateway.Gateway, amount *decimal.Decimal) (string, bool, error) {
	outcome, err := s.Match(externalID, gw, amount)
	if err != nil {
		return "", false, err
	}
	if !outcome.Matched() {
		return "", false, nil
	}
	return *outcome.MatchedOrderID, true, nil
}

// FailClaim is the only path from pending to failed; admin action only.
func (s *Service) FailClaim(verificationID string, dto *FailClaimDTO) (*ClaimStatus, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	claim, err := s.repo.GetByID(verificationID)
	if err != nil {
		return nil, errors.NewInfrastructureError("failed to load claim", err)
	}
	if claim == nil {
		return nil, errors.ErrVerificationNotFound
	}

	applied, err := s.repo.FailClaim(verificationID, dto.Reason)
	if err != nil {
		return nil, errors.NewInfrastructureError("failed to fail claim", err)
	}
	if !applied {
		return nil, errors.ErrClaimAlreadyClosed
	}

	s.eventBus.Publish(context.Background(),
		events.NewVerificationFailedEvent(verificationID, claim.OrderID, dto.Reason))

	current, err := s.repo.GetByID(verificationID)
	if err != nil || current == nil {
		return nil, errors.NewInfrastructureError("failed to reload claim", err)
	}
	return s.statusFor(current), nil
}

// amountsAgree applies the absolute tolerance check. A missing amount on
// either side passes through to gateway+id matching alone.
func (s *Service) amountsAgree(claim *verification.Verification, claimedAmount, txAmount *decimal.Decimal) bool {
	if claim.Amount == nil {
		return true
	}
	expected := *claim.Amount

	if claimedAmount != nil && claimedAmount.Sub(expected).Abs().GreaterThan(s.tolerance) {
		return false
	}
	if txAmount != nil && txAmount.Sub(expected).Abs().GreaterThan(s.tolerance) {
		return false
	}
	return true
}

// verifyWithRetry runs the conditional verify+pay update, retrying once on
// a store-level conflict before surfacing an infrastructure error.
func (s *Service) verifyWithRetry(verificationID, orderID, gw, externalID string) (bool, error) {
	applied, err := s.repo.VerifyAndMarkPaid(verificationID, orderID, gw, externalID)
	if err == nil {
		return applied, nil
	}

	s.logger.Warn("verify update failed, retrying once",
		"error", err,
		"verification_id", verificationID)

	applied, err = s.repo.VerifyAndMarkPaid(verificationID, orderID, gw, externalID)
	if err != nil {
		return false, errors.NewInfrastructureError("verification update failed", err)
	}
	return applied, nil
}

func (s *Service) statusFor(claim *verification.Verification) *ClaimStatus {
	status := &ClaimStatus{
		Success:    true,
		OrderID:    claim.OrderID,
		Status:     claim.Status,
		VerifiedAt: claim.VerifiedAt,
	}
	if claim.Status == verification.StatusVerified {
		orderID := claim.OrderID
		status.MatchedOrderID = &orderID
	}
	return status
}
