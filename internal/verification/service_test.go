package verification_test

import (
	"errors"
	"log/slog"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	apperrors "github.com/frahmantamala/payment-verification/internal"
	"github.com/frahmantamala/payment-verification/internal/core/datamodel/gateway"
	"github.com/frahmantamala/payment-verification/internal/core/datamodel/order"
	transactionDatamodel "github.com/frahmantamala/payment-verification/internal/core/datamodel/transaction"
	verificationDatamodel "github.com/frahmantamala/payment-verification/internal/core/datamodel/verification"
	"github.com/frahmantamala/payment-verification/internal/core/events"
	"github.com/frahmantamala/payment-verification/internal/verification"
)

func TestVerificationService(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "VerificationService Suite")
}

// Mock claim store. VerifyAndMarkPaid applies the same compare-and-set
// the postgres repository does: only a pending claim transitions, and the
// backing transaction row is consumed at most once.
type mockVerificationRepo struct {
	claims   map[string]*verificationDatamodel.Verification
	orders   map[string]*order.Order
	txLookup *mockTransactionLookup

	findOrCreateCalls int
	verifyCalls       int
	appliedCount      int

	verifyErrs []error
	lookupErr  error
}

func newMockVerificationRepo() *mockVerificationRepo {
	return &mockVerificationRepo{
		claims: make(map[string]*verificationDatamodel.Verification),
		orders: make(map[string]*order.Order),
	}
}

func (m *mockVerificationRepo) FindOrCreate(v *verificationDatamodel.Verification) (*verificationDatamodel.Verification, error) {
	m.findOrCreateCalls++
	for _, existing := range m.claims {
		if existing.OrderID == v.OrderID && existing.Gateway == v.Gateway && existing.TransactionID == v.TransactionID {
			return existing, nil
		}
	}
	stored := *v
	stored.CreatedAt = time.Now()
	m.claims[v.ID] = &stored
	return &stored, nil
}

func (m *mockVerificationRepo) GetByID(id string) (*verificationDatamodel.Verification, error) {
	claim, ok := m.claims[id]
	if !ok {
		return nil, nil
	}
	return claim, nil
}

func (m *mockVerificationRepo) GetLatestByOrderID(orderID string) (*verificationDatamodel.Verification, error) {
	var latest *verificationDatamodel.Verification
	for _, claim := range m.claims {
		if claim.OrderID != orderID {
			continue
		}
		if latest == nil || claim.CreatedAt.After(latest.CreatedAt) {
			latest = claim
		}
	}
	return latest, nil
}

func (m *mockVerificationRepo) GetByGatewayAndTransactionID(gw, transactionID string) (*verificationDatamodel.Verification, error) {
	if m.lookupErr != nil {
		return nil, m.lookupErr
	}
	for _, claim := range m.claims {
		if claim.Gateway == gw && claim.TransactionID == transactionID {
			return claim, nil
		}
	}
	return nil, nil
}

func (m *mockVerificationRepo) GetOrder(orderID string) (*order.Order, error) {
	ord, ok := m.orders[orderID]
	if !ok {
		return nil, nil
	}
	return ord, nil
}

func (m *mockVerificationRepo) VerifyAndMarkPaid(verificationID, orderID, gw, externalID string) (bool, error) {
	m.verifyCalls++
	if len(m.verifyErrs) > 0 {
		err := m.verifyErrs[0]
		m.verifyErrs = m.verifyErrs[1:]
		if err != nil {
			return false, err
		}
	}

	claim, ok := m.claims[verificationID]
	if !ok || claim.Status != verificationDatamodel.StatusPending {
		return false, nil
	}

	if m.txLookup != nil {
		if tx := m.txLookup.transactions[gw+"/"+externalID]; tx != nil {
			if tx.IsProcessed {
				return false, nil
			}
			tx.IsProcessed = true
		}
	}

	now := time.Now()
	claim.Status = verificationDatamodel.StatusVerified
	claim.VerifiedAt = &now
	if ord, ok := m.orders[orderID]; ok {
		ord.PaymentStatus = order.PaymentStatusPaid
	}
	m.appliedCount++
	return true, nil
}

func (m *mockVerificationRepo) FailClaim(verificationID, reason string) (bool, error) {
	claim, ok := m.claims[verificationID]
	if !ok || claim.Status != verificationDatamodel.StatusPending {
		return false, nil
	}
	now := time.Now()
	claim.Status = verificationDatamodel.StatusFailed
	claim.FailedAt = &now
	claim.FailedReason = &reason
	return true, nil
}

type mockTransactionLookup struct {
	transactions map[string]*transactionDatamodel.SMSTransaction
	err          error
}

func newMockTransactionLookup() *mockTransactionLookup {
	return &mockTransactionLookup{
		transactions: make(map[string]*transactionDatamodel.SMSTransaction),
	}
}

func (m *mockTransactionLookup) add(gw, externalID string, amount string) {
	amt := decimal.RequireFromString(amount)
	m.transactions[gw+"/"+externalID] = &transactionDatamodel.SMSTransaction{
		Gateway:    gw,
		ExternalID: externalID,
		Amount:     &amt,
		OccurredAt: time.Now(),
	}
}

func (m *mockTransactionLookup) FindByExternalID(gw, externalID string) (*transactionDatamodel.SMSTransaction, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.transactions[gw+"/"+externalID], nil
}

func (m *mockTransactionLookup) FindUnprocessedByGatewayAndAmount(gw string, amount, tolerance decimal.Decimal) ([]*transactionDatamodel.SMSTransaction, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []*transactionDatamodel.SMSTransaction
	for _, tx := range m.transactions {
		if tx.Gateway != gw || tx.IsProcessed || tx.Amount == nil {
			continue
		}
		if tx.Amount.Sub(amount).Abs().LessThanOrEqual(tolerance) {
			out = append(out, tx)
		}
	}
	return out, nil
}

var _ = Describe("VerificationService", func() {
	var (
		repo     *mockVerificationRepo
		txLookup *mockTransactionLookup
		service  *verification.Service
	)

	newClaim := func(orderID, gw, trxID, amount string) *SubmitClaimDTOBuilder {
		return &SubmitClaimDTOBuilder{dto: verification.SubmitClaimDTO{
			OrderID:        orderID,
			PaymentGateway: gw,
			TransactionID:  trxID,
		}, amount: amount}
	}

	BeforeEach(func() {
		repo = newMockVerificationRepo()
		txLookup = newMockTransactionLookup()
		repo.txLookup = txLookup
		logger := slog.New(slog.NewTextHandler(GinkgoWriter, nil))
		bus := events.NewEventBus(logger)
		service = verification.NewService(repo, txLookup, bus, decimal.NewFromInt(1), logger)

		repo.orders["ORD-500"] = &order.Order{
			ID:            "ORD-500",
			TotalAmount:   decimal.RequireFromString("500.00"),
			PaymentStatus: order.PaymentStatusAwaiting,
		}
	})

	Describe("SubmitClaim", func() {
		Context("when the notification arrived first", func() {
			BeforeEach(func() {
				txLookup.add("bkash", "CI131K7A2D", "500.00")
			})

			It("verifies the claim immediately", func() {
				status, err := service.SubmitClaim(newClaim("ORD-500", "bkash", "CI131K7A2D", "500.00").Build())
				Expect(err).NotTo(HaveOccurred())
				Expect(status.Status).To(Equal(verificationDatamodel.StatusVerified))
				Expect(status.MatchedOrderID).NotTo(BeNil())
				Expect(*status.MatchedOrderID).To(Equal("ORD-500"))
				Expect(status.VerifiedAt).NotTo(BeNil())
			})

			It("marks the order paid exactly once", func() {
				_, err := service.SubmitClaim(newClaim("ORD-500", "bkash", "CI131K7A2D", "500.00").Build())
				Expect(err).NotTo(HaveOccurred())
				Expect(repo.orders["ORD-500"].PaymentStatus).To(Equal(order.PaymentStatusPaid))
				Expect(repo.appliedCount).To(Equal(1))
			})
		})

		Context("when the claim arrives before the notification", func() {
			It("stays pending until the notification lands", func() {
				status, err := service.SubmitClaim(newClaim("ORD-500", "bkash", "CI131K7A2D", "500.00").Build())
				Expect(err).NotTo(HaveOccurred())
				Expect(status.Status).To(Equal(verificationDatamodel.StatusPending))
				Expect(status.MatchedOrderID).To(BeNil())
			})

			It("verifies later from the notification path", func() {
				_, err := service.SubmitClaim(newClaim("ORD-500", "bkash", "CI131K7A2D", "500.00").Build())
				Expect(err).NotTo(HaveOccurred())

				txLookup.add("bkash", "CI131K7A2D", "500.00")
				amt := decimal.RequireFromString("500.00")
				orderID, matched, err := service.MatchTransaction("CI131K7A2D", gateway.BKash, &amt)
				Expect(err).NotTo(HaveOccurred())
				Expect(matched).To(BeTrue())
				Expect(orderID).To(Equal("ORD-500"))
				Expect(repo.orders["ORD-500"].PaymentStatus).To(Equal(order.PaymentStatusPaid))
			})
		})

		Context("when the same claim is submitted three times", func() {
			BeforeEach(func() {
				txLookup.add("bkash", "CI131K7A2D", "500.00")
			})

			It("returns verified every time and transitions once", func() {
				for i := 0; i < 3; i++ {
					status, err := service.SubmitClaim(newClaim("ORD-500", "bkash", "CI131K7A2D", "500.00").Build())
					Expect(err).NotTo(HaveOccurred())
					Expect(status.Status).To(Equal(verificationDatamodel.StatusVerified))
				}
				Expect(len(repo.claims)).To(Equal(1))
				Expect(repo.appliedCount).To(Equal(1))
			})
		})

		Context("when the transaction already paid another order", func() {
			BeforeEach(func() {
				txLookup.add("bkash", "CI131K7A2D", "500.00")
				repo.orders["ORD-620"] = &order.Order{
					ID:            "ORD-620",
					TotalAmount:   decimal.RequireFromString("500.00"),
					PaymentStatus: order.PaymentStatusAwaiting,
				}
			})

			It("never pays a second order with the same transaction id", func() {
				first, err := service.SubmitClaim(newClaim("ORD-500", "bkash", "CI131K7A2D", "500.00").Build())
				Expect(err).NotTo(HaveOccurred())
				Expect(first.Status).To(Equal(verificationDatamodel.StatusVerified))

				second, err := service.SubmitClaim(newClaim("ORD-620", "bkash", "CI131K7A2D", "500.00").Build())
				Expect(err).NotTo(HaveOccurred())
				Expect(second.Status).To(Equal(verificationDatamodel.StatusPending))
				Expect(repo.orders["ORD-620"].PaymentStatus).To(Equal(order.PaymentStatusAwaiting))
				Expect(repo.appliedCount).To(Equal(1))
			})
		})

		Context("when another order holds a stale pending claim for the id", func() {
			BeforeEach(func() {
				stale := decimal.RequireFromString("999.00")
				repo.claims["stale-claim"] = &verificationDatamodel.Verification{
					ID:            "stale-claim",
					OrderID:       "ORD-999",
					Gateway:       "bkash",
					TransactionID: "CI131K7A2D",
					Amount:        &stale,
					Status:        verificationDatamodel.StatusPending,
					CreatedAt:     time.Now().Add(-time.Hour),
				}
				txLookup.add("bkash", "CI131K7A2D", "500.00")
			})

			It("still verifies the submitting order's own claim", func() {
				status, err := service.SubmitClaim(newClaim("ORD-500", "bkash", "CI131K7A2D", "500.00").Build())
				Expect(err).NotTo(HaveOccurred())
				Expect(status.Status).To(Equal(verificationDatamodel.StatusVerified))
				Expect(*status.MatchedOrderID).To(Equal("ORD-500"))
				Expect(repo.claims["stale-claim"].Status).To(Equal(verificationDatamodel.StatusPending))
			})
		})

		Context("with an unsupported gateway", func() {
			It("rejects upay before touching the store", func() {
				_, err := service.SubmitClaim(newClaim("ORD-500", "upay", "UP12345678", "500.00").Build())
				Expect(err).To(HaveOccurred())
				appErr, ok := apperrors.IsAppError(err)
				Expect(ok).To(BeTrue())
				Expect(appErr.StatusCode).To(Equal(400))
				Expect(repo.findOrCreateCalls).To(BeZero())
			})
		})

		Context("when the order does not exist", func() {
			It("returns order not found", func() {
				_, err := service.SubmitClaim(newClaim("ORD-MISSING", "bkash", "CI131K7A2D", "500.00").Build())
				Expect(err).To(MatchError(apperrors.ErrOrderNotFound))
			})
		})

		Context("with a COD claim", func() {
			It("stays pending even though no SMS will ever arrive", func() {
				status, err := service.SubmitClaim(newClaim("ORD-500", "cod", "COD-REF-01", "").Build())
				Expect(err).NotTo(HaveOccurred())
				Expect(status.Status).To(Equal(verificationDatamodel.StatusPending))
			})
		})

		Context("amount tolerance", func() {
			It("verifies when the transaction amount is within 1.00", func() {
				txLookup.add("bkash", "CI131K7A2D", "500.75")
				status, err := service.SubmitClaim(newClaim("ORD-500", "bkash", "CI131K7A2D", "500.00").Build())
				Expect(err).NotTo(HaveOccurred())
				Expect(status.Status).To(Equal(verificationDatamodel.StatusVerified))
			})

			It("leaves the claim pending when the amount is off by more", func() {
				txLookup.add("bkash", "CI131K7A2D", "510.00")
				status, err := service.SubmitClaim(newClaim("ORD-500", "bkash", "CI131K7A2D", "500.00").Build())
				Expect(err).NotTo(HaveOccurred())
				Expect(status.Status).To(Equal(verificationDatamodel.StatusPending))
				Expect(repo.orders["ORD-500"].PaymentStatus).To(Equal(order.PaymentStatusAwaiting))
			})

			It("matches on gateway and id alone when the transaction carries no amount", func() {
				txLookup.transactions["bkash/CI131K7A2D"] = &transactionDatamodel.SMSTransaction{
					Gateway:    "bkash",
					ExternalID: "CI131K7A2D",
					OccurredAt: time.Now(),
				}
				status, err := service.SubmitClaim(newClaim("ORD-500", "bkash", "CI131K7A2D", "").Build())
				Expect(err).NotTo(HaveOccurred())
				Expect(status.Status).To(Equal(verificationDatamodel.StatusVerified))
			})
		})

		Context("when the verify update keeps failing", func() {
			BeforeEach(func() {
				txLookup.add("bkash", "CI131K7A2D", "500.00")
				repo.verifyErrs = []error{errors.New("connection reset"), errors.New("connection reset")}
			})

			It("surfaces an infrastructure error after one retry", func() {
				_, err := service.SubmitClaim(newClaim("ORD-500", "bkash", "CI131K7A2D", "500.00").Build())
				Expect(err).To(HaveOccurred())
				appErr, ok := apperrors.IsAppError(err)
				Expect(ok).To(BeTrue())
				Expect(appErr.Code).To(Equal(apperrors.ErrCodeStoreUnavailable))
				Expect(repo.verifyCalls).To(Equal(2))
			})
		})

		Context("when the verify update fails once", func() {
			BeforeEach(func() {
				txLookup.add("bkash", "CI131K7A2D", "500.00")
				repo.verifyErrs = []error{errors.New("deadlock detected")}
			})

			It("succeeds on the retry", func() {
				status, err := service.SubmitClaim(newClaim("ORD-500", "bkash", "CI131K7A2D", "500.00").Build())
				Expect(err).NotTo(HaveOccurred())
				Expect(status.Status).To(Equal(verificationDatamodel.StatusVerified))
			})
		})
	})

	Describe("Match", func() {
		It("reports the idempotent outcome when the claim was already verified", func() {
			txLookup.add("bkash", "CI131K7A2D", "500.00")
			_, err := service.SubmitClaim(newClaim("ORD-500", "bkash", "CI131K7A2D", "500.00").Build())
			Expect(err).NotTo(HaveOccurred())

			outcome, err := service.Match("CI131K7A2D", gateway.BKash, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(outcome.AlreadyVerified).To(BeTrue())
			Expect(outcome.Matched()).To(BeTrue())
			Expect(repo.appliedCount).To(Equal(1))
		})

		It("never resurrects a failed claim", func() {
			_, err := service.SubmitClaim(newClaim("ORD-500", "bkash", "CI131K7A2D", "500.00").Build())
			Expect(err).NotTo(HaveOccurred())
			var claimID string
			for id := range repo.claims {
				claimID = id
			}
			_, err = service.FailClaim(claimID, &verification.FailClaimDTO{Reason: "customer refunded"})
			Expect(err).NotTo(HaveOccurred())

			txLookup.add("bkash", "CI131K7A2D", "500.00")
			outcome, err := service.Match("CI131K7A2D", gateway.BKash, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(outcome.Matched()).To(BeFalse())
			Expect(repo.claims[claimID].Status).To(Equal(verificationDatamodel.StatusFailed))
		})

		It("is a no-op when no claim exists for the transaction yet", func() {
			txLookup.add("bkash", "ZZ999XY123", "250.00")
			outcome, err := service.Match("ZZ999XY123", gateway.BKash, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(outcome.Matched()).To(BeFalse())
		})
	})

	Describe("Candidates", func() {
		It("lists unprocessed transactions near the expected amount", func() {
			_, err := service.SubmitClaim(newClaim("ORD-500", "bkash", "WRONGID123", "500.00").Build())
			Expect(err).NotTo(HaveOccurred())

			txLookup.add("bkash", "CI131K7A2D", "500.50")
			txLookup.add("bkash", "FARAWAY999", "720.00")
			txLookup.add("nagad", "NG55443322", "500.00")

			candidates, err := service.Candidates("ORD-500")
			Expect(err).NotTo(HaveOccurred())
			Expect(candidates).To(HaveLen(1))
			Expect(candidates[0].ExternalID).To(Equal("CI131K7A2D"))
		})

		It("excludes transactions that already paid an order", func() {
			txLookup.add("bkash", "CI131K7A2D", "500.00")
			_, err := service.SubmitClaim(newClaim("ORD-500", "bkash", "CI131K7A2D", "500.00").Build())
			Expect(err).NotTo(HaveOccurred())

			repo.orders["ORD-620"] = &order.Order{
				ID:            "ORD-620",
				TotalAmount:   decimal.RequireFromString("500.00"),
				PaymentStatus: order.PaymentStatusAwaiting,
			}
			_, err = service.SubmitClaim(newClaim("ORD-620", "bkash", "MISTYPED01", "500.00").Build())
			Expect(err).NotTo(HaveOccurred())

			candidates, err := service.Candidates("ORD-620")
			Expect(err).NotTo(HaveOccurred())
			Expect(candidates).To(BeEmpty())
		})

		It("returns empty for a closed claim", func() {
			txLookup.add("bkash", "CI131K7A2D", "500.00")
			_, err := service.SubmitClaim(newClaim("ORD-500", "bkash", "CI131K7A2D", "500.00").Build())
			Expect(err).NotTo(HaveOccurred())

			candidates, err := service.Candidates("ORD-500")
			Expect(err).NotTo(HaveOccurred())
			Expect(candidates).To(BeEmpty())
		})

		It("returns not found when the order has no claim", func() {
			_, err := service.Candidates("ORD-UNKNOWN")
			Expect(err).To(MatchError(apperrors.ErrVerificationNotFound))
		})
	})

	Describe("CheckStatus", func() {
		It("returns the latest claim for the order", func() {
			_, err := service.SubmitClaim(newClaim("ORD-500", "bkash", "CI131K7A2D", "500.00").Build())
			Expect(err).NotTo(HaveOccurred())

			status, err := service.CheckStatus("ORD-500")
			Expect(err).NotTo(HaveOccurred())
			Expect(status.OrderID).To(Equal("ORD-500"))
			Expect(status.Status).To(Equal(verificationDatamodel.StatusPending))
		})

		It("returns not found when no claim exists", func() {
			_, err := service.CheckStatus("ORD-UNKNOWN")
			Expect(err).To(MatchError(apperrors.ErrVerificationNotFound))
		})
	})

	Describe("FailClaim", func() {
		var claimID string

		BeforeEach(func() {
			_, err := service.SubmitClaim(newClaim("ORD-500", "bkash", "CI131K7A2D", "500.00").Build())
			Expect(err).NotTo(HaveOccurred())
			for id := range repo.claims {
				claimID = id
			}
		})

		It("transitions a pending claim to failed", func() {
			status, err := service.FailClaim(claimID, &verification.FailClaimDTO{Reason: "wrong transaction id"})
			Expect(err).NotTo(HaveOccurred())
			Expect(status.Status).To(Equal(verificationDatamodel.StatusFailed))
		})

		It("rejects a second close", func() {
			_, err := service.FailClaim(claimID, &verification.FailClaimDTO{Reason: "wrong transaction id"})
			Expect(err).NotTo(HaveOccurred())

			_, err = service.FailClaim(claimID, &verification.FailClaimDTO{Reason: "again"})
			Expect(err).To(MatchError(apperrors.ErrClaimAlreadyClosed))
		})

		It("rejects closing a verified claim", func() {
			txLookup.add("bkash", "CI131K7A2D", "500.00")
			_, err := service.Match("CI131K7A2D", gateway.BKash, nil)
			Expect(err).NotTo(HaveOccurred())

			_, err = service.FailClaim(claimID, &verification.FailClaimDTO{Reason: "too late"})
			Expect(err).To(MatchError(apperrors.ErrClaimAlreadyClosed))
		})
	})
})

// SubmitClaimDTOBuilder keeps the table of scenarios above readable.
type SubmitClaimDTOBuilder struct {
	dto    verification.SubmitClaimDTO
	amount string
}

func (b *SubmitClaimDTOBuilder) Build() *verification.SubmitClaimDTO {
	if b.amount != "" {
		amt := decimal.RequireFromString(b.amount)
		b.dto.Amount = &amt
	}
	return &b.dto
}
