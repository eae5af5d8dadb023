package verification_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	apperrors "github.com/frahmantamala/payment-verification/internal"
	transactionDatamodel "github.com/frahmantamala/payment-verification/internal/core/datamodel/transaction"
	verificationDatamodel "github.com/frahmantamala/payment-verification/internal/core/datamodel/verification"
	"github.com/frahmantamala/payment-verification/internal/verification"
)

type mockClaimService struct {
	submitStatus *verification.ClaimStatus
	submitErr    error
	checkStatus  *verification.ClaimStatus
	checkErr     error
	failStatus   *verification.ClaimStatus
	failErr      error
	candidates   []*transactionDatamodel.SMSTransaction
	candidateErr error
}

func (m *mockClaimService) SubmitClaim(dto *verification.SubmitClaimDTO) (*verification.ClaimStatus, error) {
	return m.submitStatus, m.submitErr
}

func (m *mockClaimService) CheckStatus(orderID string) (*verification.ClaimStatus, error) {
	return m.checkStatus, m.checkErr
}

func (m *mockClaimService) FailClaim(id string, dto *verification.FailClaimDTO) (*verification.ClaimStatus, error) {
	return m.failStatus, m.failErr
}

func (m *mockClaimService) Candidates(orderID string) ([]*transactionDatamodel.SMSTransaction, error) {
	return m.candidates, m.candidateErr
}

var _ = Describe("Verification Handler", func() {
	var (
		service *mockClaimService
		router  *chi.Mux
	)

	BeforeEach(func() {
		service = &mockClaimService{}
		handler := verification.NewHandler(service)

		router = chi.NewRouter()
		router.Post("/verifications", handler.SubmitClaim)
		router.Get("/verifications/{orderID}", handler.CheckStatus)
		router.Patch("/verifications/{id}/fail", handler.FailClaim)
		router.Get("/verifications/{orderID}/candidates", handler.CandidateTransactions)
	})

	Describe("POST /verifications", func() {
		It("returns the claim status", func() {
			service.submitStatus = &verification.ClaimStatus{
				Success: true,
				OrderID: "ORD-500",
				Status:  verificationDatamodel.StatusPending,
			}

			body := `{"order_id":"ORD-500","payment_gateway":"bkash","transaction_id":"CI131K7A2D"}`
			req := httptest.NewRequest(http.MethodPost, "/verifications", strings.NewReader(body))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusOK))

			var status verification.ClaimStatus
			Expect(json.NewDecoder(rec.Body).Decode(&status)).To(Succeed())
			Expect(status.OrderID).To(Equal("ORD-500"))
			Expect(status.Status).To(Equal(verificationDatamodel.StatusPending))
		})

		It("rejects an invalid body", func() {
			req := httptest.NewRequest(http.MethodPost, "/verifications", bytes.NewReader([]byte("{")))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})

		It("maps an unsupported gateway onto 400", func() {
			service.submitErr = apperrors.ErrUnsupportedGateway

			body := `{"order_id":"ORD-500","payment_gateway":"upay","transaction_id":"UP12345678"}`
			req := httptest.NewRequest(http.MethodPost, "/verifications", strings.NewReader(body))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusBadRequest))
			Expect(rec.Body.String()).To(ContainSubstring("UNSUPPORTED_GATEWAY"))
		})
	})

	Describe("GET /verifications/{orderID}", func() {
		It("returns 404 when no claim exists", func() {
			service.checkErr = apperrors.ErrVerificationNotFound

			req := httptest.NewRequest(http.MethodGet, "/verifications/ORD-UNKNOWN", nil)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusNotFound))
		})
	})

	Describe("GET /verifications/{orderID}/candidates", func() {
		It("lists the reconciliation candidates", func() {
			service.candidates = []*transactionDatamodel.SMSTransaction{
				{Gateway: "bkash", ExternalID: "CI131K7A2D"},
			}

			req := httptest.NewRequest(http.MethodGet, "/verifications/ORD-500/candidates", nil)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(ContainSubstring("CI131K7A2D"))
		})

		It("returns 404 when the order has no claim", func() {
			service.candidateErr = apperrors.ErrVerificationNotFound

			req := httptest.NewRequest(http.MethodGet, "/verifications/ORD-X/candidates", nil)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusNotFound))
		})
	})

	Describe("PATCH /verifications/{id}/fail", func() {
		It("maps an already-closed claim onto 409", func() {
			service.failErr = apperrors.ErrClaimAlreadyClosed

			body := `{"reason":"wrong transaction id"}`
			req := httptest.NewRequest(http.MethodPatch, "/verifications/abc/fail", strings.NewReader(body))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusConflict))
		})
	})
})
