package verification

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"

	"github.com/frahmantamala/payment-verification/internal/core/datamodel/transaction"
	"github.com/frahmantamala/payment-verification/internal/transport"
	"github.com/frahmantamala/payment-verification/pkg/logger"
)

type ServiceAPI interface {
	SubmitClaim(dto *SubmitClaimDTO) (*ClaimStatus, error)
	CheckStatus(orderID string) (*ClaimStatus, error)
	FailClaim(verificationID string, dto *FailClaimDTO) (*ClaimStatus, error)
	Candidates(orderID string) ([]*transaction.SMSTransaction, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(service ServiceAPI) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     service,
	}
}

// SubmitClaim handles a storefront claim that a transaction pays an order.
func (h *Handler) SubmitClaim(w http.ResponseWriter, r *http.Request) {
	var dto SubmitClaimDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.Logger.Error("SubmitClaim: invalid request body", "error", err)
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	status, err := h.Service.SubmitClaim(&dto)
	if err != nil {
		h.Logger.Error("SubmitClaim: service error", "error", err, "order_id", dto.OrderID)
		h.HandleServiceError(w, err)
		return
	}

	h.Logger.Info("SubmitClaim: processed",
		"order_id", status.OrderID,
		"status", status.Status)

	h.WriteJSON(w, http.StatusOK, status)
}

// CheckStatus answers "has my order been paid?" for a polling storefront.
func (h *Handler) CheckStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")
	if orderID == "" {
		h.WriteError(w, http.StatusBadRequest, "order ID is required")
		return
	}

	status, err := h.Service.CheckStatus(orderID)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, status)
}

// CandidateTransactions lists unprocessed notifications near a pending
// claim's expected amount, for manual reconciliation.
func (h *Handler) CandidateTransactions(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")
	if orderID == "" {
		h.WriteError(w, http.StatusBadRequest, "order ID is required")
		return
	}

	candidates, err := h.Service.Candidates(orderID)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"candidates": candidates,
	})
}

// FailClaim closes a claim as failed; admin action only, never automatic.
func (h *Handler) FailClaim(w http.ResponseWriter, r *http.Request) {
	verificationID := chi.URLParam(r, "id")
	if verificationID == "" {
		h.WriteError(w, http.StatusBadRequest, "verification ID is required")
		return
	}

	var dto FailClaimDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.Logger.Error("FailClaim: invalid request body", "error", err)
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	status, err := h.Service.FailClaim(verificationID, &dto)
	if err != nil {
		h.Logger.Error("FailClaim: service error", "error", err, "verification_id", verificationID)
		h.HandleServiceError(w, err)
		return
	}

	h.Logger.Info("FailClaim: claim closed",
		"verification_id", verificationID,
		"order_id", status.OrderID)

	h.WriteJSON(w, http.StatusOK, status)
}
