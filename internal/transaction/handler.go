package transaction

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/frahmantamala/payment-verification/internal/transport"
	"github.com/frahmantamala/payment-verification/pkg/logger"
)

type ServiceAPI interface {
	Ingest(dto *IngestTransactionDTO) (*IngestResult, error)
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

// IngestTransaction receives a forwarded wallet SMS from the device agent.
func (h *Handler) IngestTransaction(w http.ResponseWriter, r *http.Request) {
	var dto IngestTransactionDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.Logger.Error("IngestTransaction: invalid request body", "error", err)
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.Service.Ingest(&dto)
	if err != nil {
		h.Logger.Error("IngestTransaction: service error", "error", err, "transaction_id", dto.TransactionID)
		h.HandleServiceError(w, err)
		return
	}

	h.Logger.Info("IngestTransaction: processed",
		"transaction_id", result.TransactionID,
		"duplicate", result.Duplicate,
		"unparsed", result.Unparsed,
		"matched", result.Matched)

	h.WriteJSON(w, http.StatusOK, result)
}
