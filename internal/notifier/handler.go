package notifier

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/frahmantamala/payment-verification/internal/core/datamodel/notification"
	"github.com/frahmantamala/payment-verification/internal/transport"
	"github.com/frahmantamala/payment-verification/pkg/logger"
)

type ServiceAPI interface {
	BridgeStatus(ctx context.Context) (*BridgeStatus, error)
	RecentLogs(limit int) ([]*notification.Log, error)
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

// BridgeStatus proxies the relay's connection state for the admin console.
func (h *Handler) BridgeStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.Service.BridgeStatus(r.Context())
	if err != nil {
		h.Logger.Error("BridgeStatus: relay unreachable", "error", err)
		h.WriteError(w, http.StatusBadGateway, "bridge relay unreachable")
		return
	}

	h.WriteJSON(w, http.StatusOK, status)
}

// RecentLogs lists the newest outbound notification attempts.
func (h *Handler) RecentLogs(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if q := r.URL.Query().Get("limit"); q != "" {
		if parsed, err := strconv.Atoi(q); err == nil {
			limit = parsed
		}
	}

	logs, err := h.Service.RecentLogs(limit)
	if err != nil {
		h.Logger.Error("RecentLogs: failed to load logs", "error", err)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"logs": logs})
}
