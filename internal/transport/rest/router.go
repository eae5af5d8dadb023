package rest

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/frahmantamala/payment-verification/internal/auth"
	"github.com/frahmantamala/payment-verification/internal/notifier"
	"github.com/frahmantamala/payment-verification/internal/transaction"
	"github.com/frahmantamala/payment-verification/internal/transport/middleware"
	"github.com/frahmantamala/payment-verification/internal/transport/swagger"
	"github.com/frahmantamala/payment-verification/internal/verification"
	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"
)

func RegisterAllRoutes(router *chi.Mux, db *sql.DB, tokens *auth.TokenManager, transactionHandler *transaction.Handler, verificationHandler *verification.Handler, notifierHandler *notifier.Handler, logger *slog.Logger) {
	healthHandler := NewHealthHandler(db)

	// Apply global middleware
	router.Use(middleware.CORS)
	router.Use(chiMiddleware.RequestID)
	router.Use(middleware.RequestID)
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.LoggingMiddleware(logger))

	// Serve OpenAPI spec at root (outside API prefix)
	router.Get("/openapi.yml", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "./api/openapi.yml")
	})
	// Swagger UI route at root
	router.Handle("/swagger/*", swagger.Handler())

	// Mount API under /api/v1 to match OpenAPI basePath
	router.Route("/api/v1", func(r chi.Router) {
		// Health check routes
		r.Get("/health", healthHandler.healthCheckHandler)
		r.Get("/ping", healthHandler.pingHandler)

		// SMS ingestion from the device forwarder
		if transactionHandler != nil {
			r.Group(func(ir chi.Router) {
				ir.Use(middleware.RequireScope(tokens, auth.ScopeIngest))
				ir.Post("/transactions", transactionHandler.IngestTransaction) // POST /transactions
			})
		}

		// Verification claims from the storefront
		if verificationHandler != nil {
			r.Route("/verifications", func(vr chi.Router) {
				vr.Group(func(sr chi.Router) {
					sr.Use(middleware.RequireScope(tokens, auth.ScopeIngest))
					sr.Post("/", verificationHandler.SubmitClaim)         // POST /verifications
					sr.Get("/{orderID}", verificationHandler.CheckStatus) // GET /verifications/:orderID
				})

				// Manual reconciliation surfaces are admin operations
				vr.Group(func(ar chi.Router) {
					ar.Use(middleware.RequireScope(tokens, auth.ScopeAdmin))
					// PATCH /verifications/:id/fail
					ar.Patch("/{id}/fail", verificationHandler.FailClaim)
					// GET /verifications/:orderID/candidates
					ar.Get("/{orderID}/candidates", verificationHandler.CandidateTransactions)
				})
			})
		}

		// Notifier bridge status and delivery history
		if notifierHandler != nil {
			r.Route("/notifier", func(nr chi.Router) {
				nr.Use(middleware.RequireScope(tokens, auth.ScopeAdmin))
				nr.Get("/status", notifierHandler.BridgeStatus) // GET /notifier/status
				nr.Get("/logs", notifierHandler.RecentLogs)     // GET /notifier/logs
			})
		}
	})
}
