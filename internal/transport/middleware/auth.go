package middleware

import (
	"net/http"
	"strings"

	errors "github.com/frahmantamala/payment-verification/internal"
	"github.com/frahmantamala/payment-verification/internal/auth"
	"github.com/frahmantamala/payment-verification/internal/transport"
	"github.com/frahmantamala/payment-verification/pkg/logger"
)

// RequireScope authenticates the bearer token and checks that its scope
// covers the route. Admin tokens satisfy every scope.
func RequireScope(tokens *auth.TokenManager, scope string) func(http.Handler) http.Handler {
	base := transport.NewBaseHandler(nil)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := extractBearer(r)
			if tokenString == "" {
				base.HandleServiceError(w, errors.ErrInvalidToken)
				return
			}

			claims, err := tokens.Verify(tokenString)
			if err != nil {
				base.HandleServiceError(w, err)
				return
			}

			if !claims.Allows(scope) {
				base.HandleServiceError(w, errors.NewForbiddenError("token scope does not permit this operation", errors.ErrCodeInsufficientScope))
				return
			}

			ctx := errors.ContextWithSubject(r.Context(), claims.Subject)
			ctx = logger.With(ctx, "subject", claims.Subject, "scope", claims.Scope)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func extractBearer(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(header, "Bearer ")
}
