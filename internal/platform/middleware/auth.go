package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
)

// Claims is the validated caller identity extracted from a bearer token.
type Claims struct {
	Principal string
}

// JWTValidator validates a raw bearer token and returns its claims.
type JWTValidator interface {
	ValidateToken(token string) (*Claims, error)
}

// RequireAuth rejects requests without a valid bearer token and stores the
// caller principal in context. Handlers trust this principal; the ledger
// performs its own authorization against it.
func RequireAuth(validator JWTValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				http.Error(w, "missing bearer token", http.StatusUnauthorized)
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(r.Context(), "token rejected",
					"request_id", GetRequestID(r.Context()),
					"error", err.Error(),
				)
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyPrincipal, claims.Principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetPrincipal returns the authenticated caller principal, empty if absent.
func GetPrincipal(ctx context.Context) string {
	p, _ := ctx.Value(ContextKeyPrincipal).(string)
	return p
}
