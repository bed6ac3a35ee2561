package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/skinsight/review-console/internal/domain/operator"
)

type contextKey string

const OperatorKey contextKey = "operator"

// TokenVerifier resolves a bearer token to the operator it was issued to.
type TokenVerifier interface {
	Verify(token string) (operator.Identity, error)
}

// JWTAuth validates the bearer token from the Authorization header and
// stores the operator identity in the request context.
func JWTAuth(v TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if auth == "" {
				WriteError(w, http.StatusUnauthorized, "unauthorized", "missing Authorization header")
				return
			}
			token, ok := strings.CutPrefix(auth, "Bearer ")
			token = strings.TrimSpace(token)
			if !ok || token == "" {
				WriteError(w, http.StatusUnauthorized, "unauthorized", "invalid Authorization header format")
				return
			}

			id, err := v.Verify(token)
			if err != nil {
				WriteError(w, http.StatusUnauthorized, "unauthorized", "invalid or expired token")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithOperator(r.Context(), id)))
		})
	}
}

// WithOperator stores id in ctx.
func WithOperator(ctx context.Context, id operator.Identity) context.Context {
	return context.WithValue(ctx, OperatorKey, id)
}

// OperatorFromContext extracts the authenticated operator
func OperatorFromContext(ctx context.Context) (operator.Identity, bool) {
	id, ok := ctx.Value(OperatorKey).(operator.Identity)
	return id, ok
}
