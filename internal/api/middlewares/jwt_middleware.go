package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/markdave123-py/dsa-galaxy/internal/auth"
)

// JWTMiddleware verifies the bearer token and attaches its claims to the
// request context. Rejected requests never reach a handler or the store.
func JWTMiddleware(verifier auth.TokenVerifier) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				WriteError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}

			claims, err := verifier.Verify(strings.TrimSpace(strings.TrimPrefix(header, "Bearer ")))
			if err != nil {
				reason := "invalid"
				if errors.Is(err, auth.ErrExpiredToken) {
					reason = "expired"
				}
				slog.Warn("token rejected", "reason", reason, "path", r.URL.Path, "error", err)
				WriteError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}

			if slot := userSlotFrom(r.Context()); slot != nil {
				*slot = claims.UserID
			}
			next.ServeHTTP(w, r.WithContext(auth.WithClaims(r.Context(), claims)))
		})
	}
}
