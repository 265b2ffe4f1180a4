package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/markdave123-py/dsa-galaxy/internal/auth"
	"github.com/markdave123-py/dsa-galaxy/internal/models"
)

// AdminChecker decides whether a user may use the admin surface.
type AdminChecker interface {
	Authorize(ctx context.Context, userID string) error
}

// RequireAdmin lets only current admins through. Mount it after JWTMiddleware.
func RequireAdmin(checker AdminChecker) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := auth.UserIDFromContext(r.Context())
			err := checker.Authorize(r.Context(), userID)
			switch {
			case err == nil:
				next.ServeHTTP(w, r)
			case errors.Is(err, models.ErrUnauthenticated):
				WriteError(w, http.StatusUnauthorized, "Unauthorized")
			case errors.Is(err, models.ErrForbidden):
				slog.Warn("admin access denied", "user_id", userID, "path", r.URL.Path)
				WriteError(w, http.StatusForbidden, "Unauthorized: Admin access required")
			default:
				slog.Error("admin check failed", "user_id", userID, "error", err)
				WriteError(w, http.StatusInternalServerError, "Internal server error")
			}
		})
	}
}
