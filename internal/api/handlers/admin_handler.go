package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/markdave123-py/dsa-galaxy/internal/auth"
	"github.com/markdave123-py/dsa-galaxy/internal/services"
)

type AdminHandler struct {
	admin *services.AdminService
}

func NewAdminHandler(admin *services.AdminService) *AdminHandler {
	return &AdminHandler{admin: admin}
}

// Overview lists users (filtered by ?q= on email or name) and recent sessions.
func (h *AdminHandler) Overview(w http.ResponseWriter, r *http.Request) {
	out, err := h.admin.Overview(r.Context(), auth.UserIDFromContext(r.Context()), r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *AdminHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.admin.DeleteSession(r.Context(), auth.UserIDFromContext(r.Context()), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
