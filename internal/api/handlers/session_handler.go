package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/markdave123-py/dsa-galaxy/internal/auth"
	"github.com/markdave123-py/dsa-galaxy/internal/services"
)

type SessionHandler struct {
	sessions *services.SessionService
	exports  *services.ExportService
}

func NewSessionHandler(sessions *services.SessionService, exports *services.ExportService) *SessionHandler {
	return &SessionHandler{sessions: sessions, exports: exports}
}

type sessionRequest struct {
	Title string `json:"title"`
}

func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	out, err := h.sessions.List(r.Context(), auth.UserIDFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if r.ContentLength != 0 {
		if err := decode(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
	}
	sess, err := h.sessions.Create(r.Context(), auth.UserIDFromContext(r.Context()), req.Title)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

func (h *SessionHandler) Rename(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	userID := auth.UserIDFromContext(r.Context())
	id := chi.URLParam(r, "id")
	if err := h.sessions.Rename(r.Context(), userID, id, req.Title); err != nil {
		writeError(w, r, err)
		return
	}
	sess, err := h.sessions.Get(r.Context(), userID, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Delete(r.Context(), auth.UserIDFromContext(r.Context()), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) Messages(w http.ResponseWriter, r *http.Request) {
	out, err := h.sessions.Messages(r.Context(), auth.UserIDFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// Export uploads the transcript; ?format=markdown (default) or html.
func (h *SessionHandler) Export(w http.ResponseWriter, r *http.Request) {
	out, err := h.exports.Export(r.Context(), auth.UserIDFromContext(r.Context()), chi.URLParam(r, "id"), r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (h *SessionHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := h.sessions.Dashboard(r.Context(), auth.UserIDFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
