package handlers

import (
	"net/http"

	"github.com/markdave123-py/dsa-galaxy/internal/auth"
	"github.com/markdave123-py/dsa-galaxy/internal/models"
	"github.com/markdave123-py/dsa-galaxy/internal/services"
)

type ChatHandler struct {
	chat *services.ChatService
}

func NewChatHandler(chat *services.ChatService) *ChatHandler {
	return &ChatHandler{chat: chat}
}

// SubmitTurn accepts {message, sessionId, chatHistory} and answers {response}.
func (h *ChatHandler) SubmitTurn(w http.ResponseWriter, r *http.Request) {
	var req models.ChatTurnRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	reply, err := h.chat.SubmitTurn(r.Context(), auth.UserIDFromContext(r.Context()), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, models.ChatTurnResponse{Response: reply})
}
