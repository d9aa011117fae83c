package handlers

import (
	"net/http"

	"relun-backend/internal/middleware"
	"relun-backend/internal/models"
	"relun-backend/internal/services"

	"github.com/go-chi/chi/v5"
)

// ChatHandler handles the REST side of chat
type ChatHandler struct {
	chat *services.ChatService
}

// NewChatHandler creates a new chat handler
func NewChatHandler(chat *services.ChatService) *ChatHandler {
	return &ChatHandler{chat: chat}
}

// SendMessageRequest is a new chat message
type SendMessageRequest struct {
	Content     string `json:"content" validate:"required,max=5000"`
	MessageType string `json:"messageType" validate:"omitempty,oneof=text image video audio"`
}

// GetMessages handles GET /api/chat/{matchId}
func (h *ChatHandler) GetMessages(w http.ResponseWriter, r *http.Request) {
	page, limit := pageParams(r, 50)
	messages, pagination, err := h.chat.History(r.Context(), chi.URLParam(r, "matchId"),
		middleware.GetUserID(r.Context()), page, limit)
	if err != nil {
		respondServiceError(w, err, "Failed to get messages")
		return
	}

	respondJSON(w, http.StatusOK, struct {
		Messages   []*models.Message `json:"messages"`
		Pagination models.Pagination `json:"pagination"`
	}{messages, pagination})
}

// SendMessage handles POST /api/chat/{matchId}
func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req SendMessageRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	msg, err := h.chat.Send(r.Context(), chi.URLParam(r, "matchId"), middleware.GetUserID(r.Context()),
		req.Content, req.MessageType, services.ChannelREST)
	if err != nil {
		respondServiceError(w, err, "Failed to send message")
		return
	}
	respondJSON(w, http.StatusCreated, msg)
}

// DeleteMessage handles DELETE /api/chat/{matchId}/{messageId}
func (h *ChatHandler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	err := h.chat.DeleteMessage(r.Context(), chi.URLParam(r, "matchId"), chi.URLParam(r, "messageId"),
		middleware.GetUserID(r.Context()))
	if err != nil {
		respondServiceError(w, err, "Failed to delete message")
		return
	}
	respondJSON(w, http.StatusOK, MessageResponse{Message: "Message deleted successfully"})
}

// UnreadCount handles GET /api/chat/unread/count
func (h *ChatHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	n, err := h.chat.UnreadCount(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		respondServiceError(w, err, "Failed to get unread count")
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"unreadCount": n})
}
