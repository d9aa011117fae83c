package handlers

import (
	"net/http"

	"relun-backend/internal/middleware"
	"relun-backend/internal/models"
	"relun-backend/internal/services"

	"github.com/go-chi/chi/v5"
)

// MatchHandler handles match endpoints
type MatchHandler struct {
	matches *services.MatchService
}

// NewMatchHandler creates a new match handler
func NewMatchHandler(matches *services.MatchService) *MatchHandler {
	return &MatchHandler{matches: matches}
}

// ListMatches handles GET /api/matches
func (h *MatchHandler) ListMatches(w http.ResponseWriter, r *http.Request) {
	page, limit := pageParams(r, 20)
	matches, pagination, err := h.matches.List(r.Context(), middleware.GetUserID(r.Context()), page, limit)
	if err != nil {
		respondServiceError(w, err, "Failed to get matches")
		return
	}

	respondJSON(w, http.StatusOK, struct {
		Matches    []*models.MatchSummary `json:"matches"`
		Pagination models.Pagination      `json:"pagination"`
	}{matches, pagination})
}

// GetMatch handles GET /api/matches/{id}
func (h *MatchHandler) GetMatch(w http.ResponseWriter, r *http.Request) {
	match, err := h.matches.Get(r.Context(), chi.URLParam(r, "id"), middleware.GetUserID(r.Context()))
	if err != nil {
		respondServiceError(w, err, "Failed to get match")
		return
	}
	respondJSON(w, http.StatusOK, match)
}

// Unmatch handles DELETE /api/matches/{id}
func (h *MatchHandler) Unmatch(w http.ResponseWriter, r *http.Request) {
	if err := h.matches.Unmatch(r.Context(), chi.URLParam(r, "id"), middleware.GetUserID(r.Context())); err != nil {
		respondServiceError(w, err, "Failed to unmatch")
		return
	}
	respondJSON(w, http.StatusOK, MessageResponse{Message: "Unmatched successfully"})
}

// Block handles POST /api/matches/{id}/block
func (h *MatchHandler) Block(w http.ResponseWriter, r *http.Request) {
	if err := h.matches.Block(r.Context(), chi.URLParam(r, "id"), middleware.GetUserID(r.Context())); err != nil {
		respondServiceError(w, err, "Failed to block user")
		return
	}
	respondJSON(w, http.StatusOK, MessageResponse{Message: "User blocked successfully"})
}
