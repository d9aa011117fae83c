package handlers

import (
	"net/http"

	"relun-backend/internal/middleware"
	"relun-backend/internal/models"
	"relun-backend/internal/services"
)

// SwipeHandler handles swipe and discovery endpoints
type SwipeHandler struct {
	swipes     *services.SwipeService
	candidates *services.CandidateService
}

// NewSwipeHandler creates a new swipe handler
func NewSwipeHandler(swipes *services.SwipeService, candidates *services.CandidateService) *SwipeHandler {
	return &SwipeHandler{swipes: swipes, candidates: candidates}
}

// CreateSwipeRequest records a decision
type CreateSwipeRequest struct {
	TargetUserID string `json:"targetUserId" validate:"required"`
	SwipeType    string `json:"swipeType" validate:"required"`
}

// CreateSwipe handles POST /api/swipes
func (h *SwipeHandler) CreateSwipe(w http.ResponseWriter, r *http.Request) {
	var req CreateSwipeRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	decision, ok := services.ParseDecision(req.SwipeType)
	if !ok {
		respondError(w, "swipeType must be one of: like, pass, super_like", http.StatusBadRequest)
		return
	}

	result, err := h.swipes.RecordSwipe(r.Context(), middleware.GetUserID(r.Context()), req.TargetUserID, decision)
	if err != nil {
		respondServiceError(w, err, "Failed to create swipe")
		return
	}
	respondJSON(w, http.StatusCreated, result)
}

// ListSwipes handles GET /api/swipes
func (h *SwipeHandler) ListSwipes(w http.ResponseWriter, r *http.Request) {
	page, limit := pageParams(r, 20)
	swipes, pagination, err := h.swipes.ListSwipes(r.Context(), middleware.GetUserID(r.Context()),
		r.URL.Query().Get("swipeType"), page, limit)
	if err != nil {
		respondServiceError(w, err, "Failed to get swipes")
		return
	}

	respondJSON(w, http.StatusOK, struct {
		Swipes     []*models.Swipe   `json:"swipes"`
		Pagination models.Pagination `json:"pagination"`
	}{swipes, pagination})
}

// PotentialMatches handles GET /api/swipes/potential
func (h *SwipeHandler) PotentialMatches(w http.ResponseWriter, r *http.Request) {
	candidates, err := h.candidates.GetCandidates(r.Context(), middleware.GetUserID(r.Context()), queryInt(r, "limit", 0))
	if err != nil {
		respondServiceError(w, err, "Failed to get potential matches")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"users": candidates})
}
