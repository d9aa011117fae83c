package handlers

import (
	"net/http"
	"time"

	"relun-backend/internal/middleware"
	"relun-backend/internal/models"
	"relun-backend/internal/services"

	"github.com/rs/zerolog/log"
)

// AuthHandler handles one-time code login and session endpoints
type AuthHandler struct {
	auth     *services.AuthService
	profiles *services.ProfileService
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(auth *services.AuthService, profiles *services.ProfileService) *AuthHandler {
	return &AuthHandler{auth: auth, profiles: profiles}
}

type contactRequest struct {
	Email string `json:"email" validate:"required_without=Phone,omitempty,email"`
	Phone string `json:"phone" validate:"required_without=Email,omitempty,min=6,max=20"`
}

// RequestOTPRequest starts a login
type RequestOTPRequest struct {
	contactRequest
}

// VerifyOTPRequest completes a login
type VerifyOTPRequest struct {
	contactRequest
	OTP string `json:"otp" validate:"required,len=6,numeric"`
}

// CompleteProfileRequest carries the onboarding form
type CompleteProfileRequest struct {
	FullName    string   `json:"fullName" validate:"required,max=100"`
	DateOfBirth string   `json:"dateOfBirth" validate:"required"`
	Gender      string   `json:"gender" validate:"required,oneof=male female non_binary other"`
	Segment     string   `json:"segment" validate:"required,oneof=relationship fun"`
	Bio         *string  `json:"bio" validate:"omitempty,max=500"`
	Email       string   `json:"email" validate:"omitempty,email"`
	Phone       string   `json:"phone" validate:"omitempty,min=6,max=20"`
	Latitude    *float64 `json:"latitude" validate:"required_with=Longitude,omitempty,gte=-90,lte=90"`
	Longitude   *float64 `json:"longitude" validate:"required_with=Latitude,omitempty,gte=-180,lte=180"`
}

// RefreshRequest exchanges a refresh token
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

// LogoutRequest optionally names the refresh token to drop
type LogoutRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// PushTokenRequest registers a device for pushes
type PushTokenRequest struct {
	PushToken string `json:"pushToken" validate:"max=200"`
}

// UserResponse is the caller's account with its profile
type UserResponse struct {
	*models.User
	Profile *models.Profile `json:"profile"`
}

// parseDate accepts RFC3339 timestamps and plain dates
func parseDate(s string) (time.Time, bool) {
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// RequestOTP handles POST /api/auth/request-otp
func (h *AuthHandler) RequestOTP(w http.ResponseWriter, r *http.Request) {
	var req RequestOTPRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	isNew, err := h.auth.RequestOTP(r.Context(), services.Contact{Email: req.Email, Phone: req.Phone})
	if err != nil {
		respondServiceError(w, err, "Failed to send OTP")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"message":   "OTP sent successfully",
		"isNewUser": isNew,
	})
}

// VerifyOTP handles POST /api/auth/verify-otp
func (h *AuthHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req VerifyOTPRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	session, err := h.auth.VerifyOTP(r.Context(), services.Contact{Email: req.Email, Phone: req.Phone}, req.OTP)
	if err != nil {
		respondServiceError(w, err, "Failed to verify OTP")
		return
	}
	respondJSON(w, http.StatusOK, session)
}

// CompleteProfile handles POST /api/auth/complete-profile
func (h *AuthHandler) CompleteProfile(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req CompleteProfileRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	dob, ok := parseDate(req.DateOfBirth)
	if !ok {
		respondError(w, "dateOfBirth must be a date", http.StatusBadRequest)
		return
	}

	in := services.CompleteProfileInput{
		FullName:    req.FullName,
		DateOfBirth: dob,
		Gender:      req.Gender,
		Segment:     req.Segment,
		Bio:         req.Bio,
		Email:       req.Email,
		Phone:       req.Phone,
	}
	if req.Latitude != nil && req.Longitude != nil {
		in.Location = &models.GeoPoint{Latitude: *req.Latitude, Longitude: *req.Longitude}
	}

	user, profile, err := h.profiles.CompleteProfile(r.Context(), userID, in)
	if err != nil {
		respondServiceError(w, err, "Failed to complete profile")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"user":       user,
		"profile":    profile,
		"isComplete": profile.IsComplete,
	})
}

// Me handles GET /api/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, profile, err := h.auth.Me(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		respondServiceError(w, err, "Failed to get user")
		return
	}
	respondJSON(w, http.StatusOK, UserResponse{User: user, Profile: profile})
}

// Refresh handles POST /api/auth/refresh
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	pair, err := h.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		respondServiceError(w, err, "Token refresh failed")
		return
	}
	respondJSON(w, http.StatusOK, pair)
}

// Logout handles POST /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req LogoutRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	claims := middleware.GetClaims(r.Context())
	if err := h.auth.Logout(r.Context(), claims, req.RefreshToken); err != nil {
		respondServiceError(w, err, "Failed to log out")
		return
	}
	respondJSON(w, http.StatusOK, MessageResponse{Message: "Logged out successfully"})
}

// UpdatePushToken handles PUT /api/auth/push-token
func (h *AuthHandler) UpdatePushToken(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req PushTokenRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	if err := h.auth.UpdatePushToken(r.Context(), userID, req.PushToken); err != nil {
		respondServiceError(w, err, "Failed to update push token")
		return
	}

	log.Debug().Str("user_id", userID).Bool("cleared", req.PushToken == "").Msg("Push token updated")
	respondJSON(w, http.StatusOK, MessageResponse{Message: "Push token updated"})
}
