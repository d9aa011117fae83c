package handlers

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"relun-backend/internal/middleware"
	"relun-backend/internal/models"
	"relun-backend/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

const photoFormField = "photos"

// ProfileHandler handles profile and photo endpoints
type ProfileHandler struct {
	profiles *services.ProfileService
}

// NewProfileHandler creates a new profile handler
func NewProfileHandler(profiles *services.ProfileService) *ProfileHandler {
	return &ProfileHandler{profiles: profiles}
}

// LocationRequest is a position in degrees
type LocationRequest struct {
	Latitude  float64 `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64 `json:"longitude" validate:"gte=-180,lte=180"`
}

// UpdateProfileRequest is a partial profile edit
type UpdateProfileRequest struct {
	Bio            *string          `json:"bio" validate:"omitempty,max=500"`
	Occupation     *string          `json:"occupation" validate:"omitempty,max=100"`
	Education      *string          `json:"education" validate:"omitempty,max=100"`
	Company        *string          `json:"company" validate:"omitempty,max=100"`
	School         *string          `json:"school" validate:"omitempty,max=100"`
	City           *string          `json:"city" validate:"omitempty,max=100"`
	State          *string          `json:"state" validate:"omitempty,max=100"`
	Country        *string          `json:"country" validate:"omitempty,max=100"`
	HeightCm       *int             `json:"heightCm" validate:"omitempty,gte=90,lte=260"`
	BodyType       *string          `json:"bodyType" validate:"omitempty,max=50"`
	Ethnicity      *string          `json:"ethnicity" validate:"omitempty,max=50"`
	Drinking       *string          `json:"drinking" validate:"omitempty,max=50"`
	Smoking        *string          `json:"smoking" validate:"omitempty,max=50"`
	Religion       *string          `json:"religion" validate:"omitempty,max=50"`
	PoliticalViews *string          `json:"politicalViews" validate:"omitempty,max=50"`
	LookingFor     *string          `json:"lookingFor" validate:"omitempty,max=100"`
	Interests      []string         `json:"interests" validate:"omitempty,max=20,dive,max=50"`
	Segment        *string          `json:"segment" validate:"omitempty,oneof=relationship fun"`
	Location       *LocationRequest `json:"location"`
	IsVisible      *bool            `json:"isVisible"`
	ShowAge        *bool            `json:"showAge"`
	ShowDistance   *bool            `json:"showDistance"`
}

// GetProfile handles GET /api/profiles
func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	view, err := h.profiles.GetOwn(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		respondServiceError(w, err, "Failed to get profile")
		return
	}
	respondJSON(w, http.StatusOK, view)
}

// UpdateProfile handles PUT /api/profiles
func (h *ProfileHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req UpdateProfileRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	in := services.ProfileUpdate{
		Bio:            req.Bio,
		Occupation:     req.Occupation,
		Education:      req.Education,
		Company:        req.Company,
		School:         req.School,
		City:           req.City,
		State:          req.State,
		Country:        req.Country,
		HeightCm:       req.HeightCm,
		BodyType:       req.BodyType,
		Ethnicity:      req.Ethnicity,
		Drinking:       req.Drinking,
		Smoking:        req.Smoking,
		Religion:       req.Religion,
		PoliticalViews: req.PoliticalViews,
		LookingFor:     req.LookingFor,
		Interests:      req.Interests,
		Segment:        req.Segment,
		IsVisible:      req.IsVisible,
		ShowAge:        req.ShowAge,
		ShowDistance:   req.ShowDistance,
	}
	if req.Location != nil {
		in.Location = &models.GeoPoint{Latitude: req.Location.Latitude, Longitude: req.Location.Longitude}
	}

	profile, err := h.profiles.Update(r.Context(), middleware.GetUserID(r.Context()), in)
	if err != nil {
		respondServiceError(w, err, "Failed to update profile")
		return
	}
	respondJSON(w, http.StatusOK, profile)
}

// UploadPhotos handles POST /api/profiles/photos
func (h *ProfileHandler) UploadPhotos(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, services.MaxPhotos*services.MaxPhotoBytes+(1<<20))
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		respondError(w, "Invalid multipart form", http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File[photoFormField]
	if len(files) == 0 {
		respondError(w, "No photos provided", http.StatusBadRequest)
		return
	}
	if len(files) > services.MaxPhotos {
		respondError(w, fmt.Sprintf("Maximum %d photos allowed", services.MaxPhotos), http.StatusBadRequest)
		return
	}

	uploads := make([]services.PhotoUpload, 0, len(files))
	for _, fh := range files {
		upload, err := readPhoto(fh)
		if err != nil {
			log.Error().Err(err).Str("user_id", userID).Str("filename", fh.Filename).Msg("Failed to read uploaded photo")
			respondError(w, "Failed to read photo", http.StatusBadRequest)
			return
		}
		uploads = append(uploads, upload)
	}

	photos, err := h.profiles.UploadPhotos(r.Context(), userID, uploads)
	if err != nil {
		respondServiceError(w, err, "Failed to upload photos")
		return
	}
	respondJSON(w, http.StatusCreated, map[string]interface{}{"photos": photos})
}

func readPhoto(fh *multipart.FileHeader) (services.PhotoUpload, error) {
	f, err := fh.Open()
	if err != nil {
		return services.PhotoUpload{}, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, services.MaxPhotoBytes+1))
	if err != nil {
		return services.PhotoUpload{}, err
	}
	contentType := fh.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	return services.PhotoUpload{Filename: fh.Filename, ContentType: contentType, Data: data}, nil
}

// DeletePhoto handles DELETE /api/profiles/photos/{id}
func (h *ProfileHandler) DeletePhoto(w http.ResponseWriter, r *http.Request) {
	if err := h.profiles.DeletePhoto(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "id")); err != nil {
		respondServiceError(w, err, "Failed to delete photo")
		return
	}
	respondJSON(w, http.StatusOK, MessageResponse{Message: "Photo deleted successfully"})
}

// GetUserProfile handles GET /api/profiles/{userId}
func (h *ProfileHandler) GetUserProfile(w http.ResponseWriter, r *http.Request) {
	view, err := h.profiles.GetPublic(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		respondServiceError(w, err, "Failed to get profile")
		return
	}
	respondJSON(w, http.StatusOK, view)
}
