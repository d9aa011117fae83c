package services

import (
	"context"

	"relun-backend/internal/geo"
	"relun-backend/internal/models"
	"relun-backend/internal/repository"
)

// CandidateService serves discovery batches
type CandidateService struct {
	profiles     ProfileStore
	candidates   CandidateStore
	radiusMeters float64
	defaultLimit int
	maxLimit     int
}

// NewCandidateService creates a new candidate service
func NewCandidateService(profiles ProfileStore, candidates CandidateStore, radiusKm float64, defaultLimit, maxLimit int) *CandidateService {
	return &CandidateService{
		profiles:     profiles,
		candidates:   candidates,
		radiusMeters: radiusKm * 1000,
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
	}
}

// GetCandidates returns users the caller has never swiped on. When the
// caller has a location only users within the radius qualify, nearest
// first, and an empty result is returned when nobody is close enough.
func (s *CandidateService) GetCandidates(ctx context.Context, userID string, limit int) ([]*models.Candidate, error) {
	if limit <= 0 {
		limit = s.defaultLimit
	}
	if limit > s.maxLimit {
		limit = s.maxLimit
	}

	profile, err := s.profiles.GetByUserID(ctx, userID)
	if err != nil {
		return nil, storeError(err, "profile")
	}

	q := repository.CandidateQuery{UserID: userID, Limit: limit}
	if profile.Location != nil {
		q.Origin = &geo.Point{Lat: profile.Location.Latitude, Lon: profile.Location.Longitude}
		q.RadiusMeters = s.radiusMeters
	}

	candidates, err := s.candidates.FindCandidates(ctx, q)
	if err != nil {
		return nil, storeError(err, "candidates")
	}

	for _, c := range candidates {
		if c.Profile == nil {
			continue
		}
		if !c.Profile.ShowAge {
			c.User.DateOfBirth = nil
		}
		if !c.Profile.ShowDistance {
			c.DistanceKm = nil
		}
		// exact coordinates are never shown to other users
		c.Profile.Location = nil
	}
	return candidates, nil
}
