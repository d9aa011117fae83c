package memory

import (
	"cmp"
	"context"
	"slices"

	"relun-backend/internal/geo"
	"relun-backend/internal/models"
	"relun-backend/internal/repository"
)

// CandidateRepository evaluates candidate queries over the in-memory tables
type CandidateRepository struct {
	s *Store
}

// FindCandidates returns at most q.Limit candidates
func (r *CandidateRepository) FindCandidates(_ context.Context, q repository.CandidateQuery) ([]*models.Candidate, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	type scored struct {
		c        *models.Candidate
		distance float64
		active   int64
	}
	var found []scored
	for id, u := range r.s.t.users {
		if id == q.UserID || !u.IsActive {
			continue
		}
		if _, seen := r.s.t.swipes[swipeKey(q.UserID, id)]; seen {
			continue
		}
		p, ok := r.s.t.profiles[id]
		if !ok || !p.IsVisible {
			continue
		}

		p = cloneProfile(p)
		item := scored{c: &models.Candidate{User: u.Public(), Profile: &p}}
		if u.LastActiveAt != nil {
			item.active = u.LastActiveAt.UnixNano()
		}
		if q.Origin != nil {
			if p.Location == nil {
				continue
			}
			d := geo.DistanceMeters(*q.Origin, geo.Point{Lat: p.Location.Latitude, Lon: p.Location.Longitude})
			if d > q.RadiusMeters {
				continue
			}
			km := d / 1000
			item.distance = d
			item.c.DistanceKm = &km
		}
		found = append(found, item)
	}

	slices.SortFunc(found, func(a, b scored) int {
		if q.Origin != nil {
			if c := cmp.Compare(a.distance, b.distance); c != 0 {
				return c
			}
		} else if c := cmp.Compare(b.active, a.active); c != 0 {
			return c
		}
		return cmp.Compare(a.c.User.ID, b.c.User.ID)
	})

	out := []*models.Candidate{}
	for _, item := range found {
		if len(out) == q.Limit {
			break
		}
		out = append(out, item.c)
	}
	return out, nil
}
