package repository

import (
	"context"
	"fmt"

	"relun-backend/internal/geo"
	"relun-backend/internal/models"

	"github.com/jackc/pgx/v5"
)

// CandidateQuery selects users that userID has not seen yet. When Origin is
// set only profiles within RadiusMeters of it qualify, nearest first.
type CandidateQuery struct {
	UserID       string
	Origin       *geo.Point
	RadiusMeters float64
	Limit        int
}

// CandidateRepository reads users, profiles and the swipe ledger together
type CandidateRepository struct {
	db *DB
}

// NewCandidateRepository creates a new candidate repository
func NewCandidateRepository(db *DB) *CandidateRepository {
	return &CandidateRepository{db: db}
}

const candidateFilter = `
	u.id <> $1
	AND u.is_active
	AND p.is_visible
	AND NOT EXISTS (SELECT 1 FROM swipes s WHERE s.actor_id = $1 AND s.target_id = u.id)
`

// FindCandidates returns at most q.Limit candidates
func (r *CandidateRepository) FindCandidates(ctx context.Context, q CandidateQuery) ([]*models.Candidate, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if q.Origin != nil {
		box := geo.BoundingBox(*q.Origin, q.RadiusMeters)
		query := `
			WITH nearby AS (
				SELECT p.user_id,
					2 * $4::float8 * asin(least(1, sqrt(
						power(sin(radians(p.latitude - $2::float8) / 2), 2) +
						cos(radians($2::float8)) * cos(radians(p.latitude)) *
						power(sin(radians(p.longitude - $3::float8) / 2), 2)
					))) AS distance
				FROM profiles p
				WHERE p.latitude BETWEEN $5 AND $6
					AND ($9::bool OR p.longitude BETWEEN $7 AND $8)
			)
			SELECT u.id, u.full_name, u.date_of_birth, u.gender, u.last_active_at, ` + profileColumns + `, n.distance
			FROM nearby n
			JOIN users u ON u.id = n.user_id
			JOIN profiles p ON p.user_id = n.user_id
			WHERE n.distance <= $10 AND ` + candidateFilter + `
			ORDER BY n.distance, u.id
			LIMIT $11
		`
		rows, err = r.db.conn(ctx).Query(ctx, query,
			q.UserID, q.Origin.Lat, q.Origin.Lon, geo.EarthRadiusMeters,
			box.MinLat, box.MaxLat, box.MinLon, box.MaxLon, box.WrapsLon,
			q.RadiusMeters, q.Limit,
		)
	} else {
		query := `
			SELECT u.id, u.full_name, u.date_of_birth, u.gender, u.last_active_at, ` + profileColumns + `, NULL::float8
			FROM users u
			JOIN profiles p ON p.user_id = u.id
			WHERE ` + candidateFilter + `
			ORDER BY u.last_active_at DESC NULLS LAST, u.id
			LIMIT $2
		`
		rows, err = r.db.conn(ctx).Query(ctx, query, q.UserID, q.Limit)
	}
	if err != nil {
		return nil, mapErr(fmt.Errorf("failed to query candidates: %w", err))
	}
	defer rows.Close()

	candidates := []*models.Candidate{}
	for rows.Next() {
		var (
			user     models.PublicUser
			profile  models.Profile
			distance *float64
		)
		profDest, finish := profileDest(&profile)
		dest := append([]any{&user.ID, &user.FullName, &user.DateOfBirth, &user.Gender, &user.LastActiveAt}, profDest...)
		dest = append(dest, &distance)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan candidate: %w", err)
		}
		finish()

		c := &models.Candidate{User: &user, Profile: &profile}
		if distance != nil {
			km := *distance / 1000
			c.DistanceKm = &km
		}
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating candidates: %w", err)
	}
	return candidates, nil
}
