package repository

import (
	"context"
	"fmt"

	"relun-backend/internal/models"
)

const profileColumns = `p.user_id, p.bio, p.occupation, p.education, p.company, p.school,
	p.city, p.state, p.country, p.height_cm, p.body_type, p.ethnicity, p.drinking, p.smoking,
	p.religion, p.political_views, p.looking_for, p.interests, p.segment, p.latitude, p.longitude,
	p.is_visible, p.show_age, p.show_distance, p.is_complete, p.completeness_score,
	p.created_at, p.updated_at`

// ProfileRepository handles database operations for profiles
type ProfileRepository struct {
	db *DB
}

// NewProfileRepository creates a new profile repository
func NewProfileRepository(db *DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// profileDest returns scan targets for profileColumns and a func that
// finishes the profile once the row has been scanned
func profileDest(p *models.Profile) ([]any, func()) {
	var lat, lon *float64
	dest := []any{
		&p.UserID, &p.Bio, &p.Occupation, &p.Education, &p.Company, &p.School,
		&p.City, &p.State, &p.Country, &p.HeightCm, &p.BodyType, &p.Ethnicity, &p.Drinking, &p.Smoking,
		&p.Religion, &p.PoliticalViews, &p.LookingFor, &p.Interests, &p.Segment, &lat, &lon,
		&p.IsVisible, &p.ShowAge, &p.ShowDistance, &p.IsComplete, &p.CompletenessScore,
		&p.CreatedAt, &p.UpdatedAt,
	}
	return dest, func() {
		if lat != nil && lon != nil {
			p.Location = &models.GeoPoint{Latitude: *lat, Longitude: *lon}
		}
		if p.Interests == nil {
			p.Interests = []string{}
		}
	}
}

func profileArgs(p *models.Profile) []any {
	var lat, lon *float64
	if p.Location != nil {
		lat, lon = &p.Location.Latitude, &p.Location.Longitude
	}
	interests := p.Interests
	if interests == nil {
		interests = []string{}
	}
	return []any{
		p.UserID, p.Bio, p.Occupation, p.Education, p.Company, p.School,
		p.City, p.State, p.Country, p.HeightCm, p.BodyType, p.Ethnicity, p.Drinking, p.Smoking,
		p.Religion, p.PoliticalViews, p.LookingFor, interests, p.Segment, lat, lon,
		p.IsVisible, p.ShowAge, p.ShowDistance, p.IsComplete, p.CompletenessScore,
		p.CreatedAt, p.UpdatedAt,
	}
}

// Create creates a new profile
func (r *ProfileRepository) Create(ctx context.Context, profile *models.Profile) error {
	query := `
		INSERT INTO profiles (user_id, bio, occupation, education, company, school,
			city, state, country, height_cm, body_type, ethnicity, drinking, smoking,
			religion, political_views, looking_for, interests, segment, latitude, longitude,
			is_visible, show_age, show_distance, is_complete, completeness_score,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28)
	`
	if _, err := r.db.conn(ctx).Exec(ctx, query, profileArgs(profile)...); err != nil {
		return mapErr(fmt.Errorf("failed to create profile: %w", err))
	}
	return nil
}

// GetByUserID retrieves the profile owned by userID
func (r *ProfileRepository) GetByUserID(ctx context.Context, userID string) (*models.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles p WHERE p.user_id = $1`
	var profile models.Profile
	dest, finish := profileDest(&profile)
	if err := r.db.conn(ctx).QueryRow(ctx, query, userID).Scan(dest...); err != nil {
		return nil, mapErr(fmt.Errorf("failed to get profile: %w", err))
	}
	finish()
	return &profile, nil
}

// Update writes every profile column
func (r *ProfileRepository) Update(ctx context.Context, profile *models.Profile) error {
	query := `
		UPDATE profiles SET
			bio = $2, occupation = $3, education = $4, company = $5, school = $6,
			city = $7, state = $8, country = $9, height_cm = $10, body_type = $11,
			ethnicity = $12, drinking = $13, smoking = $14, religion = $15,
			political_views = $16, looking_for = $17, interests = $18, segment = $19,
			latitude = $20, longitude = $21, is_visible = $22, show_age = $23,
			show_distance = $24, is_complete = $25, completeness_score = $26,
			updated_at = $27
		WHERE user_id = $1
	`
	args := profileArgs(profile)
	// drop created_at, keep updated_at
	args = append(args[:26], args[27])
	result, err := r.db.conn(ctx).Exec(ctx, query, args...)
	if err != nil {
		return mapErr(fmt.Errorf("failed to update profile: %w", err))
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
