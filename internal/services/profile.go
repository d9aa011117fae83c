package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"relun-backend/internal/geo"
	"relun-backend/internal/models"
	"relun-backend/internal/repository"

	"github.com/rs/zerolog/log"
)

const (
	maxBioLength   = 500
	maxInterests   = 20
	maxInterestLen = 50
)

var (
	validGenders  = []string{models.GenderMale, models.GenderFemale, models.GenderNonBinary, models.GenderOther}
	validSegments = []string{models.SegmentRelationship, models.SegmentFun}
)

// ProfileView is the caller's own profile with its gallery
type ProfileView struct {
	*models.Profile
	Photos []*models.Photo `json:"photos"`
}

// PublicProfile is another user's profile as shown to the caller
type PublicProfile struct {
	User    *models.PublicUser `json:"user"`
	Profile *models.Profile    `json:"profile"`
	Photos  []*models.Photo    `json:"photos"`
}

// ProfileUpdate is a partial profile edit; nil fields are left untouched
type ProfileUpdate struct {
	Bio            *string
	Occupation     *string
	Education      *string
	Company        *string
	School         *string
	City           *string
	State          *string
	Country        *string
	HeightCm       *int
	BodyType       *string
	Ethnicity      *string
	Drinking       *string
	Smoking        *string
	Religion       *string
	PoliticalViews *string
	LookingFor     *string
	Interests      []string
	Segment        *string
	Location       *models.GeoPoint
	IsVisible      *bool
	ShowAge        *bool
	ShowDistance   *bool
}

// CompleteProfileInput carries the onboarding form
type CompleteProfileInput struct {
	FullName    string
	DateOfBirth time.Time
	Gender      string
	Segment     string
	Bio         *string
	Email       string
	Phone       string
	Location    *models.GeoPoint
}

// ProfileService manages profiles and their photo galleries
type ProfileService struct {
	tx       Transactor
	users    UserStore
	profiles ProfileStore
	photos   PhotoStore
	images   ImageStore
	now      func() time.Time
}

// NewProfileService creates a new profile service
func NewProfileService(tx Transactor, users UserStore, profiles ProfileStore, photos PhotoStore, images ImageStore) *ProfileService {
	return &ProfileService{
		tx:       tx,
		users:    users,
		profiles: profiles,
		photos:   photos,
		images:   images,
		now:      time.Now,
	}
}

func validLocation(p *models.GeoPoint) error {
	if p != nil && !(geo.Point{Lat: p.Latitude, Lon: p.Longitude}).Valid() {
		return validationError("invalid location")
	}
	return nil
}

func oneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

// GetOwn returns the caller's profile and photos
func (s *ProfileService) GetOwn(ctx context.Context, userID string) (*ProfileView, error) {
	profile, err := s.profiles.GetByUserID(ctx, userID)
	if err != nil {
		return nil, storeError(err, "profile")
	}
	photos, err := s.photos.ListByUser(ctx, userID)
	if err != nil {
		return nil, storeError(err, "photos")
	}
	return &ProfileView{Profile: profile, Photos: photos}, nil
}

// GetPublic returns another user's public profile
func (s *ProfileService) GetPublic(ctx context.Context, userID string) (*PublicProfile, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, storeError(err, "user")
	}
	if !user.IsActive {
		return nil, notFoundError("user")
	}
	profile, err := s.profiles.GetByUserID(ctx, userID)
	if err != nil {
		return nil, storeError(err, "profile")
	}
	photos, err := s.photos.ListByUser(ctx, userID)
	if err != nil {
		return nil, storeError(err, "photos")
	}

	pub := user.Public()
	if !profile.ShowAge {
		pub.DateOfBirth = nil
	}
	profile.Location = nil
	return &PublicProfile{User: pub, Profile: profile, Photos: photos}, nil
}

// Update applies a partial edit and recomputes completeness
func (s *ProfileService) Update(ctx context.Context, userID string, in ProfileUpdate) (*models.Profile, error) {
	if in.Bio != nil && len([]rune(*in.Bio)) > maxBioLength {
		return nil, validationError("bio must be at most %d characters", maxBioLength)
	}
	if in.Segment != nil && !oneOf(*in.Segment, validSegments) {
		return nil, validationError("invalid segment")
	}
	if err := validLocation(in.Location); err != nil {
		return nil, err
	}
	if in.HeightCm != nil && (*in.HeightCm < 90 || *in.HeightCm > 260) {
		return nil, validationError("height must be between 90 and 260 cm")
	}
	var interests []string
	if in.Interests != nil {
		interests = normalizeInterests(in.Interests)
		if len(interests) > maxInterests {
			return nil, validationError("at most %d interests allowed", maxInterests)
		}
		for _, tag := range interests {
			if len(tag) > maxInterestLen {
				return nil, validationError("interest %q is too long", tag)
			}
		}
	}

	var profile *models.Profile
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		user, err := s.users.GetByID(ctx, userID)
		if err != nil {
			return storeError(err, "user")
		}
		profile, err = s.profiles.GetByUserID(ctx, userID)
		if err != nil {
			return storeError(err, "profile")
		}

		setString(&profile.Bio, in.Bio)
		setString(&profile.Occupation, in.Occupation)
		setString(&profile.Education, in.Education)
		setString(&profile.Company, in.Company)
		setString(&profile.School, in.School)
		setString(&profile.City, in.City)
		setString(&profile.State, in.State)
		setString(&profile.Country, in.Country)
		setString(&profile.BodyType, in.BodyType)
		setString(&profile.Ethnicity, in.Ethnicity)
		setString(&profile.Drinking, in.Drinking)
		setString(&profile.Smoking, in.Smoking)
		setString(&profile.Religion, in.Religion)
		setString(&profile.PoliticalViews, in.PoliticalViews)
		setString(&profile.LookingFor, in.LookingFor)
		setString(&profile.Segment, in.Segment)
		if in.HeightCm != nil {
			profile.HeightCm = in.HeightCm
		}
		if in.Interests != nil {
			profile.Interests = interests
		}
		if in.Location != nil {
			loc := *in.Location
			profile.Location = &loc
		}
		setBool(&profile.IsVisible, in.IsVisible)
		setBool(&profile.ShowAge, in.ShowAge)
		setBool(&profile.ShowDistance, in.ShowDistance)

		applyCompleteness(user, profile)
		profile.UpdatedAt = s.now()
		return storeError(s.profiles.Update(ctx, profile), "profile")
	})
	if err != nil {
		return nil, err
	}
	return profile, nil
}

// CompleteProfile fills the onboarding fields of both user and profile.
// Email and phone are only attached when the account has none yet.
func (s *ProfileService) CompleteProfile(ctx context.Context, userID string, in CompleteProfileInput) (*models.User, *models.Profile, error) {
	in.FullName = strings.TrimSpace(in.FullName)
	switch {
	case in.FullName == "":
		return nil, nil, validationError("full name is required")
	case in.DateOfBirth.IsZero() || in.DateOfBirth.After(s.now()):
		return nil, nil, validationError("valid date of birth is required")
	case !oneOf(in.Gender, validGenders):
		return nil, nil, validationError("invalid gender")
	case !oneOf(in.Segment, validSegments):
		return nil, nil, validationError("invalid segment")
	case in.Bio != nil && len([]rune(*in.Bio)) > maxBioLength:
		return nil, nil, validationError("bio must be at most %d characters", maxBioLength)
	}
	if err := validLocation(in.Location); err != nil {
		return nil, nil, err
	}
	email := strings.ToLower(strings.TrimSpace(in.Email))
	phone := strings.TrimSpace(in.Phone)

	var (
		user    *models.User
		profile *models.Profile
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		user, err = s.users.GetByID(ctx, userID)
		if err != nil {
			return storeError(err, "user")
		}

		if email != "" && user.Email == nil {
			if err := s.ensureUnused(ctx, s.users.GetByEmail, email, userID, "email"); err != nil {
				return err
			}
			user.Email = &email
		}
		if phone != "" && user.Phone == nil {
			if err := s.ensureUnused(ctx, s.users.GetByPhone, phone, userID, "phone"); err != nil {
				return err
			}
			user.Phone = &phone
		}

		dob := in.DateOfBirth
		user.FullName = in.FullName
		user.DateOfBirth = &dob
		user.Gender = in.Gender
		user.UpdatedAt = s.now()
		if err := s.users.Update(ctx, user); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return newError(ErrConflict, "email or phone already in use")
			}
			return storeError(err, "user")
		}

		profile, err = s.profiles.GetByUserID(ctx, userID)
		if err != nil {
			return storeError(err, "profile")
		}
		profile.Segment = in.Segment
		if in.Bio != nil {
			profile.Bio = *in.Bio
		}
		if in.Location != nil {
			loc := *in.Location
			profile.Location = &loc
		}
		applyCompleteness(user, profile)
		profile.UpdatedAt = s.now()
		return storeError(s.profiles.Update(ctx, profile), "profile")
	})
	if err != nil {
		return nil, nil, err
	}

	log.Info().Str("user_id", userID).Int("completeness", profile.CompletenessScore).Msg("Profile completed")
	return user, profile, nil
}

func (s *ProfileService) ensureUnused(ctx context.Context, lookup func(context.Context, string) (*models.User, error), value, userID, field string) error {
	other, err := lookup(ctx, value)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return nil
	case err != nil:
		return storeError(err, "user")
	case other.ID != userID:
		return newError(ErrConflict, "%s already in use", field)
	}
	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = strings.TrimSpace(*v)
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}
