package services

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"relun-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeCompleteness(t *testing.T) {
	dob := time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC)
	user := &models.User{FullName: "Ann", DateOfBirth: &dob, Gender: models.GenderFemale, Email: strPtr("ann@example.com")}
	profile := &models.Profile{Bio: "hi", City: "Austin", Segment: models.SegmentFun}

	score, complete := ComputeCompleteness(user, profile)
	assert.Equal(t, 70, score)
	assert.False(t, complete)

	profile.Interests = []string{"climbing"}
	score, complete = ComputeCompleteness(user, profile)
	assert.Equal(t, 80, score)
	assert.True(t, complete)

	score, complete = ComputeCompleteness(&models.User{}, &models.Profile{})
	assert.Equal(t, 0, score)
	assert.False(t, complete)
}

func TestCompleteProfile(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	session := signIn(t, env, "erin@example.com")

	user, profile, err := env.profiles.CompleteProfile(ctx, session.User.ID, CompleteProfileInput{
		FullName:    "  Erin  ",
		DateOfBirth: time.Date(1994, 3, 2, 0, 0, 0, 0, time.UTC),
		Gender:      models.GenderFemale,
		Segment:     models.SegmentFun,
		Bio:         strPtr("coffee first"),
		Email:       "ignored@example.com",
		Phone:       "+15550200",
		Location:    &models.GeoPoint{Latitude: 30.27, Longitude: -97.74},
	})
	require.NoError(t, err)

	assert.Equal(t, "Erin", user.FullName)
	assert.Equal(t, "erin@example.com", *user.Email, "an existing email is kept")
	require.NotNil(t, user.Phone)
	assert.Equal(t, "+15550200", *user.Phone)
	assert.Equal(t, models.SegmentFun, profile.Segment)
	assert.Equal(t, 70, profile.CompletenessScore)
	assert.False(t, profile.IsComplete)
	require.NotNil(t, profile.Location)

	_, me, err := env.auth.Me(ctx, session.User.ID)
	require.NoError(t, err)
	assert.Equal(t, 70, me.CompletenessScore)
}

func TestCompleteProfileRejectsTakenPhone(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	taken := env.seedUser(t, "a1", nil)
	taken.Phone = strPtr("+15550300")
	require.NoError(t, env.store.Users().Update(ctx, taken))

	session := signIn(t, env, "frank@example.com")
	_, _, err := env.profiles.CompleteProfile(ctx, session.User.ID, CompleteProfileInput{
		FullName:    "Frank",
		DateOfBirth: time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC),
		Gender:      models.GenderMale,
		Segment:     models.SegmentRelationship,
		Phone:       "+15550300",
	})
	assert.ErrorIs(t, err, ErrConflict)

	user, _, err := env.auth.Me(ctx, session.User.ID)
	require.NoError(t, err)
	assert.Empty(t, user.FullName, "a failed completion changes nothing")
}

func TestCompleteProfileValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedUser(t, "a1", nil)
	valid := CompleteProfileInput{
		FullName:    "Ann",
		DateOfBirth: time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC),
		Gender:      models.GenderFemale,
		Segment:     models.SegmentRelationship,
	}

	tests := []struct {
		name   string
		mutate func(*CompleteProfileInput)
	}{
		{"missing name", func(in *CompleteProfileInput) { in.FullName = " " }},
		{"missing birth date", func(in *CompleteProfileInput) { in.DateOfBirth = time.Time{} }},
		{"future birth date", func(in *CompleteProfileInput) { in.DateOfBirth = time.Now().Add(48 * time.Hour) }},
		{"unknown gender", func(in *CompleteProfileInput) { in.Gender = "robot" }},
		{"unknown segment", func(in *CompleteProfileInput) { in.Segment = "friends" }},
		{"bad latitude", func(in *CompleteProfileInput) { in.Location = &models.GeoPoint{Latitude: 91} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid
			tt.mutate(&in)
			_, _, err := env.profiles.CompleteProfile(ctx, "a1", in)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestUpdateProfile(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedUser(t, "a1", nil)

	profile, err := env.profiles.Update(ctx, "a1", ProfileUpdate{
		Bio:        strPtr("hiking and books"),
		City:       strPtr("Denver"),
		LookingFor: strPtr("long term"),
		Interests:  []string{"Hiking", " books ", "hiking", ""},
		ShowAge:    new(bool),
		Location:   &models.GeoPoint{Latitude: 39.74, Longitude: -104.99},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"books", "hiking"}, profile.Interests)
	assert.False(t, profile.ShowAge)
	assert.True(t, profile.IsVisible, "omitted fields are untouched")
	// name, birth date, gender, email, bio, city, segment, lookingFor, interests
	assert.Equal(t, 90, profile.CompletenessScore)
	assert.True(t, profile.IsComplete)

	_, err = env.profiles.Update(ctx, "a1", ProfileUpdate{Bio: strPtr(strings.Repeat("x", 501))})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = env.profiles.Update(ctx, "a1", ProfileUpdate{Location: &models.GeoPoint{Latitude: 10, Longitude: 181}})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = env.profiles.Update(ctx, "missing", ProfileUpdate{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetPublicProfileHidesPrivateFields(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedUser(t, "a1", &models.GeoPoint{Latitude: 1, Longitude: 1})
	hide := false
	_, err := env.profiles.Update(ctx, "a1", ProfileUpdate{ShowAge: &hide})
	require.NoError(t, err)

	view, err := env.profiles.GetPublic(ctx, "a1")
	require.NoError(t, err)
	assert.Nil(t, view.User.DateOfBirth)
	assert.Nil(t, view.Profile.Location)

	own, err := env.profiles.GetOwn(ctx, "a1")
	require.NoError(t, err)
	assert.NotNil(t, own.Location)
}

func jpeg(name string) PhotoUpload {
	return PhotoUpload{Filename: name, ContentType: "image/jpeg", Data: []byte("jpeg-bytes-" + name)}
}

func TestUploadPhotosEnforcesLimit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedUser(t, "a1", nil)

	photos, err := env.profiles.UploadPhotos(ctx, "a1", []PhotoUpload{jpeg("1"), jpeg("2"), jpeg("3"), jpeg("4")})
	require.NoError(t, err)
	require.Len(t, photos, 4)
	for i, p := range photos {
		assert.Equal(t, i, p.Position)
		assert.True(t, strings.HasPrefix(p.ObjectKey, "profiles/a1/"))
		assert.True(t, strings.HasSuffix(p.ObjectKey, ".jpg"))
	}

	photos, err = env.profiles.UploadPhotos(ctx, "a1", []PhotoUpload{jpeg("5"), jpeg("6")})
	require.NoError(t, err)
	assert.Equal(t, 4, photos[0].Position)
	assert.Equal(t, 5, photos[1].Position)

	_, err = env.profiles.UploadPhotos(ctx, "a1", []PhotoUpload{jpeg("7")})
	assert.ErrorIs(t, err, ErrPhotoLimit)

	n, err := env.store.Photos().CountByUser(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, MaxPhotos, n)
	assert.Equal(t, MaxPhotos, env.images.Len(), "a rejected upload leaves nothing behind")
}

func TestUploadPhotosValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedUser(t, "a1", nil)

	_, err := env.profiles.UploadPhotos(ctx, "a1", nil)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = env.profiles.UploadPhotos(ctx, "a1", []PhotoUpload{{Filename: "a.gif", ContentType: "image/gif", Data: []byte("x")}})
	assert.ErrorIs(t, err, ErrValidation)

	big := PhotoUpload{Filename: "big.png", ContentType: "image/png", Data: bytes.Repeat([]byte{1}, MaxPhotoBytes+1)}
	_, err = env.profiles.UploadPhotos(ctx, "a1", []PhotoUpload{big})
	assert.ErrorIs(t, err, ErrValidation)

	assert.Zero(t, env.images.Len())
}

func TestDeletePhotoResequences(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedUser(t, "a1", nil)
	env.seedUser(t, "b2", nil)

	photos, err := env.profiles.UploadPhotos(ctx, "a1", []PhotoUpload{jpeg("1"), jpeg("2"), jpeg("3"), jpeg("4")})
	require.NoError(t, err)

	err = env.profiles.DeletePhoto(ctx, "b2", photos[1].ID)
	assert.ErrorIs(t, err, ErrNotFound, "only the owner can delete")

	require.NoError(t, env.profiles.DeletePhoto(ctx, "a1", photos[1].ID))

	own, err := env.profiles.GetOwn(ctx, "a1")
	require.NoError(t, err)
	require.Len(t, own.Photos, 3)
	assert.Equal(t, []string{photos[0].ID, photos[2].ID, photos[3].ID},
		[]string{own.Photos[0].ID, own.Photos[1].ID, own.Photos[2].ID})
	for i, p := range own.Photos {
		assert.Equal(t, i, p.Position)
	}
	assert.Equal(t, 3, env.images.Len())
}
