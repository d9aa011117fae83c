package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"relun-backend/internal/geo"
	"relun-backend/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// newTestDB starts a throwaway PostgreSQL container and applies the schema
func newTestDB(t *testing.T) *DB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping PostgreSQL integration test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("relun_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "failed to start PostgreSQL container")
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, Migrate(dsn))
	// a second run is a no-op
	require.NoError(t, Migrate(dsn))

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	db := NewDB(pool)
	require.NoError(t, db.Ping(ctx))
	return db
}

func createUser(t *testing.T, db *DB, email string, loc *models.GeoPoint) *models.User {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)
	u := &models.User{
		ID:        uuid.New().String(),
		Email:     &email,
		FullName:  email,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, NewUserRepository(db).Create(ctx, u))
	require.NoError(t, NewProfileRepository(db).Create(ctx, &models.Profile{
		UserID:       u.ID,
		Interests:    []string{"hiking"},
		Segment:      models.SegmentRelationship,
		Location:     loc,
		IsVisible:    true,
		ShowAge:      true,
		ShowDistance: true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}))
	return u
}

func TestPostgresRepositories(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	users := NewUserRepository(db)
	profiles := NewProfileRepository(db)
	swipes := NewSwipeRepository(db)
	matches := NewMatchRepository(db)
	messages := NewMessageRepository(db)
	candidates := NewCandidateRepository(db)

	amsterdam := &models.GeoPoint{Latitude: 52.3676, Longitude: 4.9041}
	utrecht := &models.GeoPoint{Latitude: 52.0907, Longitude: 5.1214}
	paris := &models.GeoPoint{Latitude: 48.8566, Longitude: 2.3522}

	a := createUser(t, db, "a@example.com", amsterdam)
	b := createUser(t, db, "b@example.com", utrecht)
	c := createUser(t, db, "c@example.com", paris)

	t.Run("users", func(t *testing.T) {
		got, err := users.GetByEmail(ctx, "a@example.com")
		require.NoError(t, err)
		assert.Equal(t, a.ID, got.ID)

		dup := *a
		dup.ID = uuid.New().String()
		assert.ErrorIs(t, users.Create(ctx, &dup), ErrDuplicate)

		_, err = users.GetByID(ctx, uuid.New().String())
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = users.GetByID(ctx, "not-a-uuid")
		assert.ErrorIs(t, err, ErrNotFound)

		require.NoError(t, users.TouchLastActive(ctx, a.ID, time.Now()))
		got, err = users.GetByID(ctx, a.ID)
		require.NoError(t, err)
		assert.NotNil(t, got.LastActiveAt)
	})

	t.Run("profiles", func(t *testing.T) {
		p, err := profiles.GetByUserID(ctx, b.ID)
		require.NoError(t, err)
		require.NotNil(t, p.Location)
		assert.InDelta(t, utrecht.Latitude, p.Location.Latitude, 1e-9)
		assert.Equal(t, []string{"hiking"}, p.Interests)
	})

	t.Run("swipes", func(t *testing.T) {
		s := &models.Swipe{ID: uuid.New().String(), ActorID: a.ID, TargetID: b.ID, Decision: models.DecisionLike, CreatedAt: time.Now()}
		require.NoError(t, swipes.Create(ctx, s))

		again := *s
		again.ID = uuid.New().String()
		assert.ErrorIs(t, swipes.Create(ctx, &again), ErrDuplicate)

		ok, err := swipes.HasPositive(ctx, a.ID, b.ID)
		require.NoError(t, err)
		assert.True(t, ok)
		ok, err = swipes.HasPositive(ctx, b.ID, a.ID)
		require.NoError(t, err)
		assert.False(t, ok)

		list, total, err := swipes.ListByActor(ctx, a.ID, "", 10, 0)
		require.NoError(t, err)
		assert.Equal(t, 1, total)
		assert.Len(t, list, 1)
	})

	t.Run("candidates", func(t *testing.T) {
		origin := geo.Point{Lat: amsterdam.Latitude, Lon: amsterdam.Longitude}
		found, err := candidates.FindCandidates(ctx, CandidateQuery{
			UserID:       c.ID,
			Origin:       &origin,
			RadiusMeters: 50_000,
			Limit:        10,
		})
		require.NoError(t, err)
		ids := make([]string, 0, len(found))
		for _, f := range found {
			ids = append(ids, f.User.ID)
		}
		// c is in Paris but the query is centred on Amsterdam
		assert.Equal(t, []string{a.ID, b.ID}, ids)
		require.NotNil(t, found[1].DistanceKm)
		assert.InDelta(t, 34.5, *found[1].DistanceKm, 2)

		// a already swiped b
		found, err = candidates.FindCandidates(ctx, CandidateQuery{
			UserID:       a.ID,
			Origin:       &origin,
			RadiusMeters: 50_000,
			Limit:        10,
		})
		require.NoError(t, err)
		assert.Empty(t, found)
	})

	t.Run("matches and messages", func(t *testing.T) {
		u1, u2 := a.ID, b.ID
		if u2 < u1 {
			u1, u2 = u2, u1
		}
		m := &models.Match{ID: uuid.New().String(), User1ID: u1, User2ID: u2, CreatedAt: time.Now()}
		stored, created, err := matches.CreateIfAbsent(ctx, m)
		require.NoError(t, err)
		assert.True(t, created)

		second := &models.Match{ID: uuid.New().String(), User1ID: u1, User2ID: u2, CreatedAt: time.Now()}
		existing, created, err := matches.CreateIfAbsent(ctx, second)
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, stored.ID, existing.ID)

		for _, text := range []string{"one", "two", "three"} {
			require.NoError(t, messages.Create(ctx, &models.Message{
				ID:          uuid.New().String(),
				MatchID:     m.ID,
				SenderID:    a.ID,
				ReceiverID:  b.ID,
				Content:     text,
				MessageType: models.MessageText,
				CreatedAt:   time.Now(),
			}))
		}

		page, total, err := messages.ListByMatch(ctx, m.ID, 2, 0)
		require.NoError(t, err)
		assert.Equal(t, 3, total)
		require.Len(t, page, 2)
		assert.Equal(t, "three", page[0].Content)

		unread, err := messages.CountUnread(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, 3, unread)

		n, err := messages.MarkRead(ctx, m.ID, b.ID, time.Now())
		require.NoError(t, err)
		assert.Equal(t, 3, n)
		n, err = messages.MarkRead(ctx, m.ID, b.ID, time.Now())
		require.NoError(t, err)
		assert.Zero(t, n)

		require.NoError(t, matches.Delete(ctx, m.ID))
		_, err = matches.GetByID(ctx, m.ID)
		assert.ErrorIs(t, err, ErrNotFound)
		_, total, err = messages.ListByMatch(ctx, m.ID, 10, 0)
		require.NoError(t, err)
		assert.Zero(t, total)
	})

	t.Run("transactions", func(t *testing.T) {
		assert.Error(t, db.Lock(ctx, "outside"))

		boom := errors.New("boom")
		err := db.WithinTx(ctx, func(ctx context.Context) error {
			require.NoError(t, db.Lock(ctx, "swipe:"+a.ID+":"+c.ID))
			require.NoError(t, swipes.Create(ctx, &models.Swipe{
				ID: uuid.New().String(), ActorID: a.ID, TargetID: c.ID,
				Decision: models.DecisionPass, CreatedAt: time.Now(),
			}))
			return boom
		})
		assert.ErrorIs(t, err, boom)

		_, total, err := swipes.ListByActor(ctx, a.ID, models.DecisionPass, 10, 0)
		require.NoError(t, err)
		assert.Zero(t, total)
	})
}
