package cmd

import (
	"context"
	"fmt"

	"relun-backend/internal/config"
	"relun-backend/internal/repository"
	"relun-backend/internal/repository/memory"
	"relun-backend/internal/services"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// backend is the persistence layer the services run against
type backend struct {
	db            services.Transactor
	pinger        interface{ Ping(context.Context) error }
	users         services.UserStore
	profiles      services.ProfileStore
	photos        services.PhotoStore
	swipes        services.SwipeStore
	matches       services.MatchStore
	messages      services.MessageStore
	refreshTokens services.RefreshTokenStore
	candidates    services.CandidateStore
	close         func()
}

func (b *backend) Ping(ctx context.Context) error {
	return b.pinger.Ping(ctx)
}

// newMemoryBackend keeps everything in process memory
func newMemoryBackend() *backend {
	s := memory.New()
	return &backend{
		db:            s,
		pinger:        s,
		users:         s.Users(),
		profiles:      s.Profiles(),
		photos:        s.Photos(),
		swipes:        s.Swipes(),
		matches:       s.Matches(),
		messages:      s.Messages(),
		refreshTokens: s.RefreshTokens(),
		candidates:    s.Candidates(),
		close:         func() {},
	}
}

// newPostgresBackend connects the pool and optionally migrates the schema
func newPostgresBackend(ctx context.Context, cfg config.DatabaseConfig) (*backend, error) {
	dsn := cfg.DSN()
	if cfg.AutoMigrate {
		if err := repository.Migrate(dsn); err != nil {
			return nil, err
		}
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	log.Info().Msg("Database connection established")

	db := repository.NewDB(pool)
	return &backend{
		db:            db,
		pinger:        db,
		users:         repository.NewUserRepository(db),
		profiles:      repository.NewProfileRepository(db),
		photos:        repository.NewPhotoRepository(db),
		swipes:        repository.NewSwipeRepository(db),
		matches:       repository.NewMatchRepository(db),
		messages:      repository.NewMessageRepository(db),
		refreshTokens: repository.NewRefreshTokenRepository(db),
		candidates:    repository.NewCandidateRepository(db),
		close:         pool.Close,
	}, nil
}
