// Package memory is an in-process implementation of every repository. It
// enforces the same uniqueness rules as the SQL schema and is used for local
// development and tests.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"relun-backend/internal/models"
	"relun-backend/internal/repository"
)

type txKey struct{}

// Store holds all tables. Transactions are serialized by txMu; each one keeps
// an undo log of the rows it wrote so a rollback restores only those rows.
type Store struct {
	txMu sync.Mutex
	mu   sync.RWMutex
	seq  int64
	t    tables
}

type tables struct {
	users         map[string]models.User
	profiles      map[string]models.Profile
	photos        map[string]models.Photo
	swipes        map[string]models.Swipe
	matches       map[string]models.Match
	messages      map[string]models.Message
	refreshTokens map[string]models.RefreshToken
}

// New creates an empty store
func New() *Store {
	return &Store{t: tables{
		users:         map[string]models.User{},
		profiles:      map[string]models.Profile{},
		photos:        map[string]models.Photo{},
		swipes:        map[string]models.Swipe{},
		matches:       map[string]models.Match{},
		messages:      map[string]models.Message{},
		refreshTokens: map[string]models.RefreshToken{},
	}}
}

// undoLog restores the prior state of every row a transaction wrote
type undoLog struct {
	steps []func()
}

func (u *undoLog) rollback() {
	for i := len(u.steps) - 1; i >= 0; i-- {
		u.steps[i]()
	}
}

// remember records m[key] in the transaction bound to ctx, if any. s.mu must
// be held for writing.
func remember[V any](ctx context.Context, m map[string]V, key string) {
	undo, ok := ctx.Value(txKey{}).(*undoLog)
	if !ok {
		return
	}
	prev, existed := m[key]
	undo.steps = append(undo.steps, func() {
		if existed {
			m[key] = prev
		} else {
			delete(m, key)
		}
	})
}

// put writes a row. s.mu must be held for writing.
func put[V any](ctx context.Context, m map[string]V, key string, v V) {
	remember(ctx, m, key)
	m[key] = v
}

// del removes a row. s.mu must be held for writing.
func del[V any](ctx context.Context, m map[string]V, key string) {
	remember(ctx, m, key)
	delete(m, key)
}

// WithinTx runs fn atomically with respect to other transactions. Writes made
// outside any transaction are never undone by a rollback.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*undoLog); ok {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	undo := &undoLog{}
	if err := fn(context.WithValue(ctx, txKey{}, undo)); err != nil {
		s.mu.Lock()
		undo.rollback()
		s.mu.Unlock()
		return err
	}
	return nil
}

// Lock is satisfied by the transaction itself since transactions never overlap
func (s *Store) Lock(ctx context.Context, key string) error {
	if ctx.Value(txKey{}) == nil {
		return fmt.Errorf("advisory lock %q requires a transaction", key)
	}
	return nil
}

// Ping always succeeds
func (s *Store) Ping(context.Context) error {
	return nil
}

// Users returns the user repository
func (s *Store) Users() *UserRepository { return &UserRepository{s: s} }

// Profiles returns the profile repository
func (s *Store) Profiles() *ProfileRepository { return &ProfileRepository{s: s} }

// Photos returns the photo repository
func (s *Store) Photos() *PhotoRepository { return &PhotoRepository{s: s} }

// Swipes returns the swipe repository
func (s *Store) Swipes() *SwipeRepository { return &SwipeRepository{s: s} }

// Matches returns the match repository
func (s *Store) Matches() *MatchRepository { return &MatchRepository{s: s} }

// Messages returns the message repository
func (s *Store) Messages() *MessageRepository { return &MessageRepository{s: s} }

// RefreshTokens returns the refresh token repository
func (s *Store) RefreshTokens() *RefreshTokenRepository { return &RefreshTokenRepository{s: s} }

// Candidates returns the candidate repository
func (s *Store) Candidates() *CandidateRepository { return &CandidateRepository{s: s} }

func cloneProfile(p models.Profile) models.Profile {
	p.Interests = slices.Clone(p.Interests)
	if p.Interests == nil {
		p.Interests = []string{}
	}
	if p.Location != nil {
		loc := *p.Location
		p.Location = &loc
	}
	if p.HeightCm != nil {
		h := *p.HeightCm
		p.HeightCm = &h
	}
	return p
}

func notFound(what string) error {
	return fmt.Errorf("%w: %s", repository.ErrNotFound, what)
}

func duplicate(what string) error {
	return fmt.Errorf("%w: %s", repository.ErrDuplicate, what)
}
