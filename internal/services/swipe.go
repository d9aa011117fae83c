package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"relun-backend/internal/models"
	"relun-backend/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ParseDecision accepts the stored decision names and their client aliases
func ParseDecision(s string) (models.Decision, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "like":
		return models.DecisionLike, true
	case "pass", "dislike":
		return models.DecisionPass, true
	case "super_like", "superlike", "super-like":
		return models.DecisionSuperLike, true
	}
	return "", false
}

// SwipeResult is the outcome of recording a swipe
type SwipeResult struct {
	Swipe   *models.Swipe `json:"swipe"`
	IsMatch bool          `json:"isMatch"`
	Match   *models.Match `json:"match,omitempty"`
}

// SwipeService records decisions in the ledger
type SwipeService struct {
	tx      Transactor
	users   UserStore
	swipes  SwipeStore
	matches *MatchService
	metrics Recorder
	now     func() time.Time
}

// NewSwipeService creates a new swipe service
func NewSwipeService(tx Transactor, users UserStore, swipes SwipeStore, matches *MatchService, metrics Recorder) *SwipeService {
	return &SwipeService{
		tx:      tx,
		users:   users,
		swipes:  swipes,
		matches: matches,
		metrics: metrics,
		now:     time.Now,
	}
}

// RecordSwipe appends actor's decision about target and runs the
// reciprocity check in the same transaction. Both sides of a pair serialize
// on one lock, so simultaneous mutual likes produce exactly one match.
func (s *SwipeService) RecordSwipe(ctx context.Context, actorID, targetID string, raw models.Decision) (*SwipeResult, error) {
	if targetID == "" {
		return nil, validationError("target user is required")
	}
	if actorID == targetID {
		return nil, ErrSelfSwipe
	}
	decision, ok := ParseDecision(string(raw))
	if !ok {
		return nil, validationError("invalid swipe type %q", raw)
	}

	target, err := s.users.GetByID(ctx, targetID)
	if err != nil {
		return nil, storeError(err, "user")
	}
	if !target.IsActive {
		return nil, notFoundError("user")
	}

	swipe := &models.Swipe{
		ID:        uuid.New().String(),
		ActorID:   actorID,
		TargetID:  targetID,
		Decision:  decision,
		CreatedAt: s.now(),
	}

	var (
		match   *models.Match
		created bool
	)
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.tx.Lock(ctx, pairLockKey(actorID, targetID)); err != nil {
			return storeError(err, "swipe")
		}
		if err := s.swipes.Create(ctx, swipe); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return ErrAlreadySwiped
			}
			return storeError(err, "swipe")
		}

		var err error
		match, created, err = s.matches.OnSwipeRecorded(ctx, actorID, targetID, decision)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.metrics.SwipeRecorded(string(decision))
	log.Debug().
		Str("user_id", actorID).
		Str("target_id", targetID).
		Str("decision", string(decision)).
		Msg("Swipe recorded")

	if created {
		s.matches.Announce(ctx, match)
	}
	return &SwipeResult{Swipe: swipe, IsMatch: match != nil, Match: match}, nil
}

// ListSwipes returns a page of the actor's own decisions, newest first. An
// unknown filter is ignored.
func (s *SwipeService) ListSwipes(ctx context.Context, actorID, filter string, page, limit int) ([]*models.Swipe, models.Pagination, error) {
	page, limit = normalizePage(page, limit)
	decision, ok := ParseDecision(filter)
	if !ok {
		decision = ""
	}
	swipes, total, err := s.swipes.ListByActor(ctx, actorID, decision, limit, (page-1)*limit)
	if err != nil {
		return nil, models.Pagination{}, storeError(err, "swipes")
	}
	return swipes, models.NewPagination(page, limit, total), nil
}
