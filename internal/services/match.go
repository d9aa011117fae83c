package services

import (
	"context"
	"errors"
	"time"

	"relun-backend/internal/models"
	"relun-backend/internal/notify"
	"relun-backend/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// MatchDeps wires MatchService
type MatchDeps struct {
	Tx       Transactor
	Users    UserStore
	Profiles ProfileStore
	Photos   PhotoStore
	Swipes   SwipeStore
	Matches  MatchStore
	Messages MessageStore
	Unread   UnreadCache
	Hub      *WSHub
	Pusher   Pusher
	Metrics  Recorder
}

// MatchService turns reciprocal swipes into matches and ends them
type MatchService struct {
	MatchDeps
}

// NewMatchService creates a new match service
func NewMatchService(deps MatchDeps) *MatchService {
	return &MatchService{MatchDeps: deps}
}

// CanonicalPair orders two user ids so every pair has one key
func CanonicalPair(a, b string) (string, string) {
	if a < b {
		return a, b
	}
	return b, a
}

// pairLockKey names the row lock shared by everything that changes the
// relationship between two users
func pairLockKey(a, b string) string {
	u1, u2 := CanonicalPair(a, b)
	return "pair:" + u1 + ":" + u2
}

// OnSwipeRecorded checks whether target already liked actor and, if so,
// creates the match. It must run inside the transaction that recorded the
// swipe, after the pair lock was taken. created is false when the match
// already existed.
func (s *MatchService) OnSwipeRecorded(ctx context.Context, actorID, targetID string, decision models.Decision) (match *models.Match, created bool, err error) {
	if !decision.Positive() {
		return nil, false, nil
	}

	reciprocal, err := s.Swipes.HasPositive(ctx, targetID, actorID)
	if err != nil {
		return nil, false, storeError(err, "swipe")
	}
	if !reciprocal {
		return nil, false, nil
	}

	user1, user2 := CanonicalPair(actorID, targetID)
	match, created, err = s.Matches.CreateIfAbsent(ctx, &models.Match{
		ID:        uuid.New().String(),
		User1ID:   user1,
		User2ID:   user2,
		CreatedAt: time.Now(),
	})
	if err != nil {
		return nil, false, storeError(err, "match")
	}
	return match, created, nil
}

// Announce tells both participants about a new match, by socket when online
// and by push otherwise
func (s *MatchService) Announce(ctx context.Context, match *models.Match) {
	s.Metrics.MatchCreated()
	log.Info().
		Str("match_id", match.ID).
		Str("user1_id", match.User1ID).
		Str("user2_id", match.User2ID).
		Msg("Match created")

	for _, userID := range []string{match.User1ID, match.User2ID} {
		otherID := match.Other(userID)
		event := WSMessage{
			Type:    EventMatchCreated,
			MatchID: match.ID,
			Data:    map[string]interface{}{"match": match, "otherUserId": otherID},
		}
		if s.Hub.EmitToUser(userID, event) > 0 {
			continue
		}
		s.push(ctx, userID, notify.Push{
			Title: "It's a match!",
			Body:  "You have a new match",
			Data:  map[string]string{"type": EventMatchCreated, "matchId": match.ID},
		})
	}
}

// push sends a notification to userID's device, if one is registered
func (s *MatchService) push(ctx context.Context, userID string, p notify.Push) {
	user, err := s.Users.GetByID(ctx, userID)
	if err != nil || user.PushToken == nil {
		return
	}
	if err := s.Pusher.Push(ctx, *user.PushToken, p); err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("Failed to send push notification")
	}
}

// participantMatch loads a match the user takes part in. Non-participants
// get ErrNotFound so existence does not leak.
func (s *MatchService) participantMatch(ctx context.Context, matchID, userID string) (*models.Match, error) {
	match, err := s.Matches.GetByID(ctx, matchID)
	if err != nil {
		return nil, storeError(err, "match")
	}
	if !match.Has(userID) {
		return nil, notFoundError("match")
	}
	return match, nil
}

// IsParticipant reports whether userID takes part in matchID
func (s *MatchService) IsParticipant(ctx context.Context, matchID, userID string) (bool, error) {
	_, err := s.participantMatch(ctx, matchID, userID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (s *MatchService) summarize(ctx context.Context, match *models.Match, userID string, allPhotos bool) (*models.MatchSummary, error) {
	otherID := match.Other(userID)
	other, err := s.Users.GetByID(ctx, otherID)
	if err != nil {
		return nil, storeError(err, "user")
	}
	summary := &models.MatchSummary{Match: match, OtherUser: other.Public()}

	profile, err := s.Profiles.GetByUserID(ctx, otherID)
	switch {
	case err == nil:
		profile.Location = nil
		summary.Profile = profile
		if !profile.ShowAge {
			summary.OtherUser.DateOfBirth = nil
		}
	case !errors.Is(err, repository.ErrNotFound):
		return nil, storeError(err, "profile")
	}

	photos, err := s.Photos.ListByUser(ctx, otherID)
	if err != nil {
		return nil, storeError(err, "photos")
	}
	if allPhotos {
		summary.Photos = photos
	} else if len(photos) > 0 {
		summary.Photo = photos[0]
	}

	last, err := s.Messages.LatestByMatch(ctx, match.ID)
	switch {
	case err == nil:
		summary.LastMessage = last
	case !errors.Is(err, repository.ErrNotFound):
		return nil, storeError(err, "message")
	}
	return summary, nil
}

// List returns a page of the caller's matches, newest first
func (s *MatchService) List(ctx context.Context, userID string, page, limit int) ([]*models.MatchSummary, models.Pagination, error) {
	page, limit = normalizePage(page, limit)
	matches, err := s.Matches.ListByUser(ctx, userID)
	if err != nil {
		return nil, models.Pagination{}, storeError(err, "matches")
	}
	total := len(matches)
	start := min((page-1)*limit, total)
	matches = matches[start:min(start+limit, total)]

	summaries := make([]*models.MatchSummary, 0, len(matches))
	for _, m := range matches {
		summary, err := s.summarize(ctx, m, userID, false)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, models.Pagination{}, err
		}
		summaries = append(summaries, summary)
	}
	return summaries, models.NewPagination(page, limit, total), nil
}

// Get returns one match with every photo of the other participant
func (s *MatchService) Get(ctx context.Context, matchID, userID string) (*models.MatchSummary, error) {
	match, err := s.participantMatch(ctx, matchID, userID)
	if err != nil {
		return nil, err
	}
	return s.summarize(ctx, match, userID, true)
}

// Unmatch ends a match and deletes its messages atomically
func (s *MatchService) Unmatch(ctx context.Context, matchID, userID string) error {
	return s.end(ctx, matchID, userID, "unmatch")
}

// Block ends a match the same way Unmatch does. The swipe ledger already
// prevents the pair from matching again.
func (s *MatchService) Block(ctx context.Context, matchID, userID string) error {
	return s.end(ctx, matchID, userID, "block")
}

func (s *MatchService) end(ctx context.Context, matchID, userID, reason string) error {
	var match *models.Match
	err := s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		match, err = s.participantMatch(ctx, matchID, userID)
		if err != nil {
			return err
		}
		if err := s.Tx.Lock(ctx, pairLockKey(match.User1ID, match.User2ID)); err != nil {
			return storeError(err, "match")
		}
		if err := s.Messages.DeleteByMatch(ctx, match.ID); err != nil {
			return storeError(err, "messages")
		}
		return storeError(s.Matches.Delete(ctx, match.ID), "match")
	})
	if err != nil {
		return err
	}

	if err := s.Unread.InvalidateUnread(ctx, match.User1ID, match.User2ID); err != nil {
		log.Warn().Err(err).Str("match_id", match.ID).Msg("Failed to invalidate unread counts")
	}

	event := WSMessage{Type: EventMatchRemoved, MatchID: match.ID, UserID: userID, Data: map[string]string{"reason": reason}}
	s.Hub.EmitToUser(match.User1ID, event)
	s.Hub.EmitToUser(match.User2ID, event)
	s.Hub.ClearRoom(MatchRoom(match.ID))

	log.Info().Str("match_id", match.ID).Str("user_id", userID).Str("reason", reason).Msg("Match ended")
	return nil
}
