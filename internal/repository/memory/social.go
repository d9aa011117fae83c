package memory

import (
	"cmp"
	"context"
	"slices"
	"time"

	"relun-backend/internal/models"
)

// PhotoRepository is the in-memory photo table
type PhotoRepository struct {
	s *Store
}

// Create creates a new photo
func (r *PhotoRepository) Create(ctx context.Context, photo *models.Photo) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.t.users[photo.UserID]; !ok {
		return notFound("user")
	}
	if _, ok := r.s.t.photos[photo.ID]; ok {
		return duplicate("photos_pkey")
	}
	put(ctx, r.s.t.photos, photo.ID, *photo)
	return nil
}

// CountByUser returns how many photos a user has
func (r *PhotoRepository) CountByUser(_ context.Context, userID string) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	n := 0
	for _, p := range r.s.t.photos {
		if p.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (r *PhotoRepository) listLocked(userID string) []*models.Photo {
	photos := []*models.Photo{}
	for _, p := range r.s.t.photos {
		if p.UserID == userID {
			photos = append(photos, &p)
		}
	}
	slices.SortFunc(photos, func(a, b *models.Photo) int {
		if c := cmp.Compare(a.Position, b.Position); c != 0 {
			return c
		}
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return photos
}

// ListByUser returns a user's photos in gallery order
func (r *PhotoRepository) ListByUser(_ context.Context, userID string) ([]*models.Photo, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.listLocked(userID), nil
}

// GetForUser retrieves a photo owned by userID
func (r *PhotoRepository) GetForUser(_ context.Context, id, userID string) (*models.Photo, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	p, ok := r.s.t.photos[id]
	if !ok || p.UserID != userID {
		return nil, notFound("photo")
	}
	return &p, nil
}

// Delete deletes a photo by ID
func (r *PhotoRepository) Delete(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.t.photos[id]; !ok {
		return notFound("photo")
	}
	del(ctx, r.s.t.photos, id)
	return nil
}

// Resequence renumbers a user's photos to 0..n-1 keeping their relative order
func (r *PhotoRepository) Resequence(ctx context.Context, userID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for i, p := range r.listLocked(userID) {
		p.Position = i
		put(ctx, r.s.t.photos, p.ID, *p)
	}
	return nil
}

// SwipeRepository is the in-memory swipe ledger
type SwipeRepository struct {
	s *Store
}

func swipeKey(actorID, targetID string) string {
	return actorID + "\x00" + targetID
}

// Create appends a swipe
func (r *SwipeRepository) Create(ctx context.Context, swipe *models.Swipe) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.t.users[swipe.TargetID]; !ok {
		return notFound("user")
	}
	key := swipeKey(swipe.ActorID, swipe.TargetID)
	if _, ok := r.s.t.swipes[key]; ok {
		return duplicate("swipes_actor_target_key")
	}
	put(ctx, r.s.t.swipes, key, *swipe)
	return nil
}

// HasPositive reports whether actor liked or super-liked target
func (r *SwipeRepository) HasPositive(_ context.Context, actorID, targetID string) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	sw, ok := r.s.t.swipes[swipeKey(actorID, targetID)]
	return ok && sw.Decision.Positive(), nil
}

// ListByActor returns a page of the actor's swipes, newest first
func (r *SwipeRepository) ListByActor(_ context.Context, actorID string, decision models.Decision, limit, offset int) ([]*models.Swipe, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	all := []*models.Swipe{}
	for _, sw := range r.s.t.swipes {
		if sw.ActorID != actorID || (decision != "" && sw.Decision != decision) {
			continue
		}
		all = append(all, &sw)
	}
	slices.SortFunc(all, func(a, b *models.Swipe) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return page(all, limit, offset), len(all), nil
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return items[:0]
	}
	end := min(offset+limit, len(items))
	return items[offset:end]
}

// MatchRepository is the in-memory match table
type MatchRepository struct {
	s *Store
}

// CreateIfAbsent inserts the match unless its canonical pair already exists
func (r *MatchRepository) CreateIfAbsent(ctx context.Context, match *models.Match) (*models.Match, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, m := range r.s.t.matches {
		if m.User1ID == match.User1ID && m.User2ID == match.User2ID {
			return &m, false, nil
		}
	}
	put(ctx, r.s.t.matches, match.ID, *match)
	stored := *match
	return &stored, true, nil
}

// GetByID retrieves a match by ID
func (r *MatchRepository) GetByID(_ context.Context, id string) (*models.Match, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	m, ok := r.s.t.matches[id]
	if !ok {
		return nil, notFound("match")
	}
	return &m, nil
}

// ListByUser returns every match of userID, newest first
func (r *MatchRepository) ListByUser(_ context.Context, userID string) ([]*models.Match, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	matches := []*models.Match{}
	for _, m := range r.s.t.matches {
		if m.Has(userID) {
			matches = append(matches, &m)
		}
	}
	slices.SortFunc(matches, func(a, b *models.Match) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return matches, nil
}

// Delete deletes a match by ID
func (r *MatchRepository) Delete(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.t.matches[id]; !ok {
		return notFound("match")
	}
	del(ctx, r.s.t.matches, id)
	return nil
}

// MessageRepository is the in-memory message table
type MessageRepository struct {
	s *Store
}

// Create persists a message and assigns its sequence number
func (r *MessageRepository) Create(ctx context.Context, msg *models.Message) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.t.matches[msg.MatchID]; !ok {
		return notFound("match")
	}
	r.s.seq++
	msg.Seq = r.s.seq
	put(ctx, r.s.t.messages, msg.ID, *msg)
	return nil
}

// GetByID retrieves a message by ID
func (r *MessageRepository) GetByID(_ context.Context, id string) (*models.Message, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	m, ok := r.s.t.messages[id]
	if !ok {
		return nil, notFound("message")
	}
	return &m, nil
}

func (r *MessageRepository) byMatchLocked(matchID string) []*models.Message {
	msgs := []*models.Message{}
	for _, m := range r.s.t.messages {
		if m.MatchID == matchID {
			msgs = append(msgs, &m)
		}
	}
	slices.SortFunc(msgs, func(a, b *models.Message) int {
		return cmp.Compare(b.Seq, a.Seq)
	})
	return msgs
}

// ListByMatch returns a page of a match's messages, newest first
func (r *MessageRepository) ListByMatch(_ context.Context, matchID string, limit, offset int) ([]*models.Message, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	all := r.byMatchLocked(matchID)
	return page(all, limit, offset), len(all), nil
}

// LatestByMatch returns the most recent message of a match
func (r *MessageRepository) LatestByMatch(_ context.Context, matchID string) (*models.Message, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	all := r.byMatchLocked(matchID)
	if len(all) == 0 {
		return nil, notFound("message")
	}
	return all[0], nil
}

// MarkRead flags every unread message addressed to receiverID in a match
func (r *MessageRepository) MarkRead(ctx context.Context, matchID, receiverID string, at time.Time) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	n := 0
	for id, m := range r.s.t.messages {
		if m.MatchID == matchID && m.ReceiverID == receiverID && !m.IsRead {
			m.IsRead = true
			m.ReadAt = &at
			put(ctx, r.s.t.messages, id, m)
			n++
		}
	}
	return n, nil
}

// Delete deletes a message by ID
func (r *MessageRepository) Delete(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.t.messages[id]; !ok {
		return notFound("message")
	}
	del(ctx, r.s.t.messages, id)
	return nil
}

// DeleteByMatch removes every message of a match
func (r *MessageRepository) DeleteByMatch(ctx context.Context, matchID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for id, m := range r.s.t.messages {
		if m.MatchID == matchID {
			del(ctx, r.s.t.messages, id)
		}
	}
	return nil
}

// CountUnread counts unread messages addressed to receiverID
func (r *MessageRepository) CountUnread(_ context.Context, receiverID string) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	n := 0
	for _, m := range r.s.t.messages {
		if m.ReceiverID == receiverID && !m.IsRead {
			n++
		}
	}
	return n, nil
}
