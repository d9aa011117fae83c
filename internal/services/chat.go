package services

import (
	"context"
	"hash/fnv"
	"slices"
	"strings"
	"sync"
	"time"

	"relun-backend/internal/models"
	"relun-backend/internal/notify"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	maxMessageLength = 5000
	chatLockStripes  = 64
)

// Message delivery channels, used as metric labels
const (
	ChannelSocket = "socket"
	ChannelREST   = "rest"
)

var validMessageTypes = []string{models.MessageText, models.MessageImage, models.MessageVideo, models.MessageAudio}

// ChatDeps wires ChatService
type ChatDeps struct {
	Matches  *MatchService
	Messages MessageStore
	Unread   UnreadCache
	Hub      *WSHub
	Metrics  Recorder
}

// ChatService persists messages and fans them out to match rooms
type ChatService struct {
	ChatDeps
	stripes [chatLockStripes]sync.Mutex
	now     func() time.Time
}

// NewChatService creates a new chat service
func NewChatService(deps ChatDeps) *ChatService {
	return &ChatService{ChatDeps: deps, now: time.Now}
}

// lockMatch serializes writers of one match so events leave in the order
// messages were stored
func (s *ChatService) lockMatch(matchID string) func() {
	h := fnv.New32a()
	h.Write([]byte(matchID))
	mu := &s.stripes[h.Sum32()%chatLockStripes]
	mu.Lock()
	return mu.Unlock
}

// Join adds the session to the match room if its user takes part in the
// match. Anyone else is silently ignored.
func (s *ChatService) Join(ctx context.Context, c *WSClient, matchID string) (bool, error) {
	ok, err := s.Matches.IsParticipant(ctx, matchID, c.UserID)
	if err != nil || !ok {
		return false, err
	}
	s.Hub.Join(c, MatchRoom(matchID))
	return true, nil
}

// Leave removes the session from the match room
func (s *ChatService) Leave(c *WSClient, matchID string) {
	s.Hub.Leave(c, MatchRoom(matchID))
}

// Send stores a message from senderID and delivers it to the match room and
// to the receiver's personal room
func (s *ChatService) Send(ctx context.Context, matchID, senderID, content, messageType, channel string) (*models.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, validationError("message content is required")
	}
	if len([]rune(content)) > maxMessageLength {
		return nil, validationError("message must be at most %d characters", maxMessageLength)
	}
	if messageType == "" {
		messageType = models.MessageText
	}
	if !slices.Contains(validMessageTypes, messageType) {
		return nil, validationError("invalid message type %q", messageType)
	}

	msg, err := s.deliver(ctx, matchID, senderID, content, messageType)
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, msg.ReceiverID)
	s.Metrics.MessageSent(channel)

	if !s.Hub.IsOnline(msg.ReceiverID) {
		s.Matches.push(ctx, msg.ReceiverID, notify.Push{
			Title: "New message",
			Body:  previewOf(msg),
			Data:  map[string]string{"type": EventNewMessage, "matchId": msg.MatchID},
		})
	}

	log.Debug().Str("match_id", msg.MatchID).Str("user_id", senderID).Str("channel", channel).Msg("Message sent")
	return msg, nil
}

// deliver persists the message and emits it while holding the match lock
func (s *ChatService) deliver(ctx context.Context, matchID, senderID, content, messageType string) (*models.Message, error) {
	unlock := s.lockMatch(matchID)
	defer unlock()

	match, err := s.Matches.participantMatch(ctx, matchID, senderID)
	if err != nil {
		return nil, err
	}

	msg := &models.Message{
		ID:          uuid.New().String(),
		MatchID:     match.ID,
		SenderID:    senderID,
		ReceiverID:  match.Other(senderID),
		Content:     content,
		MessageType: messageType,
		CreatedAt:   s.now(),
	}
	if err := s.Messages.Create(ctx, msg); err != nil {
		return nil, storeError(err, "message")
	}

	s.Hub.EmitToRoom(MatchRoom(match.ID), WSMessage{Type: EventNewMessage, MatchID: match.ID, Data: msg}, nil)
	s.Hub.EmitToUser(msg.ReceiverID, WSMessage{
		Type:    EventMessageNotification,
		MatchID: match.ID,
		UserID:  senderID,
		Data:    msg,
	})
	return msg, nil
}

func previewOf(msg *models.Message) string {
	if msg.MessageType != models.MessageText {
		return "Sent you a " + msg.MessageType
	}
	r := []rune(msg.Content)
	if len(r) > 100 {
		return string(r[:100]) + "..."
	}
	return msg.Content
}

// History returns a page of the match's messages oldest first and marks the
// caller's unread messages as read
func (s *ChatService) History(ctx context.Context, matchID, userID string, page, limit int) ([]*models.Message, models.Pagination, error) {
	page, limit = normalizePage(page, limit)
	match, err := s.Matches.participantMatch(ctx, matchID, userID)
	if err != nil {
		return nil, models.Pagination{}, err
	}

	messages, total, err := s.Messages.ListByMatch(ctx, match.ID, limit, (page-1)*limit)
	if err != nil {
		return nil, models.Pagination{}, storeError(err, "messages")
	}
	slices.Reverse(messages)

	if _, err := s.markRead(ctx, match, userID, nil); err != nil {
		log.Warn().Err(err).Str("match_id", match.ID).Msg("Failed to mark messages read")
	}
	return messages, models.NewPagination(page, limit, total), nil
}

// MarkRead marks every unread message addressed to userID in the match as
// read. Other room members are told only when something changed.
func (s *ChatService) MarkRead(ctx context.Context, matchID, userID string, from *WSClient) (int, error) {
	match, err := s.Matches.participantMatch(ctx, matchID, userID)
	if err != nil {
		return 0, err
	}
	return s.markRead(ctx, match, userID, from)
}

func (s *ChatService) markRead(ctx context.Context, match *models.Match, userID string, from *WSClient) (int, error) {
	now := s.now()
	n, err := s.Messages.MarkRead(ctx, match.ID, userID, now)
	if err != nil {
		return 0, storeError(err, "messages")
	}
	if n == 0 {
		return 0, nil
	}

	s.invalidate(ctx, userID)
	s.Hub.EmitToRoom(MatchRoom(match.ID), WSMessage{
		Type:    EventMessagesRead,
		MatchID: match.ID,
		UserID:  userID,
		Data:    map[string]interface{}{"count": n, "readAt": now},
	}, from)
	return n, nil
}

// Typing relays a typing indicator to the other sessions in the match room.
// Sessions that have not joined the room are ignored.
func (s *ChatService) Typing(c *WSClient, matchID string, isTyping bool) {
	room := MatchRoom(matchID)
	if !s.Hub.InRoom(c, room) {
		return
	}
	s.Hub.EmitToRoom(room, WSMessage{
		Type:     EventUserTyping,
		MatchID:  matchID,
		UserID:   c.UserID,
		IsTyping: &isTyping,
	}, c)
}

// DeleteMessage removes a message; only its sender may do so
func (s *ChatService) DeleteMessage(ctx context.Context, matchID, messageID, userID string) error {
	unlock := s.lockMatch(matchID)
	defer unlock()

	match, err := s.Matches.participantMatch(ctx, matchID, userID)
	if err != nil {
		return err
	}
	msg, err := s.Messages.GetByID(ctx, messageID)
	if err != nil {
		return storeError(err, "message")
	}
	if msg.MatchID != match.ID {
		return notFoundError("message")
	}
	if msg.SenderID != userID {
		return ErrNotSender
	}
	if err := s.Messages.Delete(ctx, msg.ID); err != nil {
		return storeError(err, "message")
	}

	if !msg.IsRead {
		s.invalidate(ctx, msg.ReceiverID)
	}
	s.Hub.EmitToRoom(MatchRoom(match.ID), WSMessage{
		Type:    EventMessageDeleted,
		MatchID: match.ID,
		UserID:  userID,
		Data:    map[string]string{"messageId": msg.ID},
	}, nil)

	log.Info().Str("match_id", match.ID).Str("message_id", msg.ID).Msg("Message deleted")
	return nil
}

// UnreadCount returns how many messages wait for userID, served from the
// cache when possible
func (s *ChatService) UnreadCount(ctx context.Context, userID string) (int, error) {
	n, ok, err := s.Unread.GetUnreadCount(ctx, userID)
	if err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("Failed to read unread count cache")
	} else if ok {
		return n, nil
	}

	// the version is read first so a write landing during the count voids the fill
	version, verErr := s.Unread.UnreadVersion(ctx, userID)
	n, err = s.Messages.CountUnread(ctx, userID)
	if err != nil {
		return 0, storeError(err, "messages")
	}
	if verErr != nil {
		log.Warn().Err(verErr).Str("user_id", userID).Msg("Failed to read unread count version")
		return n, nil
	}
	if _, err := s.Unread.SetUnreadCount(ctx, userID, n, version); err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("Failed to cache unread count")
	}
	return n, nil
}

func (s *ChatService) invalidate(ctx context.Context, userIDs ...string) {
	if err := s.Unread.InvalidateUnread(ctx, userIDs...); err != nil {
		log.Warn().Err(err).Strs("user_ids", userIDs).Msg("Failed to invalidate unread count")
	}
}
