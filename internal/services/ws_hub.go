package services

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Socket event types
const (
	EventJoinMatch           = "join_match"
	EventLeaveMatch          = "leave_match"
	EventSendMessage         = "send_message"
	EventTyping              = "typing"
	EventMarkRead            = "mark_read"
	EventNewMessage          = "new_message"
	EventMessageNotification = "message_notification"
	EventUserTyping          = "user_typing"
	EventMessagesRead        = "messages_read"
	EventMatchCreated        = "match_created"
	EventMatchRemoved        = "match_removed"
	EventMessageDeleted      = "message_deleted"
	EventError               = "error"
)

// WSMessage is the envelope for every socket event in both directions
type WSMessage struct {
	Type        string      `json:"type"`
	MatchID     string      `json:"matchId,omitempty"`
	Content     string      `json:"content,omitempty"`
	MessageType string      `json:"messageType,omitempty"`
	IsTyping    *bool       `json:"isTyping,omitempty"`
	UserID      string      `json:"userId,omitempty"`
	Message     string      `json:"message,omitempty"`
	Data        interface{} `json:"data,omitempty"`
}

// UserRoom is the room every session of a user joins on connect
func UserRoom(userID string) string {
	return "user:" + userID
}

// MatchRoom is the chat room of a match
func MatchRoom(matchID string) string {
	return "match:" + matchID
}

// WSClient is one socket session. Outbound frames are queued on a bounded
// buffer drained by the connection's writer.
type WSClient struct {
	ID     string
	UserID string

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

// NewWSClient creates a session for userID with the given outbound buffer
func NewWSClient(userID string, buffer int) *WSClient {
	if buffer <= 0 {
		buffer = 64
	}
	return &WSClient{
		ID:     uuid.New().String(),
		UserID: userID,
		send:   make(chan []byte, buffer),
		done:   make(chan struct{}),
	}
}

// Outbound returns the queue of encoded frames to write
func (c *WSClient) Outbound() <-chan []byte {
	return c.send
}

// Done is closed when the session is shut down
func (c *WSClient) Done() <-chan struct{} {
	return c.done
}

// Close shuts the session down; safe to call more than once
func (c *WSClient) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *WSClient) enqueue(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// WSHub tracks sessions and the rooms they belong to
type WSHub struct {
	mu      sync.RWMutex
	rooms   map[string]map[*WSClient]struct{}
	members map[*WSClient]map[string]struct{}
}

// NewWSHub creates a new WebSocket hub
func NewWSHub() *WSHub {
	return &WSHub{
		rooms:   make(map[string]map[*WSClient]struct{}),
		members: make(map[*WSClient]map[string]struct{}),
	}
}

// Register adds a session and joins it to its user room
func (h *WSHub) Register(c *WSClient) {
	h.mu.Lock()
	h.members[c] = make(map[string]struct{})
	h.joinLocked(c, UserRoom(c.UserID))
	h.mu.Unlock()

	log.Info().Str("user_id", c.UserID).Str("session_id", c.ID).Msg("WebSocket session registered")
}

// Unregister removes a session from every room and closes it
func (h *WSHub) Unregister(c *WSClient) {
	h.mu.Lock()
	rooms, ok := h.members[c]
	if ok {
		for room := range rooms {
			h.leaveLocked(c, room)
		}
		delete(h.members, c)
	}
	h.mu.Unlock()

	c.Close()
	if ok {
		log.Info().Str("user_id", c.UserID).Str("session_id", c.ID).Msg("WebSocket session unregistered")
	}
}

func (h *WSHub) joinLocked(c *WSClient, room string) {
	set, ok := h.rooms[room]
	if !ok {
		set = make(map[*WSClient]struct{})
		h.rooms[room] = set
	}
	set[c] = struct{}{}
	h.members[c][room] = struct{}{}
}

func (h *WSHub) leaveLocked(c *WSClient, room string) {
	if set, ok := h.rooms[room]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.rooms, room)
		}
	}
	if rooms, ok := h.members[c]; ok {
		delete(rooms, room)
	}
}

// Join adds a registered session to room
func (h *WSHub) Join(c *WSClient, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.members[c]; ok {
		h.joinLocked(c, room)
	}
}

// Leave removes a session from room
func (h *WSHub) Leave(c *WSClient, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(c, room)
}

// InRoom reports whether the session is a member of room
func (h *WSHub) InRoom(c *WSClient, room string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.rooms[room][c]
	return ok
}

// ClearRoom removes every session from room
func (h *WSHub) ClearRoom(room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.rooms[room] {
		delete(h.members[c], room)
	}
	delete(h.rooms, room)
}

// EmitToRoom queues msg for every session in room except the given one.
// Sessions whose buffer is full are closed. It returns the number of
// sessions the event was queued for.
func (h *WSHub) EmitToRoom(room string, msg WSMessage, except *WSClient) int {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Str("type", msg.Type).Msg("Failed to marshal WebSocket message")
		return 0
	}

	h.mu.RLock()
	targets := make([]*WSClient, 0, len(h.rooms[room]))
	for c := range h.rooms[room] {
		if c != except {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	sent := 0
	for _, c := range targets {
		if c.enqueue(data) {
			sent++
			continue
		}
		log.Warn().Str("user_id", c.UserID).Str("session_id", c.ID).Msg("Dropping slow WebSocket session")
		c.Close()
	}
	return sent
}

// EmitToUser queues msg for every session of userID
func (h *WSHub) EmitToUser(userID string, msg WSMessage) int {
	return h.EmitToRoom(UserRoom(userID), msg, nil)
}

// SendTo queues msg for a single session
func (h *WSHub) SendTo(c *WSClient, msg WSMessage) bool {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Str("type", msg.Type).Msg("Failed to marshal WebSocket message")
		return false
	}
	return c.enqueue(data)
}

// SendError queues an error event for a single session
func (h *WSHub) SendError(c *WSClient, message string) {
	h.SendTo(c, WSMessage{Type: EventError, Message: message})
}

// IsOnline reports whether userID has at least one live session
func (h *WSHub) IsOnline(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[UserRoom(userID)]) > 0
}

// SessionCount returns the number of registered sessions
func (h *WSHub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.members)
}

// CloseAll closes every registered session. Their read loops then unregister
// them.
func (h *WSHub) CloseAll() {
	h.mu.RLock()
	clients := make([]*WSClient, 0, len(h.members))
	for c := range h.members {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.Close()
	}
}
