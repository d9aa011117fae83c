package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"relun-backend/internal/middleware"
	"relun-backend/internal/services"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8 << 10
	sendBuffer     = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // mobile clients send no Origin
	},
}

// SessionRecorder tracks open socket sessions
type SessionRecorder interface {
	SessionOpened()
	SessionClosed()
}

// WebSocketHandler serves the real-time chat channel
type WebSocketHandler struct {
	hub     *services.WSHub
	auth    *services.AuthService
	chat    *services.ChatService
	metrics SessionRecorder
	limit   rate.Limit
	burst   int
}

// NewWebSocketHandler creates a new WebSocket handler. eventsPerSecond and
// burst bound inbound events per session.
func NewWebSocketHandler(
	hub *services.WSHub,
	auth *services.AuthService,
	chat *services.ChatService,
	metrics SessionRecorder,
	eventsPerSecond float64,
	burst int,
) *WebSocketHandler {
	return &WebSocketHandler{
		hub:     hub,
		auth:    auth,
		chat:    chat,
		metrics: metrics,
		limit:   rate.Limit(eventsPerSecond),
		burst:   burst,
	}
}

// HandleWebSocket handles GET /ws. The access token comes from the token
// query parameter or the Authorization header and is checked before the
// upgrade.
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = middleware.BearerToken(r)
	}
	if token == "" {
		respondError(w, "token required", http.StatusUnauthorized)
		return
	}

	claims, err := h.auth.Authenticate(r.Context(), token)
	if err != nil {
		respondServiceError(w, err, "invalid token")
		return
	}
	userID := claims.UserID

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to upgrade WebSocket connection")
		return
	}

	client := services.NewWSClient(userID, sendBuffer)
	h.hub.Register(client)
	h.metrics.SessionOpened()
	h.touch(r.Context(), userID)

	log.Info().Str("user_id", userID).Str("session_id", client.ID).Msg("WebSocket connection established")

	go h.writePump(conn, client)
	h.readPump(r.Context(), conn, client)

	h.hub.Unregister(client)
	h.metrics.SessionClosed()
	h.touch(context.Background(), userID)

	log.Info().Str("user_id", userID).Str("session_id", client.ID).Msg("WebSocket connection closed")
}

func (h *WebSocketHandler) touch(ctx context.Context, userID string) {
	if err := h.auth.TouchLastActive(ctx, userID); err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("Failed to update last active")
	}
}

// readPump handles inbound events until the connection fails
func (h *WebSocketHandler) readPump(ctx context.Context, conn *websocket.Conn, client *services.WSClient) {
	limiter := rate.NewLimiter(h.limit, h.burst)

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Error().Err(err).Str("user_id", client.UserID).Msg("WebSocket error")
			}
			return
		}

		if !limiter.Allow() {
			h.hub.SendError(client, "Too many events, slow down")
			continue
		}

		var msg services.WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.hub.SendError(client, "Invalid message format")
			continue
		}
		h.handleMessage(ctx, client, msg)
	}
}

// writePump drains the session's queue and keeps the connection alive
func (h *WebSocketHandler) writePump(conn *websocket.Conn, client *services.WSClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case frame := <-client.Outbound():
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-client.Done():
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}

// handleMessage dispatches one inbound event
func (h *WebSocketHandler) handleMessage(ctx context.Context, client *services.WSClient, msg services.WSMessage) {
	if msg.MatchID == "" {
		h.hub.SendError(client, "matchId is required")
		return
	}

	switch msg.Type {
	case services.EventJoinMatch:
		if _, err := h.chat.Join(ctx, client, msg.MatchID); err != nil {
			h.reportError(client, msg, err, "Failed to join match")
		}
	case services.EventLeaveMatch:
		h.chat.Leave(client, msg.MatchID)
	case services.EventSendMessage:
		if _, err := h.chat.Send(ctx, msg.MatchID, client.UserID, msg.Content, msg.MessageType, services.ChannelSocket); err != nil {
			h.reportError(client, msg, err, "Failed to send message")
		}
	case services.EventTyping:
		h.chat.Typing(client, msg.MatchID, msg.IsTyping != nil && *msg.IsTyping)
	case services.EventMarkRead:
		if _, err := h.chat.MarkRead(ctx, msg.MatchID, client.UserID, client); err != nil {
			h.reportError(client, msg, err, "Failed to mark messages as read")
		}
	default:
		h.hub.SendError(client, "Unknown message type")
	}
}

func (h *WebSocketHandler) reportError(client *services.WSClient, msg services.WSMessage, err error, fallback string) {
	text := fallback
	var svcErr *services.Error
	if errors.As(err, &svcErr) && !errors.Is(err, services.ErrUnavailable) {
		text = svcErr.Public()
	} else {
		log.Error().Err(err).Str("user_id", client.UserID).Str("type", msg.Type).Msg(fallback)
	}
	h.hub.SendError(client, text)
}
