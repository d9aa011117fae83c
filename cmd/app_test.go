package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"relun-backend/internal/cache"
	"relun-backend/internal/config"
	"relun-backend/internal/metrics"
	"relun-backend/internal/notify"
	"relun-backend/internal/services"
	"relun-backend/internal/storage"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type codeCapture struct {
	mu    sync.Mutex
	codes map[string]string
}

func (c *codeCapture) SendOTP(_ context.Context, destination, code string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.codes[destination] = code
	return nil
}

func (c *codeCapture) code(destination string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.codes[destination]
}

type testServer struct {
	*httptest.Server
	app   *app
	codes *codeCapture
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	mr := miniredis.RunT(t)
	rc := cache.NewRedisCache(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = rc.Close() })

	cfg := config.Default()
	cfg.JWT.Secret = "test-secret"
	codes := &codeCapture{codes: map[string]string{}}

	a := newApp(cfg, deps{
		backend: newMemoryBackend(),
		cache:   rc,
		images:  storage.NewMemoryImageStore(""),
		pusher:  notify.NopNotifier{},
		email:   codes,
		sms:     codes,
		metrics: metrics.New(),
	})
	srv := httptest.NewServer(a.router())
	t.Cleanup(func() {
		a.hub.CloseAll()
		srv.Close()
	})
	return &testServer{Server: srv, app: a, codes: codes}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, s.URL+path, rdr)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return s.send(t, req)
}

func (s *testServer) send(t *testing.T, req *http.Request) (int, map[string]any) {
	t.Helper()
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]any{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

// signUp runs the one-time code login and onboarding for email and returns
// the access token and user id
func (s *testServer) signUp(t *testing.T, email, name string) (string, string) {
	t.Helper()
	status, body := s.do(t, http.MethodPost, "/api/auth/request-otp", "", map[string]string{"email": email})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, true, body["isNewUser"])

	status, body = s.do(t, http.MethodPost, "/api/auth/verify-otp", "", map[string]string{
		"email": email,
		"otp":   s.codes.code(email),
	})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, true, body["needsProfileCompletion"])
	token := body["accessToken"].(string)
	userID := body["user"].(map[string]any)["id"].(string)

	status, body = s.do(t, http.MethodPost, "/api/auth/complete-profile", token, map[string]any{
		"fullName":    name,
		"dateOfBirth": "1994-03-02",
		"gender":      "female",
		"segment":     "relationship",
		"latitude":    52.37,
		"longitude":   4.89,
	})
	require.Equal(t, http.StatusOK, status, body)
	return token, userID
}

// pair makes two users who liked each other and returns their tokens, ids
// and the match id
func (s *testServer) pair(t *testing.T) (tokA, idA, tokB, idB, matchID string) {
	t.Helper()
	tokA, idA = s.signUp(t, "anna@example.com", "Anna")
	tokB, idB = s.signUp(t, "bert@example.com", "Bert")

	status, body := s.do(t, http.MethodPost, "/api/swipes", tokA, map[string]string{"targetUserId": idB, "swipeType": "like"})
	require.Equal(t, http.StatusCreated, status, body)
	assert.Equal(t, false, body["isMatch"])

	status, body = s.do(t, http.MethodPost, "/api/swipes", tokB, map[string]string{"targetUserId": idA, "swipeType": "like"})
	require.Equal(t, http.StatusCreated, status, body)
	require.Equal(t, true, body["isMatch"])
	matchID = body["match"].(map[string]any)["id"].(string)
	return
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	status, body := s.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "OK", body["status"])
	assert.Equal(t, map[string]any{"database": "up", "cache": "up"}, body["checks"])
}

func TestAuthFlow(t *testing.T) {
	s := newTestServer(t)

	status, _ := s.do(t, http.MethodGet, "/api/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body := s.do(t, http.MethodPost, "/api/auth/request-otp", "", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.NotEmpty(t, body["error"])

	token, userID := s.signUp(t, "anna@example.com", "Anna")

	status, body = s.do(t, http.MethodGet, "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, userID, body["id"])
	assert.Equal(t, "Anna", body["fullName"])
	assert.Equal(t, "relationship", body["profile"].(map[string]any)["segment"])

	status, _ = s.do(t, http.MethodPost, "/api/auth/logout", token, nil)
	assert.Equal(t, http.StatusOK, status)

	status, _ = s.do(t, http.MethodGet, "/api/auth/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestVerifyRejectsWrongCode(t *testing.T) {
	s := newTestServer(t)
	status, _ := s.do(t, http.MethodPost, "/api/auth/request-otp", "", map[string]string{"phone": "+31612345678"})
	require.Equal(t, http.StatusOK, status)

	wrong := "000000"
	if s.codes.code("+31612345678") == wrong {
		wrong = "111111"
	}
	status, body := s.do(t, http.MethodPost, "/api/auth/verify-otp", "", map[string]string{
		"phone": "+31612345678",
		"otp":   wrong,
	})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.NotEmpty(t, body["error"])
}

func TestProfileAndPhotos(t *testing.T) {
	s := newTestServer(t)
	token, userID := s.signUp(t, "anna@example.com", "Anna")

	status, body := s.do(t, http.MethodPut, "/api/profiles", token, map[string]any{
		"bio":       "Hiking and coffee",
		"interests": []string{"Hiking", "coffee"},
	})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "Hiking and coffee", body["bio"])

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="photos"; filename="me.png"`)
	h.Set("Content-Type", "image/png")
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write([]byte("\x89PNG\r\n\x1a\nnot-really-a-png"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, s.URL+"/api/profiles/photos", &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	status, body = s.send(t, req)
	require.Equal(t, http.StatusCreated, status, body)

	status, body = s.do(t, http.MethodGet, "/api/profiles", token, nil)
	require.Equal(t, http.StatusOK, status)
	photos := body["photos"].([]any)
	require.Len(t, photos, 1)
	photoID := photos[0].(map[string]any)["id"].(string)

	other, _ := s.signUp(t, "bert@example.com", "Bert")
	status, body = s.do(t, http.MethodGet, "/api/profiles/"+userID, other, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Nil(t, body["profile"].(map[string]any)["location"])

	status, _ = s.do(t, http.MethodDelete, "/api/profiles/photos/"+photoID, other, nil)
	assert.Equal(t, http.StatusNotFound, status)
	status, _ = s.do(t, http.MethodDelete, "/api/profiles/photos/"+photoID, token, nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestSwipeMatchAndChatOverREST(t *testing.T) {
	s := newTestServer(t)
	tokA, _, tokB, idB, matchID := s.pair(t)

	status, body := s.do(t, http.MethodPost, "/api/swipes", tokA, map[string]string{"targetUserId": idB, "swipeType": "pass"})
	assert.Equal(t, http.StatusConflict, status, body)

	status, body = s.do(t, http.MethodGet, "/api/matches", tokA, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["matches"].([]any), 1)
	assert.EqualValues(t, 1, body["pagination"].(map[string]any)["total"])

	status, body = s.do(t, http.MethodPost, "/api/chat/"+matchID, tokA, map[string]string{"content": "hi Bert"})
	require.Equal(t, http.StatusCreated, status, body)
	messageID := body["id"].(string)

	status, body = s.do(t, http.MethodGet, "/api/chat/unread/count", tokB, nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 1, body["unreadCount"])

	status, body = s.do(t, http.MethodGet, "/api/chat/"+matchID, tokB, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["messages"].([]any), 1)

	status, body = s.do(t, http.MethodGet, "/api/chat/unread/count", tokB, nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 0, body["unreadCount"])

	status, _ = s.do(t, http.MethodDelete, "/api/chat/"+matchID+"/"+messageID, tokB, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = s.do(t, http.MethodDelete, "/api/matches/"+matchID, tokB, nil)
	assert.Equal(t, http.StatusOK, status)
	status, _ = s.do(t, http.MethodGet, "/api/chat/"+matchID, tokA, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestPotentialMatchesSkipsSwiped(t *testing.T) {
	s := newTestServer(t)
	tokA, _ := s.signUp(t, "anna@example.com", "Anna")
	_, idB := s.signUp(t, "bert@example.com", "Bert")

	status, body := s.do(t, http.MethodGet, "/api/swipes/potential", tokA, nil)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, body["users"].([]any), 1)

	status, _ = s.do(t, http.MethodPost, "/api/swipes", tokA, map[string]string{"targetUserId": idB, "swipeType": "pass"})
	require.Equal(t, http.StatusCreated, status)

	status, body = s.do(t, http.MethodGet, "/api/swipes/potential", tokA, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, body["users"])
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	s.do(t, http.MethodGet, "/health", "", nil)

	// the request is observed after its response is flushed
	require.Eventually(t, func() bool {
		resp, err := http.Get(s.URL + "/metrics")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		raw, err := io.ReadAll(resp.Body)
		return err == nil && strings.Contains(string(raw),
			`relun_http_requests_total{method="GET",route="/health",status="200"} 1`)
	}, 2*time.Second, 20*time.Millisecond)
}

func dial(t *testing.T, s *testServer, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(s.URL, "http") + "/ws?token=" + token
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readUntil(t *testing.T, conn *websocket.Conn, eventType string) services.WSMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		var msg services.WSMessage
		require.NoError(t, conn.ReadJSON(&msg))
		if msg.Type == eventType {
			return msg
		}
	}
}

func TestWebSocketRequiresToken(t *testing.T) {
	s := newTestServer(t)
	url := "ws" + strings.TrimPrefix(s.URL, "http") + "/ws?token=garbage"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestWebSocketChat(t *testing.T) {
	s := newTestServer(t)
	tokA, _, tokB, idB, matchID := s.pair(t)

	connB := dial(t, s, tokB)
	require.Eventually(t, func() bool { return s.app.hub.IsOnline(idB) }, 2*time.Second, 10*time.Millisecond)

	connA := dial(t, s, tokA)
	require.NoError(t, connA.WriteJSON(services.WSMessage{Type: services.EventJoinMatch, MatchID: matchID}))
	require.NoError(t, connA.WriteJSON(services.WSMessage{
		Type:    services.EventSendMessage,
		MatchID: matchID,
		Content: "over the socket",
	}))

	echo := readUntil(t, connA, services.EventNewMessage)
	assert.Equal(t, matchID, echo.MatchID)

	note := readUntil(t, connB, services.EventMessageNotification)
	assert.Equal(t, matchID, note.MatchID)
	data := note.Data.(map[string]any)
	assert.Equal(t, "over the socket", data["content"])

	require.NoError(t, connA.WriteJSON(services.WSMessage{Type: "dance", MatchID: matchID}))
	errEvent := readUntil(t, connA, services.EventError)
	assert.Equal(t, "Unknown message type", errEvent.Message)

	status, body := s.do(t, http.MethodGet, "/api/chat/"+matchID, tokB, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["messages"].([]any), 1)
}
