package chat

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"letscrap-backend/internal/auth"
	"letscrap-backend/internal/database"
	"letscrap-backend/internal/events"
	"letscrap-backend/internal/models"
	"letscrap-backend/internal/testutil"
	"letscrap-backend/internal/web"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type received struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type socketEnv struct {
	url    string
	tokens map[uint]string
	hub    *Hub
}

func newSocketEnv(t *testing.T, users ...models.User) *socketEnv {
	t.Helper()
	cfg := testutil.Config()
	hub := startHub(t)

	srv := httptest.NewServer(NewServer(cfg, hub).Handler())
	t.Cleanup(srv.Close)

	env := &socketEnv{
		url:    "ws" + strings.TrimPrefix(srv.URL, "http") + "/socket",
		tokens: map[uint]string{},
		hub:    hub,
	}
	for _, u := range users {
		u := u
		tok, err := auth.GenerateToken(cfg.JWTSecret, cfg.TokenTTL, &u)
		require.NoError(t, err)
		env.tokens[u.ID] = tok
	}
	return env
}

func (e *socketEnv) dial(t *testing.T, u models.User) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(e.url+"?token="+e.tokens[u.ID], nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func emit(t *testing.T, conn *websocket.Conn, event string, data any) {
	t.Helper()
	raw, err := json.Marshal(map[string]any{"event": event, "data": data})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, raw))
}

func expect(t *testing.T, conn *websocket.Conn, event string) json.RawMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var f received
	require.NoError(t, json.Unmarshal(raw, &f))
	require.Equal(t, event, f.Event, string(raw))
	return f.Data
}

func expectError(t *testing.T, conn *websocket.Conn, msg string) {
	t.Helper()
	var got string
	require.NoError(t, json.Unmarshal(expect(t, conn, EventError), &got))
	assert.Equal(t, msg, got)
}

func TestSocketRejectsMissingOrBadToken(t *testing.T) {
	testutil.SetupDB(t)
	env := newSocketEnv(t)

	for _, url := range []string{env.url, env.url + "?token=garbage"} {
		_, resp, err := websocket.DefaultDialer.Dial(url, nil)
		require.Error(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		resp.Body.Close()
	}
}

func TestSocketRejectsForeignOrigin(t *testing.T) {
	testutil.SetupDB(t)
	u := testutil.CreateUser(t, "Asha Patil", models.RoleUser)
	env := newSocketEnv(t, u)

	cfg := testutil.Config()
	cfg.CORSOrigins = "http://localhost:3000"
	srv := httptest.NewServer(NewServer(cfg, env.hub).Handler())
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/socket?token=" + env.tokens[u.ID]

	header := http.Header{"Origin": []string{"http://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	header = http.Header{"Origin": []string{"http://localhost:3000"}}
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	resp.Body.Close()
	conn.Close()
}

func TestChatRoundTrip(t *testing.T) {
	testutil.SetupDB(t)
	u := testutil.CreateUser(t, "Asha Patil", models.RoleUser)
	d := testutil.CreateUser(t, "Kabadi Wala", models.RoleDealer)
	outsider := testutil.CreateUser(t, "Ravi Kumar", models.RoleUser)
	dID := d.ID
	req := testutil.CreateRequest(t, u.ID, models.StatusAccepted, &dID)
	_, err := Save(req.ID, d.ID, d.Name, "On my way")
	require.NoError(t, err)

	env := newSocketEnv(t, u, d, outsider)
	userConn := env.dial(t, u)
	dealerConn := env.dial(t, d)
	outsiderConn := env.dial(t, outsider)

	emit(t, userConn, EventJoin, req.ID)
	var history []MessageResponse
	require.NoError(t, json.Unmarshal(expect(t, userConn, EventHistory), &history))
	require.Len(t, history, 1)
	assert.Equal(t, "On my way", history[0].Message)
	assert.Equal(t, "Kabadi Wala", history[0].SenderName)

	// ids may arrive as strings
	emit(t, dealerConn, EventJoin, fmt.Sprint(req.ID))
	expect(t, dealerConn, EventHistory)

	emit(t, outsiderConn, EventJoin, req.ID)
	expectError(t, outsiderConn, "Not authorized for this chat")

	emit(t, outsiderConn, EventSend, map[string]any{"scrap_request_id": req.ID, "message": "let me in"})
	expectError(t, outsiderConn, "Join the request room first")

	emit(t, userConn, EventJoin, 9999)
	expectError(t, userConn, "Scrap request not found")

	emit(t, userConn, EventSend, map[string]any{"scrap_request_id": req.ID, "message": "   "})
	expectError(t, userConn, "Message cannot be empty")

	emit(t, userConn, EventSend, map[string]any{"scrap_request_id": req.ID, "message": strings.Repeat("a", 1001)})
	expectError(t, userConn, "Message must be at most 1000 characters")

	emit(t, userConn, EventSend, map[string]any{"scrap_request_id": req.ID, "message": "  Gate 2 please  "})
	for _, conn := range []*websocket.Conn{userConn, dealerConn} {
		var msg MessageResponse
		require.NoError(t, json.Unmarshal(expect(t, conn, EventReceiveMessage), &msg))
		assert.Equal(t, "Gate 2 please", msg.Message)
		assert.Equal(t, u.ID, msg.SenderID)
		assert.Equal(t, req.ID, msg.ScrapRequestID)
	}

	emit(t, dealerConn, EventPing, nil)
	expect(t, dealerConn, EventPong)

	emit(t, dealerConn, "shout", nil)
	expectError(t, dealerConn, "Unknown event")

	stored, err := History(req.ID)
	require.NoError(t, err)
	assert.Len(t, stored, 2)

	emit(t, dealerConn, EventLeave, req.ID)
	emit(t, dealerConn, EventPing, nil)
	expect(t, dealerConn, EventPong)
	assert.Equal(t, 1, env.hub.RoomSize(req.ID))
}

func TestSendAfterRequestDeleted(t *testing.T) {
	testutil.SetupDB(t)
	u := testutil.CreateUser(t, "Asha Patil", models.RoleUser)
	req := testutil.CreateRequest(t, u.ID, models.StatusPending, nil)

	env := newSocketEnv(t, u)
	conn := env.dial(t, u)
	emit(t, conn, EventJoin, req.ID)
	expect(t, conn, EventHistory)

	require.NoError(t, database.DB.Delete(&models.ScrapRequest{}, req.ID).Error)

	emit(t, conn, EventSend, map[string]any{"scrap_request_id": req.ID, "message": "still there?"})
	expectError(t, conn, "Scrap request not found")
	assert.Equal(t, 0, env.hub.RoomSize(req.ID))

	var n int64
	require.NoError(t, database.DB.Model(&models.ChatMessage{}).Count(&n).Error)
	assert.Zero(t, n)
}

type fakeSource struct {
	ch chan events.StatusChanged
}

func (f *fakeSource) SubscribeStatusChanged(ctx context.Context) (<-chan events.StatusChanged, error) {
	return f.ch, nil
}

func TestRelayBroadcastsStatus(t *testing.T) {
	testutil.SetupDB(t)
	u := testutil.CreateUser(t, "Asha Patil", models.RoleUser)
	req := testutil.CreateRequest(t, u.ID, models.StatusPending, nil)

	env := newSocketEnv(t, u)
	conn := env.dial(t, u)
	emit(t, conn, EventJoin, req.ID)
	expect(t, conn, EventHistory)

	src := &fakeSource{ch: make(chan events.StatusChanged, 1)}
	relayDone := make(chan error, 1)
	go func() { relayDone <- NewRelay(src, env.hub).Serve(context.Background()) }()

	dealerID := uint(42)
	src.ch <- events.StatusChanged{
		RequestID: req.ID,
		UserID:    u.ID,
		DealerID:  &dealerID,
		From:      models.StatusPending,
		Status:    models.StatusAccepted,
		ChangedBy: dealerID,
		ChangedAt: time.Date(2025, 12, 9, 10, 0, 0, 0, time.UTC),
	}

	var st StatusResponse
	require.NoError(t, json.Unmarshal(expect(t, conn, EventRequestStatus), &st))
	assert.Equal(t, req.ID, st.RequestID)
	assert.Equal(t, models.StatusAccepted, st.Status)
	require.NotNil(t, st.DealerID)
	assert.Equal(t, dealerID, *st.DealerID)
	assert.Equal(t, "2025-12-09T10:00:00Z", st.ChangedAt)

	close(src.ch)
	select {
	case err := <-relayDone:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not stop")
	}
}

func TestHistoryHandler(t *testing.T) {
	testutil.SetupDB(t)
	cfg := testutil.Config()
	u := testutil.CreateUser(t, "Asha Patil", models.RoleUser)
	d := testutil.CreateUser(t, "Kabadi Wala", models.RoleDealer)
	other := testutil.CreateUser(t, "Ravi Kumar", models.RoleUser)
	admin := testutil.CreateUser(t, "Site Admin", models.RoleAdmin)
	dID := d.ID
	req := testutil.CreateRequest(t, u.ID, models.StatusAccepted, &dID)
	_, err := Save(req.ID, u.ID, u.Name, "first")
	require.NoError(t, err)
	_, err = Save(req.ID, d.ID, d.Name, "second")
	require.NoError(t, err)

	app := web.NewApp()
	app.Get("/api/messages/:requestId", auth.JWTMiddleware(cfg), HistoryHandler())

	token := func(x models.User) string {
		tok, err := auth.GenerateToken(cfg.JWTSecret, cfg.TokenTTL, &x)
		require.NoError(t, err)
		return tok
	}
	path := fmt.Sprintf("/api/messages/%d", req.ID)

	code, raw := testutil.Call(t, app, "GET", path, token(d), nil)
	require.Equal(t, fiber.StatusOK, code)
	msgs := testutil.Decode[[]MessageResponse](t, raw)
	require.Len(t, msgs, 2)
	assert.Equal(t, "first", msgs[0].Message)
	assert.Equal(t, "second", msgs[1].Message)

	code, _ = testutil.Call(t, app, "GET", path, token(admin), nil)
	assert.Equal(t, fiber.StatusOK, code)

	code, _ = testutil.Call(t, app, "GET", path, token(other), nil)
	assert.Equal(t, fiber.StatusForbidden, code)

	code, _ = testutil.Call(t, app, "GET", "/api/messages/9999", token(u), nil)
	assert.Equal(t, fiber.StatusNotFound, code)
}
