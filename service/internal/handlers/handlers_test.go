package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linanqiu/acquire-game-sub002/service/internal/auth"
	"github.com/linanqiu/acquire-game-sub002/service/internal/config"
	"github.com/linanqiu/acquire-game-sub002/service/internal/game"
	"github.com/linanqiu/acquire-game-sub002/service/internal/models"
)

func setupTestServer(t *testing.T) (*Server, *httptest.Server, *auth.Signer) {
	t.Helper()
	cfg := &config.Config{
		AllowOrigins:            []string{"*"},
		GameSeed:                7,
		ReconnectMaxAttempts:    3,
		ReconnectDelay:          10 * time.Millisecond,
		ReconnectAttemptTimeout: 200 * time.Millisecond,
	}
	signer := auth.NewSigner("test-secret", time.Hour)
	srv := NewServer(cfg, signer)
	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(func() {
		srv.Close()
		ts.Close()
	})
	return srv, ts, signer
}

func wsURL(ts *httptest.Server, roomID uuid.UUID, query string) string {
	u := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/" + roomID.String()
	if query != "" {
		u += "?" + query
	}
	return u
}

func dialAs(t *testing.T, ts *httptest.Server, signer *auth.Signer, roomID uuid.UUID, user models.User, extra string) *websocket.Conn {
	t.Helper()
	token, err := signer.IssueToken(user)
	require.NoError(t, err)
	query := "token=" + token
	if extra != "" {
		query += "&" + extra
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, wsURL(ts, roomID, query), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, actionType string, payload map[string]interface{}) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, wsjson.Write(ctx, conn, models.GameAction{ActionType: actionType, Payload: payload}))
}

// readUntil reads events until match accepts one.
func readUntil(t *testing.T, conn *websocket.Conn, match func(game.GameEvent) bool) game.GameEvent {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	for {
		var ev game.GameEvent
		require.NoError(t, wsjson.Read(ctx, conn, &ev))
		if match(ev) {
			return ev
		}
	}
}

func isSync(pred func(*game.PlayerView) bool) func(game.GameEvent) bool {
	return func(ev game.GameEvent) bool {
		return ev.Type == game.EventPrivateSyncState && ev.State != nil && pred(ev.State)
	}
}

func TestHealthz(t *testing.T) {
	_, ts, _ := setupTestServer(t)

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestWebsocketRejectsBadRequests(t *testing.T) {
	_, ts, _ := setupTestServer(t)

	resp, err := http.Get(ts.URL + "/ws/" + uuid.NewString())
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/ws/not-a-room?token=x")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGuestToken(t *testing.T) {
	_, ts, signer := setupTestServer(t)

	resp, err := http.Post(ts.URL+"/auth/guest", "application/json", bytes.NewBufferString(`{"username":"  alice "}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Token string      `json:"token"`
		User  models.User `json:"user"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	user, err := signer.ParseToken(body.Token)
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, body.User.ID, user.ID)

	resp, err = http.Post(ts.URL+"/auth/guest", "application/json", bytes.NewBufferString(`{"username":""}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestLobbyToFirstTurn(t *testing.T) {
	srv, ts, signer := setupTestServer(t)
	roomID := uuid.New()
	host := models.User{ID: uuid.New(), Username: "host"}

	conn := dialAs(t, ts, signer, roomID, host, "name=corner")
	readUntil(t, conn, isSync(func(v *game.PlayerView) bool { return !v.Started }))

	send(t, conn, game.ActionPlaceTile, map[string]interface{}{"tile": "1A"})
	rejected := readUntil(t, conn, func(ev game.GameEvent) bool { return ev.Type == game.EventPrivateActionRejected })
	assert.Equal(t, game.CodeGameNotStarted, rejected.Payload["code"])

	send(t, conn, game.ActionAddBot, map[string]interface{}{"strategy": "cautious"})
	readUntil(t, conn, func(ev game.GameEvent) bool { return ev.Type == game.EventPlayerJoined && ev.User.ID != host.ID })
	send(t, conn, game.ActionStart, nil)

	view := readUntil(t, conn, isSync(func(v *game.PlayerView) bool {
		return v.Started && v.ActingPlayerID == host.ID
	})).State
	assert.Equal(t, "PLACE_TILE", view.Phase)
	for _, p := range view.Players {
		if p.PlayerID == host.ID {
			assert.Len(t, p.Hand, 6)
		} else {
			assert.Empty(t, p.Hand, "bot hand is hidden")
		}
	}

	resp, err := http.Get(ts.URL + "/rooms")
	require.NoError(t, err)
	defer resp.Body.Close()
	var rooms []game.RoomSummary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rooms))
	require.Len(t, rooms, 1)
	assert.Equal(t, roomID, rooms[0].ID)
	assert.Equal(t, "corner", rooms[0].Name)
	assert.Equal(t, 2, rooms[0].Players)
	assert.True(t, rooms[0].Started)
	assert.Equal(t, 1, srv.Registry().Len())
}

func TestReconnectResyncsStartedGame(t *testing.T) {
	_, ts, signer := setupTestServer(t)
	roomID := uuid.New()
	host := models.User{ID: uuid.New(), Username: "host"}

	conn := dialAs(t, ts, signer, roomID, host, "")
	send(t, conn, game.ActionAddBot, nil)
	send(t, conn, game.ActionStart, nil)
	readUntil(t, conn, isSync(func(v *game.PlayerView) bool { return v.Started }))
	conn.Close(websocket.StatusNormalClosure, "")

	again := dialAs(t, ts, signer, roomID, host, "")
	view := readUntil(t, again, isSync(func(v *game.PlayerView) bool { return v.Started })).State
	assert.Equal(t, roomID, view.RoomID)

	send(t, again, game.ActionSync, nil)
	readUntil(t, again, isSync(func(v *game.PlayerView) bool { return v.Started && v.ActingPlayerID == host.ID }))
}

func TestJoinWithWrongPassword(t *testing.T) {
	_, ts, signer := setupTestServer(t)
	roomID := uuid.New()

	owner := dialAs(t, ts, signer, roomID, models.User{ID: uuid.New(), Username: "owner"}, "password=sesame")
	readUntil(t, owner, isSync(func(v *game.PlayerView) bool { return true }))

	intruder := dialAs(t, ts, signer, roomID, models.User{ID: uuid.New(), Username: "intruder"}, "password=guess")
	ev := readUntil(t, intruder, func(ev game.GameEvent) bool { return ev.Type == game.EventPrivateActionRejected })
	assert.Equal(t, game.CodeWrongPassword, ev.Payload["code"])

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	var next game.GameEvent
	err := wsjson.Read(ctx, intruder, &next)
	assert.Equal(t, websocket.StatusPolicyViolation, websocket.CloseStatus(err))
}

func TestHubReconnectFunc(t *testing.T) {
	h := NewHub()
	roomID, playerID := uuid.New(), uuid.New()
	wait := h.ReconnectFunc(roomID)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	assert.False(t, wait(ctx, playerID))

	_, stop := context.WithCancel(context.Background())
	c := &client{send: make(chan game.GameEvent, 1), cancel: stop}
	h.register(roomID, playerID, c)
	assert.True(t, wait(context.Background(), playerID))

	assert.True(t, h.unregister(roomID, playerID, c))
	assert.False(t, h.Connected(roomID, playerID))
}

func TestHubDropsSlowClient(t *testing.T) {
	h := NewHub()
	roomID, playerID := uuid.New(), uuid.New()
	_, stop := context.WithCancel(context.Background())
	c := &client{send: make(chan game.GameEvent, 1), cancel: stop}
	h.register(roomID, playerID, c)

	h.Send(roomID, playerID, game.GameEvent{Type: game.EventPrivateSyncState})
	assert.True(t, h.Connected(roomID, playerID))
	h.Broadcast(roomID, game.GameEvent{Type: game.EventPlayerJoined})
	assert.False(t, h.Connected(roomID, playerID), "full queue drops the client")
	assert.True(t, h.unregister(roomID, playerID, c), "a dropped client leaves the player without a connection")

	_, stop2 := context.WithCancel(context.Background())
	fresh := &client{send: make(chan game.GameEvent, 1), cancel: stop2}
	h.register(roomID, playerID, fresh)
	assert.False(t, h.unregister(roomID, playerID, c), "a newer client keeps the seat")
	assert.True(t, h.Connected(roomID, playerID))
}

func TestDroppedClientStartsReconnect(t *testing.T) {
	srv, ts, signer := setupTestServer(t)
	roomID := uuid.New()
	host := models.User{ID: uuid.New(), Username: "host"}

	conn := dialAs(t, ts, signer, roomID, host, "")
	send(t, conn, game.ActionAddBot, nil)
	send(t, conn, game.ActionStart, nil)
	readUntil(t, conn, isSync(func(v *game.PlayerView) bool { return v.Started }))

	room, ok := srv.Registry().Get(roomID)
	require.True(t, ok)
	require.True(t, room.Sessions.IsConnected(host.ID))

	// Drop the client the way a full send queue does.
	srv.hub.mu.Lock()
	c, found := srv.hub.rooms[roomID][host.ID]
	if found {
		delete(srv.hub.rooms[roomID], host.ID)
		c.close()
	}
	srv.hub.mu.Unlock()
	require.True(t, found)

	require.Eventually(t, func() bool {
		return !room.Sessions.IsConnected(host.ID)
	}, 2*time.Second, 5*time.Millisecond, "the room must learn the player is gone")
}
