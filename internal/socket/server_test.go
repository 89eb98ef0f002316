package socket

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"watchparty/backend/internal/apperr"
	"watchparty/backend/internal/directory"
	"watchparty/backend/internal/hub"
	"watchparty/backend/internal/models"
	"watchparty/backend/internal/party"
	"watchparty/backend/internal/relay"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type fixture struct {
	registry *hub.Registry
	dir      *directory.MemoryDirectory
	parties  *party.Service
	url      string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	registry := hub.NewRegistry()
	dir := directory.NewMemoryDirectory()
	parties := party.NewService(dir, registry)

	chat := relay.NewChatRelay(rdb, registry, relay.ChatOptions{Group: "chat-relay:test", Block: 50 * time.Millisecond})
	require.NoError(t, chat.Start(context.Background()))
	t.Cleanup(chat.Close)

	server := NewServer(registry, parties, chat, relay.NewDrawingRelay(registry), Options{SendBuffer: 64})
	return &fixture{
		registry: registry,
		dir:      dir,
		parties:  parties,
		url:      serve(t, server),
	}
}

// serve mounts server on a test HTTP server and returns its WebSocket URL.
func serve(t *testing.T, server *Server) string {
	t.Helper()
	router := gin.New()
	router.GET("/ws", server.ServeWS)

	ts := httptest.NewServer(router)
	t.Cleanup(ts.Close)
	t.Cleanup(server.CloseAll)
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

func (f *fixture) user(t *testing.T, name string) uint {
	t.Helper()
	u := &models.User{Username: name, PasswordHash: "x"}
	require.NoError(t, f.dir.CreateUser(context.Background(), u))
	return u.ID
}

func (f *fixture) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	return dial(t, f.url)
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, typ string, payload interface{}) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(map[string]interface{}{"type": typ, "payload": payload}))
}

func next(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	var f frame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func expect(t *testing.T, conn *websocket.Conn, typ string, into interface{}) {
	t.Helper()
	f := next(t, conn)
	require.Equal(t, typ, f.Type, string(f.Payload))
	if into != nil {
		require.NoError(t, json.Unmarshal(f.Payload, into))
	}
}

func TestServer_JoinBroadcastsUserJoined(t *testing.T) {
	f := newFixture(t)
	alice, bob := f.user(t, "alice"), f.user(t, "bob")
	p, err := f.parties.CreateParty(context.Background(), "Movie Night", alice)
	require.NoError(t, err)

	a, b := f.dial(t), f.dial(t)
	send(t, a, "join", map[string]interface{}{"userId": alice, "partyCode": p.Code})
	var joined UserJoined
	expect(t, a, hub.EventUserJoined, &joined)
	assert.Equal(t, UserJoined{UserID: alice, PartyCode: p.Code}, joined)

	send(t, b, "join", map[string]interface{}{"userId": bob, "partyCode": strings.ToLower(p.Code)})
	expect(t, b, hub.EventUserJoined, &joined)
	assert.Equal(t, bob, joined.UserID)
	expect(t, a, hub.EventUserJoined, &joined)
	assert.Equal(t, UserJoined{UserID: bob, PartyCode: p.Code}, joined)

	assert.Len(t, f.registry.MembersInRoom(p.Code), 2)
}

func TestServer_JoinUnknownPartyErrorsSenderOnly(t *testing.T) {
	f := newFixture(t)
	a := f.dial(t)

	send(t, a, "join", map[string]interface{}{"userId": 1, "partyCode": "NOPE123"})
	var e ErrorPayload
	expect(t, a, hub.EventError, &e)
	assert.Equal(t, apperr.ErrNotFound.Error(), e.Message)
	assert.Empty(t, f.registry.MembersInRoom("NOPE123"))
}

func TestServer_RejectsBadInput(t *testing.T) {
	f := newFixture(t)
	a := f.dial(t)

	require.NoError(t, a.WriteMessage(websocket.TextMessage, []byte("{not json")))
	expect(t, a, hub.EventError, nil)

	send(t, a, "dance", map[string]interface{}{})
	var e ErrorPayload
	expect(t, a, hub.EventError, &e)
	assert.Contains(t, e.Message, "dance")

	send(t, a, "chat", map[string]interface{}{"userId": 1, "partyCode": "ABC1234"})
	expect(t, a, hub.EventError, nil)

	send(t, a, "join", nil)
	expect(t, a, hub.EventError, nil)
}

func TestServer_ErrorFramesNameTheField(t *testing.T) {
	f := newFixture(t)
	a := f.dial(t)

	cases := []struct {
		payload map[string]interface{}
		want    string
	}{
		{map[string]interface{}{"userId": "abc", "partyCode": "ABC1234", "message": "hi"}, "userId must be a positive number"},
		{map[string]interface{}{"userId": 1, "partyCode": "AB", "message": "hi"}, "partyCode must be 7 letters or digits"},
		{map[string]interface{}{"userId": 1, "partyCode": "ABC1234", "message": ""}, "message must be between 1 and 4000 characters"},
		{map[string]interface{}{"userId": 1, "partyCode": 1234567, "message": "hi"}, "partyCode must be 7 letters or digits"},
	}
	for _, tc := range cases {
		send(t, a, "chat", tc.payload)
		var e ErrorPayload
		expect(t, a, hub.EventError, &e)
		assert.Equal(t, tc.want, e.Message)
		for _, internal := range []string{"Go struct", "Key: '", "chatRequest", "json:"} {
			assert.NotContains(t, e.Message, internal)
		}
	}

	require.NoError(t, a.WriteMessage(websocket.TextMessage, []byte(`{"type":"join","payload":[1,2]}`)))
	var e ErrorPayload
	expect(t, a, hub.EventError, &e)
	assert.Equal(t, "invalid payload", e.Message)
}

// dissolvingParties finds the party once, then reports it gone, as if the admin
// left between the two lookups of a join.
type dissolvingParties struct {
	party *models.Party

	mu    sync.Mutex
	calls int
}

func (p *dissolvingParties) Lookup(_ context.Context, _ string) (*models.Party, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.calls == 1 {
		return p.party, nil
	}
	return nil, apperr.ErrNotFound
}

func TestServer_JoinRacingDissolutionLeavesNoRoom(t *testing.T) {
	gin.SetMode(gin.TestMode)
	registry := hub.NewRegistry()
	parties := &dissolvingParties{party: &models.Party{ID: 1, Code: "ABC1234", AdminID: 1}}
	url := serve(t, NewServer(registry, parties, nil, relay.NewDrawingRelay(registry), Options{}))

	a := dial(t, url)
	send(t, a, "join", map[string]interface{}{"userId": 2, "partyCode": "ABC1234"})

	var e ErrorPayload
	expect(t, a, hub.EventError, &e)
	assert.Equal(t, apperr.ErrNotFound.Error(), e.Message)
	assert.Empty(t, registry.MembersInRoom("ABC1234"))
	assert.Equal(t, hub.Stats{}, registry.Stats())
}

func TestServer_DrawingSkipsSender(t *testing.T) {
	f := newFixture(t)
	alice, bob := f.user(t, "alice"), f.user(t, "bob")
	p, err := f.parties.CreateParty(context.Background(), "Sketch", alice)
	require.NoError(t, err)

	a, b := f.dial(t), f.dial(t)
	send(t, a, "join", map[string]interface{}{"userId": alice, "partyCode": p.Code})
	expect(t, a, hub.EventUserJoined, nil)
	send(t, b, "join", map[string]interface{}{"userId": bob, "partyCode": p.Code})
	expect(t, a, hub.EventUserJoined, nil)
	expect(t, b, hub.EventUserJoined, nil)

	send(t, a, "drawingData", map[string]interface{}{"partyCode": p.Code, "payload": map[string]interface{}{"x": 10, "y": 20}})
	send(t, a, "clearDrawing", map[string]interface{}{"partyCode": p.Code})

	var drawing relay.DrawingPayload
	expect(t, b, hub.EventDrawingData, &drawing)
	assert.Equal(t, p.Code, drawing.PartyCode)
	assert.JSONEq(t, `{"x":10,"y":20}`, string(drawing.Payload))
	expect(t, b, hub.EventClearDrawing, nil)

	// Frames to one connection arrive in order, so the next thing the sender sees
	// is this error rather than its own drawing.
	send(t, a, "dance", map[string]interface{}{})
	expect(t, a, hub.EventError, nil)
}

func TestServer_DisconnectLeavesRooms(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice")
	p, err := f.parties.CreateParty(context.Background(), "Movie Night", alice)
	require.NoError(t, err)

	a := f.dial(t)
	send(t, a, "join", map[string]interface{}{"userId": alice, "partyCode": p.Code})
	expect(t, a, hub.EventUserJoined, nil)
	require.Len(t, f.registry.MembersInRoom(p.Code), 1)

	require.NoError(t, a.Close())
	assert.Eventually(t, func() bool {
		return f.registry.Stats().Connections == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestServer_LeaveStopsDelivery(t *testing.T) {
	f := newFixture(t)
	alice, bob := f.user(t, "alice"), f.user(t, "bob")
	p, err := f.parties.CreateParty(context.Background(), "Movie Night", alice)
	require.NoError(t, err)

	a, b := f.dial(t), f.dial(t)
	send(t, a, "join", map[string]interface{}{"userId": alice, "partyCode": p.Code})
	expect(t, a, hub.EventUserJoined, nil)
	send(t, b, "join", map[string]interface{}{"userId": bob, "partyCode": p.Code})
	expect(t, a, hub.EventUserJoined, nil)
	expect(t, b, hub.EventUserJoined, nil)

	send(t, b, "leave", map[string]interface{}{"userId": bob, "partyCode": p.Code})
	require.Eventually(t, func() bool {
		return len(f.registry.MembersInRoom(p.Code)) == 1
	}, 2*time.Second, 10*time.Millisecond)

	send(t, a, "drawingData", map[string]interface{}{"partyCode": p.Code, "payload": 1})
	send(t, b, "dance", map[string]interface{}{})
	expect(t, b, hub.EventError, nil)
}

// A full session: create, join, chat through the broker, then the admin leaves.
func TestServer_WatchPartySession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := f.user(t, "alice"), f.user(t, "bob")

	p, err := f.parties.CreateParty(ctx, "Movie Night", alice)
	require.NoError(t, err)
	_, members, err := f.parties.JoinParty(ctx, p.Code, bob)
	require.NoError(t, err)
	assert.Len(t, members, 2)

	a, b := f.dial(t), f.dial(t)
	send(t, a, "join", map[string]interface{}{"userId": alice, "partyCode": p.Code})
	expect(t, a, hub.EventUserJoined, nil)
	send(t, b, "join", map[string]interface{}{"userId": bob, "partyCode": p.Code})
	expect(t, a, hub.EventUserJoined, nil)
	expect(t, b, hub.EventUserJoined, nil)

	send(t, b, "chat", map[string]interface{}{"userId": bob, "partyCode": p.Code, "message": "hi"})
	for _, conn := range []*websocket.Conn{a, b} {
		var msg relay.ChatMessage
		expect(t, conn, hub.EventChat, &msg)
		assert.Equal(t, p.Code, msg.PartyCode)
		assert.Equal(t, bob, msg.UserID)
		assert.Equal(t, "hi", msg.Message)
	}

	outcome, err := f.parties.LeaveParty(ctx, p.Code, alice)
	require.NoError(t, err)
	assert.True(t, outcome.Dissolved)

	expect(t, a, hub.EventPartyDeleted, nil)
	expect(t, b, hub.EventPartyDeleted, nil)
	assert.Empty(t, f.registry.MembersInRoom(p.Code))

	_, err = f.parties.MembersOf(ctx, p.Code)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
