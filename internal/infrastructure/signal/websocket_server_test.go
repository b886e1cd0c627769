package signal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cinesync/internal/core/domain"
	"cinesync/internal/core/services"
	"cinesync/internal/infrastructure/distributed"
	"cinesync/internal/infrastructure/middleware"
	"cinesync/internal/infrastructure/repositories/memory"
	"cinesync/pkg/logger"
)

type wsHarness struct {
	server   *httptest.Server
	ws       *WebSocketServer
	registry *Registry
	presence *memory.MemoryPresenceStore
	url      string
}

func newWSHarness(t *testing.T, opts Options, deps Dependencies) *wsHarness {
	t.Helper()
	log := logger.NewNop()

	bus := distributed.NewMemoryBus()
	registry := NewRegistry()
	store := memory.NewMemoryPresenceStore()
	relay := services.NewRelayService(bus, memory.NewMemoryHistoryStore(), registry, nil, nil, log)

	deps.Registry = registry
	deps.Relay = relay
	deps.Presence = services.NewPresenceService(store, registry, relay, log)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = relay.Run(ctx)
	}()
	require.Eventually(t, func() bool { return bus.Subscribers() == 1 }, time.Second, 5*time.Millisecond)

	ws := NewWebSocketServer(deps, opts, log)
	server := httptest.NewServer(http.HandlerFunc(ws.HandleWebSocket))
	t.Cleanup(func() {
		server.Close()
		cancel()
		<-done
	})

	return &wsHarness{
		server:   server,
		ws:       ws,
		registry: registry,
		presence: store,
		url:      "ws" + strings.TrimPrefix(server.URL, "http"),
	}
}

func (h *wsHarness) dial(t *testing.T, userID, username string) *websocket.Conn {
	t.Helper()
	header := http.Header{}
	header.Set(middleware.HeaderUserID, userID)
	header.Set(middleware.HeaderUsername, username)
	conn, resp, err := websocket.DefaultDialer.Dial(h.url, header)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

type receivedFrame struct {
	Destination string          `json:"destination"`
	Body        json.RawMessage `json:"body"`
}

func send(t *testing.T, conn *websocket.Conn, destination string, body interface{}) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(map[string]interface{}{"destination": destination, "body": body}))
}

// readUntil skips frames until one arrives on destination.
func readUntil(t *testing.T, conn *websocket.Conn, destination string) json.RawMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		var f receivedFrame
		require.NoError(t, conn.ReadJSON(&f))
		if f.Destination == destination {
			return f.Body
		}
	}
}

func joinRoom(t *testing.T, conn *websocket.Conn, roomID int) {
	t.Helper()
	send(t, conn, "/room/"+itoa(roomID)+"/join", map[string]interface{}{"type": "JOIN", "roomId": roomID})
	readUntil(t, conn, "/topic/room/"+itoa(roomID)+"/participants")
}

func itoa(i int) string {
	return domain.RoomID(i).String()
}

func TestWebSocket_RejectsMissingIdentity(t *testing.T) {
	h := newWSHarness(t, Options{}, Dependencies{})

	_, resp, err := websocket.DefaultDialer.Dial(h.url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestWebSocket_JoinAndChat(t *testing.T) {
	h := newWSHarness(t, Options{}, Dependencies{})
	alice := h.dial(t, "1", "alice")
	bob := h.dial(t, "2", "bob")

	joinRoom(t, alice, 5)
	joinRoom(t, bob, 5)

	var presence domain.PresenceEvent
	require.NoError(t, json.Unmarshal(readUntil(t, alice, "/topic/room/5/participants"), &presence))
	assert.ElementsMatch(t, []string{"1", "2"}, presence.Participants)

	send(t, bob, "/room/5/chat", map[string]interface{}{
		"type": "chat", "roomId": 5, "sender": "mallory", "userId": 99, "content": "hello",
	})

	for _, conn := range []*websocket.Conn{alice, bob} {
		var event domain.ChatEvent
		for event.Type != domain.ChatEventChat {
			require.NoError(t, json.Unmarshal(readUntil(t, conn, "/topic/room/5"), &event))
		}
		assert.Equal(t, "bob", event.Sender)
		assert.Equal(t, domain.UserID(2), event.UserID)
		assert.Equal(t, "hello", event.Content)
	}
}

func TestWebSocket_ChatBeforeJoinIsNonFatal(t *testing.T) {
	h := newWSHarness(t, Options{}, Dependencies{})
	conn := h.dial(t, "1", "alice")

	send(t, conn, "/room/5/chat", map[string]interface{}{"type": "CHAT", "roomId": 5, "content": "hi"})

	var body map[string]string
	require.NoError(t, json.Unmarshal(readUntil(t, conn, domain.ErrorsQueue), &body))
	assert.Equal(t, "NOT_PARTICIPANT", body["error"])

	// still usable
	joinRoom(t, conn, 5)
}

func TestWebSocket_InvalidFramesCloseWith1007(t *testing.T) {
	frames := []string{
		`garbage`,
		`{"destination":"/room/5/dance","body":{"type":"CHAT","roomId":5}}`,
		`{"destination":"/room/5/chat","body":{"roomId":5}}`,
		`{"destination":"/room/5/chat","body":{"type":"CHAT","roomId":6}}`,
	}
	h := newWSHarness(t, Options{}, Dependencies{})

	for _, raw := range frames {
		conn := h.dial(t, "1", "alice")
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(raw)))
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

		_, _, err := conn.ReadMessage()
		require.Error(t, err, raw)
		assert.True(t, websocket.IsCloseError(err, websocket.CloseInvalidFramePayloadData), "%s: %v", raw, err)
	}
}

func TestWebSocket_SignalRelay(t *testing.T) {
	h := newWSHarness(t, Options{}, Dependencies{})
	alice := h.dial(t, "1", "alice")
	bob := h.dial(t, "2", "bob")
	joinRoom(t, alice, 3)
	joinRoom(t, bob, 3)

	send(t, alice, "/room/3/signal", map[string]interface{}{
		"type": "offer", "roomId": 3, "target": "2", "payload": map[string]string{"sdp": "v=0"},
	})

	var event domain.SignalEvent
	require.NoError(t, json.Unmarshal(readUntil(t, bob, "/topic/room/3/signal"), &event))
	assert.Equal(t, domain.SignalOffer, event.Type)
	assert.Equal(t, "1", event.Sender)
	assert.Equal(t, "2", event.Target)
	assert.JSONEq(t, `{"sdp":"v=0"}`, string(event.Payload))
}

func TestWebSocket_DisconnectCleansPresence(t *testing.T) {
	h := newWSHarness(t, Options{}, Dependencies{})
	alice := h.dial(t, "1", "alice")
	bob := h.dial(t, "2", "bob")
	joinRoom(t, alice, 8)
	joinRoom(t, bob, 8)

	require.NoError(t, alice.Close())

	var event domain.ChatEvent
	for event.Type != domain.ChatEventLeave {
		require.NoError(t, json.Unmarshal(readUntil(t, bob, "/topic/room/8"), &event))
	}
	assert.Equal(t, "alice left!", event.Content)

	require.Eventually(t, func() bool {
		members, err := h.presence.Members(context.Background(), 8)
		return err == nil && len(members) == 1 && members[0] == "2"
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, h.registry.Count(8))
}

type denyAll struct{}

func (denyAll) IsParticipant(context.Context, domain.RoomID, domain.UserID) (bool, error) {
	return false, nil
}

func TestWebSocket_JoinValidatesAccess(t *testing.T) {
	h := newWSHarness(t, Options{ValidateRoomAccess: true}, Dependencies{Access: denyAll{}})
	conn := h.dial(t, "1", "alice")

	send(t, conn, "/room/4/join", map[string]interface{}{"type": "JOIN", "roomId": 4})

	var body map[string]string
	require.NoError(t, json.Unmarshal(readUntil(t, conn, domain.ErrorsQueue), &body))
	assert.Equal(t, "NOT_PARTICIPANT", body["error"])
	assert.Equal(t, 0, h.registry.Count(4))
}

func TestWebSocket_MessageRateLimit(t *testing.T) {
	h := newWSHarness(t, Options{MessagesPerSecond: 0.001, MessageBurst: 1}, Dependencies{})
	conn := h.dial(t, "1", "alice")

	joinRoom(t, conn, 2)
	send(t, conn, "/room/2/chat", map[string]interface{}{"type": "CHAT", "roomId": 2, "content": "spam"})

	var body map[string]string
	require.NoError(t, json.Unmarshal(readUntil(t, conn, domain.ErrorsQueue), &body))
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", body["error"])
}
