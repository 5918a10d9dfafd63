package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gkqls2420/projectGM-server/internal/agent"
	"github.com/gkqls2420/projectGM-server/internal/archive"
	"github.com/gkqls2420/projectGM-server/internal/catalog"
	"github.com/gkqls2420/projectGM-server/internal/config"
	"github.com/gkqls2420/projectGM-server/internal/matchmaking"
	"github.com/gkqls2420/projectGM-server/internal/room"
	"github.com/gkqls2420/projectGM-server/internal/session"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type serverFixture struct {
	server *Server
	decks  *agent.DeckSource
	wsURL  string
}

func newFixture(t *testing.T) *serverFixture {
	t.Helper()
	logger := zap.NewNop()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cat, err := catalog.LoadFile(filepath.Join("..", "..", "data", "cards.json"), logger)
	require.NoError(t, err)

	sessions := session.NewManager(logger)
	rooms := room.NewManager(logger, cat, archive.Discard{}, 15*time.Minute, time.Minute)
	decks := agent.NewDeckSource(cat, "", logger)
	matchmaker := matchmaking.New(logger, rooms, decks)
	s := New(logger, cfg, cat, sessions, rooms, matchmaker)

	ts := httptest.NewServer(s.httpServer.Handler)
	t.Cleanup(ts.Close)
	return &serverFixture{
		server: s,
		decks:  decks,
		wsURL:  "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws",
	}
}

func (f *serverFixture) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(f.wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntil drains messages until pred accepts one.
func readUntil(t *testing.T, conn *websocket.Conn, pred func(map[string]any) bool) map[string]any {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	conn.SetReadDeadline(deadline)
	for time.Now().Before(deadline) {
		var msg map[string]any
		require.NoError(t, conn.ReadJSON(&msg))
		if pred(msg) {
			return msg
		}
	}
	t.Fatal("expected message never arrived")
	return nil
}

func messageType(want string) func(map[string]any) bool {
	return func(m map[string]any) bool { return m["message_type"] == want }
}

func TestHealthEndpoint(t *testing.T) {
	f := newFixture(t)
	httpURL := "http" + strings.TrimPrefix(strings.TrimSuffix(f.wsURL, "/ws"), "ws")
	resp, err := http.Get(httpURL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestJoinServerAssignsIdentity(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t)

	require.NoError(t, conn.WriteJSON(map[string]any{
		"message_type": "join_server",
		"username":     "alpha",
	}))
	msg := readUntil(t, conn, messageType("join_server"))
	assert.Equal(t, "alpha", msg["username"])
	assert.NotEmpty(t, msg["player_id"])
}

func TestJoinServerGeneratesUsername(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t)

	require.NoError(t, conn.WriteJSON(map[string]any{"message_type": "join_server"}))
	msg := readUntil(t, conn, messageType("join_server"))
	username, _ := msg["username"].(string)
	assert.True(t, strings.HasPrefix(username, "player_"))
}

func TestServerInfoSnapshot(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t)

	require.NoError(t, conn.WriteJSON(map[string]any{"message_type": "server_info"}))
	msg := readUntil(t, conn, messageType("server_info"))
	assert.EqualValues(t, 1, msg["online_players"])
	assert.EqualValues(t, 0, msg["live_rooms"])
}

func TestJoinQueueVersusAIStartsMatch(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t)

	require.NoError(t, conn.WriteJSON(map[string]any{
		"message_type": "join_server",
		"username":     "alpha",
	}))
	joined := readUntil(t, conn, messageType("join_server"))
	playerID := joined["player_id"].(string)

	deck, err := f.decks.Resolve("starter_sora")
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(map[string]any{
		"message_type": "join_matchmaking_queue",
		"game_type":    matchmaking.GameTypeVersusAI,
		"deck":         deck,
	}))

	// The match starts immediately and pauses on a decision for us.
	decision := readUntil(t, conn, func(m map[string]any) bool {
		return m["desired_response"] != nil && m["event_player_id"] == playerID
	})
	assert.NotEmpty(t, decision["event_type"])
	assert.Equal(t, 1, f.server.rooms.Count())
}

func TestObserverGetEventsReturnsOrderedSlice(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t)

	require.NoError(t, conn.WriteJSON(map[string]any{
		"message_type": "join_server",
		"username":     "alpha",
	}))
	joined := readUntil(t, conn, messageType("join_server"))
	playerID := joined["player_id"].(string)

	deck, err := f.decks.Resolve("starter_sora")
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(map[string]any{
		"message_type": "join_matchmaking_queue",
		"game_type":    matchmaking.GameTypeVersusAI,
		"deck":         deck,
	}))
	readUntil(t, conn, func(m map[string]any) bool {
		return m["desired_response"] != nil && m["event_player_id"] == playerID
	})

	r, ok := f.server.rooms.RoomForPlayer(playerID)
	require.True(t, ok)

	// A second connection pulls the match log from the start.
	watcher := f.dial(t)
	require.NoError(t, watcher.WriteJSON(map[string]any{
		"message_type":     "observer_get_events",
		"room_id":          r.ID,
		"next_event_index": 0,
	}))
	msg := readUntil(t, watcher, messageType("observer_events"))
	events, _ := msg["events"].([]any)
	require.NotEmpty(t, events)
	first, _ := events[0].(map[string]any)
	assert.NotEmpty(t, first["event_type"])
	next := int(msg["next_event_index"].(float64))
	assert.Equal(t, len(events), next)

	// Resuming from the returned index yields nothing new.
	require.NoError(t, watcher.WriteJSON(map[string]any{
		"message_type":     "observer_get_events",
		"room_id":          r.ID,
		"next_event_index": next,
	}))
	msg = readUntil(t, watcher, messageType("observer_events"))
	events, _ = msg["events"].([]any)
	assert.Empty(t, events)
	assert.EqualValues(t, next, msg["next_event_index"])
}

func TestObserverGetEventsUnknownRoomRejected(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t)

	require.NoError(t, conn.WriteJSON(map[string]any{
		"message_type": "observer_get_events",
		"room_id":      "no_such_room",
	}))
	msg := readUntil(t, conn, messageType("error"))
	assert.Equal(t, "invalid_message", msg["error_id"])
}

func TestJoinQueueInvalidQueueNameRejected(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t)

	require.NoError(t, conn.WriteJSON(map[string]any{"message_type": "join_server"}))
	readUntil(t, conn, messageType("join_server"))

	deck, err := f.decks.Resolve("starter_sora")
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(map[string]any{
		"message_type": "join_matchmaking_queue",
		"queue_name":   "bad name!",
		"game_type":    matchmaking.GameTypeVersusPlayer,
		"deck":         deck,
	}))
	msg := readUntil(t, conn, messageType("error"))
	assert.Equal(t, "invalid_message", msg["error_id"])
}

func TestJoinQueueWithoutDeckRejected(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t)

	require.NoError(t, conn.WriteJSON(map[string]any{"message_type": "join_server"}))
	readUntil(t, conn, messageType("join_server"))

	require.NoError(t, conn.WriteJSON(map[string]any{
		"message_type": "join_matchmaking_queue",
		"game_type":    matchmaking.GameTypeVersusAI,
	}))
	msg := readUntil(t, conn, messageType("error"))
	assert.Equal(t, "invalid_message", msg["error_id"])
}

func TestUnknownMessageTypeRejected(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t)

	require.NoError(t, conn.WriteJSON(map[string]any{"message_type": "teleport"}))
	msg := readUntil(t, conn, messageType("error"))
	assert.Equal(t, "invalid_message", msg["error_id"])
}

func TestVersusPlayerQueuePairsTwoClients(t *testing.T) {
	f := newFixture(t)
	connA := f.dial(t)
	connB := f.dial(t)

	for _, c := range []*websocket.Conn{connA, connB} {
		require.NoError(t, c.WriteJSON(map[string]any{"message_type": "join_server"}))
		readUntil(t, c, messageType("join_server"))
	}

	deck, err := f.decks.Resolve("starter_sora")
	require.NoError(t, err)
	join := map[string]any{
		"message_type": "join_matchmaking_queue",
		"queue_name":   "ranked",
		"game_type":    matchmaking.GameTypeVersusPlayer,
		"deck":         deck,
	}

	require.NoError(t, connA.WriteJSON(join))
	queued := readUntil(t, connA, messageType("queued"))
	assert.Equal(t, "ranked", queued["queue_name"])

	require.NoError(t, connB.WriteJSON(join))
	started := readUntil(t, connB, func(m map[string]any) bool {
		return m["event_type"] == "game_start_info"
	})
	assert.NotNil(t, started)
	assert.Equal(t, 1, f.server.rooms.Count())
}
