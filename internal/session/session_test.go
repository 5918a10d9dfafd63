package session

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// socketPair upgrades one real websocket connection and returns the server
// side wrapped as a Client plus the dialer side.
func socketPair(t *testing.T) (*Client, *websocket.Conn) {
	t.Helper()
	upgrader := websocket.Upgrader{}
	ready := make(chan *Client, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		ready <- NewClient("c1", conn, zap.NewNop())
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	dial, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { dial.Close() })

	select {
	case c := <-ready:
		return c, dial
	case <-time.After(5 * time.Second):
		t.Fatal("server never accepted the connection")
		return nil, nil
	}
}

func TestSendJSONReachesPeer(t *testing.T) {
	client, dial := socketPair(t)
	go client.WritePump()
	defer client.Close()

	require.NoError(t, client.SendJSON(map[string]any{"message_type": "server_info"}))

	dial.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := dial.ReadMessage()
	require.NoError(t, err)
	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "server_info", got["message_type"])
}

func TestReadPumpDeliversDecodedMessages(t *testing.T) {
	client, dial := socketPair(t)
	go client.WritePump()

	received := make(chan map[string]any, 8)
	closed := make(chan struct{})
	go client.ReadPump(
		func(payload map[string]any) { received <- payload },
		func() { close(closed) },
	)

	require.NoError(t, dial.WriteJSON(map[string]any{"message_type": "join_server", "username": "alpha"}))
	select {
	case payload := <-received:
		assert.Equal(t, "join_server", payload["message_type"])
	case <-time.After(5 * time.Second):
		t.Fatal("message never reached the handler")
	}

	// Malformed payloads are answered with an error, not handed to handle.
	require.NoError(t, dial.WriteMessage(websocket.TextMessage, []byte("{not json")))
	dial.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := dial.ReadMessage()
	require.NoError(t, err)
	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "malformed_message", got["error_id"])
	assert.Empty(t, received)

	// Closing the peer ends the pump and fires onClose exactly once.
	dial.Close()
	select {
	case <-closed:
	case <-time.After(5 * time.Second):
		t.Fatal("onClose never ran")
	}
}

func TestClientUsername(t *testing.T) {
	client, _ := socketPair(t)
	defer client.Close()
	assert.Empty(t, client.Username())
	client.SetUsername("alpha")
	assert.Equal(t, "alpha", client.Username())
}

func TestIdleClientIsReclaimed(t *testing.T) {
	client, _ := socketPair(t)
	go client.WritePump()

	closed := make(chan struct{})
	go client.ReadPump(func(map[string]any) {}, func() { close(closed) })

	m := NewManager(zap.NewNop())
	m.Add(client)

	// A freshly connected client is within the threshold and survives.
	m.ReclaimIdle(time.Now(), 15*time.Minute)
	select {
	case <-closed:
		t.Fatal("fresh client was disconnected")
	case <-time.After(100 * time.Millisecond):
	}

	// Past the threshold the sweep closes the connection.
	m.ReclaimIdle(time.Now().Add(16*time.Minute), 15*time.Minute)
	select {
	case <-closed:
	case <-time.After(5 * time.Second):
		t.Fatal("idle client was never disconnected")
	}
}

func TestManagerRegistry(t *testing.T) {
	m := NewManager(zap.NewNop())
	a, _ := socketPair(t)
	b, _ := socketPair(t)
	b.ID = "c2"
	defer a.Close()
	defer b.Close()

	m.Add(a)
	m.Add(b)
	assert.Equal(t, 2, m.Count())

	got, ok := m.Get("c1")
	require.True(t, ok)
	assert.Same(t, a, got)

	m.Broadcast(map[string]any{"message_type": "server_info"})
	assert.Len(t, a.send, 1)
	assert.Len(t, b.send, 1)

	m.Remove("c1")
	assert.Equal(t, 1, m.Count())
	_, ok = m.Get("c1")
	assert.False(t, ok)
}
