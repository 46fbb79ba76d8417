package client

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
)

func TestDeriveWSURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"http://3.15.51.67", "ws://3.15.51.67/ws"},
		{"https://bikes.example.com:8443/api", "wss://bikes.example.com:8443/ws"},
		{"::bad", "ws://127.0.0.1:8000/ws"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DeriveWSURL(tt.in), tt.in)
	}
}

func TestDispatch(t *testing.T) {
	c := NewWSClient("", "")

	msg := c.dispatch(WSMessage{Type: MsgNavProgress, Payload: json.RawMessage(`{"runId":"r1","waypoint":2,"total":5}`)})
	p, ok := msg.(WSNavProgressMsg)
	require.True(t, ok)
	assert.Equal(t, "r1", p.Payload.RunID)
	assert.Equal(t, 2, p.Payload.Waypoint)

	assert.Nil(t, c.dispatch(WSMessage{Type: "unknown"}))
	assert.Nil(t, c.dispatch(WSMessage{Type: MsgNavArrived, Payload: json.RawMessage(`not json`)}))
}

func TestListenAndReadLoop(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		conn, err := upgrader.Upgrade(w, r, nil)
		if !assert.NoError(t, err) {
			return
		}
		defer conn.Close()
		conn.WriteJSON(map[string]any{"type": "noise", "seq": 1})
		conn.WriteJSON(map[string]any{
			"type":    "nav_arrived",
			"seq":     2,
			"payload": map[string]any{"runId": "r9", "bikeId": "bike1"},
		})
		// Hold the connection open until the client goes away.
		conn.ReadMessage()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c := NewWSClient("ws"+strings.TrimPrefix(srv.URL, "http"), "tok")
	defer c.Close()

	_, ok := c.Listen(ctx)().(WSConnectedMsg)
	require.True(t, ok)

	msg := c.ReadLoop(ctx)()
	arrived, ok := msg.(WSNavArrivedMsg)
	require.True(t, ok, "got %T", msg)
	assert.Equal(t, "r9", arrived.Payload.RunID)
	assert.Equal(t, uint64(2), c.Seq())
}

func TestReadLoopWithoutConnection(t *testing.T) {
	c := NewWSClient("ws://unused", "")
	_, ok := c.ReadLoop(context.Background())().(WSDisconnectedMsg)
	assert.True(t, ok)
}

func TestListenStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := NewWSClient("ws://127.0.0.1:1/ws", "")
	assert.Nil(t, c.Listen(ctx)())
}
