package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHostOriginValidator(t *testing.T) {
	validator := NewHostOriginValidator("0.0.0.0", 3000, "example.test:8443")

	tests := []struct {
		name     string
		origin   string
		expected bool
	}{
		{"bound host", "http://0.0.0.0:3000", true},
		{"localhost", "http://localhost:3000", true},
		{"loopback https", "https://127.0.0.1:3000", true},
		{"extra host", "https://example.test:8443", true},
		{"wrong port", "http://localhost:3001", false},
		{"foreign host", "http://evil.test:3000", false},
		{"bad scheme", "file://localhost:3000", false},
		{"garbage", "://", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, validator.IsAllowedOrigin(tt.origin))
		})
	}
}

func TestHandleWebSocketRejectsOrigin(t *testing.T) {
	manager := NewWebSocketManager(NewHostOriginValidator("localhost", 3000), nil)
	defer manager.Shutdown(context.Background())

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.Header.Set("Origin", "http://evil.test")
	rec := httptest.NewRecorder()

	manager.HandleWebSocket(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, 0, manager.GetConnectedClients())
}

func TestBroadcastReachesClient(t *testing.T) {
	manager := NewWebSocketManager(nil, nil)
	defer manager.Shutdown(context.Background())

	server := httptest.NewServer(http.HandlerFunc(manager.HandleWebSocket))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	require.Eventually(t, func() bool {
		return manager.GetConnectedClients() == 1
	}, 2*time.Second, 10*time.Millisecond)

	manager.BroadcastMessage(UpdateMessage{Type: MessageFullReload})

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)

	var msg UpdateMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, MessageFullReload, msg.Type)
	assert.False(t, msg.Timestamp.IsZero())
}

func TestShutdownRejectsNewClients(t *testing.T) {
	manager := NewWebSocketManager(nil, nil)
	require.NoError(t, manager.Shutdown(context.Background()))
	require.NoError(t, manager.Shutdown(context.Background()))
	assert.True(t, manager.IsShutdown())

	rec := httptest.NewRecorder()
	manager.HandleWebSocket(rec, httptest.NewRequest(http.MethodGet, "/ws", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	assert.NotPanics(t, func() {
		manager.BroadcastMessage(UpdateMessage{Type: MessageFullReload})
	})
}
