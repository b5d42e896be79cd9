package main

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubBroadcast(t *testing.T) {
	discardLogs(t)
	gin.SetMode(gin.TestMode)

	hub, err := NewHub()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	router := gin.New()
	router.GET("/ws", hub.HandleConnections)
	server := httptest.NewServer(router)
	defer server.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	// the client may not be registered yet, keep sending until one arrives
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		ticker := time.NewTicker(20 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				hub.BroadcastMessage(WsQueueUpdate{
					WsBaseMessage: WsBaseMessage{Type: "queue_update"},
					Jobs:          []Job{{ID: 1, Path: "/in/a.mp4"}},
				})
			}
		}
	}()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var message WsQueueUpdate
	require.NoError(t, conn.ReadJSON(&message))
	assert.Equal(t, "queue_update", message.Type)
	require.Len(t, message.Jobs, 1)
	assert.Equal(t, "/in/a.mp4", message.Jobs[0].Path)
}

func TestNilHubDropsMessages(t *testing.T) {
	var hub *Hub
	assert.NotPanics(t, func() {
		hub.BroadcastMessage(WsBaseMessage{Type: "noop"})
	})
}
