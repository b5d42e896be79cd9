package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Hub fans messages out to every connected websocket client. A nil *Hub
// drops everything, which is what the CLI mode uses.
type Hub struct {
	logger     *logrus.Entry
	clients    map[*Client]bool
	broadcast  chan interface{}
	register   chan *Client
	unregister chan *Client
}

func NewHub() (*Hub, error) {
	logger, err := CreateLogger("ws")
	if err != nil {
		return nil, err
	}

	return &Hub{
		logger:     logger,
		clients:    make(map[*Client]bool),
		broadcast:  make(chan interface{}, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}, nil
}

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				h.remove(client)
			}
			return

		case client := <-h.register:
			h.clients[client] = true
			h.logger.Debug("Client registered: ", client.conn.RemoteAddr())

		case client := <-h.unregister:
			h.remove(client)

		case message := <-h.broadcast:
			for client := range h.clients {
				client.conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := client.conn.WriteJSON(message); err != nil {
					h.logger.Debugf("Error sending message to client %s: %v", client.conn.RemoteAddr(), err)
					h.remove(client)
				}
			}
		}
	}
}

func (h *Hub) remove(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}

	delete(h.clients, client)
	client.conn.Close()
	h.logger.Debug("Client unregistered: ", client.conn.RemoteAddr())
}

// BroadcastMessage never blocks, messages are dropped when the hub lags behind.
func (h *Hub) BroadcastMessage(message interface{}) {
	if h == nil {
		return
	}

	select {
	case h.broadcast <- message:
	default:
		h.logger.Debug("Broadcast channel full, dropping message")
	}
}

func (h *Hub) HandleConnections(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error(err)
		return
	}

	client := NewClient(h, conn)
	h.register <- client

	go client.readPump()
	go client.pingClient()
}
