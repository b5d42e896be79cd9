package main

import (
	"time"

	"github.com/gorilla/websocket"
)

const (
	pongWait   = 30 * time.Second    // Time allowed to read the next pong message from the peer
	pingPeriod = (pongWait * 9) / 10 // Ping period must be less than pongWait
)

type Client struct {
	hub  *Hub
	conn *websocket.Conn
	done chan struct{}
}

func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		hub:  hub,
		conn: conn,
		done: make(chan struct{}),
	}
}

// readPump only drains control frames so pong handlers run. Clients don't
// send anything meaningful.
func (c *Client) readPump() {
	defer func() {
		close(c.done)
		c.hub.unregister <- c
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *Client) pingClient() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return // Connection is broken, readPump will unregister it
			}
		}
	}
}
