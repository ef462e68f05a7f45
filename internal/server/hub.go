package server

import (
	"context"
	"encoding/json"
	"time"

	"github.com/coder/websocket"

	"github.com/sitepipe/sitepipe/internal/logging"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512
)

// Message types sent to browsers.
const (
	MessageReload = "reload"
	MessageCSS    = "css"
)

// Message is a live-reload event.
type Message struct {
	Type      string    `json:"type"`
	Paths     []string  `json:"paths,omitempty"`
	Errors    []string  `json:"errors,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Client is one connected browser.
type Client struct {
	conn *websocket.Conn
	send chan []byte
	hub  *Hub
}

// Hub fans live-reload messages out to every connected client.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	count      chan chan int
	logger     logging.Logger
}

// NewHub creates a hub. Run must be called for it to deliver messages.
func NewHub(logger logging.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 16),
		count:      make(chan chan int),
		logger:     logger,
	}
}

// Run serves register, unregister and broadcast requests until ctx is
// cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		for client := range h.clients {
			delete(h.clients, client)
			close(client.send)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.clients[client] = true
			h.logger.Debug(ctx, "Live reload client connected", "clients", len(h.clients))

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				h.logger.Debug(ctx, "Live reload client disconnected", "clients", len(h.clients))
			}

		case message := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Client's send channel is full, drop it.
					delete(h.clients, client)
					close(client.send)
				}
			}

		case reply := <-h.count:
			reply <- len(h.clients)
		}
	}
}

// Broadcast queues msg for every client. It never blocks; when the queue is
// full the message is dropped.
func (h *Hub) Broadcast(msg Message) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	data, err := json.Marshal(msg)
	if err != nil {
		data = []byte(`{"type":"reload"}`)
	}
	select {
	case h.broadcast <- data:
	default:
		h.logger.Debug(context.Background(), "Live reload queue full, dropping message", "type", msg.Type)
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients(ctx context.Context) int {
	reply := make(chan int, 1)
	select {
	case h.count <- reply:
		return <-reply
	case <-ctx.Done():
		return 0
	}
}

// serve registers conn and pumps messages until either side goes away.
func (h *Hub) serve(ctx context.Context, conn *websocket.Conn) {
	client := &Client{
		conn: conn,
		send: make(chan []byte, 256),
		hub:  h,
	}

	select {
	case h.register <- client:
	case <-ctx.Done():
		conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}

	go client.writePump(ctx)
	client.readPump(ctx)
}

// readPump discards incoming messages and unregisters the client when the
// connection closes.
func (c *Client) readPump(ctx context.Context) {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-ctx.Done():
		}
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	c.conn.SetReadLimit(maxMessageSize)

	for {
		readCtx, cancel := context.WithTimeout(ctx, pongWait)
		_, _, err := c.conn.Read(readCtx)
		cancel()
		if err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway && ctx.Err() == nil {
				c.hub.logger.Debug(ctx, "Live reload read ended", "error", err.Error())
			}
			return
		}
	}
}

// writePump delivers queued messages and keeps the connection alive.
func (c *Client) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Write(writeCtx, websocket.MessageText, message)
			cancel()
			if err != nil {
				return
			}

		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return
			}

		case <-ctx.Done():
			return
		}
	}
}
