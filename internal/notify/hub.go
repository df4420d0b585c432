package notify

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The dashboard is served from a different origin than the API.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type client struct {
	id   uuid.UUID
	conn *websocket.Conn
	send chan []byte
}

// Hub fans change-feed events out to every connected websocket client.
// There is a single feed; filtering happens client-side, matching the
// dashboard's subscription model.
type Hub struct {
	mu         sync.RWMutex
	clients    map[*client]struct{}
	register   chan *client
	unregister chan *client
	broadcast  chan []byte
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*client]struct{}),
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan []byte, 256),
	}
}

// Run is the hub's main loop; start it in a goroutine.
func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			h.mu.Unlock()
			log.Debug().Stringer("client_id", c.id).Msg("notify: client connected")
			go c.writePump()

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
			log.Debug().Stringer("client_id", c.id).Msg("notify: client disconnected")

		case payload := <-h.broadcast:
			h.mu.RLock()
			for c := range h.clients {
				select {
				case c.send <- payload:
				default:
					// A full send buffer means a stalled client; drop it
					// rather than block the feed.
					go func(c *client) { h.unregister <- c }(c)
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Broadcast queues a payload for every connected client.
func (h *Hub) Broadcast(payload []byte) {
	h.broadcast <- payload
}

// HandleWebSocket upgrades the request and attaches the client to the feed.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("notify: failed to upgrade connection")
		return
	}

	c := &client{
		id:   uuid.New(),
		conn: conn,
		send: make(chan []byte, 256),
	}
	h.register <- c
	go c.readPump(h.unregister)
}

func (c *client) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *client) readPump(unregister chan<- *client) {
	defer func() { unregister <- c }()

	_ = c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Debug().Err(err).Stringer("client_id", c.id).Msg("notify: websocket read error")
			}
			return
		}
		// Inbound messages are ignored; the feed is one-way.
	}
}
