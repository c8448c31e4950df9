package ws

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	sendBuffer = 64
)

// Message is the envelope written to overlay clients.
type Message struct {
	Type      string    `json:"type"`
	Room      string    `json:"room"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// Hub fans room events out to plain websocket clients such as stream
// overlays. Clients only listen; anything they send is discarded.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*client]bool

	upgrader websocket.Upgrader
}

type client struct {
	room string
	conn *websocket.Conn
	send chan []byte
}

func NewHub() *Hub {
	return &Hub{
		rooms: make(map[string]map[*client]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[c.room] == nil {
		h.rooms[c.room] = make(map[*client]bool)
	}
	h.rooms[c.room][c] = true
	log.Debug().Str("code", c.room).Int("clients", len(h.rooms[c.room])).Msg("overlay connected")
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns := h.rooms[c.room]
	if !conns[c] {
		return
	}
	delete(conns, c)
	close(c.send)
	if len(conns) == 0 {
		delete(h.rooms, c.room)
	}
	log.Debug().Str("code", c.room).Msg("overlay disconnected")
}

// Publish queues event for every overlay client of room. Slow clients whose
// buffer is full are dropped.
func (h *Hub) Publish(room, event string, payload any) {
	data, err := json.Marshal(Message{Type: event, Room: room, Timestamp: time.Now().UTC(), Data: payload})
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("marshal overlay event")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.rooms[room] {
		select {
		case c.send <- data:
		default:
			delete(h.rooms[room], c)
			close(c.send)
		}
	}
}

func (h *Hub) ClientCount(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// Serve upgrades the request and attaches the connection to room.
func (h *Hub) Serve(c *gin.Context, room string) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn().Err(err).Str("code", room).Msg("websocket upgrade")
		return
	}
	cl := &client{room: room, conn: conn, send: make(chan []byte, sendBuffer)}
	h.add(cl)
	go cl.writePump()
	cl.readPump(h)
}

func (c *client) readPump(h *Hub) {
	defer func() {
		h.remove(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Debug().Err(err).Str("code", c.room).Msg("overlay read")
			}
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
