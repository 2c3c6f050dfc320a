// Package live pushes refreshed camera activity to browsers over WebSocket.
package live

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vzahanych/view-guard-meta/portal/internal/logger"
)

// Message types sent to clients
const (
	MessageUpdatedInfo = "updated_info"
	MessageError       = "error"
)

const (
	sendBuffer = 16
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// Message is one frame sent to a subscribed client
type Message struct {
	Type      string      `json:"type"`
	CameraID  string      `json:"cameraId"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// Target identifies what a camera's subscribers want refreshed.
// CameraName and TranscoderID may be empty and are then resolved from the camera.
type Target struct {
	CameraID     string
	CameraName   string
	TranscoderID string
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

type room struct {
	target  Target
	clients map[*client]struct{}
}

// Hub fans messages out to WebSocket clients grouped by camera
type Hub struct {
	logger      *logger.Logger
	upgrader    websocket.Upgrader
	mu          sync.RWMutex
	rooms       map[string]*room
	onSubscribe func(Target)
	closed      bool
}

// NewHub creates a hub accepting connections from allowedOrigins; "*" allows any origin
func NewHub(allowedOrigins []string, log *logger.Logger) *Hub {
	if log == nil {
		log = logger.NewNopLogger()
	}
	h := &Hub{
		logger: log,
		rooms:  make(map[string]*room),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return h
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(r *http.Request) bool { return true }
		}
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

// OnSubscribe registers a callback run whenever a client joins a camera
func (h *Hub) OnSubscribe(fn func(Target)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onSubscribe = fn
}

// ServeWS upgrades the request and streams messages for target until the client leaves
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, target Target) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", "camera_id", target.CameraID, "error", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	if !h.register(c, target) {
		conn.Close()
		return
	}
	h.logger.Debug("Live client connected", "camera_id", target.CameraID, "remote", r.RemoteAddr)

	go h.writePump(c)
	h.readPump(c)

	h.unregister(c, target.CameraID)
	h.logger.Debug("Live client disconnected", "camera_id", target.CameraID, "remote", r.RemoteAddr)
}

func (h *Hub) register(c *client, target Target) bool {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return false
	}
	rm, ok := h.rooms[target.CameraID]
	if !ok {
		rm = &room{target: target, clients: make(map[*client]struct{})}
		h.rooms[target.CameraID] = rm
	}
	// The latest subscriber's hints replace earlier ones
	if target.CameraName != "" {
		rm.target.CameraName = target.CameraName
	}
	if target.TranscoderID != "" {
		rm.target.TranscoderID = target.TranscoderID
	}
	rm.clients[c] = struct{}{}
	subscribed := rm.target
	fn := h.onSubscribe
	h.mu.Unlock()

	if fn != nil {
		fn(subscribed)
	}
	return true
}

func (h *Hub) unregister(c *client, cameraID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropLocked(c, cameraID)
}

// dropLocked removes c and closes its send channel exactly once
func (h *Hub) dropLocked(c *client, cameraID string) {
	rm, ok := h.rooms[cameraID]
	if !ok {
		return
	}
	if _, ok := rm.clients[c]; !ok {
		return
	}
	delete(rm.clients, c)
	close(c.send)
	if len(rm.clients) == 0 {
		delete(h.rooms, cameraID)
	}
}

// readPump consumes control frames until the connection fails
func (h *Hub) readPump(c *client) {
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
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
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
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

// Broadcast sends msg to every client of msg.CameraID. Clients that cannot
// keep up are disconnected.
func (h *Hub) Broadcast(msg Message) {
	if msg.Timestamp == 0 {
		msg.Timestamp = time.Now().Unix()
	}
	encoded, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("Failed to encode live message", "camera_id", msg.CameraID, "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	rm, ok := h.rooms[msg.CameraID]
	if !ok {
		return
	}
	for c := range rm.clients {
		select {
		case c.send <- encoded:
		default:
			h.logger.Warn("Dropping slow live client", "camera_id", msg.CameraID)
			h.dropLocked(c, msg.CameraID)
		}
	}
}

// Targets returns one target per camera that has subscribers
func (h *Hub) Targets() []Target {
	h.mu.RLock()
	defer h.mu.RUnlock()
	targets := make([]Target, 0, len(h.rooms))
	for _, rm := range h.rooms {
		targets = append(targets, rm.target)
	}
	return targets
}

// Target returns the subscription of cameraID, if anyone is watching it
func (h *Hub) Target(cameraID string) (Target, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	rm, ok := h.rooms[cameraID]
	if !ok {
		return Target{}, false
	}
	return rm.target, true
}

// ClientCount returns the number of clients watching cameraID
func (h *Hub) ClientCount(cameraID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if rm, ok := h.rooms[cameraID]; ok {
		return len(rm.clients)
	}
	return 0
}

// Close disconnects every client and rejects new ones
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for cameraID, rm := range h.rooms {
		for c := range rm.clients {
			h.dropLocked(c, cameraID)
		}
	}
}
