// Package simulator is the one narrow boundary the core crosses into the
// desktop GUI simulator: a websocket bridge that broadcasts the
// motion-state JSON, the pattern catalogue JSON, and sampled log lines to
// any connected simulator window. The core never depends on the simulator;
// the simulator only observes it.
package simulator

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ossm-project/ossm-core/internal/logger"
)

// MessageType tags the payload carried by one broadcast frame.
type MessageType string

const (
	MessageTypeState    MessageType = "state"
	MessageTypePatterns MessageType = "patterns"
	MessageTypeLog      MessageType = "log"
)

// Message is one frame sent to every connected simulator client.
type Message struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub fans out Message broadcasts to every connected simulator websocket
// client.
type Hub struct {
	mu      sync.RWMutex
	conns   map[*websocket.Conn]chan Message
	enabled bool
}

// NewHub constructs a hub. enabled mirrors config.Simulator.Enabled — when
// false, Broadcast and HandleWebSocket are both no-ops so a production
// build without a simulator attached pays no cost.
func NewHub(enabled bool) *Hub {
	return &Hub{conns: make(map[*websocket.Conn]chan Message), enabled: enabled}
}

// Broadcast sends a message to every connected client, dropping it for any
// client whose send buffer is full rather than blocking the caller.
func (h *Hub) Broadcast(msgType MessageType, data interface{}) {
	if !h.enabled {
		return
	}
	msg := Message{Type: msgType, Timestamp: time.Now(), Data: data}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.conns {
		select {
		case ch <- msg:
		default:
		}
	}
}

// BroadcastLog adapts internal/logger.BroadcastFunc so the logger's
// sampled websocket core can feed this hub directly via
// logger.SetBroadcaster(hub.BroadcastLog).
func (h *Hub) BroadcastLog(level, message, source string, fields map[string]interface{}) {
	h.Broadcast(MessageTypeLog, map[string]interface{}{
		"level":   level,
		"message": message,
		"source":  source,
		"fields":  fields,
	})
}

// HandleWebSocket upgrades r and registers the connection until it
// disconnects. Intended to be mounted at e.g. "/simulator/ws".
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if !h.enabled {
		http.Error(w, "simulator disabled", http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Get().Warn("simulator websocket upgrade failed", zap.Error(err))
		return
	}

	send := make(chan Message, 64)
	h.mu.Lock()
	h.conns[conn] = send
	h.mu.Unlock()

	go h.writePump(conn, send)
	h.readPump(conn, send)
}

func (h *Hub) readPump(conn *websocket.Conn, send chan Message) {
	defer h.unregister(conn, send)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(conn *websocket.Conn, send chan Message) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-send:
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			data, err := json.Marshal(msg)
			if err != nil {
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) unregister(conn *websocket.Conn, send chan Message) {
	h.mu.Lock()
	if _, ok := h.conns[conn]; ok {
		delete(h.conns, conn)
		close(send)
	}
	h.mu.Unlock()
	conn.Close()
}

// ClientCount returns the number of currently connected simulator clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}
