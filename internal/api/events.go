package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/bridgekit/llm-bridge/internal/logging"
)

// event is one management feed message.
type event struct {
	Type    string         `json:"type"`
	Time    time.Time      `json:"time"`
	Payload map[string]any `json:"payload,omitempty"`
}

// eventHub fans management events out to websocket subscribers. Slow
// subscribers are dropped rather than blocking the broadcast.
type eventHub struct {
	mu     sync.Mutex
	subs   map[*websocket.Conn]chan event
	closed bool
}

func newEventHub() *eventHub {
	return &eventHub{subs: make(map[*websocket.Conn]chan event)}
}

func (h *eventHub) broadcast(ev event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn, ch := range h.subs {
		select {
		case ch <- ev:
		default:
			logging.Debugf("event subscriber too slow, dropping connection")
			delete(h.subs, conn)
			close(ch)
		}
	}
}

func (h *eventHub) subscribe(conn *websocket.Conn) chan event {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	ch := make(chan event, 16)
	h.subs[conn] = ch
	return ch
}

func (h *eventHub) unsubscribe(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.subs[conn]; ok {
		delete(h.subs, conn)
		close(ch)
	}
}

func (h *eventHub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for conn, ch := range h.subs {
		close(ch)
		_ = conn.Close()
		delete(h.subs, conn)
	}
}

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// handleEvents upgrades to a websocket and streams catalog, config and
// usage events until the client goes away.
func (s *Server) handleEvents(c *gin.Context) {
	conn, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	ch := s.events.subscribe(conn)
	if ch == nil {
		_ = conn.Close()
		return
	}
	defer func() {
		s.events.unsubscribe(conn)
		_ = conn.Close()
	}()

	// Reader goroutine only detects disconnect; clients never send.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
