// Package events streams store changes to websocket clients so open
// dashboards can refresh after edits made elsewhere.
package events

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/GregMSThompson/dashboard-backend/internal/metrics"
	"github.com/GregMSThompson/dashboard-backend/internal/store"
	"github.com/GregMSThompson/dashboard-backend/pkg/logger"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	sendBuffer = 64
)

// Message is one change notification as sent on the wire.
type Message struct {
	Type      string           `json:"type"`
	Namespace string           `json:"namespace"`
	Kind      store.ChangeKind `json:"kind"`
	Keys      []string         `json:"keys"`
	Version   int64            `json:"version"`
	Timestamp time.Time        `json:"timestamp"`
}

type Hub struct {
	upgrader websocket.Upgrader
	version  atomic.Int64

	mu   sync.Mutex
	subs map[*subscriber]struct{}
}

type subscriber struct {
	conn   *websocket.Conn
	send   chan Message
	ctx    context.Context
	cancel context.CancelFunc
}

func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		subs: make(map[*subscriber]struct{}),
	}
}

// Serve upgrades the request and streams every change of s until the
// client disconnects. It blocks for the life of the connection.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, s *store.Store) {
	log := logger.FromContext(r.Context()).With("namespace", s.Namespace())
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("websocket upgrade failed", "error", err)
		return
	}

	// The request context ends with the upgrade; the connection gets its own.
	ctx, cancel := context.WithCancel(context.Background())
	sub := &subscriber{conn: conn, send: make(chan Message, sendBuffer), ctx: ctx, cancel: cancel}

	unsubscribe := s.Subscribe(func(c store.Change) {
		msg := Message{
			Type:      "change",
			Namespace: c.Namespace,
			Kind:      c.Kind,
			Keys:      c.Keys,
			Version:   h.version.Add(1),
			Timestamp: time.Now().UTC(),
		}
		select {
		case sub.send <- msg:
		case <-sub.ctx.Done():
		default:
			log.Warn("change feed client too slow, dropping message", "version", msg.Version)
		}
	})

	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()
	metrics.EventSubscribers.Inc()
	log.Info("change feed connected", "remote_addr", r.RemoteAddr)

	defer func() {
		unsubscribe()
		h.remove(sub)
		metrics.EventSubscribers.Dec()
		log.Info("change feed disconnected", "remote_addr", r.RemoteAddr)
	}()

	go sub.writePump()
	sub.readPump()
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	subs := make([]*subscriber, 0, len(h.subs))
	for s := range h.subs {
		subs = append(subs, s)
	}
	h.mu.Unlock()
	for _, s := range subs {
		s.cancel()
	}
}

// Subscribers is the number of open connections.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (h *Hub) remove(s *subscriber) {
	h.mu.Lock()
	delete(h.subs, s)
	h.mu.Unlock()
	s.cancel()
}

// readPump discards client messages; it exists to process control frames
// and notice when the peer goes away.
func (s *subscriber) readPump() {
	defer s.cancel()
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *subscriber) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case msg := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteJSON(msg); err != nil {
				s.cancel()
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.cancel()
				return
			}
		case <-s.ctx.Done():
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = s.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
