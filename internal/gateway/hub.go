package gateway

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

// Hub maintains the set of connected sessions and fans broadcasts out to
// all of them, the sender included.
type Hub struct {
	sessions   map[*Session]struct{}
	register   chan *Session
	unregister chan *Session
	broadcast  chan []byte
	done       chan struct{}
	mu         sync.RWMutex
	log        logrus.FieldLogger
}

func NewHub(log logrus.FieldLogger) *Hub {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Hub{
		sessions:   make(map[*Session]struct{}),
		register:   make(chan *Session),
		unregister: make(chan *Session),
		broadcast:  make(chan []byte, 256),
		done:       make(chan struct{}),
		log:        log,
	}
}

// Run owns the session set until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	h.log.Info("websocket hub started")
	defer h.log.Info("websocket hub stopped")
	defer close(h.done)

	for {
		select {
		case s := <-h.register:
			h.mu.Lock()
			h.sessions[s] = struct{}{}
			h.mu.Unlock()
			h.log.WithField("client", s.ID()).Debug("client registered")

		case s := <-h.unregister:
			h.mu.Lock()
			delete(h.sessions, s)
			h.mu.Unlock()
			s.Close()
			h.log.WithField("client", s.ID()).Debug("client unregistered")

		case frame := <-h.broadcast:
			h.mu.RLock()
			for s := range h.sessions {
				s.enqueue(frame)
			}
			h.mu.RUnlock()

		case <-ctx.Done():
			h.mu.Lock()
			for s := range h.sessions {
				s.Close()
				delete(h.sessions, s)
			}
			h.mu.Unlock()
			return
		}
	}
}

// Register adds a session; it reports false once the hub has stopped.
func (h *Hub) Register(s *Session) bool {
	select {
	case h.register <- s:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) Unregister(s *Session) {
	select {
	case h.unregister <- s:
	case <-h.done:
	}
}

// Broadcast queues an event for every connected session.
func (h *Hub) Broadcast(event string, data any) {
	frame, err := encode(event, data)
	if err != nil {
		h.log.WithError(err).WithField("event", event).Error("broadcast encode failed")
		return
	}
	select {
	case h.broadcast <- frame:
	case <-h.done:
	default:
		h.log.WithField("event", event).Warn("broadcast queue full, dropping message")
	}
}

// Count returns the number of connected sessions.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}
