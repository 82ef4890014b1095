package gateway

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"dryengineer/internal/domain"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Profile images arrive base64 encoded inside a single frame.
	maxMessageSize = 16 << 20

	sendBuffer = 256
)

// Session is one websocket connection and the identity bound to it.
type Session struct {
	id     string
	conn   *websocket.Conn
	hub    *Hub
	send   chan []byte
	ctx    context.Context
	cancel context.CancelFunc
	log    logrus.FieldLogger

	mu       sync.RWMutex
	user     *domain.User
	presence *domain.User
}

func newSession(ctx context.Context, hub *Hub, conn *websocket.Conn, log logrus.FieldLogger) *Session {
	id := uuid.NewString()
	ctx, cancel := context.WithCancel(ctx)
	return &Session{
		id:     id,
		conn:   conn,
		hub:    hub,
		send:   make(chan []byte, sendBuffer),
		ctx:    ctx,
		cancel: cancel,
		log:    log.WithField("client", id),
	}
}

func (s *Session) ID() string { return s.id }

// User returns the authenticated user of the connection, if any.
func (s *Session) User() *domain.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

func (s *Session) setUser(u *domain.User) {
	s.mu.Lock()
	s.user = u
	s.mu.Unlock()
}

// Presence returns the user last announced with setCurrentUser.
func (s *Session) Presence() *domain.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.presence
}

func (s *Session) setPresence(u *domain.User) {
	s.mu.Lock()
	s.presence = u
	s.mu.Unlock()
}

// Close stops both pumps. It is safe to call more than once.
func (s *Session) Close() {
	s.cancel()
}

// Emit queues an event for this connection only.
func (s *Session) Emit(event string, data any) {
	frame, err := encode(event, data)
	if err != nil {
		s.log.WithError(err).WithField("event", event).Error("encode failed")
		return
	}
	s.enqueue(frame)
}

func (s *Session) enqueue(frame []byte) {
	select {
	case <-s.ctx.Done():
		return
	default:
	}
	select {
	case s.send <- frame:
	default:
		s.log.Warn("client send queue full, dropping message")
	}
}

func (s *Session) readPump(dispatch func(*Session, Envelope)) {
	defer func() {
		s.hub.Unregister(s)
		s.Close()
		s.conn.Close()
	}()

	s.conn.SetReadLimit(maxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.log.WithError(err).Warn("websocket read error")
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(message, &env); err != nil || env.Event == "" {
			s.log.WithError(err).Debug("dropping malformed frame")
			s.Emit(EventError, unknownEvent{Message: "malformed frame"})
			continue
		}
		dispatch(s, env)
	}
}

func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case frame := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				s.log.WithError(err).Debug("websocket write failed")
				s.Close()
				return
			}

		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.Close()
				return
			}

		case <-s.ctx.Done():
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
