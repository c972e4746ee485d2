package realtime

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"competitive-programming-platform/internal/contestcore"
)

// wireConn is the subset of *websocket.Conn a Session drives; narrowed so
// tests can substitute a fake without opening a real socket.
type wireConn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(string) error)
	Close() error
}

// Session is one authenticated C5 connection: readPump decodes client
// events and hands them to the handlers in service.go; writePump drains
// outbound envelopes and the 30s heartbeat ping, grounded on the teacher's
// Client.Listen/WriteEvent split (one goroutine per direction instead of a
// single select loop, since a websocket needs its own reader goroutine).
type Session struct {
	id        string
	userID    string
	role      string
	contestID string

	conn wireConn
	hub  *Hub
	svc  *Service

	send chan contestcore.Envelope

	closeOnce sync.Once
	closed    chan struct{}
}

func newSession(conn wireConn, userID, role string, hub *Hub, svc *Service) *Session {
	return &Session{
		id:     uuid.NewString(),
		userID: userID,
		role:   role,
		conn:   conn,
		hub:    hub,
		svc:    svc,
		send:   make(chan contestcore.Envelope, sendBuffer),
		closed: make(chan struct{}),
	}
}

func (s *Session) enqueue(event string, data interface{}) {
	select {
	case s.send <- contestcore.Envelope{Event: event, Data: data, Timestamp: time.Now()}:
	default:
		log.Printf("realtime: session %s send buffer full, dropping %s", s.id, event)
	}
}

func (s *Session) close() {
	s.closeOnce.Do(func() {
		close(s.closed)
		s.conn.Close()
	})
}

// clientEvent is the shape every inbound message decodes into before
// per-event payload unmarshalling.
type clientEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// readPump blocks reading client frames until the connection errors or
// closes, dispatching each to Service's event handlers. Runs on its own
// goroutine per connection, grounded on the teacher's per-client Listen
// goroutine generalized to bidirectional reads.
func (s *Session) readPump() {
	defer func() {
		s.hub.unregister <- s
	}()

	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		var evt clientEvent
		if err := json.Unmarshal(raw, &evt); err != nil {
			s.enqueue(contestcore.EventError, contestcore.ErrorPayload{
				Code: contestcore.CodeInvalidEvent, Message: "malformed message",
			})
			continue
		}
		s.svc.dispatch(s, evt)
	}
}

// writePump drains s.send and issues the periodic heartbeat ping; any
// session that hasn't responded to a ping within pongWait is dropped by the
// read deadline expiring, per spec.md §4.5 Heartbeat.
func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case env, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			payload, err := json.Marshal(env)
			if err != nil {
				continue
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}

		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-s.closed:
			return
		}
	}
}
