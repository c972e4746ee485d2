// Package realtime implements C5 (authenticated session fan-out) and C6
// (public broadcast), adapted from the teacher's SSE Hub: a single
// goroutine owning the room/session tables, reachable only through its
// register/unregister/broadcast channels, generalized here from
// one-hub-total to rooms keyed by contestId and a second unauthenticated
// hub for C6.
package realtime

import (
	"context"
	"log"
	"sync"
	"time"

	"competitive-programming-platform/internal/contestcore"
	"competitive-programming-platform/internal/metrics"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 35 * time.Second
	pingPeriod = 30 * time.Second
	sendBuffer = 64
)

// Hub owns every authenticated Session and its room membership. Mutations
// to the clients/rooms maps only ever happen inside run, matching the
// teacher's single-select-loop-owns-state shape; Broadcast* calls from
// other goroutines (the orchestrator, C3) only ever post onto channels.
type Hub struct {
	register   chan *Session
	unregister chan *Session
	roomSend   chan roomMessage
	userSend   chan userMessage

	mu      sync.RWMutex
	clients map[string]*Session            // sessionID -> session
	rooms   map[string]map[string]*Session // contestID -> sessionID -> session
}

type roomMessage struct {
	contestID string
	event     string
	data      interface{}
}

type userMessage struct {
	contestID string
	userID    string
	event     string
	data      interface{}
}

// NewHub builds an idle Hub. Call Run to start its loop.
func NewHub() *Hub {
	return &Hub{
		register:   make(chan *Session),
		unregister: make(chan *Session),
		roomSend:   make(chan roomMessage, 256),
		userSend:   make(chan userMessage, 256),
		clients:    make(map[string]*Session),
		rooms:      make(map[string]map[string]*Session),
	}
}

// Run drains the Hub's channels until ctx is cancelled, at which point every
// session is closed (server-shutdown drain, per spec.md §5 Cancellation).
func (h *Hub) Run(ctx context.Context) {
	log.Println("realtime: hub starting")
	for {
		select {
		case s := <-h.register:
			h.mu.Lock()
			h.clients[s.id] = s
			if s.contestID != "" {
				room, ok := h.rooms[s.contestID]
				if !ok {
					room = make(map[string]*Session)
					h.rooms[s.contestID] = room
				}
				room[s.id] = s
			}
			total := len(h.clients)
			h.mu.Unlock()
			metrics.NewApplicationMetrics().SetRealtimeConnections(total)
			if s.contestID != "" {
				metrics.NewApplicationMetrics().SetRoomSize(s.contestID, h.RoomSize(s.contestID))
			}

		case s := <-h.unregister:
			h.removeSession(s)
			metrics.NewApplicationMetrics().SetRealtimeConnections(h.SessionCount())

		case m := <-h.roomSend:
			h.mu.RLock()
			room := h.rooms[m.contestID]
			recipients := make([]*Session, 0, len(room))
			for _, s := range room {
				recipients = append(recipients, s)
			}
			h.mu.RUnlock()
			for _, s := range recipients {
				s.enqueue(m.event, m.data)
			}

		case m := <-h.userSend:
			h.mu.RLock()
			room := h.rooms[m.contestID]
			var target *Session
			for _, s := range room {
				if s.userID == m.userID {
					target = s
					break
				}
			}
			h.mu.RUnlock()
			if target != nil {
				target.enqueue(m.event, m.data)
			}

		case <-ctx.Done():
			log.Println("realtime: hub shutting down, draining sessions")
			h.mu.Lock()
			for _, s := range h.clients {
				s.close()
			}
			h.clients = make(map[string]*Session)
			h.rooms = make(map[string]map[string]*Session)
			h.mu.Unlock()
			return
		}
	}
}

func (h *Hub) removeSession(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[s.id]; !ok {
		return
	}
	delete(h.clients, s.id)
	if room, ok := h.rooms[s.contestID]; ok {
		delete(room, s.id)
		if len(room) == 0 {
			delete(h.rooms, s.contestID)
		}
	}
	s.close()
}

// BroadcastToRoom implements contestcore.Broadcaster: post event/data to
// every session currently joined to contestID.
func (h *Hub) BroadcastToRoom(contestID string, event string, data interface{}) {
	select {
	case h.roomSend <- roomMessage{contestID: contestID, event: event, data: data}:
	default:
		log.Printf("realtime: room %s broadcast channel full, dropping %s", contestID, event)
	}
}

// SendToSession implements contestcore.Broadcaster: post event/data to the
// one session for (contestID, userID), if currently joined.
func (h *Hub) SendToSession(contestID, userID string, event string, data interface{}) {
	select {
	case h.userSend <- userMessage{contestID: contestID, userID: userID, event: event, data: data}:
	default:
		log.Printf("realtime: user send channel full, dropping %s for %s", event, userID)
	}
}

// RoomSize reports how many sessions are currently joined to a contest.
func (h *Hub) RoomSize(contestID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[contestID])
}

// SessionCount reports the total number of connected authenticated sessions.
func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

var _ contestcore.Broadcaster = (*Hub)(nil)
