package realtime

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"competitive-programming-platform/internal/contestcore"
)

// PublicHub implements C6: an unauthenticated broadcast channel with two
// subscriptions, subscribe_contests and subscribe_leaderboard, generalized
// from Hub's single select-loop-owns-state pattern into its own simpler
// loop since C6 has no per-contest room membership to track, only interest
// sets over an already-public read.
type PublicHub struct {
	contests contestcore.ContestRepository
	leader   contestcore.LeaderboardIndex
	upgrader websocket.Upgrader

	register   chan *publicSub
	unregister chan *publicSub
	refresh    chan struct{}

	mu   sync.RWMutex
	subs map[string]*publicSub
}

type publicSub struct {
	id   string
	conn wireConn
	send chan contestcore.Envelope

	mu                 sync.Mutex
	wantsContests      bool
	leaderboardContest string // "" when not subscribed

	closeOnce sync.Once
	closed    chan struct{}
}

// NewPublicHub builds the C6 broadcaster. Call Run to start its loop.
func NewPublicHub(contests contestcore.ContestRepository, leader contestcore.LeaderboardIndex) *PublicHub {
	return &PublicHub{
		contests: contests,
		leader:   leader,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		register:   make(chan *publicSub),
		unregister: make(chan *publicSub),
		refresh:    make(chan struct{}, 1),
		subs:       make(map[string]*publicSub),
	}
}

// Run owns the subscriber table. A tick every 5s catches every contest
// crossing a startAt/endAt boundary and re-pushes subscribe_contests to
// interested subscribers; this is simpler than scheduling a one-shot timer
// per contest boundary and tolerant of the handful of seconds of staleness
// a public listing view can afford.
func (h *PublicHub) Run(ctx context.Context) {
	log.Println("realtime: public hub starting")
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case s := <-h.register:
			h.mu.Lock()
			h.subs[s.id] = s
			h.mu.Unlock()

		case s := <-h.unregister:
			h.mu.Lock()
			delete(h.subs, s.id)
			h.mu.Unlock()
			s.close()

		case <-ticker.C:
			h.pushContestsSnapshot(ctx)

		case <-h.refresh:
			h.pushContestsSnapshot(ctx)

		case <-ctx.Done():
			h.mu.Lock()
			for _, s := range h.subs {
				s.close()
			}
			h.subs = make(map[string]*publicSub)
			h.mu.Unlock()
			return
		}
	}
}

func (h *PublicHub) pushContestsSnapshot(ctx context.Context) {
	all, err := h.contests.ListContests(ctx)
	if err != nil {
		log.Printf("realtime: public hub list contests: %v", err)
		return
	}
	now := time.Now()
	summaries := make([]contestcore.ContestSummary, 0, len(all))
	for _, c := range all {
		summaries = append(summaries, contestcore.ContestSummary{
			ContestID: c.ID, Title: c.Title, StartAt: c.StartAt, EndAt: c.EndAt,
			State: c.RuntimeState(now),
		})
	}
	payload := contestcore.ContestsSnapshotPayload{Contests: summaries}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, s := range h.subs {
		s.mu.Lock()
		wants := s.wantsContests
		s.mu.Unlock()
		if wants {
			s.enqueue(contestcore.EventSubscribeContests, payload)
		}
	}
}

// BroadcastLeaderboard is called by Service after a debounced score change
// to push to every subscriber watching this contestId.
func (h *PublicHub) BroadcastLeaderboard(contestID string, payload contestcore.LeaderboardUpdatePayload) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, s := range h.subs {
		s.mu.Lock()
		watching := s.leaderboardContest == contestID
		s.mu.Unlock()
		if watching {
			s.enqueue(contestcore.EventLeaderboardUpdate, payload)
		}
	}
}

func (h *PublicHub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func newPublicSub(conn wireConn) *publicSub {
	return &publicSub{id: uuid.NewString(), conn: conn, send: make(chan contestcore.Envelope, sendBuffer), closed: make(chan struct{})}
}

func (s *publicSub) enqueue(event string, data interface{}) {
	select {
	case s.send <- contestcore.Envelope{Event: event, Data: data, Timestamp: time.Now()}:
	default:
		log.Printf("realtime: public subscriber %s send buffer full, dropping %s", s.id, event)
	}
}

func (s *publicSub) close() {
	s.closeOnce.Do(func() { close(s.closed); s.conn.Close() })
}

func (s *publicSub) readPump(h *PublicHub) {
	defer func() { h.unregister <- s }()
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
		if json.Unmarshal(raw, &evt) != nil {
			continue
		}
		switch evt.Event {
		case contestcore.EventSubscribeContests:
			s.mu.Lock()
			s.wantsContests = true
			s.mu.Unlock()
			select {
			case h.refresh <- struct{}{}:
			default:
			}
		case contestcore.EventSubscribeLeaderboard:
			var p struct {
				ContestID string `json:"contestId"`
			}
			if json.Unmarshal(evt.Data, &p) == nil {
				s.mu.Lock()
				s.leaderboardContest = p.ContestID
				s.mu.Unlock()
			}
		case contestcore.EventPing:
			s.enqueue(contestcore.EventPong, nil)
		}
	}
}

func (s *publicSub) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() { ticker.Stop(); s.conn.Close() }()
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

// HandlePublicWS upgrades /public: no authentication, per §5.6.
func (s *Service) HandlePublicWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.public.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("realtime: public upgrade failed: %v", err)
		return
	}
	sub := newPublicSub(conn)
	s.public.register <- sub
	go sub.writePump()
	sub.readPump(s.public)
}
