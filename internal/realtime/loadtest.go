package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"competitive-programming-platform/internal/contestcore"
)

// LoadTester drives N authenticated websocket sessions against one contest's
// room and measures connection success and submit latency. Adapted from the
// teacher's SSE/WebSocket load tester, retargeted from generic connection
// counting to the contest wire protocol: each session joins, submits one
// answer when its first question_broadcast arrives, and times how long the
// first submission_result or leaderboard_update after that submit takes.
type LoadTester struct {
	baseURL           string
	totalConnections  int
	connectionsPerSec int
	testDuration      time.Duration
	authTokens        []string
	contestID         string

	successfulJoins  int64
	failedJoins      int64
	messagesReceived int64
	submitLatencyNS  int64 // rolling sum, divided by submitCount for the mean
	submitCount      int64
	maxLatencyNS     int64

	stopCh chan struct{}
	mu     sync.Mutex
}

// LoadTestResult summarizes one run.
type LoadTestResult struct {
	TotalConnections     int           `json:"total_connections"`
	SuccessfulJoins       int64         `json:"successful_joins"`
	FailedJoins           int64         `json:"failed_joins"`
	MessagesReceived      int64         `json:"messages_received"`
	SubmissionsSent       int64         `json:"submissions_sent"`
	AvgSubmitLatency      time.Duration `json:"avg_submit_latency"`
	MaxSubmitLatency      time.Duration `json:"max_submit_latency"`
	TestDuration          time.Duration `json:"test_duration"`
}

// LoadTestConfig configures one run.
type LoadTestConfig struct {
	BaseURL           string        `json:"base_url"` // ws://host:port
	ContestID         string        `json:"contest_id"`
	TotalConnections  int           `json:"total_connections"`
	ConnectionsPerSec int           `json:"connections_per_sec"`
	TestDuration      time.Duration `json:"test_duration"`
	AuthTokens        []string      `json:"auth_tokens"` // one per simulated participant
}

// NewLoadTester builds a tester against baseURL (e.g. ws://localhost:8080).
func NewLoadTester(baseURL, contestID string, authTokens []string, connectionsPerSec int, testDuration time.Duration) *LoadTester {
	return &LoadTester{
		baseURL:           baseURL,
		contestID:         contestID,
		totalConnections:  len(authTokens),
		connectionsPerSec: connectionsPerSec,
		testDuration:      testDuration,
		authTokens:        authTokens,
		stopCh:            make(chan struct{}),
	}
}

// Run dials totalConnections sessions at connectionsPerSec, has each join
// the contest and submit one MCQ answer, then waits out testDuration while
// counting broadcast traffic before returning aggregate metrics.
func (lt *LoadTester) Run(ctx context.Context) (*LoadTestResult, error) {
	log.Printf("realtime load test: %d sessions into contest %s, %d/sec", lt.totalConnections, lt.contestID, lt.connectionsPerSec)
	start := time.Now()

	var wg sync.WaitGroup
	interval := time.Second
	if lt.connectionsPerSec > 0 {
		interval = time.Second / time.Duration(lt.connectionsPerSec)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for i, token := range lt.authTokens {
		select {
		case <-ticker.C:
		case <-ctx.Done():
			wg.Wait()
			return lt.results(time.Since(start)), ctx.Err()
		}
		wg.Add(1)
		go func(id int, token string) {
			defer wg.Done()
			lt.runSession(ctx, id, token)
		}(i, token)
	}

	timer := time.NewTimer(lt.testDuration)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
	close(lt.stopCh)
	wg.Wait()

	return lt.results(time.Since(start)), nil
}

func (lt *LoadTester) runSession(ctx context.Context, id int, token string) {
	wsURL := fmt.Sprintf("%s/ws/contest?token=%s", lt.baseURL, url.QueryEscape(token))
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		atomic.AddInt64(&lt.failedJoins, 1)
		return
	}
	defer conn.Close()
	atomic.AddInt64(&lt.successfulJoins, 1)

	join, _ := json.Marshal(struct {
		Event string                           `json:"event"`
		Data  contestcore.JoinContestPayload `json:"data"`
	}{Event: contestcore.EventJoinContest, Data: contestcore.JoinContestPayload{ContestID: lt.contestID}})
	conn.WriteMessage(websocket.TextMessage, join)

	submitted := false
	submitAt := time.Time{}

	for {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, raw, err := conn.ReadMessage()
		select {
		case <-lt.stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}
		if err != nil {
			continue
		}
		atomic.AddInt64(&lt.messagesReceived, 1)

		var env contestcore.Envelope
		if json.Unmarshal(raw, &env) != nil {
			continue
		}

		switch env.Event {
		case contestcore.EventQuestionBroadcast:
			if submitted {
				continue
			}
			submitted = true
			submitAt = time.Now()
			data, _ := json.Marshal(env.Data)
			var q contestcore.QuestionBroadcastPayload
			json.Unmarshal(data, &q)
			lt.submitAnswer(conn, q)
		case contestcore.EventSubmissionResult, contestcore.EventLeaderboardUpdate:
			if !submitAt.IsZero() {
				lt.recordLatency(time.Since(submitAt))
				submitAt = time.Time{}
			}
		}
	}
}

func (lt *LoadTester) submitAnswer(conn *websocket.Conn, q contestcore.QuestionBroadcastPayload) {
	optionID := ""
	if len(q.Options) > 0 {
		optionID = q.Options[0].ID
	}
	payload := contestcore.SubmitAnswerPayload{
		QuestionID:       q.QuestionID,
		SelectedOptionID: optionID,
		SubmittedAt:      time.Now(),
	}
	msg, _ := json.Marshal(struct {
		Event string                        `json:"event"`
		Data  contestcore.SubmitAnswerPayload `json:"data"`
	}{Event: contestcore.EventSubmitAnswer, Data: payload})
	conn.WriteMessage(websocket.TextMessage, msg)
	atomic.AddInt64(&lt.submitCount, 1)
}

func (lt *LoadTester) recordLatency(d time.Duration) {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	lt.submitLatencyNS += int64(d)
	if int64(d) > lt.maxLatencyNS {
		lt.maxLatencyNS = int64(d)
	}
}

func (lt *LoadTester) results(duration time.Duration) *LoadTestResult {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	submits := atomic.LoadInt64(&lt.submitCount)
	var avg time.Duration
	if submits > 0 {
		avg = time.Duration(lt.submitLatencyNS / submits)
	}
	return &LoadTestResult{
		TotalConnections: lt.totalConnections,
		SuccessfulJoins:  atomic.LoadInt64(&lt.successfulJoins),
		FailedJoins:      atomic.LoadInt64(&lt.failedJoins),
		MessagesReceived: atomic.LoadInt64(&lt.messagesReceived),
		SubmissionsSent:  submits,
		AvgSubmitLatency: avg,
		MaxSubmitLatency: time.Duration(lt.maxLatencyNS),
		TestDuration:     duration,
	}
}

// RunLoadTest is the entry point cmd/load-test wires up.
func RunLoadTest(ctx context.Context, cfg LoadTestConfig) (*LoadTestResult, error) {
	tester := NewLoadTester(cfg.BaseURL, cfg.ContestID, cfg.AuthTokens, cfg.ConnectionsPerSec, cfg.TestDuration)
	return tester.Run(ctx)
}
