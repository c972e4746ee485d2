// Command health-server exposes liveness/readiness for the contest-core
// process: database and redis connectivity, plus a check that the
// live-contest count query against the contests table succeeds (the count
// itself is not reported). Adapted from the teacher's sandbox-only
// health checks (isolate/Docker availability), which belong to the sandboxed
// execution engine's own operational surface, not the orchestration core's.
package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/redis/go-redis/v9"

	"competitive-programming-platform/internal/metrics"
	"competitive-programming-platform/pkg/database"
)

// HealthStatus represents the health status of the core server process.
type HealthStatus struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Uptime    time.Duration     `json:"uptime"`
	System    SystemInfo        `json:"system"`
	Checks    map[string]string `json:"checks"`
}

// SystemInfo represents system information.
type SystemInfo struct {
	OS            string `json:"os"`
	Architecture  string `json:"architecture"`
	NumCPU        int    `json:"num_cpu"`
	GoVersion     string `json:"go_version"`
	NumGoroutines int    `json:"num_goroutines"`
}

var startTime = time.Now()

func main() {
	port := os.Getenv("HEALTH_PORT")
	if port == "" {
		port = "8081"
	}

	db, err := database.NewConnection()
	if err != nil {
		log.Fatal("health-server: failed to connect to database:", err)
	}
	defer db.Close()

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: os.Getenv("REDIS_PASSWORD"),
	})
	defer rdb.Close()

	h := &healthChecker{db: db, redis: rdb}

	http.HandleFunc("/health", h.healthHandler)
	http.HandleFunc("/ready", h.readinessHandler)
	http.HandleFunc("/live", livenessHandler)
	http.Handle("/metrics", metrics.MetricsHandler())

	log.Printf("Health server starting on port %s", port)
	if err := http.ListenAndServe(":"+port, nil); err != nil {
		log.Fatal("Health server failed:", err)
	}
}

type healthChecker struct {
	db    *database.DB
	redis *redis.Client
}

func (h *healthChecker) healthHandler(w http.ResponseWriter, r *http.Request) {
	status := h.getHealthStatus(r.Context())

	w.Header().Set("Content-Type", "application/json")
	statusCode := http.StatusOK
	if status.Status != "healthy" {
		statusCode = http.StatusServiceUnavailable
	}
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(status)
}

func (h *healthChecker) readinessHandler(w http.ResponseWriter, r *http.Request) {
	checks := h.performChecks(r.Context())

	ready := true
	for _, check := range checks {
		if check != "ok" {
			ready = false
			break
		}
	}

	response := map[string]interface{}{
		"ready":     ready,
		"timestamp": time.Now(),
		"checks":    checks,
	}

	w.Header().Set("Content-Type", "application/json")
	if ready {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(response)
}

func livenessHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"alive":     true,
		"timestamp": time.Now(),
		"uptime":    time.Since(startTime).String(),
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}

func (h *healthChecker) getHealthStatus(ctx context.Context) HealthStatus {
	checks := h.performChecks(ctx)

	status := "healthy"
	for _, check := range checks {
		if check != "ok" {
			status = "unhealthy"
			break
		}
	}

	return HealthStatus{
		Status:    status,
		Timestamp: time.Now(),
		Uptime:    time.Since(startTime),
		System: SystemInfo{
			OS:            runtime.GOOS,
			Architecture:  runtime.GOARCH,
			NumCPU:        runtime.NumCPU(),
			GoVersion:     runtime.Version(),
			NumGoroutines: runtime.NumGoroutine(),
		},
		Checks: checks,
	}
}

// performChecks reports the two durable dependencies the orchestration core
// can't run without (postgres for contest/submission state, redis for the
// leaderboard index and the asynq queue) plus whether a cheap count of
// contests currently inside their active window can be run; the check
// reports "ok" or "error", not the count.
func (h *healthChecker) performChecks(ctx context.Context) map[string]string {
	checks := make(map[string]string)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := h.db.Pool.Ping(pingCtx); err != nil {
		checks["database"] = "error"
	} else {
		checks["database"] = "ok"
	}

	redisCtx, redisCancel := context.WithTimeout(ctx, 3*time.Second)
	defer redisCancel()
	if err := h.redis.Ping(redisCtx).Err(); err != nil {
		checks["redis"] = "error"
	} else {
		checks["redis"] = "ok"
	}

	if checks["database"] == "ok" {
		countCtx, countCancel := context.WithTimeout(ctx, 3*time.Second)
		defer countCancel()
		var liveCount int
		const query = `SELECT COUNT(*) FROM contests WHERE start_time <= NOW() AND end_time > NOW()`
		if err := h.db.Pool.QueryRow(countCtx, query).Scan(&liveCount); err != nil {
			checks["live_contests"] = "error"
		} else {
			checks["live_contests"] = "ok"
		}
	}

	return checks
}
