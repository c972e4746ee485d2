package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"competitive-programming-platform/internal/auth"
	"competitive-programming-platform/internal/clock"
	"competitive-programming-platform/internal/contest"
	"competitive-programming-platform/internal/judge"
	"competitive-programming-platform/internal/leaderboard"
	"competitive-programming-platform/internal/metrics"
	"competitive-programming-platform/internal/orchestrator"
	"competitive-programming-platform/internal/problem"
	"competitive-programming-platform/internal/question"
	"competitive-programming-platform/internal/realtime"
	"competitive-programming-platform/internal/submission"
	"competitive-programming-platform/internal/tracing"
	"competitive-programming-platform/internal/user"
	"competitive-programming-platform/pkg/database"
	"competitive-programming-platform/pkg/middleware"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	// Initialize OpenTelemetry tracing
	tracingConfig := tracing.DefaultConfig()
	tracingConfig.ServiceName = "api-server"
	tracingConfig.ServiceVersion = "1.0.0"
	tracingShutdown := tracing.InitTracing(tracingConfig)
	if tracingShutdown != nil {
		defer func() {
			if err := tracingShutdown(context.Background()); err != nil {
				log.Printf("Error shutting down tracing: %v", err)
			}
		}()
	}

	// Create context for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize database connection
	db, err := database.NewConnection()
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer db.Close()

	// Initialize queue manager
	queueManager, err := judge.NewQueueManager()
	if err != nil {
		log.Fatal("Failed to initialize queue manager:", err)
	}
	defer queueManager.Close()

	// Legacy practice-problem/user/auth/question-bank services, unchanged
	// from the teacher's REST CRUD surface.
	authService := auth.NewService(db)
	userService := user.NewService(db)
	problemService := problem.NewService(db)
	questionService := question.NewService(db)

	// completionRegistry is the in-process rendezvous a ContestCodeGrader's
	// Await and a task handler's Complete must share. It only works because
	// the handlers below are registered against this same process's queue
	// manager rather than the separately-deployable judge-worker binary;
	// cmd/judge-worker remains the consumer for the legacy fire-and-forget
	// practice-problem queue, where nobody awaits a result.
	completionRegistry := judge.NewCompletionRegistry()
	judgeService := judge.NewJudgeService(db.Pool, queueManager, completionRegistry)
	judgeAPI := judge.NewAPIHandler(judgeService, db.Pool)
	queueManager.RegisterHandlers(judgeService)

	// Connect judge service to problem service via adapter (legacy
	// practice-problem submission path)
	judgeAdapter := judge.NewJudgeAdapter(judgeService)
	problemService.SetJudgeService(judgeAdapter)

	// Contest-core collaborators: C1 repository, C2 leaderboard index, C3
	// grader+pipeline, C4 orchestrator.
	contestRepo := contest.NewRepository(db)
	submissionRepo := submission.NewRepository(db)

	leaderboardIndex := leaderboard.NewIndex(queueManager.Redis, contestRepo, userService, submissionRepo)

	gradeTimeout := 30 * time.Second
	contestGrader := judge.NewContestCodeGrader(queueManager, completionRegistry, gradeTimeout)

	// hub is built before the orchestrator so it can be handed in as the
	// orchestrator's Broadcaster; realtime.NewService then shares the same
	// instance rather than building its own.
	hub := realtime.NewHub()
	wallClock := clock.NewSystem()
	orch := orchestrator.New(contestRepo, submissionRepo, leaderboardIndex, hub, wallClock)

	pipeline := submission.New(contestRepo, submissionRepo, leaderboardIndex, contestGrader, orch, orch)

	realtimeService := realtime.NewService(hub, contestRepo, submissionRepo, leaderboardIndex, orch, pipeline, authService)

	// Start both realtime hubs; individual contests are started on demand
	// by join/resync via orch.EnsureContestRunning, so the orchestrator has
	// no separate top-level Run loop of its own.
	realtimeService.Run(ctx)

	// Initialize router
	r := chi.NewRouter()

	// Middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(60 * time.Second))
	r.Use(tracing.HTTPMiddleware("api-server"))
	r.Use(metrics.HTTPMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000", "http://localhost:4321"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy","timestamp":"` + time.Now().Format(time.RFC3339) + `"}`))
	})

	// Metrics endpoint
	r.Handle("/metrics", metrics.MetricsHandler())

	// Contest websocket endpoints (C5 authenticated, C6 public)
	r.Get("/ws/contest", realtimeService.HandleContestWS)
	r.Get("/ws/public", realtimeService.HandlePublicWS)

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public routes
		r.Group(func(r chi.Router) {
			r.Post("/auth/login", authService.Login)
			r.Post("/auth/register", authService.Register)
			r.Get("/problems", problemService.GetProblems)
			r.Get("/problems/{id}", problemService.GetProblem)
			r.Get("/questions", questionService.ListQuestions)
			r.Get("/questions/{id}", questionService.GetQuestion)
		})

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthMiddleware(authService))

			// User routes
			r.Get("/users/me", userService.GetCurrentUser)
			r.Put("/users/me", userService.UpdateCurrentUser)
			r.Get("/users/{id}", userService.GetUser)

			// Problem routes (authenticated)
			r.Post("/problems", problemService.CreateProblem)
			r.Put("/problems/{id}", problemService.UpdateProblem)
			r.Delete("/problems/{id}", problemService.DeleteProblem)

			// Submission routes
			r.Post("/problems/{id}/submit", problemService.SubmitSolution)
			r.Get("/submissions", judgeAPI.GetSubmissions)
			r.Get("/submissions/{id}", judgeAPI.GetSubmission)

			// Judge routes
			r.Get("/judge/queue/stats", judgeAPI.GetQueueStats)

			// Question-bank write routes, organizer-only: these feed the
			// ordered question list an orchestrated contest runs against.
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole("organizer"))
				r.Post("/questions", questionService.CreateQuestion)
				r.Post("/questions/{id}/testcases", questionService.AddTestCase)
				r.Get("/questions/{id}/testcases", questionService.ListTestCases)
			})
		})
	})

	// Start server
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	server := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Server starting on port %s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed:", err)
		}
	}()

	// Wait for interrupt signal
	<-ctx.Done()
	log.Println("Shutting down server...")

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Shutdown server gracefully
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	} else {
		log.Println("Server shutdown complete")
	}
}
