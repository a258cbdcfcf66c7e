// Package server provides the HTTP server and routing for famfin.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/aristath/famfin/internal/di"
	aggregationhandlers "github.com/aristath/famfin/internal/modules/aggregation/handlers"
	benchmarkhandlers "github.com/aristath/famfin/internal/modules/benchmark/handlers"
	budgethandlers "github.com/aristath/famfin/internal/modules/budget/handlers"
	currencyhandlers "github.com/aristath/famfin/internal/modules/currency/handlers"
	dividendhandlers "github.com/aristath/famfin/internal/modules/dividends/handlers"
	groupshandlers "github.com/aristath/famfin/internal/modules/groups/handlers"
	investmentshandlers "github.com/aristath/famfin/internal/modules/investments/handlers"
	markethandlers "github.com/aristath/famfin/internal/modules/market/handlers"
	"github.com/aristath/famfin/internal/modules/tasks"
	taskshandlers "github.com/aristath/famfin/internal/modules/tasks/handlers"
	"github.com/aristath/famfin/internal/scheduler"
	"github.com/aristath/famfin/internal/server/request"
)

// Config holds server configuration
type Config struct {
	Log       zerolog.Logger
	Port      int
	DevMode   bool
	DataDir   string
	Container *di.Container    // DI container with all services
	Jobs      *di.JobInstances // Jobs that can be triggered manually; may be nil
}

// Server represents the HTTP server
type Server struct {
	router         *chi.Mux
	server         *http.Server
	log            zerolog.Logger
	cfg            Config
	container      *di.Container
	systemHandlers *SystemHandlers
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		log:       cfg.Log.With().Str("component", "server").Logger(),
		cfg:       cfg,
		container: cfg.Container,
	}

	c := cfg.Container
	s.systemHandlers = NewSystemHandlers(SystemDeps{
		Monitor:   c.Monitor,
		Registry:  c.CacheRegistry,
		Scheduler: c.Scheduler,
		Databases: map[string]DatabaseStatter{
			"ledger": c.LedgerDB,
			"app":    c.AppDB,
			"cache":  c.CacheDB,
		},
		Jobs:    manualJobs(cfg.Jobs),
		DataDir: cfg.DataDir,
	}, cfg.Log)

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// manualJobs indexes the jobs that the API may run on demand
func manualJobs(jobs *di.JobInstances) map[string]scheduler.Job {
	result := make(map[string]scheduler.Job)
	if jobs == nil {
		return result
	}
	for _, job := range []scheduler.Job{
		jobs.CacheCleanup,
		jobs.MonitorCleanup,
		jobs.DatabaseMaintenance,
		jobs.TaskReminders,
		jobs.CDIRefresh,
	} {
		result[job.Name()] = job
	}
	if jobs.Backup != nil {
		result[jobs.Backup.Name()] = jobs.Backup
	}
	return result
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware(devMode bool) {
	// Recovery from panics
	s.router.Use(middleware.Recoverer)

	// Request ID
	s.router.Use(middleware.RequestID)

	// Real IP
	s.router.Use(middleware.RealIP)

	// Logging
	s.router.Use(s.loggingMiddleware)

	// Timeout
	s.router.Use(middleware.Timeout(60 * time.Second))

	// CORS
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", request.UserHeader},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Compress responses
	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	c := s.container
	s.router.Route("/api", func(r chi.Router) {
		markethandlers.NewHandler(c.QuoteService, s.log).RegisterRoutes(r)
		dividendhandlers.NewHandler(c.DividendService, s.log).RegisterRoutes(r)
		benchmarkhandlers.NewHandler(c.BenchmarkService, s.log).RegisterRoutes(r)
		currencyhandlers.NewHandler(c.ExchangeRates, s.log).RegisterRoutes(r)
		investmentshandlers.NewHandler(c.InvestmentService, s.log).RegisterRoutes(r)
		taskshandlers.NewHandler(c.TaskRepo, s.reminderJob(), s.log).RegisterRoutes(r)
		aggregationhandlers.NewHandler(c.AggregationService, s.log).RegisterRoutes(r)
		groupshandlers.NewHandler(c.GroupService, s.log).RegisterRoutes(r)
		budgethandlers.NewHandler(c.BudgetService, s.log).RegisterRoutes(r)

		// System monitoring and operations
		s.systemHandlers.RegisterRoutes(r)
	})
}

// reminderJob returns the scheduled reminder job, or a standalone one when
// the server runs without registered jobs
func (s *Server) reminderJob() *tasks.ReminderJob {
	if s.cfg.Jobs != nil && s.cfg.Jobs.TaskReminders != nil {
		return s.cfg.Jobs.TaskReminders
	}
	return tasks.NewReminderJob(s.container.TaskRepo, s.container.Notifier, s.log)
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Int("port", s.cfg.Port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
