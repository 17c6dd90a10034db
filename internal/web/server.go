// Package web serves the attendance report API.
package web

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/andresmejia3/rollcall/internal/store"
	"github.com/andresmejia3/rollcall/internal/types"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// Store is the part of the attendance store the API reads and clears.
type Store interface {
	Ping(ctx context.Context) error
	ListStudents(ctx context.Context) ([]types.Student, error)
	SearchAttendance(ctx context.Context, f store.Filter) ([]types.AttendanceEvent, error)
	RecentAttendance(ctx context.Context, days int, now time.Time) ([]types.AttendanceEvent, error)
	TodayCount(ctx context.Context, now time.Time) (int, error)
	ClearAttendance(ctx context.Context) (int64, error)
}

// Server represents the web server
type Server struct {
	store      Store
	router     *chi.Mux
	httpServer *http.Server
	log        *slog.Logger
	now        func() time.Time
}

// NewServer creates a new web server listening on host:port.
func NewServer(st Store, host string, port int, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	r := chi.NewRouter()

	s := &Server{
		store:  st,
		router: r,
		log:    log,
		now:    time.Now,
	}

	// Set up middleware stack
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(30 * time.Second))

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", host, port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.health)
		r.Get("/students", s.listStudents)
		r.Get("/attendance", s.searchAttendance)
		r.Get("/attendance/recent", s.recentAttendance)
		r.Delete("/attendance", s.clearAttendance)
		r.Get("/stats/today", s.todayStats)
	})
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.log.Info("starting web server", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down web server")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

// Router returns the chi router for testing
func (s *Server) Router() *chi.Mux {
	return s.router
}
