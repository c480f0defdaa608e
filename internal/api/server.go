// Package api exposes the task import, CRUD and report endpoints over HTTP.
//
// Routes live under /employee. Trailing slashes are stripped, so
// "/employee/delay-task/" and "/employee/delay-task" are the same route.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"taskstats/internal/analytics"
	"taskstats/internal/importer"
	"taskstats/internal/storage"
)

// Config tunes the HTTP surface. Zero values fall back to defaults.
type Config struct {
	MaxUploadBytes int64
	CORSOrigins    []string
	UploadRate     float64 // uploads per second per client, 0 = unlimited
	UploadBurst    int
	WorkloadLimit  int
	Location       *time.Location // zone for "today" in the delay report
	Now            func() time.Time
}

func (c Config) withDefaults() Config {
	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = 32 << 20
	}
	if len(c.CORSOrigins) == 0 {
		c.CORSOrigins = []string{"*"}
	}
	if c.UploadBurst <= 0 {
		c.UploadBurst = 1
	}
	if c.WorkloadLimit <= 0 {
		c.WorkloadLimit = analytics.DefaultWorkloadLimit
	}
	if c.Location == nil {
		c.Location = time.UTC
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// Server holds the handler dependencies.
type Server struct {
	repo     storage.Repository
	importer *importer.Importer
	reports  *analytics.Service
	cfg      Config
	limiter  *uploadLimiter
}

// NewServer wires handlers over repo.
func NewServer(repo storage.Repository, cfg Config) *Server {
	cfg = cfg.withDefaults()
	s := &Server{
		repo:     repo,
		importer: importer.New(repo),
		reports: analytics.NewService(repo,
			analytics.WithLocation(cfg.Location),
			analytics.WithClock(cfg.Now)),
		cfg: cfg,
	}
	if cfg.UploadRate > 0 {
		s.limiter = newUploadLimiter(cfg.UploadRate, cfg.UploadBurst, cfg.Now)
	}
	return s
}

// Handler returns the router with middleware installed.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))
	s.RegisterRoutes(r)
	return r
}

// RegisterRoutes mounts the endpoints on r.
func (s *Server) RegisterRoutes(r chi.Router) {
	r.Get("/healthz", s.health)

	r.Route("/employee", func(r chi.Router) {
		upload := step("import", s.importTasks)
		if s.limiter != nil {
			r.With(s.limiter.Middleware).Post("/", upload)
		} else {
			r.Post("/", upload)
		}
		r.Get("/", step("list", s.listTasks))

		r.Get("/department-contribute-hour", step("department-contribute-hour", s.departmentContribution))
		r.Get("/workload-employee", step("workload-employee", s.workload))
		r.Get("/employee-task-completion", step("employee-task-completion", s.completion))
		r.Get("/delay-task", step("delay-task", s.delayed))
		r.Get("/task-complete-hour", step("task-complete-hour", s.completedTaskHours))

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", step("retrieve", s.getTask))
			r.Put("/", step("update", s.replaceTask))
			r.Patch("/", step("partial-update", s.patchTask))
			r.Delete("/", step("destroy", s.deleteTask))
		})
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
