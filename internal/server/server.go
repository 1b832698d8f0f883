package server

import (
	"encoding/json"
	"net/http"
	"time"

	"cdr.dev/slog/v3"
	"github.com/coder/quartz"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lazypower/vaultactivity/internal/engine"
)

// Options configure a Server. Engine is required.
type Options struct {
	Engine  *engine.Engine
	Version string
	Logger  slog.Logger
	Clock   quartz.Clock
	// Gatherer backs /metrics. Nil disables the endpoint.
	Gatherer prometheus.Gatherer
	// CORSOrigins may call the API from a browser. Empty disables CORS.
	CORSOrigins []string
	// RateLimit caps event posts per client per minute. 0 disables it.
	RateLimit int
}

// Server is the vaultactivity HTTP API server.
type Server struct {
	engine  *engine.Engine
	logger  slog.Logger
	clock   quartz.Clock
	router  chi.Router
	version string
	started time.Time
}

// New creates a new Server.
func New(opts Options) *Server {
	if opts.Clock == nil {
		opts.Clock = quartz.NewReal()
	}
	s := &Server{
		engine:  opts.Engine,
		logger:  opts.Logger,
		clock:   opts.Clock,
		version: opts.Version,
		started: opts.Clock.Now(),
	}
	s.routes(opts)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes(opts Options) {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	if len(opts.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: opts.CORSOrigins,
			AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type"},
			MaxAge:         300,
		}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Group(func(r chi.Router) {
			if opts.RateLimit > 0 {
				r.Use(httprate.LimitByIP(opts.RateLimit, time.Minute))
			}
			r.Post("/events/open", s.handleEvent(engine.KindOpen))
			r.Post("/events/change", s.handleEvent(engine.KindChange))
		})

		r.Get("/dashboard", s.handleDashboard)
		r.Get("/dashboard/ws", s.handleDashboardWatch)
		r.Get("/rankings", s.handleRankings)
		r.Post("/documents/open", s.handleOpenDocument)
		r.Post("/neglected/open", s.handleOpenNeglected)
		r.Post("/clear", s.handleClear)
		r.Get("/report", s.handleReportPreview)
		r.Post("/reports", s.handleGenerateReport)
		r.Get("/export.csv", s.handleExportCSV)
		r.Get("/settings", s.handleGetSettings)
		r.Put("/settings", s.handlePutSettings)
		r.Get("/notices", s.handleNotices)
	})

	if opts.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}
	r.Get("/*", dashboardHandler())

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"version":   s.version,
		"uptime":    s.clock.Since(s.started).Seconds(),
		"tracked":   len(s.engine.Tracker.Filtered()),
		"data_path": s.engine.Tracker.DataPath(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
