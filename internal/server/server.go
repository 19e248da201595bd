// Package server implements spec §6's external interfaces: the chat SSE
// endpoint, the report endpoints, tool introspection, prompt-override
// CRUD, and the liveness probe, grounded on the teacher's
// internal/server/server.go router/middleware/lifecycle conventions.
package server

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/finresearch/orchestrator/internal/reports"
	"github.com/finresearch/orchestrator/internal/store"
	"github.com/finresearch/orchestrator/internal/stream"
	"github.com/finresearch/orchestrator/internal/tools"
	"github.com/finresearch/orchestrator/internal/tradecontrols"
)

// Config bundles every collaborator the router needs. Constructing these
// is internal/di's job; Server only wires them into HTTP handlers.
type Config struct {
	Log                zerolog.Logger
	Port               int
	DevMode            bool
	AllowedCORSOrigins []string

	Runner      *stream.Runner
	Reports     *reports.Orchestrator
	Plugins     reports.Registry
	Overrides   store.PromptOverrideStore
	TradeGate   *tradecontrols.Gate
	StartedAt   time.Time
}

// Server is the HTTP surface of spec §6.
type Server struct {
	router    *chi.Mux
	server    *http.Server
	log       zerolog.Logger
	cfg       Config
	startedAt time.Time
}

// New builds a Server with every route wired but not yet listening.
func New(cfg Config) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		log:       cfg.Log.With().Str("component", "server").Logger(),
		cfg:       cfg,
		startedAt: cfg.StartedAt,
	}
	if s.startedAt.IsZero() {
		s.startedAt = time.Now()
	}

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

func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(60 * time.Second))

	origins := s.cfg.AllowedCORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealthz)

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/chat", s.handleChat)

		r.Route("/reports", func(r chi.Router) {
			r.Get("/types", s.handleReportTypes)

			// Registered before the "/{type}" wildcard below so chi's
			// static-segment match wins for "/reports/templates/*".
			r.Route("/templates", func(r chi.Router) {
				r.Get("/", s.handleTemplatesList)
				r.Get("/{type}", s.handleTemplateGet)
				r.Put("/{type}", s.handleTemplatePut)
				r.Delete("/{type}", s.handleTemplateDelete)
			})

			r.Post("/{type}", s.handleReportRun)
			r.Post("/{type}/followup", s.handleReportFollowUp)
			r.Get("/{type}/prompt", s.handleReportPrompt)
		})

		r.Route("/tools", func(r chi.Router) {
			r.Get("/contracts", s.handleToolContracts)
			r.Get("/contracts/{tool}", s.handleToolContract)
		})

		r.Post("/trade/submit", s.handleTradeSubmit)
	})
}

// Start begins serving and blocks until the listener stops (spec §6's
// "exit codes are the framework's defaults").
func (s *Server) Start() error {
	s.log.Info().Int("port", s.cfg.Port).Msg("starting HTTP server")
	err := s.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully drains in-flight requests (SSE connections included,
// since they watch r.Context().Done()).
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

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
			Msg("http request")
	})
}

// healthzResponse is the liveness payload of SPEC_FULL §6-addendum:
// uptime, goroutine count, and a gopsutil CPU/memory snapshot.
type healthzResponse struct {
	Status        string  `json:"status"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	Goroutines    int     `json:"goroutines"`
	CPUPercent    float64 `json:"cpu_percent,omitempty"`
	MemoryPercent float64 `json:"memory_percent,omitempty"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	resp := healthzResponse{
		Status:        "ok",
		UptimeSeconds: time.Since(s.startedAt).Seconds(),
		Goroutines:    runtime.NumGoroutine(),
	}

	if percentages, err := cpu.PercentWithContext(r.Context(), 0, false); err == nil && len(percentages) > 0 {
		resp.CPUPercent = percentages[0]
	}
	if vm, err := mem.VirtualMemoryWithContext(r.Context()); err == nil {
		resp.MemoryPercent = vm.UsedPercent
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleToolContracts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, tools.Registry)
}

func (s *Server) handleToolContract(w http.ResponseWriter, r *http.Request) {
	name := tools.Name(chi.URLParam(r, "tool"))
	contract, ok := tools.Registry[name]
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown tool %q", name))
		return
	}
	writeJSON(w, http.StatusOK, contract)
}
