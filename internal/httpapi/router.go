package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"

	"github.com/agentdeck/agentdeck/internal/config"
	"github.com/agentdeck/agentdeck/internal/logging"
	"github.com/agentdeck/agentdeck/internal/orchestrator"
)

// pollRoute matches the high-frequency live-output poll route, so its
// access-log lines can be sampled down instead of drowning out everything
// else at debug level.
var pollRoute = regexp.MustCompile(`^/api/v1/sessions/[^/]+/output$`)

// pollLogSampler shows only 1-in-every count access log lines for
// pollRoute, the way the original's _SamplePollingAccess logging filter
// thins out uvicorn's access log for the same route.
type pollLogSampler struct {
	every uint64
	n     atomic.Uint64
}

func newPollLogSampler(every int) *pollLogSampler {
	return &pollLogSampler{every: uint64(every)}
}

func (s *pollLogSampler) allow(path string) bool {
	if !pollRoute.MatchString(path) {
		return true
	}
	return s.n.Add(1)%s.every == 0
}

// Server is the HTTP server fronting an Orchestrator: REST endpoints under
// /api/v1, plus an additive /ws session-update channel.
type Server struct {
	cfg       config.ServerConfig
	router    *chi.Mux
	httpSrv   *http.Server
	handlers  *Handlers
	broadcast *Broadcaster
	upgrader  websocket.Upgrader
	sampler   *pollLogSampler
}

// New builds a Server wired to orch, with cfg controlling the listen
// address, CORS and WebSocket origins, the bearer token, and the cap on
// concurrent WebSocket clients.
func New(cfg config.ServerConfig, orch *orchestrator.Orchestrator) *Server {
	broadcast := NewBroadcaster(cfg.MaxConnections)
	s := &Server{
		cfg:       cfg,
		router:    chi.NewRouter(),
		handlers:  NewHandlers(orch, broadcast),
		broadcast: broadcast,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" || len(cfg.AllowedOrigins) == 0 {
					return true
				}
				for _, allowed := range cfg.AllowedOrigins {
					if allowed == "*" || allowed == origin {
						return true
					}
				}
				return false
			},
		},
		sampler: newPollLogSampler(30),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Recoverer)

	origins := s.cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if s.cfg.AuthToken != "" {
		s.router.Use(s.requireAuthToken)
	}
}

// requireAuthToken rejects requests missing a matching bearer token, when
// cfg.AuthToken is set. The WebSocket upgrade path is exempt since browsers
// cannot set an Authorization header on it; the origin check above and the
// token on REST calls that establish a session are the gate instead.
func (s *Server) requireAuthToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/ws" {
			next.ServeHTTP(w, r)
			return
		}
		got := r.Header.Get("Authorization")
		if got != "Bearer "+s.cfg.AuthToken {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		if !s.sampler.allow(r.URL.Path) {
			return
		}
		logging.Logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("http_request")
	})
}

func (s *Server) setupRoutes() {
	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/sessions", s.handlers.ListSessions)
		r.Post("/sessions", s.handlers.CreateSession)
		r.Get("/sessions/slash-commands", s.handlers.SlashCommands)
		r.Get("/sessions/recent-dirs", s.handlers.RecentDirs)
		r.Get("/sessions/{id}", s.handlers.GetSession)
		r.Delete("/sessions/{id}", s.handlers.KillSession)
		r.Post("/sessions/{id}/input", s.handlers.SendInput)
		r.Post("/sessions/{id}/select", s.handlers.SendSelection)
		r.Post("/sessions/{id}/image", s.handlers.PasteImage)
		r.Post("/sessions/{id}/debug", s.handlers.StartDebugSession)
		r.Get("/sessions/{id}/output", s.handlers.GetOutput)
	})
	s.router.Get("/ws", s.serveWS)
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Logger.Warn().Err(err).Msg("ws_upgrade_failed")
		return
	}
	client, err := s.broadcast.addClient(conn)
	if err != nil {
		return
	}
	defer s.broadcast.removeClient(client)

	// This channel is send-only: drain and discard whatever the browser
	// sends so pings/pongs and a closed connection are noticed promptly.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Router exposes the chi router for tests.
func (s *Server) Router() *chi.Mux { return s.router }

// Broadcaster exposes the broadcaster so callers can Publish after
// operations that happen outside an HTTP request (rehydration at startup,
// a liveness sweep that found a dead session).
func (s *Server) Broadcaster() *Broadcaster { return s.broadcast }

// ListenAndServe starts the HTTP server, blocking until it stops.
func (s *Server) ListenAndServe() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	s.httpSrv = &http.Server{
		Addr:    addr,
		Handler: s.router,
	}
	logging.Logger.Info().Str("addr", addr).Msg("http_server_listening")
	err := s.httpSrv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}
