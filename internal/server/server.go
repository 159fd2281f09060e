package server

import (
	"log/slog"
	"net/http"

	"github.com/claude/liftlog/internal/auth"
	"github.com/claude/liftlog/internal/mcp"
	"github.com/claude/liftlog/internal/workout"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server holds dependencies for HTTP handlers.
type Server struct {
	engine *workout.Engine
	users  UserResolver
	log    *slog.Logger
	router chi.Router

	whois   WhoIser
	bearer  *auth.Config
	mcp     http.Handler
	healthy func(r *http.Request) error
}

// New creates a new Server with all routes configured. Until SetTailscale or
// SetBearer is called every caller is the local dev user.
func New(engine *workout.Engine, users UserResolver, log *slog.Logger) *Server {
	s := &Server{
		engine: engine,
		users:  users,
		log:    log,
		router: chi.NewRouter(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// SetTailscale identifies callers by their tailnet login.
func (s *Server) SetTailscale(lc WhoIser) { s.whois = lc }

// SetBearer requires a signed bearer token on every API call.
func (s *Server) SetBearer(cfg auth.Config) { s.bearer = &cfg }

// SetMCP serves the given MCP transport under /mcp for identified callers.
func (s *Server) SetMCP(h http.Handler) { s.mcp = h }

// SetHealthCheck makes /healthz report the result of check.
func (s *Server) SetHealthCheck(check func(r *http.Request) error) { s.healthy = check }

func (s *Server) routes() {
	s.router.Use(RequestLogging(s.log))
	s.router.Use(CORS)

	s.router.Get("/healthz", s.handleHealth)
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Group(func(r chi.Router) {
		r.Use(s.identify)
		r.Use(ResolveOwner(s.users, s.log))

		r.Get("/api/v1/me", s.handleMe)
		r.Get("/api/v1/exercises", s.handleListCatalog)

		r.Route("/api/v1/sessions", func(r chi.Router) {
			r.Post("/", s.handleStartSession)
			r.Get("/", s.handleListSessions)
			r.Get("/active", s.handleActiveSession)
			r.Get("/{id}", s.handleGetSession)
			r.Delete("/{id}", s.handleDeleteSession)
			r.Post("/{id}/sets/{setID}/complete", s.handleCompleteSet)
			r.Post("/{id}/exercises/{exerciseID}/sets", s.handleAddSet)
			r.Post("/{id}/exercises/{exerciseID}/skip", s.handleSkipExercise)
			r.Post("/{id}/exercises/{exerciseID}/resume", s.handleResumeExercise)
			r.Post("/{id}/finish", s.handleFinishSession)
		})

		r.Handle("/mcp", http.HandlerFunc(s.handleMCP))
	})
}

// identify picks the identity source configured at startup.
func (s *Server) identify(next http.Handler) http.Handler {
	tailscale := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		TailscaleIdentity(s.whois, s.log)(next).ServeHTTP(w, r)
	})
	bearer := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		BearerIdentity(*s.bearer)(next).ServeHTTP(w, r)
	})
	dev := DevIdentity(next)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case s.whois != nil:
			tailscale.ServeHTTP(w, r)
		case s.bearer != nil:
			bearer.ServeHTTP(w, r)
		default:
			dev.ServeHTTP(w, r)
		}
	})
}

func (s *Server) handleMCP(w http.ResponseWriter, r *http.Request) {
	if s.mcp == nil {
		writeError(w, http.StatusNotFound, "mcp endpoint disabled", "not_found")
		return
	}
	uid, ok := mustUserID(w, r)
	if !ok {
		return
	}
	s.mcp.ServeHTTP(w, r.WithContext(mcp.WithUserID(r.Context(), uid)))
}
