// Package api serves the JSON HTTP API for users, categories, events and reminders.
package api

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/pathakanu/eventide/internal/auth"
	"github.com/pathakanu/eventide/internal/store"
)

// Server holds the dependencies shared by all handlers.
type Server struct {
	store   *store.Store
	tokens  *auth.Tokens
	limiter *RateLimiter
	logger  *log.Logger
}

// New creates a Server. limiter guards the unauthenticated auth endpoints and may be nil.
func New(st *store.Store, tokens *auth.Tokens, limiter *RateLimiter, logger *log.Logger) *Server {
	return &Server{store: st, tokens: tokens, limiter: limiter, logger: logger}
}

// Routes returns the router. metrics, when non-nil, is mounted at /metrics.
func (s *Server) Routes(metrics http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors)

	r.Get("/health", s.health)
	if metrics != nil {
		r.Handle("/metrics", metrics)
	}

	r.Route("/api/auth", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if s.limiter != nil {
				r.Use(s.limiter.Middleware)
			}
			r.Post("/register", s.register)
			r.Post("/login", s.login)
		})
		r.With(s.requireAuth).Get("/me", s.me)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.requireAuth)

		r.Route("/api/categories", func(r chi.Router) {
			r.Post("/", s.createCategory)
			r.Get("/", s.listCategories)
			r.Get("/{id}", s.getCategory)
			r.Put("/{id}", s.updateCategory)
			r.Delete("/{id}", s.deleteCategory)
		})

		r.Route("/api/events", func(r chi.Router) {
			r.Post("/", s.createEvent)
			r.Get("/", s.listEvents)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.getEvent)
				r.Put("/", s.updateEvent)
				r.Delete("/", s.deleteEvent)
				r.Post("/reminders", s.addReminder)
				r.Delete("/reminders/{reminderID}", s.deleteReminder)
			})
		})
	})

	return r
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "message": "Server is running"})
}
