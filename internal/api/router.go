package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// RouterOptions configures global middleware.
type RouterOptions struct {
	AllowedOrigins []string
	MaxBodyBytes   int64
}

// RegisterRoutes registers the API routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/config", h.Config)
		r.Get("/health", h.Health)
		r.Post("/chat", h.Chat)
		r.Delete("/chat/{conversationId}", h.ClearConversation)
		r.Post("/validate", h.Validate)
		r.Post("/publish", h.Publish)
	})
}

// NewRouter builds the chi router with global middleware and all routes.
func NewRouter(h *Handler, opts RouterOptions) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/health"))
	r.Use(CORS(opts.AllowedOrigins))
	r.Use(BodyLimit(opts.MaxBodyBytes))

	h.RegisterRoutes(r)
	return r
}
