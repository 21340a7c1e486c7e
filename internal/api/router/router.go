package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/afiyalink/afiyalink-assistant/internal/http/handlers"
	httpmiddleware "github.com/afiyalink/afiyalink-assistant/internal/http/middleware"
	"github.com/afiyalink/afiyalink-assistant/internal/triage"
	"github.com/afiyalink/afiyalink-assistant/internal/webchat"
	"github.com/afiyalink/afiyalink-assistant/pkg/logging"
)

// Paths that are never rate limited.
var rateLimitExempt = []string{
	"/health",
	"/api/v1/emergency",
}

// Config holds router configuration
type Config struct {
	Logger    *logging.Logger
	Triage    *triage.Handler
	Translate http.Handler
	WebChat   *webchat.Handler
	AdminOps  *handlers.AdminOpsHandler
	Protocols *handlers.ProtocolHandler

	MetricsHandler     http.Handler
	AdminAuthSecret    string
	CORSAllowedOrigins []string

	// RateLimitRPS <= 0 disables rate limiting.
	RateLimitRPS   float64
	RateLimitBurst int
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	if cfg.Triage == nil {
		panic("router: triage handler cannot be nil")
	}
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	r.Use(middleware.Recoverer)
	r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	if cfg.RateLimitRPS > 0 {
		limiter := httpmiddleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
		r.Use(httpmiddleware.RateLimit(limiter, rateLimitExempt...))
	}

	r.Get("/", cfg.Triage.Root)
	r.Get("/health", cfg.Triage.Health)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	// JSON API; compressed. The websocket route stays outside this group
	// because the upgrade needs the raw connection.
	r.Group(func(api chi.Router) {
		api.Use(middleware.Compress(5))

		api.Route("/api/v1", func(v1 chi.Router) {
			v1.Post("/health-chat", cfg.Triage.Chat)
			v1.Post("/emergency", cfg.Triage.Emergency)
			v1.Get("/system-status", cfg.Triage.SystemStatus)
			if cfg.Protocols != nil {
				v1.Get("/emergency/protocols/{condition}", cfg.Protocols.GetProtocol)
			}
			if cfg.Translate != nil {
				v1.Method(http.MethodPost, "/translate", cfg.Translate)
			}
		})
		if cfg.Translate != nil {
			api.Method(http.MethodPost, "/translate", cfg.Translate)
		}

		if cfg.WebChat != nil {
			api.Route("/chat", func(chat chi.Router) {
				chat.Post("/message", cfg.WebChat.HandleMessage)
				chat.Get("/history", cfg.WebChat.HandleHistory)
				chat.Get("/widget.js", cfg.WebChat.HandleWidgetJS)
			})
		}

		if cfg.AdminOps != nil && cfg.AdminAuthSecret != "" {
			api.Route("/admin", func(admin chi.Router) {
				admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
				admin.Get("/interactions", cfg.AdminOps.ListInteractions)
				admin.Get("/audit", cfg.AdminOps.ListAuditEvents)
				admin.Get("/cost", cfg.AdminOps.CostStatus)
			})
		}
	})

	if cfg.WebChat != nil {
		r.Get("/ws/chat", cfg.WebChat.HandleWebSocket)
	}

	return r
}
