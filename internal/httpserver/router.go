package httpserver

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"chatrelay/internal/config"
	"chatrelay/internal/domain"
	"chatrelay/internal/presence"
	"chatrelay/internal/service"
	"chatrelay/internal/ws"
)

// NewRouter constructs the main HTTP router and wires routes and
// middleware around the relay core.
func NewRouter(
	cfg *config.Config,
	logger zerolog.Logger,
	db *sql.DB,
	hub *ws.Hub,
	registry *presence.Registry,
	authSvc *service.AuthService,
	chatSvc *service.ChatService,
	users domain.UserRepository,
) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"message": cfg.AppName,
			"version": "1.0.0",
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})

	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	r.Get("/debug/online", handleDebugOnline(registry))

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(15 * time.Second))

			r.Route("/auth", func(r chi.Router) {
				r.Post("/register", handleRegister(authSvc))
				r.Post("/login", handleLogin(authSvc))
			})

			r.Group(func(r chi.Router) {
				r.Use(AuthMiddleware(authSvc))
				r.Get("/auth/me", handleMe())
				r.Get("/users/{userID}", handleGetUser(users, registry))
			})
		})
	})

	// WebSocket endpoint: the connection gateway. No HTTP timeout
	// middleware here, connections are long-lived.
	r.Get("/ws", ws.MakeHandler(hub, registry, authSvc, chatSvc, cfg.CORSOrigins, logger))

	return r
}

// writeJSON is a small helper to send JSON responses.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}
