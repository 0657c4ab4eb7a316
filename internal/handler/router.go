/*
Package handler provides the admin HTTP handlers and routing for the RelayChat server.

This file defines the main Router, applying middleware like logging, CORS and IP-based
rate limiting before delegating to the reporting handlers and the WebSocket gateway.
*/
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"golang.org/x/time/rate"

	"relaychat/internal/pkg/errs"
	"relaychat/internal/pkg/limiter"
	"relaychat/internal/pkg/logx"
	"relaychat/internal/pkg/resp"
)

const (
	StatusRate  = 2
	StatusBurst = 20
)

// NewStatusLimiter builds the per-IP limiter shared by the reporting endpoints.
func NewStatusLimiter() *limiter.IPRateLimiter {
	return limiter.NewIPRateLimiter(rate.Limit(StatusRate), StatusBurst)
}

// Router sets up the admin HTTP routing table.
// Reporting endpoints share deps.StatusLimiter; the WebSocket gateway is limited by the
// acceptor's connection budget instead, so TCP and WebSocket clients count alike.
func Router(deps *AppDeps) http.Handler {
	r := chi.NewRouter()

	allowedOrigins := make(map[string]struct{})
	for _, origin := range deps.Config.AllowedOrigins {
		allowedOrigins[origin] = struct{}{}
	}

	wsUpgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if deps.Config.IsDevelopment() {
				return true
			}

			// Non-browser clients send no Origin.
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			if _, ok := allowedOrigins[origin]; ok {
				return true
			}

			logx.Warn("WebSocket connection rejected: Origin not allowed.", "origin", origin)
			return false
		},
	}

	corsAllowedOrigins := []string{}
	if deps.Config.IsDevelopment() {
		corsAllowedOrigins = []string{"*"}
	} else if len(deps.Config.AllowedOrigins) > 0 {
		corsAllowedOrigins = deps.Config.AllowedOrigins
	}

	c := cors.New(cors.Options{
		AllowedOrigins: corsAllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	})
	r.Use(c.Handler)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logx.RequestLogger())
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		data := map[string]string{
			"status":  "ok",
			"service": deps.Config.AppName,
			"version": deps.Config.AppVersion,
		}
		resp.RespondSuccess(w, r, data)
	})

	r.Group(func(reporting chi.Router) {
		reporting.Use(deps.StatusLimiter.Middleware)

		reporting.Get("/status", HandleStatusText(deps))
		reporting.Get("/api/status", HandleStatusJSON(deps))
		reporting.Post("/api/announce", HandleAnnounce(deps))
	})

	r.Get("/ws", HandleWebSocket(wsUpgrader, deps))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		resp.RespondError(w, r, errs.NewError(errs.ErrNotFound))
	})

	return r
}
