package router

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-account-admin/internal/account"
	"github.com/ovaphlow/pitchfork/service-account-admin/internal/auth"
	"github.com/ovaphlow/pitchfork/service-account-admin/internal/response"
	"github.com/ovaphlow/pitchfork/service-account-admin/internal/session"
	"github.com/ovaphlow/pitchfork/service-account-admin/internal/setting"
)

// Deps are the handlers the router mounts.
type Deps struct {
	Logger   *zap.SugaredLogger
	Auth     *auth.Selector
	Accounts *account.Handler
	Settings *setting.Handler
	Sessions *session.Handler
	// Ping reports store health; nil means always healthy.
	Ping func(ctx context.Context) error
}

// RegisterRoutes mounts HTTP handlers using the standard library's http.ServeMux.
func RegisterRoutes(d Deps) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		if d.Ping != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := d.Ping(ctx); err != nil {
				d.Logger.Warnw("health check failed", "err", err)
				response.WriteJSON(w, http.StatusServiceUnavailable, map[string]any{"success": false, "status": "unavailable"})
				return
			}
		}
		response.WriteJSON(w, http.StatusOK, map[string]any{"success": true, "status": "ok"})
	})
	mux.Handle("GET /metrics", promhttp.Handler())

	// session endpoints
	mux.HandleFunc("POST /api/auth/login", d.Sessions.Login)
	mux.HandleFunc("POST /api/auth/refresh", d.Sessions.Refresh)
	mux.HandleFunc("POST /api/auth/revoke", d.Sessions.Revoke)
	mux.HandleFunc("GET /api/auth/jwks.json", d.Sessions.JWKS)

	// admin endpoints, every one behind the auth selector
	admin := func(h http.HandlerFunc) http.Handler { return d.Auth.Middleware(h) }
	mux.Handle("POST /api/admin/users", admin(d.Accounts.Create))
	mux.Handle("GET /api/admin/users", admin(d.Accounts.List))
	mux.Handle("PUT /api/admin/users/{userId}/password", admin(d.Accounts.UpdatePassword))
	mux.Handle("DELETE /api/admin/users/{userId}", admin(d.Accounts.Delete))
	mux.Handle("GET /api/admin/settings", admin(d.Settings.List))
	mux.Handle("PUT /api/admin/settings/{category}", admin(d.Settings.Put))

	var handler http.Handler = MetricsMiddleware(mux)
	handler = SecurityHeadersMiddleware()(handler)
	handler = LoggingMiddleware(d.Logger)(handler)
	handler = RequestIDMiddleware()(handler)
	handler = RecoverMiddleware(d.Logger)(handler)
	return handler
}
