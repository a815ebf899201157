// Package api exposes BORO over HTTP: JSON endpoints for accounts, items,
// the lending workflow, favorites and notifications, plus a websocket that
// pushes the activity view as it changes.
package api

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/go-chi/cors"

	"github.com/erazemk/boro/internal/activity"
	"github.com/erazemk/boro/internal/auth"
	"github.com/erazemk/boro/internal/lending"
	"github.com/erazemk/boro/internal/live"
	"github.com/erazemk/boro/internal/model"
	"github.com/erazemk/boro/internal/ratelimit"
	"github.com/erazemk/boro/internal/validation"
)

// Deps are the services the router dispatches to.
type Deps struct {
	DB       *sql.DB
	Issuer   *auth.Issuer
	Hub      *live.Hub
	Lending  *lending.Service
	Activity *activity.Registry
	Logger   *slog.Logger

	// LoginLimiter throttles login attempts per remote address. Nil disables it.
	LoginLimiter *ratelimit.KeyedRateLimiter

	// AllowedOrigins lists the origins allowed by CORS and the activity
	// websocket. Empty allows any origin.
	AllowedOrigins []string
}

// NewRouter creates the API router with all endpoints registered.
func NewRouter(d Deps) http.Handler {
	mux := http.NewServeMux()

	base := handler{db: d.DB, hub: d.Hub, logger: d.Logger, validate: validation.New()}
	authHandler := &AuthHandler{handler: base, Issuer: d.Issuer, Limiter: d.LoginLimiter}
	usersHandler := &UsersHandler{handler: base}
	itemsHandler := &ItemsHandler{handler: base}
	lendingHandler := &LendingHandler{handler: base, Lending: d.Lending}
	favoritesHandler := &FavoritesHandler{handler: base}
	notificationsHandler := &NotificationsHandler{handler: base}
	activityHandler := &ActivityHandler{handler: base, Registry: d.Activity, Origins: d.AllowedOrigins}

	authMW := AuthMiddleware(d.Issuer, d.DB, d.Logger)
	requireAdmin := RequireRole(model.RoleAdmin)
	authed := func(h http.HandlerFunc) http.Handler { return authMW(h) }

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Public: account creation and login.
	mux.HandleFunc("POST /api/auth/register", authHandler.Register)
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)

	mux.Handle("POST /api/auth/logout", authed(authHandler.Logout))
	mux.Handle("GET /api/auth/me", authed(authHandler.Me))
	mux.Handle("PUT /api/auth/password", authed(authHandler.ChangePassword))
	mux.Handle("PUT /api/auth/profile", authed(authHandler.UpdateProfile))

	// Users (admin only).
	mux.Handle("GET /api/users", authMW(requireAdmin(http.HandlerFunc(usersHandler.List))))
	mux.Handle("DELETE /api/users/{id}", authMW(requireAdmin(http.HandlerFunc(usersHandler.Delete))))

	// Items: anyone signed in may look, only the owner may change.
	mux.Handle("GET /api/items", authed(itemsHandler.List))
	mux.Handle("POST /api/items", authed(itemsHandler.Create))
	mux.Handle("GET /api/items/{id}", authed(itemsHandler.Get))
	mux.Handle("PUT /api/items/{id}", authed(itemsHandler.Update))
	mux.Handle("DELETE /api/items/{id}", authed(itemsHandler.Delete))
	mux.Handle("POST /api/items/{id}/images", authed(itemsHandler.UploadImage))
	mux.Handle("GET /api/items/{id}/images/{imageID}", authed(itemsHandler.GetImage))
	mux.Handle("DELETE /api/items/{id}/images/{imageID}", authed(itemsHandler.DeleteImage))
	mux.Handle("GET /api/storages/{userID}", authed(itemsHandler.Storage))

	// Lending workflow.
	mux.Handle("POST /api/items/{id}/borrow", authed(lendingHandler.Borrow))
	mux.Handle("POST /api/items/{id}/return", authed(lendingHandler.Return))
	mux.Handle("POST /api/items/{id}/extend", authed(lendingHandler.Extend))
	mux.Handle("GET /api/requests", authed(lendingHandler.Requests))
	mux.Handle("POST /api/requests/borrow/{id}/{action}", authed(lendingHandler.ResolveBorrow))
	mux.Handle("POST /api/requests/extend/{id}/{action}", authed(lendingHandler.ResolveExtend))

	// Favorites.
	mux.Handle("GET /api/favorites", authed(favoritesHandler.List))
	mux.Handle("PUT /api/favorites/storages/{ownerID}", authed(favoritesHandler.AddStorage))
	mux.Handle("DELETE /api/favorites/storages/{ownerID}", authed(favoritesHandler.RemoveStorage))
	mux.Handle("PUT /api/favorites/items/{itemID}", authed(favoritesHandler.AddItem))
	mux.Handle("DELETE /api/favorites/items/{itemID}", authed(favoritesHandler.RemoveItem))

	// Notifications.
	mux.Handle("GET /api/notifications", authed(notificationsHandler.List))
	mux.Handle("POST /api/notifications/read-all", authed(notificationsHandler.ReadAll))
	mux.Handle("POST /api/notifications/{id}/read", authed(notificationsHandler.Read))

	// Activity.
	mux.Handle("GET /api/activity", authed(activityHandler.Get))
	mux.Handle("GET /api/activity/stream", authed(activityHandler.Stream))

	corsMW := cors.Handler(cors.Options{
		AllowedOrigins: d.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:         300,
	})

	return LoggingMiddleware(d.Logger)(corsMW(mux))
}
