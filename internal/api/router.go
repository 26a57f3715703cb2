package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/mcoot/cardroom/internal/api/apierr"
	"github.com/mcoot/cardroom/internal/api/handler"
	"github.com/mcoot/cardroom/internal/api/middleware"
	"github.com/mcoot/cardroom/internal/api/response"
	"github.com/mcoot/cardroom/internal/api/sse"
	"github.com/mcoot/cardroom/internal/services/auth"
	"github.com/mcoot/cardroom/internal/services/room"
)

// RouterConfig holds configuration for the API router
type RouterConfig struct {
	Logger         *slog.Logger
	AuthService    *auth.Service
	RoomController *room.Controller
	// Streams serves room event streams; nil disables them
	Streams *sse.HubManager
	// TrustProxyHeaders keys login throttling on X-Forwarded-For
	TrustProxyHeaders bool
	// RetryAfter is advertised to throttled logins
	RetryAfter time.Duration
}

// NewRouter creates a new API router with all routes configured
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(notFoundHandler)
	r.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowedHandler)

	// Create handlers
	authHandler := handler.NewAuthHandler(cfg.AuthService, cfg.TrustProxyHeaders, cfg.RetryAfter)
	roomHandler := handler.NewRoomHandler(cfg.RoomController, cfg.Streams)
	adminHandler := handler.NewAdminHandler(cfg.AuthService, cfg.RoomController)

	// Create middleware
	authMiddleware := middleware.Auth(cfg.AuthService)
	optionalAuthMiddleware := middleware.OptionalAuth(cfg.AuthService)

	// API subrouter with common middleware
	api := r.PathPrefix("/api/v1").Subrouter()
	// Logging wraps recovery so panics are logged as 500s under their request ID
	api.Use(middleware.Logging(cfg.Logger))
	api.Use(middleware.Recovery(cfg.Logger))

	// Login needs no session
	api.HandleFunc("/auth/login", authHandler.Login).Methods(http.MethodPost)

	authProtected := api.PathPrefix("/auth").Subrouter()
	authProtected.Use(authMiddleware)
	authProtected.HandleFunc("/logout", authHandler.Logout).Methods(http.MethodPost)
	authProtected.HandleFunc("/me", authHandler.Me).Methods(http.MethodGet)
	authProtected.HandleFunc("/password", authHandler.ChangePassword).Methods(http.MethodPost)

	// Room browsing works anonymously; changes need a session
	rooms := api.PathPrefix("/rooms").Subrouter()
	rooms.Handle("", optionalAuthMiddleware(http.HandlerFunc(roomHandler.List))).Methods(http.MethodGet)
	rooms.Handle("", authMiddleware(http.HandlerFunc(roomHandler.Create))).Methods(http.MethodPost)
	rooms.Handle("/{code}", optionalAuthMiddleware(http.HandlerFunc(roomHandler.Get))).Methods(http.MethodGet)
	rooms.Handle("/{code}/join", authMiddleware(http.HandlerFunc(roomHandler.Join))).Methods(http.MethodPost)
	rooms.Handle("/{code}/events", authMiddleware(http.HandlerFunc(roomHandler.Events))).Methods(http.MethodGet)

	// Admin routes
	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(authMiddleware)
	admin.Use(middleware.RequireAdmin)
	admin.HandleFunc("/verify", adminHandler.Verify).Methods(http.MethodGet)
	admin.HandleFunc("/users", adminHandler.ListUsers).Methods(http.MethodGet)
	admin.HandleFunc("/users/{id}/role", adminHandler.SetRole).Methods(http.MethodPatch)
	admin.HandleFunc("/users/{id}", adminHandler.DeleteUser).Methods(http.MethodDelete)
	admin.HandleFunc("/rooms", adminHandler.ListRooms).Methods(http.MethodGet)
	admin.HandleFunc("/rooms/{code}", adminHandler.ArchiveRoom).Methods(http.MethodDelete)

	// Health check endpoint (no auth)
	api.HandleFunc("/health", healthHandler).Methods(http.MethodGet)

	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, response.Health{Status: "ok"})
}

func notFoundHandler(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusNotFound, apierr.ErrorResponse{
		Error: apierr.APIError{Code: "ROUTE_NOT_FOUND", Message: "No such endpoint"},
	})
}

func methodNotAllowedHandler(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusMethodNotAllowed, apierr.ErrorResponse{
		Error: apierr.APIError{Code: "METHOD_NOT_ALLOWED", Message: "Method not allowed"},
	})
}
