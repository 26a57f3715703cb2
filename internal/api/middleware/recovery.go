package middleware

import (
	"log/slog"
	"net/http"

	"github.com/mcoot/cardroom/internal/api/apierr"
	"github.com/mcoot/cardroom/internal/middleware"
)

// Recovery turns panics into JSON 500 responses that quote the request ID
func Recovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return middleware.Recovery(logger, func(w http.ResponseWriter, r *http.Request, _ any) {
		apierr.WriteError(w, apierr.NewInternalError(middleware.RequestID(r.Context())))
	})
}

// Logging assigns request IDs and logs each request
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return middleware.Logging(logger)
}
