package apierr

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/mcoot/cardroom/internal/model"
)

// APIError represents an API error response
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse wraps an APIError
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// Common error codes
const (
	CodeInvalidRequest      = "INVALID_REQUEST"
	CodeInvalidCredentials  = "INVALID_CREDENTIALS"
	CodeInvalidToken        = "INVALID_TOKEN"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeUnsupportedProvider = "UNSUPPORTED_PROVIDER"
	CodeForbidden           = "FORBIDDEN"
	CodeRoomNotFound        = "ROOM_NOT_FOUND"
	CodeIdentityNotFound    = "IDENTITY_NOT_FOUND"
	CodeIdentityExists      = "IDENTITY_EXISTS"
	CodeNotJoinable         = "NOT_JOINABLE"
	CodeRoomFull            = "ROOM_FULL"
	CodeSpectatorsFull      = "SPECTATORS_FULL"
	CodeRateLimited         = "RATE_LIMITED"
	CodeProviderUnavailable = "PROVIDER_UNAVAILABLE"
	CodeInternalError       = "INTERNAL_ERROR"
)

// DefaultRetryAfter is advertised on 429 responses that carry no window
const DefaultRetryAfter = time.Minute

// httpError combines an HTTP status code with an APIError
type httpError struct {
	status     int
	apiError   APIError
	retryAfter time.Duration
}

// Error implements error interface
func (e *httpError) Error() string {
	return e.apiError.Message
}

// WriteError writes an error response to the response writer
func WriteError(w http.ResponseWriter, err error) {
	he := toHTTPError(err)
	w.Header().Set("Content-Type", "application/json")
	if he.retryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(int((he.retryAfter+time.Second-1)/time.Second)))
	}
	w.WriteHeader(he.status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: he.apiError})
}

// Status returns the HTTP status err maps to
func Status(err error) int {
	return toHTTPError(err).status
}

// toHTTPError converts an error to an httpError
func toHTTPError(err error) *httpError {
	// Check for specific error types
	var he *httpError
	if errors.As(err, &he) {
		return he
	}

	switch {
	// Identity errors
	case errors.Is(err, model.ErrInvalidCredentials):
		return &httpError{status: http.StatusUnauthorized, apiError: APIError{CodeInvalidCredentials, "Invalid display name or password"}}
	case errors.Is(err, model.ErrInvalidToken):
		return &httpError{status: http.StatusUnauthorized, apiError: APIError{CodeInvalidToken, "Identity token was rejected"}}
	case errors.Is(err, model.ErrUnauthenticated):
		return &httpError{status: http.StatusUnauthorized, apiError: APIError{CodeUnauthorized, "Invalid or expired session"}}
	case errors.Is(err, model.ErrUnsupportedProvider):
		return &httpError{status: http.StatusBadRequest, apiError: APIError{CodeUnsupportedProvider, "Identity provider is not supported"}}
	case errors.Is(err, model.ErrRateLimited):
		return &httpError{
			status:     http.StatusTooManyRequests,
			apiError:   APIError{CodeRateLimited, "Too many failed attempts, try again later"},
			retryAfter: DefaultRetryAfter,
		}
	case errors.Is(err, model.ErrProviderUnavailable):
		return &httpError{status: http.StatusBadGateway, apiError: APIError{CodeProviderUnavailable, "Identity provider is unavailable, try again"}}
	case errors.Is(err, model.ErrIdentityNotFound):
		return &httpError{status: http.StatusNotFound, apiError: APIError{CodeIdentityNotFound, "Identity not found"}}
	case errors.Is(err, model.ErrDuplicateIdentity):
		return &httpError{status: http.StatusConflict, apiError: APIError{CodeIdentityExists, "Identity already exists"}}

	// Access errors
	case errors.Is(err, model.ErrForbidden):
		return &httpError{status: http.StatusForbidden, apiError: APIError{CodeForbidden, "Not allowed"}}
	case errors.Is(err, model.ErrInvalidRequest):
		return &httpError{status: http.StatusBadRequest, apiError: APIError{CodeInvalidRequest, err.Error()}}

	// Room errors
	case errors.Is(err, model.ErrNotFound):
		return &httpError{status: http.StatusNotFound, apiError: APIError{CodeRoomNotFound, "Room not found"}}
	case errors.Is(err, model.ErrNotJoinable):
		return &httpError{status: http.StatusConflict, apiError: APIError{CodeNotJoinable, "Room is not accepting joins"}}
	case errors.Is(err, model.ErrRoomFull):
		return &httpError{status: http.StatusConflict, apiError: APIError{CodeRoomFull, "Room has no free player seats"}}
	case errors.Is(err, model.ErrSpectatorsFull):
		return &httpError{status: http.StatusConflict, apiError: APIError{CodeSpectatorsFull, "Room has no free spectator seats"}}

	default:
		return &httpError{status: http.StatusInternalServerError, apiError: APIError{CodeInternalError, "Internal server error"}}
	}
}

// NewInvalidRequestError creates an invalid request error
func NewInvalidRequestError(message string) error {
	return &httpError{status: http.StatusBadRequest, apiError: APIError{CodeInvalidRequest, message}}
}

// NewUnauthorizedError creates an unauthorized error
func NewUnauthorizedError() error {
	return &httpError{status: http.StatusUnauthorized, apiError: APIError{CodeUnauthorized, "Authentication required"}}
}

// NewForbiddenError creates a forbidden error
func NewForbiddenError() error {
	return &httpError{status: http.StatusForbidden, apiError: APIError{CodeForbidden, "Admin role required"}}
}

// NewRateLimitedError creates a 429 advertising when to retry
func NewRateLimitedError(retryAfter time.Duration) error {
	return &httpError{
		status:     http.StatusTooManyRequests,
		apiError:   APIError{CodeRateLimited, "Too many failed attempts, try again later"},
		retryAfter: retryAfter,
	}
}

// NewInternalError creates an internal server error quoting the request ID
// for support, when known
func NewInternalError(requestID string) error {
	msg := "Internal server error"
	if requestID != "" {
		msg += " (request " + requestID + ")"
	}
	return &httpError{status: http.StatusInternalServerError, apiError: APIError{CodeInternalError, msg}}
}
