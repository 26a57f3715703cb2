package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/mcoot/cardroom/internal/api/apierr"
	"github.com/mcoot/cardroom/internal/model"
)

// SessionCookie is the cookie consulted when no bearer token is sent
const SessionCookie = "session"

type contextKey string

const (
	identityContextKey contextKey = "identity"
	tokenContextKey    contextKey = "token"
)

// Resolver turns a bearer token into an identity
type Resolver interface {
	Resolve(ctx context.Context, token string) (*model.Identity, error)
}

// Auth creates authentication middleware
func Auth(resolver Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := ExtractToken(r)
			if token == "" {
				apierr.WriteError(w, apierr.NewUnauthorizedError())
				return
			}

			identity, err := resolver.Resolve(r.Context(), token)
			if err != nil {
				apierr.WriteError(w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), identity, token)))
		})
	}
}

// OptionalAuth attaches the identity when a valid token is sent. Missing or
// invalid tokens leave the request anonymous; store failures still error.
func OptionalAuth(resolver Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := ExtractToken(r)
			if token != "" {
				identity, err := resolver.Resolve(r.Context(), token)
				switch {
				case err == nil:
					r = r.WithContext(withIdentity(r.Context(), identity, token))
				case apierr.Status(err) != http.StatusUnauthorized:
					apierr.WriteError(w, err)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin rejects identities without the admin role. Must run after Auth.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity := GetIdentity(r.Context())
		if identity == nil {
			apierr.WriteError(w, apierr.NewUnauthorizedError())
			return
		}
		if !identity.Role.CanAdminister() {
			apierr.WriteError(w, apierr.NewForbiddenError())
			return
		}
		next.ServeHTTP(w, r)
	})
}

func withIdentity(ctx context.Context, identity *model.Identity, token string) context.Context {
	ctx = context.WithValue(ctx, identityContextKey, identity)
	return context.WithValue(ctx, tokenContextKey, token)
}

// ExtractToken extracts the session token from the request
func ExtractToken(r *http.Request) string {
	// Check Authorization header first
	authHeader := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(authHeader, "Bearer "); ok {
		return strings.TrimSpace(token)
	}

	// Fall back to cookie
	cookie, err := r.Cookie(SessionCookie)
	if err == nil {
		return cookie.Value
	}

	return ""
}

// GetIdentity returns the authenticated identity from the request context
func GetIdentity(ctx context.Context) *model.Identity {
	identity, _ := ctx.Value(identityContextKey).(*model.Identity)
	return identity
}

// GetToken returns the bearer token the request authenticated with
func GetToken(ctx context.Context) string {
	token, _ := ctx.Value(tokenContextKey).(string)
	return token
}

// MustGetIdentity returns the authenticated identity or panics
func MustGetIdentity(ctx context.Context) *model.Identity {
	identity := GetIdentity(ctx)
	if identity == nil {
		panic("no identity in context - auth middleware not applied?")
	}
	return identity
}

// ClientKey identifies the caller for login throttling: the remote IP, or
// the first X-Forwarded-For hop when the server sits behind a trusted proxy.
func ClientKey(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
			first, _, _ := strings.Cut(forwarded, ",")
			if first = strings.TrimSpace(first); first != "" {
				return first
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
