package auth

import (
	"context"
	"net/http"
	"strings"

	apperrors "talk-hub/errors"
)

type contextKey string

const usernameKey contextKey = "username"

// TokenFromRequest extracts the session token from the authorization
// header, tolerating an optional "Bearer " prefix, and falls back to the
// "token" query parameter for WebSocket upgrades where custom headers are
// awkward to set from browsers.
func TokenFromRequest(r *http.Request) (string, error) {
	if header := r.Header.Get("authorization"); header != "" {
		return strings.TrimPrefix(header, "Bearer "), nil
	}
	if token := r.URL.Query().Get("token"); token != "" {
		return token, nil
	}
	return "", apperrors.ErrMissingToken
}

// Middleware validates the session token on incoming HTTP requests.
// A missing token and an invalid or expired one are both rejected with 403,
// matching the public contract. The verified username is injected into the
// request context for downstream handlers.
func (s TokenService) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenStr, err := TokenFromRequest(r)
		if err != nil {
			w.WriteHeader(http.StatusForbidden)
			return
		}

		username, err := s.Verify(tokenStr)
		if err != nil {
			w.WriteHeader(http.StatusForbidden)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUsername(r.Context(), username)))
	})
}

// WithUsername stores the authenticated username in the context.
func WithUsername(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, usernameKey, username)
}

// UsernameFromContext returns the authenticated username, if any.
func UsernameFromContext(ctx context.Context) (string, bool) {
	username, ok := ctx.Value(usernameKey).(string)
	return username, ok
}
