package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	apperrors "talk-hub/errors"
)

func TestTokenFromRequest(t *testing.T) {
	req := require.New(t)

	// Bare header
	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	r.Header.Set("authorization", "raw-token")
	token, err := TokenFromRequest(r)
	req.NoError(err)
	req.Equal("raw-token", token)

	// Bearer prefix is tolerated
	r = httptest.NewRequest(http.MethodGet, "/ws", nil)
	r.Header.Set("authorization", "Bearer raw-token")
	token, err = TokenFromRequest(r)
	req.NoError(err)
	req.Equal("raw-token", token)

	// Query parameter fallback for WebSocket upgrades
	r = httptest.NewRequest(http.MethodGet, "/ws?token=query-token", nil)
	token, err = TokenFromRequest(r)
	req.NoError(err)
	req.Equal("query-token", token)

	// Nothing at all
	r = httptest.NewRequest(http.MethodGet, "/ws", nil)
	_, err = TokenFromRequest(r)
	req.ErrorIs(err, apperrors.ErrMissingToken)
}

func TestMiddleware(t *testing.T) {
	svc := NewTokenService("test_signing_secret", time.Hour)

	var seenUsername string
	var seenOK bool
	protected := svc.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenUsername, seenOK = UsernameFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("missing token is rejected before the handler", func(t *testing.T) {
		req := require.New(t)
		recorder := httptest.NewRecorder()

		protected.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/ws", nil))

		req.Equal(http.StatusForbidden, recorder.Code)
	})

	t.Run("invalid token is rejected before the handler", func(t *testing.T) {
		req := require.New(t)
		recorder := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/ws", nil)
		r.Header.Set("authorization", "Bearer not-a-token")

		protected.ServeHTTP(recorder, r)

		req.Equal(http.StatusForbidden, recorder.Code)
	})

	t.Run("valid token reaches the handler with its identity", func(t *testing.T) {
		req := require.New(t)
		token, err := svc.Issue("alice")
		req.NoError(err)

		recorder := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/ws", nil)
		r.Header.Set("authorization", "Bearer "+token)

		protected.ServeHTTP(recorder, r)

		req.Equal(http.StatusOK, recorder.Code)
		req.True(seenOK)
		req.Equal("alice", seenUsername)
	})
}
