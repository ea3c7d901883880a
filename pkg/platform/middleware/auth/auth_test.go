package auth

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/technerv/election-monitor/pkg/domain"
	"github.com/technerv/election-monitor/pkg/requestcontext"
)

type stubValidator struct {
	principal domain.Principal
	err       error
}

func (s stubValidator) Validate(string) (domain.Principal, error) {
	return s.principal, s.err
}

func principalEcho(seen *domain.Principal) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*seen = requestcontext.Principal(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestAuthenticate(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	observer := domain.Principal{ID: "obs-1", IsVerifiedObserver: true}

	t.Run("no header proceeds anonymous", func(t *testing.T) {
		var seen domain.Principal
		h := Authenticate(stubValidator{principal: observer}, logger)(principalEcho(&seen))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/reports", nil))

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.True(t, seen.IsAnonymous())
	})

	t.Run("valid bearer attaches principal", func(t *testing.T) {
		var seen domain.Principal
		h := Authenticate(stubValidator{principal: observer}, logger)(principalEcho(&seen))
		req := httptest.NewRequest(http.MethodPost, "/reports", nil)
		req.Header.Set("Authorization", "Bearer token")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, observer, seen)
	})

	t.Run("invalid token rejected", func(t *testing.T) {
		var seen domain.Principal
		h := Authenticate(stubValidator{err: errors.New("bad signature")}, logger)(principalEcho(&seen))
		req := httptest.NewRequest(http.MethodPost, "/reports", nil)
		req.Header.Set("Authorization", "Bearer token")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("non bearer scheme rejected", func(t *testing.T) {
		var seen domain.Principal
		h := Authenticate(stubValidator{principal: observer}, logger)(principalEcho(&seen))
		req := httptest.NewRequest(http.MethodPost, "/reports", nil)
		req.Header.Set("Authorization", "Basic Zm9vOmJhcg==")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
