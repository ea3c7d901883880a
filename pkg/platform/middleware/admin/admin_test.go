package admin

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/technerv/election-monitor/pkg/domain"
	"github.com/technerv/election-monitor/pkg/requestcontext"
)

func TestRequireAdmin(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	h := RequireAdmin("ops-token", logger)(ok)

	tests := []struct {
		name      string
		principal domain.Principal
		token     string
		want      int
	}{
		{"admin principal", domain.Principal{ID: "a1", IsAdmin: true}, "", http.StatusOK},
		{"operator token", domain.Principal{}, "ops-token", http.StatusOK},
		{"observer denied", domain.Principal{ID: "o1", IsVerifiedObserver: true}, "", http.StatusForbidden},
		{"wrong token denied", domain.Principal{}, "guess", http.StatusForbidden},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/admin/sync", nil)
			req = req.WithContext(requestcontext.WithPrincipal(req.Context(), tc.principal))
			if tc.token != "" {
				req.Header.Set("X-Admin-Token", tc.token)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}

func TestRequireAdminWithoutConfiguredToken(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := RequireAdmin("", logger)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))

	req := httptest.NewRequest(http.MethodPost, "/admin/sync", nil)
	req.Header.Set("X-Admin-Token", "")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
