package admin

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/technerv/election-monitor/pkg/requestcontext"
)

// RequireAdmin admits principals carrying the admin flag, or operators
// presenting the shared X-Admin-Token when one is configured.
func RequireAdmin(expectedToken string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if requestcontext.Principal(ctx).IsAdmin {
				next.ServeHTTP(w, r)
				return
			}

			token := r.Header.Get("X-Admin-Token")
			if expectedToken != "" && subtle.ConstantTimeCompare([]byte(token), []byte(expectedToken)) == 1 {
				next.ServeHTTP(w, r)
				return
			}

			logger.WarnContext(ctx, "admin access denied",
				"request_id", requestcontext.RequestID(ctx),
			)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"error":"forbidden","error_description":"administrator capability required"}`))
		})
	}
}
