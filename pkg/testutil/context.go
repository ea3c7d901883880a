package testutil

import (
	"net/http"

	"github.com/technerv/election-monitor/pkg/domain"
	"github.com/technerv/election-monitor/pkg/requestcontext"
)

// AsPrincipal stands in for the Authenticate middleware. current is read on
// every request so a suite can switch principals between calls.
func AsPrincipal(current func() domain.Principal) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, WithPrincipal(r, current()))
		})
	}
}

func WithPrincipal(req *http.Request, p domain.Principal) *http.Request {
	return req.WithContext(requestcontext.WithPrincipal(req.Context(), p))
}
