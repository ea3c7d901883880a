package metadata

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/technerv/election-monitor/pkg/requestcontext"
)

func TestClientIPFromRequest(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"forwarded chain", map[string]string{"X-Forwarded-For": "41.90.1.7, 10.0.0.2"}, "10.0.0.3:443", "41.90.1.7"},
		{"empty forwarded hop falls through", map[string]string{"X-Forwarded-For": " ,10.0.0.2", "X-Real-IP": "41.90.1.8"}, "10.0.0.3:443", "41.90.1.8"},
		{"real ip", map[string]string{"X-Real-IP": " 41.90.1.9 "}, "10.0.0.3:443", "41.90.1.9"},
		{"ipv4 peer", nil, "197.248.5.1:51234", "197.248.5.1"},
		{"ipv6 peer", nil, "[2c0f:fe38::1]:51234", "2c0f:fe38::1"},
		{"peer without port", nil, "197.248.5.1", "197.248.5.1"},
		{"no address", nil, "", "unknown"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/ws/live", nil)
			r.RemoteAddr = tc.remote
			for k, v := range tc.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tc.want, ClientIPFromRequest(r))
		})
	}
}

func TestClientMetadataStoresIP(t *testing.T) {
	var got string
	h := ClientMetadata(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got = requestcontext.ClientIP(r.Context())
	}))
	r := httptest.NewRequest(http.MethodPost, "/reports", nil)
	r.RemoteAddr = "197.248.5.1:40000"
	h.ServeHTTP(httptest.NewRecorder(), r)
	assert.Equal(t, "197.248.5.1", got)
}
