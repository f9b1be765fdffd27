package rateLimiter

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRemoteIPKeyFunc(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/private", nil)
	r.RemoteAddr = "10.0.0.9:5555"
	assert.Equal(t, "10.0.0.9", RemoteIPKeyFunc(r))

	r.RemoteAddr = "10.0.0.9"
	assert.Equal(t, "10.0.0.9", RemoteIPKeyFunc(r))

	r.RemoteAddr = ""
	assert.Equal(t, "unknown", RemoteIPKeyFunc(r))
}

func TestHeaderKeyFunc_FallsBackToIP(t *testing.T) {
	fn := HeaderKeyFunc("X-Client")

	r := httptest.NewRequest(http.MethodGet, "/private", nil)
	r.RemoteAddr = "10.0.0.1:1234"
	r.Header.Set("X-Client", " client-123 ")
	assert.Equal(t, "client-123", fn(r))

	r.Header.Del("X-Client")
	assert.Equal(t, "10.0.0.1", fn(r))
}

func TestRemoteIPKeyFunc_IgnoresForwardedHeaders(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/private", nil)
	r.RemoteAddr = "192.0.2.10:4000"
	r.Header.Set("X-Forwarded-For", "203.0.113.7")
	r.Header.Set("X-Real-IP", "203.0.113.8")
	assert.Equal(t, "192.0.2.10", RemoteIPKeyFunc(r))
}

func TestTrustedProxyKeyFunc(t *testing.T) {
	fn, err := TrustedProxyKeyFunc([]string{"10.0.0.1", "172.16.0.0/12", " "})
	require.NoError(t, err)

	cases := []struct {
		name   string
		remote string
		xff    string
		want   string
	}{
		{"untrusted peer ignores header", "192.0.2.10:4000", "203.0.113.7", "192.0.2.10"},
		{"trusted peer uses client hop", "10.0.0.1:4000", "203.0.113.7", "203.0.113.7"},
		{"rightmost untrusted hop wins", "10.0.0.1:4000", "198.51.100.1, 203.0.113.7, 172.16.4.4", "203.0.113.7"},
		{"cidr peer is trusted", "172.20.1.1:4000", "203.0.113.9", "203.0.113.9"},
		{"garbage hops are skipped", "10.0.0.1:4000", "203.0.113.7, not-an-ip", "203.0.113.7"},
		{"only proxies falls back to peer", "10.0.0.1:4000", "172.16.0.2", "10.0.0.1"},
		{"missing header falls back to peer", "10.0.0.1:4000", "", "10.0.0.1"},
		{"mapped v4 hop is unmapped", "10.0.0.1:4000", "::ffff:203.0.113.7", "203.0.113.7"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/private", nil)
			r.RemoteAddr = tc.remote
			if tc.xff != "" {
				r.Header.Set("X-Forwarded-For", tc.xff)
			}
			assert.Equal(t, tc.want, fn(r))
		})
	}
}

func TestTrustedProxyKeyFunc_RejectsInvalidEntry(t *testing.T) {
	_, err := TrustedProxyKeyFunc([]string{"10.0.0.1", "proxy.internal"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidProxy)
}

func TestMiddleware_Returns429AfterLimit(t *testing.T) {
	limiter, _ := newTestLimiter(t, 2, time.Minute)
	calls := 0
	handler := Middleware(limiter, nil, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	}))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/private", nil)
		req.RemoteAddr = "192.168.1.1:4000"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)

		if rec.Code == http.StatusTooManyRequests {
			var body map[string]string
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.Equal(t, LimitExceededMessage, body["error"])
			assert.Equal(t, "60", rec.Header().Get("Retry-After"))
		}
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
	assert.Equal(t, 2, calls, "denied requests never reach the next handler")
}

func TestClientsHandler(t *testing.T) {
	limiter, _ := newTestLimiter(t, 5, time.Minute)
	limiter.CheckAndRecord("127.0.0.1")

	rec := httptest.NewRecorder()
	limiter.ClientsHandler(rec, httptest.NewRequest(http.MethodGet, "/admin/clients", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var clients []ClientSnapshot
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&clients))
	require.Len(t, clients, 1)
	assert.Equal(t, "127.0.0.1", clients[0].Ip)
	assert.Equal(t, 4, clients[0].Remaining)

	rec = httptest.NewRecorder()
	limiter.ClientsHandler(rec, httptest.NewRequest(http.MethodDelete, "/admin/clients", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	limiter.ClientsHandler(rec, httptest.NewRequest(http.MethodDelete, "/admin/clients?client_ip=127.0.0.1", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	limiter.ClientsHandler(rec, httptest.NewRequest(http.MethodDelete, "/admin/clients?client_ip=127.0.0.1", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	limiter.ClientsHandler(rec, httptest.NewRequest(http.MethodPut, "/admin/clients", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
