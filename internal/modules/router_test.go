package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"authapi/internal/modules/auth"
	"authapi/internal/modules/credentials"
	"authapi/internal/modules/gatekeeper"
	"authapi/internal/modules/healthchecker"
	"authapi/internal/modules/notifier"
	"authapi/internal/modules/rateLimiter"
	"authapi/internal/modules/tokens"
	"authapi/internal/modules/users"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

const testAdminToken = "admin-secret"

type testServer struct {
	*httptest.Server
	limiter *rateLimiter.FixedWindowLimiter
	clock   *testClock
}

func newTestServer(t *testing.T, limit int, admin bool) *testServer {
	t.Helper()
	logger := zap.NewNop()
	ts := &testServer{clock: &testClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}}
	clock := ts.clock.Now

	store := users.NewMemoryStore()
	codec, err := credentials.NewCodec(bcrypt.MinCost)
	require.NoError(t, err)
	manager, err := tokens.NewManagerWithClock(tokens.Config{Secret: []byte("router-secret")}, clock)
	require.NoError(t, err)

	ts.limiter, err = rateLimiter.NewFixedWindowLimiterWithClock(rateLimiter.Config{Limit: limit, Window: time.Minute}, clock, logger)
	require.NoError(t, err)

	hc := healthchecker.NewHealthChecker(healthchecker.Config{}, logger)
	hc.AddTarget("store", store)
	hc.CheckAll(context.Background())

	service := auth.NewService(store, codec, manager, notifier.NewLogNotifier(logger), auth.Options{
		BaseURL:        "http://localhost:3000",
		EchoResetToken: true,
	}, logger)

	router := CreateRouter(Deps{
		Auth:     auth.NewHandler(service, logger),
		Verifier: manager,
		Limiter:  ts.limiter,
		Health:   hc,
		Logger:   logger,
	}, Options{PathPrefix: "/api", AdminEnabled: admin, AdminToken: testAdminToken})

	ts.Server = httptest.NewServer(router)
	t.Cleanup(ts.Close)
	return ts
}

func (ts *testServer) post(t *testing.T, path string, body any) (int, map[string]any) {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := http.Post(ts.URL+path, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func (ts *testServer) private(t *testing.T, token string) (int, map[string]any) {
	t.Helper()
	return ts.privateWithHeaders(t, token, nil)
}

func (ts *testServer) privateWithHeaders(t *testing.T, token string, headers map[string]string) (int, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, ts.URL+"/api/private", nil)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set(gatekeeper.TokenHeader, token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestAuthLifecycle(t *testing.T) {
	ts := newTestServer(t, 100, false)

	code, body := ts.post(t, "/api/register", map[string]string{
		"email": "a@x.io", "username": "alice", "password": "secret1",
	})
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, auth.MsgRegistered, body["message"])

	code, body = ts.post(t, "/api/login", map[string]string{"email": "a@x.io", "password": "secret1"})
	require.Equal(t, http.StatusOK, code)
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)

	code, body = ts.private(t, token)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, gatekeeper.MsgWelcome, body["message"])

	code, body = ts.post(t, "/api/forgot-password", map[string]string{"email": "a@x.io"})
	require.Equal(t, http.StatusOK, code)
	resetToken, _ := body["token"].(string)
	require.NotEmpty(t, resetToken)

	code, _ = ts.post(t, "/api/reset-password", map[string]string{"token": resetToken, "newPassword": "brandnew"})
	require.Equal(t, http.StatusOK, code)

	code, body = ts.post(t, "/api/login", map[string]string{"email": "a@x.io", "password": "secret1"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, auth.MsgInvalidCredentials, body["error"])

	code, _ = ts.post(t, "/api/login", map[string]string{"email": "a@x.io", "password": "brandnew"})
	assert.Equal(t, http.StatusOK, code)
}

func TestPrivate_TokenErrors(t *testing.T) {
	ts := newTestServer(t, 100, false)

	code, body := ts.private(t, "")
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, gatekeeper.MsgNoToken, body["error"])

	code, body = ts.private(t, "garbage")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, gatekeeper.MsgInvalidToken, body["error"])
}

func TestPrivate_RateLimitedBeforeAuth(t *testing.T) {
	ts := newTestServer(t, 5, false)

	for i := 0; i < 5; i++ {
		code, _ := ts.private(t, "")
		require.Equal(t, http.StatusUnauthorized, code, "request %d", i+1)
	}

	code, body := ts.private(t, "")
	assert.Equal(t, http.StatusTooManyRequests, code)
	assert.Equal(t, rateLimiter.LimitExceededMessage, body["error"])

	ts.clock.Advance(61 * time.Second)
	code, _ = ts.private(t, "")
	assert.Equal(t, http.StatusUnauthorized, code, "new window admits the request")
}

func TestRouter_OperationalRoutes(t *testing.T) {
	ts := newTestServer(t, 5, true)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(RequestIDHeader))

	ts.private(t, "")
	req, err := http.NewRequest(http.MethodGet, ts.URL+"/admin/clients", nil)
	require.NoError(t, err)
	req.Header.Set(AdminTokenHeader, testAdminToken)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var clients []rateLimiter.ClientSnapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&clients))
	require.Len(t, clients, 1)
	assert.Equal(t, 4, clients[0].Remaining)

	resp, err = http.Get(ts.URL + "/api/nowhere")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPrivate_ForwardedForDoesNotChangeIdentity(t *testing.T) {
	ts := newTestServer(t, 5, false)

	for i := 1; i <= 5; i++ {
		code, _ := ts.privateWithHeaders(t, "", map[string]string{
			"X-Forwarded-For": fmt.Sprintf("203.0.113.%d", i),
			"X-Real-IP":       fmt.Sprintf("198.51.100.%d", i),
		})
		require.Equal(t, http.StatusUnauthorized, code, "request %d", i)
	}

	code, body := ts.privateWithHeaders(t, "", map[string]string{"X-Forwarded-For": "203.0.113.6"})
	assert.Equal(t, http.StatusTooManyRequests, code)
	assert.Equal(t, rateLimiter.LimitExceededMessage, body["error"])
	assert.Equal(t, 1, ts.limiter.Len())
}

func TestRouter_AdminRequiresToken(t *testing.T) {
	ts := newTestServer(t, 5, true)
	ts.private(t, "")

	cases := []struct {
		name   string
		method string
		token  string
		status int
	}{
		{"list without token", http.MethodGet, "", http.StatusUnauthorized},
		{"list with wrong token", http.MethodGet, "not-the-secret", http.StatusUnauthorized},
		{"delete without token", http.MethodDelete, "", http.StatusUnauthorized},
		{"list with token", http.MethodGet, testAdminToken, http.StatusOK},
		{"delete with token", http.MethodDelete, testAdminToken, http.StatusNoContent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req, err := http.NewRequest(tc.method, ts.URL+"/admin/clients?client_ip=127.0.0.1", nil)
			require.NoError(t, err)
			if tc.token != "" {
				req.Header.Set(AdminTokenHeader, tc.token)
			}
			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			resp.Body.Close()
			assert.Equal(t, tc.status, resp.StatusCode)
		})
	}
	assert.Equal(t, 0, ts.limiter.Len())
}

func TestRouter_AdminWithoutTokenStaysUnmounted(t *testing.T) {
	limiter, err := rateLimiter.NewFixedWindowLimiter(rateLimiter.Config{Limit: 5, Window: time.Minute}, nil)
	require.NoError(t, err)
	router := CreateRouter(Deps{Limiter: limiter, Auth: &auth.Handler{}}, Options{AdminEnabled: true})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/clients", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_AdminDisabled(t *testing.T) {
	ts := newTestServer(t, 5, false)

	resp, err := http.Get(ts.URL + "/admin/clients")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRecovery_WritesGenericError(t *testing.T) {
	handler := Recovery(zap.NewNop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "Internal Server Error", body["error"])
}

func TestRequestID_PreservesIncoming(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "abc-123", seen)
	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))
}
