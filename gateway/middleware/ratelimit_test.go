package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimiterBlocksAfterBurst(t *testing.T) {
	limiter := NewRateLimiter(map[string]RateLimit{
		"views": {RequestsPerMinute: 60, Burst: 1},
	}, nil)
	handler := limiter.Middleware("views")(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/v1/dashboard", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected first request to succeed, got %d", res.Code)
	}

	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusTooManyRequests {
		t.Fatalf("expected second request to be rate limited, got %d", res.Code)
	}
	if res.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header")
	}
}

func TestRateLimiterSeparatesRoutes(t *testing.T) {
	limiter := NewRateLimiter(map[string]RateLimit{
		"views":    {RequestsPerMinute: 60, Burst: 1},
		"accounts": {RequestsPerMinute: 60, Burst: 1},
	}, nil)
	views := limiter.Middleware("views")(okHandler())
	accounts := limiter.Middleware("accounts")(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/v1/dashboard", nil)
	res := httptest.NewRecorder()
	views.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected views request to succeed, got %d", res.Code)
	}

	accReq := httptest.NewRequest(http.MethodGet, "/v1/accounts/0x1", nil)
	accRes := httptest.NewRecorder()
	accounts.ServeHTTP(accRes, accReq)
	if accRes.Code != http.StatusOK {
		t.Fatalf("expected first accounts request to succeed, got %d", accRes.Code)
	}
}

func TestRateLimiterSeparatesClients(t *testing.T) {
	limiter := NewRateLimiter(map[string]RateLimit{
		"views": {RequestsPerMinute: 60, Burst: 1},
	}, nil)
	handler := limiter.Middleware("views")(okHandler())

	for _, ip := range []string{"10.0.0.1", "10.0.0.2"} {
		req := httptest.NewRequest(http.MethodGet, "/v1/dashboard", nil)
		req.Header.Set("X-Forwarded-For", ip+", 192.168.0.1")
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, req)
		if res.Code != http.StatusOK {
			t.Fatalf("expected client %s to succeed, got %d", ip, res.Code)
		}
	}
}

func TestRateLimiterForgetsIdleClients(t *testing.T) {
	limiter := NewRateLimiter(map[string]RateLimit{
		"views": {RequestsPerMinute: 1, Burst: 1},
	}, nil)
	now := time.Unix(1_700_000_000, 0)
	limiter.clockNow = func() time.Time { return now }
	handler := limiter.Middleware("views")(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/v1/dashboard", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	now = now.Add(2 * idleVisitor)
	other := httptest.NewRequest(http.MethodGet, "/v1/dashboard", nil)
	other.Header.Set("X-Real-IP", "10.0.0.9")
	handler.ServeHTTP(httptest.NewRecorder(), other)
	limiter.mu.Lock()
	visitors := len(limiter.visitors)
	limiter.mu.Unlock()
	if visitors != 1 {
		t.Fatalf("expected idle entry to be swept, have %d visitors", visitors)
	}
}

func TestCORSPreflight(t *testing.T) {
	handler := CORS(CORSConfig{AllowedOrigins: []string{"https://app.example"}})(okHandler())

	req := httptest.NewRequest(http.MethodOptions, "/v1/dashboard", nil)
	req.Header.Set("Origin", "https://app.example")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusNoContent {
		t.Fatalf("expected preflight to short-circuit, got %d", res.Code)
	}
	if got := res.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example" {
		t.Fatalf("unexpected allowed origin %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/dashboard", nil)
	req.Header.Set("Origin", "https://evil.example")
	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if got := res.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("unlisted origin must not be allowed, got %q", got)
	}
}
