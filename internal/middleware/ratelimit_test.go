package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func newTestRateLimiter(t *testing.T, rps float64, burst int) *RateLimiter {
	t.Helper()
	var buf bytes.Buffer
	rl := NewRateLimiter(RateLimiterConfig{
		Rate:            rate.Limit(rps),
		Burst:           burst,
		CleanupInterval: time.Minute,
	}, newTestLogger(&buf, slog.LevelInfo))
	t.Cleanup(rl.Stop)
	return rl
}

func requestFrom(addr string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.RemoteAddr = addr
	return req
}

func TestRateLimiter_AllowsWithinBurst(t *testing.T) {
	rl := newTestRateLimiter(t, 1, 5)
	calls := 0
	handler := rl.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))

	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, requestFrom("192.0.2.1:1234"))
		if w.Code != http.StatusOK {
			t.Errorf("request %d: status = %d, want 200", i, w.Code)
		}
	}
	if calls != 5 {
		t.Errorf("handler calls = %d, want 5", calls)
	}
}

func TestRateLimiter_Returns429WhenExceeded(t *testing.T) {
	rl := newTestRateLimiter(t, 0.5, 2)
	handler := rl.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	for i := 0; i < 2; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), requestFrom("192.0.2.1:1234"))
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, requestFrom("192.0.2.1:5678"))

	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	if got := w.Header().Get("Retry-After"); got != "2" {
		t.Errorf("Retry-After = %q, want 2", got)
	}
	var body ErrorResponseBody
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil || body.Code != "RATE_LIMIT_EXCEEDED" {
		t.Errorf("body = %s (%v)", w.Body.String(), err)
	}
}

func TestRateLimiter_ClientsAreIndependent(t *testing.T) {
	rl := newTestRateLimiter(t, 0.1, 1)
	handler := rl.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	handler.ServeHTTP(httptest.NewRecorder(), requestFrom("192.0.2.1:1"))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, requestFrom("192.0.2.2:1"))

	if w.Code != http.StatusOK {
		t.Errorf("別クライアントは独立して制限されるべき: status = %d", w.Code)
	}
	if rl.LimiterCount() != 2 {
		t.Errorf("LimiterCount = %d, want 2", rl.LimiterCount())
	}
}

func TestRateLimiter_CleanupRemovesStaleEntries(t *testing.T) {
	rl := newTestRateLimiter(t, 1, 1)
	rl.getOrCreate("192.0.2.1")

	rl.cleanup(time.Now().Add(time.Minute))
	if rl.LimiterCount() != 1 {
		t.Errorf("TTL内のエントリを削除してはならない: count = %d", rl.LimiterCount())
	}
	rl.cleanup(time.Now().Add(3 * time.Minute))
	if rl.LimiterCount() != 0 {
		t.Errorf("期限切れエントリが残っている: count = %d", rl.LimiterCount())
	}
}

func TestRateLimiter_StopIsIdempotent(t *testing.T) {
	rl := newTestRateLimiter(t, 1, 1)
	rl.Stop()
	rl.Stop()
}

func TestClientKey(t *testing.T) {
	if got := clientKey(requestFrom("192.0.2.1:1234")); got != "192.0.2.1" {
		t.Errorf("clientKey = %q", got)
	}
	if got := clientKey(requestFrom("192.0.2.1")); got != "192.0.2.1" {
		t.Errorf("clientKey without port = %q", got)
	}
}
