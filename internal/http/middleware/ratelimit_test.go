package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRateLimiterBurstThenDeny(t *testing.T) {
	rl := NewRateLimiter(1, 2)

	if !rl.Allow("a") || !rl.Allow("a") {
		t.Fatal("burst requests must pass")
	}
	if rl.Allow("a") {
		t.Fatal("request past the burst must be denied")
	}
	// Other clients have their own bucket.
	if !rl.Allow("b") {
		t.Fatal("a fresh client must not share the exhausted bucket")
	}
}

func TestRateLimiterRefills(t *testing.T) {
	rl := NewRateLimiter(50, 1)

	if !rl.Allow("a") {
		t.Fatal("first request must pass")
	}
	if rl.Allow("a") {
		t.Fatal("bucket should be empty")
	}
	time.Sleep(40 * time.Millisecond)
	if !rl.Allow("a") {
		t.Fatal("bucket should have refilled")
	}
}

func TestRateLimitMiddlewareRejectsWithRetryAfter(t *testing.T) {
	mw := RateLimit(0.5, 1)
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/calls", nil)
	req.Header.Set("X-Real-Ip", "10.0.0.9")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected status %d, got %d", http.StatusTooManyRequests, rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "2" {
		t.Fatalf("expected Retry-After 2, got %q", got)
	}
}
