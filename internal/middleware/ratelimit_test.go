package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestClientLimitersBurstThenDeny(t *testing.T) {
	cl := newClientLimiters(1, 3)

	for i := 0; i < 3; i++ {
		if !cl.allow("10.0.0.1") {
			t.Fatalf("request %d within burst was denied", i)
		}
	}
	if cl.allow("10.0.0.1") {
		t.Error("request beyond burst was allowed")
	}
}

func TestClientLimitersIndependentPerIP(t *testing.T) {
	cl := newClientLimiters(1, 1)

	if !cl.allow("10.0.0.1") {
		t.Fatal("first client's first request denied")
	}
	if cl.allow("10.0.0.1") {
		t.Error("first client exceeded its bucket without denial")
	}
	if !cl.allow("10.0.0.2") {
		t.Error("second client throttled by first client's bucket")
	}
}

func TestClientLimitersPruneDropsIdleClients(t *testing.T) {
	cl := newClientLimiters(1, 1)

	cl.allow("10.0.0.1")
	cl.prune(time.Now().Add(time.Second))

	cl.mu.Lock()
	remaining := len(cl.clients)
	cl.mu.Unlock()
	if remaining != 0 {
		t.Errorf("prune left %d idle clients, want 0", remaining)
	}
}

func TestRateLimitMiddlewareReturns429(t *testing.T) {
	handler := RateLimit(1, 1)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
	req.RemoteAddr = "10.0.0.1:54321"

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("first request status = %d, want 200", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("throttled request status = %d, want 429", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("throttled response Content-Type = %q, want application/json", ct)
	}
	if !strings.Contains(rec.Body.String(), "too many requests") {
		t.Errorf("throttled response body = %q, want an error reason", rec.Body.String())
	}
}
