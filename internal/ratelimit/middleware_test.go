package ratelimit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/af-corp/chat-gateway/internal/auth"
	"github.com/af-corp/chat-gateway/internal/httputil"
	"github.com/af-corp/chat-gateway/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus"
)

func intPtr(v int) *int { return &v }

// denyAll rejects every request and remembers the bucket it was asked about.
type denyAll struct {
	lastKey string
}

func (d *denyAll) Check(_ context.Context, key string, limit int64, window time.Duration) (LimitResult, error) {
	d.lastKey = key
	return LimitResult{Allowed: false, ResetAt: time.Now().Add(window), RetryAfter: window / 2}, nil
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestMiddleware_AllowsRequest(t *testing.T) {
	mw := Middleware(NewLimiter(nil), func() int { return 30 }, nil)
	handler := mw(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/api/chat", nil)
	authInfo := &auth.AuthInfo{
		KeyID:    "key-1",
		UserID:   "alice@example.com",
		RPMLimit: intPtr(100),
	}
	req = req.WithContext(auth.ContextWithAuth(req.Context(), authInfo))
	rec := httptest.NewRecorder()
	rec.Header().Set("X-Request-ID", "req-1")

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	// Check rate limit headers
	if h := rec.Header().Get(headerRateLimitRequests); h != "100" {
		t.Errorf("expected X-RateLimit-Limit-Requests=100, got %s", h)
	}
	if h := rec.Header().Get(headerRateLimitRemainingRequests); h != "99" {
		t.Errorf("expected X-RateLimit-Remaining-Requests=99, got %s", h)
	}
	if h := rec.Header().Get(headerRateLimitReset); h == "" {
		t.Error("expected X-RateLimit-Reset-Requests header")
	}
}

func TestMiddleware_ConfiguredRPM(t *testing.T) {
	tests := []struct {
		name string
		rpm  func() int
		want string
	}{
		{"configured", func() int { return 12 }, "12"},
		{"zero falls back", func() int { return 0 }, "30"},
		{"nil falls back", nil, "30"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := Middleware(NewLimiter(nil), tt.rpm, nil)(okHandler())

			req := httptest.NewRequest(http.MethodPost, "/api/chat", nil)
			req = req.WithContext(auth.ContextWithAuth(req.Context(), &auth.AuthInfo{UserID: "bob"}))
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if h := rec.Header().Get(headerRateLimitRequests); h != tt.want {
				t.Errorf("expected limit %s, got %s", tt.want, h)
			}
		})
	}
}

func TestMiddleware_Exceeded(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := telemetry.NewMetrics(reg)
	checker := &denyAll{}
	handler := Middleware(checker, func() int { return 5 }, metrics)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be called")
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/chat", nil)
	req = req.WithContext(auth.ContextWithAuth(req.Context(), &auth.AuthInfo{UserID: "carol@example.com"}))
	rec := httptest.NewRecorder()
	rec.Header().Set("X-Request-ID", "req-3")
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get(headerRetryAfter) != "30" {
		t.Errorf("expected Retry-After 30, got %q", rec.Header().Get(headerRetryAfter))
	}
	if checker.lastKey != "rpm:carol@example.com" {
		t.Errorf("expected bucket keyed by identity, got %q", checker.lastKey)
	}

	var apiErr httputil.APIError
	if err := json.NewDecoder(rec.Body).Decode(&apiErr); err != nil {
		t.Fatalf("failed to decode error: %v", err)
	}
	if apiErr.Error.Code != "rate_limit_exceeded" {
		t.Errorf("expected code 'rate_limit_exceeded', got %s", apiErr.Error.Code)
	}

	families, _ := reg.Gather()
	found := false
	for _, f := range families {
		if f.GetName() == "chatgw_ratelimit_hit_total" {
			found = f.GetMetric()[0].GetCounter().GetValue() == 1
		}
	}
	if !found {
		t.Error("expected one rate limit hit recorded")
	}
}

func TestMiddleware_AnonymousKeyedByAddress(t *testing.T) {
	checker := &denyAll{}
	handler := Middleware(checker, nil, nil)(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/api/chat", nil)
	req.RemoteAddr = "10.1.2.3:51234"
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if checker.lastKey != "rpm:10.1.2.3" {
		t.Errorf("expected bucket keyed by client address, got %q", checker.lastKey)
	}
}
