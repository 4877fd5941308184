package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/af-corp/chat-gateway/internal/auth"
	"github.com/af-corp/chat-gateway/internal/httputil"
	"github.com/af-corp/chat-gateway/internal/telemetry"
)

const (
	defaultRPM = 30

	headerRateLimitRequests          = "X-RateLimit-Limit-Requests"
	headerRateLimitRemainingRequests = "X-RateLimit-Remaining-Requests"
	headerRateLimitReset             = "X-RateLimit-Reset-Requests"
	headerRetryAfter                 = "Retry-After"
)

// Checker decides whether one more request fits in a window. *Limiter is the
// Redis-backed implementation.
type Checker interface {
	Check(ctx context.Context, key string, limit int64, window time.Duration) (LimitResult, error)
}

// Middleware returns chi middleware that enforces a per-caller requests per
// minute limit. Callers are keyed by identity, or by client address when
// anonymous. rpm supplies the configured default and is read per request so
// reloads apply immediately; a per-key limit takes precedence.
func Middleware(limiter Checker, rpm func() int, metrics *telemetry.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := w.Header().Get("X-Request-ID")

			limit := defaultRPM
			if rpm != nil {
				if v := rpm(); v > 0 {
					limit = v
				}
			}

			caller := clientAddr(r)
			authInfo, _ := auth.AuthFromContext(r.Context())
			if id := authInfo.Identity(); id != "" {
				caller = id
			}
			if authInfo != nil && authInfo.RPMLimit != nil {
				limit = *authInfo.RPMLimit
			}

			rpmKey := fmt.Sprintf("rpm:%s", caller)
			result, _ := limiter.Check(r.Context(), rpmKey, int64(limit), time.Minute)

			// Always set rate limit headers
			w.Header().Set(headerRateLimitRequests, strconv.Itoa(limit))
			w.Header().Set(headerRateLimitRemainingRequests, strconv.FormatInt(result.Remaining, 10))
			w.Header().Set(headerRateLimitReset, result.ResetAt.Format(time.RFC3339))

			if !result.Allowed {
				slog.Warn("rate limit exceeded",
					"request_id", reqID,
					"user", caller,
					"dimension", "rpm",
					"limit", limit,
				)
				metrics.RecordRateLimitHit("rpm")
				w.Header().Set(headerRetryAfter, strconv.Itoa(int(result.RetryAfter.Seconds())))
				httputil.WriteRateLimitError(w, reqID,
					fmt.Sprintf("Rate limit exceeded: %d requests per minute. Retry after %s", limit, result.ResetAt.Format(time.RFC3339)))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
