package middleware

import (
	"context"
	"crypto/sha256"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/diagnosis/cafe-bookings/pkg/logger"
	"github.com/diagnosis/cafe-bookings/pkg/response"
)

// RateCounter counts hits for key inside a fixed window that starts with the
// first hit.
type RateCounter interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

type RateLimitConfig struct {
	Requests int           // max requests per window
	Window   time.Duration // window length
	KeyFunc  func(r *http.Request) []string
}

type RateLimiter struct {
	counter RateCounter
	config  RateLimitConfig
}

func NewRateLimiter(counter RateCounter, config RateLimitConfig) *RateLimiter {
	if config.KeyFunc == nil {
		config.KeyFunc = ClientIPKeyFunc
	}
	return &RateLimiter{counter: counter, config: config}
}

// Middleware rejects requests over the limit with 429. A disabled limiter
// (Requests <= 0) passes everything through.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rl.config.Requests <= 0 {
			next.ServeHTTP(w, r)
			return
		}

		for _, key := range rl.config.KeyFunc(r) {
			if !rl.allow(r.Context(), key) {
				w.Header().Set("Retry-After", fmt.Sprintf("%d", int(rl.config.Window.Seconds())))
				response.RateLimit(w, "Слишком много заявок. Попробуйте позже.")
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) allow(ctx context.Context, key string) bool {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	hashed := fmt.Sprintf("ratelimit:%x", sha256.Sum256([]byte(key)))

	count, err := rl.counter.Incr(ctx, hashed, rl.config.Window)
	if err != nil {
		// fail open
		logger.WarnContext(ctx, "Rate limit counter unavailable", "error", err)
		return true
	}
	return count <= int64(rl.config.Requests)
}

// ClientIPKeyFunc limits by the caller's address. Behind the gateway that is
// the last X-Forwarded-For entry, the one the gateway appended itself.
func ClientIPKeyFunc(r *http.Request) []string {
	if ip := clientIP(r); ip != "" {
		return []string{"ip:" + ip}
	}
	return nil
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.LastIndex(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[idx+1:])
		}
		return strings.TrimSpace(xff)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
