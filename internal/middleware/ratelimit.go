package middleware

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ryokrieger/CityConnect/internal/logging"
	"github.com/ryokrieger/CityConnect/internal/metrics"
)

// WindowCounter increments a counter that expires window after its first hit.
type WindowCounter interface {
	IncrWindow(ctx context.Context, key string, window time.Duration) (int64, error)
}

type RateLimiter struct {
	counter WindowCounter
	name    string
	limit   int64
	window  time.Duration
	keyFn   func(r *http.Request) string
	// failOpen lets requests through when the counter store is unavailable.
	failOpen bool
}

func NewRateLimiter(counter WindowCounter, name string, limit int64, window time.Duration, keyFn func(r *http.Request) string, failOpen bool) *RateLimiter {
	if keyFn == nil {
		keyFn = GetClientIP
	}
	return &RateLimiter{
		counter:  counter,
		name:     name,
		limit:    limit,
		window:   window,
		keyFn:    keyFn,
		failOpen: failOpen,
	}
}

func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rl.counter == nil || rl.limit <= 0 {
			next.ServeHTTP(w, r)
			return
		}

		keySuffix := rl.keyFn(r)
		if keySuffix == "" {
			keySuffix = GetClientIP(r)
		}
		key := "ratelimit:" + rl.name + ":" + keySuffix

		count, err := rl.counter.IncrWindow(r.Context(), key, rl.window)
		if err != nil {
			logging.Error("Rate limit Redis error", map[string]interface{}{
				"limiter": rl.name,
				"error":   err.Error(),
			})
			if rl.failOpen {
				next.ServeHTTP(w, r)
				return
			}
			writeError(w, http.StatusServiceUnavailable, "Rate limiting temporarily unavailable")
			return
		}

		if count > rl.limit {
			metrics.RecordRateLimitHit(rl.name)
			w.Header().Set("Retry-After", retryAfterSeconds(rl.window))
			writeError(w, http.StatusTooManyRequests, "Too many attempts, please try again later")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func retryAfterSeconds(window time.Duration) string {
	seconds := int64(window / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	return strconv.FormatInt(seconds, 10)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// GetClientIP extracts the client IP from the request, respecting X-Forwarded-For
func GetClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// the first entry is the client
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
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
