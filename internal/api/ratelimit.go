package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RateLimiter applies a fixed per-minute request budget per client over
// redis. Redis failures fail open.
type RateLimiter struct {
	redis  *redis.Client
	limit  int
	logger *zap.Logger
}

// NewRateLimiter returns a limiter allowing limit requests per client per
// minute. A limit of 0 defaults to 60.
func NewRateLimiter(client *redis.Client, limit int, logger *zap.Logger) *RateLimiter {
	if limit <= 0 {
		limit = 60
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RateLimiter{redis: client, limit: limit, logger: logger}
}

var windowScript = redis.NewScript(`
	local current = redis.call('INCR', KEYS[1])
	if current == 1 then
		redis.call('PEXPIRE', KEYS[1], ARGV[1])
	end
	return current
`)

// Middleware enforces the budget. Clients are keyed by forwarded IP.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rl == nil || rl.redis == nil {
			next.ServeHTTP(w, r)
			return
		}

		key := fmt.Sprintf("forensics:ratelimit:%s:minute", clientIP(r))
		count, err := windowScript.Run(r.Context(), rl.redis, []string{key}, 60000).Int()
		if err != nil {
			rl.logger.Warn("rate limit check failed, allowing request", zap.Error(err))
			next.ServeHTTP(w, r)
			return
		}

		remaining := rl.limit - count
		if remaining < 0 {
			remaining = 0
		}
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if count > rl.limit {
			ttl, _ := rl.redis.TTL(r.Context(), key).Result()
			if ttl < 0 {
				ttl = time.Minute
			}
			w.Header().Set("Retry-After", strconv.Itoa(int(ttl.Seconds())))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			fmt.Fprintf(w, `{"error":"rate_limit_exceeded","retry_after":%d}`, int(ttl.Seconds()))
			return
		}

		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}
