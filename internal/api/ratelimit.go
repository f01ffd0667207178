package api

import (
	"log/slog"
	"net"
	"net/http"

	"github.com/stickynotes/stickynotes-server/internal/http/response"
	"github.com/stickynotes/stickynotes-server/internal/ratelimit"
)

// RateLimitMiddleware rate limits requests by client address and answers
// 429 when the limit is exceeded. It runs after middleware.RealIP, so
// RemoteAddr already reflects forwarding headers.
func RateLimitMiddleware(limiter *ratelimit.KeyedRateLimiter, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientIP(r)
			if !limiter.Allow(key) {
				logger.Warn("rate limit exceeded",
					slog.String("ip", key),
					slog.String("path", r.URL.Path),
				)
				response.TooManyRequests(w, "1", logger)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP strips the port from RemoteAddr.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
