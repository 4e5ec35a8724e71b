package api

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/bookwormapp/bookworm/internal/http/response"
)

// authPathPrefix is the route prefix guarded by the per-IP auth limiter.
const authPathPrefix = "/api/auth/"

// rateLimitAuth limits login and registration attempts per client IP.
// Returns 429 with a Retry-After header when the limit is exceeded.
func (s *Server) rateLimitAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, authPathPrefix) || r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		key := clientIP(r)
		if !s.authRateLimiter.Allow(key) {
			wait := s.authRateLimiter.RetryAfter(key)
			w.Header().Set("Retry-After", strconv.Itoa(max(1, int(math.Ceil(wait.Seconds())))))

			s.logger.Warn("rate limit exceeded", "ip", key, "path", r.URL.Path)
			response.TooManyRequests(w, "Too many requests. Please try again later.", s.logger)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// clientIP returns the request's remote host. middleware.RealIP has already
// applied X-Forwarded-For and X-Real-IP to RemoteAddr.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
