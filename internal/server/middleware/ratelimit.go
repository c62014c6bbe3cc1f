package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/arbscanner/internal/domain"
)

const rateKeyPrefix = "ratelimit:api:"

// unmetered paths bypass the limiter.
var unmetered = map[string]bool{"/ws": true, "/metrics": true}

// RateLimit caps each client at limit requests per window. Limiter errors are
// logged and the request goes through.
func RateLimit(limiter domain.RateLimiter, limit int, window time.Duration, logger *slog.Logger) func(http.Handler) http.Handler {
	retryAfter := strconv.Itoa(max(int(window.Seconds()), 1))
	logger = logger.With(slog.String("component", "ratelimit"))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if unmetered[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}
			ip := extractClientIP(r)
			allowed, err := limiter.Allow(r.Context(), rateKeyPrefix+ip, limit, window)
			switch {
			case err != nil:
				logger.WarnContext(r.Context(), "limiter unavailable, allowing request",
					slog.String("client", ip),
					slog.String("error", err.Error()),
				)
			case !allowed:
				w.Header().Set("Retry-After", retryAfter)
				writeJSONError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// extractClientIP prefers the first valid address in X-Forwarded-For, then
// X-Real-IP, then the connection's remote host.
func extractClientIP(r *http.Request) string {
	first, _, _ := strings.Cut(r.Header.Get("X-Forwarded-For"), ",")
	for _, candidate := range []string{first, r.Header.Get("X-Real-IP")} {
		if addr, err := netip.ParseAddr(strings.TrimSpace(candidate)); err == nil {
			return addr.String()
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
