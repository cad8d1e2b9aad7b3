package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/Sentiment-Explorer/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Sentiment-Explorer/pkg/ratelimit"
)

// RateLimit returns middleware that throttles recompute requests (every
// non-GET call) per client. The client key is the session cookie when
// present, otherwise the remote IP. Reads pass through untouched.
func RateLimit(limiter *ratelimit.Limiter, cookieName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			key := clientKey(r, cookieName)
			if ok, wait := limiter.Allow(key); !ok {
				logger.FromContext(r.Context()).Warn("rate limit exceeded", "path", r.URL.Path, "retry_after", wait)
				retry := int(math.Ceil(wait.Seconds()))
				w.Header().Set("Retry-After", strconv.Itoa(max(retry, 1)))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				w.Write([]byte(`{"error":"rate limit exceeded"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientKey(r *http.Request, cookieName string) string {
	if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
		return "session:" + c.Value
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}
