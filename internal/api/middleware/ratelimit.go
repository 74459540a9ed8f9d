package middleware

import (
	"net/http"

	"binaryoptions/pkg/ratelimit"

	"github.com/gorilla/mux"
)

// LoginRateLimit ограничивает частоту запросов по IP клиента.
// Вешается на /auth/login и /auth/register для защиты от перебора паролей.
func LoginRateLimit(limiter *ratelimit.KeyedLimiter) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow(ClientIP(r)) {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "2")
				w.WriteHeader(http.StatusTooManyRequests)
				w.Write([]byte(`{"error":"too many requests, slow down","code":"rate_limited"}`))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
