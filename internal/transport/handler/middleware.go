package handler

import (
	"crypto/subtle"
	"net/http"

	"golang.org/x/time/rate"
)

// RequireAuth accepts "Bearer <token>" or the bare token. Without a
// configured token nothing gets through.
func (h *Handler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := h.cfg.Auth.Token
		if token == "" {
			h.log.Error().Msg("AUTH_TOKEN is not set, rejecting request")
			writeJSONError(w, "server authentication is not configured", http.StatusInternalServerError)
			return
		}
		got := r.Header.Get("Authorization")
		if got == "" || !(equal(got, "Bearer "+token) || equal(got, token)) {
			writeJSONError(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// RateLimit shares one token bucket across all callers. rps <= 0 disables it.
func RateLimit(rps float64, burst int) func(http.Handler) http.Handler {
	if rps <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	limiter := rate.NewLimiter(rate.Limit(rps), burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				writeJSONError(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
