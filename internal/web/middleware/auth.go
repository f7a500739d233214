package middleware

import (
	"crypto/subtle"
	"net/http"
)

// Authentication requires the X-API-Key header to equal apiKey. An empty key
// leaves the API open, which is how local review sessions run.
func Authentication(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if apiKey == "" {
				next.ServeHTTP(w, r)
				return
			}
			given := r.Header.Get("X-API-Key")
			if subtle.ConstantTimeCompare([]byte(given), []byte(apiKey)) != 1 {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
