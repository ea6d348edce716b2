package server

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// requireAPIKey validates the bearer token on protected routes. An empty
// configured key disables enforcement entirely.
func (s *Server) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.APIKey == "" {
			next.ServeHTTP(w, r)
			return
		}

		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if header == "" || !ok {
			s.logger.Warn("missing or malformed authorization header")
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		if subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.APIKey)) != 1 {
			s.logger.Warn("invalid API key provided")
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		next.ServeHTTP(w, r)
	})
}
