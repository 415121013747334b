package auth

import (
	"encoding/json"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Service handles authentication against a single env-configured API key.
// An empty hash disables auth entirely, which is the default for local use.
type Service struct {
	apiKeyHash string
}

// NewService creates a new auth service
func NewService(apiKeyHash string) *Service {
	return &Service{apiKeyHash: apiKeyHash}
}

// Enabled reports whether an API key is configured
func (s *Service) Enabled() bool {
	return s.apiKeyHash != ""
}

// Middleware creates an authentication middleware
func (s *Service) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.Enabled() {
			next.ServeHTTP(w, r)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeJSONError(w, http.StatusUnauthorized, "missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			writeJSONError(w, http.StatusUnauthorized, "invalid authorization header format")
			return
		}

		apiKey := parts[1]
		if apiKey == "" {
			writeJSONError(w, http.StatusUnauthorized, "empty api key")
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(s.apiKeyHash), []byte(apiKey)); err != nil {
			writeJSONError(w, http.StatusUnauthorized, "invalid api key")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
