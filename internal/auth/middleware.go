package auth

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
)

type Middleware struct {
	tokens *TokenManager
	logger *zerolog.Logger
}

func NewMiddleware(tokens *TokenManager, logger *zerolog.Logger) *Middleware {
	return &Middleware{tokens: tokens, logger: logger}
}

// Authenticate rejects requests without a valid bearer token and stores the
// actor in the request context.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			unauthorized(w, "missing bearer token")
			return
		}

		actor, err := m.tokens.Parse(strings.TrimSpace(token))
		if err != nil {
			m.logger.Warn().Err(err).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("remote_addr", r.RemoteAddr).
				Msg("rejected token")
			unauthorized(w, err.Error())
			return
		}

		next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
	})
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="cleanops"`)
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg, "code": "unauthenticated"})
}
