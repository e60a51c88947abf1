package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/dtroode/househelp-server/internal/logger"
	"github.com/dtroode/househelp-server/internal/model"
)

// TokenService resolves identities from bearer tokens.
type TokenService interface {
	Authenticate(ctx context.Context, token string) (model.TokenClaims, error)
}

// Authenticate validates bearer tokens and injects claims into the context.
type Authenticate struct {
	tokenService   TokenService
	contextManager model.ContextManager
	required       bool
	logger         *logger.Logger
}

// NewAuthenticate creates a new Authenticate middleware instance. When
// required is false, requests without a token pass through anonymously.
func NewAuthenticate(tokenService TokenService, contextManager model.ContextManager, required bool, logger *logger.Logger) *Authenticate {
	return &Authenticate{tokenService: tokenService, contextManager: contextManager, required: required, logger: logger}
}

// Handle rejects invalid tokens, and missing ones when tokens are required.
func (m *Authenticate) Handle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := bearerToken(r)
		if tokenString == "" {
			if m.required {
				unauthorized(w, "missing authorization token")
				return
			}
			next.ServeHTTP(w, r)
			return
		}

		claims, err := m.tokenService.Authenticate(r.Context(), tokenString)
		if err != nil {
			m.logger.Debug("Authenticate middleware: invalid token",
				"path", r.URL.Path,
				"error", err.Error())
			unauthorized(w, "invalid authorization token")
			return
		}

		next.ServeHTTP(w, r.WithContext(m.contextManager.SetClaimsToContext(r.Context(), claims)))
	})
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
