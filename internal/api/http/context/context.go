package context

import (
	"context"

	"github.com/dtroode/househelp-server/internal/model"
)

type claimsKey struct{}

// Manager keeps token claims in request contexts.
type Manager struct{}

var _ model.ContextManager = (*Manager)(nil)

// NewManager creates a new context manager instance.
func NewManager() *Manager {
	return &Manager{}
}

// SetClaimsToContext returns a copy of ctx carrying claims.
func (m *Manager) SetClaimsToContext(ctx context.Context, claims model.TokenClaims) context.Context {
	return context.WithValue(ctx, claimsKey{}, claims)
}

// GetClaimsFromContext returns the claims of an authenticated request.
func (m *Manager) GetClaimsFromContext(ctx context.Context) (model.TokenClaims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(model.TokenClaims)
	if !ok || claims.PublicKey == "" {
		return model.TokenClaims{}, false
	}
	return claims, true
}
