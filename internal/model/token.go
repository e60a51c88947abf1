package model

import "context"

// TokenClaims is the identity carried by an access token.
type TokenClaims struct {
	PublicKey string
	Role      string
}

// TokenManager issues and verifies access tokens.
type TokenManager interface {
	GenerateAccessToken(publicKey, role string) (string, error)
	ParseAccessToken(token string) (TokenClaims, error)
}

// ContextManager stores the authenticated identity in a request context.
type ContextManager interface {
	SetClaimsToContext(ctx context.Context, claims TokenClaims) context.Context
	GetClaimsFromContext(ctx context.Context) (TokenClaims, bool)
}
