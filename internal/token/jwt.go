package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/dtroode/househelp-server/internal/model"
)

// Claims carries the ledger public key as subject and the user role.
type Claims struct {
	jwt.RegisteredClaims
	Role      string `json:"role"`
	TokenType string `json:"typ"`
}

// JWT implements TokenManager backed by symmetric HMAC.
type JWT struct {
	secretKey string
	ttl       time.Duration
	now       func() time.Time
}

var _ model.TokenManager = (*JWT)(nil)

// DefaultAccessTTL is the lifetime of an access token.
const DefaultAccessTTL = 15 * time.Minute

const typeAccess = "access"

// NewJWT creates a new JWT token manager with the provided secret key.
// A non-positive ttl falls back to DefaultAccessTTL.
func NewJWT(secretKey string, ttl time.Duration) *JWT {
	if ttl <= 0 {
		ttl = DefaultAccessTTL
	}
	return &JWT{secretKey: secretKey, ttl: ttl, now: time.Now}
}

// GenerateAccessToken creates a short-lived access token.
func (j *JWT) GenerateAccessToken(publicKey, role string) (string, error) {
	now := j.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   publicKey,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.ttl)),
		},
		Role:      role,
		TokenType: typeAccess,
	})

	tokenString, err := token.SignedString([]byte(j.secretKey))
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}

	return tokenString, nil
}

// ParseAccessToken validates the token and returns its identity.
func (j *JWT) ParseAccessToken(tokenString string) (model.TokenClaims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("wrong signing method %v", t.Header["alg"])
		}
		return []byte(j.secretKey), nil
	}, jwt.WithTimeFunc(j.now))
	if err != nil {
		return model.TokenClaims{}, fmt.Errorf("failed to parse access token: %w", err)
	}
	if !token.Valid {
		return model.TokenClaims{}, errors.New("access token is invalid")
	}
	if claims.TokenType != typeAccess {
		return model.TokenClaims{}, fmt.Errorf("token type mismatch: %s", claims.TokenType)
	}
	if claims.Subject == "" {
		return model.TokenClaims{}, errors.New("access token has no subject")
	}
	return model.TokenClaims{PublicKey: claims.Subject, Role: claims.Role}, nil
}
