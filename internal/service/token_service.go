package service

import (
	"context"
	"fmt"

	"github.com/dtroode/househelp-server/internal/logger"
	"github.com/dtroode/househelp-server/internal/model"
)

// TokenService issues and verifies access tokens for ledger identities.
type TokenService struct {
	manager model.TokenManager
	logger  *logger.Logger
}

func NewTokenService(manager model.TokenManager, logger *logger.Logger) *TokenService {
	return &TokenService{manager: manager, logger: logger}
}

func (s *TokenService) Issue(_ context.Context, publicKey, role string) (string, error) {
	access, err := s.manager.GenerateAccessToken(publicKey, role)
	if err != nil {
		s.logger.Error("Token service: failed to issue access token",
			"public_key", publicKey,
			"error", err)
		return "", fmt.Errorf("issue access: %w", err)
	}
	return access, nil
}

// Authenticate returns the identity behind token. Any parse failure is
// reported as model.ErrInvalidCredentials.
func (s *TokenService) Authenticate(_ context.Context, token string) (model.TokenClaims, error) {
	claims, err := s.manager.ParseAccessToken(token)
	if err != nil {
		s.logger.Debug("Token service: rejected access token",
			"error", err)
		return model.TokenClaims{}, fmt.Errorf("%w: %w", model.ErrInvalidCredentials, err)
	}
	return claims, nil
}
