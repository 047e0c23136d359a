package service

import (
	"context"
	"fmt"
	"time"

	"token-settlement-gateway/internal/core/domain"
	"token-settlement-gateway/internal/core/ports"
	"token-settlement-gateway/pkg/apperror"
)

// AuthServiceImpl implements ports.AuthService.
type AuthServiceImpl struct {
	accounts ports.AccountRepository
	hashSvc  ports.HashService
	tokenSvc ports.TokenService
}

// NewAuthService creates a new AuthServiceImpl.
func NewAuthService(accounts ports.AccountRepository, hashSvc ports.HashService, tokenSvc ports.TokenService) *AuthServiceImpl {
	return &AuthServiceImpl{accounts: accounts, hashSvc: hashSvc, tokenSvc: tokenSvc}
}

// Register creates a holder account with a freshly generated address.
func (s *AuthServiceImpl) Register(ctx context.Context, password string) (*domain.Account, error) {
	address, err := domain.NewAddress()
	if err != nil {
		return nil, apperror.InternalError(err)
	}

	hash, err := s.hashSvc.Hash(password)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("hashing password: %w", err))
	}

	now := time.Now().UTC()
	account := &domain.Account{
		Address:      address,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create account: %w", err))
	}
	return account, nil
}

// Login verifies the password and issues a JWT bound to the address.
func (s *AuthServiceImpl) Login(ctx context.Context, address, password string) (string, time.Time, error) {
	address = domain.NormalizeAddress(address)

	account, err := s.accounts.GetByAddress(ctx, address)
	if err != nil {
		return "", time.Time{}, apperror.InternalError(fmt.Errorf("fetch account: %w", err))
	}
	if account == nil {
		return "", time.Time{}, apperror.ErrInvalidCredentials()
	}

	ok, err := s.hashSvc.Verify(password, account.PasswordHash)
	if err != nil || !ok {
		return "", time.Time{}, apperror.ErrInvalidCredentials()
	}

	token, expiresAt, err := s.tokenSvc.Generate(account.Address)
	if err != nil {
		return "", time.Time{}, apperror.InternalError(fmt.Errorf("generate token: %w", err))
	}
	return token, expiresAt, nil
}
