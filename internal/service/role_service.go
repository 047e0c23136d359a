package service

import (
	"context"
	"fmt"

	"token-settlement-gateway/internal/core/domain"
	"token-settlement-gateway/internal/core/ports"
	"token-settlement-gateway/pkg/apperror"

	"github.com/rs/zerolog"
)

// RoleServiceImpl implements ports.RoleService. Grants and revocations are
// Owner-only; reads are open to any authenticated caller.
type RoleServiceImpl struct {
	roles ports.RoleRegistry
	log   zerolog.Logger
}

// NewRoleService creates a new RoleServiceImpl.
func NewRoleService(roles ports.RoleRegistry, log zerolog.Logger) *RoleServiceImpl {
	return &RoleServiceImpl{roles: roles, log: log}
}

// RoleOf resolves the current role of an address. Unknown addresses are
// RoleNone.
func (s *RoleServiceImpl) RoleOf(ctx context.Context, address string) (domain.Role, error) {
	address = domain.NormalizeAddress(address)
	if !domain.ValidAddress(address) {
		return domain.RoleNone, apperror.Validation("invalid address")
	}
	role, err := s.roles.RoleOf(ctx, address)
	if err != nil {
		return domain.RoleNone, apperror.InternalError(fmt.Errorf("read role: %w", err))
	}
	return role, nil
}

// Grant assigns role to address. Granting RoleNone is a revoke.
func (s *RoleServiceImpl) Grant(ctx context.Context, caller, address string, role domain.Role) error {
	if _, err := domain.ParseRole(string(role)); err != nil {
		return apperror.Validation("unknown role")
	}
	if err := s.authorize(ctx, caller); err != nil {
		return err
	}
	address = domain.NormalizeAddress(address)
	if !domain.ValidAddress(address) {
		return apperror.Validation("invalid address")
	}

	if role == domain.RoleNone {
		return s.revoke(ctx, caller, address)
	}
	if err := s.roles.Set(ctx, address, role); err != nil {
		return apperror.InternalError(fmt.Errorf("set role: %w", err))
	}
	s.log.Info().
		Str("address", address).
		Str("role", string(role)).
		Str("granted_by", domain.NormalizeAddress(caller)).
		Msg("role granted")
	return nil
}

// Revoke removes any role from address.
func (s *RoleServiceImpl) Revoke(ctx context.Context, caller, address string) error {
	if err := s.authorize(ctx, caller); err != nil {
		return err
	}
	address = domain.NormalizeAddress(address)
	if !domain.ValidAddress(address) {
		return apperror.Validation("invalid address")
	}
	return s.revoke(ctx, caller, address)
}

func (s *RoleServiceImpl) revoke(ctx context.Context, caller, address string) error {
	if err := s.roles.Revoke(ctx, address); err != nil {
		return apperror.InternalError(fmt.Errorf("revoke role: %w", err))
	}
	s.log.Info().
		Str("address", address).
		Str("revoked_by", domain.NormalizeAddress(caller)).
		Msg("role revoked")
	return nil
}

func (s *RoleServiceImpl) authorize(ctx context.Context, caller string) error {
	callerRole, err := s.roles.RoleOf(ctx, domain.NormalizeAddress(caller))
	if err != nil {
		return apperror.InternalError(fmt.Errorf("read caller role: %w", err))
	}
	if !callerRole.CanAdministerRoles() {
		return apperror.ErrUnauthorized()
	}
	return nil
}
