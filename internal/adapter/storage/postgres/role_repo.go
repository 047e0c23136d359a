package postgres

import (
	"context"
	"errors"
	"fmt"

	"token-settlement-gateway/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// RoleRepo implements ports.RoleRegistry. An address with no row resolves
// to RoleNone.
type RoleRepo struct {
	pool Pool
}

// NewRoleRepo creates a new RoleRepo.
func NewRoleRepo(pool Pool) *RoleRepo {
	return &RoleRepo{pool: pool}
}

const roleOfQuery = `SELECT role FROM roles WHERE address = $1`

// RoleOf resolves the current role of an address (non-transactional read).
func (r *RoleRepo) RoleOf(ctx context.Context, address string) (domain.Role, error) {
	return scanRole(r.pool.QueryRow(ctx, roleOfQuery, address))
}

// RoleOfInTx resolves the role inside an open transaction, so the caller
// authorizes against the snapshot that will be effective at commit.
func (r *RoleRepo) RoleOfInTx(ctx context.Context, tx pgx.Tx, address string) (domain.Role, error) {
	return scanRole(tx.QueryRow(ctx, roleOfQuery, address))
}

func scanRole(row pgx.Row) (domain.Role, error) {
	var stored string
	if err := row.Scan(&stored); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.RoleNone, nil
		}
		return domain.RoleNone, fmt.Errorf("get role: %w", err)
	}
	role, err := domain.ParseRole(stored)
	if err != nil {
		return domain.RoleNone, fmt.Errorf("stored role: %w", err)
	}
	return role, nil
}

// Set upserts a role for an address.
func (r *RoleRepo) Set(ctx context.Context, address string, role domain.Role) error {
	query := `INSERT INTO roles (address, role) VALUES ($1, $2)
		ON CONFLICT (address) DO UPDATE SET role = EXCLUDED.role`

	if _, err := r.pool.Exec(ctx, query, address, string(role)); err != nil {
		return fmt.Errorf("set role: %w", err)
	}
	return nil
}

// Revoke removes any role from an address. Revoking an address with no role
// is a no-op.
func (r *RoleRepo) Revoke(ctx context.Context, address string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM roles WHERE address = $1`, address); err != nil {
		return fmt.Errorf("revoke role: %w", err)
	}
	return nil
}
