package postgres

import (
	"context"
	"errors"
	"fmt"

	"token-settlement-gateway/internal/core/ports"

	"github.com/jackc/pgx/v5"
)

// BalanceRepo implements ports.BalanceLedger. Balance rows are created
// implicitly on first credit and never deleted. Every mutation adjusts the
// supply row in the same statement batch, inside the caller's transaction,
// which keeps sum(balances) == supply.total in every committed state.
type BalanceRepo struct {
	pool Pool
}

// NewBalanceRepo creates a new BalanceRepo.
func NewBalanceRepo(pool Pool) *BalanceRepo {
	return &BalanceRepo{pool: pool}
}

// GetBalance reads the current balance without locking. Unknown accounts
// read as zero.
func (r *BalanceRepo) GetBalance(ctx context.Context, address string) (int64, error) {
	var balance int64
	err := r.pool.QueryRow(ctx, `SELECT balance FROM balances WHERE address = $1`, address).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("get balance: %w", err)
	}
	return balance, nil
}

// GetBalanceForUpdate locks the balance row for the rest of the transaction.
// A missing row reads as zero; there is nothing to lock, and any concurrent
// first credit would only raise the balance.
func (r *BalanceRepo) GetBalanceForUpdate(ctx context.Context, tx pgx.Tx, address string) (int64, error) {
	var balance int64
	err := tx.QueryRow(ctx, `SELECT balance FROM balances WHERE address = $1 FOR UPDATE`, address).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("lock balance: %w", err)
	}
	return balance, nil
}

// AddBalance credits an account and raises the total supply.
func (r *BalanceRepo) AddBalance(ctx context.Context, tx pgx.Tx, address string, amount int64) error {
	query := `INSERT INTO balances (address, balance) VALUES ($1, $2)
		ON CONFLICT (address) DO UPDATE SET balance = balances.balance + EXCLUDED.balance`

	if _, err := tx.Exec(ctx, query, address, amount); err != nil {
		return fmt.Errorf("credit balance: %w", err)
	}

	tag, err := tx.Exec(ctx, `UPDATE supply SET total = total + $1 WHERE id = 1`, amount)
	if err != nil {
		return fmt.Errorf("raise supply: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("supply row missing")
	}
	return nil
}

// SubtractBalance debits an account and lowers the total supply. The debit
// is conditional on sufficient funds, so a racing withdrawal can never
// drive the balance negative.
func (r *BalanceRepo) SubtractBalance(ctx context.Context, tx pgx.Tx, address string, amount int64) error {
	tag, err := tx.Exec(ctx, `
		UPDATE balances
		SET balance = balance - $2
		WHERE address = $1
		  AND balance >= $2
	`, address, amount)
	if err != nil {
		return fmt.Errorf("debit balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ports.ErrInsufficientBalance
	}

	tag, err = tx.Exec(ctx, `UPDATE supply SET total = total - $1 WHERE id = 1 AND total >= $1`, amount)
	if err != nil {
		return fmt.Errorf("lower supply: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("supply row missing or below debit amount")
	}
	return nil
}

// GetTotalSupply reads the running total supply.
func (r *BalanceRepo) GetTotalSupply(ctx context.Context) (int64, error) {
	var total int64
	err := r.pool.QueryRow(ctx, `SELECT total FROM supply WHERE id = 1`).Scan(&total)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("get total supply: %w", err)
	}
	return total, nil
}
