package ports

import (
	"context"
	"errors"

	"token-settlement-gateway/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// Sentinel errors returned by ledger repositories. Services map these onto
// the apperror taxonomy.
var (
	// ErrInsufficientBalance means a debit would drive the balance negative.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrDuplicateReference means a settlement with the same
	// (authorized_by, reference_id) already committed.
	ErrDuplicateReference = errors.New("duplicate settlement reference")
)

// AccountRepository defines persistence operations for accounts.
type AccountRepository interface {
	Create(ctx context.Context, account *domain.Account) error
	GetByAddress(ctx context.Context, address string) (*domain.Account, error)
}

// RoleRegistry maps account addresses onto roles. An address with no recorded
// role resolves to RoleNone.
// RoleOfInTx reads inside an open settlement transaction, so the engine
// authorizes against the role snapshot effective at commit time.
type RoleRegistry interface {
	RoleOf(ctx context.Context, address string) (domain.Role, error)
	RoleOfInTx(ctx context.Context, tx pgx.Tx, address string) (domain.Role, error)
	Set(ctx context.Context, address string, role domain.Role) error
	Revoke(ctx context.Context, address string) error
}

// BalanceLedger holds per-account balances plus the running total supply.
// Mutations accept a pgx.Tx: a credit or debit and its supply adjustment
// always commit together or not at all.
type BalanceLedger interface {
	GetBalance(ctx context.Context, address string) (int64, error)
	// GetBalanceForUpdate locks the balance row for the rest of the
	// transaction. A missing row reads as zero without taking a lock.
	GetBalanceForUpdate(ctx context.Context, tx pgx.Tx, address string) (int64, error)
	AddBalance(ctx context.Context, tx pgx.Tx, address string, amount int64) error
	// SubtractBalance debits conditionally and returns
	// ErrInsufficientBalance when the account cannot cover the amount.
	SubtractBalance(ctx context.Context, tx pgx.Tx, address string, amount int64) error
	GetTotalSupply(ctx context.Context) (int64, error)
}

// SettlementJournal is the append-only record of committed settlements.
// CASH_OUT rows double as the notification outbox.
type SettlementJournal interface {
	// Create appends a row and fills in Sequence and CreatedAt.
	// Returns ErrDuplicateReference on a reference collision.
	Create(ctx context.Context, tx pgx.Tx, settlement *domain.Settlement) error
	GetBySequence(ctx context.Context, sequence int64) (*domain.Settlement, error)
	// ListUndispatched returns committed CASH_OUT rows not yet published,
	// oldest first.
	ListUndispatched(ctx context.Context, limit int) ([]domain.Settlement, error)
	MarkDispatched(ctx context.Context, sequence int64) error
	MarkNotified(ctx context.Context, sequence int64) error
	ListByTarget(ctx context.Context, address string, limit int) ([]domain.Settlement, error)
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
