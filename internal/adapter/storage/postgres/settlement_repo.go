package postgres

import (
	"context"
	"errors"
	"fmt"

	"token-settlement-gateway/internal/core/domain"
	"token-settlement-gateway/internal/core/ports"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const pgUniqueViolation = "23505"

// SettlementRepo implements ports.SettlementJournal over the append-only
// settlements table.
type SettlementRepo struct {
	pool Pool
}

// NewSettlementRepo creates a new SettlementRepo.
func NewSettlementRepo(pool Pool) *SettlementRepo {
	return &SettlementRepo{pool: pool}
}

// Create appends a journal row inside the settlement transaction and fills
// in the committed Sequence and CreatedAt. CASH_IN rows are born dispatched:
// no event is defined for deposits.
func (r *SettlementRepo) Create(ctx context.Context, tx pgx.Tx, s *domain.Settlement) error {
	dispatched := s.Type == domain.SettlementTypeCashIn

	query := `INSERT INTO settlements (id, settlement_type, target, amount, bank_account, authorized_by, reference_id, dispatched, notified)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, FALSE)
		RETURNING sequence, created_at`

	err := tx.QueryRow(ctx, query,
		s.ID, string(s.Type), s.Target, s.Amount,
		s.BankAccount, s.AuthorizedBy, s.ReferenceID, dispatched,
	).Scan(&s.Sequence, &s.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return ports.ErrDuplicateReference
		}
		return fmt.Errorf("insert settlement: %w", err)
	}
	s.Dispatched = dispatched
	return nil
}

const settlementColumns = `sequence, id, settlement_type, target, amount, bank_account, authorized_by, reference_id, dispatched, notified, created_at`

func scanSettlement(row pgx.Row) (*domain.Settlement, error) {
	s := &domain.Settlement{}
	var storedType string
	err := row.Scan(
		&s.Sequence, &s.ID, &storedType, &s.Target, &s.Amount,
		&s.BankAccount, &s.AuthorizedBy, &s.ReferenceID,
		&s.Dispatched, &s.Notified, &s.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	s.Type = domain.SettlementType(storedType)
	return s, nil
}

// GetBySequence fetches one journal row. Returns nil, nil when absent.
func (r *SettlementRepo) GetBySequence(ctx context.Context, sequence int64) (*domain.Settlement, error) {
	query := `SELECT ` + settlementColumns + ` FROM settlements WHERE sequence = $1`

	s, err := scanSettlement(r.pool.QueryRow(ctx, query, sequence))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get settlement: %w", err)
	}
	return s, nil
}

// ListUndispatched returns committed CASH_OUT rows awaiting publication,
// oldest first.
func (r *SettlementRepo) ListUndispatched(ctx context.Context, limit int) ([]domain.Settlement, error) {
	query := `SELECT ` + settlementColumns + ` FROM settlements
		WHERE settlement_type = 'CASH_OUT' AND NOT dispatched
		ORDER BY sequence ASC
		LIMIT $1`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list undispatched: %w", err)
	}
	defer rows.Close()

	return collectSettlements(rows)
}

// MarkDispatched records that the row's event has been published.
func (r *SettlementRepo) MarkDispatched(ctx context.Context, sequence int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE settlements SET dispatched = TRUE WHERE sequence = $1`, sequence)
	if err != nil {
		return fmt.Errorf("mark dispatched: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("settlement not found: %d", sequence)
	}
	return nil
}

// MarkNotified records that the notification listener handed the event to
// the mail collaborator.
func (r *SettlementRepo) MarkNotified(ctx context.Context, sequence int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE settlements SET notified = TRUE WHERE sequence = $1`, sequence)
	if err != nil {
		return fmt.Errorf("mark notified: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("settlement not found: %d", sequence)
	}
	return nil
}

// ListByTarget returns the most recent journal rows for an account.
func (r *SettlementRepo) ListByTarget(ctx context.Context, address string, limit int) ([]domain.Settlement, error) {
	query := `SELECT ` + settlementColumns + ` FROM settlements
		WHERE target = $1
		ORDER BY sequence DESC
		LIMIT $2`

	rows, err := r.pool.Query(ctx, query, address, limit)
	if err != nil {
		return nil, fmt.Errorf("list settlements by target: %w", err)
	}
	defer rows.Close()

	return collectSettlements(rows)
}

func collectSettlements(rows pgx.Rows) ([]domain.Settlement, error) {
	var out []domain.Settlement
	for rows.Next() {
		s, err := scanSettlement(rows)
		if err != nil {
			return nil, fmt.Errorf("scan settlement: %w", err)
		}
		out = append(out, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate settlements: %w", err)
	}
	return out, nil
}
