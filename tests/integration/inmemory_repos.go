package integration

import (
	"context"
	"fmt"
	"sync"
	"time"

	"token-settlement-gateway/internal/core/domain"
	"token-settlement-gateway/internal/core/ports"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// --- In-Memory Account Repo ---

type inMemoryAccountRepo struct {
	mu       sync.RWMutex
	accounts map[string]*domain.Account
}

func newInMemoryAccountRepo() *inMemoryAccountRepo {
	return &inMemoryAccountRepo{accounts: make(map[string]*domain.Account)}
}

func (r *inMemoryAccountRepo) Create(ctx context.Context, a *domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.accounts[a.Address]; ok {
		return fmt.Errorf("address already exists")
	}
	cp := *a
	r.accounts[a.Address] = &cp
	return nil
}

func (r *inMemoryAccountRepo) GetByAddress(ctx context.Context, address string) (*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.accounts[address]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

// --- In-Memory Role Registry ---

type inMemoryRoleRegistry struct {
	mu    sync.RWMutex
	roles map[string]domain.Role
}

func newInMemoryRoleRegistry() *inMemoryRoleRegistry {
	return &inMemoryRoleRegistry{roles: make(map[string]domain.Role)}
}

func (r *inMemoryRoleRegistry) RoleOf(ctx context.Context, address string) (domain.Role, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	role, ok := r.roles[address]
	if !ok {
		return domain.RoleNone, nil
	}
	return role, nil
}

func (r *inMemoryRoleRegistry) RoleOfInTx(ctx context.Context, tx pgx.Tx, address string) (domain.Role, error) {
	return r.RoleOf(ctx, address)
}

func (r *inMemoryRoleRegistry) Set(ctx context.Context, address string, role domain.Role) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.roles[address] = role
	return nil
}

func (r *inMemoryRoleRegistry) Revoke(ctx context.Context, address string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.roles, address)
	return nil
}

// --- In-Memory Balance Ledger ---

// inMemoryLedger keeps balances and the running supply under one mutex so a
// conditional debit is atomic, matching the behaviour of the SQL
// `UPDATE ... WHERE balance >= $2` statement.
type inMemoryLedger struct {
	mu       sync.Mutex
	balances map[string]int64
	supply   int64
}

func newInMemoryLedger() *inMemoryLedger {
	return &inMemoryLedger{balances: make(map[string]int64)}
}

func (l *inMemoryLedger) GetBalance(ctx context.Context, address string) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[address], nil
}

func (l *inMemoryLedger) GetBalanceForUpdate(ctx context.Context, tx pgx.Tx, address string) (int64, error) {
	return l.GetBalance(ctx, address)
}

func (l *inMemoryLedger) AddBalance(ctx context.Context, tx pgx.Tx, address string, amount int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[address] += amount
	l.supply += amount
	return nil
}

func (l *inMemoryLedger) SubtractBalance(ctx context.Context, tx pgx.Tx, address string, amount int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.balances[address] < amount {
		return ports.ErrInsufficientBalance
	}
	l.balances[address] -= amount
	l.supply -= amount
	return nil
}

func (l *inMemoryLedger) GetTotalSupply(ctx context.Context) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.supply, nil
}

// --- In-Memory Settlement Journal ---

type inMemorySettlementJournal struct {
	mu   sync.Mutex
	rows []*domain.Settlement
	seq  int64
}

func newInMemorySettlementJournal() *inMemorySettlementJournal {
	return &inMemorySettlementJournal{}
}

func (j *inMemorySettlementJournal) Create(ctx context.Context, tx pgx.Tx, s *domain.Settlement) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	for _, existing := range j.rows {
		if existing.AuthorizedBy == s.AuthorizedBy && existing.ReferenceID == s.ReferenceID {
			return ports.ErrDuplicateReference
		}
	}
	j.seq++
	s.Sequence = j.seq
	s.CreatedAt = time.Now().UTC()
	s.Dispatched = s.Type == domain.SettlementTypeCashIn
	cp := *s
	j.rows = append(j.rows, &cp)
	return nil
}

func (j *inMemorySettlementJournal) GetBySequence(ctx context.Context, sequence int64) (*domain.Settlement, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	for _, row := range j.rows {
		if row.Sequence == sequence {
			cp := *row
			return &cp, nil
		}
	}
	return nil, nil
}

func (j *inMemorySettlementJournal) ListUndispatched(ctx context.Context, limit int) ([]domain.Settlement, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	var result []domain.Settlement
	for _, row := range j.rows {
		if row.Type != domain.SettlementTypeCashOut || row.Dispatched {
			continue
		}
		result = append(result, *row)
		if len(result) == limit {
			break
		}
	}
	return result, nil
}

func (j *inMemorySettlementJournal) MarkDispatched(ctx context.Context, sequence int64) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	for _, row := range j.rows {
		if row.Sequence == sequence {
			row.Dispatched = true
			return nil
		}
	}
	return fmt.Errorf("settlement %d not found", sequence)
}

func (j *inMemorySettlementJournal) MarkNotified(ctx context.Context, sequence int64) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	for _, row := range j.rows {
		if row.Sequence == sequence {
			row.Notified = true
			return nil
		}
	}
	return fmt.Errorf("settlement %d not found", sequence)
}

func (j *inMemorySettlementJournal) ListByTarget(ctx context.Context, address string, limit int) ([]domain.Settlement, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	var result []domain.Settlement
	for i := len(j.rows) - 1; i >= 0 && len(result) < limit; i-- {
		if j.rows[i].Target == address {
			result = append(result, *j.rows[i])
		}
	}
	return result, nil
}

// --- Recording Notifier ---

// recordingNotifier captures every delivered cash-out fact for assertions.
type recordingNotifier struct {
	mu     sync.Mutex
	events []domain.CashOutEvent
}

func (n *recordingNotifier) NotifyCashOut(ctx context.Context, ev domain.CashOutEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
	return nil
}

func (n *recordingNotifier) Events() []domain.CashOutEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]domain.CashOutEvent(nil), n.events...)
}

// --- In-Memory Transactor (no-op tx) ---

type inMemoryTransactor struct{}

func newInMemoryTransactor() *inMemoryTransactor {
	return &inMemoryTransactor{}
}

func (t *inMemoryTransactor) Begin(ctx context.Context) (pgx.Tx, error) {
	return &noopTx{}, nil
}

// noopTx is a no-op pgx.Tx implementation for in-memory testing.
type noopTx struct{}

func (t *noopTx) Begin(ctx context.Context) (pgx.Tx, error) { return t, nil }
func (t *noopTx) Commit(ctx context.Context) error          { return nil }
func (t *noopTx) Rollback(ctx context.Context) error        { return nil }
func (t *noopTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (t *noopTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (t *noopTx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }
func (t *noopTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (t *noopTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), nil
}
func (t *noopTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (t *noopTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return nil
}
func (t *noopTx) Conn() *pgx.Conn { return nil }
