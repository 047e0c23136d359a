package ports

import (
	"context"
	"time"

	"token-settlement-gateway/internal/core/domain"
)

// HashService handles password hashing (Argon2id).
type HashService interface {
	Hash(password string) (string, error)
	Verify(password string, hash string) (bool, error)
}

// TokenService handles JWT token operations. Claims carry the account
// address only; roles are always read fresh from the registry.
type TokenService interface {
	Generate(address string) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	Address string
}

// IdempotencyCache is the Redis-layer settlement replay check (fast path).
type IdempotencyCache interface {
	Get(ctx context.Context, key string) ([]byte, error) // Returns cached receipt JSON or nil
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// EventStream is the publish/subscribe point for cash-out events.
// Subscribers receive every published event in publish order, which the
// dispatcher keeps aligned with journal sequence order.
type EventStream interface {
	Publish(ev domain.CashOutEvent)
	// Subscribe registers a listener. The returned cancel func detaches it;
	// its channel is closed afterwards.
	Subscribe(buffer int) (<-chan domain.CashOutEvent, func())
}

// Notifier delivers a cash-out fact to the outside world (email).
// Failures are logged by the caller, never propagated into settlement.
type Notifier interface {
	NotifyCashOut(ctx context.Context, ev domain.CashOutEvent) error
}

// HealthChecker checks external dependency health.
type HealthChecker interface {
	// Ping verifies connectivity. Returns nil if healthy.
	Ping(ctx context.Context) error
	// Name returns the dependency name (e.g., "postgresql", "redis").
	Name() string
}

// --- Service Ports (Business Logic) ---

// SettlementEngine is the core state machine: mint on deposit, burn on
// withdrawal, authorization and sufficiency enforced atomically with the
// ledger mutation.
type SettlementEngine interface {
	CashIn(ctx context.Context, req CashInRequest) (*domain.Settlement, error)
	CashOut(ctx context.Context, req CashOutRequest) (*domain.Settlement, error)
	CashOutFor(ctx context.Context, req CashOutForRequest) (*domain.Settlement, error)
}

// CashInRequest mints Amount into Target's balance. Caller must hold Owner.
type CashInRequest struct {
	Caller      string
	Target      string
	Amount      int64
	ReferenceID string
}

// CashOutRequest is the self-service call shape: the caller redeems their
// own balance, unlocked by their account password.
type CashOutRequest struct {
	Caller      string
	Amount      int64
	BankAccount string
	Password    string
	ReferenceID string
}

// CashOutForRequest is the privileged call shape: Caller (Merchant or Owner)
// authorizes a cash-out on behalf of Target. Distinct path from the
// self-service shape; never inferred from argument order.
type CashOutForRequest struct {
	Caller      string
	Target      string
	Amount      int64
	BankAccount string
	ReferenceID string
}

// RoleService exposes role registry administration. Mutation is Owner-only.
type RoleService interface {
	RoleOf(ctx context.Context, address string) (domain.Role, error)
	Grant(ctx context.Context, caller, address string, role domain.Role) error
	Revoke(ctx context.Context, caller, address string) error
}

// AuthService defines account registration and login.
type AuthService interface {
	Register(ctx context.Context, password string) (*domain.Account, error)
	Login(ctx context.Context, address, password string) (string, time.Time, error) // token, expiry, error
}

// LedgerQueryService serves read-only balance and supply snapshots.
type LedgerQueryService interface {
	Balance(ctx context.Context, address string) (int64, error)
	TotalSupply(ctx context.Context) (int64, error)
	Settlements(ctx context.Context, address string, limit int) ([]domain.Settlement, error)
}
