package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"token-settlement-gateway/internal/core/domain"
	"token-settlement-gateway/internal/core/ports"
	"token-settlement-gateway/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const settlementIdempotencyTTL = 24 * time.Hour

// SettlementEngineImpl implements ports.SettlementEngine.
//
// Every balance mutation runs inside one pgx transaction: the authorization
// read, the sufficiency check, the ledger mutation and the journal append
// commit together or not at all. The journal row for a cash-out is the
// event: the dispatcher only ever publishes committed rows, which gives the
// no-event-without-debit / no-debit-without-event guarantee.
type SettlementEngineImpl struct {
	accounts   ports.AccountRepository
	roles      ports.RoleRegistry
	ledger     ports.BalanceLedger
	journal    ports.SettlementJournal
	idempCache ports.IdempotencyCache
	hashSvc    ports.HashService
	transactor ports.DBTransactor
	kick       func() // wakes the outbox dispatcher after a cash-out commit
	log        zerolog.Logger
}

// NewSettlementEngine creates a new SettlementEngineImpl. kick may be nil.
func NewSettlementEngine(
	accounts ports.AccountRepository,
	roles ports.RoleRegistry,
	ledger ports.BalanceLedger,
	journal ports.SettlementJournal,
	idempCache ports.IdempotencyCache,
	hashSvc ports.HashService,
	transactor ports.DBTransactor,
	kick func(),
	log zerolog.Logger,
) *SettlementEngineImpl {
	if kick == nil {
		kick = func() {}
	}
	return &SettlementEngineImpl{
		accounts:   accounts,
		roles:      roles,
		ledger:     ledger,
		journal:    journal,
		idempCache: idempCache,
		hashSvc:    hashSvc,
		transactor: transactor,
		kick:       kick,
		log:        log,
	}
}

// CashIn mints req.Amount into req.Target. Mint authority is restricted to
// the Owner; the role is read inside the settlement transaction.
func (s *SettlementEngineImpl) CashIn(ctx context.Context, req ports.CashInRequest) (*domain.Settlement, error) {
	if req.Amount <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}
	caller := domain.NormalizeAddress(req.Caller)
	target := domain.NormalizeAddress(req.Target)
	if !domain.ValidAddress(target) {
		return nil, apperror.Validation("invalid target address")
	}

	refID := req.ReferenceID
	if refID == "" {
		refID = fmt.Sprintf("CASHIN-%s", uuid.New().String())
	}
	idempKey := domain.BuildSettlementKey(caller, refID)
	if cached := s.cachedReceipt(ctx, idempKey); cached != nil {
		return cached, nil
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	role, err := s.roles.RoleOfInTx(ctx, dbTx, caller)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("read caller role: %w", err))
	}
	if !role.CanMint() {
		return nil, apperror.ErrUnauthorized()
	}

	if err := s.ledger.AddBalance(ctx, dbTx, target, req.Amount); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("credit balance: %w", err))
	}

	stl := &domain.Settlement{
		ID:           uuid.New(),
		Type:         domain.SettlementTypeCashIn,
		Target:       target,
		Amount:       req.Amount,
		AuthorizedBy: caller,
		ReferenceID:  refID,
	}
	if err := s.journal.Create(ctx, dbTx, stl); err != nil {
		if errors.Is(err, ports.ErrDuplicateReference) {
			return nil, apperror.ErrDuplicateSettlement()
		}
		return nil, apperror.InternalError(fmt.Errorf("append journal: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.cacheReceipt(ctx, idempKey, stl)

	s.log.Info().
		Int64("sequence", stl.Sequence).
		Str("target", target).
		Int64("amount", req.Amount).
		Msg("cash-in settled")

	return stl, nil
}

// CashOut burns req.Amount from the caller's own balance (self-service call
// shape). The caller's password unlocks the redemption.
func (s *SettlementEngineImpl) CashOut(ctx context.Context, req ports.CashOutRequest) (*domain.Settlement, error) {
	if req.Amount <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}
	caller := domain.NormalizeAddress(req.Caller)

	account, err := s.accounts.GetByAddress(ctx, caller)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("fetch account: %w", err))
	}
	if account == nil {
		return nil, apperror.ErrInvalidCredentials()
	}
	ok, err := s.hashSvc.Verify(req.Password, account.PasswordHash)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("verify password: %w", err))
	}
	if !ok {
		return nil, apperror.ErrInvalidCredentials()
	}

	return s.settleCashOut(ctx, caller, caller, req.Amount, req.BankAccount, req.ReferenceID)
}

// CashOutFor burns req.Amount from req.Target on the authority of req.Caller,
// whose role must be Merchant or Owner at commit time (privileged call shape).
func (s *SettlementEngineImpl) CashOutFor(ctx context.Context, req ports.CashOutForRequest) (*domain.Settlement, error) {
	if req.Amount <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}
	caller := domain.NormalizeAddress(req.Caller)
	target := domain.NormalizeAddress(req.Target)
	if !domain.ValidAddress(target) {
		return nil, apperror.Validation("invalid target address")
	}

	return s.settleCashOut(ctx, caller, target, req.Amount, req.BankAccount, req.ReferenceID)
}

// settleCashOut runs the shared debit path. When caller != target the
// caller's role is checked inside the transaction; caller == target is the
// holder redeeming their own balance and needs no role.
func (s *SettlementEngineImpl) settleCashOut(ctx context.Context, caller, target string, amount int64, bankAccount, referenceID string) (*domain.Settlement, error) {
	refID := referenceID
	if refID == "" {
		refID = fmt.Sprintf("CASHOUT-%s", uuid.New().String())
	}
	idempKey := domain.BuildSettlementKey(caller, refID)
	if cached := s.cachedReceipt(ctx, idempKey); cached != nil {
		return cached, nil
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if caller != target {
		role, err := s.roles.RoleOfInTx(ctx, dbTx, caller)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("read caller role: %w", err))
		}
		if !role.CanCashOutFor() {
			return nil, apperror.ErrUnauthorized()
		}
	}

	balance, err := s.ledger.GetBalanceForUpdate(ctx, dbTx, target)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock balance: %w", err))
	}
	if balance < amount {
		return nil, apperror.ErrInsufficientFunds()
	}

	if err := s.ledger.SubtractBalance(ctx, dbTx, target, amount); err != nil {
		if errors.Is(err, ports.ErrInsufficientBalance) {
			return nil, apperror.ErrInsufficientFunds()
		}
		return nil, apperror.InternalError(fmt.Errorf("debit balance: %w", err))
	}

	stl := &domain.Settlement{
		ID:           uuid.New(),
		Type:         domain.SettlementTypeCashOut,
		Target:       target,
		Amount:       amount,
		BankAccount:  bankAccount,
		AuthorizedBy: caller,
		ReferenceID:  refID,
	}
	if err := s.journal.Create(ctx, dbTx, stl); err != nil {
		if errors.Is(err, ports.ErrDuplicateReference) {
			return nil, apperror.ErrDuplicateSettlement()
		}
		return nil, apperror.InternalError(fmt.Errorf("append journal: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	// The row is committed: wake the dispatcher so the event goes out promptly.
	s.kick()
	s.cacheReceipt(ctx, idempKey, stl)

	s.log.Info().
		Int64("sequence", stl.Sequence).
		Str("target", target).
		Str("authorized_by", caller).
		Int64("amount", amount).
		Msg("cash-out settled")

	return stl, nil
}

// cachedReceipt returns a previously settled receipt for the key, or nil.
func (s *SettlementEngineImpl) cachedReceipt(ctx context.Context, key string) *domain.Settlement {
	cached, err := s.idempCache.Get(ctx, key)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("idempotency cache read failed, continuing")
		return nil
	}
	if cached == nil {
		return nil
	}
	stl := &domain.Settlement{}
	if err := json.Unmarshal(cached, stl); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("corrupt idempotency cache entry, ignoring")
		return nil
	}
	return stl
}

// cacheReceipt stores the receipt best-effort.
func (s *SettlementEngineImpl) cacheReceipt(ctx context.Context, key string, stl *domain.Settlement) {
	payload, err := json.Marshal(stl)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("failed to marshal receipt for cache")
		return
	}
	if err := s.idempCache.Set(ctx, key, payload, settlementIdempotencyTTL); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("failed to cache settlement receipt")
	}
}
