package service

import (
	"context"
	"fmt"

	"token-settlement-gateway/internal/core/domain"
	"token-settlement-gateway/internal/core/ports"
	"token-settlement-gateway/pkg/apperror"
)

const defaultSettlementListLimit = 50

// LedgerQueryServiceImpl implements ports.LedgerQueryService. Reads take no
// locks; they observe the latest committed snapshot.
type LedgerQueryServiceImpl struct {
	ledger  ports.BalanceLedger
	journal ports.SettlementJournal
}

// NewLedgerQueryService creates a new LedgerQueryServiceImpl.
func NewLedgerQueryService(ledger ports.BalanceLedger, journal ports.SettlementJournal) *LedgerQueryServiceImpl {
	return &LedgerQueryServiceImpl{ledger: ledger, journal: journal}
}

// Balance returns the current balance of address (zero for unknown accounts).
func (s *LedgerQueryServiceImpl) Balance(ctx context.Context, address string) (int64, error) {
	address = domain.NormalizeAddress(address)
	if !domain.ValidAddress(address) {
		return 0, apperror.Validation("invalid address")
	}
	balance, err := s.ledger.GetBalance(ctx, address)
	if err != nil {
		return 0, apperror.InternalError(fmt.Errorf("read balance: %w", err))
	}
	return balance, nil
}

// TotalSupply returns the current total token supply.
func (s *LedgerQueryServiceImpl) TotalSupply(ctx context.Context) (int64, error) {
	supply, err := s.ledger.GetTotalSupply(ctx)
	if err != nil {
		return 0, apperror.InternalError(fmt.Errorf("read supply: %w", err))
	}
	return supply, nil
}

// Settlements lists the most recent journal entries targeting address.
func (s *LedgerQueryServiceImpl) Settlements(ctx context.Context, address string, limit int) ([]domain.Settlement, error) {
	address = domain.NormalizeAddress(address)
	if !domain.ValidAddress(address) {
		return nil, apperror.Validation("invalid address")
	}
	if limit <= 0 || limit > 200 {
		limit = defaultSettlementListLimit
	}
	entries, err := s.journal.ListByTarget(ctx, address, limit)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list settlements: %w", err))
	}
	return entries, nil
}
