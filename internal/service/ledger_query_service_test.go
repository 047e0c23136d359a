package service

import (
	"context"
	"testing"

	"token-settlement-gateway/internal/core/domain"
	"token-settlement-gateway/internal/core/ports/mocks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func setupQueryService(t *testing.T) (*LedgerQueryServiceImpl, *mocks.MockBalanceLedger, *mocks.MockSettlementJournal, *gomock.Controller) {
	ctrl := gomock.NewController(t)
	ledger := mocks.NewMockBalanceLedger(ctrl)
	journal := mocks.NewMockSettlementJournal(ctrl)
	return NewLedgerQueryService(ledger, journal), ledger, journal, ctrl
}

func TestLedgerQueryService_Balance(t *testing.T) {
	svc, ledger, _, ctrl := setupQueryService(t)
	defer ctrl.Finish()

	ctx := context.Background()
	ledger.EXPECT().GetBalance(ctx, holderAddr).Return(int64(700), nil)

	balance, err := svc.Balance(ctx, holderAddr)
	require.NoError(t, err)
	assert.Equal(t, int64(700), balance)
}

func TestLedgerQueryService_Balance_InvalidAddress(t *testing.T) {
	svc, _, _, ctrl := setupQueryService(t)
	defer ctrl.Finish()

	_, err := svc.Balance(context.Background(), "0xzz")
	assertAppError(t, err, "SET_003")
}

func TestLedgerQueryService_TotalSupply(t *testing.T) {
	svc, ledger, _, ctrl := setupQueryService(t)
	defer ctrl.Finish()

	ctx := context.Background()
	ledger.EXPECT().GetTotalSupply(ctx).Return(int64(1200), nil)

	supply, err := svc.TotalSupply(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1200), supply)
}

func TestLedgerQueryService_Settlements_ClampsLimit(t *testing.T) {
	svc, _, journal, ctrl := setupQueryService(t)
	defer ctrl.Finish()

	ctx := context.Background()
	rows := []domain.Settlement{{Sequence: 1, Type: domain.SettlementTypeCashIn, Target: holderAddr, Amount: 100}}

	// Zero and out-of-range limits fall back to the default page size.
	journal.EXPECT().ListByTarget(ctx, holderAddr, defaultSettlementListLimit).Return(rows, nil).Times(2)
	journal.EXPECT().ListByTarget(ctx, holderAddr, 25).Return(rows, nil)

	for _, limit := range []int{0, 9999, 25} {
		got, err := svc.Settlements(ctx, holderAddr, limit)
		require.NoError(t, err)
		assert.Len(t, got, 1)
	}
}
