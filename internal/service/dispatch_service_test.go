package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"token-settlement-gateway/internal/core/domain"
	"token-settlement-gateway/internal/core/ports/mocks"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func outboxRow(seq int64, target string, amount int64) domain.Settlement {
	return domain.Settlement{
		Sequence:    seq,
		Type:        domain.SettlementTypeCashOut,
		Target:      target,
		Amount:      amount,
		BankAccount: "NL91ABNA0417164300",
		CreatedAt:   time.Now().UTC(),
	}
}

func TestCashOutDispatcher_DrainPublishesInSequenceOrder(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	journal := mocks.NewMockSettlementJournal(ctrl)
	stream := mocks.NewMockEventStream(ctrl)
	d := NewCashOutDispatcher(journal, stream, time.Minute, 10, zerolog.Nop())

	ctx := context.Background()
	rows := []domain.Settlement{
		outboxRow(4, holderAddr, 100),
		outboxRow(5, merchantAddr, 250),
	}

	var published []int64
	journal.EXPECT().ListUndispatched(ctx, 10).Return(rows, nil)
	stream.EXPECT().Publish(gomock.Any()).Do(func(ev domain.CashOutEvent) {
		published = append(published, ev.Sequence)
	}).Times(2)
	journal.EXPECT().MarkDispatched(ctx, int64(4)).Return(nil)
	journal.EXPECT().MarkDispatched(ctx, int64(5)).Return(nil)

	d.drainOnce(ctx)

	require.Len(t, published, 2)
	assert.Equal(t, []int64{4, 5}, published)
}

func TestCashOutDispatcher_StopsOnMarkFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	journal := mocks.NewMockSettlementJournal(ctrl)
	stream := mocks.NewMockEventStream(ctrl)
	d := NewCashOutDispatcher(journal, stream, time.Minute, 10, zerolog.Nop())

	ctx := context.Background()
	rows := []domain.Settlement{
		outboxRow(4, holderAddr, 100),
		outboxRow(5, merchantAddr, 250),
	}

	// Row 5 must not be published once marking row 4 fails, otherwise a
	// replay of row 4 would arrive out of order.
	journal.EXPECT().ListUndispatched(ctx, 10).Return(rows, nil)
	stream.EXPECT().Publish(gomock.Any()).Times(1)
	journal.EXPECT().MarkDispatched(ctx, int64(4)).Return(errors.New("db down"))

	d.drainOnce(ctx)
}

func TestCashOutDispatcher_EmptyOutboxIsQuiet(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	journal := mocks.NewMockSettlementJournal(ctrl)
	stream := mocks.NewMockEventStream(ctrl)
	d := NewCashOutDispatcher(journal, stream, time.Minute, 10, zerolog.Nop())

	ctx := context.Background()
	journal.EXPECT().ListUndispatched(ctx, 10).Return(nil, nil)

	d.drainOnce(ctx)
}

func TestCashOutDispatcher_LoopsWhileBatchesAreFull(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	journal := mocks.NewMockSettlementJournal(ctrl)
	stream := mocks.NewMockEventStream(ctrl)
	d := NewCashOutDispatcher(journal, stream, time.Minute, 2, zerolog.Nop())

	ctx := context.Background()
	first := []domain.Settlement{outboxRow(1, holderAddr, 10), outboxRow(2, holderAddr, 20)}
	second := []domain.Settlement{outboxRow(3, holderAddr, 30)}

	gomock.InOrder(
		journal.EXPECT().ListUndispatched(ctx, 2).Return(first, nil),
		journal.EXPECT().ListUndispatched(ctx, 2).Return(second, nil),
	)
	stream.EXPECT().Publish(gomock.Any()).Times(3)
	journal.EXPECT().MarkDispatched(ctx, int64(1)).Return(nil)
	journal.EXPECT().MarkDispatched(ctx, int64(2)).Return(nil)
	journal.EXPECT().MarkDispatched(ctx, int64(3)).Return(nil)

	d.drainOnce(ctx)
}

func TestCashOutDispatcher_KickNeverBlocks(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	journal := mocks.NewMockSettlementJournal(ctrl)
	stream := mocks.NewMockEventStream(ctrl)
	d := NewCashOutDispatcher(journal, stream, time.Minute, 10, zerolog.Nop())

	// No consumer running. Repeated kicks must still return immediately.
	for i := 0; i < 100; i++ {
		d.Kick()
	}
}
