package service

import (
	"context"
	"time"

	"token-settlement-gateway/internal/core/ports"

	"github.com/rs/zerolog"
)

// CashOutDispatcher drains the settlement journal outbox onto the event
// stream. It publishes committed CASH_OUT rows in sequence order, marking
// each row dispatched afterwards, so listeners see events at least once and
// in order. Sequence is the journal's serialization order: rows for one
// account always appear in their commit order, while two rows from unrelated
// accounts may have sequences assigned before either commit lands. A restart
// replays anything not yet marked.
type CashOutDispatcher struct {
	journal  ports.SettlementJournal
	stream   ports.EventStream
	interval time.Duration
	batch    int
	kick     chan struct{}
	log      zerolog.Logger
}

// NewCashOutDispatcher creates a dispatcher polling every interval with the
// given batch size.
func NewCashOutDispatcher(journal ports.SettlementJournal, stream ports.EventStream, interval time.Duration, batch int, log zerolog.Logger) *CashOutDispatcher {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	if batch <= 0 {
		batch = 100
	}
	return &CashOutDispatcher{
		journal:  journal,
		stream:   stream,
		interval: interval,
		batch:    batch,
		kick:     make(chan struct{}, 1),
		log:      log,
	}
}

// Kick wakes the dispatcher ahead of the next tick. Safe to call from any
// goroutine; never blocks.
func (d *CashOutDispatcher) Kick() {
	select {
	case d.kick <- struct{}{}:
	default:
	}
}

// Start runs the dispatch loop until ctx is cancelled.
func (d *CashOutDispatcher) Start(ctx context.Context) {
	go d.run(ctx)
}

func (d *CashOutDispatcher) run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		d.drainOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-d.kick:
		case <-ticker.C:
		}
	}
}

// drainOnce publishes one batch of undispatched rows. It stops at the first
// failure and leaves the remainder for the next pass so sequence order is
// preserved.
func (d *CashOutDispatcher) drainOnce(ctx context.Context) {
	for {
		rows, err := d.journal.ListUndispatched(ctx, d.batch)
		if err != nil {
			d.log.Error().Err(err).Msg("dispatcher: listing undispatched settlements failed")
			return
		}
		if len(rows) == 0 {
			return
		}

		for _, row := range rows {
			d.stream.Publish(row.Event())
			if err := d.journal.MarkDispatched(ctx, row.Sequence); err != nil {
				d.log.Error().Err(err).Int64("sequence", row.Sequence).Msg("dispatcher: marking dispatched failed")
				return
			}
			d.log.Debug().Int64("sequence", row.Sequence).Msg("dispatcher: cash-out event published")
		}

		if len(rows) < d.batch {
			return
		}
	}
}
