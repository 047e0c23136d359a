package service

import (
	"context"
	"fmt"

	"token-settlement-gateway/internal/core/domain"
	"token-settlement-gateway/internal/core/ports"
	"token-settlement-gateway/pkg/apperror"

	"github.com/rs/zerolog"
)

// CashOutNotification is the composed message handed to the mail
// collaborator for one cash-out event.
type CashOutNotification struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// ComposeCashOutNotification renders the back-office email for an event.
func ComposeCashOutNotification(to string, ev domain.CashOutEvent) CashOutNotification {
	return CashOutNotification{
		To:      to,
		Subject: fmt.Sprintf("Cash-out requested by %s", ev.Receiver),
		Body: fmt.Sprintf(
			"Account %s requested a cash-out of %d tokens to bank account %q (settlement #%d, %s).",
			ev.Receiver, ev.Amount, ev.BankAccount, ev.Sequence,
			ev.OccurredAt.UTC().Format("2006-01-02 15:04:05 MST"),
		),
	}
}

// CashOutListener subscribes to the event stream and forwards every
// cash-out fact to the Notifier. Delivery is best-effort: a failure is
// logged and the settlement stays committed, untouched.
type CashOutListener struct {
	journal  ports.SettlementJournal
	notifier ports.Notifier
	stream   ports.EventStream
	buffer   int
	log      zerolog.Logger
}

// NewCashOutListener creates a listener with the given subscription buffer.
func NewCashOutListener(journal ports.SettlementJournal, notifier ports.Notifier, stream ports.EventStream, buffer int, log zerolog.Logger) *CashOutListener {
	return &CashOutListener{
		journal:  journal,
		notifier: notifier,
		stream:   stream,
		buffer:   buffer,
		log:      log,
	}
}

// Start subscribes and consumes until ctx is cancelled.
func (l *CashOutListener) Start(ctx context.Context) {
	ch, cancel := l.stream.Subscribe(l.buffer)
	go func() {
		defer cancel()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-ch:
				if !ok {
					return
				}
				l.handle(ctx, ev)
			}
		}
	}()
}

func (l *CashOutListener) handle(ctx context.Context, ev domain.CashOutEvent) {
	if err := l.notifier.NotifyCashOut(ctx, ev); err != nil {
		// Never propagated: the ledger transition is final regardless.
		l.log.Error().
			Err(apperror.ErrDeliveryFailed(err)).
			Int64("sequence", ev.Sequence).
			Str("receiver", ev.Receiver).
			Msg("cash-out notification failed")
		return
	}

	if err := l.journal.MarkNotified(ctx, ev.Sequence); err != nil {
		l.log.Warn().Err(err).Int64("sequence", ev.Sequence).Msg("marking settlement notified failed")
		return
	}

	l.log.Info().
		Int64("sequence", ev.Sequence).
		Str("receiver", ev.Receiver).
		Int64("amount", ev.Amount).
		Msg("cash-out notification delivered")
}
