package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SettlementType distinguishes the two balance-affecting operations.
type SettlementType string

const (
	SettlementTypeCashIn  SettlementType = "CASH_IN"
	SettlementTypeCashOut SettlementType = "CASH_OUT"
)

// Settlement is one committed entry of the append-only settlement journal.
// CASH_OUT rows double as the notification outbox: Dispatched flips once the
// row has been published on the event bus, Notified once the email listener
// has handed it to the mail collaborator.
type Settlement struct {
	ID           uuid.UUID      `json:"id"`
	Sequence     int64          `json:"sequence"`
	Type         SettlementType `json:"settlement_type"`
	Target       string         `json:"target"`
	Amount       int64          `json:"amount"`
	BankAccount  string         `json:"bank_account,omitempty"` // CASH_OUT only
	AuthorizedBy string         `json:"authorized_by"`
	ReferenceID  string         `json:"reference_id"`
	Dispatched   bool           `json:"-"`
	Notified     bool           `json:"-"`
	CreatedAt    time.Time      `json:"created_at"`
}

// Event derives the immutable cash-out fact for this journal row.
// Only meaningful for CASH_OUT settlements.
func (s *Settlement) Event() CashOutEvent {
	return CashOutEvent{
		Sequence:    s.Sequence,
		Receiver:    s.Target,
		Amount:      s.Amount,
		BankAccount: s.BankAccount,
		OccurredAt:  s.CreatedAt,
	}
}

// BuildSettlementKey builds the idempotency cache key for a caller-supplied
// reference.
func BuildSettlementKey(caller, referenceID string) string {
	return fmt.Sprintf("%s:%s", NormalizeAddress(caller), referenceID)
}
