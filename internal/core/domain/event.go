package domain

import "time"

// CashOutEvent is the immutable record emitted for every committed cash-out.
// It exists if and only if the debit committed; the two are one transition.
type CashOutEvent struct {
	Sequence    int64     `json:"sequence"`
	Receiver    string    `json:"receiver"`
	Amount      int64     `json:"amount"`
	BankAccount string    `json:"bank_account"`
	OccurredAt  time.Time `json:"occurred_at"`
}
