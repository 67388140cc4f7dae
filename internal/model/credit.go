package model

import (
	"fmt"
	"time"
)

// TransactionKind classifies a ledger entry.
type TransactionKind string

const (
	TxReservation TransactionKind = "reservation"
	TxSettlement  TransactionKind = "settlement"
	TxRefund      TransactionKind = "refund"
)

// CreditAllocation is an administrative grant of credits to a user.
// Allocations are immutable once created.
type CreditAllocation struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Amount    float64   `json:"amount"`
	GrantedAt time.Time `json:"granted_at"`
}

// CreditTransaction is a single append-only ledger entry. Rows are never
// mutated or deleted; the available balance is always recomputed from the
// full transaction history at query time.
type CreditTransaction struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	RunID       string          `json:"run_id"`
	Arena       string          `json:"arena"`
	Platform    string          `json:"platform"`
	Tier        Tier            `json:"tier"`
	Amount      float64         `json:"amount"`
	Kind        TransactionKind `json:"kind"`
	Description string          `json:"description,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Balance is a point-in-time view of a user's credit position.
// Available = Allocated - Reserved - Settled + Refunded.
type Balance struct {
	UserID    string  `json:"user_id"`
	Allocated float64 `json:"allocated"`
	Reserved  float64 `json:"reserved"`
	Settled   float64 `json:"settled"`
	Refunded  float64 `json:"refunded"`
	Available float64 `json:"available"`
}

// InsufficientCreditError is the only domain error the ledger surfaces.
// It carries enough detail for an actionable user-facing message.
type InsufficientCreditError struct {
	UserID    string  `json:"user_id"`
	Required  float64 `json:"required"`
	Available float64 `json:"available"`
}

func (e *InsufficientCreditError) Error() string {
	return fmt.Sprintf("insufficient credits for user %s: required %.2f, available %.2f",
		e.UserID, e.Required, e.Available)
}
