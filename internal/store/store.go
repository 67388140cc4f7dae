package store

import (
	"context"
	"time"

	"github.com/civica-research/arenactl/internal/model"
)

// CoverageQuery specifies the predicate for coverage lookups. InputType and
// InputValue are optional; when empty the query covers the platform as a
// whole. Since is the oldest attempted_at the fast path will trust.
type CoverageQuery struct {
	Platform   string
	InputType  model.InputType
	InputValue string
	From       time.Time
	To         time.Time
	Since      time.Time
}

// RecordScope optionally narrows record queries to a collection run or a
// query design. Zero value means unscoped.
type RecordScope struct {
	RunID         string
	QueryDesignID string
}

// Envelope is the min/max time span of a set of matching rows.
type Envelope struct {
	From time.Time
	To   time.Time
}

// SettleResult reports what a settlement wrote. RefundID is empty when the
// actual cost consumed the full reservation. Overrun is the amount by which
// the actual cost exceeded what was reserved, zero in the normal case.
type SettleResult struct {
	SettlementID string
	RefundID     string
	Overrun      float64
}

// DuplicateGroup is one canonical record and the ids to mark against it.
type DuplicateGroup struct {
	CanonicalID  string
	DuplicateIDs []string
}

// OutstandingReservation is a (run, arena, platform) triple whose
// reservations have not been fully settled or refunded.
type OutstandingReservation struct {
	UserID      string
	RunID       string
	Arena       string
	Platform    string
	Tier        model.Tier
	Outstanding float64
	OldestAt    time.Time
}

// TransactionFilter specifies criteria for listing ledger transactions.
type TransactionFilter struct {
	UserID string
	RunID  string
	Kind   model.TransactionKind
	Limit  int
}

// Store defines the persistence interface for the collection control plane.
type Store interface {
	// Credit ledger
	CreateAllocation(ctx context.Context, userID string, amount float64) (*model.CreditAllocation, error)
	GetBalance(ctx context.Context, userID string) (*model.Balance, error)
	ReserveCredits(ctx context.Context, tx model.CreditTransaction) (string, error)
	SettleCredits(ctx context.Context, tx model.CreditTransaction) (*SettleResult, error)
	AppendTransaction(ctx context.Context, tx model.CreditTransaction) (string, error)
	ListTransactions(ctx context.Context, filter TransactionFilter) ([]model.CreditTransaction, error)
	OutstandingReservations(ctx context.Context, olderThan time.Time) ([]OutstandingReservation, error)

	// Coverage metadata
	CoverageEnvelope(ctx context.Context, q CoverageQuery) (*Envelope, error)
	ContentEnvelope(ctx context.Context, q CoverageQuery) (*Envelope, error)
	RecordAttempt(ctx context.Context, a model.CollectionAttempt) error
	CountStaleAttempts(ctx context.Context, olderThan time.Time) (int, error)

	// Content records
	InsertContentRecords(ctx context.Context, records []model.ContentRecord) (int64, error)
	GetRecord(ctx context.Context, id string) (*model.ContentRecord, error)
	ListRecordsWithURL(ctx context.Context, scope RecordScope) ([]model.ContentRecord, error)
	ListRecordsWithHash(ctx context.Context, scope RecordScope) ([]model.ContentRecord, error)
	MarkDuplicateGroups(ctx context.Context, groups []DuplicateGroup) (int64, error)
	CountDuplicates(ctx context.Context, scope RecordScope) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
