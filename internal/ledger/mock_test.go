package ledger

import (
	"context"
	"time"

	"github.com/civica-research/arenactl/internal/model"
	"github.com/civica-research/arenactl/internal/store"
)

// mockStore implements store.Store for testing. Only the ledger methods do
// anything; the rest satisfy the interface.
type mockStore struct {
	balance      *model.Balance
	balanceErr   error
	reserved     []model.CreditTransaction
	reserveErr   error
	settled      []model.CreditTransaction
	settleResult *store.SettleResult
	settleErr    error
	appended     []model.CreditTransaction
	listed       []model.CreditTransaction
}

func (m *mockStore) CreateAllocation(_ context.Context, userID string, amount float64) (*model.CreditAllocation, error) {
	return &model.CreditAllocation{ID: "alloc-1", UserID: userID, Amount: amount}, nil
}

func (m *mockStore) GetBalance(_ context.Context, _ string) (*model.Balance, error) {
	return m.balance, m.balanceErr
}

func (m *mockStore) ReserveCredits(_ context.Context, tx model.CreditTransaction) (string, error) {
	if m.reserveErr != nil {
		return "", m.reserveErr
	}
	m.reserved = append(m.reserved, tx)
	return "res-1", nil
}

func (m *mockStore) SettleCredits(_ context.Context, tx model.CreditTransaction) (*store.SettleResult, error) {
	if m.settleErr != nil {
		return nil, m.settleErr
	}
	m.settled = append(m.settled, tx)
	return m.settleResult, nil
}

func (m *mockStore) AppendTransaction(_ context.Context, tx model.CreditTransaction) (string, error) {
	m.appended = append(m.appended, tx)
	return "tx-1", nil
}

func (m *mockStore) ListTransactions(_ context.Context, _ store.TransactionFilter) ([]model.CreditTransaction, error) {
	return m.listed, nil
}

func (m *mockStore) OutstandingReservations(_ context.Context, _ time.Time) ([]store.OutstandingReservation, error) {
	return nil, nil
}

func (m *mockStore) CoverageEnvelope(_ context.Context, _ store.CoverageQuery) (*store.Envelope, error) {
	return nil, nil
}

func (m *mockStore) ContentEnvelope(_ context.Context, _ store.CoverageQuery) (*store.Envelope, error) {
	return nil, nil
}

func (m *mockStore) RecordAttempt(_ context.Context, _ model.CollectionAttempt) error {
	return nil
}

func (m *mockStore) CountStaleAttempts(_ context.Context, _ time.Time) (int, error) {
	return 0, nil
}

func (m *mockStore) InsertContentRecords(_ context.Context, _ []model.ContentRecord) (int64, error) {
	return 0, nil
}

func (m *mockStore) GetRecord(_ context.Context, _ string) (*model.ContentRecord, error) {
	return nil, nil
}

func (m *mockStore) ListRecordsWithURL(_ context.Context, _ store.RecordScope) ([]model.ContentRecord, error) {
	return nil, nil
}

func (m *mockStore) ListRecordsWithHash(_ context.Context, _ store.RecordScope) ([]model.ContentRecord, error) {
	return nil, nil
}

func (m *mockStore) MarkDuplicateGroups(_ context.Context, _ []store.DuplicateGroup) (int64, error) {
	return 0, nil
}

func (m *mockStore) CountDuplicates(_ context.Context, _ store.RecordScope) (int, error) {
	return 0, nil
}

func (m *mockStore) Migrate(_ context.Context) error { return nil }

func (m *mockStore) Close() error { return nil }
