package dedup

import (
	"context"
	"time"

	"github.com/civica-research/arenactl/internal/model"
	"github.com/civica-research/arenactl/internal/store"
)

// mockStore implements store.Store for testing.
type mockStore struct {
	urlRecords  []model.ContentRecord
	hashRecords []model.ContentRecord
	urlErr      error
	hashErr     error
	markErr     error

	urlScopes    []store.RecordScope
	hashScopes   []store.RecordScope
	markedGroups []store.DuplicateGroup
}

func (m *mockStore) ListRecordsWithURL(_ context.Context, scope store.RecordScope) ([]model.ContentRecord, error) {
	m.urlScopes = append(m.urlScopes, scope)
	return m.urlRecords, m.urlErr
}

func (m *mockStore) ListRecordsWithHash(_ context.Context, scope store.RecordScope) ([]model.ContentRecord, error) {
	m.hashScopes = append(m.hashScopes, scope)
	return m.hashRecords, m.hashErr
}

func (m *mockStore) MarkDuplicateGroups(_ context.Context, groups []store.DuplicateGroup) (int64, error) {
	if m.markErr != nil {
		return 0, m.markErr
	}
	m.markedGroups = append(m.markedGroups, groups...)
	var n int64
	for _, g := range groups {
		n += int64(len(g.DuplicateIDs))
	}
	return n, nil
}

func (m *mockStore) CountDuplicates(_ context.Context, _ store.RecordScope) (int, error) {
	return 0, nil
}

func (m *mockStore) GetRecord(_ context.Context, _ string) (*model.ContentRecord, error) {
	return nil, nil
}

func (m *mockStore) InsertContentRecords(_ context.Context, _ []model.ContentRecord) (int64, error) {
	return 0, nil
}

func (m *mockStore) CreateAllocation(_ context.Context, _ string, _ float64) (*model.CreditAllocation, error) {
	return nil, nil
}

func (m *mockStore) GetBalance(_ context.Context, _ string) (*model.Balance, error) {
	return nil, nil
}

func (m *mockStore) ReserveCredits(_ context.Context, _ model.CreditTransaction) (string, error) {
	return "", nil
}

func (m *mockStore) SettleCredits(_ context.Context, _ model.CreditTransaction) (*store.SettleResult, error) {
	return nil, nil
}

func (m *mockStore) AppendTransaction(_ context.Context, _ model.CreditTransaction) (string, error) {
	return "", nil
}

func (m *mockStore) ListTransactions(_ context.Context, _ store.TransactionFilter) ([]model.CreditTransaction, error) {
	return nil, nil
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

func (m *mockStore) Migrate(_ context.Context) error { return nil }

func (m *mockStore) Close() error { return nil }
