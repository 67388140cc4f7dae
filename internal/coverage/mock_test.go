package coverage

import (
	"context"
	"time"

	"github.com/civica-research/arenactl/internal/model"
	"github.com/civica-research/arenactl/internal/store"
)

// mockStore implements store.Store for testing. Coverage envelopes are keyed
// by input value so multi-input checks can return different spans per input.
type mockStore struct {
	fastEnvelopes map[string]*store.Envelope
	slowEnvelopes map[string]*store.Envelope
	fastErr       error
	slowErr       error
	attemptErr    error

	fastQueries []store.CoverageQuery
	slowQueries []store.CoverageQuery
	attempts    []model.CollectionAttempt
}

func envKey(q store.CoverageQuery) string {
	return q.Platform + "|" + string(q.InputType) + "|" + q.InputValue
}

func (m *mockStore) CoverageEnvelope(_ context.Context, q store.CoverageQuery) (*store.Envelope, error) {
	m.fastQueries = append(m.fastQueries, q)
	if m.fastErr != nil {
		return nil, m.fastErr
	}
	return m.fastEnvelopes[envKey(q)], nil
}

func (m *mockStore) ContentEnvelope(_ context.Context, q store.CoverageQuery) (*store.Envelope, error) {
	m.slowQueries = append(m.slowQueries, q)
	if m.slowErr != nil {
		return nil, m.slowErr
	}
	return m.slowEnvelopes[envKey(q)], nil
}

func (m *mockStore) RecordAttempt(_ context.Context, a model.CollectionAttempt) error {
	if m.attemptErr != nil {
		return m.attemptErr
	}
	m.attempts = append(m.attempts, a)
	return nil
}

func (m *mockStore) CountStaleAttempts(_ context.Context, _ time.Time) (int, error) {
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
