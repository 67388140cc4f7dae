package model

import (
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRecordID_Valid(t *testing.T) {
	id := NewRecordID(time.Now())
	parsed, err := ulid.Parse(id)
	require.NoError(t, err)
	assert.Len(t, id, 26)
	assert.WithinDuration(t, time.Now(), ulid.Time(parsed.Time()), 2*time.Second)
}

func TestNewRecordID_SortsByCreationTime(t *testing.T) {
	earlier := NewRecordID(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))
	later := NewRecordID(time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC))
	assert.Less(t, earlier, later)
}

func TestNewRecordID_MonotonicWithinSameMillisecond(t *testing.T) {
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	prev := NewRecordID(at)
	for range 100 {
		next := NewRecordID(at)
		assert.Less(t, prev, next)
		prev = next
	}
}

func TestDuplicateOf(t *testing.T) {
	r := ContentRecord{}
	assert.Empty(t, r.DuplicateOf())

	r.Metadata = map[string]any{"term": "election"}
	assert.Empty(t, r.DuplicateOf())

	r.Metadata[MetaDuplicateOf] = "01ARZ3NDEKTSV4RRFFQ69G5FAV"
	assert.Equal(t, "01ARZ3NDEKTSV4RRFFQ69G5FAV", r.DuplicateOf())
}

func TestDuplicateOf_NonStringValue(t *testing.T) {
	r := ContentRecord{Metadata: map[string]any{MetaDuplicateOf: 42}}
	assert.Empty(t, r.DuplicateOf())
}
