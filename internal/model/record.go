package model

import (
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// MetaDuplicateOf is the single metadata key the dedup engine owns. The
// value is the canonical record's id. No other metadata key is ever touched
// by this module.
const MetaDuplicateOf = "duplicate_of"

// ContentRecord is a normalized item collected from any arena. IDs are
// ULIDs, so lexicographic order is creation order. Everything except ID may
// be absent depending on the source platform.
type ContentRecord struct {
	ID            string         `json:"id"`
	Platform      string         `json:"platform"`
	Arena         Arena          `json:"arena"`
	URL           string         `json:"url,omitempty"`
	ContentHash   string         `json:"content_hash,omitempty"`
	PublishedAt   time.Time      `json:"published_at"`
	RunID         string         `json:"run_id,omitempty"`
	QueryDesignID string         `json:"query_design_id,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// DuplicateOf returns the canonical id this record was marked against,
// or "" if the record has not been marked as a duplicate.
func (r *ContentRecord) DuplicateOf() string {
	if r.Metadata == nil {
		return ""
	}
	id, _ := r.Metadata[MetaDuplicateOf].(string)
	return id
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
)

// NewRecordID generates a ULID for a content record. ULIDs sort by creation
// time, which is what the dedup engine's smallest-id canonical election
// relies on.
func NewRecordID(at time.Time) string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(at.UTC()), entropy).String()
}
