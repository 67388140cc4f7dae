// Package monitoring gathers point-in-time health metrics for the
// collection control plane.
package monitoring

import (
	"context"
	"time"

	"github.com/civica-research/arenactl/internal/store"
)

// Snapshot holds a point-in-time view of control-plane health.
type Snapshot struct {
	// Reservations that were never settled or refunded, grouped by
	// (run, arena, platform). A growing list means leaked credits.
	OutstandingReservations int     `json:"outstanding_reservations"`
	OutstandingCredits      float64 `json:"outstanding_credits"`

	// Attempt rows the coverage fast path no longer trusts.
	StaleAttempts int `json:"stale_attempts"`

	// Records marked as duplicates of a canonical record.
	DuplicateRecords int `json:"duplicate_records"`

	// Metadata.
	ReservationAgeHours int       `json:"reservation_age_hours"`
	CollectedAt         time.Time `json:"collected_at"`
}

// Collector gathers control-plane metrics from the store.
type Collector struct {
	store store.Store
}

// NewCollector creates a new metrics collector.
func NewCollector(st store.Store) *Collector {
	return &Collector{store: st}
}

// Collect gathers a snapshot. reservationAgeHours sets how old a
// reservation must be before it counts as outstanding; attempt staleness
// uses the coverage controller's trust window semantics via the same cutoff.
func (c *Collector) Collect(ctx context.Context, reservationAgeHours int) (*Snapshot, error) {
	now := time.Now().UTC()
	snap := &Snapshot{
		ReservationAgeHours: reservationAgeHours,
		CollectedAt:         now,
	}

	cutoff := now.Add(-time.Duration(reservationAgeHours) * time.Hour)

	outstanding, err := c.store.OutstandingReservations(ctx, cutoff)
	if err != nil {
		return nil, err
	}
	snap.OutstandingReservations = len(outstanding)
	for _, r := range outstanding {
		snap.OutstandingCredits += r.Outstanding
	}

	stale, err := c.store.CountStaleAttempts(ctx, cutoff)
	if err != nil {
		return nil, err
	}
	snap.StaleAttempts = stale

	dups, err := c.store.CountDuplicates(ctx, store.RecordScope{})
	if err != nil {
		return nil, err
	}
	snap.DuplicateRecords = dups

	return snap, nil
}
