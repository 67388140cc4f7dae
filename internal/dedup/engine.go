// Package dedup finds content records that were independently collected
// from different sources and marks the redundant copies against a single
// canonical record.
package dedup

import (
	"context"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/civica-research/arenactl/internal/model"
	"github.com/civica-research/arenactl/internal/store"
)

// Group is a set of records sharing a dedup key. Always size >= 2.
type Group struct {
	Key     string
	Records []model.ContentRecord
}

// Summary reports what one dedup pass found and marked.
type Summary struct {
	URLGroups   int   `json:"url_groups"`
	HashGroups  int   `json:"hash_groups"`
	TotalMarked int64 `json:"total_marked"`
}

// ElectFunc picks the canonical record from a duplicate group.
type ElectFunc func(records []model.ContentRecord) string

// SmallestID elects the record with the lexicographically smallest id.
// With ULID ids that is the earliest-created record. Deterministic, which
// keeps re-runs stable.
func SmallestID(records []model.ContentRecord) string {
	canonical := records[0].ID
	for _, r := range records[1:] {
		if r.ID < canonical {
			canonical = r.ID
		}
	}
	return canonical
}

// Engine runs batch dedup passes over stored content records. Callers must
// ensure at most one pass runs per collection run at a time; the engine
// does not lock.
type Engine struct {
	store store.Store
	elect ElectFunc
}

// New creates an Engine. A nil elect uses SmallestID.
func New(st store.Store, elect ElectFunc) *Engine {
	if elect == nil {
		elect = SmallestID
	}
	return &Engine{store: st, elect: elect}
}

// FindURLDuplicates groups records in scope by normalized URL. Singleton
// groups are excluded.
func (e *Engine) FindURLDuplicates(ctx context.Context, scope store.RecordScope) ([]Group, error) {
	records, err := e.store.ListRecordsWithURL(ctx, scope)
	if err != nil {
		return nil, err
	}

	byURL := make(map[string][]model.ContentRecord)
	for _, r := range records {
		key := NormalizeURL(r.URL)
		byURL[key] = append(byURL[key], r)
	}
	return collectGroups(byURL, nil), nil
}

// FindHashDuplicates groups records in scope by content hash. A group is
// only surfaced when it spans more than one platform or arena: same-platform
// hash collisions are prevented upstream by a uniqueness constraint.
func (e *Engine) FindHashDuplicates(ctx context.Context, scope store.RecordScope) ([]Group, error) {
	records, err := e.store.ListRecordsWithHash(ctx, scope)
	if err != nil {
		return nil, err
	}

	byHash := make(map[string][]model.ContentRecord)
	for _, r := range records {
		byHash[r.ContentHash] = append(byHash[r.ContentHash], r)
	}
	return collectGroups(byHash, spansSources), nil
}

// spansSources reports whether a group touches more than one platform or
// more than one arena.
func spansSources(records []model.ContentRecord) bool {
	platforms := make(map[string]bool)
	arenas := make(map[model.Arena]bool)
	for _, r := range records {
		platforms[r.Platform] = true
		arenas[r.Arena] = true
	}
	return len(platforms) > 1 || len(arenas) > 1
}

func collectGroups(byKey map[string][]model.ContentRecord, keep func([]model.ContentRecord) bool) []Group {
	var groups []Group
	for key, records := range byKey {
		if len(records) < 2 {
			continue
		}
		if keep != nil && !keep(records) {
			continue
		}
		groups = append(groups, Group{Key: key, Records: records})
	}
	// Map iteration order is random; sort for deterministic passes.
	sort.Slice(groups, func(i, j int) bool { return groups[i].Key < groups[j].Key })
	return groups
}

// MarkDuplicates stamps every id in duplicateIDs with a duplicate_of
// pointer to canonicalID, merging into the metadata map without touching
// any other key. The canonical record itself is never modified. Re-running
// with the same arguments is a no-op.
func (e *Engine) MarkDuplicates(ctx context.Context, canonicalID string, duplicateIDs []string) (int64, error) {
	return e.store.MarkDuplicateGroups(ctx, []store.DuplicateGroup{
		{CanonicalID: canonicalID, DuplicateIDs: duplicateIDs},
	})
}

// RunDedupPass discovers URL and hash duplicate groups for a collection
// run (the two discoveries are independent and run concurrently), elects a
// canonical per group, and marks everything else in a single commit.
func (e *Engine) RunDedupPass(ctx context.Context, runID string) (*Summary, error) {
	scope := store.RecordScope{RunID: runID}

	var urlGroups, hashGroups []Group
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		urlGroups, err = e.FindURLDuplicates(gctx, scope)
		return err
	})
	g.Go(func() error {
		var err error
		hashGroups, err = e.FindHashDuplicates(gctx, scope)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var toMark []store.DuplicateGroup
	for _, group := range append(append([]Group{}, urlGroups...), hashGroups...) {
		canonical := e.elect(group.Records)
		var dups []string
		for _, r := range group.Records {
			if r.ID != canonical {
				dups = append(dups, r.ID)
			}
		}
		toMark = append(toMark, store.DuplicateGroup{CanonicalID: canonical, DuplicateIDs: dups})
	}

	marked, err := e.store.MarkDuplicateGroups(ctx, toMark)
	if err != nil {
		return nil, err
	}

	summary := &Summary{
		URLGroups:   len(urlGroups),
		HashGroups:  len(hashGroups),
		TotalMarked: marked,
	}
	zap.L().Info("dedup pass complete",
		zap.String("run_id", runID),
		zap.Int("url_groups", summary.URLGroups),
		zap.Int("hash_groups", summary.HashGroups),
		zap.Int64("total_marked", summary.TotalMarked),
	)
	return summary, nil
}
