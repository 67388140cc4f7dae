// Package coverage implements the admission controller that decides, before
// any credits are spent, which parts of a requested date range still need
// collecting. It answers from cheap attempt metadata when it can and falls
// back to scanning the authoritative record store when it must.
package coverage

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/civica-research/arenactl/internal/model"
	"github.com/civica-research/arenactl/internal/store"
)

// DefaultMaxAttemptAge is how old a collection attempt may be before the
// fast path stops trusting it.
const DefaultMaxAttemptAge = 30 * 24 * time.Hour

// Controller answers coverage questions over the attempt metadata index
// and the content record store. Read-only except for the best-effort
// backfill of attempt rows discovered by the slow path.
type Controller struct {
	store         store.Store
	maxAttemptAge time.Duration
}

// New creates a Controller. maxAttemptAge <= 0 selects the default.
func New(st store.Store, maxAttemptAge time.Duration) *Controller {
	if maxAttemptAge <= 0 {
		maxAttemptAge = DefaultMaxAttemptAge
	}
	return &Controller{store: st, maxAttemptAge: maxAttemptAge}
}

// Input narrows a coverage question to one term or actor. The zero value
// asks about the platform as a whole.
type Input struct {
	Type  model.InputType
	Value string
}

// CoveredRanges returns the known-collected intervals for a platform and
// optional input within [from, to]. The fast path consults attempt
// metadata; only when that is empty does it scan content records directly,
// opportunistically backfilling an attempt row so the next call is cheap.
func (c *Controller) CoveredRanges(ctx context.Context, platform string, from, to time.Time, input Input) ([]Range, error) {
	q := store.CoverageQuery{
		Platform:   platform,
		InputType:  input.Type,
		InputValue: input.Value,
		From:       from.UTC(),
		To:         to.UTC(),
		Since:      time.Now().UTC().Add(-c.maxAttemptAge),
	}

	env, err := c.store.CoverageEnvelope(ctx, q)
	if err != nil {
		return nil, err
	}
	if env != nil {
		return []Range{{From: env.From, To: env.To}}, nil
	}

	// Slow fallback: the metadata index knows nothing, but records may
	// exist from before the index did.
	env, err = c.store.ContentEnvelope(ctx, q)
	if err != nil {
		return nil, err
	}
	if env == nil {
		return nil, nil
	}

	c.backfillAttempt(ctx, q, env)
	return []Range{{From: env.From, To: env.To}}, nil
}

// backfillAttempt repairs the metadata index with what the slow path found.
// RecordsReturned is a sentinel 1: an exact count is not cheaply available
// and the fast path only checks > 0. The write is a cache hint, so failure
// is logged and discarded rather than surfaced.
func (c *Controller) backfillAttempt(ctx context.Context, q store.CoverageQuery, env *store.Envelope) {
	attempt := model.CollectionAttempt{
		Platform:        q.Platform,
		InputType:       q.InputType,
		InputValue:      q.InputValue,
		RangeFrom:       env.From,
		RangeTo:         env.To,
		RecordsReturned: 1,
		IsValid:         true,
		AttemptedAt:     time.Now().UTC(),
	}
	if err := c.store.RecordAttempt(ctx, attempt); err != nil {
		zap.L().Warn("coverage: backfill attempt insert failed",
			zap.String("platform", q.Platform),
			zap.String("input_value", q.InputValue),
			zap.Error(err),
		)
	}
}

// CheckExistingCoverage computes the merged gaps across every term and
// actor independently. A sub-range counts as a gap when any single input
// lacks coverage there, even if others are covered; conservative on
// purpose, since a missed gap means silently incomplete data.
// An empty result means the full range is covered and the collection call
// can be skipped.
func (c *Controller) CheckExistingCoverage(ctx context.Context, platform string, from, to time.Time, terms, actorIDs []string) ([]Range, error) {
	inputs := make([]Input, 0, len(terms)+len(actorIDs))
	for _, t := range terms {
		inputs = append(inputs, Input{Type: model.InputTerm, Value: t})
	}
	for _, a := range actorIDs {
		inputs = append(inputs, Input{Type: model.InputActor, Value: a})
	}
	if len(inputs) == 0 {
		inputs = append(inputs, Input{})
	}

	var gaps []Range
	for _, input := range inputs {
		covered, err := c.CoveredRanges(ctx, platform, from, to, input)
		if err != nil {
			return nil, err
		}
		gaps = append(gaps, UncoveredRanges(from, to, covered)...)
	}
	return Merge(gaps), nil
}
