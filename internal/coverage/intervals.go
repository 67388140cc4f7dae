package coverage

import (
	"sort"
	"time"
)

// Range is a half-open-in-spirit [From, To] date interval, always UTC.
type Range struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// Buffer widens each covered interval on both sides before gap computation
// so partial days at range edges are not re-fetched.
const Buffer = 24 * time.Hour

// UncoveredRanges walks a cursor across [from, to] and emits the sub-ranges
// not covered by any interval in covered (each widened by Buffer). An empty
// covered list yields the full requested range as a single gap.
func UncoveredRanges(from, to time.Time, covered []Range) []Range {
	from = from.UTC()
	to = to.UTC()

	sorted := make([]Range, len(covered))
	copy(sorted, covered)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].From.Before(sorted[j].From)
	})

	var gaps []Range
	cursor := from
	for _, c := range sorted {
		start := c.From.UTC().Add(-Buffer)
		end := c.To.UTC().Add(Buffer)

		if start.After(cursor) {
			gaps = append(gaps, Range{From: cursor, To: start})
		}
		if end.After(cursor) {
			cursor = end
		}
	}
	if cursor.Before(to) {
		gaps = append(gaps, Range{From: cursor, To: to})
	}
	return gaps
}

// Merge combines overlapping or touching intervals into a minimal sorted
// list.
func Merge(ranges []Range) []Range {
	if len(ranges) == 0 {
		return nil
	}

	sorted := make([]Range, len(ranges))
	copy(sorted, ranges)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].From.Before(sorted[j].From)
	})

	merged := []Range{sorted[0]}
	for _, r := range sorted[1:] {
		last := &merged[len(merged)-1]
		if !r.From.After(last.To) {
			if r.To.After(last.To) {
				last.To = r.To
			}
			continue
		}
		merged = append(merged, r)
	}
	return merged
}
