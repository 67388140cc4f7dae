package coverage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(d int) time.Time {
	return time.Date(2025, 1, d, 0, 0, 0, 0, time.UTC)
}

func TestUncoveredRanges_NoCoverage(t *testing.T) {
	gaps := UncoveredRanges(day(1), day(21), nil)
	require.Len(t, gaps, 1)
	assert.Equal(t, day(1), gaps[0].From)
	assert.Equal(t, day(21), gaps[0].To)
}

func TestUncoveredRanges_PartialCoverage(t *testing.T) {
	// Requested Jan 1-21 with Jan 5-15 already collected. The buffer widens
	// coverage to Jan 4-16, leaving gaps at both ends.
	gaps := UncoveredRanges(day(1), day(21), []Range{{From: day(5), To: day(15)}})
	require.Len(t, gaps, 2)
	assert.Equal(t, day(1), gaps[0].From)
	assert.Equal(t, day(4), gaps[0].To)
	assert.Equal(t, day(16), gaps[1].From)
	assert.Equal(t, day(21), gaps[1].To)
}

func TestUncoveredRanges_FullCoverage(t *testing.T) {
	gaps := UncoveredRanges(day(5), day(15), []Range{{From: day(1), To: day(21)}})
	assert.Empty(t, gaps)
}

func TestUncoveredRanges_BufferAbsorbsEdges(t *testing.T) {
	// Coverage starting exactly one buffer inside the request leaves no
	// leading gap.
	gaps := UncoveredRanges(day(1), day(10), []Range{{From: day(2), To: day(10)}})
	assert.Empty(t, gaps)
}

func TestUncoveredRanges_MultipleCoveredIntervals(t *testing.T) {
	gaps := UncoveredRanges(day(1), day(31), []Range{
		{From: day(20), To: day(25)},
		{From: day(5), To: day(8)},
	})
	require.Len(t, gaps, 3)
	assert.Equal(t, day(1), gaps[0].From)
	assert.Equal(t, day(4), gaps[0].To)
	assert.Equal(t, day(9), gaps[1].From)
	assert.Equal(t, day(19), gaps[1].To)
	assert.Equal(t, day(26), gaps[2].From)
	assert.Equal(t, day(31), gaps[2].To)
}

func TestUncoveredRanges_OverlappingCoveredIntervals(t *testing.T) {
	gaps := UncoveredRanges(day(1), day(31), []Range{
		{From: day(5), To: day(12)},
		{From: day(10), To: day(18)},
	})
	require.Len(t, gaps, 2)
	assert.Equal(t, day(1), gaps[0].From)
	assert.Equal(t, day(4), gaps[0].To)
	assert.Equal(t, day(19), gaps[1].From)
	assert.Equal(t, day(31), gaps[1].To)
}

func TestUncoveredRanges_CoverageOutsideRequest(t *testing.T) {
	gaps := UncoveredRanges(day(10), day(20), []Range{{From: day(1), To: day(3)}})
	require.Len(t, gaps, 1)
	assert.Equal(t, day(10), gaps[0].From)
	assert.Equal(t, day(20), gaps[0].To)
}

func TestMerge_Empty(t *testing.T) {
	assert.Nil(t, Merge(nil))
}

func TestMerge_DisjointStaySeparate(t *testing.T) {
	merged := Merge([]Range{
		{From: day(10), To: day(12)},
		{From: day(1), To: day(3)},
	})
	require.Len(t, merged, 2)
	assert.Equal(t, day(1), merged[0].From)
	assert.Equal(t, day(10), merged[1].From)
}

func TestMerge_OverlappingCombine(t *testing.T) {
	merged := Merge([]Range{
		{From: day(1), To: day(5)},
		{From: day(4), To: day(9)},
		{From: day(9), To: day(11)},
	})
	require.Len(t, merged, 1)
	assert.Equal(t, day(1), merged[0].From)
	assert.Equal(t, day(11), merged[0].To)
}

func TestMerge_ContainedInterval(t *testing.T) {
	merged := Merge([]Range{
		{From: day(1), To: day(20)},
		{From: day(5), To: day(8)},
	})
	require.Len(t, merged, 1)
	assert.Equal(t, day(1), merged[0].From)
	assert.Equal(t, day(20), merged[0].To)
}
