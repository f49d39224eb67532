package memutils

import (
	"math"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
)

func TestCheckPow2(t *testing.T) {
	require.NoError(t, CheckPow2(0, "zero"))
	require.NoError(t, CheckPow2(1, "one"))
	require.NoError(t, CheckPow2(uint64(4096), "page"))

	err := CheckPow2(12, "twelve")
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrNotPowerOfTwo))
	require.Contains(t, err.Error(), "twelve is 12")
}

func TestAlign(t *testing.T) {
	require.Equal(t, 16, AlignUp(9, 8))
	require.Equal(t, 8, AlignUp(8, 8))
	require.Equal(t, uint64(256), AlignUp(uint64(1), 256))
}

func TestDetailedStatistics(t *testing.T) {
	var total DetailedStatistics
	total.Clear()
	require.Equal(t, math.MaxInt, total.FreeRangeSizeMin)

	var arena DetailedStatistics
	arena.Clear()
	arena.ArenaCount = 1
	arena.ArenaBytes = 100
	arena.AllocationCount = 2
	arena.AllocationBytes = 70
	arena.AddFreeRange(10)
	arena.AddFreeRange(20)

	total.AddDetailedStatistics(&arena)
	total.AddDetailedStatistics(&arena)

	require.Equal(t, DetailedStatistics{
		Statistics: Statistics{
			ArenaCount:      2,
			AllocationCount: 4,
			ArenaBytes:      200,
			AllocationBytes: 140,
		},
		FreeRangeCount:   4,
		FreeRangeSizeMin: 10,
		FreeRangeSizeMax: 20,
	}, total)
	require.Equal(t, 60, total.FreeBytes())
}
