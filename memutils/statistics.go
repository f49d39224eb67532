package memutils

import "math"

// Statistics is a running total of the space managed by one or more arenas
type Statistics struct {
	// ArenaCount is the number of arenas summed into these statistics
	ArenaCount int
	// AllocationCount is the number of live ranges handed out by those arenas
	AllocationCount int
	// ArenaBytes is the total size of the arenas' backing stores
	ArenaBytes int
	// AllocationBytes is the number of bytes covered by live ranges
	AllocationBytes int
}

func (s *Statistics) Clear() {
	*s = Statistics{}
}

func (s *Statistics) AddStatistics(other *Statistics) {
	s.ArenaCount += other.ArenaCount
	s.AllocationCount += other.AllocationCount
	s.ArenaBytes += other.ArenaBytes
	s.AllocationBytes += other.AllocationBytes
}

// FreeBytes is the number of backing-store bytes not covered by a live range
func (s *Statistics) FreeBytes() int {
	return s.ArenaBytes - s.AllocationBytes
}

// DetailedStatistics extends Statistics with free-range information
type DetailedStatistics struct {
	Statistics
	FreeRangeCount   int
	FreeRangeSizeMin int
	FreeRangeSizeMax int
}

// Clear resets the statistics. Minimums are reset to math.MaxInt so that the first
// AddFreeRange call always replaces them.
func (s *DetailedStatistics) Clear() {
	s.Statistics.Clear()
	s.FreeRangeCount = 0
	s.FreeRangeSizeMin = math.MaxInt
	s.FreeRangeSizeMax = 0
}

func (s *DetailedStatistics) AddFreeRange(size int) {
	s.FreeRangeCount++

	if size < s.FreeRangeSizeMin {
		s.FreeRangeSizeMin = size
	}

	if size > s.FreeRangeSizeMax {
		s.FreeRangeSizeMax = size
	}
}

func (s *DetailedStatistics) AddDetailedStatistics(other *DetailedStatistics) {
	s.Statistics.AddStatistics(&other.Statistics)
	s.FreeRangeCount += other.FreeRangeCount

	if other.FreeRangeSizeMin < s.FreeRangeSizeMin {
		s.FreeRangeSizeMin = other.FreeRangeSizeMin
	}

	if other.FreeRangeSizeMax > s.FreeRangeSizeMax {
		s.FreeRangeSizeMax = other.FreeRangeSizeMax
	}
}
