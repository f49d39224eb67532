// Package arena sub-allocates byte ranges out of a single staging buffer using a
// first-fit free list. Released ranges are merged with their neighbours, and a growable
// arena extends its backing store when no free range is large enough.
package arena

import (
	"slices"

	"github.com/cockroachdb/errors"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/vkngwrapper/rendercore/internal/utils"
	"github.com/vkngwrapper/rendercore/memutils"
	"github.com/vkngwrapper/rendercore/staging"
)

// ErrRegionInUse is returned by Resize when shrinking would cut off bytes that belong
// to a live allocation
var ErrRegionInUse = errors.New("cannot shrink arena over a live allocation")

// Arena manages the free ranges of one staging buffer.
//
// The free list is kept sorted by StartIdx, and no two free ranges touch: any two
// adjacent ranges are merged as soon as they become adjacent.
type Arena struct {
	mutex    utils.OptionalMutex
	store    *staging.Buffer
	size     uint64
	growable bool

	free            []GraphicPointer
	allocationCount int
}

var _ memutils.Validatable = &Arena{}

// New creates an arena over store. The store is resized to size and the whole of it
// starts out free.
func New(store *staging.Buffer, size int, growable bool, opts ...Option) (*Arena, error) {
	if store == nil {
		return nil, errors.New("arena requires a backing store")
	}
	if size < 0 {
		return nil, errors.Newf("arena size cannot be negative: %d", size)
	}

	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}

	err := store.Resize(size)
	if err != nil {
		return nil, errors.Wrap(err, "size arena backing store")
	}

	a := &Arena{
		mutex:    utils.NewOptionalMutex(!cfg.externallySynchronized),
		store:    store,
		size:     uint64(size),
		growable: growable,
	}
	if size > 0 {
		a.free = []GraphicPointer{{StartIdx: 0, Size: uint64(size)}}
	}

	return a, nil
}

// Store is the staging buffer that holds the arena's bytes
func (a *Arena) Store() *staging.Buffer {
	return a.store
}

func (a *Arena) Growable() bool {
	return a.growable
}

// Allocate reserves size bytes using the first free range large enough to hold them.
// When nothing fits, a growable arena extends its backing store and a fixed-size arena
// returns the null pointer. Requests for 0 bytes also return the null pointer.
func (a *Arena) Allocate(size int) GraphicPointer {
	if size <= 0 {
		return NullPointer
	}
	request := uint64(size)

	a.mutex.Lock()
	defer a.mutex.Unlock()

	for i := range a.free {
		freeRange := &a.free[i]
		if freeRange.Size < request {
			continue
		}

		ptr := GraphicPointer{StartIdx: freeRange.StartIdx, Size: request}
		freeRange.StartIdx += request
		freeRange.Size -= request

		if freeRange.Size == 0 {
			a.free = slices.Delete(a.free, i, i+1)
		}

		a.allocationCount++
		return ptr
	}

	if !a.growable {
		return NullPointer
	}

	var ptr GraphicPointer
	lastIndex := len(a.free) - 1
	if lastIndex >= 0 && a.free[lastIndex].End() == a.size {
		// Grow just enough for the tail range to cover the request
		last := a.free[lastIndex]
		ptr = GraphicPointer{StartIdx: last.StartIdx, Size: request}
		a.free = a.free[:lastIndex]
		a.size += request - last.Size
	} else {
		ptr = GraphicPointer{StartIdx: a.size, Size: request}
		a.size += request
	}

	err := a.store.Resize(int(a.size))
	if err != nil {
		panic(errors.Wrapf(err, "failed to grow arena backing store to %d bytes", a.size))
	}

	a.allocationCount++
	return ptr
}

// Release returns ptr's range to the free list. It fails without changing anything if
// ptr is null, runs past the end of the store, or overlaps a range that is already free.
func (a *Arena) Release(ptr GraphicPointer) bool {
	released := a.release(ptr)
	if released {
		memutils.DebugValidate(a)
	}
	return released
}

func (a *Arena) release(ptr GraphicPointer) bool {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	if ptr.IsNull() || ptr.End() > a.size || ptr.End() < ptr.StartIdx {
		return false
	}

	for _, freeRange := range a.free {
		if freeRange.overlaps(ptr) {
			return false
		}
	}

	// next is the first free range after ptr, prev the last one before it
	next, _ := slices.BinarySearchFunc(a.free, ptr.StartIdx, func(freeRange GraphicPointer, start uint64) int {
		switch {
		case freeRange.StartIdx < start:
			return -1
		case freeRange.StartIdx > start:
			return 1
		default:
			return 0
		}
	})
	prev := next - 1

	switch {
	case prev >= 0 && a.free[prev].End() == ptr.StartIdx:
		a.free[prev].Size += ptr.Size
		if next < len(a.free) && a.free[prev].End() == a.free[next].StartIdx {
			a.free[prev].Size += a.free[next].Size
			a.free = slices.Delete(a.free, next, next+1)
		}
	case next < len(a.free) && ptr.End() == a.free[next].StartIdx:
		a.free[next].StartIdx = ptr.StartIdx
		a.free[next].Size += ptr.Size
	default:
		a.free = slices.Insert(a.free, next, ptr)
	}

	// Releasing a range in pieces is allowed, so the count can never be trusted to drop
	// below the number of runs that are still allocated
	a.allocationCount = max(a.allocationCount-1, a.usedSpans())
	return true
}

// usedSpans is the number of maximal runs of allocated bytes. Each run holds at least
// one allocation.
func (a *Arena) usedSpans() int {
	if len(a.free) == 0 {
		if a.size > 0 {
			return 1
		}
		return 0
	}

	spans := len(a.free) + 1
	if a.free[0].StartIdx == 0 {
		spans--
	}
	if a.free[len(a.free)-1].End() == a.size {
		spans--
	}
	return spans
}

// Resize changes the size of the backing store. Growing adds free space at the end of
// the arena. Shrinking is only allowed when every byte being cut off is free.
func (a *Arena) Resize(size int) error {
	if size < 0 {
		return errors.Newf("arena size cannot be negative: %d", size)
	}
	newSize := uint64(size)

	a.mutex.Lock()
	defer a.mutex.Unlock()

	if newSize == a.size {
		return nil
	}

	free := slices.Clone(a.free)
	lastIndex := len(free) - 1
	tailFree := lastIndex >= 0 && free[lastIndex].End() == a.size

	if newSize > a.size {
		if tailFree {
			free[lastIndex].Size += newSize - a.size
		} else {
			free = append(free, GraphicPointer{StartIdx: a.size, Size: newSize - a.size})
		}
	} else {
		if !tailFree || free[lastIndex].StartIdx > newSize {
			return errors.Wrapf(ErrRegionInUse, "shrink from %d to %d bytes", a.size, newSize)
		}

		free[lastIndex].Size -= a.size - newSize
		if free[lastIndex].Size == 0 {
			free = free[:lastIndex]
		}
	}

	err := a.store.Resize(size)
	if err != nil {
		return errors.Wrapf(err, "resize arena backing store to %d bytes", size)
	}

	a.free = free
	a.size = newSize
	return nil
}

// Write copies data into the range ptr refers to. data may be shorter than the range.
func (a *Arena) Write(ptr GraphicPointer, data []byte) error {
	if uint64(len(data)) > ptr.Size {
		return errors.Newf("%d bytes do not fit in allocation %s", len(data), ptr)
	}

	return a.store.Write(data, int(ptr.StartIdx))
}

// Read returns a copy of the bytes ptr refers to, as the CPU currently sees them
func (a *Arena) Read(ptr GraphicPointer) ([]byte, error) {
	var out []byte
	var err error

	a.store.View(func(data []byte) {
		if ptr.End() > uint64(len(data)) {
			err = errors.Newf("allocation %s runs past the end of a %d byte store", ptr, len(data))
			return
		}
		out = append([]byte(nil), data[ptr.StartIdx:ptr.End()]...)
	})

	return out, err
}

func (a *Arena) Size() int {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	return int(a.size)
}

// AllocationCount is the number of successful Allocate calls not yet matched by a Release.
// It never drops below the number of separate allocated runs, so releasing one allocation
// in pieces does not undercount the others.
func (a *Arena) AllocationCount() int {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	return a.allocationCount
}

// FreeRegionsCount is the number of distinct free ranges
func (a *Arena) FreeRegionsCount() int {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	return len(a.free)
}

// SumFreeSize is the total number of free bytes
func (a *Arena) SumFreeSize() int {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	return int(a.sumFreeSize())
}

func (a *Arena) sumFreeSize() uint64 {
	var sum uint64
	for _, freeRange := range a.free {
		sum += freeRange.Size
	}
	return sum
}

// FreeRanges returns a copy of the free list
func (a *Arena) FreeRanges() []GraphicPointer {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	return slices.Clone(a.free)
}

// Validate checks that the free list is sorted, in bounds, and fully merged
func (a *Arena) Validate() error {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	if uint64(a.store.Size()) != a.size {
		return errors.Newf("arena believes it is %d bytes but its store is %d bytes", a.size, a.store.Size())
	}

	for i, freeRange := range a.free {
		if freeRange.IsNull() {
			return errors.Newf("free range %d is empty", i)
		}
		if freeRange.End() > a.size {
			return errors.Newf("free range %d (%s) runs past the end of the arena (%d bytes)", i, freeRange, a.size)
		}
		if i == 0 {
			continue
		}

		prev := a.free[i-1]
		if prev.End() > freeRange.StartIdx {
			return errors.Newf("free ranges %d (%s) and %d (%s) are out of order or overlap", i-1, prev, i, freeRange)
		}
		if prev.End() == freeRange.StartIdx {
			return errors.Newf("free ranges %d (%s) and %d (%s) touch but were not merged", i-1, prev, i, freeRange)
		}
	}

	if a.sumFreeSize() > a.size {
		return errors.Newf("free ranges cover %d bytes of a %d byte arena", a.sumFreeSize(), a.size)
	}
	if spans := a.usedSpans(); a.allocationCount < spans {
		return errors.Newf("%d allocations cannot fill %d allocated runs", a.allocationCount, spans)
	}

	return nil
}

func (a *Arena) AddStatistics(stats *memutils.Statistics) {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	stats.ArenaCount++
	stats.ArenaBytes += int(a.size)
	stats.AllocationCount += a.allocationCount
	stats.AllocationBytes += int(a.size - a.sumFreeSize())
}

func (a *Arena) AddDetailedStatistics(stats *memutils.DetailedStatistics) {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	stats.ArenaCount++
	stats.ArenaBytes += int(a.size)
	stats.AllocationCount += a.allocationCount
	stats.AllocationBytes += int(a.size - a.sumFreeSize())

	for _, freeRange := range a.free {
		stats.AddFreeRange(int(freeRange.Size))
	}
}

// PrintDetailedMap writes the arena's totals and free ranges to json
func (a *Arena) PrintDetailedMap(json jwriter.ObjectState) {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	json.Name("TotalBytes").Int(int(a.size))
	json.Name("FreeBytes").Int(int(a.sumFreeSize()))
	json.Name("Allocations").Int(a.allocationCount)
	json.Name("FreeRanges").Int(len(a.free))
	json.Name("Growable").Bool(a.growable)

	ranges := json.Name("Free").Array()
	defer ranges.End()

	for _, freeRange := range a.free {
		obj := ranges.Object()
		obj.Name("Offset").Int(int(freeRange.StartIdx))
		obj.Name("Size").Int(int(freeRange.Size))
		obj.End()
	}
}
