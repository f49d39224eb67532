package handle

import (
	"context"
	"log/slog"

	"github.com/cockroachdb/errors"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/vkngwrapper/rendercore/internal/utils"
	"github.com/vkngwrapper/rendercore/memutils"
)

// Registry stores values in slots addressed by generational handles. Destroying a slot
// bumps its version, so every handle issued for the old occupant stays invalid after the
// slot is reused.
//
// Create and Destroy take the registry's write lock. Lookups share a read lock and may
// observe a value that a concurrent Destroy is about to remove. A registry created
// with WithExternalSync takes no locks at all.
type Registry[T any] struct {
	logger    *slog.Logger
	name      string
	onDestroy func(Handle, *T)

	mutex    utils.OptionalRWMutex
	slots    chunkedStorage[T]
	freeList []int
	live     int
}

var _ memutils.Validatable = &Registry[int]{}

func NewRegistry[T any](opts ...Option[T]) *Registry[T] {
	cfg := config[T]{name: "registry"}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.DiscardHandler)
	}

	return &Registry[T]{
		mutex:     utils.NewOptionalRWMutex(!cfg.externallySynchronized),
		logger:    cfg.logger,
		name:      cfg.name,
		onDestroy: cfg.onDestroy,
	}
}

// Create stores value in a free slot, or a new one if none are free, and returns its
// handle. It panics if the registry already holds MaxIndex slots.
func (r *Registry[T]) Create(value T) Handle {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	var index int
	if freeCount := len(r.freeList); freeCount > 0 {
		index = r.freeList[freeCount-1]
		r.freeList = r.freeList[:freeCount-1]
	} else {
		if r.slots.Len() >= MaxIndex {
			panic(errors.Newf("%s: cannot create more than %d handles", r.name, MaxIndex))
		}

		index = r.slots.Push()
		r.slots.At(index).version = FirstVersion
	}

	s := r.slots.At(index)
	s.value = value
	s.live = true
	r.live++

	return New(index, s.version)
}

func (r *Registry[T]) lookup(h Handle) *slot[T] {
	index := h.Index()
	if h.IsNull() || index >= r.slots.Len() {
		return nil
	}

	s := r.slots.At(index)
	if !s.live || s.version != h.Version() {
		return nil
	}

	return s
}

// Destroy invalidates h and frees its slot. Stale and null handles are ignored, so
// destroying the same handle twice is harmless. It returns whether anything was destroyed.
func (r *Registry[T]) Destroy(h Handle) bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	s := r.lookup(h)
	if s == nil {
		return false
	}

	if r.onDestroy != nil {
		r.onDestroy(h, &s.value)
	}

	var zero T
	s.value = zero
	s.live = false
	s.version = nextVersion(s.version)
	r.freeList = append(r.freeList, h.Index())
	r.live--

	return true
}

func (r *Registry[T]) IsValid(h Handle) bool {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return r.lookup(h) != nil
}

// Get returns a pointer to the value h refers to, or false if h is stale. The pointer
// stays put while other slots are created, but must not be used after h is destroyed.
func (r *Registry[T]) Get(h Handle) (*T, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	s := r.lookup(h)
	if s == nil {
		return nil, false
	}
	return &s.value, true
}

// Update calls update on the value h refers to while holding the write lock
func (r *Registry[T]) Update(h Handle, update func(value *T)) bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	s := r.lookup(h)
	if s == nil {
		return false
	}

	update(&s.value)
	return true
}

// Len is the number of live handles
func (r *Registry[T]) Len() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return r.live
}

// Cap is the number of slots allocated so far, live or not
func (r *Registry[T]) Cap() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return r.slots.Len()
}

// FreeCount is the number of slots waiting to be reused
func (r *Registry[T]) FreeCount() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return len(r.freeList)
}

// Each calls visit for every live slot in index order, under the read lock
func (r *Registry[T]) Each(visit func(h Handle, value *T)) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	for index := 0; index < r.slots.Len(); index++ {
		s := r.slots.At(index)
		if s.live {
			visit(New(index, s.version), &s.value)
		}
	}
}

// Clear destroys every live slot, running the OnDestroy hook for each. Each one is
// logged as unreleased. It returns the number of slots destroyed.
func (r *Registry[T]) Clear() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	destroyed := 0
	for index := 0; index < r.slots.Len(); index++ {
		s := r.slots.At(index)
		if !s.live {
			continue
		}

		h := New(index, s.version)
		r.logger.LogAttrs(context.Background(), slog.LevelError, "[UNRELEASED RESOURCE] live handle",
			slog.String("registry", r.name),
			slog.String("handle", h.String()),
		)

		if r.onDestroy != nil {
			r.onDestroy(h, &s.value)
		}

		var zero T
		s.value = zero
		s.live = false
		s.version = nextVersion(s.version)
		r.freeList = append(r.freeList, index)
		destroyed++
	}

	r.live = 0
	return destroyed
}

// Validate checks that the free list and live count agree with the slots
func (r *Registry[T]) Validate() error {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	if r.live+len(r.freeList) != r.slots.Len() {
		return errors.Newf("%s: %d live and %d free slots do not add up to %d slots", r.name, r.live, len(r.freeList), r.slots.Len())
	}

	seen := make(map[int]struct{}, len(r.freeList))
	for _, index := range r.freeList {
		if index < 0 || index >= r.slots.Len() {
			return errors.Newf("%s: free list holds out of range index %d", r.name, index)
		}
		if _, duplicate := seen[index]; duplicate {
			return errors.Newf("%s: index %d is on the free list twice", r.name, index)
		}
		seen[index] = struct{}{}

		s := r.slots.At(index)
		if s.live {
			return errors.Newf("%s: live index %d is on the free list", r.name, index)
		}
	}

	for index := 0; index < r.slots.Len(); index++ {
		version := r.slots.At(index).version
		if version < FirstVersion || version > MaxVersion {
			return errors.Newf("%s: index %d has invalid version %d", r.name, index, version)
		}
	}

	return nil
}

// PrintDetailedMap writes the registry's occupancy to json
func (r *Registry[T]) PrintDetailedMap(json jwriter.ObjectState) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	json.Name("Name").String(r.name)
	json.Name("Live").Int(r.live)
	json.Name("Slots").Int(r.slots.Len())
	json.Name("Free").Int(len(r.freeList))
	json.Name("Capacity").Int(r.slots.Cap())
}
