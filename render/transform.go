package render

import (
	"encoding/binary"
	"math"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/rendercore/backend"
	"github.com/vkngwrapper/rendercore/handle"
	"github.com/vkngwrapper/rendercore/staging"
)

// TransformSize is the number of bytes each transform occupies in the transform buffer
const TransformSize = 64

// Mat4 is a column-major 4x4 matrix
type Mat4 [16]float32

func Identity() Mat4 {
	return Mat4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// Bytes encodes the matrix as 16 little-endian float32s, the layout shaders read
func (m Mat4) Bytes() []byte {
	out := make([]byte, TransformSize)
	for i, value := range m {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(value))
	}
	return out
}

// TransformOffset is the byte offset of h's slot in the transform buffer
func TransformOffset(h handle.Handle) int {
	return h.Index() * TransformSize
}

// CreateTransform registers a new transform and writes it into its slot in the
// transform buffer. The buffer grows when the transform takes a new index.
func (r *Renderer) CreateTransform(m Mat4) handle.Handle {
	r.transformMutex.Lock()
	defer r.transformMutex.Unlock()

	h := r.transforms.Create(m)

	end := TransformOffset(h) + TransformSize
	if end > r.transformStore.Size() {
		err := r.transformStore.Resize(end)
		if err != nil {
			panic(err)
		}
	}

	r.writeTransform(h, m)
	return h
}

// SetTransform replaces the matrix behind h. It returns false if h is not live.
func (r *Renderer) SetTransform(h handle.Handle, m Mat4) bool {
	r.transformMutex.Lock()
	defer r.transformMutex.Unlock()

	if !r.transforms.Update(h, func(value *Mat4) { *value = m }) {
		return false
	}

	r.writeTransform(h, m)
	return true
}

func (r *Renderer) Transform(h handle.Handle) (Mat4, bool) {
	value, ok := r.transforms.Get(h)
	if !ok {
		return Mat4{}, false
	}
	return *value, true
}

// DestroyTransform frees h's slot. The slot's bytes are zeroed on the next tick.
func (r *Renderer) DestroyTransform(h handle.Handle) bool {
	r.transformMutex.Lock()
	defer r.transformMutex.Unlock()

	return r.transforms.Destroy(h)
}

// TransformCount is the number of live transforms
func (r *Renderer) TransformCount() int {
	return r.transforms.Len()
}

// TransformBuffer is the staging buffer holding every transform's slot
func (r *Renderer) TransformBuffer() backend.Buffer {
	return r.transformStore.Backend()
}

func (r *Renderer) writeTransform(h handle.Handle, m Mat4) {
	err := r.transformStore.Write(m.Bytes(), TransformOffset(h))
	if err != nil {
		panic(err)
	}
}

func (r *Renderer) clearTransformSlot(h handle.Handle, _ *Mat4) {
	// Destroy releases the store before it clears the registry
	err := r.transformStore.Write(make([]byte, TransformSize), TransformOffset(h))
	if err != nil && !errors.Is(err, staging.ErrDestroyed) {
		panic(err)
	}
}
