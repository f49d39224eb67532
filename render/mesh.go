package render

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/rendercore/arena"
	"github.com/vkngwrapper/rendercore/handle"
)

// IndexSize is the size in bytes of one index in a mesh's index data
const IndexSize = 4

// Mesh records where a mesh's geometry lives in the renderer's arenas
type Mesh struct {
	Name         string
	Vertices     arena.GraphicPointer
	Indices      arena.GraphicPointer
	VertexStride int
}

func (m Mesh) VertexCount() int {
	if m.VertexStride == 0 {
		return 0
	}
	return int(m.Vertices.Size) / m.VertexStride
}

func (m Mesh) IndexCount() int {
	return int(m.Indices.Size) / IndexSize
}

// CreateMesh copies vertices and indices into the vertex and index arenas. Indices are
// 32-bit. A mesh may have no indices, but it must have vertices.
func (r *Renderer) CreateMesh(name string, vertices, indices []byte, vertexStride int) (handle.Handle, error) {
	r.logger.Debug("Renderer::CreateMesh")

	if vertexStride <= 0 {
		return handle.Null, errors.Newf("mesh %s: vertex stride must be positive, got %d", name, vertexStride)
	}
	if len(vertices) == 0 {
		return handle.Null, errors.Newf("mesh %s: no vertex data", name)
	}
	if len(vertices)%vertexStride != 0 {
		return handle.Null, errors.Newf("mesh %s: %d bytes of vertex data is not a multiple of stride %d", name, len(vertices), vertexStride)
	}
	if len(indices)%IndexSize != 0 {
		return handle.Null, errors.Newf("mesh %s: %d bytes of index data is not a multiple of %d", name, len(indices), IndexSize)
	}

	vertexPtr := r.vertices.Allocate(len(vertices))
	if vertexPtr.IsNull() {
		return handle.Null, errors.Wrapf(ErrArenaExhausted, "mesh %s: %d bytes of vertex data", name, len(vertices))
	}

	indexPtr := arena.NullPointer
	if len(indices) > 0 {
		indexPtr = r.indices.Allocate(len(indices))
		if indexPtr.IsNull() {
			r.vertices.Release(vertexPtr)
			return handle.Null, errors.Wrapf(ErrArenaExhausted, "mesh %s: %d bytes of index data", name, len(indices))
		}
	}

	err := r.vertices.Write(vertexPtr, vertices)
	if err == nil && !indexPtr.IsNull() {
		err = r.indices.Write(indexPtr, indices)
	}
	if err != nil {
		r.releaseMeshRanges(vertexPtr, indexPtr)
		return handle.Null, errors.Wrapf(err, "mesh %s", name)
	}

	return r.meshes.Create(Mesh{
		Name:         name,
		Vertices:     vertexPtr,
		Indices:      indexPtr,
		VertexStride: vertexStride,
	}), nil
}

func (r *Renderer) Mesh(h handle.Handle) (Mesh, bool) {
	mesh, ok := r.meshes.Get(h)
	if !ok {
		return Mesh{}, false
	}
	return *mesh, true
}

// DestroyMesh returns the mesh's ranges to the arenas. It returns false if h is not live.
func (r *Renderer) DestroyMesh(h handle.Handle) bool {
	return r.meshes.Destroy(h)
}

func (r *Renderer) MeshCount() int {
	return r.meshes.Len()
}

// VertexArena holds every mesh's vertex data
func (r *Renderer) VertexArena() *arena.Arena {
	return r.vertices
}

// IndexArena holds every mesh's index data
func (r *Renderer) IndexArena() *arena.Arena {
	return r.indices
}

func (r *Renderer) releaseMesh(_ handle.Handle, mesh *Mesh) {
	r.releaseMeshRanges(mesh.Vertices, mesh.Indices)
}

func (r *Renderer) releaseMeshRanges(vertices, indices arena.GraphicPointer) {
	if !vertices.IsNull() {
		r.vertices.Release(vertices)
	}
	if !indices.IsNull() {
		r.indices.Release(indices)
	}
}
