package render

import (
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/vkngwrapper/rendercore/handle"
	"github.com/vkngwrapper/rendercore/memutils"
)

// CalculateStatistics sums the statistics of the vertex and index arenas
func (r *Renderer) CalculateStatistics() memutils.DetailedStatistics {
	var stats memutils.DetailedStatistics
	stats.Clear()

	r.vertices.AddDetailedStatistics(&stats)
	r.indices.AddDetailedStatistics(&stats)

	return stats
}

// BuildStatsString dumps the renderer's state as JSON. Without detailed, only totals are
// written. With it, every arena, registry and staging buffer is described as well.
func (r *Renderer) BuildStatsString(detailed bool) string {
	writer := jwriter.NewWriter()
	root := writer.Object()

	stats := r.CalculateStatistics()
	total := root.Name("Total").Object()
	writeStatistics(total, &stats)
	total.End()

	root.Name("Ticks").Int(int(r.Ticks()))
	root.Name("Transforms").Int(r.transforms.Len())
	root.Name("Meshes").Int(r.meshes.Len())
	root.Name("CycleBuffers").Int(len(r.cycleBuffers()))
	root.Name("PendingShaders").Int(r.shaders.len())

	if detailed {
		vertexObj := root.Name("VertexArena").Object()
		r.vertices.PrintDetailedMap(vertexObj)
		vertexObj.End()

		indexObj := root.Name("IndexArena").Object()
		r.indices.PrintDetailedMap(indexObj)
		indexObj.End()

		transformObj := root.Name("TransformRegistry").Object()
		r.transforms.PrintDetailedMap(transformObj)
		transformObj.End()

		meshObj := root.Name("MeshRegistry").Object()
		r.meshes.PrintDetailedMap(meshObj)
		r.printMeshes(meshObj)
		meshObj.End()

		queueObj := root.Name("StagingQueue").Object()
		r.queue.PrintDetailedMap(queueObj)
		queueObj.End()
	}

	root.End()
	return string(writer.Bytes())
}

func writeStatistics(json jwriter.ObjectState, stats *memutils.DetailedStatistics) {
	json.Name("Arenas").Int(stats.ArenaCount)
	json.Name("Allocations").Int(stats.AllocationCount)
	json.Name("TotalBytes").Int(stats.ArenaBytes)
	json.Name("AllocatedBytes").Int(stats.AllocationBytes)
	json.Name("FreeBytes").Int(stats.FreeBytes())
	json.Name("FreeRanges").Int(stats.FreeRangeCount)

	if stats.FreeRangeCount > 0 {
		json.Name("FreeRangeSizeMin").Int(stats.FreeRangeSizeMin)
		json.Name("FreeRangeSizeMax").Int(stats.FreeRangeSizeMax)
	}
}

func (r *Renderer) printMeshes(json jwriter.ObjectState) {
	meshes := json.Name("Entries").Array()
	defer meshes.End()

	r.meshes.Each(func(h handle.Handle, mesh *Mesh) {
		obj := meshes.Object()
		defer obj.End()

		obj.Name("Handle").String(h.String())
		obj.Name("Name").String(mesh.Name)
		obj.Name("VertexOffset").Int(int(mesh.Vertices.StartIdx))
		obj.Name("VertexBytes").Int(int(mesh.Vertices.Size))
		obj.Name("Indices").Int(mesh.IndexCount())
	})
}
