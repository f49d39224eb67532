package pipeline

import (
	"fmt"

	"github.com/vkngwrapper/rendercore/handle"
)

type StageKind uint8

const (
	StageKindCustom StageKind = iota
	StageKindMeshDraw
	StageKindSceneDraw
	StageKindCompute
	StageKindBarrier
	StageKindBlit
	StageKindClear
)

var stageKindMapping = map[StageKind]string{
	StageKindCustom:    "Custom",
	StageKindMeshDraw:  "MeshDraw",
	StageKindSceneDraw: "SceneDraw",
	StageKindCompute:   "Compute",
	StageKindBarrier:   "Barrier",
	StageKindBlit:      "Blit",
	StageKindClear:     "Clear",
}

func (k StageKind) String() string {
	str, ok := stageKindMapping[k]
	if !ok {
		return fmt.Sprintf("StageKind(%d)", uint8(k))
	}
	return str
}

// Stage is one step of a render pipeline. The set of stage types is closed: every Stage
// is one of the pointer types declared in this package, and backends switch on them.
type Stage interface {
	Kind() StageKind
	isStage()
}

// CustomStage runs arbitrary code while the sequence is being recorded. The backend
// passes its own recording target as commands.
type CustomStage struct {
	Record func(commands any) error
}

// MeshDrawStage draws a single mesh with a single transform
type MeshDrawStage struct {
	Mesh      handle.Handle
	Transform handle.Handle
	Camera    handle.Handle
	Instances uint32
}

// SceneDrawStage draws every mesh in a scene from the point of view of a camera
type SceneDrawStage struct {
	Scene  string
	Camera handle.Handle
}

// ComputeStage dispatches a compute shader over a grid of work groups
type ComputeStage struct {
	Shader  string
	GroupsX uint32
	GroupsY uint32
	GroupsZ uint32
}

// BarrierStage orders the memory accesses of the stages before it against the ones after it
type BarrierStage struct {
	Src Access
	Dst Access
}

// BlitStage copies one render target into another, scaling if their sizes differ
type BlitStage struct {
	Src    string
	Dst    string
	Linear bool
}

// ClearStage clears a render target
type ClearStage struct {
	Target string
	Color  [4]float32
	Depth  float32
}

func (*CustomStage) Kind() StageKind    { return StageKindCustom }
func (*MeshDrawStage) Kind() StageKind  { return StageKindMeshDraw }
func (*SceneDrawStage) Kind() StageKind { return StageKindSceneDraw }
func (*ComputeStage) Kind() StageKind   { return StageKindCompute }
func (*BarrierStage) Kind() StageKind   { return StageKindBarrier }
func (*BlitStage) Kind() StageKind      { return StageKindBlit }
func (*ClearStage) Kind() StageKind     { return StageKindClear }

func (*CustomStage) isStage()    {}
func (*MeshDrawStage) isStage()  {}
func (*SceneDrawStage) isStage() {}
func (*ComputeStage) isStage()   {}
func (*BarrierStage) isStage()   {}
func (*BlitStage) isStage()      {}
func (*ClearStage) isStage()     {}
