package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"github.com/vkngwrapper/rendercore/backend"
	"github.com/vkngwrapper/rendercore/backend/soft"
	"github.com/vkngwrapper/rendercore/handle"
	"github.com/vkngwrapper/rendercore/pipeline"
	"github.com/vkngwrapper/rendercore/render"
)

const vertexStride = 32

type simulation struct {
	ticks       int
	meshes      int
	maxVertices int
	seed        uint64
	detailed    bool
}

func newRunCommand(opts *rootOptions) *cobra.Command {
	sim := simulation{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Churn meshes for a number of ticks and print renderer stats",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}

			stats, err := sim.run(cmd.Context(), opts.logger(cmd), cfg)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), stats)
			return err
		},
	}

	cmd.Flags().IntVar(&sim.ticks, "ticks", 120, "number of ticks to run")
	cmd.Flags().IntVar(&sim.meshes, "meshes", 32, "number of live meshes")
	cmd.Flags().IntVar(&sim.maxVertices, "max-vertices", 512, "largest mesh, in vertices")
	cmd.Flags().Uint64Var(&sim.seed, "seed", 1, "seed for mesh sizes")
	cmd.Flags().BoolVar(&sim.detailed, "detailed", false, "print arena and registry detail")
	return cmd
}

func (s simulation) validate() error {
	if s.ticks < 0 {
		return errors.Newf("ticks cannot be negative: %d", s.ticks)
	}
	if s.meshes < 1 {
		return errors.Newf("need at least one mesh, got %d", s.meshes)
	}
	if s.maxVertices < 3 {
		return errors.Newf("max-vertices must be at least 3, got %d", s.maxVertices)
	}
	return nil
}

type scene struct {
	meshes     []handle.Handle
	transforms []handle.Handle
}

// run builds a renderer on a soft device and replaces one mesh per tick, so the arenas
// see steady allocate/release churn. It returns the final stats dump.
func (s simulation) run(ctx context.Context, logger *slog.Logger, cfg render.Config) (stats string, err error) {
	if ctx == nil {
		ctx = context.Background()
	}

	err = s.validate()
	if err != nil {
		return "", err
	}

	r, err := render.New(logger, soft.NewDevice(), cfg)
	if err != nil {
		return "", err
	}
	defer func() {
		err = errors.CombineErrors(err, r.Destroy())
	}()

	rng := rand.New(rand.NewPCG(s.seed, s.seed^0x9e3779b97f4a7c15))

	var sc scene
	for i := 0; i < s.meshes; i++ {
		mesh, err := s.createMesh(r, rng, i)
		if err != nil {
			return "", err
		}
		sc.meshes = append(sc.meshes, mesh)
		sc.transforms = append(sc.transforms, r.CreateTransform(render.Identity()))
	}
	defer sc.destroy(r)

	camera, err := r.NewCycleBuffer(backend.BufferUsageUniform, render.Identity().Bytes())
	if err != nil {
		return "", err
	}
	defer func() {
		err = errors.CombineErrors(err, r.DestroyCycleBuffer(camera))
	}()

	stages := pipeline.NewStages()
	err = stages.Add("clear", &pipeline.ClearStage{Target: "color", Color: [4]float32{0, 0, 0, 1}, Depth: 1})
	if err != nil {
		return "", err
	}
	err = stages.Add("draw", &pipeline.MeshDrawStage{Mesh: sc.meshes[0], Transform: sc.transforms[0], Instances: 1})
	if err != nil {
		return "", err
	}
	err = stages.Add("present", &pipeline.BlitStage{Src: "color", Dst: "swapchain"})
	if err != nil {
		return "", err
	}

	p, err := r.NewPipeline(soft.NewSequencer(), stages)
	if err != nil {
		return "", err
	}
	defer func() {
		err = errors.CombineErrors(err, p.Close())
	}()

	err = p.Record()
	if err != nil {
		return "", err
	}
	err = p.WaitForRecording()
	if err != nil {
		return "", err
	}

	for tick := 0; tick < s.ticks; tick++ {
		index := rng.IntN(len(sc.meshes))
		r.DestroyMesh(sc.meshes[index])
		sc.meshes[index], err = s.createMesh(r, rng, tick)
		if err != nil {
			return "", err
		}

		offset := float32(tick)
		transform := render.Identity()
		transform[12] = offset
		r.SetTransform(sc.transforms[index], transform)

		camera.Set(transform.Bytes())
		err = r.SetFrameUniforms(transform.Bytes())
		if err != nil {
			return "", err
		}

		if index == 0 {
			err = p.Update("draw", func(stage pipeline.Stage) {
				stage.(*pipeline.MeshDrawStage).Mesh = sc.meshes[0]
			})
			if err != nil {
				return "", err
			}
			err = p.Record()
			if err != nil {
				return "", err
			}
		}

		err = p.Play(ctx)
		if err != nil {
			return "", err
		}

		err = r.Tick()
		if err != nil {
			return "", err
		}
	}

	return r.BuildStatsString(s.detailed), nil
}

func (s simulation) createMesh(r *render.Renderer, rng *rand.Rand, id int) (handle.Handle, error) {
	vertexCount := 3 + rng.IntN(s.maxVertices-2)
	vertices := make([]byte, vertexCount*vertexStride)
	indices := make([]byte, vertexCount*render.IndexSize)

	return r.CreateMesh(fmt.Sprintf("mesh-%d", id), vertices, indices, vertexStride)
}

func (sc *scene) destroy(r *render.Renderer) {
	for _, mesh := range sc.meshes {
		r.DestroyMesh(mesh)
	}
	for _, transform := range sc.transforms {
		r.DestroyTransform(transform)
	}
}
