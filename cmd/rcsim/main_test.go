package main

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/pelletier/go-toml/v2"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/rendercore/render"
)

func execute(t *testing.T, args ...string) (string, error) {
	cmd := newRootCommand()

	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return out.String(), err
}

func TestRunPrintsStats(t *testing.T) {
	out, err := execute(t, "run", "--ticks", "20", "--meshes", "4", "--max-vertices", "16")
	require.NoError(t, err)

	var stats map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	require.Equal(t, float64(20), stats["Ticks"])
	require.Equal(t, float64(4), stats["Meshes"])
	require.Equal(t, float64(4), stats["Transforms"])
	require.Equal(t, float64(1), stats["CycleBuffers"])
	require.NotContains(t, stats, "VertexArena")
}

func TestRunDetailedUsesConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "renderer.toml")
	require.NoError(t, os.WriteFile(path, []byte("[vertex_arena]\ninitial_size = 1024\n"), 0o600))

	out, err := execute(t, "--config", path, "run", "--ticks", "5", "--meshes", "2", "--detailed")
	require.NoError(t, err)

	var stats map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	vertexArena := stats["VertexArena"].(map[string]any)
	require.GreaterOrEqual(t, vertexArena["TotalBytes"], float64(1024))
}

func TestRunRejectsBadFlags(t *testing.T) {
	_, err := execute(t, "run", "--meshes", "0")
	require.Error(t, err)

	_, err = execute(t, "run", "--max-vertices", "2")
	require.Error(t, err)

	_, err = execute(t, "--config", filepath.Join(t.TempDir(), "missing.toml"), "run")
	require.Error(t, err)
}

func TestConfigPrintsEffectiveConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "renderer.toml")
	require.NoError(t, os.WriteFile(path, []byte("frames_in_flight = 3\n"), 0o600))

	out, err := execute(t, "--config", path, "config")
	require.NoError(t, err)

	cfg := render.DefaultConfig()
	require.NoError(t, toml.Unmarshal([]byte(out), &cfg))
	require.Equal(t, 3, cfg.FramesInFlight)
	require.Equal(t, render.DefaultConfig().VertexArena, cfg.VertexArena)
}
