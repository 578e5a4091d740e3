package pipeline_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mesh-tools/pipeman/internal/model"
	"github.com/mesh-tools/pipeman/internal/pipeline"
)

func testConfig() model.Config {
	cfg := model.Default()
	cfg.Paths.ProjectRoot = "/srv/export"
	return cfg
}

func TestCommandDefaults(t *testing.T) {
	t.Parallel()
	spec, err := pipeline.Command(testConfig(), pipeline.Options{})
	require.NoError(t, err)

	require.Equal(t, "/srv/export", spec.Dir)
	require.Equal(t, []string{
		"-ExecutionPolicy", "Bypass",
		"-File", filepath.Join("/srv/export", "run_full_pipeline.ps1"),
		"-ConfigPath", "config.json",
		"-FilesPerBatch", "10",
		"-DecimateRatio", "0.5",
	}, spec.Args)
}

func TestCommandOverrides(t *testing.T) {
	t.Parallel()
	spec, err := pipeline.Command(testConfig(), pipeline.Options{
		ConfigPath:    "/etc/pipeman/config.json",
		FilesPerBatch: 25,
		DecimateRatio: 0.75,
		SkipBatch:     true,
		SkipTextures:  true,
		OnlyMerge:     true,
	})
	require.NoError(t, err)

	require.Contains(t, spec.Args, "-SkipBatchProcessing")
	require.Contains(t, spec.Args, "-SkipTextureConsolidation")
	require.Contains(t, spec.Args, "-OnlyFinalMerge")

	i := indexOf(t, spec.Args, "-FilesPerBatch")
	require.Equal(t, "25", spec.Args[i+1])
	i = indexOf(t, spec.Args, "-DecimateRatio")
	require.Equal(t, "0.75", spec.Args[i+1])
	i = indexOf(t, spec.Args, "-ConfigPath")
	require.Equal(t, "/etc/pipeman/config.json", spec.Args[i+1])
}

func TestCommandMissingProjectRoot(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.Paths.ProjectRoot = ""
	_, err := pipeline.Command(cfg, pipeline.Options{})
	require.ErrorIs(t, err, model.ErrNoProjectRoot)
}

func indexOf(t *testing.T, args []string, want string) int {
	t.Helper()
	for i, a := range args {
		if a == want {
			return i
		}
	}
	t.Fatalf("argument %s not found in %v", want, args)
	return -1
}
