// Package pipeline turns a configuration plus per-run options into the
// job.Spec that launches the external conversion pipeline. It performs
// no path validation; whatever is wrong with the command surfaces when
// the process is spawned.
package pipeline

import (
	"path/filepath"
	"runtime"
	"strconv"

	"github.com/mesh-tools/pipeman/internal/job"
	"github.com/mesh-tools/pipeman/internal/model"
)

// Options are the per-run overrides collected from the caller. Zero
// values fall back to the configured defaults.
type Options struct {
	ConfigPath    string
	FilesPerBatch int
	DecimateRatio float64
	SkipBatch     bool
	SkipTextures  bool
	OnlyMerge     bool
}

// Command builds the pipeline invocation: the PowerShell host running
// the orchestration script with pass-through flags for stage skipping
// and numeric overrides, working directory at the project root.
func Command(cfg model.Config, opts Options) (job.Spec, error) {
	if cfg.Paths.ProjectRoot == "" {
		return job.Spec{}, model.ErrNoProjectRoot
	}

	script := filepath.Join(cfg.Paths.ProjectRoot, cfg.Scripts.RunFullPipeline)

	configPath := opts.ConfigPath
	if configPath == "" {
		configPath = "config.json"
	}
	filesPerBatch := opts.FilesPerBatch
	if filesPerBatch == 0 {
		filesPerBatch = cfg.Processing.DefaultFilesPerBatch
	}
	decimate := opts.DecimateRatio
	if decimate == 0 {
		decimate = cfg.Processing.DefaultDecimateRatio
	}

	args := []string{
		"-ExecutionPolicy", "Bypass",
		"-File", script,
		"-ConfigPath", configPath,
		"-FilesPerBatch", strconv.Itoa(filesPerBatch),
		"-DecimateRatio", strconv.FormatFloat(decimate, 'g', -1, 64),
	}
	if opts.SkipBatch {
		args = append(args, "-SkipBatchProcessing")
	}
	if opts.SkipTextures {
		args = append(args, "-SkipTextureConsolidation")
	}
	if opts.OnlyMerge {
		args = append(args, "-OnlyFinalMerge")
	}

	return job.Spec{
		Path: shell(),
		Args: args,
		Dir:  cfg.Paths.ProjectRoot,
	}, nil
}

func shell() string {
	if runtime.GOOS == "windows" {
		return "powershell.exe"
	}
	return "pwsh"
}
