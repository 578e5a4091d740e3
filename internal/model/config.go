// Package model holds the pipeline configuration tree. The file format
// is JSON because the same config.json is consumed by the external
// conversion scripts; pipeman only edits and forwards it.
package model

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
)

// Config mirrors config.json. Optional booleans are pointers so an
// explicit false in a user file is distinguishable from an absent key.
type Config struct {
	Paths        Paths        `json:"paths"`
	Folders      Folders      `json:"folders"`
	Scripts      Scripts      `json:"scripts"`
	Output       Output       `json:"output"`
	Processing   Processing   `json:"processing"`
	Optimization Optimization `json:"optimization"`
	Options      Options      `json:"options"`
	Quality      Quality      `json:"quality"`
}

type Paths struct {
	ProjectRoot       string `json:"projectRoot"`
	BlenderExecutable string `json:"blenderExecutable"`
}

type Folders struct {
	GltfExport       string `json:"gltfExport"`
	ModelLib         string `json:"modelLib"`
	ModelLibTextures string `json:"modelLibTextures"`
	BatchFbxOutput   string `json:"batchFbxOutput"`
	MergedOutput     string `json:"mergedOutput"`
}

type Scripts struct {
	MergeGltfBatchOptimized string `json:"mergeGltfBatchOptimized"`
	MergeFinalFbx           string `json:"mergeFinalFbx"`
	ProcessGltfParallel     string `json:"processGltfParallel"`
	RunFullPipeline         string `json:"runFullPipeline"`
}

type Output struct {
	MergedFbxName string `json:"mergedFbxName"`
}

type Processing struct {
	MaxParallelBlenderInstances int     `json:"maxParallelBlenderInstances"`
	ProcessCheckIntervalMs      int     `json:"processCheckIntervalMs"`
	DefaultFilesPerBatch        int     `json:"defaultFilesPerBatch"`
	DefaultDecimateRatio        float64 `json:"defaultDecimateRatio"`
	CleanupSubfolders           *bool   `json:"cleanupSubfolders,omitempty"`
}

type Optimization struct {
	EnableDecimation    *bool   `json:"enableDecimation,omitempty"`
	EnableNormalBaking  *bool   `json:"enableNormalBaking,omitempty"`
	NormalMapResolution int     `json:"normalMapResolution"`
	BakeCageExtrusion   float64 `json:"bakeCageExtrusion"`
	BakeMaxRayDistance  float64 `json:"bakeMaxRayDistance"`
}

type Options struct {
	CleanOutputFolders      *bool `json:"cleanOutputFolders,omitempty"`
	VerboseLogging          *bool `json:"verboseLogging,omitempty"`
	SaveBatchLogs           *bool `json:"saveBatchLogs,omitempty"`
	RemoveHighPolyAfterBake *bool `json:"removeHighPolyAfterBake,omitempty"`
}

type Quality struct {
	Presets map[string]Preset `json:"presets"`
}

// Preset is one named quality tradeoff between mesh fidelity and batch
// throughput.
type Preset struct {
	DecimateRatio       float64 `json:"decimateRatio"`
	FilesPerBatch       int     `json:"filesPerBatch"`
	NormalMapResolution int     `json:"normalMapResolution"`
}

func boolPtr(b bool) *bool { return &b }

// Default returns the built-in configuration template.
func Default() Config {
	return Config{
		Paths: Paths{
			ProjectRoot:       `D:\Projects\google_earth_export\`,
			BlenderExecutable: `D:\Program Files\Blender 5.0\blender.exe`,
		},
		Folders: Folders{
			GltfExport:       "gltf_export",
			ModelLib:         `gltf_export\modelLib`,
			ModelLibTextures: `gltf_export\modelLib\texture`,
			BatchFbxOutput:   `gltf_export\batch_fbx`,
			MergedOutput:     `gltf_export\merged`,
		},
		Scripts: Scripts{
			MergeGltfBatchOptimized: "merge_gltf_batch_optimized.py",
			MergeFinalFbx:           "merge_final_fbx.py",
			ProcessGltfParallel:     "process_gltf_parallel.ps1",
			RunFullPipeline:         "run_full_pipeline.ps1",
		},
		Output: Output{
			MergedFbxName: "merged.fbx",
		},
		Processing: Processing{
			MaxParallelBlenderInstances: 32,
			ProcessCheckIntervalMs:      200,
			DefaultFilesPerBatch:        10,
			DefaultDecimateRatio:        0.5,
			CleanupSubfolders:           boolPtr(true),
		},
		Optimization: Optimization{
			EnableDecimation:    boolPtr(true),
			EnableNormalBaking:  boolPtr(true),
			NormalMapResolution: 2048,
			BakeCageExtrusion:   0.1,
			BakeMaxRayDistance:  1.0,
		},
		Options: Options{
			CleanOutputFolders:      boolPtr(false),
			VerboseLogging:          boolPtr(true),
			SaveBatchLogs:           boolPtr(true),
			RemoveHighPolyAfterBake: boolPtr(true),
		},
		Quality: Quality{
			Presets: map[string]Preset{
				"ultra_high": {DecimateRatio: 0.9, FilesPerBatch: 5, NormalMapResolution: 4096},
				"high":       {DecimateRatio: 0.7, FilesPerBatch: 10, NormalMapResolution: 2048},
				"medium":     {DecimateRatio: 0.5, FilesPerBatch: 15, NormalMapResolution: 2048},
				"low":        {DecimateRatio: 0.3, FilesPerBatch: 20, NormalMapResolution: 1024},
				"very_low":   {DecimateRatio: 0.1, FilesPerBatch: 50, NormalMapResolution: 512},
			},
		},
	}
}

// Load decodes a user config over the defaults, so a partial file only
// has to name the keys it changes. Decoding into a pre-populated value
// keeps every key the file does not mention, lets an explicit false
// override a default true, and merges the preset map key-wise.
func Load(r io.Reader) (Config, error) {
	cfg := Default()
	dec := json.NewDecoder(r)
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// Save writes the configuration as indented JSON, the format the
// external pipeline scripts read.
func (c Config) Save(w io.Writer) error {
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	b = append(b, '\n')
	if _, err := w.Write(b); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// ApplyPreset copies a named quality preset into the processing and
// optimization sections.
func (c *Config) ApplyPreset(name string) error {
	p, ok := c.Quality.Presets[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownPreset, name)
	}
	c.Processing.DefaultDecimateRatio = p.DecimateRatio
	c.Processing.DefaultFilesPerBatch = p.FilesPerBatch
	c.Optimization.NormalMapResolution = p.NormalMapResolution
	return nil
}

// PresetNames returns the configured preset names, sorted.
func (c Config) PresetNames() []string {
	names := make([]string, 0, len(c.Quality.Presets))
	for name := range c.Quality.Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
