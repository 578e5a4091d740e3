package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"time"

	"github.com/spf13/cobra"

	"github.com/mesh-tools/pipeman/internal/console"
	"github.com/mesh-tools/pipeman/internal/job"
	"github.com/mesh-tools/pipeman/internal/log"
	"github.com/mesh-tools/pipeman/internal/model"
	"github.com/mesh-tools/pipeman/internal/monitor"
	"github.com/mesh-tools/pipeman/internal/pipeline"
)

var (
	userConfigPath string // default config directory for pipeman on given OS
	configPath     string // actual config file used
	config         model.Config

	flagConfigFilePath string // value of --config flag
	flagVerbose        bool   // value of --verbose flag

	// run flags
	flagPreset        string
	flagFilesPerBatch int
	flagDecimateRatio float64
	flagSkipBatch     bool
	flagSkipTextures  bool
	flagOnlyMerge     bool
	flagSaveLog       string

	// monitor flags
	flagMonitorDir      string
	flagMonitorWatch    bool
	flagMonitorInterval time.Duration
)

func init() {
	d, err := os.UserConfigDir()
	if err != nil {
		panic(err)
	}
	userConfigPath = filepath.Join(d, "pipeman")
}

func main() {
	rootCmd.PersistentFlags().StringVar(&flagConfigFilePath, "config", "", "Config file to load - default is config.json in current directory or in "+userConfigPath)
	rootCmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "verbose logging")

	rootCmd.SilenceErrors = true
	rootCmd.PersistentPreRunE = initPipeman

	runCmd.Flags().StringVar(&flagPreset, "preset", "", "quality preset to apply for this run")
	runCmd.Flags().IntVar(&flagFilesPerBatch, "files-per-batch", 0, "override files per batch (0 = config default)")
	runCmd.Flags().Float64Var(&flagDecimateRatio, "decimate-ratio", 0, "override decimate ratio (0 = config default)")
	runCmd.Flags().BoolVar(&flagSkipBatch, "skip-batch", false, "skip the batch processing stage")
	runCmd.Flags().BoolVar(&flagSkipTextures, "skip-textures", false, "skip the texture consolidation stage")
	runCmd.Flags().BoolVar(&flagOnlyMerge, "only-merge", false, "run only the final merge stage")
	runCmd.Flags().StringVar(&flagSaveLog, "save-log", "", "also write the run log to this file")

	monitorCmd.Flags().StringVar(&flagMonitorDir, "dir", "", "folder to inspect - default is the configured merged output")
	monitorCmd.Flags().BoolVar(&flagMonitorWatch, "watch", false, "keep watching the folder for changes")
	monitorCmd.Flags().DurationVar(&flagMonitorInterval, "interval", 3*time.Second, "minimum delay between refreshes while watching")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(monitorCmd)
	rootCmd.AddCommand(presetsCmd)
	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		slog.Error("pipeman failed", "err", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "pipeman",
	Short:        "Configure, launch and watch the 3D-asset batch-conversion pipeline",
	SilenceUsage: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "run launches the conversion pipeline and streams its output",
	RunE:  doRun,
}

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "monitor lists the pipeline output folder, optionally watching for changes",
	RunE:  doMonitor,
}

var presetsCmd = &cobra.Command{
	Use:   "presets",
	Short: "presets lists the configured quality presets",
	RunE:  doPresets,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "version provides version of pipeman",
	Run: func(cmd *cobra.Command, args []string) {
		info, ok := debug.ReadBuildInfo()
		if !ok {
			fmt.Println("pipeman: version info not available")
			return
		}
		if configPath != "" {
			fmt.Printf("config:  %s\n", configPath)
		}
		fmt.Printf("pipeman: %s\n", info.Main.Version)
		fmt.Printf("go:      %s\n", info.GoVersion)
		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.revision":
				fmt.Printf("commit:  %s\n", s.Value)
			case "vcs.time":
				fmt.Printf("date:    %s\n", s.Value)
			case "vcs.modified":
				fmt.Printf("dirty:   %s\n", s.Value)
			}
		}
		fmt.Println()
	},
}

func doRun(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	attrs := slog.Group("pipeman",
		slog.String("cmd", "run"),
		slog.Int("pid", os.Getpid()),
	)
	ctx = log.ContextAttrs(ctx, attrs)

	cfg := config
	if flagPreset != "" {
		if err := cfg.ApplyPreset(flagPreset); err != nil {
			return err
		}
	}

	spec, err := pipeline.Command(cfg, pipeline.Options{
		ConfigPath:    configPath,
		FilesPerBatch: flagFilesPerBatch,
		DecimateRatio: flagDecimateRatio,
		SkipBatch:     flagSkipBatch,
		SkipTextures:  flagSkipTextures,
		OnlyMerge:     flagOnlyMerge,
	})
	if err != nil {
		return err
	}

	cons := console.New(job.NewController(), os.Stdout)
	if flagSaveLog != "" {
		f, err := os.Create(flagSaveLog)
		if err != nil {
			return fmt.Errorf("creating log file: %w", err)
		}
		defer func() {
			_ = f.Close()
		}()
		cons = cons.WithCapture(f)
	}

	// Ctrl-C requests cancellation; the console still drains until the
	// process tree is confirmed gone.
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt)
	defer cancel()

	state, err := cons.Run(ctx, spec)
	if err != nil {
		return err
	}
	if state.Phase == job.Failed {
		return fmt.Errorf("pipeline failed with exit code %d", state.ExitCode)
	}
	return nil
}

func doMonitor(cmd *cobra.Command, args []string) error {
	dir := flagMonitorDir
	if dir == "" {
		dir = filepath.Join(config.Paths.ProjectRoot, config.Folders.MergedOutput)
	}

	render := func(entries []monitor.Entry, stats monitor.Stats) {
		fmt.Printf("%-40s %12s %-20s %s\n", "NAME", "SIZE", "MODIFIED", "TYPE")
		for _, e := range entries {
			fmt.Printf("%-40s %12s %-20s %s\n",
				e.Name, formatSize(e.Size), e.ModTime.Format("2006-01-02 15:04:05"), e.Category)
		}
		fmt.Printf("total %d files (%d fbx, %d logs, %d errors), %s\n",
			stats.Total, stats.FBX, stats.Logs, stats.Errors, formatSize(stats.TotalSize))
	}

	if !flagMonitorWatch {
		entries, stats, err := monitor.List(dir)
		if err != nil {
			return err
		}
		render(entries, stats)
		return nil
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer cancel()
	return monitor.Watch(ctx, dir, flagMonitorInterval, render)
}

func doPresets(cmd *cobra.Command, args []string) error {
	fmt.Printf("%-12s %14s %16s %12s\n", "PRESET", "DECIMATE", "FILES PER BATCH", "NORMAL MAP")
	for _, name := range config.PresetNames() {
		p := config.Quality.Presets[name]
		fmt.Printf("%-12s %14.2f %16d %12d\n",
			name, p.DecimateRatio, p.FilesPerBatch, p.NormalMapResolution)
	}
	return nil
}

func initPipeman(cmd *cobra.Command, _ []string) error {
	if envConfig, ok := os.LookupEnv("PIPEMANCONFIG"); ok {
		configPath = envConfig
	} else if flagConfigFilePath != "" {
		configPath = flagConfigFilePath
	} else {
		for _, d := range []string{".", userConfigPath} {
			path := filepath.Join(d, "config.json")
			if exists(path) {
				configPath = path
				break
			}
		}
	}

	// store default configuration
	if configPath == "" {
		config = model.Default()
		configPath = filepath.Join(userConfigPath, "config.json")
		err := os.MkdirAll(filepath.Dir(configPath), 0755)
		if err != nil {
			return fmt.Errorf("creating directory %s: %w", filepath.Dir(configPath), err)
		}
		f, err := os.Create(configPath)
		if err != nil {
			return fmt.Errorf("creating file %s: %w", configPath, err)
		}
		defer func() {
			_ = f.Close()
		}()
		if err := config.Save(f); err != nil {
			return fmt.Errorf("storing configuration: %w", err)
		}
	} else {
		f, err := os.Open(configPath)
		if err != nil {
			return fmt.Errorf("opening config file: %w", err)
		}
		defer func() {
			_ = f.Close()
		}()
		config, err = model.Load(f)
		if err != nil {
			return err
		}
	}

	// either the flag or the config file enables debug logging
	verbose := flagVerbose
	if config.Options.VerboseLogging != nil && *config.Options.VerboseLogging {
		verbose = true
	}
	slog.SetDefault(log.New(verbose))

	slog.Debug("pipeman run", "configPath", configPath)
	return nil
}

func exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
