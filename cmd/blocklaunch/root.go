// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/provide-io/blocklaunch/internal/config"
	"github.com/provide-io/blocklaunch/internal/workenv"
	"github.com/provide-io/blocklaunch/pkg/fetch"
	"github.com/provide-io/blocklaunch/pkg/logging"
	"github.com/provide-io/blocklaunch/pkg/manifest"
	"github.com/provide-io/blocklaunch/pkg/pipeline"
	"github.com/provide-io/blocklaunch/pkg/supervisor"
)

var (
	configPath  string
	rootDir     string
	logLevel    string
	javaPath    string
	gameDir     string
	jvmFlags    string
	username    string
	memoryMin   int
	memoryMax   int
	width       int
	height      int
	demo        bool
	concurrency int
	retries     int
	refresh     bool
	skipAssets  bool
	allVersions bool
	forceInit   bool
)

// flagKeys maps command-line flags onto configuration keys.
var flagKeys = map[string]string{
	"root":        "root",
	"log-level":   "log_level",
	"java":        "java_path",
	"game-dir":    "game_dir",
	"jvm-flags":   "jvm_flags",
	"username":    "profile.name",
	"memory-min":  "memory.min_mb",
	"memory-max":  "memory.max_mb",
	"width":       "window.width",
	"height":      "window.height",
	"demo":        "demo",
	"concurrency": "concurrency",
	"retries":     "retries",
}

// app is everything a command needs, built once per invocation.
type app struct {
	cfg      *config.Config
	logger   hclog.Logger
	paths    *workenv.Paths
	catalog  *manifest.CatalogSource
	store    *manifest.Store
	pipeline *pipeline.Pipeline
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "blocklaunch",
		Short:         "Resolve, install and launch game versions",
		Long:          `Resolve version descriptors, install their libraries and assets, and launch the game.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "Path to the configuration file")
	pf.StringVar(&rootDir, "root", "", "Installation root directory")
	pf.StringVar(&logLevel, "log-level", "", "Log level (trace, debug, info, warn, error)")
	pf.IntVar(&concurrency, "concurrency", fetch.DefaultConcurrency, "Maximum simultaneous downloads")
	pf.IntVar(&retries, "retries", fetch.DefaultRetries, "Retries per failed download")

	rootCmd.AddCommand(
		newLaunchCmd(),
		newPrepareCmd(),
		newVersionsCmd(),
		newInfoCmd(),
		newConfigCmd(),
	)
	return rootCmd
}

// addLaunchFlags registers the flags shared by launch and prepare.
func addLaunchFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&javaPath, "java", "", "Java executable")
	f.StringVar(&gameDir, "game-dir", "", "Game working directory (defaults to the root)")
	f.StringVar(&jvmFlags, "jvm-flags", "", "Extra JVM flags, shell-quoted")
	f.StringVarP(&username, "username", "u", "", "Player name")
	f.IntVar(&memoryMin, "memory-min", 0, "Minimum heap in MB")
	f.IntVar(&memoryMax, "memory-max", 0, "Maximum heap in MB")
	f.IntVar(&width, "width", 0, "Window width")
	f.IntVar(&height, "height", 0, "Window height")
	f.BoolVar(&demo, "demo", false, "Launch in demo mode")
	f.BoolVar(&refresh, "refresh", false, "Re-download the version descriptor")
	f.BoolVar(&skipAssets, "skip-assets", false, "Do not install asset objects")
}

// overrides collects the flags the user actually set. Values stay in
// string form; decoding into Config converts them.
func overrides(cmd *cobra.Command) map[string]any {
	out := make(map[string]any)
	for name, key := range flagKeys {
		flag := cmd.Flags().Lookup(name)
		if flag == nil || !flag.Changed {
			continue
		}
		out[key] = flag.Value.String()
	}
	return out
}

// newApp loads configuration and wires the components.
func newApp(ctx context.Context, cmd *cobra.Command) (*app, error) {
	cfg, cfgFile, err := config.Load(ctx, config.LoadOptions{
		ConfigFilePath: configPath,
		Overrides:      overrides(cmd),
	})
	if err != nil {
		return nil, &exitError{code: pipeline.ExitInvalidArgs, err: err}
	}

	level, levelSource := logging.ResolveLevel(logLevel, cfg.LogLevel)
	logger := logging.NewLogger("blocklaunch", level, logging.OpenOutput())
	logger.Debug("🔧 Configuration loaded", "file", cfgFile, "root", cfg.Root, "level", level, "level_source", levelSource)

	paths := workenv.NewPaths(cfg.Root)
	httpClient := &http.Client{Timeout: 5 * time.Minute}

	catalog := manifest.NewCatalogSource(paths,
		manifest.WithHTTPClient(httpClient),
		manifest.WithCatalogURL(cfg.CatalogURL),
		manifest.WithCatalogLogger(logger.Named("catalog")),
	)
	store := manifest.NewStore(paths,
		manifest.WithRemote(catalog),
		manifest.WithLogger(logger.Named("manifest")),
	)
	fetcher := fetch.New(paths,
		fetch.WithHTTPClient(httpClient),
		fetch.WithConcurrency(cfg.Concurrency),
		fetch.WithRetries(cfg.Retries),
		fetch.WithResourcesURL(cfg.ResourcesURL),
		fetch.WithLogger(logger.Named("fetch")),
	)

	return &app{
		cfg:      cfg,
		logger:   logger,
		paths:    paths,
		catalog:  catalog,
		store:    store,
		pipeline: pipeline.New(paths, store, fetcher,
			pipeline.WithLogger(logger),
			pipeline.WithSupervisor(supervisor.New(
				supervisor.NewWriterSink("", cmd.OutOrStdout(), cmd.ErrOrStderr()),
				supervisor.WithLogger(logger.Named("supervisor")),
			)),
		),
	}, nil
}

// request builds the pipeline request for version from configuration.
func (a *app) request(id string) pipeline.Request {
	return pipeline.Request{
		Version:    manifest.VersionID(id),
		Auth:       a.cfg.AuthProvider(),
		Launch:     a.cfg.LaunchContext(version),
		SkipAssets: skipAssets,
	}
}

func (a *app) refresh(ctx context.Context, id string) error {
	if !refresh {
		return nil
	}
	a.logger.Info("🔄 Refreshing version descriptor", "version", id)
	if err := a.store.Refresh(ctx, manifest.VersionID(id)); err != nil {
		return fmt.Errorf("refresh %s: %w", id, err)
	}
	return nil
}
