// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/provide-io/blocklaunch/internal/config"
	"github.com/provide-io/blocklaunch/pkg/fetch"
	"github.com/provide-io/blocklaunch/pkg/manifest"
	"github.com/provide-io/blocklaunch/pkg/pipeline"
	"github.com/provide-io/blocklaunch/pkg/supervisor"
)

func newLaunchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "launch <version>",
		Short: "Install a version if needed and launch it",
		Args:  cobra.ExactArgs(1),
		RunE:  runLaunch,
	}
	addLaunchFlags(cmd)
	return cmd
}

func runLaunch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	if err := a.refresh(ctx, args[0]); err != nil {
		return abort(ctx, cmd, err, nil)
	}

	defer a.pipeline.Supervisor().TerminateAll()

	result, err := a.pipeline.Run(ctx, a.request(args[0]))
	if err != nil {
		var report *fetch.Report
		if result != nil && result.Prepared != nil {
			report = result.Prepared.Report
		}
		return abort(ctx, cmd, err, report)
	}

	fmt.Fprintln(cmd.ErrOrStderr(), renderOutcome(args[0], result))
	code := pipeline.ExitCodeFor(result.Outcome, nil)
	if code != 0 {
		return &exitError{code: code}
	}
	return nil
}

func newPrepareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prepare <version>",
		Short: "Install every artifact of a version without launching it",
		Args:  cobra.ExactArgs(1),
		RunE:  runPrepare,
	}
	addLaunchFlags(cmd)
	return cmd
}

func runPrepare(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	if err := a.refresh(ctx, args[0]); err != nil {
		return abort(ctx, cmd, err, nil)
	}

	_, _, report, err := a.pipeline.Ensure(ctx, manifest.VersionID(args[0]), skipAssets)
	if err != nil {
		return abort(ctx, cmd, err, report)
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderReport(report))
	return nil
}

func newVersionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "versions",
		Short: "List versions published in the catalog",
		Args:  cobra.NoArgs,
		RunE:  runVersions,
	}
	cmd.Flags().BoolVar(&allVersions, "all", false, "Include snapshots and historical versions")
	return cmd
}

func runVersions(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	catalog, err := a.catalog.Catalog(ctx)
	if err != nil {
		return &exitError{code: pipeline.ExitLaunchFailed, err: err}
	}
	entries := manifest.FilterReleases(catalog.Versions, allVersions)
	installed := func(id manifest.VersionID) bool {
		_, err := os.Stat(a.paths.VersionJSON(string(id)))
		return err == nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderVersions(catalog.Latest, entries, installed))
	return nil
}

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <version>",
		Short: "Print the effective descriptor of a version as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  runInfo,
	}
}

func runInfo(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	desc, err := a.store.ResolveEffective(ctx, manifest.VersionID(args[0]))
	if err != nil {
		return &exitError{code: pipeline.ExitCodeFor(supervisor.Outcome{}, err), err: err}
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(desc)
}

func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a configuration file with the default settings",
		Args:  cobra.NoArgs,
		RunE:  runConfigInit,
	}
	initCmd.Flags().BoolVar(&forceInit, "force", false, "Overwrite an existing file")
	configCmd.AddCommand(initCmd)
	return configCmd
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configPath
	if path == "" {
		var err error
		if path, err = config.DefaultPath(); err != nil {
			return err
		}
	}
	cfg := config.DefaultConfig()
	if rootDir != "" {
		cfg.Root = rootDir
	}
	if err := config.WriteTemplate(path, cfg, forceInit); err != nil {
		if errors.Is(err, config.ErrConfigExists) {
			return &exitError{code: pipeline.ExitInvalidArgs, err: fmt.Errorf("%w (use --force to overwrite)", err)}
		}
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
	return nil
}

// abort prints a preparation failure and converts it to an exit code. An
// interrupted run reports the interruption, whatever stage it broke.
func abort(ctx context.Context, cmd *cobra.Command, err error, report *fetch.Report) error {
	if errors.Is(err, context.Canceled) || ctx.Err() != nil {
		return &exitError{code: pipeline.ExitLaunchFailed, err: errors.New("interrupted")}
	}
	fmt.Fprintln(cmd.ErrOrStderr(), renderAborted(err, report))
	return &exitError{code: pipeline.ExitCodeFor(supervisor.Outcome{}, err)}
}
