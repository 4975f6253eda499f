// SPDX-License-Identifier: Apache-2.0

// Package pipeline strings the launch stages together: resolve the
// effective descriptor, materialize a plan, make every artifact available,
// extract natives, build the invocation and supervise the child.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/provide-io/blocklaunch/internal/workenv"
	"github.com/provide-io/blocklaunch/pkg/auth"
	"github.com/provide-io/blocklaunch/pkg/command"
	"github.com/provide-io/blocklaunch/pkg/fetch"
	"github.com/provide-io/blocklaunch/pkg/logging"
	"github.com/provide-io/blocklaunch/pkg/manifest"
	"github.com/provide-io/blocklaunch/pkg/platform"
	"github.com/provide-io/blocklaunch/pkg/resolve"
	"github.com/provide-io/blocklaunch/pkg/supervisor"
)

type (
	// Pipeline runs launches against one installation root.
	Pipeline struct {
		paths      *workenv.Paths
		store      *manifest.Store
		resolver   *resolve.Resolver
		fetcher    *fetch.Fetcher
		builder    *command.Builder
		supervisor *supervisor.Supervisor
		platform   platform.Info
		logger     hclog.Logger
	}

	// Option configures a Pipeline during construction.
	Option func(*Pipeline)

	// Request describes one launch.
	Request struct {
		Version manifest.VersionID
		Auth    auth.Provider
		// Launch carries the caller's launch settings. Paths, Profile and
		// NativesDir are filled in by the pipeline.
		Launch command.LaunchContext
		// SkipAssets leaves asset objects untouched.
		SkipAssets bool
	}

	// Prepared is the result of every stage up to, but excluding, process
	// start.
	Prepared struct {
		Descriptor *manifest.EffectiveDescriptor
		Plan       *resolve.Plan
		Report     *fetch.Report
		Invocation *command.Invocation
		NativesDir string
	}

	// Result is the result of a complete run. Started is false when the
	// launch was aborted before the child existed.
	Result struct {
		Prepared *Prepared
		Started  bool
		Outcome  supervisor.Outcome
		Duration time.Duration
	}
)

// WithLogger sets the logger.
func WithLogger(l hclog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = l
	}
}

// WithPlatform overrides the detected host platform.
func WithPlatform(info platform.Info) Option {
	return func(p *Pipeline) {
		p.platform = info
	}
}

// WithSupervisor sets the supervisor used by Run.
func WithSupervisor(s *supervisor.Supervisor) Option {
	return func(p *Pipeline) {
		p.supervisor = s
	}
}

// New creates a Pipeline over store and fetcher.
func New(paths *workenv.Paths, store *manifest.Store, fetcher *fetch.Fetcher, opts ...Option) *Pipeline {
	p := &Pipeline{
		paths:    paths,
		store:    store,
		fetcher:  fetcher,
		platform: platform.Current(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = logging.OrNull(p.logger)
	p.resolver = resolve.New(paths, p.logger.Named("resolve"))
	p.builder = command.NewBuilder(p.logger.Named("command"))
	if p.supervisor == nil {
		p.supervisor = supervisor.New(supervisor.LoggerSink{Logger: p.logger.Named("game")}, supervisor.WithLogger(p.logger.Named("supervisor")))
	}
	return p
}

// Supervisor returns the supervisor that owns launched children.
func (p *Pipeline) Supervisor() *supervisor.Supervisor {
	return p.supervisor
}

// Resolve returns the effective descriptor and plan for id without
// touching the network for artifacts.
func (p *Pipeline) Resolve(ctx context.Context, id manifest.VersionID) (*manifest.EffectiveDescriptor, *resolve.Plan, error) {
	desc, err := p.store.ResolveEffective(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	plan, err := p.resolver.Materialize(desc, p.platform)
	if err != nil {
		return nil, nil, err
	}
	return desc, plan, nil
}

// Ensure resolves id and makes every artifact of its plan available. A
// failed required artifact yields an *ArtifactsFailedError; the returned
// report is complete either way.
func (p *Pipeline) Ensure(ctx context.Context, id manifest.VersionID, skipAssets bool) (*manifest.EffectiveDescriptor, *resolve.Plan, *fetch.Report, error) {
	desc, plan, err := p.Resolve(ctx, id)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := p.paths.EnsureDirs(); err != nil {
		return desc, plan, nil, fmt.Errorf("%w: %v", fetch.ErrIO, err)
	}

	report := p.fetcher.Ensure(ctx, plan)
	// Artifacts aborted by cancellation are not failures of the version.
	if err := ctx.Err(); err != nil {
		return desc, plan, report, err
	}
	if failures := report.RequiredFailures(); len(failures) > 0 {
		for _, f := range failures {
			p.logger.Error("❌ Required artifact failed", "artifact", f.Artifact.Identity, "path", f.Artifact.Path, "reason", f.Reason.String(), "error", f.Err)
		}
		return desc, plan, report, &ArtifactsFailedError{Report: report}
	}

	if !skipAssets {
		assets, err := p.fetcher.EnsureAssets(ctx, plan)
		if err != nil {
			return desc, plan, report, err
		}
		report.Merge(assets)
	}

	p.logger.Info("📦 Artifacts ready", "version", id,
		"verified", report.Count(fetch.Verified),
		"downloaded", report.Count(fetch.Downloaded),
		"failed", report.Count(fetch.Failed),
		"requests", report.NetworkRequests)
	return desc, plan, report, nil
}

// Prepare runs every stage up to process start. On failure the returned
// Prepared holds whatever stages completed.
func (p *Pipeline) Prepare(ctx context.Context, req Request) (*Prepared, error) {
	prepared := &Prepared{}

	desc, plan, report, err := p.Ensure(ctx, req.Version, req.SkipAssets)
	prepared.Descriptor, prepared.Plan, prepared.Report = desc, plan, report
	if err != nil {
		return prepared, err
	}

	versionID := string(desc.ID)
	if n, err := p.paths.CleanupStaleNatives(versionID, p.logger); err != nil {
		p.logger.Debug("⚠️ Failed to scan natives directories", "version", versionID, "error", err)
	} else if n > 0 {
		p.logger.Debug("🧹 Removed stale natives directories", "count", n)
	}

	nativesDir := p.paths.Natives(versionID, os.Getpid())
	if err := os.RemoveAll(nativesDir); err != nil {
		return prepared, fmt.Errorf("%w: %v", fetch.ErrIO, err)
	}
	if err := fetch.ExtractNatives(plan, nativesDir, p.logger.Named("natives")); err != nil {
		return prepared, err
	}
	prepared.NativesDir = nativesDir

	provider := req.Auth
	if provider == nil {
		provider = auth.Static{Value: req.Launch.Profile}
	}
	profile, err := provider.Profile(ctx)
	if err != nil {
		p.cleanupNatives(nativesDir)
		return prepared, fmt.Errorf("profile: %w", err)
	}

	lctx := req.Launch
	lctx.Paths = p.paths
	lctx.Profile = profile
	lctx.NativesDir = nativesDir
	if lctx.GameDir == "" {
		lctx.GameDir = p.paths.Root()
	}
	if err := os.MkdirAll(lctx.GameDir, workenv.DirPerms); err != nil {
		p.cleanupNatives(nativesDir)
		return prepared, fmt.Errorf("%w: %v", fetch.ErrIO, err)
	}

	inv, err := p.builder.Build(desc, plan, lctx)
	if err != nil {
		p.cleanupNatives(nativesDir)
		return prepared, err
	}
	prepared.Invocation = inv
	p.checkJava(ctx, inv.Executable, desc.JavaVersion)
	return prepared, nil
}

// checkJava warns when the runtime differs from the major version the
// descriptor asks for. The launch goes ahead either way.
func (p *Pipeline) checkJava(ctx context.Context, java string, want *manifest.JavaVersion) {
	if want == nil || want.MajorVersion == 0 {
		return
	}
	got, err := command.JavaMajorVersion(ctx, java)
	if err != nil {
		p.logger.Debug("⚠️ Could not determine Java version", "java", java, "error", err)
		return
	}
	if got != want.MajorVersion {
		p.logger.Warn("☕ Java version differs from the version's requirement",
			"java", java, "detected", got, "required", want.MajorVersion, "component", want.Component)
		return
	}
	p.logger.Debug("✅ Java version matches", "java", java, "major", got)
}

// Run prepares, launches and waits for the child. Cancelling ctx while the
// child runs terminates it. The natives directory is removed once the
// child has exited.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	prepared, err := p.Prepare(ctx, req)
	result := &Result{Prepared: prepared}
	if err != nil {
		return result, err
	}

	h, err := p.supervisor.Launch(ctx, prepared.Invocation)
	if err != nil {
		p.cleanupNatives(prepared.NativesDir)
		return result, err
	}
	result.Started = true

	outcome, err := p.supervisor.Wait(ctx, h)
	if err != nil {
		p.logger.Info("🛑 Launch cancelled, stopping game", "version", req.Version, "pid", h.PID)
		if terr := p.supervisor.Terminate(h); terr != nil {
			// The child may still be using its natives.
			p.logger.Warn("⚠️ Failed to stop game", "pid", h.PID, "error", terr)
			result.Outcome = h.Outcome()
			result.Duration = h.Duration()
			return result, fmt.Errorf("stop game process %d: %w", h.PID, terr)
		}
		outcome = h.Outcome()
	}
	p.cleanupNatives(prepared.NativesDir)
	result.Outcome = outcome
	result.Duration = h.Duration()
	return result, nil
}

func (p *Pipeline) cleanupNatives(dir string) {
	if dir == "" {
		return
	}
	if err := os.RemoveAll(dir); err != nil {
		p.logger.Debug("⚠️ Failed to remove natives directory", "path", dir, "error", err)
		return
	}
	// Drop the version directory too once no launcher uses it.
	_ = os.Remove(filepath.Dir(dir))
}
