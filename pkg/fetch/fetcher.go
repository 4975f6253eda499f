// SPDX-License-Identifier: Apache-2.0

// Package fetch verifies planned artifacts on disk and downloads the ones
// that are missing or corrupt. Per-artifact failures are collected into a
// Report rather than aborting the run.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/go-hclog"
	"golang.org/x/sync/errgroup"

	"github.com/provide-io/blocklaunch/internal/workenv"
	"github.com/provide-io/blocklaunch/pkg/logging"
	"github.com/provide-io/blocklaunch/pkg/resolve"
)

const (
	// DefaultConcurrency bounds simultaneous transfers.
	DefaultConcurrency = 6

	// DefaultRetries is the number of retries after a failed first attempt.
	DefaultRetries = 3

	defaultInitialBackoff = 500 * time.Millisecond
	defaultMaxBackoff     = 10 * time.Second
)

type (
	// Fetcher ensures artifacts are present and verified under one root.
	Fetcher struct {
		paths          *workenv.Paths
		httpClient     *http.Client
		logger         hclog.Logger
		concurrency    int
		retries        int
		initialBackoff time.Duration
		resourcesURL   string
	}

	// Option configures a Fetcher during construction.
	Option func(*Fetcher)

	// run holds the state of one Ensure call.
	run struct {
		requests atomic.Int64
	}
)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) {
		f.httpClient = c
	}
}

// WithConcurrency sets the transfer pool size. Values below 1 are ignored.
func WithConcurrency(n int) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.concurrency = n
		}
	}
}

// WithRetries sets the retry budget per artifact. Negative values are ignored.
func WithRetries(n int) Option {
	return func(f *Fetcher) {
		if n >= 0 {
			f.retries = n
		}
	}
}

// WithInitialBackoff sets the first retry delay.
func WithInitialBackoff(d time.Duration) Option {
	return func(f *Fetcher) {
		f.initialBackoff = d
	}
}

// WithResourcesURL overrides the asset object host.
func WithResourcesURL(u string) Option {
	return func(f *Fetcher) {
		f.resourcesURL = u
	}
}

// WithLogger sets the logger.
func WithLogger(l hclog.Logger) Option {
	return func(f *Fetcher) {
		f.logger = l
	}
}

// New creates a Fetcher with defaults: 6 concurrent transfers, 3 retries.
func New(paths *workenv.Paths, opts ...Option) *Fetcher {
	f := &Fetcher{
		paths:          paths,
		httpClient:     http.DefaultClient,
		concurrency:    DefaultConcurrency,
		retries:        DefaultRetries,
		initialBackoff: defaultInitialBackoff,
		resourcesURL:   DefaultResourcesURL,
	}
	for _, opt := range opts {
		opt(f)
	}
	f.logger = logging.OrNull(f.logger)
	return f
}

// Ensure verifies or downloads every artifact of plan. It returns only after
// every artifact has reached a final outcome.
func (f *Fetcher) Ensure(ctx context.Context, plan *resolve.Plan) *Report {
	return f.EnsureArtifacts(ctx, plan.Artifacts())
}

// EnsureArtifacts is Ensure over an explicit artifact list. Artifacts that
// share a final path are processed once and reported individually.
func (f *Fetcher) EnsureArtifacts(ctx context.Context, artifacts []resolve.Artifact) *Report {
	r := &run{}
	results := make([]Result, len(artifacts))

	owner := make(map[string]int, len(artifacts))
	var unique []int
	for i, a := range artifacts {
		if _, ok := owner[a.Path]; ok {
			continue
		}
		owner[a.Path] = i
		unique = append(unique, i)
	}

	f.checkDiskSpace(artifacts, unique)

	var g errgroup.Group
	g.SetLimit(f.concurrency)
	for _, i := range unique {
		g.Go(func() error {
			results[i] = f.ensureOne(ctx, r, artifacts[i])
			return nil
		})
	}
	_ = g.Wait()

	for i, a := range artifacts {
		if j := owner[a.Path]; j != i {
			res := results[j]
			res.Artifact = a
			results[i] = res
		}
	}

	report := &Report{Results: results, NetworkRequests: r.requests.Load()}
	f.logger.Info("📦 Artifacts ensured",
		"total", len(results),
		"verified", report.Count(Verified),
		"downloaded", report.Count(Downloaded),
		"failed", report.Count(Failed),
		"requests", report.NetworkRequests)
	return report
}

// Inspect reports the on-disk state of a. Errors other than a missing file
// or a checksum mismatch are returned as ErrIO.
func (f *Fetcher) Inspect(a resolve.Artifact) (resolve.State, error) {
	info, err := os.Stat(a.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return resolve.Missing, nil
		}
		return resolve.Unverified, fmt.Errorf("%w: %v", ErrIO, err)
	}
	if info.IsDir() {
		return resolve.Corrupt, nil
	}

	if a.Checksum == "" {
		if a.Size > 0 && info.Size() != a.Size {
			return resolve.Corrupt, nil
		}
		return resolve.Verified, nil
	}

	if err := VerifyFile(a.Path, a.Checksum); err != nil {
		if errors.Is(err, ErrChecksumMismatch) {
			return resolve.Corrupt, nil
		}
		return resolve.Unverified, fmt.Errorf("%w: %v", ErrIO, err)
	}
	return resolve.Verified, nil
}

func (f *Fetcher) ensureOne(ctx context.Context, r *run, a resolve.Artifact) Result {
	state, err := f.Inspect(a)
	a.State = state
	if err != nil {
		f.logger.Warn("❌ Cannot inspect artifact", "artifact", a.Identity, "path", a.Path, "error", err)
		return Result{Artifact: a, Outcome: Failed, Reason: ReasonIOError, Err: err}
	}
	if state == resolve.Verified {
		f.logger.Trace("✅ Artifact verified", "artifact", a.Identity)
		return Result{Artifact: a, Outcome: Verified}
	}

	if state == resolve.Corrupt {
		f.logger.Info("🔁 Artifact corrupt, downloading again", "artifact", a.Identity, "path", a.Path)
	}
	if a.URL == "" {
		err := fmt.Errorf("%w: %s is %s and has no download url", ErrDownload, a.Identity, state)
		return Result{Artifact: a, Outcome: Failed, Reason: ReasonDownloadError, Err: err}
	}

	attempts := 0
	op := func() error {
		attempts++
		err := f.download(ctx, r, a)
		if err == nil {
			return nil
		}
		var se *statusError
		if errors.Is(err, ErrIO) || (errors.As(err, &se) && se.permanent()) || ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		f.logger.Debug("⏳ Retrying artifact download", "artifact", a.Identity, "attempt", attempts, "wait", wait, "error", err)
	}

	if err := backoff.RetryNotify(op, f.newBackOff(ctx), notify); err != nil {
		f.logger.Warn("❌ Artifact failed", "artifact", a.Identity, "url", a.URL, "attempts", attempts, "error", err)
		return Result{Artifact: a, Outcome: Failed, Reason: reasonFor(err), Err: err, Attempts: attempts}
	}

	a.State = resolve.Verified
	f.logger.Debug("⬇️ Artifact downloaded", "artifact", a.Identity, "attempts", attempts)
	return Result{Artifact: a, Outcome: Downloaded, Attempts: attempts}
}

func (f *Fetcher) newBackOff(ctx context.Context) backoff.BackOff {
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = f.initialBackoff
	expo.MaxInterval = defaultMaxBackoff
	expo.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(expo, uint64(f.retries)), ctx)
}
