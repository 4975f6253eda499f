// SPDX-License-Identifier: Apache-2.0

package fetch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/provide-io/blocklaunch/internal/testutil"
	"github.com/provide-io/blocklaunch/internal/workenv"
	"github.com/provide-io/blocklaunch/pkg/manifest"
	"github.com/provide-io/blocklaunch/pkg/platform"
	"github.com/provide-io/blocklaunch/pkg/resolve"
)

func testLogger() hclog.Logger {
	return hclog.New(&hclog.LoggerOptions{Name: "fetch_test", Level: hclog.Trace})
}

func fixturePlan(t *testing.T, f *testutil.Fixture, paths *workenv.Paths) *resolve.Plan {
	t.Helper()
	src := manifest.MapSource{}
	for id, doc := range f.Documents {
		src[manifest.VersionID(id)] = doc
	}
	eff, err := manifest.NewStore(paths, manifest.WithRemote(src)).ResolveEffective(context.Background(), testutil.ChildID)
	if err != nil {
		t.Fatal(err)
	}
	plan, err := resolve.New(paths, nil).Materialize(eff, platform.Info{OS: platform.OSLinux, Arch: "x86_64"})
	if err != nil {
		t.Fatal(err)
	}
	return plan
}

func newTestFetcher(paths *workenv.Paths, f *testutil.Fixture, opts ...Option) *Fetcher {
	base := []Option{
		WithHTTPClient(f.Server.Client()),
		WithInitialBackoff(time.Millisecond),
		WithResourcesURL(f.ResourcesURL()),
		WithLogger(testLogger()),
	}
	return New(paths, append(base, opts...)...)
}

func TestEnsureIsIdempotent(t *testing.T) {
	f := testutil.NewFixture(t)
	paths := workenv.NewPaths(t.TempDir())
	plan := fixturePlan(t, f, paths)
	fetcher := newTestFetcher(paths, f)

	first := fetcher.Ensure(context.Background(), plan)
	if len(first.Failures()) != 0 {
		t.Fatalf("first run failures: %+v", first.Failures())
	}
	if first.Count(Downloaded) != len(plan.Artifacts()) {
		t.Errorf("downloaded %d of %d", first.Count(Downloaded), len(plan.Artifacts()))
	}

	before := f.Server.Requests()
	second := fetcher.Ensure(context.Background(), plan)
	if second.NetworkRequests != 0 || f.Server.Requests() != before {
		t.Errorf("second run made %d requests (server saw %d)", second.NetworkRequests, f.Server.Requests()-before)
	}
	if !second.AllVerified() {
		t.Errorf("second run not all verified: %+v", second.Results)
	}
}

func TestEnsureRedownloadsCorruptArtifact(t *testing.T) {
	f := testutil.NewFixture(t)
	paths := workenv.NewPaths(t.TempDir())
	plan := fixturePlan(t, f, paths)
	fetcher := newTestFetcher(paths, f)

	if r := fetcher.Ensure(context.Background(), plan); len(r.Failures()) != 0 {
		t.Fatalf("setup failures: %+v", r.Failures())
	}

	target := paths.Library(testutil.LWJGLPath)
	if err := os.WriteFile(target, []byte("tampered"), 0o644); err != nil {
		t.Fatal(err)
	}
	state, err := fetcher.Inspect(plan.Libraries[0])
	if err != nil || state != resolve.Corrupt {
		t.Fatalf("Inspect = %v, %v; want corrupt", state, err)
	}

	hitsBefore := f.Server.Hits("/maven/" + testutil.LWJGLPath)
	report := fetcher.Ensure(context.Background(), plan)

	if report.Results[0].Outcome != Downloaded {
		t.Errorf("lwjgl outcome = %s, want downloaded", report.Results[0].Outcome)
	}
	if report.NetworkRequests != 1 || f.Server.Hits("/maven/"+testutil.LWJGLPath) != hitsBefore+1 {
		t.Errorf("expected exactly one re-download, report counted %d", report.NetworkRequests)
	}
	data, _ := os.ReadFile(target)
	if string(data) != string(f.LWJGL) {
		t.Errorf("content = %q after repair", data)
	}
}

func TestEnsureRequiredFailureAfterRetries(t *testing.T) {
	f := testutil.NewFixture(t)
	paths := workenv.NewPaths(t.TempDir())
	plan := fixturePlan(t, f, paths)
	f.Server.Fail("/maven/"+testutil.LWJGLPath, 503)

	report := newTestFetcher(paths, f, WithRetries(2)).Ensure(context.Background(), plan)

	failures := report.RequiredFailures()
	if len(failures) != 1 {
		t.Fatalf("required failures = %+v", failures)
	}
	res := failures[0]
	if res.Artifact.Identity != "org.lwjgl:lwjgl" || res.Reason != ReasonDownloadError || !errors.Is(res.Err, ErrDownload) {
		t.Errorf("failure = %+v", res)
	}
	if res.Attempts != 3 || f.Server.Hits("/maven/"+testutil.LWJGLPath) != 3 {
		t.Errorf("attempts = %d, hits = %d; want 3", res.Attempts, f.Server.Hits("/maven/"+testutil.LWJGLPath))
	}
	assertNoPartialFiles(t, filepath.Dir(paths.Library(testutil.LWJGLPath)))
	if _, err := os.Stat(paths.Library(testutil.LWJGLPath)); !os.IsNotExist(err) {
		t.Error("failed artifact exists at final path")
	}
}

func TestEnsureClientErrorIsNotRetried(t *testing.T) {
	f := testutil.NewFixture(t)
	paths := workenv.NewPaths(t.TempDir())
	plan := fixturePlan(t, f, paths)
	f.Server.Fail(testutil.ClientPath, 404)

	report := newTestFetcher(paths, f).Ensure(context.Background(), plan)
	failures := report.RequiredFailures()
	if len(failures) != 1 || failures[0].Artifact.Kind != resolve.KindClient {
		t.Fatalf("failures = %+v", failures)
	}
	if failures[0].Attempts != 1 {
		t.Errorf("attempts = %d, 404 must not be retried", failures[0].Attempts)
	}
}

func TestEnsureChecksumMismatchAfterDownload(t *testing.T) {
	f := testutil.NewFixture(t)
	paths := workenv.NewPaths(t.TempDir())
	url := f.Server.Put("/bad.jar", []byte("not what was promised"))

	a := resolve.Artifact{
		Identity: "g:bad",
		Path:     filepath.Join(paths.Libraries(), "bad.jar"),
		URL:      url,
		Checksum: "sha1:" + testutil.SHA1Hex([]byte("the real thing")),
		Required: true,
	}
	report := newTestFetcher(paths, f, WithRetries(1)).EnsureArtifacts(context.Background(), []resolve.Artifact{a})

	res := report.Results[0]
	if res.Outcome != Failed || res.Reason != ReasonChecksumMismatch || res.Attempts != 2 {
		t.Errorf("result = %+v", res)
	}
	var ce *ChecksumError
	if !errors.As(res.Err, &ce) {
		t.Errorf("error %v is not a *ChecksumError", res.Err)
	}
	assertNoPartialFiles(t, paths.Libraries())
}

func TestEnsureSharedPathFetchedOnce(t *testing.T) {
	f := testutil.NewFixture(t)
	paths := workenv.NewPaths(t.TempDir())
	url := f.Server.Put("/shared.jar", []byte("shared"))

	a := resolve.Artifact{Identity: "a", Path: filepath.Join(paths.Libraries(), "shared.jar"), URL: url, Checksum: "sha1:" + testutil.SHA1Hex([]byte("shared"))}
	b := a
	b.Identity = "b"

	report := newTestFetcher(paths, f).EnsureArtifacts(context.Background(), []resolve.Artifact{a, b})
	if report.NetworkRequests != 1 {
		t.Errorf("requests = %d, want 1", report.NetworkRequests)
	}
	if report.Results[1].Artifact.Identity != "b" || report.Results[1].Outcome != Downloaded {
		t.Errorf("second result = %+v", report.Results[1])
	}
}

func TestEnsureCancelled(t *testing.T) {
	f := testutil.NewFixture(t)
	paths := workenv.NewPaths(t.TempDir())
	plan := fixturePlan(t, f, paths)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report := newTestFetcher(paths, f).Ensure(ctx, plan)
	if len(report.RequiredFailures()) != len(plan.Artifacts()) {
		t.Errorf("cancelled run should fail every artifact: %+v", report.Results)
	}
	for _, a := range plan.Artifacts() {
		if _, err := os.Stat(a.Path); !os.IsNotExist(err) {
			t.Errorf("%s promoted despite cancellation", a.Path)
		}
	}
}

func TestParseChecksum(t *testing.T) {
	tests := []struct {
		in      string
		algo    Algorithm
		value   string
		wantErr bool
	}{
		{"sha1:ABCDEF", SHA1, "abcdef", false},
		{"sha256:00ff", SHA256, "00ff", false},
		{"sha512:11", SHA512, "11", false},
		{strings.Repeat("a", 40), SHA1, strings.Repeat("a", 40), false},
		{strings.Repeat("b", 64), SHA256, strings.Repeat("b", 64), false},
		{strings.Repeat("c", 128), SHA512, strings.Repeat("c", 128), false},
		{"md5:abc", SHA1, "", true},
		{"sha1:", SHA1, "", true},
		{"abc", SHA1, "", true},
	}
	for _, tt := range tests {
		algo, value, err := ParseChecksum(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseChecksum(%q) err = %v", tt.in, err)
			continue
		}
		if !tt.wantErr && (algo != tt.algo || value != tt.value) {
			t.Errorf("ParseChecksum(%q) = %s %s", tt.in, algo, value)
		}
	}
}

func assertNoPartialFiles(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".part") {
			t.Errorf("partial file left behind: %s", e.Name())
		}
	}
}
