// SPDX-License-Identifier: Apache-2.0

package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/provide-io/blocklaunch/internal/testutil"
	"github.com/provide-io/blocklaunch/internal/workenv"
	"github.com/provide-io/blocklaunch/pkg/manifest"
	"github.com/provide-io/blocklaunch/pkg/resolve"
)

func TestEnsureAssets(t *testing.T) {
	f := testutil.NewFixture(t)
	paths := workenv.NewPaths(t.TempDir())
	plan := fixturePlan(t, f, paths)
	fetcher := newTestFetcher(paths, f)

	if r := fetcher.Ensure(context.Background(), plan); len(r.Failures()) != 0 {
		t.Fatalf("setup: %+v", r.Failures())
	}

	report, err := fetcher.EnsureAssets(context.Background(), plan)
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Results) != 1 || report.Results[0].Outcome != Downloaded {
		t.Fatalf("asset results = %+v", report.Results)
	}
	hash := testutil.SHA1Hex(f.Icon)
	if _, err := os.Stat(paths.AssetObject(hash)); err != nil {
		t.Errorf("asset object missing: %v", err)
	}
	if report.Results[0].Artifact.Required {
		t.Error("asset objects must be optional")
	}
}

func TestEnsureAssetsLegacyVirtualTree(t *testing.T) {
	f := testutil.NewFixture(t)
	paths := workenv.NewPaths(t.TempDir())
	fetcher := newTestFetcher(paths, f)

	icon := []byte("legacy icon")
	hash := testutil.SHA1Hex(icon)
	f.Server.Put(testutil.ResourcesDir+"/"+hash[:2]+"/"+hash, icon)

	index, _ := json.Marshal(AssetIndex{
		Virtual: true,
		Objects: map[string]AssetObject{
			"sounds/click.ogg": {Hash: hash, Size: int64(len(icon))},
			"missing.png":      {Hash: testutil.SHA1Hex([]byte("nowhere")), Size: 7},
		},
	})
	indexPath := paths.AssetIndex("legacy")
	if err := workenv.WriteFileAtomic(indexPath, index); err != nil {
		t.Fatal(err)
	}
	plan := &resolve.Plan{
		AssetsID:   "legacy",
		AssetIndex: &resolve.Artifact{Path: indexPath, Checksum: "sha1:" + testutil.SHA1Hex(index)},
	}

	report, err := fetcher.EnsureAssets(context.Background(), plan)
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Failures()) != 1 || len(report.RequiredFailures()) != 0 {
		t.Errorf("failures = %+v", report.Failures())
	}

	copied := filepath.Join(paths.AssetVirtual("legacy"), "sounds", "click.ogg")
	if data, err := os.ReadFile(copied); err != nil || string(data) != string(icon) {
		t.Errorf("virtual copy = %q, %v", data, err)
	}
	if workenv.IsComplete(paths.AssetVirtual("legacy"), "legacy", plan.AssetIndex.Checksum) {
		t.Error("tree with a failed object must not be marked complete")
	}
}

func TestEnsureAssetsRejectsInvalidHashes(t *testing.T) {
	testCases := []struct {
		name string
		hash string
	}{
		{"traversal", "../../../../../tmp/owned"},
		{"short", "ab"},
		{"uppercase", strings.ToUpper(testutil.SHA1Hex([]byte("x")))},
		{"not hex", strings.Repeat("z", 40)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			paths := workenv.NewPaths(t.TempDir())
			fetcher := newTestFetcher(paths, testutil.NewFixture(t))

			index, _ := json.Marshal(AssetIndex{Objects: map[string]AssetObject{"a.png": {Hash: tc.hash, Size: 1}}})
			indexPath := paths.AssetIndex("bad")
			if err := workenv.WriteFileAtomic(indexPath, index); err != nil {
				t.Fatal(err)
			}
			plan := &resolve.Plan{AssetsID: "bad", AssetIndex: &resolve.Artifact{Path: indexPath}}

			if _, err := fetcher.EnsureAssets(context.Background(), plan); !errors.Is(err, manifest.ErrManifestMalformed) {
				t.Errorf("expected ErrManifestMalformed, got %v", err)
			}
		})
	}
}
