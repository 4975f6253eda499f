// SPDX-License-Identifier: Apache-2.0

package manifest

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/hashicorp/go-hclog"

	"github.com/provide-io/blocklaunch/internal/testutil"
	"github.com/provide-io/blocklaunch/internal/workenv"
)

func testLogger() hclog.Logger {
	return hclog.New(&hclog.LoggerOptions{Name: "manifest_test", Level: hclog.Trace})
}

func fixtureSource(f *testutil.Fixture) MapSource {
	src := MapSource{}
	for id, doc := range f.Documents {
		src[VersionID(id)] = doc
	}
	return src
}

func TestResolveEffectiveMergesChain(t *testing.T) {
	f := testutil.NewFixture(t)
	store := NewStore(workenv.NewPaths(t.TempDir()), WithRemote(fixtureSource(f)), WithLogger(testLogger()))

	eff, err := store.ResolveEffective(context.Background(), testutil.ChildID)
	if err != nil {
		t.Fatalf("ResolveEffective: %v", err)
	}

	if eff.MainClass != "net.fake.child.Main" {
		t.Errorf("MainClass = %s, child should override", eff.MainClass)
	}
	if len(eff.Chain) != 2 || eff.Chain[0] != testutil.ChildID || eff.Chain[1] != testutil.BaseID {
		t.Errorf("Chain = %v", eff.Chain)
	}
	if len(eff.Libraries) != 2 || eff.Libraries[0].Name != "org.lwjgl:lwjgl:3.0" {
		t.Errorf("Libraries = %+v", eff.Libraries)
	}
	if len(eff.JVM) != 1 || eff.JVM[0].Values[0] != "-Xmx${memory_max}m" {
		t.Errorf("JVM = %+v", eff.JVM)
	}
	if eff.Game[0].Values[0] != "--username" {
		t.Errorf("Game[0] = %+v", eff.Game[0])
	}
	if eff.Jar != testutil.BaseID {
		t.Errorf("Jar = %s, want the parent declaring the client download", eff.Jar)
	}
	if eff.AssetIndex == nil || eff.AssetIndex.ID != testutil.AssetIndexID {
		t.Errorf("AssetIndex = %+v", eff.AssetIndex)
	}
}

func TestResolveEffectiveIsDeterministic(t *testing.T) {
	f := testutil.NewFixture(t)
	src := fixtureSource(f)

	first, err := NewStore(workenv.NewPaths(t.TempDir()), WithRemote(src)).ResolveEffective(context.Background(), testutil.ChildID)
	if err != nil {
		t.Fatal(err)
	}
	store := NewStore(workenv.NewPaths(t.TempDir()), WithRemote(src))
	second, err := store.ResolveEffective(context.Background(), testutil.ChildID)
	if err != nil {
		t.Fatal(err)
	}
	cached, err := store.ResolveEffective(context.Background(), testutil.ChildID)
	if err != nil {
		t.Fatal(err)
	}

	if first.Fingerprint() != second.Fingerprint() || second.Fingerprint() != cached.Fingerprint() {
		t.Errorf("fingerprints differ: %s %s %s", first.Fingerprint(), second.Fingerprint(), cached.Fingerprint())
	}

	// Mutating a returned descriptor must not leak into the cache.
	cached.Libraries[0].Name = "mutated:lib:1"
	again, _ := store.ResolveEffective(context.Background(), testutil.ChildID)
	if again.Fingerprint() != first.Fingerprint() {
		t.Error("cached effective descriptor was mutated through a returned value")
	}
}

func TestResolveEffectiveCycle(t *testing.T) {
	src := MapSource{
		"A": []byte(`{"id":"A","inheritsFrom":"B","mainClass":"a.Main"}`),
		"B": []byte(`{"id":"B","inheritsFrom":"A","mainClass":"b.Main"}`),
	}
	store := NewStore(workenv.NewPaths(t.TempDir()), WithRemote(src))

	_, err := store.ResolveEffective(context.Background(), "A")
	if !errors.Is(err, ErrManifestCycle) {
		t.Fatalf("expected ErrManifestCycle, got %v", err)
	}
	var cycle *CycleError
	if !errors.As(err, &cycle) || len(cycle.Chain) != 3 {
		t.Errorf("cycle chain = %+v", cycle)
	}

	selfSrc := MapSource{"S": []byte(`{"id":"S","inheritsFrom":"S","mainClass":"s.Main"}`)}
	_, err = NewStore(workenv.NewPaths(t.TempDir()), WithRemote(selfSrc)).ResolveEffective(context.Background(), "S")
	if !errors.Is(err, ErrManifestCycle) {
		t.Errorf("self-parent: expected ErrManifestCycle, got %v", err)
	}
}

func TestResolveEffectiveErrors(t *testing.T) {
	testCases := []struct {
		name    string
		src     MapSource
		id      VersionID
		wantErr error
	}{
		{"unknown id", MapSource{}, "nope", ErrManifestNotFound},
		{"missing parent", MapSource{"c": []byte(`{"id":"c","inheritsFrom":"p","mainClass":"m"}`)}, "c", ErrManifestNotFound},
		{"invalid json", MapSource{"x": []byte(`{"id":`)}, "x", ErrManifestMalformed},
		{"id mismatch", MapSource{"x": []byte(`{"id":"y","mainClass":"m"}`)}, "x", ErrManifestMalformed},
		{"bad library name", MapSource{"x": []byte(`{"id":"x","mainClass":"m","libraries":[{"name":"broken"}]}`)}, "x", ErrManifestMalformed},
		{"no main class", MapSource{"x": []byte(`{"id":"x"}`)}, "x", ErrManifestMalformed},
		{"escaping id", MapSource{"../x": []byte(`{"id":"../x","mainClass":"m"}`)}, "../x", ErrManifestMalformed},
		{"escaping parent", MapSource{"x": []byte(`{"id":"x","inheritsFrom":"../../p","mainClass":"m"}`)}, "x", ErrManifestMalformed},
		{"escaping jar", MapSource{"x": []byte(`{"id":"x","jar":"../../../tmp/evil","mainClass":"m"}`)}, "x", ErrManifestMalformed},
		{"escaping asset index", MapSource{"x": []byte(`{"id":"x","mainClass":"m","assetIndex":{"id":"../escaped"}}`)}, "x", ErrManifestMalformed},
		{"escaping library version", MapSource{"x": []byte(`{"id":"x","mainClass":"m","libraries":[{"name":"g:a:../../../../tmp/pwn"}]}`)}, "x", ErrManifestMalformed},
		{"backslash in group", MapSource{"x": []byte(`{"id":"x","mainClass":"m","libraries":[{"name":"g\\..\\h:a:1"}]}`)}, "x", ErrManifestMalformed},
		{"argument without value", MapSource{"x": []byte(`{"id":"x","mainClass":"m","arguments":{"game":[{"rules":[],"value":[]}]}}`)}, "x", ErrManifestMalformed},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			store := NewStore(workenv.NewPaths(t.TempDir()), WithRemote(tc.src))
			if _, err := store.ResolveEffective(context.Background(), tc.id); !errors.Is(err, tc.wantErr) {
				t.Errorf("got %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestStoreWritesThroughAndRefreshInvalidates(t *testing.T) {
	paths := workenv.NewPaths(t.TempDir())
	src := MapSource{"v": []byte(`{"id":"v","mainClass":"old.Main"}`)}
	store := NewStore(paths, WithRemote(src), WithLogger(testLogger()))

	eff, err := store.ResolveEffective(context.Background(), "v")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(paths.VersionJSON("v")); err != nil {
		t.Fatalf("document not written through to cache: %v", err)
	}

	// A second store over the same root is served from disk alone.
	offline := NewStore(paths)
	if _, err := offline.ResolveEffective(context.Background(), "v"); err != nil {
		t.Fatalf("cache-only resolve: %v", err)
	}

	src["v"] = []byte(`{"id":"v","mainClass":"new.Main"}`)
	if err := store.Refresh(context.Background(), "v"); err != nil {
		t.Fatal(err)
	}
	refreshed, err := store.ResolveEffective(context.Background(), "v")
	if err != nil {
		t.Fatal(err)
	}
	if refreshed.MainClass != "new.Main" || refreshed.Fingerprint() == eff.Fingerprint() {
		t.Errorf("refresh did not invalidate effective cache: %s", refreshed.MainClass)
	}
}

func TestCatalogSource(t *testing.T) {
	f := testutil.NewFixture(t)
	catalogURL := f.Server.Put("/mc/game/version_manifest_v2.json", f.CatalogJSON(t))
	paths := workenv.NewPaths(t.TempDir())

	src := NewCatalogSource(paths, WithCatalogURL(catalogURL), WithHTTPClient(f.Server.Client()), WithCatalogLogger(testLogger()))
	store := NewStore(paths, WithRemote(src))

	eff, err := store.ResolveEffective(context.Background(), testutil.ChildID)
	if err != nil {
		t.Fatalf("ResolveEffective via catalog: %v", err)
	}
	if eff.MainClass != "net.fake.child.Main" {
		t.Errorf("MainClass = %s", eff.MainClass)
	}

	catalog, err := src.Catalog(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got := FilterReleases(catalog.Versions, false); len(got) != 2 {
		t.Errorf("releases = %d, want 2", len(got))
	}
	if got := FilterReleases(catalog.Versions, true); len(got) != 3 {
		t.Errorf("all = %d, want 3", len(got))
	}

	if _, err := src.Fetch(context.Background(), "missing"); !errors.Is(err, ErrManifestNotFound) {
		t.Errorf("missing id: %v", err)
	}

	// The cached catalog serves a new source when the host is down.
	f.Server.Fail("/mc/game/version_manifest_v2.json", 503)
	fallback := NewCatalogSource(paths, WithCatalogURL(catalogURL), WithHTTPClient(f.Server.Client()))
	if c, err := fallback.Catalog(context.Background()); err != nil || c.Latest.Release != testutil.ChildID {
		t.Errorf("fallback catalog: %+v, %v", c, err)
	}
}

func TestCatalogSourceRejectsTamperedDocument(t *testing.T) {
	f := testutil.NewFixture(t)
	catalogURL := f.Server.Put("/catalog.json", f.CatalogJSON(t))
	f.Server.Put("/v1/packages/"+testutil.BaseID+".json", []byte(`{"id":"base-fake","mainClass":"evil"}`))

	src := NewCatalogSource(workenv.NewPaths(t.TempDir()), WithCatalogURL(catalogURL))
	if _, err := src.Fetch(context.Background(), testutil.BaseID); !errors.Is(err, ErrManifestMalformed) {
		t.Errorf("expected ErrManifestMalformed, got %v", err)
	}
}
