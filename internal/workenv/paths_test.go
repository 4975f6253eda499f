// SPDX-License-Identifier: Apache-2.0

package workenv

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hashicorp/go-hclog"
)

func TestPathsLayout(t *testing.T) {
	root := t.TempDir()
	p := NewPaths(root)

	testCases := []struct {
		name string
		got  string
		want string
	}{
		{"version json", p.VersionJSON("1.20.1"), filepath.Join(root, "versions", "1.20.1", "1.20.1.json")},
		{"version jar", p.VersionJar("1.20.1"), filepath.Join(root, "versions", "1.20.1", "1.20.1.jar")},
		{"catalog", p.Catalog(), filepath.Join(root, "versions", CatalogFile)},
		{"library", p.Library("org/lwjgl/lwjgl/3.0/lwjgl-3.0.jar"), filepath.Join(root, "libraries", "org", "lwjgl", "lwjgl", "3.0", "lwjgl-3.0.jar")},
		{"asset index", p.AssetIndex("5"), filepath.Join(root, "assets", "indexes", "5.json")},
		{"asset object", p.AssetObject("abcdef"), filepath.Join(root, "assets", "objects", "ab", "abcdef")},
		{"asset virtual", p.AssetVirtual("legacy"), filepath.Join(root, "assets", "virtual", "legacy")},
		{"natives", p.Natives("1.20.1", 42), filepath.Join(root, "natives", "1.20.1", "42")},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.got != tc.want {
				t.Errorf("got %s, want %s", tc.got, tc.want)
			}
		})
	}
}

func TestEnsureDirs(t *testing.T) {
	p := NewPaths(t.TempDir())
	if err := p.EnsureDirs(); err != nil {
		t.Fatalf("EnsureDirs: %v", err)
	}
	for _, dir := range []string{p.Versions(), p.Libraries(), p.Assets()} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Errorf("%s not created", dir)
		}
	}
}

func TestDefaultRootHonoursEnv(t *testing.T) {
	t.Setenv(EnvRoot, "/opt/blocks")
	if got := DefaultRoot(); got != "/opt/blocks" {
		t.Errorf("DefaultRoot() = %s", got)
	}
}

func TestCleanupStaleNatives(t *testing.T) {
	p := NewPaths(t.TempDir())
	logger := hclog.New(&hclog.LoggerOptions{Name: "workenv_test", Level: hclog.Trace})

	own := p.Natives("1.0", os.Getpid())
	// PIDs this large are never assigned on any supported platform.
	stale := p.Natives("1.0", 1<<30)
	notPID := filepath.Join(p.NativesRoot("1.0"), "keep-me")
	for _, dir := range []string{own, stale, notPID} {
		if err := os.MkdirAll(dir, DirPerms); err != nil {
			t.Fatal(err)
		}
	}

	removed, err := p.CleanupStaleNatives("1.0", logger)
	if err != nil {
		t.Fatalf("CleanupStaleNatives: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Errorf("stale dir %s still present", stale)
	}
	for _, dir := range []string{own, notPID} {
		if _, err := os.Stat(dir); err != nil {
			t.Errorf("%s removed unexpectedly", dir)
		}
	}

	if n, err := p.CleanupStaleNatives("missing", logger); err != nil || n != 0 {
		t.Errorf("missing root: n=%d err=%v", n, err)
	}
}

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "nested", "file.json")

	if err := WriteFileAtomic(target, []byte("one")); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if err := WriteFileAtomic(target, []byte("two")); err != nil {
		t.Fatalf("second write: %v", err)
	}

	data, err := os.ReadFile(target)
	if err != nil || string(data) != "two" {
		t.Fatalf("content = %q, err = %v", data, err)
	}

	entries, _ := os.ReadDir(filepath.Dir(target))
	if len(entries) != 1 {
		t.Errorf("expected only the final file, found %d entries", len(entries))
	}
}
