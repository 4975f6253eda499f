// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"encoding/json"
	"testing"
)

// Identifiers of the fake version chain.
const (
	BaseID       = "base-fake"
	ChildID      = "1.20-fake"
	AssetIndexID = "fake-assets"
	LWJGLPath    = "org/lwjgl/lwjgl/3.0/lwjgl-3.0.jar"
	NativesPath  = "org/lwjgl/lwjgl/3.0/lwjgl-3.0-natives-linux.jar"
	ClientPath   = "/versions/base-fake/client.jar"
	IndexPath    = "/indexes/fake-assets.json"
	ResourcesDir = "/resources"
	IconName     = "icons/icon_16x16.png"
)

// Fixture is a two-level version chain served by a Server.
//
// base-fake declares lwjgl 3.0, a linux-only natives jar, the client jar,
// an asset index and the game template "--username ${auth_player_name}".
// 1.20-fake inherits from it, overrides mainClass and adds the JVM
// template "-Xmx${memory_max}m".
type Fixture struct {
	Server    *Server
	Documents map[string][]byte

	LWJGL   []byte
	Natives []byte
	Client  []byte
	Index   []byte
	Icon    []byte
}

// ResourcesURL is the base URL of the fake asset object host.
func (f *Fixture) ResourcesURL() string {
	return f.Server.URL + ResourcesDir
}

// NewFixture registers every artifact of the chain on a fresh Server.
func NewFixture(t testing.TB) *Fixture {
	t.Helper()

	f := &Fixture{
		Server:    NewServer(t),
		Documents: make(map[string][]byte),
		LWJGL:     []byte("lwjgl 3.0 classes"),
		Client:    []byte("client jar bytes"),
		Icon:      []byte("icon bytes"),
	}
	f.Natives = ZipBytes(t, map[string]string{
		"liblwjgl.so":          "native code",
		"META-INF/MANIFEST.MF": "Manifest-Version: 1.0",
	})

	iconHash := SHA1Hex(f.Icon)
	f.Server.Put(ResourcesDir+"/"+iconHash[:2]+"/"+iconHash, f.Icon)
	f.Index = mustJSON(t, map[string]any{
		"objects": map[string]any{
			IconName: map[string]any{"hash": iconHash, "size": len(f.Icon)},
		},
	})

	lwjglURL := f.Server.Put("/maven/"+LWJGLPath, f.LWJGL)
	nativesURL := f.Server.Put("/maven/"+NativesPath, f.Natives)
	clientURL := f.Server.Put(ClientPath, f.Client)
	indexURL := f.Server.Put(IndexPath, f.Index)

	base := map[string]any{
		"id":        BaseID,
		"type":      "release",
		"mainClass": "net.fake.base.Main",
		"arguments": map[string]any{
			"game": []any{
				"--username", "${auth_player_name}",
				"--version", "${version_name}",
				"--gameDir", "${game_directory}",
				"--assetsDir", "${assets_root}",
				"--assetIndex", "${assets_index_name}",
				"--uuid", "${auth_uuid}",
				"--accessToken", "${auth_access_token}",
				map[string]any{
					"rules": []any{map[string]any{"action": "allow", "features": map[string]any{"is_demo_user": true}}},
					"value": "--demo",
				},
				map[string]any{
					"rules": []any{map[string]any{"action": "allow", "features": map[string]any{"has_custom_resolution": true}}},
					"value": []any{"--width", "${resolution_width}", "--height", "${resolution_height}"},
				},
			},
		},
		"libraries": []any{
			map[string]any{
				"name": "org.lwjgl:lwjgl:3.0",
				"downloads": map[string]any{
					"artifact": map[string]any{"path": LWJGLPath, "sha1": SHA1Hex(f.LWJGL), "size": len(f.LWJGL), "url": lwjglURL},
				},
			},
			map[string]any{
				"name": "org.lwjgl:lwjgl:3.0:natives-linux",
				"downloads": map[string]any{
					"artifact": map[string]any{"path": NativesPath, "sha1": SHA1Hex(f.Natives), "size": len(f.Natives), "url": nativesURL},
				},
				"extract": map[string]any{"exclude": []any{"META-INF/"}},
				"rules":   []any{map[string]any{"action": "allow", "os": map[string]any{"name": "linux"}}},
			},
		},
		"assetIndex": map[string]any{"id": AssetIndexID, "sha1": SHA1Hex(f.Index), "size": len(f.Index), "url": indexURL},
		"assets":     AssetIndexID,
		"downloads": map[string]any{
			"client": map[string]any{"sha1": SHA1Hex(f.Client), "size": len(f.Client), "url": clientURL},
		},
	}
	child := map[string]any{
		"id":           ChildID,
		"inheritsFrom": BaseID,
		"type":         "release",
		"mainClass":    "net.fake.child.Main",
		"arguments": map[string]any{
			"jvm": []any{"-Xmx${memory_max}m"},
		},
	}

	f.Documents[BaseID] = mustJSON(t, base)
	f.Documents[ChildID] = mustJSON(t, child)
	for id, doc := range f.Documents {
		f.Server.Put("/v1/packages/"+id+".json", doc)
	}
	return f
}

// CatalogJSON returns a version catalog listing both fixture documents.
func (f *Fixture) CatalogJSON(t testing.TB) []byte {
	t.Helper()
	var versions []any
	for _, id := range []string{ChildID, BaseID} {
		versions = append(versions, map[string]any{
			"id":   id,
			"type": "release",
			"url":  f.Server.URL + "/v1/packages/" + id + ".json",
			"sha1": SHA1Hex(f.Documents[id]),
		})
	}
	versions = append(versions, map[string]any{
		"id": "snap-fake", "type": "snapshot", "url": f.Server.URL + "/v1/packages/snap-fake.json",
	})
	return mustJSON(t, map[string]any{
		"latest":   map[string]any{"release": ChildID, "snapshot": "snap-fake"},
		"versions": versions,
	})
}

func mustJSON(t testing.TB, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal fixture: %v", err)
	}
	return data
}
