// SPDX-License-Identifier: Apache-2.0

package resolve

import (
	"github.com/provide-io/blocklaunch/pkg/manifest"
	"github.com/provide-io/blocklaunch/pkg/platform"
)

// Kind classifies a planned artifact.
type Kind int

const (
	KindLibrary Kind = iota
	KindNative
	KindClient
	KindAssetIndex
	KindAsset
)

func (k Kind) String() string {
	switch k {
	case KindLibrary:
		return "library"
	case KindNative:
		return "native"
	case KindClient:
		return "client"
	case KindAssetIndex:
		return "asset-index"
	case KindAsset:
		return "asset"
	default:
		return "unknown"
	}
}

// State is the verification state of an artifact on disk.
type State int

const (
	Unverified State = iota
	Verified
	Missing
	Corrupt
)

func (s State) String() string {
	switch s {
	case Unverified:
		return "unverified"
	case Verified:
		return "verified"
	case Missing:
		return "missing"
	case Corrupt:
		return "corrupt"
	default:
		return "unknown"
	}
}

// Artifact is one file the launch needs: where it lives, where it comes
// from and how to check it.
type Artifact struct {
	// Identity is group:artifact[:classifier] for libraries and a
	// kind-qualified name for everything else.
	Identity string
	Version  string
	Kind     Kind
	Path     string
	URL      string
	// Checksum is in "algo:hex" form; empty means presence is enough.
	Checksum string
	Size     int64
	Required bool
	// Exclude lists path prefixes skipped when extracting a native.
	Exclude []string
	State   State
}

// Plan is the ordered, deduplicated set of artifacts for one launch.
type Plan struct {
	VersionID  manifest.VersionID
	Platform   platform.Info
	Libraries  []Artifact
	Natives    []Artifact
	MainJar    Artifact
	AssetIndex *Artifact
	// AssetsID is the asset index id substituted for ${assets_index_name}.
	AssetsID string
}

// Artifacts returns every artifact of the plan in a stable order: classpath
// libraries, natives, the main jar and finally the asset index.
func (p *Plan) Artifacts() []Artifact {
	out := make([]Artifact, 0, len(p.Libraries)+len(p.Natives)+2)
	out = append(out, p.Libraries...)
	out = append(out, p.Natives...)
	out = append(out, p.MainJar)
	if p.AssetIndex != nil {
		out = append(out, *p.AssetIndex)
	}
	return out
}

// Classpath returns library paths in resolution order followed by the main
// jar.
func (p *Plan) Classpath() []string {
	cp := make([]string, 0, len(p.Libraries)+1)
	for _, a := range p.Libraries {
		cp = append(cp, a.Path)
	}
	return append(cp, p.MainJar.Path)
}
