// SPDX-License-Identifier: Apache-2.0

package manifest

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// EffectiveDescriptor is a descriptor merged with its whole parent chain.
// It is built fresh on every merge and shares no memory with the raw
// descriptors it came from.
type EffectiveDescriptor struct {
	ID          VersionID    `json:"id"`
	Chain       []VersionID  `json:"chain"`
	Type        string       `json:"type,omitempty"`
	MainClass   string       `json:"mainClass"`
	Game        []Argument   `json:"game,omitempty"`
	JVM         []Argument   `json:"jvm,omitempty"`
	LegacyGame  string       `json:"minecraftArguments,omitempty"`
	Libraries   []Library    `json:"libraries,omitempty"`
	AssetIndex  *AssetIndex  `json:"assetIndex,omitempty"`
	Assets      string       `json:"assets,omitempty"`
	Client      *Download    `json:"client,omitempty"`
	Jar         VersionID    `json:"jar"`
	JavaVersion *JavaVersion `json:"javaVersion,omitempty"`
}

// Fingerprint returns the sha256 of the descriptor's canonical JSON form.
// Equal fingerprints mean byte-identical descriptors.
func (e *EffectiveDescriptor) Fingerprint() string {
	data, err := json.Marshal(e)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// HasModernJVMArguments reports whether the chain declared JVM templates.
func (e *EffectiveDescriptor) HasModernJVMArguments() bool {
	return len(e.JVM) > 0
}

// GameTemplates returns the game argument templates: the modern list when
// present, otherwise the legacy whitespace-separated string.
func (e *EffectiveDescriptor) GameTemplates() []Argument {
	if len(e.Game) > 0 || e.LegacyGame == "" {
		return e.Game
	}
	fields := strings.Fields(e.LegacyGame)
	args := make([]Argument, len(fields))
	for i, f := range fields {
		args[i] = Argument{Values: []string{f}}
	}
	return args
}

// Merge folds a chain, ordered from the requested descriptor up to its root
// ancestor, into a new EffectiveDescriptor. Scalars declared closer to the
// requested version win; libraries and argument lists concatenate
// ancestor-first; a declared minecraftArguments replaces any inherited one.
// Duplicates are preserved.
func Merge(chain []*VersionDescriptor) (*EffectiveDescriptor, error) {
	if len(chain) == 0 {
		return nil, fmt.Errorf("%w: empty chain", ErrManifestMalformed)
	}

	eff := &EffectiveDescriptor{ID: chain[0].ID}
	for _, d := range chain {
		eff.Chain = append(eff.Chain, d.ID)
	}

	for i := len(chain) - 1; i >= 0; i-- {
		d := cloneDescriptor(chain[i])
		if d.Type != "" {
			eff.Type = d.Type
		}
		if d.MainClass != "" {
			eff.MainClass = d.MainClass
		}
		if d.Arguments != nil {
			eff.Game = append(eff.Game, d.Arguments.Game...)
			eff.JVM = append(eff.JVM, d.Arguments.JVM...)
		}
		if d.MinecraftArguments != "" {
			eff.LegacyGame = d.MinecraftArguments
		}
		eff.Libraries = append(eff.Libraries, d.Libraries...)
		if d.AssetIndex != nil {
			eff.AssetIndex = d.AssetIndex
		}
		if d.Assets != "" {
			eff.Assets = d.Assets
		}
		if d.Downloads != nil && d.Downloads.Client != nil {
			eff.Client = d.Downloads.Client
			eff.Jar = d.ID
		}
		if d.Jar != "" {
			eff.Jar = d.Jar
		}
		if d.JavaVersion != nil {
			eff.JavaVersion = d.JavaVersion
		}
	}

	if eff.Jar == "" {
		eff.Jar = eff.ID
	}
	if eff.Assets == "" && eff.AssetIndex != nil {
		eff.Assets = eff.AssetIndex.ID
	}
	if eff.MainClass == "" {
		return nil, fmt.Errorf("%w: %s: no mainClass in chain", ErrManifestMalformed, eff.ID)
	}
	return eff, nil
}

// cloneDescriptor deep-copies a descriptor through its JSON form.
func cloneDescriptor(d *VersionDescriptor) *VersionDescriptor {
	data, err := json.Marshal(d)
	if err != nil {
		cp := *d
		return &cp
	}
	var out VersionDescriptor
	if err := json.Unmarshal(data, &out); err != nil {
		cp := *d
		return &cp
	}
	return &out
}
