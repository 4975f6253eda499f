// SPDX-License-Identifier: Apache-2.0

// Package manifest loads version descriptors from a document source, caches
// them and resolves inheritance chains into effective descriptors.
package manifest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/provide-io/blocklaunch/pkg/platform"
)

// VersionID identifies one entry of the version catalog.
type VersionID string

// VersionDescriptor is the raw document for one version. Values handed out
// by the Store are private copies; nothing in this package mutates them.
type VersionDescriptor struct {
	ID                 VersionID         `json:"id"`
	InheritsFrom       VersionID         `json:"inheritsFrom,omitempty"`
	Type               string            `json:"type,omitempty"`
	MainClass          string            `json:"mainClass,omitempty"`
	Arguments          *Arguments        `json:"arguments,omitempty"`
	MinecraftArguments string            `json:"minecraftArguments,omitempty"`
	Libraries          []Library         `json:"libraries,omitempty"`
	AssetIndex         *AssetIndex       `json:"assetIndex,omitempty"`
	Assets             string            `json:"assets,omitempty"`
	Downloads          *VersionDownloads `json:"downloads,omitempty"`
	Jar                VersionID         `json:"jar,omitempty"`
	JavaVersion        *JavaVersion      `json:"javaVersion,omitempty"`
	ReleaseTime        string            `json:"releaseTime,omitempty"`
}

// Arguments holds the modern argument templates.
type Arguments struct {
	Game []Argument `json:"game,omitempty"`
	JVM  []Argument `json:"jvm,omitempty"`
}

// Argument is either a plain template or a rule-gated list of templates.
type Argument struct {
	Rules  []platform.Rule
	Values []string
}

type conditionalArgument struct {
	Rules []platform.Rule `json:"rules,omitempty"`
	Value json.RawMessage `json:"value"`
}

// UnmarshalJSON accepts "tpl", {"rules": [...], "value": "tpl"} and
// {"rules": [...], "value": ["tpl", ...]}.
func (a *Argument) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = Argument{Values: []string{s}}
		return nil
	}

	var cond conditionalArgument
	if err := json.Unmarshal(data, &cond); err != nil {
		return err
	}
	values, err := stringOrList(cond.Value)
	if err != nil {
		return fmt.Errorf("argument value: %w", err)
	}
	*a = Argument{Rules: cond.Rules, Values: values}
	return nil
}

// MarshalJSON writes the plain form when the argument carries no rules.
func (a Argument) MarshalJSON() ([]byte, error) {
	if len(a.Rules) == 0 && len(a.Values) == 1 {
		return json.Marshal(a.Values[0])
	}
	return json.Marshal(struct {
		Rules []platform.Rule `json:"rules,omitempty"`
		Value []string        `json:"value"`
	}{a.Rules, a.Values})
}

func stringOrList(raw json.RawMessage) ([]string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, errors.New("missing value")
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		return []string{s}, nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// Library is one entry of a descriptor's "libraries" list.
type Library struct {
	Name      string            `json:"name"`
	URL       string            `json:"url,omitempty"`
	Downloads *LibraryDownloads `json:"downloads,omitempty"`
	Natives   map[string]string `json:"natives,omitempty"`
	Extract   *Extract          `json:"extract,omitempty"`
	Rules     []platform.Rule   `json:"rules,omitempty"`
	Optional  bool              `json:"optional,omitempty"`
}

// LibraryDownloads lists the files a library provides.
type LibraryDownloads struct {
	Artifact    *Download           `json:"artifact,omitempty"`
	Classifiers map[string]Download `json:"classifiers,omitempty"`
}

// Extract controls natives extraction.
type Extract struct {
	Exclude []string `json:"exclude,omitempty"`
}

// Download describes one remote file.
type Download struct {
	Path string `json:"path,omitempty"`
	SHA1 string `json:"sha1,omitempty"`
	Size int64  `json:"size,omitempty"`
	URL  string `json:"url,omitempty"`
}

// AssetIndex references the asset object index of a version.
type AssetIndex struct {
	ID        string `json:"id"`
	SHA1      string `json:"sha1,omitempty"`
	Size      int64  `json:"size,omitempty"`
	TotalSize int64  `json:"totalSize,omitempty"`
	URL       string `json:"url,omitempty"`
}

// VersionDownloads lists the version-level files.
type VersionDownloads struct {
	Client *Download `json:"client,omitempty"`
	Server *Download `json:"server,omitempty"`
}

// JavaVersion is the runtime a version asks for.
type JavaVersion struct {
	Component    string `json:"component,omitempty"`
	MajorVersion int    `json:"majorVersion,omitempty"`
}

// decodeDescriptor parses and validates one raw document.
func decodeDescriptor(id VersionID, data []byte) (*VersionDescriptor, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	var desc VersionDescriptor
	if err := json.Unmarshal(data, &desc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrManifestMalformed, id, err)
	}
	if desc.ID == "" {
		return nil, fmt.Errorf("%w: %s: missing id", ErrManifestMalformed, id)
	}
	if desc.ID != id {
		return nil, fmt.Errorf("%w: requested %s but document declares %s", ErrManifestMalformed, id, desc.ID)
	}
	for i, lib := range desc.Libraries {
		if strings.Count(lib.Name, ":") < 2 {
			return nil, fmt.Errorf("%w: %s: library %d has invalid name %q", ErrManifestMalformed, id, i, lib.Name)
		}
	}
	if err := validateNames(&desc); err != nil {
		return nil, err
	}
	if desc.Arguments != nil {
		for _, arg := range append(append([]Argument{}, desc.Arguments.Game...), desc.Arguments.JVM...) {
			if len(arg.Values) == 0 {
				return nil, fmt.Errorf("%w: %s: argument without value", ErrManifestMalformed, id)
			}
		}
	}
	return &desc, nil
}
