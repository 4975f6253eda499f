// SPDX-License-Identifier: Apache-2.0

package resolve

import (
	"fmt"
	"path"
	"strings"

	"github.com/provide-io/blocklaunch/pkg/manifest"
)

// DefaultLibrariesURL is the repository used when a library names none.
const DefaultLibrariesURL = "https://libraries.minecraft.net/"

// Coordinate is a parsed maven coordinate.
type Coordinate struct {
	Group      string
	Artifact   string
	Version    string
	Classifier string
	Extension  string
}

// ParseCoordinate parses "group:artifact:version[:classifier][@ext]".
func ParseCoordinate(name string) (Coordinate, error) {
	c := Coordinate{Extension: "jar"}
	if at := strings.LastIndex(name, "@"); at >= 0 {
		c.Extension = name[at+1:]
		name = name[:at]
	}

	parts := strings.Split(name, ":")
	if len(parts) < 3 || len(parts) > 4 {
		return Coordinate{}, fmt.Errorf("invalid maven coordinate %q", name)
	}
	for _, p := range append(parts, c.Extension) {
		if !manifest.ValidName(p) {
			return Coordinate{}, fmt.Errorf("invalid maven coordinate %q", name)
		}
	}
	c.Group, c.Artifact, c.Version = parts[0], parts[1], parts[2]
	if len(parts) == 4 {
		c.Classifier = parts[3]
	}
	return c, nil
}

// Identity returns group:artifact[:classifier]. The version is excluded so
// two declarations of the same library at different versions collide.
func (c Coordinate) Identity() string {
	id := c.Group + ":" + c.Artifact
	if c.Classifier != "" {
		id += ":" + c.Classifier
	}
	return id
}

// WithClassifier returns a copy of c using classifier.
func (c Coordinate) WithClassifier(classifier string) Coordinate {
	c.Classifier = classifier
	return c
}

// Path returns the slash-separated repository layout path:
// group/as/dirs/artifact/version/artifact-version[-classifier].ext
func (c Coordinate) Path() string {
	file := c.Artifact + "-" + c.Version
	if c.Classifier != "" {
		file += "-" + c.Classifier
	}
	file += "." + c.Extension
	return path.Join(strings.ReplaceAll(c.Group, ".", "/"), c.Artifact, c.Version, file)
}

// URL returns the artifact URL inside repository base.
func (c Coordinate) URL(base string) string {
	if base == "" {
		base = DefaultLibrariesURL
	}
	return strings.TrimRight(base, "/") + "/" + c.Path()
}

func (c Coordinate) String() string {
	s := c.Group + ":" + c.Artifact + ":" + c.Version
	if c.Classifier != "" {
		s += ":" + c.Classifier
	}
	return s
}
