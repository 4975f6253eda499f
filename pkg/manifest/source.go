// SPDX-License-Identifier: Apache-2.0

package manifest

import (
	"context"
	"fmt"
	"os"

	"github.com/provide-io/blocklaunch/internal/workenv"
)

// Source retrieves raw descriptor documents by id. A source that does not
// know the id returns an error wrapping ErrManifestNotFound.
type Source interface {
	Fetch(ctx context.Context, id VersionID) ([]byte, error)
}

// DirSource reads documents cached under <root>/versions/<id>/<id>.json.
type DirSource struct {
	paths *workenv.Paths
}

// NewDirSource creates a DirSource over an installation root.
func NewDirSource(paths *workenv.Paths) *DirSource {
	return &DirSource{paths: paths}
}

// Fetch reads the cached document for id.
func (s *DirSource) Fetch(ctx context.Context, id VersionID) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := checkID(id); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.paths.VersionJSON(string(id)))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s not cached", ErrManifestNotFound, id)
		}
		return nil, fmt.Errorf("failed to read cached manifest %s: %w", id, err)
	}
	return data, nil
}

// Put writes a document into the cache atomically.
func (s *DirSource) Put(id VersionID, data []byte) error {
	if err := checkID(id); err != nil {
		return err
	}
	return workenv.WriteFileAtomic(s.paths.VersionJSON(string(id)), data)
}

// MapSource serves documents from memory. It is handy for embedding fixed
// catalogs and for tests.
type MapSource map[VersionID][]byte

// Fetch returns the document stored under id.
func (m MapSource) Fetch(ctx context.Context, id VersionID) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, ok := m[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrManifestNotFound, id)
	}
	return data, nil
}
