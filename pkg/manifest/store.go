// SPDX-License-Identifier: Apache-2.0

package manifest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/hashicorp/go-hclog"

	"github.com/provide-io/blocklaunch/internal/workenv"
	"github.com/provide-io/blocklaunch/pkg/logging"
)

// Store loads raw descriptors (memory, then the on-disk cache, then the
// remote source) and resolves effective descriptors. A Store is safe for
// concurrent use; separate Stores share nothing.
type Store struct {
	cache  *DirSource
	remote Source
	logger hclog.Logger

	mu        sync.Mutex
	raw       map[VersionID][]byte
	effective map[effectiveKey][]byte
}

type effectiveKey struct {
	id       VersionID
	snapshot string
}

// StoreOption configures a Store during construction.
type StoreOption func(*Store)

// WithRemote sets the source consulted on cache misses and refreshes.
func WithRemote(src Source) StoreOption {
	return func(s *Store) {
		s.remote = src
	}
}

// WithLogger sets the logger.
func WithLogger(l hclog.Logger) StoreOption {
	return func(s *Store) {
		s.logger = l
	}
}

// NewStore creates a Store caching documents under paths.
func NewStore(paths *workenv.Paths, opts ...StoreOption) *Store {
	s := &Store{
		cache:     NewDirSource(paths),
		raw:       make(map[VersionID][]byte),
		effective: make(map[effectiveKey][]byte),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.OrNull(s.logger)
	return s
}

// Raw returns the raw document for id.
func (s *Store) Raw(ctx context.Context, id VersionID) ([]byte, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	s.mu.Lock()
	data, ok := s.raw[id]
	s.mu.Unlock()
	if ok {
		return data, nil
	}

	data, err := s.cache.Fetch(ctx, id)
	if err == nil {
		s.logger.Trace("📄 Manifest cache hit", "id", id)
		s.remember(id, data)
		return data, nil
	}
	if !errors.Is(err, ErrManifestNotFound) {
		return nil, err
	}

	return s.fetchRemote(ctx, id)
}

// Refresh re-fetches id from the remote source and replaces the cached
// copy. Effective descriptors built from the old document are invalidated.
func (s *Store) Refresh(ctx context.Context, id VersionID) error {
	_, err := s.fetchRemote(ctx, id)
	return err
}

func (s *Store) fetchRemote(ctx context.Context, id VersionID) ([]byte, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	if s.remote == nil {
		return nil, fmt.Errorf("%w: %s", ErrManifestNotFound, id)
	}

	s.logger.Debug("🌐 Fetching manifest from remote source", "id", id)
	data, err := s.remote.Fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	// Validate before caching so a bad document never lands on disk.
	if _, err := decodeDescriptor(id, data); err != nil {
		return nil, err
	}
	if err := s.cache.Put(id, data); err != nil {
		s.logger.Warn("⚠️ Failed to cache manifest", "id", id, "error", err)
	}
	s.remember(id, data)
	return data, nil
}

func (s *Store) remember(id VersionID, data []byte) {
	s.mu.Lock()
	s.raw[id] = data
	s.mu.Unlock()
}

// Descriptor returns a private decoded copy of the raw document for id.
func (s *Store) Descriptor(ctx context.Context, id VersionID) (*VersionDescriptor, error) {
	data, err := s.Raw(ctx, id)
	if err != nil {
		return nil, err
	}
	return decodeDescriptor(id, data)
}

// ResolveEffective walks the inheritance chain of id iteratively and merges
// it into an EffectiveDescriptor. Resolving the same id against the same
// documents always yields a byte-identical result.
func (s *Store) ResolveEffective(ctx context.Context, id VersionID) (*EffectiveDescriptor, error) {
	var (
		chain   []*VersionDescriptor
		path    []VersionID
		visited = make(map[VersionID]bool)
		hasher  = sha256.New()
	)

	for cur := id; cur != ""; {
		if visited[cur] {
			return nil, &CycleError{Chain: append(path, cur)}
		}
		visited[cur] = true
		path = append(path, cur)

		data, err := s.Raw(ctx, cur)
		if err != nil {
			if cur != id && errors.Is(err, ErrManifestNotFound) {
				return nil, fmt.Errorf("parent %s of %s: %w", cur, path[len(path)-2], err)
			}
			return nil, err
		}
		desc, err := decodeDescriptor(cur, data)
		if err != nil {
			return nil, err
		}

		fmt.Fprintf(hasher, "%s\x00%d\x00", cur, len(data))
		hasher.Write(data)

		chain = append(chain, desc)
		cur = desc.InheritsFrom
	}

	key := effectiveKey{id: id, snapshot: hex.EncodeToString(hasher.Sum(nil))}
	if cached, ok := s.cachedEffective(key); ok {
		s.logger.Trace("♻️ Effective descriptor cache hit", "id", id)
		return cached, nil
	}

	eff, err := Merge(chain)
	if err != nil {
		return nil, err
	}
	encoded, err := json.Marshal(eff)
	if err != nil {
		return nil, fmt.Errorf("encode effective descriptor: %w", err)
	}

	s.mu.Lock()
	s.effective[key] = encoded
	s.mu.Unlock()

	s.logger.Debug("🧬 Resolved effective descriptor", "id", id, "chain", path, "libraries", len(eff.Libraries))
	return eff, nil
}

func (s *Store) cachedEffective(key effectiveKey) (*EffectiveDescriptor, bool) {
	s.mu.Lock()
	encoded, ok := s.effective[key]
	s.mu.Unlock()
	if !ok {
		return nil, false
	}
	var eff EffectiveDescriptor
	if err := json.Unmarshal(encoded, &eff); err != nil {
		return nil, false
	}
	return &eff, true
}
