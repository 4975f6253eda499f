// SPDX-License-Identifier: Apache-2.0

package manifest

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/hashicorp/go-hclog"

	"github.com/provide-io/blocklaunch/internal/workenv"
	"github.com/provide-io/blocklaunch/pkg/logging"
)

const (
	// DefaultCatalogURL is the upstream version catalog.
	DefaultCatalogURL = "https://piston-meta.mojang.com/mc/game/version_manifest_v2.json"

	// maxDocumentBytes bounds catalog and descriptor responses (32 MB).
	maxDocumentBytes = 32 << 20

	// ReleaseType is the catalog type of stable versions.
	ReleaseType = "release"
)

type (
	// Catalog is the version listing published by the upstream host.
	Catalog struct {
		Latest   Latest         `json:"latest"`
		Versions []CatalogEntry `json:"versions"`
	}

	// Latest names the newest release and snapshot.
	Latest struct {
		Release  VersionID `json:"release"`
		Snapshot VersionID `json:"snapshot"`
	}

	// CatalogEntry points at one version document.
	CatalogEntry struct {
		ID          VersionID `json:"id"`
		Type        string    `json:"type"`
		URL         string    `json:"url"`
		SHA1        string    `json:"sha1,omitempty"`
		Time        string    `json:"time,omitempty"`
		ReleaseTime string    `json:"releaseTime,omitempty"`
	}

	// CatalogSource fetches descriptor documents through the remote catalog.
	CatalogSource struct {
		httpClient *http.Client
		catalogURL string
		paths      *workenv.Paths
		logger     hclog.Logger

		mu      sync.Mutex
		catalog *Catalog
	}

	// CatalogOption configures a CatalogSource during construction.
	CatalogOption func(*CatalogSource)
)

// WithHTTPClient sets a custom HTTP client, useful for tests or proxies.
func WithHTTPClient(c *http.Client) CatalogOption {
	return func(s *CatalogSource) {
		s.httpClient = c
	}
}

// WithCatalogURL overrides the catalog location.
func WithCatalogURL(u string) CatalogOption {
	return func(s *CatalogSource) {
		s.catalogURL = u
	}
}

// WithCatalogLogger sets the logger.
func WithCatalogLogger(l hclog.Logger) CatalogOption {
	return func(s *CatalogSource) {
		s.logger = l
	}
}

// NewCatalogSource creates a CatalogSource that caches the catalog under
// paths.Catalog() and falls back to that copy when the host is unreachable.
func NewCatalogSource(paths *workenv.Paths, opts ...CatalogOption) *CatalogSource {
	s := &CatalogSource{
		httpClient: http.DefaultClient,
		catalogURL: DefaultCatalogURL,
		paths:      paths,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.OrNull(s.logger)
	return s
}

// Catalog returns the version catalog, loading it at most once per source.
func (s *CatalogSource) Catalog(ctx context.Context) (*Catalog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.catalog != nil {
		return s.catalog, nil
	}

	data, err := s.get(ctx, s.catalogURL)
	if err != nil {
		s.logger.Warn("⚠️ Catalog unreachable, trying cached copy", "url", s.catalogURL, "error", err)
		cached, cacheErr := os.ReadFile(s.paths.Catalog())
		if cacheErr != nil {
			return nil, fmt.Errorf("failed to load version catalog: %w", err)
		}
		data = cached
	} else if err := workenv.WriteFileAtomic(s.paths.Catalog(), data); err != nil {
		s.logger.Debug("⚠️ Failed to cache version catalog", "error", err)
	}

	var catalog Catalog
	if err := json.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("%w: version catalog: %v", ErrManifestMalformed, err)
	}
	s.logger.Debug("📚 Version catalog loaded", "versions", len(catalog.Versions), "latest", catalog.Latest.Release)
	s.catalog = &catalog
	return s.catalog, nil
}

// Fetch downloads the document for id and checks it against the catalog's
// sha1 when one is listed.
func (s *CatalogSource) Fetch(ctx context.Context, id VersionID) ([]byte, error) {
	catalog, err := s.Catalog(ctx)
	if err != nil {
		return nil, err
	}

	entry, ok := catalog.Lookup(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not in the catalog", ErrManifestNotFound, id)
	}

	s.logger.Debug("🌐 Fetching version document", "id", id, "url", entry.URL)
	data, err := s.get(ctx, entry.URL)
	if err != nil {
		return nil, err
	}

	if entry.SHA1 != "" {
		sum := sha1.Sum(data)
		if got := hex.EncodeToString(sum[:]); !strings.EqualFold(got, entry.SHA1) {
			return nil, fmt.Errorf("%w: %s: sha1 %s does not match catalog %s", ErrManifestMalformed, id, got, entry.SHA1)
		}
	}
	return data, nil
}

func (s *CatalogSource) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid url %q: %w", url, err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", url, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s returned 404", ErrManifestNotFound, url)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("request %s: unexpected status %s", url, resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", url, err)
	}
	if len(data) > maxDocumentBytes {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrManifestMalformed, url, maxDocumentBytes)
	}
	return data, nil
}

// Lookup finds the entry for id.
func (c *Catalog) Lookup(id VersionID) (CatalogEntry, bool) {
	for _, e := range c.Versions {
		if e.ID == id {
			return e, true
		}
	}
	return CatalogEntry{}, false
}

// FilterReleases returns the release entries, or every entry when all is set.
func FilterReleases(entries []CatalogEntry, all bool) []CatalogEntry {
	if all {
		return append([]CatalogEntry(nil), entries...)
	}
	var out []CatalogEntry
	for _, e := range entries {
		if e.Type == ReleaseType {
			out = append(out, e)
		}
	}
	return out
}
