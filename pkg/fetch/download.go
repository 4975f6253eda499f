// SPDX-License-Identifier: Apache-2.0

package fetch

import (
	"context"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/provide-io/blocklaunch/internal/workenv"
	"github.com/provide-io/blocklaunch/pkg/resolve"
)

// download transfers a.URL into a temporary sibling of a.Path, hashing while
// writing, and renames it into place only once the content verifies. The
// temporary file is removed on every failure path, cancellation included.
func (f *Fetcher) download(ctx context.Context, r *run, a resolve.Artifact) (err error) {
	if err := os.MkdirAll(filepath.Dir(a.Path), workenv.DirPerms); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}

	var (
		h        hash.Hash
		algo     Algorithm
		expected string
	)
	if a.Checksum != "" {
		algo, expected, err = ParseChecksum(a.Checksum)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrDownload, a.Identity, err)
		}
		h = algo.New()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.URL, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDownload, err)
	}
	r.requests.Add(1)
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDownload, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &statusError{URL: a.URL, Status: resp.StatusCode}
	}

	tmp := workenv.TempName(a.Path)
	file, err := os.OpenFile(tmp, os.O_CREATE|os.O_EXCL|os.O_WRONLY, workenv.FilePerms)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = file.Close()
			_ = os.Remove(tmp)
		}
	}()

	var dst io.Writer = ioWriter{file}
	if h != nil {
		dst = io.MultiWriter(dst, h)
	}
	written, err := io.Copy(dst, resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %v", ErrDownload, ctx.Err())
		}
		return err
	}

	if a.Size > 0 && written != a.Size {
		return fmt.Errorf("%w: %s: got %d bytes, want %d", ErrDownload, a.Identity, written, a.Size)
	}
	if h != nil {
		if got := hex.EncodeToString(h.Sum(nil)); got != expected {
			return &ChecksumError{Path: a.URL, Expected: algo.String() + ":" + expected, Got: algo.String() + ":" + got}
		}
	}

	if err := file.Sync(); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	if err := ctx.Err(); err != nil {
		_ = os.Remove(tmp)
		committed = true
		return fmt.Errorf("%w: %v", ErrDownload, err)
	}
	if err := os.Rename(tmp, a.Path); err != nil {
		_ = os.Remove(tmp)
		committed = true
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	committed = true
	return nil
}

// ioWriter tags write failures as local filesystem errors so they are not
// mistaken for transfer errors.
type ioWriter struct {
	w io.Writer
}

func (w ioWriter) Write(p []byte) (int, error) {
	n, err := w.w.Write(p)
	if err != nil {
		return n, fmt.Errorf("%w: %v", ErrIO, err)
	}
	return n, nil
}
