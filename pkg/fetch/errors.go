// SPDX-License-Identifier: Apache-2.0

package fetch

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrChecksumMismatch indicates content that does not match its checksum.
	ErrChecksumMismatch = errors.New("checksum mismatch")

	// ErrDownload indicates a transfer that failed or was refused.
	ErrDownload = errors.New("download failed")

	// ErrIO indicates a local filesystem failure.
	ErrIO = errors.New("filesystem error")
)

// statusError is a non-200 HTTP answer.
type statusError struct {
	URL    string
	Status int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("GET %s: %d %s", e.URL, e.Status, http.StatusText(e.Status))
}

func (e *statusError) Unwrap() error { return ErrDownload }

// permanent reports whether retrying cannot help.
func (e *statusError) permanent() bool {
	return e.Status >= 400 && e.Status < 500 && e.Status != 408 && e.Status != 429
}
