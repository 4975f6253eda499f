// SPDX-License-Identifier: Apache-2.0

package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"github.com/provide-io/blocklaunch/pkg/fetch"
)

// ErrArtifactsFailed is returned when a required artifact could not be
// made available.
var ErrArtifactsFailed = errors.New("required artifacts failed")

// ArtifactsFailedError carries the report of a failed preparation.
type ArtifactsFailedError struct {
	Report *fetch.Report
}

func (e *ArtifactsFailedError) Error() string {
	failures := e.Report.RequiredFailures()
	names := make([]string, 0, len(failures))
	for _, f := range failures {
		names = append(names, f.Artifact.Identity)
	}
	return fmt.Sprintf("%d required artifacts failed: %s", len(failures), strings.Join(names, ", "))
}

func (e *ArtifactsFailedError) Unwrap() error { return ErrArtifactsFailed }
