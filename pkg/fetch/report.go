// SPDX-License-Identifier: Apache-2.0

package fetch

import (
	"errors"

	"github.com/provide-io/blocklaunch/pkg/resolve"
)

// Outcome is the final state of one artifact after Ensure.
type Outcome int

const (
	Verified Outcome = iota
	Downloaded
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Verified:
		return "verified"
	case Downloaded:
		return "downloaded"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Reason explains a Failed outcome.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonChecksumMismatch
	ReasonDownloadError
	ReasonIOError
)

func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return ""
	case ReasonChecksumMismatch:
		return "checksum mismatch"
	case ReasonDownloadError:
		return "download error"
	case ReasonIOError:
		return "io error"
	default:
		return "unknown"
	}
}

// Result is the outcome for one artifact.
type Result struct {
	Artifact resolve.Artifact
	Outcome  Outcome
	Reason   Reason
	Err      error
	Attempts int
}

// Report lists one Result per artifact, in plan order.
type Report struct {
	Results []Result
	// NetworkRequests counts HTTP requests issued while producing the report.
	NetworkRequests int64
}

// Failures returns every failed result.
func (r *Report) Failures() []Result {
	var out []Result
	for _, res := range r.Results {
		if res.Outcome == Failed {
			out = append(out, res)
		}
	}
	return out
}

// RequiredFailures returns failed results whose artifact is required.
func (r *Report) RequiredFailures() []Result {
	var out []Result
	for _, res := range r.Results {
		if res.Outcome == Failed && res.Artifact.Required {
			out = append(out, res)
		}
	}
	return out
}

// AllVerified reports whether every artifact was already present and valid.
func (r *Report) AllVerified() bool {
	for _, res := range r.Results {
		if res.Outcome != Verified {
			return false
		}
	}
	return true
}

// Count returns the number of results with outcome o.
func (r *Report) Count(o Outcome) int {
	n := 0
	for _, res := range r.Results {
		if res.Outcome == o {
			n++
		}
	}
	return n
}

// Merge appends other's results and request count.
func (r *Report) Merge(other *Report) {
	if other == nil {
		return
	}
	r.Results = append(r.Results, other.Results...)
	r.NetworkRequests += other.NetworkRequests
}

func reasonFor(err error) Reason {
	switch {
	case err == nil:
		return ReasonNone
	case errors.Is(err, ErrChecksumMismatch):
		return ReasonChecksumMismatch
	case errors.Is(err, ErrIO):
		return ReasonIOError
	default:
		return ReasonDownloadError
	}
}
