// SPDX-License-Identifier: Apache-2.0

package manifest

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrManifestNotFound is returned when no source has the requested id.
	ErrManifestNotFound = errors.New("manifest not found")

	// ErrManifestCycle is returned when an inheritance chain revisits an id.
	ErrManifestCycle = errors.New("manifest inheritance cycle")

	// ErrManifestMalformed is returned for documents violating the schema.
	ErrManifestMalformed = errors.New("manifest malformed")
)

// CycleError names the chain that looped.
type CycleError struct {
	Chain []VersionID
}

func (e *CycleError) Error() string {
	parts := make([]string, len(e.Chain))
	for i, id := range e.Chain {
		parts[i] = string(id)
	}
	return fmt.Sprintf("%s: %s", ErrManifestCycle, strings.Join(parts, " -> "))
}

// Unwrap returns ErrManifestCycle so callers can match with errors.Is.
func (e *CycleError) Unwrap() error {
	return ErrManifestCycle
}
