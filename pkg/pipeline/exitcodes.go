// SPDX-License-Identifier: Apache-2.0

package pipeline

import (
	"errors"

	"github.com/provide-io/blocklaunch/pkg/command"
	"github.com/provide-io/blocklaunch/pkg/manifest"
	"github.com/provide-io/blocklaunch/pkg/resolve"
	"github.com/provide-io/blocklaunch/pkg/supervisor"
)

// Exit codes of the blocklaunch binary. A child that fails normally passes
// its own exit code through.
const (
	ExitSuccess               = 0
	ExitCrashed               = 100
	ExitPanic                 = 101
	ExitManifestNotFound      = 102
	ExitManifestCycle         = 103
	ExitManifestMalformed     = 104
	ExitUnsupportedPlatform   = 105
	ExitArtifactsFailed       = 106
	ExitInvalidMemory         = 107
	ExitUnresolvedPlaceholder = 108
	ExitLaunchFailed          = 109
	ExitInvalidArgs           = 110
)

// ExitCodeFor maps a run result to a process exit code. A non-nil err
// takes precedence over the outcome. A Running outcome never reports
// success.
func ExitCodeFor(outcome supervisor.Outcome, err error) int {
	if err != nil {
		return exitCodeForError(err)
	}
	switch outcome.Kind {
	case supervisor.Success:
		return ExitSuccess
	case supervisor.Failure:
		if outcome.Code > 0 && outcome.Code < 256 {
			return outcome.Code
		}
		return ExitLaunchFailed
	case supervisor.Crashed:
		return ExitCrashed
	default:
		// No observed end: the child outlived the launcher's attempt to stop it.
		return ExitLaunchFailed
	}
}

func exitCodeForError(err error) int {
	switch {
	case errors.Is(err, manifest.ErrManifestCycle):
		return ExitManifestCycle
	case errors.Is(err, manifest.ErrManifestNotFound):
		return ExitManifestNotFound
	case errors.Is(err, manifest.ErrManifestMalformed):
		return ExitManifestMalformed
	case errors.Is(err, resolve.ErrUnsupportedPlatform):
		return ExitUnsupportedPlatform
	case errors.Is(err, ErrArtifactsFailed):
		return ExitArtifactsFailed
	case errors.Is(err, command.ErrInvalidMemoryBounds):
		return ExitInvalidMemory
	case errors.Is(err, command.ErrUnresolvedPlaceholder):
		return ExitUnresolvedPlaceholder
	case errors.Is(err, command.ErrInvalidJVMFlags):
		return ExitInvalidArgs
	default:
		return ExitLaunchFailed
	}
}

