package main

import (
	"errors"

	"github.com/nixinstall/nix-installer-go/internal/errdefs"
)

// Exit codes per spec.md §6.
const (
	exitSuccess         = 0
	exitUserFacingError = 1
	exitCancelled       = 2
	exitPartialFailure  = 3
)

// exitCodeForErr classifies a returned error into one of the four
// documented exit codes. A revert that itself failed (RevertResidue)
// leaves the host in a non-reverted state, hence exitPartialFailure.
func exitCodeForErr(err error) int {
	if err == nil {
		return exitSuccess
	}
	var residue *errdefs.RevertResidue
	if errors.As(err, &residue) {
		return exitPartialFailure
	}
	if errors.Is(err, errdefs.ErrCancelled) {
		return exitCancelled
	}
	var engineErr *errdefs.EngineError
	if errors.As(err, &engineErr) && engineErr.Type == errdefs.ErrTypeCancelled {
		return exitCancelled
	}
	return exitUserFacingError
}
