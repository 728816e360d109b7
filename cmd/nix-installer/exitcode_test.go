package main

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nixinstall/nix-installer-go/internal/errdefs"
)

func TestExitCodeForErrSuccess(t *testing.T) {
	assert.Equal(t, exitSuccess, exitCodeForErr(nil))
}

func TestExitCodeForErrPartialFailureOnRevertResidue(t *testing.T) {
	residue := &errdefs.RevertResidue{}
	residue.Add("create directory /nix", errors.New("permission denied"))
	assert.Equal(t, exitPartialFailure, exitCodeForErr(residue))
}

func TestExitCodeForErrCancelled(t *testing.T) {
	assert.Equal(t, exitCancelled, exitCodeForErr(errdefs.ErrCancelled))
}

func TestExitCodeForErrCancelledViaEngineError(t *testing.T) {
	err := &errdefs.EngineError{Type: errdefs.ErrTypeCancelled, Message: "interrupted"}
	assert.Equal(t, exitCancelled, exitCodeForErr(err))
}

func TestExitCodeForErrDefaultsToUserFacing(t *testing.T) {
	assert.Equal(t, exitUserFacingError, exitCodeForErr(errors.New("bad flag")))
}
