package errdefs

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorTypeStringCoversEveryType(t *testing.T) {
	for _, tc := range []struct {
		typ  ErrorType
		want string
	}{
		{ErrTypeUnsupportedPlatform, "UnsupportedPlatform"},
		{ErrTypeConflictingResource, "ConflictingResource"},
		{ErrTypeMissingPrerequisite, "MissingPrerequisite"},
		{ErrTypeInvalidSetting, "InvalidSetting"},
		{ErrTypeCommand, "Command"},
		{ErrTypeIO, "Io"},
		{ErrTypeHTTP, "Http"},
		{ErrTypeChecksum, "Checksum"},
		{ErrTypeUserAborted, "UserAborted"},
		{ErrTypeTimeout, "Timeout"},
		{ErrTypeCancelled, "Cancelled"},
		{ErrTypeLockHeld, "LockHeld"},
		{ErrTypeReceiptCorrupt, "ReceiptCorrupt"},
	} {
		assert.Equal(t, tc.want, tc.typ.String())
	}
}

func TestPlanErrorUnwrap(t *testing.T) {
	cause := errors.New("underlying")
	err := &PlanError{Type: ErrTypeInvalidSetting, Resource: "init", Message: "bad", Wrapped: cause}
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "init")
	assert.Contains(t, err.Error(), "bad")
}

func TestRevertResidueAccumulatesFailures(t *testing.T) {
	residue := &RevertResidue{}
	assert.False(t, residue.HasFailures())

	residue.Add("create directory /nix", errors.New("permission denied"))
	residue.Add("create group nixbld", errors.New("group in use"))

	assert.True(t, residue.HasFailures())
	assert.Len(t, residue.Failures, 2)
	assert.Contains(t, residue.Error(), "create directory /nix")
	assert.Contains(t, residue.Error(), "create group nixbld")
}

func TestNewCommandErrorFormatsExitCodeAndStderr(t *testing.T) {
	err := NewCommandError("tar", 2, "cannot open archive", nil)
	assert.Contains(t, err.Error(), "tar")
	assert.Contains(t, err.Error(), "2")
	assert.Contains(t, err.Error(), "cannot open archive")
}

func TestLockHeldErrorReportsPID(t *testing.T) {
	err := NewLockHeldError(4242)
	assert.Contains(t, err.Error(), "4242")
}
