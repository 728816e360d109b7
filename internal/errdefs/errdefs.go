// Package errdefs defines the installer's three-tier error taxonomy:
// PlanError from planning, ActionError from execute/revert, and
// EngineError from the execution engine itself.
package errdefs

import "fmt"

// ErrorType discriminates the specific failure within its tier.
type ErrorType int

const (
	// PlanError sub-kinds.
	ErrTypeUnsupportedPlatform ErrorType = iota
	ErrTypeConflictingResource
	ErrTypeMissingPrerequisite
	ErrTypeInvalidSetting

	// ActionError sub-kinds.
	ErrTypeCommand
	ErrTypeIO
	ErrTypeHTTP
	ErrTypeChecksum
	ErrTypeUserAborted
	ErrTypeTimeout

	// EngineError sub-kinds.
	ErrTypeCancelled
	ErrTypeLockHeld
	ErrTypeReceiptCorrupt
)

func (t ErrorType) String() string {
	switch t {
	case ErrTypeUnsupportedPlatform:
		return "UnsupportedPlatform"
	case ErrTypeConflictingResource:
		return "ConflictingResource"
	case ErrTypeMissingPrerequisite:
		return "MissingPrerequisite"
	case ErrTypeInvalidSetting:
		return "InvalidSetting"
	case ErrTypeCommand:
		return "Command"
	case ErrTypeIO:
		return "Io"
	case ErrTypeHTTP:
		return "Http"
	case ErrTypeChecksum:
		return "Checksum"
	case ErrTypeUserAborted:
		return "UserAborted"
	case ErrTypeTimeout:
		return "Timeout"
	case ErrTypeCancelled:
		return "Cancelled"
	case ErrTypeLockHeld:
		return "LockHeld"
	case ErrTypeReceiptCorrupt:
		return "ReceiptCorrupt"
	default:
		return "Unknown"
	}
}

// PlanError is returned from planning. It never has side effects to
// revert: planning only reads the system.
type PlanError struct {
	Type     ErrorType
	Resource string
	Message  string
	Wrapped  error
}

func (e *PlanError) Error() string {
	if e.Resource != "" {
		return fmt.Sprintf("plan error (%s): %s: %s", e.Type, e.Resource, e.Message)
	}
	return fmt.Sprintf("plan error (%s): %s", e.Type, e.Message)
}

func (e *PlanError) Unwrap() error { return e.Wrapped }

func NewUnsupportedPlatform(message string) *PlanError {
	return &PlanError{Type: ErrTypeUnsupportedPlatform, Message: message}
}

func NewConflictingResource(resource, reason string) *PlanError {
	return &PlanError{Type: ErrTypeConflictingResource, Resource: resource, Message: reason}
}

func NewMissingPrerequisite(tool string) *PlanError {
	return &PlanError{Type: ErrTypeMissingPrerequisite, Resource: tool, Message: "required tool not found"}
}

func NewInvalidSetting(field, why string) *PlanError {
	return &PlanError{Type: ErrTypeInvalidSetting, Resource: field, Message: why}
}

// ActionError is returned from an Action's Execute or Revert.
type ActionError struct {
	Type       ErrorType
	Program    string
	Path       string
	URL        string
	ExitCode   int
	StderrTail string
	Expected   string
	Got        string
	Op         string
	Message    string
	Wrapped    error
}

func (e *ActionError) Error() string {
	switch e.Type {
	case ErrTypeCommand:
		return fmt.Sprintf("command %q exited %d: %s", e.Program, e.ExitCode, e.StderrTail)
	case ErrTypeIO:
		return fmt.Sprintf("io error at %q: %s", e.Path, e.Message)
	case ErrTypeHTTP:
		return fmt.Sprintf("http error fetching %q: %s", e.URL, e.Message)
	case ErrTypeChecksum:
		return fmt.Sprintf("checksum mismatch: expected %s got %s", e.Expected, e.Got)
	case ErrTypeUserAborted:
		return "aborted by user"
	case ErrTypeTimeout:
		return fmt.Sprintf("timed out during %s", e.Op)
	default:
		return e.Message
	}
}

func (e *ActionError) Unwrap() error { return e.Wrapped }

func NewCommandError(program string, exitCode int, stderrTail string, wrapped error) *ActionError {
	return &ActionError{Type: ErrTypeCommand, Program: program, ExitCode: exitCode, StderrTail: stderrTail, Wrapped: wrapped}
}

func NewIOError(path string, wrapped error) *ActionError {
	return &ActionError{Type: ErrTypeIO, Path: path, Message: wrapped.Error(), Wrapped: wrapped}
}

func NewHTTPError(url, message string, wrapped error) *ActionError {
	return &ActionError{Type: ErrTypeHTTP, URL: url, Message: message, Wrapped: wrapped}
}

func NewChecksumError(expected, got string) *ActionError {
	return &ActionError{Type: ErrTypeChecksum, Expected: expected, Got: got}
}

var ErrUserAborted = &ActionError{Type: ErrTypeUserAborted}

func NewTimeoutError(op string) *ActionError {
	return &ActionError{Type: ErrTypeTimeout, Op: op}
}

// EngineError originates in the execution engine rather than a
// specific Action.
type EngineError struct {
	Type    ErrorType
	PID     int
	Path    string
	Message string
	Wrapped error
}

func (e *EngineError) Error() string {
	switch e.Type {
	case ErrTypeCancelled:
		return "cancelled"
	case ErrTypeLockHeld:
		return fmt.Sprintf("install lock held by pid %d", e.PID)
	case ErrTypeReceiptCorrupt:
		return fmt.Sprintf("receipt corrupt at %q: %s", e.Path, e.Message)
	default:
		return e.Message
	}
}

func (e *EngineError) Unwrap() error { return e.Wrapped }

var ErrCancelled = &EngineError{Type: ErrTypeCancelled, Message: "operation cancelled"}

func NewLockHeldError(pid int) *EngineError {
	return &EngineError{Type: ErrTypeLockHeld, PID: pid}
}

func NewReceiptCorruptError(path string, wrapped error) *EngineError {
	msg := ""
	if wrapped != nil {
		msg = wrapped.Error()
	}
	return &EngineError{Type: ErrTypeReceiptCorrupt, Path: path, Message: msg, Wrapped: wrapped}
}

// RevertResidue accumulates the errors encountered while a composite
// Action attempts to revert every child best-effort (spec.md §7).
type RevertResidue struct {
	Failures []ResidueEntry
}

// ResidueEntry names one Action that could not be fully undone.
type ResidueEntry struct {
	Synopsis string
	Err      error
}

func (r *RevertResidue) Add(synopsis string, err error) {
	r.Failures = append(r.Failures, ResidueEntry{Synopsis: synopsis, Err: err})
}

func (r *RevertResidue) HasFailures() bool { return len(r.Failures) > 0 }

func (r *RevertResidue) Error() string {
	if !r.HasFailures() {
		return "revert completed with no residue"
	}
	msg := fmt.Sprintf("%d action(s) could not be fully reverted:\n", len(r.Failures))
	for _, f := range r.Failures {
		msg += fmt.Sprintf("  - %s: %v\n", f.Synopsis, f.Err)
	}
	return msg
}
