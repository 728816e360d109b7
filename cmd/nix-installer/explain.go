package main

import (
	"errors"
	"fmt"

	"github.com/nixinstall/nix-installer-go/internal/errdefs"
)

// explain prints one line of remediation guidance per error tier, for
// --explain. It never changes the error returned to the shell, only
// what's printed alongside it.
func explain(err error) {
	var planErr *errdefs.PlanError
	if errors.As(err, &planErr) {
		switch planErr.Type {
		case errdefs.ErrTypeConflictingResource:
			fmt.Printf("hint: %s already exists in a state the planner doesn't recognize; rerun with --force to adopt it, or remove it by hand.\n", planErr.Resource)
		case errdefs.ErrTypeMissingPrerequisite:
			fmt.Printf("hint: install %s and rerun.\n", planErr.Resource)
		case errdefs.ErrTypeInvalidSetting:
			fmt.Printf("hint: check --%s; %s\n", planErr.Resource, planErr.Message)
		case errdefs.ErrTypeUnsupportedPlatform:
			fmt.Println("hint: this host is not a supported install target.")
		}
		return
	}

	var actionErr *errdefs.ActionError
	if errors.As(err, &actionErr) {
		switch actionErr.Type {
		case errdefs.ErrTypeCommand:
			fmt.Printf("hint: %q exited %d; rerun with -v for its output.\n", actionErr.Program, actionErr.ExitCode)
		case errdefs.ErrTypeChecksum:
			fmt.Println("hint: the downloaded tarball didn't match its expected checksum; rerun, and if it persists, pass --nix-package-url to pin a known-good build.")
		case errdefs.ErrTypeHTTP:
			fmt.Printf("hint: fetching %s failed; check connectivity or pass --proxy.\n", actionErr.URL)
		}
		return
	}

	var engineErr *errdefs.EngineError
	if errors.As(err, &engineErr) {
		if engineErr.Type == errdefs.ErrTypeLockHeld {
			fmt.Printf("hint: another nix-installer (pid %d) is already running.\n", engineErr.PID)
		}
		return
	}

	var residue *errdefs.RevertResidue
	if errors.As(err, &residue) {
		fmt.Println("hint: rollback left some resources in place; rerun `nix-installer uninstall` or `nix-installer repair` once the underlying issue is fixed.")
	}
}
