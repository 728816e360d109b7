// Package cure implements C7 from spec.md §2 / §4.4: when Nix
// artifacts exist but no receipt does, synthesize a Plan biased toward
// Adopt from probes and any legacy upstream-script artifacts, then
// hand it to internal/engine like a fresh install.
package cure

import (
	"os"
	"time"

	"github.com/nixinstall/nix-installer-go/internal/action"
	"github.com/nixinstall/nix-installer-go/internal/errdefs"
	"github.com/nixinstall/nix-installer-go/internal/plan"
	"github.com/nixinstall/nix-installer-go/internal/planner"
	"github.com/nixinstall/nix-installer-go/internal/probe"
	"github.com/nixinstall/nix-installer-go/internal/settings"
)

// LegacyArtifacts is what the diagnosis step finds on a host installed
// by the pre-receipt upstream shell script, per spec.md §4.4 point 1.
type LegacyArtifacts struct {
	HasBashrcBackup bool
	HasNixStore     bool
	HasBuildGroup   bool
}

// DetectLegacyArtifacts probes the fixed paths/names the upstream
// install script leaves behind.
func DetectLegacyArtifacts(buildGroupName string) LegacyArtifacts {
	_, hasGroup, _ := probe.LookupGroup(buildGroupName)
	return LegacyArtifacts{
		HasBashrcBackup: probe.PathExists("/etc/bashrc.backup-before-nix"),
		HasNixStore:     probe.PathExists("/nix/store"),
		HasBuildGroup:   hasGroup,
	}
}

// Diagnose reports whether a cure Plan is applicable at all: some
// Nix artifacts must exist, but no current-schema receipt.
func Diagnose(receiptExists bool, legacy LegacyArtifacts) bool {
	return !receiptExists && (legacy.HasNixStore || legacy.HasBuildGroup || probe.PathExists("/nix"))
}

// Build synthesizes a cure Plan: it runs the normal platform Planner
// with Force implied (since /nix already exists) and then rewrites
// every CreateDirectory/CreateUser/CreateGroup Action's Disposition
// to Adopt wherever the resource is already present in the desired
// shape, per spec.md §4.4 point 3 ("Actions biased toward Adopt").
// The init service, shell profile, and nix.conf Actions are left
// un-adopted so their Execute rewrites them to canonical values.
func Build(s settings.Settings, p probe.Probes) (*plan.Plan, error) {
	cureSettings := s
	cureSettings.Force = true

	sel, err := planner.Select(p)
	if err != nil {
		return nil, err
	}
	built, err := sel.Plan(cureSettings, p)
	if err != nil {
		return nil, err
	}

	biasTowardAdopt(built.Root)
	built.DiagnosticData = map[string]string{"path": "cure"}
	built.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	return built, nil
}

// biasTowardAdopt walks the tree and re-plans every leaf Action that
// exposes a Plan() classification method, so pre-existing resources
// come out Adopt rather than Conflict now that Force is implied.
func biasTowardAdopt(a action.Action) {
	if composite, ok := a.(action.Composite); ok {
		for _, child := range composite.Children() {
			biasTowardAdopt(child)
		}
		return
	}
	if planner, ok := a.(interface{ Plan() error }); ok {
		_ = planner.Plan()
	}
}

// ReadLegacyReceipt attempts to parse an old-schema receipt.json,
// returning nil if none is present or it can't be parsed as the
// current schema (a genuine migration shim is out of scope here; see
// DESIGN.md's internal/cure entry for the rationale).
func ReadLegacyReceipt(path string) (*plan.Plan, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errdefs.NewIOError(path, err)
	}
	p, err := plan.UnmarshalCanonicalJSON(data, path)
	if err != nil {
		return nil, nil
	}
	return p, nil
}
