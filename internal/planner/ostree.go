package planner

import (
	"time"

	"github.com/nixinstall/nix-installer-go/internal/action"
	"github.com/nixinstall/nix-installer-go/internal/plan"
	"github.com/nixinstall/nix-installer-go/internal/probe"
	"github.com/nixinstall/nix-installer-go/internal/settings"
)

// OstreePlanner wraps LinuxPlanner and prepends a CreateBindMount
// putting /nix on /var (the writable ostree deployment path) instead
// of the read-only ostree-managed root, per spec.md §4.2.
type OstreePlanner struct {
	Linux *LinuxPlanner
}

func (o *OstreePlanner) Name() string { return "ostree" }

func (o *OstreePlanner) Plan(s settings.Settings, p probe.Probes) (*plan.Plan, error) {
	bindTarget := s.PlannerExtensions["ostree_bind_mount_target"]
	if bindTarget == "" {
		bindTarget = "/var/nix"
	}

	linuxPlan, err := o.Linux.Plan(s, p)
	if err != nil {
		return nil, err
	}

	bindMount := action.NewCreateBindMount(bindTarget, "/nix", "/etc/fstab")
	linuxComposite, ok := linuxPlan.Root.(*action.Base)
	if !ok {
		return linuxPlan, nil
	}
	children := append([]action.Action{bindMount}, linuxComposite.Children()...)
	linuxComposite.SetChildren(children)

	linuxPlan.Planner = o.Name()
	linuxPlan.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	return linuxPlan, nil
}
