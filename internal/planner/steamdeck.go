package planner

import (
	"time"

	"github.com/nixinstall/nix-installer-go/internal/action"
	"github.com/nixinstall/nix-installer-go/internal/plan"
	"github.com/nixinstall/nix-installer-go/internal/probe"
	"github.com/nixinstall/nix-installer-go/internal/settings"
)

// SteamDeckPlanner wraps LinuxPlanner and prepends a CreateBindMount
// putting /nix on /home (writable) instead of the immutable SteamOS
// root, per spec.md §4.2.
type SteamDeckPlanner struct {
	Linux *LinuxPlanner
}

func (sd *SteamDeckPlanner) Name() string { return "steam-deck" }

func (sd *SteamDeckPlanner) Plan(s settings.Settings, p probe.Probes) (*plan.Plan, error) {
	bindTarget := s.PlannerExtensions["steamdeck_bind_mount_target"]
	if bindTarget == "" {
		bindTarget = "/home/nix"
	}

	linuxPlan, err := sd.Linux.Plan(s, p)
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

	linuxPlan.Planner = sd.Name()
	linuxPlan.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	return linuxPlan, nil
}
