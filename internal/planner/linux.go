package planner

import (
	"fmt"
	"time"

	"github.com/nixinstall/nix-installer-go/internal/action"
	"github.com/nixinstall/nix-installer-go/internal/errdefs"
	"github.com/nixinstall/nix-installer-go/internal/plan"
	"github.com/nixinstall/nix-installer-go/internal/probe"
	"github.com/nixinstall/nix-installer-go/internal/settings"
)

// LinuxPlanner produces: ProvisionSelinux (if applicable) →
// CreateNixTree → ProvisionNix → ConfigureNix → ConfigureInitService →
// SetupDefaultProfile, per spec.md §4.2.
type LinuxPlanner struct{}

func (l *LinuxPlanner) Name() string { return "linux" }

func (l *LinuxPlanner) Plan(s settings.Settings, p probe.Probes) (*plan.Plan, error) {
	if p.OS != "linux" {
		return nil, errdefs.NewUnsupportedPlatform("linux planner invoked on " + p.OS)
	}
	if s.Init == settings.InitLaunchd {
		return nil, errdefs.NewInvalidSetting("init", "launchd is not available on linux")
	}
	if p.NixDirExists && !s.Force {
		return nil, errdefs.NewConflictingResource("/nix", "already exists; pass --force to adopt or run repair")
	}

	root, err := l.buildRoot(s, p)
	if err != nil {
		return nil, err
	}
	if err := classifyLeaves(root); err != nil {
		return nil, err
	}
	return plan.New(l.Name(), s, root, time.Now()), nil
}

func (l *LinuxPlanner) buildRoot(s settings.Settings, p probe.Probes) (action.Action, error) {
	var top []action.Action

	if p.SELinux == probe.SELinuxEnforcing {
		top = append(top, action.NewConfigureSelinux("/usr/share/nix-installer/nix.pp", "nix", "/nix"))
	}

	nixTree := action.NewCreateDirectory("/nix", "root", "root", 0755, s.Force)
	top = append(top, nixTree)

	group, users, err := buildUsersAndGroup(s, p)
	if err != nil {
		return nil, err
	}
	fetchMove := fetchAndMoveActions(s, "/nix/temp-install-dir", "/nix/store")
	top = append(top, provisionNixAction(group, users, fetchMove...))

	configureNix := action.NewComposite("ConfigureNix", "configure nix.conf, channels, and shell profile", action.Sequential, 0, []action.Action{
		nixConfActions(s),
		channelActions(s),
		shellProfileAction(s),
	})
	top = append(top, configureNix)

	top = append(top, action.NewConfigureInitService(s.Init, "/etc/systemd/system", !s.NoStartDaemon))

	top = append(top, action.NewCreateDirectory("/nix/var/nix/profiles/per-user/root", "root", s.NixBuildGroupName, 0755, s.Force))

	return action.NewComposite("InstallLinux", fmt.Sprintf("install nix (%s)", l.Name()), action.Sequential, 0, top), nil
}
