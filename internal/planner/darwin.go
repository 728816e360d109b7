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

// DarwinPlanner inserts CreateApfsVolume (or, when /nix is already on
// APFS, a plain CreateDirectory) before ProvisionNix, and a
// KickstartLaunchctlService after ConfigureInitService. It plans no
// separate launchd hook service.
type DarwinPlanner struct{}

func (d *DarwinPlanner) Name() string { return "macos" }

func (d *DarwinPlanner) Plan(s settings.Settings, p probe.Probes) (*plan.Plan, error) {
	if p.OS != "darwin" {
		return nil, errdefs.NewUnsupportedPlatform("macos planner invoked on " + p.OS)
	}
	if s.Init == settings.InitSystemd {
		return nil, errdefs.NewInvalidSetting("init", "systemd is not available on macos")
	}
	if p.NixDirExists && !s.Force {
		return nil, errdefs.NewConflictingResource("/nix", "already exists; pass --force to adopt or run repair")
	}

	root, err := d.buildRoot(s, p)
	if err != nil {
		return nil, err
	}
	if err := classifyLeaves(root); err != nil {
		return nil, err
	}
	return plan.New(d.Name(), s, root, time.Now()), nil
}

func (d *DarwinPlanner) buildRoot(s settings.Settings, p probe.Probes) (action.Action, error) {
	var top []action.Action

	needsVolume := p.NixDirFSType != "apfs"
	if needsVolume {
		top = append(top, action.NewCreateApfsVolume("disk1", "Nix Store", "/nix", "/etc/synthetic.conf", "/etc/fstab"))
	} else {
		top = append(top, action.NewCreateDirectory("/nix", "root", "wheel", 0755, s.Force))
	}

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

	top = append(top, action.NewConfigureInitService(s.Init, "/Library/LaunchDaemons", !s.NoStartDaemon))
	top = append(top, action.NewKickstartLaunchctlService("system/org.nixos.nix-daemon"))

	top = append(top, action.NewCreateDirectory("/nix/var/nix/profiles/per-user/root", "root", s.NixBuildGroupName, 0755, s.Force))

	return action.NewComposite("InstallMacOS", fmt.Sprintf("install nix (%s)", d.Name()), action.Sequential, 0, top), nil
}
