// Package planner implements C4 from spec.md §2: per-platform
// constructors that consult probes and Settings to build a root
// Action tree. Grounded on the teacher's per-distro handler pattern
// (internal/distros/nixos.go, internal/distros/factory.go): one
// concrete type per target, registered by name, selected at runtime.
package planner

import (
	"fmt"
	"runtime"

	"github.com/nixinstall/nix-installer-go/internal/action"
	"github.com/nixinstall/nix-installer-go/internal/errdefs"
	"github.com/nixinstall/nix-installer-go/internal/plan"
	"github.com/nixinstall/nix-installer-go/internal/probe"
	"github.com/nixinstall/nix-installer-go/internal/settings"
)

// Planner is a function (Settings, Probes) → Plan | PlanError, per
// spec.md §4.2.
type Planner interface {
	Name() string
	Plan(s settings.Settings, p probe.Probes) (*plan.Plan, error)
}

// Select returns the Planner appropriate for the probed host, mapping
// the OS/environment combination to one of the four platform targets
// spec.md §4.2 names.
func Select(p probe.Probes) (Planner, error) {
	switch {
	case p.OS == "linux" && isSteamDeck(p):
		return &SteamDeckPlanner{Linux: &LinuxPlanner{}}, nil
	case p.OS == "linux" && p.DistroFamily == probe.DistroNixOS:
		return nil, errdefs.NewUnsupportedPlatform("NixOS already has Nix; manage it through the NixOS configuration")
	case p.OS == "linux" && isOstree(p):
		return &OstreePlanner{Linux: &LinuxPlanner{}}, nil
	case p.OS == "linux":
		return &LinuxPlanner{}, nil
	case p.OS == "darwin":
		return &DarwinPlanner{}, nil
	default:
		return nil, errdefs.NewUnsupportedPlatform(fmt.Sprintf("no planner for os %q", p.OS))
	}
}

// classifyLeaves walks root and calls Plan() on every leaf Action that
// exposes Create/Adopt/Conflict classification (spec.md §4.1.1),
// surfacing a ConflictingResource as the PlanError it already
// constructs. Leaves without a Plan() method (FetchAndUnpackNix,
// ConfigureShellProfile, ...) have no disposition to classify and are
// always executed forward, so they're skipped. Composites recurse into
// their children. This must run before a Plan is handed to the
// engine: it's the only place §8 "conflict detection" and "reversal
// completeness" (Adopt resources surviving revert) are enforced.
func classifyLeaves(a action.Action) error {
	if composite, ok := a.(action.Composite); ok {
		for _, child := range composite.Children() {
			if err := classifyLeaves(child); err != nil {
				return err
			}
		}
		return nil
	}
	if classifier, ok := a.(interface{ Plan() error }); ok {
		return classifier.Plan()
	}
	return nil
}

func isSteamDeck(p probe.Probes) bool {
	return probe.PathExists("/etc/os-release") && p.DistroFamily == probe.DistroArch && probe.PathExists("/etc/steamos-release")
}

func isOstree(p probe.Probes) bool {
	return probe.PathExists("/run/ostree-booted")
}

// buildUsersAndGroup constructs the CreateGroup + CreateUser Actions
// shared by every platform planner, per spec.md §4.2 point 3.
func buildUsersAndGroup(s settings.Settings, p probe.Probes) (*action.CreateGroup, []*action.CreateUser, error) {
	group := action.NewCreateGroup(s.NixBuildGroupName, s.NixBuildGroupID)

	uids, err := probe.FirstUnusedUID(s.NixBuildUserIDBase, s.NixBuildUserCount)
	if err != nil {
		return nil, nil, errdefs.NewMissingPrerequisite(fmt.Sprintf("uid range starting at %d", s.NixBuildUserIDBase+1))
	}

	users := make([]*action.CreateUser, 0, s.NixBuildUserCount)
	for i := 0; i < s.NixBuildUserCount; i++ {
		name := fmt.Sprintf("%s%d", s.NixBuildUserPrefix, i+1)
		uid := uids[i]
		if existing, ok := p.ExistingUsers[name]; ok {
			uid = existing.UID
		}
		comment := fmt.Sprintf("Nix build user %d", i+1)
		users = append(users, action.NewCreateUser(name, uid, s.NixBuildGroupID, comment))
	}
	return group, users, nil
}

func provisionNixAction(group *action.CreateGroup, users []*action.CreateUser, storeActions ...action.Action) action.Action {
	children := make([]action.Action, 0, len(users)+2)
	children = append(children, group)
	for _, u := range users {
		children = append(children, u)
	}
	children = append(children, storeActions...)
	return action.NewComposite("ProvisionNix", "provision nix users, group, and store", action.Parallel, 8, children)
}

func fetchAndMoveActions(s settings.Settings, tempDir, storeDir string) []action.Action {
	url := s.NixPackageURL
	if url == "" {
		url = defaultTarballURL(s)
	}
	fetch := action.NewFetchAndUnpackNix(url, "", tempDir, s.Proxy, s.SSLCertFile)
	move := action.NewMoveUnpackedNix(tempDir, storeDir)
	return []action.Action{
		action.NewComposite("FetchAndInstall", "fetch and install nix store", action.Sequential, 0, []action.Action{fetch, move}),
	}
}

// defaultTarballURL mirrors original_source/src/settings.rs's
// per-arch/os default: releases.nixos.org resolved by triple.
func defaultTarballURL(s settings.Settings) string {
	return fmt.Sprintf("https://releases.nixos.org/nix/nix-2.24.9/nix-2.24.9-%s.tar.xz", tripleFor())
}

// tripleFor maps the running Go process's GOARCH/GOOS to the Nix
// release triple naming convention.
func tripleFor() string {
	arch := runtime.GOARCH
	switch arch {
	case "amd64":
		arch = "x86_64"
	case "arm64":
		arch = "aarch64"
	}
	osName := runtime.GOOS
	if osName == "darwin" {
		return arch + "-darwin"
	}
	return arch + "-linux"
}

func nixConfActions(s settings.Settings) action.Action {
	return action.NewPlaceNixConfiguration("/etc/nix/nix.conf", "/etc/nix/nix.custom.conf", s.ExtraConf, s.SSLCertFile)
}

func channelActions(s settings.Settings) action.Action {
	names := make([]string, len(s.Channels))
	urls := make([]string, len(s.Channels))
	for i, c := range s.Channels {
		names[i], urls[i] = c.Name, c.URL
	}
	return action.NewPlaceChannelConfiguration("/root/.nix-channels", names, urls)
}

func shellProfileAction(s settings.Settings) action.Action {
	block := "if [ -e '/nix/var/nix/profiles/default/etc/profile.d/nix-daemon.sh' ]; then\n" +
		"  . '/nix/var/nix/profiles/default/etc/profile.d/nix-daemon.sh'\n" +
		"fi"
	paths := []string{"/etc/bashrc", "/etc/zshenv", "/etc/profile.d/nix.sh"}
	return action.NewConfigureShellProfile(paths, block)
}
