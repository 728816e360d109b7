// Package probe implements C1 from spec.md §2: pure reads of host
// state that Planners (internal/planner) consult to build a Plan.
// Nothing in this package mutates the system.
package probe

import (
	"context"
	"runtime"
	"strconv"
)

// Probes is the bundle a Planner receives alongside Settings (spec.md
// §4.2: "A Planner is a function (Settings, Probes) → Plan | PlanError").
type Probes struct {
	OS             string
	Arch           string
	InitFlavor     InitFlavor
	DistroFamily   DistroFamily
	SELinux        SELinuxMode
	IsContainer    bool
	IsWSL          bool
	NixDirExists   bool
	NixDirFSType   string
	ExistingUsers  map[string]UserInfo
	ExistingGroups map[string]GroupInfo
}

// Collect runs every probe once. Planners call this at the start of
// planning; nothing here is re-read once a Plan exists, per the
// invariant in spec.md §4.1 that stored inputs must be sufficient to
// execute/revert without consulting the environment again.
func Collect(ctx context.Context, buildGroupName string, buildUserPrefix string, buildUserCount int) Probes {
	p := Probes{
		OS:             runtime.GOOS,
		Arch:           runtime.GOARCH,
		InitFlavor:     DetectInitFlavor(ctx),
		IsContainer:    IsContainer(),
		IsWSL:          IsWSL(),
		NixDirExists:   PathExists("/nix"),
		ExistingUsers:  map[string]UserInfo{},
		ExistingGroups: map[string]GroupInfo{},
	}

	if runtime.GOOS == "linux" {
		p.DistroFamily = DetectDistroFamily()
		p.SELinux = DetectSELinuxMode()
	} else {
		p.DistroFamily = DistroUnknown
		p.SELinux = SELinuxNotPresent
	}

	if p.NixDirExists {
		if fsType, err := FilesystemTypeAt("/nix"); err == nil {
			p.NixDirFSType = fsType
		}
	}

	if group, ok, err := LookupGroup(buildGroupName); err == nil && ok {
		p.ExistingGroups[buildGroupName] = group
	}
	for i := 1; i <= buildUserCount; i++ {
		name := buildUserPrefix + strconv.Itoa(i)
		if user, ok, err := LookupUser(name); err == nil && ok {
			p.ExistingUsers[name] = user
		}
	}

	return p
}
