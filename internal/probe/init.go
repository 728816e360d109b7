package probe

import (
	"context"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/godbus/dbus/v5"
)

// InitFlavor is one of {launchd, systemd, none} (spec.md glossary).
type InitFlavor string

const (
	InitSystemd InitFlavor = "systemd"
	InitLaunchd InitFlavor = "launchd"
	InitNone    InitFlavor = "none"
)

// DetectInitFlavor decides which init system manages services on this
// host. It never shells out: on Linux it asks the system D-Bus for
// org.freedesktop.systemd1 the same way internal/server/loginctl in
// the teacher repo talks to org.freedesktop.login1, falling back to
// "none" (e.g. inside most containers, where neither systemd nor a
// reachable bus exists).
func DetectInitFlavor(ctx context.Context) InitFlavor {
	switch runtime.GOOS {
	case "darwin":
		return InitLaunchd
	case "linux":
		if systemdReachable(ctx) {
			return InitSystemd
		}
		return InitNone
	default:
		return InitNone
	}
}

func systemdReachable(ctx context.Context) bool {
	conn, err := dbus.SystemBusPrivate()
	if err != nil {
		return false
	}
	defer conn.Close()

	deadline, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := conn.Auth(nil); err != nil {
		return false
	}
	if err := conn.Hello(); err != nil {
		return false
	}

	obj := conn.Object("org.freedesktop.systemd1", "/org/freedesktop/systemd1")
	var version string
	call := obj.CallWithContext(deadline, "org.freedesktop.DBus.Properties.Get", 0,
		"org.freedesktop.systemd1.Manager", "Version")
	if call.Err != nil {
		return false
	}
	if err := call.Store(&version); err != nil {
		return false
	}
	return version != ""
}

// UnitActiveState queries systemd1 for a unit's ActiveState property
// (e.g. "active", "inactive", "failed") without shelling to
// `systemctl is-active`. Used by internal/selftest for daemon
// reachability.
func UnitActiveState(ctx context.Context, unit string) (string, error) {
	conn, err := dbus.SystemBusPrivate()
	if err != nil {
		return "", err
	}
	defer conn.Close()
	if err := conn.Auth(nil); err != nil {
		return "", err
	}
	if err := conn.Hello(); err != nil {
		return "", err
	}

	manager := conn.Object("org.freedesktop.systemd1", "/org/freedesktop/systemd1")
	var unitPath dbus.ObjectPath
	call := manager.CallWithContext(ctx, "org.freedesktop.systemd1.Manager.GetUnit", 0, unit)
	if call.Err != nil {
		return "", call.Err
	}
	if err := call.Store(&unitPath); err != nil {
		return "", err
	}

	unitObj := conn.Object("org.freedesktop.systemd1", unitPath)
	var state dbus.Variant
	call = unitObj.CallWithContext(ctx, "org.freedesktop.DBus.Properties.Get", 0,
		"org.freedesktop.systemd1.Unit", "ActiveState")
	if call.Err != nil {
		return "", call.Err
	}
	if err := call.Store(&state); err != nil {
		return "", err
	}
	if s, ok := state.Value().(string); ok {
		return s, nil
	}
	return "", nil
}

// IsContainer applies the common heuristics for "this process is
// inside a container" (cgroup/namespace based tooling would be
// overkill for a one-shot installer).
func IsContainer() bool {
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return true
	}
	if _, err := os.Stat("/run/.containerenv"); err == nil {
		return true
	}
	return false
}

// IsWSL detects Windows Subsystem for Linux via the kernel release
// string, the same signal the real Nix installer and most distro
// detectors use.
func IsWSL() bool {
	data, err := os.ReadFile("/proc/sys/kernel/osrelease")
	if err != nil {
		return false
	}
	s := strings.ToLower(string(data))
	return strings.Contains(s, "microsoft") || strings.Contains(s, "wsl")
}
