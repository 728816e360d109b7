package action

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/nixinstall/nix-installer-go/internal/errdefs"
	"github.com/nixinstall/nix-installer-go/internal/settings"
)

const (
	systemdServiceUnit = `[Unit]
Description=Nix Daemon
Documentation=man:nix-daemon(8)
RequiresMountsFor=/nix/store

[Service]
ExecStart=/nix/var/nix/profiles/default/bin/nix-daemon
KillMode=process
LimitNOFILE=1048576
TasksMax=infinity

[Install]
WantedBy=multi-user.target
`
	systemdSocketUnit = `[Unit]
Description=Nix Daemon Socket

[Socket]
ListenStream=/nix/var/nix/daemon-socket/socket

[Install]
WantedBy=sockets.target
`
	launchdPlist = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
	<key>Label</key>
	<string>org.nixos.nix-daemon</string>
	<key>ProgramArguments</key>
	<array>
		<string>/nix/var/nix/profiles/default/bin/nix-daemon</string>
	</array>
	<key>RunAtLoad</key>
	<true/>
	<key>KeepAlive</key>
	<true/>
	<key>StandardErrorPath</key>
	<string>/var/log/nix-daemon.log</string>
	<key>StandardOutPath</key>
	<string>/var/log/nix-daemon.log</string>
</dict>
</plist>
`
)

// ConfigureInitService writes and enables the daemon unit for the
// chosen init flavor, per spec.md §4.1. For settings.InitNone it is a
// well-defined no-op Execute/Revert pair (containers with no init).
type ConfigureInitService struct {
	Flavor        settings.InitChoice `json:"flavor"`
	UnitDir       string              `json:"unit_dir"`
	StartDaemon   bool                `json:"start_daemon"`
	writtenPaths  []string
	state         State
}

func NewConfigureInitService(flavor settings.InitChoice, unitDir string, startDaemon bool) *ConfigureInitService {
	return &ConfigureInitService{Flavor: flavor, UnitDir: unitDir, StartDaemon: startDaemon, state: StateUncompleted}
}

func (a *ConfigureInitService) Kind() string     { return "ConfigureInitService" }
func (a *ConfigureInitService) State() State     { return a.state }
func (a *ConfigureInitService) Synopsis() string { return fmt.Sprintf("configure %s init service", a.Flavor) }
func (a *ConfigureInitService) SpanData() map[string]string {
	return map[string]string{"flavor": string(a.Flavor)}
}

func (a *ConfigureInitService) Execute(ac Context) error {
	if a.state == StateCompleted {
		return nil
	}
	a.state = StateProgress
	ac.emit(ProgressMsg{Kind: a.Kind(), Synopsis: a.Synopsis()})

	switch a.Flavor {
	case settings.InitNone:
		a.state = StateCompleted
		return nil
	case settings.InitSystemd:
		if err := a.executeSystemd(ac); err != nil {
			return err
		}
	case settings.InitLaunchd:
		if err := a.executeLaunchd(ac); err != nil {
			return err
		}
	default:
		return errdefs.NewCommandError("ConfigureInitService", -1, fmt.Sprintf("unknown init flavor %q", a.Flavor), nil)
	}
	a.state = StateCompleted
	return nil
}

func (a *ConfigureInitService) executeSystemd(ac Context) error {
	servicePath := a.UnitDir + "/nix-daemon.service"
	socketPath := a.UnitDir + "/nix-daemon.socket"
	if err := atomicWriteFile(servicePath, []byte(systemdServiceUnit), 0644); err != nil {
		return err
	}
	if err := atomicWriteFile(socketPath, []byte(systemdSocketUnit), 0644); err != nil {
		return err
	}
	a.writtenPaths = []string{servicePath, socketPath}

	if err := runCommand(ac, a.Kind(), "systemctl", "daemon-reload"); err != nil {
		return err
	}
	if !a.StartDaemon {
		return nil
	}
	if err := runCommand(ac, a.Kind(), "systemctl", "enable", "--now", "nix-daemon.socket"); err != nil {
		return err
	}
	return nil
}

func (a *ConfigureInitService) executeLaunchd(ac Context) error {
	plistPath := a.UnitDir + "/org.nixos.nix-daemon.plist"
	if err := atomicWriteFile(plistPath, []byte(launchdPlist), 0644); err != nil {
		return err
	}
	a.writtenPaths = []string{plistPath}
	if !a.StartDaemon {
		return nil
	}
	return runCommand(ac, a.Kind(), "launchctl", "load", "-w", plistPath)
}

func (a *ConfigureInitService) Revert(ac Context) error {
	if a.state == StateUncompleted {
		return nil
	}
	switch a.Flavor {
	case settings.InitSystemd:
		if a.StartDaemon {
			_ = runCommand(ac, a.Kind(), "systemctl", "disable", "--now", "nix-daemon.socket")
		}
	case settings.InitLaunchd:
		if len(a.writtenPaths) > 0 && a.StartDaemon {
			_ = runCommand(ac, a.Kind(), "launchctl", "unload", a.writtenPaths[0])
		}
	}
	for _, p := range a.writtenPaths {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return errdefs.NewIOError(p, err)
		}
	}
	a.state = StateUncompleted
	return nil
}

func (a *ConfigureInitService) MarshalState() (json.RawMessage, error) {
	return json.Marshal(struct {
		Flavor       settings.InitChoice `json:"flavor"`
		UnitDir      string              `json:"unit_dir"`
		StartDaemon  bool                `json:"start_daemon"`
		WrittenPaths []string            `json:"written_paths"`
		State        State               `json:"state"`
	}{a.Flavor, a.UnitDir, a.StartDaemon, a.writtenPaths, a.state})
}

func (a *ConfigureInitService) UnmarshalState(data json.RawMessage) error {
	var w struct {
		Flavor       settings.InitChoice `json:"flavor"`
		UnitDir      string              `json:"unit_dir"`
		StartDaemon  bool                `json:"start_daemon"`
		WrittenPaths []string            `json:"written_paths"`
		State        State               `json:"state"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return errdefs.NewReceiptCorruptError("", err)
	}
	a.Flavor, a.UnitDir, a.StartDaemon, a.writtenPaths, a.state = w.Flavor, w.UnitDir, w.StartDaemon, w.WrittenPaths, w.State
	return nil
}

// ConfigureUpstreamInitService is the cure-layer variant for an init
// unit left by the legacy upstream install script. It delegates to an
// inner ConfigureInitService (with StartDaemon set), which overwrites
// the unit files in full with the canonical contents.
type ConfigureUpstreamInitService struct {
	Flavor  settings.InitChoice `json:"flavor"`
	UnitDir string              `json:"unit_dir"`
	inner   *ConfigureInitService
	state   State
}

func NewConfigureUpstreamInitService(flavor settings.InitChoice, unitDir string) *ConfigureUpstreamInitService {
	return &ConfigureUpstreamInitService{
		Flavor:  flavor,
		UnitDir: unitDir,
		inner:   NewConfigureInitService(flavor, unitDir, true),
		state:   StateUncompleted,
	}
}

func (a *ConfigureUpstreamInitService) Kind() string { return "ConfigureUpstreamInitService" }
func (a *ConfigureUpstreamInitService) State() State { return a.state }
func (a *ConfigureUpstreamInitService) Synopsis() string {
	return "adopt and reconfigure upstream " + string(a.Flavor) + " service"
}
func (a *ConfigureUpstreamInitService) SpanData() map[string]string {
	return map[string]string{"flavor": string(a.Flavor)}
}

func (a *ConfigureUpstreamInitService) Execute(ac Context) error {
	if a.state == StateCompleted {
		return nil
	}
	a.state = StateProgress
	if err := a.inner.Execute(ac); err != nil {
		return err
	}
	a.state = StateCompleted
	return nil
}

func (a *ConfigureUpstreamInitService) Revert(ac Context) error {
	if a.state == StateUncompleted {
		return nil
	}
	// The upstream unit predates this installer; leave it rather than
	// remove something we did not create from scratch.
	a.state = StateUncompleted
	return nil
}

func (a *ConfigureUpstreamInitService) MarshalState() (json.RawMessage, error) {
	inner, err := a.inner.MarshalState()
	if err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		Flavor  settings.InitChoice `json:"flavor"`
		UnitDir string              `json:"unit_dir"`
		Inner   json.RawMessage     `json:"inner"`
		State   State               `json:"state"`
	}{a.Flavor, a.UnitDir, inner, a.state})
}

func (a *ConfigureUpstreamInitService) UnmarshalState(data json.RawMessage) error {
	var w struct {
		Flavor  settings.InitChoice `json:"flavor"`
		UnitDir string              `json:"unit_dir"`
		Inner   json.RawMessage     `json:"inner"`
		State   State               `json:"state"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return errdefs.NewReceiptCorruptError("", err)
	}
	a.Flavor, a.UnitDir, a.state = w.Flavor, w.UnitDir, w.State
	a.inner = NewConfigureInitService(w.Flavor, w.UnitDir, true)
	if w.Inner != nil {
		if err := a.inner.UnmarshalState(w.Inner); err != nil {
			return err
		}
	}
	return nil
}
