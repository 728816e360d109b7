package action

import (
	"encoding/json"

	"github.com/nixinstall/nix-installer-go/internal/errdefs"
)

// ConfigureSelinux loads a precompiled policy module and labels /nix,
// per spec.md §4.1. A failure of either step is returned as an error.
// Revert removes the module whenever it was loaded, including when
// labeling failed; it does not undo the labeling.
type ConfigureSelinux struct {
	PolicyModulePath string `json:"policy_module_path"`
	ModuleName       string `json:"module_name"`
	LabelPath        string `json:"label_path"`
	loaded           bool
	labeled          bool
	state            State
}

func NewConfigureSelinux(policyModulePath, moduleName, labelPath string) *ConfigureSelinux {
	return &ConfigureSelinux{PolicyModulePath: policyModulePath, ModuleName: moduleName, LabelPath: labelPath, state: StateUncompleted}
}

func (a *ConfigureSelinux) Kind() string     { return "ConfigureSelinux" }
func (a *ConfigureSelinux) State() State     { return a.state }
func (a *ConfigureSelinux) Synopsis() string { return "load selinux policy " + a.ModuleName }
func (a *ConfigureSelinux) SpanData() map[string]string {
	return map[string]string{"module": a.ModuleName, "path": a.LabelPath}
}

func (a *ConfigureSelinux) Execute(ac Context) error {
	if a.state == StateCompleted {
		return nil
	}
	a.state = StateProgress
	ac.emit(ProgressMsg{Kind: a.Kind(), Synopsis: a.Synopsis()})

	if err := runCommand(ac, a.Kind(), "semodule", "-i", a.PolicyModulePath); err != nil {
		return err
	}
	a.loaded = true

	if err := runCommand(ac, a.Kind(), "restorecon", "-R", a.LabelPath); err != nil {
		// Module loaded but labeling failed: leave loaded=true so
		// Revert still removes the module, but don't mark labeled.
		return errdefs.NewCommandError("restorecon", -1, err.Error(), err)
	}
	a.labeled = true
	a.state = StateCompleted
	return nil
}

func (a *ConfigureSelinux) Revert(ac Context) error {
	if a.state == StateUncompleted {
		return nil
	}
	if a.loaded {
		if err := runCommand(ac, a.Kind(), "semodule", "-r", a.ModuleName); err != nil {
			return err
		}
	}
	a.state = StateUncompleted
	return nil
}

func (a *ConfigureSelinux) MarshalState() (json.RawMessage, error) {
	return json.Marshal(struct {
		PolicyModulePath string `json:"policy_module_path"`
		ModuleName       string `json:"module_name"`
		LabelPath        string `json:"label_path"`
		Loaded           bool   `json:"loaded"`
		Labeled          bool   `json:"labeled"`
		State            State  `json:"state"`
	}{a.PolicyModulePath, a.ModuleName, a.LabelPath, a.loaded, a.labeled, a.state})
}

func (a *ConfigureSelinux) UnmarshalState(data json.RawMessage) error {
	var w struct {
		PolicyModulePath string `json:"policy_module_path"`
		ModuleName       string `json:"module_name"`
		LabelPath        string `json:"label_path"`
		Loaded           bool   `json:"loaded"`
		Labeled          bool   `json:"labeled"`
		State            State  `json:"state"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return errdefs.NewReceiptCorruptError("", err)
	}
	a.PolicyModulePath, a.ModuleName, a.LabelPath = w.PolicyModulePath, w.ModuleName, w.LabelPath
	a.loaded, a.labeled, a.state = w.Loaded, w.Labeled, w.State
	return nil
}
