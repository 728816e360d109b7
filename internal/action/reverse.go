package action

import (
	"encoding/json"
	"runtime"

	"github.com/nixinstall/nix-installer-go/internal/errdefs"
)

// DeleteUser, DeleteGroup, and KickstartLaunchctlService are the
// standalone reverse primitives spec.md §4.1 names alongside
// RemoveDirectory. DeleteUser and DeleteGroup are registered kinds
// that no planner emits; CreateUser/CreateGroup undo themselves
// through their own Revert.

type DeleteUser struct {
	Name  string `json:"name"`
	state State
}

func NewDeleteUser(name string) *DeleteUser { return &DeleteUser{Name: name, state: StateUncompleted} }

func (a *DeleteUser) Kind() string                    { return "DeleteUser" }
func (a *DeleteUser) State() State                    { return a.state }
func (a *DeleteUser) Synopsis() string                { return "delete user " + a.Name }
func (a *DeleteUser) SpanData() map[string]string     { return map[string]string{"name": a.Name} }

func (a *DeleteUser) Execute(ac Context) error {
	if a.state == StateCompleted {
		return nil
	}
	a.state = StateProgress
	ac.emit(ProgressMsg{Kind: a.Kind(), Synopsis: a.Synopsis()})
	if err := deleteUserPlatform(ac, a.Name); err != nil {
		return err
	}
	a.state = StateCompleted
	return nil
}

// Revert of a deletion is a no-op: it's itself the undo step.
func (a *DeleteUser) Revert(ac Context) error { a.state = StateUncompleted; return nil }

func (a *DeleteUser) MarshalState() (json.RawMessage, error) {
	return json.Marshal(struct {
		Name  string `json:"name"`
		State State  `json:"state"`
	}{a.Name, a.state})
}

func (a *DeleteUser) UnmarshalState(data json.RawMessage) error {
	var w struct {
		Name  string `json:"name"`
		State State  `json:"state"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return errdefs.NewReceiptCorruptError("", err)
	}
	a.Name, a.state = w.Name, w.State
	return nil
}

type DeleteGroup struct {
	Name  string `json:"name"`
	state State
}

func NewDeleteGroup(name string) *DeleteGroup {
	return &DeleteGroup{Name: name, state: StateUncompleted}
}

func (a *DeleteGroup) Kind() string                    { return "DeleteGroup" }
func (a *DeleteGroup) State() State                    { return a.state }
func (a *DeleteGroup) Synopsis() string                { return "delete group " + a.Name }
func (a *DeleteGroup) SpanData() map[string]string     { return map[string]string{"name": a.Name} }

func (a *DeleteGroup) Execute(ac Context) error {
	if a.state == StateCompleted {
		return nil
	}
	a.state = StateProgress
	ac.emit(ProgressMsg{Kind: a.Kind(), Synopsis: a.Synopsis()})
	if err := deleteGroupPlatform(ac, a.Name); err != nil {
		return err
	}
	a.state = StateCompleted
	return nil
}

func (a *DeleteGroup) Revert(ac Context) error { a.state = StateUncompleted; return nil }

func (a *DeleteGroup) MarshalState() (json.RawMessage, error) {
	return json.Marshal(struct {
		Name  string `json:"name"`
		State State  `json:"state"`
	}{a.Name, a.state})
}

func (a *DeleteGroup) UnmarshalState(data json.RawMessage) error {
	var w struct {
		Name  string `json:"name"`
		State State  `json:"state"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return errdefs.NewReceiptCorruptError("", err)
	}
	a.Name, a.state = w.Name, w.State
	return nil
}

// KickstartLaunchctlService restarts a launchd service via
// `launchctl kickstart`. DarwinPlanner schedules it as its own
// top-level step right after ConfigureInitService.
type KickstartLaunchctlService struct {
	ServiceTarget string `json:"service_target"`
	state         State
}

func NewKickstartLaunchctlService(serviceTarget string) *KickstartLaunchctlService {
	return &KickstartLaunchctlService{ServiceTarget: serviceTarget, state: StateUncompleted}
}

func (a *KickstartLaunchctlService) Kind() string     { return "KickstartLaunchctlService" }
func (a *KickstartLaunchctlService) State() State     { return a.state }
func (a *KickstartLaunchctlService) Synopsis() string { return "kickstart " + a.ServiceTarget }
func (a *KickstartLaunchctlService) SpanData() map[string]string {
	return map[string]string{"target": a.ServiceTarget}
}

func (a *KickstartLaunchctlService) Execute(ac Context) error {
	if a.state == StateCompleted {
		return nil
	}
	a.state = StateProgress
	if runtime.GOOS != "darwin" {
		a.state = StateCompleted
		return nil
	}
	ac.emit(ProgressMsg{Kind: a.Kind(), Synopsis: a.Synopsis()})
	if err := runCommand(ac, a.Kind(), "launchctl", "kickstart", "-k", a.ServiceTarget); err != nil {
		return err
	}
	a.state = StateCompleted
	return nil
}

func (a *KickstartLaunchctlService) Revert(ac Context) error {
	a.state = StateUncompleted
	return nil
}

func (a *KickstartLaunchctlService) MarshalState() (json.RawMessage, error) {
	return json.Marshal(struct {
		ServiceTarget string `json:"service_target"`
		State         State  `json:"state"`
	}{a.ServiceTarget, a.state})
}

func (a *KickstartLaunchctlService) UnmarshalState(data json.RawMessage) error {
	var w struct {
		ServiceTarget string `json:"service_target"`
		State         State  `json:"state"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return errdefs.NewReceiptCorruptError("", err)
	}
	a.ServiceTarget, a.state = w.ServiceTarget, w.State
	return nil
}
