package action

import (
	"encoding/json"
	"fmt"
	"runtime"

	"github.com/nixinstall/nix-installer-go/internal/errdefs"
	"github.com/nixinstall/nix-installer-go/internal/probe"
)

// CreateGroup creates a system group with a specific GID: this Action
// just creates the concrete name/GID pair it's handed. The Planner
// hands it Settings.NixBuildGroupID as configured; no search for a
// free GID is made.
type CreateGroup struct {
	Name        string      `json:"name"`
	GID         int         `json:"gid"`
	Disposition Disposition `json:"disposition"`
	state       State
}

func NewCreateGroup(name string, gid int) *CreateGroup {
	return &CreateGroup{Name: name, GID: gid, state: StateUncompleted}
}

func (a *CreateGroup) Kind() string     { return "CreateGroup" }
func (a *CreateGroup) State() State     { return a.state }
func (a *CreateGroup) Synopsis() string { return fmt.Sprintf("create group %s (gid %d)", a.Name, a.GID) }
func (a *CreateGroup) SpanData() map[string]string {
	return map[string]string{"name": a.Name, "gid": fmt.Sprintf("%d", a.GID)}
}

func (a *CreateGroup) Plan() error {
	existing, ok, err := probe.LookupGroup(a.Name)
	if err != nil {
		return errdefs.NewIOError("/etc/group", err)
	}
	if !ok {
		a.Disposition = DispositionCreate
		return nil
	}
	if existing.GID != a.GID {
		return errdefs.NewConflictingResource(a.Name, fmt.Sprintf("group exists with gid %d, expected %d", existing.GID, a.GID))
	}
	a.Disposition = DispositionAdopt
	return nil
}

func (a *CreateGroup) Execute(ac Context) error {
	if a.state == StateCompleted {
		return nil
	}
	a.state = StateProgress
	ac.emit(ProgressMsg{Kind: a.Kind(), Synopsis: a.Synopsis()})
	if a.Disposition == DispositionAdopt {
		a.state = StateCompleted
		return nil
	}
	if err := createGroupPlatform(ac, a.Name, a.GID); err != nil {
		return err
	}
	a.state = StateCompleted
	return nil
}

func (a *CreateGroup) Revert(ac Context) error {
	if a.state == StateUncompleted {
		return nil
	}
	if a.Disposition != DispositionAdopt {
		if err := deleteGroupPlatform(ac, a.Name); err != nil {
			return err
		}
	}
	a.state = StateUncompleted
	return nil
}

func (a *CreateGroup) MarshalState() (json.RawMessage, error) {
	type wire CreateGroup
	return json.Marshal(struct {
		*wire
		State State `json:"state"`
	}{(*wire)(a), a.state})
}

func (a *CreateGroup) UnmarshalState(data json.RawMessage) error {
	type wire CreateGroup
	var w struct {
		*wire
		State State `json:"state"`
	}
	w.wire = (*wire)(a)
	if err := json.Unmarshal(data, &w); err != nil {
		return errdefs.NewReceiptCorruptError("", err)
	}
	a.state = w.State
	return nil
}

// CreateUser creates one build user (one of the 32 nixbld* accounts),
// picked and UID-assigned by the Planner via probe.FirstUnusedUID.
type CreateUser struct {
	Name        string      `json:"name"`
	UID         int         `json:"uid"`
	GID         int         `json:"gid"`
	Comment     string      `json:"comment"`
	Disposition Disposition `json:"disposition"`
	state       State
}

func NewCreateUser(name string, uid, gid int, comment string) *CreateUser {
	return &CreateUser{Name: name, UID: uid, GID: gid, Comment: comment, state: StateUncompleted}
}

func (a *CreateUser) Kind() string     { return "CreateUser" }
func (a *CreateUser) State() State     { return a.state }
func (a *CreateUser) Synopsis() string { return fmt.Sprintf("create user %s (uid %d)", a.Name, a.UID) }
func (a *CreateUser) SpanData() map[string]string {
	return map[string]string{"name": a.Name, "uid": fmt.Sprintf("%d", a.UID), "gid": fmt.Sprintf("%d", a.GID)}
}

func (a *CreateUser) Plan() error {
	existing, ok, err := probe.LookupUser(a.Name)
	if err != nil {
		return errdefs.NewIOError("/etc/passwd", err)
	}
	if !ok {
		a.Disposition = DispositionCreate
		return nil
	}
	if existing.UID != a.UID || existing.GID != a.GID {
		return errdefs.NewConflictingResource(a.Name, fmt.Sprintf("user exists with uid/gid %d/%d, expected %d/%d", existing.UID, existing.GID, a.UID, a.GID))
	}
	a.Disposition = DispositionAdopt
	return nil
}

func (a *CreateUser) Execute(ac Context) error {
	if a.state == StateCompleted {
		return nil
	}
	a.state = StateProgress
	ac.emit(ProgressMsg{Kind: a.Kind(), Synopsis: a.Synopsis()})
	if a.Disposition == DispositionAdopt {
		a.state = StateCompleted
		return nil
	}
	if err := createUserPlatform(ac, a); err != nil {
		return err
	}
	a.state = StateCompleted
	return nil
}

func (a *CreateUser) Revert(ac Context) error {
	if a.state == StateUncompleted {
		return nil
	}
	if a.Disposition != DispositionAdopt {
		if err := deleteUserPlatform(ac, a.Name); err != nil {
			return err
		}
	}
	a.state = StateUncompleted
	return nil
}

func (a *CreateUser) MarshalState() (json.RawMessage, error) {
	type wire CreateUser
	return json.Marshal(struct {
		*wire
		State State `json:"state"`
	}{(*wire)(a), a.state})
}

func (a *CreateUser) UnmarshalState(data json.RawMessage) error {
	type wire CreateUser
	var w struct {
		*wire
		State State `json:"state"`
	}
	w.wire = (*wire)(a)
	if err := json.Unmarshal(data, &w); err != nil {
		return errdefs.NewReceiptCorruptError("", err)
	}
	a.state = w.State
	return nil
}

func createGroupPlatform(ac Context, name string, gid int) error {
	if runtime.GOOS == "darwin" {
		return runCommand(ac, "CreateGroup", "dscl", ".", "-create", "/Groups/"+name, "PrimaryGroupID", fmt.Sprintf("%d", gid))
	}
	return runCommand(ac, "CreateGroup", "groupadd", "-g", fmt.Sprintf("%d", gid), "--system", name)
}

func deleteGroupPlatform(ac Context, name string) error {
	if runtime.GOOS == "darwin" {
		return runCommand(ac, "DeleteGroup", "dscl", ".", "-delete", "/Groups/"+name)
	}
	return runCommand(ac, "DeleteGroup", "groupdel", name)
}

func createUserPlatform(ac Context, u *CreateUser) error {
	if runtime.GOOS == "darwin" {
		path := "/Users/" + u.Name
		if err := runCommand(ac, "CreateUser", "dscl", ".", "-create", path); err != nil {
			return err
		}
		if err := runCommand(ac, "CreateUser", "dscl", ".", "-create", path, "UniqueID", fmt.Sprintf("%d", u.UID)); err != nil {
			return err
		}
		if err := runCommand(ac, "CreateUser", "dscl", ".", "-create", path, "PrimaryGroupID", fmt.Sprintf("%d", u.GID)); err != nil {
			return err
		}
		if err := runCommand(ac, "CreateUser", "dscl", ".", "-create", path, "NFSHomeDirectory", "/var/empty"); err != nil {
			return err
		}
		return runCommand(ac, "CreateUser", "dscl", ".", "-create", path, "UserShell", "/usr/bin/false")
	}
	return runCommand(ac, "CreateUser", "useradd",
		"--comment", u.Comment,
		"--home-dir", "/var/empty",
		"--no-create-home",
		"--shell", "/sbin/nologin",
		"--uid", fmt.Sprintf("%d", u.UID),
		"--gid", fmt.Sprintf("%d", u.GID),
		"--system",
		u.Name,
	)
}

func deleteUserPlatform(ac Context, name string) error {
	if runtime.GOOS == "darwin" {
		return runCommand(ac, "DeleteUser", "dscl", ".", "-delete", "/Users/"+name)
	}
	return runCommand(ac, "DeleteUser", "userdel", name)
}
