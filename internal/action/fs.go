package action

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nixinstall/nix-installer-go/internal/errdefs"
	"github.com/nixinstall/nix-installer-go/internal/probe"
)

// CreateDirectory creates path if missing, per spec.md §4.1. Revert
// only removes it if this Action's own Execute created it (Adopted
// directories are left alone).
type CreateDirectory struct {
	Path        string      `json:"path"`
	User        string      `json:"user,omitempty"`
	Group       string      `json:"group,omitempty"`
	Mode        os.FileMode `json:"mode"`
	Force       bool        `json:"force"`
	Disposition Disposition `json:"disposition"`
	state       State
}

func NewCreateDirectory(path, user, group string, mode os.FileMode, force bool) *CreateDirectory {
	return &CreateDirectory{Path: path, User: user, Group: group, Mode: mode, Force: force, state: StateUncompleted}
}

func (a *CreateDirectory) Kind() string     { return "CreateDirectory" }
func (a *CreateDirectory) State() State     { return a.state }
func (a *CreateDirectory) Synopsis() string { return fmt.Sprintf("create directory %s", a.Path) }
func (a *CreateDirectory) SpanData() map[string]string {
	return map[string]string{"path": a.Path, "mode": a.Mode.String()}
}

// Plan classifies Path's disposition per §4.1.1. Called by Planners
// before the Action is placed into a Plan.
func (a *CreateDirectory) Plan() error {
	info, err := os.Stat(a.Path)
	if os.IsNotExist(err) {
		a.Disposition = DispositionCreate
		return nil
	}
	if err != nil {
		return errdefs.NewIOError(a.Path, err)
	}
	if !info.IsDir() {
		if !a.Force {
			return errdefs.NewConflictingResource(a.Path, "exists and is not a directory")
		}
		a.Disposition = DispositionConflict
		return nil
	}
	if info.Mode().Perm() != a.Mode.Perm() && !a.Force {
		return errdefs.NewConflictingResource(a.Path, "exists with different mode")
	}
	a.Disposition = DispositionAdopt
	return nil
}

func (a *CreateDirectory) Execute(ac Context) error {
	if a.state == StateCompleted {
		return nil
	}
	a.state = StateProgress
	ac.emit(ProgressMsg{Kind: a.Kind(), Synopsis: a.Synopsis()})

	if a.Disposition != DispositionAdopt {
		if err := os.MkdirAll(a.Path, a.Mode); err != nil {
			return errdefs.NewIOError(a.Path, err)
		}
		if err := os.Chmod(a.Path, a.Mode); err != nil {
			return errdefs.NewIOError(a.Path, err)
		}
	}
	if a.User != "" {
		if err := chownPath(a.Path, a.User, a.Group); err != nil {
			return err
		}
	}
	a.state = StateCompleted
	return nil
}

func (a *CreateDirectory) Revert(ac Context) error {
	if a.state == StateUncompleted {
		return nil
	}
	if a.Disposition == DispositionAdopt {
		a.state = StateUncompleted
		return nil
	}
	ac.emit(ProgressMsg{Kind: a.Kind(), Synopsis: "removing " + a.Path})
	if err := os.RemoveAll(a.Path); err != nil && !os.IsNotExist(err) {
		return errdefs.NewIOError(a.Path, err)
	}
	a.state = StateUncompleted
	return nil
}

func (a *CreateDirectory) MarshalState() (json.RawMessage, error) {
	type wire CreateDirectory
	return json.Marshal(struct {
		*wire
		State State `json:"state"`
	}{wire: (*wire)(a), State: a.state})
}

func (a *CreateDirectory) UnmarshalState(data json.RawMessage) error {
	type wire CreateDirectory
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

// CreateFile writes bytes to path atomically (write-to-temp-then-
// rename), the same discipline CreateDirectory uses for directories.
type CreateFile struct {
	Path        string      `json:"path"`
	User        string      `json:"user,omitempty"`
	Group       string      `json:"group,omitempty"`
	Mode        os.FileMode `json:"mode"`
	Contents    []byte      `json:"contents"`
	Force       bool        `json:"force"`
	Disposition Disposition `json:"disposition"`
	// PriorContents is recorded when Disposition == Conflict under
	// --force, so Revert can restore whatever this Action overwrote.
	PriorContents []byte `json:"prior_contents,omitempty"`
	state         State
}

func NewCreateFile(path, user, group string, mode os.FileMode, contents []byte, force bool) *CreateFile {
	return &CreateFile{Path: path, User: user, Group: group, Mode: mode, Contents: contents, Force: force, state: StateUncompleted}
}

func (a *CreateFile) Kind() string     { return "CreateFile" }
func (a *CreateFile) State() State     { return a.state }
func (a *CreateFile) Synopsis() string { return fmt.Sprintf("create file %s", a.Path) }
func (a *CreateFile) SpanData() map[string]string {
	return map[string]string{"path": a.Path, "bytes": fmt.Sprintf("%d", len(a.Contents))}
}

func (a *CreateFile) Plan() error {
	existing, err := os.ReadFile(a.Path)
	if os.IsNotExist(err) {
		a.Disposition = DispositionCreate
		return nil
	}
	if err != nil {
		return errdefs.NewIOError(a.Path, err)
	}
	if string(existing) == string(a.Contents) {
		a.Disposition = DispositionAdopt
		return nil
	}
	if !a.Force {
		return errdefs.NewConflictingResource(a.Path, "exists with different contents")
	}
	a.Disposition = DispositionConflict
	a.PriorContents = existing
	return nil
}

func (a *CreateFile) Execute(ac Context) error {
	if a.state == StateCompleted {
		return nil
	}
	a.state = StateProgress
	ac.emit(ProgressMsg{Kind: a.Kind(), Synopsis: a.Synopsis()})

	if a.Disposition != DispositionAdopt {
		if err := atomicWriteFile(a.Path, a.Contents, a.Mode); err != nil {
			return err
		}
	}
	if a.User != "" {
		if err := chownPath(a.Path, a.User, a.Group); err != nil {
			return err
		}
	}
	a.state = StateCompleted
	return nil
}

func (a *CreateFile) Revert(ac Context) error {
	if a.state == StateUncompleted {
		return nil
	}
	switch a.Disposition {
	case DispositionAdopt:
		// left untouched
	case DispositionConflict:
		if err := atomicWriteFile(a.Path, a.PriorContents, a.Mode); err != nil {
			return err
		}
	default:
		ac.emit(ProgressMsg{Kind: a.Kind(), Synopsis: "removing " + a.Path})
		if err := os.Remove(a.Path); err != nil && !os.IsNotExist(err) {
			return errdefs.NewIOError(a.Path, err)
		}
	}
	a.state = StateUncompleted
	return nil
}

func (a *CreateFile) MarshalState() (json.RawMessage, error) {
	type wire CreateFile
	return json.Marshal(struct {
		*wire
		State State `json:"state"`
	}{wire: (*wire)(a), State: a.state})
}

func (a *CreateFile) UnmarshalState(data json.RawMessage) error {
	type wire CreateFile
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

// RemoveDirectory is the explicit reverse primitive a cure Plan or a
// composite revert list can schedule directly (spec.md §4.1: "…
// KickstartLaunchctlService: corresponding reverse primitives").
type RemoveDirectory struct {
	Path  string `json:"path"`
	state State
}

func NewRemoveDirectory(path string) *RemoveDirectory {
	return &RemoveDirectory{Path: path, state: StateUncompleted}
}

func (a *RemoveDirectory) Kind() string                        { return "RemoveDirectory" }
func (a *RemoveDirectory) State() State                        { return a.state }
func (a *RemoveDirectory) Synopsis() string                    { return "remove directory " + a.Path }
func (a *RemoveDirectory) SpanData() map[string]string         { return map[string]string{"path": a.Path} }

func (a *RemoveDirectory) Execute(ac Context) error {
	if a.state == StateCompleted {
		return nil
	}
	a.state = StateProgress
	ac.emit(ProgressMsg{Kind: a.Kind(), Synopsis: a.Synopsis()})
	if err := os.RemoveAll(a.Path); err != nil && !os.IsNotExist(err) {
		return errdefs.NewIOError(a.Path, err)
	}
	a.state = StateCompleted
	return nil
}

// Revert of a RemoveDirectory is intentionally a no-op: it is itself a
// reverse primitive with nothing further to undo.
func (a *RemoveDirectory) Revert(ac Context) error {
	a.state = StateUncompleted
	return nil
}

func (a *RemoveDirectory) MarshalState() (json.RawMessage, error) {
	return json.Marshal(struct {
		Path  string `json:"path"`
		State State  `json:"state"`
	}{a.Path, a.state})
}

func (a *RemoveDirectory) UnmarshalState(data json.RawMessage) error {
	var w struct {
		Path  string `json:"path"`
		State State  `json:"state"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return errdefs.NewReceiptCorruptError("", err)
	}
	a.Path, a.state = w.Path, w.State
	return nil
}

func atomicWriteFile(path string, contents []byte, mode os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".nix-installer-*")
	if err != nil {
		return errdefs.NewIOError(path, err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(contents); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return errdefs.NewIOError(path, err)
	}
	if err := tmp.Chmod(mode); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return errdefs.NewIOError(path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return errdefs.NewIOError(path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return errdefs.NewIOError(path, err)
	}
	return nil
}

func chownPath(path, user, group string) error {
	u, ok, err := probe.LookupUser(user)
	if err != nil || !ok {
		return errdefs.NewIOError(path, fmt.Errorf("chown: unknown user %q", user))
	}
	gid := u.GID
	if group != "" {
		g, ok, err := probe.LookupGroup(group)
		if err != nil || !ok {
			return errdefs.NewIOError(path, fmt.Errorf("chown: unknown group %q", group))
		}
		gid = g.GID
	}
	if err := os.Chown(path, u.UID, gid); err != nil {
		return errdefs.NewIOError(path, err)
	}
	return nil
}
