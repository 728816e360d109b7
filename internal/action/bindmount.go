package action

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/nixinstall/nix-installer-go/internal/errdefs"
)

// CreateBindMount bind-mounts Source at Target and records the mount
// in /etc/fstab, the primitive the Steam Deck and ostree planners use
// to put /nix somewhere writable on an otherwise immutable root
// (spec.md §4.2: "Steam-deck and ostree planners add additional
// Actions (CreateBindMount, specialized service units)").
type CreateBindMount struct {
	Source     string `json:"source"`
	Target     string `json:"target"`
	FstabPath  string `json:"fstab_path"`
	addedFstab bool
	state      State
}

func NewCreateBindMount(source, target, fstabPath string) *CreateBindMount {
	return &CreateBindMount{Source: source, Target: target, FstabPath: fstabPath, state: StateUncompleted}
}

func (a *CreateBindMount) Kind() string     { return "CreateBindMount" }
func (a *CreateBindMount) State() State     { return a.state }
func (a *CreateBindMount) Synopsis() string { return fmt.Sprintf("bind mount %s at %s", a.Source, a.Target) }
func (a *CreateBindMount) SpanData() map[string]string {
	return map[string]string{"source": a.Source, "target": a.Target}
}

func (a *CreateBindMount) Execute(ac Context) error {
	if a.state == StateCompleted {
		return nil
	}
	a.state = StateProgress
	ac.emit(ProgressMsg{Kind: a.Kind(), Synopsis: a.Synopsis()})

	if err := os.MkdirAll(a.Target, 0755); err != nil {
		return errdefs.NewIOError(a.Target, err)
	}
	if err := runCommand(ac, a.Kind(), "mount", "--bind", a.Source, a.Target); err != nil {
		return err
	}
	if a.FstabPath != "" {
		line := fmt.Sprintf("%s %s none bind 0 0\n", a.Source, a.Target)
		added, err := appendIfMissingReport(a.FstabPath, line)
		if err != nil {
			return err
		}
		a.addedFstab = added
	}
	a.state = StateCompleted
	return nil
}

func (a *CreateBindMount) Revert(ac Context) error {
	if a.state == StateUncompleted {
		return nil
	}
	if err := runCommand(ac, a.Kind(), "umount", a.Target); err != nil {
		ac.emit(ProgressMsg{Kind: a.Kind(), Synopsis: "umount failed, leaving mount in place", Err: err})
	}
	if a.addedFstab {
		if err := removeLineContaining(a.FstabPath, a.Target); err != nil {
			return err
		}
	}
	a.state = StateUncompleted
	return nil
}

func (a *CreateBindMount) MarshalState() (json.RawMessage, error) {
	type wire CreateBindMount
	return json.Marshal(struct {
		*wire
		AddedFstab bool  `json:"added_fstab"`
		State      State `json:"state"`
	}{(*wire)(a), a.addedFstab, a.state})
}

func (a *CreateBindMount) UnmarshalState(data json.RawMessage) error {
	type wire CreateBindMount
	var w struct {
		*wire
		AddedFstab bool  `json:"added_fstab"`
		State      State `json:"state"`
	}
	w.wire = (*wire)(a)
	if err := json.Unmarshal(data, &w); err != nil {
		return errdefs.NewReceiptCorruptError("", err)
	}
	a.addedFstab, a.state = w.AddedFstab, w.State
	return nil
}
