package action

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/nixinstall/nix-installer-go/internal/errdefs"
)

// CreateApfsVolume creates a dedicated "Nix Store" APFS volume,
// mounts it at MountPoint (/nix), and writes a synthetic.conf plus
// fstab entry so it remounts across reboots, per spec.md §4.1. macOS
// revert semantics when the volume requires a secure-token user to
// delete are treated as non-fatal per §9's documented open question.
type CreateApfsVolume struct {
	Disk           string `json:"disk"`
	VolumeName     string `json:"volume_name"`
	MountPoint     string `json:"mount_point"`
	SyntheticConf  string `json:"synthetic_conf"`
	FstabPath      string `json:"fstab_path"`
	fstabLineAdded bool
	state          State
}

func NewCreateApfsVolume(disk, volumeName, mountPoint, syntheticConf, fstabPath string) *CreateApfsVolume {
	return &CreateApfsVolume{
		Disk: disk, VolumeName: volumeName, MountPoint: mountPoint,
		SyntheticConf: syntheticConf, FstabPath: fstabPath, state: StateUncompleted,
	}
}

func (a *CreateApfsVolume) Kind() string     { return "CreateApfsVolume" }
func (a *CreateApfsVolume) State() State     { return a.state }
func (a *CreateApfsVolume) Synopsis() string { return fmt.Sprintf("create apfs volume %q at %s", a.VolumeName, a.MountPoint) }
func (a *CreateApfsVolume) SpanData() map[string]string {
	return map[string]string{"disk": a.Disk, "mount_point": a.MountPoint}
}

func (a *CreateApfsVolume) Execute(ac Context) error {
	if a.state == StateCompleted {
		return nil
	}
	a.state = StateProgress
	ac.emit(ProgressMsg{Kind: a.Kind(), Synopsis: a.Synopsis()})

	if err := runCommand(ac, a.Kind(), "diskutil", "apfs", "addVolume", a.Disk, "APFS", a.VolumeName, "-mountpoint", a.MountPoint); err != nil {
		return err
	}

	if err := appendIfMissing(a.SyntheticConf, "nix\n"); err != nil {
		return err
	}

	fstabLine := fmt.Sprintf("LABEL=%s %s apfs rw,noauto,nobrowse\n", a.VolumeName, a.MountPoint)
	added, err := appendIfMissingReport(a.FstabPath, fstabLine)
	if err != nil {
		return err
	}
	a.fstabLineAdded = added

	a.state = StateCompleted
	return nil
}

func appendIfMissing(path, line string) error {
	_, err := appendIfMissingReport(path, line)
	return err
}

func appendIfMissingReport(path, line string) (bool, error) {
	existing, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return false, errdefs.NewIOError(path, err)
	}
	if strings.Contains(string(existing), strings.TrimSpace(line)) {
		return false, nil
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return false, errdefs.NewIOError(path, err)
	}
	defer f.Close()
	if _, err := f.WriteString(line); err != nil {
		return false, errdefs.NewIOError(path, err)
	}
	return true, nil
}

func (a *CreateApfsVolume) Revert(ac Context) error {
	if a.state == StateUncompleted {
		return nil
	}
	if a.fstabLineAdded {
		if err := removeLineContaining(a.FstabPath, a.MountPoint); err != nil {
			ac.emit(ProgressMsg{Kind: a.Kind(), Synopsis: "fstab cleanup failed", Err: err})
		}
	}
	// diskutil apfs deleteVolume can fail when a secure-token user is
	// required; report but don't fail the overall revert.
	if err := runCommand(ac, a.Kind(), "diskutil", "apfs", "deleteVolume", a.MountPoint); err != nil {
		ac.emit(ProgressMsg{Kind: a.Kind(), Synopsis: "apfs volume delete failed, leaving volume in place", Err: err})
	}
	a.state = StateUncompleted
	return nil
}

func removeLineContaining(path, substr string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errdefs.NewIOError(path, err)
	}
	lines := strings.Split(string(data), "\n")
	kept := lines[:0]
	for _, l := range lines {
		if !strings.Contains(l, substr) {
			kept = append(kept, l)
		}
	}
	return atomicWriteFile(path, []byte(strings.Join(kept, "\n")), 0644)
}

func (a *CreateApfsVolume) MarshalState() (json.RawMessage, error) {
	type wire CreateApfsVolume
	return json.Marshal(struct {
		*wire
		FstabLineAdded bool  `json:"fstab_line_added"`
		State          State `json:"state"`
	}{(*wire)(a), a.fstabLineAdded, a.state})
}

func (a *CreateApfsVolume) UnmarshalState(data json.RawMessage) error {
	type wire CreateApfsVolume
	var w struct {
		*wire
		FstabLineAdded bool  `json:"fstab_line_added"`
		State          State `json:"state"`
	}
	w.wire = (*wire)(a)
	if err := json.Unmarshal(data, &w); err != nil {
		return errdefs.NewReceiptCorruptError("", err)
	}
	a.fstabLineAdded, a.state = w.FstabLineAdded, w.State
	return nil
}
