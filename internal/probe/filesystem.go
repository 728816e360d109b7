package probe

import "golang.org/x/sys/unix"

// Filesystem types relevant to the planners: APFS is checked on macOS
// before CreateApfsVolume, and anything under /nix on Linux is
// informational only (spec.md doesn't require a specific fs there).
const (
	FSTypeAPFS    = "apfs"
	FSTypeUnknown = "unknown"
)

// PathExists is a convenience used across planners and the cure layer
// to classify Create/Adopt/Conflict (spec.md §4.1.1) without
// duplicating os.Stat error handling everywhere.
func PathExists(path string) bool {
	return unix.Access(path, unix.F_OK) == nil
}
