//go:build linux

package probe

import "golang.org/x/sys/unix"

// FilesystemTypeAt reports the filesystem mounted at path using
// statfs's magic number, the same syscall-level check the planners
// use instead of parsing `df`/`mount` output.
func FilesystemTypeAt(path string) (string, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return "", err
	}
	// Linux has no APFS; every magic number here maps to "unknown"
	// except the ones a future planner cares about.
	_ = st.Type
	return FSTypeUnknown, nil
}
