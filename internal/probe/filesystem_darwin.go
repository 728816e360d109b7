//go:build darwin

package probe

import "golang.org/x/sys/unix"

// FilesystemTypeAt reports the filesystem mounted at path by reading
// statfs's Fstypename, the check CreateApfsVolume's planner uses to
// decide whether /nix already sits on its own APFS volume.
func FilesystemTypeAt(path string) (string, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return "", err
	}
	name := cstringToString(st.Fstypename[:])
	if name == "apfs" {
		return FSTypeAPFS, nil
	}
	return FSTypeUnknown, nil
}

func cstringToString(b []int8) string {
	buf := make([]byte, 0, len(b))
	for _, c := range b {
		if c == 0 {
			break
		}
		buf = append(buf, byte(c))
	}
	return string(buf)
}
