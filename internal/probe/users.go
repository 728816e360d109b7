package probe

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// UserInfo is the subset of /etc/passwd an Action needs to classify a
// build user as Create/Adopt/Conflict.
type UserInfo struct {
	Name string
	UID  int
	GID  int
}

// GroupInfo mirrors UserInfo for /etc/group.
type GroupInfo struct {
	Name string
	GID  int
}

// LookupUser returns the existing user by name, or ok=false if no such
// user exists. It reads /etc/passwd directly rather than cgo's
// os/user, the way the engine wants to run even from a statically
// linked binary without NSS.
func LookupUser(name string) (UserInfo, bool, error) {
	return lookupUserInFile("/etc/passwd", name)
}

func lookupUserInFile(path, name string) (UserInfo, bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return UserInfo{}, false, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Split(scanner.Text(), ":")
		if len(fields) < 4 || fields[0] != name {
			continue
		}
		uid, err := strconv.Atoi(fields[2])
		if err != nil {
			return UserInfo{}, false, fmt.Errorf("malformed uid for %s: %w", name, err)
		}
		gid, err := strconv.Atoi(fields[3])
		if err != nil {
			return UserInfo{}, false, fmt.Errorf("malformed gid for %s: %w", name, err)
		}
		return UserInfo{Name: name, UID: uid, GID: gid}, true, nil
	}
	return UserInfo{}, false, scanner.Err()
}

// LookupGroup returns the existing group by name, or ok=false.
func LookupGroup(name string) (GroupInfo, bool, error) {
	return lookupGroupInFile("/etc/group", name)
}

func lookupGroupInFile(path, name string) (GroupInfo, bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return GroupInfo{}, false, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Split(scanner.Text(), ":")
		if len(fields) < 3 || fields[0] != name {
			continue
		}
		gid, err := strconv.Atoi(fields[2])
		if err != nil {
			return GroupInfo{}, false, fmt.Errorf("malformed gid for %s: %w", name, err)
		}
		return GroupInfo{Name: name, GID: gid}, true, nil
	}
	return GroupInfo{}, false, scanner.Err()
}

// FirstUnusedUID scans /etc/passwd starting at base+1 (spec.md §6:
// "first UID = base + 1") and returns the first count unused UIDs, or
// an error if the range is exhausted. UIDs already taken are skipped,
// so the result is consecutive only when none in the range is in use.
func FirstUnusedUID(base, count int) ([]int, error) {
	used := make(map[int]bool)
	f, err := os.Open("/etc/passwd")
	if err != nil {
		return nil, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Split(scanner.Text(), ":")
		if len(fields) < 3 {
			continue
		}
		if uid, err := strconv.Atoi(fields[2]); err == nil {
			used[uid] = true
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	uids := make([]int, 0, count)
	candidate := base + 1
	for len(uids) < count {
		if !used[candidate] {
			uids = append(uids, candidate)
		}
		candidate++
		if candidate > base+1+count*64 {
			return nil, fmt.Errorf("could not find %d unused uids starting at %d", count, base+1)
		}
	}
	return uids, nil
}
