package probe

import (
	"bufio"
	"os"
	"strings"
)

// DistroFamily buckets the handful of distro identities the planners
// (internal/planner) branch on.
type DistroFamily string

const (
	DistroArch    DistroFamily = "arch"
	DistroFedora  DistroFamily = "fedora"
	DistroDebian  DistroFamily = "debian"
	DistroSUSE    DistroFamily = "opensuse"
	DistroNixOS   DistroFamily = "nixos"
	DistroUnknown DistroFamily = "unknown"
)

var osReleaseOpen = os.Open

// OSRelease is the subset of /etc/os-release this installer reads.
type OSRelease struct {
	ID         string
	IDLike     []string
	VersionID  string
	PrettyName string
}

func readOSRelease(path string) (*OSRelease, error) {
	f, err := osReleaseOpen(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info := &OSRelease{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := parts[0]
		value := strings.Trim(parts[1], "\"")

		switch key {
		case "ID":
			info.ID = value
		case "ID_LIKE":
			info.IDLike = strings.Fields(value)
		case "VERSION_ID":
			info.VersionID = value
		case "PRETTY_NAME":
			info.PrettyName = value
		}
	}
	return info, scanner.Err()
}

// DetectDistroFamily reads /etc/os-release and classifies it.
func DetectDistroFamily() DistroFamily {
	rel, err := readOSRelease("/etc/os-release")
	if err != nil {
		return DistroUnknown
	}
	return classify(rel)
}

func classify(rel *OSRelease) DistroFamily {
	candidates := append([]string{rel.ID}, rel.IDLike...)
	for _, id := range candidates {
		switch id {
		case "arch", "archarm", "manjaro", "endeavouros":
			return DistroArch
		case "fedora", "rhel", "centos", "rocky", "almalinux":
			return DistroFedora
		case "debian", "ubuntu", "pop", "linuxmint":
			return DistroDebian
		case "opensuse", "opensuse-leap", "opensuse-tumbleweed", "sles", "suse":
			return DistroSUSE
		case "nixos":
			return DistroNixOS
		}
	}
	return DistroUnknown
}
