// Package settings holds Settings (spec.md §3): the immutable, typed
// bundle of user-visible knobs every Planner and Action consumes.
// Fields and defaults mirror original_source/src/settings.rs
// (CommonSettings), renamed from the HARMONIC_* prefix to
// NIX_INSTALLER_* per spec.md §6.
package settings

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/nixinstall/nix-installer-go/internal/errdefs"
	"gopkg.in/yaml.v3"
)

// InitChoice is the --init flag's domain.
type InitChoice string

const (
	InitLaunchd InitChoice = "launchd"
	InitSystemd InitChoice = "systemd"
	InitNone    InitChoice = "none"
)

// ChannelValue is one `name=url` entry for PlaceChannelConfiguration,
// grounded on original_source/src/channel_value.rs.
type ChannelValue struct {
	Name string `yaml:"name" json:"name"`
	URL  string `yaml:"url" json:"url"`
}

func (c ChannelValue) String() string { return c.Name + "=" + c.URL }

// ParseChannelValue parses a repeatable `--channel name=url` flag
// value the way the original CLI's clap value_parser did.
func ParseChannelValue(s string) (ChannelValue, error) {
	parts := strings.SplitN(s, "=", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return ChannelValue{}, fmt.Errorf("channel must be name=url, got %q", s)
	}
	return ChannelValue{Name: parts[0], URL: parts[1]}, nil
}

// Settings is the immutable bundle described in spec.md §3. Treat a
// populated Settings as read-only once constructed: the execution
// engine and every Action capture it by value.
type Settings struct {
	Init InitChoice

	NixBuildGroupName    string
	NixBuildGroupID      int
	NixBuildUserPrefix   string
	NixBuildUserCount    int
	NixBuildUserIDBase   int

	NixPackageURL string // empty means "use the embedded tarball"
	ExtraConf     []string
	Channels      []ChannelValue

	Force           bool
	ModifyProfile   bool
	NoStartDaemon   bool
	Determinate     bool

	Proxy         string
	SSLCertFile   string

	DiagnosticEndpoint     string
	DiagnosticAttribution  string

	// PlannerExtensions carries planner-specific knobs (e.g.
	// steam-deck's immutable-root bind mount target) that don't
	// belong on every platform's Settings but must still round-trip
	// through the receipt (spec.md §3: "planner-specific extensions").
	PlannerExtensions map[string]string
}

// Default returns the architecture/OS-appropriate defaults, mirroring
// CommonSettings::default() in original_source/src/settings.rs.
func Default() (Settings, error) {
	s := Settings{
		NixBuildGroupName:  "nixbld",
		NixBuildUserCount:  32,
		ModifyProfile:      true,
		Channels:           []ChannelValue{{Name: "nixpkgs", URL: "https://nixos.org/channels/nixpkgs-unstable"}},
		PlannerExtensions:  map[string]string{},
	}

	switch runtime.GOOS {
	case "darwin":
		s.Init = InitLaunchd
		s.NixBuildGroupID = 350
		s.NixBuildUserPrefix = "_nixbld"
		s.NixBuildUserIDBase = 350
	case "linux":
		s.Init = InitSystemd
		s.NixBuildGroupID = 30000
		s.NixBuildUserPrefix = "nixbld"
		s.NixBuildUserIDBase = 30000
	default:
		return Settings{}, errdefs.NewUnsupportedPlatform(fmt.Sprintf("unsupported operating system %q", runtime.GOOS))
	}

	return s, nil
}

// LoadOverlayFile reads an optional YAML overlay (default search path
// /etc/nix-installer/config.yaml) and applies its values on top of s,
// returning a new Settings. Flags and environment variables applied
// after this call still take precedence, per SPEC_FULL.md's
// config-file < env < flag ordering.
func LoadOverlayFile(s Settings, path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return s, errdefs.NewIOError(path, err)
	}

	var overlay struct {
		Init                  string         `yaml:"init"`
		NixBuildGroupName     string         `yaml:"nix_build_group_name"`
		NixBuildGroupID       int            `yaml:"nix_build_group_id"`
		NixBuildUserPrefix    string         `yaml:"nix_build_user_prefix"`
		NixBuildUserCount     int            `yaml:"nix_build_user_count"`
		NixBuildUserIDBase    int            `yaml:"nix_build_user_id_base"`
		NixPackageURL         string         `yaml:"nix_package_url"`
		ExtraConf             []string       `yaml:"extra_conf"`
		Channels              []ChannelValue `yaml:"channels"`
		Force                 *bool          `yaml:"force"`
		ModifyProfile         *bool          `yaml:"modify_profile"`
		Proxy                 string         `yaml:"proxy"`
		SSLCertFile           string         `yaml:"ssl_cert_file"`
		DiagnosticEndpoint    string         `yaml:"diagnostic_endpoint"`
		DiagnosticAttribution string         `yaml:"diagnostic_attribution"`
	}
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return s, errdefs.NewInvalidSetting(path, err.Error())
	}

	out := s
	if overlay.Init != "" {
		out.Init = InitChoice(overlay.Init)
	}
	if overlay.NixBuildGroupName != "" {
		out.NixBuildGroupName = overlay.NixBuildGroupName
	}
	if overlay.NixBuildGroupID != 0 {
		out.NixBuildGroupID = overlay.NixBuildGroupID
	}
	if overlay.NixBuildUserPrefix != "" {
		out.NixBuildUserPrefix = overlay.NixBuildUserPrefix
	}
	if overlay.NixBuildUserCount != 0 {
		out.NixBuildUserCount = overlay.NixBuildUserCount
	}
	if overlay.NixBuildUserIDBase != 0 {
		out.NixBuildUserIDBase = overlay.NixBuildUserIDBase
	}
	if overlay.NixPackageURL != "" {
		out.NixPackageURL = overlay.NixPackageURL
	}
	if len(overlay.ExtraConf) > 0 {
		out.ExtraConf = overlay.ExtraConf
	}
	if len(overlay.Channels) > 0 {
		out.Channels = overlay.Channels
	}
	if overlay.Force != nil {
		out.Force = *overlay.Force
	}
	if overlay.ModifyProfile != nil {
		out.ModifyProfile = *overlay.ModifyProfile
	}
	if overlay.Proxy != "" {
		out.Proxy = overlay.Proxy
	}
	if overlay.SSLCertFile != "" {
		out.SSLCertFile = overlay.SSLCertFile
	}
	if overlay.DiagnosticEndpoint != "" {
		out.DiagnosticEndpoint = overlay.DiagnosticEndpoint
	}
	if overlay.DiagnosticAttribution != "" {
		out.DiagnosticAttribution = overlay.DiagnosticAttribution
	}
	return out, nil
}

// ApplyEnv overlays NIX_INSTALLER_* environment variables, the Go
// rename of the original's HARMONIC_* prefix.
func ApplyEnv(s Settings) Settings {
	out := s
	if v := os.Getenv("NIX_INSTALLER_FORCE"); v != "" {
		out.Force = v == "1" || strings.EqualFold(v, "true")
	}
	if v := os.Getenv("NIX_INSTALLER_NIX_BUILD_GROUP_NAME"); v != "" {
		out.NixBuildGroupName = v
	}
	if v := os.Getenv("NIX_INSTALLER_NIX_BUILD_GROUP_ID"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			out.NixBuildGroupID = n
		}
	}
	if v := os.Getenv("NIX_INSTALLER_NIX_BUILD_USER_PREFIX"); v != "" {
		out.NixBuildUserPrefix = v
	}
	if v := os.Getenv("NIX_INSTALLER_NIX_BUILD_USER_COUNT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			out.NixBuildUserCount = n
		}
	}
	if v := os.Getenv("NIX_INSTALLER_NIX_BUILD_USER_ID_BASE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			out.NixBuildUserIDBase = n
		}
	}
	if v := os.Getenv("NIX_INSTALLER_NIX_PACKAGE_URL"); v != "" {
		out.NixPackageURL = v
	}
	if v := os.Getenv("NIX_INSTALLER_PROXY"); v != "" {
		out.Proxy = v
	}
	if v := os.Getenv("NIX_INSTALLER_SSL_CERT_FILE"); v != "" {
		out.SSLCertFile = v
	}
	if v := os.Getenv("NIX_INSTALLER_DIAGNOSTIC_ENDPOINT"); v != "" {
		out.DiagnosticEndpoint = v
	}
	if v := os.Getenv("NIX_INSTALLER_DIAGNOSTIC_ATTRIBUTION"); v != "" {
		out.DiagnosticAttribution = v
	}
	return out
}

// Validate checks cross-field invariants the planners would otherwise
// each have to re-check (spec.md §7: InvalidSetting).
func (s Settings) Validate() error {
	if s.NixBuildUserCount < 1 {
		return errdefs.NewInvalidSetting("nix_build_user_count", "must be at least 1")
	}
	if s.NixBuildGroupName == "" {
		return errdefs.NewInvalidSetting("nix_build_group_name", "must not be empty")
	}
	if s.NixBuildUserPrefix == "" {
		return errdefs.NewInvalidSetting("nix_build_user_prefix", "must not be empty")
	}
	switch s.Init {
	case InitLaunchd, InitSystemd, InitNone:
	default:
		return errdefs.NewInvalidSetting("init", fmt.Sprintf("unknown init flavor %q", s.Init))
	}
	if runtime.GOOS == "linux" && s.Init == InitLaunchd {
		return errdefs.NewInvalidSetting("init", "launchd is not available on linux")
	}
	if runtime.GOOS == "darwin" && s.Init == InitSystemd {
		return errdefs.NewInvalidSetting("init", "systemd is not available on macos")
	}
	return nil
}
