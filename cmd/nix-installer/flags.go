package main

import (
	"github.com/spf13/cobra"

	"github.com/nixinstall/nix-installer-go/internal/settings"
)

// registerInstallFlags attaches the install-family flags (spec.md §6)
// shared by `install` and `repair` to cmd.
func registerInstallFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.String("init", "", "init system to configure: launchd, systemd, or none (default: platform-appropriate)")
	flags.String("nix-build-group-name", "", "name of the nix build group")
	flags.Int("nix-build-group-id", 0, "gid of the nix build group")
	flags.String("nix-build-user-prefix", "", "username prefix for nix build users")
	flags.Int("nix-build-user-count", 0, "number of nix build users to create")
	flags.Int("nix-build-user-id-base", 0, "starting uid for nix build users")
	flags.String("nix-package-url", "", "URL of the Nix tarball to install (default: embedded)")
	flags.StringSlice("extra-conf", nil, "extra nix.conf lines, repeatable")
	flags.StringSlice("channel", nil, "channel as name=url, repeatable")
	flags.Bool("force", false, "proceed even when existing resources are found")
	flags.Bool("no-modify-profile", false, "don't add Nix to shell profiles")
	flags.Bool("no-start-daemon", false, "don't start the nix-daemon service")
	flags.String("proxy", "", "HTTP(S) proxy for fetches")
	flags.String("ssl-cert-file", "", "extra CA bundle for fetches")
	flags.String("diagnostic-endpoint", "", "URL to POST anonymous diagnostics to (empty disables)")
	flags.String("diagnostic-attribution", "", "opaque attribution string included in diagnostics")
	flags.Bool("determinate", false, "install the Determinate Nix distribution")
}

// settingsFromFlags builds a Settings from platform defaults, an
// optional config-file overlay, environment variables, and finally
// this invocation's flags, in that precedence order (lowest to
// highest), per SPEC_FULL.md's layering rule.
func settingsFromFlags(cmd *cobra.Command) (settings.Settings, error) {
	s, err := settings.Default()
	if err != nil {
		return settings.Settings{}, err
	}

	s, err = settings.LoadOverlayFile(s, "/etc/nix-installer/config.yaml")
	if err != nil {
		return settings.Settings{}, err
	}
	s = settings.ApplyEnv(s)

	flags := cmd.Flags()
	if v, _ := flags.GetString("init"); v != "" {
		s.Init = settings.InitChoice(v)
	}
	if v, _ := flags.GetString("nix-build-group-name"); v != "" {
		s.NixBuildGroupName = v
	}
	if v, _ := flags.GetInt("nix-build-group-id"); v != 0 {
		s.NixBuildGroupID = v
	}
	if v, _ := flags.GetString("nix-build-user-prefix"); v != "" {
		s.NixBuildUserPrefix = v
	}
	if v, _ := flags.GetInt("nix-build-user-count"); v != 0 {
		s.NixBuildUserCount = v
	}
	if v, _ := flags.GetInt("nix-build-user-id-base"); v != 0 {
		s.NixBuildUserIDBase = v
	}
	if v, _ := flags.GetString("nix-package-url"); v != "" {
		s.NixPackageURL = v
	}
	if v, _ := flags.GetStringSlice("extra-conf"); len(v) > 0 {
		s.ExtraConf = v
	}
	if raw, _ := flags.GetStringSlice("channel"); len(raw) > 0 {
		channels := make([]settings.ChannelValue, 0, len(raw))
		for _, c := range raw {
			cv, err := settings.ParseChannelValue(c)
			if err != nil {
				return settings.Settings{}, err
			}
			channels = append(channels, cv)
		}
		s.Channels = channels
	}
	if v, _ := flags.GetBool("force"); v {
		s.Force = true
	}
	if v, _ := flags.GetBool("no-modify-profile"); v {
		s.ModifyProfile = false
	}
	if v, _ := flags.GetBool("no-start-daemon"); v {
		s.NoStartDaemon = true
	}
	if v, _ := flags.GetString("proxy"); v != "" {
		s.Proxy = v
	}
	if v, _ := flags.GetString("ssl-cert-file"); v != "" {
		s.SSLCertFile = v
	}
	if v, _ := flags.GetString("diagnostic-endpoint"); v != "" {
		s.DiagnosticEndpoint = v
	}
	if v, _ := flags.GetString("diagnostic-attribution"); v != "" {
		s.DiagnosticAttribution = v
	}
	if v, _ := flags.GetBool("determinate"); v {
		s.Determinate = true
	}

	if err := s.Validate(); err != nil {
		return settings.Settings{}, err
	}
	return s, nil
}
