package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Emit environment bindings for shell profile hooks",
	Long: "export prints the environment variables ConfigureShellProfile's\n" +
		"fenced block sources at login, in a format a shell hook can\n" +
		"re-consume without re-implementing nix.sh's own logic.",
	RunE: runExport,
}

func init() {
	exportCmd.Flags().String("format", "sh", "output format: sh, null-separated, space-newline-separated")
}

func runExport(cmd *cobra.Command, args []string) error {
	bindings := exportBindings()

	format, _ := cmd.Flags().GetString("format")
	switch format {
	case "sh":
		for _, kv := range bindings {
			fmt.Printf("export %s=%q\n", kv[0], kv[1])
		}
	case "null-separated":
		var b strings.Builder
		for _, kv := range bindings {
			b.WriteString(kv[0])
			b.WriteByte('=')
			b.WriteString(kv[1])
			b.WriteByte(0)
		}
		os.Stdout.WriteString(b.String())
	case "space-newline-separated":
		for _, kv := range bindings {
			fmt.Printf("%s %s\n", kv[0], kv[1])
		}
	default:
		return fmt.Errorf("unknown --format %q", format)
	}
	return nil
}

// exportBindings mirrors the variables
// /nix/var/nix/profiles/default/etc/profile.d/nix-daemon.sh sets, so a
// shell that can't source that script directly (e.g. a non-POSIX
// shell's login hook) can still pick them up.
func exportBindings() [][2]string {
	nixProfiles := "/nix/var/nix/profiles/default " + os.Getenv("HOME") + "/.nix-profile"
	path := "/nix/var/nix/profiles/default/bin:" + os.Getenv("PATH")
	return [][2]string{
		{"NIX_PROFILES", nixProfiles},
		{"PATH", path},
		{"NIX_SSL_CERT_FILE", "/etc/ssl/certs/ca-certificates.crt"},
	}
}
