package main

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nixinstall/nix-installer-go/internal/tracelog"
)

var rootCmd = &cobra.Command{
	Use:   "nix-installer",
	Short: "Install, repair, and uninstall the Nix package manager",
	Long: "nix-installer plans every mutation before touching the host, executes\n" +
		"steps with explicit dependencies, records a durable installation\n" +
		"receipt, and performs a best-effort rollback when a step fails.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		configureLogger(cmd)
		return reexecAsRootIfNeeded(cmd)
	},
}

func registerFlags() {
	flags := rootCmd.PersistentFlags()
	flags.CountP("verbose", "v", "increase log verbosity (repeatable)")
	flags.String("logger", "compact", "logger format: compact, full, pretty, json")
	flags.String("log-directives", "", "comma-separated target=level pairs")
	flags.Bool("no-confirm", false, "skip interactive confirmation")
	flags.Bool("explain", false, "print remediation guidance on failure")

	registerInstallFlags(installCmd)
	registerInstallFlags(repairCmd)
}

func configureLogger(cmd *cobra.Command) {
	format, _ := cmd.Flags().GetString("logger")
	verbosity, _ := cmd.Flags().GetCount("verbose")
	tracelog.Configure(tracelog.Format(format), verbosity)
	directives, _ := cmd.Flags().GetString("log-directives")
	tracelog.ConfigureDirectives(directives)
}

// reexecAsRootIfNeeded implements spec.md §5's privilege model: "the
// installer expects to be invoked as UID 0. If not, it re-executes
// itself via sudo with the original argv and environment whitelisted
// (NIX_INSTALLER_*)." `export`, `self-test`, and `plan` (with or
// without --out-file) are exempt and run as the invoking user.
func reexecAsRootIfNeeded(cmd *cobra.Command) error {
	if os.Geteuid() == 0 {
		return nil
	}
	switch cmd.Name() {
	case "export", "self-test", "plan":
		return nil
	}

	sudoPath, err := exec.LookPath("sudo")
	if err != nil {
		return fmt.Errorf("nix-installer must run as root, and sudo was not found: %w", err)
	}

	argv := append([]string{sudoPath, "-E", os.Args[0]}, os.Args[1:]...)
	env := whitelistedEnv()

	tracelog.Info("re-executing as root", "via", sudoPath)
	proc := exec.Command(argv[0], argv[1:]...)
	proc.Env = env
	proc.Stdin, proc.Stdout, proc.Stderr = os.Stdin, os.Stdout, os.Stderr
	if err := proc.Run(); err != nil {
		os.Exit(subprocessExitCode(err))
	}
	os.Exit(0)
	return nil
}

func whitelistedEnv() []string {
	var out []string
	for _, kv := range os.Environ() {
		if strings.HasPrefix(kv, "NIX_INSTALLER_") || strings.HasPrefix(kv, "PATH=") || strings.HasPrefix(kv, "HOME=") {
			out = append(out, kv)
		}
	}
	return out
}

func subprocessExitCode(err error) int {
	if exitErr, ok := err.(*exec.ExitError); ok {
		return exitErr.ExitCode()
	}
	return 1
}
