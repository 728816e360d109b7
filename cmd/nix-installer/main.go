// Command nix-installer installs, repairs, and uninstalls Nix on
// heterogeneous hosts via a transactional action graph (see
// internal/plan, internal/engine). CLI surface and flag layout follow
// the teacher's cobra root/subcommand pattern in cmd/dms/main.go.
package main

import (
	"os"

	"github.com/nixinstall/nix-installer-go/internal/tracelog"
)

func init() {
	registerFlags()
	rootCmd.AddCommand(installCmd, uninstallCmd, planCmd, repairCmd, selfTestCmd, exportCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		tracelog.Error(err.Error())
		if wantExplain, _ := rootCmd.PersistentFlags().GetBool("explain"); wantExplain {
			explain(err)
		}
		os.Exit(exitCodeForErr(err))
	}
}
