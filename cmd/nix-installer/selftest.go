package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nixinstall/nix-installer-go/internal/receiptstore"
	"github.com/nixinstall/nix-installer-go/internal/selftest"
	"github.com/nixinstall/nix-installer-go/internal/settings"
)

var selfTestCmd = &cobra.Command{
	Use:   "self-test",
	Short: "Verify a completed install without risking a rollback",
	Long: "self-test runs post-install checks (daemon reachability, store\n" +
		"ping, a trivial derivation build). Failures are reported but never\n" +
		"trigger the revert path.",
	RunE: runSelfTest,
}

func runSelfTest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	flavor := settings.InitSystemd
	store := receiptstore.New(receiptstore.DefaultReceiptPath)
	if store.Exists() {
		if p, err := store.Read(); err == nil {
			flavor = p.Settings.Init
		}
	}

	results := selftest.Run(ctx, flavor)

	failed := 0
	for _, r := range results {
		mark := "ok"
		if !r.Passed {
			mark = "FAIL"
			failed++
		}
		fmt.Printf("[%s] %s\n", mark, r.Name)
		if r.Detail != "" {
			fmt.Printf("      %s\n", r.Detail)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d self-test check(s) failed", failed)
	}
	return nil
}
