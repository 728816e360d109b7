package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nixinstall/nix-installer-go/internal/cure"
	"github.com/nixinstall/nix-installer-go/internal/diagnostics"
	"github.com/nixinstall/nix-installer-go/internal/engine"
	"github.com/nixinstall/nix-installer-go/internal/probe"
	"github.com/nixinstall/nix-installer-go/internal/receiptstore"
)

var repairCmd = &cobra.Command{
	Use:   "repair",
	Short: "Diagnose a receipt-less Nix install and bring it under management",
	Long: "repair looks for Nix artifacts left by a prior install that has\n" +
		"no current-schema receipt, synthesizes a Plan biased toward\n" +
		"adopting what's already there, and executes it.",
	RunE: runRepair,
}

func runRepair(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	s, err := settingsFromFlags(cmd)
	if err != nil {
		return err
	}

	store := receiptstore.New(receiptstore.DefaultReceiptPath)

	legacy := cure.DetectLegacyArtifacts(s.NixBuildGroupName)
	if !cure.Diagnose(store.Exists(), legacy) {
		return fmt.Errorf("nothing to repair: no receipt and no legacy Nix artifacts were found")
	}

	lock := receiptstore.NewLock(receiptstore.DefaultLockPath)
	if err := lock.TryAcquire(); err != nil {
		return err
	}
	defer lock.Release()

	p := probe.Collect(ctx, s.NixBuildGroupName, s.NixBuildUserPrefix, s.NixBuildUserCount)

	builtPlan, err := cure.Build(s, p)
	if err != nil {
		return err
	}

	noConfirm, _ := cmd.Flags().GetBool("no-confirm")
	if !noConfirm && !confirm(builtPlan) {
		return fmt.Errorf("aborted by user")
	}

	eng := engine.New(store)
	go func() {
		for msg := range eng.Progress {
			logProgress(msg)
		}
	}()

	runErr := eng.Execute(ctx, builtPlan)
	close(eng.Progress)

	sendDiagnostics(ctx, builtPlan, diagnostics.ActionInstall, runErr)

	if runErr != nil {
		return runErr
	}
	fmt.Println("Existing Nix installation has been brought under management.")
	return nil
}
