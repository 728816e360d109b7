package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nixinstall/nix-installer-go/internal/diagnostics"
	"github.com/nixinstall/nix-installer-go/internal/engine"
	"github.com/nixinstall/nix-installer-go/internal/receiptstore"
)

var uninstallCmd = &cobra.Command{
	Use:   "uninstall [receipt-path]",
	Short: "Revert a previous install using its receipt",
	Long: "uninstall loads the receipt written by `install`, walks its\n" +
		"Action tree in reverse, and removes the receipt on a clean revert.",
	Args: cobra.MaximumNArgs(1),
	RunE: runUninstall,
}

func runUninstall(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	receiptPath := receiptstore.DefaultReceiptPath
	if len(args) == 1 {
		receiptPath = args[0]
	}

	store := receiptstore.New(receiptPath)
	if !store.Exists() {
		return fmt.Errorf("no receipt found at %s", receiptPath)
	}

	loadedPlan, err := store.Read()
	if err != nil {
		return err
	}

	lock := receiptstore.NewLock(receiptstore.DefaultLockPath)
	if err := lock.TryAcquire(); err != nil {
		return err
	}
	defer lock.Release()

	noConfirm, _ := cmd.Flags().GetBool("no-confirm")
	if !noConfirm {
		fmt.Printf("This will remove the Nix installation performed by the %s planner.\n", loadedPlan.Planner)
		fmt.Print("Proceed? [y/N] ")
		var answer string
		fmt.Scanln(&answer)
		if answer != "y" && answer != "yes" {
			return fmt.Errorf("aborted by user")
		}
	}

	eng := engine.New(store)
	go func() {
		for msg := range eng.Progress {
			logProgress(msg)
		}
	}()

	runErr := eng.Revert(ctx, loadedPlan)
	close(eng.Progress)

	sendDiagnostics(ctx, loadedPlan, diagnostics.ActionUninstall, runErr)

	if runErr != nil {
		return runErr
	}
	fmt.Println("Nix has been uninstalled.")
	return nil
}
