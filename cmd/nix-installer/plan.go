package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nixinstall/nix-installer-go/internal/planner"
	"github.com/nixinstall/nix-installer-go/internal/probe"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Build a Plan and write it to disk without executing it",
	Long: "plan probes the host and runs the selected Planner, then writes\n" +
		"the resulting receipt-shaped JSON to --out-file (or stdout) without\n" +
		"touching the system, per the dry-plan purity invariant.",
	RunE: runPlan,
}

func init() {
	registerInstallFlags(planCmd)
	planCmd.Flags().String("out-file", "-", "path to write the plan JSON to, or - for stdout")
}

func runPlan(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	s, err := settingsFromFlags(cmd)
	if err != nil {
		return err
	}

	p := probe.Collect(ctx, s.NixBuildGroupName, s.NixBuildUserPrefix, s.NixBuildUserCount)

	sel, err := planner.Select(p)
	if err != nil {
		return err
	}

	builtPlan, err := sel.Plan(s, p)
	if err != nil {
		return err
	}

	data, err := builtPlan.MarshalCanonicalJSON()
	if err != nil {
		return err
	}

	outFile, _ := cmd.Flags().GetString("out-file")
	if outFile == "-" || outFile == "" {
		_, err := os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(outFile, data, 0644); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "plan written to %s\n", outFile)
	return nil
}
