package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nixinstall/nix-installer-go/internal/action"
	"github.com/nixinstall/nix-installer-go/internal/diagnostics"
	"github.com/nixinstall/nix-installer-go/internal/engine"
	"github.com/nixinstall/nix-installer-go/internal/errdefs"
	"github.com/nixinstall/nix-installer-go/internal/plan"
	"github.com/nixinstall/nix-installer-go/internal/planner"
	"github.com/nixinstall/nix-installer-go/internal/probe"
	"github.com/nixinstall/nix-installer-go/internal/receiptstore"
	"github.com/nixinstall/nix-installer-go/internal/progressview"
	"github.com/nixinstall/nix-installer-go/internal/tracelog"
)

var installCmd = &cobra.Command{
	Use:   "install [planner]",
	Short: "Plan and execute a fresh Nix installation",
	Long: "install probes the host, builds a Plan, asks for confirmation\n" +
		"unless --no-confirm was given, then executes it while persisting\n" +
		"a receipt after every state transition.",
	RunE: runInstall,
}

func runInstall(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	s, err := settingsFromFlags(cmd)
	if err != nil {
		return err
	}

	store := receiptstore.New(receiptstore.DefaultReceiptPath)
	if store.Exists() && !s.Force {
		return errdefs.NewConflictingResource(receiptstore.DefaultReceiptPath, "a receipt already exists; pass --force to reinstall or run `uninstall` first")
	}

	lock := receiptstore.NewLock(receiptstore.DefaultLockPath)
	if err := lock.TryAcquire(); err != nil {
		return err
	}
	defer lock.Release()

	p := probe.Collect(ctx, s.NixBuildGroupName, s.NixBuildUserPrefix, s.NixBuildUserCount)

	sel, err := planner.Select(p)
	if err != nil {
		return err
	}

	builtPlan, err := sel.Plan(s, p)
	if err != nil {
		return err
	}

	noConfirm, _ := cmd.Flags().GetBool("no-confirm")
	if !noConfirm {
		if !confirm(builtPlan) {
			return errdefs.ErrUserAborted
		}
	}

	exe, err := os.Executable()
	if err == nil {
		if err := receiptstore.InstallBinary(exe, receiptstore.DefaultBinaryPath); err != nil {
			tracelog.Warn("could not install a copy of the binary for later uninstall", "err", err)
		}
	}

	eng := engine.New(store)

	logger, _ := cmd.Flags().GetString("logger")
	var runErr error
	if logger == "pretty" {
		runErr = runWithProgressView(ctx, eng, builtPlan)
	} else {
		runErr = runPlain(ctx, eng, builtPlan)
	}

	sendDiagnostics(ctx, builtPlan, diagnostics.ActionInstall, runErr)

	if runErr != nil {
		return runErr
	}
	fmt.Println("Nix has been installed.")
	return nil
}

func confirm(p *plan.Plan) bool {
	fmt.Printf("This will install Nix on your system using the %s planner.\n", p.Planner)
	fmt.Print("Proceed? [y/N] ")
	reader := bufio.NewReader(os.Stdin)
	line, _ := reader.ReadString('\n')
	line = strings.TrimSpace(strings.ToLower(line))
	return line == "y" || line == "yes"
}

func runPlain(ctx context.Context, eng *engine.Engine, p *plan.Plan) error {
	done := make(chan error, 1)
	go func() {
		for msg := range eng.Progress {
			logProgress(msg)
		}
	}()
	go func() {
		done <- eng.Execute(ctx, p)
		close(eng.Progress)
	}()
	return <-done
}

func logProgress(msg action.ProgressMsg) {
	if msg.Err != nil {
		tracelog.Error(msg.Synopsis, "detail", msg.Detail, "err", msg.Err)
		return
	}
	tracelog.Info(msg.Synopsis, "detail", msg.Detail)
}

func runWithProgressView(ctx context.Context, eng *engine.Engine, p *plan.Plan) error {
	model := progressview.New(eng.Progress, action.CountActions(p.Root))
	program := tea.NewProgram(model)

	result := make(chan error, 1)
	go func() {
		err := eng.Execute(ctx, p)
		close(eng.Progress)
		result <- err
		program.Send(progressview.FinishMsg{Err: err})
	}()

	if _, err := program.Run(); err != nil {
		return err
	}
	return <-result
}

func sendDiagnostics(ctx context.Context, p *plan.Plan, kind diagnostics.ActionKind, runErr error) {
	status := diagnostics.StatusSuccess
	var chain []string
	if runErr != nil {
		status = diagnostics.StatusFailure
		for e := runErr; e != nil; e = errorsUnwrap(e) {
			chain = append(chain, e.Error())
		}
	}
	payload := diagnostics.Build(p, kind, status, chain)
	if err := diagnostics.Send(ctx, p.Settings.DiagnosticEndpoint, payload); err != nil {
		tracelog.Debug("diagnostic send failed", "err", err)
	}
}

func errorsUnwrap(err error) error {
	type unwrapper interface{ Unwrap() error }
	if u, ok := err.(unwrapper); ok {
		return u.Unwrap()
	}
	return nil
}
