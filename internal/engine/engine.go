// Package engine implements C5 from spec.md §2: the execution engine
// that drives a Plan's Action tree through execute/revert, persisting
// the receipt after every transition and honoring cancellation.
// Grounded on the teacher's channel-based progress reporting
// (internal/installer/installer.go's logChan) generalized from "log
// lines" to action.ProgressMsg, and on golang.org/x/sync/errgroup for
// the bounded-parallelism composite execution internal/action already
// performs — this package is the top-level driver around it.
package engine

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/nixinstall/nix-installer-go/internal/action"
	"github.com/nixinstall/nix-installer-go/internal/errdefs"
	"github.com/nixinstall/nix-installer-go/internal/plan"
	"github.com/nixinstall/nix-installer-go/internal/receiptstore"
	"github.com/nixinstall/nix-installer-go/internal/tracelog"
)

// Engine drives one Plan's execution or reversal.
type Engine struct {
	Store    *receiptstore.Store
	Progress chan action.ProgressMsg
}

func New(store *receiptstore.Store) *Engine {
	return &Engine{Store: store, Progress: make(chan action.ProgressMsg, 64)}
}

// flush returns a Context.Flush callback that persists p, called by
// internal/action's Composite after every child transition (spec.md
// §4.3 step 3, §5). Write failures are logged rather than propagated:
// a receipt write hiccup must not abort an in-progress install, but it
// must not vanish silently either. Store.Write serializes concurrent
// callers behind its own mutex, so this is safe to invoke from the
// parallel branch of Composite.Execute too.
func (e *Engine) flush(p *plan.Plan) func() {
	return func() {
		if err := e.Store.Write(p); err != nil {
			tracelog.Error("failed to persist receipt after transition", "err", err)
		}
	}
}

// Execute runs p.Root forward per spec.md §4.3: write the receipt
// once with the initial state, walk the tree, re-persist after every
// transition, and on any error invoke Revert before returning.
// Cancellation (SIGINT/SIGTERM) is wired the same way: it's treated
// exactly like any other execute error once observed.
func (e *Engine) Execute(ctx context.Context, p *plan.Plan) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := e.Store.Write(p); err != nil {
		return err
	}

	ac := action.Context{Ctx: ctx, Force: p.Settings.Force, Progress: e.Progress, Flush: e.flush(p)}

	execErr := p.Root.Execute(ac)
	if execErr == nil {
		return nil
	}

	tracelog.Warn("execute failed, reverting", "err", execErr)
	revertErr := p.Root.Revert(ac)

	if ctx.Err() == context.Canceled {
		return errdefs.ErrCancelled
	}
	if revertErr != nil {
		return revertErr
	}
	return execErr
}

// Revert runs p.Root in reverse, used directly by `uninstall` rather
// than as the failure path of Execute.
func (e *Engine) Revert(ctx context.Context, p *plan.Plan) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	ac := action.Context{Ctx: ctx, Force: p.Settings.Force, Progress: e.Progress, Flush: e.flush(p)}
	err := p.Root.Revert(ac)
	if err == nil {
		if removeErr := e.Store.Remove(); removeErr != nil {
			tracelog.Warn("failed to remove receipt after clean uninstall", "err", removeErr)
		}
	}
	return err
}
