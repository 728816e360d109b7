// Package action implements C2/C3 from spec.md §2: the Action kind
// contract and its composite form. Grounded on the Step/RollbackableStep
// pattern in the retrieved corpus (a Check/Plan/Apply/Explain unit of
// idempotent change) generalized to the plan/execute/revert lifecycle
// spec.md §4.1 requires, and on the teacher's InstallProgressMsg
// channel idiom for progress reporting.
package action

import (
	"context"
	"encoding/json"

	"github.com/nixinstall/nix-installer-go/internal/errdefs"
)

// State is an Action's per-execute lifecycle position (spec.md §3).
type State string

const (
	StateUncompleted State = "Uncompleted"
	StateProgress    State = "Progress"
	StateCompleted   State = "Completed"
)

// Disposition is the plan-time classification of a resource an Action
// will touch (spec.md §4.1.1).
type Disposition string

const (
	DispositionCreate   Disposition = "Create"
	DispositionAdopt    Disposition = "Adopt"
	DispositionConflict Disposition = "Conflict"
)

// ProgressMsg is emitted on an Action's progress channel as it runs,
// mirroring the teacher's InstallProgressMsg.
type ProgressMsg struct {
	Kind     string
	Synopsis string
	Detail   string
	Err      error
}

// Context carries the process-wide, explicitly-passed state every
// Action operation needs: cancellation, the progress sink, and
// whether we're inside a --force plan. Kept out of package-level
// globals per spec.md §9 ("Global state ... gathered into a
// process-wide context object passed explicitly into every Action").
type Context struct {
	Ctx      context.Context
	Force    bool
	Progress chan<- ProgressMsg

	// Flush persists the receipt, called after every child transition a
	// Composite drives (spec.md §4.3/§5: "a completed state transition
	// is not observable to the receipt file before the preceding
	// transition has been durably written"). Set by internal/engine;
	// nil is a valid no-op for callers (tests) that don't need it.
	Flush func()
}

func (c Context) emit(msg ProgressMsg) {
	if c.Progress != nil {
		select {
		case c.Progress <- msg:
		case <-c.Ctx.Done():
		}
	}
}

func (c Context) flush() {
	if c.Flush != nil {
		c.Flush()
	}
}

// Action is the common contract every concrete action kind satisfies,
// per spec.md §4.1.
type Action interface {
	// Kind is the typetag/discriminator used for JSON serialization.
	Kind() string

	// State returns the Action's current lifecycle position.
	State() State

	// Synopsis is the human-readable progress line (tracing_synopsis).
	Synopsis() string

	// SpanData returns key-value pairs for structured logging
	// (tracing_span_data).
	SpanData() map[string]string

	// Execute performs the idempotent forward step. Calling Execute on
	// an already-Completed Action is a no-op.
	Execute(ac Context) error

	// Revert undoes Execute, respecting any Adopt disposition recorded
	// at plan time. Calling Revert on an Uncompleted Action is a no-op.
	Revert(ac Context) error

	// MarshalState / UnmarshalState round-trip the concrete kind's
	// fields (inputs + recorded dispositions + State) to/from the
	// canonical receipt encoding.
	MarshalState() (json.RawMessage, error)
	UnmarshalState(data json.RawMessage) error
}

// Composite is an Action that owns an ordered list of children
// (spec.md §3 "Composite Action"). Sequential composites run children
// in declaration order; Parallel composites run them concurrently
// (see internal/action/composite.go).
type Composite interface {
	Action
	Children() []Action
}

// ErrNotCompleted is returned by revert helpers when asked to revert
// an Action that never ran.
var ErrNotCompleted = errdefs.NewCommandError("revert", 0, "action was never completed", nil)

// CountActions returns the number of leaf (non-composite) Actions
// reachable from a, used to size the progress bar in
// internal/progressview.
func CountActions(a Action) int {
	if composite, ok := a.(Composite); ok {
		total := 0
		for _, child := range composite.Children() {
			total += CountActions(child)
		}
		return total
	}
	return 1
}
