package action

import (
	"encoding/json"
	"fmt"

	"github.com/nixinstall/nix-installer-go/internal/errdefs"
	"golang.org/x/sync/errgroup"
)

// Concurrency selects how a composite's children run, per spec.md §5.
type Concurrency int

const (
	Sequential Concurrency = iota
	Parallel
)

// Base is a sequential-or-parallel composite Action, the "provision
// Nix" / "configure Nix" shape from spec.md §4.2. The planners (see
// internal/planner) build their composites with NewComposite, giving
// each its own kind name and synopsis.
type Base struct {
	kindName    string
	synopsis    string
	concurrency Concurrency
	maxParallel int
	children    []Action
	failedIndex int
	state       State
}

// NewComposite builds a composite Action over children, run with the
// given concurrency. maxParallel bounds simultaneous children under
// Parallel; 0 means unbounded.
func NewComposite(kindName, synopsis string, concurrency Concurrency, maxParallel int, children []Action) *Base {
	return &Base{
		kindName:    kindName,
		synopsis:    synopsis,
		concurrency: concurrency,
		maxParallel: maxParallel,
		children:    children,
		failedIndex: -1,
		state:       StateUncompleted,
	}
}

func (b *Base) Kind() string          { return b.kindName }
func (b *Base) Synopsis() string      { return b.synopsis }
func (b *Base) Children() []Action    { return b.children }

func (b *Base) SpanData() map[string]string {
	return map[string]string{
		"kind":     b.kindName,
		"children": fmt.Sprintf("%d", len(b.children)),
	}
}

// State is derived from children per spec.md §3: Completed iff all
// children Completed, Uncompleted iff all children Uncompleted,
// otherwise Progress.
func (b *Base) State() State {
	if len(b.children) == 0 {
		return b.state
	}
	allCompleted, allUncompleted := true, true
	for _, c := range b.children {
		switch c.State() {
		case StateCompleted:
			allUncompleted = false
		case StateUncompleted:
			allCompleted = false
		default:
			allCompleted, allUncompleted = false, false
		}
	}
	switch {
	case allCompleted:
		return StateCompleted
	case allUncompleted:
		return StateUncompleted
	default:
		return StateProgress
	}
}

// Execute runs children per §4.3: sequential composites run children
// in order, stopping at the first error; parallel composites run
// children concurrently via a bounded errgroup, cancelling outstanding
// children on the first error while leaving already-finished children
// Completed.
func (b *Base) Execute(ac Context) error {
	ac.emit(ProgressMsg{Kind: b.kindName, Synopsis: "starting " + b.synopsis})

	if b.concurrency == Sequential {
		for i, child := range b.children {
			if child.State() == StateCompleted {
				continue
			}
			err := child.Execute(ac)
			ac.flush()
			if err != nil {
				b.failedIndex = i
				return fmt.Errorf("%s: child %d (%s): %w", b.kindName, i, child.Kind(), err)
			}
		}
		return nil
	}

	group, gctx := errgroup.WithContext(ac.Ctx)
	if b.maxParallel > 0 {
		group.SetLimit(b.maxParallel)
	}
	childAc := ac
	childAc.Ctx = gctx
	for i, child := range b.children {
		if child.State() == StateCompleted {
			continue
		}
		i, child := i, child
		group.Go(func() error {
			err := child.Execute(childAc)
			// childAc.Flush (internal/engine's receipt write) is
			// serialized behind the store's own mutex, so concurrent
			// siblings flushing here is safe per spec.md §5.
			childAc.flush()
			if err != nil {
				return fmt.Errorf("child %d (%s): %w", i, child.Kind(), err)
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return fmt.Errorf("%s: %w", b.kindName, err)
	}
	return nil
}

// Revert iterates children in reverse order, per §4.3, calling revert
// only on children whose state is not Uncompleted. Failures accumulate
// into a RevertResidue rather than aborting early: every child gets a
// best-effort revert attempt.
func (b *Base) Revert(ac Context) error {
	residue := &errdefs.RevertResidue{}
	for i := len(b.children) - 1; i >= 0; i-- {
		child := b.children[i]
		if child.State() == StateUncompleted {
			continue
		}
		err := child.Revert(ac)
		ac.flush()
		if err != nil {
			residue.Add(child.Synopsis(), err)
		}
	}
	if residue.HasFailures() {
		return residue
	}
	return nil
}

type compositeState struct {
	Kind     string            `json:"kind"`
	Synopsis string            `json:"synopsis"`
	Children []json.RawMessage `json:"children"`
}

func (b *Base) MarshalState() (json.RawMessage, error) {
	children := make([]json.RawMessage, 0, len(b.children))
	for _, c := range b.children {
		raw, err := c.MarshalState()
		if err != nil {
			return nil, err
		}
		wrapped, err := json.Marshal(struct {
			Kind  string          `json:"kind"`
			State json.RawMessage `json:"state"`
		}{Kind: c.Kind(), State: raw})
		if err != nil {
			return nil, err
		}
		children = append(children, wrapped)
	}
	return json.Marshal(compositeState{Kind: b.kindName, Synopsis: b.synopsis, Children: children})
}

// UnmarshalState restores the composite's own fields. Children must be
// rehydrated by the caller (internal/plan), which owns the kind
// registry needed to construct concrete child Actions from their
// discriminator strings.
func (b *Base) UnmarshalState(data json.RawMessage) error {
	var cs compositeState
	if err := json.Unmarshal(data, &cs); err != nil {
		return errdefs.NewReceiptCorruptError("", err)
	}
	b.kindName = cs.Kind
	b.synopsis = cs.Synopsis
	return nil
}

// SetChildren replaces the composite's children, used by the receipt
// loader after rehydrating each child from its discriminator.
func (b *Base) SetChildren(children []Action) { b.children = children }
