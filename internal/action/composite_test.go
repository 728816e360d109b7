package action

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAction is a minimal Action for exercising composite semantics
// without touching the filesystem.
type fakeAction struct {
	kind      string
	state     State
	execErr   error
	revertErr error
	executed  int
	reverted  int
}

func (f *fakeAction) Kind() string                       { return f.kind }
func (f *fakeAction) State() State                        { return f.state }
func (f *fakeAction) Synopsis() string                     { return "fake " + f.kind }
func (f *fakeAction) SpanData() map[string]string          { return nil }
func (f *fakeAction) MarshalState() (json.RawMessage, error) { return json.Marshal(f.state) }
func (f *fakeAction) UnmarshalState(data json.RawMessage) error {
	return json.Unmarshal(data, &f.state)
}

func (f *fakeAction) Execute(ac Context) error {
	f.executed++
	if f.execErr != nil {
		return f.execErr
	}
	f.state = StateCompleted
	return nil
}

func (f *fakeAction) Revert(ac Context) error {
	f.reverted++
	if f.revertErr != nil {
		return f.revertErr
	}
	f.state = StateUncompleted
	return nil
}

func TestSequentialCompositeStopsAtFirstError(t *testing.T) {
	first := &fakeAction{kind: "A", state: StateUncompleted}
	second := &fakeAction{kind: "B", state: StateUncompleted, execErr: errors.New("boom")}
	third := &fakeAction{kind: "C", state: StateUncompleted}

	composite := NewComposite("Test", "test composite", Sequential, 0, []Action{first, second, third})
	ac := Context{Ctx: context.Background(), Progress: make(chan ProgressMsg, 10)}

	err := composite.Execute(ac)
	assert.Error(t, err)
	assert.Equal(t, 1, first.executed)
	assert.Equal(t, 1, second.executed)
	assert.Equal(t, 0, third.executed, "third child must not run once the second fails")
}

func TestSequentialCompositeRevertIsBestEffortInReverse(t *testing.T) {
	first := &fakeAction{kind: "A", state: StateCompleted}
	second := &fakeAction{kind: "B", state: StateCompleted, revertErr: errors.New("cannot undo B")}
	third := &fakeAction{kind: "C", state: StateCompleted}

	composite := NewComposite("Test", "test composite", Sequential, 0, []Action{first, second, third})
	ac := Context{Ctx: context.Background(), Progress: make(chan ProgressMsg, 10)}

	err := composite.Revert(ac)
	require.Error(t, err, "a failing child revert surfaces as RevertResidue")
	assert.Equal(t, 1, first.reverted)
	assert.Equal(t, 1, second.reverted)
	assert.Equal(t, 1, third.reverted, "every child still gets a best-effort revert attempt")
}

func TestCompositeStateDerivedFromChildren(t *testing.T) {
	a := &fakeAction{kind: "A", state: StateUncompleted}
	b := &fakeAction{kind: "B", state: StateUncompleted}
	composite := NewComposite("Test", "test", Sequential, 0, []Action{a, b})

	assert.Equal(t, StateUncompleted, composite.State())

	a.state = StateCompleted
	assert.Equal(t, StateProgress, composite.State())

	b.state = StateCompleted
	assert.Equal(t, StateCompleted, composite.State())
}

func TestParallelCompositeRunsAllChildren(t *testing.T) {
	children := make([]Action, 5)
	fakes := make([]*fakeAction, 5)
	for i := range children {
		f := &fakeAction{kind: "P", state: StateUncompleted}
		fakes[i] = f
		children[i] = f
	}
	composite := NewComposite("Parallel", "parallel test", Parallel, 2, children)
	ac := Context{Ctx: context.Background(), Progress: make(chan ProgressMsg, 10)}

	require.NoError(t, composite.Execute(ac))
	for _, f := range fakes {
		assert.Equal(t, 1, f.executed)
		assert.Equal(t, StateCompleted, f.state)
	}
}

func TestCountActionsCountsLeavesNotComposites(t *testing.T) {
	inner := NewComposite("Inner", "inner", Sequential, 0, []Action{
		&fakeAction{kind: "A"}, &fakeAction{kind: "B"},
	})
	outer := NewComposite("Outer", "outer", Sequential, 0, []Action{
		inner, &fakeAction{kind: "C"},
	})
	assert.Equal(t, 3, CountActions(outer))
}
