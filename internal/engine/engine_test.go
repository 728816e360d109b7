package engine

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nixinstall/nix-installer-go/internal/action"
	"github.com/nixinstall/nix-installer-go/internal/plan"
	"github.com/nixinstall/nix-installer-go/internal/receiptstore"
	"github.com/nixinstall/nix-installer-go/internal/settings"
)

// fakeAction is a minimal Action double, local to this package since
// internal/action's fakeAction isn't exported. Its kind is never
// registered in internal/action's registry, so tests read the receipt
// back as raw bytes rather than round-tripping it through
// plan.UnmarshalCanonicalJSON.
type fakeAction struct {
	kind      string
	state     action.State
	execErr   error
	revertErr error
	executed  int
	reverted  int
}

func (f *fakeAction) Kind() string                          { return f.kind }
func (f *fakeAction) State() action.State                   { return f.state }
func (f *fakeAction) Synopsis() string                      { return "fake " + f.kind }
func (f *fakeAction) SpanData() map[string]string            { return nil }
func (f *fakeAction) MarshalState() (json.RawMessage, error) { return json.Marshal(f.state) }
func (f *fakeAction) UnmarshalState(data json.RawMessage) error {
	return json.Unmarshal(data, &f.state)
}

func (f *fakeAction) Execute(ac action.Context) error {
	f.executed++
	// Like the real Actions, a started execute leaves the fake in
	// Progress until it succeeds.
	f.state = action.StateProgress
	if f.execErr != nil {
		return f.execErr
	}
	f.state = action.StateCompleted
	return nil
}

func (f *fakeAction) Revert(ac action.Context) error {
	f.reverted++
	if f.revertErr != nil {
		return f.revertErr
	}
	f.state = action.StateUncompleted
	return nil
}

func buildPlan(t *testing.T, root action.Action) *plan.Plan {
	t.Helper()
	s, err := settings.Default()
	require.NoError(t, err)
	return plan.New("LinuxPlanner", s, root, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
}

func newTestEngine(t *testing.T) (*Engine, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "receipt.json")
	store := receiptstore.New(path)
	return New(store), path
}

func drainProgress(e *Engine) {
	go func() {
		for range e.Progress {
		}
	}()
}

func readReceipt(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestExecutePersistsReceiptAndSucceeds(t *testing.T) {
	leaf := &fakeAction{kind: "A", state: action.StateUncompleted}
	root := action.NewComposite("Root", "root", action.Sequential, 0, []action.Action{leaf})
	p := buildPlan(t, root)
	eng, path := newTestEngine(t)
	drainProgress(eng)

	err := eng.Execute(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, 1, leaf.executed)
	assert.Contains(t, readReceipt(t, path), `"state":"Completed"`)
}

func TestExecuteFlushesAfterEveryChildTransition(t *testing.T) {
	first := &fakeAction{kind: "A", state: action.StateUncompleted}
	second := &fakeAction{kind: "B", state: action.StateUncompleted, execErr: errors.New("boom"), revertErr: errors.New("stuck")}
	root := action.NewComposite("Root", "root", action.Sequential, 0, []action.Action{first, second})
	p := buildPlan(t, root)
	eng, path := newTestEngine(t)
	drainProgress(eng)

	err := eng.Execute(context.Background(), p)
	assert.Error(t, err)

	// first completed and was reverted (best-effort, since the whole
	// install failed); second failed in Progress and its revert fails
	// too, so it stays there. The persisted receipt must reflect exactly that, not
	// the all-Uncompleted snapshot a start/end-only write would leave
	// behind after a crash mid-run.
	receipt := readReceipt(t, path)
	assert.Contains(t, receipt, `"state":"Uncompleted"`, "the reverted first child")
	assert.Contains(t, receipt, `"state":"Progress"`, "the second child never reached Completed")
}

func TestExecuteRevertsOnFailure(t *testing.T) {
	leaf := &fakeAction{kind: "A", state: action.StateUncompleted, execErr: errors.New("boom")}
	root := action.NewComposite("Root", "root", action.Sequential, 0, []action.Action{leaf})
	p := buildPlan(t, root)
	eng, _ := newTestEngine(t)
	drainProgress(eng)

	err := eng.Execute(context.Background(), p)
	assert.Error(t, err)
	assert.Equal(t, 1, leaf.executed)
	assert.Equal(t, 1, leaf.reverted, "a failed execute must trigger a revert attempt")
}

func TestExecuteRevertFailureIsReturned(t *testing.T) {
	leaf := &fakeAction{
		kind:      "A",
		state:     action.StateUncompleted,
		execErr:   errors.New("boom"),
		revertErr: errors.New("cannot undo"),
	}
	root := action.NewComposite("Root", "root", action.Sequential, 0, []action.Action{leaf})
	p := buildPlan(t, root)
	eng, _ := newTestEngine(t)
	drainProgress(eng)

	err := eng.Execute(context.Background(), p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot undo")
}

func TestRevertRemovesReceiptOnCleanUninstall(t *testing.T) {
	leaf := &fakeAction{kind: "A", state: action.StateCompleted}
	root := action.NewComposite("Root", "root", action.Sequential, 0, []action.Action{leaf})
	p := buildPlan(t, root)
	eng, _ := newTestEngine(t)
	require.NoError(t, eng.Store.Write(p))
	drainProgress(eng)

	err := eng.Revert(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, 1, leaf.reverted)
	assert.False(t, eng.Store.Exists())
}

func TestRevertKeepsReceiptOnFailure(t *testing.T) {
	leaf := &fakeAction{kind: "A", state: action.StateCompleted, revertErr: errors.New("stuck")}
	root := action.NewComposite("Root", "root", action.Sequential, 0, []action.Action{leaf})
	p := buildPlan(t, root)
	eng, _ := newTestEngine(t)
	require.NoError(t, eng.Store.Write(p))
	drainProgress(eng)

	err := eng.Revert(context.Background(), p)
	assert.Error(t, err)
	assert.True(t, eng.Store.Exists(), "receipt must survive a failed revert for retry")
}
