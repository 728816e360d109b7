package plan

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nixinstall/nix-installer-go/internal/action"
	"github.com/nixinstall/nix-installer-go/internal/settings"
)

func buildTestPlan(t *testing.T) *Plan {
	t.Helper()
	s, err := settings.Default()
	require.NoError(t, err)

	dir := action.NewCreateDirectory("/nix", "", "", 0755, false)
	dir.Disposition = action.DispositionCreate
	root := action.NewComposite("InstallLinux", "install Nix", action.Sequential, 0, []action.Action{dir})

	return New("LinuxPlanner", s, root, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
}

func TestMarshalCanonicalJSONIsDeterministic(t *testing.T) {
	p := buildTestPlan(t)

	first, err := p.MarshalCanonicalJSON()
	require.NoError(t, err)
	second, err := p.MarshalCanonicalJSON()
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, byte('\n'), first[len(first)-1])
}

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	p := buildTestPlan(t)

	data, err := p.MarshalCanonicalJSON()
	require.NoError(t, err)

	restored, err := UnmarshalCanonicalJSON(data, "test-receipt.json")
	require.NoError(t, err)

	assert.Equal(t, p.PlanID, restored.PlanID)
	assert.Equal(t, p.Planner, restored.Planner)
	assert.Equal(t, p.Settings, restored.Settings)

	composite, ok := restored.Root.(action.Composite)
	require.True(t, ok)
	require.Len(t, composite.Children(), 1)

	child, ok := composite.Children()[0].(*action.CreateDirectory)
	require.True(t, ok)
	assert.Equal(t, "/nix", child.Path)
	assert.Equal(t, action.DispositionCreate, child.Disposition)
}

func TestUnmarshalCanonicalJSONRejectsGarbage(t *testing.T) {
	_, err := UnmarshalCanonicalJSON([]byte("not json"), "bad.json")
	assert.Error(t, err)
}
