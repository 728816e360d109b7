package receiptstore

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nixinstall/nix-installer-go/internal/action"
	"github.com/nixinstall/nix-installer-go/internal/plan"
	"github.com/nixinstall/nix-installer-go/internal/settings"
)

func buildTestPlan(t *testing.T) *plan.Plan {
	t.Helper()
	s, err := settings.Default()
	require.NoError(t, err)
	root := action.NewCreateDirectory("/nix", "", "", 0755, false)
	root.Disposition = action.DispositionCreate
	return plan.New("LinuxPlanner", s, root, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
}

func TestStoreWriteReadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "receipt.json")
	store := New(path)

	assert.False(t, store.Exists())

	p := buildTestPlan(t)
	require.NoError(t, store.Write(p))
	assert.True(t, store.Exists())

	restored, err := store.Read()
	require.NoError(t, err)
	assert.Equal(t, p.PlanID, restored.PlanID)
}

func TestStoreRemove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "receipt.json")
	store := New(path)
	require.NoError(t, store.Write(buildTestPlan(t)))

	require.NoError(t, store.Remove())
	assert.False(t, store.Exists())

	t.Run("remove is idempotent", func(t *testing.T) {
		assert.NoError(t, store.Remove())
	})
}

func TestLockTryAcquireAndRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "install.lock")

	first := NewLock(path)
	require.NoError(t, first.TryAcquire())

	second := NewLock(path)
	err := second.TryAcquire()
	assert.Error(t, err, "a second lock on the same path must fail while the first is held")

	require.NoError(t, first.Release())

	third := NewLock(path)
	assert.NoError(t, third.TryAcquire())
	require.NoError(t, third.Release())
}
