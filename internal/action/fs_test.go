package action

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testContext(t *testing.T) Context {
	t.Helper()
	return Context{Ctx: context.Background(), Progress: make(chan ProgressMsg, 100)}
}

func TestCreateDirectoryLifecycle(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "dir")

	t.Run("plan classifies a missing path as Create", func(t *testing.T) {
		a := NewCreateDirectory(dir, "", "", 0755, false)
		require.NoError(t, a.Plan())
		assert.Equal(t, DispositionCreate, a.Disposition)
	})

	t.Run("execute creates the directory, revert removes it", func(t *testing.T) {
		a := NewCreateDirectory(dir, "", "", 0755, false)
		require.NoError(t, a.Plan())
		ac := testContext(t)

		require.NoError(t, a.Execute(ac))
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
		assert.Equal(t, StateCompleted, a.State())

		require.NoError(t, a.Revert(ac))
		_, err = os.Stat(dir)
		assert.True(t, os.IsNotExist(err))
		assert.Equal(t, StateUncompleted, a.State())
	})

	t.Run("adopted directory is left alone on revert", func(t *testing.T) {
		require.NoError(t, os.MkdirAll(dir, 0755))
		a := NewCreateDirectory(dir, "", "", 0755, false)
		require.NoError(t, a.Plan())
		assert.Equal(t, DispositionAdopt, a.Disposition)

		ac := testContext(t)
		require.NoError(t, a.Execute(ac))
		require.NoError(t, a.Revert(ac))

		_, err := os.Stat(dir)
		assert.NoError(t, err, "adopted directory must survive revert")
	})

	t.Run("execute is idempotent once Completed", func(t *testing.T) {
		a := NewCreateDirectory(dir, "", "", 0755, false)
		a.state = StateCompleted
		ac := testContext(t)
		assert.NoError(t, a.Execute(ac))
	})
}

func TestCreateFileLifecycle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nix.conf")

	t.Run("plan/execute/revert round trip for a fresh file", func(t *testing.T) {
		a := NewCreateFile(path, "", "", 0644, []byte("hello\n"), false)
		require.NoError(t, a.Plan())
		assert.Equal(t, DispositionCreate, a.Disposition)

		ac := testContext(t)
		require.NoError(t, a.Execute(ac))
		contents, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "hello\n", string(contents))

		require.NoError(t, a.Revert(ac))
		_, err = os.Stat(path)
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("conflicting contents under force preserve prior contents for revert", func(t *testing.T) {
		require.NoError(t, os.WriteFile(path, []byte("original\n"), 0644))
		a := NewCreateFile(path, "", "", 0644, []byte("replacement\n"), true)
		require.NoError(t, a.Plan())
		assert.Equal(t, DispositionConflict, a.Disposition)
		assert.Equal(t, "original\n", string(a.PriorContents))

		ac := testContext(t)
		require.NoError(t, a.Execute(ac))
		contents, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "replacement\n", string(contents))

		require.NoError(t, a.Revert(ac))
		contents, err = os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "original\n", string(contents))
	})

	t.Run("plan without force rejects conflicting contents", func(t *testing.T) {
		require.NoError(t, os.WriteFile(path, []byte("original\n"), 0644))
		a := NewCreateFile(path, "", "", 0644, []byte("replacement\n"), false)
		err := a.Plan()
		assert.Error(t, err)
	})

	t.Run("identical contents are adopted, not rewritten", func(t *testing.T) {
		require.NoError(t, os.WriteFile(path, []byte("same\n"), 0644))
		a := NewCreateFile(path, "", "", 0644, []byte("same\n"), false)
		require.NoError(t, a.Plan())
		assert.Equal(t, DispositionAdopt, a.Disposition)
	})
}

func TestCreateFileStateRoundTrip(t *testing.T) {
	a := NewCreateFile("/nix/some/path", "root", "wheel", 0644, []byte("x"), true)
	a.Disposition = DispositionConflict
	a.PriorContents = []byte("y")
	a.state = StateCompleted

	raw, err := a.MarshalState()
	require.NoError(t, err)

	restored := &CreateFile{}
	require.NoError(t, restored.UnmarshalState(raw))
	assert.Equal(t, a.Path, restored.Path)
	assert.Equal(t, a.Disposition, restored.Disposition)
	assert.Equal(t, a.PriorContents, restored.PriorContents)
	assert.Equal(t, StateCompleted, restored.State())
}
