package cure

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nixinstall/nix-installer-go/internal/action"
	"github.com/nixinstall/nix-installer-go/internal/plan"
	"github.com/nixinstall/nix-installer-go/internal/settings"
)

func TestDiagnoseRequiresNoReceiptAndSomeArtifact(t *testing.T) {
	assert.False(t, Diagnose(true, LegacyArtifacts{HasNixStore: true}), "an existing receipt means there's nothing to cure")
	assert.False(t, Diagnose(false, LegacyArtifacts{}), "no receipt and no artifacts means a plain install, not a cure")
	assert.True(t, Diagnose(false, LegacyArtifacts{HasNixStore: true}))
	assert.True(t, Diagnose(false, LegacyArtifacts{HasBuildGroup: true}))
}

func TestReadLegacyReceiptReturnsNilWhenMissing(t *testing.T) {
	p, err := ReadLegacyReceipt(filepath.Join(t.TempDir(), "nonexistent.json"))
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestReadLegacyReceiptReturnsNilOnUnparsableContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "receipt.json")
	require.NoError(t, os.WriteFile(path, []byte("not json at all"), 0644))

	p, err := ReadLegacyReceipt(path)
	require.NoError(t, err)
	assert.Nil(t, p, "an unparsable legacy receipt is treated as absent, not an error")
}

func TestReadLegacyReceiptParsesCurrentSchema(t *testing.T) {
	s, err := settings.Default()
	require.NoError(t, err)
	root := action.NewCreateDirectory("/nix", "", "", 0755, false)
	root.Disposition = action.DispositionCreate
	built := plan.New("LinuxPlanner", s, root, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	data, err := built.MarshalCanonicalJSON()
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "receipt.json")
	require.NoError(t, os.WriteFile(path, data, 0644))

	restored, err := ReadLegacyReceipt(path)
	require.NoError(t, err)
	require.NotNil(t, restored)
	assert.Equal(t, built.PlanID, restored.PlanID)
}

func TestBiasTowardAdoptRewritesAdoptableLeaves(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "already-there")
	require.NoError(t, os.Mkdir(existing, 0755))

	leaf := action.NewCreateDirectory(existing, "", "", 0755, false)
	leaf.Disposition = action.DispositionConflict
	composite := action.NewComposite("Outer", "outer", action.Sequential, 0, []action.Action{leaf})

	biasTowardAdopt(composite)
	assert.Equal(t, action.DispositionAdopt, leaf.Disposition, "a pre-existing directory in the desired shape must re-plan to Adopt")
}
