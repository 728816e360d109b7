package action

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsUnknownKind(t *testing.T) {
	_, err := New("NotARealAction")
	assert.Error(t, err)
}

func TestNewConstructsEveryRegisteredKind(t *testing.T) {
	kinds := []string{
		"CreateDirectory", "CreateFile", "RemoveDirectory",
		"CreateUser", "CreateGroup", "DeleteUser", "DeleteGroup",
		"FetchAndUnpackNix", "MoveUnpackedNix",
		"PlaceNixConfiguration", "PlaceChannelConfiguration",
		"ConfigureShellProfile", "ConfigureInitService",
		"ConfigureUpstreamInitService", "ConfigureSelinux",
		"CreateApfsVolume", "KickstartLaunchctlService",
		"CreateBindMount", "Composite",
	}
	for _, kind := range kinds {
		t.Run(kind, func(t *testing.T) {
			a, err := New(kind)
			require.NoError(t, err)
			assert.NotNil(t, a)
		})
	}
}

func TestCompositeMarshalUnmarshalRoundTrip(t *testing.T) {
	leaf := NewCreateDirectory("/nix", "", "", 0755, false)
	leaf.Disposition = DispositionCreate
	leaf.state = StateCompleted

	composite := NewComposite("Provision", "provision nix", Sequential, 0, []Action{leaf})
	raw, err := composite.MarshalState()
	require.NoError(t, err)

	var wrapped compositeState
	require.NoError(t, json.Unmarshal(raw, &wrapped))
	children, err := UnmarshalChildren(wrapped.Children)
	require.NoError(t, err)
	require.Len(t, children, 1)

	restored, ok := children[0].(*CreateDirectory)
	require.True(t, ok)
	assert.Equal(t, leaf.Path, restored.Path)
	assert.Equal(t, StateCompleted, restored.State())
}
