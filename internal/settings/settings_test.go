package settings

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseChannelValue(t *testing.T) {
	t.Run("valid name=url", func(t *testing.T) {
		cv, err := ParseChannelValue("nixpkgs=https://nixos.org/channels/nixpkgs-unstable")
		require.NoError(t, err)
		assert.Equal(t, "nixpkgs", cv.Name)
		assert.Equal(t, "https://nixos.org/channels/nixpkgs-unstable", cv.URL)
	})

	for _, bad := range []string{"", "no-equals-sign", "=missing-name", "missing-url="} {
		t.Run("rejects "+bad, func(t *testing.T) {
			_, err := ParseChannelValue(bad)
			assert.Error(t, err)
		})
	}
}

func TestDefaultMatchesCurrentPlatform(t *testing.T) {
	s, err := Default()
	require.NoError(t, err)
	assert.NotEmpty(t, s.NixBuildGroupName)
	assert.NotEmpty(t, s.NixBuildUserPrefix)
	assert.Greater(t, s.NixBuildUserCount, 0)
	assert.True(t, s.ModifyProfile)
	require.NoError(t, s.Validate())
}

func TestValidateRejectsBadSettings(t *testing.T) {
	s, err := Default()
	require.NoError(t, err)

	t.Run("zero build users", func(t *testing.T) {
		bad := s
		bad.NixBuildUserCount = 0
		assert.Error(t, bad.Validate())
	})

	t.Run("empty group name", func(t *testing.T) {
		bad := s
		bad.NixBuildGroupName = ""
		assert.Error(t, bad.Validate())
	})

	t.Run("unknown init flavor", func(t *testing.T) {
		bad := s
		bad.Init = InitChoice("upstart")
		assert.Error(t, bad.Validate())
	})
}

func TestApplyEnvOverlaysKnownVars(t *testing.T) {
	s, err := Default()
	require.NoError(t, err)

	t.Setenv("NIX_INSTALLER_FORCE", "true")
	t.Setenv("NIX_INSTALLER_NIX_BUILD_USER_COUNT", "7")
	defer os.Unsetenv("NIX_INSTALLER_FORCE")
	defer os.Unsetenv("NIX_INSTALLER_NIX_BUILD_USER_COUNT")

	out := ApplyEnv(s)
	assert.True(t, out.Force)
	assert.Equal(t, 7, out.NixBuildUserCount)
}

func TestLoadOverlayFileIsANoOpWhenMissing(t *testing.T) {
	s, err := Default()
	require.NoError(t, err)

	out, err := LoadOverlayFile(s, "/nonexistent/path/config.yaml")
	require.NoError(t, err)
	assert.Equal(t, s, out)
}

func TestLoadOverlayFileAppliesYAML(t *testing.T) {
	s, err := Default()
	require.NoError(t, err)

	dir := t.TempDir()
	path := dir + "/config.yaml"
	require.NoError(t, os.WriteFile(path, []byte("nix_build_user_count: 12\nforce: true\n"), 0644))

	out, err := LoadOverlayFile(s, path)
	require.NoError(t, err)
	assert.Equal(t, 12, out.NixBuildUserCount)
	assert.True(t, out.Force)
}
