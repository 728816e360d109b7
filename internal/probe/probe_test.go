package probe

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPathExists(t *testing.T) {
	dir := t.TempDir()
	assert.True(t, PathExists(dir))
	assert.False(t, PathExists(filepath.Join(dir, "nope")))
}

func TestReadOSRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "os-release")
	content := "ID=ubuntu\nID_LIKE=\"debian\"\nVERSION_ID=\"24.04\"\nPRETTY_NAME=\"Ubuntu 24.04\"\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	rel, err := readOSRelease(path)
	require.NoError(t, err)
	assert.Equal(t, "ubuntu", rel.ID)
	assert.Equal(t, []string{"debian"}, rel.IDLike)
	assert.Equal(t, "24.04", rel.VersionID)
	assert.Equal(t, "Ubuntu 24.04", rel.PrettyName)
}

func TestClassifyDistroFamilies(t *testing.T) {
	for _, tc := range []struct {
		id     string
		idLike []string
		want   DistroFamily
	}{
		{id: "arch", want: DistroArch},
		{id: "manjaro", want: DistroArch},
		{id: "fedora", want: DistroFedora},
		{id: "rhel", want: DistroFedora},
		{id: "ubuntu", want: DistroDebian},
		{id: "pop", idLike: []string{"ubuntu", "debian"}, want: DistroDebian},
		{id: "opensuse-tumbleweed", want: DistroSUSE},
		{id: "nixos", want: DistroNixOS},
		{id: "solaris", want: DistroUnknown},
	} {
		rel := &OSRelease{ID: tc.id, IDLike: tc.idLike}
		assert.Equal(t, tc.want, classify(rel), "id=%s", tc.id)
	}
}

func TestDetectDistroFamilyReadsOverriddenPath(t *testing.T) {
	orig := osReleaseOpen
	defer func() { osReleaseOpen = orig }()

	path := filepath.Join(t.TempDir(), "os-release")
	require.NoError(t, os.WriteFile(path, []byte("ID=fedora\n"), 0644))
	osReleaseOpen = func(string) (*os.File, error) { return os.Open(path) }

	assert.Equal(t, DistroFedora, DetectDistroFamily())
}

func TestDetectDistroFamilyDefaultsToUnknownOnReadError(t *testing.T) {
	orig := osReleaseOpen
	defer func() { osReleaseOpen = orig }()
	osReleaseOpen = func(string) (*os.File, error) { return os.Open(filepath.Join(t.TempDir(), "missing")) }

	assert.Equal(t, DistroUnknown, DetectDistroFamily())
}

func TestLookupUserInFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "passwd")
	require.NoError(t, os.WriteFile(path, []byte("root:x:0:0:root:/root:/bin/bash\nnixbld1:x:30001:30000::/var/empty:/usr/bin/nologin\n"), 0644))

	info, ok, err := lookupUserInFile(path, "nixbld1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 30001, info.UID)
	assert.Equal(t, 30000, info.GID)

	_, ok, err = lookupUserInFile(path, "nobody")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLookupGroupInFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "group")
	require.NoError(t, os.WriteFile(path, []byte("nixbld:x:30000:nixbld1,nixbld2\n"), 0644))

	info, ok, err := lookupGroupInFile(path, "nixbld")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 30000, info.GID)

	_, ok, err = lookupGroupInFile(path, "wheel")
	require.NoError(t, err)
	assert.False(t, ok)
}
