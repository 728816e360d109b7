package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nixinstall/nix-installer-go/internal/probe"
)

func TestSelectRejectsNixOS(t *testing.T) {
	_, err := Select(probe.Probes{OS: "linux", DistroFamily: probe.DistroNixOS})
	assert.Error(t, err)
}

func TestSelectRejectsUnknownOS(t *testing.T) {
	_, err := Select(probe.Probes{OS: "plan9"})
	assert.Error(t, err)
}

func TestSelectReturnsLinuxPlannerByDefault(t *testing.T) {
	p, err := Select(probe.Probes{OS: "linux", DistroFamily: probe.DistroDebian})
	require.NoError(t, err)
	assert.Equal(t, "linux", p.Name())
}

func TestSelectReturnsDarwinPlanner(t *testing.T) {
	p, err := Select(probe.Probes{OS: "darwin"})
	require.NoError(t, err)
	assert.Equal(t, "macos", p.Name())
}
