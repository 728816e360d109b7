package selftest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nixinstall/nix-installer-go/internal/settings"
)

func TestCheckDaemonReachableSkipsWhenNoInitConfigured(t *testing.T) {
	result := checkDaemonReachable(context.Background(), settings.InitNone)
	assert.True(t, result.Passed)
	assert.Contains(t, result.Detail, "skipping")
}

func TestRunReturnsFourChecksInOrder(t *testing.T) {
	results := Run(context.Background(), settings.InitNone)
	assert.Len(t, results, 4)
	assert.Equal(t, "daemon socket reachable", results[0].Name)
	assert.Equal(t, "nix store ping (invoking user)", results[1].Name)
	assert.Equal(t, "nix store ping (root)", results[2].Name)
	assert.Equal(t, "trivial derivation build", results[3].Name)
}
