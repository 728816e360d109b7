package main

import (
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWhitelistedEnvKeepsOnlyAllowedPrefixes(t *testing.T) {
	t.Setenv("NIX_INSTALLER_FORCE", "true")
	t.Setenv("PATH", "/usr/bin")
	t.Setenv("HOME", "/home/tester")
	t.Setenv("SOME_OTHER_SECRET", "sensitive-value")

	env := whitelistedEnv()

	var sawForce, sawPath, sawHome bool
	for _, kv := range env {
		assert.NotContains(t, kv, "SOME_OTHER_SECRET")
		switch {
		case kv == "NIX_INSTALLER_FORCE=true":
			sawForce = true
		case kv == "PATH=/usr/bin":
			sawPath = true
		case kv == "HOME=/home/tester":
			sawHome = true
		}
	}
	assert.True(t, sawForce)
	assert.True(t, sawPath)
	assert.True(t, sawHome)
}

func TestSubprocessExitCodeExtractsExitError(t *testing.T) {
	cmd := exec.Command("sh", "-c", "exit 7")
	err := cmd.Run()
	assert.Equal(t, 7, subprocessExitCode(err))
}

func TestSubprocessExitCodeDefaultsToOneForNonExitError(t *testing.T) {
	_, err := exec.LookPath("definitely-not-a-real-binary-xyz")
	assert.Equal(t, 1, subprocessExitCode(err))
}
