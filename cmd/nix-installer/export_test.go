package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExportBindingsIncludesNixProfilesAndPath(t *testing.T) {
	t.Setenv("HOME", "/home/tester")
	t.Setenv("PATH", "/usr/bin:/bin")

	bindings := exportBindings()

	byName := map[string]string{}
	for _, kv := range bindings {
		byName[kv[0]] = kv[1]
	}

	assert.Contains(t, byName["NIX_PROFILES"], "/nix/var/nix/profiles/default")
	assert.Contains(t, byName["NIX_PROFILES"], "/home/tester/.nix-profile")
	assert.Contains(t, byName["PATH"], "/nix/var/nix/profiles/default/bin")
	assert.Contains(t, byName["PATH"], "/usr/bin:/bin")
	assert.NotEmpty(t, byName["NIX_SSL_CERT_FILE"])
}
