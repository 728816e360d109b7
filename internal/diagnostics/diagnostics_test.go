package diagnostics

import (
	"context"
	"net/http"
	"net/http/httptest"
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
	return plan.New("LinuxPlanner", s, root, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
}

func TestBuildNeverIncludesSettingValues(t *testing.T) {
	p := buildTestPlan(t)
	p.Settings.Proxy = "http://super-secret-proxy.internal:3128"

	payload := Build(p, ActionInstall, StatusSuccess, nil)

	assert.Contains(t, payload.ConfiguredSettings, "proxy")
	for _, name := range payload.ConfiguredSettings {
		assert.NotContains(t, name, "super-secret-proxy", "the payload names the setting, never its value")
	}
}

func TestBuildOnlyNamesNonDefaultSettings(t *testing.T) {
	p := buildTestPlan(t)
	payload := Build(p, ActionInstall, StatusSuccess, nil)
	assert.Empty(t, payload.ConfiguredSettings, "default settings must not appear in the payload")
}

func TestBuildCarriesActionAndStatus(t *testing.T) {
	p := buildTestPlan(t)
	payload := Build(p, ActionUninstall, StatusCancelled, []string{"outer", "inner"})
	assert.Equal(t, ActionUninstall, payload.Action)
	assert.Equal(t, StatusCancelled, payload.Status)
	assert.Equal(t, []string{"outer", "inner"}, payload.FailureChain)
}

func TestIsCIDetectsKnownVars(t *testing.T) {
	t.Setenv("CI", "")
	t.Setenv("GITHUB_ACTIONS", "")
	t.Setenv("GITLAB_CI", "")
	t.Setenv("BUILDKITE", "")
	t.Setenv("TF_BUILD", "")
	t.Setenv("JENKINS_URL", "")
	assert.False(t, IsCI())

	t.Setenv("GITHUB_ACTIONS", "true")
	assert.True(t, IsCI())
}

func TestSendIsNoOpWhenEndpointEmpty(t *testing.T) {
	err := Send(context.Background(), "", Payload{})
	assert.NoError(t, err)
}

func TestSendPostsPayloadToEndpoint(t *testing.T) {
	var gotMethod, gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotContentType = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	err := Send(context.Background(), srv.URL, Payload{Action: ActionInstall, Status: StatusSuccess})
	require.NoError(t, err)
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "application/json", gotContentType)
}
