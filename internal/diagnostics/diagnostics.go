// Package diagnostics builds the anonymous telemetry payload
// described in spec.md §6. The beacon's transport is out of scope
// (spec.md §1); this package only builds the JSON body and knows how
// to POST it if a caller supplies an endpoint, following the HTTP
// client patterns internal/action/fetch.go already establishes.
package diagnostics

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/nixinstall/nix-installer-go/internal/plan"
	"github.com/nixinstall/nix-installer-go/internal/settings"
)

// ActionKind distinguishes an install run from an uninstall run in the
// payload, per spec.md §6.
type ActionKind string

const (
	ActionInstall   ActionKind = "Install"
	ActionUninstall ActionKind = "Uninstall"
)

// Status is the payload's outcome field.
type Status string

const (
	StatusSuccess   Status = "Success"
	StatusFailure   Status = "Failure"
	StatusPending   Status = "Pending"
	StatusCancelled Status = "Cancelled"
)

// Payload is the JSON body posted to --diagnostic-endpoint. It never
// includes setting values, only which settings were non-default (per
// spec.md §6: "Never includes setting values").
type Payload struct {
	Version            string     `json:"version"`
	Planner            string     `json:"planner"`
	ConfiguredSettings []string   `json:"configured_settings"`
	OSName             string     `json:"os_name"`
	OSVersion          string     `json:"os_version"`
	Triple             string     `json:"triple"`
	IsCI               bool       `json:"is_ci"`
	Action             ActionKind `json:"action"`
	Status             Status     `json:"status"`
	Attribution        string     `json:"attribution,omitempty"`
	FailureChain       []string   `json:"failure_chain,omitempty"`
}

// Build assembles a Payload from a Plan and its outcome. failureChain
// is the nested error source chain, oldest cause last, per spec.md §7.
func Build(p *plan.Plan, action ActionKind, status Status, failureChain []string) Payload {
	return Payload{
		Version:            p.PlanVersion,
		Planner:            p.Planner,
		ConfiguredSettings: nonDefaultSettingNames(p.Settings),
		OSName:             runtime.GOOS,
		OSVersion:          osVersion(),
		Triple:             runtime.GOARCH + "-" + runtime.GOOS,
		IsCI:               IsCI(),
		Action:             action,
		Status:             status,
		Attribution:        p.Settings.DiagnosticAttribution,
		FailureChain:       failureChain,
	}
}

// nonDefaultSettingNames names which Settings fields the invoking user
// actually set, without ever echoing their values.
func nonDefaultSettingNames(s settings.Settings) []string {
	var names []string
	if s.Force {
		names = append(names, "force")
	}
	if !s.ModifyProfile {
		names = append(names, "modify_profile")
	}
	if s.NixPackageURL != "" {
		names = append(names, "nix_package_url")
	}
	if len(s.ExtraConf) > 0 {
		names = append(names, "extra_conf")
	}
	if s.Proxy != "" {
		names = append(names, "proxy")
	}
	if s.SSLCertFile != "" {
		names = append(names, "ssl_cert_file")
	}
	if s.NoStartDaemon {
		names = append(names, "no_start_daemon")
	}
	if s.Determinate {
		names = append(names, "determinate")
	}
	return names
}

func osVersion() string {
	data, err := os.ReadFile("/etc/os-release")
	if err != nil {
		return ""
	}
	return string(data)
}

// IsCI detects a continuous-integration environment the way most
// CI-aware tools do: presence of the generic CI env var, or one of
// the vendor-specific ones the original implementation also checked.
func IsCI() bool {
	for _, key := range []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "BUILDKITE", "TF_BUILD", "JENKINS_URL"} {
		if os.Getenv(key) != "" {
			return true
		}
	}
	return false
}

// Send POSTs the payload to endpoint with a bounded timeout. A
// disabled/empty endpoint is a no-op, matching "" disables" from
// spec.md §6.
func Send(ctx context.Context, endpoint string, p Payload) error {
	if endpoint == "" {
		return nil
	}
	body, err := json.Marshal(p)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return nil
}
