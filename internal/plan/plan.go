// Package plan implements C6 from spec.md §2: the canonical on-disk
// JSON encoding of a Plan (root Action + Settings + version).
// Grounded on the teacher's config-deployer backup-then-write
// discipline (internal/config/deployer.go) for atomic persistence,
// generalized from "one config file" to "the whole receipt".
package plan

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nixinstall/nix-installer-go/internal/action"
	"github.com/nixinstall/nix-installer-go/internal/errdefs"
	"github.com/nixinstall/nix-installer-go/internal/settings"
	"github.com/google/uuid"
)

// Version is the current receipt schema version. A receipt whose
// version doesn't match blocks uninstall until a migration shim
// exists for it, per spec.md §9.
const Version = "1.0.0"

// Plan is the root of an installation: root Action + Settings +
// PlanVersion + diagnostic metadata (spec.md §3).
type Plan struct {
	PlanVersion    string            `json:"version"`
	PlanID         string            `json:"plan_id"`
	Planner        string            `json:"planner"`
	Settings       settings.Settings `json:"settings"`
	Root           action.Action     `json:"-"`
	DiagnosticData map[string]string `json:"diagnostic_data,omitempty"`
	CreatedAt      string            `json:"created_at"`
}

// New builds a fresh Plan with a random correlation ID, the way the
// teacher stamps diagnostic IDs on install runs.
func New(planner string, s settings.Settings, root action.Action, createdAt time.Time) *Plan {
	return &Plan{
		PlanVersion: Version,
		PlanID:      uuid.NewString(),
		Planner:     planner,
		Settings:    s,
		Root:        root,
		CreatedAt:   createdAt.UTC().Format(time.RFC3339),
	}
}

// wireAction is the JSON-visible action shape: a discriminator plus
// the concrete kind's own state.
type wireAction struct {
	Kind  string          `json:"kind"`
	State json.RawMessage `json:"state"`
}

type wirePlan struct {
	PlanVersion    string            `json:"version"`
	PlanID         string            `json:"plan_id"`
	Planner        string            `json:"planner"`
	Settings       settings.Settings `json:"settings"`
	Root           wireAction        `json:"root"`
	DiagnosticData map[string]string `json:"diagnostic_data,omitempty"`
	CreatedAt      string            `json:"created_at"`
}

// MarshalCanonicalJSON encodes the Plan as compact JSON with the keys
// of every object sorted (struct fields included), UTF-8, and a
// trailing newline, per spec.md §6.
func (p *Plan) MarshalCanonicalJSON() ([]byte, error) {
	rootState, err := p.Root.MarshalState()
	if err != nil {
		return nil, err
	}
	w := wirePlan{
		PlanVersion:    p.PlanVersion,
		PlanID:         p.PlanID,
		Planner:        p.Planner,
		Settings:       p.Settings,
		Root:           wireAction{Kind: p.Root.Kind(), State: rootState},
		DiagnosticData: p.DiagnosticData,
		CreatedAt:      p.CreatedAt,
	}
	// Re-encoding through a generic value emits struct fields in sorted
	// key order like map keys; UseNumber keeps numbers as written.
	raw, err := json.Marshal(w)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic interface{}
	if err := dec.Decode(&generic); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(generic); err != nil {
		return nil, err
	}
	out := buf.Bytes()
	if len(out) == 0 || out[len(out)-1] != '\n' {
		out = append(out, '\n')
	}
	return out, nil
}

// UnmarshalCanonicalJSON is the inverse of MarshalCanonicalJSON. A
// receipt whose version differs from Version is refused with
// errdefs.NewReceiptCorruptError; no migration shim exists.
func UnmarshalCanonicalJSON(data []byte, path string) (*Plan, error) {
	var w wirePlan
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, errdefs.NewReceiptCorruptError(path, err)
	}
	if w.PlanVersion != Version {
		return nil, errdefs.NewReceiptCorruptError(path, fmt.Errorf("receipt version %q, this installer reads %q", w.PlanVersion, Version))
	}

	root, err := action.New(w.Root.Kind)
	if err != nil {
		// Composites carry caller-chosen kind names ("InstallLinux",
		// ...): a root whose state records a children array is one.
		var cs struct {
			Children []json.RawMessage `json:"children"`
		}
		if json.Unmarshal(w.Root.State, &cs) != nil || cs.Children == nil {
			return nil, errdefs.NewReceiptCorruptError(path, err)
		}
		root = &action.Base{}
	}
	if composite, ok := root.(interface {
		UnmarshalState(json.RawMessage) error
		SetChildren([]action.Action)
	}); ok {
		var inner struct {
			Children []json.RawMessage `json:"children"`
		}
		if err := json.Unmarshal(w.Root.State, &inner); err != nil {
			return nil, errdefs.NewReceiptCorruptError(path, err)
		}
		children, err := action.UnmarshalChildren(inner.Children)
		if err != nil {
			return nil, errdefs.NewReceiptCorruptError(path, err)
		}
		if err := composite.UnmarshalState(w.Root.State); err != nil {
			return nil, err
		}
		composite.SetChildren(children)
	} else if err := root.UnmarshalState(w.Root.State); err != nil {
		return nil, err
	}

	return &Plan{
		PlanVersion:    w.PlanVersion,
		PlanID:         w.PlanID,
		Planner:        w.Planner,
		Settings:       w.Settings,
		Root:           root,
		DiagnosticData: w.DiagnosticData,
		CreatedAt:      w.CreatedAt,
	}, nil
}
