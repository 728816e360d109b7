package action

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/nixinstall/nix-installer-go/internal/errdefs"
)

const (
	nixFenceStart = "# Nix"
	nixFenceEnd   = "# End Nix"
)

// ConfigureShellProfile appends a fenced block to a set of shell init
// files, and on revert removes exactly that block regardless of what
// else lives in the file — structural parsing by the fence markers,
// not line matching, per spec.md §9.
type ConfigureShellProfile struct {
	Paths       []string `json:"paths"`
	Block       string   `json:"block"`
	state       State
	createdFile map[string]bool
}

func NewConfigureShellProfile(paths []string, block string) *ConfigureShellProfile {
	return &ConfigureShellProfile{Paths: paths, Block: block, state: StateUncompleted, createdFile: map[string]bool{}}
}

func (a *ConfigureShellProfile) Kind() string     { return "ConfigureShellProfile" }
func (a *ConfigureShellProfile) State() State     { return a.state }
func (a *ConfigureShellProfile) Synopsis() string { return fmt.Sprintf("configure %d shell profiles", len(a.Paths)) }
func (a *ConfigureShellProfile) SpanData() map[string]string {
	return map[string]string{"count": fmt.Sprintf("%d", len(a.Paths))}
}

func (a *ConfigureShellProfile) Execute(ac Context) error {
	if a.state == StateCompleted {
		return nil
	}
	a.state = StateProgress
	ac.emit(ProgressMsg{Kind: a.Kind(), Synopsis: a.Synopsis()})
	for _, path := range a.Paths {
		existing, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			a.createdFile[path] = true
			existing = nil
		} else if err != nil {
			return errdefs.NewIOError(path, err)
		}
		if hasFence(string(existing)) {
			continue
		}
		fenced := string(existing)
		if len(fenced) > 0 && !strings.HasSuffix(fenced, "\n") {
			fenced += "\n"
		}
		fenced += nixFenceStart + "\n" + a.Block + "\n" + nixFenceEnd + "\n"
		if err := atomicWriteFile(path, []byte(fenced), 0644); err != nil {
			return err
		}
	}
	a.state = StateCompleted
	return nil
}

func hasFence(contents string) bool {
	return strings.Contains(contents, nixFenceStart) && strings.Contains(contents, nixFenceEnd)
}

// Revert removes exactly the fenced block from each file, deleting
// the file entirely if ConfigureShellProfile created it from nothing.
func (a *ConfigureShellProfile) Revert(ac Context) error {
	if a.state == StateUncompleted {
		return nil
	}
	for _, path := range a.Paths {
		contents, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return errdefs.NewIOError(path, err)
		}
		stripped := removeFence(string(contents))
		if a.createdFile[path] && strings.TrimSpace(stripped) == "" {
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				return errdefs.NewIOError(path, err)
			}
			continue
		}
		if err := atomicWriteFile(path, []byte(stripped), 0644); err != nil {
			return err
		}
	}
	a.state = StateUncompleted
	return nil
}

func removeFence(contents string) string {
	var out strings.Builder
	inFence := false
	scanner := bufio.NewScanner(strings.NewReader(contents))
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.TrimSpace(line) == nixFenceStart:
			inFence = true
			continue
		case strings.TrimSpace(line) == nixFenceEnd:
			inFence = false
			continue
		case inFence:
			continue
		default:
			out.WriteString(line)
			out.WriteByte('\n')
		}
	}
	return out.String()
}

func (a *ConfigureShellProfile) MarshalState() (json.RawMessage, error) {
	type wire struct {
		Paths       []string        `json:"paths"`
		Block       string          `json:"block"`
		State       State           `json:"state"`
		CreatedFile map[string]bool `json:"created_file"`
	}
	return json.Marshal(wire{a.Paths, a.Block, a.state, a.createdFile})
}

func (a *ConfigureShellProfile) UnmarshalState(data json.RawMessage) error {
	var w struct {
		Paths       []string        `json:"paths"`
		Block       string          `json:"block"`
		State       State           `json:"state"`
		CreatedFile map[string]bool `json:"created_file"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return errdefs.NewReceiptCorruptError("", err)
	}
	a.Paths, a.Block, a.state = w.Paths, w.Block, w.State
	a.createdFile = w.CreatedFile
	if a.createdFile == nil {
		a.createdFile = map[string]bool{}
	}
	return nil
}
