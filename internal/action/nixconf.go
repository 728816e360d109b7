package action

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/nixinstall/nix-installer-go/internal/errdefs"
)

// CanonicalNixConfLines returns the fixed defaults spec.md §6 requires
// in /etc/nix/nix.conf, before extraConf and sslCertFile are appended.
func CanonicalNixConfLines() []string {
	lines := []string{
		"experimental-features = nix-command flakes",
		`bash-prompt-prefix = (nix:$name)\040`,
		"always-allow-substitutes = true",
		"extra-nix-path = nixpkgs=flake:nixpkgs",
		"max-jobs = auto",
		"upgrade-nix-store-path-url = https://install.determinate.systems/nix-upgrade/stable/universal",
	}
	if runtime.GOOS == "linux" {
		lines = append(lines, "auto-optimise-store = true")
	}
	return lines
}

// PlaceNixConfiguration writes /etc/nix/nix.conf from canonical
// defaults plus --extra-conf, and preserves any pre-existing
// /etc/nix/nix.custom.conf: lines the parser does not recognize as
// valid `key = value` nix.conf syntax are commented out (prefixed
// `# `) rather than dropped, per the "supplemented" custom-conf
// preservation feature.
type PlaceNixConfiguration struct {
	ConfPath       string      `json:"conf_path"`
	CustomConfPath string      `json:"custom_conf_path"`
	ExtraConf      []string    `json:"extra_conf,omitempty"`
	SSLCertFile    string      `json:"ssl_cert_file,omitempty"`
	Disposition    Disposition `json:"disposition"`
	PriorContents  []byte      `json:"prior_contents,omitempty"`
	state          State
}

func NewPlaceNixConfiguration(confPath, customConfPath string, extraConf []string, sslCertFile string) *PlaceNixConfiguration {
	return &PlaceNixConfiguration{
		ConfPath:       confPath,
		CustomConfPath: customConfPath,
		ExtraConf:      extraConf,
		SSLCertFile:    sslCertFile,
		state:          StateUncompleted,
	}
}

func (a *PlaceNixConfiguration) Kind() string     { return "PlaceNixConfiguration" }
func (a *PlaceNixConfiguration) State() State     { return a.state }
func (a *PlaceNixConfiguration) Synopsis() string { return "write " + a.ConfPath }
func (a *PlaceNixConfiguration) SpanData() map[string]string {
	return map[string]string{"path": a.ConfPath}
}

func (a *PlaceNixConfiguration) render() []byte {
	var b strings.Builder
	for _, line := range CanonicalNixConfLines() {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	for _, line := range a.ExtraConf {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	if a.SSLCertFile != "" {
		fmt.Fprintf(&b, "ssl-cert-file = %s\n", a.SSLCertFile)
	}
	if preserved := preserveCustomConf(a.CustomConfPath); preserved != "" {
		b.WriteString("\n# Preserved from pre-existing nix.custom.conf\n")
		b.WriteString(preserved)
	}
	return []byte(b.String())
}

// preserveCustomConf reads an existing nix.custom.conf (if any) and
// comments out any line that is not recognizable `key = value` nix.conf
// syntax, retaining everything else verbatim.
func preserveCustomConf(path string) string {
	if path == "" {
		return ""
	}
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	var out strings.Builder
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") || isValidNixConfLine(trimmed) {
			out.WriteString(line)
		} else {
			out.WriteString("# ")
			out.WriteString(line)
		}
		out.WriteByte('\n')
	}
	return out.String()
}

func isValidNixConfLine(line string) bool {
	idx := strings.Index(line, "=")
	if idx <= 0 {
		return false
	}
	key := strings.TrimSpace(line[:idx])
	if key == "" {
		return false
	}
	for _, r := range key {
		if !(r == '-' || r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')) {
			return false
		}
	}
	return true
}

func (a *PlaceNixConfiguration) Plan() error {
	existing, err := os.ReadFile(a.ConfPath)
	if os.IsNotExist(err) {
		a.Disposition = DispositionCreate
		return nil
	}
	if err != nil {
		return errdefs.NewIOError(a.ConfPath, err)
	}
	a.Disposition = DispositionConflict
	a.PriorContents = existing
	return nil
}

func (a *PlaceNixConfiguration) Execute(ac Context) error {
	if a.state == StateCompleted {
		return nil
	}
	a.state = StateProgress
	ac.emit(ProgressMsg{Kind: a.Kind(), Synopsis: a.Synopsis()})
	if err := atomicWriteFile(a.ConfPath, a.render(), 0644); err != nil {
		return err
	}
	a.state = StateCompleted
	return nil
}

func (a *PlaceNixConfiguration) Revert(ac Context) error {
	if a.state == StateUncompleted {
		return nil
	}
	switch a.Disposition {
	case DispositionConflict:
		if err := atomicWriteFile(a.ConfPath, a.PriorContents, 0644); err != nil {
			return err
		}
	default:
		if err := os.Remove(a.ConfPath); err != nil && !os.IsNotExist(err) {
			return errdefs.NewIOError(a.ConfPath, err)
		}
	}
	a.state = StateUncompleted
	return nil
}

func (a *PlaceNixConfiguration) MarshalState() (json.RawMessage, error) {
	type wire PlaceNixConfiguration
	return json.Marshal(struct {
		*wire
		State State `json:"state"`
	}{(*wire)(a), a.state})
}

func (a *PlaceNixConfiguration) UnmarshalState(data json.RawMessage) error {
	type wire PlaceNixConfiguration
	var w struct {
		*wire
		State State `json:"state"`
	}
	w.wire = (*wire)(a)
	if err := json.Unmarshal(data, &w); err != nil {
		return errdefs.NewReceiptCorruptError("", err)
	}
	a.state = w.State
	return nil
}

// PlaceChannelConfiguration writes the legacy channels file consumed
// by `nix-channel`, one `url name` pair per line.
type PlaceChannelConfiguration struct {
	Path     string `json:"path"`
	Channels []struct {
		Name string `json:"name"`
		URL  string `json:"url"`
	} `json:"channels"`
	state State
}

func NewPlaceChannelConfiguration(path string, names, urls []string) *PlaceChannelConfiguration {
	a := &PlaceChannelConfiguration{Path: path, state: StateUncompleted}
	for i := range names {
		a.Channels = append(a.Channels, struct {
			Name string `json:"name"`
			URL  string `json:"url"`
		}{Name: names[i], URL: urls[i]})
	}
	return a
}

func (a *PlaceChannelConfiguration) Kind() string     { return "PlaceChannelConfiguration" }
func (a *PlaceChannelConfiguration) State() State     { return a.state }
func (a *PlaceChannelConfiguration) Synopsis() string { return "write " + a.Path }
func (a *PlaceChannelConfiguration) SpanData() map[string]string {
	return map[string]string{"path": a.Path, "count": fmt.Sprintf("%d", len(a.Channels))}
}

func (a *PlaceChannelConfiguration) Execute(ac Context) error {
	if a.state == StateCompleted {
		return nil
	}
	a.state = StateProgress
	ac.emit(ProgressMsg{Kind: a.Kind(), Synopsis: a.Synopsis()})
	var b strings.Builder
	for _, c := range a.Channels {
		fmt.Fprintf(&b, "%s %s\n", c.URL, c.Name)
	}
	if err := atomicWriteFile(a.Path, []byte(b.String()), 0644); err != nil {
		return err
	}
	a.state = StateCompleted
	return nil
}

func (a *PlaceChannelConfiguration) Revert(ac Context) error {
	if a.state == StateUncompleted {
		return nil
	}
	if err := os.Remove(a.Path); err != nil && !os.IsNotExist(err) {
		return errdefs.NewIOError(a.Path, err)
	}
	a.state = StateUncompleted
	return nil
}

func (a *PlaceChannelConfiguration) MarshalState() (json.RawMessage, error) {
	type wire PlaceChannelConfiguration
	return json.Marshal(struct {
		*wire
		State State `json:"state"`
	}{(*wire)(a), a.state})
}

func (a *PlaceChannelConfiguration) UnmarshalState(data json.RawMessage) error {
	type wire PlaceChannelConfiguration
	var w struct {
		*wire
		State State `json:"state"`
	}
	w.wire = (*wire)(a)
	if err := json.Unmarshal(data, &w); err != nil {
		return errdefs.NewReceiptCorruptError("", err)
	}
	a.state = w.State
	return nil
}
