package tracelog

import (
	"bytes"
	"testing"

	cblog "github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
)

func TestBuildSelectsLevelFromVerbosity(t *testing.T) {
	assert.Equal(t, cblog.InfoLevel, build(FormatCompact, 0, &bytes.Buffer{}).GetLevel())
	assert.Equal(t, cblog.InfoLevel, build(FormatCompact, 1, &bytes.Buffer{}).GetLevel())
	assert.Equal(t, cblog.DebugLevel, build(FormatCompact, 2, &bytes.Buffer{}).GetLevel())
}

func TestBuildJSONFormatterEmitsJSONLines(t *testing.T) {
	var buf bytes.Buffer
	l := build(FormatJSON, 0, &buf)
	l.Info("hello")
	assert.Contains(t, buf.String(), `"msg":"hello"`)
}

func TestBuildPrettyRaisesFloorToWarn(t *testing.T) {
	l := build(FormatPretty, 0, &bytes.Buffer{})
	assert.Equal(t, cblog.WarnLevel, l.GetLevel(), "pretty mode must not fight the bubbletea view for the terminal")
}

func TestBuildPrettyKeepsDebugWhenRequested(t *testing.T) {
	l := build(FormatPretty, 2, &bytes.Buffer{})
	assert.Equal(t, cblog.DebugLevel, l.GetLevel())
}

func TestConfigureDirectivesRaisesVerbosityOnDebugTarget(t *testing.T) {
	orig := verbosity
	defer func() { verbosity = orig }()

	verbosity = 0
	ConfigureDirectives("action=debug,engine=warn")
	assert.Equal(t, 2, verbosity)
}

func TestConfigureDirectivesIgnoresNonDebugTargets(t *testing.T) {
	orig := verbosity
	defer func() { verbosity = orig }()

	verbosity = 0
	ConfigureDirectives("engine=warn,plan=info")
	assert.Equal(t, 0, verbosity)
}

func TestConfigureDirectivesIsNoOpWhenEmpty(t *testing.T) {
	orig := verbosity
	defer func() { verbosity = orig }()

	verbosity = 1
	ConfigureDirectives("")
	assert.Equal(t, 1, verbosity)
}

func TestLoggerPrintfDelegatesToInfof(t *testing.T) {
	var buf bytes.Buffer
	l := &Logger{build(FormatCompact, 0, &buf)}
	l.Printf("hello %s", "world")
	assert.Contains(t, buf.String(), "hello world")
}
