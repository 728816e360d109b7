// Package tracelog is the installer's structured logger. It wraps
// charmbracelet/log the way each Action's tracing_span_data (spec.md
// §4.1) is meant to surface: key-value pairs attached to a level,
// rendered by one of four selectable formats.
package tracelog

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	cblog "github.com/charmbracelet/log"
)

// Format selects the renderer behind --logger.
type Format string

const (
	FormatCompact Format = "compact"
	FormatFull    Format = "full"
	FormatPretty  Format = "pretty"
	FormatJSON    Format = "json"
)

// Logger embeds the Charm Logger and adds the Fatalf/Printf contract
// the rest of the codebase expects from a drop-in logger.
type Logger struct{ *cblog.Logger }

func (l *Logger) Printf(format string, v ...interface{}) { l.Infof(format, v...) }

var (
	logger     *Logger
	initLogger sync.Once
	current    Format = FormatCompact
	verbosity  int
)

// Configure must be called once, before GetLogger, to select the
// renderer and verbosity level requested by --logger/-v.
func Configure(format Format, verboseCount int) {
	current = format
	verbosity = verboseCount
}

// ConfigureDirectives applies --log-directives, a comma-separated
// list of target=level pairs (e.g. "action=debug,engine=warn"). This
// logger has no per-target handles to route those targets to, so a
// directive only has the coarse effect of raising the process-wide
// level to its finest requested value; still useful for "just give me
// debug everywhere" without a second flag.
func ConfigureDirectives(directives string) {
	if directives == "" {
		return
	}
	for _, pair := range strings.Split(directives, ",") {
		_, level, ok := strings.Cut(pair, "=")
		if !ok {
			level = pair
		}
		if strings.EqualFold(strings.TrimSpace(level), "debug") && verbosity < 2 {
			verbosity = 2
		}
	}
}

// GetLogger returns the process-wide singleton logger, built lazily
// from whatever Configure last set (or the compact default).
func GetLogger() *Logger {
	initLogger.Do(func() {
		logger = &Logger{build(current, verbosity, os.Stderr)}
	})
	return logger
}

func build(format Format, verboseCount int, out io.Writer) *cblog.Logger {
	base := cblog.New(out)

	level := cblog.InfoLevel
	switch {
	case verboseCount >= 2:
		level = cblog.DebugLevel
	case verboseCount == 1:
		level = cblog.InfoLevel
	}
	base.SetLevel(level)

	switch format {
	case FormatJSON:
		base.SetFormatter(cblog.JSONFormatter)
		base.SetReportTimestamp(true)
	case FormatFull:
		base.SetFormatter(cblog.TextFormatter)
		base.SetReportTimestamp(true)
		base.SetReportCaller(true)
		base.SetStyles(styled())
	case FormatPretty:
		// The pretty renderer hands presentation to
		// internal/progressview; the underlying logger stays quiet
		// except for warnings and errors so it doesn't fight the
		// bubbletea view for the terminal, unless debug output (-vv)
		// was requested.
		base.SetFormatter(cblog.TextFormatter)
		base.SetReportTimestamp(false)
		base.SetStyles(styled())
		if verboseCount < 2 && level < cblog.WarnLevel {
			base.SetLevel(cblog.WarnLevel)
		}
	case FormatCompact:
		fallthrough
	default:
		base.SetFormatter(cblog.TextFormatter)
		base.SetReportTimestamp(false)
		base.SetStyles(styled())
	}

	base.SetPrefix("nix-installer")
	return base
}

func styled() *cblog.Styles {
	styles := cblog.DefaultStyles()
	styles.Levels[cblog.FatalLevel] = lipgloss.NewStyle().SetString("FATAL").Foreground(lipgloss.Color("1")).Bold(true)
	styles.Levels[cblog.ErrorLevel] = lipgloss.NewStyle().SetString("ERROR").Foreground(lipgloss.Color("9"))
	styles.Levels[cblog.WarnLevel] = lipgloss.NewStyle().SetString(" WARN").Foreground(lipgloss.Color("3"))
	styles.Levels[cblog.InfoLevel] = lipgloss.NewStyle().SetString(" INFO").Foreground(lipgloss.Color("2"))
	styles.Levels[cblog.DebugLevel] = lipgloss.NewStyle().SetString("DEBUG").Foreground(lipgloss.Color("4"))
	return styles
}

func Debug(msg interface{}, keyvals ...interface{}) { GetLogger().Logger.Debug(msg, keyvals...) }
func Debugf(format string, v ...interface{})        { GetLogger().Logger.Debugf(format, v...) }
func Info(msg interface{}, keyvals ...interface{})  { GetLogger().Logger.Info(msg, keyvals...) }
func Infof(format string, v ...interface{})         { GetLogger().Logger.Infof(format, v...) }
func Warn(msg interface{}, keyvals ...interface{})  { GetLogger().Logger.Warn(msg, keyvals...) }
func Warnf(format string, v ...interface{})         { GetLogger().Logger.Warnf(format, v...) }
func Error(msg interface{}, keyvals ...interface{}) { GetLogger().Logger.Error(msg, keyvals...) }
func Errorf(format string, v ...interface{})        { GetLogger().Logger.Errorf(format, v...) }
func Fatal(msg interface{}, keyvals ...interface{}) { GetLogger().Logger.Fatal(msg, keyvals...) }
func Fatalf(format string, v ...interface{})        { GetLogger().Logger.Fatalf(format, v...) }

// With returns a derived logger carrying the given key-value pairs on
// every subsequent call — used by Actions to attach their
// tracing_span_data (kind, path, ...) to every log line they emit.
func With(keyvals ...interface{}) *cblog.Logger {
	return GetLogger().Logger.With(keyvals...)
}
