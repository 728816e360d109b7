// Package progressview renders the `--logger pretty` live install view,
// grounded on the teacher's internal/tui bubbletea Model (its spinner +
// manually-rendered progress bar in views_install.go), switched here
// from bubbles' hand-rolled bar to github.com/charmbracelet/bubbles'
// progress.Model and spinner.Model directly, and fed from
// action.ProgressMsg instead of the teacher's InstallProgressMsg.
package progressview

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nixinstall/nix-installer-go/internal/action"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	subtleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
)

const maxLogLines = 8

// progressTick is emitted once per received action.ProgressMsg so
// bubbletea's Update loop re-renders.
type progressTick struct {
	msg  action.ProgressMsg
	done bool
	err  error
}

// Model is the bubbletea Model driving the pretty logger.
type Model struct {
	spinner  spinner.Model
	bar      progress.Model
	source   <-chan action.ProgressMsg
	done     chan error
	current  string
	log      []string
	fraction float64
	total    int
	seen     int
	err      error
	finished bool
}

// New builds a Model that reads from progressChan until it closes or
// a FinishMsg arrives, estimating fraction complete from totalActions
// (a rough count the caller supplies from the Plan tree size).
func New(progressChan <-chan action.ProgressMsg, totalActions int) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))

	bar := progress.New(progress.WithDefaultGradient())

	return Model{
		spinner: s,
		bar:     bar,
		source:  progressChan,
		total:   totalActions,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForProgress(m.source))
}

func waitForProgress(ch <-chan action.ProgressMsg) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return progressTick{done: true}
		}
		return progressTick{msg: msg}
	}
}

// FinishMsg is sent by the caller once Execute/Revert returns, to
// stop the view and report the terminal error (if any).
type FinishMsg struct{ Err error }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case progressTick:
		if msg.done {
			return m, nil
		}
		m.seen++
		m.current = msg.msg.Synopsis
		if msg.msg.Detail != "" {
			m.log = append(m.log, msg.msg.Detail)
			if len(m.log) > maxLogLines {
				m.log = m.log[len(m.log)-maxLogLines:]
			}
		}
		if msg.msg.Err != nil {
			m.log = append(m.log, "error: "+msg.msg.Err.Error())
		}
		if m.total > 0 {
			m.fraction = float64(m.seen) / float64(m.total)
		}
		return m, waitForProgress(m.source)

	case FinishMsg:
		m.finished = true
		m.err = msg.Err
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case progress.FrameMsg:
		barModel, cmd := m.bar.Update(msg)
		m.bar = barModel.(progress.Model)
		return m, cmd

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Interrupt
		}
	}
	return m, nil
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("nix-installer"))
	b.WriteString("\n\n")

	if m.finished {
		if m.err != nil {
			b.WriteString(errorStyle.Render("✗ " + m.err.Error()))
		} else {
			b.WriteString(successStyle.Render("✓ done"))
		}
		b.WriteString("\n")
		return b.String()
	}

	fmt.Fprintf(&b, "%s %s\n", m.spinner.View(), m.current)
	if m.total > 0 {
		b.WriteString(m.bar.ViewAs(m.fraction))
		b.WriteString("\n")
	}
	if len(m.log) > 0 {
		b.WriteString("\n")
		b.WriteString(subtleStyle.Render("Live Output:"))
		b.WriteString("\n")
		for _, line := range m.log {
			b.WriteString(subtleStyle.Render("  " + line))
			b.WriteString("\n")
		}
	}
	return b.String()
}
