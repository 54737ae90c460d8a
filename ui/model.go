package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/ZacxDev/lightrunner/fs"
	"github.com/ZacxDev/lightrunner/launcher"
	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/lipgloss"

	tea "github.com/charmbracelet/bubbletea"
)

const (
	refreshInterval = 100 * time.Millisecond
	maxTailLines    = 500
	headerHeight    = 4
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
)

type tickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Model follows one running child: its status and the tail of its log file.
// Closing the view never signals the child.
type Model struct {
	plan       launcher.Plan
	pid        int
	statusMgr  launcher.StatusManager
	fs         fs.FileSystem
	viewport   viewport.Model
	autoscroll bool
	lines      []string
	readErr    error
	finished   bool
	now        func() time.Time
}

func NewModel(plan launcher.Plan, pid int, statusMgr launcher.StatusManager, filesystem fs.FileSystem) *Model {
	return &Model{
		plan:       plan,
		pid:        pid,
		statusMgr:  statusMgr,
		fs:         filesystem,
		viewport:   viewport.New(120, 20),
		autoscroll: true,
		now:        time.Now,
	}
}

func (m *Model) Init() tea.Cmd {
	return tickCmd()
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "end", "G":
			m.autoscroll = true
			m.viewport.GotoBottom()
		case "up", "k", "pgup":
			m.autoscroll = false
			m.viewport, cmd = m.viewport.Update(msg)
		default:
			m.viewport, cmd = m.viewport.Update(msg)
			if m.viewport.AtBottom() {
				m.autoscroll = true
			}
		}
	case tea.WindowSizeMsg:
		m.viewport.Width = msg.Width
		m.viewport.Height = max(msg.Height-headerHeight-1, 1)
		m.refresh()
	case tickMsg:
		m.refresh()
		if m.statusMgr.Snapshot(m.plan.Profile).Finished() {
			m.finished = true
			return m, tea.Quit
		}
		return m, tickCmd()
	}

	return m, cmd
}

func (m *Model) refresh() {
	data, err := m.fs.ReadFile(m.plan.LogPath)
	if err != nil {
		m.readErr = err
		return
	}
	m.readErr = nil

	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	if len(lines) > maxTailLines {
		lines = lines[len(lines)-maxTailLines:]
	}
	m.lines = lines

	m.viewport.SetContent(strings.Join(lines, "\n"))
	if m.autoscroll {
		m.viewport.GotoBottom()
	}
}

func (m *Model) View() string {
	status := m.statusMgr.Snapshot(m.plan.Profile)

	var sb strings.Builder
	sb.WriteString(titleStyle.Render(m.plan.Profile))
	sb.WriteString(fmt.Sprintf("  pid %d  %s  %s\n",
		m.pid,
		statusStyle(status.Status).Render(statusLabel(status)),
		status.Elapsed(m.now()).Round(time.Millisecond),
	))
	sb.WriteString(dimStyle.Render(fmt.Sprintf("%s $ %s", m.plan.Dir, strings.Join(m.plan.Argv, " "))))
	sb.WriteString("\n")
	sb.WriteString(dimStyle.Render("log: " + m.plan.LogPath))
	sb.WriteString("\n\n")

	if m.readErr != nil && len(m.lines) == 0 {
		sb.WriteString(dimStyle.Render("Waiting for output..."))
	} else {
		sb.WriteString(m.viewport.View())
	}

	sb.WriteString("\n\033[1mPress q to close the view (the program keeps running), up/down or j/k to scroll\033[0m")
	return sb.String()
}

// Finished reports whether the view ended because the child exited.
func (m *Model) Finished() bool {
	return m.finished
}

func statusLabel(s launcher.ExecutionStatus) string {
	if s.Status == launcher.StatusCompleted || s.Status == launcher.StatusFailed {
		return fmt.Sprintf("%s (exit %d)", s.Status, s.ExitCode)
	}
	return s.Status
}

func statusStyle(status string) lipgloss.Style {
	style := lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	switch status {
	case launcher.StatusCompleted:
		style = style.Foreground(lipgloss.Color("82"))
	case launcher.StatusFailed:
		style = style.Foreground(lipgloss.Color("160"))
	case launcher.StatusDetached:
		style = style.Foreground(lipgloss.Color("243"))
	}
	return style
}

// Run blocks until the child exits or the user closes the view.
func Run(m *Model, opts ...tea.ProgramOption) error {
	p := tea.NewProgram(m, opts...)
	if _, err := p.Run(); err != nil {
		return err
	}
	return nil
}
