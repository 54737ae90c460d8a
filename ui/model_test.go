package ui

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/ZacxDev/lightrunner/fs/mock"
	"github.com/ZacxDev/lightrunner/launcher"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tea "github.com/charmbracelet/bubbletea"
)

func newTestModel(t *testing.T) (*Model, *mock.MockFileSystem, launcher.StatusManager) {
	t.Helper()
	fs := mock.NewMockFileSystem()
	sm := launcher.NewStatusManager()
	plan := launcher.Plan{
		Profile: "living_light",
		Dir:     "/srv/ll",
		Argv:    []string{"python3", "living_light.py"},
		LogPath: "/srv/ll/logs/living_light.log",
	}
	m := NewModel(plan, 42, sm, fs)
	return m, fs, sm
}

func isQuit(cmd tea.Cmd) bool {
	if cmd == nil {
		return false
	}
	_, ok := cmd().(tea.QuitMsg)
	return ok
}

func TestModelWaitsForOutput(t *testing.T) {
	m, _, sm := newTestModel(t)
	sm.MarkRunning("living_light", 42, time.Now())

	_, cmd := m.Update(tickMsg(time.Now()))
	assert.False(t, isQuit(cmd))
	assert.Contains(t, m.View(), "Waiting for output...")
	assert.Contains(t, m.View(), "pid 42")
}

func TestModelTailsLog(t *testing.T) {
	m, fs, sm := newTestModel(t)
	sm.MarkRunning("living_light", 42, time.Now())
	require.NoError(t, fs.WriteFile("/srv/ll/logs/living_light.log", []byte("Left Distance: 10\r\nObject Near Entrance: True\n"), 0644))

	m.Update(tea.WindowSizeMsg{Width: 80, Height: 30})
	m.Update(tickMsg(time.Now()))

	view := m.View()
	assert.Contains(t, view, "Left Distance: 10")
	assert.Contains(t, view, "Object Near Entrance: True")
	assert.Contains(t, view, "Running")
	assert.Contains(t, view, "log: /srv/ll/logs/living_light.log")
	assert.Equal(t, []string{"Left Distance: 10", "Object Near Entrance: True"}, m.lines)
}

func TestModelKeepsTailOnly(t *testing.T) {
	m, fs, _ := newTestModel(t)

	var sb strings.Builder
	for i := 0; i < maxTailLines+10; i++ {
		fmt.Fprintf(&sb, "line %d\n", i)
	}
	require.NoError(t, fs.WriteFile("/srv/ll/logs/living_light.log", []byte(sb.String()), 0644))

	m.refresh()
	require.Len(t, m.lines, maxTailLines)
	assert.Equal(t, "line 10", m.lines[0])
}

func TestModelQuitsWhenChildExits(t *testing.T) {
	m, _, sm := newTestModel(t)
	sm.MarkRunning("living_light", 42, time.Now())
	sm.MarkFinished("living_light", 2, time.Now())

	_, cmd := m.Update(tickMsg(time.Now()))
	assert.True(t, isQuit(cmd))
	assert.True(t, m.Finished())
	assert.Contains(t, m.View(), "Failed (exit 2)")
}

func TestModelCloseDoesNotFinish(t *testing.T) {
	m, _, sm := newTestModel(t)
	sm.MarkRunning("living_light", 42, time.Now())

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	assert.True(t, isQuit(cmd))
	assert.False(t, m.Finished())
	assert.Equal(t, launcher.StatusRunning, sm.Snapshot("living_light").Status)
}

func TestModelScrollDisablesAutoscroll(t *testing.T) {
	m, _, _ := newTestModel(t)

	m.Update(tea.KeyMsg{Type: tea.KeyUp})
	assert.False(t, m.autoscroll)

	m.Update(tea.KeyMsg{Type: tea.KeyEnd})
	assert.True(t, m.autoscroll)
}

func TestInitSchedulesTick(t *testing.T) {
	m, _, _ := newTestModel(t)
	assert.NotNil(t, m.Init())
}
