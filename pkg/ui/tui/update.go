package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// ProgressMsg carries one progress report of the crawl
type ProgressMsg struct {
	Percent int
	Status  string
}

// LogMsg adds a line to the activity panel
type LogMsg struct {
	Level   string
	Message string
}

// DoneMsg ends the crawl
type DoneMsg struct {
	Summary Summary
	Err     error
}

// TickMsg refreshes the elapsed time
type TickMsg time.Time

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progress.Width = clamp(msg.Width-20, 20, 80)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case progress.FrameMsg:
		pm, cmd := m.progress.Update(msg)
		if p, ok := pm.(progress.Model); ok {
			m.progress = p
		}
		return m, cmd

	case TickMsg:
		if m.Finished() {
			return m, nil
		}
		return m, tickCmd()

	case ProgressMsg:
		m.SetProgress(msg.Percent, msg.Status)
		return m, m.progress.SetPercent(float64(m.percent) / 100)

	case LogMsg:
		m.AddLogMessage(msg.Level, msg.Message)
		return m, nil

	case DoneMsg:
		m.Finish(msg.Summary, msg.Err)
		return m, m.progress.SetPercent(float64(m.percent) / 100)
	}

	return m, nil
}

func (m *Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "Q", "ctrl+c", "esc":
		if m.Finished() {
			return m, tea.Quit
		}
		if m.phase != PhaseCancelling {
			m.phase = PhaseCancelling
			m.AddLogMessage("WARN", "Cancelling after the current request")
			if m.cancel != nil {
				m.cancel()
			}
		}
		return m, nil

	case "enter":
		if m.Finished() {
			return m, tea.Quit
		}
		return m, nil

	case "?":
		m.showHelp = !m.showHelp
		return m, nil

	case "ctrl+l":
		m.logMessages = nil
		return m, nil
	}

	return m, nil
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
