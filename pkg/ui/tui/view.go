package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

const logo = `
 _    _ ______  _____                                
| |  | || ___ \/  ___|                               
| |  | || |_/ /\ ` + "`" + `--.   ___  _ __  __ _  _ __    ___  _ __ 
| |/\| || ___ \ ` + "`" + `--. \ / __|| '__|/ _` + "`" + ` || '_ \  / _ \| '__|
\  /\  /| |_/ //\__/ /| (__ | |  | (_| || |_) ||  __/| |   
 \/  \/ \____/ \____/  \___||_|   \__,_|| .__/  \___||_|   
                                        | |               
                                        |_|               `

// View renders the whole screen
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	sections := []string{
		logoStyle.Width(m.width).Render(logo),
		m.renderJobPanel(m.width - 4),
		m.renderProgressPanel(m.width - 4),
		m.renderLogsPanel(m.width - 4),
	}

	switch {
	case m.showHelp:
		sections = append(sections, m.renderHelp())
	case m.Finished():
		sections = append(sections, helpStyle.Render("Press q or enter to exit"))
	default:
		sections = append(sections, helpStyle.Render("Press ? for help"))
	}

	return baseStyle.Width(m.width).Height(m.height).Render(
		lipgloss.JoinVertical(lipgloss.Left, sections...),
	)
}

func (m *Model) renderJobPanel(width int) string {
	title := titleStyle.Render(" TARGET ")

	name := m.job.UserName
	if name == "" {
		name = m.job.UserID
	}
	rows := []string{
		row("User:", fmt.Sprintf("%s (%s)", name, m.job.UserID)),
		row("Range:", m.job.Range),
		row("Max pages:", fmt.Sprintf("%d", m.job.MaxPages)),
	}
	if len(m.job.Keywords) > 0 {
		rows = append(rows, row("Keywords:", strings.Join(m.job.Keywords, ", ")))
	}

	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, strings.Join(rows, "\n")),
	)
}

func (m *Model) renderProgressPanel(width int) string {
	title := titleStyle.Render(" PROGRESS ")

	status := m.status
	if m.phase == PhaseRunning || m.phase == PhaseCancelling {
		status = m.spinner.View() + " " + status
	}
	rows := []string{
		m.progress.View(),
		phaseStyle(m.phase).Render(status),
		row("Elapsed:", formatDuration(m.Elapsed())),
	}

	switch m.phase {
	case PhaseDone:
		rows = append(rows,
			"",
			row("Posts:", fmt.Sprintf("%d", m.summary.Posts)),
			row("Images:", fmt.Sprintf("%d", m.summary.Images)),
			row("Pages:", fmt.Sprintf("%d", m.summary.Pages)),
		)
		for _, f := range []struct{ label, path string }{
			{"Markdown:", m.summary.Markdown},
			{"HTML:", m.summary.HTML},
			{"Archive:", m.summary.Archive},
		} {
			if f.path != "" {
				rows = append(rows, row(f.label, f.path))
			}
		}
	case PhaseFailed:
		rows = append(rows, "", errorStyle.Render(m.err.Error()))
	}

	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, strings.Join(rows, "\n")),
	)
}

func (m *Model) renderLogsPanel(width int) string {
	title := titleStyle.Render(" ACTIVITY ")

	start := len(m.logMessages) - 8
	if start < 0 {
		start = 0
	}

	var logs []string
	for _, l := range m.logMessages[start:] {
		timestamp := logTimestampStyle.Render(l.Time.Format("15:04:05"))
		level := lipgloss.NewStyle().Foreground(l.Color).Bold(true).Render(fmt.Sprintf("[%-7s]", l.Level))

		msg := l.Message
		if maxLen := width - 25; maxLen > 3 && len(msg) > maxLen {
			msg = msg[:maxLen-3] + "..."
		}
		logs = append(logs, fmt.Sprintf("%s %s %s", timestamp, level, logMessageStyle.Render(msg)))
	}

	content := strings.Join(logs, "\n")
	if content == "" {
		content = lipgloss.NewStyle().Foreground(dimWhite).Render("No activity yet...")
	}

	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, content),
	)
}

func (m *Model) renderHelp() string {
	help := `
  Keys:
    q/esc    - Cancel the crawl, or exit once it has finished
    enter    - Exit after the crawl has finished
    ctrl+l   - Clear the activity panel
    ?        - Toggle this help

  Status:
    ` + successStyle.Render("Green") + `    - Completed
    ` + warningStyle.Render("Orange") + `   - Cancelling
    ` + errorStyle.Render("Red") + `      - Failed
`
	return panelStyle.Width(m.width).Render(help)
}

func row(label, value string) string {
	return fmt.Sprintf("%s %s", statsLabelStyle.Render(label), statsValueStyle.Render(value))
}

// formatDuration formats a duration in a human-readable way
func formatDuration(d time.Duration) string {
	if d < 0 {
		return "00:00"
	}

	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60

	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
