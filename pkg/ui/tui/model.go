package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Phase is where the crawl currently is
type Phase int

const (
	PhaseRunning Phase = iota
	PhaseDone
	PhaseFailed
	PhaseCancelling
)

// Job describes the crawl shown in the header
type Job struct {
	UserID   string
	UserName string
	Range    string
	Keywords []string
	MaxPages int
}

// Summary is shown once the crawl has finished
type Summary struct {
	Posts    int
	Images   int
	Pages    int
	Markdown string
	HTML     string
	Archive  string
}

// LogMessage is one line of the activity panel
type LogMessage struct {
	Time    time.Time
	Level   string
	Message string
	Color   lipgloss.Color
}

// Model is the bubbletea model of a running crawl
type Model struct {
	spinner  spinner.Model
	progress progress.Model

	job     Job
	percent int
	status  string
	phase   Phase
	summary Summary
	err     error
	started time.Time
	ended   time.Time

	// cancel stops the crawl when the user quits early
	cancel func()

	width          int
	height         int
	showHelp       bool
	logMessages    []LogMessage
	maxLogMessages int
}

// NewModel creates a model for job. cancel may be nil.
func NewModel(job Job, cancel func()) *Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(accentOrange)

	p := progress.New(progress.WithDefaultGradient())
	p.Width = 40

	return &Model{
		spinner:        s,
		progress:       p,
		job:            job,
		status:         "starting",
		started:        time.Now(),
		cancel:         cancel,
		maxLogMessages: 50,
	}
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tickCmd())
}

// SetProgress records a progress report. Percent never moves backwards.
func (m *Model) SetProgress(percent int, status string) {
	if percent > 100 {
		percent = 100
	}
	if percent > m.percent {
		m.percent = percent
	}
	if status != "" && status != m.status {
		m.status = status
		m.AddLogMessage("INFO", status)
	}
}

// Finish moves the model to its final phase
func (m *Model) Finish(s Summary, err error) {
	m.ended = time.Now()
	if err != nil {
		m.phase = PhaseFailed
		m.err = err
		m.AddLogMessage("ERROR", err.Error())
		return
	}
	m.phase = PhaseDone
	m.summary = s
	m.percent = 100
	m.AddLogMessage("SUCCESS", fmt.Sprintf("collected %d posts", s.Posts))
}

// AddLogMessage appends to the activity panel, keeping the newest lines
func (m *Model) AddLogMessage(level, message string) {
	color := dimWhite
	switch level {
	case "ERROR":
		color = alertRed
	case "WARN":
		color = accentOrange
	case "SUCCESS":
		color = okGreen
	case "INFO":
		color = accentBlue
	}

	m.logMessages = append(m.logMessages, LogMessage{
		Time:    time.Now(),
		Level:   level,
		Message: message,
		Color:   color,
	})
	if len(m.logMessages) > m.maxLogMessages {
		m.logMessages = m.logMessages[len(m.logMessages)-m.maxLogMessages:]
	}
}

// Percent returns the last reported progress
func (m *Model) Percent() int {
	return m.percent
}

// Phase returns the current phase
func (m *Model) Phase() Phase {
	return m.phase
}

// Finished reports whether the crawl has ended either way
func (m *Model) Finished() bool {
	return m.phase == PhaseDone || m.phase == PhaseFailed
}

// Elapsed is the crawl's wall time so far, or in total once finished
func (m *Model) Elapsed() time.Duration {
	if !m.ended.IsZero() {
		return m.ended.Sub(m.started)
	}
	return time.Since(m.started)
}
