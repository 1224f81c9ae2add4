package tui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
)

// TUI represents the terminal user interface of one crawl
type TUI struct {
	program *tea.Program
	model   *Model
}

// NewTUI creates a TUI for job. cancel is called when the user quits early.
func NewTUI(job Job, cancel func(), opts ...tea.ProgramOption) *TUI {
	model := NewModel(job, cancel)
	if len(opts) == 0 {
		opts = []tea.ProgramOption{tea.WithAltScreen()}
	}
	return &TUI{
		program: tea.NewProgram(model, opts...),
		model:   model,
	}
}

// Start runs the program until the user exits
func (t *TUI) Start() error {
	_, err := t.program.Run()
	return err
}

// Stop stops the TUI gracefully
func (t *TUI) Stop() {
	t.program.Quit()
}

// Send sends a message to the TUI
func (t *TUI) Send(msg tea.Msg) {
	if t.program != nil {
		t.program.Send(msg)
	}
}

// Progress forwards a crawl progress report. It has the shape of the
// pipeline's progress callback.
func (t *TUI) Progress(percent int, status string) {
	t.Send(ProgressMsg{Percent: percent, Status: status})
}

// Done reports the end of the crawl
func (t *TUI) Done(s Summary, err error) {
	t.Send(DoneMsg{Summary: s, Err: err})
}

// Log sends a log message to the TUI
func (t *TUI) Log(level, format string, args ...interface{}) {
	t.Send(LogMsg{Level: level, Message: fmt.Sprintf(format, args...)})
}

// LogInfo logs an info message
func (t *TUI) LogInfo(format string, args ...interface{}) {
	t.Log("INFO", format, args...)
}

// LogWarning logs a warning message
func (t *TUI) LogWarning(format string, args ...interface{}) {
	t.Log("WARN", format, args...)
}
