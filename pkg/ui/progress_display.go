package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// ProgressDisplay renders crawl progress as a single rewritten line, or as
// one line per status change when the output is not a terminal
type ProgressDisplay struct {
	mu         sync.Mutex
	out        io.Writer
	username   string
	percent    int
	status     string
	startTime  time.Time
	inPlace    bool
	lineLength int
}

// Summary is what Complete prints
type Summary struct {
	Posts  int
	Images int
	Pages  int
	Files  []string
}

// NewProgressDisplay creates a display for username. inPlace rewrites the
// same line with carriage returns.
func NewProgressDisplay(out io.Writer, username string, inPlace bool) *ProgressDisplay {
	return &ProgressDisplay{
		out:       out,
		username:  username,
		startTime: time.Now(),
		inPlace:   inPlace,
	}
}

// Update records a progress report. Its signature matches the crawl
// progress callback.
func (p *ProgressDisplay) Update(percent int, status string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if percent < p.percent {
		percent = p.percent
	}
	if percent > 100 {
		percent = 100
	}
	changed := status != p.status
	p.percent = percent
	p.status = status

	if p.inPlace {
		p.printLine()
	} else if changed {
		fmt.Fprintf(p.out, "[%3d%%] %s\n", p.percent, p.status)
	}
}

// Percent returns the last reported progress
func (p *ProgressDisplay) Percent() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.percent
}

func (p *ProgressDisplay) printLine() {
	barWidth := 20
	filled := p.percent * barWidth / 100
	bar := strings.Repeat("=", filled) + strings.Repeat("-", barWidth-filled)

	line := fmt.Sprintf("%s [%s] %3d%% %s %s",
		Cyan(p.username),
		bar,
		p.percent,
		p.status,
		Dim(formatDuration(time.Since(p.startTime))),
	)

	pad := ""
	if n := p.lineLength - len(line); n > 0 {
		pad = strings.Repeat(" ", n)
	}
	p.lineLength = len(line)
	fmt.Fprintf(p.out, "\r%s%s", line, pad)
}

// Complete prints the final summary
func (p *ProgressDisplay) Complete(s Summary) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.inPlace {
		fmt.Fprintln(p.out)
	}
	fmt.Fprintf(p.out, "\n%s Collected %d posts from %s in %s\n",
		Green("done"),
		s.Posts,
		p.username,
		formatDuration(time.Since(p.startTime)),
	)
	fmt.Fprintf(p.out, "  %s %d images, %d pages\n", Dim("-"), s.Images, s.Pages)
	for _, f := range s.Files {
		if f != "" {
			fmt.Fprintf(p.out, "  %s %s\n", Dim("-"), f)
		}
	}
}

// Fail prints the error that ended the crawl
func (p *ProgressDisplay) Fail(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.inPlace {
		fmt.Fprintln(p.out)
	}
	fmt.Fprintf(p.out, "%s %v\n", Red("failed:"), err)
}

// formatDuration formats a duration in a human-readable way
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	} else if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}
