package ui

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	titles   []string
	messages []string
	err      error
}

func (r *recordingSender) Send(title, message string) error {
	r.titles = append(r.titles, title)
	r.messages = append(r.messages, message)
	return r.err
}

func withoutColor(t *testing.T) {
	t.Helper()
	prev := NoColor
	NoColor = true
	t.Cleanup(func() { NoColor = prev })
}

func TestProgressDisplayLinePerStatus(t *testing.T) {
	withoutColor(t)
	var buf bytes.Buffer
	p := NewProgressDisplay(&buf, "tester", false)

	p.Update(0, "fetching page 1")
	p.Update(0, "fetching page 1")
	p.Update(10, "fetching page 2")
	p.Update(5, "saving data")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "[  0%] fetching page 1", lines[0])
	assert.Equal(t, "[ 10%] fetching page 2", lines[1])
	// percent never goes backwards
	assert.Equal(t, "[ 10%] saving data", lines[2])
	assert.Equal(t, 10, p.Percent())
}

func TestProgressDisplayInPlace(t *testing.T) {
	withoutColor(t)
	var buf bytes.Buffer
	p := NewProgressDisplay(&buf, "tester", true)

	p.Update(50, "fetching page 6")
	p.Update(150, "done")

	out := buf.String()
	assert.Equal(t, 2, strings.Count(out, "\r"))
	assert.Contains(t, out, "[==========----------]  50% fetching page 6")
	assert.Contains(t, out, "[====================] 100% done")
}

func TestProgressDisplayComplete(t *testing.T) {
	withoutColor(t)
	var buf bytes.Buffer
	p := NewProgressDisplay(&buf, "tester", false)

	p.Complete(Summary{Posts: 4, Images: 2, Pages: 3, Files: []string{"a.md", "", "a.zip"}})

	out := buf.String()
	assert.Contains(t, out, "Collected 4 posts from tester")
	assert.Contains(t, out, "2 images, 3 pages")
	assert.Contains(t, out, "- a.md\n")
	assert.Contains(t, out, "- a.zip\n")
}

func TestProgressDisplayFail(t *testing.T) {
	withoutColor(t)
	var buf bytes.Buffer
	NewProgressDisplay(&buf, "tester", false).Fail(errors.New("crawl cancelled"))
	assert.Equal(t, "failed: crawl cancelled\n", buf.String())
}

func TestNotifierCrawlFinished(t *testing.T) {
	withoutColor(t)
	var buf bytes.Buffer
	sender := &recordingSender{err: errors.New("no notify-send")}
	n := NewNotifierWith(sender, &buf)

	n.CrawlFinished("tester", 4, nil)
	n.CrawlFinished("tester", 0, errors.New("boom"))

	assert.Equal(t, []string{"Crawl complete", "Crawl failed"}, sender.titles)
	assert.Equal(t, "4 posts from tester", sender.messages[0])
	assert.Contains(t, buf.String(), "Crawl failed: tester: boom")
}

func TestNotifierWithoutSender(t *testing.T) {
	withoutColor(t)
	var buf bytes.Buffer
	NewNotifierWith(nil, &buf).SendNotification("title", "body")
	assert.Equal(t, "\ntitle: body\n", buf.String())
}

func TestColorsCanBeDisabled(t *testing.T) {
	prev := NoColor
	t.Cleanup(func() { NoColor = prev })

	NoColor = false
	assert.Equal(t, "\033[31mx\033[0m", Red("x"))
	NoColor = true
	assert.Equal(t, "x", Red("x"))
}
