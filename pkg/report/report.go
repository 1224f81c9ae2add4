package report

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	errs "wbscraper/pkg/errors"
	"wbscraper/pkg/models"
	"wbscraper/pkg/storage"
)

// Meta is the crawl context printed in the report header
type Meta struct {
	UserID   string
	UserName string
	Range    models.DateRange
	Keywords []string
	Stats    models.CrawlStats
	// GeneratedAt is printed verbatim; a zero value omits the line
	GeneratedAt time.Time
}

// ImageSource gives read-only access to stored images
type ImageSource interface {
	Exists(name string) bool
	Read(name string) ([]byte, error)
}

// Output holds both renderings of one report
type Output struct {
	Markdown []byte
	HTML     []byte
}

// Renderer turns collected posts into Markdown and HTML. Images are only
// linked or embedded when the source has the file.
type Renderer struct {
	images  ImageSource
	printer *message.Printer
}

// NewRenderer creates a Renderer. A nil source renders no images.
func NewRenderer(images ImageSource) *Renderer {
	return &Renderer{
		images:  images,
		printer: message.NewPrinter(language.English),
	}
}

// Render produces both documents
func (r *Renderer) Render(posts []*models.Post, meta Meta) (*Output, error) {
	html, err := r.HTML(posts, meta)
	if err != nil {
		return nil, err
	}
	return &Output{Markdown: r.Markdown(posts, meta), HTML: html}, nil
}

func (r *Renderer) hasImage(ref models.ImageRef) bool {
	return r.images != nil && ref.Saved() && r.images.Exists(ref.LocalFilename)
}

// storedImages counts the referenced images that exist in the source
func (r *Renderer) storedImages(posts []*models.Post) int {
	n := 0
	for _, p := range posts {
		for _, img := range p.AllImages() {
			if r.hasImage(img) {
				n++
			}
		}
	}
	return n
}

func (r *Renderer) count(n int64) string {
	return r.printer.Sprintf("%d", n)
}

// HumanDate formats the post time as "Jan 2, 2006" in the post's own zone,
// or returns the raw value when it did not parse
func HumanDate(p *models.Post) string {
	if p.ParsedDate == nil {
		return p.CreatedAt
	}
	return p.ParsedDate.Format("Jan 2, 2006")
}

func rangeLabel(r models.DateRange) string {
	return dayLabel(r.Start) + " to " + dayLabel(r.End)
}

func dayLabel(t time.Time) string {
	if t.IsZero() {
		return "open"
	}
	return t.Format(models.DateLayout)
}

// maxNameKeywords caps how many keywords go into a file name
const maxNameKeywords = 3

// BaseName returns the file stem shared by both reports:
// {user}_posts_{YYYYMMDD}-{YYYYMMDD}[_{kw}...]
func BaseName(userName string, r models.DateRange, keywords []string) string {
	name := fileSafe(userName) + "_posts_" + r.Compact()
	for i, k := range keywords {
		if i == maxNameKeywords {
			break
		}
		if k = fileSafe(k); k != "" {
			name += "_" + k
		}
	}
	return name
}

// ArchiveName returns {user}_{YYYYMMDD}-{YYYYMMDD}.zip
func ArchiveName(userName string, r models.DateRange) string {
	return fileSafe(userName) + "_" + r.Compact() + ".zip"
}

func fileSafe(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', ' ', '\t', '\n', '\r':
			return '_'
		}
		return r
	}, s)
}

// Paths are the locations of written reports
type Paths struct {
	Markdown string
	HTML     string
}

// Write stores both documents as {dir}/{base}.md and {dir}/{base}.html
func (o *Output) Write(dir, base string) (Paths, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return Paths{}, errs.Wrap(errs.ErrorTypeFileSystem, err, "failed to create report directory")
	}
	p := Paths{
		Markdown: filepath.Join(dir, base+".md"),
		HTML:     filepath.Join(dir, base+".html"),
	}
	if err := storage.WriteFileAtomic(p.Markdown, o.Markdown, 0644); err != nil {
		return Paths{}, errs.Wrap(errs.ErrorTypeFileSystem, err, "failed to write markdown report")
	}
	if err := storage.WriteFileAtomic(p.HTML, o.HTML, 0644); err != nil {
		return Paths{}, errs.Wrap(errs.ErrorTypeFileSystem, err, "failed to write html report")
	}
	return p, nil
}
