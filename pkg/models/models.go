package models

import (
	"strings"
	"time"

	errs "wbscraper/pkg/errors"
)

// ImageOrigin tells whether an image belongs to the post or its repost
type ImageOrigin string

const (
	OriginPost   ImageOrigin = "post"
	OriginRepost ImageOrigin = "repost"
)

// ImageRef is one attached image. LocalFilename is empty when the download
// failed or was disabled.
type ImageRef struct {
	SourceURL     string      `json:"source_url"`
	LocalFilename string      `json:"local_filename,omitempty"`
	Origin        ImageOrigin `json:"origin"`
}

// Saved reports whether the image has a local copy
func (i ImageRef) Saved() bool {
	return i.LocalFilename != ""
}

// Counts are the interaction totals of a post
type Counts struct {
	Reposts  int64 `json:"reposts"`
	Comments int64 `json:"comments"`
	Likes    int64 `json:"likes"`
}

// RepostSummary is the original post embedded in a repost
type RepostSummary struct {
	ID         string     `json:"id"`
	AuthorName string     `json:"author_name"`
	Text       string     `json:"text"`
	Images     []ImageRef `json:"images,omitempty"`
}

// Post is one collected item. ParsedDate is nil when CreatedAt could not be
// parsed; such posts are kept by the date filter.
type Post struct {
	ID           string         `json:"id"`
	MID          string         `json:"mid,omitempty"`
	RepostID     string         `json:"repost_id,omitempty"`
	CreatedAt    string         `json:"created_at"`
	ParsedDate   *time.Time     `json:"parsed_date,omitempty"`
	Text         string         `json:"text"`
	SourceClient string         `json:"source_client,omitempty"`
	Counts       Counts         `json:"counts"`
	URL          string         `json:"url"`
	Images       []ImageRef     `json:"images,omitempty"`
	Repost       *RepostSummary `json:"repost,omitempty"`
}

// DateUnparsed reports whether the post passed the date filter only because
// its timestamp was unreadable
func (p *Post) DateUnparsed() bool {
	return p.ParsedDate == nil
}

// AllImages returns the post's images followed by its repost's
func (p *Post) AllImages() []ImageRef {
	out := append([]ImageRef(nil), p.Images...)
	if p.Repost != nil {
		out = append(out, p.Repost.Images...)
	}
	return out
}

// CrawlStats are the counters of one crawl
type CrawlStats struct {
	TotalSeen        int `json:"total_weibos"`
	InRange          int `json:"filtered"`
	KeywordMatches   int `json:"keyword_matches"`
	ImagesDownloaded int `json:"images_downloaded"`
	PagesProcessed   int `json:"pages_processed"`
	UnparsedDates    int `json:"unparsed_dates"`
}

// DateLayout is the calendar date format of DateRange bounds
const DateLayout = "2006-01-02"

// DateRange is an inclusive range of calendar days. A zero bound is open.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// NewDateRange parses YYYY-MM-DD bounds. Either may be empty.
func NewDateRange(start, end string) (DateRange, error) {
	var r DateRange
	var err error
	if start != "" {
		if r.Start, err = time.Parse(DateLayout, start); err != nil {
			return r, errs.Validation("start_date %q is not YYYY-MM-DD", start)
		}
	}
	if end != "" {
		if r.End, err = time.Parse(DateLayout, end); err != nil {
			return r, errs.Validation("end_date %q is not YYYY-MM-DD", end)
		}
	}
	if !r.Start.IsZero() && !r.End.IsZero() && r.End.Before(r.Start) {
		return r, errs.Validation("end_date %s is before start_date %s", end, start)
	}
	return r, nil
}

// Contains reports whether t falls on a day inside the range. The wall clock
// of t in its own zone decides the day, so a post is filed under the date
// its author saw.
func (r DateRange) Contains(t time.Time) bool {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	if !r.Start.IsZero() && day.Before(r.Start) {
		return false
	}
	if !r.End.IsZero() && day.After(r.End) {
		return false
	}
	return true
}

// Compact renders the range as YYYYMMDD-YYYYMMDD for file names
func (r DateRange) Compact() string {
	return compactDay(r.Start) + "-" + compactDay(r.End)
}

func compactDay(t time.Time) string {
	if t.IsZero() {
		return "open"
	}
	return t.Format("20060102")
}

// Params are the inputs of one crawl
type Params struct {
	UserID    string        `json:"user_id"`
	UserName  string        `json:"user_name"`
	StartDate string        `json:"start_date"`
	EndDate   string        `json:"end_date"`
	Keywords  []string      `json:"keywords,omitempty"`
	MaxPages  int           `json:"max_pages"`
	Delay     time.Duration `json:"delay"`
	OutputDir string        `json:"output_dir"`

	DownloadImages bool `json:"download_images"`
	FullText       bool `json:"full_text"`
	SaveRawData    bool `json:"save_raw_data"`
	CreateArchive  bool `json:"create_archive"`
}

const (
	DefaultMaxPages = 10
	DefaultDelay    = 2 * time.Second
	DefaultOutput   = "weibo_output"
)

// Normalize fills defaults and tidies keywords
func (p *Params) Normalize() {
	p.UserID = strings.TrimSpace(p.UserID)
	p.UserName = strings.TrimSpace(p.UserName)
	if p.MaxPages == 0 {
		p.MaxPages = DefaultMaxPages
	}
	if p.OutputDir == "" {
		p.OutputDir = DefaultOutput
	}
	var kws []string
	for _, k := range p.Keywords {
		if k = strings.TrimSpace(k); k != "" {
			kws = append(kws, k)
		}
	}
	p.Keywords = kws
}

// Validate checks that every required field is present and well formed. The
// error names the first offending field.
func (p *Params) Validate() error {
	for _, f := range []struct{ name, value string }{
		{"user_id", p.UserID},
		{"user_name", p.UserName},
		{"start_date", p.StartDate},
		{"end_date", p.EndDate},
	} {
		if strings.TrimSpace(f.value) == "" {
			return errs.Validation("%s is required", f.name)
		}
	}
	if _, err := NewDateRange(p.StartDate, p.EndDate); err != nil {
		return err
	}
	if p.MaxPages < 0 {
		return errs.Validation("max_pages must be positive")
	}
	if p.Delay < 0 {
		return errs.Validation("request_delay cannot be negative")
	}
	return nil
}

// Range returns the parsed date range. Call Validate first.
func (p *Params) Range() DateRange {
	r, _ := NewDateRange(p.StartDate, p.EndDate)
	return r
}
