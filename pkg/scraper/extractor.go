package scraper

import (
	"context"
	"strconv"
	"strings"

	"wbscraper/pkg/logger"
	"wbscraper/pkg/models"
	"wbscraper/pkg/textnorm"
	"wbscraper/pkg/weibo"
)

// Outcome says what happened to one record
type Outcome int

const (
	Accepted Outcome = iota
	OutOfRange
	NoKeywordMatch
)

func (o Outcome) String() string {
	switch o {
	case Accepted:
		return "accepted"
	case OutOfRange:
		return "out_of_range"
	case NoKeywordMatch:
		return "no_keyword_match"
	default:
		return "unknown"
	}
}

// Extraction is the result of extracting one record. Post is nil unless
// Outcome is Accepted.
type Extraction struct {
	Post          *models.Post
	Outcome       Outcome
	ImagesFetched int
}

// Extractor turns API records into posts
type Extractor struct {
	api      API
	images   ImageSaver
	fullText bool
	logger   logger.Logger
	observer Observer
}

// ExtractorOptions configures an Extractor. A nil Images disables downloads.
type ExtractorOptions struct {
	API      API
	Images   ImageSaver
	FullText bool
	Logger   logger.Logger
	Observer Observer
}

func NewExtractor(opts ExtractorOptions) *Extractor {
	log := opts.Logger
	if log == nil {
		log = logger.GetLogger()
	}
	var obs Observer = nopObserver{}
	if opts.Observer != nil {
		obs = opts.Observer
	}
	return &Extractor{
		api:      opts.API,
		images:   opts.Images,
		fullText: opts.FullText,
		logger:   log,
		observer: obs,
	}
}

// Extract builds a post from m. Records outside r are rejected before any
// request is made; a record whose timestamp does not parse is kept. When
// keywords are given, the post text plus the repost text must contain one
// of them, ignoring case. Full text and image failures never reject a
// record.
func (e *Extractor) Extract(ctx context.Context, m *weibo.Mblog, r models.DateRange, keywords []string) Extraction {
	post := &models.Post{
		ID:        postID(m),
		MID:       m.MID.String(),
		CreatedAt: m.CreatedAt,
	}

	if ts, ok := weibo.ParseCreatedAt(m.CreatedAt); ok {
		if !r.Contains(ts) {
			return Extraction{Outcome: OutOfRange}
		}
		post.ParsedDate = &ts
	} else {
		e.logger.WarnWithFields("unparseable timestamp, keeping post", map[string]interface{}{
			"post_id":    post.ID,
			"created_at": m.CreatedAt,
		})
	}

	post.Text = e.bodyText(ctx, m)

	var repost *models.RepostSummary
	corpus := post.Text
	if rt := m.RetweetedStatus; rt != nil {
		repost = &models.RepostSummary{
			ID:   postID(rt),
			Text: e.bodyText(ctx, rt),
		}
		if rt.User != nil {
			repost.AuthorName = rt.User.ScreenName
		}
		corpus += " " + repost.Text
	}

	if !textnorm.ContainsAny(corpus, keywords) {
		return Extraction{Outcome: NoKeywordMatch}
	}

	post.SourceClient = textnorm.Normalize(m.Source)
	post.Counts = models.Counts{
		Reposts:  int64(m.RepostsCount),
		Comments: int64(m.CommentsCount),
		Likes:    int64(m.AttitudesCount),
	}
	post.URL = weibo.PermalinkURL(post.ID)

	fetched := 0
	var n int
	post.Images, n = e.resolveImages(ctx, m.Pics, post.ID, "", models.OriginPost)
	fetched += n

	if repost != nil {
		repost.Images, n = e.resolveImages(ctx, m.RetweetedStatus.Pics, post.ID, "rt_", models.OriginRepost)
		fetched += n
		post.Repost = repost
		post.RepostID = repost.ID
	}

	return Extraction{Post: post, Outcome: Accepted, ImagesFetched: fetched}
}

func postID(m *weibo.Mblog) string {
	if id := m.ID.String(); id != "" {
		return id
	}
	return m.MID.String()
}

// bodyText normalizes the body and swaps in the full text when the listing
// truncated it. A failed expansion keeps the truncated text.
func (e *Extractor) bodyText(ctx context.Context, m *weibo.Mblog) string {
	text := textnorm.Normalize(m.Text)
	if !e.fullText || e.api == nil {
		return text
	}
	if !bool(m.IsLongText) && !strings.Contains(text, weibo.ReadMoreMarker) {
		return text
	}

	id := postID(m)
	if id == "" || ctx.Err() != nil {
		return text
	}
	raw, err := e.api.FetchLongText(ctx, id)
	if err != nil {
		e.logger.WithError(err).WithField("post_id", id).Warn("Full text unavailable, keeping truncated body")
		return text
	}
	if full := textnorm.Normalize(raw); full != "" {
		return full
	}
	return text
}

// resolveImages keeps every image reference in order; only successfully
// stored ones get a local file name
func (e *Extractor) resolveImages(ctx context.Context, pics []weibo.Pic, id, prefix string, origin models.ImageOrigin) ([]models.ImageRef, int) {
	var refs []models.ImageRef
	fetched := 0
	for i, pic := range pics {
		u := pic.ImageURL()
		if u == "" {
			continue
		}
		ref := models.ImageRef{SourceURL: u, Origin: origin}

		if e.images != nil && ctx.Err() == nil {
			res, err := e.images.Save(ctx, u, id, prefix+strconv.Itoa(i+1))
			if err != nil {
				e.observer.ImageFailed()
			} else {
				ref.LocalFilename = res.Filename
				e.observer.ImageSaved(res.Cached)
				if !res.Cached {
					fetched++
				}
			}
		}
		refs = append(refs, ref)
	}
	return refs, fetched
}
