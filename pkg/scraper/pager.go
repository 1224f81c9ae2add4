package scraper

import (
	"context"
	"fmt"
	"time"

	"wbscraper/pkg/logger"
	"wbscraper/pkg/models"
	"wbscraper/pkg/ratelimit"
)

// StopReason records why a crawl stopped paging
type StopReason string

const (
	StopMaxPages    StopReason = "max_pages"
	StopEmptyPage   StopReason = "empty_page"
	StopNoMatches   StopReason = "no_matches"
	StopFetchFailed StopReason = "fetch_failed"
	StopCancelled   StopReason = "cancelled"
)

// Query selects what one crawl collects
type Query struct {
	UserID   string
	Range    models.DateRange
	Keywords []string
	MaxPages int
	Delay    time.Duration
}

// Collection is everything one crawl produced
type Collection struct {
	Posts      []*models.Post
	Stats      models.CrawlStats
	StopReason StopReason
	// StopError is the failure that ended paging, if any
	StopError error
}

// Pager walks the listing pages of one user in order
type Pager struct {
	api       API
	extractor *Extractor
	logger    logger.Logger
	observer  Observer
}

func NewPager(api API, extractor *Extractor, log logger.Logger, obs Observer) *Pager {
	if log == nil {
		log = logger.GetLogger()
	}
	if obs == nil {
		obs = nopObserver{}
	}
	return &Pager{api: api, extractor: extractor, logger: log, observer: obs}
}

// Collect fetches pages 1..MaxPages, waiting Delay after each page's work
// before the next listing request. It stops
// early when a page fails to load, carries no cards, or yields no post that
// passes the filters; the last case cannot be told apart from the end of
// the timeline. Whatever was collected is returned; failures only end
// paging. ctx is checked between pages and between images.
func (p *Pager) Collect(ctx context.Context, q Query, progress ProgressFunc) *Collection {
	if progress == nil {
		progress = func(int, string) {}
	}
	maxPages := q.MaxPages
	if maxPages <= 0 {
		maxPages = models.DefaultMaxPages
	}

	log := p.logger.WithField("user_id", q.UserID)
	pacer := ratelimit.NewPacer(q.Delay)
	out := &Collection{StopReason: StopMaxPages}

	for page := 1; page <= maxPages; page++ {
		if ctx.Err() != nil {
			out.StopReason, out.StopError = StopCancelled, ctx.Err()
			break
		}

		progress((page-1)*100/maxPages, fmt.Sprintf("fetching page %d", page))

		if err := pacer.Wait(ctx); err != nil {
			out.StopReason, out.StopError = StopCancelled, err
			break
		}

		resp, err := p.api.FetchListing(ctx, q.UserID, page)
		if err != nil {
			log.WithError(err).WithField("page", page).Warn("Listing page failed, stopping")
			out.StopReason, out.StopError = StopFetchFailed, err
			if ctx.Err() != nil {
				out.StopReason = StopCancelled
			}
			break
		}
		out.Stats.PagesProcessed++
		p.observer.PageFetched()

		if len(resp.Data.Cards) == 0 {
			log.WithField("page", page).Info("No more content")
			out.StopReason = StopEmptyPage
			break
		}

		records := resp.Posts()
		kept := 0
		for _, m := range records {
			if ctx.Err() != nil {
				break
			}
			out.Stats.TotalSeen++

			ex := p.extractor.Extract(ctx, m, q.Range, q.Keywords)
			if ex.Outcome == OutOfRange {
				continue
			}
			out.Stats.InRange++
			if ex.Outcome == NoKeywordMatch {
				continue
			}
			out.Stats.KeywordMatches++
			out.Stats.ImagesDownloaded += ex.ImagesFetched
			if ex.Post.DateUnparsed() {
				out.Stats.UnparsedDates++
			}
			out.Posts = append(out.Posts, ex.Post)
			p.observer.PostCollected()
			kept++
		}

		logger.LogPage(log, q.UserID, page, len(records), kept)
		pacer.Restart()

		if ctx.Err() != nil {
			out.StopReason, out.StopError = StopCancelled, ctx.Err()
			break
		}
		if kept == 0 {
			log.WithField("page", page).Info("No matching posts on page, stopping")
			out.StopReason = StopNoMatches
			break
		}
	}

	progress(100, fmt.Sprintf("collected %d posts", len(out.Posts)))
	return out
}
