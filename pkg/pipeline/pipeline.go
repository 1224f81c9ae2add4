package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"wbscraper/pkg/archive"
	"wbscraper/pkg/config"
	"wbscraper/pkg/dataset"
	errs "wbscraper/pkg/errors"
	"wbscraper/pkg/logger"
	"wbscraper/pkg/metrics"
	"wbscraper/pkg/models"
	"wbscraper/pkg/report"
	"wbscraper/pkg/retry"
	"wbscraper/pkg/scraper"
	"wbscraper/pkg/storage"
	"wbscraper/pkg/weibo"
)

// Output subdirectories
const (
	ImagesDir  = "images"
	ReportsDir = "reports"
	DataDir    = "data"
)

// collectShare is the share of progress given to paging; the rest covers
// writing the outputs
const collectShare = 95

// Result describes what a run produced
type Result struct {
	MarkdownFile    string            `json:"markdown_file"`
	HTMLFile        string            `json:"html_file"`
	CompletePackage string            `json:"complete_package,omitempty"`
	DataFile        string            `json:"data_file,omitempty"`
	WeiboCount      int               `json:"weibo_count"`
	ImageCount      int               `json:"image_count"`
	KeywordMatches  int               `json:"keyword_matches"`
	StopReason      string            `json:"stop_reason"`
	Stats           models.CrawlStats `json:"stats"`
}

// Options holds what stays the same across runs
type Options struct {
	BaseURL            string
	UserAgent          string
	Timeout            time.Duration
	InsecureSkipVerify bool
	Cookie             string
	MaxRetries         int
	RetryDelay         time.Duration
	// RetryBackoff is "constant" (the default) or "exponential"
	RetryBackoff string

	Logger  logger.Logger
	Metrics *metrics.Collector
	// Now stamps reports and dumps; defaults to time.Now
	Now func() time.Time
}

// Pipeline runs crawls end to end: collect, dump, render, write, archive
type Pipeline struct {
	opts   Options
	logger logger.Logger
}

func New(opts Options) *Pipeline {
	if opts.Logger == nil {
		opts.Logger = logger.GetLogger()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.MaxRetries < 1 {
		opts.MaxRetries = 3
	}
	return &Pipeline{opts: opts, logger: opts.Logger}
}

// OptionsFromConfig maps the request section of cfg to pipeline options
func OptionsFromConfig(cfg *config.Config, log logger.Logger) Options {
	return Options{
		BaseURL:            cfg.Request.BaseURL,
		UserAgent:          cfg.Request.UserAgent,
		Timeout:            cfg.Request.Timeout,
		InsecureSkipVerify: cfg.Request.InsecureSkipVerify,
		Cookie:             cfg.Request.Cookie,
		MaxRetries:         cfg.Request.MaxRetries,
		RetryDelay:         cfg.Request.RetryDelay,
		RetryBackoff:       cfg.Request.RetryBackoff,
		Logger:             log,
	}
}

// ParamsFromConfig builds run parameters from the target and output sections
func ParamsFromConfig(cfg *config.Config) models.Params {
	return models.Params{
		UserID:         cfg.Target.UserID,
		UserName:       cfg.Target.UserName,
		StartDate:      cfg.Target.StartDate,
		EndDate:        cfg.Target.EndDate,
		Keywords:       cfg.Target.Keywords,
		MaxPages:       cfg.Target.MaxPages,
		Delay:          cfg.Request.Delay,
		OutputDir:      cfg.Output.Directory,
		DownloadImages: cfg.Output.DownloadImages,
		FullText:       cfg.Output.FullText,
		SaveRawData:    cfg.Output.SaveRawData,
		CreateArchive:  cfg.Output.CreateArchive,
	}
}

func (p *Pipeline) retryConfig() (*retry.Config, error) {
	backoff, err := retry.NewBackoff(p.opts.RetryBackoff, p.opts.RetryDelay, 30*time.Second)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeValidation, err, "retry_backoff")
	}
	return &retry.Config{
		MaxAttempts: p.opts.MaxRetries,
		Backoff:     backoff,
		RetryIf:     retry.DefaultRetryIf,
		Logger:      p.logger,
	}, nil
}

// Run validates params, collects posts and writes every output. Only
// invalid params, cancellation and failures to write the reports are
// returned as errors; everything upstream degrades into a smaller result.
// progress is called once per page, once per output stage and finally with
// 100.
func (p *Pipeline) Run(ctx context.Context, params models.Params, progress scraper.ProgressFunc) (*Result, error) {
	if progress == nil {
		progress = func(int, string) {}
	}
	params.Normalize()
	if err := params.Validate(); err != nil {
		progress(100, "failed: "+err.Error())
		return nil, err
	}

	started := p.opts.Now()
	log := p.logger.WithFields(map[string]interface{}{
		"user_id":   params.UserID,
		"user_name": params.UserName,
	})
	logger.LogComponentStart(log, "pipeline", map[string]interface{}{
		"start_date": params.StartDate,
		"end_date":   params.EndDate,
		"keywords":   params.Keywords,
		"max_pages":  params.MaxPages,
		"output_dir": params.OutputDir,
	})

	res, err := p.run(ctx, params, started, log, progress)
	if err != nil {
		logger.LogComponentStop(log, "pipeline", err.Error())
		progress(100, "failed: "+err.Error())
		return nil, err
	}

	logger.LogComponentStop(log, "pipeline", res.StopReason)
	progress(100, fmt.Sprintf("completed: %d posts", res.WeiboCount))
	return res, nil
}

func (p *Pipeline) run(ctx context.Context, params models.Params, started time.Time, log logger.Logger, progress scraper.ProgressFunc) (*Result, error) {
	var clientObs weibo.Observer
	var crawlObs scraper.Observer
	if p.opts.Metrics != nil {
		clientObs, crawlObs = p.opts.Metrics, p.opts.Metrics
	}

	retryCfg, err := p.retryConfig()
	if err != nil {
		return nil, err
	}
	client, err := weibo.NewClient(weibo.Options{
		BaseURL:            p.opts.BaseURL,
		UserAgent:          p.opts.UserAgent,
		Timeout:            p.opts.Timeout,
		InsecureSkipVerify: p.opts.InsecureSkipVerify,
		Cookie:             p.opts.Cookie,
		Retry:              retryCfg,
		Logger:             log,
		Observer:           clientObs,
	})
	if err != nil {
		return nil, err
	}

	store, err := storage.NewImageStore(filepath.Join(params.OutputDir, ImagesDir), client, log)
	if err != nil {
		return nil, err
	}
	var saver scraper.ImageSaver
	if params.DownloadImages {
		saver = store
	}

	extractor := scraper.NewExtractor(scraper.ExtractorOptions{
		API:      client,
		Images:   saver,
		FullText: params.FullText,
		Logger:   log,
		Observer: crawlObs,
	})
	pager := scraper.NewPager(client, extractor, log, crawlObs)

	r := params.Range()
	col := pager.Collect(ctx, scraper.Query{
		UserID:   params.UserID,
		Range:    r,
		Keywords: params.Keywords,
		MaxPages: params.MaxPages,
		Delay:    params.Delay,
	}, func(pct int, status string) {
		progress(pct*collectShare/100, status)
	})

	if p.opts.Metrics != nil {
		p.opts.Metrics.CrawlFinished(string(col.StopReason), p.opts.Now().Sub(started))
	}
	if col.StopReason == scraper.StopCancelled {
		return nil, fmt.Errorf("crawl cancelled: %w", ctx.Err())
	}

	log.InfoWithFields("Collection finished", map[string]interface{}{
		"posts":       len(col.Posts),
		"pages":       col.Stats.PagesProcessed,
		"seen":        col.Stats.TotalSeen,
		"in_range":    col.Stats.InRange,
		"stop_reason": col.StopReason,
	})

	res := &Result{
		WeiboCount:     len(col.Posts),
		KeywordMatches: col.Stats.KeywordMatches,
		StopReason:     string(col.StopReason),
		Stats:          col.Stats,
	}
	base := report.BaseName(params.UserName, r, params.Keywords)
	now := p.opts.Now()

	if params.SaveRawData {
		progress(collectShare, "saving data")
		if path, err := p.saveDump(params, col, base, now, log); err != nil {
			log.WithError(err).Warn("Data dump failed")
		} else {
			res.DataFile = path
		}
	}

	progress(collectShare, "writing reports")
	rendered, err := report.NewRenderer(store).Render(col.Posts, report.Meta{
		UserID:      params.UserID,
		UserName:    params.UserName,
		Range:       r,
		Keywords:    params.Keywords,
		Stats:       col.Stats,
		GeneratedAt: now,
	})
	if err != nil {
		return nil, err
	}
	paths, err := rendered.Write(filepath.Join(params.OutputDir, ReportsDir), base)
	if err != nil {
		return nil, err
	}
	res.MarkdownFile, res.HTMLFile = paths.Markdown, paths.HTML
	res.ImageCount = countStored(col.Posts, store)

	if params.CreateArchive {
		progress(collectShare, "creating archive")
		dest := filepath.Join(params.OutputDir, report.ArchiveName(params.UserName, r))
		m, err := archive.Create(ctx, dest, archive.Input{
			MarkdownPath: paths.Markdown,
			HTMLPath:     paths.HTML,
			ImagesDir:    store.Dir(),
		}, log)
		if err != nil {
			log.WithError(err).Warn("Archive failed")
		} else {
			res.CompletePackage = m.Path
		}
	}

	return res, nil
}

func (p *Pipeline) saveDump(params models.Params, col *scraper.Collection, base string, now time.Time, log logger.Logger) (string, error) {
	ds, err := dataset.NewStore(filepath.Join(params.OutputDir, DataDir), log)
	if err != nil {
		return "", err
	}
	return ds.Save(base, dataset.New(params, col.Posts, col.Stats, now))
}

func countStored(posts []*models.Post, store *storage.ImageStore) int {
	n := 0
	for _, p := range posts {
		for _, img := range p.AllImages() {
			if img.Saved() && store.Exists(img.LocalFilename) {
				n++
			}
		}
	}
	return n
}

// IsValidation reports whether err came from bad run parameters
func IsValidation(err error) bool {
	return errs.Is(err, errs.ErrorTypeValidation)
}
