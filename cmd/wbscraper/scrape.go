package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"wbscraper/pkg/auth"
	"wbscraper/pkg/config"
	"wbscraper/pkg/logger"
	"wbscraper/pkg/models"
	"wbscraper/pkg/pipeline"
	"wbscraper/pkg/ui"
	"wbscraper/pkg/ui/tui"
)

var (
	// Scrape command flags
	userName    string
	startDate   string
	endDate     string
	keywords    []string
	maxPages    int
	delay       time.Duration
	outputDir   string
	withImages  bool
	fullText    bool
	rawData     bool
	withArchive bool
	accountName string
	useTUI      bool
	notify      bool
)

// scrapeCmd represents the scrape command
var scrapeCmd = &cobra.Command{
	Use:   "scrape <user_id>",
	Short: "Collect the posts of a Weibo account",
	Long: `Collect the posts of one Weibo account published within a date range.

Listing pages are fetched newest first until a page comes back empty or
--max-pages is reached. Posts outside the range are skipped, and when
keywords are given only posts containing at least one of them are kept.

The run writes:
  {output}/reports/{name}_posts_{start}-{end}.md and .html
  {output}/images/{post_id}_{n}.{ext}
  {output}/data/{name}_posts_{start}-{end}.json   (with --raw-data)
  {output}/{name}_{start}-{end}.zip              (with --archive)

An API session cookie is optional. It is taken from request.cookie, the
WBSCRAPER_COOKIE environment variable or an account stored with
'wbscraper auth login'.`,
	Example: `  # Posts from April 2025
  wbscraper scrape 1317335037 --name tester --start 2025-04-01 --end 2025-04-30

  # Only posts mentioning either keyword, without images
  wbscraper scrape 1317335037 --name tester --start 2025-04-01 --end 2025-04-30 \
    --keyword launch --keyword release --images=false

  # Full screen progress view
  wbscraper scrape 1317335037 --name tester --start 2025-04-01 --end 2025-04-30 --tui`,
	Args: cobra.ExactArgs(1),
	RunE: runScrape,
}

func init() {
	rootCmd.AddCommand(scrapeCmd)

	f := scrapeCmd.Flags()
	f.StringVarP(&userName, "name", "n", "", "display name used in reports and file names")
	f.StringVar(&startDate, "start", "", "first day to collect (YYYY-MM-DD)")
	f.StringVar(&endDate, "end", "", "last day to collect, inclusive (YYYY-MM-DD)")
	f.StringSliceVarP(&keywords, "keyword", "k", nil, "keep only posts containing any of these (repeatable or comma separated)")
	f.IntVar(&maxPages, "max-pages", 10, "maximum listing pages to fetch")
	f.DurationVar(&delay, "delay", 2*time.Second, "pause between listing pages")
	f.StringVarP(&outputDir, "output", "o", "", "output directory (default weibo_output)")
	f.BoolVar(&withImages, "images", true, "download post images")
	f.BoolVar(&fullText, "full-text", true, "fetch the full text of truncated posts")
	f.BoolVar(&rawData, "raw-data", false, "write the collected posts as JSON under data/")
	f.BoolVar(&withArchive, "archive", true, "package reports and images into a zip")
	f.StringVarP(&accountName, "account", "a", "", "use a specific stored account")
	f.BoolVar(&useTUI, "tui", false, "use the interactive terminal UI")
	f.BoolVar(&notify, "notify", false, "send a desktop notification when the crawl ends")
}

// scrapeOverrides keeps only the flags the user actually set
func scrapeOverrides(cmd *cobra.Command, userID string) *config.Overrides {
	o := &config.Overrides{UserID: &userID}
	f := cmd.Flags()
	if f.Changed("name") {
		o.UserName = &userName
	}
	if f.Changed("start") {
		o.StartDate = &startDate
	}
	if f.Changed("end") {
		o.EndDate = &endDate
	}
	if f.Changed("keyword") {
		o.Keywords = config.SplitKeywords(strings.Join(keywords, ","))
	}
	if f.Changed("max-pages") {
		o.MaxPages = &maxPages
	}
	if f.Changed("delay") {
		o.Delay = &delay
	}
	if f.Changed("output") {
		o.OutputDir = &outputDir
	}
	if f.Changed("images") {
		o.DownloadImages = &withImages
	}
	if f.Changed("full-text") {
		o.FullText = &fullText
	}
	if f.Changed("raw-data") {
		o.SaveRawData = &rawData
	}
	if f.Changed("archive") {
		o.CreateArchive = &withArchive
	}
	return o
}

func runScrape(cmd *cobra.Command, args []string) error {
	userID := strings.TrimSpace(args[0])

	// logs share the terminal with the progress display, so keep them quiet
	// unless asked for
	defaultLevel := "warn"
	if useTUI {
		defaultLevel = "disabled"
	}
	cfg, err := loadConfig(scrapeOverrides(cmd, userID), defaultLevel)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	log := logger.WithField("user_id", userID)
	log.WithField("version", version).Info("wbscraper starting")

	applyStoredAccount(cfg, log)

	params := pipeline.ParamsFromConfig(cfg)
	name := params.UserName
	if name == "" {
		name = userID
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p := pipeline.New(pipeline.OptionsFromConfig(cfg, logger.GetLogger()))

	var res *pipeline.Result
	if useTUI {
		res, err = scrapeWithTUI(ctx, p, cfg, name)
	} else {
		if !quiet {
			ui.PrintInfo("Target", fmt.Sprintf("%s (%s)", name, userID))
			ui.PrintInfo("Range", fmt.Sprintf("%s to %s", cfg.Target.StartDate, cfg.Target.EndDate))
			if len(cfg.Target.Keywords) > 0 {
				ui.PrintInfo("Keywords", strings.Join(cfg.Target.Keywords, ", "))
			}
		}
		res, err = scrapeWithLines(ctx, p, params, name)
	}

	if notify {
		posts := 0
		if res != nil {
			posts = res.WeiboCount
		}
		ui.NewNotifier().CrawlFinished(name, posts, err)
	}

	if err != nil {
		if pipeline.IsValidation(err) {
			return fmt.Errorf("%w (see 'wbscraper scrape --help')", err)
		}
		log.WithError(err).Error("Crawl failed")
		return err
	}
	log.WithField("posts", res.WeiboCount).Info("Crawl completed")
	return nil
}

func scrapeWithLines(ctx context.Context, p *pipeline.Pipeline, params models.Params, name string) (*pipeline.Result, error) {
	interactive := term.IsTerminal(int(os.Stdout.Fd())) && !quiet
	display := ui.NewProgressDisplay(os.Stdout, name, interactive)

	progress := display.Update
	if quiet {
		progress = nil
	}

	res, err := p.Run(ctx, params, progress)
	if err != nil {
		display.Fail(err)
		return nil, err
	}
	display.Complete(ui.Summary{
		Posts:  res.WeiboCount,
		Images: res.ImageCount,
		Pages:  res.Stats.PagesProcessed,
		Files:  []string{res.MarkdownFile, res.HTMLFile, res.CompletePackage, res.DataFile},
	})
	return res, nil
}

func scrapeWithTUI(ctx context.Context, p *pipeline.Pipeline, cfg *config.Config, name string) (*pipeline.Result, error) {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return nil, errors.New("--tui needs an interactive terminal")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	terminal := tui.NewTUI(tui.Job{
		UserID:   cfg.Target.UserID,
		UserName: name,
		Range:    fmt.Sprintf("%s to %s", cfg.Target.StartDate, cfg.Target.EndDate),
		Keywords: cfg.Target.Keywords,
		MaxPages: cfg.Target.MaxPages,
	}, cancel)

	var (
		res    *pipeline.Result
		runErr error
		done   = make(chan struct{})
	)
	go func() {
		defer close(done)
		res, runErr = p.Run(ctx, pipeline.ParamsFromConfig(cfg), terminal.Progress)
		var s tui.Summary
		if res != nil {
			s = tui.Summary{
				Posts:    res.WeiboCount,
				Images:   res.ImageCount,
				Pages:    res.Stats.PagesProcessed,
				Markdown: res.MarkdownFile,
				HTML:     res.HTMLFile,
				Archive:  res.CompletePackage,
			}
		}
		terminal.Done(s, runErr)
	}()

	tuiErr := terminal.Start()
	cancel()
	<-done

	if tuiErr != nil {
		return nil, fmt.Errorf("terminal UI failed: %w", tuiErr)
	}
	return res, runErr
}

// applyStoredAccount fills the session cookie from the credential store
// when the configuration does not carry one. A missing cookie is not an
// error; the listing API answers anonymous requests too.
func applyStoredAccount(cfg *config.Config, log logger.Logger) {
	if cfg.Request.Cookie != "" && accountName == "" {
		return
	}

	manager, err := auth.NewManager()
	if err != nil {
		log.WithError(err).Warn("Credential store unavailable")
		return
	}

	var account *auth.Account
	if accountName != "" {
		account, err = manager.Retrieve(accountName)
	} else {
		account, err = manager.RetrieveDefault()
	}
	if err != nil {
		if accountName != "" {
			ui.PrintWarning("Stored account not found", accountName)
		}
		log.Debug("No stored session cookie, continuing without one")
		return
	}

	cfg.Request.Cookie = account.Cookie
	if account.UserAgent != "" {
		cfg.Request.UserAgent = account.UserAgent
	}
	log.WithField("account", account.Name).Info("Using stored session cookie")
}
