package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"wbscraper/internal/worker"
	"wbscraper/pkg/logger"
	"wbscraper/pkg/metrics"
	"wbscraper/pkg/models"
	"wbscraper/pkg/ratelimit"
)

// Version is reported by /api/test
var Version = "dev"

// Config holds the front end settings
type Config struct {
	Addr          string
	Workers       int
	QueueSize     int
	TaskRetention time.Duration
	// Defaults supplies everything a request does not: output directory,
	// toggles, delay
	Defaults models.Params
	// ScrapeRate and ScrapeBurst limit POST /scrape per client address
	ScrapeRate  rate.Limit
	ScrapeBurst int
}

func (c *Config) setDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.Workers < 1 {
		c.Workers = 1
	}
	if c.QueueSize < 1 {
		c.QueueSize = 16
	}
	if c.TaskRetention <= 0 {
		c.TaskRetention = time.Hour
	}
	if c.ScrapeRate == 0 {
		c.ScrapeRate = rate.Every(10 * time.Second)
	}
	if c.ScrapeBurst < 1 {
		c.ScrapeBurst = 3
	}
	if c.Defaults.OutputDir == "" {
		c.Defaults.OutputDir = models.DefaultOutput
	}
}

// Server is the web front end: it queues crawls and serves their progress
// and outputs
type Server struct {
	cfg      Config
	tasks    *Registry
	pool     *worker.Pool
	limiter  *ratelimit.Keyed
	gatherer prometheus.Gatherer
	logger   logger.Logger

	consumerDone chan struct{}
}

// New wires a server around runner. col and gatherer may be nil; without a
// gatherer /metrics is not mounted.
func New(cfg Config, runner worker.Runner, col *metrics.Collector, gatherer prometheus.Gatherer, log logger.Logger) *Server {
	cfg.setDefaults()
	if log == nil {
		log = logger.GetLogger()
	}
	log = log.WithField("component", "server")

	var obs worker.Observer
	if col != nil {
		obs = col
	}

	return &Server{
		cfg:          cfg,
		tasks:        NewRegistry(),
		pool:         worker.NewPool(cfg.Workers, cfg.QueueSize, runner, obs, log),
		limiter:      ratelimit.NewKeyed(cfg.ScrapeRate, cfg.ScrapeBurst),
		gatherer:     gatherer,
		logger:       log,
		consumerDone: make(chan struct{}),
	}
}

// Handler returns the routed HTTP handler
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(s.recoverer)
	r.Use(s.requestLogger)

	r.Get("/", s.handleIndex)
	r.With(s.scrapeLimit).Post("/scrape", s.handleScrape)
	r.Get("/progress/{taskID}", s.handleProgress)
	r.Get("/download/*", s.handleDownload)
	r.Get("/api/test", s.handleAPITest)
	if s.gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(s.gatherer))
	}

	return r
}

// Start launches the workers and the result consumer
func (s *Server) Start() {
	s.pool.Start()
	go s.consumeResults()
}

// Close cancels running crawls and waits for the workers to exit
func (s *Server) Close() {
	s.pool.Abort()
	<-s.consumerDone
}

// Run serves until ctx is done, then shuts down
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.Start()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.InfoWithFields("Web front end listening", map[string]interface{}{
			"addr":    s.cfg.Addr,
			"workers": s.cfg.Workers,
		})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		s.sweepLoop(gctx)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		s.Close()
		s.logger.Info("Web front end stopped")
		return err
	})

	return g.Wait()
}

func (s *Server) consumeResults() {
	defer close(s.consumerDone)
	for res := range s.pool.Results() {
		s.tasks.Finish(res.Job.ID, res.Output, res.Error)
	}
}

func (s *Server) sweepLoop(ctx context.Context) {
	interval := s.cfg.TaskRetention / 2
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			tasks := s.tasks.Sweep(s.cfg.TaskRetention)
			clients := s.limiter.Sweep(s.cfg.TaskRetention)
			if tasks > 0 || clients > 0 {
				s.logger.DebugWithFields("Swept expired state", map[string]interface{}{
					"tasks":   tasks,
					"clients": clients,
				})
			}
		case <-ctx.Done():
			return
		}
	}
}
