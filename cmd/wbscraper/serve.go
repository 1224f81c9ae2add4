package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"wbscraper/internal/server"
	"wbscraper/pkg/config"
	"wbscraper/pkg/logger"
	"wbscraper/pkg/metrics"
	"wbscraper/pkg/pipeline"
	"wbscraper/pkg/ui"
)

var (
	serveAddr    string
	serveWorkers int
	serveOutput  string
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the web front end",
	Long: `Run a small web front end that queues crawls and reports their progress.

Endpoints:
  GET  /                    form for starting a crawl
  POST /scrape              start a crawl; returns {"task_id": ...}
  GET  /progress/{task_id}  progress, status and, once finished, the result
  GET  /download/{path}     files under the output directory
  GET  /api/test            health check
  GET  /metrics             Prometheus metrics

Crawls run on server.workers workers. Request fields that are not sent,
such as the image and archive toggles, come from the configuration.`,
	Example: `  wbscraper serve --addr :8080 --workers 2`,
	Args:    cobra.NoArgs,
	RunE:    runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default :8080)")
	serveCmd.Flags().IntVar(&serveWorkers, "workers", 1, "number of crawls run at once")
	serveCmd.Flags().StringVarP(&serveOutput, "output", "o", "", "output directory (default weibo_output)")
}

func runServe(cmd *cobra.Command, args []string) error {
	o := &config.Overrides{}
	if cmd.Flags().Changed("addr") {
		o.Addr = &serveAddr
	}
	if cmd.Flags().Changed("workers") {
		o.Workers = &serveWorkers
	}
	if cmd.Flags().Changed("output") {
		o.OutputDir = &serveOutput
	}

	cfg, err := loadConfig(o, "")
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	log := logger.GetLogger()

	col := metrics.NewCollector(prometheus.DefaultRegisterer)
	opts := pipeline.OptionsFromConfig(cfg, log)
	opts.Metrics = col
	p := pipeline.New(opts)

	defaults := pipeline.ParamsFromConfig(cfg)
	defaults.UserID, defaults.UserName = "", ""
	defaults.StartDate, defaults.EndDate = "", ""
	defaults.Keywords = nil

	srv := server.New(server.Config{
		Addr:          cfg.Server.Addr,
		Workers:       cfg.Server.Workers,
		QueueSize:     cfg.Server.QueueSize,
		TaskRetention: cfg.Server.TaskRetention,
		Defaults:      defaults,
	}, p, col, prometheus.DefaultGatherer, log)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !quiet {
		ui.PrintInfo("Listening on", cfg.Server.Addr)
		ui.PrintInfo("Output directory", cfg.Output.Directory)
	}
	return srv.Run(ctx)
}
