package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"wbscraper/internal/server"
	"wbscraper/pkg/config"
	"wbscraper/pkg/logger"
	"wbscraper/pkg/ui"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
	noColor    bool
	quiet      bool
	verbose    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "wbscraper",
	Short: "Collect Weibo posts into Markdown and HTML reports",
	Long: `wbscraper collects the posts of one Weibo account within a date range,
optionally filtered by keywords, and writes them as a Markdown report, a
self-contained HTML report and a zip package with the downloaded images.

It can run once from the command line or serve a small web front end that
queues crawls and reports their progress.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		ui.NoColor = noColor
		server.Version = version

		if quiet || cmd.Name() == "help" || cmd.Name() == "version" {
			return
		}
		if cmd.Name() == "scrape" || cmd.Name() == "serve" {
			ui.PrintLogo()
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		ui.PrintError("Error", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is ./.wbscraper.yaml or ~/.config/wbscraper/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error, disabled)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress everything except errors and the final summary")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "show info logs alongside progress")

	rootCmd.SetVersionTemplate(`wbscraper {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// loadConfig loads the configuration with overrides and sets up the global
// logger. defaultLevel applies when neither the flag nor the config file
// picked a level.
func loadConfig(overrides *config.Overrides, defaultLevel string) (*config.Config, error) {
	if overrides == nil {
		overrides = &config.Overrides{}
	}
	switch {
	case logLevel != "":
		overrides.LogLevel = &logLevel
	case verbose:
		level := "info"
		overrides.LogLevel = &level
	case quiet:
		level := "error"
		overrides.LogLevel = &level
	}

	cfg, err := config.Load(configFile, overrides)
	if err != nil {
		return nil, err
	}
	if overrides.LogLevel == nil && defaultLevel != "" && cfg.Logging.Level == config.DefaultConfig().Logging.Level {
		cfg.Logging.Level = defaultLevel
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, nil
}
