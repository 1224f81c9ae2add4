package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"wbscraper/pkg/config"
	"wbscraper/pkg/models"
	"wbscraper/pkg/ui"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage wbscraper configuration files.

Configuration is layered, highest priority first:
  - Command line flags
  - Environment variables (WBSCRAPER_*)
  - .env in the working directory and ~/.wbscraper.env
  - Configuration file
  - Default values`,
}

// initCmd represents the config init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an example configuration file",
	Long: `Create an example configuration file with all available options.

The file is created as '.wbscraper.yaml' in the current directory unless a
different path is given with --config.`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

// showCmd represents the config show command
var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long: `Show the configuration after every source has been applied.

The session cookie is masked.`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

// validateCmd represents the config validate command
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	Long: `Validate the configuration for syntax errors and invalid values.

This command checks:
  - YAML syntax
  - Value ranges and date formats
  - That the output and log directories can be created`,
	Args: cobra.NoArgs,
	RunE: runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(initCmd)
	configCmd.AddCommand(showCmd)
	configCmd.AddCommand(validateCmd)
}

const exampleConfig = `# wbscraper configuration
#
# Every key can also be set through a WBSCRAPER_* environment variable, for
# example WBSCRAPER_USER_ID, WBSCRAPER_MAX_PAGES or WBSCRAPER_COOKIE.

# The account and window to collect
target:
  # Numeric Weibo user id
  user_id: ""
  # Display name used in reports and file names
  user_name: ""
  # Inclusive day range, YYYY-MM-DD
  start_date: ""
  end_date: ""
  # Keep only posts containing at least one keyword (case-insensitive)
  keywords: []
  # Listing pages to fetch at most
  max_pages: 10

# How the API is called
request:
  # Pause between listing pages
  delay: 2s
  timeout: 30s
  max_retries: 3
  retry_delay: 2s
  retry_backoff: constant   # or exponential
  user_agent: ""
  insecure_skip_verify: true
  # Optional session cookie; prefer 'wbscraper auth login'
  cookie: ""

# What is written and where
output:
  directory: weibo_output
  download_images: true
  full_text: true
  save_raw_data: false
  create_archive: true

logging:
  # debug, info, warn, error, disabled
  level: info
  # Optional log file, in addition to the console
  file: ""

# Web front end ('wbscraper serve')
server:
  addr: ":8080"
  workers: 1
  queue_size: 16
  task_retention: 1h
`

func runConfigInit(cmd *cobra.Command, args []string) error {
	configPath := configFile
	if configPath == "" {
		configPath = ".wbscraper.yaml"
	}

	if _, err := os.Stat(configPath); err == nil {
		fmt.Println("\nTo overwrite, first remove the existing file:")
		fmt.Printf("  rm %s\n", configPath)
		return fmt.Errorf("configuration file already exists: %s", configPath)
	}

	if dir := filepath.Dir(configPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	if err := os.WriteFile(configPath, []byte(exampleConfig), 0600); err != nil {
		return fmt.Errorf("failed to create configuration file: %w", err)
	}

	ui.PrintSuccess("Configuration file created: " + configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("1. Fill in target.user_id, user_name and the date range")
	fmt.Println("2. Run 'wbscraper config validate' to check the configuration")
	fmt.Println("3. Start a crawl with 'wbscraper scrape <user_id>'")
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	display := *cfg
	display.Request.Cookie = maskSecret(display.Request.Cookie)

	data, err := yaml.Marshal(&display)
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}

	ui.PrintHighlight("Current Configuration")
	fmt.Println()
	fmt.Print(string(data))

	fmt.Println("\nConfiguration sources (in order of priority):")
	fmt.Println("1. Command line flags")
	fmt.Println("2. Environment variables (WBSCRAPER_*)")
	fmt.Println("3. .env files")
	switch path := resolvedConfigFile(); path {
	case "":
		fmt.Println("4. Configuration file: (none found)")
	default:
		fmt.Printf("4. Configuration file: %s\n", path)
	}
	fmt.Println("5. Default values")
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	path := resolvedConfigFile()
	if path == "" {
		ui.PrintWarning("No configuration file found, validating defaults and environment")
	} else {
		ui.PrintInfo("Validating configuration", path)
	}

	cfg, err := config.Load(path, nil)
	if err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	var problems []error
	var warnings []string

	if cfg.Target.UserID == "" {
		warnings = append(warnings, "target.user_id is not set; pass it to 'scrape'")
	}
	if cfg.Target.StartDate != "" && cfg.Target.EndDate != "" {
		if _, err := models.NewDateRange(cfg.Target.StartDate, cfg.Target.EndDate); err != nil {
			problems = append(problems, err)
		}
	}
	if err := os.MkdirAll(cfg.Output.Directory, 0755); err != nil {
		problems = append(problems, fmt.Errorf("cannot create output directory: %w", err))
	}
	if cfg.Logging.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Logging.File), 0755); err != nil {
			problems = append(problems, fmt.Errorf("cannot create log directory: %w", err))
		}
	}

	if len(problems) > 0 {
		ui.PrintError("Configuration has errors:")
		for _, p := range problems {
			fmt.Printf("  - %v\n", p)
		}
		return errors.Join(problems...)
	}

	if len(warnings) > 0 {
		ui.PrintWarning("Configuration warnings:")
		for _, w := range warnings {
			fmt.Printf("  - %s\n", w)
		}
		fmt.Println()
	}

	ui.PrintSuccess("Configuration is valid")

	fmt.Println("\nConfiguration summary:")
	fmt.Printf("  Output directory: %s\n", cfg.Output.Directory)
	fmt.Printf("  Max pages: %d\n", cfg.Target.MaxPages)
	fmt.Printf("  Page delay: %s\n", cfg.Request.Delay)
	fmt.Printf("  Max retries: %d\n", cfg.Request.MaxRetries)
	fmt.Printf("  Images: %t, full text: %t, archive: %t\n", cfg.Output.DownloadImages, cfg.Output.FullText, cfg.Output.CreateArchive)
	fmt.Printf("  Log level: %s\n", cfg.Logging.Level)
	return nil
}

func resolvedConfigFile() string {
	if configFile != "" {
		return configFile
	}
	return config.FindConfigFile()
}

func maskSecret(s string) string {
	switch {
	case s == "":
		return ""
	case len(s) <= 8:
		return "***"
	default:
		return s[:4] + "..." + s[len(s)-4:]
	}
}
