package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DateLayout is the calendar date format accepted for start and end dates
const DateLayout = "2006-01-02"

// Config holds all configuration options for the scraper
type Config struct {
	Target  TargetConfig  `yaml:"target" json:"target"`
	Request RequestConfig `yaml:"request" json:"request"`
	Output  OutputConfig  `yaml:"output" json:"output"`
	Logging LoggingConfig `yaml:"logging" json:"logging"`
	Server  ServerConfig  `yaml:"server" json:"server"`
}

// TargetConfig names the account and window to collect
type TargetConfig struct {
	UserID    string   `yaml:"user_id" json:"user_id"`
	UserName  string   `yaml:"user_name" json:"user_name"`
	StartDate string   `yaml:"start_date" json:"start_date"`
	EndDate   string   `yaml:"end_date" json:"end_date"`
	Keywords  []string `yaml:"keywords" json:"keywords"`
	MaxPages  int      `yaml:"max_pages" json:"max_pages"`
}

// RequestConfig controls how the upstream API is called
type RequestConfig struct {
	Delay              time.Duration `yaml:"delay" json:"delay"`
	Timeout            time.Duration `yaml:"timeout" json:"timeout"`
	MaxRetries         int           `yaml:"max_retries" json:"max_retries"`
	RetryDelay         time.Duration `yaml:"retry_delay" json:"retry_delay"`
	RetryBackoff       string        `yaml:"retry_backoff" json:"retry_backoff"`
	UserAgent          string        `yaml:"user_agent" json:"user_agent"`
	InsecureSkipVerify bool          `yaml:"insecure_skip_verify" json:"insecure_skip_verify"`
	BaseURL            string        `yaml:"base_url" json:"base_url"`
	Cookie             string        `yaml:"cookie" json:"cookie"`
}

// OutputConfig controls what is written and where
type OutputConfig struct {
	Directory      string `yaml:"directory" json:"directory"`
	DownloadImages bool   `yaml:"download_images" json:"download_images"`
	FullText       bool   `yaml:"full_text" json:"full_text"`
	SaveRawData    bool   `yaml:"save_raw_data" json:"save_raw_data"`
	CreateArchive  bool   `yaml:"create_archive" json:"create_archive"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// ServerConfig holds settings for the web front end
type ServerConfig struct {
	Addr          string        `yaml:"addr" json:"addr"`
	Workers       int           `yaml:"workers" json:"workers"`
	QueueSize     int           `yaml:"queue_size" json:"queue_size"`
	TaskRetention time.Duration `yaml:"task_retention" json:"task_retention"`
}

// DefaultUserAgent mimics the mobile client the listing API expects
const DefaultUserAgent = "Mozilla/5.0 (iPhone; CPU iPhone OS 15_0 like Mac OS X) AppleWebKit/605.1.15"

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Target: TargetConfig{
			MaxPages: 10,
		},
		Request: RequestConfig{
			Delay:              2 * time.Second,
			Timeout:            30 * time.Second,
			MaxRetries:         3,
			RetryDelay:         2 * time.Second,
			RetryBackoff:       "constant",
			UserAgent:          DefaultUserAgent,
			InsecureSkipVerify: true,
		},
		Output: OutputConfig{
			Directory:      "weibo_output",
			DownloadImages: true,
			FullText:       true,
			SaveRawData:    true,
			CreateArchive:  true,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Server: ServerConfig{
			Addr:          ":8080",
			Workers:       1,
			QueueSize:     16,
			TaskRetention: time.Hour,
		},
	}
}

// LoadFromEnv loads configuration from WBSCRAPER_* environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	setDuration := func(key string, dst *time.Duration) {
		if v := os.Getenv(key); v != "" {
			d, err := parseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}
	setBool := func(key string, dst *bool) {
		if v := os.Getenv(key); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}

	setString("WBSCRAPER_USER_ID", &c.Target.UserID)
	setString("WBSCRAPER_USER_NAME", &c.Target.UserName)
	setString("WBSCRAPER_START_DATE", &c.Target.StartDate)
	setString("WBSCRAPER_END_DATE", &c.Target.EndDate)
	if v := os.Getenv("WBSCRAPER_KEYWORDS"); v != "" {
		c.Target.Keywords = SplitKeywords(v)
	}
	setInt("WBSCRAPER_MAX_PAGES", &c.Target.MaxPages)

	setDuration("WBSCRAPER_REQUEST_DELAY", &c.Request.Delay)
	setDuration("WBSCRAPER_TIMEOUT", &c.Request.Timeout)
	setInt("WBSCRAPER_MAX_RETRIES", &c.Request.MaxRetries)
	setDuration("WBSCRAPER_RETRY_DELAY", &c.Request.RetryDelay)
	setString("WBSCRAPER_RETRY_BACKOFF", &c.Request.RetryBackoff)
	setString("WBSCRAPER_USER_AGENT", &c.Request.UserAgent)
	setString("WBSCRAPER_BASE_URL", &c.Request.BaseURL)
	setString("WBSCRAPER_COOKIE", &c.Request.Cookie)
	setBool("WBSCRAPER_INSECURE_SKIP_VERIFY", &c.Request.InsecureSkipVerify)

	setString("WBSCRAPER_OUTPUT_DIR", &c.Output.Directory)
	setBool("WBSCRAPER_DOWNLOAD_IMAGES", &c.Output.DownloadImages)
	setBool("WBSCRAPER_FULL_TEXT", &c.Output.FullText)

	setString("WBSCRAPER_LOG_LEVEL", &c.Logging.Level)
	setString("WBSCRAPER_LOG_FILE", &c.Logging.File)

	setString("WBSCRAPER_ADDR", &c.Server.Addr)
	setInt("WBSCRAPER_WORKERS", &c.Server.Workers)

	return errors.Join(errs...)
}

// parseDuration accepts Go durations ("1500ms") and bare seconds ("2", "0.5")
func parseDuration(v string) (time.Duration, error) {
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	return time.ParseDuration(v)
}

// SplitKeywords splits a comma separated keyword list, dropping blanks
func SplitKeywords(s string) []string {
	var out []string
	for _, k := range strings.Split(s, ",") {
		if k = strings.TrimSpace(k); k != "" {
			out = append(out, k)
		}
	}
	return out
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = FindConfigFile()
		if path == "" {
			return nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// FindConfigFile searches for a config file in standard locations
func FindConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		".wbscraper.yaml",
		".wbscraper.yml",
		"wbscraper.yaml",
		filepath.Join(home, ".config", "wbscraper", "config.yaml"),
		filepath.Join(home, ".wbscraper.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks settings that every command depends on. Target fields are
// checked per crawl, since the server receives them per request.
func (c *Config) Validate() error {
	var errs []error

	if c.Target.MaxPages <= 0 {
		errs = append(errs, errors.New("max pages must be positive"))
	}
	if c.Request.Delay < 0 {
		errs = append(errs, errors.New("request delay cannot be negative"))
	}
	if c.Request.Timeout <= 0 {
		errs = append(errs, errors.New("request timeout must be positive"))
	}
	if c.Request.MaxRetries < 1 {
		errs = append(errs, errors.New("max retries must be at least 1"))
	}
	switch c.Request.RetryBackoff {
	case "", "constant", "exponential":
	default:
		errs = append(errs, fmt.Errorf("retry backoff %q must be constant or exponential", c.Request.RetryBackoff))
	}
	if c.Output.Directory == "" {
		errs = append(errs, errors.New("output directory is required"))
	}
	if c.Server.Workers <= 0 {
		errs = append(errs, errors.New("server workers must be positive"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "disabled": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Errorf("invalid log level %q", c.Logging.Level))
	}

	for _, d := range []struct{ name, value string }{
		{"start date", c.Target.StartDate},
		{"end date", c.Target.EndDate},
	} {
		if d.value == "" {
			continue
		}
		if _, err := time.Parse(DateLayout, d.value); err != nil {
			errs = append(errs, fmt.Errorf("%s %q is not YYYY-MM-DD", d.name, d.value))
		}
	}

	return errors.Join(errs...)
}

// Save writes the configuration as YAML
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Overrides carries values set explicitly on the command line. Nil fields are
// left alone.
type Overrides struct {
	UserID         *string
	UserName       *string
	StartDate      *string
	EndDate        *string
	Keywords       []string
	MaxPages       *int
	Delay          *time.Duration
	OutputDir      *string
	DownloadImages *bool
	FullText       *bool
	SaveRawData    *bool
	CreateArchive  *bool
	Cookie         *string
	LogLevel       *string
	Addr           *string
	Workers        *int
}

// Apply merges command line overrides into the configuration
func (c *Config) Apply(o *Overrides) {
	if o == nil {
		return
	}
	str := func(src *string, dst *string) {
		if src != nil && *src != "" {
			*dst = *src
		}
	}
	str(o.UserID, &c.Target.UserID)
	str(o.UserName, &c.Target.UserName)
	str(o.StartDate, &c.Target.StartDate)
	str(o.EndDate, &c.Target.EndDate)
	str(o.OutputDir, &c.Output.Directory)
	str(o.Cookie, &c.Request.Cookie)
	str(o.LogLevel, &c.Logging.Level)
	str(o.Addr, &c.Server.Addr)
	if len(o.Keywords) > 0 {
		c.Target.Keywords = o.Keywords
	}
	if o.MaxPages != nil {
		c.Target.MaxPages = *o.MaxPages
	}
	if o.Delay != nil {
		c.Request.Delay = *o.Delay
	}
	if o.DownloadImages != nil {
		c.Output.DownloadImages = *o.DownloadImages
	}
	if o.FullText != nil {
		c.Output.FullText = *o.FullText
	}
	if o.SaveRawData != nil {
		c.Output.SaveRawData = *o.SaveRawData
	}
	if o.CreateArchive != nil {
		c.Output.CreateArchive = *o.CreateArchive
	}
	if o.Workers != nil {
		c.Server.Workers = *o.Workers
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, overrides *Overrides) (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".wbscraper.env"))

	cfg := DefaultConfig()

	if err := cfg.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := cfg.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg.Apply(overrides)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}
