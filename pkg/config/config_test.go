package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 10, cfg.Target.MaxPages)
	assert.Equal(t, 2*time.Second, cfg.Request.Delay)
	assert.Equal(t, 3, cfg.Request.MaxRetries)
	assert.Equal(t, 2*time.Second, cfg.Request.RetryDelay)
	assert.Equal(t, "constant", cfg.Request.RetryBackoff)
	assert.True(t, cfg.Request.InsecureSkipVerify)
	assert.Equal(t, DefaultUserAgent, cfg.Request.UserAgent)
	assert.Equal(t, "weibo_output", cfg.Output.Directory)
	assert.True(t, cfg.Output.DownloadImages)
	assert.True(t, cfg.Output.FullText)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, 1, cfg.Server.Workers)

	require.NoError(t, cfg.Validate())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("WBSCRAPER_USER_ID", "1317335037")
	t.Setenv("WBSCRAPER_USER_NAME", "tester")
	t.Setenv("WBSCRAPER_KEYWORDS", "launch, , Day ")
	t.Setenv("WBSCRAPER_MAX_PAGES", "4")
	t.Setenv("WBSCRAPER_REQUEST_DELAY", "1.5")
	t.Setenv("WBSCRAPER_TIMEOUT", "10s")
	t.Setenv("WBSCRAPER_DOWNLOAD_IMAGES", "false")
	t.Setenv("WBSCRAPER_LOG_LEVEL", "debug")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, "1317335037", cfg.Target.UserID)
	assert.Equal(t, "tester", cfg.Target.UserName)
	assert.Equal(t, []string{"launch", "Day"}, cfg.Target.Keywords)
	assert.Equal(t, 4, cfg.Target.MaxPages)
	assert.Equal(t, 1500*time.Millisecond, cfg.Request.Delay)
	assert.Equal(t, 10*time.Second, cfg.Request.Timeout)
	assert.False(t, cfg.Output.DownloadImages)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadFromEnvRejectsGarbage(t *testing.T) {
	t.Setenv("WBSCRAPER_MAX_PAGES", "many")

	cfg := DefaultConfig()
	err := cfg.LoadFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "WBSCRAPER_MAX_PAGES")
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
target:
  user_id: "42"
  user_name: demo
  start_date: "2025-03-01"
  end_date: "2025-09-01"
  keywords: [launch]
  max_pages: 3
request:
  delay: 500ms
output:
  directory: /tmp/out
  save_raw_data: false
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromFile(path))

	assert.Equal(t, "42", cfg.Target.UserID)
	assert.Equal(t, []string{"launch"}, cfg.Target.Keywords)
	assert.Equal(t, 3, cfg.Target.MaxPages)
	assert.Equal(t, 500*time.Millisecond, cfg.Request.Delay)
	assert.Equal(t, "/tmp/out", cfg.Output.Directory)
	assert.False(t, cfg.Output.SaveRawData)
	// untouched keys keep their defaults
	assert.True(t, cfg.Output.DownloadImages)
}

func TestLoadFromFileMissing(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"zero pages", func(c *Config) { c.Target.MaxPages = 0 }, "max pages"},
		{"negative delay", func(c *Config) { c.Request.Delay = -time.Second }, "request delay"},
		{"no retries", func(c *Config) { c.Request.MaxRetries = 0 }, "max retries"},
		{"exponential backoff", func(c *Config) { c.Request.RetryBackoff = "exponential" }, ""},
		{"bad backoff", func(c *Config) { c.Request.RetryBackoff = "random" }, "retry backoff"},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }, "invalid log level"},
		{"bad date", func(c *Config) { c.Target.StartDate = "03/01/2025" }, "start date"},
		{"no output", func(c *Config) { c.Output.Directory = "" }, "output directory"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestApplyOverrides(t *testing.T) {
	cfg := DefaultConfig()
	pages := 2
	delay := 100 * time.Millisecond
	noImages := false
	out := "/data/run"
	empty := ""
	raw := false
	cookie := "SUB=abc"

	cfg.Apply(&Overrides{
		MaxPages:       &pages,
		Delay:          &delay,
		DownloadImages: &noImages,
		OutputDir:      &out,
		UserName:       &empty,
		SaveRawData:    &raw,
		Cookie:         &cookie,
		Keywords:       []string{"a", "b"},
	})

	assert.Equal(t, 2, cfg.Target.MaxPages)
	assert.Equal(t, delay, cfg.Request.Delay)
	assert.False(t, cfg.Output.DownloadImages)
	assert.Equal(t, "/data/run", cfg.Output.Directory)
	assert.Equal(t, "", cfg.Target.UserName)
	assert.Equal(t, []string{"a", "b"}, cfg.Target.Keywords)
	assert.False(t, cfg.Output.SaveRawData)
	assert.Equal(t, "SUB=abc", cfg.Request.Cookie)

	cfg.Apply(nil)
	assert.Equal(t, 2, cfg.Target.MaxPages)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultConfig()
	cfg.Target.UserID = "7"
	require.NoError(t, cfg.Save(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded := DefaultConfig()
	require.NoError(t, loaded.LoadFromFile(path))
	assert.Equal(t, "7", loaded.Target.UserID)
	assert.Equal(t, cfg.Request.Delay, loaded.Request.Delay)
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("target:\n  max_pages: 5\n  user_name: file\n"), 0644))
	t.Setenv("WBSCRAPER_USER_NAME", "env")

	pages := 7
	cfg, err := Load(path, &Overrides{MaxPages: &pages})
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Target.MaxPages)
	assert.Equal(t, "env", cfg.Target.UserName)
}
