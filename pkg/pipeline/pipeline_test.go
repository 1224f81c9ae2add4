package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"wbscraper/pkg/config"
	"wbscraper/pkg/dataset"
	"wbscraper/pkg/logger"
	"wbscraper/pkg/metrics"
	"wbscraper/pkg/models"
	"wbscraper/pkg/weibo"
)

const postTime = "Thu Apr 24 18:05:55 +0800 2025"

var fixedNow = time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)

type fakeWeibo struct {
	*httptest.Server
	mu    sync.Mutex
	pages map[string]string
}

func (f *fakeWeibo) card(id, text, pics string) string {
	return fmt.Sprintf(`{"card_type":9,"mblog":{"id":%q,"created_at":%q,"text":%q,"reposts_count":1200,"source":"iPhone","pics":[%s]}}`, id, postTime, text, pics)
}

func (f *fakeWeibo) pic(name string) string {
	return fmt.Sprintf(`{"large":{"url":"%s/img/%s"}}`, f.URL, name)
}

func newFakeWeibo(t *testing.T) *fakeWeibo {
	f := &fakeWeibo{pages: map[string]string{}}
	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == weibo.ListingEndpoint:
			f.mu.Lock()
			body, ok := f.pages[r.URL.Query().Get("page")]
			f.mu.Unlock()
			if !ok {
				body = `{"ok":1,"data":{"cards":[]}}`
			}
			w.Write([]byte(body))
		case r.URL.Path == weibo.LongTextEndpoint:
			http.Error(w, "gone", http.StatusInternalServerError)
		case strings.HasPrefix(r.URL.Path, "/img/missing"):
			http.NotFound(w, r)
		case strings.HasPrefix(r.URL.Path, "/img/"):
			w.Write([]byte{0xff, 0xd8, 0xff, 0xe0})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(f.Close)
	return f
}

func (f *fakeWeibo) setPage(n int, cards ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pages[fmt.Sprint(n)] = `{"ok":1,"data":{"cards":[` + strings.Join(cards, ",") + `]}}`
}

func newPipeline(f *fakeWeibo, m *metrics.Collector) *Pipeline {
	return New(Options{
		BaseURL:    f.URL,
		MaxRetries: 1,
		Logger:     logger.NewNopLogger(),
		Metrics:    m,
		Now:        func() time.Time { return fixedNow },
	})
}

func baseParams(out string) models.Params {
	return models.Params{
		UserID:         "1001",
		UserName:       "tester",
		StartDate:      "2025-04-01",
		EndDate:        "2025-04-30",
		MaxPages:       5,
		OutputDir:      out,
		DownloadImages: true,
		FullText:       true,
		SaveRawData:    true,
		CreateArchive:  true,
	}
}

func TestRunWritesEveryOutput(t *testing.T) {
	f := newFakeWeibo(t)
	f.setPage(1, f.card("1", "first", f.pic("a.jpg")), f.card("2", "second", ""))
	f.setPage(2, f.card("3", "third 全文", f.pic("b.jpg")+","+f.pic("missing.jpg")), f.card("4", "fourth", ""))

	out := t.TempDir()
	reg := prometheus.NewRegistry()
	var mu sync.Mutex
	var updates []int
	res, err := newPipeline(f, metrics.NewCollector(reg)).Run(context.Background(), baseParams(out), func(p int, s string) {
		mu.Lock()
		updates = append(updates, p)
		mu.Unlock()
	})
	require.NoError(t, err)

	assert.Equal(t, 4, res.WeiboCount)
	assert.Equal(t, 3, res.Stats.PagesProcessed)
	assert.Equal(t, 2, res.ImageCount)
	assert.Equal(t, "empty_page", res.StopReason)
	assert.Equal(t, filepath.Join(out, "reports", "tester_posts_20250401-20250430.md"), res.MarkdownFile)
	assert.Equal(t, filepath.Join(out, "reports", "tester_posts_20250401-20250430.html"), res.HTMLFile)
	assert.Equal(t, filepath.Join(out, "tester_20250401-20250430.zip"), res.CompletePackage)
	assert.Equal(t, filepath.Join(out, "data", "tester_posts_20250401-20250430.json"), res.DataFile)

	md, err := os.ReadFile(res.MarkdownFile)
	require.NoError(t, err)
	assert.Contains(t, string(md), "![Image 1](../images/1_1.jpg)")
	assert.Contains(t, string(md), "![Image 1](../images/3_1.jpg)")
	assert.NotContains(t, string(md), "3_2.jpg")
	// truncated text survives the failed expansion
	assert.Contains(t, string(md), "third 全文")
	assert.Contains(t, string(md), "- Reposts: 1,200")
	assert.Contains(t, string(md), "- **Generated**: 2025-05-01 12:00:00")

	zr, err := zip.OpenReader(res.CompletePackage)
	require.NoError(t, err)
	defer zr.Close()
	var names []string
	for _, zf := range zr.File {
		names = append(names, zf.Name)
	}
	assert.ElementsMatch(t, []string{
		"reports/tester_posts_20250401-20250430.md",
		"reports/tester_posts_20250401-20250430.html",
		"images/1_1.jpg",
		"images/3_1.jpg",
	}, names)

	ds, err := dataset.NewStore(filepath.Join(out, "data"), logger.NewNopLogger())
	require.NoError(t, err)
	dump, err := ds.Load("tester_posts_20250401-20250430")
	require.NoError(t, err)
	assert.Equal(t, 4, dump.Total)

	require.NotEmpty(t, updates)
	assert.Equal(t, 100, updates[len(updates)-1])
	for i := 1; i < len(updates); i++ {
		assert.GreaterOrEqual(t, updates[i], updates[i-1])
	}
}

func TestRunWithoutPosts(t *testing.T) {
	f := newFakeWeibo(t)
	out := t.TempDir()
	params := baseParams(out)
	params.Keywords = []string{"launch"}
	params.SaveRawData = false
	params.CreateArchive = false

	res, err := newPipeline(f, nil).Run(context.Background(), params, nil)
	require.NoError(t, err)

	assert.Equal(t, 0, res.WeiboCount)
	assert.Empty(t, res.CompletePackage)
	assert.Empty(t, res.DataFile)
	assert.True(t, strings.HasSuffix(res.MarkdownFile, "tester_posts_20250401-20250430_launch.md"))

	md, err := os.ReadFile(res.MarkdownFile)
	require.NoError(t, err)
	assert.Contains(t, string(md), "_No posts matched._")
	_, err = os.Stat(res.HTMLFile)
	assert.NoError(t, err)
}

func TestRunImagesDisabled(t *testing.T) {
	f := newFakeWeibo(t)
	f.setPage(1, f.card("1", "first", f.pic("a.jpg")))
	out := t.TempDir()
	params := baseParams(out)
	params.DownloadImages = false
	params.MaxPages = 1

	res, err := newPipeline(f, nil).Run(context.Background(), params, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.WeiboCount)
	assert.Equal(t, 0, res.ImageCount)

	entries, err := os.ReadDir(filepath.Join(out, "images"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRunRejectsMissingField(t *testing.T) {
	params := baseParams(t.TempDir())
	params.UserName = ""

	var pct []int
	var last string
	_, err := New(Options{Logger: logger.NewNopLogger()}).Run(context.Background(), params, func(p int, s string) {
		pct = append(pct, p)
		last = s
	})
	require.Error(t, err)
	assert.True(t, IsValidation(err))
	assert.Contains(t, err.Error(), "user_name is required")
	assert.Equal(t, []int{100}, pct)
	assert.Equal(t, "failed: validation error: user_name is required", last)
}

func TestRunCancelled(t *testing.T) {
	f := newFakeWeibo(t)
	f.setPage(1, f.card("1", "first", ""))
	f.setPage(2, f.card("2", "second", ""))

	ctx, cancel := context.WithCancel(context.Background())
	params := baseParams(t.TempDir())
	params.Delay = time.Hour

	var last string
	_, err := newPipeline(f, nil).Run(ctx, params, func(p int, s string) {
		last = s
		if s == "fetching page 2" {
			cancel()
		}
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cancelled")
	assert.True(t, strings.HasPrefix(last, "failed"))
}

func TestParamsFromConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Target.UserID = "9"
	cfg.Target.Keywords = []string{"a"}
	cfg.Output.Directory = "/tmp/x"

	p := ParamsFromConfig(cfg)
	assert.Equal(t, "9", p.UserID)
	assert.Equal(t, []string{"a"}, p.Keywords)
	assert.Equal(t, 10, p.MaxPages)
	assert.Equal(t, 2*time.Second, p.Delay)
	assert.True(t, p.DownloadImages)

	o := OptionsFromConfig(cfg, nil)
	assert.Equal(t, 3, o.MaxRetries)
	assert.True(t, o.InsecureSkipVerify)
	assert.Equal(t, "constant", o.RetryBackoff)
}

func TestRetryBackoffFromOptions(t *testing.T) {
	p := New(Options{RetryDelay: 2 * time.Second, Logger: logger.NewNopLogger()})
	cfg, err := p.retryConfig()
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, cfg.Backoff.NextDelay(1))
	assert.Equal(t, 2*time.Second, cfg.Backoff.NextDelay(2))

	p = New(Options{RetryDelay: time.Second, RetryBackoff: "exponential", Logger: logger.NewNopLogger()})
	cfg, err = p.retryConfig()
	require.NoError(t, err)
	assert.Greater(t, cfg.Backoff.NextDelay(3), 3*time.Second)

	p = New(Options{RetryBackoff: "sometimes", Logger: logger.NewNopLogger()})
	_, err = p.Run(context.Background(), baseParams(t.TempDir()), nil)
	require.Error(t, err)
	assert.True(t, IsValidation(err))
}
