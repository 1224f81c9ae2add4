package report

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"wbscraper/pkg/logger"
	"wbscraper/pkg/models"
	"wbscraper/pkg/storage"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

type memImages map[string][]byte

func (m memImages) Exists(name string) bool {
	_, ok := m[name]
	return ok
}

func (m memImages) Read(name string) ([]byte, error) {
	if b, ok := m[name]; ok {
		return b, nil
	}
	return nil, os.ErrNotExist
}

func samplePosts() []*models.Post {
	ts := time.Date(2025, 4, 24, 18, 5, 55, 0, time.FixedZone("CST", 8*3600))
	return []*models.Post{
		{
			ID:           "5001",
			CreatedAt:    "Thu Apr 24 18:05:55 +0800 2025",
			ParsedDate:   &ts,
			Text:         "Launch Day\nsecond line",
			SourceClient: "iPhone 16",
			URL:          "https://m.weibo.cn/detail/5001",
			Counts:       models.Counts{Reposts: 1024, Comments: 7, Likes: 1234567},
			Images: []models.ImageRef{
				{SourceURL: "https://img/a.png", LocalFilename: "5001_1.png", Origin: models.OriginPost},
				{SourceURL: "https://img/b.jpg", Origin: models.OriginPost},
				{SourceURL: "https://img/c.jpg", LocalFilename: "5001_3.jpg", Origin: models.OriginPost},
			},
			Repost: &models.RepostSummary{ID: "4000", AuthorName: "origin", Text: "quoted\ntext"},
		},
		{
			ID:        "5002",
			CreatedAt: "3 hours ago",
			Text:      "<b>not markup</b>",
			URL:       "https://m.weibo.cn/detail/5002",
		},
	}
}

func sampleMeta() Meta {
	r, _ := models.NewDateRange("2025-04-01", "2025-04-30")
	return Meta{
		UserID:      "42",
		UserName:    "tester",
		Range:       r,
		Keywords:    []string{"launch"},
		Stats:       models.CrawlStats{KeywordMatches: 2, PagesProcessed: 3},
		GeneratedAt: time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC),
	}
}

func TestMarkdownIsDeterministic(t *testing.T) {
	r := NewRenderer(memImages{"5001_1.png": pngHeader, "5001_3.jpg": []byte{0xff, 0xd8, 0xff}})
	first := r.Markdown(samplePosts(), sampleMeta())
	second := r.Markdown(samplePosts(), sampleMeta())
	assert.Equal(t, first, second)
}

func TestMarkdownContent(t *testing.T) {
	r := NewRenderer(memImages{"5001_1.png": pngHeader, "5001_3.jpg": []byte{0xff, 0xd8, 0xff}})
	md := string(r.Markdown(samplePosts(), sampleMeta()))

	assert.Contains(t, md, "# tester - Weibo Posts Report")
	assert.Contains(t, md, "**Date range**: 2025-04-01 to 2025-04-30")
	assert.Contains(t, md, "**Keywords**: launch")
	assert.Contains(t, md, "- **User**: tester (42)")
	assert.Contains(t, md, "- **Posts**: 2")
	assert.Contains(t, md, "- **Images**: 2")
	assert.Contains(t, md, "- **Keyword matches**: 2")
	assert.Contains(t, md, "- **Generated**: 2025-05-01 09:00:00")

	assert.Contains(t, md, "### Post 1")
	assert.Contains(t, md, "**Published**: Apr 24, 2025")
	assert.Contains(t, md, "**Link**: https://m.weibo.cn/detail/5001")
	assert.Contains(t, md, "**ID**: 5001")
	assert.Contains(t, md, "Launch Day\nsecond line")
	assert.Contains(t, md, "> **@origin**: quoted\n> text")
	assert.Contains(t, md, "- Reposts: 1,024")
	assert.Contains(t, md, "- Likes: 1,234,567")
	assert.Contains(t, md, "- Source: iPhone 16")

	assert.Contains(t, md, "### Post 2")
	assert.Contains(t, md, "**Published**: 3 hours ago")
	assert.Less(t, strings.Index(md, "### Post 1"), strings.Index(md, "### Post 2"))
}

func TestMarkdownOmitsOnlyMissingImages(t *testing.T) {
	r := NewRenderer(memImages{"5001_1.png": pngHeader, "5001_3.jpg": []byte{0xff, 0xd8, 0xff}})
	md := string(r.Markdown(samplePosts(), sampleMeta()))

	assert.Contains(t, md, "![Image 1](../images/5001_1.png)")
	assert.Contains(t, md, "![Image 3](../images/5001_3.jpg)")
	assert.NotContains(t, md, "Image 2")
	assert.Equal(t, 2, strings.Count(md, "![Image"))
}

func TestMarkdownChecksDiskNotReference(t *testing.T) {
	// the reference claims a file but the store does not have it
	r := NewRenderer(memImages{})
	md := string(r.Markdown(samplePosts(), sampleMeta()))
	assert.NotContains(t, md, "![Image")
	assert.Contains(t, md, "- **Images**: 0")
}

func TestMarkdownWithoutPosts(t *testing.T) {
	meta := sampleMeta()
	meta.Keywords = nil
	md := string(NewRenderer(nil).Markdown(nil, meta))

	assert.Contains(t, md, "- **Posts**: 0")
	assert.Contains(t, md, "_No posts matched._")
	assert.NotContains(t, md, "Keyword")
}

func TestHTMLEmbedsImages(t *testing.T) {
	r := NewRenderer(memImages{"5001_1.png": pngHeader, "5001_3.jpg": []byte{0xff, 0xd8, 0xff}})
	out, err := r.HTML(samplePosts(), sampleMeta())
	require.NoError(t, err)
	html := string(out)

	assert.Contains(t, html, "data:image/png;base64,"+base64.StdEncoding.EncodeToString(pngHeader))
	assert.Contains(t, html, "data:image/jpeg;base64,")
	assert.Equal(t, 2, strings.Count(html, "<img "))
	assert.NotContains(t, html, "../images/")
	assert.Contains(t, html, "&lt;b&gt;not markup&lt;/b&gt;")
	assert.Contains(t, html, "Likes 1,234,567")
	assert.Contains(t, html, "Apr 24, 2025")

	again, err := r.HTML(samplePosts(), sampleMeta())
	require.NoError(t, err)
	assert.Equal(t, out, again)
}

func TestHTMLWithoutPosts(t *testing.T) {
	out, err := NewRenderer(nil).HTML(nil, sampleMeta())
	require.NoError(t, err)
	assert.Contains(t, string(out), "No posts matched.")
}

func TestHumanDateUsesPostZone(t *testing.T) {
	// 23:30 UTC on Apr 30 is already May 1 in UTC+8
	ts := time.Date(2025, 5, 1, 7, 30, 0, 0, time.FixedZone("", 8*3600))
	assert.Equal(t, "May 1, 2025", HumanDate(&models.Post{ParsedDate: &ts}))
	assert.Equal(t, "yesterday", HumanDate(&models.Post{CreatedAt: "yesterday"}))
}

func TestNames(t *testing.T) {
	r, _ := models.NewDateRange("2025-04-01", "2025-04-30")

	assert.Equal(t, "tester_posts_20250401-20250430", BaseName("tester", r, nil))
	assert.Equal(t, "tester_posts_20250401-20250430_a_b_c", BaseName("tester", r, []string{"a", "b", "c", "d"}))
	assert.Equal(t, "my_name_posts_20250401-20250430_x_y", BaseName("my/name", r, []string{"x y"}))
	assert.Equal(t, "tester_20250401-20250430.zip", ArchiveName("tester", r))
}

func TestWriteWithImageStore(t *testing.T) {
	out := t.TempDir()
	store, err := storage.NewImageStore(filepath.Join(out, "images"), nil, logger.NewNopLogger())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(out, "images", "5001_1.png"), pngHeader, 0644))

	rendered, err := NewRenderer(store).Render(samplePosts(), sampleMeta())
	require.NoError(t, err)

	paths, err := rendered.Write(filepath.Join(out, "reports"), "tester_posts")
	require.NoError(t, err)

	md, err := os.ReadFile(paths.Markdown)
	require.NoError(t, err)
	assert.Contains(t, string(md), "![Image 1](../images/5001_1.png)")
	assert.NotContains(t, string(md), "5001_3.jpg")

	_, err = os.Stat(paths.HTML)
	assert.NoError(t, err)
	assert.Equal(t, filepath.Join(out, "reports", "tester_posts.html"), paths.HTML)
}
