package report

import (
	"bytes"
	"fmt"
	"strings"

	"wbscraper/pkg/models"
)

// ImageLinkPrefix is how reports under reports/ reach the image directory
const ImageLinkPrefix = "../images/"

// Markdown renders the report. The output depends only on its inputs.
func (r *Renderer) Markdown(posts []*models.Post, meta Meta) []byte {
	var b bytes.Buffer

	fmt.Fprintf(&b, "# %s - Weibo Posts Report\n\n", meta.UserName)
	fmt.Fprintf(&b, "**Date range**: %s\n", rangeLabel(meta.Range))
	if len(meta.Keywords) > 0 {
		fmt.Fprintf(&b, "**Keywords**: %s\n", strings.Join(meta.Keywords, ", "))
	}
	b.WriteString("\n## Summary\n\n")
	fmt.Fprintf(&b, "- **User**: %s", meta.UserName)
	if meta.UserID != "" {
		fmt.Fprintf(&b, " (%s)", meta.UserID)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "- **Posts**: %s\n", r.count(int64(len(posts))))
	fmt.Fprintf(&b, "- **Images**: %s\n", r.count(int64(r.storedImages(posts))))
	if len(meta.Keywords) > 0 {
		fmt.Fprintf(&b, "- **Keyword matches**: %s\n", r.count(int64(meta.Stats.KeywordMatches)))
	}
	fmt.Fprintf(&b, "- **Pages processed**: %d\n", meta.Stats.PagesProcessed)
	if meta.Stats.UnparsedDates > 0 {
		fmt.Fprintf(&b, "- **Undated posts**: %d\n", meta.Stats.UnparsedDates)
	}
	if !meta.GeneratedAt.IsZero() {
		fmt.Fprintf(&b, "- **Generated**: %s\n", meta.GeneratedAt.Format("2006-01-02 15:04:05"))
	}
	b.WriteString("\n---\n\n")

	if len(posts) == 0 {
		b.WriteString("_No posts matched._\n")
		return b.Bytes()
	}

	b.WriteString("## Posts\n\n")
	for i, p := range posts {
		r.markdownPost(&b, i+1, p)
	}
	return b.Bytes()
}

func (r *Renderer) markdownPost(b *bytes.Buffer, n int, p *models.Post) {
	fmt.Fprintf(b, "### Post %d\n\n", n)
	fmt.Fprintf(b, "**Published**: %s\n", HumanDate(p))
	fmt.Fprintf(b, "**Link**: %s\n", p.URL)
	fmt.Fprintf(b, "**ID**: %s\n\n", p.ID)

	if text := strings.TrimSpace(p.Text); text != "" {
		fmt.Fprintf(b, "%s\n\n", text)
	}

	if rt := p.Repost; rt != nil {
		b.WriteString("**Repost**:\n")
		fmt.Fprintf(b, "> **@%s**: %s\n\n", rt.AuthorName, quote(rt.Text))
	}

	for i, img := range p.AllImages() {
		if r.hasImage(img) {
			fmt.Fprintf(b, "![Image %d](%s%s)\n\n", i+1, ImageLinkPrefix, img.LocalFilename)
		}
	}

	b.WriteString("**Engagement**:\n")
	fmt.Fprintf(b, "- Reposts: %s\n", r.count(p.Counts.Reposts))
	fmt.Fprintf(b, "- Comments: %s\n", r.count(p.Counts.Comments))
	fmt.Fprintf(b, "- Likes: %s\n", r.count(p.Counts.Likes))
	if p.SourceClient != "" {
		fmt.Fprintf(b, "- Source: %s\n", p.SourceClient)
	}
	b.WriteString("\n---\n\n")
}

// quote continues a blockquote across the lines of s
func quote(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), "\n", "\n> ")
}
