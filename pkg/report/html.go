package report

import (
	"bytes"
	"encoding/base64"
	"html/template"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	errs "wbscraper/pkg/errors"
	"wbscraper/pkg/models"
)

type htmlImage struct {
	Alt string
	Src template.URL
}

type htmlPost struct {
	Number    int
	Published string
	URL       string
	ID        string
	Text      string
	Repost    *models.RepostSummary
	Images    []htmlImage
	Reposts   string
	Comments  string
	Likes     string
	Source    string
}

type htmlPage struct {
	UserName       string
	UserID         string
	Range          string
	Keywords       string
	Posts          []htmlPost
	PostCount      string
	ImageCount     string
	KeywordMatches string
	Pages          int
	Generated      string
}

var pageTemplate = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.UserName}} - Weibo Posts Report</title>
<style>
body { font-family: -apple-system, "Segoe UI", "PingFang SC", "Microsoft YaHei", sans-serif; max-width: 860px; margin: 0 auto; padding: 24px; color: #222; background: #fafafa; }
.summary, .post { background: #fff; border-radius: 8px; padding: 16px 20px; margin-bottom: 20px; box-shadow: 0 1px 3px rgba(0,0,0,.08); }
.meta { color: #666; font-size: 14px; }
.text { white-space: pre-wrap; line-height: 1.6; }
blockquote { border-left: 4px solid #ff8200; margin: 12px 0; padding: 8px 12px; background: #fff7ef; white-space: pre-wrap; }
img { max-width: 100%; border-radius: 4px; margin: 8px 0; display: block; }
.counts { color: #555; font-size: 14px; }
</style>
</head>
<body>
<h1>{{.UserName}} - Weibo Posts Report</h1>
<div class="summary">
<p><strong>Date range</strong>: {{.Range}}</p>
{{- if .Keywords}}
<p><strong>Keywords</strong>: {{.Keywords}}</p>
{{- end}}
<ul>
<li><strong>User</strong>: {{.UserName}}{{if .UserID}} ({{.UserID}}){{end}}</li>
<li><strong>Posts</strong>: {{.PostCount}}</li>
<li><strong>Images</strong>: {{.ImageCount}}</li>
{{- if .Keywords}}
<li><strong>Keyword matches</strong>: {{.KeywordMatches}}</li>
{{- end}}
<li><strong>Pages processed</strong>: {{.Pages}}</li>
{{- if .Generated}}
<li><strong>Generated</strong>: {{.Generated}}</li>
{{- end}}
</ul>
</div>
{{- range .Posts}}
<div class="post" id="post-{{.ID}}">
<h3>Post {{.Number}}</h3>
<p class="meta">{{.Published}} &middot; <a href="{{.URL}}">{{.URL}}</a> &middot; ID {{.ID}}</p>
{{- if .Text}}
<div class="text">{{.Text}}</div>
{{- end}}
{{- with .Repost}}
<blockquote><strong>@{{.AuthorName}}</strong>: {{.Text}}</blockquote>
{{- end}}
{{- range .Images}}
<img src="{{.Src}}" alt="{{.Alt}}">
{{- end}}
<p class="counts">Reposts {{.Reposts}} &middot; Comments {{.Comments}} &middot; Likes {{.Likes}}{{if .Source}} &middot; Source {{.Source}}{{end}}</p>
</div>
{{- else}}
<p><em>No posts matched.</em></p>
{{- end}}
</body>
</html>
`))

// HTML renders a self-contained page with every stored image inlined as a
// data URI
func (r *Renderer) HTML(posts []*models.Post, meta Meta) ([]byte, error) {
	page := htmlPage{
		UserName:       meta.UserName,
		UserID:         meta.UserID,
		Range:          rangeLabel(meta.Range),
		Keywords:       strings.Join(meta.Keywords, ", "),
		PostCount:      r.count(int64(len(posts))),
		KeywordMatches: r.count(int64(meta.Stats.KeywordMatches)),
		Pages:          meta.Stats.PagesProcessed,
	}
	if !meta.GeneratedAt.IsZero() {
		page.Generated = meta.GeneratedAt.Format("2006-01-02 15:04:05")
	}

	for i, p := range posts {
		hp := htmlPost{
			Number:    i + 1,
			Published: HumanDate(p),
			URL:       p.URL,
			ID:        p.ID,
			Text:      strings.TrimSpace(p.Text),
			Repost:    p.Repost,
			Reposts:   r.count(p.Counts.Reposts),
			Comments:  r.count(p.Counts.Comments),
			Likes:     r.count(p.Counts.Likes),
			Source:    p.SourceClient,
		}
		for j, img := range p.AllImages() {
			if !r.hasImage(img) {
				continue
			}
			src, err := r.dataURI(img.LocalFilename)
			if err != nil {
				continue
			}
			hp.Images = append(hp.Images, htmlImage{Alt: "Image " + r.count(int64(j+1)), Src: src})
		}
		page.Posts = append(page.Posts, hp)
	}
	page.ImageCount = r.count(int64(r.storedImages(posts)))

	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, page); err != nil {
		return nil, errs.Wrap(errs.ErrorTypeFileSystem, err, "failed to render html report")
	}
	return buf.Bytes(), nil
}

func (r *Renderer) dataURI(name string) (template.URL, error) {
	data, err := r.images.Read(name)
	if err != nil {
		return "", err
	}
	mime := mimetype.Detect(data).String()
	if !strings.HasPrefix(mime, "image/") {
		mime = "image/jpeg"
	}
	return template.URL("data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)), nil
}
