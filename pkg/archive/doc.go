// Package archive bundles a crawl's reports and images into one zip file.
//
// Inside the archive the reports sit under reports/ and the images under
// images/. Markdown image links are normalised to ../images/{name}, which
// resolves from reports/ to the packaged image; the HTML report already
// embeds its images and is copied as is.
package archive
