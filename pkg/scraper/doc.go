// Package scraper collects posts from a user's timeline.
//
// Extractor turns one API record into a models.Post: it applies the date
// filter, normalizes the text, expands truncated bodies, applies the keyword
// filter and stores attached images. Pager drives the listing pages in
// order, feeding records to the Extractor and keeping the crawl counters.
//
// Neither component returns errors. A page that fails to load ends the
// crawl, a full text request that fails keeps the truncated body, and an
// image that fails to download is kept without a local file.
package scraper
