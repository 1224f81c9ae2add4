package scraper

import (
	"context"

	"wbscraper/pkg/storage"
	"wbscraper/pkg/weibo"
)

// API is the part of the upstream client the crawl needs
type API interface {
	FetchListing(ctx context.Context, userID string, page int) (*weibo.ListingResponse, error)
	FetchLongText(ctx context.Context, postID string) (string, error)
}

// ImageSaver stores an image under a post-derived name
type ImageSaver interface {
	Save(ctx context.Context, imageURL, postID, index string) (storage.SaveResult, error)
}

// ProgressFunc receives a percentage (0 to 100) and a short status line
type ProgressFunc func(percent int, status string)

// Observer is told about crawl events as they happen, for metrics
type Observer interface {
	PageFetched()
	PostCollected()
	ImageSaved(cached bool)
	ImageFailed()
}

type nopObserver struct{}

func (nopObserver) PageFetched()    {}
func (nopObserver) PostCollected()  {}
func (nopObserver) ImageSaved(bool) {}
func (nopObserver) ImageFailed()    {}
