package scraper

import (
	"context"
	"io"

	"civitdl/internal/downloader"
	"civitdl/pkg/civitai"
)

// PageFetcher fetches one listing page
type PageFetcher interface {
	FetchPage(ctx context.Context, pageURL string) (*civitai.ListingPage, error)
}

// APIClient defines the Civitai operations a run needs
type APIClient interface {
	PageFetcher
	OpenImage(ctx context.Context, url string) (io.ReadCloser, int64, error)
	BaseURL() string
	Authenticated() bool
}

// Progress receives run events for display. Implementations must be safe
// for concurrent use since download events arrive from many goroutines.
type Progress interface {
	downloader.Reporter

	ListingStarted(username string)
	PageRequested(page int)
	PageFetched(page, items, total int)
	ListingFinished(username string, total, pages int, err error)
	DownloadsQueued(queued, existing int)
	RunFinished(summary *downloader.Summary)
}

// Notifier sends a short message when a run ends
type Notifier interface {
	SendNotification(title, message string)
}

// NopProgress ignores every event
type NopProgress struct {
	downloader.NopReporter
}

func (NopProgress) ListingStarted(string) {}
func (NopProgress) PageRequested(int) {}
func (NopProgress) PageFetched(int, int, int) {}
func (NopProgress) ListingFinished(string, int, int, error) {}
func (NopProgress) DownloadsQueued(int, int) {}
func (NopProgress) RunFinished(*downloader.Summary) {}
