package scraper

import (
	"context"
	"fmt"

	"civitdl/pkg/civitai"
	"civitdl/pkg/logger"
	"civitdl/pkg/ratelimit"
	"civitdl/pkg/retry"
)

// Listing is everything collected for one user
type Listing struct {
	Username string
	Records  []civitai.ImageRecord
	Pages    int
	// Empty is set when the first page had no items
	Empty bool
	// Truncated is set when pagination stopped at the page cap
	Truncated bool
	// Err is the failure that ended pagination early, if any. Records
	// gathered before it are kept.
	Err error
}

// PageError reports which page ended pagination
type PageError struct {
	Page int
	Err  error
}

func (e *PageError) Error() string {
	return fmt.Sprintf("failed to fetch image batch %d: %v", e.Page, e.Err)
}

func (e *PageError) Unwrap() error {
	return e.Err
}

// AggregatorOptions configures an Aggregator
type AggregatorOptions struct {
	BaseURL string
	// Query holds the listing filters; Username is filled in per call
	Query civitai.ListingQuery
	Retry *retry.Config
	// Pacer runs before every page request
	Pacer ratelimit.Limiter
	// MaxPages stops pagination after this many pages; 0 means no limit
	MaxPages int
	// OnPageStart is called before each page request
	OnPageStart func(page int)
	// OnPage is called after each page with the running total
	OnPage func(page, items, total int)
}

// Aggregator walks the cursor pagination of a user's images
type Aggregator struct {
	fetcher PageFetcher
	opts    AggregatorOptions
	logger  logger.Logger
}

// NewAggregator creates an Aggregator
func NewAggregator(fetcher PageFetcher, opts AggregatorOptions, log logger.Logger) *Aggregator {
	if log == nil {
		log = logger.GetLogger()
	}
	if opts.BaseURL == "" {
		opts.BaseURL = civitai.DefaultBaseURL
	}
	if opts.Query == (civitai.ListingQuery{}) {
		opts.Query = civitai.DefaultQuery("")
	}
	if opts.Retry == nil {
		opts.Retry = retry.DefaultConfig()
	}
	if opts.Pacer == nil {
		opts.Pacer = ratelimit.NewPacer(0)
	}

	return &Aggregator{
		fetcher: fetcher,
		opts:    opts,
		logger:  log,
	}
}

// FetchAll fetches pages strictly in order until the cursor runs out. A
// failed page ends pagination and is reported in Listing.Err alongside the
// records already collected; it is never returned as a separate error.
func (a *Aggregator) FetchAll(ctx context.Context, username string) *Listing {
	listing := &Listing{Username: username}
	query := a.opts.Query
	query.Username = username
	retryCfg := a.opts.Retry.WithLogger(a.logger.WithField("username", username))

	a.opts.Pacer.Reset()
	cursor := ""

	for page := 1; ; page++ {
		if err := a.opts.Pacer.Wait(ctx); err != nil {
			listing.Err = &PageError{Page: page, Err: err}
			return listing
		}

		pageURL, err := civitai.PageURL(a.opts.BaseURL, query, cursor)
		if err != nil {
			listing.Err = &PageError{Page: page, Err: err}
			return listing
		}
		if a.opts.OnPageStart != nil {
			a.opts.OnPageStart(page)
		}

		result, err := retry.DoWithResult(ctx, func(ctx context.Context) (*civitai.ListingPage, error) {
			return a.fetcher.FetchPage(ctx, pageURL)
		}, retryCfg)
		if err != nil {
			listing.Err = &PageError{Page: page, Err: err}
			a.logger.WithError(err).WarnWithFields("pagination stopped", map[string]interface{}{
				"username":  username,
				"page":      page,
				"collected": len(listing.Records),
			})
			return listing
		}

		listing.Pages = page
		if page == 1 && len(result.Items) == 0 {
			listing.Empty = true
			return listing
		}

		listing.Records = append(listing.Records, result.Items...)
		logger.LogPage(a.logger, username, page, len(result.Items), result.HasNext())
		if a.opts.OnPage != nil {
			a.opts.OnPage(page, len(result.Items), len(listing.Records))
		}

		if !result.HasNext() {
			return listing
		}
		if a.opts.MaxPages > 0 && page >= a.opts.MaxPages {
			listing.Truncated = true
			return listing
		}
		cursor = result.Metadata.NextCursor.String()
	}
}
