// Package scraper runs a complete download for one Civitai user.
//
// A run has two phases. The Aggregator walks the user's image listing page
// by page, following metadata.nextCursor with a fixed pause between pages
// and retrying transient failures. If a page still fails, pagination stops
// and the images collected so far are kept. The downloader then fetches
// every image whose target file does not exist yet, at most five at a time.
//
//	s, err := scraper.New(cfg, scraper.WithProgress(display))
//	if err != nil {
//	    return err
//	}
//	report, err := s.Run(ctx, "alice")
//
// Run only returns an error for bad input, setup failures, or when ctx is
// cancelled. Per image failures are listed in Report.Summary.
package scraper
