// Package ratelimit paces requests against the Civitai API.
//
// Pacer inserts a fixed pause between consecutive listing page requests.
// The first request is never delayed:
//
//	pacer := ratelimit.NewPacer(time.Second)
//	for cursor != "" {
//	    if err := pacer.Wait(ctx); err != nil {
//	        return err
//	    }
//	    // fetch the next page
//	}
//
// SlidingWindow caps how many requests start within a rolling window and is
// used for the optional requests-per-minute limit on image downloads.
//
// Both implement Limiter, and every Wait returns early with ctx.Err() when
// the context ends.
package ratelimit
