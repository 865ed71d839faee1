// Package retry provides exponential backoff and retry logic for handling
// transient failures in network operations against the Civitai API.
//
// Features:
//   - Exponential backoff clamped between a minimum and maximum delay
//   - Optional jitter
//   - Context support for cancellation during backoff
//   - Pluggable retry predicate and sleep function
//
// The last error produced by the operation is returned as is, so callers can
// inspect it with errors.As without unwrapping a retry envelope.
//
// Basic usage:
//
//	page, err := retry.DoWithResult(ctx, func(ctx context.Context) (*civitai.ListingPage, error) {
//		return client.FetchPage(ctx, url)
//	}, retry.DefaultConfig())
//
// Retryable failures are the transient kinds from pkg/errors: timeouts,
// refused or unreachable connections, protocol breaks mid-transfer and, for
// listing pages, 5xx responses.
package retry
