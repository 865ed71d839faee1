// Package civitai is a small client for the public Civitai images API.
//
// It covers the two requests the downloader needs: FetchPage decodes one
// page of a user's image listing, and OpenImage streams a single image.
// Pagination follows the opaque metadata.nextCursor token; see PageURL.
//
// Errors are returned as *errors.Error values from civitdl/pkg/errors so
// callers can decide whether to retry by kind.
package civitai
