// Package fetcher downloads remote feed documents with per-host rate limiting
// and retries, and decodes XML bodies in any declared charset.
package fetcher

import (
	"context"
	"io"
)

// Fetcher defines the interface for downloading remote data.
type Fetcher interface {
	// Download fetches the URL and returns the response body. Any non-2xx
	// status is an error.
	Download(ctx context.Context, url string) (io.ReadCloser, error)
}
