// Package fetcher performs rate-limited, retried GET requests against the
// upstream signal APIs and decodes their JSON bodies.
package fetcher

import (
	"context"
	"fmt"
)

// Fetcher retrieves a remote resource body.
type Fetcher interface {
	// Get returns the body of a 200 response. Other statuses produce a
	// *StatusError.
	Get(ctx context.Context, url string) ([]byte, error)
}

// StatusError reports a non-200 upstream response.
type StatusError struct {
	StatusCode int
	Host       string
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetcher: http %d from %s", e.StatusCode, e.Host)
}
