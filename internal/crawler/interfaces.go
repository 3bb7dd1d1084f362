package crawler

import (
	"context"

	"github.com/masahif/sitegraph/internal/graph"
)

// Crawler defines the main crawling interface
type Crawler interface {
	Crawl(ctx context.Context, seed string) (*Result, error)
	GetStats() CrawlStats
}

// Fetcher retrieves the HTML content of a URL. Failures are reported as
// *FetchError.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Page, error)
}

// PageProcessor fetches a page and extracts its canonical outbound links
type PageProcessor interface {
	Process(ctx context.Context, url string, depth int) *PageResult
}

// CheckpointFunc receives a snapshot every time the configured number of
// new nodes has been discovered. n is the node count at the checkpoint.
type CheckpointFunc func(n int, snap graph.Snapshot)
