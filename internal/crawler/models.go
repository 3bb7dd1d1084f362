package crawler

import (
	"fmt"
	"time"

	"github.com/masahif/sitegraph/internal/graph"
)

// Fetch failure kinds recorded on failed nodes
const (
	KindNetwork     = "network_error" // Transport failure, timeout, DNS, too many redirects
	KindHTTPStatus  = "http_status"   // Non-2xx response
	KindContentType = "content_type"  // Response is not an HTML document
	KindBodyRead    = "body_read"     // Body could not be read or exceeded the size limit
)

// Page is a successfully fetched HTML document
type Page struct {
	URL          string        // Requested URL
	FinalURL     string        // URL after following redirects
	StatusCode   int           // HTTP status code
	ContentType  string        // HTTP Content-Type header
	Body         []byte        // Response body, at most MaxBodySize bytes
	TTFB         time.Duration // Time to First Byte
	DownloadTime time.Duration // Total download time
	FetchedAt    time.Time     // Timestamp when fetched (UTC)
}

// FetchError describes why a page could not be retrieved
type FetchError struct {
	URL        string
	Kind       string // One of the Kind* constants
	StatusCode int    // Set for KindHTTPStatus
	Err        error
}

func (e *FetchError) Error() string {
	if e.Kind == KindHTTPStatus {
		return fmt.Sprintf("fetch %s: %s %d", e.URL, e.Kind, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// PageResult is a processed page: the fetch outcome and the canonical
// outbound links in document order
type PageResult struct {
	URL   string // Canonical URL the page was requested under
	Depth int    // BFS layer of the page
	Page  *Page
	Title string
	Links []string
	// Rejected counts links the normalizer dropped
	Rejected int
	Err      error // Non-nil when the fetch failed
}

// CrawlStats represents crawling statistics
type CrawlStats struct {
	PagesFetched  int // Pages retrieved and expanded
	PagesFailed   int // Fetch attempts that failed
	LinksSeen     int // Raw links yielded by the extractor
	LinksRejected int // Links dropped by the normalizer
	LinksFiltered int // Links dropped by the scope filter
	Nodes         int
	Edges         int
	Queued        int // Frontier length
	StartTime     time.Time
	Duration      time.Duration
}

// Result is the outcome of a crawl
type Result struct {
	Graph *graph.Graph
	Stats CrawlStats
	Order []string // Canonical URLs in the order they were dequeued
}
