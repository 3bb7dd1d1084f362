package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/masahif/sitegraph/internal/config"
	"github.com/masahif/sitegraph/internal/graph"
)

func init() {
	// Set error level logging during tests to only show critical issues
	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
	slog.SetDefault(logger)
}

// fakeSite is an in-memory Fetcher. Pages map a URL to the hrefs its body
// links to; URLs listed in failures return that error.
type fakeSite struct {
	pages    map[string][]string
	failures map[string]error
	delay    time.Duration

	mu          sync.Mutex
	calls       []string
	inFlight    int
	maxInFlight int
}

func (f *fakeSite) Fetch(ctx context.Context, url string) (*Page, error) {
	f.mu.Lock()
	f.calls = append(f.calls, url)
	f.inFlight++
	f.maxInFlight = max(f.maxInFlight, f.inFlight)
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, &FetchError{URL: url, Kind: KindNetwork, Err: ctx.Err()}
		}
	}

	if err, failed := f.failures[url]; failed {
		return nil, err
	}

	hrefs, ok := f.pages[url]
	if !ok {
		return nil, &FetchError{URL: url, Kind: KindHTTPStatus, StatusCode: 404}
	}

	var body strings.Builder
	body.WriteString("<html><head><title>" + url + "</title></head><body>")
	for _, href := range hrefs {
		fmt.Fprintf(&body, `<a href="%s">link</a>`, href)
	}
	body.WriteString("</body></html>")

	return &Page{
		URL:         url,
		FinalURL:    url,
		StatusCode:  200,
		ContentType: "text/html",
		Body:        []byte(body.String()),
	}, nil
}

func (f *fakeSite) fetched() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.calls)
}

func testConfig(maxURLs int) *config.CrawlConfig {
	cfg := config.DefaultConfig()
	cfg.MaxURLs = maxURLs
	cfg.IgnoredExtensions = nil
	return cfg
}

func crawl(t *testing.T, cfg *config.CrawlConfig, site *fakeSite, seed string) *Result {
	t.Helper()

	c, err := NewCrawler(cfg, site)
	if err != nil {
		t.Fatalf("NewCrawler() error = %v", err)
	}

	result, err := c.Crawl(context.Background(), seed)
	if err != nil {
		t.Fatalf("Crawl() error = %v", err)
	}
	if err := result.Graph.Validate(); err != nil {
		t.Errorf("graph invariants violated: %v", err)
	}
	return result
}

func mustNode(t *testing.T, g *graph.Graph, url string) graph.Node {
	t.Helper()
	node, ok := g.Node(url)
	if !ok {
		t.Fatalf("node %s not found", url)
	}
	return node
}

func TestCrawlBFSOrder(t *testing.T) {
	site := &fakeSite{pages: map[string][]string{
		"http://site.test/":  {"/a", "/b"},
		"http://site.test/a": {"/c"},
		"http://site.test/b": {},
		"http://site.test/c": {},
	}}

	result := crawl(t, testConfig(0), site, "http://site.test/")

	want := []string{
		"http://site.test/",
		"http://site.test/a",
		"http://site.test/b",
		"http://site.test/c",
	}
	if !slices.Equal(result.Order, want) {
		t.Errorf("Order = %v, want %v", result.Order, want)
	}
	if got := site.fetched(); !slices.Equal(got, want) {
		t.Errorf("fetch calls = %v, want %v", got, want)
	}

	if node := mustNode(t, result.Graph, "http://site.test/c"); node.Depth != 2 {
		t.Errorf("depth of /c = %d, want 2", node.Depth)
	}
}

func TestCrawlBudgetOfOne(t *testing.T) {
	site := &fakeSite{pages: map[string][]string{
		"http://site.test/":  {"/a", "/b"},
		"http://site.test/a": {"/c"},
		"http://site.test/b": {},
	}}

	result := crawl(t, testConfig(1), site, "http://site.test/")

	if result.Stats.PagesFetched != 1 {
		t.Errorf("PagesFetched = %d, want 1", result.Stats.PagesFetched)
	}
	if result.Graph.FetchedCount() != 1 {
		t.Errorf("fetched nodes = %d, want 1", result.Graph.FetchedCount())
	}

	snap := result.Graph.Snapshot()
	if len(snap.Nodes) != 3 || len(snap.Edges) != 2 {
		t.Errorf("graph has %d nodes, %d edges; want 3, 2", len(snap.Nodes), len(snap.Edges))
	}
	for _, url := range []string{"http://site.test/a", "http://site.test/b"} {
		if node := mustNode(t, result.Graph, url); node.Fetched {
			t.Errorf("%s should be discovered but not fetched", url)
		}
	}
}

func TestCrawlBudgetNeverExceeded(t *testing.T) {
	pages := map[string][]string{}
	for i := 0; i < 20; i++ {
		var links []string
		for j := 0; j < 20; j++ {
			links = append(links, fmt.Sprintf("/p%d", j))
		}
		pages[fmt.Sprintf("http://site.test/p%d", i)] = links
	}
	pages["http://site.test/"] = []string{"/p0"}

	for _, limit := range []int{1, 2, 5, 13} {
		t.Run(fmt.Sprint(limit), func(t *testing.T) {
			result := crawl(t, testConfig(limit), &fakeSite{pages: pages}, "http://site.test/")
			if result.Stats.PagesFetched != limit {
				t.Errorf("PagesFetched = %d, want %d", result.Stats.PagesFetched, limit)
			}
			if result.Graph.FetchedCount() != limit {
				t.Errorf("fetched nodes = %d, want %d", result.Graph.FetchedCount(), limit)
			}
		})
	}
}

func TestCrawlFetchFailureTolerance(t *testing.T) {
	site := &fakeSite{
		pages: map[string][]string{
			"http://site.test/":  {"/broken", "/missing", "/ok"},
			"http://site.test/ok": {},
		},
		failures: map[string]error{
			"http://site.test/broken": &FetchError{URL: "http://site.test/broken", Kind: KindNetwork, Err: errors.New("connection refused")},
		},
	}

	result := crawl(t, testConfig(0), site, "http://site.test/")

	if result.Stats.PagesFetched != 2 || result.Stats.PagesFailed != 2 {
		t.Errorf("fetched/failed = %d/%d, want 2/2", result.Stats.PagesFetched, result.Stats.PagesFailed)
	}

	broken := mustNode(t, result.Graph, "http://site.test/broken")
	if broken.Fetched || broken.Status != graph.StatusFailed || broken.Reason != KindNetwork {
		t.Errorf("broken = %+v", broken)
	}
	missing := mustNode(t, result.Graph, "http://site.test/missing")
	if missing.Reason != "http_status 404" {
		t.Errorf("missing reason = %q", missing.Reason)
	}
	if ok := mustNode(t, result.Graph, "http://site.test/ok"); !ok.Fetched {
		t.Error("crawl did not continue past failed pages")
	}
}

func TestCrawlIgnoresNonHTTPLinks(t *testing.T) {
	site := &fakeSite{pages: map[string][]string{
		"http://site.test/": {
			"javascript:void(0)",
			"mailto:someone@site.test",
			"tel:+1-555-0100",
			"",
			"   ",
			"/real",
		},
		"http://site.test/real": {},
	}}

	result := crawl(t, testConfig(0), site, "http://site.test/")

	snap := result.Graph.Snapshot()
	if len(snap.Nodes) != 2 || len(snap.Edges) != 1 {
		t.Errorf("graph has %d nodes, %d edges; want 2, 1", len(snap.Nodes), len(snap.Edges))
	}
	if result.Stats.LinksRejected != 5 {
		t.Errorf("LinksRejected = %d, want 5", result.Stats.LinksRejected)
	}
}

func TestCrawlFragmentsShareNode(t *testing.T) {
	site := &fakeSite{pages: map[string][]string{
		"http://site.test/":  {"/a#x", "/a#y", "/a", "HTTP://SITE.TEST:80/a"},
		"http://site.test/a": {"/#top"},
	}}

	result := crawl(t, testConfig(0), site, "http://site.test/")

	snap := result.Graph.Snapshot()
	if len(snap.Nodes) != 2 {
		t.Errorf("got %d nodes, want 2: %+v", len(snap.Nodes), snap.Nodes)
	}
	if len(snap.Edges) != 2 {
		t.Errorf("got %d edges, want 2: %+v", len(snap.Edges), snap.Edges)
	}
	if n := len(site.fetched()); n != 2 {
		t.Errorf("fetched %d pages, want 2", n)
	}
}

func TestCrawlEdgesFromEveryFetchedPage(t *testing.T) {
	// Links to already-visited pages still produce edges
	site := &fakeSite{pages: map[string][]string{
		"http://site.test/":  {"/a", "/b"},
		"http://site.test/a": {"/b", "/"},
		"http://site.test/b": {"/a", "/b"},
	}}

	result := crawl(t, testConfig(0), site, "http://site.test/")

	_, edges := result.Graph.Stats()
	if edges != 6 {
		t.Errorf("got %d edges, want 6", edges)
	}
	if len(site.fetched()) != 3 {
		t.Errorf("fetched %v, each page must be fetched once", site.fetched())
	}
}

func TestCrawlSeedUnreachable(t *testing.T) {
	site := &fakeSite{pages: map[string][]string{}}

	c, err := NewCrawler(testConfig(10), site)
	if err != nil {
		t.Fatalf("NewCrawler() error = %v", err)
	}

	result, err := c.Crawl(context.Background(), "http://site.test/")
	if !errors.Is(err, ErrSeedUnreachable) {
		t.Fatalf("Crawl() error = %v, want ErrSeedUnreachable", err)
	}

	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) || fetchErr.StatusCode != 404 {
		t.Errorf("error should wrap the fetch error, got %v", err)
	}
	if result == nil || result.Graph.Len() != 1 {
		t.Errorf("expected partial result with the seed node")
	}
}

func TestCrawlInvalidSeed(t *testing.T) {
	c, err := NewCrawler(testConfig(10), &fakeSite{})
	if err != nil {
		t.Fatalf("NewCrawler() error = %v", err)
	}

	for _, seed := range []string{"", "not a url", "ftp://site.test/", "/relative"} {
		if _, err := c.Crawl(context.Background(), seed); err == nil {
			t.Errorf("Crawl(%q) succeeded, want error", seed)
		}
	}
}

func TestCrawlContextCancelled(t *testing.T) {
	pages := map[string][]string{"http://site.test/": {}}
	for i := 0; i < 50; i++ {
		pages["http://site.test/"] = append(pages["http://site.test/"], fmt.Sprintf("/p%d", i))
		pages[fmt.Sprintf("http://site.test/p%d", i)] = nil
	}
	site := &fakeSite{pages: pages, delay: 20 * time.Millisecond}

	c, err := NewCrawler(testConfig(0), site)
	if err != nil {
		t.Fatalf("NewCrawler() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	result, err := c.Crawl(ctx, "http://site.test/")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Crawl() error = %v, want deadline exceeded", err)
	}
	if result == nil || result.Stats.PagesFetched == 0 || result.Stats.PagesFetched >= 51 {
		t.Fatalf("expected a partial result, got %+v", result)
	}
	if result.Stats.PagesFailed != 0 {
		t.Errorf("cancelled fetches recorded as failures: %d", result.Stats.PagesFailed)
	}
}

func TestCrawlScope(t *testing.T) {
	site := &fakeSite{pages: map[string][]string{
		"http://site.test/": {
			"/docs/intro",
			"/docs/private/key",
			"/files/report.pdf",
			"http://other.test/",
			"/blog/post",
		},
		"http://site.test/docs/intro": {},
	}}

	cfg := testConfig(0)
	cfg.SameHost = true
	cfg.IncludePatterns = []string{`/docs/`}
	cfg.ExcludePatterns = []string{`/private/`}
	cfg.IgnoredExtensions = []string{"pdf"}

	result := crawl(t, cfg, site, "http://site.test/")

	snap := result.Graph.Snapshot()
	if len(snap.Nodes) != 2 {
		t.Errorf("got nodes %+v, want seed and /docs/intro", snap.Nodes)
	}
	if result.Stats.LinksFiltered != 4 {
		t.Errorf("LinksFiltered = %d, want 4", result.Stats.LinksFiltered)
	}
}

func TestCrawlBaseHref(t *testing.T) {
	site := &fakeSite{pages: map[string][]string{
		"http://site.test/":         {"/dir/page"},
		"http://site.test/dir/page": {},
	}}
	c, err := NewCrawler(testConfig(0), baseHrefFetcher{site})
	if err != nil {
		t.Fatalf("NewCrawler() error = %v", err)
	}

	result, err := c.Crawl(context.Background(), "http://site.test/")
	if err != nil {
		t.Fatalf("Crawl() error = %v", err)
	}

	if _, ok := result.Graph.Node("http://site.test/base/rel"); !ok {
		t.Errorf("relative link was not resolved against <base href>: %+v", result.Graph.Snapshot().Nodes)
	}
}

// baseHrefFetcher serves the seed with a <base href> and a relative link
type baseHrefFetcher struct {
	*fakeSite
}

func (b baseHrefFetcher) Fetch(ctx context.Context, url string) (*Page, error) {
	if url == "http://site.test/" {
		return &Page{
			URL:         url,
			FinalURL:    url,
			StatusCode:  200,
			ContentType: "text/html",
			Body:        []byte(`<html><head><base href="/base/"></head><body><a href="rel">r</a></body></html>`),
		}, nil
	}
	return b.fakeSite.Fetch(ctx, url)
}

func TestCrawlCheckpoints(t *testing.T) {
	site := &fakeSite{pages: map[string][]string{
		"http://site.test/":  {"/a", "/b", "/c"},
		"http://site.test/a": {"/d", "/e", "/f"},
	}}

	cfg := testConfig(0)
	cfg.CheckpointEvery = 3

	c, err := NewCrawler(cfg, site)
	if err != nil {
		t.Fatalf("NewCrawler() error = %v", err)
	}

	var checkpoints []int
	c.SetCheckpointFunc(func(n int, snap graph.Snapshot) {
		if len(snap.Nodes) != n {
			t.Errorf("checkpoint %d carries %d nodes", n, len(snap.Nodes))
		}
		checkpoints = append(checkpoints, n)
	})

	if _, err := c.Crawl(context.Background(), "http://site.test/"); err != nil {
		t.Fatalf("Crawl() error = %v", err)
	}

	if !slices.Equal(checkpoints, []int{4, 7}) {
		t.Errorf("checkpoints = %v, want [4 7]", checkpoints)
	}
}

func TestNewCrawlerInvalidConcurrency(t *testing.T) {
	cfg := testConfig(1)
	cfg.Concurrency = 0

	if _, err := NewCrawler(cfg, &fakeSite{}); !errors.Is(err, config.ErrInvalidConcurrency) {
		t.Errorf("NewCrawler() error = %v, want ErrInvalidConcurrency", err)
	}
}

func TestGetStats(t *testing.T) {
	site := &fakeSite{pages: map[string][]string{
		"http://site.test/":  {"/a"},
		"http://site.test/a": {},
	}}

	c, err := NewCrawler(testConfig(0), site)
	if err != nil {
		t.Fatalf("NewCrawler() error = %v", err)
	}
	if _, err := c.Crawl(context.Background(), "http://site.test/"); err != nil {
		t.Fatalf("Crawl() error = %v", err)
	}

	stats := c.GetStats()
	if stats.PagesFetched != 2 || stats.Nodes != 2 || stats.Edges != 1 || stats.Queued != 0 {
		t.Errorf("GetStats() = %+v", stats)
	}
	if stats.StartTime.IsZero() || stats.Duration <= 0 {
		t.Errorf("timing not recorded: %+v", stats)
	}
}
