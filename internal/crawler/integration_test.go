package crawler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"slices"
	"testing"
	"time"
)

// newTestSite serves a small site:
//
//	/        -> /a, /b, javascript:, mailto:, /a#frag, /missing, /logo.png
//	/a       -> /c, /
//	/b       -> /a#top
//	/c       -> (none)
//	/missing -> 404
func newTestSite(t *testing.T) *httptest.Server {
	t.Helper()

	pages := map[string]string{
		"/": `<html><head><title>Home</title></head><body>
			<a href="/a">A</a>
			<a href="b">B</a>
			<a href="javascript:void(0)">js</a>
			<a href="mailto:webmaster@example.com">mail</a>
			<a href="/a#frag">A again</a>
			<a href="/missing">missing</a>
			<a href="/logo.png">logo</a>
		</body></html>`,
		"/a": `<html><body><a href="/c">C</a><a href="/">home</a></body></html>`,
		"/b": `<html><body><a href="/a#top">A</a></body></html>`,
		"/c": `<html><body>leaf</body></html>`,
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)

	return server
}

func TestCrawlHTTPSite(t *testing.T) {
	server := newTestSite(t)

	cfg := testConfig(0)
	cfg.RequestTimeout = 5 * time.Second
	cfg.IgnoredExtensions = []string{"png"}
	cfg.UserAgent = "SiteGraph-Test/1.0"

	c, err := NewCrawler(cfg, nil)
	if err != nil {
		t.Fatalf("NewCrawler() error = %v", err)
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	result, err := c.Crawl(ctx, server.URL)
	if err != nil {
		t.Fatalf("Crawl() error = %v", err)
	}
	if err := result.Graph.Validate(); err != nil {
		t.Errorf("graph invariants violated: %v", err)
	}

	base := server.URL
	wantOrder := []string{base + "/", base + "/a", base + "/b", base + "/missing", base + "/c"}
	if !slices.Equal(result.Order, wantOrder) {
		t.Errorf("Order = %v, want %v", result.Order, wantOrder)
	}

	if result.Stats.PagesFetched != 4 || result.Stats.PagesFailed != 1 {
		t.Errorf("fetched/failed = %d/%d, want 4/1", result.Stats.PagesFetched, result.Stats.PagesFailed)
	}

	nodes, edges := result.Graph.Stats()
	if nodes != 5 {
		t.Errorf("nodes = %d, want 5", nodes)
	}
	// /->a, /->b, /->missing, a->c, a->/, b->a
	if edges != 6 {
		t.Errorf("edges = %d, want 6", edges)
	}

	home := mustNode(t, result.Graph, base+"/")
	if home.ID != 0 || home.Title != "Home" || !home.Fetched {
		t.Errorf("seed node = %+v", home)
	}
	missing := mustNode(t, result.Graph, base+"/missing")
	if missing.Fetched || missing.Reason != "http_status 404" {
		t.Errorf("missing node = %+v", missing)
	}
}

func TestCrawlHTTPSiteConcurrent(t *testing.T) {
	server := newTestSite(t)

	cfg := testConfig(3)
	cfg.Concurrency = 3
	cfg.RequestTimeout = 5 * time.Second

	c, err := NewCrawler(cfg, nil)
	if err != nil {
		t.Fatalf("NewCrawler() error = %v", err)
	}
	defer c.Close()

	result, err := c.Crawl(context.Background(), server.URL+"/")
	if err != nil {
		t.Fatalf("Crawl() error = %v", err)
	}

	if result.Graph.FetchedCount() != 3 {
		t.Errorf("fetched nodes = %d, want 3", result.Graph.FetchedCount())
	}
	if err := result.Graph.Validate(); err != nil {
		t.Errorf("graph invariants violated: %v", err)
	}
}

func TestCrawlHTTPSeedDown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c, err := NewCrawler(testConfig(10), nil)
	if err != nil {
		t.Fatalf("NewCrawler() error = %v", err)
	}
	defer c.Close()

	result, err := c.Crawl(context.Background(), server.URL)
	if err == nil {
		t.Fatal("Crawl() should fail when the seed is down")
	}
	if result == nil || result.Stats.PagesFetched != 0 {
		t.Errorf("unexpected result %+v", result)
	}
}
