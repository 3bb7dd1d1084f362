// Package crawler provides the breadth-first crawl of a site.
// A crawl starts from one seed URL, fetches pages in BFS order until the
// frontier is empty or the page budget is spent, and records every page and
// hyperlink it sees in a graph.Graph.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/masahif/sitegraph/internal/config"
	"github.com/masahif/sitegraph/internal/graph"
	"github.com/masahif/sitegraph/internal/parser"
	"github.com/masahif/sitegraph/internal/urlnorm"
)

// ErrSeedUnreachable is returned when the seed page cannot be fetched
var ErrSeedUnreachable = errors.New("seed URL unreachable")

// statsInterval is the period of the progress log
var statsInterval = 10 * time.Second

// DefaultCrawler implements the Crawler interface
type DefaultCrawler struct {
	config       *config.CrawlConfig
	processor    PageProcessor
	httpClient   *HTTPClient // nil when the fetcher was supplied by the caller
	onCheckpoint CheckpointFunc

	stats      CrawlStats
	statsMutex sync.RWMutex
}

// NewCrawler creates a crawler for cfg. When fetcher is nil an HTTPClient
// built from cfg is used.
func NewCrawler(cfg *config.CrawlConfig, fetcher Fetcher) (*DefaultCrawler, error) {
	if cfg == nil {
		return nil, errors.New("crawler config is nil")
	}
	if cfg.Concurrency < 1 {
		return nil, fmt.Errorf("%w: %d", config.ErrInvalidConcurrency, cfg.Concurrency)
	}

	crawler := &DefaultCrawler{config: cfg}
	if fetcher == nil {
		crawler.httpClient = NewHTTPClient(cfg.UserAgent, cfg.RequestTimeout, cfg.MaxBodySize)
		fetcher = crawler.httpClient
	}

	crawler.processor = NewPageProcessor(
		fetcher,
		NewRateLimiter(cfg.RequestDelay),
		parser.Options{Broad: cfg.BroadLinks},
	)

	return crawler, nil
}

// SetCheckpointFunc installs the checkpoint hook, called every
// CheckpointEvery newly discovered nodes.
func (c *DefaultCrawler) SetCheckpointFunc(fn CheckpointFunc) {
	c.onCheckpoint = fn
}

// Close releases idle connections of the built-in HTTP client
func (c *DefaultCrawler) Close() {
	if c.httpClient != nil {
		c.httpClient.Close()
	}
}

// GetStats returns current crawling statistics
func (c *DefaultCrawler) GetStats() CrawlStats {
	c.statsMutex.RLock()
	defer c.statsMutex.RUnlock()

	stats := c.stats
	if !stats.StartTime.IsZero() {
		stats.Duration = time.Since(stats.StartTime)
	}
	return stats
}

// Crawl runs a breadth-first crawl from seed. The returned result is usable
// even when an error is returned: a cancelled context yields the partial
// graph with ctx.Err(), an unreachable seed yields it with
// ErrSeedUnreachable.
func (c *DefaultCrawler) Crawl(ctx context.Context, seed string) (*Result, error) {
	seedURL, err := urlnorm.Canonical(seed)
	if err != nil {
		return nil, fmt.Errorf("invalid seed URL %q: %w", seed, err)
	}

	scope, err := NewScope(c.config, urlnorm.Host(seedURL))
	if err != nil {
		return nil, err
	}

	run := &crawlRun{
		crawler:  c,
		seed:     seedURL,
		scope:    scope,
		graph:    graph.New(),
		frontier: newFrontier(),
		budget:   newBudget(c.config.MaxURLs),
	}
	run.graph.EnsureNodeAt(seedURL, 0)
	run.frontier.Push(seedURL, 0)

	c.statsMutex.Lock()
	c.stats = CrawlStats{StartTime: time.Now(), Nodes: 1, Queued: 1}
	c.statsMutex.Unlock()

	slog.Info("Starting crawler",
		"seed", seedURL,
		"max_urls", c.config.MaxURLs,
		"concurrency", c.config.Concurrency)

	reporterCtx, stopReporter := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go c.statsReporter(reporterCtx, &wg)

	if c.config.Concurrency > 1 {
		err = run.crawlLayers(ctx)
	} else {
		err = run.crawlSequential(ctx)
	}

	stopReporter()
	wg.Wait()

	result := &Result{
		Graph: run.graph,
		Stats: c.GetStats(),
		Order: run.order,
	}

	switch {
	case errors.Is(err, ErrSeedUnreachable):
		slog.Error("Seed URL unreachable", "url", seedURL, "error", err)
	case err != nil:
		slog.Info("Crawling cancelled", "fetched", result.Stats.PagesFetched, "error", err)
	default:
		slog.Info("Crawling completed",
			"fetched", result.Stats.PagesFetched,
			"failed", result.Stats.PagesFailed,
			"nodes", result.Stats.Nodes,
			"edges", result.Stats.Edges,
			"duration", result.Stats.Duration)
	}

	return result, err
}

// crawlRun holds the state of one Crawl call
type crawlRun struct {
	crawler  *DefaultCrawler
	seed     string
	scope    *Scope
	graph    *graph.Graph
	frontier *frontier
	budget   *budget
	order    []string

	lastCheckpoint int
}

// crawlSequential is the strict FIFO loop: one page at a time in frontier
// order.
func (r *crawlRun) crawlSequential(ctx context.Context) error {
	for r.frontier.Len() > 0 && !r.budget.exhausted() {
		if err := ctx.Err(); err != nil {
			return err
		}

		item, _ := r.frontier.Pop()
		r.budget.reserve()
		result := r.crawler.processor.Process(ctx, item.URL, item.Depth)
		r.budget.release(result.Err == nil)

		if err := r.apply(ctx, result); err != nil {
			return err
		}
	}

	return ctx.Err()
}

// crawlLayers fetches one BFS layer at a time with up to Concurrency
// workers. Every page of layer k is dispatched before any page of layer k+1
// and results are applied in frontier order.
func (r *crawlRun) crawlLayers(ctx context.Context) error {
	for r.frontier.Len() > 0 && !r.budget.exhausted() {
		if err := ctx.Err(); err != nil {
			return err
		}

		layer := r.frontier.PopLayer()
		results := make([]*PageResult, len(layer))

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(r.crawler.config.Concurrency)

		for i, item := range layer {
			if ctx.Err() != nil || !r.budget.reserve() {
				break
			}
			g.Go(func() error {
				result := r.crawler.processor.Process(gctx, item.URL, item.Depth)
				r.budget.release(result.Err == nil)
				results[i] = result
				return nil
			})
		}
		_ = g.Wait()

		slog.Debug("Layer completed", "depth", layer[0].Depth, "size", len(layer))

		for _, result := range results {
			if result == nil {
				continue
			}
			if err := r.apply(ctx, result); err != nil {
				return err
			}
		}
	}

	return ctx.Err()
}

// apply records a processed page in the graph and enqueues its unseen links
func (r *crawlRun) apply(ctx context.Context, result *PageResult) error {
	// Fetches aborted by cancellation are not failures of the page
	if result.Err != nil && ctx.Err() != nil {
		return nil
	}

	r.graph.EnsureNodeAt(result.URL, result.Depth)
	r.order = append(r.order, result.URL)

	if result.Err != nil {
		r.graph.MarkFailed(result.URL, failureReason(result.Err))
		r.updateStats(func(s *CrawlStats) { s.PagesFailed++ })

		if result.URL == r.seed {
			return fmt.Errorf("%w: %w", ErrSeedUnreachable, result.Err)
		}
		slog.Warn("Failed to fetch page", "url", result.URL, "error", result.Err)
		return nil
	}

	r.graph.MarkFetched(result.URL)
	if result.Title != "" {
		r.graph.SetTitle(result.URL, result.Title)
	}

	filtered := 0
	for _, link := range result.Links {
		if !r.scope.Allows(link) {
			filtered++
			continue
		}
		r.graph.AddEdge(result.URL, link)
		r.frontier.Push(link, result.Depth+1)
	}

	r.updateStats(func(s *CrawlStats) {
		s.PagesFetched++
		s.LinksSeen += len(result.Links) + result.Rejected
		s.LinksRejected += result.Rejected
		s.LinksFiltered += filtered
	})

	slog.Info("Fetched page",
		"url", result.URL,
		"depth", result.Depth,
		"links", len(result.Links),
		"fetched", r.budget.count())

	r.checkpoint()
	return nil
}

func (r *crawlRun) updateStats(fn func(*CrawlStats)) {
	nodes, edges := r.graph.Stats()

	c := r.crawler
	c.statsMutex.Lock()
	defer c.statsMutex.Unlock()

	fn(&c.stats)
	c.stats.Nodes = nodes
	c.stats.Edges = edges
	c.stats.Queued = r.frontier.Len()
}

// checkpoint invokes the checkpoint hook once enough new nodes were found
func (r *crawlRun) checkpoint() {
	every := r.crawler.config.CheckpointEvery
	if every <= 0 || r.crawler.onCheckpoint == nil {
		return
	}

	nodes := r.graph.Len()
	if nodes-r.lastCheckpoint < every {
		return
	}
	r.lastCheckpoint = nodes

	slog.Info("Writing checkpoint", "nodes", nodes)
	r.crawler.onCheckpoint(nodes, r.graph.Snapshot())
}

// statsReporter periodically reports crawling statistics
func (c *DefaultCrawler) statsReporter(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := c.GetStats()
			slog.Info("Crawling stats",
				"fetched", stats.PagesFetched,
				"failed", stats.PagesFailed,
				"nodes", stats.Nodes,
				"edges", stats.Edges,
				"queued", stats.Queued,
				"duration", stats.Duration)
		}
	}
}

// failureReason is the short reason stored on a failed node
func failureReason(err error) string {
	var fetchErr *FetchError
	if errors.As(err, &fetchErr) {
		if fetchErr.Kind == KindHTTPStatus {
			return fmt.Sprintf("%s %d", fetchErr.Kind, fetchErr.StatusCode)
		}
		return fetchErr.Kind
	}
	return err.Error()
}
