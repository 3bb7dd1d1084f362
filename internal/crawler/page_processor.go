package crawler

import (
	"context"
	"errors"
	"log/slog"

	"github.com/masahif/sitegraph/internal/parser"
	"github.com/masahif/sitegraph/internal/urlnorm"
)

// DefaultPageProcessor implements the PageProcessor interface
type DefaultPageProcessor struct {
	fetcher     Fetcher
	rateLimiter *RateLimiter
	linkOptions parser.Options
}

// NewPageProcessor creates a page processor. rateLimiter may be nil.
func NewPageProcessor(fetcher Fetcher, rateLimiter *RateLimiter, opts parser.Options) *DefaultPageProcessor {
	return &DefaultPageProcessor{
		fetcher:     fetcher,
		rateLimiter: rateLimiter,
		linkOptions: opts,
	}
}

// Process fetches url and returns its canonical outbound links in document
// order. Links the normalizer rejects are dropped; a fetch failure is
// reported in PageResult.Err.
func (p *DefaultPageProcessor) Process(ctx context.Context, url string, depth int) *PageResult {
	result := &PageResult{URL: url, Depth: depth}

	if p.rateLimiter != nil {
		if err := p.rateLimiter.Wait(ctx, url); err != nil {
			result.Err = err
			return result
		}
	}

	page, err := p.fetcher.Fetch(ctx, url)
	if err != nil {
		result.Err = err
		return result
	}
	result.Page = page

	meta := parser.ParseMeta(page.Body)
	result.Title = meta.Title

	base := resolveBase(url, page.FinalURL, meta.BaseHref)
	for href := range parser.Hrefs(page.Body, p.linkOptions) {
		canonical, err := urlnorm.Normalize(href, base)
		if err != nil {
			if errors.Is(err, urlnorm.ErrRejected) {
				slog.Debug("Dropped link", "source", url, "href", href, "error", err)
			} else {
				slog.Warn("Link normalization failed", "source", url, "href", href, "error", err)
			}
			result.Rejected++
			continue
		}
		result.Links = append(result.Links, canonical)
	}

	slog.Debug("Processed page", "url", url, "links", len(result.Links), "ttfb", page.TTFB)
	return result
}

// resolveBase picks the URL relative links resolve against: the document's
// <base href> resolved against the final URL, else the final URL, else the
// requested URL.
func resolveBase(requested, final, baseHref string) string {
	base := requested
	if final != "" {
		if canonical, err := urlnorm.Canonical(final); err == nil {
			base = canonical
		}
	}
	if baseHref != "" {
		if resolved, err := urlnorm.Normalize(baseHref, base); err == nil {
			base = resolved
		}
	}
	return base
}
