package crawler

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/masahif/sitegraph/internal/config"
)

// Scope decides which canonical URLs may enter the graph. The zero value
// accepts everything.
type Scope struct {
	host              string // Only this host when non-empty
	includePatterns   []*regexp.Regexp
	excludePatterns   []*regexp.Regexp
	ignoredExtensions []string // Lowercase, with leading dot
}

// NewScope compiles the scope filters of cfg. seedHost restricts links to
// the seed's host when cfg.SameHost is set.
func NewScope(cfg *config.CrawlConfig, seedHost string) (*Scope, error) {
	s := &Scope{}

	if cfg.SameHost {
		s.host = seedHost
	}

	var err error
	if s.includePatterns, err = compilePatterns(cfg.IncludePatterns); err != nil {
		return nil, fmt.Errorf("include patterns: %w", err)
	}
	if s.excludePatterns, err = compilePatterns(cfg.ExcludePatterns); err != nil {
		return nil, fmt.Errorf("exclude patterns: %w", err)
	}

	for _, ext := range cfg.IgnoredExtensions {
		ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if ext != "" {
			s.ignoredExtensions = append(s.ignoredExtensions, "."+ext)
		}
	}

	return s, nil
}

// Allows reports whether the canonical URL passes every configured filter
func (s *Scope) Allows(canonicalURL string) bool {
	if s == nil {
		return true
	}

	u, err := url.Parse(canonicalURL)
	if err != nil {
		return false
	}

	if s.host != "" && u.Host != s.host {
		return false
	}

	if len(s.ignoredExtensions) > 0 {
		name := strings.ToLower(u.Path[strings.LastIndex(u.Path, "/")+1:])
		for _, ext := range s.ignoredExtensions {
			if strings.HasSuffix(name, ext) {
				return false
			}
		}
	}

	// If include patterns are specified, URL must match at least one
	if len(s.includePatterns) > 0 {
		matched := false
		for _, re := range s.includePatterns {
			if re.MatchString(canonicalURL) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	for _, re := range s.excludePatterns {
		if re.MatchString(canonicalURL) {
			return false
		}
	}

	return true
}

func compilePatterns(patterns []string) ([]*regexp.Regexp, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, pattern := range patterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
		}
		compiled = append(compiled, re)
	}
	return compiled, nil
}
