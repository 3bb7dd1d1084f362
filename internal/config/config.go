// Package config provides configuration management for the crawler.
// It defines configuration structures and default values for crawling parameters.
package config

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// DefaultIgnoredExtensions lists file extensions whose links never lead to HTML
// pages. Links ending in one of these are dropped before they reach the graph.
var DefaultIgnoredExtensions = []string{
	// archives
	"7z", "7zip", "bz2", "rar", "tar", "tar.gz", "xz", "zip",
	// images
	"mng", "pct", "bmp", "gif", "jpg", "jpeg", "png", "pst", "psp", "tif",
	"tiff", "ai", "drw", "dxf", "eps", "ps", "svg", "cdr", "ico", "webp",
	// audio
	"mp3", "wma", "ogg", "wav", "ra", "aac", "mid", "au", "aiff",
	// video
	"3gp", "asf", "asx", "avi", "mov", "mp4", "mpg", "qt", "rm", "swf", "wmv",
	"m4a", "m4v", "flv", "webm",
	// office suites
	"xls", "xlsx", "ppt", "pptx", "pps", "doc", "docx", "odt", "ods", "odg",
	"odp",
	// other
	"css", "pdf", "exe", "bin", "rss", "dmg", "iso", "apk",
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`             // debug, info, warn, error
	Format     string `mapstructure:"format" yaml:"format"`           // text or json
	FilePath   string `mapstructure:"file" yaml:"file"`               // Optional log file, rotated by size
	MaxSizeMB  int64  `mapstructure:"max_size_mb" yaml:"max_size_mb"` // Rotation threshold
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"` // Rotated files kept
}

// CrawlConfig holds crawler configuration
type CrawlConfig struct {
	// Basic crawling parameters
	SeedURL        string        `mapstructure:"seed_url" yaml:"seed_url"`               // Starting URL for crawling
	MaxURLs        int           `mapstructure:"max_urls" yaml:"max_urls"`               // Pages to fetch (0=unlimited)
	Concurrency    int           `mapstructure:"concurrency" yaml:"concurrency"`         // Number of concurrent fetches
	RequestDelay   time.Duration `mapstructure:"request_delay" yaml:"request_delay"`     // Minimum delay between requests to one host
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"` // HTTP request timeout
	UserAgent      string        `mapstructure:"user_agent" yaml:"user_agent"`           // HTTP User-Agent header
	MaxBodySize    int64         `mapstructure:"max_body_size" yaml:"max_body_size"`     // Response bytes read per page
	BroadLinks     bool          `mapstructure:"broad_links" yaml:"broad_links"`         // Also follow <link>, <img>, <area>

	// Scope filtering
	SameHost          bool     `mapstructure:"same_host" yaml:"same_host"`                   // Only keep links on the seed host
	IncludePatterns   []string `mapstructure:"include_patterns" yaml:"include_patterns"`     // Regex patterns for URLs to include
	ExcludePatterns   []string `mapstructure:"exclude_patterns" yaml:"exclude_patterns"`     // Regex patterns for URLs to exclude
	IgnoredExtensions []string `mapstructure:"ignored_extensions" yaml:"ignored_extensions"` // Extensions never followed

	// Output
	OutputPath      string `mapstructure:"output_path" yaml:"output_path"`           // Graph file
	Format          string `mapstructure:"format" yaml:"format"`                     // gexf, graphml or json (empty=infer)
	DatabasePath    string `mapstructure:"database_path" yaml:"database_path"`       // Optional SQLite snapshot
	OrderPath       string `mapstructure:"order_path" yaml:"order_path"`             // Optional BFS fetch order file
	CheckpointEvery int    `mapstructure:"checkpoint_every" yaml:"checkpoint_every"` // Interim export every N nodes (0=off)

	Log LogConfig `mapstructure:"log" yaml:"log"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *CrawlConfig {
	return &CrawlConfig{
		MaxURLs:           100,
		Concurrency:       1,
		RequestDelay:      0,
		RequestTimeout:    30 * time.Second,
		UserAgent:         "SiteGraph/1.0",
		MaxBodySize:       10 * 1024 * 1024,
		IgnoredExtensions: append([]string(nil), DefaultIgnoredExtensions...),
		OutputPath:        "graph.gexf",
		Log: LogConfig{
			Level:      "info",
			Format:     "text",
			MaxSizeMB:  100,
			MaxBackups: 5,
		},
	}
}

// Validate checks if the configuration is valid
func (c *CrawlConfig) Validate() error {
	if strings.TrimSpace(c.SeedURL) == "" {
		return ErrNoSeedURL
	}

	if c.MaxURLs < 0 {
		return ErrInvalidMaxURLs
	}

	if c.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}

	if c.RequestTimeout <= 0 {
		return ErrInvalidTimeout
	}

	if c.RequestDelay < 0 {
		return ErrInvalidDelay
	}

	if c.OutputPath == "" {
		return ErrEmptyOutputPath
	}

	switch strings.ToLower(c.Format) {
	case "", "gexf", "graphml", "json":
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, c.Format)
	}

	for _, pattern := range append(append([]string{}, c.IncludePatterns...), c.ExcludePatterns...) {
		if _, err := regexp.Compile(pattern); err != nil {
			return fmt.Errorf("invalid URL pattern %q: %w", pattern, err)
		}
	}

	return nil
}
