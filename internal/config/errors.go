package config

import "errors"

var (
	// ErrNoSeedURL is returned when no seed URL is provided
	ErrNoSeedURL = errors.New("no seed URL provided")
	// ErrInvalidMaxURLs is returned when max_urls is negative
	ErrInvalidMaxURLs = errors.New("max_urls must be 0 (unlimited) or greater")
	// ErrInvalidConcurrency is returned when concurrency is not greater than 0
	ErrInvalidConcurrency = errors.New("concurrency must be greater than 0")
	// ErrInvalidTimeout is returned when request timeout is not greater than 0
	ErrInvalidTimeout = errors.New("request_timeout must be greater than 0")
	// ErrInvalidDelay is returned when request delay is negative
	ErrInvalidDelay = errors.New("request_delay cannot be negative")
	// ErrEmptyOutputPath is returned when output path is empty
	ErrEmptyOutputPath = errors.New("output_path cannot be empty")
	// ErrUnknownFormat is returned when the export format is not supported
	ErrUnknownFormat = errors.New("format must be one of gexf, graphml, json")
)
