// Package cmd provides the command-line interface for SiteGraph.
// It handles command parsing, configuration loading, and crawl execution.
package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/masahif/sitegraph/internal/config"
	"github.com/masahif/sitegraph/internal/crawler"
	"github.com/masahif/sitegraph/internal/export"
	"github.com/masahif/sitegraph/internal/graph"
	"github.com/masahif/sitegraph/internal/logging"
	"github.com/masahif/sitegraph/internal/storage"
)

const (
	defaultConfigName = "sitegraph"
	envPrefix         = "SG"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = newRootCmd()

// flagBindings maps viper keys to the flags that set them
var flagBindings = []struct {
	viperKey string
	flagName string
}{
	{"max_urls", "max-urls"},
	{"concurrency", "concurrency"},
	{"request_delay", "delay"},
	{"request_timeout", "timeout"},
	{"user_agent", "user-agent"},
	{"max_body_size", "max-body-size"},
	{"broad_links", "broad-links"},
	{"same_host", "same-host"},
	{"include_patterns", "include-patterns"},
	{"exclude_patterns", "exclude-patterns"},
	{"ignored_extensions", "ignored-extensions"},
	{"output_path", "output"},
	{"format", "format"},
	{"database_path", "database"},
	{"order_path", "order-file"},
	{"checkpoint_every", "checkpoint-every"},
	{"log.level", "log-level"},
	{"log.file", "log-file"},
	{"log.format", "log-format"},
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sitegraph [flags] <seed-url>",
		Short: "Crawl a website breadth-first and export its link graph",
		Long: `SiteGraph crawls a website starting from a seed page.

Pages are discovered in breadth-first order until the page budget is spent.
Every page and hyperlink seen is recorded in a directed graph, written as
GEXF (default), GraphML or JSON, and optionally stored in SQLite.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runCrawler,
	}

	defaults := config.DefaultConfig()

	cmd.PersistentFlags().String("config", "", "config file (default is ./sitegraph.yml)")
	cmd.Flags().Bool("show-config", false, "Display current configuration in YAML format and exit")

	// Crawl flags
	cmd.Flags().IntP("max-urls", "l", defaults.MaxURLs, "Stop after N fetched pages (0=unlimited)")
	cmd.Flags().IntP("concurrency", "c", defaults.Concurrency, "Number of concurrent fetches")
	cmd.Flags().DurationP("delay", "r", defaults.RequestDelay, "Minimum delay between requests to the same host")
	cmd.Flags().DurationP("timeout", "t", defaults.RequestTimeout, "HTTP request timeout")
	cmd.Flags().StringP("user-agent", "u", defaults.UserAgent, "HTTP User-Agent header")
	cmd.Flags().Int64("max-body-size", defaults.MaxBodySize, "Maximum response body size in bytes")
	cmd.Flags().Bool("broad-links", defaults.BroadLinks, "Also follow <area>, <link> and <img> targets")

	// Scope flags
	cmd.Flags().Bool("same-host", defaults.SameHost, "Only record links on the seed host")
	cmd.Flags().StringSlice("include-patterns", nil, "Regex patterns for URLs to include")
	cmd.Flags().StringSlice("exclude-patterns", nil, "Regex patterns for URLs to exclude")
	cmd.Flags().StringSlice("ignored-extensions", defaults.IgnoredExtensions, "File extensions never recorded")

	// Output flags
	cmd.Flags().StringP("output", "o", defaults.OutputPath, "Graph output file")
	cmd.Flags().StringP("format", "f", defaults.Format, "Output format: gexf, graphml or json (default: from file extension)")
	cmd.Flags().StringP("database", "d", defaults.DatabasePath, "Optional SQLite database for the graph snapshot")
	cmd.Flags().String("order-file", defaults.OrderPath, "Optional file receiving the BFS fetch order")
	cmd.Flags().Int("checkpoint-every", defaults.CheckpointEvery, "Write an interim graph every N new nodes (0=off)")

	// Logging flags
	cmd.Flags().String("log-level", defaults.Log.Level, "Log level: debug, info, warn or error")
	cmd.Flags().String("log-file", defaults.Log.FilePath, "Optional log file, rotated by size")
	cmd.Flags().String("log-format", defaults.Log.Format, "Log format: text or json")

	return cmd
}

// Execute adds all child commands to the root command and sets flags appropriately.
// SIGINT and SIGTERM cancel the running crawl.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return rootCmd.ExecuteContext(ctx)
}

// SetVersionInfo sets version information for the CLI
func SetVersionInfo(v, bt string) {
	version = v
	buildTime = bt
	rootCmd.Version = fmt.Sprintf("%s (built %s)", version, buildTime)
}

func generateUserAgent() string {
	if version != "" && version != "dev" {
		return fmt.Sprintf("SiteGraph/%s", version)
	}
	return "SiteGraph/dev"
}

// loadConfig merges defaults, the config file, SG_ environment variables
// and flags, in increasing order of precedence.
func loadConfig(cmd *cobra.Command, args []string) (*config.CrawlConfig, error) {
	v := viper.New()

	for _, bind := range flagBindings {
		if err := v.BindPFlag(bind.viperKey, cmd.Flags().Lookup(bind.flagName)); err != nil {
			return nil, fmt.Errorf("failed to bind flag %s: %w", bind.flagName, err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("seed_url")

	cfgFile, _ := cmd.Flags().GetString("config")
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", cfgFile, err)
		}
	} else {
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName(defaultConfigName)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	cfg := config.DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if len(args) > 0 {
		cfg.SeedURL = args[0]
	}

	// Update User-Agent with dynamic version if not explicitly set
	if cfg.UserAgent == config.DefaultConfig().UserAgent && !cmd.Flags().Changed("user-agent") {
		cfg.UserAgent = generateUserAgent()
	}

	if used := v.ConfigFileUsed(); used != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "Using config file: %s\n", used)
	}

	return cfg, nil
}

func showCurrentConfig(w io.Writer, cfg *config.CrawlConfig) error {
	if cfg == nil {
		return fmt.Errorf("configuration is nil")
	}

	yamlData, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal configuration to YAML: %w", err)
	}

	fmt.Fprintf(w, "# Current SiteGraph Configuration\n")
	fmt.Fprintf(w, "# Generated at: %s\n", time.Now().Format(time.RFC3339))
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(w, "# Warning: configuration is not valid: %v\n", err)
	}
	fmt.Fprintf(w, "# Configuration file search paths: ./%s.yml\n", defaultConfigName)
	fmt.Fprintf(w, "# Environment variables prefix: %s_\n\n", envPrefix)

	_, err = w.Write(yamlData)
	return err
}

func runCrawler(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}

	if showConfig, _ := cmd.Flags().GetBool("show-config"); showConfig {
		return showCurrentConfig(cmd.OutOrStdout(), cfg)
	}

	if err := cfg.Validate(); err != nil {
		if errors.Is(err, config.ErrNoSeedURL) {
			return fmt.Errorf("%w\nUsage: %s", err, cmd.UseLine())
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logCloser, err := logging.SetDefault(logging.FromCrawlConfig(cfg.Log))
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	defer func() { _ = logCloser.Close() }()

	summary, err := execute(cmd.Context(), cfg, nil)
	if summary != "" {
		fmt.Fprintln(cmd.OutOrStdout(), summary)
	}
	return err
}

// execute crawls cfg.SeedURL and writes the configured outputs. A nil
// fetcher crawls over HTTP. It returns a one-line summary of the run.
func execute(ctx context.Context, cfg *config.CrawlConfig, fetcher crawler.Fetcher) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	format, err := export.ResolveFormat(cfg.OutputPath, cfg.Format)
	if err != nil {
		return "", err
	}

	c, err := crawler.NewCrawler(cfg, fetcher)
	if err != nil {
		return "", fmt.Errorf("failed to initialize crawler: %w", err)
	}
	defer c.Close()

	meta := export.Meta{
		Creator: generateUserAgent(),
		RunID:   uuid.NewString(),
	}

	if cfg.CheckpointEvery > 0 {
		c.SetCheckpointFunc(func(n int, snap graph.Snapshot) {
			path := checkpointPath(cfg.OutputPath, n)
			checkpointMeta := meta
			checkpointMeta.Created = time.Now()
			if err := export.Write(path, format, snap, checkpointMeta); err != nil {
				slog.Error("Failed to write checkpoint", "path", path, "error", err)
				return
			}
			slog.Info("Checkpoint written", "path", path, "nodes", n)
		})
	}

	startedAt := time.Now()
	result, crawlErr := c.Crawl(ctx, cfg.SeedURL)
	if crawlErr != nil {
		// An unreachable seed or an invalid seed produces no output
		if result == nil || errors.Is(crawlErr, crawler.ErrSeedUnreachable) {
			return "", crawlErr
		}
		slog.Warn("Crawl interrupted, writing partial graph", "error", crawlErr)
	}

	snap := result.Graph.Snapshot()
	meta.Seed = cfg.SeedURL
	if len(result.Order) > 0 {
		meta.Seed = result.Order[0]
	}
	meta.Created = time.Now()

	if err := export.Write(cfg.OutputPath, format, snap, meta); err != nil {
		return "", fmt.Errorf("failed to export graph: %w", err)
	}
	slog.Info("Graph written", "path", cfg.OutputPath, "format", format, "nodes", len(snap.Nodes), "edges", len(snap.Edges))

	if cfg.OrderPath != "" {
		if err := writeOrder(cfg.OrderPath, result.Order); err != nil {
			return "", fmt.Errorf("failed to write fetch order: %w", err)
		}
	}

	if cfg.DatabasePath != "" {
		if err := saveSnapshot(cfg, result, meta, startedAt); err != nil {
			return "", err
		}
	}

	summary := fmt.Sprintf("Crawled %d pages (%d failed): %d nodes, %d edges written to %s",
		result.Stats.PagesFetched, result.Stats.PagesFailed, len(snap.Nodes), len(snap.Edges), cfg.OutputPath)

	return summary, crawlErr
}

func saveSnapshot(cfg *config.CrawlConfig, result *crawler.Result, meta export.Meta, startedAt time.Time) error {
	if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0o750); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}

	store, err := storage.NewSQLiteStorage(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	runID, err := store.SaveSnapshot(result.Graph.Snapshot(), result.Order, storage.RunInfo{
		RunID:      meta.RunID,
		Seed:       meta.Seed,
		MaxURLs:    cfg.MaxURLs,
		StartedAt:  startedAt,
		FinishedAt: meta.Created,
	})
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}

	slog.Info("Snapshot stored", "database", cfg.DatabasePath, "run_id", runID)
	return nil
}

// checkpointPath names the interim graph written after n nodes
func checkpointPath(output string, n int) string {
	return filepath.Join(filepath.Dir(output), fmt.Sprintf("interim_%d_%s", n, filepath.Base(output)))
}

// writeOrder writes one URL per line
func writeOrder(path string, order []string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	w := bufio.NewWriter(f)
	for _, url := range order {
		if _, err := w.WriteString(url + "\n"); err != nil {
			_ = f.Close()
			return err
		}
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
