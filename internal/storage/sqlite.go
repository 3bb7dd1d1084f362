// Package storage persists crawl graph snapshots in SQLite.
package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/masahif/sitegraph/internal/graph"
	// SQLite database driver (CGO-free)
	_ "modernc.org/sqlite"
)

// Meta keys written with every snapshot
const (
	MetaRunID      = "run_id"
	MetaSeed       = "seed"
	MetaMaxURLs    = "max_urls"
	MetaStartedAt  = "started_at"
	MetaFinishedAt = "finished_at"
)

// ErrNoSnapshot is returned by LoadSnapshot on an empty database
var ErrNoSnapshot = errors.New("no snapshot stored")

// RunInfo describes the crawl a snapshot came from
type RunInfo struct {
	RunID      string // Generated when empty
	Seed       string
	MaxURLs    int
	StartedAt  time.Time
	FinishedAt time.Time
}

// SQLiteStorage stores one graph snapshot per database
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single connection prevents lock conflicts
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(30 * time.Minute)

	storage := &SQLiteStorage{db: db}

	if err := storage.InitSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return storage, nil
}

// InitSchema creates the database schema
func (s *SQLiteStorage) InitSchema() error {
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -64000", // 64MB cache
		"PRAGMA temp_store = MEMORY",
		"PRAGMA busy_timeout = 30000",
	}

	for _, pragma := range pragmas {
		if _, err := s.db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute pragma %s: %w", pragma, err)
		}
	}

	if _, err := s.db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// SaveSnapshot replaces the stored snapshot with snap, its fetch order and
// run metadata in a single transaction. It returns the run id.
func (s *SQLiteStorage) SaveSnapshot(snap graph.Snapshot, order []string, info RunInfo) (string, error) {
	if info.RunID == "" {
		info.RunID = uuid.NewString()
	}

	tx, err := s.db.Begin()
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"links", "pages", "crawl_order", "crawl_meta"} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return "", fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	if err := insertPages(tx, snap.Nodes); err != nil {
		return "", err
	}
	if err := insertLinks(tx, snap.Edges); err != nil {
		return "", err
	}
	if err := insertOrder(tx, order); err != nil {
		return "", err
	}

	meta := map[string]string{
		MetaRunID:   info.RunID,
		MetaSeed:    info.Seed,
		MetaMaxURLs: strconv.Itoa(info.MaxURLs),
	}
	if !info.StartedAt.IsZero() {
		meta[MetaStartedAt] = info.StartedAt.UTC().Format(time.RFC3339)
	}
	if !info.FinishedAt.IsZero() {
		meta[MetaFinishedAt] = info.FinishedAt.UTC().Format(time.RFC3339)
	}
	for key, value := range meta {
		if _, err := tx.Exec(`INSERT INTO crawl_meta (key, value) VALUES (?, ?)`, key, value); err != nil {
			return "", fmt.Errorf("failed to save meta %s: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit snapshot: %w", err)
	}

	return info.RunID, nil
}

func insertPages(tx *sql.Tx, nodes []graph.Node) error {
	stmt, err := tx.Prepare(`
		INSERT INTO pages (id, url, fetched, depth, status, reason, title)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, node := range nodes {
		if _, err := stmt.Exec(node.ID, node.URL, node.Fetched, node.Depth, node.Status, node.Reason, node.Title); err != nil {
			return fmt.Errorf("failed to insert page %s: %w", node.URL, err)
		}
	}
	return nil
}

func insertLinks(tx *sql.Tx, edges []graph.Edge) error {
	stmt, err := tx.Prepare(`INSERT INTO links (source_id, target_id) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, edge := range edges {
		if _, err := stmt.Exec(edge.Source, edge.Target); err != nil {
			return fmt.Errorf("failed to insert link %d->%d: %w", edge.Source, edge.Target, err)
		}
	}
	return nil
}

func insertOrder(tx *sql.Tx, order []string) error {
	stmt, err := tx.Prepare(`INSERT INTO crawl_order (position, url) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i, url := range order {
		if _, err := stmt.Exec(i, url); err != nil {
			return fmt.Errorf("failed to insert order entry %d: %w", i, err)
		}
	}
	return nil
}

// LoadSnapshot reads back the stored snapshot
func (s *SQLiteStorage) LoadSnapshot() (graph.Snapshot, error) {
	var snap graph.Snapshot

	rows, err := s.db.Query(`SELECT id, url, fetched, depth, status, reason, title FROM pages ORDER BY id`)
	if err != nil {
		return snap, fmt.Errorf("failed to query pages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var node graph.Node
		if err := rows.Scan(&node.ID, &node.URL, &node.Fetched, &node.Depth, &node.Status, &node.Reason, &node.Title); err != nil {
			return snap, fmt.Errorf("failed to scan page: %w", err)
		}
		snap.Nodes = append(snap.Nodes, node)
	}
	if err := rows.Err(); err != nil {
		return snap, fmt.Errorf("failed to read pages: %w", err)
	}

	if len(snap.Nodes) == 0 {
		return snap, ErrNoSnapshot
	}

	linkRows, err := s.db.Query(`SELECT source_id, target_id FROM links ORDER BY source_id, target_id`)
	if err != nil {
		return snap, fmt.Errorf("failed to query links: %w", err)
	}
	defer func() { _ = linkRows.Close() }()

	for linkRows.Next() {
		var edge graph.Edge
		if err := linkRows.Scan(&edge.Source, &edge.Target); err != nil {
			return snap, fmt.Errorf("failed to scan link: %w", err)
		}
		snap.Edges = append(snap.Edges, edge)
	}
	if err := linkRows.Err(); err != nil {
		return snap, fmt.Errorf("failed to read links: %w", err)
	}

	return snap, nil
}

// LoadOrder reads back the stored BFS fetch order
func (s *SQLiteStorage) LoadOrder() ([]string, error) {
	rows, err := s.db.Query(`SELECT url FROM crawl_order ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("failed to query crawl order: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var order []string
	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			return nil, fmt.Errorf("failed to scan crawl order: %w", err)
		}
		order = append(order, url)
	}
	return order, rows.Err()
}

// GetMeta retrieves a metadata value
func (s *SQLiteStorage) GetMeta(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM crawl_meta WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get meta %s: %w", key, err)
	}
	return value, nil
}

// SetMeta stores a metadata value
func (s *SQLiteStorage) SetMeta(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO crawl_meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to set meta %s: %w", key, err)
	}
	return nil
}
