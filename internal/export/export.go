// Package export serializes a crawl graph snapshot to a graph interchange
// format: GEXF, GraphML or node-link JSON.
package export

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/masahif/sitegraph/internal/config"
	"github.com/masahif/sitegraph/internal/graph"
)

// Format is a supported output format
type Format string

// Supported formats
const (
	FormatGEXF    Format = "gexf"
	FormatGraphML Format = "graphml"
	FormatJSON    Format = "json"
)

// Meta describes the crawl that produced a snapshot
type Meta struct {
	Creator     string    // Program name and version
	Description string    // Free-form description
	Seed        string    // Canonical seed URL
	RunID       string    // Unique id of the crawl run
	Created     time.Time // Export time
}

// ParseFormat parses a format name, case-insensitively
func ParseFormat(name string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(name))) {
	case FormatGEXF:
		return FormatGEXF, nil
	case FormatGraphML:
		return FormatGraphML, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: %q", config.ErrUnknownFormat, name)
	}
}

// InferFormat picks the format from the file extension of path, falling
// back to GEXF.
func InferFormat(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".graphml", ".xml":
		return FormatGraphML
	case ".json":
		return FormatJSON
	default:
		return FormatGEXF
	}
}

// ResolveFormat returns the explicit format when set, else the one inferred
// from path.
func ResolveFormat(path, explicit string) (Format, error) {
	if strings.TrimSpace(explicit) == "" {
		return InferFormat(path), nil
	}
	return ParseFormat(explicit)
}

// Encode writes snap to w in the given format
func Encode(w io.Writer, format Format, snap graph.Snapshot, meta Meta) error {
	switch format {
	case FormatGEXF:
		return encodeGEXF(w, snap, meta)
	case FormatGraphML:
		return encodeGraphML(w, snap, meta)
	case FormatJSON:
		return encodeJSON(w, snap, meta)
	default:
		return fmt.Errorf("%w: %q", config.ErrUnknownFormat, format)
	}
}

// Write exports snap to path. The file is written to a temporary file in
// the same directory and renamed into place, so path never holds a partial
// graph.
func Write(path string, format Format, snap graph.Snapshot, meta Meta) (err error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	buf := bufio.NewWriter(tmp)
	if err := Encode(buf, format, snap, meta); err != nil {
		return fmt.Errorf("failed to encode %s: %w", format, err)
	}
	if err := buf.Flush(); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmp.Name(), err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("failed to sync %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmp.Name(), err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("failed to set permissions on %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move graph into place: %w", err)
	}

	return nil
}
