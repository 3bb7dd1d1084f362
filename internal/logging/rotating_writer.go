package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// RotatingFileWriter implements a file writer with size-based rotation.
// Backups are named name.1.ext (newest) through name.N.ext (oldest).
type RotatingFileWriter struct {
	mu         sync.Mutex
	file       *os.File
	filePath   string
	maxSize    int64 // <= 0 disables rotation
	maxBackups int
	size       int64
}

// NewRotatingFileWriter creates a new rotating file writer
func NewRotatingFileWriter(filePath string, maxSize int64, maxBackups int) (*RotatingFileWriter, error) {
	w := &RotatingFileWriter{
		filePath:   filePath,
		maxSize:    maxSize,
		maxBackups: maxBackups,
	}

	if err := w.openFile(); err != nil {
		return nil, err
	}

	info, err := w.file.Stat()
	if err != nil {
		_ = w.file.Close()
		return nil, err
	}
	w.size = info.Size()

	return w, nil
}

// Write implements io.Writer
func (w *RotatingFileWriter) Write(p []byte) (n int, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.maxSize > 0 && w.size > 0 && w.size+int64(len(p)) > w.maxSize {
		if err := w.rotate(); err != nil {
			return 0, err
		}
	}

	n, err = w.file.Write(p)
	w.size += int64(n)
	return n, err
}

// Close closes the file
func (w *RotatingFileWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}

func (w *RotatingFileWriter) openFile() error {
	file, err := os.OpenFile(w.filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	w.file = file
	return nil
}

// rotate shifts the backups up by one and starts a fresh file
func (w *RotatingFileWriter) rotate() error {
	if w.file != nil {
		if err := w.file.Close(); err != nil {
			return err
		}
		w.file = nil
	}

	if w.maxBackups <= 0 {
		if err := os.Remove(w.filePath); err != nil && !os.IsNotExist(err) {
			return err
		}
	} else {
		// Oldest backup falls off the end
		if err := os.Remove(w.backupName(w.maxBackups)); err != nil && !os.IsNotExist(err) {
			return err
		}
		for i := w.maxBackups - 1; i > 0; i-- {
			if err := os.Rename(w.backupName(i), w.backupName(i+1)); err != nil && !os.IsNotExist(err) {
				return err
			}
		}
		if err := os.Rename(w.filePath, w.backupName(1)); err != nil && !os.IsNotExist(err) {
			return err
		}
	}

	if err := w.openFile(); err != nil {
		return err
	}

	w.size = 0
	return nil
}

// backupName generates the name for a backup file
func (w *RotatingFileWriter) backupName(index int) string {
	dir := filepath.Dir(w.filePath)
	base := filepath.Base(w.filePath)
	ext := filepath.Ext(base)
	name := base[:len(base)-len(ext)]

	return filepath.Join(dir, fmt.Sprintf("%s.%d%s", name, index, ext))
}

// Ensure RotatingFileWriter implements io.WriteCloser
var _ io.WriteCloser = (*RotatingFileWriter)(nil)
