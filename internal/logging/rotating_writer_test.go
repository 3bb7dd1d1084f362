package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewRotatingFileWriter(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "test.log")

	writer, err := NewRotatingFileWriter(logFile, 1024, 3)
	if err != nil {
		t.Fatalf("NewRotatingFileWriter failed: %v", err)
	}
	defer writer.Close()

	if writer.filePath != logFile {
		t.Errorf("FilePath = %q, want %q", writer.filePath, logFile)
	}
	if writer.maxSize != 1024 {
		t.Errorf("MaxSize = %d, want 1024", writer.maxSize)
	}
	if writer.maxBackups != 3 {
		t.Errorf("MaxBackups = %d, want 3", writer.maxBackups)
	}
}

func TestRotatingFileWriter_AppendsToExisting(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "test.log")
	if err := os.WriteFile(logFile, []byte("previous run\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	writer, err := NewRotatingFileWriter(logFile, 1024, 3)
	if err != nil {
		t.Fatalf("NewRotatingFileWriter failed: %v", err)
	}
	if writer.size != int64(len("previous run\n")) {
		t.Errorf("size = %d, want existing file size", writer.size)
	}

	_, _ = writer.Write([]byte("this run\n"))
	_ = writer.Close()

	content, _ := os.ReadFile(logFile)
	if string(content) != "previous run\nthis run\n" {
		t.Errorf("content = %q", content)
	}
}

func TestRotatingFileWriter_Rotation(t *testing.T) {
	tmpDir := t.TempDir()
	logFile := filepath.Join(tmpDir, "test.log")

	writer, err := NewRotatingFileWriter(logFile, 50, 3)
	if err != nil {
		t.Fatalf("NewRotatingFileWriter failed: %v", err)
	}
	defer writer.Close()

	firstMsg := strings.Repeat("A", 30) + "\n"
	secondMsg := strings.Repeat("B", 30) + "\n" // This should trigger rotation

	for _, msg := range []string{firstMsg, secondMsg} {
		if _, err := writer.Write([]byte(msg)); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}

	content, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	if string(content) != secondMsg {
		t.Errorf("Current file content = %q, want %q", content, secondMsg)
	}

	backup, err := os.ReadFile(filepath.Join(tmpDir, "test.1.log"))
	if err != nil {
		t.Fatalf("Backup file was not created: %v", err)
	}
	if string(backup) != firstMsg {
		t.Errorf("Backup content = %q, want %q", backup, firstMsg)
	}
}

func TestRotatingFileWriter_MaxBackups(t *testing.T) {
	tmpDir := t.TempDir()
	logFile := filepath.Join(tmpDir, "test.log")

	writer, err := NewRotatingFileWriter(logFile, 20, 2)
	if err != nil {
		t.Fatalf("NewRotatingFileWriter failed: %v", err)
	}
	defer writer.Close()

	// Every message exceeds the limit on its own, so each write rotates
	for i := 0; i < 5; i++ {
		msg := fmt.Sprintf("Message %d: %s\n", i, strings.Repeat("X", 15))
		if _, err := writer.Write([]byte(msg)); err != nil {
			t.Fatalf("Write %d failed: %v", i, err)
		}
	}

	files, err := os.ReadDir(tmpDir)
	if err != nil {
		t.Fatalf("Failed to read directory: %v", err)
	}
	if len(files) != 3 {
		t.Errorf("Found %d files, want current file plus 2 backups", len(files))
	}

	newest, _ := os.ReadFile(filepath.Join(tmpDir, "test.1.log"))
	if !strings.HasPrefix(string(newest), "Message 3") {
		t.Errorf("test.1.log = %q, want message 3", newest)
	}
	oldest, _ := os.ReadFile(filepath.Join(tmpDir, "test.2.log"))
	if !strings.HasPrefix(string(oldest), "Message 2") {
		t.Errorf("test.2.log = %q, want message 2", oldest)
	}
}

func TestRotatingFileWriter_NoBackups(t *testing.T) {
	tmpDir := t.TempDir()
	logFile := filepath.Join(tmpDir, "test.log")

	writer, err := NewRotatingFileWriter(logFile, 10, 0)
	if err != nil {
		t.Fatalf("NewRotatingFileWriter failed: %v", err)
	}
	defer writer.Close()

	_, _ = writer.Write([]byte("first line\n"))
	_, _ = writer.Write([]byte("second line\n"))

	files, _ := os.ReadDir(tmpDir)
	if len(files) != 1 {
		t.Errorf("Found %d files, want only the current file", len(files))
	}
	content, _ := os.ReadFile(logFile)
	if string(content) != "second line\n" {
		t.Errorf("content = %q", content)
	}
}

func TestRotatingFileWriter_BackupName(t *testing.T) {
	tmpDir := t.TempDir()
	logFile := filepath.Join(tmpDir, "app.log")

	writer, err := NewRotatingFileWriter(logFile, 1024, 3)
	if err != nil {
		t.Fatalf("NewRotatingFileWriter failed: %v", err)
	}
	defer writer.Close()

	if got := writer.backupName(1); got != filepath.Join(tmpDir, "app.1.log") {
		t.Errorf("backupName(1) = %q", got)
	}
}

func TestRotatingFileWriter_CloseTwice(t *testing.T) {
	writer, err := NewRotatingFileWriter(filepath.Join(t.TempDir(), "test.log"), 1024, 1)
	if err != nil {
		t.Fatalf("NewRotatingFileWriter failed: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Errorf("first Close() error = %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}
