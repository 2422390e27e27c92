package assay

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileAnalysisLogger appends analyzer invocations to a JSONL file per thread.
type FileAnalysisLogger struct {
	dataDir string
	mutex   sync.Mutex
}

// NewFileAnalysisLogger creates a file-based analysis logger rooted at dataDir.
func NewFileAnalysisLogger(dataDir string) (*FileAnalysisLogger, error) {
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		dataDir = filepath.Join(homeDir, ".deepnoodle", "assay", "logs")
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory %s: %w", dataDir, err)
	}
	return &FileAnalysisLogger{dataDir: dataDir}, nil
}

func (l *FileAnalysisLogger) logPath(threadID string) string {
	return filepath.Join(l.dataDir, threadID+".jsonl")
}

// LogAnalysis appends one entry to the thread's log file.
func (l *FileAnalysisLogger) LogAnalysis(ctx context.Context, entry *AnalysisLogEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal log entry: %w", err)
	}

	l.mutex.Lock()
	defer l.mutex.Unlock()

	f, err := os.OpenFile(l.logPath(entry.ThreadID), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write log entry: %w", err)
	}
	return nil
}

// GetAnalysisHistory reads back all entries for a thread.
func (l *FileAnalysisLogger) GetAnalysisHistory(ctx context.Context, threadID string) ([]*AnalysisLogEntry, error) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	f, err := os.Open(l.logPath(threadID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	defer f.Close()

	var entries []*AnalysisLogEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var entry AnalysisLogEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			return nil, fmt.Errorf("failed to unmarshal log entry: %w", err)
		}
		entries = append(entries, &entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read log file: %w", err)
	}
	return entries, nil
}
