package assay

import (
	"context"
	"time"
)

// AnalysisLogEntry records a single analyzer invocation for audit.
type AnalysisLogEntry struct {
	ThreadID  string    `json:"thread_id"`
	Stage     Stage     `json:"stage"`
	Dimension string    `json:"dimension,omitempty"`
	Analyzer  string    `json:"analyzer"`
	Attempt   int       `json:"attempt"`
	Error     string    `json:"error,omitempty"`
	StartTime time.Time `json:"start_time"`
	Duration  float64   `json:"duration"`
}

// AnalysisLogger defines simple analyzer invocation logging
type AnalysisLogger interface {
	// LogAnalysis logs a completed analyzer invocation
	LogAnalysis(ctx context.Context, entry *AnalysisLogEntry) error

	// GetAnalysisHistory retrieves the invocation log for a thread
	GetAnalysisHistory(ctx context.Context, threadID string) ([]*AnalysisLogEntry, error)
}
