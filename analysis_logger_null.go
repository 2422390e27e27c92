package assay

import "context"

// NullAnalysisLogger is a no-op implementation of AnalysisLogger.
type NullAnalysisLogger struct{}

func NewNullAnalysisLogger() *NullAnalysisLogger {
	return &NullAnalysisLogger{}
}

func (l *NullAnalysisLogger) LogAnalysis(ctx context.Context, entry *AnalysisLogEntry) error {
	return nil
}

func (l *NullAnalysisLogger) GetAnalysisHistory(ctx context.Context, threadID string) ([]*AnalysisLogEntry, error) {
	return nil, nil
}
