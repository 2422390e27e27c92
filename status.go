package assay

import (
	"context"
	"time"
)

// ThreadStatus summarizes where a run stands, derived from checkpoint
// metadata without deserializing full state.
type ThreadStatus struct {
	ThreadID            string     `json:"thread_id"`
	Stage               Stage      `json:"stage"`
	Suspended           bool       `json:"suspended"`
	Complete            bool       `json:"complete"`
	CompletedStages     []Stage    `json:"completed_stages,omitempty"`
	CompletedDimensions []string   `json:"completed_dimensions,omitempty"`
	FailedDimensions    []string   `json:"failed_dimensions,omitempty"`
	PendingQuestions    []Question `json:"pending_questions,omitempty"`
	Verdict             string     `json:"verdict,omitempty"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// ReadStatus reports the current status of a thread from its latest
// checkpoint. Returns ErrThreadNotFound if the thread has no checkpoints.
func ReadStatus(ctx context.Context, checkpointer Checkpointer, threadID string) (*ThreadStatus, error) {
	cp, meta, err := checkpointer.Latest(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if cp == nil {
		return nil, ErrThreadNotFound
	}
	if meta == nil {
		meta = MetadataFor(cp)
	}
	status := &ThreadStatus{
		ThreadID:            threadID,
		Stage:               meta.Stage,
		Complete:            meta.Stage == StageComplete,
		CompletedStages:     meta.CompletedStages,
		CompletedDimensions: meta.CompletedDimensions,
		FailedDimensions:    meta.FailedDimensions,
		Verdict:             meta.Verdict,
		UpdatedAt:           meta.CreatedAt,
	}
	for _, q := range cp.State.PendingQuestions {
		status.PendingQuestions = append(status.PendingQuestions, q)
		if q.Blocking {
			status.Suspended = true
		}
	}
	return status, nil
}
