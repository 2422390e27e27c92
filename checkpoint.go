package assay

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// CheckpointVersion is the current version of the checkpoint envelope.
const CheckpointVersion = 1

// CheckpointTrigger describes why a checkpoint was written.
type CheckpointTrigger string

const (
	TriggerStageStart        CheckpointTrigger = "stage_start"
	TriggerStageComplete     CheckpointTrigger = "stage_complete"
	TriggerDimensionComplete CheckpointTrigger = "dimension_complete"
	TriggerQuestionEmitted   CheckpointTrigger = "question_emitted"
	TriggerAnswerReceived    CheckpointTrigger = "answer_received"
	TriggerError             CheckpointTrigger = "error"
	TriggerManual            CheckpointTrigger = "manual"
)

// Checkpoint is an immutable point-in-time snapshot of pipeline state.
type Checkpoint struct {
	Version   int               `json:"version"`
	ID        string            `json:"id"`
	ParentID  string            `json:"parent_id,omitempty"`
	ThreadID  string            `json:"thread_id"`
	Trigger   CheckpointTrigger `json:"trigger"`
	CreatedAt time.Time         `json:"created_at"`
	State     PipelineState     `json:"-"`
}

// NewCheckpoint snapshots the given state. The state is deep-copied so later
// transitions can never alter the checkpoint.
func NewCheckpoint(state PipelineState, trigger CheckpointTrigger, parentID string) *Checkpoint {
	return &Checkpoint{
		Version:   CheckpointVersion,
		ID:        uuid.NewString(),
		ParentID:  parentID,
		ThreadID:  state.ThreadID,
		Trigger:   trigger,
		CreatedAt: time.Now(),
		State:     state.clone(),
	}
}

// checkpointEnvelope is the storage form: version tag + thread + stage +
// serialized state.
type checkpointEnvelope struct {
	Version   int               `json:"version"`
	ID        string            `json:"id"`
	ParentID  string            `json:"parent_id,omitempty"`
	ThreadID  string            `json:"thread_id"`
	Stage     Stage             `json:"stage"`
	Trigger   CheckpointTrigger `json:"trigger"`
	CreatedAt time.Time         `json:"created_at"`
	State     json.RawMessage   `json:"state"`
}

// EncodeCheckpoint serializes a checkpoint for storage.
func EncodeCheckpoint(cp *Checkpoint) ([]byte, error) {
	stateData, err := MarshalState(cp.State)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal checkpoint state: %w", err)
	}
	return json.Marshal(checkpointEnvelope{
		Version:   cp.Version,
		ID:        cp.ID,
		ParentID:  cp.ParentID,
		ThreadID:  cp.ThreadID,
		Stage:     cp.State.Stage,
		Trigger:   cp.Trigger,
		CreatedAt: cp.CreatedAt,
		State:     stateData,
	})
}

// DecodeCheckpoint deserializes a stored checkpoint. Payloads written by a
// newer engine version are rejected with a *SchemaError.
func DecodeCheckpoint(data []byte) (*Checkpoint, error) {
	var env checkpointEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkpoint: %w", err)
	}
	if env.Version > CheckpointVersion {
		return nil, &SchemaError{Version: env.Version}
	}
	state, err := UnmarshalState(env.State)
	if err != nil {
		return nil, err
	}
	return &Checkpoint{
		Version:   env.Version,
		ID:        env.ID,
		ParentID:  env.ParentID,
		ThreadID:  env.ThreadID,
		Trigger:   env.Trigger,
		CreatedAt: env.CreatedAt,
		State:     state,
	}, nil
}

// CheckpointMetadata is a denormalized summary of a checkpoint used for
// status queries without deserializing the full state.
type CheckpointMetadata struct {
	ThreadID            string            `json:"thread_id"`
	CheckpointID        string            `json:"checkpoint_id"`
	Stage               Stage             `json:"stage"`
	Trigger             CheckpointTrigger `json:"trigger"`
	CreatedAt           time.Time         `json:"created_at"`
	CompletedStages     []Stage           `json:"completed_stages,omitempty"`
	CompletedDimensions []string          `json:"completed_dimensions,omitempty"`
	FailedDimensions    []string          `json:"failed_dimensions,omitempty"`
	PendingQuestionIDs  []string          `json:"pending_question_ids,omitempty"`
	AnsweredQuestionIDs []string          `json:"answered_question_ids,omitempty"`
	Verdict             string            `json:"verdict,omitempty"`
}

// MetadataFor builds the metadata summary for a checkpoint.
func MetadataFor(cp *Checkpoint) *CheckpointMetadata {
	meta := &CheckpointMetadata{
		ThreadID:        cp.ThreadID,
		CheckpointID:    cp.ID,
		Stage:           cp.State.Stage,
		Trigger:         cp.Trigger,
		CreatedAt:       cp.CreatedAt,
		CompletedStages: append([]Stage(nil), cp.State.CompletedStages...),
	}
	for _, d := range Dimensions {
		if r, ok := cp.State.DimensionResults[d]; ok {
			if r.Status == ResultStatusScored {
				meta.CompletedDimensions = append(meta.CompletedDimensions, d)
			} else {
				meta.FailedDimensions = append(meta.FailedDimensions, d)
			}
		}
	}
	for _, q := range cp.State.PendingQuestions {
		meta.PendingQuestionIDs = append(meta.PendingQuestionIDs, q.ID)
	}
	for id := range cp.State.Answers {
		meta.AnsweredQuestionIDs = append(meta.AnsweredQuestionIDs, id)
	}
	sort.Strings(meta.AnsweredQuestionIDs)
	if cp.State.Verdict != nil {
		meta.Verdict = cp.State.Verdict.Decision
	}
	return meta
}
