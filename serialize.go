package assay

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// StateSchemaVersion is the current on-the-wire version of PipelineState.
// Payloads with a newer version are rejected rather than guessed at.
const StateSchemaVersion = 1

// SchemaError indicates a serialized payload uses a schema version newer
// than this build supports.
type SchemaError struct {
	Version int
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("unsupported schema version %d (supported up to %d)", e.Version, StateSchemaVersion)
}

// Mapping-valued fields are stored as ordered (key, value) pair lists and
// rebuilt into maps on load. Key order in storage is insignificant; pairs are
// written sorted by key only to keep payloads deterministic.

type answerPair struct {
	QuestionID string `json:"question_id"`
	Answer     string `json:"answer"`
}

type dimensionPair struct {
	Dimension string          `json:"dimension"`
	Result    DimensionResult `json:"result"`
}

type statePayload struct {
	Version          int                    `json:"version"`
	ThreadID         string                 `json:"thread_id"`
	Stage            Stage                  `json:"stage"`
	Input            ProblemInput           `json:"input"`
	Screening        *ScreeningResult       `json:"screening,omitempty"`
	Answers          []answerPair           `json:"answers"`
	DimensionResults []dimensionPair        `json:"dimension_results"`
	Verdict          *Verdict               `json:"verdict,omitempty"`
	Risks            *RiskAssessment        `json:"risks,omitempty"`
	Alternatives     *AlternativeAssessment `json:"alternatives,omitempty"`
	Architecture     *ArchitectureSketch    `json:"architecture,omitempty"`
	Synthesis        *Synthesis             `json:"synthesis,omitempty"`
	PendingQuestions []Question             `json:"pending_questions"`
	CompletedStages  []Stage                `json:"completed_stages"`
	Errors           []RecordedError        `json:"errors"`
	CreatedAt        time.Time              `json:"created_at"`
	UpdatedAt        time.Time              `json:"updated_at"`
}

// MarshalState serializes a pipeline state to its versioned JSON form.
func MarshalState(s PipelineState) ([]byte, error) {
	p := statePayload{
		Version:          StateSchemaVersion,
		ThreadID:         s.ThreadID,
		Stage:            s.Stage,
		Input:            s.Input,
		Screening:        s.Screening,
		Verdict:          s.Verdict,
		Risks:            s.Risks,
		Alternatives:     s.Alternatives,
		Architecture:     s.Architecture,
		Synthesis:        s.Synthesis,
		PendingQuestions: s.PendingQuestions,
		CompletedStages:  s.CompletedStages,
		Errors:           s.Errors,
		CreatedAt:        s.CreatedAt,
		UpdatedAt:        s.UpdatedAt,
	}
	for id, answer := range s.Answers {
		p.Answers = append(p.Answers, answerPair{QuestionID: id, Answer: answer})
	}
	sort.Slice(p.Answers, func(i, j int) bool {
		return p.Answers[i].QuestionID < p.Answers[j].QuestionID
	})
	for id, result := range s.DimensionResults {
		p.DimensionResults = append(p.DimensionResults, dimensionPair{Dimension: id, Result: result})
	}
	sort.Slice(p.DimensionResults, func(i, j int) bool {
		return p.DimensionResults[i].Dimension < p.DimensionResults[j].Dimension
	})
	return json.Marshal(p)
}

// UnmarshalState deserializes a pipeline state. It returns a *SchemaError if
// the payload was written by a newer version of the engine.
func UnmarshalState(data []byte) (PipelineState, error) {
	var p statePayload
	if err := json.Unmarshal(data, &p); err != nil {
		return PipelineState{}, fmt.Errorf("failed to unmarshal pipeline state: %w", err)
	}
	if p.Version > StateSchemaVersion {
		return PipelineState{}, &SchemaError{Version: p.Version}
	}
	s := PipelineState{
		ThreadID:         p.ThreadID,
		Stage:            p.Stage,
		Input:            p.Input,
		Screening:        p.Screening,
		Answers:          make(map[string]string, len(p.Answers)),
		DimensionResults: make(map[string]DimensionResult, len(p.DimensionResults)),
		Verdict:          p.Verdict,
		Risks:            p.Risks,
		Alternatives:     p.Alternatives,
		Architecture:     p.Architecture,
		Synthesis:        p.Synthesis,
		PendingQuestions: p.PendingQuestions,
		CompletedStages:  p.CompletedStages,
		Errors:           p.Errors,
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
	}
	for _, pair := range p.Answers {
		s.Answers[pair.QuestionID] = pair.Answer
	}
	for _, pair := range p.DimensionResults {
		s.DimensionResults[pair.Dimension] = pair.Result
	}
	return s, nil
}
