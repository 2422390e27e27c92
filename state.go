package assay

import (
	"fmt"
	"time"
)

// Stage identifies a phase of the assessment pipeline.
type Stage string

const (
	StageScreening  Stage = "screening"
	StageDimensions Stage = "dimensions"
	StageVerdict    Stage = "verdict"
	StageSecondary  Stage = "secondary"
	StageSynthesis  Stage = "synthesis"
	StageComplete   Stage = "complete"
)

// StageOrder lists the working stages in execution order. StageComplete is
// terminal and never executed.
var StageOrder = []Stage{
	StageScreening,
	StageDimensions,
	StageVerdict,
	StageSecondary,
	StageSynthesis,
}

// ProblemInput is the user-submitted problem under assessment. Immutable
// after the pipeline state is created.
type ProblemInput struct {
	Problem     string    `json:"problem"`
	Context     string    `json:"context,omitempty"`
	SubmittedAt time.Time `json:"submitted_at,omitzero"`
}

// Question is a clarifying question raised by an analyzer. Blocking questions
// suspend the pipeline until answered; helpful questions are answered out of
// band if at all.
type Question struct {
	ID        string    `json:"id"`
	Stage     Stage     `json:"stage"`
	Dimension string    `json:"dimension,omitempty"`
	Text      string    `json:"text"`
	Blocking  bool      `json:"blocking"`
	RaisedAt  time.Time `json:"raised_at,omitzero"`
}

// ResultStatus indicates whether a dimension was scored or its analyzer failed.
type ResultStatus string

const (
	ResultStatusScored ResultStatus = "scored"
	ResultStatusFailed ResultStatus = "failed"
)

// Score tags assigned by dimension analyzers.
const (
	ScoreStrongFit  = "strong_fit"
	ScoreGoodFit    = "good_fit"
	ScorePartialFit = "partial_fit"
	ScorePoorFit    = "poor_fit"
)

// DimensionResult is the outcome of one dimension analyzer.
type DimensionResult struct {
	Dimension   string       `json:"dimension"`
	Status      ResultStatus `json:"status"`
	Score       string       `json:"score,omitempty"`
	Confidence  float64      `json:"confidence,omitempty"`
	Reasoning   string       `json:"reasoning,omitempty"`
	Weight      float64      `json:"weight,omitempty"`
	Error       string       `json:"error,omitempty"`
	CompletedAt time.Time    `json:"completed_at,omitzero"`
}

// ScreeningResult is the output of the screening stage.
type ScreeningResult struct {
	Refined    string `json:"refined"`
	Complexity string `json:"complexity,omitempty"`
	Viable     bool   `json:"viable"`
}

// Verdict is the synthesized suitability decision.
type Verdict struct {
	Decision   string    `json:"decision"`
	Confidence float64   `json:"confidence"`
	Summary    string    `json:"summary,omitempty"`
	DecidedAt  time.Time `json:"decided_at,omitzero"`
}

// Finding is a single item in a secondary analysis.
type Finding struct {
	Title    string `json:"title"`
	Severity string `json:"severity,omitempty"`
	Detail   string `json:"detail,omitempty"`
}

// RiskAssessment lists risks of adopting an AI approach for the problem.
type RiskAssessment struct {
	Findings []Finding `json:"findings"`
}

// AlternativeAssessment lists non-AI alternatives worth considering.
type AlternativeAssessment struct {
	Findings []Finding `json:"findings"`
}

// ArchitectureSketch outlines a candidate solution shape.
type ArchitectureSketch struct {
	Summary    string   `json:"summary"`
	Components []string `json:"components,omitempty"`
}

// Synthesis is the final narrative produced by the last stage.
type Synthesis struct {
	Narrative      string `json:"narrative"`
	Recommendation string `json:"recommendation,omitempty"`
}

// RecordedError is an audit entry for a failure observed during execution.
// Entries are append-only and survive recovery.
type RecordedError struct {
	Stage     Stage     `json:"stage"`
	Dimension string    `json:"dimension,omitempty"`
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	At        time.Time `json:"at,omitzero"`
}

// PipelineState is the complete state of one assessment run. Values are
// immutable: every transition returns a new state and leaves the receiver
// untouched, so a state held by a checkpoint can never be corrupted by later
// execution.
type PipelineState struct {
	ThreadID         string
	Stage            Stage
	Input            ProblemInput
	Screening        *ScreeningResult
	Answers          map[string]string
	DimensionResults map[string]DimensionResult
	Verdict          *Verdict
	Risks            *RiskAssessment
	Alternatives     *AlternativeAssessment
	Architecture     *ArchitectureSketch
	Synthesis        *Synthesis
	PendingQuestions []Question
	CompletedStages  []Stage
	Errors           []RecordedError
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// NewPipelineState creates the initial state for a run.
func NewPipelineState(threadID string, input ProblemInput) PipelineState {
	now := time.Now()
	if input.SubmittedAt.IsZero() {
		input.SubmittedAt = now
	}
	return PipelineState{
		ThreadID:         threadID,
		Stage:            StageScreening,
		Input:            input,
		Answers:          map[string]string{},
		DimensionResults: map[string]DimensionResult{},
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// clone returns a deep copy of the state. All transitions go through clone so
// the original value is never aliased.
func (s PipelineState) clone() PipelineState {
	c := s
	c.Answers = make(map[string]string, len(s.Answers))
	for k, v := range s.Answers {
		c.Answers[k] = v
	}
	c.DimensionResults = make(map[string]DimensionResult, len(s.DimensionResults))
	for k, v := range s.DimensionResults {
		c.DimensionResults[k] = v
	}
	c.PendingQuestions = append([]Question(nil), s.PendingQuestions...)
	c.CompletedStages = append([]Stage(nil), s.CompletedStages...)
	c.Errors = append([]RecordedError(nil), s.Errors...)
	if s.Screening != nil {
		v := *s.Screening
		c.Screening = &v
	}
	if s.Verdict != nil {
		v := *s.Verdict
		c.Verdict = &v
	}
	if s.Risks != nil {
		v := *s.Risks
		v.Findings = append([]Finding(nil), s.Risks.Findings...)
		c.Risks = &v
	}
	if s.Alternatives != nil {
		v := *s.Alternatives
		v.Findings = append([]Finding(nil), s.Alternatives.Findings...)
		c.Alternatives = &v
	}
	if s.Architecture != nil {
		v := *s.Architecture
		v.Components = append([]string(nil), s.Architecture.Components...)
		c.Architecture = &v
	}
	if s.Synthesis != nil {
		v := *s.Synthesis
		c.Synthesis = &v
	}
	return c
}

func (s PipelineState) touched() PipelineState {
	c := s.clone()
	c.UpdatedAt = time.Now()
	return c
}

// WithStage returns a copy of the state advanced to the given stage.
func (s PipelineState) WithStage(stage Stage) PipelineState {
	c := s.touched()
	c.Stage = stage
	return c
}

// WithScreening records the screening result.
func (s PipelineState) WithScreening(result ScreeningResult) PipelineState {
	c := s.touched()
	c.Screening = &result
	return c
}

// WithDimensionResult merges one dimension result into the state. Merges are
// commutative: any arrival order of the seven results yields the same final
// mapping. Unknown dimension identifiers are rejected.
func (s PipelineState) WithDimensionResult(result DimensionResult) (PipelineState, error) {
	if !IsDimension(result.Dimension) {
		return s, fmt.Errorf("unknown dimension %q", result.Dimension)
	}
	c := s.touched()
	c.DimensionResults[result.Dimension] = result
	return c, nil
}

// WithVerdict records the verdict. The slot is written exactly once.
func (s PipelineState) WithVerdict(verdict Verdict) PipelineState {
	c := s.touched()
	c.Verdict = &verdict
	return c
}

// WithRisks records the risk assessment.
func (s PipelineState) WithRisks(risks RiskAssessment) PipelineState {
	c := s.touched()
	c.Risks = &risks
	return c
}

// WithAlternatives records the alternatives assessment.
func (s PipelineState) WithAlternatives(alts AlternativeAssessment) PipelineState {
	c := s.touched()
	c.Alternatives = &alts
	return c
}

// WithArchitecture records the architecture sketch.
func (s PipelineState) WithArchitecture(arch ArchitectureSketch) PipelineState {
	c := s.touched()
	c.Architecture = &arch
	return c
}

// WithSynthesis records the final synthesis.
func (s PipelineState) WithSynthesis(syn Synthesis) PipelineState {
	c := s.touched()
	c.Synthesis = &syn
	return c
}

// WithPendingQuestion appends a question to the pending list. A question
// already answered or already pending is not added again.
func (s PipelineState) WithPendingQuestion(q Question) PipelineState {
	if _, answered := s.Answers[q.ID]; answered {
		return s
	}
	for _, pending := range s.PendingQuestions {
		if pending.ID == q.ID {
			return s
		}
	}
	c := s.touched()
	if q.RaisedAt.IsZero() {
		q.RaisedAt = time.Now()
	}
	c.PendingQuestions = append(c.PendingQuestions, q)
	return c
}

// WithAnswer records an answer and removes the question from the pending
// list, keeping the two disjoint. Recording an answer for a question that is
// not pending is an error; callers wanting stale-answer semantics should use
// the answer gate.
func (s PipelineState) WithAnswer(questionID, answer string) (PipelineState, error) {
	idx := -1
	for i, q := range s.PendingQuestions {
		if q.ID == questionID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return s, &StaleAnswerError{QuestionID: questionID}
	}
	c := s.touched()
	c.Answers[questionID] = answer
	c.PendingQuestions = append(c.PendingQuestions[:idx], c.PendingQuestions[idx+1:]...)
	return c, nil
}

// WithError appends a recorded error. Errors are never removed, even after
// recovery.
func (s PipelineState) WithError(e RecordedError) PipelineState {
	c := s.touched()
	if e.At.IsZero() {
		e.At = time.Now()
	}
	c.Errors = append(c.Errors, e)
	return c
}

// WithCompletedStage appends a stage to the completed list if not present.
func (s PipelineState) WithCompletedStage(stage Stage) PipelineState {
	if s.HasCompleted(stage) {
		return s
	}
	c := s.touched()
	c.CompletedStages = append(c.CompletedStages, stage)
	return c
}

// HasCompleted reports whether a stage has finished.
func (s PipelineState) HasCompleted(stage Stage) bool {
	for _, done := range s.CompletedStages {
		if done == stage {
			return true
		}
	}
	return false
}

// PendingBlockingQuestions returns the pending questions that block execution.
func (s PipelineState) PendingBlockingQuestions() []Question {
	var blocking []Question
	for _, q := range s.PendingQuestions {
		if q.Blocking {
			blocking = append(blocking, q)
		}
	}
	return blocking
}

// MissingDimensions returns the dimensions without a scored result, in
// canonical order. Failed dimensions count as missing so a resumed run can
// retry them.
func (s PipelineState) MissingDimensions() []string {
	var missing []string
	for _, d := range Dimensions {
		r, ok := s.DimensionResults[d]
		if !ok || r.Status != ResultStatusScored {
			missing = append(missing, d)
		}
	}
	return missing
}
