package assay

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func basicScreening() Analyzer {
	return NewAnalyzerFunc("screening", func(ctx context.Context, input AnalyzerInput, emit EmitFunc) (*AnalyzerResult, error) {
		return &AnalyzerResult{Screening: &ScreeningResult{Refined: input.Problem, Viable: true}}, nil
	})
}

func scoredDimension(dimension string) Analyzer {
	return NewAnalyzerFunc("dim:"+dimension, func(ctx context.Context, input AnalyzerInput, emit EmitFunc) (*AnalyzerResult, error) {
		return &AnalyzerResult{Dimension: &DimensionResult{
			Dimension:  dimension,
			Score:      ScoreGoodFit,
			Confidence: 0.7,
			Reasoning:  "test",
		}}, nil
	})
}

func basicVerdict() Analyzer {
	return NewAnalyzerFunc("verdict", func(ctx context.Context, input AnalyzerInput, emit EmitFunc) (*AnalyzerResult, error) {
		scored := 0
		for _, r := range input.DimensionResults {
			if r.Status == ResultStatusScored {
				scored++
			}
		}
		if scored == 0 {
			return nil, NewPipelineError(ErrorTypeAI, "nothing scored")
		}
		return &AnalyzerResult{Verdict: &Verdict{Decision: "recommended", Confidence: 0.8}}, nil
	})
}

func basicSet() *AnalyzerSet {
	dims := map[string]Analyzer{}
	for _, d := range Dimensions {
		dims[d] = scoredDimension(d)
	}
	return &AnalyzerSet{
		Screening:  basicScreening(),
		Dimensions: dims,
		Verdict:    basicVerdict(),
		Secondary: map[string]Analyzer{
			SecondaryRisks: NewAnalyzerFunc("risks", func(ctx context.Context, input AnalyzerInput, emit EmitFunc) (*AnalyzerResult, error) {
				return &AnalyzerResult{Risks: &RiskAssessment{Findings: []Finding{{Title: "none"}}}}, nil
			}),
			SecondaryAlternatives: NewAnalyzerFunc("alternatives", func(ctx context.Context, input AnalyzerInput, emit EmitFunc) (*AnalyzerResult, error) {
				return &AnalyzerResult{Alternatives: &AlternativeAssessment{Findings: []Finding{{Title: "rules"}}}}, nil
			}),
			SecondaryArchitecture: NewAnalyzerFunc("architecture", func(ctx context.Context, input AnalyzerInput, emit EmitFunc) (*AnalyzerResult, error) {
				return &AnalyzerResult{Architecture: &ArchitectureSketch{Summary: "sketch"}}, nil
			}),
		},
		Synthesis: NewAnalyzerFunc("synthesis", func(ctx context.Context, input AnalyzerInput, emit EmitFunc) (*AnalyzerResult, error) {
			return &AnalyzerResult{Synthesis: &Synthesis{Narrative: "done", Recommendation: "proceed"}}, nil
		}),
	}
}

// eventRecorder collects events. The engine serializes emit calls, so no
// locking is needed when it is only read after Run returns.
type eventRecorder struct {
	events []Event
}

func (r *eventRecorder) record(e Event) {
	r.events = append(r.events, e)
}

func (r *eventRecorder) typesSeen() []EventType {
	var types []EventType
	for _, e := range r.events {
		types = append(types, EventTypeOf(e))
	}
	return types
}

func (r *eventRecorder) count(et EventType) int {
	n := 0
	for _, e := range r.events {
		if EventTypeOf(e) == et {
			n++
		}
	}
	return n
}

func TestRunToCompletion(t *testing.T) {
	ctx := context.Background()
	checkpointer := NewMemoryCheckpointer()
	recorder := &eventRecorder{}

	execution, err := NewExecution(ExecutionOptions{
		Input:        ProblemInput{Problem: "triage support tickets", Context: "2000 daily"},
		Analyzers:    basicSet(),
		Checkpointer: checkpointer,
		Events:       recorder.record,
	})
	require.NoError(t, err)

	outcome, err := execution.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, OutcomeCompleted, outcome.Status)
	require.Equal(t, StageComplete, outcome.Stage)

	// All seven dimensions scored
	require.Len(t, outcome.State.DimensionResults, 7)
	for _, d := range Dimensions {
		require.Equal(t, ResultStatusScored, outcome.State.DimensionResults[d].Status)
	}

	// Report carries everything accumulated
	require.NotNil(t, outcome.Report)
	require.Equal(t, "recommended", outcome.Report.Verdict.Decision)
	require.NotNil(t, outcome.Report.Risks)
	require.NotNil(t, outcome.Report.Alternatives)
	require.NotNil(t, outcome.Report.Architecture)
	require.NotNil(t, outcome.Report.Synthesis)

	// No suspension ever happened
	require.Zero(t, recorder.count(EventTypePipelineSuspended))
	require.Equal(t, 1, recorder.count(EventTypePipelineStarted))
	require.Equal(t, 1, recorder.count(EventTypePipelineCompleted))
	require.Equal(t, 5, recorder.count(EventTypeStageStarted))
	require.Equal(t, 5, recorder.count(EventTypeStageCompleted))
	require.Equal(t, 7, recorder.count(EventTypeDimensionCompleted))

	// Stages ran in pipeline order
	var stages []Stage
	for _, e := range recorder.events {
		if s, ok := e.(StageStarted); ok {
			stages = append(stages, s.Stage)
		}
	}
	require.Equal(t, StageOrder, stages)

	// Checkpoint history exists and latest matches the head of the list
	metas, err := checkpointer.List(ctx, outcome.ThreadID, ListOptions{})
	require.NoError(t, err)
	require.NotEmpty(t, metas)
	_, latestMeta, err := checkpointer.Latest(ctx, outcome.ThreadID)
	require.NoError(t, err)
	require.Equal(t, metas[0].CheckpointID, latestMeta.CheckpointID)
	require.Equal(t, StageComplete, latestMeta.Stage)
}

func suspendingScreening(questionID string) Analyzer {
	return NewAnalyzerFunc("screening", func(ctx context.Context, input AnalyzerInput, emit EmitFunc) (*AnalyzerResult, error) {
		if _, answered := input.Answers[questionID]; !answered {
			emit(AnalyzerQuestion{
				EventMeta: NewEventMeta(input.ThreadID),
				Question: Question{
					ID:       questionID,
					Stage:    StageScreening,
					Text:     "what is the error budget?",
					Blocking: true,
				},
			})
		}
		return &AnalyzerResult{Screening: &ScreeningResult{Refined: input.Problem, Viable: true}}, nil
	})
}

func TestSuspendOnBlockingQuestionAndResume(t *testing.T) {
	ctx := context.Background()
	checkpointer := NewMemoryCheckpointer()
	recorder := &eventRecorder{}

	set := basicSet()
	set.Screening = suspendingScreening("q-budget")

	execution, err := NewExecution(ExecutionOptions{
		Input:        ProblemInput{Problem: "automate invoice coding"},
		Analyzers:    set,
		Checkpointer: checkpointer,
		Events:       recorder.record,
	})
	require.NoError(t, err)

	outcome, err := execution.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, OutcomeSuspended, outcome.Status)
	require.Equal(t, StageScreening, outcome.Stage)
	require.Len(t, outcome.PendingQuestions, 1)
	require.Equal(t, "q-budget", outcome.PendingQuestions[0].ID)

	// Screening finished before the suspension
	require.True(t, outcome.State.HasCompleted(StageScreening))
	require.Equal(t, 1, recorder.count(EventTypePipelineSuspended))
	types := recorder.typesSeen()
	require.Equal(t, EventTypePipelineSuspended, types[len(types)-1])

	// Resume with the answer on a fresh execution for the same thread
	resumed, err := NewExecution(ExecutionOptions{
		ThreadID:     outcome.ThreadID,
		Analyzers:    set,
		Checkpointer: checkpointer,
		Events:       recorder.record,
	})
	require.NoError(t, err)

	final, err := resumed.ResumeWithAnswers(ctx, map[string]string{"q-budget": "5% misclassification is fine"})
	require.NoError(t, err)
	require.Equal(t, OutcomeCompleted, final.Status)
	require.Equal(t, "5% misclassification is fine", final.State.Answers["q-budget"])
	require.Empty(t, final.State.PendingQuestions)
	require.Equal(t, 1, recorder.count(EventTypePipelineResumed))
	require.Len(t, final.State.DimensionResults, 7)
}

func TestDimensionFailureDegradesGracefully(t *testing.T) {
	ctx := context.Background()
	recorder := &eventRecorder{}

	set := basicSet()
	set.Dimensions[DimensionRiskExposure] = NewAnalyzerFunc("dim:risk", func(ctx context.Context, input AnalyzerInput, emit EmitFunc) (*AnalyzerResult, error) {
		return nil, NewPipelineError(ErrorTypeFatal, "model meltdown")
	})

	execution, err := NewExecution(ExecutionOptions{
		Input:     ProblemInput{Problem: "summarize contracts"},
		Analyzers: set,
		Events:    recorder.record,
	})
	require.NoError(t, err)

	outcome, err := execution.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, OutcomeCompleted, outcome.Status)

	// Six scored, one failed, and the run still reached a verdict
	require.Len(t, outcome.State.DimensionResults, 7)
	failed := outcome.State.DimensionResults[DimensionRiskExposure]
	require.Equal(t, ResultStatusFailed, failed.Status)
	require.Contains(t, failed.Error, "model meltdown")
	require.NotNil(t, outcome.Report.Verdict)

	// The failure is on the audit trail, stage was not aborted
	require.NotEmpty(t, outcome.State.Errors)
	require.Equal(t, DimensionRiskExposure, outcome.State.Errors[0].Dimension)
	require.Equal(t, 1, recorder.count(EventTypeError))
	require.Zero(t, recorder.count(EventTypePipelineSuspended))
}

func TestResumeWithStaleAnswerLeavesStateUntouched(t *testing.T) {
	ctx := context.Background()
	checkpointer := NewMemoryCheckpointer()

	set := basicSet()
	set.Screening = suspendingScreening("q1")

	execution, err := NewExecution(ExecutionOptions{
		Input:        ProblemInput{Problem: "detect fraud"},
		Analyzers:    set,
		Checkpointer: checkpointer,
	})
	require.NoError(t, err)
	outcome, err := execution.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, OutcomeSuspended, outcome.Status)

	resumed, err := NewExecution(ExecutionOptions{
		ThreadID: outcome.ThreadID, Analyzers: set, Checkpointer: checkpointer,
	})
	require.NoError(t, err)
	_, err = resumed.ResumeWithAnswers(ctx, map[string]string{"q1": "answered"})
	require.NoError(t, err)

	before, err := checkpointer.List(ctx, outcome.ThreadID, ListOptions{})
	require.NoError(t, err)

	// Answering the same question again is stale and writes nothing
	again, err := NewExecution(ExecutionOptions{
		ThreadID: outcome.ThreadID, Analyzers: set, Checkpointer: checkpointer,
	})
	require.NoError(t, err)
	_, err = again.ResumeWithAnswers(ctx, map[string]string{"q1": "answered differently"})
	var stale *StaleAnswerError
	require.ErrorAs(t, err, &stale)
	require.Equal(t, "q1", stale.QuestionID)

	after, err := checkpointer.List(ctx, outcome.ThreadID, ListOptions{})
	require.NoError(t, err)
	require.Len(t, after, len(before))
	cp, _, err := checkpointer.Latest(ctx, outcome.ThreadID)
	require.NoError(t, err)
	require.Equal(t, "answered", cp.State.Answers["q1"])
}

func TestStageTimeoutThenSuccessfulRetry(t *testing.T) {
	ctx := context.Background()
	recorder := &eventRecorder{}

	var mutex sync.Mutex
	attempts := 0
	set := basicSet()
	set.Verdict = NewAnalyzerFunc("verdict", func(ctx context.Context, input AnalyzerInput, emit EmitFunc) (*AnalyzerResult, error) {
		mutex.Lock()
		attempts++
		first := attempts == 1
		mutex.Unlock()
		if first {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return &AnalyzerResult{Verdict: &Verdict{Decision: "conditional", Confidence: 0.5}}, nil
	})

	config := DefaultConfig()
	config.StageTimeouts[StageVerdict] = 50 * time.Millisecond
	config.RetryBaseWait = 10 * time.Millisecond

	execution, err := NewExecution(ExecutionOptions{
		Input:     ProblemInput{Problem: "route emails"},
		Analyzers: set,
		Events:    recorder.record,
		Config:    config,
	})
	require.NoError(t, err)

	outcome, err := execution.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, OutcomeCompleted, outcome.Status)

	// The retry produced the recorded verdict
	require.Equal(t, "conditional", outcome.Report.Verdict.Decision)
	require.Equal(t, 2, attempts)

	// Exactly one timeout-classified error on the audit trail
	var timeouts int
	for _, e := range outcome.State.Errors {
		if e.Type == ErrorTypeTimeout {
			timeouts++
		}
	}
	require.Equal(t, 1, timeouts)
	require.Equal(t, 1, recorder.count(EventTypeStageRetrying))
	for _, e := range recorder.events {
		if r, ok := e.(StageRetrying); ok {
			require.Equal(t, StageVerdict, r.Stage)
			require.Equal(t, ErrorTypeTimeout, r.ErrorType)
		}
	}
}

func askingDimension(dimension, questionID string, invocations *int, mutex *sync.Mutex) Analyzer {
	return NewAnalyzerFunc("dim:"+dimension, func(ctx context.Context, input AnalyzerInput, emit EmitFunc) (*AnalyzerResult, error) {
		mutex.Lock()
		*invocations++
		mutex.Unlock()
		if _, answered := input.Answers[questionID]; !answered {
			emit(AnalyzerQuestion{
				EventMeta: NewEventMeta(input.ThreadID),
				Question: Question{
					ID:        questionID,
					Stage:     StageDimensions,
					Dimension: dimension,
					Text:      "where does the data live?",
					Blocking:  true,
				},
			})
			return nil, NewPipelineError(ErrorTypeFatal, "awaiting answer")
		}
		return &AnalyzerResult{Dimension: &DimensionResult{
			Dimension: dimension, Score: ScoreStrongFit, Confidence: 0.9,
		}}, nil
	})
}

func TestDimensionSuspensionRerunsOnlyMissingDimensions(t *testing.T) {
	ctx := context.Background()
	checkpointer := NewMemoryCheckpointer()

	var mutex sync.Mutex
	askInvocations := 0
	otherInvocations := map[string]int{}

	set := basicSet()
	set.Dimensions[DimensionDataAvailability] = askingDimension(
		DimensionDataAvailability, "q-data", &askInvocations, &mutex)
	for _, d := range Dimensions {
		if d == DimensionDataAvailability {
			continue
		}
		set.Dimensions[d] = NewAnalyzerFunc("dim:"+d, func(d string) func(context.Context, AnalyzerInput, EmitFunc) (*AnalyzerResult, error) {
			return func(ctx context.Context, input AnalyzerInput, emit EmitFunc) (*AnalyzerResult, error) {
				mutex.Lock()
				otherInvocations[d]++
				mutex.Unlock()
				return &AnalyzerResult{Dimension: &DimensionResult{
					Dimension: d, Score: ScoreGoodFit, Confidence: 0.7,
				}}, nil
			}
		}(d))
	}

	execution, err := NewExecution(ExecutionOptions{
		Input:        ProblemInput{Problem: "forecast demand"},
		Analyzers:    set,
		Checkpointer: checkpointer,
	})
	require.NoError(t, err)

	outcome, err := execution.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, OutcomeSuspended, outcome.Status)
	require.Equal(t, StageDimensions, outcome.Stage)

	// Dimensions stage is not marked complete while a question is open
	require.False(t, outcome.State.HasCompleted(StageDimensions))
	require.Len(t, outcome.State.DimensionResults, 7)

	resumed, err := NewExecution(ExecutionOptions{
		ThreadID: outcome.ThreadID, Analyzers: set, Checkpointer: checkpointer,
	})
	require.NoError(t, err)
	final, err := resumed.ResumeWithAnswers(ctx, map[string]string{"q-data": "a postgres replica"})
	require.NoError(t, err)
	require.Equal(t, OutcomeCompleted, final.Status)

	// Only the dimension that asked ran twice
	require.Equal(t, 2, askInvocations)
	for d, n := range otherInvocations {
		require.Equal(t, 1, n, "dimension %s reran unnecessarily", d)
	}
	require.Equal(t, ResultStatusScored, final.State.DimensionResults[DimensionDataAvailability].Status)
}

// answerSensitiveDimension scores strong when the budget answer is present
// and poor otherwise, so the test can tell which knowledge the verdict used.
func answerSensitiveDimension(dimension string) Analyzer {
	return NewAnalyzerFunc("dim:"+dimension, func(ctx context.Context, input AnalyzerInput, emit EmitFunc) (*AnalyzerResult, error) {
		score := ScorePoorFit
		if input.Answers["q-budget"] == "generous" {
			score = ScoreStrongFit
		}
		return &AnalyzerResult{Dimension: &DimensionResult{
			Dimension: dimension, Score: score, Confidence: 0.8,
		}}, nil
	})
}

func TestSuspendResumeMatchesUninterruptedRun(t *testing.T) {
	ctx := context.Background()

	// Interrupted path: screening asks, run suspends, resume supplies the
	// answer before dimensions run.
	interrupted := basicSet()
	interrupted.Screening = suspendingScreening("q-budget")
	interrupted.Dimensions[DimensionErrorTolerance] = answerSensitiveDimension(DimensionErrorTolerance)

	checkpointer := NewMemoryCheckpointer()
	execution, err := NewExecution(ExecutionOptions{
		Input:        ProblemInput{Problem: "draft replies"},
		Analyzers:    interrupted,
		Checkpointer: checkpointer,
	})
	require.NoError(t, err)
	suspended, err := execution.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, OutcomeSuspended, suspended.Status)

	resumed, err := NewExecution(ExecutionOptions{
		ThreadID: suspended.ThreadID, Analyzers: interrupted, Checkpointer: checkpointer,
	})
	require.NoError(t, err)
	fromResume, err := resumed.ResumeWithAnswers(ctx, map[string]string{"q-budget": "generous"})
	require.NoError(t, err)
	require.Equal(t, OutcomeCompleted, fromResume.Status)

	// Uninterrupted path: the same analyzers acting as if the answer had
	// been known from the start.
	uninterrupted := basicSet()
	uninterrupted.Dimensions[DimensionErrorTolerance] = NewAnalyzerFunc("dim:known", func(ctx context.Context, input AnalyzerInput, emit EmitFunc) (*AnalyzerResult, error) {
		return &AnalyzerResult{Dimension: &DimensionResult{
			Dimension: DimensionErrorTolerance, Score: ScoreStrongFit, Confidence: 0.8,
		}}, nil
	})
	direct, err := NewExecution(ExecutionOptions{
		Input:     ProblemInput{Problem: "draft replies"},
		Analyzers: uninterrupted,
	})
	require.NoError(t, err)
	fromDirect, err := direct.Run(ctx)
	require.NoError(t, err)

	// Same dimension outcomes and verdict either way
	for _, d := range Dimensions {
		require.Equal(t,
			fromDirect.State.DimensionResults[d].Score,
			fromResume.State.DimensionResults[d].Score, "dimension %s", d)
	}
	require.Equal(t, fromDirect.Report.Verdict.Decision, fromResume.Report.Verdict.Decision)
}

func TestHelpfulQuestionDoesNotSuspend(t *testing.T) {
	ctx := context.Background()
	recorder := &eventRecorder{}

	set := basicSet()
	set.Dimensions[DimensionScaleBenefit] = NewAnalyzerFunc("dim:scale", func(ctx context.Context, input AnalyzerInput, emit EmitFunc) (*AnalyzerResult, error) {
		emit(AnalyzerQuestion{
			EventMeta: NewEventMeta(input.ThreadID),
			Question: Question{
				ID:       "q-volume",
				Stage:    StageDimensions,
				Text:     "roughly how many per day?",
				Blocking: false,
			},
		})
		return &AnalyzerResult{Dimension: &DimensionResult{
			Dimension: DimensionScaleBenefit, Score: ScorePartialFit, Confidence: 0.5,
		}}, nil
	})

	var execution *Execution
	execution, err := NewExecution(ExecutionOptions{
		Input:     ProblemInput{Problem: "classify images"},
		Analyzers: set,
		Events: func(e Event) {
			recorder.record(e)
			// Answer out of band the moment the question shows up
			if q, ok := e.(AnalyzerQuestion); ok {
				require.NoError(t, execution.SubmitAnswer(q.Question.ID, "about 500"))
			}
		},
	})
	require.NoError(t, err)

	outcome, err := execution.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, OutcomeCompleted, outcome.Status)
	require.Zero(t, recorder.count(EventTypePipelineSuspended))

	// The buffered answer was folded in at the verdict cutoff
	require.Equal(t, "about 500", outcome.State.Answers["q-volume"])
	require.Empty(t, outcome.State.PendingQuestions)

	// Answers after the cutoff are stale
	var stale *StaleAnswerError
	require.ErrorAs(t, execution.SubmitAnswer("q-volume", "late"), &stale)
}

func TestDimensionAnalyzersSeeStageStartSnapshot(t *testing.T) {
	ctx := context.Background()
	recorder := &eventRecorder{}

	// Stagger the analyzers so fast finishers fold their results (and raise
	// questions) while slow ones are still running. Every analyzer input is a
	// snapshot taken before the fan-out, so none may observe a sibling's
	// result no matter how the finishes interleave.
	var mu sync.Mutex
	observed := map[string]int{}
	set := basicSet()
	for i, d := range Dimensions {
		delay := time.Duration(i) * 3 * time.Millisecond
		set.Dimensions[d] = NewAnalyzerFunc("dim:"+d, func(ctx context.Context, input AnalyzerInput, emit EmitFunc) (*AnalyzerResult, error) {
			time.Sleep(delay)
			emit(AnalyzerQuestion{
				EventMeta: NewEventMeta(input.ThreadID),
				Question:  Question{ID: "q-" + input.Dimension, Text: "any context?", Blocking: false},
			})
			mu.Lock()
			observed[input.Dimension] = len(input.DimensionResults)
			mu.Unlock()
			return &AnalyzerResult{Dimension: &DimensionResult{
				Dimension: input.Dimension, Score: ScoreGoodFit, Confidence: 0.6,
			}}, nil
		})
	}

	execution, err := NewExecution(ExecutionOptions{
		Input:     ProblemInput{Problem: "dedupe customer records"},
		Analyzers: set,
		Events:    recorder.record,
	})
	require.NoError(t, err)

	outcome, err := execution.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, OutcomeCompleted, outcome.Status)
	require.Equal(t, 7, recorder.count(EventTypeDimensionCompleted))
	for _, d := range Dimensions {
		require.Zero(t, observed[d], "dimension %s saw a sibling's result", d)
	}
}

func TestRunResumesFromCheckpoint(t *testing.T) {
	ctx := context.Background()
	checkpointer := NewMemoryCheckpointer()

	set := basicSet()
	set.Screening = suspendingScreening("q1")

	execution, err := NewExecution(ExecutionOptions{
		Input:        ProblemInput{Problem: "score leads"},
		Analyzers:    set,
		Checkpointer: checkpointer,
	})
	require.NoError(t, err)
	outcome, err := execution.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, OutcomeSuspended, outcome.Status)

	resumed, err := NewExecution(ExecutionOptions{
		ThreadID: outcome.ThreadID, Analyzers: set, Checkpointer: checkpointer,
	})
	require.NoError(t, err)
	_, err = resumed.ResumeWithAnswers(ctx, map[string]string{"q1": "ok"})
	require.NoError(t, err)

	// A plain Run on a completed thread loads the checkpoint and rebuilds the
	// report without rerunning stages
	rerun, err := NewExecution(ExecutionOptions{
		ThreadID: outcome.ThreadID, Analyzers: set, Checkpointer: checkpointer,
	})
	require.NoError(t, err)
	final, err := rerun.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, OutcomeCompleted, final.Status)
	require.NotNil(t, final.Report.Verdict)
}

func TestResumeUnknownThreadFails(t *testing.T) {
	execution, err := NewExecution(ExecutionOptions{
		ThreadID:     "thread_missing",
		Analyzers:    basicSet(),
		Checkpointer: NewMemoryCheckpointer(),
	})
	require.NoError(t, err)
	_, err = execution.ResumeWithAnswers(context.Background(), map[string]string{"q": "a"})
	require.ErrorIs(t, err, ErrThreadNotFound)
}

func TestNewExecutionValidation(t *testing.T) {
	// Missing analyzers
	_, err := NewExecution(ExecutionOptions{Input: ProblemInput{Problem: "p"}})
	require.Error(t, err)

	// Incomplete analyzer set
	_, err = NewExecution(ExecutionOptions{
		Input:     ProblemInput{Problem: "p"},
		Analyzers: &AnalyzerSet{Screening: basicScreening()},
	})
	require.Error(t, err)

	// No problem text and no thread to resume
	_, err = NewExecution(ExecutionOptions{Analyzers: basicSet()})
	require.Error(t, err)
}

func TestExecutionRunsOnlyOnce(t *testing.T) {
	execution, err := NewExecution(ExecutionOptions{
		Input:     ProblemInput{Problem: "p"},
		Analyzers: basicSet(),
	})
	require.NoError(t, err)
	_, err = execution.Run(context.Background())
	require.NoError(t, err)
	_, err = execution.Run(context.Background())
	require.ErrorContains(t, err, "already started")
}

func TestFatalStageErrorFailsRun(t *testing.T) {
	recorder := &eventRecorder{}
	checkpointer := NewMemoryCheckpointer()
	set := basicSet()
	set.Screening = NewAnalyzerFunc("screening", func(ctx context.Context, input AnalyzerInput, emit EmitFunc) (*AnalyzerResult, error) {
		return nil, NewPipelineError(ErrorTypeValidation, "problem text is gibberish")
	})

	execution, err := NewExecution(ExecutionOptions{
		Input:        ProblemInput{Problem: "???"},
		Analyzers:    set,
		Checkpointer: checkpointer,
		Events:       recorder.record,
	})
	require.NoError(t, err)

	outcome, err := execution.Run(context.Background())
	var perr *PipelineError
	require.ErrorAs(t, err, &perr)
	require.Equal(t, ErrorTypeValidation, perr.Type)
	require.Equal(t, OutcomeFailed, outcome.Status)
	require.Equal(t, StageScreening, outcome.Stage)

	// The failure was checkpointed with the error on the audit trail. One
	// failure means exactly one audit entry and one error event, not a second
	// record from the retry loop on top of the failure handling.
	cp, _, err := checkpointer.Latest(context.Background(), outcome.ThreadID)
	require.NoError(t, err)
	require.Equal(t, TriggerError, cp.Trigger)
	require.Len(t, cp.State.Errors, 1)
	require.Len(t, outcome.State.Errors, 1)
	require.Equal(t, 1, recorder.count(EventTypeError))
}
