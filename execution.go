package assay

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"go.jetify.com/typeid"
)

// NewThreadID returns a new identifier for a pipeline run.
func NewThreadID() string {
	id, err := typeid.WithPrefix("thread")
	if err != nil {
		panic(err)
	}
	return id.String()
}

// OutcomeStatus describes how a Run or resume call ended.
type OutcomeStatus string

const (
	OutcomeCompleted OutcomeStatus = "completed"
	OutcomeSuspended OutcomeStatus = "suspended"
	OutcomeFailed    OutcomeStatus = "failed"
)

// Outcome is what an execution entry point returns. A suspended outcome is a
// normal return, not an error: the checkpoint holds everything needed to
// resume, and PendingQuestions tells the caller what to ask.
type Outcome struct {
	ThreadID         string
	Status           OutcomeStatus
	Stage            Stage
	State            PipelineState
	PendingQuestions []Question
	Report           *AssessmentReport
}

// AssessmentReport is the final result record assembled from accumulated
// state once synthesis finishes.
type AssessmentReport struct {
	ThreadID         string                     `json:"thread_id"`
	Input            ProblemInput               `json:"input"`
	Screening        *ScreeningResult           `json:"screening,omitempty"`
	Verdict          *Verdict                   `json:"verdict,omitempty"`
	DimensionResults map[string]DimensionResult `json:"dimension_results"`
	Risks            *RiskAssessment            `json:"risks,omitempty"`
	Alternatives     *AlternativeAssessment     `json:"alternatives,omitempty"`
	Architecture     *ArchitectureSketch        `json:"architecture,omitempty"`
	Synthesis        *Synthesis                 `json:"synthesis,omitempty"`
	Errors           []RecordedError            `json:"errors,omitempty"`
	StartedAt        time.Time                  `json:"started_at"`
	CompletedAt      time.Time                  `json:"completed_at"`
}

// ExecutionOptions configures a new execution
type ExecutionOptions struct {
	Input          ProblemInput
	ThreadID       string
	Analyzers      *AnalyzerSet
	Checkpointer   Checkpointer
	Logger         *slog.Logger
	Callbacks      ExecutionCallbacks
	Events         EmitFunc
	AnalysisLogger AnalysisLogger
	Config         *Config
}

// Execution drives one assessment run through the fixed stage graph. A single
// Execution owns its thread for the duration of one entry-point call; two
// Executions must never be given the same thread ID concurrently (this is a
// caller-enforced invariant).
type Execution struct {
	state     PipelineState
	analyzers *AnalyzerSet
	gate      *AnswerGate

	// Infrastructure dependencies
	checkpointer   Checkpointer
	callbacks      ExecutionCallbacks
	analysisLogger AnalysisLogger
	config         *Config
	events         EmitFunc
	logger         *slog.Logger

	mutex            sync.Mutex
	started          bool
	lastCheckpointID string
	suspendRequested bool
}

// NewExecution creates an execution for one thread. If a checkpoint already
// exists for the thread ID, Run resumes from it; otherwise Run starts fresh.
func NewExecution(opts ExecutionOptions) (*Execution, error) {
	if opts.Analyzers == nil {
		return nil, NewPipelineError(ErrorTypeValidation, "analyzers are required")
	}
	if err := opts.Analyzers.Validate(); err != nil {
		return nil, NewPipelineError(ErrorTypeValidation, err.Error())
	}
	if opts.ThreadID == "" {
		if opts.Input.Problem == "" {
			return nil, NewPipelineError(ErrorTypeValidation, "problem text is required")
		}
		opts.ThreadID = NewThreadID()
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Checkpointer == nil {
		opts.Checkpointer = NewNullCheckpointer()
	}
	if opts.Callbacks == nil {
		opts.Callbacks = &BaseExecutionCallbacks{}
	}
	if opts.AnalysisLogger == nil {
		opts.AnalysisLogger = NewNullAnalysisLogger()
	}
	if opts.Config == nil {
		opts.Config = DefaultConfig()
	}
	return &Execution{
		state:          NewPipelineState(opts.ThreadID, opts.Input),
		analyzers:      opts.Analyzers,
		gate:           NewAnswerGate(),
		checkpointer:   opts.Checkpointer,
		callbacks:      opts.Callbacks,
		analysisLogger: opts.AnalysisLogger,
		config:         opts.Config,
		events:         opts.Events,
		logger:         opts.Logger.With("thread_id", opts.ThreadID),
	}, nil
}

// ThreadID returns the thread identifier for this run.
func (e *Execution) ThreadID() string {
	return e.state.ThreadID
}

// State returns a copy of the current pipeline state.
func (e *Execution) State() PipelineState {
	return e.state.clone()
}

// SubmitAnswer records an out-of-band answer for a non-blocking question.
// The answer is buffered and folded into state at the verdict cutoff; if the
// cutoff has passed, or the question is unknown, a *StaleAnswerError is
// returned. Duplicate submissions follow last write wins by arrival order.
func (e *Execution) SubmitAnswer(questionID, answer string) error {
	return e.gate.Submit(questionID, answer)
}

func (e *Execution) start() error {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	if e.started {
		return fmt.Errorf("execution already started")
	}
	e.started = true
	return nil
}

// Run executes the pipeline until it completes, suspends on a blocking
// question, or fails. If the thread has a checkpoint, execution resumes from
// the first incomplete stage instead of starting over.
func (e *Execution) Run(ctx context.Context) (*Outcome, error) {
	if err := e.start(); err != nil {
		return nil, err
	}

	cp, _, err := e.checkpointer.Latest(ctx, e.state.ThreadID)
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}
	if cp != nil {
		e.state = cp.State
		e.lastCheckpointID = cp.ID
		e.gate.Seed(e.state)
		e.logger.Info("resuming from checkpoint",
			"checkpoint_id", cp.ID,
			"stage", e.state.Stage,
			"completed_stages", len(e.state.CompletedStages))
		e.emit(PipelineResumed{EventMeta: e.meta(), Stage: e.state.Stage})
	} else {
		e.emit(PipelineStarted{EventMeta: e.meta(), Input: e.state.Input})
	}
	return e.runLoop(ctx)
}

// ResumeWithAnswers loads the latest checkpoint, applies answers for blocking
// questions, and continues from the stage the run was suspended in. Every
// supplied question ID must currently be pending; otherwise the call fails
// with a *StaleAnswerError before any state is mutated or checkpointed.
func (e *Execution) ResumeWithAnswers(ctx context.Context, answers map[string]string) (*Outcome, error) {
	if err := e.start(); err != nil {
		return nil, err
	}

	cp, _, err := e.checkpointer.Latest(ctx, e.state.ThreadID)
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}
	if cp == nil {
		return nil, ErrThreadNotFound
	}

	// Validate all answers before mutating anything.
	pending := map[string]bool{}
	for _, q := range cp.State.PendingQuestions {
		pending[q.ID] = true
	}
	for questionID := range answers {
		if !pending[questionID] {
			return nil, &StaleAnswerError{QuestionID: questionID}
		}
	}

	e.state = cp.State
	e.lastCheckpointID = cp.ID
	e.gate.Seed(e.state)

	answeredIDs := make([]string, 0, len(answers))
	for questionID := range answers {
		answeredIDs = append(answeredIDs, questionID)
	}
	sort.Strings(answeredIDs)
	for _, questionID := range answeredIDs {
		next, err := e.state.WithAnswer(questionID, answers[questionID])
		if err != nil {
			return nil, err
		}
		e.state = next
		e.gate.Resolve(questionID)
	}
	if err := e.checkpoint(ctx, TriggerAnswerReceived); err != nil {
		return nil, err
	}

	suspendEvent := &SuspendEvent{
		ThreadID:    e.state.ThreadID,
		Stage:       e.state.Stage,
		AnsweredIDs: answeredIDs,
	}
	e.callbacks.OnResume(ctx, suspendEvent)
	e.emit(PipelineResumed{EventMeta: e.meta(), Stage: e.state.Stage, AnsweredIDs: answeredIDs})
	e.logger.Info("resuming with answers", "stage", e.state.Stage, "answers", len(answeredIDs))

	return e.runLoop(ctx)
}

// runLoop walks the remaining stages to completion, suspension, or failure.
func (e *Execution) runLoop(ctx context.Context) (*Outcome, error) {
	startTime := time.Now()
	e.callbacks.BeforeAssessment(ctx, &AssessmentEvent{
		ThreadID:  e.state.ThreadID,
		Stage:     e.state.Stage,
		StartTime: startTime,
	})

	for _, stage := range StageOrder {
		if e.state.HasCompleted(stage) {
			continue
		}
		if e.state.Stage != stage {
			e.state = e.state.WithStage(stage)
		}
		stageStart := time.Now()
		if err := e.checkpoint(ctx, TriggerStageStart); err != nil {
			return e.fail(ctx, stage, err)
		}
		e.callbacks.BeforeStage(ctx, &StageEvent{
			ThreadID:  e.state.ThreadID,
			Stage:     stage,
			StartTime: stageStart,
		})
		e.emit(StageStarted{EventMeta: e.meta(), Stage: stage})
		e.logger.Info("stage started", "stage", stage)

		var err error
		switch stage {
		case StageScreening:
			err = e.runScreening(ctx)
		case StageDimensions:
			err = e.runDimensions(ctx)
		case StageVerdict:
			err = e.runVerdict(ctx)
		case StageSecondary:
			err = e.runSecondary(ctx)
		case StageSynthesis:
			err = e.runSynthesis(ctx)
		}
		if err != nil {
			return e.fail(ctx, stage, err)
		}

		// A blocking question raised during dimensions leaves the stage
		// incomplete so the unanswered dimensions rerun after resume.
		if e.suspendRequested && stage == StageDimensions {
			return e.suspend(ctx)
		}

		e.state = e.state.WithCompletedStage(stage)
		if err := e.checkpoint(ctx, TriggerStageComplete); err != nil {
			return e.fail(ctx, stage, err)
		}
		e.emit(StageCompleted{EventMeta: e.meta(), Stage: stage})
		stageEnd := time.Now()
		e.callbacks.AfterStage(ctx, &StageEvent{
			ThreadID:  e.state.ThreadID,
			Stage:     stage,
			StartTime: stageStart,
			EndTime:   stageEnd,
			Duration:  stageEnd.Sub(stageStart),
		})
		e.logger.Info("stage completed", "stage", stage, "duration", stageEnd.Sub(stageStart))

		if e.suspendRequested {
			return e.suspend(ctx)
		}
	}

	e.state = e.state.WithStage(StageComplete)
	report := e.buildReport(startTime)
	if err := e.checkpoint(ctx, TriggerStageComplete); err != nil {
		e.logger.Error("failed to save final checkpoint", "error", err)
	}
	e.emit(PipelineCompleted{EventMeta: e.meta(), Report: report})
	endTime := time.Now()
	e.callbacks.AfterAssessment(ctx, &AssessmentEvent{
		ThreadID:  e.state.ThreadID,
		Status:    OutcomeCompleted,
		Stage:     StageComplete,
		StartTime: startTime,
		EndTime:   endTime,
		Duration:  endTime.Sub(startTime),
	})
	e.logger.Info("assessment completed", "duration", endTime.Sub(startTime))

	return &Outcome{
		ThreadID: e.state.ThreadID,
		Status:   OutcomeCompleted,
		Stage:    StageComplete,
		State:    e.state.clone(),
		Report:   report,
	}, nil
}

// suspend returns control to the caller with the checkpoint already written.
// No goroutine is left waiting: resuming is a fresh replay from the
// checkpoint via ResumeWithAnswers.
func (e *Execution) suspend(ctx context.Context) (*Outcome, error) {
	pending := append([]Question(nil), e.state.PendingQuestions...)
	e.callbacks.OnSuspend(ctx, &SuspendEvent{
		ThreadID:         e.state.ThreadID,
		Stage:            e.state.Stage,
		PendingQuestions: pending,
	})
	e.emit(PipelineSuspended{EventMeta: e.meta(), Stage: e.state.Stage, PendingQuestions: pending})
	e.logger.Info("execution suspended", "stage", e.state.Stage, "pending_questions", len(pending))
	return &Outcome{
		ThreadID:         e.state.ThreadID,
		Status:           OutcomeSuspended,
		Stage:            e.state.Stage,
		State:            e.state.clone(),
		PendingQuestions: pending,
	}, nil
}

// fail records the error, checkpoints the partial state, and surfaces both an
// error event and an error return. Work already folded into state (completed
// dimensions included) is preserved in the checkpoint, not discarded.
func (e *Execution) fail(ctx context.Context, stage Stage, err error) (*Outcome, error) {
	perr := ClassifyError(err)
	e.state = e.state.WithError(RecordedError{Stage: stage, Type: perr.Type, Message: perr.Cause})
	if cpErr := e.checkpoint(ctx, TriggerError); cpErr != nil {
		e.logger.Error("failed to checkpoint failure state", "error", cpErr)
	}
	e.emit(ErrorEvent{EventMeta: e.meta(), Stage: stage, ErrorType: perr.Type, Message: perr.Cause})
	e.callbacks.AfterAssessment(ctx, &AssessmentEvent{
		ThreadID: e.state.ThreadID,
		Status:   OutcomeFailed,
		Stage:    stage,
		Error:    perr,
	})
	e.logger.Error("execution failed", "stage", stage, "error_type", perr.Type, "error", perr.Cause)
	return &Outcome{
		ThreadID: e.state.ThreadID,
		Status:   OutcomeFailed,
		Stage:    stage,
		State:    e.state.clone(),
	}, perr
}

func (e *Execution) runScreening(ctx context.Context) error {
	result, err := e.invokeWithRetry(ctx, StageScreening, e.analyzers.Screening)
	if err != nil {
		return err
	}
	if result == nil || result.Screening == nil {
		return NewPipelineError(ErrorTypeAI, "screening analyzer returned no result")
	}
	e.state = e.state.WithScreening(*result.Screening)
	return nil
}

func (e *Execution) runDimensions(ctx context.Context) error {
	missing := e.state.MissingDimensions()
	producers := make([]Producer, 0, len(missing))
	for _, dimension := range missing {
		analyzer := e.analyzers.Dimensions[dimension]
		producers = append(producers, Producer{
			Key: dimension,
			Run: e.dimensionProducer(e.analyzerInput(StageDimensions, dimension), analyzer),
		})
	}

	sctx := ctx
	if timeout := e.config.StageTimeout(StageDimensions); timeout > 0 {
		var cancel context.CancelFunc
		sctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	results := Multiplex(sctx, e.stageEmit(ctx, StageDimensions), producers...)

	// Producer failures degrade that dimension only; the stage still
	// completes and the verdict weighs whatever subset scored.
	for _, pr := range results {
		if pr.Err == nil {
			continue
		}
		perr := ClassifyError(pr.Err)
		failed := DimensionResult{
			Dimension:   pr.Key,
			Status:      ResultStatusFailed,
			Weight:      DefaultDimensionWeights[pr.Key],
			Error:       perr.Cause,
			CompletedAt: time.Now(),
		}
		next, err := e.state.WithDimensionResult(failed)
		if err != nil {
			return err
		}
		e.state = next
		e.state = e.state.WithError(RecordedError{
			Stage:     StageDimensions,
			Dimension: pr.Key,
			Type:      perr.Type,
			Message:   perr.Cause,
		})
		e.emit(ErrorEvent{
			EventMeta: e.meta(),
			Stage:     StageDimensions,
			Dimension: pr.Key,
			ErrorType: perr.Type,
			Message:   perr.Cause,
		})
		e.emit(DimensionCompleted{EventMeta: e.meta(), Result: failed})
		if err := e.checkpoint(ctx, TriggerDimensionComplete); err != nil {
			e.logger.Error("failed to checkpoint failed dimension", "dimension", pr.Key, "error", err)
		}
		e.logger.Warn("dimension failed", "dimension", pr.Key, "error_type", perr.Type, "error", perr.Cause)
	}
	return nil
}

// dimensionProducer wraps one dimension analyzer as a multiplexer producer.
// It runs on its own goroutine and works only from the snapshot input it was
// handed; the orchestrator owns execution state.
func (e *Execution) dimensionProducer(input AnalyzerInput, analyzer Analyzer) func(context.Context, EmitFunc) error {
	dimension := input.Dimension
	return func(pctx context.Context, emit EmitFunc) error {
		result, err := e.invoke(pctx, input, analyzer, 0, emit)
		if err != nil {
			return err
		}
		if result == nil || result.Dimension == nil {
			return NewPipelineError(ErrorTypeAI, fmt.Sprintf("dimension analyzer %q returned no result", dimension))
		}
		r := *result.Dimension
		r.Dimension = dimension
		r.Status = ResultStatusScored
		if r.Weight == 0 {
			r.Weight = DefaultDimensionWeights[dimension]
		}
		r.CompletedAt = time.Now()
		emit(DimensionCompleted{EventMeta: NewEventMeta(input.ThreadID), Result: r})
		return nil
	}
}

func (e *Execution) runVerdict(ctx context.Context) error {
	// Cutoff for fire-and-forget answers: anything buffered up to now is
	// folded in; anything later is discarded.
	e.foldBufferedAnswers(ctx)

	result, err := e.invokeWithRetry(ctx, StageVerdict, e.analyzers.Verdict)
	if err != nil {
		return err
	}
	if result == nil || result.Verdict == nil {
		return NewPipelineError(ErrorTypeAI, "verdict analyzer returned no result")
	}
	verdict := *result.Verdict
	if verdict.DecidedAt.IsZero() {
		verdict.DecidedAt = time.Now()
	}
	e.state = e.state.WithVerdict(verdict)
	return nil
}

func (e *Execution) runSecondary(ctx context.Context) error {
	type slot struct {
		id     string
		result *AnalyzerResult
	}
	var producers []Producer
	var slots []*slot
	for _, id := range SecondaryAnalyses {
		if e.hasSecondaryResult(id) {
			continue
		}
		analyzer := e.analyzers.Secondary[id]
		input := e.analyzerInput(StageSecondary, id)
		s := &slot{id: id}
		slots = append(slots, s)
		producers = append(producers, Producer{
			Key: id,
			Run: func(pctx context.Context, emit EmitFunc) error {
				result, err := e.invoke(pctx, input, analyzer, 0, emit)
				if err != nil {
					return err
				}
				s.result = result
				return nil
			},
		})
	}

	sctx := ctx
	if timeout := e.config.StageTimeout(StageSecondary); timeout > 0 {
		var cancel context.CancelFunc
		sctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	results := Multiplex(sctx, e.stageEmit(ctx, StageSecondary), producers...)

	for _, pr := range results {
		if pr.Err == nil {
			continue
		}
		perr := ClassifyError(pr.Err)
		e.state = e.state.WithError(RecordedError{
			Stage:     StageSecondary,
			Dimension: pr.Key,
			Type:      perr.Type,
			Message:   perr.Cause,
		})
		e.emit(ErrorEvent{
			EventMeta: e.meta(),
			Stage:     StageSecondary,
			Dimension: pr.Key,
			ErrorType: perr.Type,
			Message:   perr.Cause,
		})
		e.logger.Warn("secondary analysis failed", "analysis", pr.Key, "error", perr.Cause)
	}

	for _, s := range slots {
		if s.result == nil {
			continue
		}
		switch {
		case s.result.Risks != nil:
			e.state = e.state.WithRisks(*s.result.Risks)
		case s.result.Alternatives != nil:
			e.state = e.state.WithAlternatives(*s.result.Alternatives)
		case s.result.Architecture != nil:
			e.state = e.state.WithArchitecture(*s.result.Architecture)
		}
	}
	return nil
}

func (e *Execution) hasSecondaryResult(id string) bool {
	switch id {
	case SecondaryRisks:
		return e.state.Risks != nil
	case SecondaryAlternatives:
		return e.state.Alternatives != nil
	case SecondaryArchitecture:
		return e.state.Architecture != nil
	}
	return false
}

func (e *Execution) runSynthesis(ctx context.Context) error {
	result, err := e.invokeWithRetry(ctx, StageSynthesis, e.analyzers.Synthesis)
	if err != nil {
		return err
	}
	if result == nil || result.Synthesis == nil {
		return NewPipelineError(ErrorTypeAI, "synthesis analyzer returned no result")
	}
	e.state = e.state.WithSynthesis(*result.Synthesis)
	return nil
}

// invokeWithRetry runs a sequential-stage analyzer, retrying in place per the
// error classification's budget. The stage retries against the same
// checkpoint; it is never rolled further back. Only recovered attempts are
// recorded here; a non-retryable error is returned for fail to record, so one
// failure produces one audit entry and one error event.
func (e *Execution) invokeWithRetry(ctx context.Context, stage Stage, analyzer Analyzer) (*AnalyzerResult, error) {
	emit := e.stageEmit(ctx, stage)
	attempt := 0
	for {
		result, err := e.invoke(ctx, e.analyzerInput(stage, ""), analyzer, attempt, emit)
		if err == nil {
			return result, nil
		}
		if ctx.Err() != nil {
			return nil, err
		}
		perr := ClassifyError(err)
		if !IsRetryable(perr.Type) || attempt >= e.config.RetryBudget(perr.Type) {
			return nil, perr
		}
		e.state = e.state.WithError(RecordedError{Stage: stage, Type: perr.Type, Message: perr.Cause})
		if cpErr := e.checkpoint(ctx, TriggerError); cpErr != nil {
			e.logger.Error("failed to checkpoint stage error", "error", cpErr)
		}
		e.emit(ErrorEvent{
			EventMeta: e.meta(),
			Stage:     stage,
			ErrorType: perr.Type,
			Message:   perr.Cause,
			Recovered: true,
		})
		wait := e.config.RetryBaseWait << attempt
		attempt++
		e.emit(StageRetrying{EventMeta: e.meta(), Stage: stage, Attempt: attempt, ErrorType: perr.Type, Wait: wait})
		e.logger.Warn("retrying stage", "stage", stage, "attempt", attempt, "error_type", perr.Type, "wait", wait)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
}

// invoke runs one analyzer call with the stage timeout applied (sequential
// stages only; parallel stages apply the timeout around the whole fan-out)
// and records the invocation in the analysis log. The input is built by the
// caller on the orchestrator goroutine: producer goroutines must never read
// execution state, which the orchestrator keeps mutating while they run.
func (e *Execution) invoke(ctx context.Context, input AnalyzerInput, analyzer Analyzer, attempt int, emit EmitFunc) (*AnalyzerResult, error) {
	cctx := ctx
	if input.Dimension == "" {
		if timeout := e.config.StageTimeout(input.Stage); timeout > 0 {
			var cancel context.CancelFunc
			cctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
	}

	startTime := time.Now()
	result, err := analyzer.Analyze(cctx, input, emit)

	entry := &AnalysisLogEntry{
		ThreadID:  input.ThreadID,
		Stage:     input.Stage,
		Dimension: input.Dimension,
		Analyzer:  analyzer.Name(),
		Attempt:   attempt,
		StartTime: startTime,
		Duration:  time.Since(startTime).Seconds(),
	}
	if err != nil {
		entry.Error = err.Error()
	}
	if logErr := e.analysisLogger.LogAnalysis(ctx, entry); logErr != nil {
		e.logger.Error("failed to log analysis", "error", logErr)
	}
	return result, err
}

// stageEmit returns the emit function used while a stage runs. It folds
// engine-relevant events into state before forwarding them downstream. For
// parallel stages it is called from the multiplexer's forwarding loop, which
// runs on the orchestrator goroutine, so state transitions stay single
// threaded.
func (e *Execution) stageEmit(ctx context.Context, stage Stage) EmitFunc {
	return func(event Event) {
		switch ev := event.(type) {
		case AnalyzerQuestion:
			e.foldQuestion(ctx, stage, ev.Question)
		case DimensionCompleted:
			next, err := e.state.WithDimensionResult(ev.Result)
			if err != nil {
				e.logger.Error("dropping invalid dimension result", "error", err)
				return
			}
			e.state = next
			if err := e.checkpoint(ctx, TriggerDimensionComplete); err != nil {
				e.logger.Error("failed to checkpoint dimension result", "error", err)
			}
		}
		e.emit(event)
	}
}

// foldQuestion records a newly raised question. Blocking questions raised
// during screening or dimensions request a suspension once the stage's
// in-flight work finishes; helpful questions never stall the stage.
func (e *Execution) foldQuestion(ctx context.Context, stage Stage, q Question) {
	if q.Stage == "" {
		q.Stage = stage
	}
	before := len(e.state.PendingQuestions)
	e.state = e.state.WithPendingQuestion(q)
	if len(e.state.PendingQuestions) == before {
		return
	}
	e.gate.Raise(q)
	if err := e.checkpoint(ctx, TriggerQuestionEmitted); err != nil {
		e.logger.Error("failed to checkpoint question", "question_id", q.ID, "error", err)
	}
	if q.Blocking && (stage == StageScreening || stage == StageDimensions) {
		e.suspendRequested = true
	}
	e.logger.Info("question raised", "question_id", q.ID, "blocking", q.Blocking, "stage", stage)
}

// foldBufferedAnswers applies any out-of-band answers that arrived before the
// verdict cutoff. Answers are applied in arrival order; for a double-submitted
// question the last submission wins.
func (e *Execution) foldBufferedAnswers(ctx context.Context) {
	drained := e.gate.Drain()
	applied := 0
	for _, sub := range drained {
		next, err := e.state.WithAnswer(sub.QuestionID, sub.Answer)
		if err != nil {
			e.logger.Warn("dropping stale buffered answer", "question_id", sub.QuestionID)
			continue
		}
		e.state = next
		e.gate.Resolve(sub.QuestionID)
		applied++
	}
	if applied > 0 {
		if err := e.checkpoint(ctx, TriggerAnswerReceived); err != nil {
			e.logger.Error("failed to checkpoint buffered answers", "error", err)
		}
		e.logger.Info("folded buffered answers", "count", applied)
	}
}

func (e *Execution) analyzerInput(stage Stage, dimension string) AnalyzerInput {
	s := e.state.clone()
	return AnalyzerInput{
		ThreadID:         s.ThreadID,
		Stage:            stage,
		Dimension:        dimension,
		Problem:          s.Input.Problem,
		Context:          s.Input.Context,
		Answers:          s.Answers,
		Screening:        s.Screening,
		DimensionResults: s.DimensionResults,
		Verdict:          s.Verdict,
		Risks:            s.Risks,
		Alternatives:     s.Alternatives,
		Architecture:     s.Architecture,
	}
}

func (e *Execution) buildReport(startTime time.Time) *AssessmentReport {
	s := e.state.clone()
	return &AssessmentReport{
		ThreadID:         s.ThreadID,
		Input:            s.Input,
		Screening:        s.Screening,
		Verdict:          s.Verdict,
		DimensionResults: s.DimensionResults,
		Risks:            s.Risks,
		Alternatives:     s.Alternatives,
		Architecture:     s.Architecture,
		Synthesis:        s.Synthesis,
		Errors:           s.Errors,
		StartedAt:        startTime,
		CompletedAt:      time.Now(),
	}
}

// checkpoint snapshots the current state. Checkpoint writes for one thread
// are strictly ordered because only this execution owns the thread.
func (e *Execution) checkpoint(ctx context.Context, trigger CheckpointTrigger) error {
	cp := NewCheckpoint(e.state, trigger, e.lastCheckpointID)
	id, err := e.checkpointer.Put(ctx, e.state.ThreadID, cp, MetadataFor(cp))
	if err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	e.lastCheckpointID = id
	return nil
}

func (e *Execution) emit(event Event) {
	if e.events != nil {
		e.events(event)
	}
}

func (e *Execution) meta() EventMeta {
	return NewEventMeta(e.state.ThreadID)
}
