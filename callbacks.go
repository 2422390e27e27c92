package assay

import (
	"context"
	"time"
)

// ExecutionCallbacks defines hooks invoked around pipeline execution. Unlike
// the event stream, callbacks run synchronously on the orchestrator and are
// meant for infrastructure concerns (metrics, audit) rather than clients.
type ExecutionCallbacks interface {
	// Assessment-level callbacks
	BeforeAssessment(ctx context.Context, event *AssessmentEvent)
	AfterAssessment(ctx context.Context, event *AssessmentEvent)

	// Stage-level callbacks
	BeforeStage(ctx context.Context, event *StageEvent)
	AfterStage(ctx context.Context, event *StageEvent)

	// Suspension callbacks
	OnSuspend(ctx context.Context, event *SuspendEvent)
	OnResume(ctx context.Context, event *SuspendEvent)
}

// AssessmentEvent provides context for assessment-level callbacks.
type AssessmentEvent struct {
	ThreadID  string
	Status    OutcomeStatus
	Stage     Stage
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
	Error     error
}

// StageEvent provides context for stage-level callbacks.
type StageEvent struct {
	ThreadID  string
	Stage     Stage
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
	Error     error
}

// SuspendEvent provides context for suspend/resume callbacks.
type SuspendEvent struct {
	ThreadID         string
	Stage            Stage
	PendingQuestions []Question
	AnsweredIDs      []string
}

// BaseExecutionCallbacks provides a default implementation that does nothing
type BaseExecutionCallbacks struct{}

func (n *BaseExecutionCallbacks) BeforeAssessment(ctx context.Context, event *AssessmentEvent) {
	// noop
}

func (n *BaseExecutionCallbacks) AfterAssessment(ctx context.Context, event *AssessmentEvent) {
	// noop
}

func (n *BaseExecutionCallbacks) BeforeStage(ctx context.Context, event *StageEvent) {
	// noop
}

func (n *BaseExecutionCallbacks) AfterStage(ctx context.Context, event *StageEvent) {
	// noop
}

func (n *BaseExecutionCallbacks) OnSuspend(ctx context.Context, event *SuspendEvent) {
	// noop
}

func (n *BaseExecutionCallbacks) OnResume(ctx context.Context, event *SuspendEvent) {
	// noop
}

// CallbackChain allows chaining multiple callback implementations
type CallbackChain struct {
	callbacks []ExecutionCallbacks
}

// NewCallbackChain creates a new callback chain
func NewCallbackChain(callbacks ...ExecutionCallbacks) *CallbackChain {
	return &CallbackChain{callbacks: callbacks}
}

// Add adds a callback to the chain
func (c *CallbackChain) Add(callback ExecutionCallbacks) {
	c.callbacks = append(c.callbacks, callback)
}

func (c *CallbackChain) BeforeAssessment(ctx context.Context, event *AssessmentEvent) {
	for _, callback := range c.callbacks {
		callback.BeforeAssessment(ctx, event)
	}
}

func (c *CallbackChain) AfterAssessment(ctx context.Context, event *AssessmentEvent) {
	for _, callback := range c.callbacks {
		callback.AfterAssessment(ctx, event)
	}
}

func (c *CallbackChain) BeforeStage(ctx context.Context, event *StageEvent) {
	for _, callback := range c.callbacks {
		callback.BeforeStage(ctx, event)
	}
}

func (c *CallbackChain) AfterStage(ctx context.Context, event *StageEvent) {
	for _, callback := range c.callbacks {
		callback.AfterStage(ctx, event)
	}
}

func (c *CallbackChain) OnSuspend(ctx context.Context, event *SuspendEvent) {
	for _, callback := range c.callbacks {
		callback.OnSuspend(ctx, event)
	}
}

func (c *CallbackChain) OnResume(ctx context.Context, event *SuspendEvent) {
	for _, callback := range c.callbacks {
		callback.OnResume(ctx, event)
	}
}
