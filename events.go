package assay

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType tags an event variant on the wire.
type EventType string

const (
	EventTypePipelineStarted     EventType = "pipeline.started"
	EventTypePipelineResumed     EventType = "pipeline.resumed"
	EventTypePipelineSuspended   EventType = "pipeline.suspended"
	EventTypePipelineCompleted   EventType = "pipeline.completed"
	EventTypeStageStarted        EventType = "stage.started"
	EventTypeStageCompleted      EventType = "stage.completed"
	EventTypeStageRetrying       EventType = "stage.retrying"
	EventTypeAnalyzerPreliminary EventType = "analyzer.preliminary"
	EventTypeAnalyzerQuestion    EventType = "analyzer.question"
	EventTypeAnalyzerToolCall    EventType = "analyzer.tool_call"
	EventTypeDimensionCompleted  EventType = "dimension.completed"
	EventTypeError               EventType = "error"
)

// EventMeta is carried by every event so a client can correlate events with
// a run and reconnect mid-stream.
type EventMeta struct {
	ThreadID  string    `json:"thread_id"`
	Timestamp time.Time `json:"timestamp"`
}

// Event is a closed sum type: the set of variants is fixed at compile time
// and consumers are expected to switch exhaustively. Adding a variant means
// deliberately updating every consumer, starting with EventTypeOf below.
type Event interface {
	isEvent()
	Meta() EventMeta
}

func (m EventMeta) Meta() EventMeta { return m }

// PipelineStarted is emitted once when a fresh run begins.
type PipelineStarted struct {
	EventMeta
	Input ProblemInput `json:"input"`
}

// PipelineResumed is emitted when a suspended run continues.
type PipelineResumed struct {
	EventMeta
	Stage       Stage    `json:"stage"`
	AnsweredIDs []string `json:"answered_ids,omitempty"`
}

// PipelineSuspended is emitted when a blocking question pauses the run.
// Control returns to the caller; no goroutine blocks on the answer.
type PipelineSuspended struct {
	EventMeta
	Stage            Stage      `json:"stage"`
	PendingQuestions []Question `json:"pending_questions"`
}

// PipelineCompleted is emitted once the synthesis stage finishes.
type PipelineCompleted struct {
	EventMeta
	Report *AssessmentReport `json:"report"`
}

// StageStarted is emitted as each stage begins.
type StageStarted struct {
	EventMeta
	Stage Stage `json:"stage"`
}

// StageCompleted is emitted as each stage finishes.
type StageCompleted struct {
	EventMeta
	Stage Stage `json:"stage"`
}

// StageRetrying signals that a recoverable stage error is being retried, so
// a caller can distinguish "working on it" from "it's dead".
type StageRetrying struct {
	EventMeta
	Stage     Stage         `json:"stage"`
	Attempt   int           `json:"attempt"`
	ErrorType string        `json:"error_type"`
	Wait      time.Duration `json:"wait"`
}

// AnalyzerPreliminary carries an analyzer's in-progress signal.
type AnalyzerPreliminary struct {
	EventMeta
	Stage     Stage  `json:"stage"`
	Dimension string `json:"dimension,omitempty"`
	Note      string `json:"note"`
}

// AnalyzerQuestion carries a question raised by an analyzer.
type AnalyzerQuestion struct {
	EventMeta
	Question Question `json:"question"`
}

// AnalyzerToolCall reports a tool invocation made by an analyzer.
type AnalyzerToolCall struct {
	EventMeta
	Stage     Stage          `json:"stage"`
	Dimension string         `json:"dimension,omitempty"`
	Tool      string         `json:"tool"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// DimensionCompleted reports one dimension result, scored or failed.
type DimensionCompleted struct {
	EventMeta
	Result DimensionResult `json:"result"`
}

// ErrorEvent reports a recorded failure.
type ErrorEvent struct {
	EventMeta
	Stage     Stage  `json:"stage"`
	Dimension string `json:"dimension,omitempty"`
	ErrorType string `json:"error_type"`
	Message   string `json:"message"`
	Recovered bool   `json:"recovered,omitempty"`
}

func (PipelineStarted) isEvent()     {}
func (PipelineResumed) isEvent()     {}
func (PipelineSuspended) isEvent()   {}
func (PipelineCompleted) isEvent()   {}
func (StageStarted) isEvent()        {}
func (StageCompleted) isEvent()      {}
func (StageRetrying) isEvent()       {}
func (AnalyzerPreliminary) isEvent() {}
func (AnalyzerQuestion) isEvent()    {}
func (AnalyzerToolCall) isEvent()    {}
func (DimensionCompleted) isEvent()  {}
func (ErrorEvent) isEvent()          {}

// EventTypeOf returns the wire tag for an event. The switch is exhaustive
// over all variants.
func EventTypeOf(e Event) EventType {
	switch e.(type) {
	case PipelineStarted:
		return EventTypePipelineStarted
	case PipelineResumed:
		return EventTypePipelineResumed
	case PipelineSuspended:
		return EventTypePipelineSuspended
	case PipelineCompleted:
		return EventTypePipelineCompleted
	case StageStarted:
		return EventTypeStageStarted
	case StageCompleted:
		return EventTypeStageCompleted
	case StageRetrying:
		return EventTypeStageRetrying
	case AnalyzerPreliminary:
		return EventTypeAnalyzerPreliminary
	case AnalyzerQuestion:
		return EventTypeAnalyzerQuestion
	case AnalyzerToolCall:
		return EventTypeAnalyzerToolCall
	case DimensionCompleted:
		return EventTypeDimensionCompleted
	case ErrorEvent:
		return EventTypeError
	default:
		panic(fmt.Sprintf("unknown event variant %T", e))
	}
}

type eventEnvelope struct {
	Type  EventType       `json:"type"`
	Event json.RawMessage `json:"event"`
}

// MarshalEvent serializes an event with its type tag. The output is a single
// JSON object per event, suitable for line-delimited server-push transports.
func MarshalEvent(e Event) ([]byte, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}
	return json.Marshal(eventEnvelope{Type: EventTypeOf(e), Event: payload})
}

// UnmarshalEvent deserializes a type-tagged event.
func UnmarshalEvent(data []byte) (Event, error) {
	var env eventEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event envelope: %w", err)
	}
	switch env.Type {
	case EventTypePipelineStarted:
		var e PipelineStarted
		return e, json.Unmarshal(env.Event, &e)
	case EventTypePipelineResumed:
		var e PipelineResumed
		return e, json.Unmarshal(env.Event, &e)
	case EventTypePipelineSuspended:
		var e PipelineSuspended
		return e, json.Unmarshal(env.Event, &e)
	case EventTypePipelineCompleted:
		var e PipelineCompleted
		return e, json.Unmarshal(env.Event, &e)
	case EventTypeStageStarted:
		var e StageStarted
		return e, json.Unmarshal(env.Event, &e)
	case EventTypeStageCompleted:
		var e StageCompleted
		return e, json.Unmarshal(env.Event, &e)
	case EventTypeStageRetrying:
		var e StageRetrying
		return e, json.Unmarshal(env.Event, &e)
	case EventTypeAnalyzerPreliminary:
		var e AnalyzerPreliminary
		return e, json.Unmarshal(env.Event, &e)
	case EventTypeAnalyzerQuestion:
		var e AnalyzerQuestion
		return e, json.Unmarshal(env.Event, &e)
	case EventTypeAnalyzerToolCall:
		var e AnalyzerToolCall
		return e, json.Unmarshal(env.Event, &e)
	case EventTypeDimensionCompleted:
		var e DimensionCompleted
		return e, json.Unmarshal(env.Event, &e)
	case EventTypeError:
		var e ErrorEvent
		return e, json.Unmarshal(env.Event, &e)
	default:
		return nil, fmt.Errorf("unknown event type %q", env.Type)
	}
}

// EmitFunc receives events as they occur. Implementations must be fast;
// the engine calls them from its event-forwarding goroutine.
type EmitFunc func(Event)

// NewEventMeta stamps an event with thread and time.
func NewEventMeta(threadID string) EventMeta {
	return EventMeta{ThreadID: threadID, Timestamp: time.Now()}
}
