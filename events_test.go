package assay

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEventTypeOfCoversAllVariants(t *testing.T) {
	events := []Event{
		PipelineStarted{},
		PipelineResumed{},
		PipelineSuspended{},
		PipelineCompleted{},
		StageStarted{},
		StageCompleted{},
		StageRetrying{},
		AnalyzerPreliminary{},
		AnalyzerQuestion{},
		AnalyzerToolCall{},
		DimensionCompleted{},
		ErrorEvent{},
	}
	seen := map[EventType]bool{}
	for _, e := range events {
		et := EventTypeOf(e)
		require.False(t, seen[et], "duplicate tag %s", et)
		seen[et] = true
	}
	require.Len(t, seen, 12)
}

func TestEventEnvelopeRoundTrip(t *testing.T) {
	original := AnalyzerQuestion{
		EventMeta: NewEventMeta("thread_1"),
		Question: Question{
			ID:       "q1",
			Stage:    StageScreening,
			Text:     "what volume?",
			Blocking: true,
		},
	}
	data, err := MarshalEvent(original)
	require.NoError(t, err)

	decoded, err := UnmarshalEvent(data)
	require.NoError(t, err)

	q, ok := decoded.(AnalyzerQuestion)
	require.True(t, ok)
	require.Equal(t, "thread_1", q.Meta().ThreadID)
	require.Equal(t, original.Question.ID, q.Question.ID)
	require.True(t, q.Question.Blocking)
}

func TestEventEnvelopeCarriesTypeTag(t *testing.T) {
	data, err := MarshalEvent(StageRetrying{
		EventMeta: NewEventMeta("thread_1"),
		Stage:     StageVerdict,
		Attempt:   2,
		ErrorType: ErrorTypeTransient,
		Wait:      2 * time.Second,
	})
	require.NoError(t, err)
	require.Contains(t, string(data), `"type":"stage.retrying"`)
}

func TestUnmarshalEventRejectsUnknownType(t *testing.T) {
	_, err := UnmarshalEvent([]byte(`{"type":"pipeline.rebooted","event":{}}`))
	require.ErrorContains(t, err, "unknown event type")
}
