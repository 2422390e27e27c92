package assay

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReadStatus(t *testing.T) {
	ctx := context.Background()
	checkpointer := NewMemoryCheckpointer()

	_, err := ReadStatus(ctx, checkpointer, "thread_missing")
	require.ErrorIs(t, err, ErrThreadNotFound)

	state := newTestState().
		WithCompletedStage(StageScreening).
		WithPendingQuestion(Question{ID: "q1", Blocking: true, Text: "volume?"})
	state = state.WithStage(StageDimensions)
	putCheckpoint(t, checkpointer, state, TriggerQuestionEmitted, "")

	status, err := ReadStatus(ctx, checkpointer, state.ThreadID)
	require.NoError(t, err)
	require.Equal(t, StageDimensions, status.Stage)
	require.True(t, status.Suspended)
	require.False(t, status.Complete)
	require.Equal(t, []Stage{StageScreening}, status.CompletedStages)
	require.Len(t, status.PendingQuestions, 1)

	// After completion the status flips
	done := state.WithStage(StageComplete)
	done, err = done.WithAnswer("q1", "lots")
	require.NoError(t, err)
	done = done.WithVerdict(Verdict{Decision: "recommended"})
	putCheckpoint(t, checkpointer, done, TriggerStageComplete, "")

	status, err = ReadStatus(ctx, checkpointer, state.ThreadID)
	require.NoError(t, err)
	require.True(t, status.Complete)
	require.False(t, status.Suspended)
	require.Equal(t, "recommended", status.Verdict)
}
