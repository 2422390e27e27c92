package assay

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func noteEvent(threadID string, dimension string, n int) AnalyzerPreliminary {
	return AnalyzerPreliminary{
		EventMeta: NewEventMeta(threadID),
		Stage:     StageDimensions,
		Dimension: dimension,
		Note:      fmt.Sprintf("step %d", n),
	}
}

func TestMultiplexForwardsEveryEvent(t *testing.T) {
	counts := map[string]int{"a": 3, "b": 5, "c": 1}
	var producers []Producer
	for key, n := range counts {
		producers = append(producers, Producer{
			Key: key,
			Run: func(key string, n int) func(context.Context, EmitFunc) error {
				return func(ctx context.Context, emit EmitFunc) error {
					for i := 0; i < n; i++ {
						emit(noteEvent("t1", key, i))
					}
					return nil
				}
			}(key, n),
		})
	}

	var received []AnalyzerPreliminary
	results := Multiplex(context.Background(), func(e Event) {
		received = append(received, e.(AnalyzerPreliminary))
	}, producers...)

	// Completeness: sum of all producer emissions arrives downstream
	require.Len(t, received, 9)
	for _, pr := range results {
		require.NoError(t, pr.Err)
	}

	// Per-producer order is preserved even though arrival order interleaves
	perKey := map[string][]string{}
	for _, e := range received {
		perKey[e.Dimension] = append(perKey[e.Dimension], e.Note)
	}
	for key, n := range counts {
		require.Len(t, perKey[key], n)
		for i, note := range perKey[key] {
			require.Equal(t, fmt.Sprintf("step %d", i), note)
		}
	}
}

func TestMultiplexIsolatesFailures(t *testing.T) {
	boom := errors.New("analyzer exploded")
	producers := []Producer{
		{Key: "ok", Run: func(ctx context.Context, emit EmitFunc) error {
			emit(noteEvent("t1", "ok", 0))
			return nil
		}},
		{Key: "fails", Run: func(ctx context.Context, emit EmitFunc) error {
			return boom
		}},
		{Key: "panics", Run: func(ctx context.Context, emit EmitFunc) error {
			panic("lost the plot")
		}},
	}

	var received int
	results := Multiplex(context.Background(), func(Event) { received++ }, producers...)

	require.Equal(t, 1, received)
	byKey := map[string]error{}
	for _, pr := range results {
		byKey[pr.Key] = pr.Err
	}
	require.NoError(t, byKey["ok"])
	require.ErrorIs(t, byKey["fails"], boom)
	require.ErrorContains(t, byKey["panics"], "panicked")
}

func TestMultiplexWithNoProducers(t *testing.T) {
	results := Multiplex(context.Background(), func(Event) {
		t.Fatal("no events expected")
	})
	require.Empty(t, results)
}

func TestMultiplexHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := Multiplex(ctx, func(Event) {}, Producer{
		Key: "waits",
		Run: func(ctx context.Context, emit EmitFunc) error {
			<-ctx.Done()
			return ctx.Err()
		},
	})
	require.Len(t, results, 1)
	require.ErrorIs(t, results[0].Err, context.Canceled)
}
