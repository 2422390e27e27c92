package assay

import (
	"context"
	"fmt"
	"sync"
)

// Producer is one independent event-producing collaborator in a parallel
// stage, identified by key (a dimension or secondary analysis ID).
type Producer struct {
	Key string
	Run func(ctx context.Context, emit EmitFunc) error
}

// ProducerResult reports how one producer finished.
type ProducerResult struct {
	Key string
	Err error
}

// Multiplex runs all producers concurrently and forwards every emitted event
// downstream as soon as it is available. Ordering: events from a single
// producer keep their relative order; order across producers is arrival
// order, with no fairness guarantee beyond "first ready, first forwarded".
// One producer failing (or panicking) does not halt the others; its error is
// captured in the returned results. Multiplex returns only when every
// producer has finished and all events have been forwarded.
func Multiplex(ctx context.Context, emit EmitFunc, producers ...Producer) []ProducerResult {
	events := make(chan Event, len(producers))
	results := make([]ProducerResult, len(producers))

	var wg sync.WaitGroup
	for i, producer := range producers {
		wg.Add(1)
		go func(i int, p Producer) {
			defer wg.Done()
			results[i] = ProducerResult{Key: p.Key, Err: runProducer(ctx, p, events)}
		}(i, producer)
	}

	// Close the merged stream once every producer is done. No terminal
	// marker per producer is forwarded.
	go func() {
		wg.Wait()
		close(events)
	}()

	// Single forwarding loop keeps downstream delivery serialized.
	for event := range events {
		emit(event)
	}
	return results
}

// runProducer invokes one producer, converting panics into errors so a
// misbehaving producer cannot take down the stage.
func runProducer(ctx context.Context, p Producer, events chan<- Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("producer %s panicked: %v", p.Key, r)
		}
	}()
	return p.Run(ctx, func(e Event) {
		select {
		case events <- e:
		case <-ctx.Done():
		}
	})
}
