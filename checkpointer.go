package assay

import (
	"context"
	"time"
)

// ListOptions controls checkpoint history listing.
type ListOptions struct {
	// Limit caps the number of entries returned. Zero means no limit.
	Limit int

	// Before restricts results to checkpoints created strictly before the
	// given time. The zero value applies no restriction.
	Before time.Time
}

// Checkpointer stores point-in-time snapshots of pipeline state, addressed by
// thread ID. Writes are append-only: Put never mutates a prior checkpoint,
// and each call's checkpoint is either fully visible or not yet visible.
// Checkpoint ordering within a thread follows creation time; a single
// orchestrator instance owns a thread at a time, so writes for one thread are
// never concurrent.
type Checkpointer interface {
	// Put appends a checkpoint and its metadata, returning the checkpoint ID.
	Put(ctx context.Context, threadID string, cp *Checkpoint, meta *CheckpointMetadata) (string, error)

	// Latest returns the most recent checkpoint for a thread, or nils if the
	// thread has none.
	Latest(ctx context.Context, threadID string) (*Checkpoint, *CheckpointMetadata, error)

	// GetAt returns a specific checkpoint, or nil if not found.
	GetAt(ctx context.Context, threadID, checkpointID string) (*Checkpoint, error)

	// List returns checkpoint metadata for a thread, newest first.
	List(ctx context.Context, threadID string, opts ListOptions) ([]*CheckpointMetadata, error)

	// DeleteThread removes all checkpoint data for a thread.
	DeleteThread(ctx context.Context, threadID string) error
}
