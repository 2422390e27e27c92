package assay

import (
	"context"
	"sync"
)

// MemoryCheckpointer is an in-memory Checkpointer for development and tests.
// Nothing survives a process restart. Checkpoints are stored in their encoded
// form so a caller holding a *Checkpoint can never mutate stored history.
type MemoryCheckpointer struct {
	mutex   sync.RWMutex
	threads map[string][]memoryRecord
}

type memoryRecord struct {
	id      string
	encoded []byte
	meta    *CheckpointMetadata
}

// NewMemoryCheckpointer creates an empty in-memory checkpointer.
func NewMemoryCheckpointer() *MemoryCheckpointer {
	return &MemoryCheckpointer{threads: map[string][]memoryRecord{}}
}

// Put appends a checkpoint to the thread's history.
func (c *MemoryCheckpointer) Put(ctx context.Context, threadID string, cp *Checkpoint, meta *CheckpointMetadata) (string, error) {
	encoded, err := EncodeCheckpoint(cp)
	if err != nil {
		return "", err
	}
	if meta == nil {
		meta = MetadataFor(cp)
	}
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.threads[threadID] = append(c.threads[threadID], memoryRecord{
		id:      cp.ID,
		encoded: encoded,
		meta:    meta,
	})
	return cp.ID, nil
}

// Latest returns the newest checkpoint for the thread, or nils if none exists.
func (c *MemoryCheckpointer) Latest(ctx context.Context, threadID string) (*Checkpoint, *CheckpointMetadata, error) {
	c.mutex.RLock()
	records := c.threads[threadID]
	if len(records) == 0 {
		c.mutex.RUnlock()
		return nil, nil, nil
	}
	record := records[len(records)-1]
	c.mutex.RUnlock()

	cp, err := DecodeCheckpoint(record.encoded)
	if err != nil {
		return nil, nil, err
	}
	return cp, record.meta, nil
}

// GetAt returns the checkpoint with the given ID, or nil if not found.
func (c *MemoryCheckpointer) GetAt(ctx context.Context, threadID, checkpointID string) (*Checkpoint, error) {
	c.mutex.RLock()
	var encoded []byte
	for _, record := range c.threads[threadID] {
		if record.id == checkpointID {
			encoded = record.encoded
			break
		}
	}
	c.mutex.RUnlock()

	if encoded == nil {
		return nil, nil
	}
	return DecodeCheckpoint(encoded)
}

// List returns checkpoint metadata newest first.
func (c *MemoryCheckpointer) List(ctx context.Context, threadID string, opts ListOptions) ([]*CheckpointMetadata, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	records := c.threads[threadID]
	var result []*CheckpointMetadata
	for i := len(records) - 1; i >= 0; i-- {
		meta := records[i].meta
		if !opts.Before.IsZero() && !meta.CreatedAt.Before(opts.Before) {
			continue
		}
		result = append(result, meta)
		if opts.Limit > 0 && len(result) >= opts.Limit {
			break
		}
	}
	return result, nil
}

// DeleteThread removes all checkpoint data for a thread.
func (c *MemoryCheckpointer) DeleteThread(ctx context.Context, threadID string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	delete(c.threads, threadID)
	return nil
}
