package assay

import "context"

// NullCheckpointer is a no-op implementation
type NullCheckpointer struct{}

func NewNullCheckpointer() *NullCheckpointer {
	return &NullCheckpointer{}
}

func (c *NullCheckpointer) Put(ctx context.Context, threadID string, cp *Checkpoint, meta *CheckpointMetadata) (string, error) {
	return cp.ID, nil
}

func (c *NullCheckpointer) Latest(ctx context.Context, threadID string) (*Checkpoint, *CheckpointMetadata, error) {
	return nil, nil, nil
}

func (c *NullCheckpointer) GetAt(ctx context.Context, threadID, checkpointID string) (*Checkpoint, error) {
	return nil, nil
}

func (c *NullCheckpointer) List(ctx context.Context, threadID string, opts ListOptions) ([]*CheckpointMetadata, error) {
	return nil, nil
}

func (c *NullCheckpointer) DeleteThread(ctx context.Context, threadID string) error {
	return nil
}
