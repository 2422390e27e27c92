// Package postgres provides a durable checkpointer backed by PostgreSQL.
// Retention is enforced with an expires_at column swept on write, since
// Postgres has no native TTL.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/deepnoodle-ai/assay"
	"github.com/deepnoodle-ai/assay/retry"
)

const schema = `
CREATE TABLE IF NOT EXISTS assay_checkpoints (
	thread_id     TEXT        NOT NULL,
	seq           BIGINT      NOT NULL,
	checkpoint_id TEXT        NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL,
	expires_at    TIMESTAMPTZ NOT NULL,
	metadata      JSONB       NOT NULL,
	data          BYTEA       NOT NULL,
	PRIMARY KEY (thread_id, seq)
);
CREATE UNIQUE INDEX IF NOT EXISTS assay_checkpoints_id
	ON assay_checkpoints (thread_id, checkpoint_id);
CREATE INDEX IF NOT EXISTS assay_checkpoints_expiry
	ON assay_checkpoints (expires_at);
`

// Options configures the store.
type Options struct {
	// TTL is how long checkpoints live. Zero means the engine default of 24h.
	TTL time.Duration
}

// Store is a Checkpointer backed by a PostgreSQL table. Sequence numbers are
// assigned per thread; a single orchestrator owns a thread at a time, so the
// max-plus-one assignment in Put is not racy for correct callers.
type Store struct {
	db  *sql.DB
	ttl time.Duration
}

var _ assay.Checkpointer = (*Store)(nil)

// New creates a store on an open database handle and ensures the schema
// exists.
func New(ctx context.Context, db *sql.DB, opts Options) (*Store, error) {
	if opts.TTL == 0 {
		opts.TTL = 24 * time.Hour
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("failed to create checkpoint schema: %w", err)
	}
	return &Store{db: db, ttl: opts.TTL}, nil
}

// Open connects to PostgreSQL with a lib/pq DSN and creates a store.
func Open(ctx context.Context, dsn string, opts Options) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// The database may still be coming up; connection refusals are retried.
	if err := retry.Do(ctx, func() error { return db.PingContext(ctx) },
		retry.WithBaseWait(500*time.Millisecond)); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	store, err := New(ctx, db, opts)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Put appends a checkpoint and opportunistically sweeps expired rows for the
// thread.
func (s *Store) Put(ctx context.Context, threadID string, cp *assay.Checkpoint, meta *assay.CheckpointMetadata) (string, error) {
	if meta == nil {
		meta = assay.MetadataFor(cp)
	}
	encoded, err := assay.EncodeCheckpoint(cp)
	if err != nil {
		return "", err
	}
	metaData, err := json.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("failed to marshal checkpoint metadata: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM assay_checkpoints WHERE thread_id = $1 AND expires_at <= now()`,
		threadID); err != nil {
		return "", fmt.Errorf("failed to sweep expired checkpoints: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO assay_checkpoints
			(thread_id, seq, checkpoint_id, created_at, expires_at, metadata, data)
		SELECT $1, COALESCE(MAX(seq), 0) + 1, $2, $3, $4, $5, $6
		FROM assay_checkpoints WHERE thread_id = $1`,
		threadID, cp.ID, cp.CreatedAt, time.Now().Add(s.ttl), metaData, encoded); err != nil {
		return "", fmt.Errorf("failed to insert checkpoint: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit checkpoint: %w", err)
	}
	return cp.ID, nil
}

// Latest returns the newest live checkpoint for a thread, or nils if none.
func (s *Store) Latest(ctx context.Context, threadID string) (*assay.Checkpoint, *assay.CheckpointMetadata, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT data, metadata FROM assay_checkpoints
		WHERE thread_id = $1 AND expires_at > now()
		ORDER BY seq DESC LIMIT 1`, threadID)
	var data, metaData []byte
	if err := row.Scan(&data, &metaData); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("failed to read latest checkpoint: %w", err)
	}
	cp, err := assay.DecodeCheckpoint(data)
	if err != nil {
		return nil, nil, err
	}
	var meta assay.CheckpointMetadata
	if err := json.Unmarshal(metaData, &meta); err != nil {
		return nil, nil, fmt.Errorf("failed to unmarshal checkpoint metadata: %w", err)
	}
	return cp, &meta, nil
}

// GetAt returns a specific checkpoint, or nil if not found or expired.
func (s *Store) GetAt(ctx context.Context, threadID, checkpointID string) (*assay.Checkpoint, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT data FROM assay_checkpoints
		WHERE thread_id = $1 AND checkpoint_id = $2 AND expires_at > now()`,
		threadID, checkpointID)
	var data []byte
	if err := row.Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read checkpoint %s: %w", checkpointID, err)
	}
	return assay.DecodeCheckpoint(data)
}

// List returns checkpoint metadata newest first.
func (s *Store) List(ctx context.Context, threadID string, opts assay.ListOptions) ([]*assay.CheckpointMetadata, error) {
	query := `
		SELECT metadata FROM assay_checkpoints
		WHERE thread_id = $1 AND expires_at > now()`
	args := []any{threadID}
	if !opts.Before.IsZero() {
		query += fmt.Sprintf(" AND created_at < $%d", len(args)+1)
		args = append(args, opts.Before)
	}
	query += " ORDER BY seq DESC"
	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", len(args)+1)
		args = append(args, opts.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}
	defer rows.Close()

	var metas []*assay.CheckpointMetadata
	for rows.Next() {
		var metaData []byte
		if err := rows.Scan(&metaData); err != nil {
			return nil, fmt.Errorf("failed to scan checkpoint metadata: %w", err)
		}
		var meta assay.CheckpointMetadata
		if err := json.Unmarshal(metaData, &meta); err != nil {
			return nil, fmt.Errorf("failed to unmarshal checkpoint metadata: %w", err)
		}
		metas = append(metas, &meta)
	}
	return metas, rows.Err()
}

// DeleteThread removes all checkpoint data for a thread.
func (s *Store) DeleteThread(ctx context.Context, threadID string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM assay_checkpoints WHERE thread_id = $1`, threadID); err != nil {
		return fmt.Errorf("failed to delete thread %s: %w", threadID, err)
	}
	return nil
}

// Sweep deletes expired checkpoints across all threads. Intended for a
// periodic maintenance job.
func (s *Store) Sweep(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM assay_checkpoints WHERE expires_at <= now()`)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep expired checkpoints: %w", err)
	}
	return result.RowsAffected()
}
