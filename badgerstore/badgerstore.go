// Package badgerstore provides a durable checkpointer backed by BadgerDB.
// Checkpoints are written with a TTL so abandoned threads age out without a
// sweeper process.
package badgerstore

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/deepnoodle-ai/assay"
)

// Options configures the store.
type Options struct {
	// Path is the directory for the Badger database. Ignored when InMemory
	// is set.
	Path string

	// InMemory keeps all data in memory. Useful for tests.
	InMemory bool

	// TTL is how long checkpoints live. Zero means the engine default of 24h.
	TTL time.Duration

	// Logger receives Badger's internal logging. Defaults to slog.Default().
	Logger *slog.Logger
}

// Store is a Checkpointer backed by BadgerDB. Keys are laid out so a reverse
// prefix scan yields a thread's checkpoints newest first:
//
//	cp/<thread>/<seq>    encoded checkpoint
//	meta/<thread>/<seq>  metadata summary
//	id/<thread>/<cpID>   seq lookup for GetAt
type Store struct {
	db  *badger.DB
	ttl time.Duration

	mutex sync.Mutex
	seqs  map[string]uint64
}

var _ assay.Checkpointer = (*Store)(nil)

// New opens (or creates) a store.
func New(opts Options) (*Store, error) {
	if opts.TTL == 0 {
		opts.TTL = 24 * time.Hour
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	var badgerOpts badger.Options
	if opts.InMemory {
		badgerOpts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if opts.Path == "" {
			return nil, fmt.Errorf("badgerstore: path is required")
		}
		badgerOpts = badger.DefaultOptions(opts.Path)
	}
	badgerOpts = badgerOpts.WithLogger(&slogAdapter{logger: opts.Logger})
	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}
	return &Store{db: db, ttl: opts.TTL, seqs: map[string]uint64{}}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func checkpointKey(threadID string, seq uint64) []byte {
	return appendSeq([]byte("cp/"+threadID+"/"), seq)
}

func metaKey(threadID string, seq uint64) []byte {
	return appendSeq([]byte("meta/"+threadID+"/"), seq)
}

func idKey(threadID, checkpointID string) []byte {
	return []byte("id/" + threadID + "/" + checkpointID)
}

func appendSeq(prefix []byte, seq uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], seq)
	return append(prefix, buf[:]...)
}

// nextSeq returns the next sequence number for a thread, recovering the
// current high-water mark from the database on first use.
func (s *Store) nextSeq(threadID string) (uint64, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if seq, ok := s.seqs[threadID]; ok {
		s.seqs[threadID] = seq + 1
		return seq + 1, nil
	}
	var last uint64
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		prefix := []byte("cp/" + threadID + "/")
		// Seek past the prefix range, then the first valid key is the newest.
		it.Seek(append(append([]byte(nil), prefix...), 0xff))
		if it.ValidForPrefix(prefix) {
			key := it.Item().Key()
			last = binary.BigEndian.Uint64(key[len(prefix):])
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.seqs[threadID] = last + 1
	return last + 1, nil
}

// Put appends a checkpoint. All keys for the entry share the store's TTL.
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
	seq, err := s.nextSeq(threadID)
	if err != nil {
		return "", err
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.SetEntry(badger.NewEntry(checkpointKey(threadID, seq), encoded).WithTTL(s.ttl)); err != nil {
			return err
		}
		if err := txn.SetEntry(badger.NewEntry(metaKey(threadID, seq), metaData).WithTTL(s.ttl)); err != nil {
			return err
		}
		var seqBuf [8]byte
		binary.BigEndian.PutUint64(seqBuf[:], seq)
		return txn.SetEntry(badger.NewEntry(idKey(threadID, cp.ID), seqBuf[:]).WithTTL(s.ttl))
	})
	if err != nil {
		return "", fmt.Errorf("failed to write checkpoint: %w", err)
	}
	return cp.ID, nil
}

// Latest returns the newest checkpoint for a thread, or nils if none exists.
func (s *Store) Latest(ctx context.Context, threadID string) (*assay.Checkpoint, *assay.CheckpointMetadata, error) {
	var cp *assay.Checkpoint
	var meta *assay.CheckpointMetadata
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()
		prefix := []byte("cp/" + threadID + "/")
		it.Seek(append(append([]byte(nil), prefix...), 0xff))
		if !it.ValidForPrefix(prefix) {
			return nil
		}
		key := it.Item().Key()
		seq := binary.BigEndian.Uint64(key[len(prefix):])
		if err := it.Item().Value(func(val []byte) error {
			decoded, err := assay.DecodeCheckpoint(val)
			if err != nil {
				return err
			}
			cp = decoded
			return nil
		}); err != nil {
			return err
		}
		item, err := txn.Get(metaKey(threadID, seq))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			var m assay.CheckpointMetadata
			if err := json.Unmarshal(val, &m); err != nil {
				return err
			}
			meta = &m
			return nil
		})
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read latest checkpoint: %w", err)
	}
	return cp, meta, nil
}

// GetAt returns a specific checkpoint, or nil if not found (or expired).
func (s *Store) GetAt(ctx context.Context, threadID, checkpointID string) (*assay.Checkpoint, error) {
	var cp *assay.Checkpoint
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(idKey(threadID, checkpointID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		var seq uint64
		if err := item.Value(func(val []byte) error {
			seq = binary.BigEndian.Uint64(val)
			return nil
		}); err != nil {
			return err
		}
		item, err = txn.Get(checkpointKey(threadID, seq))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			decoded, err := assay.DecodeCheckpoint(val)
			if err != nil {
				return err
			}
			cp = decoded
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint %s: %w", checkpointID, err)
	}
	return cp, nil
}

// List returns checkpoint metadata newest first.
func (s *Store) List(ctx context.Context, threadID string, opts assay.ListOptions) ([]*assay.CheckpointMetadata, error) {
	var metas []*assay.CheckpointMetadata
	err := s.db.View(func(txn *badger.Txn) error {
		iterOpts := badger.DefaultIteratorOptions
		iterOpts.Reverse = true
		it := txn.NewIterator(iterOpts)
		defer it.Close()
		prefix := []byte("meta/" + threadID + "/")
		for it.Seek(append(append([]byte(nil), prefix...), 0xff)); it.ValidForPrefix(prefix); it.Next() {
			var m assay.CheckpointMetadata
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &m)
			}); err != nil {
				return err
			}
			if !opts.Before.IsZero() && !m.CreatedAt.Before(opts.Before) {
				continue
			}
			metas = append(metas, &m)
			if opts.Limit > 0 && len(metas) >= opts.Limit {
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}
	return metas, nil
}

// DeleteThread removes all checkpoint data for a thread.
func (s *Store) DeleteThread(ctx context.Context, threadID string) error {
	prefixes := [][]byte{
		[]byte("cp/" + threadID + "/"),
		[]byte("meta/" + threadID + "/"),
		[]byte("id/" + threadID + "/"),
	}
	var keys [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for _, prefix := range prefixes {
			for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
				keys = append(keys, it.Item().KeyCopy(nil))
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to scan thread keys: %w", err)
	}
	batch := s.db.NewWriteBatch()
	defer batch.Cancel()
	for _, key := range keys {
		if err := batch.Delete(key); err != nil {
			return fmt.Errorf("failed to delete checkpoint key: %w", err)
		}
	}
	if err := batch.Flush(); err != nil {
		return fmt.Errorf("failed to delete thread %s: %w", threadID, err)
	}
	s.mutex.Lock()
	delete(s.seqs, threadID)
	s.mutex.Unlock()
	return nil
}

// slogAdapter routes Badger's internal logging through slog.
type slogAdapter struct {
	logger *slog.Logger
}

func (a *slogAdapter) Errorf(format string, args ...interface{}) {
	a.logger.Error(fmt.Sprintf(format, args...))
}

func (a *slogAdapter) Warningf(format string, args ...interface{}) {
	a.logger.Warn(fmt.Sprintf(format, args...))
}

func (a *slogAdapter) Infof(format string, args ...interface{}) {
	a.logger.Debug(fmt.Sprintf(format, args...))
}

func (a *slogAdapter) Debugf(format string, args ...interface{}) {
	a.logger.Debug(fmt.Sprintf(format, args...))
}
