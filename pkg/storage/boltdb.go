package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cuemby/checksplit/pkg/types"
	bolt "go.etcd.io/bbolt"
)

var bucketThreads = []byte("threads")

// BoltStore is a durable, single-node RecordStore backed by BoltDB.
// Records are organized as one nested bucket per threadID, keyed by
// recordID within that bucket — the natural BoltDB mapping for a
// (partition key, sort key) store.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (creating if absent) a BoltDB file under dataDir.
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "checksplit.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketThreads)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create threads bucket: %w", err)
	}

	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

func (s *BoltStore) Get(ctx context.Context, threadID, recordID string) (*types.StoredRecord, error) {
	var rec *types.StoredRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		threads := tx.Bucket(bucketThreads)
		thread := threads.Bucket([]byte(threadID))
		if thread == nil {
			return nil
		}
		data := thread.Get([]byte(recordID))
		if data == nil {
			return nil
		}
		rec = &types.StoredRecord{}
		return json.Unmarshal(data, rec)
	})
	return rec, err
}

func (s *BoltStore) Create(ctx context.Context, record *types.StoredRecord) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		threads := tx.Bucket(bucketThreads)
		thread, err := threads.CreateBucketIfNotExists([]byte(record.ThreadID))
		if err != nil {
			return fmt.Errorf("failed to create thread bucket %s: %w", record.ThreadID, err)
		}
		data, err := json.Marshal(record)
		if err != nil {
			return err
		}
		return thread.Put([]byte(record.RecordID), data)
	})
}

func (s *BoltStore) Delete(ctx context.Context, threadID, recordID string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		threads := tx.Bucket(bucketThreads)
		thread := threads.Bucket([]byte(threadID))
		if thread == nil {
			return nil
		}
		return thread.Delete([]byte(recordID))
	})
}

func (s *BoltStore) QueryByThread(ctx context.Context, threadID, keyPrefix string) ([]*types.StoredRecord, error) {
	var out []*types.StoredRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		threads := tx.Bucket(bucketThreads)
		thread := threads.Bucket([]byte(threadID))
		if thread == nil {
			return nil
		}
		return thread.ForEach(func(k, v []byte) error {
			if keyPrefix != "" && !strings.HasPrefix(string(k), keyPrefix) {
				return nil
			}
			var rec types.StoredRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("failed to decode record %s/%s: %w", threadID, k, err)
			}
			out = append(out, &rec)
			return nil
		})
	})
	sort.Slice(out, func(i, j int) bool { return out[i].RecordID < out[j].RecordID })
	return out, err
}

// GC sweeps a thread's auxiliary shards for ones whose primary is
// missing or no longer reports isSplit — the orphans a crash between
// shard writes can leave behind, since no rollback runs after the
// process that started the write is gone. A future deleteThread
// would also reclaim these; GC lets an operator do it without
// deleting the whole thread.
func (s *BoltStore) GC(ctx context.Context, threadID, splitRecordPrefix string) (removed int, err error) {
	prefix := splitRecordPrefix + "#"
	shards, err := s.QueryByThread(ctx, threadID, prefix)
	if err != nil {
		return 0, err
	}

	liveOriginals := make(map[string]bool)
	for _, rec := range shards {
		originalID := originalRecordIDFromShardKey(rec.RecordID, splitRecordPrefix)
		if _, checked := liveOriginals[originalID]; checked {
			continue
		}
		primary, err := s.Get(ctx, threadID, originalID)
		liveOriginals[originalID] = err == nil && primary != nil && primary.IsSplit
	}

	for _, rec := range shards {
		originalID := originalRecordIDFromShardKey(rec.RecordID, splitRecordPrefix)
		if liveOriginals[originalID] {
			continue
		}
		if err := s.Delete(ctx, threadID, rec.RecordID); err != nil {
			return removed, fmt.Errorf("failed to delete orphan shard %s: %w", rec.RecordID, err)
		}
		removed++
	}
	return removed, nil
}

// originalRecordIDFromShardKey extracts originalRecordId from a key
// of the form "{prefix}#{originalRecordId}#part#{NNNN}".
func originalRecordIDFromShardKey(shardKey, prefix string) string {
	rest := strings.TrimPrefix(shardKey, prefix+"#")
	if i := strings.LastIndex(rest, "#part#"); i >= 0 {
		return rest[:i]
	}
	return rest
}
