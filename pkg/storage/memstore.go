package storage

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/cuemby/checksplit/pkg/types"
)

// MemStore is a thread-safe, process-local RecordStore. It is the
// default store for tests and for callers that don't need
// durability across restarts.
type MemStore struct {
	mu   sync.RWMutex
	data map[string]map[string]*types.StoredRecord // threadID -> recordID -> record
}

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{data: make(map[string]map[string]*types.StoredRecord)}
}

func (s *MemStore) Get(ctx context.Context, threadID, recordID string) (*types.StoredRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	thread, ok := s.data[threadID]
	if !ok {
		return nil, nil
	}
	rec, ok := thread[recordID]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (s *MemStore) Create(ctx context.Context, record *types.StoredRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	thread, ok := s.data[record.ThreadID]
	if !ok {
		thread = make(map[string]*types.StoredRecord)
		s.data[record.ThreadID] = thread
	}
	cp := *record
	thread[record.RecordID] = &cp
	return nil
}

func (s *MemStore) Delete(ctx context.Context, threadID, recordID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	thread, ok := s.data[threadID]
	if !ok {
		return nil
	}
	delete(thread, recordID)
	if len(thread) == 0 {
		delete(s.data, threadID)
	}
	return nil
}

func (s *MemStore) QueryByThread(ctx context.Context, threadID, keyPrefix string) ([]*types.StoredRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	thread, ok := s.data[threadID]
	if !ok {
		return nil, nil
	}
	out := make([]*types.StoredRecord, 0, len(thread))
	for recordID, rec := range thread {
		if keyPrefix != "" && !strings.HasPrefix(recordID, keyPrefix) {
			continue
		}
		cp := *rec
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RecordID < out[j].RecordID })
	return out, nil
}

func (s *MemStore) Close() error { return nil }
