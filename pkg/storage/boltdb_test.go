package storage

import (
	"context"
	"testing"

	"github.com/cuemby/checksplit/pkg/types"
)

func openTestBoltStore(t *testing.T) *BoltStore {
	t.Helper()
	s, err := NewBoltStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewBoltStore() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestBoltStore_CreateGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestBoltStore(t)

	rec := &types.StoredRecord{
		ThreadID: "t1",
		RecordID: "checkpoint#ns#r1",
		Checkpoint: &types.Checkpoint{Channels: []types.ChannelEntry{
			{Name: "messages", Value: types.ChannelValue{Opaque: "hello"}},
		}},
	}
	if err := s.Create(ctx, rec); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := s.Get(ctx, "t1", "checkpoint#ns#r1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got == nil || len(got.Checkpoint.Channels) != 1 {
		t.Fatalf("Get() = %+v, want round-tripped checkpoint", got)
	}
}

func TestBoltStore_GetAbsentThreadReturnsNil(t *testing.T) {
	ctx := context.Background()
	s := openTestBoltStore(t)
	got, err := s.Get(ctx, "ghost-thread", "r1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != nil {
		t.Errorf("Get() = %+v, want nil", got)
	}
}

func TestBoltStore_QueryByThreadPrefix(t *testing.T) {
	ctx := context.Background()
	s := openTestBoltStore(t)

	for _, id := range []string{"checkpoint#ns#r1", "split#r1#part#0001"} {
		if err := s.Create(ctx, &types.StoredRecord{ThreadID: "t1", RecordID: id}); err != nil {
			t.Fatalf("Create(%s) error = %v", id, err)
		}
	}

	shards, err := s.QueryByThread(ctx, "t1", "split#")
	if err != nil {
		t.Fatalf("QueryByThread() error = %v", err)
	}
	if len(shards) != 1 {
		t.Fatalf("len(shards) = %d, want 1", len(shards))
	}
}

func TestBoltStore_GCRemovesOrphanShardsButKeepsLive(t *testing.T) {
	ctx := context.Background()
	s := openTestBoltStore(t)

	live := &types.StoredRecord{
		ThreadID:      "t1",
		RecordID:      "r-live",
		IsSplit:       true,
		SplitMetadata: &types.SplitMetadata{OriginalRecordID: "r-live", TotalParts: 2},
	}
	liveShard := &types.StoredRecord{ThreadID: "t1", RecordID: "split#r-live#part#0001"}
	orphanShard := &types.StoredRecord{ThreadID: "t1", RecordID: "split#r-dead#part#0001"}

	for _, rec := range []*types.StoredRecord{live, liveShard, orphanShard} {
		if err := s.Create(ctx, rec); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	removed, err := s.GC(ctx, "t1", "split")
	if err != nil {
		t.Fatalf("GC() error = %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}

	if got, _ := s.Get(ctx, "t1", "split#r-dead#part#0001"); got != nil {
		t.Error("orphan shard survived GC")
	}
	if got, _ := s.Get(ctx, "t1", "split#r-live#part#0001"); got == nil {
		t.Error("live shard was removed by GC")
	}
}

func TestOriginalRecordIDFromShardKey(t *testing.T) {
	tests := []struct {
		key, prefix, want string
	}{
		{"split#checkpoint#ns#r1#part#0001", "split", "checkpoint#ns#r1"},
		{"split#r1#part#0042", "split", "r1"},
	}
	for _, tc := range tests {
		if got := originalRecordIDFromShardKey(tc.key, tc.prefix); got != tc.want {
			t.Errorf("originalRecordIDFromShardKey(%q, %q) = %q, want %q", tc.key, tc.prefix, got, tc.want)
		}
	}
}
