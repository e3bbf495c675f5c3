package checkpointstore

import (
	"context"
	"strings"
	"testing"

	"github.com/cuemby/checksplit/pkg/config"
	"github.com/cuemby/checksplit/pkg/storage"
	"github.com/cuemby/checksplit/pkg/types"
)

func checkpointWithMessages(n int, size int) types.Checkpoint {
	entries := make([]any, n)
	for i := range entries {
		entries[i] = map[string]any{"role": "user", "content": strings.Repeat("a", size)}
	}
	return types.Checkpoint{Channels: []types.ChannelEntry{
		{Name: "messages", Value: types.ChannelValue{Messages: &types.MessageList{Version: "v1", Entries: entries}}},
	}}
}

func TestStore_PutGetTuple_Unsharded(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	cfg.Enabled = true
	store := New(storage.NewMemStore(), cfg)

	key := RecordKey{ThreadID: "t1", Namespace: "ns", ID: "r1"}
	cp := checkpointWithMessages(2, 50)
	if _, err := store.Put(ctx, key, cp, map[string]any{"step": 1}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, err := store.GetTuple(ctx, key)
	if err != nil {
		t.Fatalf("GetTuple() error = %v", err)
	}
	if got == nil {
		t.Fatal("GetTuple() = nil, want a tuple")
	}
	if len(got.Checkpoint.Channels[0].Value.Messages.Entries) != 2 {
		t.Errorf("got %d messages, want 2", len(got.Checkpoint.Channels[0].Value.Messages.Entries))
	}
}

func TestStore_PutGetTuple_ShardedRoundTrip(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	cfg.Enabled = true
	cfg.MaxSizeThreshold = 10_000
	cfg.MaxChunkSize = 5_000
	store := New(storage.NewMemStore(), cfg)

	key := RecordKey{ThreadID: "t1", Namespace: "ns", ID: "r2"}
	cp := checkpointWithMessages(100, 600)
	if _, err := store.Put(ctx, key, cp, nil); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, err := store.GetTuple(ctx, key)
	if err != nil {
		t.Fatalf("GetTuple() error = %v", err)
	}
	if got == nil {
		t.Fatal("GetTuple() = nil, want reassembled tuple")
	}
	if len(got.Checkpoint.Channels[0].Value.Messages.Entries) != 100 {
		t.Errorf("got %d messages, want 100", len(got.Checkpoint.Channels[0].Value.Messages.Entries))
	}
}

func TestStore_List_FiltersShardsAndReassembles(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	cfg.Enabled = true
	cfg.MaxSizeThreshold = 10_000
	cfg.MaxChunkSize = 5_000
	store := New(storage.NewMemStore(), cfg)

	key := RecordKey{ThreadID: "t1", Namespace: "ns", ID: "r3"}
	if _, err := store.Put(ctx, key, checkpointWithMessages(100, 600), nil); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	tuples, err := store.List(ctx, "t1", "ns")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(tuples) != 1 {
		t.Fatalf("len(tuples) = %d, want 1 (shards must not appear)", len(tuples))
	}
	if len(tuples[0].Checkpoint.Channels[0].Value.Messages.Entries) != 100 {
		t.Error("listed tuple was not fully reassembled")
	}
}

func TestStore_DeleteThread_RemovesAllShardsAndLegacyRecords(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	cfg.Enabled = true
	cfg.MaxSizeThreshold = 10_000
	cfg.MaxChunkSize = 5_000
	rs := storage.NewMemStore()
	store := New(rs, cfg)

	shardedKey := RecordKey{ThreadID: "t1", Namespace: "ns", ID: "sharded"}
	if _, err := store.Put(ctx, shardedKey, checkpointWithMessages(100, 600), nil); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	legacyKey := RecordKey{ThreadID: "t1", Namespace: "ns", ID: "legacy"}
	if _, err := store.Put(ctx, legacyKey, checkpointWithMessages(1, 10), nil); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	before, err := rs.QueryByThread(ctx, "t1", "")
	if err != nil {
		t.Fatalf("QueryByThread() error = %v", err)
	}
	if len(before) < 3 {
		t.Fatalf("expected at least 3 stored records (N shards + legacy), got %d", len(before))
	}

	if err := store.DeleteThread(ctx, "t1"); err != nil {
		t.Fatalf("DeleteThread() error = %v", err)
	}

	after, err := rs.QueryByThread(ctx, "t1", "")
	if err != nil {
		t.Fatalf("QueryByThread() error = %v", err)
	}
	if len(after) != 0 {
		t.Errorf("len(after) = %d, want 0", len(after))
	}
}

func TestStore_DeleteThread_Idempotent(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	store := New(storage.NewMemStore(), cfg)

	if err := store.DeleteThread(ctx, "ghost"); err != nil {
		t.Fatalf("first DeleteThread() error = %v", err)
	}
	if err := store.DeleteThread(ctx, "ghost"); err != nil {
		t.Fatalf("second DeleteThread() error = %v", err)
	}
}

func TestStore_GetTuple_LegacyUnsplitRecord(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	rs := storage.NewMemStore()
	store := New(rs, cfg)

	key := RecordKey{ThreadID: "t1", Namespace: "ns", ID: "legacy1"}
	_ = rs.Create(ctx, &types.StoredRecord{
		ThreadID:   "t1",
		RecordID:   key.RecordID(),
		Checkpoint: &types.Checkpoint{Channels: []types.ChannelEntry{{Name: "c", Value: types.ChannelValue{Opaque: "v"}}}},
		IsSplit:    false,
	})

	got, err := store.GetTuple(ctx, key)
	if err != nil {
		t.Fatalf("GetTuple() error = %v", err)
	}
	if got == nil {
		t.Fatal("GetTuple() = nil, want the legacy record")
	}
}

func TestStore_GetTuple_Absent(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	store := New(storage.NewMemStore(), cfg)

	got, err := store.GetTuple(ctx, RecordKey{ThreadID: "t1", Namespace: "ns", ID: "missing"})
	if err != nil {
		t.Fatalf("GetTuple() error = %v", err)
	}
	if got != nil {
		t.Errorf("GetTuple() = %+v, want nil", got)
	}
}
