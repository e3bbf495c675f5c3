package storage

import (
	"context"
	"testing"

	"github.com/cuemby/checksplit/pkg/types"
)

func TestMemStore_CreateGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	rec := &types.StoredRecord{ThreadID: "t1", RecordID: "checkpoint#ns#r1"}
	if err := s.Create(ctx, rec); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := s.Get(ctx, "t1", "checkpoint#ns#r1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got == nil {
		t.Fatal("Get() = nil, want record")
	}
	if got.RecordID != rec.RecordID {
		t.Errorf("RecordID = %q, want %q", got.RecordID, rec.RecordID)
	}
}

func TestMemStore_GetAbsentReturnsNilNoError(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	got, err := s.Get(ctx, "t1", "missing")
	if err != nil {
		t.Fatalf("Get() error = %v, want nil", err)
	}
	if got != nil {
		t.Errorf("Get() = %+v, want nil", got)
	}
}

func TestMemStore_DeleteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	if err := s.Delete(ctx, "t1", "nonexistent"); err != nil {
		t.Fatalf("Delete() on absent record error = %v, want nil", err)
	}

	rec := &types.StoredRecord{ThreadID: "t1", RecordID: "r1"}
	_ = s.Create(ctx, rec)
	if err := s.Delete(ctx, "t1", "r1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := s.Delete(ctx, "t1", "r1"); err != nil {
		t.Fatalf("second Delete() error = %v, want nil", err)
	}
	got, _ := s.Get(ctx, "t1", "r1")
	if got != nil {
		t.Error("record still present after Delete()")
	}
}

func TestMemStore_QueryByThreadFiltersPrefixAndSorts(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	ids := []string{"checkpoint#ns#r1", "split#r1#part#0002", "split#r1#part#0001", "checkpoint#ns#r2"}
	for _, id := range ids {
		_ = s.Create(ctx, &types.StoredRecord{ThreadID: "t1", RecordID: id})
	}

	shards, err := s.QueryByThread(ctx, "t1", "split#")
	if err != nil {
		t.Fatalf("QueryByThread() error = %v", err)
	}
	if len(shards) != 2 {
		t.Fatalf("len(shards) = %d, want 2", len(shards))
	}
	if shards[0].RecordID != "split#r1#part#0001" || shards[1].RecordID != "split#r1#part#0002" {
		t.Errorf("shards not sorted by recordID: %q, %q", shards[0].RecordID, shards[1].RecordID)
	}

	all, err := s.QueryByThread(ctx, "t1", "")
	if err != nil {
		t.Fatalf("QueryByThread() error = %v", err)
	}
	if len(all) != 4 {
		t.Errorf("len(all) = %d, want 4", len(all))
	}
}

func TestMemStore_QueryByThreadUnknownThread(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	recs, err := s.QueryByThread(ctx, "ghost", "")
	if err != nil {
		t.Fatalf("QueryByThread() error = %v", err)
	}
	if recs != nil {
		t.Errorf("QueryByThread() = %v, want nil for unknown thread", recs)
	}
}

func TestMemStore_GetReturnsIndependentCopy(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	rec := &types.StoredRecord{ThreadID: "t1", RecordID: "r1", IsSplit: false}
	_ = s.Create(ctx, rec)

	got, _ := s.Get(ctx, "t1", "r1")
	got.IsSplit = true

	got2, _ := s.Get(ctx, "t1", "r1")
	if got2.IsSplit {
		t.Error("mutating a Get() result affected the stored record")
	}
}
