// Package storage defines the RecordStore port the splitting engine
// depends on, plus two implementations: an in-memory store for tests
// and short-lived processes, and a BoltDB-backed store for durable
// single-node deployments.
package storage

import (
	"context"

	"github.com/cuemby/checksplit/pkg/types"
)

// RecordStore is the abstraction the splitter, reassembler, and
// storage adapter depend on. The actual KV implementation is
// external to the splitting core; MemStore and BoltStore in this
// package are the two concrete adapters this module ships.
//
// Implementations must provide:
//   - Get: a strong read, returning (nil, nil) when absent.
//   - Create: an unconditional upsert at (threadID, recordID).
//   - Delete: idempotent; deleting an absent record is not an error.
//   - QueryByThread: enumerates every record under threadID whose
//     recordID has the given prefix, in recordID sort order.
type RecordStore interface {
	Get(ctx context.Context, threadID, recordID string) (*types.StoredRecord, error)
	Create(ctx context.Context, record *types.StoredRecord) error
	Delete(ctx context.Context, threadID, recordID string) error
	QueryByThread(ctx context.Context, threadID, keyPrefix string) ([]*types.StoredRecord, error)
	Close() error
}
