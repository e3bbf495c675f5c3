// Package checkpointstore is the caller-facing facade over the
// splitting engine: Put, GetTuple, List, and DeleteThread. It
// delegates size decisions and shard I/O to pkg/splitter, and
// handles pass-through (non-sharded) records directly.
package checkpointstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/cuemby/checksplit/pkg/config"
	"github.com/cuemby/checksplit/pkg/errs"
	"github.com/cuemby/checksplit/pkg/log"
	"github.com/cuemby/checksplit/pkg/metrics"
	"github.com/cuemby/checksplit/pkg/splitter"
	"github.com/cuemby/checksplit/pkg/storage"
	"github.com/cuemby/checksplit/pkg/types"
)

// RecordKey identifies a logical record from the caller's viewpoint.
// Namespace and ID are opaque to the engine; RecordID() composes them
// into the key format described at the RecordStore port.
type RecordKey struct {
	ThreadID  string
	Namespace string
	ID        string
}

// RecordID returns the logical key's recordID: "checkpoint#{namespace}#{id}".
func (k RecordKey) RecordID() string {
	return fmt.Sprintf("checkpoint#%s#%s", k.Namespace, k.ID)
}

// Ref is the caller-facing reference returned by Put.
type Ref struct {
	ThreadID     string
	CheckpointNs string
	CheckpointID string
}

// Store is the Storage Adapter: the single entry point a caller uses
// to persist and retrieve checkpoints, transparently sharding
// oversized records via the configured SplitConfig.
type Store struct {
	records storage.RecordStore
	cfg     config.SplitConfig
}

// New returns a Store backed by records, using cfg to decide whether
// and how to shard oversized writes.
func New(records storage.RecordStore, cfg config.SplitConfig) *Store {
	return &Store{records: records, cfg: cfg}
}

// Put persists (checkpoint, metadata) at key, splitting it across
// shards if it exceeds the configured threshold, and returns the
// caller-facing reference.
func (s *Store) Put(ctx context.Context, key RecordKey, cp types.Checkpoint, md types.Metadata) (Ref, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.PutDuration)

	recordID := key.RecordID()
	result, err := splitter.SplitIfNeeded(ctx, s.cfg, key.ThreadID, recordID, &cp, md, s.records)
	if err != nil {
		return Ref{}, err
	}

	if !result.WasSplit {
		rec := &types.StoredRecord{
			ThreadID:   key.ThreadID,
			RecordID:   recordID,
			Checkpoint: &cp,
			Metadata:   md,
			IsSplit:    false,
		}
		if err := s.records.Create(ctx, rec); err != nil {
			return Ref{}, &errs.StoreError{Op: "create", Err: err}
		}
	}

	return Ref{ThreadID: key.ThreadID, CheckpointNs: key.Namespace, CheckpointID: key.ID}, nil
}

// GetTuple reads the logical record at key. A corrupted or
// incomplete shard set is reported the same as "not found" — the
// warnings that explain why are logged, not surfaced to the caller.
func (s *Store) GetTuple(ctx context.Context, key RecordKey) (*types.Tuple, error) {
	recordID := key.RecordID()
	rec, err := s.records.Get(ctx, key.ThreadID, recordID)
	if err != nil {
		return nil, &errs.StoreError{Op: "get", Err: err}
	}
	if rec == nil {
		return nil, nil
	}
	if !rec.IsSplit {
		return &types.Tuple{Checkpoint: *rec.Checkpoint, Metadata: rec.Metadata}, nil
	}

	result, err := splitter.Reassemble(ctx, key.ThreadID, recordID, s.records, s.cfg.SplitRecordPrefix, splitter.ReassembleOptions{
		ValidateChecksums: true,
		Timeout:           s.cfg.OperationTimeout,
		EnableLogging:     s.cfg.EnableSizeMonitoring,
	})
	if err != nil {
		return nil, err
	}
	if !result.Success {
		log.WithRecord(recordID).Warn().Strs("warnings", result.Warnings).Msg("getTuple: reassembly failed, reporting not found")
		return nil, nil
	}
	return &types.Tuple{Checkpoint: result.Checkpoint, Metadata: result.Metadata}, nil
}

// List enumerates every logical record under threadID whose recordID
// has the given namespace prefix, reassembling sharded entries on the
// fly and filtering out shard auxiliaries and entries that fail
// reassembly.
func (s *Store) List(ctx context.Context, threadID, namespace string) ([]types.Tuple, error) {
	prefix := fmt.Sprintf("checkpoint#%s#", namespace)
	recs, err := s.records.QueryByThread(ctx, threadID, prefix)
	if err != nil {
		return nil, &errs.StoreError{Op: "queryByThread", Err: err}
	}

	shardPrefix := s.cfg.SplitRecordPrefix + "#"
	out := make([]types.Tuple, 0, len(recs))
	for _, rec := range recs {
		if strings.HasPrefix(rec.RecordID, shardPrefix) {
			continue
		}
		if !rec.IsSplit {
			out = append(out, types.Tuple{Checkpoint: *rec.Checkpoint, Metadata: rec.Metadata})
			continue
		}

		result, err := splitter.Reassemble(ctx, threadID, rec.RecordID, s.records, s.cfg.SplitRecordPrefix, splitter.ReassembleOptions{
			ValidateChecksums: true,
			Timeout:           s.cfg.OperationTimeout,
			EnableLogging:     s.cfg.EnableSizeMonitoring,
		})
		if err != nil || !result.Success {
			metrics.ListSkippedTotal.Inc()
			log.WithRecord(rec.RecordID).Warn().Msg("list: skipping record that failed reassembly")
			continue
		}
		out = append(out, types.Tuple{Checkpoint: result.Checkpoint, Metadata: result.Metadata})
	}
	return out, nil
}

// DeleteThread removes every record under threadID, including shard
// auxiliaries. It fails on the first delete error the caller should
// retry; ordering of deletes is unspecified.
func (s *Store) DeleteThread(ctx context.Context, threadID string) error {
	recs, err := s.records.QueryByThread(ctx, threadID, "")
	if err != nil {
		return &errs.StoreError{Op: "queryByThread", Err: err}
	}
	for _, rec := range recs {
		if err := s.records.Delete(ctx, threadID, rec.RecordID); err != nil {
			return &errs.StoreError{Op: "delete", Err: err}
		}
		metrics.DeleteThreadRecordsTotal.Inc()
	}
	return nil
}
