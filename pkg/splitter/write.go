package splitter

import (
	"context"
	"time"

	"github.com/cuemby/checksplit/pkg/config"
	"github.com/cuemby/checksplit/pkg/errs"
	"github.com/cuemby/checksplit/pkg/log"
	"github.com/cuemby/checksplit/pkg/metrics"
	"github.com/cuemby/checksplit/pkg/storage"
	"github.com/cuemby/checksplit/pkg/types"
)

// storeShards writes shards in order, retrying each with exponential
// backoff (2^attempt × 100ms) up to cfg.MaxRetries attempts. If a
// shard exhausts its retries, every shard written so far is deleted
// best-effort (rollback failures are logged, never masking the
// original error) and the whole operation fails with SplitError.
func storeShards(ctx context.Context, store storage.RecordStore, threadID string, shards []*types.StoredRecord, cfg config.SplitConfig) ([]string, error) {
	written := make([]*types.StoredRecord, 0, len(shards))

	for _, shard := range shards {
		shard.ThreadID = threadID
		err := retryCreate(ctx, store, shard, cfg.MaxRetries)
		if err != nil {
			rollback(ctx, store, written)
			metrics.RollbacksTotal.Inc()
			return nil, &errs.SplitError{
				RecordID: shard.SplitMetadata.OriginalRecordID,
				Attempts: cfg.MaxRetries,
				Err:      err,
			}
		}
		written = append(written, shard)
		metrics.ShardsWrittenTotal.WithLabelValues(string(cfg.Strategy)).Inc()
	}

	ids := make([]string, len(written))
	for i, s := range written {
		ids[i] = s.RecordID
	}
	return ids, nil
}

func retryCreate(ctx context.Context, store storage.RecordStore, shard *types.StoredRecord, maxRetries int) error {
	delay := 100 * time.Millisecond
	var lastErr error

	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			metrics.RetriesTotal.Inc()
		}
		lastErr = store.Create(ctx, shard)
		if lastErr == nil {
			return nil
		}
		if attempt < maxRetries-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
				delay *= 2
			}
		}
	}
	return &errs.StoreError{Op: "create", Err: lastErr}
}

func rollback(ctx context.Context, store storage.RecordStore, written []*types.StoredRecord) {
	for _, s := range written {
		if err := store.Delete(ctx, s.ThreadID, s.RecordID); err != nil {
			log.WithRecord(s.RecordID).Warn().Err(err).Msg("rollback delete failed, shard may be orphaned")
		}
	}
}
