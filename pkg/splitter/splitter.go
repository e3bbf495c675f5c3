// Package splitter orchestrates the sharding protocol: deciding
// whether a write must be split, producing the ordered shard set for
// the configured strategy, storing it with retry and rollback, and
// reassembling it on read.
package splitter

import (
	"context"
	"fmt"
	"time"

	"github.com/cuemby/checksplit/pkg/codec"
	"github.com/cuemby/checksplit/pkg/config"
	"github.com/cuemby/checksplit/pkg/errs"
	"github.com/cuemby/checksplit/pkg/log"
	"github.com/cuemby/checksplit/pkg/metrics"
	"github.com/cuemby/checksplit/pkg/sizer"
	"github.com/cuemby/checksplit/pkg/storage"
	"github.com/cuemby/checksplit/pkg/types"
)

// SplitResult reports whether a write was sharded and the complete
// set of recordIDs a caller (or deleteThread) must account for.
type SplitResult struct {
	WasSplit  bool
	RecordIDs []string
}

// SplitIfNeeded implements the write path: it consults the Sizer,
// and if the record must be split, produces and stores the shard
// set. A non-split verdict (including "not configured to split" and
// "cannot split with this strategy") returns {false, [recordID]} so
// the caller writes the record directly.
func SplitIfNeeded(ctx context.Context, cfg config.SplitConfig, threadID, recordID string, cp *types.Checkpoint, md types.Metadata, store storage.RecordStore) (SplitResult, error) {
	if !cfg.Enabled {
		return SplitResult{false, []string{recordID}}, nil
	}

	metrics.AnalyzeTotal.Inc()
	analysis, err := sizer.Analyze(cp, md, cfg)
	if err != nil {
		return SplitResult{}, err
	}
	if cfg.EnableSizeMonitoring {
		log.WithStrategy(string(cfg.Strategy)).Debug().
			Str("record_id", recordID).
			Int("total_size", analysis.TotalSize).
			Bool("exceeds_threshold", analysis.ExceedsThreshold).
			Msg("size analysis complete")
	}
	if !analysis.ExceedsThreshold {
		return SplitResult{false, []string{recordID}}, nil
	}
	metrics.ExceedsThresholdTotal.Inc()

	verdict, reason := sizer.CanSplit(cp, cfg.Strategy)
	if !verdict {
		log.WithStrategy(string(cfg.Strategy)).Warn().
			Str("record_id", recordID).
			Str("reason", reason).
			Msg("cannot split with configured strategy, writing direct")
		return SplitResult{false, []string{recordID}}, nil
	}

	shards, err := performSplit(cfg, recordID, cp, md)
	if err != nil {
		metrics.SplitsTotal.WithLabelValues(string(cfg.Strategy), "error").Inc()
		return SplitResult{}, &errs.SplitError{RecordID: recordID, Attempts: 0, Err: err}
	}

	ids, err := storeShards(ctx, store, threadID, shards, cfg)
	if err != nil {
		metrics.SplitsTotal.WithLabelValues(string(cfg.Strategy), "error").Inc()
		return SplitResult{}, err
	}

	metrics.SplitsTotal.WithLabelValues(string(cfg.Strategy), "ok").Inc()
	return SplitResult{true, ids}, nil
}

func performSplit(cfg config.SplitConfig, recordID string, cp *types.Checkpoint, md types.Metadata) ([]*types.StoredRecord, error) {
	switch cfg.Strategy {
	case types.ContentLevel:
		return performSplitContentLevel(cfg, recordID, cp, md)
	default:
		return performSplitMessageLevel(cfg, recordID, cp, md)
	}
}

// performSplitMessageLevel chunks each message-bearing channel
// independently, replaces its messages with an empty sequence in a
// copy of the checkpoint, and emits that copy as the primary shard
// (partNumber 0) alongside the auxiliary message chunks.
func performSplitMessageLevel(cfg config.SplitConfig, recordID string, cp *types.Checkpoint, md types.Metadata) ([]*types.StoredRecord, error) {
	now := time.Now().UTC()
	primaryCopy := cp.Clone()
	var auxiliaries []*types.StoredRecord
	partNumber := 1

	for i, ch := range primaryCopy.Channels {
		if ch.Value.Messages == nil || len(ch.Value.Messages.Entries) == 0 {
			continue
		}
		entries := ch.Value.Messages.Entries
		chunks := chunkMessages(entries, cfg.MaxChunkSize)

		start := 0
		for _, chunk := range chunks {
			data, err := codec.EncodeMessages(chunk)
			if err != nil {
				return nil, err
			}
			end := start + len(chunk) - 1
			aux := &types.StoredRecord{
				RecordID: auxKey(cfg.SplitRecordPrefix, recordID, partNumber),
				IsSplit:  true,
				SplitMetadata: &types.SplitMetadata{
					OriginalRecordID: recordID,
					PartNumber:       partNumber,
					Strategy:         types.MessageLevel,
					SplitTimestamp:   now,
					PartSize:         len(data),
					Checksum:         sizer.Checksum(data),
				},
				MessageSplitData: &types.MessageSplitData{
					ChannelName:     ch.Name,
					StartMessageIdx: start,
					EndMessageIdx:   end,
					MessagesData:    data,
					TotalMessages:   len(entries),
					ChannelVersion:  ch.Value.Messages.Version,
				},
			}
			auxiliaries = append(auxiliaries, aux)
			partNumber++
			start = end + 1
		}

		// Strip messages from the primary's copy of this channel.
		primaryCopy.Channels[i].Value.Messages = &types.MessageList{
			Version: ch.Value.Messages.Version,
			Entries: []any{},
		}
	}

	ckBytes, err := codec.EncodeCheckpoint(&primaryCopy)
	if err != nil {
		return nil, err
	}
	mdBytes, err := codec.EncodeMetadata(md)
	if err != nil {
		return nil, err
	}
	combined := append(append([]byte{}, ckBytes...), mdBytes...)

	totalParts := len(auxiliaries) + 1
	originalSize := len(combined)

	primary := &types.StoredRecord{
		RecordID:   recordID,
		Checkpoint: &primaryCopy,
		Metadata:   md,
		IsSplit:    true,
		SplitMetadata: &types.SplitMetadata{
			OriginalRecordID: recordID,
			TotalParts:       totalParts,
			PartNumber:       0,
			Strategy:         types.MessageLevel,
			SplitTimestamp:   now,
			OriginalSize:     originalSize,
			PartSize:         len(combined),
			Checksum:         sizer.Checksum(combined),
		},
	}

	shards := make([]*types.StoredRecord, 0, totalParts)
	shards = append(shards, primary)
	shards = append(shards, auxiliaries...)
	for _, s := range shards {
		s.SplitMetadata.TotalParts = totalParts
		s.SplitMetadata.OriginalSize = originalSize
	}
	return shards, nil
}

// performSplitContentLevel serializes {checkpoint, metadata} as one
// structure, Base64-encodes it, and splits the encoded string into
// fixed-size chunks. There is no separate stripped primary: shard 1
// carries the original recordID and partNumber 1.
func performSplitContentLevel(cfg config.SplitConfig, recordID string, cp *types.Checkpoint, md types.Metadata) ([]*types.StoredRecord, error) {
	now := time.Now().UTC()

	raw, err := codec.EncodeCombined(cp, md)
	if err != nil {
		return nil, err
	}
	originalSize := len(raw)
	encoded := base64Encode(raw)

	chunkSize := cfg.MaxChunkSize
	if chunkSize <= 0 {
		chunkSize = len(encoded)
	}
	totalParts := ceilDivInt(len(encoded), chunkSize)
	if totalParts == 0 {
		totalParts = 1
	}

	shards := make([]*types.StoredRecord, 0, totalParts)
	for i := 0; i < totalParts; i++ {
		lo := i * chunkSize
		hi := lo + chunkSize
		if hi > len(encoded) {
			hi = len(encoded)
		}
		chunk := []byte(encoded[lo:hi])
		partNumber := i + 1

		recID := recordID
		if partNumber > 1 {
			recID = auxKey(cfg.SplitRecordPrefix, recordID, partNumber)
		}

		shards = append(shards, &types.StoredRecord{
			RecordID: recID,
			IsSplit:  true,
			SplitMetadata: &types.SplitMetadata{
				OriginalRecordID: recordID,
				TotalParts:       totalParts,
				PartNumber:       partNumber,
				Strategy:         types.ContentLevel,
				SplitTimestamp:   now,
				OriginalSize:     originalSize,
				PartSize:         len(chunk),
				Checksum:         sizer.Checksum(chunk),
			},
			ContentSplitData: &types.ContentSplitData{ChunkData: chunk, Encoding: "base64"},
		})
	}
	return shards, nil
}

// chunkMessages greedily packs messages into size-bounded chunks: a
// message is added to the current chunk unless doing so would push
// it over maxChunkSize, in which case the current chunk is sealed and
// a new one started. A single oversized message gets its own chunk.
func chunkMessages(entries []any, maxChunkSize int) [][]any {
	if len(entries) == 0 {
		return nil
	}
	var chunks [][]any
	var current []any
	currentBytes := 0

	for _, e := range entries {
		b, err := codec.EncodeMessages([]any{e})
		size := len(b)
		if err != nil {
			size = 0
		}
		if len(current) > 0 && currentBytes+size > maxChunkSize {
			chunks = append(chunks, current)
			current = nil
			currentBytes = 0
		}
		current = append(current, e)
		currentBytes += size
	}
	if len(current) > 0 {
		chunks = append(chunks, current)
	}
	return chunks
}

func auxKey(prefix, originalRecordID string, partNumber int) string {
	return fmt.Sprintf("%s#%s#part#%04d", prefix, originalRecordID, partNumber)
}

func ceilDivInt(a, b int) int {
	if b <= 0 {
		return 0
	}
	return (a + b - 1) / b
}
