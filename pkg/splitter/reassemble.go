package splitter

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/cuemby/checksplit/pkg/codec"
	"github.com/cuemby/checksplit/pkg/errs"
	"github.com/cuemby/checksplit/pkg/log"
	"github.com/cuemby/checksplit/pkg/metrics"
	"github.com/cuemby/checksplit/pkg/sizer"
	"github.com/cuemby/checksplit/pkg/storage"
	"github.com/cuemby/checksplit/pkg/types"
)

// ReassembleOptions controls the read path.
type ReassembleOptions struct {
	ValidateChecksums bool
	Timeout           time.Duration
	EnableLogging     bool
}

// ReassemblyResult is the verdict of a reassembly attempt. A missing
// or non-split primary, invalid split metadata, missing parts, and
// checksum mismatches are reported here rather than as an error, so
// the storage adapter can decide how to present a degraded result
// (typically: getTuple treats it as absent, list skips the entry).
// Record store errors, an expired deadline (*errs.TimeoutError), and
// shard payloads that cannot be decoded are returned as errors.
type ReassemblyResult struct {
	Success            bool
	Checkpoint         types.Checkpoint
	Metadata           types.Metadata
	Warnings           []string
	ReassemblyTime     time.Duration
	PartsReassembled   int
	TotalExpectedParts int
}

func failure(warnings ...string) ReassemblyResult {
	return ReassemblyResult{Success: false, Warnings: warnings}
}

// Reassemble gathers a shard set under a deadline, verifies
// checksums, and reconstructs the original logical record. It
// assumes the caller already knows the primary is split — it does
// not decode non-sharded records itself.
func Reassemble(ctx context.Context, threadID, recordID string, store storage.RecordStore, splitRecordPrefix string, opts ReassembleOptions) (ReassemblyResult, error) {
	start := time.Now()
	timer := metrics.NewTimer()
	deadline := start.Add(opts.Timeout)

	primary, err := store.Get(ctx, threadID, recordID)
	if err != nil {
		return ReassemblyResult{}, &errs.StoreError{Op: "get", Err: err}
	}
	if primary == nil {
		return observe(failure("Record not found"), start, timer)
	}
	if !primary.IsSplit {
		return observe(failure("Record is not split"), start, timer)
	}
	sm := primary.SplitMetadata
	if sm == nil {
		return observe(failure("Reassembly failed: invalid split metadata"), start, timer)
	}

	parts := []*types.StoredRecord{primary}
	var missing int
	// MESSAGE_LEVEL auxiliaries are parts 1..N-1; CONTENT_LEVEL's primary
	// is part 1, so its auxiliaries are parts 2..N.
	first := 1
	if sm.Strategy == types.ContentLevel {
		first = 2
	}
	for n := first; n < first+sm.TotalParts-1; n++ {
		if time.Now().After(deadline) {
			return ReassemblyResult{}, &errs.TimeoutError{Op: "reassemble"}
		}
		key := auxKey(splitRecordPrefix, sm.OriginalRecordID, n)
		part, err := store.Get(ctx, threadID, key)
		if err != nil {
			return ReassemblyResult{}, &errs.StoreError{Op: "get", Err: err}
		}
		if part == nil {
			missing++
			continue
		}
		parts = append(parts, part)
	}

	var warnings []string
	if len(parts) < sm.TotalParts {
		metrics.PartsMissingTotal.Inc()
		warnings = append(warnings, fmt.Sprintf("Found %d/%d parts", len(parts), sm.TotalParts))
	}

	sort.Slice(parts, func(i, j int) bool {
		return parts[i].SplitMetadata.PartNumber < parts[j].SplitMetadata.PartNumber
	})

	var result ReassemblyResult
	switch sm.Strategy {
	case types.ContentLevel:
		result, err = reassembleContentLevel(parts, sm, opts)
	default:
		result, err = reassembleMessageLevel(parts, sm, opts)
	}
	if err != nil {
		return ReassemblyResult{}, err
	}
	result.Warnings = append(warnings, result.Warnings...)
	result.PartsReassembled = len(parts)
	result.TotalExpectedParts = sm.TotalParts

	if opts.EnableLogging {
		lg := log.WithRecord(recordID)
		if result.Success {
			lg.Debug().Int("parts", len(parts)).Msg("reassembly succeeded")
		} else {
			lg.Warn().Strs("warnings", result.Warnings).Msg("reassembly failed")
		}
	}

	return observe(result, start, timer)
}

func observe(r ReassemblyResult, start time.Time, timer *metrics.Timer) (ReassemblyResult, error) {
	r.ReassemblyTime = time.Since(start)
	outcome := "failure"
	if r.Success {
		outcome = "success"
	}
	timer.ObserveDurationVec(metrics.ReassemblyDuration, outcome)
	return r, nil
}

func reassembleMessageLevel(parts []*types.StoredRecord, sm *types.SplitMetadata, opts ReassembleOptions) (ReassemblyResult, error) {
	if len(parts) == 0 || parts[0].SplitMetadata.PartNumber != 0 || parts[0].Checkpoint == nil {
		return failure("Reassembly failed: primary shard missing"), nil
	}
	if len(parts) < sm.TotalParts {
		return failure("Reassembly failed: auxiliary shard missing"), nil
	}
	primary := parts[0]
	cp := primary.Checkpoint.Clone()

	type accum struct {
		version string
		entries []any
	}
	byChannel := make(map[string]*accum)
	var order []string

	for _, part := range parts[1:] {
		msd := part.MessageSplitData
		if msd == nil {
			continue
		}
		if opts.ValidateChecksums {
			if got := sizer.Checksum(msd.MessagesData); got != part.SplitMetadata.Checksum {
				metrics.ChecksumMismatchesTotal.Inc()
				cerr := &errs.ChecksumError{RecordID: sm.OriginalRecordID, PartNumber: part.SplitMetadata.PartNumber}
				return failure(cerr.Error()), nil
			}
		}
		entries, err := codec.DecodeMessages(msd.MessagesData)
		if err != nil {
			return ReassemblyResult{}, err
		}
		a, ok := byChannel[msd.ChannelName]
		if !ok {
			a = &accum{version: msd.ChannelVersion}
			byChannel[msd.ChannelName] = a
			order = append(order, msd.ChannelName)
		}
		a.entries = append(a.entries, entries...)
	}

	for _, name := range order {
		a := byChannel[name]
		for i, ch := range cp.Channels {
			if ch.Name == name {
				cp.Channels[i].Value.Messages = &types.MessageList{Version: a.version, Entries: a.entries}
			}
		}
	}

	return ReassemblyResult{Success: true, Checkpoint: cp, Metadata: primary.Metadata}, nil
}

func reassembleContentLevel(parts []*types.StoredRecord, sm *types.SplitMetadata, opts ReassembleOptions) (ReassemblyResult, error) {
	if len(parts) < sm.TotalParts {
		return failure(fmt.Sprintf("Found %d/%d parts", len(parts), sm.TotalParts)), nil
	}

	var encoded []byte
	for _, part := range parts {
		csd := part.ContentSplitData
		if csd == nil {
			return failure("Reassembly failed: missing content chunk"), nil
		}
		if opts.ValidateChecksums {
			if got := sizer.Checksum(csd.ChunkData); got != part.SplitMetadata.Checksum {
				metrics.ChecksumMismatchesTotal.Inc()
				cerr := &errs.ChecksumError{RecordID: sm.OriginalRecordID, PartNumber: part.SplitMetadata.PartNumber}
				return failure(cerr.Error()), nil
			}
		}
		encoded = append(encoded, csd.ChunkData...)
	}

	raw, err := base64Decode(string(encoded))
	if err != nil {
		return ReassemblyResult{}, &errs.SerializationError{Msg: "base64 decode during reassembly", Err: err}
	}
	cp, md, err := codec.DecodeCombined(raw)
	if err != nil {
		return ReassemblyResult{}, err
	}
	return ReassemblyResult{Success: true, Checkpoint: cp, Metadata: md}, nil
}
