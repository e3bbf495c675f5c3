// Package sizer analyzes a checkpoint/metadata pair's serialized
// footprint and decides whether a write must be sharded. It performs
// no I/O: every function here is a pure transformation over the
// bytes the canonical codec produces.
package sizer

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"

	"github.com/cuemby/checksplit/pkg/codec"
	"github.com/cuemby/checksplit/pkg/config"
	"github.com/cuemby/checksplit/pkg/types"
)

// base64OverheadFactor approximates the transport-encoded size a
// Base64-wrapping KV store would charge against the item limit.
const base64OverheadFactor = 1.33

// storeOverheadBytes is a conservative, fixed allowance for
// per-record store metadata (keys, index entries, version markers).
const storeOverheadBytes = 1024

// Breakdown is the per-component contribution to totalSize.
type Breakdown struct {
	Checkpoint int
	Metadata   int
	Overhead   int
}

// LargestChannel describes the message-bearing channel with the
// largest serialized footprint, if any exists.
type LargestChannel struct {
	Name          string
	MessageCount  int
	EstimatedSize int
}

// Analysis is the verdict Analyze returns.
type Analysis struct {
	TotalSize        int
	ExceedsThreshold bool
	Breakdown        Breakdown
	LargestComponent string // "checkpoint" or "metadata"
	EstimatedParts   int
	LargestChannel   *LargestChannel // nil if no message-bearing channel exists
}

// Analyze measures the serialized footprint of (checkpoint, metadata)
// and reports whether it exceeds cfg.MaxSizeThreshold.
func Analyze(cp *types.Checkpoint, md types.Metadata, cfg config.SplitConfig) (Analysis, error) {
	ckBytes, err := codec.EncodeCheckpoint(cp)
	if err != nil {
		return Analysis{}, err
	}
	mdBytes, err := codec.EncodeMetadata(md)
	if err != nil {
		return Analysis{}, err
	}

	ckSize := inflate(len(ckBytes))
	mdSize := inflate(len(mdBytes))
	total := ckSize + mdSize + storeOverheadBytes

	largestComponent := "checkpoint"
	if mdSize > ckSize {
		largestComponent = "metadata"
	}

	largest, messageParts, err := messageChannelStats(cp, cfg.MaxChunkSize)
	if err != nil {
		return Analysis{}, err
	}

	a := Analysis{
		TotalSize:        total,
		ExceedsThreshold: total > cfg.MaxSizeThreshold,
		Breakdown:        Breakdown{Checkpoint: ckSize, Metadata: mdSize, Overhead: storeOverheadBytes},
		LargestComponent: largestComponent,
		LargestChannel:   largest,
	}
	a.EstimatedParts = estimatedParts(total, messageParts, cfg)
	return a, nil
}

func inflate(n int) int {
	return int(math.Ceil(float64(n) * base64OverheadFactor))
}

// messageChannelStats walks every message-bearing channel once,
// returning the single largest one (for Analysis.LargestChannel) and
// the MESSAGE_LEVEL part count summed across ALL of them — per spec
// §4.1, estimatedParts is 1 + Σ_channels ceil(channelSize /
// maxChunkSize), not just the largest channel's contribution.
func messageChannelStats(cp *types.Checkpoint, maxChunkSize int) (*LargestChannel, int, error) {
	var best *LargestChannel
	var partsSum int
	for _, ch := range cp.Channels {
		if ch.Value.Messages == nil {
			continue
		}
		b, err := codec.EncodeMessages(ch.Value.Messages.Entries)
		if err != nil {
			return nil, 0, err
		}
		size := len(b)
		if best == nil || size > best.EstimatedSize {
			best = &LargestChannel{
				Name:          ch.Name,
				MessageCount:  len(ch.Value.Messages.Entries),
				EstimatedSize: size,
			}
		}
		if maxChunkSize > 0 {
			partsSum += ceilDiv(size, maxChunkSize)
		}
	}
	return best, partsSum, nil
}

func estimatedParts(totalSize int, messageParts int, cfg config.SplitConfig) int {
	if cfg.MaxChunkSize <= 0 {
		return 1
	}
	switch cfg.Strategy {
	case types.ContentLevel:
		return ceilDiv(totalSize, cfg.MaxChunkSize)
	default: // MESSAGE_LEVEL: the primary plus every channel's own chunks
		return 1 + messageParts
	}
}

func ceilDiv(a, b int) int {
	if b <= 0 {
		return a
	}
	return int(math.Ceil(float64(a) / float64(b)))
}

// CanSplit reports whether checkpoint can be split with strategy.
// CONTENT_LEVEL can always split; MESSAGE_LEVEL requires at least one
// non-empty message-bearing channel whose first few entries
// round-trip through the canonical codec.
func CanSplit(cp *types.Checkpoint, strategy types.Strategy) (ok bool, reason string) {
	if strategy == types.ContentLevel {
		return true, ""
	}

	found := false
	for _, ch := range cp.Channels {
		if ch.Value.Messages == nil || len(ch.Value.Messages.Entries) == 0 {
			continue
		}
		found = true
		n := len(ch.Value.Messages.Entries)
		sample := n
		if sample > 5 {
			sample = 5
		}
		for i := 0; i < sample; i++ {
			if err := codec.SampleRoundTrip(ch.Value.Messages.Entries[i]); err != nil {
				return false, fmt.Sprintf("Message %d in channel %s is not serializable", i, ch.Name)
			}
		}
	}
	if !found {
		return false, "No messages found to split"
	}
	return true, ""
}

// Checksum returns the first 16 hex characters (64 bits) of the
// SHA-256 digest of b.
func Checksum(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])[:16]
}
