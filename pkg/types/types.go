// Package types defines the data model shared by the sizer, splitter,
// storage adapter, and record store: the logical checkpoint record a
// caller stores, and the stored record shape persisted at the
// RecordStore port.
package types

import (
	"time"
)

// Strategy selects how an oversized record is sharded.
type Strategy string

const (
	MessageLevel Strategy = "MESSAGE_LEVEL"
	ContentLevel Strategy = "CONTENT_LEVEL"
)

// ChannelValue is the value held by one channel in a checkpoint. A
// channel is either message-bearing (Messages is non-nil) or an
// opaque blob (Opaque holds whatever the caller stored there).
type ChannelValue struct {
	Opaque   any
	Messages *MessageList
}

// MessageList is the ordered sequence of messages carried by a
// message-bearing channel.
type MessageList struct {
	Version string // channelVersion, caller-defined
	Entries []any  // each entry is an opaque serializable value
}

// ChannelEntry is one (name, value) pair in a checkpoint's channel
// map. Checkpoint stores these as a slice rather than a Go map so
// that insertion order — significant per the data model — survives
// without relying on map iteration order.
type ChannelEntry struct {
	Name  string
	Value ChannelValue
}

// Checkpoint is the semi-structured per-step agent state a caller
// persists: an ordered mapping from channel name to channel value.
type Checkpoint struct {
	Channels []ChannelEntry
}

// Channel looks up a channel by name, returning ok=false if absent.
func (c *Checkpoint) Channel(name string) (ChannelValue, bool) {
	for _, e := range c.Channels {
		if e.Name == name {
			return e.Value, true
		}
	}
	return ChannelValue{}, false
}

// Clone returns a deep-enough copy of the checkpoint: the channel
// slice and any MessageList are copied, so a caller mutating the
// original after a split cannot retroactively change what was
// persisted. Opaque channel values are not deep-copied — they are
// never mutated by this module.
func (c *Checkpoint) Clone() Checkpoint {
	out := Checkpoint{Channels: make([]ChannelEntry, len(c.Channels))}
	for i, e := range c.Channels {
		ne := ChannelEntry{Name: e.Name, Value: ChannelValue{Opaque: e.Value.Opaque}}
		if e.Value.Messages != nil {
			entries := make([]any, len(e.Value.Messages.Entries))
			copy(entries, e.Value.Messages.Entries)
			ne.Value.Messages = &MessageList{Version: e.Value.Messages.Version, Entries: entries}
		}
		out.Channels[i] = ne
	}
	return out
}

// Metadata is the small opaque mapping attached to a logical record.
type Metadata = any

// SplitMetadata is the sharding descriptor attached to every shard in
// a shard set.
type SplitMetadata struct {
	OriginalRecordID string
	TotalParts       int
	PartNumber       int
	Strategy         Strategy
	SplitTimestamp   time.Time
	OriginalSize     int
	PartSize         int
	Checksum         string
}

// MessageSplitData is the auxiliary payload carried by a
// MESSAGE_LEVEL auxiliary shard.
type MessageSplitData struct {
	ChannelName      string
	StartMessageIdx  int
	EndMessageIdx    int
	MessagesData     []byte // canonically serialized chunk of messages
	TotalMessages    int
	ChannelVersion   string
}

// ContentSplitData is the auxiliary payload carried by a
// CONTENT_LEVEL shard (including its primary).
type ContentSplitData struct {
	ChunkData []byte // a contiguous slice of the base64-encoded blob
	Encoding  string // always "base64"
}

// StoredRecord is the unit persisted at the RecordStore port: either
// a non-sharded logical record or one shard of a sharded one.
type StoredRecord struct {
	ThreadID string
	RecordID string

	Checkpoint *Checkpoint
	Metadata   Metadata

	IsSplit       bool
	SplitMetadata *SplitMetadata

	MessageSplitData *MessageSplitData
	ContentSplitData *ContentSplitData
}

// Tuple is the logical (checkpoint, metadata) pair returned to a
// caller by GetTuple and List.
type Tuple struct {
	Checkpoint Checkpoint
	Metadata   Metadata
}
