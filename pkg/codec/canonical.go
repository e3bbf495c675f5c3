// Package codec implements the canonical serialization used by the
// sizer and splitter. The same encoding is used on the write and read
// paths so that checksums computed over serialized substrings are
// reproducible byte-for-byte.
package codec

import (
	"encoding/json"
	"fmt"

	"github.com/cuemby/checksplit/pkg/errs"
	"github.com/cuemby/checksplit/pkg/types"
)

// wire mirrors types.Checkpoint but as a struct encoding/json can
// marshal deterministically: channel order survives because Channels
// is a slice, and map keys nested inside Opaque/Entries/Metadata are
// sorted by the standard library's map-key ordering.
type wireCheckpoint struct {
	Channels []wireChannel `json:"channels"`
}

type wireChannel struct {
	Name     string           `json:"name"`
	Opaque   any              `json:"opaque,omitempty"`
	Messages *wireMessageList `json:"messages,omitempty"`
}

type wireMessageList struct {
	Version string `json:"version,omitempty"`
	Entries []any  `json:"entries"`
}

type wireCombined struct {
	Checkpoint wireCheckpoint `json:"checkpoint"`
	Metadata   any            `json:"metadata"`
}

func toWire(c *types.Checkpoint) wireCheckpoint {
	w := wireCheckpoint{Channels: make([]wireChannel, len(c.Channels))}
	for i, e := range c.Channels {
		wc := wireChannel{Name: e.Name, Opaque: e.Value.Opaque}
		if e.Value.Messages != nil {
			wc.Messages = &wireMessageList{
				Version: e.Value.Messages.Version,
				Entries: e.Value.Messages.Entries,
			}
		}
		w.Channels[i] = wc
	}
	return w
}

func fromWire(w wireCheckpoint) types.Checkpoint {
	c := types.Checkpoint{Channels: make([]types.ChannelEntry, len(w.Channels))}
	for i, wc := range w.Channels {
		entry := types.ChannelEntry{Name: wc.Name, Value: types.ChannelValue{Opaque: wc.Opaque}}
		if wc.Messages != nil {
			entry.Value.Messages = &types.MessageList{
				Version: wc.Messages.Version,
				Entries: wc.Messages.Entries,
			}
		}
		c.Channels[i] = entry
	}
	return c
}

// EncodeCheckpoint canonically serializes a checkpoint alone.
func EncodeCheckpoint(c *types.Checkpoint) ([]byte, error) {
	if err := DetectCycle(c); err != nil {
		return nil, err
	}
	b, err := json.Marshal(toWire(c))
	if err != nil {
		return nil, &errs.SerializationError{Msg: "checkpoint", Err: err}
	}
	return b, nil
}

// DecodeCheckpoint is the inverse of EncodeCheckpoint.
func DecodeCheckpoint(b []byte) (types.Checkpoint, error) {
	var w wireCheckpoint
	if err := json.Unmarshal(b, &w); err != nil {
		return types.Checkpoint{}, &errs.SerializationError{Msg: "checkpoint", Err: err}
	}
	return fromWire(w), nil
}

// EncodeMetadata canonically serializes a metadata value.
func EncodeMetadata(m types.Metadata) ([]byte, error) {
	if err := DetectCycle(m); err != nil {
		return nil, err
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, &errs.SerializationError{Msg: "metadata", Err: err}
	}
	return b, nil
}

// DecodeMetadata is the inverse of EncodeMetadata.
func DecodeMetadata(b []byte) (types.Metadata, error) {
	var m any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, &errs.SerializationError{Msg: "metadata", Err: err}
	}
	return m, nil
}

// EncodeCombined canonically serializes {checkpoint, metadata} as the
// single structure CONTENT_LEVEL splitting Base64-encodes.
func EncodeCombined(c *types.Checkpoint, m types.Metadata) ([]byte, error) {
	if err := DetectCycle(c); err != nil {
		return nil, err
	}
	if err := DetectCycle(m); err != nil {
		return nil, err
	}
	b, err := json.Marshal(wireCombined{Checkpoint: toWire(c), Metadata: m})
	if err != nil {
		return nil, &errs.SerializationError{Msg: "combined checkpoint+metadata", Err: err}
	}
	return b, nil
}

// DecodeCombined is the inverse of EncodeCombined.
func DecodeCombined(b []byte) (types.Checkpoint, types.Metadata, error) {
	var w wireCombined
	if err := json.Unmarshal(b, &w); err != nil {
		return types.Checkpoint{}, nil, &errs.SerializationError{Msg: "combined checkpoint+metadata", Err: err}
	}
	return fromWire(w.Checkpoint), w.Metadata, nil
}

// EncodeMessages canonically serializes an ordered chunk of messages,
// the payload that becomes messageSplitData.messagesData.
func EncodeMessages(entries []any) ([]byte, error) {
	if err := DetectCycle(entries); err != nil {
		return nil, err
	}
	b, err := json.Marshal(entries)
	if err != nil {
		return nil, &errs.SerializationError{Msg: "message chunk", Err: err}
	}
	return b, nil
}

// DecodeMessages is the inverse of EncodeMessages.
func DecodeMessages(b []byte) ([]any, error) {
	var entries []any
	if err := json.Unmarshal(b, &entries); err != nil {
		return nil, &errs.SerializationError{Msg: "message chunk", Err: err}
	}
	return entries, nil
}

// SampleRoundTrip serializes and immediately deserializes v, used by
// Sizer.CanSplit to confirm a prefix of messages is actually
// serializable before committing to MESSAGE_LEVEL.
func SampleRoundTrip(v any) error {
	b, err := EncodeMessages([]any{v})
	if err != nil {
		return err
	}
	var out []any
	if err := json.Unmarshal(b, &out); err != nil {
		return &errs.SerializationError{Msg: "sample message", Err: err}
	}
	return nil
}

var errCycle = fmt.Errorf("cyclic structure")

// DetectCycle walks the dynamic map/slice shape produced by decoding
// JSON into interface{} (the common shape of opaque caller payloads)
// and reports a SerializationError if it finds a self-reference.
// encoding/json itself does not detect cycles — it recurses until the
// stack is exhausted — so this check runs before every Marshal call
// in this package.
func DetectCycle(v any) error {
	if err := walkCycle(v, nil); err != nil {
		return &errs.SerializationError{Msg: "cyclic structure", Err: err}
	}
	return nil
}

func walkCycle(v any, ancestors []any) error {
	switch t := v.(type) {
	case map[string]any:
		for _, a := range ancestors {
			if sameRef(a, t) {
				return errCycle
			}
		}
		next := append(ancestors, v)
		for _, child := range t {
			if err := walkCycle(child, next); err != nil {
				return err
			}
		}
	case []any:
		for _, a := range ancestors {
			if sameRef(a, t) {
				return errCycle
			}
		}
		next := append(ancestors, v)
		for _, child := range t {
			if err := walkCycle(child, next); err != nil {
				return err
			}
		}
	case *types.Checkpoint:
		if t == nil {
			return nil
		}
		for _, e := range t.Channels {
			if err := walkCycle(e.Value.Opaque, ancestors); err != nil {
				return err
			}
			if e.Value.Messages != nil {
				for _, m := range e.Value.Messages.Entries {
					if err := walkCycle(m, ancestors); err != nil {
						return err
					}
				}
			}
		}
	}
	return nil
}

// sameRef reports whether two map/slice values share the same
// underlying data pointer (the signal that a descends into itself).
func sameRef(a, b any) bool {
	switch av := a.(type) {
	case map[string]any:
		bv, ok := b.(map[string]any)
		return ok && samePointer(av, bv)
	case []any:
		bv, ok := b.([]any)
		return ok && samePointerSlice(av, bv)
	}
	return false
}
