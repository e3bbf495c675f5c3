/*
Package types defines the data model shared across the checkpoint
splitting engine: the core/checkpointstore facade, the sizer, the
splitter/reassembler, and the storage adapters.

# Logical vs. stored records

A logical record is the (Checkpoint, Metadata) pair a caller works
with, identified by (ThreadID, RecordID). A stored record is one row
persisted at the RecordStore port — either the whole logical record
(IsSplit=false) or one shard of it (IsSplit=true, SplitMetadata set).

	Logical record                  Stored record(s)
	┌─────────────────┐             ┌───────────────────────┐
	│ Checkpoint       │  unsharded │ StoredRecord           │
	│ Metadata         │ ─────────► │  IsSplit=false          │
	└─────────────────┘             └───────────────────────┘

	┌─────────────────┐             ┌───────────────────────┐
	│ Checkpoint       │  sharded   │ primary (part 0 or 1)  │
	│ Metadata         │ ─────────► ├───────────────────────┤
	└─────────────────┘             │ split#R#part#0001       │
	                                 │ split#R#part#0002       │
	                                 │ ...                     │
	                                 └───────────────────────┘

Checkpoint.Channels is a slice, not a map, because channel order is
significant (the data model requires the same channel insertion order
to survive a write/read round trip) and Go map iteration order is not
stable.
*/
package types
