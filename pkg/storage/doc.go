/*
Package storage implements the RecordStore port consumed by
pkg/splitter and pkg/checkpointstore.

MemStore is a process-local map-backed store, useful for tests and
any caller that doesn't need durability. BoltStore persists to a
single BoltDB file with one nested bucket per threadID, so a
queryByThread scan is a bucket ForEach rather than a full-database
scan.

Neither implementation imposes ordering across threads or does any
locking beyond what's needed for its own consistency — the port
contract assumes the caller linearizes writes to a given
(threadID, recordID) itself.
*/
package storage
