/*
Package log provides structured logging for the checkpoint splitting
engine using zerolog.

A single package-level Logger is initialized once via Init and shared
across pkg/splitter, pkg/checkpointstore, and cmd/checkpointctl.
Context loggers attach record-, thread-, or strategy-scoped fields so a
call site doesn't have to repeat them on every log line:

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true, Output: os.Stdout})

	recLog := log.WithRecord(recordID)
	recLog.Info().Str("strategy", string(strategy)).Msg("split write started")

	log.WithThread(threadID).Warn().
		Int("attempt", attempt).
		Msg("shard write failed, retrying")

JSONOutput controls JSON vs. console formatting; both include a
timestamp. Debug level is chattier than production wants — reserve it
for diagnosing a specific split or reassembly failure, not for routine
operation.
*/
package log
