// Package progress carries run and per-bookmark outcome events from the
// orchestrator to pluggable sinks. The hub batches events on a background
// goroutine so emitting never blocks the processing loop.
package progress
