// Package sinks implements concrete progress consumers such as Prometheus,
// the Postgres run audit, and structured logging. Each sink satisfies the
// progress.Sink interface.
package sinks
