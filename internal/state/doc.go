// Package state persists the agent's resume point, per-URL retry counters,
// permanent failures and backoff escalation in a single JSON file.
//
// Every save writes a temporary file in the target directory and renames it
// over the state file, so readers never observe a partial document.
package state
