// Package clipjot talks to the remote bookmark service: long-poll sync,
// partial edits, and the rules for which bookmarks still need enrichment.
package clipjot
