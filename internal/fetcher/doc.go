// Package fetcher retrieves post content through an ordered chain of
// strategies. The chain stops at the first success, or at the first
// strategy that reports the post is gone.
package fetcher
