// Package store defines interfaces for persisting run audits. Implementations
// live in other packages; this package must not import database drivers.
package store
