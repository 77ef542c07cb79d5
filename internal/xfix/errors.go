package xfix

import (
	"errors"
	"fmt"
)

// FetchKind classifies a fetch failure and drives the retry policy.
type FetchKind string

// Fetch failure kinds. The string values are persisted in the state file.
const (
	KindNetwork     FetchKind = "network"
	KindRateLimited FetchKind = "rate_limit"
	KindNotFound    FetchKind = "not_found"
	KindParse       FetchKind = "parse"
	// KindEnrichment marks a text-generation failure. It shares the per-URL
	// attempt counter with fetch failures.
	KindEnrichment FetchKind = "ollama"
)

// TriggersBackoff reports whether a failure of this kind escalates the
// global pacing delay.
func (k FetchKind) TriggersBackoff() bool {
	return k == KindNetwork || k == KindRateLimited
}

// Permanent reports whether the failure means the content is gone.
func (k FetchKind) Permanent() bool {
	return k == KindNotFound
}

// FetchError carries a classified failure from a fetch strategy.
type FetchError struct {
	Kind     FetchKind
	Strategy string
	Message  string
	Err      error
}

func (e *FetchError) Error() string {
	prefix := e.Message
	if e.Strategy != "" {
		prefix = e.Strategy + ": " + e.Message
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", prefix, e.Err)
	}
	return prefix
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// NewFetchError builds a FetchError.
func NewFetchError(kind FetchKind, strategy, message string, err error) *FetchError {
	return &FetchError{Kind: kind, Strategy: strategy, Message: message, Err: err}
}

// KindOf extracts the failure kind of err. Errors that are not FetchErrors
// are treated as network failures.
func KindOf(err error) FetchKind {
	if err == nil {
		return ""
	}
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindNetwork
}
