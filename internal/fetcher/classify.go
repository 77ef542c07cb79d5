package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/JakeFAU/xfix/internal/xfix"
)

// ClassifyStatus maps a non-200 HTTP status to a failure kind.
func ClassifyStatus(code int) xfix.FetchKind {
	switch {
	case code == http.StatusNotFound:
		return xfix.KindNotFound
	case code == http.StatusTooManyRequests, code == http.StatusForbidden:
		return xfix.KindRateLimited
	default:
		return xfix.KindNetwork
	}
}

// StatusError builds the failure for an unexpected HTTP status.
func StatusError(strategy string, code int) *xfix.FetchError {
	kind := ClassifyStatus(code)
	var msg string
	switch kind {
	case xfix.KindNotFound:
		msg = fmt.Sprintf("post not found (%d)", code)
	case xfix.KindRateLimited:
		msg = fmt.Sprintf("rate limited (%d)", code)
	default:
		msg = fmt.Sprintf("unexpected status %d", code)
	}
	return xfix.NewFetchError(kind, strategy, msg, nil)
}

// TransportError wraps a transport or timeout failure as a network failure.
func TransportError(strategy string, err error) *xfix.FetchError {
	msg := "request failed"
	if errors.Is(err, context.DeadlineExceeded) {
		msg = "request timed out"
	}
	return xfix.NewFetchError(xfix.KindNetwork, strategy, msg, err)
}
