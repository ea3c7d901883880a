package fetch

import (
	"errors"
	"fmt"
)

// Cause classifies why a fetch failed.
type Cause string

const (
	// CauseTimeout means the per-request deadline elapsed.
	CauseTimeout Cause = "timeout"
	// CauseStatus means the source answered with a non-2xx status.
	CauseStatus Cause = "status"
	// CauseConnection covers DNS, dial, TLS and body read failures.
	CauseConnection Cause = "connection"
	// CauseCancelled means the caller's context ended.
	CauseCancelled Cause = "cancelled"
	// CauseBadRequest means the request could not be built.
	CauseBadRequest Cause = "bad_request"
)

// FetchFailure is the only error type Fetch returns.
type FetchFailure struct {
	Cause  Cause
	URL    string
	Status int
	Err    error
}

func (f *FetchFailure) Error() string {
	switch {
	case f.Cause == CauseStatus:
		return fmt.Sprintf("fetch %s [%s]: HTTP %d", f.URL, f.Cause, f.Status)
	case f.Err != nil:
		return fmt.Sprintf("fetch %s [%s]: %v", f.URL, f.Cause, f.Err)
	default:
		return fmt.Sprintf("fetch %s [%s]", f.URL, f.Cause)
	}
}

func (f *FetchFailure) Unwrap() error {
	return f.Err
}

// CauseOf extracts the failure cause, or empty for foreign errors.
func CauseOf(err error) Cause {
	var ff *FetchFailure
	if errors.As(err, &ff) {
		return ff.Cause
	}
	return ""
}
