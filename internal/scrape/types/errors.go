package types

import (
	"fmt"

	"phdhunt-engine/internal/domain"
)

// FetchError is a page request that failed after its retries.
type FetchError struct {
	URL      string
	Status   int // 0 when no response arrived
	Attempts int
	Err      error
}

func (e *FetchError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("fetch %s: status %d after %d attempt(s)", e.URL, e.Status, e.Attempts)
	}
	return fmt.Sprintf("fetch %s: %v (after %d attempt(s))", e.URL, e.Err, e.Attempts)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Temporary reports whether a later run may succeed: network errors, 429 and 5xx.
func (e *FetchError) Temporary() bool {
	return e.Status == 0 || e.Status == 429 || e.Status >= 500
}

// ParseError is a single listing that could not be turned into a record.
type ParseError struct {
	Source domain.SourceName
	URL    string
	Reason string
}

func (e *ParseError) Error() string {
	if e.URL != "" {
		return fmt.Sprintf("%s: parse %s: %s", e.Source, e.URL, e.Reason)
	}
	return fmt.Sprintf("%s: parse: %s", e.Source, e.Reason)
}

// SourceExhaustedError marks a source whose every feed ended Failed.
type SourceExhaustedError struct {
	Source      domain.SourceName
	Feeds       int
	FailedPages int
}

func (e *SourceExhaustedError) Error() string {
	return fmt.Sprintf("%s: all %d feed(s) failed (%d failed page(s))", e.Source, e.Feeds, e.FailedPages)
}
