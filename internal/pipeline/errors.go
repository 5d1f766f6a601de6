package pipeline

import (
	"errors"
	"fmt"
)

// SearchFailure is returned when every search attempt failed.
type SearchFailure struct {
	Query    string
	Attempts int
	Err      error
}

func (e *SearchFailure) Error() string {
	return fmt.Sprintf("search for %q failed after %d attempts: %v", e.Query, e.Attempts, e.Err)
}

func (e *SearchFailure) Unwrap() error { return e.Err }

// IsSearchFailure reports whether err is a SearchFailure.
func IsSearchFailure(err error) bool {
	var sf *SearchFailure
	return errors.As(err, &sf)
}

// NoContentFailure is returned when no candidate page yielded readable content.
type NoContentFailure struct {
	Query      string
	Candidates int
}

func (e *NoContentFailure) Error() string {
	return fmt.Sprintf("no content found for %q (%d candidates)", e.Query, e.Candidates)
}

// IsNoContent reports whether err is a NoContentFailure.
func IsNoContent(err error) bool {
	var nc *NoContentFailure
	return errors.As(err, &nc)
}
