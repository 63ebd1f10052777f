package sources

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	// ErrorKindTransient covers network and timeout failures; the next
	// scheduled cycle retries, the current one does not.
	ErrorKindTransient ErrorKind = "transient"
	// ErrorKindParse covers malformed source payloads.
	ErrorKindParse ErrorKind = "parse"
	// ErrorKindSession covers an invalid or desynchronized channel session.
	ErrorKindSession ErrorKind = "session"
)

// FetchError distinguishes "fetch failed" from "fetched zero items" and
// carries the failure class the scheduler and handlers branch on.
type FetchError struct {
	Kind   ErrorKind
	Source string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s fetch error for %s: %v", e.Kind, e.Source, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

func NewTransientError(source string, err error) *FetchError {
	return &FetchError{Kind: ErrorKindTransient, Source: source, Err: err}
}

func NewParseError(source string, err error) *FetchError {
	return &FetchError{Kind: ErrorKindParse, Source: source, Err: err}
}

func NewSessionError(source string, err error) *FetchError {
	return &FetchError{Kind: ErrorKindSession, Source: source, Err: err}
}

// IsKind reports whether err is a *FetchError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind == kind
	}
	return false
}
