package domain

import (
	"errors"
	"fmt"
)

// FetchError reports a transport failure or non-success HTTP status from an
// external source.
type FetchError struct {
	Source     string
	URL        string
	StatusCode int // 0 when the request never got a response
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s %s: status %d", e.Source, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s %s: %v", e.Source, e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ParseError reports a payload that could not be decoded or lacked expected keys.
type ParseError struct {
	Source string
	Detail string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse %s: %s: %v", e.Source, e.Detail, e.Err)
	}
	return fmt.Sprintf("parse %s: %s", e.Source, e.Detail)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Persistence operations.
const (
	OpConnect = "connect"
	OpWrite   = "write"
)

// PersistenceError reports a store that is unreachable or rejected a row.
type PersistenceError struct {
	Op   string // OpConnect or OpWrite
	City string // set for OpWrite
	Err  error
}

func (e *PersistenceError) Error() string {
	if e.City != "" {
		return fmt.Sprintf("persist %s %q: %v", e.Op, e.City, e.Err)
	}
	return fmt.Sprintf("persist %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Connection reports whether the failure happened before any row was attempted.
func (e *PersistenceError) Connection() bool { return e.Op == OpConnect }

// SourceStatus classifies the outcome of fetching one source.
type SourceStatus string

const (
	SourceOK          SourceStatus = "ok"
	SourceEmpty       SourceStatus = "empty"
	SourcePartial     SourceStatus = "partial"
	SourceUnreachable SourceStatus = "unreachable"
	SourceMalformed   SourceStatus = "malformed"
	SourceFailed      SourceStatus = "failed"
)

// ClassifySource distinguishes an unreachable source from one that returned
// zero rows or a malformed payload. records is the number of rows the source
// produced alongside err.
func ClassifySource(records int, err error) SourceStatus {
	if err == nil {
		if records == 0 {
			return SourceEmpty
		}
		return SourceOK
	}
	if records > 0 {
		return SourcePartial
	}
	var fetchErr *FetchError
	if errors.As(err, &fetchErr) {
		return SourceUnreachable
	}
	var parseErr *ParseError
	if errors.As(err, &parseErr) {
		return SourceMalformed
	}
	return SourceFailed
}

// ErrorKind returns a short metric label for err: fetch, parse, persistence, or other.
func ErrorKind(err error) string {
	var fetchErr *FetchError
	var parseErr *ParseError
	var persistErr *PersistenceError
	switch {
	case errors.As(err, &fetchErr):
		return "fetch"
	case errors.As(err, &parseErr):
		return "parse"
	case errors.As(err, &persistErr):
		return "persistence"
	default:
		return "other"
	}
}
