package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies why a dependency call failed.
type ErrorKind int

const (
	// KindConnectionUnavailable: no handle could be leased (pool exhausted or
	// dial failed). Nothing was sent and nothing needs evicting.
	KindConnectionUnavailable ErrorKind = iota + 1
	// KindRemoteCallFailure: transport error or non-success response after a
	// handle was leased. The handle has been evicted.
	KindRemoteCallFailure
	// KindBackendFailure: a cache or durable-store operation failed.
	KindBackendFailure
)

// String returns the snake_case name of the kind.
func (k ErrorKind) String() string {
	switch k {
	case KindConnectionUnavailable:
		return "connection_unavailable"
	case KindRemoteCallFailure:
		return "remote_call_failure"
	case KindBackendFailure:
		return "backend_failure"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is matching against a DependencyError's kind.
var (
	ErrConnectionUnavailable = errors.New("connection unavailable")
	ErrRemoteCallFailure     = errors.New("remote call failure")
	ErrBackendFailure        = errors.New("backend failure")
)

func (k ErrorKind) sentinel() error {
	switch k {
	case KindConnectionUnavailable:
		return ErrConnectionUnavailable
	case KindRemoteCallFailure:
		return ErrRemoteCallFailure
	case KindBackendFailure:
		return ErrBackendFailure
	}
	return nil
}

// DependencyError reports which dependency failed, during which operation,
// and how. It is the only failure shape returned by the core operations.
type DependencyError struct {
	Kind       ErrorKind
	Dependency string // e.g. "text-service", "redis", "feed-log"
	Op         string // e.g. "/ComposeText", "ZADD", "prepend"
	Err        error
}

func (e *DependencyError) Error() string {
	msg := fmt.Sprintf("%s: %s %s", e.Kind, e.Dependency, e.Op)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *DependencyError) Unwrap() error { return e.Err }

// Is matches the kind sentinel, so errors.Is(err, ErrRemoteCallFailure)
// holds for any wrapped remote failure.
func (e *DependencyError) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// NewDependencyError builds a DependencyError.
func NewDependencyError(kind ErrorKind, dependency, op string, err error) *DependencyError {
	return &DependencyError{Kind: kind, Dependency: dependency, Op: op, Err: err}
}

// Backend wraps err as a BackendFailure of dependency/op. A nil err stays nil.
func Backend(dependency, op string, err error) error {
	if err == nil {
		return nil
	}
	var de *DependencyError
	if errors.As(err, &de) {
		return err
	}
	return NewDependencyError(KindBackendFailure, dependency, op, err)
}

// KindOf returns the kind of the first DependencyError in err's chain, or 0.
func KindOf(err error) ErrorKind {
	var de *DependencyError
	if errors.As(err, &de) {
		return de.Kind
	}
	return 0
}
