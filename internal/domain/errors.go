package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies task failures so the worker can pick a recovery.
type ErrorKind int

const (
	// KindTransientExternal covers network and API errors from the source or mirror.
	// The task stays queued and is retried on a later tick.
	KindTransientExternal ErrorKind = iota
	// KindPersistence means the store was unavailable. Same recovery as transient;
	// no in-memory state is advanced.
	KindPersistence
	// KindDataInconsistency is a structural mismatch that retrying cannot fix.
	// The task is logged and dropped.
	KindDataInconsistency
)

// String returns a human-readable name for the error kind.
func (k ErrorKind) String() string {
	switch k {
	case KindTransientExternal:
		return "transient_external"
	case KindPersistence:
		return "persistence"
	case KindDataInconsistency:
		return "data_inconsistency"
	default:
		return "unknown"
	}
}

// TaskError is an error tagged with its kind and the failing operation.
type TaskError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *TaskError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *TaskError) Unwrap() error {
	return e.Err
}

// Transient wraps err as a transient external failure.
func Transient(op string, err error) error {
	return &TaskError{Kind: KindTransientExternal, Op: op, Err: err}
}

// Persistence wraps err as a store failure.
func Persistence(op string, err error) error {
	return &TaskError{Kind: KindPersistence, Op: op, Err: err}
}

// Inconsistent reports a structural mismatch.
func Inconsistent(op string, format string, args ...interface{}) error {
	return &TaskError{Kind: KindDataInconsistency, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of err. Unclassified errors are treated as transient,
// which keeps the task queued rather than losing it.
func KindOf(err error) ErrorKind {
	var te *TaskError
	if errors.As(err, &te) {
		return te.Kind
	}
	return KindTransientExternal
}
