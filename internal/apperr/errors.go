// Package apperr defines the error taxonomy shared across Noteforge.
package apperr

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a note id does not exist in the store.
var ErrNotFound = errors.New("not found")

// StoreErrorKind classifies a backend failure.
type StoreErrorKind int

const (
	// IOFailure covers generic backend errors (disk, driver, corruption).
	IOFailure StoreErrorKind = iota
	// LockTimeout means the write lock could not be acquired in time.
	LockTimeout
	// ConstraintViolation means a schema constraint rejected the write.
	ConstraintViolation
)

func (k StoreErrorKind) String() string {
	switch k {
	case LockTimeout:
		return "lock timeout"
	case ConstraintViolation:
		return "constraint violation"
	default:
		return "io failure"
	}
}

// StoreError wraps a backend failure with its classification and the
// operation that produced it.
type StoreError struct {
	Kind StoreErrorKind
	Op   string
	Err  error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store: %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// IndexCorruptionError reports a note/index row-count mismatch that
// survived a rebuild. It is recoverable: callers should retry the rebuild.
type IndexCorruptionError struct {
	NoteCount  int64
	IndexCount int64
}

func (e *IndexCorruptionError) Error() string {
	return fmt.Sprintf("index corruption: %d notes but %d index rows after rebuild", e.NoteCount, e.IndexCount)
}

// SchemaVersionError aborts an import whose document carries an unknown
// format version. No store mutation happens after it is raised.
type SchemaVersionError struct {
	Found int
	Want  int
}

func (e *SchemaVersionError) Error() string {
	return fmt.Sprintf("unsupported document version %d (supported: %d)", e.Found, e.Want)
}

// MergeError records a single import entry that could not be merged.
// Non-fatal: the batch continues and the error lands in the import report.
type MergeError struct {
	ID     int64
	Reason string
}

func (e *MergeError) Error() string {
	return fmt.Sprintf("merge note %d: %s", e.ID, e.Reason)
}

// FlushError reports a failed autosave commit. Unless the note itself is
// gone, the coalescer retains the unsaved snapshot for retry; this error
// is a notification, not data loss.
type FlushError struct {
	NoteID int64
	Err    error
}

func (e *FlushError) Error() string {
	return fmt.Sprintf("autosave flush note %d: %v", e.NoteID, e.Err)
}

func (e *FlushError) Unwrap() error { return e.Err }
