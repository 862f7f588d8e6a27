// Package errs defines the error taxonomy shared across the checkpoint,
// planning and execution packages. Each sentinel corresponds to one of the
// concept tags used throughout the design: errors are wrapped with
// fmt.Errorf("...: %w", sentinel) so callers can branch with errors.Is.
package errs

import "errors"

var (
	// ErrInvalidConfiguration covers unknown pattern variables, unbalanced
	// braces, an empty destination pattern, source==destination, destination
	// nested inside source, a duplicates-format missing {number}, or
	// min-date after max-date. Surfaced before any I/O.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrUnsafePath covers a traversal segment, a destination outside the
	// root, or an ancestor reparse point.
	ErrUnsafePath = errors.New("unsafe path")

	// ErrIO covers open/read/write/rename/unlink/fsync failures.
	ErrIO = errors.New("io error")

	// ErrCheckpointCorrupt covers a bad magic, a version newer than this
	// reader understands, or a header shorter than the fixed layout.
	ErrCheckpointCorrupt = errors.New("checkpoint corrupt")

	// ErrCheckpointIncompatible covers a stored checkpoint whose hashes or
	// source/destination strings no longer match the current configuration.
	ErrCheckpointIncompatible = errors.New("checkpoint incompatible")

	// ErrCancelled is cooperative cancellation, never a failure of a
	// particular file.
	ErrCancelled = errors.New("cancelled")

	// ErrClosed is returned by a CheckpointWriter once disposal has begun.
	ErrClosed = errors.New("checkpoint writer closed")
)
