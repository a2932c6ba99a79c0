package fs

import "errors"

// Sentinel errors shared by every backend. Implementations wrap these with
// path context:
//
//	return fmt.Errorf("stat %s: %w", path, fs.ErrNotFound)
//
// Callers check with errors.Is.
var (
	// ErrNotFound indicates the path does not exist.
	ErrNotFound = errors.New("path not found")

	// ErrAccessDenied indicates the identity lacks the requested
	// permission. This is a denial, not an I/O failure; callers usually
	// convert it to a boolean rather than propagating it.
	ErrAccessDenied = errors.New("access denied")

	// ErrExists indicates the target of an exclusive create or rename
	// already exists.
	ErrExists = errors.New("path already exists")

	// ErrNotDirectory indicates a directory operation was attempted on a
	// regular file.
	ErrNotDirectory = errors.New("not a directory")

	// ErrNotSupported indicates the backend cannot perform the operation.
	ErrNotSupported = errors.New("operation not supported")
)
