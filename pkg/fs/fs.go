// Package fs defines the abstract filesystem consumed by the connector.
//
// Every storage backend (local disk, S3, in-memory) implements the same
// FileSystem interface. The connector never touches a concrete backend
// directly; it obtains a per-identity FileSystem from a Factory so that
// impersonated calls never share state across identities.
package fs

import (
	"context"
	"io"
	"os"
	"time"
)

// FileStatus describes a single file or directory as reported by a backend.
type FileStatus struct {
	// Path is the full backend path of the entry, slash-separated.
	Path string

	// Size is the entry size in bytes (0 for directories on most backends).
	Size int64

	// ModTime is the last modification time. Backends that cannot report
	// modification times leave this zero; callers must treat a zero value
	// as "unknown", not as the epoch.
	ModTime time.Time

	// IsDir reports whether the entry is a directory.
	IsDir bool

	// Owner is the owning user, when the backend tracks one.
	Owner string
}

// AccessMode is a bitmask of permissions for Access probes.
type AccessMode uint8

const (
	AccessRead AccessMode = 1 << iota
	AccessWrite
	AccessExecute
)

// AccessReadExecute is the probe used for directories: list plus traverse.
const AccessReadExecute = AccessRead | AccessExecute

// Capabilities reports what a backend can express, so callers can degrade
// gracefully instead of misreading absent metadata.
type Capabilities struct {
	// SupportsModTimes is false when the backend cannot report reliable
	// modification times (object stores without per-prefix mtimes).
	SupportsModTimes bool

	// SupportsExecuteBit is false when the backend has no execute-bit
	// semantics; directory access probes then check read only.
	SupportsExecuteBit bool
}

// FileSystem is the storage interface consumed by the connector.
//
// All operations take a context and perform blocking I/O. Implementations
// must be safe for concurrent use by multiple goroutines.
type FileSystem interface {
	// List returns the children of path. With recursive set it returns the
	// whole subtree in depth-first order, parents before children.
	List(ctx context.Context, path string, recursive bool) ([]FileStatus, error)

	// Status returns the status of path, or ErrNotFound.
	Status(ctx context.Context, path string) (FileStatus, error)

	// StatusSafe is a non-throwing existence probe: it returns (nil, nil)
	// when the path does not exist and only reports genuine I/O failures.
	StatusSafe(ctx context.Context, path string) (*FileStatus, error)

	// Exists reports whether path exists.
	Exists(ctx context.Context, path string) (bool, error)

	// IsDirectory reports whether path exists and is a directory.
	IsDirectory(ctx context.Context, path string) (bool, error)

	// IsFile reports whether path exists and is a regular file.
	IsFile(ctx context.Context, path string) (bool, error)

	// Access verifies the caller holds the given permissions on path.
	// It returns ErrAccessDenied (possibly wrapped) on denial.
	Access(ctx context.Context, path string, mode AccessMode) error

	// Rename moves from to to within the same backend.
	Rename(ctx context.Context, from, to string) error

	// Delete removes path. Directories require recursive.
	Delete(ctx context.Context, path string, recursive bool) error

	// Create opens a writable stream at path with the given permission
	// bits, truncating any existing entry.
	Create(ctx context.Context, path string, perm os.FileMode) (io.WriteCloser, error)

	// Open opens path for reading, or returns ErrNotFound.
	Open(ctx context.Context, path string) (io.ReadCloser, error)

	// Capabilities reports backend capabilities.
	Capabilities() Capabilities
}

// Factory hands out per-identity filesystems. Implementations decide what
// impersonation means for their backend; a factory for a backend without
// identities may return the same instance for every caller.
type Factory interface {
	ForIdentity(ctx context.Context, identity string) (FileSystem, error)
}

// FactoryFunc adapts a function to the Factory interface.
type FactoryFunc func(ctx context.Context, identity string) (FileSystem, error)

func (f FactoryFunc) ForIdentity(ctx context.Context, identity string) (FileSystem, error) {
	return f(ctx, identity)
}
