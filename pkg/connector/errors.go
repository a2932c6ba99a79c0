package connector

import (
	"errors"
	"fmt"
)

// ErrEphemeral indicates an operation that needs the connector's catalog
// identity was called on an instance created without one.
var ErrEphemeral = errors.New("connector is ephemeral and has no catalog identity")

// SandboxViolationError reports a resolved path that escapes the configured
// source root. It is never suppressed: a caller that triggers it supplied a
// hostile or corrupt logical path.
type SandboxViolationError struct {
	Path string
	Root string
}

func (e *SandboxViolationError) Error() string {
	return fmt.Sprintf("path %q is outside the source root %q", e.Path, e.Root)
}

// AuthorizationError reports an access denial during discovery, listing, or
// DDL under a specific identity.
type AuthorizationError struct {
	Path     string
	Identity string
	Err      error
}

func (e *AuthorizationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("identity %q is not authorized to access %q: %v", e.Identity, e.Path, e.Err)
	}
	return fmt.Sprintf("identity %q is not authorized to access %q", e.Identity, e.Path)
}

func (e *AuthorizationError) Unwrap() error { return e.Err }

// ValidationError reports a DDL target that is missing or unusable (for
// example a mixed-format directory passed to a drop).
type ValidationError struct {
	Path   string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("table %q: %s", e.Path, e.Reason)
}
