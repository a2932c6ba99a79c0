package connector

import (
	"fmt"
	"path"
	"strings"
)

// LogicalPath is a schema path as the query engine sees it: the source name
// first, then folder components, then the table name.
type LogicalPath []string

// String renders the path in dotted form for logs and error messages.
func (p LogicalPath) String() string {
	return strings.Join(p, ".")
}

// Name returns the last component.
func (p LogicalPath) Name() string {
	if len(p) == 0 {
		return ""
	}
	return p[len(p)-1]
}

// Resolver maps logical schema paths onto physical storage paths under a
// single configured root. It performs no I/O.
type Resolver struct {
	root string
}

// NewResolver builds a resolver for the given root path. The root must be
// absolute (slash-rooted); it is cleaned once here so every containment
// check compares against the same canonical form.
func NewResolver(root string) (*Resolver, error) {
	if root == "" {
		return nil, fmt.Errorf("source root path is required")
	}
	if !strings.HasPrefix(root, "/") {
		return nil, fmt.Errorf("source root path %q must be absolute", root)
	}
	return &Resolver{root: path.Clean(root)}, nil
}

// Root returns the configured root path.
func (r *Resolver) Root() string {
	return r.root
}

// Resolve maps a logical path to a physical one. The first component (the
// source name) is stripped, quoting on the remaining components is
// normalized away, and the result must stay under the root — a path that
// climbs out of it fails with SandboxViolationError.
func (r *Resolver) Resolve(logical LogicalPath) (string, error) {
	parts := make([]string, 0, len(logical))
	parts = append(parts, r.root)
	if len(logical) > 1 {
		for _, component := range logical[1:] {
			parts = append(parts, stripQuotes(component))
		}
	}
	return r.contain(path.Join(parts...))
}

// ResolveRelative resolves an already-relative path string against the root
// with the same containment check. Views use this for their metadata files.
func (r *Resolver) ResolveRelative(rel string) (string, error) {
	return r.contain(path.Join(r.root, rel))
}

func (r *Resolver) contain(resolved string) (string, error) {
	if resolved != r.root && !strings.HasPrefix(resolved, r.root+"/") {
		return "", &SandboxViolationError{Path: resolved, Root: r.root}
	}
	return resolved, nil
}

// stripQuotes removes one level of surrounding quoting from a path
// component. SQL identifiers arrive quoted with double quotes, backticks,
// or brackets depending on the dialect in front of the engine.
func stripQuotes(component string) string {
	if len(component) < 2 {
		return component
	}
	first, last := component[0], component[len(component)-1]
	switch {
	case first == '"' && last == '"',
		first == '`' && last == '`',
		first == '\'' && last == '\'':
		return component[1 : len(component)-1]
	case first == '[' && last == ']':
		return component[1 : len(component)-1]
	}
	return component
}
