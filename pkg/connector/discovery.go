package connector

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/skonto/filesource/internal/logger"
	"github.com/skonto/filesource/pkg/catalog"
	"github.com/skonto/filesource/pkg/format"
	"github.com/skonto/filesource/pkg/fs"
)

// DiscoverOptions tune a discovery call.
type DiscoverOptions struct {
	// IgnoreAuthErrors makes authorization and storage failures during
	// discovery degrade to "no dataset" instead of propagating. Callers
	// scanning broad namespaces use it so one unreadable folder does not
	// poison the whole walk. Freshness refreshes never set it: there a
	// failure must not read as "the dataset vanished".
	IgnoreAuthErrors bool
}

// Discover resolves a logical path and decides whether a dataset lives
// there. It returns (nil, nil) when the path denotes nothing recognizable
// as a table: too few components, nothing at the physical path, an empty
// directory, or no matching format.
//
// An explicit format (from DDL options) bypasses matcher trial entirely.
func (c *Connector) Discover(ctx context.Context, logical LogicalPath, explicit *format.Config, identity string, opts DiscoverOptions) (*DatasetDescriptor, error) {
	start := time.Now()
	desc, err := c.discover(ctx, logical, explicit, identity, opts)
	if err != nil {
		c.metrics.DiscoveryFailed(failureReason(err))
		return nil, err
	}
	if desc != nil {
		c.metrics.DatasetDiscovered(desc.Format.Type, len(desc.Splits), time.Since(start))
	}
	return desc, nil
}

func (c *Connector) discover(ctx context.Context, logical LogicalPath, explicit *format.Config, identity string, opts DiscoverOptions) (*DatasetDescriptor, error) {
	if len(logical) < 2 {
		// Just the source name cannot denote a table.
		return nil, nil
	}

	fsys, err := c.fsFor(ctx, identity)
	if err != nil {
		return nil, err
	}

	p, err := c.resolver.Resolve(logical)
	if err != nil {
		// Sandbox violations are never suppressed.
		return nil, err
	}

	sel, err := fs.NewSelection(ctx, fsys, p)
	if err != nil {
		return nil, c.discoveryFailure(logical, identity, err, opts)
	}

	// The last component may itself be a dotted string encoding nested
	// folders (legacy clients address "a.b.c" as one table name). Retry
	// with those segments expanded into real path components.
	if sel == nil {
		expanded, expandedSel, err := c.expandDottedName(ctx, fsys, logical)
		if err != nil {
			return nil, c.discoveryFailure(logical, identity, err, opts)
		}
		if expandedSel == nil {
			return nil, nil
		}
		logical, sel = expanded, expandedSel
	}

	files := sel.MinusDirectories()
	if files.IsEmpty() {
		// The folder exists but holds nothing matchable.
		return nil, nil
	}

	updateKey := buildUpdateKey(sel)

	matcher, err := c.selectMatcher(ctx, fsys, files, explicit)
	if err != nil {
		return nil, err
	}
	if matcher == nil {
		return nil, nil
	}

	splits, err := matcher.Splits(ctx, files)
	if err != nil {
		return nil, c.discoveryFailure(logical, identity, err, opts)
	}

	return &DatasetDescriptor{
		Key:       catalog.Key(logical),
		Format:    matcher.Config(),
		UpdateKey: updateKey,
		Splits:    splits,
	}, nil
}

// expandDottedName re-resolves a path whose last component is a dotted
// multi-segment table name. It returns the expanded logical path and its
// selection, or a nil selection when the expansion does not resolve either.
func (c *Connector) expandDottedName(ctx context.Context, fsys fs.FileSystem, logical LogicalPath) (LogicalPath, *fs.Selection, error) {
	tail := stripQuotes(logical[len(logical)-1])
	if !strings.Contains(tail, ".") {
		return nil, nil, nil
	}

	expanded := append(append(LogicalPath{}, logical[:len(logical)-1]...), strings.Split(tail, ".")...)
	p, err := c.resolver.Resolve(expanded)
	if err != nil {
		return nil, nil, err
	}
	sel, err := fs.NewSelection(ctx, fsys, p)
	if err != nil {
		return nil, nil, err
	}
	return expanded, sel, nil
}

// buildUpdateKey records the freshness snapshot for a selection: the root
// first, then every subdirectory in discovery order. A single-file
// selection yields the empty key (existence-only tracking).
func buildUpdateKey(sel *fs.Selection) UpdateKey {
	if !sel.RootStatus.IsDir {
		return UpdateKey{}
	}
	entries := []CachedEntity{cachedEntityOf(sel.RootStatus)}
	for _, st := range sel.Directories() {
		entries = append(entries, cachedEntityOf(st))
	}
	return UpdateKey{Entries: entries}
}

func cachedEntityOf(st fs.FileStatus) CachedEntity {
	e := CachedEntity{Path: st.Path}
	if !st.ModTime.IsZero() {
		e.ModTimeMillis = st.ModTime.UnixMilli()
	}
	return e
}

// selectMatcher picks the format for a files-only selection: the explicit
// config when one was supplied, otherwise the first registered matcher
// whose predicate succeeds. A matcher whose probe fails with an I/O error
// is skipped, not fatal.
func (c *Connector) selectMatcher(ctx context.Context, fsys fs.FileSystem, files *fs.Selection, explicit *format.Config) (format.Matcher, error) {
	if explicit != nil {
		matcher, err := c.registry.ForConfig(*explicit)
		if err != nil {
			return nil, fmt.Errorf("explicit format for %s: %w", files.Root, err)
		}
		return matcher, nil
	}

	for _, matcher := range c.registry.Matchers() {
		matched, err := matcher.Matches(ctx, fsys, files)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			logger.Debug("format %q probe failed on %s, skipping: %v", matcher.Name(), files.Root, err)
			continue
		}
		if matched {
			return matcher, nil
		}
	}
	return nil, nil
}

// discoveryFailure applies the suppression policy: sandbox violations
// always propagate, denials become AuthorizationError unless suppressed,
// and other storage failures are logged and degrade to "not found" when
// suppressed.
func (c *Connector) discoveryFailure(logical LogicalPath, identity string, err error, opts DiscoverOptions) error {
	var sandbox *SandboxViolationError
	if errors.As(err, &sandbox) {
		return err
	}
	if opts.IgnoreAuthErrors {
		logger.Debug("discovery of %s as %q degraded to not found: %v", logical, identity, err)
		return nil
	}
	if errors.Is(err, fs.ErrAccessDenied) {
		return &AuthorizationError{Path: logical.String(), Identity: identity, Err: err}
	}
	return fmt.Errorf("failed to discover %s: %w", logical, err)
}

// failureReason classifies a discovery error for metrics labels.
func failureReason(err error) string {
	var sandbox *SandboxViolationError
	var auth *AuthorizationError
	switch {
	case errors.As(err, &sandbox):
		return "sandbox"
	case errors.As(err, &auth):
		return "authorization"
	default:
		return "io"
	}
}
