package connector

import (
	"context"
	"fmt"
	"time"

	"github.com/skonto/filesource/internal/logger"
	"github.com/skonto/filesource/pkg/catalog"
	"github.com/skonto/filesource/pkg/format"
)

// UpdateStatus is the freshness verdict for a stored dataset.
type UpdateStatus int

const (
	// StatusUnchanged means the cached metadata is still valid.
	StatusUnchanged UpdateStatus = iota

	// StatusChanged means storage moved on and discovery was re-run.
	StatusChanged

	// StatusDeleted means the dataset no longer exists in storage.
	StatusDeleted
)

func (s UpdateStatus) String() string {
	switch s {
	case StatusUnchanged:
		return "unchanged"
	case StatusChanged:
		return "changed"
	case StatusDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// CheckResult carries the freshness verdict and, on Changed, the
// replacement descriptor the caller installs in place of the prior one.
type CheckResult struct {
	Status     UpdateStatus
	Descriptor *DatasetDescriptor
}

// CheckFreshness compares a stored dataset record against live storage.
//
// Single-file datasets (empty update key) are tracked by existence alone:
// a missing file is Deleted, an existing one is always Changed and
// re-discovered — re-discovery is idempotent, so the spare refresh is
// cheaper than a wrong Unchanged.
//
// Multi-file datasets walk the cached entries in stored order, root first.
// A missing root is Deleted; any other discrepancy (missing subdirectory,
// missing mtime, newer mtime, probe failure) is Changed and stops the walk
// immediately.
func (c *Connector) CheckFreshness(ctx context.Context, prior *catalog.DatasetRecord) (CheckResult, error) {
	start := time.Now()
	result, err := c.checkFreshness(ctx, prior)
	if err == nil {
		c.metrics.FreshnessChecked(result.Status, time.Since(start))
	}
	return result, err
}

func (c *Connector) checkFreshness(ctx context.Context, prior *catalog.DatasetRecord) (CheckResult, error) {
	if prior == nil {
		return CheckResult{}, fmt.Errorf("prior dataset record is required")
	}

	fsys, err := c.fsFor(ctx, c.cfg.ProcessIdentity)
	if err != nil {
		return CheckResult{}, err
	}

	logical := LogicalPath(prior.Key)

	key, err := DecodeUpdateKey(prior.UpdateKey)
	if err != nil {
		return CheckResult{}, fmt.Errorf("dataset %s: %w", logical, err)
	}

	if key.IsEmpty() {
		p, err := c.resolver.Resolve(logical)
		if err != nil {
			return CheckResult{}, err
		}
		isFile, err := fsys.IsFile(ctx, p)
		if err != nil {
			logger.Warn("freshness probe of %s failed, forcing refresh: %v", logical, err)
			return c.refresh(ctx, prior)
		}
		if !isFile {
			// Gone, or something that is no longer a single file.
			return CheckResult{Status: StatusDeleted}, nil
		}
		return c.refresh(ctx, prior)
	}

	for i, entry := range key.Entries {
		st, err := fsys.StatusSafe(ctx, entry.Path)
		if err != nil {
			logger.Warn("freshness probe of %s failed, forcing refresh: %v", entry.Path, err)
			return c.refresh(ctx, prior)
		}
		if st == nil {
			if i == 0 {
				return CheckResult{Status: StatusDeleted}, nil
			}
			return c.refresh(ctx, prior)
		}
		if entry.ModTimeMillis == 0 {
			// The snapshot was taken without an mtime, so there is
			// nothing to compare against. Refresh.
			return c.refresh(ctx, prior)
		}
		if st.ModTime.IsZero() || st.ModTime.UnixMilli() > entry.ModTimeMillis {
			return c.refresh(ctx, prior)
		}
	}

	return CheckResult{Status: StatusUnchanged}, nil
}

// refresh re-runs discovery with the prior record's format configuration.
// Discovery failures propagate: a denial or storage outage here must not
// read as "the dataset is gone", or the caller would drop a live catalog
// entry. Only a clean "nothing discoverable" result is Deleted.
func (c *Connector) refresh(ctx context.Context, prior *catalog.DatasetRecord) (CheckResult, error) {
	explicit := &format.Config{Type: prior.Format, Options: prior.FormatOptions}
	descriptor, err := c.Discover(ctx, LogicalPath(prior.Key), explicit, c.cfg.ProcessIdentity, DiscoverOptions{})
	if err != nil {
		return CheckResult{}, err
	}
	if descriptor == nil {
		return CheckResult{Status: StatusDeleted}, nil
	}
	return CheckResult{Status: StatusChanged, Descriptor: descriptor}, nil
}
