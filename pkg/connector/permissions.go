package connector

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/skonto/filesource/internal/logger"
	"github.com/skonto/filesource/pkg/catalog"
	"github.com/skonto/filesource/pkg/format"
	"github.com/skonto/filesource/pkg/fs"
)

const (
	// accessProbeBatchSize is the number of paths one unit of concurrent
	// work probes sequentially.
	accessProbeBatchSize = 10

	// accessProbeParallelism bounds the worker pool running batches.
	accessProbeParallelism = 16
)

// accessProbe is one pending path check.
type accessProbe struct {
	path string
	mode fs.AccessMode
}

// VerifyAccess checks that identity can read every path a dataset spans:
// each cached directory from the update key and each split's file. Paths
// are checked in fixed-size batches running on a bounded worker pool, and
// the verdict is the AND of all probes — one denial anywhere denies the
// dataset. A genuine I/O failure during probing fails the call rather than
// guessing either way.
//
// With impersonation disabled there is no per-identity filesystem to probe
// against and the call grants access.
func (c *Connector) VerifyAccess(ctx context.Context, record *catalog.DatasetRecord, identity string) (bool, error) {
	if !c.cfg.ImpersonationEnabled {
		return true, nil
	}
	start := time.Now()

	fsys, err := c.fsFor(ctx, identity)
	if err != nil {
		return false, err
	}

	probes, err := c.collectProbes(fsys, record)
	if err != nil {
		return false, err
	}
	if len(probes) == 0 {
		c.metrics.AccessVerified(true, 0, time.Since(start))
		return true, nil
	}

	var (
		wg       sync.WaitGroup
		sem      = make(chan struct{}, accessProbeParallelism)
		mu       sync.Mutex
		denied   bool
		probeErr error
	)

	for start := 0; start < len(probes); start += accessProbeBatchSize {
		end := start + accessProbeBatchSize
		if end > len(probes) {
			end = len(probes)
		}
		batch := probes[start:end]

		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			ok, err := c.probeBatch(ctx, fsys, batch)

			mu.Lock()
			defer mu.Unlock()
			if err != nil && probeErr == nil {
				probeErr = err
			}
			if !ok {
				denied = true
			}
		}()
	}
	wg.Wait()

	if probeErr != nil {
		return false, fmt.Errorf("failed to verify access to %s as %q: %w", record.Key, identity, probeErr)
	}
	c.metrics.AccessVerified(!denied, len(probes), time.Since(start))
	if denied {
		logger.Debug("access to %s denied for identity %q", record.Key, identity)
		return false, nil
	}
	return true, nil
}

// collectProbes gathers the two path streams: cached directories want
// read+execute (read only on backends without execute bits), split files
// want read.
func (c *Connector) collectProbes(fsys fs.FileSystem, record *catalog.DatasetRecord) ([]accessProbe, error) {
	dirMode := fs.AccessReadExecute
	if !fsys.Capabilities().SupportsExecuteBit {
		dirMode = fs.AccessRead
	}

	key, err := DecodeUpdateKey(record.UpdateKey)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", record.Key, err)
	}

	probes := make([]accessProbe, 0, len(key.Entries)+len(record.Splits))
	for _, entry := range key.Entries {
		probes = append(probes, accessProbe{path: entry.Path, mode: dirMode})
	}
	for _, split := range record.Splits {
		p, err := format.SplitPath(split)
		if err != nil {
			return nil, fmt.Errorf("dataset %s: %w", record.Key, err)
		}
		probes = append(probes, accessProbe{path: p, mode: fs.AccessRead})
	}
	return probes, nil
}

// probeBatch checks its paths sequentially, stopping at the first denial.
// It reports (false, nil) for a denial and a non-nil error only for
// genuine I/O failures.
func (c *Connector) probeBatch(ctx context.Context, fsys fs.FileSystem, batch []accessProbe) (bool, error) {
	for _, probe := range batch {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return false, err
			}
		}
		if err := fsys.Access(ctx, probe.path, probe.mode); err != nil {
			if errors.Is(err, fs.ErrAccessDenied) {
				return false, nil
			}
			return false, err
		}
	}
	return true, nil
}
