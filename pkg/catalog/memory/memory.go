// Package memory implements an in-memory catalog. Ephemeral: suited to
// tests and to connectors whose host keeps the durable registry elsewhere.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/skonto/filesource/pkg/catalog"
)

// MemoryCatalog stores dataset records in a map keyed by the dotted form of
// the namespace key.
type MemoryCatalog struct {
	mu       sync.RWMutex
	datasets map[string]*catalog.DatasetRecord
}

// New returns an empty in-memory catalog.
func New() *MemoryCatalog {
	return &MemoryCatalog{
		datasets: make(map[string]*catalog.DatasetRecord),
	}
}

func (c *MemoryCatalog) DatasetExists(ctx context.Context, key catalog.Key) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.datasets[key.String()]
	return ok, nil
}

func (c *MemoryCatalog) List(ctx context.Context, key catalog.Key) ([]catalog.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	prefix := key.String() + "."
	seen := make(map[string]catalog.EntryType)
	for stored := range c.datasets {
		if !strings.HasPrefix(stored, prefix) {
			continue
		}
		rest := stored[len(prefix):]
		if idx := strings.IndexByte(rest, '.'); idx >= 0 {
			// A deeper dataset implies an intermediate container.
			seen[rest[:idx]] = catalog.EntryContainer
		} else {
			seen[rest] = catalog.EntryDataset
		}
	}

	entries := make([]catalog.Entry, 0, len(seen))
	for name, typ := range seen {
		child := append(append(catalog.Key{}, key...), name)
		entries = append(entries, catalog.Entry{Key: child, Type: typ})
	}
	return entries, nil
}

func (c *MemoryCatalog) SaveDataset(ctx context.Context, record *catalog.DatasetRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(record.Key) == 0 {
		return fmt.Errorf("cannot save dataset with empty key")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	c.datasets[record.Key.String()] = record
	return nil
}

func (c *MemoryCatalog) GetDataset(ctx context.Context, key catalog.Key) (*catalog.DatasetRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	record, ok := c.datasets[key.String()]
	if !ok {
		return nil, fmt.Errorf("dataset %s: %w", key, catalog.ErrNotFound)
	}
	return record, nil
}

func (c *MemoryCatalog) DeleteDataset(ctx context.Context, key catalog.Key) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.datasets, key.String())
	return nil
}
