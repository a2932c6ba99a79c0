// Package badger implements a BadgerDB-backed catalog for hosts that need
// the dataset registry to survive restarts.
//
// Key namespace: dataset records live under the "d:" prefix, one entry per
// dataset, keyed by the dotted namespace key:
//
//	d:<source>.<folder>....<name>  ->  DatasetRecord (JSON)
//
// The dotted form makes direct children of a key enumerable with a single
// prefix scan, which is all List needs.
package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/skonto/filesource/pkg/catalog"
)

const datasetPrefix = "d:"

// BadgerCatalog implements catalog.Catalog on BadgerDB.
type BadgerCatalog struct {
	db *badger.DB
}

// Config configures the catalog.
type Config struct {
	// DBPath is the directory holding the Badger database.
	DBPath string

	// InMemory runs Badger without disk persistence. Used in tests.
	InMemory bool
}

// New opens (or creates) the catalog database.
func New(ctx context.Context, cfg Config) (*BadgerCatalog, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !cfg.InMemory && cfg.DBPath == "" {
		return nil, fmt.Errorf("badger catalog: db path is required")
	}

	opts := badger.DefaultOptions(cfg.DBPath)
	opts = opts.WithLoggingLevel(badger.WARNING)
	if cfg.InMemory {
		opts = opts.WithInMemory(true).WithDir("").WithValueDir("")
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog database: %w", err)
	}
	return &BadgerCatalog{db: db}, nil
}

// Close releases the database.
func (c *BadgerCatalog) Close() error {
	return c.db.Close()
}

func datasetKey(key catalog.Key) []byte {
	return []byte(datasetPrefix + key.String())
}

func (c *BadgerCatalog) DatasetExists(ctx context.Context, key catalog.Key) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	exists := false
	err := c.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(datasetKey(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		exists = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to probe dataset %s: %w", key, err)
	}
	return exists, nil
}

func (c *BadgerCatalog) List(ctx context.Context, key catalog.Key) ([]catalog.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prefix := datasetPrefix + key.String() + "."
	seen := make(map[string]catalog.EntryType)

	err := c.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{
			Prefix:         []byte(prefix),
			PrefetchValues: false,
		})
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			rest := string(it.Item().Key())[len(prefix):]
			if idx := strings.IndexByte(rest, '.'); idx >= 0 {
				seen[rest[:idx]] = catalog.EntryContainer
			} else {
				seen[rest] = catalog.EntryDataset
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", key, err)
	}

	entries := make([]catalog.Entry, 0, len(seen))
	for name, typ := range seen {
		child := append(append(catalog.Key{}, key...), name)
		entries = append(entries, catalog.Entry{Key: child, Type: typ})
	}
	return entries, nil
}

func (c *BadgerCatalog) SaveDataset(ctx context.Context, record *catalog.DatasetRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(record.Key) == 0 {
		return fmt.Errorf("cannot save dataset with empty key")
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}

	value, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to serialize dataset %s: %w", record.Key, err)
	}

	err = c.db.Update(func(txn *badger.Txn) error {
		return txn.Set(datasetKey(record.Key), value)
	})
	if err != nil {
		return fmt.Errorf("failed to save dataset %s: %w", record.Key, err)
	}
	return nil
}

func (c *BadgerCatalog) GetDataset(ctx context.Context, key catalog.Key) (*catalog.DatasetRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var record catalog.DatasetRecord
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(datasetKey(key))
		if err != nil {
			return err
		}
		return item.Value(func(value []byte) error {
			return json.Unmarshal(value, &record)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("dataset %s: %w", key, catalog.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load dataset %s: %w", key, err)
	}
	return &record, nil
}

func (c *BadgerCatalog) DeleteDataset(ctx context.Context, key catalog.Key) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := c.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(datasetKey(key))
	})
	if err != nil {
		return fmt.Errorf("failed to delete dataset %s: %w", key, err)
	}
	return nil
}
