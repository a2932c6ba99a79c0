// Package catalog defines the namespace registry the connector reports
// into. The registry durably stores dataset descriptors (including the
// connector's update key, its only persisted artifact) and answers
// membership questions during listing.
package catalog

import (
	"context"
	"errors"
	"strings"
)

// ErrNotFound indicates the requested dataset is not registered.
var ErrNotFound = errors.New("dataset not found")

// Key is a logical namespace path: source name first, then folder
// components, then the dataset name.
type Key []string

// String renders the key in dotted form for storage and logs.
func (k Key) String() string {
	return strings.Join(k, ".")
}

// Parent returns the key without its last component, or nil for a root key.
func (k Key) Parent() Key {
	if len(k) <= 1 {
		return nil
	}
	return k[:len(k)-1]
}

// Name returns the last component.
func (k Key) Name() string {
	if len(k) == 0 {
		return ""
	}
	return k[len(k)-1]
}

// EntryType discriminates namespace children.
type EntryType int

const (
	// EntryDataset is a registered dataset (a table).
	EntryDataset EntryType = iota

	// EntryContainer is a folder that holds other entries.
	EntryContainer
)

// Entry is one child of a namespace key.
type Entry struct {
	Key  Key
	Type EntryType
}

// Split is a physical sub-range of a dataset. The property blob is opaque
// to the catalog; the format layer knows how to decode it.
type Split struct {
	// Size is the split length in bytes, used for planning.
	Size int64

	// ExtendedProperty is the format-specific attribute blob. It encodes
	// at least the split's physical path.
	ExtendedProperty []byte
}

// DatasetRecord is what the catalog persists for a discovered dataset.
type DatasetRecord struct {
	// ID is a stable random identifier assigned at first save.
	ID string `json:"id"`

	// Key is the dataset's namespace key.
	Key Key `json:"key"`

	// Format is the name of the format that matched the dataset.
	Format string `json:"format"`

	// FormatOptions are the format configuration options in effect.
	FormatOptions map[string]string `json:"format_options,omitempty"`

	// UpdateKey is the connector's serialized freshness snapshot. Empty
	// for single-file datasets, which are tracked by existence alone.
	UpdateKey []byte `json:"update_key,omitempty"`

	// Splits are the dataset's physical splits.
	Splits []Split `json:"splits,omitempty"`
}

// Catalog is the namespace registry interface consumed by the connector.
//
// Implementations must be safe for concurrent use.
type Catalog interface {
	// DatasetExists reports whether a dataset is registered at key.
	DatasetExists(ctx context.Context, key Key) (bool, error)

	// List returns the direct children of key, datasets and containers.
	List(ctx context.Context, key Key) ([]Entry, error)

	// SaveDataset inserts or replaces the record for record.Key.
	SaveDataset(ctx context.Context, record *DatasetRecord) error

	// GetDataset returns the record at key, or ErrNotFound.
	GetDataset(ctx context.Context, key Key) (*DatasetRecord, error)

	// DeleteDataset removes the record at key. Deleting an absent key is
	// not an error.
	DeleteDataset(ctx context.Context, key Key) error
}
