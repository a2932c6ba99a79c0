// Package connector implements the filesystem data-source connector: it
// resolves logical table paths to physical storage, discovers datasets and
// their formats, tracks freshness through cached mtime snapshots, verifies
// per-identity access, and handles drop-table and view lifecycle.
package connector

import (
	"context"
	"fmt"
	"os"
	"path"

	"github.com/skonto/filesource/internal/logger"
	"github.com/skonto/filesource/internal/ratelimiter"
	"github.com/skonto/filesource/pkg/catalog"
	"github.com/skonto/filesource/pkg/format"
	"github.com/skonto/filesource/pkg/fs"
)

// Config carries the connector's static settings.
type Config struct {
	// Name is the source name as registered in the catalog. Empty marks
	// an ephemeral connector: it can discover and check freshness but
	// operations that need a catalog identity fail with ErrEphemeral.
	Name string

	// RootPath is the absolute storage path all tables live under.
	RootPath string

	// ImpersonationEnabled makes the connector obtain a per-identity
	// filesystem for each call and run permission verification. When
	// disabled every call runs as ProcessIdentity and verification is a
	// no-op that grants access.
	ImpersonationEnabled bool

	// ProcessIdentity is the identity used for catalog-driven work
	// (freshness probes, state checks) and as the fallback identity.
	ProcessIdentity string

	// ViewFileMode is the permission applied to view metadata files.
	ViewFileMode os.FileMode
}

// DefaultViewFileMode is used when Config.ViewFileMode is zero.
const DefaultViewFileMode os.FileMode = 0o600

// Connector binds one storage root to the catalog.
type Connector struct {
	cfg      Config
	resolver *Resolver
	factory  fs.Factory
	catalog  catalog.Catalog
	registry *format.Registry
	limiter  *ratelimiter.ProbeLimiter
	metrics  Metrics
}

// New builds a connector. The limiter and metrics are optional; without a
// limiter permission probes run unthrottled, and a nil Metrics disables
// collection. A nil registry gets the default format set.
func New(cfg Config, factory fs.Factory, cat catalog.Catalog, registry *format.Registry, limiter *ratelimiter.ProbeLimiter, metrics Metrics) (*Connector, error) {
	if factory == nil {
		return nil, fmt.Errorf("filesystem factory is required")
	}
	if cat == nil {
		return nil, fmt.Errorf("catalog is required")
	}
	resolver, err := NewResolver(cfg.RootPath)
	if err != nil {
		return nil, err
	}
	if cfg.ViewFileMode == 0 {
		cfg.ViewFileMode = DefaultViewFileMode
	}
	if registry == nil {
		registry, err = DefaultRegistry()
		if err != nil {
			return nil, err
		}
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &Connector{
		cfg:      cfg,
		resolver: resolver,
		factory:  factory,
		catalog:  cat,
		registry: registry,
		limiter:  limiter,
		metrics:  metrics,
	}, nil
}

// DefaultRegistry returns the built-in formats in their match order.
// Parquet is tried first: its extension is the most specific signal and a
// parquet directory often carries _SUCCESS markers the other matchers would
// have to explain away.
func DefaultRegistry() (*format.Registry, error) {
	registry := format.NewRegistry()
	for _, reg := range []struct {
		name    string
		factory format.Factory
	}{
		{"parquet", format.NewParquet},
		{"delimited", format.NewDelimited},
		{"json", format.NewJSON},
	} {
		if err := registry.Register(reg.name, reg.factory); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

// Start verifies the source is reachable by listing the root as the
// process identity.
func (c *Connector) Start(ctx context.Context) error {
	fsys, err := c.fsFor(ctx, c.cfg.ProcessIdentity)
	if err != nil {
		return fmt.Errorf("failed to open source filesystem: %w", err)
	}
	if _, err := fsys.List(ctx, c.resolver.Root(), false); err != nil {
		return fmt.Errorf("failed to list source root %s: %w", c.resolver.Root(), err)
	}
	logger.Info("source %q started at root %s (formats: %v)", c.cfg.Name, c.resolver.Root(), c.registry.Names())
	return nil
}

// ID returns the connector's catalog name, or ErrEphemeral when it was
// created without one.
func (c *Connector) ID() (string, error) {
	if c.cfg.Name == "" {
		return "", ErrEphemeral
	}
	return c.cfg.Name, nil
}

// fsFor returns the filesystem for the given identity. With impersonation
// disabled every identity collapses to the process identity, so backends
// never see caller identities they are not configured for.
func (c *Connector) fsFor(ctx context.Context, identity string) (fs.FileSystem, error) {
	if !c.cfg.ImpersonationEnabled || identity == "" {
		identity = c.cfg.ProcessIdentity
	}
	fsys, err := c.factory.ForIdentity(ctx, identity)
	if err != nil {
		return nil, fmt.Errorf("failed to open filesystem for identity %q: %w", identity, err)
	}
	return fsys, nil
}

// SourceStatus is the coarse health of the source.
type SourceStatus int

const (
	StatusGood SourceStatus = iota
	StatusBad
)

func (s SourceStatus) String() string {
	if s == StatusGood {
		return "good"
	}
	return "bad"
}

// SourceState is the health report returned by State.
type SourceState struct {
	Status  SourceStatus
	Message string
}

// State probes the source root and reports whether the source is usable.
func (c *Connector) State(ctx context.Context) SourceState {
	fsys, err := c.fsFor(ctx, c.cfg.ProcessIdentity)
	if err == nil {
		_, err = fsys.List(ctx, c.resolver.Root(), false)
	}
	if err != nil {
		logger.Warn("source %q state probe failed: %v", c.cfg.Name, err)
		return SourceState{Status: StatusBad, Message: err.Error()}
	}
	return SourceState{Status: StatusGood}
}

// SchemaEntityType tags children returned by List.
type SchemaEntityType int

const (
	// EntityFolder is a plain directory.
	EntityFolder SchemaEntityType = iota

	// EntityFolderTable is a directory registered as a dataset.
	EntityFolderTable

	// EntityFile is a plain file.
	EntityFile

	// EntityFileTable is a file registered as a dataset.
	EntityFileTable
)

func (t SchemaEntityType) String() string {
	switch t {
	case EntityFolder:
		return "folder"
	case EntityFolderTable:
		return "folder_table"
	case EntityFile:
		return "file"
	case EntityFileTable:
		return "file_table"
	default:
		return "unknown"
	}
}

// SchemaEntity is one child of a schema folder.
type SchemaEntity struct {
	Name  string
	Type  SchemaEntityType
	Owner string
}

// List returns the children of a schema folder, tagging each as a file or
// folder and marking the ones the catalog already knows as datasets. A
// folder that is itself a registered dataset has no schema children.
func (c *Connector) List(ctx context.Context, folder LogicalPath, identity string) ([]SchemaEntity, error) {
	fsys, err := c.fsFor(ctx, identity)
	if err != nil {
		return nil, err
	}
	p, err := c.resolver.Resolve(folder)
	if err != nil {
		return nil, err
	}

	isDataset, err := c.catalog.DatasetExists(ctx, catalog.Key(folder))
	if err != nil {
		return nil, fmt.Errorf("failed to query catalog for %s: %w", folder, err)
	}
	if isDataset {
		return []SchemaEntity{}, nil
	}

	statuses, err := fsys.List(ctx, p, false)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", folder, err)
	}

	entities := make([]SchemaEntity, 0, len(statuses))
	for _, st := range statuses {
		name := path.Base(st.Path)
		key := catalog.Key(append(append(LogicalPath{}, folder...), name))
		isDataset, err := c.catalog.DatasetExists(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("failed to query catalog for %s: %w", key, err)
		}

		var typ SchemaEntityType
		switch {
		case st.IsDir && isDataset:
			typ = EntityFolderTable
		case st.IsDir:
			typ = EntityFolder
		case isDataset:
			typ = EntityFileTable
		default:
			typ = EntityFile
		}
		entities = append(entities, SchemaEntity{Name: name, Type: typ, Owner: st.Owner})
	}
	return entities, nil
}

// SubPartitions returns the direct children of a table path. Planners use
// it to enumerate partition directories without a full recursive walk.
func (c *Connector) SubPartitions(ctx context.Context, logical LogicalPath, identity string) ([]fs.FileStatus, error) {
	fsys, err := c.fsFor(ctx, identity)
	if err != nil {
		return nil, err
	}
	p, err := c.resolver.Resolve(logical)
	if err != nil {
		return nil, err
	}
	statuses, err := fsys.List(ctx, p, false)
	if err != nil {
		return nil, fmt.Errorf("failed to list sub-partitions of %s: %w", logical, err)
	}
	return statuses, nil
}

// ContainerExists reports whether the logical path is a folder in storage.
func (c *Connector) ContainerExists(ctx context.Context, logical LogicalPath, identity string) (bool, error) {
	fsys, err := c.fsFor(ctx, identity)
	if err != nil {
		return false, err
	}
	p, err := c.resolver.Resolve(logical)
	if err != nil {
		return false, err
	}
	return fsys.IsDirectory(ctx, p)
}

// PathExists reports whether the logical path maps to anything in storage,
// file or folder.
func (c *Connector) PathExists(ctx context.Context, logical LogicalPath, identity string) (bool, error) {
	fsys, err := c.fsFor(ctx, identity)
	if err != nil {
		return false, err
	}
	p, err := c.resolver.Resolve(logical)
	if err != nil {
		return false, err
	}
	return fsys.Exists(ctx, p)
}

// DatasetDescriptor is the discovery output handed to the catalog: the
// dataset's key, the format that matched, the freshness snapshot, and the
// physical splits.
type DatasetDescriptor struct {
	Key       catalog.Key
	Format    format.Config
	UpdateKey UpdateKey
	Splits    []catalog.Split
}

// Record converts the descriptor into its catalog persistence form.
func (d *DatasetDescriptor) Record() (*catalog.DatasetRecord, error) {
	blob, err := EncodeUpdateKey(d.UpdateKey)
	if err != nil {
		return nil, err
	}
	return &catalog.DatasetRecord{
		Key:           d.Key,
		Format:        d.Format.Type,
		FormatOptions: d.Format.Options,
		UpdateKey:     blob,
		Splits:        d.Splits,
	}, nil
}
