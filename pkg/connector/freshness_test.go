package connector

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/skonto/filesource/pkg/catalog"
	"github.com/skonto/filesource/pkg/fs"
)

// storedRecord runs discovery and converts the result to the catalog form,
// i.e. what a prior refresh would have persisted.
func storedRecord(t *testing.T, f *testFixture, logical LogicalPath) *catalog.DatasetRecord {
	t.Helper()
	d, err := f.connector.Discover(context.Background(), logical, nil, "", DiscoverOptions{})
	require.NoError(t, err)
	require.NotNil(t, d)
	record, err := d.Record()
	require.NoError(t, err)
	return record
}

func TestFreshnessUnchanged(t *testing.T) {
	f := newFixture(t, Config{})
	base := time.Unix(1700000000, 0)
	f.fs.WriteFile("/data/sales/jan.parquet", []byte("x"), base)
	f.fs.SetModTime("/data/sales", base)

	record := storedRecord(t, f, LogicalPath{"src", "sales"})

	result, err := f.connector.CheckFreshness(context.Background(), record)
	require.NoError(t, err)
	require.Equal(t, StatusUnchanged, result.Status)
	require.Nil(t, result.Descriptor)
}

func TestFreshnessRootMtimeAdvanced(t *testing.T) {
	f := newFixture(t, Config{})
	base := time.Unix(1700000000, 0)
	f.fs.WriteFile("/data/sales/jan.parquet", []byte("x"), base)
	f.fs.SetModTime("/data/sales", base)

	record := storedRecord(t, f, LogicalPath{"src", "sales"})

	// A later write bumps the directory mtime.
	f.fs.WriteFile("/data/sales/feb.parquet", []byte("y"), base.Add(time.Minute))
	f.fs.SetModTime("/data/sales", base.Add(time.Minute))

	result, err := f.connector.CheckFreshness(context.Background(), record)
	require.NoError(t, err)
	require.Equal(t, StatusChanged, result.Status)
	require.NotNil(t, result.Descriptor, "Changed must carry the replacement descriptor")
	require.Len(t, result.Descriptor.Splits, 2)
}

func TestFreshnessOlderLiveMtimeIsUnchanged(t *testing.T) {
	// A live mtime behind the stored one (clock skew, restored backup) is
	// not treated as a change.
	f := newFixture(t, Config{})
	base := time.Unix(1700000000, 0)
	f.fs.WriteFile("/data/sales/jan.parquet", []byte("x"), base)
	f.fs.SetModTime("/data/sales", base)

	record := storedRecord(t, f, LogicalPath{"src", "sales"})

	f.fs.SetModTime("/data/sales", base.Add(-time.Hour))

	result, err := f.connector.CheckFreshness(context.Background(), record)
	require.NoError(t, err)
	require.Equal(t, StatusUnchanged, result.Status)
}

func TestFreshnessRootMissingIsDeleted(t *testing.T) {
	f := newFixture(t, Config{})
	base := time.Unix(1700000000, 0)
	f.fs.WriteFile("/data/sales/2024/jan.parquet", []byte("x"), base)

	record := storedRecord(t, f, LogicalPath{"src", "sales"})

	require.NoError(t, f.fs.View("svc").Delete(context.Background(), "/data/sales", true))

	result, err := f.connector.CheckFreshness(context.Background(), record)
	require.NoError(t, err)
	require.Equal(t, StatusDeleted, result.Status)
}

func TestFreshnessSubdirectoryMissingIsChanged(t *testing.T) {
	// Only a missing root means Deleted; a vanished subdirectory is a
	// change to an otherwise live dataset.
	f := newFixture(t, Config{})
	base := time.Unix(1700000000, 0)
	f.fs.WriteFile("/data/sales/jan.parquet", []byte("x"), base)
	f.fs.WriteFile("/data/sales/2024/feb.parquet", []byte("y"), base)
	f.fs.SetModTime("/data/sales", base)

	record := storedRecord(t, f, LogicalPath{"src", "sales"})

	require.NoError(t, f.fs.View("svc").Delete(context.Background(), "/data/sales/2024", true))
	f.fs.SetModTime("/data/sales", base)

	result, err := f.connector.CheckFreshness(context.Background(), record)
	require.NoError(t, err)
	require.Equal(t, StatusChanged, result.Status)
	require.NotNil(t, result.Descriptor)
}

func TestFreshnessZeroMtimeForcesRefresh(t *testing.T) {
	// Backends without mtimes (object stores) report zero; freshness
	// cannot be decided cheaply, so the check conservatively refreshes.
	f := newFixture(t, Config{})
	base := time.Unix(1700000000, 0)
	f.fs.WriteFile("/data/sales/jan.parquet", []byte("x"), base)
	f.fs.SetModTime("/data/sales", base)

	record := storedRecord(t, f, LogicalPath{"src", "sales"})

	f.fs.SetModTime("/data/sales", time.Time{})

	result, err := f.connector.CheckFreshness(context.Background(), record)
	require.NoError(t, err)
	require.Equal(t, StatusChanged, result.Status)
}

func TestFreshnessSingleFileAlwaysChangedWhileAlive(t *testing.T) {
	// Single-file datasets carry an empty update key and are tracked by
	// existence alone: present means refresh, absent means deleted.
	f := newFixture(t, Config{})
	f.fs.WriteFile("/data/orders.csv", []byte("a,b"), time.Now())

	record := storedRecord(t, f, LogicalPath{"src", "orders.csv"})
	require.Empty(t, record.UpdateKey)

	result, err := f.connector.CheckFreshness(context.Background(), record)
	require.NoError(t, err)
	require.Equal(t, StatusChanged, result.Status)
	require.NotNil(t, result.Descriptor)

	require.NoError(t, f.fs.View("svc").Delete(context.Background(), "/data/orders.csv", false))

	result, err = f.connector.CheckFreshness(context.Background(), record)
	require.NoError(t, err)
	require.Equal(t, StatusDeleted, result.Status)
}

func TestFreshnessRefreshFailureSurfaces(t *testing.T) {
	// A denial or storage failure during the refresh listing must not read
	// as "deleted": the caller would drop a catalog entry for a dataset
	// that still exists.
	f := newFixture(t, Config{})
	base := time.Unix(1700000000, 0)
	f.fs.WriteFile("/data/sales/jan.parquet", []byte("x"), base)
	f.fs.SetModTime("/data/sales", base)

	record := storedRecord(t, f, LogicalPath{"src", "sales"})

	f.fs.SetModTime("/data/sales", base.Add(time.Minute))
	f.fs.Deny("svc", "/data/sales", fs.AccessRead)

	result, err := f.connector.CheckFreshness(context.Background(), record)
	require.Error(t, err)
	var authErr *AuthorizationError
	require.True(t, errors.As(err, &authErr), "expected AuthorizationError, got %v", err)
	require.NotEqual(t, StatusDeleted, result.Status)
}

func TestFreshnessStoredZeroMtimeForcesRefresh(t *testing.T) {
	// A snapshot entry recorded without an mtime has nothing to compare
	// against, regardless of what the backend reports now.
	f := newFixture(t, Config{})
	base := time.Unix(1700000000, 0)
	f.fs.WriteFile("/data/sales/jan.parquet", []byte("x"), base)
	f.fs.SetModTime("/data/sales", time.Time{})

	record := storedRecord(t, f, LogicalPath{"src", "sales"})

	f.fs.SetModTime("/data/sales", base)

	result, err := f.connector.CheckFreshness(context.Background(), record)
	require.NoError(t, err)
	require.Equal(t, StatusChanged, result.Status)
}

func TestFreshnessSingleFileReplacedByDirectoryIsDeleted(t *testing.T) {
	// The single-file convention tracks a file; a directory appearing
	// under the same name is not that dataset anymore.
	f := newFixture(t, Config{})
	f.fs.WriteFile("/data/orders.csv", []byte("a,b"), time.Now())

	record := storedRecord(t, f, LogicalPath{"src", "orders.csv"})
	require.Empty(t, record.UpdateKey)

	require.NoError(t, f.fs.View("svc").Delete(context.Background(), "/data/orders.csv", false))
	f.fs.MkdirAll("/data/orders.csv", time.Now())

	result, err := f.connector.CheckFreshness(context.Background(), record)
	require.NoError(t, err)
	require.Equal(t, StatusDeleted, result.Status)
}

func TestFreshnessEmptiedDirectoryIsDeleted(t *testing.T) {
	// The root survives but every file is gone: re-discovery finds no
	// dataset, so the verdict is Deleted rather than Changed.
	f := newFixture(t, Config{})
	base := time.Unix(1700000000, 0)
	f.fs.WriteFile("/data/sales/jan.parquet", []byte("x"), base)
	f.fs.SetModTime("/data/sales", base)

	record := storedRecord(t, f, LogicalPath{"src", "sales"})

	require.NoError(t, f.fs.View("svc").Delete(context.Background(), "/data/sales/jan.parquet", false))
	f.fs.SetModTime("/data/sales", base.Add(time.Minute))

	result, err := f.connector.CheckFreshness(context.Background(), record)
	require.NoError(t, err)
	require.Equal(t, StatusDeleted, result.Status)
}
