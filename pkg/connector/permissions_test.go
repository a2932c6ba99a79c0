package connector

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/skonto/filesource/pkg/catalog"
	"github.com/skonto/filesource/pkg/fs"
)

func TestVerifyAccessGranted(t *testing.T) {
	f := newFixture(t, Config{ImpersonationEnabled: true})
	f.fs.WriteFile("/data/sales/jan.parquet", []byte("x"), time.Now())

	record := storedRecord(t, f, LogicalPath{"src", "sales"})

	ok, err := f.connector.VerifyAccess(context.Background(), record, "alice")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestVerifyAccessSplitDenied(t *testing.T) {
	f := newFixture(t, Config{ImpersonationEnabled: true})
	f.fs.WriteFile("/data/sales/jan.parquet", []byte("x"), time.Now())
	f.fs.WriteFile("/data/sales/feb.parquet", []byte("y"), time.Now())

	record := storedRecord(t, f, LogicalPath{"src", "sales"})

	// One denied file among many accessible ones denies the dataset.
	f.fs.Deny("alice", "/data/sales/feb.parquet", fs.AccessRead)

	ok, err := f.connector.VerifyAccess(context.Background(), record, "alice")
	require.NoError(t, err)
	require.False(t, ok)

	// A different identity is unaffected.
	ok, err = f.connector.VerifyAccess(context.Background(), record, "bob")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestVerifyAccessDirectoryDenied(t *testing.T) {
	f := newFixture(t, Config{ImpersonationEnabled: true})
	f.fs.WriteFile("/data/sales/2024/jan.parquet", []byte("x"), time.Now())

	record := storedRecord(t, f, LogicalPath{"src", "sales"})

	f.fs.Deny("alice", "/data/sales/2024", fs.AccessExecute)

	ok, err := f.connector.VerifyAccess(context.Background(), record, "alice")
	require.NoError(t, err)
	require.False(t, ok, "directories are probed for read+execute")
}

func TestVerifyAccessReadOnlyProbeWithoutExecuteBit(t *testing.T) {
	// On backends without execute-bit semantics the directory probe
	// degrades to read, so an execute denial cannot fire.
	f := newFixture(t, Config{ImpersonationEnabled: true})
	f.fs.WriteFile("/data/sales/2024/jan.parquet", []byte("x"), time.Now())
	f.fs.SetCapabilities(fs.Capabilities{SupportsModTimes: true, SupportsExecuteBit: false})

	record := storedRecord(t, f, LogicalPath{"src", "sales"})

	f.fs.Deny("alice", "/data/sales/2024", fs.AccessExecute)

	ok, err := f.connector.VerifyAccess(context.Background(), record, "alice")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestVerifyAccessManyBatches(t *testing.T) {
	// More splits than one batch holds, exercising the worker pool.
	f := newFixture(t, Config{ImpersonationEnabled: true})
	for i := 0; i < 57; i++ {
		f.fs.WriteFile(fmt.Sprintf("/data/wide/part-%03d.parquet", i), []byte("x"), time.Now())
	}

	record := storedRecord(t, f, LogicalPath{"src", "wide"})
	require.Len(t, record.Splits, 57)

	ok, err := f.connector.VerifyAccess(context.Background(), record, "alice")
	require.NoError(t, err)
	require.True(t, ok)

	// Deny a path deep in the last batch.
	f.fs.Deny("alice", "/data/wide/part-056.parquet", fs.AccessRead)

	ok, err = f.connector.VerifyAccess(context.Background(), record, "alice")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestVerifyAccessProbeFailureFailsCall(t *testing.T) {
	// A missing split path is an I/O-level discrepancy, not a denial: the
	// call must fail instead of answering either way.
	f := newFixture(t, Config{ImpersonationEnabled: true})
	f.fs.WriteFile("/data/sales/jan.parquet", []byte("x"), time.Now())

	record := storedRecord(t, f, LogicalPath{"src", "sales"})

	require.NoError(t, f.fs.View("svc").Delete(context.Background(), "/data/sales/jan.parquet", false))

	_, err := f.connector.VerifyAccess(context.Background(), record, "alice")
	require.Error(t, err)
}

func TestVerifyAccessImpersonationDisabled(t *testing.T) {
	f := newFixture(t, Config{ImpersonationEnabled: false})
	f.fs.WriteFile("/data/sales/jan.parquet", []byte("x"), time.Now())

	record := storedRecord(t, f, LogicalPath{"src", "sales"})
	f.fs.Deny("alice", "/data/sales", fs.AccessRead)

	// Without impersonation there is nothing to probe as "alice".
	ok, err := f.connector.VerifyAccess(context.Background(), record, "alice")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestVerifyAccessEmptyRecord(t *testing.T) {
	f := newFixture(t, Config{ImpersonationEnabled: true})

	ok, err := f.connector.VerifyAccess(context.Background(), &catalog.DatasetRecord{Key: catalog.Key{"src", "x"}}, "alice")
	require.NoError(t, err)
	require.True(t, ok)
}
