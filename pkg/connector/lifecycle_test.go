package connector

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/skonto/filesource/pkg/fs"
)

func TestDropTableRemovesStorage(t *testing.T) {
	f := newFixture(t, Config{})
	f.fs.WriteFile("/data/sales/jan.parquet", []byte("x"), time.Now())
	f.fs.WriteFile("/data/sales/feb.parquet", []byte("y"), time.Now())
	f.fs.WriteFile("/data/other/keep.parquet", []byte("z"), time.Now())

	require.NoError(t, f.connector.DropTable(context.Background(), LogicalPath{"src", "sales"}, ""))

	view := f.fs.View("svc")
	gone, err := view.Exists(context.Background(), "/data/sales")
	require.NoError(t, err)
	require.False(t, gone)

	// No renamed remnant is left behind either.
	children, err := view.List(context.Background(), "/data", false)
	require.NoError(t, err)
	require.Len(t, children, 1)
	require.Equal(t, "/data/other", children[0].Path)
}

func TestDropTableSingleFile(t *testing.T) {
	f := newFixture(t, Config{})
	f.fs.WriteFile("/data/orders.csv", []byte("a,b"), time.Now())

	require.NoError(t, f.connector.DropTable(context.Background(), LogicalPath{"src", "orders.csv"}, ""))

	gone, err := f.fs.View("svc").Exists(context.Background(), "/data/orders.csv")
	require.NoError(t, err)
	require.False(t, gone)
}

func TestDropTableMissingIsValidationError(t *testing.T) {
	f := newFixture(t, Config{})

	err := f.connector.DropTable(context.Background(), LogicalPath{"src", "missing"}, "")
	var validation *ValidationError
	require.True(t, errors.As(err, &validation), "expected ValidationError, got %v", err)
}

func TestDropTableMixedFormatsRejectedBeforeStorageTouched(t *testing.T) {
	f := newFixture(t, Config{})
	f.fs.WriteFile("/data/mixed/a.parquet", []byte("x"), time.Now())
	f.fs.WriteFile("/data/mixed/b.csv", []byte("y"), time.Now())

	err := f.connector.DropTable(context.Background(), LogicalPath{"src", "mixed"}, "")
	var validation *ValidationError
	require.True(t, errors.As(err, &validation), "expected ValidationError, got %v", err)

	// Nothing was renamed or deleted.
	view := f.fs.View("svc")
	for _, p := range []string{"/data/mixed", "/data/mixed/a.parquet", "/data/mixed/b.csv"} {
		exists, err := view.Exists(context.Background(), p)
		require.NoError(t, err)
		require.True(t, exists, "%s must survive a rejected drop", p)
	}
}

func TestDropTableUnknownFormatRejected(t *testing.T) {
	f := newFixture(t, Config{})
	f.fs.WriteFile("/data/blob/a.bin", []byte("x"), time.Now())

	err := f.connector.DropTable(context.Background(), LogicalPath{"src", "blob"}, "")
	var validation *ValidationError
	require.True(t, errors.As(err, &validation))
}

func TestDropTableDeniedIsAuthorizationError(t *testing.T) {
	f := newFixture(t, Config{ImpersonationEnabled: true})
	f.fs.WriteFile("/data/sales/jan.parquet", []byte("x"), time.Now())
	f.fs.Deny("alice", "/data/sales", fs.AccessWrite)

	err := f.connector.DropTable(context.Background(), LogicalPath{"src", "sales"}, "alice")
	var authErr *AuthorizationError
	require.True(t, errors.As(err, &authErr), "expected AuthorizationError, got %v", err)
}

func TestCreateGetDropView(t *testing.T) {
	f := newFixture(t, Config{})
	f.fs.MkdirAll("/data/sales", time.Now())

	def := ViewDefinition{
		Name:   "top_orders",
		SQL:    "SELECT * FROM sales.orders LIMIT 10",
		Fields: []string{"id", "amount"},
	}

	replaced, err := f.connector.CreateView(context.Background(), LogicalPath{"src", "sales", "top_orders"}, def, "")
	require.NoError(t, err)
	require.False(t, replaced)

	// The definition file is a dot file in the parent directory.
	exists, err := f.fs.View("svc").Exists(context.Background(), "/data/sales/.top_orders.view.meta")
	require.NoError(t, err)
	require.True(t, exists)

	got, err := f.connector.GetView(context.Background(), LogicalPath{"src", "sales", "top_orders"}, "")
	require.NoError(t, err)
	require.Equal(t, def, *got)

	// Re-creating reports the replacement.
	def.SQL = "SELECT * FROM sales.orders LIMIT 20"
	replaced, err = f.connector.CreateView(context.Background(), LogicalPath{"src", "sales", "top_orders"}, def, "")
	require.NoError(t, err)
	require.True(t, replaced)

	got, err = f.connector.GetView(context.Background(), LogicalPath{"src", "sales", "top_orders"}, "")
	require.NoError(t, err)
	require.Equal(t, def.SQL, got.SQL)

	require.NoError(t, f.connector.DropView(context.Background(), LogicalPath{"src", "sales", "top_orders"}, ""))

	_, err = f.connector.GetView(context.Background(), LogicalPath{"src", "sales", "top_orders"}, "")
	var validation *ValidationError
	require.True(t, errors.As(err, &validation))
}

func TestDropViewMissing(t *testing.T) {
	f := newFixture(t, Config{})

	err := f.connector.DropView(context.Background(), LogicalPath{"src", "nope"}, "")
	var validation *ValidationError
	require.True(t, errors.As(err, &validation))
}

func TestViewFilesIgnoredByDiscovery(t *testing.T) {
	// A view definition sitting next to data files must not break or
	// pollute format matching.
	f := newFixture(t, Config{})
	f.fs.WriteFile("/data/sales/jan.parquet", []byte("x"), time.Now())

	_, err := f.connector.CreateView(context.Background(), LogicalPath{"src", "sales", "v"}, ViewDefinition{Name: "v", SQL: "SELECT 1"}, "")
	require.NoError(t, err)

	d, err := f.connector.Discover(context.Background(), LogicalPath{"src", "sales"}, nil, "", DiscoverOptions{})
	require.NoError(t, err)
	require.NotNil(t, d)
	require.Equal(t, "parquet", d.Format.Type)
	require.Len(t, d.Splits, 1)
}
