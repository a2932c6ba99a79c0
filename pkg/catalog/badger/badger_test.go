package badger

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/skonto/filesource/pkg/catalog"
)

func newTestCatalog(t *testing.T) *BadgerCatalog {
	t.Helper()
	cat, err := New(context.Background(), Config{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, cat.Close())
	})
	return cat
}

func TestRoundTrip(t *testing.T) {
	cat := newTestCatalog(t)
	ctx := context.Background()

	record := &catalog.DatasetRecord{
		Key:           catalog.Key{"src", "sales"},
		Format:        "delimited",
		FormatOptions: map[string]string{"delimiter": "|"},
		UpdateKey:     []byte{0x01, 0x02},
		Splits: []catalog.Split{
			{Size: 42, ExtendedProperty: []byte{0x03}},
		},
	}
	require.NoError(t, cat.SaveDataset(ctx, record))
	require.NotEmpty(t, record.ID)

	got, err := cat.GetDataset(ctx, catalog.Key{"src", "sales"})
	require.NoError(t, err)
	require.Equal(t, record.ID, got.ID)
	require.Equal(t, record.Key, got.Key)
	require.Equal(t, "delimited", got.Format)
	require.Equal(t, "|", got.FormatOptions["delimiter"])
	require.Equal(t, []byte{0x01, 0x02}, got.UpdateKey)
	require.Len(t, got.Splits, 1)
	require.Equal(t, int64(42), got.Splits[0].Size)
}

func TestGetMissing(t *testing.T) {
	cat := newTestCatalog(t)

	_, err := cat.GetDataset(context.Background(), catalog.Key{"src", "nope"})
	require.True(t, errors.Is(err, catalog.ErrNotFound))
}

func TestExistsAndDelete(t *testing.T) {
	cat := newTestCatalog(t)
	ctx := context.Background()

	key := catalog.Key{"src", "t"}
	require.NoError(t, cat.SaveDataset(ctx, &catalog.DatasetRecord{Key: key, Format: "json"}))

	exists, err := cat.DatasetExists(ctx, key)
	require.NoError(t, err)
	require.True(t, exists)

	require.NoError(t, cat.DeleteDataset(ctx, key))

	exists, err = cat.DatasetExists(ctx, key)
	require.NoError(t, err)
	require.False(t, exists)

	require.NoError(t, cat.DeleteDataset(ctx, key))
}

func TestListChildren(t *testing.T) {
	cat := newTestCatalog(t)
	ctx := context.Background()

	for _, key := range []catalog.Key{
		{"src", "orders"},
		{"src", "sales", "2024"},
	} {
		require.NoError(t, cat.SaveDataset(ctx, &catalog.DatasetRecord{Key: key, Format: "parquet"}))
	}

	entries, err := cat.List(ctx, catalog.Key{"src"})
	require.NoError(t, err)
	require.Len(t, entries, 2)

	types := make(map[string]catalog.EntryType, len(entries))
	for _, e := range entries {
		types[e.Key.Name()] = e.Type
	}
	require.Equal(t, catalog.EntryDataset, types["orders"])
	require.Equal(t, catalog.EntryContainer, types["sales"])
}

func TestRequiresPathUnlessInMemory(t *testing.T) {
	_, err := New(context.Background(), Config{})
	require.Error(t, err)
}
