package config

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	catalogBadger "github.com/skonto/filesource/pkg/catalog/badger"
)

func TestCreateFilesystemFactoryLocal(t *testing.T) {
	factory, err := CreateFilesystemFactory(context.Background(), &FilesystemConfig{Type: "local"})
	require.NoError(t, err)
	require.NotNil(t, factory)
}

func TestCreateFilesystemFactoryMemory(t *testing.T) {
	factory, err := CreateFilesystemFactory(context.Background(), &FilesystemConfig{Type: "memory"})
	require.NoError(t, err)

	fsys, err := factory.ForIdentity(context.Background(), "alice")
	require.NoError(t, err)
	require.NotNil(t, fsys)
}

func TestCreateFilesystemFactoryUnknown(t *testing.T) {
	_, err := CreateFilesystemFactory(context.Background(), &FilesystemConfig{Type: "hdfs"})
	require.Error(t, err)
}

func TestCreateFilesystemFactoryS3RequiresBucket(t *testing.T) {
	_, err := CreateFilesystemFactory(context.Background(), &FilesystemConfig{
		Type: "s3",
		S3:   map[string]any{"region": "us-east-1"},
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "bucket")
}

func TestCreateCatalogMemory(t *testing.T) {
	cat, err := CreateCatalog(context.Background(), &CatalogConfig{Type: "memory"})
	require.NoError(t, err)
	require.NotNil(t, cat)
}

func TestCreateCatalogBadgerInMemory(t *testing.T) {
	cat, err := CreateCatalog(context.Background(), &CatalogConfig{
		Type:   "badger",
		Badger: map[string]any{"in_memory": true},
	})
	require.NoError(t, err)
	require.NotNil(t, cat)

	badgerCat, ok := cat.(*catalogBadger.BadgerCatalog)
	require.True(t, ok)
	require.NoError(t, badgerCat.Close())
}

func TestCreateCatalogUnknown(t *testing.T) {
	_, err := CreateCatalog(context.Background(), &CatalogConfig{Type: "postgres"})
	require.Error(t, err)
}
